package stream

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/star/sattrack/internal/metrics"
)

// writeTimeout bounds each individual SSE write.
const writeTimeout = 30 * time.Second

// eventWriter frames SSE events on one connection.
type eventWriter struct {
	out    io.Writer
	flush  func()
	rc     *http.ResponseController
	logger *slog.Logger

	events int
	bytes  int64
}

func newEventWriter(w http.ResponseWriter, flusher http.Flusher, rc *http.ResponseController, logger *slog.Logger) *eventWriter {
	return &eventWriter{out: w, flush: flusher.Flush, rc: rc, logger: logger}
}

// write sends one raw chunk under a fresh deadline and flushes it.
func (e *eventWriter) write(chunk string) error {
	if err := e.rc.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		e.logger.Debug("could not set write deadline", "component", "stream", "error", err)
	}
	n, err := io.WriteString(e.out, chunk)
	e.bytes += int64(n)
	if err != nil {
		return err
	}
	e.flush()
	return nil
}

// retry advises the client's reconnect delay.
func (e *eventWriter) retry(d time.Duration) error {
	return e.write(fmt.Sprintf("retry: %d\n\n", d.Milliseconds()))
}

// event sends v as a single "data:" event.
func (e *eventWriter) event(v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding event: %w", err)
	}
	if err := e.write("data: " + string(payload) + "\n\n"); err != nil {
		return fmt.Errorf("writing event: %w", err)
	}
	e.events++
	metrics.StreamMessage()
	return nil
}

// comment sends an SSE comment, used as keepalive.
func (e *eventWriter) comment() error {
	if err := e.write(":\n\n"); err != nil {
		return fmt.Errorf("writing keepalive: %w", err)
	}
	return nil
}
