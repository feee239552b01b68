package tle

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"
)

const lineLen = 69

var errNotElementSet = errors.New("lines 2 and 3 are not TLE lines 1 and 2")

// Parse reads 3-line NORAD element sets (name line, line 1, line 2) from r.
// A "0 " prefix on the name line is accepted. Malformed entries are skipped
// with a warning log.
func Parse(r io.Reader, logger *slog.Logger) ([]Entry, error) {
	var lines []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if l := strings.TrimRight(sc.Text(), "\r\n "); l != "" {
			lines = append(lines, l)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading TLE data: %w", err)
	}

	var entries []Entry
	for len(lines) >= 3 {
		e, err := parseEntry(lines[0], lines[1], lines[2])
		if errors.Is(err, errNotElementSet) {
			// Out of step: slide forward one line and try again.
			logger.Warn("skipping malformed TLE entry", "component", "tle", "line", lines[0])
			lines = lines[1:]
			continue
		}
		lines = lines[3:]
		if err != nil {
			logger.Warn("skipping invalid TLE entry", "component", "tle", "name", e.Name, "error", err)
			continue
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// parseEntry decodes one element set. The returned Entry carries the name even
// when err is non-nil.
func parseEntry(name, l1, l2 string) (Entry, error) {
	e := Entry{Name: strings.TrimSpace(strings.TrimPrefix(name, "0 ")), Line1: l1, Line2: l2}
	if !strings.HasPrefix(l1, "1 ") || !strings.HasPrefix(l2, "2 ") {
		return e, errNotElementSet
	}
	if len(l1) != lineLen || len(l2) != lineLen {
		return e, fmt.Errorf("line lengths %d/%d, want %d", len(l1), len(l2), lineLen)
	}

	id, err := strconv.Atoi(strings.TrimSpace(l1[2:7]))
	if err != nil {
		return e, fmt.Errorf("catalog number %q: %w", l1[2:7], err)
	}
	if id2, err := strconv.Atoi(strings.TrimSpace(l2[2:7])); err != nil || id2 != id {
		return e, fmt.Errorf("catalog numbers differ between lines (%q vs %q)", l1[2:7], l2[2:7])
	}
	e.NORADID = id

	if e.Epoch, err = parseEpoch(strings.TrimSpace(l1[18:32])); err != nil {
		return e, err
	}
	return e, nil
}

// parseEpoch converts a YYDDD.DDDDDDDD epoch to time.Time.
// Year 00-56 → 2000s, 57-99 → 1900s.
func parseEpoch(s string) (time.Time, error) {
	if len(s) < 5 {
		return time.Time{}, fmt.Errorf("epoch %q too short", s)
	}
	yy, err := strconv.Atoi(s[:2])
	if err != nil {
		return time.Time{}, fmt.Errorf("epoch year %q: %w", s[:2], err)
	}
	year := 2000 + yy
	if yy >= 57 {
		year = 1900 + yy
	}

	day, err := strconv.ParseFloat(s[2:], 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("epoch day %q: %w", s[2:], err)
	}
	if day < 1 || day >= 367 {
		return time.Time{}, fmt.Errorf("epoch day %v out of range", day)
	}
	jan1 := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	return jan1.Add(time.Duration((day - 1) * float64(24*time.Hour))), nil
}
