package tle

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestCacheRoundTripCompressed(t *testing.T) {
	dir := t.TempDir()
	c := NewCache(dir, 3)
	data := []byte(strings.Repeat(threeLine(issName, issLine1, issLine2), 200))
	ts := time.Unix(1_700_000_000, 0)

	if err := c.Write(data, ts); err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(dir, "tle_1700000000.txt.zst")
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("snapshot not written: %v", err)
	}
	if info.Size() >= int64(len(data)) {
		t.Errorf("snapshot not compressed: %d >= %d bytes", info.Size(), len(data))
	}

	got, gotTS, err := c.LoadLatest()
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(data) {
		t.Error("round trip changed the data")
	}
	if !gotTS.Equal(ts) {
		t.Errorf("timestamp = %v, want %v", gotTS, ts)
	}
}

func TestCachePrunesOldest(t *testing.T) {
	dir := t.TempDir()
	c := NewCache(dir, 2)
	for i := 0; i < 4; i++ {
		if err := c.Write([]byte{byte('a' + i)}, time.Unix(int64(1000+i), 0)); err != nil {
			t.Fatal(err)
		}
	}

	files, err := c.listFiles()
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 2 {
		t.Fatalf("kept %d files, want 2", len(files))
	}
	got, ts, _ := c.LoadLatest()
	if string(got) != "d" || ts.Unix() != 1003 {
		t.Errorf("latest = %q at %d", got, ts.Unix())
	}
}

func TestCacheReadsPlainSnapshots(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "tle_2000.txt"), []byte("plain"), 0o644); err != nil {
		t.Fatal(err)
	}
	os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644)

	got, ts, err := NewCache(dir, 5).LoadLatest()
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "plain" || ts.Unix() != 2000 {
		t.Errorf("LoadLatest = %q, %d", got, ts.Unix())
	}
}

func TestCacheEmpty(t *testing.T) {
	_, _, err := NewCache(filepath.Join(t.TempDir(), "missing"), 5).LoadLatest()
	if !errors.Is(err, ErrNoCache) {
		t.Errorf("err = %v, want ErrNoCache", err)
	}
}
