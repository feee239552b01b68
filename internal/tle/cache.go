package tle

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"
)

// ErrNoCache is returned by LoadLatest when the cache directory holds no
// snapshots.
var ErrNoCache = errors.New("no cache files found")

const (
	cachePrefix = "tle_"
	zstSuffix   = ".txt.zst"
	txtSuffix   = ".txt"
)

// Cache keeps timestamped, zstd-compressed snapshots of raw TLE text on disk.
// Plain .txt snapshots are still read.
type Cache struct {
	dir      string
	maxFiles int
}

// NewCache creates a Cache that stores files in dir and keeps at most maxFiles.
func NewCache(dir string, maxFiles int) *Cache {
	if maxFiles <= 0 {
		maxFiles = 5
	}
	return &Cache{
		dir:      dir,
		maxFiles: maxFiles,
	}
}

// Write compresses data into a snapshot named after ts and prunes old
// snapshots beyond maxFiles.
func (c *Cache) Write(data []byte, ts time.Time) error {
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("creating cache dir: %w", err)
	}

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	if err != nil {
		return fmt.Errorf("creating zstd encoder: %w", err)
	}
	compressed := enc.EncodeAll(data, nil)
	enc.Close()

	path := filepath.Join(c.dir, fmt.Sprintf("%s%d%s", cachePrefix, ts.Unix(), zstSuffix))
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, compressed, 0o644); err != nil {
		return fmt.Errorf("writing cache file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("renaming cache file: %w", err)
	}

	return c.prune()
}

// LoadLatest returns the newest snapshot and its timestamp.
func (c *Cache) LoadLatest() ([]byte, time.Time, error) {
	files, err := c.listFiles()
	if err != nil {
		return nil, time.Time{}, err
	}
	if len(files) == 0 {
		return nil, time.Time{}, ErrNoCache
	}

	// Oldest first.
	latest := files[len(files)-1]
	f, err := os.Open(filepath.Join(c.dir, latest.name))
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("opening cache file: %w", err)
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(latest.name, zstSuffix) {
		zr, err := zstd.NewReader(f, zstd.WithDecoderConcurrency(0))
		if err != nil {
			return nil, time.Time{}, fmt.Errorf("creating zstd decoder: %w", err)
		}
		defer zr.Close()
		r = zr
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, io.LimitReader(r, maxBodyBytes+1)); err != nil {
		return nil, time.Time{}, fmt.Errorf("reading cache file %s: %w", latest.name, err)
	}
	if buf.Len() > maxBodyBytes {
		return nil, time.Time{}, fmt.Errorf("cache file %s exceeds %d byte limit", latest.name, maxBodyBytes)
	}
	return buf.Bytes(), latest.ts, nil
}

type cacheFile struct {
	name string
	ts   time.Time
}

func (c *Cache) listFiles() ([]cacheFile, error) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing cache dir: %w", err)
	}

	var files []cacheFile
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasPrefix(name, cachePrefix) {
			continue
		}
		var tsStr string
		switch {
		case strings.HasSuffix(name, zstSuffix):
			tsStr = strings.TrimSuffix(name, zstSuffix)
		case strings.HasSuffix(name, txtSuffix):
			tsStr = strings.TrimSuffix(name, txtSuffix)
		default:
			continue
		}
		unix, err := strconv.ParseInt(strings.TrimPrefix(tsStr, cachePrefix), 10, 64)
		if err != nil {
			continue
		}
		files = append(files, cacheFile{name: name, ts: time.Unix(unix, 0)})
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].ts.Before(files[j].ts)
	})
	return files, nil
}

func (c *Cache) prune() error {
	files, err := c.listFiles()
	if err != nil {
		return err
	}
	if len(files) <= c.maxFiles {
		return nil
	}

	for _, f := range files[:len(files)-c.maxFiles] {
		if err := os.Remove(filepath.Join(c.dir, f.name)); err != nil {
			return fmt.Errorf("pruning cache file %s: %w", f.name, err)
		}
	}
	return nil
}
