package cache

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/pageweight/internal/model"
)

// headerMagic starts the first line of every cache file.
const headerMagic = "pageweight-cache/1"

// Disk is a page cache with one file per URL.
//
// A file holds a single header line
//
//	pageweight-cache/1 <status> <fetched-unix> <sha3-of-body>
//
// followed by the raw body. Files are written to a temporary name in the
// same directory, synced and renamed, so a reader never sees a partial
// entry. Disk is safe for concurrent use.
type Disk struct {
	counters

	// dir is the cache directory.
	dir string

	// logger receives corruption and write warnings.
	logger *slog.Logger
}

// Option configures a Disk cache.
type Option func(*Disk)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Disk) {
		d.logger = logger
	}
}

// NewDisk opens a cache rooted at dir, creating the directory if needed.
func NewDisk(dir string, opts ...Option) (*Disk, error) {
	if dir == "" {
		return nil, errors.New("cache directory is empty")
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	d := &Disk{
		dir:    dir,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Dir returns the cache directory.
func (d *Disk) Dir() string {
	return d.dir
}

// Path returns the file path of the entry for a URL.
func (d *Disk) Path(rawURL string) string {
	return filepath.Join(d.dir, Key(rawURL)+".html")
}

// GetOrFetch implements Cache.
func (d *Disk) GetOrFetch(ctx context.Context, url string, fetch FetchFunc) (*model.CrawlResult, error) {
	cached, err := d.Load(url)
	if err == nil {
		d.hits.Add(1)
		return cached, nil
	}

	var corrupt *model.CacheCorruptionError
	if errors.As(err, &corrupt) {
		d.corrupt.Add(1)
		d.logger.Warn("ignoring corrupt cache entry", "url", url, "path", corrupt.Path, "error", corrupt.Err)
	} else if !errors.Is(err, ErrMiss) {
		d.logger.Warn("cache read failed", "url", url, "error", err)
	}
	d.misses.Add(1)

	result, err := fetch(ctx, url)
	if err != nil {
		return result, err
	}
	if cacheable(result) {
		if err := d.Save(result); err != nil {
			d.logger.Warn("cache write failed", "url", url, "error", err)
		}
	}
	return result, nil
}

// Stats implements Cache.
func (d *Disk) Stats() Stats {
	return d.snapshot()
}

// Load reads the entry for a URL. It returns ErrMiss when there is none
// and a *model.CacheCorruptionError when the file cannot be trusted.
func (d *Disk) Load(url string) (*model.CrawlResult, error) {
	path := d.Path(url)
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrMiss
		}
		return nil, err
	}

	result, err := decode(data)
	if err != nil {
		return nil, &model.CacheCorruptionError{Path: path, Err: err}
	}
	return fromCache(result, url), nil
}

// Save persists a result atomically.
func (d *Disk) Save(result *model.CrawlResult) error {
	if !cacheable(result) {
		return fmt.Errorf("refusing to cache %s: status %d", result.URL, result.StatusCode)
	}

	path := d.Path(result.URL)
	tmp, err := os.CreateTemp(d.dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(encode(result)); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write cache entry: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to sync cache entry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close cache entry: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to commit cache entry: %w", err)
	}
	committed = true
	d.writes.Add(1)
	return nil
}

// encode serializes a result into the cache file format.
func encode(r *model.CrawlResult) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%s %d %d %s\n", headerMagic, r.StatusCode, r.FetchedAt.Unix(), checksum(r.Body))
	buf.Write(r.Body)
	return buf.Bytes()
}

// decode parses a cache file and verifies the body checksum.
func decode(data []byte) (*model.CrawlResult, error) {
	reader := bufio.NewReader(bytes.NewReader(data))
	line, err := reader.ReadString('\n')
	if err != nil {
		return nil, fmt.Errorf("missing header: %w", err)
	}

	fields := strings.Fields(strings.TrimSuffix(line, "\n"))
	if len(fields) != 4 || fields[0] != headerMagic {
		return nil, fmt.Errorf("invalid header %q", strings.TrimSpace(line))
	}

	status, err := strconv.Atoi(fields[1])
	if err != nil {
		return nil, fmt.Errorf("invalid status: %w", err)
	}
	fetched, err := strconv.ParseInt(fields[2], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid timestamp: %w", err)
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}
	if checksum(body) != fields[3] {
		return nil, errors.New("body checksum mismatch")
	}

	return &model.CrawlResult{
		StatusCode: status,
		Body:       body,
		FetchedAt:  time.Unix(fetched, 0),
		Source:     model.SourceCache,
	}, nil
}
