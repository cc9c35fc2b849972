package sitemap

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
)

// ReadURLList reads one URL per line. Blank lines and lines starting with
// '#' are skipped, and duplicates keep their first position.
func ReadURLList(r io.Reader) ([]string, error) {
	urls := newOrderedSet()
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls.add(line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read URL list: %w", err)
	}
	return urls.items, nil
}

// ListFile reads URLs from a local file instead of a sitemap.
type ListFile struct{}

// FetchAll reads the URL list at path.
func (ListFile) FetchAll(_ context.Context, path string) ([]string, error) {
	f, err := os.Open(path) //nolint:gosec // path comes from the command line
	if err != nil {
		return nil, fmt.Errorf("failed to open URL list: %w", err)
	}
	defer f.Close()
	return ReadURLList(f)
}

var (
	_ Source = (*Fetcher)(nil)
	_ Source = ListFile{}
)
