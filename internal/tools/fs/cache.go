package fs

import (
	"os"
	"strings"
	"sync"
	"time"
)

// maxReadBytes refuses to read files larger than this in one call.
const maxReadBytes = 1 << 20 // 1MiB

type cacheEntry struct {
	modTime time.Time
	lines   []string
}

// Cache tracks the last-read snapshot of each path a read_file call has
// produced, so edit_file can refuse to touch a file it was never shown or
// that changed underneath it since. Shared by a ReadTool and EditTool pair
// within one scope.
type Cache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
}

// NewCache returns an empty read cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[string]cacheEntry)}
}

func (c *Cache) record(path string, modTime time.Time, lines []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[path] = cacheEntry{modTime: modTime, lines: lines}
}

func (c *Cache) lookup(path string) (cacheEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[path]
	return e, ok
}

func splitLines(content string) []string {
	if content == "" {
		return nil
	}
	lines := strings.Split(content, "\n")
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

func readAndStat(path string) (string, os.FileInfo, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", nil, err
	}
	if info.Size() > maxReadBytes {
		return "", info, errTooLarge
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", nil, err
	}
	return string(data), info, nil
}
