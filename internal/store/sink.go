package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// DirSink writes each chunk to <dir>/<table>-<n>.json, numbering chunks
// per table from zero.
type DirSink struct {
	dir string

	mu   sync.Mutex
	next map[string]int
}

// NewDirSink creates dir if needed.
func NewDirSink(dir string) (*DirSink, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}
	return &DirSink{dir: dir, next: make(map[string]int)}, nil
}

// BulkInsert writes chunk to the next file of table.
func (s *DirSink) BulkInsert(ctx context.Context, table string, chunk []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	n := s.next[table]
	s.next[table] = n + 1
	s.mu.Unlock()

	path := filepath.Join(s.dir, fmt.Sprintf("%s-%d.json", table, n))
	if err := os.WriteFile(path, chunk, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// MemorySink keeps chunks in memory.
type MemorySink struct {
	mu     sync.Mutex
	chunks map[string][][]byte
}

// NewMemorySink creates an empty sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{chunks: make(map[string][][]byte)}
}

// BulkInsert stores chunk.
func (s *MemorySink) BulkInsert(_ context.Context, table string, chunk []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks[table] = append(s.chunks[table], chunk)
	return nil
}

// Chunks returns the chunks received for table.
func (s *MemorySink) Chunks(table string) [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]byte(nil), s.chunks[table]...)
}
