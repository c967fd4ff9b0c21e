package geometry

import (
	"context"
	"fmt"
	"io"
	"os"

	json "github.com/goccy/go-json"
)

// Source streams per-entity geometry in discovery order.
type Source interface {
	Stream(ctx context.Context, fn func(FlatMesh) error) error
}

// SliceSource is an in-memory Source.
type SliceSource []FlatMesh

// Stream calls fn for every mesh in order.
func (s SliceSource) Stream(ctx context.Context, fn func(FlatMesh) error) error {
	for _, m := range s {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(m); err != nil {
			return err
		}
	}
	return nil
}

// JSONSource decodes a JSON array of FlatMesh objects one element at a
// time, so the whole dump is never held in memory.
type JSONSource struct {
	r    io.Reader
	path string
}

// NewJSONSource reads meshes from r. The reader is consumed by Stream.
func NewJSONSource(r io.Reader) *JSONSource {
	return &JSONSource{r: r}
}

// JSONFile reads meshes from a file opened on every Stream call.
func JSONFile(path string) *JSONSource {
	return &JSONSource{path: path}
}

// Stream decodes the array and calls fn per element.
func (s *JSONSource) Stream(ctx context.Context, fn func(FlatMesh) error) error {
	r := s.r
	if s.path != "" {
		f, err := os.Open(s.path)
		if err != nil {
			return fmt.Errorf("opening geometry %s: %w", s.path, err)
		}
		defer f.Close()
		r = f
	}
	if r == nil {
		return fmt.Errorf("geometry source has no input")
	}

	dec := json.NewDecoder(r)
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("reading geometry array: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '[' {
		return fmt.Errorf("geometry dump must be a JSON array, got %v", tok)
	}

	for n := 0; dec.More(); n++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		var m FlatMesh
		if err := dec.Decode(&m); err != nil {
			return fmt.Errorf("decoding mesh %d: %w", n, err)
		}
		if err := fn(m); err != nil {
			return err
		}
	}
	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("closing geometry array: %w", err)
	}
	return nil
}

// WriteJSON writes meshes in the format JSONSource reads.
func WriteJSON(w io.Writer, meshes []FlatMesh) error {
	enc := json.NewEncoder(w)
	return enc.Encode(meshes)
}
