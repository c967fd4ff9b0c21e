// Package store writes extracted records as size-bounded JSON array chunks
// for bulk insertion into an external database.
package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/Faultbox/ifckit/internal/metrics"
)

// DefaultMaxChunkBytes is the default upper bound of one chunk.
const DefaultMaxChunkBytes = 30 << 20

// ErrRecordTooLarge is returned when one record cannot fit in a chunk.
var ErrRecordTooLarge = errors.New("record exceeds chunk size")

// Sink receives encoded chunks. A chunk is a JSON array of records of one
// table.
type Sink interface {
	BulkInsert(ctx context.Context, table string, chunk []byte) error
}

// Options configures a ChunkWriter.
type Options struct {
	// MaxChunkBytes bounds every chunk (DefaultMaxChunkBytes if <= 0).
	MaxChunkBytes int
	// Logger receives flush logs. Nil disables logging.
	Logger *zap.Logger
}

// TableStats counts what was written for one table.
type TableStats struct {
	Records int
	Chunks  int
	Bytes   int
}

type pending struct {
	buf     bytes.Buffer
	records int
}

// ChunkWriter buffers records per table and hands full chunks to a Sink.
// It is not safe for concurrent use.
type ChunkWriter struct {
	sink  Sink
	max   int
	log   *zap.Logger
	open  map[string]*pending
	stats map[string]*TableStats
}

// NewChunkWriter creates a writer in front of sink.
func NewChunkWriter(sink Sink, opts Options) *ChunkWriter {
	if opts.MaxChunkBytes <= 0 {
		opts.MaxChunkBytes = DefaultMaxChunkBytes
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &ChunkWriter{
		sink:  sink,
		max:   opts.MaxChunkBytes,
		log:   log.Named("store"),
		open:  make(map[string]*pending),
		stats: make(map[string]*TableStats),
	}
}

// Write appends one record to table, flushing the table's chunk first when
// the record would push it over the size bound.
func (w *ChunkWriter) Write(ctx context.Context, table string, record any) error {
	data, err := json.Marshal(Stringify(record))
	if err != nil {
		return fmt.Errorf("encoding %s record: %w", table, err)
	}
	// Brackets plus separator.
	if len(data)+2 > w.max {
		return fmt.Errorf("%w: %s record of %d bytes, limit %d", ErrRecordTooLarge, table, len(data), w.max)
	}

	p := w.open[table]
	if p == nil {
		p = &pending{}
		w.open[table] = p
	}
	if p.records > 0 && p.buf.Len()+1+len(data)+1 > w.max {
		if err := w.flush(ctx, table, p); err != nil {
			return err
		}
	}

	if p.records == 0 {
		p.buf.WriteByte('[')
	} else {
		p.buf.WriteByte(',')
	}
	p.buf.Write(data)
	p.records++
	return nil
}

// Flush writes every partially filled chunk, tables in name order.
func (w *ChunkWriter) Flush(ctx context.Context) error {
	tables := make([]string, 0, len(w.open))
	for t := range w.open {
		tables = append(tables, t)
	}
	sort.Strings(tables)
	for _, t := range tables {
		if p := w.open[t]; p.records > 0 {
			if err := w.flush(ctx, t, p); err != nil {
				return err
			}
		}
	}
	return nil
}

func (w *ChunkWriter) flush(ctx context.Context, table string, p *pending) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.buf.WriteByte(']')
	chunk := p.buf.Bytes()
	if err := w.sink.BulkInsert(ctx, table, chunk); err != nil {
		return fmt.Errorf("inserting %s chunk: %w", table, err)
	}

	st := w.stats[table]
	if st == nil {
		st = &TableStats{}
		w.stats[table] = st
	}
	st.Records += p.records
	st.Chunks++
	st.Bytes += len(chunk)
	metrics.RecordChunk(table, len(chunk))
	w.log.Debug("chunk written",
		zap.String("table", table),
		zap.Int("records", p.records),
		zap.Int("bytes", len(chunk)))

	// The sink may retain chunk, so start a fresh buffer.
	w.open[table] = &pending{}
	return nil
}

// Stats returns per-table counters for flushed chunks.
func (w *ChunkWriter) Stats() map[string]TableStats {
	out := make(map[string]TableStats, len(w.stats))
	for t, st := range w.stats {
		out[t] = *st
	}
	return out
}

// Stringify converts 64-bit integers to decimal strings, recursing into
// maps and slices, so consumers with float64 numbers keep full precision.
// Other values are returned unchanged.
func Stringify(v any) any {
	switch x := v.(type) {
	case int64:
		return strconv.FormatInt(x, 10)
	case uint64:
		return strconv.FormatUint(x, 10)
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, val := range x {
			out[k] = Stringify(val)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, val := range x {
			out[i] = Stringify(val)
		}
		return out
	default:
		return v
	}
}
