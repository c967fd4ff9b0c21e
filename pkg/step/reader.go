package step

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/Faultbox/ifckit/pkg/encoding"
)

// DefaultChunkSize is the number of bytes read per chunk.
const DefaultChunkSize = 64 * 1024

// RecordReader reads a STEP stream in fixed-size chunks and yields
// complete data records ("#12=IFCWALL(...)", without the trailing ';').
//
// Each chunk is decoded from Latin-1 and split on line terminators. The
// partial last line of a chunk is carried into the next one, so a line is
// never processed while it still spans a chunk boundary. Records that
// continue over several lines are joined, and several records on one line
// are split, by tracking quoted strings across lines.
type RecordReader struct {
	ctx   context.Context
	r     io.Reader
	buf   []byte
	carry string
	eof   bool

	lines   []string
	ready   []string
	current strings.Builder
	inStr   bool
	comment bool

	chunks int
	bytes  int64
}

// NewRecordReader creates a reader over r. chunkSize <= 0 selects
// DefaultChunkSize.
func NewRecordReader(ctx context.Context, r io.Reader, chunkSize int) *RecordReader {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return &RecordReader{
		ctx: ctx,
		r:   r,
		buf: make([]byte, chunkSize),
	}
}

// Chunks returns the number of chunks read so far.
func (rr *RecordReader) Chunks() int { return rr.chunks }

// BytesRead returns the number of raw bytes consumed so far.
func (rr *RecordReader) BytesRead() int64 { return rr.bytes }

// Next returns the next data record. It returns io.EOF after the last
// record. Any other error is a resource failure wrapped in ErrRead, or the
// context error if the read was cancelled between chunks.
func (rr *RecordReader) Next() (string, error) {
	for len(rr.ready) == 0 {
		if len(rr.lines) > 0 {
			line := rr.lines[0]
			rr.lines = rr.lines[1:]
			rr.feed(line)
			continue
		}
		if rr.eof {
			rr.flush()
			if len(rr.ready) == 0 {
				return "", io.EOF
			}
			break
		}
		if err := rr.readChunk(); err != nil {
			return "", err
		}
	}

	rec := rr.ready[0]
	rr.ready = rr.ready[1:]
	return rec, nil
}

func (rr *RecordReader) readChunk() error {
	if err := rr.ctx.Err(); err != nil {
		return err
	}

	n, err := io.ReadFull(rr.r, rr.buf)
	switch {
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		rr.eof = true
	case err != nil:
		return fmt.Errorf("%w: chunk %d: %w", ErrRead, rr.chunks, err)
	}
	rr.chunks++
	rr.bytes += int64(n)

	text := rr.carry + encoding.Latin1ToUTF8(rr.buf[:n])
	lines := strings.Split(text, "\n")
	if rr.eof {
		rr.carry = ""
	} else {
		rr.carry = lines[len(lines)-1]
		lines = lines[:len(lines)-1]
	}
	rr.lines = append(rr.lines, lines...)
	return nil
}

// feed consumes one physical line.
func (rr *RecordReader) feed(line string) {
	line = strings.TrimRight(line, "\r")
	for i := 0; i < len(line); i++ {
		c := line[i]

		if rr.comment {
			if c == '*' && i+1 < len(line) && line[i+1] == '/' {
				rr.comment = false
				i++
			}
			continue
		}

		if rr.inStr {
			rr.current.WriteByte(c)
			if c == '\'' {
				// A doubled quote stays inside the string.
				if i+1 < len(line) && line[i+1] == '\'' {
					rr.current.WriteByte('\'')
					i++
					continue
				}
				rr.inStr = false
			}
			continue
		}

		switch c {
		case '\'':
			rr.inStr = true
			rr.current.WriteByte(c)
		case '/':
			if i+1 < len(line) && line[i+1] == '*' {
				rr.comment = true
				i++
				continue
			}
			rr.current.WriteByte(c)
		case ';':
			rr.emit()
		default:
			rr.current.WriteByte(c)
		}
	}
}

// flush emits whatever is buffered when the stream ends without a final
// terminator.
func (rr *RecordReader) flush() {
	if rr.current.Len() > 0 {
		rr.emit()
	}
}

func (rr *RecordReader) emit() {
	rec := strings.TrimSpace(rr.current.String())
	rr.current.Reset()
	rr.inStr = false
	if strings.HasPrefix(rec, "#") {
		rr.ready = append(rr.ready, rec)
	}
}
