package step

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
)

func readAll(t *testing.T, src string, chunk int) []string {
	t.Helper()
	rr := NewRecordReader(context.Background(), strings.NewReader(src), chunk)
	var out []string
	for {
		rec, err := rr.Next()
		if errors.Is(err, io.EOF) {
			return out
		}
		if err != nil {
			t.Fatalf("Next() error: %v", err)
		}
		out = append(out, rec)
	}
}

func TestRecordReaderChunkBoundaries(t *testing.T) {
	src := "ISO-10303-21;\nHEADER;\nFILE_SCHEMA(('IFC4'));\nENDSEC;\nDATA;\n" +
		"#1=IFCPROJECT('a',$,'P;roject',$,$,$,$,$,$);\r\n" +
		"#2=IFCWALL('b',$,\n  'Multi',$,$,$,$,$,$);\n" +
		"#3=IFCWALL('c',$,'It''s',$,$,$,$,$,$);#4=IFCSLAB('d');\n" +
		"/* comment; with semicolon */\n" +
		"ENDSEC;\nEND-ISO-10303-21;\n"

	want := []string{
		"#1=IFCPROJECT('a',$,'P;roject',$,$,$,$,$,$)",
		"#2=IFCWALL('b',$,  'Multi',$,$,$,$,$,$)",
		"#3=IFCWALL('c',$,'It''s',$,$,$,$,$,$)",
		"#4=IFCSLAB('d')",
	}

	// Every chunk size must yield the same records.
	for _, chunk := range []int{1, 3, 7, 16, 64, 4096} {
		got := readAll(t, src, chunk)
		if len(got) != len(want) {
			t.Fatalf("chunk %d: got %d records %q, want %d", chunk, len(got), got, len(want))
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("chunk %d record %d = %q, want %q", chunk, i, got[i], want[i])
			}
		}
	}
}

func TestRecordReaderMissingFinalTerminator(t *testing.T) {
	got := readAll(t, "#1=IFCWALL('a')", 4)
	if len(got) != 1 || got[0] != "#1=IFCWALL('a')" {
		t.Errorf("got %q", got)
	}
}

func TestRecordReaderLatin1(t *testing.T) {
	src := string([]byte{'#', '1', '=', 'X', '(', '\'', 0xE9, '\'', ')', ';'})
	got := readAll(t, src, 2)
	if len(got) != 1 || got[0] != "#1=X('é')" {
		t.Errorf("got %q, want Latin-1 decoded record", got)
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("disk gone") }

func TestRecordReaderResourceFailure(t *testing.T) {
	rr := NewRecordReader(context.Background(), failingReader{}, 8)
	_, err := rr.Next()
	if !errors.Is(err, ErrRead) {
		t.Errorf("Next() error = %v, want ErrRead", err)
	}
}

func TestRecordReaderCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rr := NewRecordReader(ctx, strings.NewReader("#1=X();"), 8)
	if _, err := rr.Next(); !errors.Is(err, context.Canceled) {
		t.Errorf("Next() error = %v, want context.Canceled", err)
	}
}
