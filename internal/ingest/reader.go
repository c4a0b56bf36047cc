package ingest

// reader.go supplies flatfile.Parser with buffers that always hold a whole
// row. The window over the source is compacted to the current row start and
// doubled whenever a row is incomplete, up to MaxRowSize.
//
// Rows larger than MaxRowSize are returned once with StatusRowTooLarge; the
// rest of the row is then discarded up to the next row delimiter.

import (
	"errors"
	"io"

	"github.com/JonMunkholm/flatload/internal/flatfile"
	"github.com/spkg/bom"
)

const (
	// DefaultBufferSize is the initial window size.
	DefaultBufferSize = 64 * 1024

	// DefaultMaxRowSize bounds a single row, delimiters included.
	DefaultMaxRowSize = 1024 * 1024

	bomLen = 3
)

// Options configure a Reader.
type Options struct {
	BufferSize int
	MaxRowSize int
}

func (o Options) withDefaults() Options {
	if o.MaxRowSize <= 0 {
		o.MaxRowSize = DefaultMaxRowSize
	}
	if o.BufferSize <= 0 {
		o.BufferSize = DefaultBufferSize
	}
	if o.BufferSize > o.MaxRowSize {
		o.BufferSize = o.MaxRowSize
	}
	return o
}

// Reader scans rows from an io.Reader.
//
// The RowResult filled by Next points into the Reader's window and is only
// valid until the following call to Next.
type Reader struct {
	src    io.Reader
	parser *flatfile.Parser
	schema *flatfile.Schema
	opts   Options

	buf        []byte
	start, end int
	base       int64 // file offset of buf[0]

	eof        bool
	synthetic  bool // a row delimiter was appended at EOF
	bomChecked bool
	discarding bool // dropping the tail of an oversized row

	row       int
	rowOffset int64
}

// NewReader returns a Reader scanning src with parser and schema.
func NewReader(src io.Reader, parser *flatfile.Parser, schema *flatfile.Schema, opts Options) *Reader {
	opts = opts.withDefaults()
	return &Reader{
		src:    src,
		parser: parser,
		schema: schema,
		opts:   opts,
		buf:    make([]byte, opts.BufferSize),
	}
}

// SetSchema changes the schema used for rows not yet returned. A header
// row can be read with one schema and the data rows with another.
func (r *Reader) SetSchema(schema *flatfile.Schema) { r.schema = schema }

// Row returns the 1-based ordinal of the row returned by the last call to
// Next. Oversized and malformed rows are counted.
func (r *Reader) Row() int { return r.row }

// Offset returns the source offset of the row returned by the last call to
// Next.
func (r *Reader) Offset() int64 { return r.rowOffset }

// Next scans the next row into result. It returns io.EOF once the source is
// exhausted; malformed rows are not errors and are reported through
// result.Status.
func (r *Reader) Next(result *flatfile.RowResult) error {
	for {
		if r.discarding {
			if err := r.discard(); err != nil {
				return err
			}
			continue
		}

		if !r.bomChecked {
			if r.end-r.start < bomLen && !r.eof {
				if err := r.fill(); err != nil {
					return err
				}
				continue
			}
			r.skipBOM()
		}

		window := r.buf[r.start:r.end]
		if n := r.parser.SkipRowDelimiters(window); n > 0 {
			r.start += n
			continue
		}
		if len(window) == 0 {
			if r.eof {
				return io.EOF
			}
			if err := r.fill(); err != nil {
				return err
			}
			continue
		}

		r.parser.ScanRow(window, r.schema, result)
		if result.Status != flatfile.StatusIncompleteColumn && result.Terminated() {
			r.emit(result.Next)
			return nil
		}

		switch {
		case r.eof && !r.synthetic:
			r.appendRowDelimiter()
		case r.eof:
			// Still incomplete with a delimiter appended: an open quote ran
			// to the end of the input.
			r.emit(len(window))
			return nil
		case len(window) >= r.opts.MaxRowSize:
			result.MarkRowTooLarge()
			r.emit(len(window))
			r.discarding = true
			return nil
		default:
			if err := r.fill(); err != nil {
				return err
			}
		}
	}
}

// emit records the row starting at the window start and consumes n bytes.
func (r *Reader) emit(n int) {
	r.row++
	r.rowOffset = r.base + int64(r.start)
	r.start += n
}

// discard drops input up to the next row delimiter.
func (r *Reader) discard() error {
	if i := r.parser.IndexRowDelimiter(r.buf[r.start:r.end]); i >= 0 {
		r.start += i
		r.discarding = false
		return nil
	}
	r.start = r.end
	if r.eof {
		r.discarding = false
		return nil
	}
	return r.fill()
}

// fill compacts the window to the front of the buffer, grows the buffer if
// it is full, and reads once from the source.
func (r *Reader) fill() error {
	if r.start > 0 {
		n := copy(r.buf, r.buf[r.start:r.end])
		r.base += int64(r.start)
		r.start, r.end = 0, n
	}
	if r.end == len(r.buf) {
		size := 2 * len(r.buf)
		if size > r.opts.MaxRowSize {
			size = r.opts.MaxRowSize
		}
		if size <= len(r.buf) {
			return errors.New("ingest: read window cannot grow")
		}
		grown := make([]byte, size)
		copy(grown, r.buf[:r.end])
		r.buf = grown
	}

	n, err := r.src.Read(r.buf[r.end:])
	r.end += n
	switch {
	case err == io.EOF:
		r.eof = true
	case err != nil:
		return err
	}
	return nil
}

// skipBOM drops a UTF-8 byte order mark at the start of the source.
func (r *Reader) skipBOM() {
	r.bomChecked = true
	cleaned := bom.Clean(r.buf[r.start:r.end])
	r.start += (r.end - r.start) - len(cleaned)
}

// appendRowDelimiter completes a final row that lacks its delimiter.
func (r *Reader) appendRowDelimiter() {
	r.synthetic = true
	if r.end == len(r.buf) {
		r.buf = append(r.buf, 0)
	}
	r.buf[r.end] = r.parser.RowDelimiter()
	r.end++
}
