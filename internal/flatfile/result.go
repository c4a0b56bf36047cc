package flatfile

import (
	"errors"
	"fmt"

	crdberrors "github.com/cockroachdb/errors"
)

// Delimiter classifies how a column scan ended.
type Delimiter uint8

const (
	// NoDelimiter: the buffer ended first. The row must be rescanned from
	// its start with more data.
	NoDelimiter Delimiter = iota
	FieldDelimiter
	RowDelimiter
	// MaxLength: a fixed-width column reached its width.
	MaxLength
)

func (d Delimiter) String() string {
	switch d {
	case NoDelimiter:
		return "no-delimiter"
	case FieldDelimiter:
		return "field-delimiter"
	case RowDelimiter:
		return "row-delimiter"
	case MaxLength:
		return "max-length"
	default:
		return fmt.Sprintf("Delimiter(%d)", uint8(d))
	}
}

// ColumnResult is the outcome of scanning one column.
type ColumnResult struct {
	Type Delimiter
	// Size is the column length, excluding the terminating delimiter.
	Size int
	// Next is where scanning resumes, past a consumed field or row
	// delimiter.
	Next int
}

func (r *ColumnResult) set(t Delimiter, start, size int) {
	r.Type = t
	r.Size = size
	r.Next = start + size
	switch t {
	case NoDelimiter, MaxLength:
	case FieldDelimiter, RowDelimiter:
		r.Next++
	default:
		panic(crdberrors.AssertionFailedf("flatfile: unknown column delimiter %d", uint8(t)))
	}
}

// Status is the structural verdict on a scanned row.
type Status uint8

const (
	StatusOK Status = iota
	// StatusIncompleteColumn: the buffer ended mid-column or before the row
	// delimiter. Retry with a buffer holding the whole row.
	StatusIncompleteColumn
	// StatusNoColumnDelimiter: strict schema, the first column ran into the
	// row delimiter.
	StatusNoColumnDelimiter
	StatusTooFewColumns
	StatusTooManyColumns
	// StatusRowTooLarge is never set by the scanner. The buffer supplier
	// marks a row with it when the row outgrows its size limit.
	StatusRowTooLarge
)

// Sentinels for Status.Err.
var (
	ErrIncompleteColumn  = errors.New("incomplete column")
	ErrNoColumnDelimiter = errors.New("row has no column delimiter")
	ErrTooFewColumns     = errors.New("too few columns")
	ErrTooManyColumns    = errors.New("too many columns")
	ErrRowTooLarge       = errors.New("row too large")
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusIncompleteColumn:
		return "incomplete-column"
	case StatusNoColumnDelimiter:
		return "no-column-delimiter"
	case StatusTooFewColumns:
		return "too-few-columns"
	case StatusTooManyColumns:
		return "too-many-columns"
	case StatusRowTooLarge:
		return "row-too-large"
	default:
		return fmt.Sprintf("Status(%d)", uint8(s))
	}
}

// Err returns the sentinel error for s, or nil for StatusOK.
func (s Status) Err() error {
	switch s {
	case StatusOK:
		return nil
	case StatusIncompleteColumn:
		return ErrIncompleteColumn
	case StatusNoColumnDelimiter:
		return ErrNoColumnDelimiter
	case StatusTooFewColumns:
		return ErrTooFewColumns
	case StatusTooManyColumns:
		return ErrTooManyColumns
	case StatusRowTooLarge:
		return ErrRowTooLarge
	default:
		return fmt.Errorf("unknown row status %d", uint8(s))
	}
}

// RowError attaches a row ordinal to a malformed-row status.
type RowError struct {
	Row    int
	Status Status
}

func (e *RowError) Error() string {
	return fmt.Sprintf("row %d: %v", e.Row, e.Status.Err())
}

// Unwrap returns the status sentinel for use with errors.Is.
func (e *RowError) Unwrap() error {
	return e.Status.Err()
}

type span struct {
	offset int
	size   int
	valid  bool
}

// RowResult holds the columns of one scanned row as offsets into the
// scanned buffer. It is only valid while that buffer is alive and
// unmodified, except by StripQuoting. A RowResult is not safe for
// concurrent use.
type RowResult struct {
	Status Status

	// Current is the row start and Next the position just past its
	// delimiter run, both relative to the scanned buffer.
	Current int
	Next    int

	// RowDelimiters counts row boundaries consumed by the scan.
	RowDelimiters int

	buf      []byte
	columns  []span
	stripped []int
}

// Reset clears the result for the next scan.
func (r *RowResult) Reset() {
	r.Status = StatusOK
	r.Current = 0
	r.Next = 0
	r.RowDelimiters = 0
	r.buf = nil
	r.columns = r.columns[:0]
	r.stripped = r.stripped[:0]
}

// prepare resets r for a scan of buf with n null slots.
func (r *RowResult) prepare(buf []byte, n int) {
	r.Reset()
	r.buf = buf
	if cap(r.columns) < n {
		r.columns = make([]span, n)
	}
	r.columns = r.columns[:n]
	for i := range r.columns {
		r.columns[i] = span{}
	}
}

func (r *RowResult) setColumn(i, offset, size int) {
	r.columns[i] = span{offset: offset, size: size, valid: true}
}

func (r *RowResult) addColumn(offset, size int) {
	r.columns = append(r.columns, span{offset: offset, size: size, valid: true})
}

// MarkRowTooLarge flags the row as exceeding the caller's size limit.
func (r *RowResult) MarkRowTooLarge() {
	r.Status = StatusRowTooLarge
}

// Terminated reports whether the scan consumed the row's delimiter. A row
// cut off by the end of the buffer is not terminated even when its status
// is otherwise final, for example the tail after a too-many-columns
// verdict.
func (r *RowResult) Terminated() bool {
	return r.RowDelimiters > 0
}

// Len returns the number of result slots.
func (r *RowResult) Len() int { return len(r.columns) }

// Buffer returns the buffer the row was scanned from.
func (r *RowResult) Buffer() []byte { return r.buf }

// IsNull reports whether slot i was never filled.
func (r *RowResult) IsNull(i int) bool { return !r.columns[i].valid }

// Offset returns the start of slot i in the scanned buffer.
func (r *RowResult) Offset(i int) int { return r.columns[i].offset }

// RawSize returns the scanned length of slot i, before normalization.
func (r *RowResult) RawSize(i int) int { return r.columns[i].size }

// Raw returns the scanned bytes of slot i, or nil when the slot is null.
// After StripQuoting the bytes beyond StrippedSize are leftovers.
func (r *RowResult) Raw(i int) []byte {
	c := r.columns[i]
	if !c.valid {
		return nil
	}
	return r.buf[c.offset : c.offset+c.size : c.offset+c.size]
}

// Stripped reports whether StripQuoting has run on this result.
func (r *RowResult) Stripped() bool {
	return len(r.stripped) == len(r.columns) && len(r.columns) > 0
}

// StrippedSize returns the length of slot i after normalization.
func (r *RowResult) StrippedSize(i int) int { return r.stripped[i] }

// Value returns slot i, normalized if StripQuoting has run. Null slots
// return nil; empty slots return an empty, non-nil slice.
func (r *RowResult) Value(i int) []byte {
	c := r.columns[i]
	if !c.valid {
		return nil
	}
	size := c.size
	if r.Stripped() {
		size = r.stripped[i]
	}
	return r.buf[c.offset : c.offset+size : c.offset+size]
}

// Strings copies every slot out of the buffer. Null slots become "".
func (r *RowResult) Strings() []string {
	out := make([]string, len(r.columns))
	for i := range r.columns {
		out[i] = string(r.Value(i))
	}
	return out
}
