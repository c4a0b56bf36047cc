package flatfile

import (
	"errors"
	"fmt"
)

// Drop is the target of a file column that is scanned but not stored.
const Drop = -1

var (
	ErrNoColumns       = errors.New("schema needs at least one column")
	ErrUnboundedOption = errors.New("lenient and mapped options need a bounded schema")
	ErrInvalidTarget   = errors.New("invalid column target")
)

// Column describes one column of the file.
type Column struct {
	// MaxLength is the width of a fixed-width column. Delimited columns
	// treat it as advisory.
	MaxLength int
}

// Columns returns n columns sharing the same maximum length.
func Columns(n, maxLength int) []Column {
	cols := make([]Column, n)
	for i := range cols {
		cols[i].MaxLength = maxLength
	}
	return cols
}

// FixedWidths returns one column per width.
func FixedWidths(widths ...int) []Column {
	cols := make([]Column, len(widths))
	for i, w := range widths {
		cols[i].MaxLength = w
	}
	return cols
}

// SchemaOptions are the schema-wide flags.
type SchemaOptions struct {
	// Unbounded rows have no fixed column count; scanned columns are
	// appended to the result. Lenient and Targets do not apply.
	Unbounded bool

	// Lenient tolerates rows with too few or too many columns.
	Lenient bool

	// Targets routes file column i to result slot Targets[i], or drops it
	// when the target is Drop. Nil keeps columns in file order.
	Targets []int

	// ResultColumns is the slot count under a mapping. Zero means one past
	// the highest target.
	ResultColumns int
}

// Schema is an immutable, ordered column layout for ScanRow.
type Schema struct {
	columns       []Column
	bounded       bool
	lenient       bool
	targets       []int
	resultColumns int
}

// NewSchema validates the layout and options.
func NewSchema(columns []Column, opts SchemaOptions) (*Schema, error) {
	if len(columns) == 0 {
		return nil, ErrNoColumns
	}
	for i, c := range columns {
		if c.MaxLength < 0 {
			return nil, fmt.Errorf("column %d: negative max length %d", i, c.MaxLength)
		}
	}

	s := &Schema{
		columns:       append([]Column(nil), columns...),
		bounded:       !opts.Unbounded,
		lenient:       opts.Lenient,
		resultColumns: len(columns),
	}

	if opts.Unbounded {
		if opts.Lenient || opts.Targets != nil {
			return nil, ErrUnboundedOption
		}
		return s, nil
	}

	if opts.Targets == nil {
		return s, nil
	}

	if len(opts.Targets) != len(columns) {
		return nil, fmt.Errorf("%w: %d targets for %d columns", ErrInvalidTarget, len(opts.Targets), len(columns))
	}
	highest := Drop
	for _, t := range opts.Targets {
		if t > highest {
			highest = t
		}
	}
	slots := opts.ResultColumns
	if slots == 0 {
		slots = highest + 1
	}
	if slots <= 0 {
		return nil, fmt.Errorf("%w: every column is dropped", ErrInvalidTarget)
	}
	for i, t := range opts.Targets {
		if t < Drop || t >= slots {
			return nil, fmt.Errorf("%w: column %d targets slot %d of %d", ErrInvalidTarget, i, t, slots)
		}
	}
	s.targets = append([]int(nil), opts.Targets...)
	s.resultColumns = slots
	return s, nil
}

// MustSchema is like NewSchema but panics on error.
func MustSchema(columns []Column, opts SchemaOptions) *Schema {
	s, err := NewSchema(columns, opts)
	if err != nil {
		panic(fmt.Sprintf("flatfile: %v", err))
	}
	return s
}

// MaxColumns is the number of file columns scanned per row.
func (s *Schema) MaxColumns() int { return len(s.columns) }

// ResultColumns is the number of slots a bounded row result holds.
func (s *Schema) ResultColumns() int { return s.resultColumns }

// Bounded reports whether rows have a fixed column count.
func (s *Schema) Bounded() bool { return s.bounded }

// Lenient reports whether wrong column counts are tolerated.
func (s *Schema) Lenient() bool { return s.lenient }

// Mapped reports whether file columns are routed through targets.
func (s *Schema) Mapped() bool { return s.targets != nil }

// Strict schemas reject rows with the wrong number of columns.
func (s *Schema) Strict() bool { return s.bounded && !s.lenient }

// MaxLength returns the maximum length of file column i.
func (s *Schema) MaxLength(i int) int { return s.columns[i].MaxLength }

// Target returns the result slot of file column i, or Drop.
func (s *Schema) Target(i int) int {
	if s.targets == nil {
		return i
	}
	return s.targets[i]
}
