package loader

import (
	"errors"
	"fmt"
	"strings"

	"github.com/JonMunkholm/flatload/internal/flatfile"
)

var (
	ErrUnknownColumn   = errors.New("unknown column")
	ErrDuplicateColumn = errors.New("column mapped more than once")
	ErrNoTargetColumns = errors.New("no columns to load")
	ErrWidths          = errors.New("invalid column widths")
)

// Plan is a resolved load: which file columns go to which table columns and
// how the file is scanned.
type Plan struct {
	Table Table

	// Columns are the loaded table columns in result slot order.
	Columns []TargetColumn

	Parser *flatfile.Parser
	Schema *flatfile.Schema
	Trim   bool
}

// ColumnNames returns the loaded column names in COPY order.
func (p *Plan) ColumnNames() []string {
	names := make([]string, len(p.Columns))
	for i, c := range p.Columns {
		names[i] = c.Name
	}
	return names
}

// NewPlan maps the request's file columns onto table and builds the
// scanner for them.
func NewPlan(table Table, req LoadRequest) (*Plan, error) {
	parser, err := req.Format.Parser()
	if err != nil {
		return nil, err
	}

	fileColumns := req.Columns
	if fileColumns == nil {
		fileColumns = make([]string, len(table.Columns))
		for i, c := range table.Columns {
			fileColumns[i] = c.Name
		}
	}
	if len(fileColumns) == 0 {
		return nil, ErrNoTargetColumns
	}

	plan := &Plan{
		Table:  table,
		Parser: parser,
		Trim:   req.Format.TrimLeadingSpace,
	}

	targets := make([]int, len(fileColumns))
	maxLengths := make([]int, len(fileColumns))
	seen := make(map[int]bool, len(fileColumns))
	for i, name := range fileColumns {
		name = strings.TrimSpace(name)
		if name == DropColumn || name == "" {
			targets[i] = flatfile.Drop
			continue
		}
		idx, ok := table.Column(name)
		if !ok {
			return nil, fmt.Errorf("%w: %q in %s.%s", ErrUnknownColumn, name, table.Schema, table.Name)
		}
		if seen[idx] {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateColumn, name)
		}
		seen[idx] = true
		targets[i] = len(plan.Columns)
		maxLengths[i] = table.Columns[idx].MaxLength
		plan.Columns = append(plan.Columns, table.Columns[idx])
	}
	if len(plan.Columns) == 0 {
		return nil, ErrNoTargetColumns
	}

	var columns []flatfile.Column
	switch {
	case req.Format.Fixed():
		if len(req.Widths) != len(fileColumns) {
			return nil, fmt.Errorf("%w: %d widths for %d columns", ErrWidths, len(req.Widths), len(fileColumns))
		}
		for i, w := range req.Widths {
			if w <= 0 {
				return nil, fmt.Errorf("%w: column %d has width %d", ErrWidths, i+1, w)
			}
		}
		columns = flatfile.FixedWidths(req.Widths...)
	case len(req.Widths) > 0:
		return nil, fmt.Errorf("%w: widths only apply to fixed-width formats", ErrWidths)
	default:
		columns = make([]flatfile.Column, len(fileColumns))
		for i, n := range maxLengths {
			columns[i].MaxLength = n
		}
	}

	schema, err := flatfile.NewSchema(columns, flatfile.SchemaOptions{
		Lenient:       req.Lenient,
		Targets:       targets,
		ResultColumns: len(plan.Columns),
	})
	if err != nil {
		return nil, fmt.Errorf("build schema: %w", err)
	}
	plan.Schema = schema
	return plan, nil
}
