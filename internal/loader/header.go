package loader

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/JonMunkholm/flatload/internal/flatfile"
	"github.com/JonMunkholm/flatload/internal/ingest"
)

var (
	ErrHeaderMatch    = errors.New("header matching not possible")
	ErrMissingColumns = errors.New("required columns missing from header")
)

// checkHeaderMatch rejects requests that cannot be mapped by header names.
func checkHeaderMatch(req LoadRequest) error {
	if !req.MatchHeader {
		return nil
	}
	switch {
	case req.Format.Fixed():
		return fmt.Errorf("%w: fixed-width files have no column names", ErrHeaderMatch)
	case req.Columns != nil:
		return fmt.Errorf("%w: columns were also given", ErrHeaderMatch)
	}
	return nil
}

// MatchHeader maps header names onto table columns, ignoring case and
// surrounding space. Names the table lacks map to DropColumn. Every
// required column must be named.
func MatchHeader(table Table, names []string) ([]string, error) {
	columns := make([]string, len(names))
	named := make(map[int]bool, len(names))
	for i, name := range names {
		idx, ok := table.Column(strings.TrimSpace(name))
		if !ok {
			columns[i] = DropColumn
			continue
		}
		columns[i] = table.Columns[idx].Name
		named[idx] = true
	}

	var missing []string
	for i, c := range table.Columns {
		if c.Required() && !named[i] {
			missing = append(missing, c.Name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumns, strings.Join(missing, ", "))
	}
	return columns, nil
}

// readHeader reads rows up to and including the last header row and maps
// its names onto the table. The returned plan scans the data rows.
func readHeader(reader *ingest.Reader, plan *Plan, req LoadRequest) (*Plan, error) {
	schema, err := flatfile.NewSchema(flatfile.Columns(PreviewMaxColumns, 0), flatfile.SchemaOptions{Unbounded: true})
	if err != nil {
		return nil, fmt.Errorf("build header schema: %w", err)
	}
	reader.SetSchema(schema)

	last := max(req.HeaderRows, 1)
	var row flatfile.RowResult
	for reader.Row() < last {
		err := reader.Next(&row)
		if err == io.EOF {
			return nil, fmt.Errorf("%w: file has no header row", ErrHeaderMatch)
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", reader.Row()+1, err)
		}
	}
	if row.Status != flatfile.StatusOK {
		return nil, fmt.Errorf("%w: header row: %v", ErrHeaderMatch, row.Status.Err())
	}
	plan.Parser.StripQuoting(&row, plan.Trim)

	req.Columns, err = MatchHeader(plan.Table, row.Strings())
	if err != nil {
		return nil, err
	}
	matched, err := NewPlan(plan.Table, req)
	if err != nil {
		return nil, err
	}
	reader.SetSchema(matched.Schema)
	return matched, nil
}
