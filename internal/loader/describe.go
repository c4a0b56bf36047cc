package loader

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgtype"
)

// DefaultSchema is the schema used when a request names none.
const DefaultSchema = "public"

// ErrUnknownTable is returned when the destination table does not exist or
// has no columns visible to the current role.
var ErrUnknownTable = errors.New("unknown table")

const describeTableSQL = `
	SELECT column_name, data_type, character_maximum_length, is_nullable = 'YES',
	       column_default IS NOT NULL OR is_identity = 'YES'
	FROM information_schema.columns
	WHERE table_schema = $1 AND table_name = $2
	ORDER BY ordinal_position`

// DescribeTable reads the column layout of schema.name.
func DescribeTable(ctx context.Context, db DBTX, schema, name string) (Table, error) {
	if schema == "" {
		schema = DefaultSchema
	}

	rows, err := db.Query(ctx, describeTableSQL, schema, name)
	if err != nil {
		return Table{}, fmt.Errorf("describe table %s.%s: %w", schema, name, err)
	}
	defer rows.Close()

	table := Table{Schema: schema, Name: name}
	for rows.Next() {
		var (
			col       TargetColumn
			maxLength pgtype.Int4
		)
		if err := rows.Scan(&col.Name, &col.DataType, &maxLength, &col.Nullable, &col.Default); err != nil {
			return Table{}, fmt.Errorf("scan column row: %w", err)
		}
		col.Type = ColumnTypeFor(col.DataType)
		if maxLength.Valid {
			col.MaxLength = int(maxLength.Int32)
		}
		table.Columns = append(table.Columns, col)
	}
	if err := rows.Err(); err != nil {
		return Table{}, fmt.Errorf("rows error: %w", err)
	}

	if len(table.Columns) == 0 {
		return Table{}, fmt.Errorf("%w: %s.%s", ErrUnknownTable, schema, name)
	}
	return table, nil
}
