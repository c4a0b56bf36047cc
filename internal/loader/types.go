// Package loader bulk loads flat files into PostgreSQL tables.
// It has no HTTP dependencies and can be driven by any frontend.
package loader

import (
	"context"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is the interface for database operations.
// Satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Pool is a DBTX that can start transactions. Satisfied by *pgxpool.Pool.
type Pool interface {
	DBTX
	Begin(context.Context) (pgx.Tx, error)
}

// ColumnType is the conversion applied to a column before loading.
type ColumnType int

const (
	TypeText ColumnType = iota
	TypeInteger
	TypeNumeric
	TypeDate
	TypeBool
	TypeTimestamp
	TypeTimestampTZ
)

func (t ColumnType) String() string {
	switch t {
	case TypeInteger:
		return "integer"
	case TypeNumeric:
		return "numeric"
	case TypeDate:
		return "date"
	case TypeBool:
		return "bool"
	case TypeTimestamp:
		return "timestamp"
	case TypeTimestampTZ:
		return "timestamptz"
	default:
		return "text"
	}
}

// ColumnTypeFor maps an information_schema data_type to a ColumnType.
// Anything unrecognised is loaded as text and left to PostgreSQL to cast.
func ColumnTypeFor(dataType string) ColumnType {
	switch strings.ToLower(dataType) {
	case "smallint", "integer", "bigint":
		return TypeInteger
	case "numeric", "decimal", "real", "double precision", "money":
		return TypeNumeric
	case "date":
		return TypeDate
	case "boolean":
		return TypeBool
	case "timestamp without time zone":
		return TypeTimestamp
	case "timestamp with time zone":
		return TypeTimestampTZ
	default:
		return TypeText
	}
}

// TargetColumn describes one column of the destination table.
type TargetColumn struct {
	Name      string     `json:"name"`
	Type      ColumnType `json:"-"`
	DataType  string     `json:"dataType"`
	MaxLength int        `json:"maxLength,omitempty"` // 0 if unbounded
	Nullable  bool       `json:"nullable"`
	Default   bool       `json:"hasDefault"`
}

// Required reports whether a load must supply the column.
func (c TargetColumn) Required() bool { return !c.Nullable && !c.Default }

// Table is a destination table as described by the database.
type Table struct {
	Schema  string         `json:"schema"`
	Name    string         `json:"name"`
	Columns []TargetColumn `json:"columns"`
}

// Identifier returns the quoted table name for COPY.
func (t Table) Identifier() pgx.Identifier {
	return pgx.Identifier{t.Schema, t.Name}
}

// Column returns the index of the named column, ignoring case.
func (t Table) Column(name string) (int, bool) {
	for i, c := range t.Columns {
		if strings.EqualFold(c.Name, name) {
			return i, true
		}
	}
	return -1, false
}

// DropColumn marks a file column that is not loaded.
const DropColumn = "-"

// LoadRequest describes one file load.
type LoadRequest struct {
	Table    string // destination table
	Schema   string // destination schema, "public" if empty
	FileName string // used for compression detection and reporting
	Size     int64  // upload size in bytes, 0 if unknown
	Format   Format

	// Columns names the destination column of each file column in file
	// order; DropColumn skips a file column. Nil loads every table column
	// in table order.
	Columns []string

	// Widths are the fixed-width column widths, one per file column.
	Widths []int

	HeaderRows  int  // rows skipped before loading
	Lenient     bool // tolerate wrong column counts
	MaxRejected int  // rejected rows tolerated before the load fails; negative means unlimited

	// MatchHeader maps file columns by the names in the last header row
	// instead of Columns. Names the table lacks are dropped.
	MatchHeader bool

	// Replace empties the table inside the load transaction, so a failed
	// load keeps the old rows.
	Replace bool
}

// LoadPhase indicates the current stage of a load.
type LoadPhase string

const (
	PhaseStarting  LoadPhase = "starting"
	PhaseLoading   LoadPhase = "loading"
	PhaseComplete  LoadPhase = "complete"
	PhaseFailed    LoadPhase = "failed"
	PhaseCancelled LoadPhase = "cancelled"
)

// Done reports whether the phase is final.
func (p LoadPhase) Done() bool {
	return p == PhaseComplete || p == PhaseFailed || p == PhaseCancelled
}

// LoadProgress represents the current state of a load.
type LoadProgress struct {
	LoadID     string    `json:"loadId"`
	Table      string    `json:"table"`
	FileName   string    `json:"fileName"`
	Phase      LoadPhase `json:"phase"`
	RowsRead   int       `json:"rowsRead"`
	Loaded     int       `json:"loaded"`
	Rejected   int       `json:"rejected"`
	BytesRead  int64     `json:"bytesRead"`
	BytesTotal int64     `json:"bytesTotal"`
	Error      string    `json:"error,omitempty"` // non-empty if Phase is PhaseFailed
}

// Percent returns byte-based progress as a percentage (0-100).
func (p LoadProgress) Percent() int {
	if p.Phase == PhaseComplete {
		return 100
	}
	if p.BytesTotal <= 0 {
		return 0
	}
	pct := int(p.BytesRead * 100 / p.BytesTotal)
	if pct > 100 {
		pct = 100
	}
	return pct
}

// RejectedRow is a row that was not loaded.
type RejectedRow struct {
	Row    int      `json:"row"`    // 1-based ordinal in the file, header rows included
	Offset int64    `json:"offset"` // byte offset of the row in the decompressed file
	Reason string   `json:"reason"`
	Data   []string `json:"data,omitempty"`
}

// LoadResult contains the final result of a load.
type LoadResult struct {
	LoadID       string        `json:"loadId"`
	Table        string        `json:"table"`
	FileName     string        `json:"fileName"`
	Phase        LoadPhase     `json:"phase"`
	RowsRead     int           `json:"rowsRead"`
	Loaded       int           `json:"loaded"`
	Rejected     int           `json:"rejected"`
	RejectedRows []RejectedRow `json:"rejectedRows,omitempty"`
	Duration     time.Duration `json:"duration"`
	Error        string        `json:"error,omitempty"` // non-empty if the load failed
}
