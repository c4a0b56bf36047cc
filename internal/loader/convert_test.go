package loader

import (
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

// ----------------------------------------------------------------------------
// Convert Tests
// ----------------------------------------------------------------------------

func TestConvert(t *testing.T) {
	textCol := TargetColumn{Name: "name", Type: TypeText, MaxLength: 5, Nullable: true}
	intCol := TargetColumn{Name: "qty", Type: TypeInteger, Nullable: true}
	requiredCol := TargetColumn{Name: "id", Type: TypeInteger}

	tests := []struct {
		name     string
		col      TargetColumn
		input    []byte
		wantNull bool
		wantErr  string
	}{
		{name: "text", col: textCol, input: []byte("apple")},
		{name: "text padded", col: textCol, input: []byte(" fig ")},
		{name: "text empty is not null", col: textCol, input: []byte("")},
		{name: "text empty required", col: TargetColumn{Name: "code", Type: TypeText}, input: []byte("")},
		{name: "text missing required", col: TargetColumn{Name: "code", Type: TypeText}, input: nil, wantErr: "required field code is empty"},
		{name: "text spaces count", col: textCol, input: []byte("  fig  "), wantErr: "value too long"},
		{name: "text counts runes", col: textCol, input: []byte("äöüéè")},
		{name: "text too long", col: textCol, input: []byte("banana"), wantErr: "value too long"},
		{name: "text invalid utf-8", col: textCol, input: []byte("a\xffb"), wantErr: "invalid encoding"},
		{name: "missing column is null", col: textCol, input: nil, wantNull: true},
		{name: "empty is null", col: intCol, input: []byte(""), wantNull: true},
		{name: "blank is null", col: intCol, input: []byte("   "), wantNull: true},
		{name: "empty required", col: requiredCol, input: []byte(""), wantErr: "required field id is empty"},
		{name: "missing required", col: requiredCol, input: nil, wantErr: "required field"},
		{name: "integer", col: intCol, input: []byte("1,234")},
		{name: "integer fraction", col: intCol, input: []byte("12.5"), wantErr: `invalid integer "12.5" for column qty`},
		{name: "number", col: TargetColumn{Name: "p", Type: TypeNumeric}, input: []byte("$1,234.50")},
		{name: "number invalid", col: TargetColumn{Name: "p", Type: TypeNumeric}, input: []byte("12abc"), wantErr: "invalid number"},
		{name: "date", col: TargetColumn{Name: "d", Type: TypeDate}, input: []byte("2024-01-15")},
		{name: "date invalid", col: TargetColumn{Name: "d", Type: TypeDate}, input: []byte("2024-13-45"), wantErr: "invalid date"},
		{name: "bool", col: TargetColumn{Name: "b", Type: TypeBool}, input: []byte("Yes")},
		{name: "bool invalid", col: TargetColumn{Name: "b", Type: TypeBool}, input: []byte("maybe"), wantErr: "invalid boolean"},
		{name: "timestamp", col: TargetColumn{Name: "ts", Type: TypeTimestamp}, input: []byte("2024-01-15 10:30:00")},
		{name: "timestamp invalid", col: TargetColumn{Name: "ts", Type: TypeTimestamp}, input: []byte("10:30"), wantErr: "invalid timestamp"},
		{name: "timestamptz", col: TargetColumn{Name: "ts", Type: TypeTimestampTZ}, input: []byte("2024-01-15T10:30:00+02:00")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Convert(tt.col, tt.input)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Errorf("Convert(%q) error = %v, want containing %q", tt.input, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Convert(%q) error = %v", tt.input, err)
			}
			if (got == nil) != tt.wantNull {
				t.Errorf("Convert(%q) = %v, wantNull %v", tt.input, got, tt.wantNull)
			}
		})
	}
}

func TestConvert_Values(t *testing.T) {
	got, err := Convert(TargetColumn{Name: "qty", Type: TypeInteger}, []byte("(1,500)"))
	if err != nil {
		t.Fatalf("Convert() error = %v", err)
	}
	if n, ok := got.(pgtype.Int8); !ok || n.Int64 != -1500 {
		t.Errorf("Convert(integer) = %#v, want -1500", got)
	}

	got, err = Convert(TargetColumn{Name: "name", Type: TypeText}, []byte("  padded\t "))
	if err != nil {
		t.Fatalf("Convert() error = %v", err)
	}
	if s, ok := got.(pgtype.Text); !ok || !s.Valid || s.String != "  padded\t " {
		t.Errorf("Convert(text) = %#v, want spaces kept", got)
	}

	got, err = Convert(TargetColumn{Name: "name", Type: TypeText}, []byte{})
	if err != nil {
		t.Fatalf("Convert() error = %v", err)
	}
	if s, ok := got.(pgtype.Text); !ok || !s.Valid || s.String != "" {
		t.Errorf("Convert(empty text) = %#v, want valid empty string", got)
	}

	got, err = Convert(TargetColumn{Name: "ts", Type: TypeTimestampTZ}, []byte("2024-01-15T10:30:00+02:00"))
	if err != nil {
		t.Fatalf("Convert() error = %v", err)
	}
	want := time.Date(2024, 1, 15, 8, 30, 0, 0, time.UTC)
	if ts, ok := got.(pgtype.Timestamptz); !ok || !ts.Time.Equal(want) {
		t.Errorf("Convert(timestamptz) = %#v, want %v", got, want)
	}
}

// ----------------------------------------------------------------------------
// ToPg* Tests
// ----------------------------------------------------------------------------

func TestToPgNumeric(t *testing.T) {
	tests := []struct {
		input     string
		wantValid bool
		wantFloat float64
	}{
		{"123", true, 123},
		{"-456", true, -456},
		{".99", true, 0.99},
		{"99.", true, 99},
		{"$1,234.56", true, 1234.56},
		{"€100", true, 100},
		{"(50.25)", true, -50.25},
		{"1.5e3", false, 0}, // pgtype does not scan exponents
		{"", false, 0},
		{"abc", false, 0},
		{"12abc", false, 0},
		{"1.2.3", false, 0},
		{"NaN", false, 0},
		{"Infinity", false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := ToPgNumeric(tt.input)
			if result.Valid != tt.wantValid {
				t.Fatalf("ToPgNumeric(%q).Valid = %v, want %v", tt.input, result.Valid, tt.wantValid)
			}
			if !tt.wantValid {
				return
			}
			f, err := result.Float64Value()
			if err != nil {
				t.Fatalf("Float64Value() error: %v", err)
			}
			if diff := f.Float64 - tt.wantFloat; diff > 1e-9 || diff < -1e-9 {
				t.Errorf("ToPgNumeric(%q) = %v, want %v", tt.input, f.Float64, tt.wantFloat)
			}
		})
	}
}

func TestToPgInt8(t *testing.T) {
	tests := []struct {
		input     string
		wantValid bool
		want      int64
	}{
		{"42", true, 42},
		{"-7", true, -7},
		{"1,000,000", true, 1000000},
		{"$25", true, 25},
		{"(3)", true, -3},
		{"1.0", false, 0},
		{"9223372036854775808", false, 0},
		{"", false, 0},
		{"one", false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := ToPgInt8(tt.input)
			if got.Valid != tt.wantValid || got.Int64 != tt.want {
				t.Errorf("ToPgInt8(%q) = %+v, want {%d %v}", tt.input, got, tt.want, tt.wantValid)
			}
		})
	}
}

func TestToPgDate(t *testing.T) {
	tests := []struct {
		input     string
		wantValid bool
		wantDate  string
	}{
		{"2024-01-15", true, "2024-01-15"},
		{"2024/01/15", true, "2024-01-15"},
		{"1/15/2024", true, "2024-01-15"},
		{"01/15/2024", true, "2024-01-15"},
		{"15.01.2024", false, ""},
		{"1.15.2024", true, "2024-01-15"},
		{"Jan 15, 2024", true, "2024-01-15"},
		{"15 Jan 2024", true, "2024-01-15"},
		{"20240115", true, "2024-01-15"},
		{"  2024-01-15  ", true, "2024-01-15"},
		{"", false, ""},
		{"not a date", false, ""},
		{"2024-02-30", false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := ToPgDate(tt.input)
			if got.Valid != tt.wantValid {
				t.Fatalf("ToPgDate(%q).Valid = %v, want %v", tt.input, got.Valid, tt.wantValid)
			}
			if tt.wantValid {
				if s := got.Time.Format("2006-01-02"); s != tt.wantDate {
					t.Errorf("ToPgDate(%q) = %s, want %s", tt.input, s, tt.wantDate)
				}
			}
		})
	}
}

func TestToPgDate_TwoDigitYear(t *testing.T) {
	originalPivot := TwoDigitYearPivot
	defer func() { TwoDigitYearPivot = originalPivot }()
	TwoDigitYearPivot = 20

	pivotYear := time.Now().Year() + 20

	tests := []struct {
		input    string
		wantYear int
	}{
		{"01/15/25", 2025},
		{"01/15/99", 1999},
		{"01/15/00", 2000},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := ToPgDate(tt.input)
			if !got.Valid {
				t.Fatalf("ToPgDate(%q) returned invalid", tt.input)
			}
			if got.Time.Year() != tt.wantYear {
				t.Errorf("ToPgDate(%q).Year() = %d, want %d", tt.input, got.Time.Year(), tt.wantYear)
			}
			if got.Time.Year() > pivotYear {
				t.Errorf("year %d is past the pivot %d", got.Time.Year(), pivotYear)
			}
		})
	}
}

func TestToPgTimestamp(t *testing.T) {
	tests := []struct {
		input     string
		wantValid bool
		want      time.Time
	}{
		{"2024-01-15 10:30:00", true, time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)},
		{"2024-01-15T10:30:00.5", true, time.Date(2024, 1, 15, 10, 30, 0, 500000000, time.UTC)},
		{"2024-01-15 10:30", true, time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)},
		{"1/15/2024 10:30:00", true, time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)},
		{"2024-01-15", true, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)},
		{"2024-01-15T10:30:00Z", true, time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)},
		{"", false, time.Time{}},
		{"yesterday", false, time.Time{}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := ToPgTimestamp(tt.input)
			if got.Valid != tt.wantValid {
				t.Fatalf("ToPgTimestamp(%q).Valid = %v, want %v", tt.input, got.Valid, tt.wantValid)
			}
			if tt.wantValid && !got.Time.Equal(tt.want) {
				t.Errorf("ToPgTimestamp(%q) = %v, want %v", tt.input, got.Time, tt.want)
			}
		})
	}
}

func TestToPgBool(t *testing.T) {
	tests := []struct {
		input     string
		wantValid bool
		want      bool
	}{
		{"true", true, true},
		{"TRUE", true, true},
		{"t", true, true},
		{"yes", true, true},
		{"Y", true, true},
		{"1", true, true},
		{"false", true, false},
		{"F", true, false},
		{"no", true, false},
		{"n", true, false},
		{"0", true, false},
		{" yes ", true, true},
		{"", false, false},
		{"maybe", false, false},
		{"2", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := ToPgBool(tt.input)
			if got.Valid != tt.wantValid || got.Bool != tt.want {
				t.Errorf("ToPgBool(%q) = %+v, want {%v %v}", tt.input, got, tt.want, tt.wantValid)
			}
		})
	}
}

func TestToPgText(t *testing.T) {
	tests := []struct {
		input     string
		wantValid bool
		want      string
	}{
		{"hello", true, "hello"},
		{"  padded  ", true, "  padded  "},
		{"", true, ""},
		{"   ", true, "   "},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := ToPgText(tt.input)
			if got.Valid != tt.wantValid || got.String != tt.want {
				t.Errorf("ToPgText(%q) = %+v, want {%q %v}", tt.input, got, tt.want, tt.wantValid)
			}
		})
	}
}

func TestColumnTypeFor(t *testing.T) {
	tests := []struct {
		dataType string
		want     ColumnType
	}{
		{"integer", TypeInteger},
		{"BIGINT", TypeInteger},
		{"numeric", TypeNumeric},
		{"double precision", TypeNumeric},
		{"date", TypeDate},
		{"boolean", TypeBool},
		{"timestamp without time zone", TypeTimestamp},
		{"timestamp with time zone", TypeTimestampTZ},
		{"character varying", TypeText},
		{"jsonb", TypeText},
	}
	for _, tt := range tests {
		if got := ColumnTypeFor(tt.dataType); got != tt.want {
			t.Errorf("ColumnTypeFor(%q) = %v, want %v", tt.dataType, got, tt.want)
		}
	}
}
