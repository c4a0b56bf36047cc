package flatfile

import (
	"reflect"
	"testing"
)

// slots renders a row result for comparison; null slots are "<null>".
func slots(r *RowResult) []string {
	out := make([]string, r.Len())
	for i := range out {
		if r.IsNull(i) {
			out[i] = "<null>"
			continue
		}
		out[i] = string(r.Value(i))
	}
	return out
}

func TestScanRow_UnboundedWithQuotes(t *testing.T) {
	p := MustParser(csvConfig(true))
	schema := MustSchema(Columns(3, 0), SchemaOptions{Unbounded: true})
	buf := []byte("1, \"a,b\", 3\n")

	var row RowResult
	p.ScanRow(buf, schema, &row)

	if row.Status != StatusOK {
		t.Fatalf("Status = %v, want %v", row.Status, StatusOK)
	}
	if got, want := slots(&row), []string{"1", ` "a,b"`, " 3"}; !reflect.DeepEqual(got, want) {
		t.Errorf("raw columns = %q, want %q", got, want)
	}
	if row.RowDelimiters != 1 {
		t.Errorf("RowDelimiters = %d, want 1", row.RowDelimiters)
	}
	if row.Current != 0 || row.Next != len(buf) {
		t.Errorf("Current, Next = %d, %d, want 0, %d", row.Current, row.Next, len(buf))
	}

	p.StripQuoting(&row, true)
	if got, want := slots(&row), []string{"1", "a,b", "3"}; !reflect.DeepEqual(got, want) {
		t.Errorf("normalized columns = %q, want %q", got, want)
	}
	if !row.Stripped() {
		t.Error("Stripped() = false after StripQuoting")
	}
}

func TestScanRow_StrictColumnCounts(t *testing.T) {
	p := MustParser(csvConfig(true))
	schema := MustSchema(Columns(3, 0), SchemaOptions{})

	tests := []struct {
		name       string
		input      string
		wantStatus Status
		wantSlots  []string
		wantNext   int
	}{
		{
			name:       "exact column count",
			input:      "a,b,c\nz",
			wantStatus: StatusOK,
			wantSlots:  []string{"a", "b", "c"},
			wantNext:   6,
		},
		{
			name:       "row delimiter in first column",
			input:      "x\n",
			wantStatus: StatusNoColumnDelimiter,
			wantSlots:  []string{"x", "<null>", "<null>"},
			wantNext:   2,
		},
		{
			name:       "row delimiter in second column",
			input:      "x,y\n",
			wantStatus: StatusTooFewColumns,
			wantSlots:  []string{"x", "y", "<null>"},
			wantNext:   4,
		},
		{
			name:       "field delimiter after last column",
			input:      "a,b,c,d\nnext",
			wantStatus: StatusTooManyColumns,
			wantSlots:  []string{"a", "b", "c"},
			wantNext:   8,
		},
		{
			name:       "incomplete last column",
			input:      `a,b,"c`,
			wantStatus: StatusIncompleteColumn,
			wantSlots:  []string{"a", "b", `"c`},
			wantNext:   6,
		},
		{
			name:       "empty columns are not null",
			input:      ",,\n",
			wantStatus: StatusOK,
			wantSlots:  []string{"", "", ""},
			wantNext:   3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var row RowResult
			p.ScanRow([]byte(tt.input), schema, &row)
			if row.Status != tt.wantStatus {
				t.Errorf("Status = %v, want %v", row.Status, tt.wantStatus)
			}
			if got := slots(&row); !reflect.DeepEqual(got, tt.wantSlots) {
				t.Errorf("slots = %q, want %q", got, tt.wantSlots)
			}
			if row.Next != tt.wantNext {
				t.Errorf("Next = %d, want %d", row.Next, tt.wantNext)
			}
		})
	}
}

func TestScanRow_Lenient(t *testing.T) {
	p := MustParser(csvConfig(false))
	schema := MustSchema(Columns(3, 0), SchemaOptions{Lenient: true})

	tests := []struct {
		name      string
		input     string
		wantSlots []string
		wantNext  int
	}{
		{name: "too few", input: "a\nb", wantSlots: []string{"a", "<null>", "<null>"}, wantNext: 2},
		{name: "too many", input: "a,b,c,d,e\nf", wantSlots: []string{"a", "b", "c"}, wantNext: 10},
		{name: "exact", input: "a,b,c\n", wantSlots: []string{"a", "b", "c"}, wantNext: 6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var row RowResult
			p.ScanRow([]byte(tt.input), schema, &row)
			if row.Status != StatusOK {
				t.Errorf("Status = %v, want %v", row.Status, StatusOK)
			}
			if got := slots(&row); !reflect.DeepEqual(got, tt.wantSlots) {
				t.Errorf("slots = %q, want %q", got, tt.wantSlots)
			}
			if row.Next != tt.wantNext {
				t.Errorf("Next = %d, want %d", row.Next, tt.wantNext)
			}
		})
	}
}

func TestScanRow_MappedColumns(t *testing.T) {
	p := MustParser(csvConfig(false))
	schema := MustSchema(Columns(3, 0), SchemaOptions{Targets: []int{1, Drop, 0}})

	var row RowResult
	p.ScanRow([]byte("first,dropped,third\n"), schema, &row)

	if row.Status != StatusOK {
		t.Fatalf("Status = %v, want %v", row.Status, StatusOK)
	}
	if got, want := slots(&row), []string{"third", "first"}; !reflect.DeepEqual(got, want) {
		t.Errorf("slots = %q, want %q", got, want)
	}
	for i := 0; i < row.Len(); i++ {
		if string(row.Value(i)) == "dropped" {
			t.Errorf("slot %d holds the dropped column", i)
		}
	}
}

func TestScanRow_MappedWithSpareSlots(t *testing.T) {
	p := MustParser(csvConfig(false))
	schema := MustSchema(Columns(2, 0), SchemaOptions{Targets: []int{2, 0}, ResultColumns: 4})

	var row RowResult
	p.ScanRow([]byte("a,b\n"), schema, &row)

	if got, want := slots(&row), []string{"b", "<null>", "a", "<null>"}; !reflect.DeepEqual(got, want) {
		t.Errorf("slots = %q, want %q", got, want)
	}
}

func TestScanRow_MappedCountsFileColumns(t *testing.T) {
	p := MustParser(csvConfig(false))
	schema := MustSchema(Columns(3, 0), SchemaOptions{Targets: []int{0, Drop, 1}})
	if schema.ResultColumns() != 2 || !schema.Strict() {
		t.Fatalf("ResultColumns() = %d, Strict() = %v", schema.ResultColumns(), schema.Strict())
	}

	tests := []struct {
		input string
		want  Status
	}{
		{"a,b,c\n", StatusOK},
		{"a,b\n", StatusTooFewColumns},
		{"a,b,c,d\n", StatusTooManyColumns},
	}
	for _, tt := range tests {
		var row RowResult
		p.ScanRow([]byte(tt.input), schema, &row)
		if row.Status != tt.want {
			t.Errorf("ScanRow(%q) Status = %v, want %v", tt.input, row.Status, tt.want)
		}
	}
}

func TestScanRow_UnboundedStopsAtMaxColumns(t *testing.T) {
	p := MustParser(csvConfig(false))
	schema := MustSchema(Columns(2, 0), SchemaOptions{Unbounded: true})

	var row RowResult
	p.ScanRow([]byte("a,b,c\nd"), schema, &row)

	if row.Status != StatusOK {
		t.Errorf("Status = %v, want %v", row.Status, StatusOK)
	}
	if got, want := slots(&row), []string{"a", "b"}; !reflect.DeepEqual(got, want) {
		t.Errorf("slots = %q, want %q", got, want)
	}
	if row.Next != 6 {
		t.Errorf("Next = %d, want 6", row.Next)
	}
}

func TestScanRow_UnboundedShortRow(t *testing.T) {
	p := MustParser(csvConfig(false))
	schema := MustSchema(Columns(4, 0), SchemaOptions{Unbounded: true})

	var row RowResult
	p.ScanRow([]byte("a\n"), schema, &row)

	if row.Status != StatusOK {
		t.Errorf("Status = %v, want %v", row.Status, StatusOK)
	}
	if row.Len() != 1 {
		t.Errorf("Len() = %d, want 1", row.Len())
	}
}

func TestScanRow_RowDelimiterRuns(t *testing.T) {
	p := MustParser(csvConfig(false))
	schema := MustSchema(Columns(2, 0), SchemaOptions{})

	tests := []struct {
		name       string
		input      string
		wantOffset int
		wantNext   int
	}{
		{name: "leading split CRLF", input: "\na,b\n", wantOffset: 1, wantNext: 5},
		{name: "leading blank lines", input: "\n\r\na,b\n", wantOffset: 3, wantNext: 7},
		{name: "CRLF", input: "a,b\r\nc,d\r\n", wantOffset: 0, wantNext: 5},
		{name: "blank lines after row", input: "a,b\n\n\nc,d\n", wantOffset: 0, wantNext: 6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var row RowResult
			p.ScanRow([]byte(tt.input), schema, &row)
			if row.Status != StatusOK {
				t.Fatalf("Status = %v, want %v", row.Status, StatusOK)
			}
			if got := row.Offset(0); got != tt.wantOffset {
				t.Errorf("Offset(0) = %d, want %d", got, tt.wantOffset)
			}
			if row.Next != tt.wantNext {
				t.Errorf("Next = %d, want %d", row.Next, tt.wantNext)
			}
			if row.RowDelimiters != 1 {
				t.Errorf("RowDelimiters = %d, want 1", row.RowDelimiters)
			}
		})
	}
}

func TestScanRow_UnterminatedTail(t *testing.T) {
	p := MustParser(csvConfig(false))
	schema := MustSchema(Columns(2, 0), SchemaOptions{})

	var row RowResult
	p.ScanRow([]byte("a,b,c"), schema, &row)

	if row.Status != StatusTooManyColumns {
		t.Errorf("Status = %v, want %v", row.Status, StatusTooManyColumns)
	}
	if row.Terminated() {
		t.Error("Terminated() = true for a row without a row delimiter")
	}
	if row.Next != 5 {
		t.Errorf("Next = %d, want 5", row.Next)
	}
}

func TestScanRow_Fixed(t *testing.T) {
	p := MustParser(Config{RowDelimiter: '\n'})
	schema := MustSchema(FixedWidths(4, 4), SchemaOptions{})

	tests := []struct {
		name       string
		input      string
		wantStatus Status
		wantSlots  []string
		wantNext   int
	}{
		{
			name:       "two full columns",
			input:      "ABCD1234\n",
			wantStatus: StatusOK,
			wantSlots:  []string{"ABCD", "1234"},
			wantNext:   9,
		},
		{
			name:       "short last column",
			input:      "ABCD12\nXY",
			wantStatus: StatusOK,
			wantSlots:  []string{"ABCD", "12"},
			wantNext:   7,
		},
		{
			name:       "data past last column",
			input:      "ABCD12345\n",
			wantStatus: StatusTooManyColumns,
			wantSlots:  []string{"ABCD", "1234"},
			wantNext:   10,
		},
		{
			name:       "short first column",
			input:      "AB\n",
			wantStatus: StatusNoColumnDelimiter,
			wantSlots:  []string{"AB", "<null>"},
			wantNext:   3,
		},
		{
			name:       "buffer ends at width",
			input:      "ABCD1234",
			wantStatus: StatusIncompleteColumn,
			wantSlots:  []string{"ABCD", "1234"},
			wantNext:   8,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var row RowResult
			p.ScanRow([]byte(tt.input), schema, &row)
			if row.Status != tt.wantStatus {
				t.Errorf("Status = %v, want %v", row.Status, tt.wantStatus)
			}
			if got := slots(&row); !reflect.DeepEqual(got, tt.wantSlots) {
				t.Errorf("slots = %q, want %q", got, tt.wantSlots)
			}
			if row.Next != tt.wantNext {
				t.Errorf("Next = %d, want %d", row.Next, tt.wantNext)
			}
		})
	}
}

func TestScanRow_ResetsBetweenScans(t *testing.T) {
	p := MustParser(csvConfig(false))
	schema := MustSchema(Columns(2, 0), SchemaOptions{})

	var row RowResult
	p.ScanRow([]byte("x\n"), schema, &row)
	p.StripQuoting(&row, false)
	if row.Status != StatusNoColumnDelimiter {
		t.Fatalf("first Status = %v, want %v", row.Status, StatusNoColumnDelimiter)
	}

	p.ScanRow([]byte("a,b\n"), schema, &row)
	if row.Status != StatusOK {
		t.Errorf("second Status = %v, want %v", row.Status, StatusOK)
	}
	if row.Stripped() {
		t.Error("Stripped() = true after a fresh scan")
	}
	if row.RowDelimiters != 1 {
		t.Errorf("RowDelimiters = %d, want 1", row.RowDelimiters)
	}
}

type scannedRow struct {
	status Status
	values []string
}

// scanChunks feeds chunks to the scanner the way a reader would: the
// unconsumed tail is kept and the next chunk appended whenever a row is
// incomplete.
func scanChunks(t *testing.T, p *Parser, schema *Schema, chunks [][]byte) []scannedRow {
	t.Helper()
	var (
		rows    []scannedRow
		pending []byte
		row     RowResult
		next    int
	)
	for {
		if p.SkipRowDelimiters(pending) == len(pending) {
			if next == len(chunks) {
				return rows
			}
			pending = append(pending, chunks[next]...)
			next++
			continue
		}

		p.ScanRow(pending, schema, &row)
		if row.Status == StatusIncompleteColumn || !row.Terminated() {
			if next == len(chunks) {
				t.Fatalf("input ended inside a row: %q", pending)
			}
			pending = append(pending, chunks[next]...)
			next++
			continue
		}

		rows = append(rows, scannedRow{status: row.Status, values: row.Strings()})
		pending = append([]byte(nil), pending[row.Next:]...)
	}
}

func TestScanRow_SplitEquivalence(t *testing.T) {
	p := MustParser(csvConfig(false))
	schema := MustSchema(Columns(2, 0), SchemaOptions{})

	inputs := map[string]string{
		"LF":   "a,b\n\"c\n,1\",d\nx\n,\n",
		"CRLF": "a,b\r\n\"c\r\n,1\",d\r\nx\r\n,\r\n",
	}

	for name, input := range inputs {
		t.Run(name, func(t *testing.T) {
			data := []byte(input)
			want := scanChunks(t, p, schema, [][]byte{data})
			if len(want) != 4 {
				t.Fatalf("whole buffer produced %d rows, want 4", len(want))
			}

			for k := 0; k <= len(data); k++ {
				first := append([]byte(nil), data[:k]...)
				second := append([]byte(nil), data[k:]...)
				got := scanChunks(t, p, schema, [][]byte{first, second})
				if !reflect.DeepEqual(got, want) {
					t.Errorf("split at %d: rows = %v, want %v", k, got, want)
				}
			}
		})
	}
}

func TestStatus_Err(t *testing.T) {
	if err := StatusOK.Err(); err != nil {
		t.Errorf("StatusOK.Err() = %v, want nil", err)
	}
	err := &RowError{Row: 7, Status: StatusTooFewColumns}
	if got, want := err.Error(), "row 7: too few columns"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if err.Unwrap() != ErrTooFewColumns {
		t.Errorf("Unwrap() = %v, want %v", err.Unwrap(), ErrTooFewColumns)
	}
}
