package flatfile

import (
	"strings"
	"testing"
)

func TestStripValue(t *testing.T) {
	doubled := MustParser(csvConfig(false))
	separate := MustParser(Config{FieldDelimiter: ',', RowDelimiter: '\n', Quote: '"', Escape: '\\'})
	unescaped := MustParser(Config{FieldDelimiter: '|', RowDelimiter: '\n', Quote: '"'})
	noQuote := MustParser(Config{FieldDelimiter: ',', RowDelimiter: '\n'})

	tests := []struct {
		name  string
		p     *Parser
		input string
		trim  bool
		want  string
	}{
		{name: "doubled: plain", p: doubled, input: "abc", want: "abc"},
		{name: "doubled: quoted", p: doubled, input: `"a,b"`, want: "a,b"},
		{name: "doubled: embedded quote", p: doubled, input: `"a""b"`, want: `a"b`},
		{name: "doubled: empty quotes", p: doubled, input: `""`, want: ""},
		{name: "doubled: text after closing quote", p: doubled, input: `"abc"tail`, want: "abc"},
		{name: "doubled: unquoted quote is literal", p: doubled, input: `a""b`, want: `a""b`},
		{name: "doubled: trim around quotes", p: doubled, input: `  "x y"  `, trim: true, want: "x y"},
		{name: "doubled: space before quote without trim", p: doubled, input: ` "x"`, want: ` "x"`},
		{name: "doubled: only spaces", p: doubled, input: "   ", trim: true, want: ""},
		{name: "doubled: empty", p: doubled, input: "", want: ""},

		{name: "separate: escaped quote", p: separate, input: `"a\"b"`, want: `a"b`},
		{name: "separate: escaped delimiter", p: separate, input: `a\,b`, want: "a,b"},
		{name: "separate: escaped escape", p: separate, input: `a\\b`, want: `a\b`},
		{name: "separate: escape at end", p: separate, input: `ab\`, want: "ab"},
		{name: "separate: unquoted quote is literal", p: separate, input: `a"b`, want: `a"b`},
		{name: "separate: trim", p: separate, input: ` "a" `, trim: true, want: "a"},

		{name: "unescaped: quoted", p: unescaped, input: `"a|b"`, want: "a|b"},
		{name: "unescaped: text after closing quote", p: unescaped, input: `"a"b`, want: "a"},
		{name: "unescaped: backslash is literal", p: unescaped, input: `a\b`, want: `a\b`},

		{name: "quoting disabled", p: noQuote, input: `"a"`, want: `"a"`},
		{name: "quoting disabled with trim", p: noQuote, input: "  a b  ", trim: true, want: "a b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := []byte(tt.input)
			n := tt.p.StripValue(b, tt.trim)
			if n > len(tt.input) {
				t.Fatalf("StripValue() = %d, longer than input %d", n, len(tt.input))
			}
			if got := string(b[:n]); got != tt.want {
				t.Errorf("StripValue(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestStripQuoting_NullSlots(t *testing.T) {
	p := MustParser(csvConfig(true))
	schema := MustSchema(Columns(3, 0), SchemaOptions{Lenient: true})

	var row RowResult
	p.ScanRow([]byte(` "a""b" `+"\n"), schema, &row)
	p.StripQuoting(&row, true)

	if !row.Stripped() {
		t.Fatal("Stripped() = false after StripQuoting")
	}
	if got := string(row.Value(0)); got != `a"b` {
		t.Errorf("Value(0) = %q, want %q", got, `a"b`)
	}
	if got := row.StrippedSize(0); got != 3 {
		t.Errorf("StrippedSize(0) = %d, want 3", got)
	}
	for i := 1; i < 3; i++ {
		if !row.IsNull(i) || row.Value(i) != nil {
			t.Errorf("slot %d = %q, want null", i, row.Value(i))
		}
		if got := row.StrippedSize(i); got != 0 {
			t.Errorf("StrippedSize(%d) = %d, want 0", i, got)
		}
	}
}

func TestStripQuoting_LeavesRawBounds(t *testing.T) {
	p := MustParser(csvConfig(false))
	schema := MustSchema(Columns(2, 0), SchemaOptions{})

	var row RowResult
	p.ScanRow([]byte(`"x",y`+"\n"), schema, &row)
	p.StripQuoting(&row, false)

	if got := row.RawSize(0); got != 3 {
		t.Errorf("RawSize(0) = %d, want 3", got)
	}
	if got := string(row.Value(0)); got != "x" {
		t.Errorf("Value(0) = %q, want %q", got, "x")
	}
	if got := string(row.Value(1)); got != "y" {
		t.Errorf("Value(1) = %q, want %q", got, "y")
	}
}

// roundTrip encodes each value, scans it back as a column and strips it.
func roundTrip(t *testing.T, p *Parser, encode func(string) string, values []string) {
	t.Helper()
	for _, v := range values {
		encoded := encode(v)
		buf := []byte(encoded + ",")
		col := p.ScanColumn(buf, 0)
		if col.Type != FieldDelimiter || col.Size != len(encoded) {
			t.Errorf("ScanColumn(%q) = %v size %d, want %v size %d", encoded, col.Type, col.Size, FieldDelimiter, len(encoded))
			continue
		}
		n := p.StripValue(buf[:col.Size], false)
		if got := string(buf[:n]); got != v {
			t.Errorf("round trip of %q = %q", v, got)
		}
	}
}

var roundTripValues = []string{
	"",
	"plain",
	"a,b",
	`he said "hi"`,
	`"`,
	`\`,
	"line\nbreak",
	"crlf\r\ninside",
	`\"mixed\"`,
}

func TestRoundTrip_DoubledQuote(t *testing.T) {
	p := MustParser(csvConfig(false))
	roundTrip(t, p, func(v string) string {
		return `"` + strings.ReplaceAll(v, `"`, `""`) + `"`
	}, roundTripValues)
}

func TestRoundTrip_SeparateEscape(t *testing.T) {
	p := MustParser(Config{FieldDelimiter: ',', RowDelimiter: '\n', Quote: '"', Escape: '\\'})
	escaper := strings.NewReplacer(`\`, `\\`, `"`, `\"`)
	roundTrip(t, p, func(v string) string {
		return `"` + escaper.Replace(v) + `"`
	}, roundTripValues)
}
