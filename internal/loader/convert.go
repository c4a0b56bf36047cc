package loader

// convert.go turns normalized column bytes into pgtype values for COPY.
//
// These functions handle the messy reality of exported flat files:
//   - Multiple date formats (US, EU, ISO, etc.)
//   - Currency symbols and thousand separators in numbers
//   - Various boolean representations (yes/no, true/false, 1/0)
//
// The typed ToPg* functions return values with Valid=false for empty or
// invalid input. Convert tells the two apart so invalid data can be
// rejected. Text is never trimmed here: the parser already applied the
// format's trim setting.

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jackc/pgx/v5/pgtype"
)

// numericRegex validates that a string is a valid numeric format after cleanup.
// Matches integers, decimals, and scientific notation.
var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// TwoDigitYearPivot defines how 2-digit years are interpreted.
// Years that would result in dates more than this many years in the future
// are assumed to be in the previous century.
var TwoDigitYearPivot = 20

// Date layouts split by year format for proper 2-digit year handling
var (
	twoDigitYearLayouts = []string{
		"1/2/06", "01/02/06", "1-2-06", "1.2.06", "01.02.06",
	}
	fourDigitYearLayouts = []string{
		"2006-01-02", "2006/01/02", "2006.01.02",
		"1/2/2006", "01/02/2006", "1-2-2006", "01-02-2006", "1.2.2006", "01.02.2006",
		"Jan 2, 2006", "2 Jan 2006",
		"20060102",
	}
	timestampLayouts = []string{
		time.RFC3339Nano,
		"2006-01-02 15:04:05.999999999Z07:00",
		"2006-01-02 15:04:05.999999999",
		"2006-01-02T15:04:05.999999999",
		"2006-01-02 15:04",
		"1/2/2006 15:04:05",
		"1/2/2006 15:04",
	}
)

// Convert converts a normalized value for col. A nil value is a null slot
// and loads as NULL unless the column is NOT NULL. Text is loaded exactly
// as normalized, so an empty value stays an empty string. Typed values are
// trimmed, and a blank typed value is NULL.
func Convert(col TargetColumn, v []byte) (any, error) {
	if v == nil {
		return nullFor(col)
	}
	if col.Type == TypeText {
		if !utf8.Valid(v) {
			return nil, fmt.Errorf("invalid encoding in column %s", col.Name)
		}
		if col.MaxLength > 0 && utf8.RuneCount(v) > col.MaxLength {
			return nil, fmt.Errorf("value too long for column %s (max %d)", col.Name, col.MaxLength)
		}
		return ToPgText(string(v)), nil
	}

	s := strings.TrimSpace(string(v))
	if s == "" {
		return nullFor(col)
	}

	var (
		val   any
		valid bool
		kind  string
	)
	switch col.Type {
	case TypeInteger:
		n := ToPgInt8(s)
		val, valid, kind = n, n.Valid, "integer"
	case TypeNumeric:
		n := ToPgNumeric(s)
		val, valid, kind = n, n.Valid, "number"
	case TypeDate:
		d := ToPgDate(s)
		val, valid, kind = d, d.Valid, "date"
	case TypeBool:
		b := ToPgBool(s)
		val, valid, kind = b, b.Valid, "boolean"
	case TypeTimestamp:
		ts := ToPgTimestamp(s)
		val, valid, kind = ts, ts.Valid, "timestamp"
	case TypeTimestampTZ:
		ts := ToPgTimestamptz(s)
		val, valid, kind = ts, ts.Valid, "timestamp"
	}

	if !valid {
		return nil, fmt.Errorf("invalid %s %q for column %s", kind, s, col.Name)
	}
	return val, nil
}

func nullFor(col TargetColumn) (any, error) {
	if !col.Nullable {
		return nil, fmt.Errorf("required field %s is empty", col.Name)
	}
	return nil, nil
}

// ToPgText converts a string to pgtype.Text unchanged. The empty string is
// a valid value, not NULL.
func ToPgText(s string) pgtype.Text {
	return pgtype.Text{String: s, Valid: true}
}

// ToPgDate converts a string to pgtype.Date.
// Supports multiple date formats and handles 2-digit years with pivot.
func ToPgDate(s string) pgtype.Date {
	t, ok := parseDate(s)
	if !ok {
		return pgtype.Date{Valid: false}
	}
	return pgtype.Date{Time: t, Valid: true}
}

func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	// Try 4-digit year layouts first (unambiguous)
	for _, layout := range fourDigitYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}

	// Try 2-digit year layouts with pivot year adjustment
	pivotYear := time.Now().Year() + TwoDigitYearPivot
	for _, layout := range twoDigitYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			if t.Year() > pivotYear {
				t = t.AddDate(-100, 0, 0)
			}
			return t, true
		}
	}
	return time.Time{}, false
}

// ToPgTimestamp converts a string to pgtype.Timestamp. Date-only values
// load as midnight.
func ToPgTimestamp(s string) pgtype.Timestamp {
	t, ok := parseTimestamp(s)
	if !ok {
		return pgtype.Timestamp{Valid: false}
	}
	return pgtype.Timestamp{Time: t, Valid: true}
}

// ToPgTimestamptz converts a string to pgtype.Timestamptz. Values without
// an offset are taken as UTC.
func ToPgTimestamptz(s string) pgtype.Timestamptz {
	t, ok := parseTimestamp(s)
	if !ok {
		return pgtype.Timestamptz{Valid: false}
	}
	return pgtype.Timestamptz{Time: t, Valid: true}
}

func parseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return parseDate(s)
}

// cleanNumber removes currency symbols and thousands separators and turns
// accounting format "(123.45)" into a negative number.
func cleanNumber(s string) string {
	s = strings.TrimSpace(s)

	isNegative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		isNegative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}

	s = strings.ReplaceAll(s, "$", "")
	s = strings.ReplaceAll(s, "€", "") // Euro
	s = strings.ReplaceAll(s, "£", "") // Pound
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)

	if isNegative {
		s = "-" + s
	}
	return s
}

// ToPgNumeric converts a string to pgtype.Numeric.
// Handles currency symbols, thousands separators, and accounting format (parentheses for negative).
func ToPgNumeric(s string) pgtype.Numeric {
	s = cleanNumber(s)
	if s == "" || !numericRegex.MatchString(s) {
		return pgtype.Numeric{Valid: false}
	}

	var n pgtype.Numeric
	if err := n.Scan(s); err != nil {
		return pgtype.Numeric{Valid: false}
	}
	return n
}

// ToPgInt8 converts a string to pgtype.Int8 with the same cleanup as
// ToPgNumeric. Fractions are invalid.
func ToPgInt8(s string) pgtype.Int8 {
	s = cleanNumber(s)
	if s == "" {
		return pgtype.Int8{Valid: false}
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return pgtype.Int8{Valid: false}
	}
	return pgtype.Int8{Int64: n, Valid: true}
}

// ToPgBool converts a string to pgtype.Bool.
// Accepts various representations: true/false, yes/no, t/f, y/n, 1/0.
func ToPgBool(s string) pgtype.Bool {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return pgtype.Bool{Valid: false}
	}

	switch s {
	case "true", "t", "yes", "y", "1":
		return pgtype.Bool{Bool: true, Valid: true}
	case "false", "f", "no", "n", "0":
		return pgtype.Bool{Bool: false, Valid: true}
	default:
		return pgtype.Bool{Valid: false}
	}
}
