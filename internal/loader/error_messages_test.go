package loader

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/JonMunkholm/flatload/internal/flatfile"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
	}{
		{"nil error returns empty", nil, ""},
		{"incomplete column", flatfile.ErrIncompleteColumn, "PARSE001"},
		{"no column delimiter", flatfile.ErrNoColumnDelimiter, "PARSE002"},
		{"too few columns", &flatfile.RowError{Row: 3, Status: flatfile.StatusTooFewColumns}, "PARSE003"},
		{"too many columns", flatfile.ErrTooManyColumns, "PARSE004"},
		{"row too large", errors.New("row too large: exceeds 1.0 MiB"), "PARSE005"},
		{"invalid date", errors.New(`invalid date "13/45/2024" for column shipped`), "VAL001"},
		{"invalid integer", errors.New(`invalid integer "1.5" for column qty`), "VAL004"},
		{"required field", errors.New("required field id is empty"), "VAL003"},
		{"value too long", errors.New("value too long for column name (max 10)"), "VAL007"},
		{"too many rejected", fmt.Errorf("%w: 11 rejected, limit 10", ErrTooManyRejected), "LOAD001"},
		{"too many loads", ErrTooManyLoads, "LOAD002"},
		{"load not found", fmt.Errorf("%w: abc", ErrLoadNotFound), "LOAD003"},
		{"unknown table", fmt.Errorf("%w: public.nope", ErrUnknownTable), "TBL001"},
		{"unknown column", ErrUnknownColumn, "TBL002"},
		{"header match", fmt.Errorf("%w: columns were also given", ErrHeaderMatch), "TBL005"},
		{"missing from header", fmt.Errorf("%w: id", ErrMissingColumns), "TBL006"},
		{"invalid widths", ErrWidths, "FMT002"},
		{"delimiter conflict", fmt.Errorf("format x: %w", flatfile.ErrDelimiterConflict), "FMT003"},
		{"carriage return delimiter", flatfile.ErrCarriageReturn, "FMT004"},
		{"fixed quoting", flatfile.ErrFixedQuoting, "FMT005"},
		{"corrupt gzip", errors.New("failed to create gzip reader: unexpected EOF"), "FILE002"},
		{"duplicate key", errors.New("ERROR: duplicate key value violates unique constraint"), "DB001"},
		{"unique constraint", errors.New("unique constraint violated"), "DB002"},
		{"connection refused", errors.New("begin transaction: dial tcp: connection refused"), "DB004"},
		{"deadline", context.DeadlineExceeded, "DB006"},
		{"rate limit", errors.New("rate limit exceeded"), "RATE001"},
		{"case insensitive", errors.New("DUPLICATE KEY"), "DB001"},
		{"unknown", errors.New("some random internal error"), "ERR000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError(tt.err)
			if got.Code != tt.wantCode {
				t.Errorf("MapError(%v) code = %q, want %q", tt.err, got.Code, tt.wantCode)
			}
		})
	}
}

func TestMapReason(t *testing.T) {
	if got := MapReason("too few columns").Code; got != "PARSE003" {
		t.Errorf("MapReason() code = %q, want PARSE003", got)
	}
}

func TestFormatUserError(t *testing.T) {
	got := FormatUserError(ErrTooManyLoads)
	want := "The server is busy with other loads (Code: LOAD002). Please try again in a few moments"
	if got != want {
		t.Errorf("FormatUserError() = %q, want %q", got, want)
	}
	if got := FormatUserError(nil); got != "" {
		t.Errorf("FormatUserError(nil) = %q, want empty", got)
	}
}

func TestIsUserFacing(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil error is not user facing", nil, false},
		{"known error is user facing", ErrUnknownTable, true},
		{"unknown error is not user facing", errors.New("random internal error xyz"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsUserFacing(tt.err); got != tt.want {
				t.Errorf("IsUserFacing() = %v, want %v", got, tt.want)
			}
		})
	}
}
