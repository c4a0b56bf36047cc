package flatfile

import (
	"errors"
	"fmt"
)

// NoChar disables a configured character. A parser whose field delimiter is
// NoChar scans fixed-width columns.
const NoChar byte = 0

const space = ' '

// Construction errors. Scanning itself never returns an error; problems with
// the data are reported as a Status on the RowResult.
var (
	ErrNoRowDelimiter    = errors.New("row delimiter is required")
	ErrCarriageReturn    = errors.New("row delimiter must not be a carriage return, use newline to match both")
	ErrFixedQuoting      = errors.New("fixed-width format does not support quote or escape characters")
	ErrDelimiterConflict = errors.New("field delimiter collides with another configured character")
)

// Escaping is the escaping convention of a delimited parser. It is chosen
// once at construction from the quote and escape characters.
type Escaping uint8

const (
	// EscapeNone: no escape character. Quotes, if enabled, only open and
	// close quoted regions.
	EscapeNone Escaping = iota
	// EscapeDoubledQuote: quote and escape are the same character, so an
	// embedded quote is written as two quotes.
	EscapeDoubledQuote
	// EscapeSeparate: a distinct escape character makes the following byte
	// literal.
	EscapeSeparate
)

func (e Escaping) String() string {
	switch e {
	case EscapeNone:
		return "none"
	case EscapeDoubledQuote:
		return "doubled-quote"
	case EscapeSeparate:
		return "separate"
	default:
		return fmt.Sprintf("Escaping(%d)", uint8(e))
	}
}

// Config holds the characters a Parser recognises.
type Config struct {
	// FieldDelimiter separates columns. NoChar selects fixed-width mode.
	FieldDelimiter byte

	// RowDelimiter ends a row. A newline matches both '\r' and '\n'.
	RowDelimiter byte

	// Quote opens and closes a quoted column. NoChar disables quoting.
	Quote byte

	// Escape makes the next byte literal. When equal to Quote, embedded
	// quotes are doubled instead.
	Escape byte

	// TrimLeadingSpace skips spaces before quote detection, so a quote
	// preceded by spaces still opens a quoted column.
	TrimLeadingSpace bool
}

// Parser scans rows of a flat file directly out of caller buffers.
//
// A Parser holds no state between calls and may be shared by goroutines,
// provided each goroutine uses its own buffer and RowResult.
type Parser struct {
	fieldDelim byte
	rowDelim   byte
	quote      byte
	escape     byte
	trim       bool

	fixed    bool
	escaping Escaping
}

// NewParser validates cfg and returns a Parser for it.
func NewParser(cfg Config) (*Parser, error) {
	if cfg.RowDelimiter == NoChar {
		return nil, ErrNoRowDelimiter
	}
	if cfg.RowDelimiter == '\r' {
		return nil, ErrCarriageReturn
	}

	p := &Parser{
		fieldDelim: cfg.FieldDelimiter,
		rowDelim:   cfg.RowDelimiter,
		quote:      cfg.Quote,
		escape:     cfg.Escape,
		trim:       cfg.TrimLeadingSpace,
		fixed:      cfg.FieldDelimiter == NoChar,
	}

	if p.fixed {
		if cfg.Quote != NoChar || cfg.Escape != NoChar {
			return nil, ErrFixedQuoting
		}
		return p, nil
	}

	if p.isRowDelim(cfg.FieldDelimiter) {
		return nil, fmt.Errorf("%w: field delimiter %q matches the row delimiter", ErrDelimiterConflict, cfg.FieldDelimiter)
	}
	if cfg.FieldDelimiter == cfg.Quote || cfg.FieldDelimiter == cfg.Escape {
		return nil, fmt.Errorf("%w: field delimiter %q matches the quote or escape", ErrDelimiterConflict, cfg.FieldDelimiter)
	}

	switch {
	case cfg.Escape == NoChar:
		p.escaping = EscapeNone
	case cfg.Escape == cfg.Quote:
		p.escaping = EscapeDoubledQuote
	default:
		p.escaping = EscapeSeparate
	}
	return p, nil
}

// MustParser is like NewParser but panics on an invalid configuration.
func MustParser(cfg Config) *Parser {
	p, err := NewParser(cfg)
	if err != nil {
		panic(fmt.Sprintf("flatfile: %v", err))
	}
	return p
}

// Fixed reports whether the parser scans fixed-width columns.
func (p *Parser) Fixed() bool { return p.fixed }

// Escaping returns the escaping convention selected at construction.
func (p *Parser) Escaping() Escaping { return p.escaping }

// RowDelimiter returns the configured row delimiter.
func (p *Parser) RowDelimiter() byte { return p.rowDelim }

// Config returns the configuration the parser was built from.
func (p *Parser) Config() Config {
	return Config{
		FieldDelimiter:   p.fieldDelim,
		RowDelimiter:     p.rowDelim,
		Quote:            p.quote,
		Escape:           p.escape,
		TrimLeadingSpace: p.trim,
	}
}

// isRowDelim reports whether c terminates a row. A newline delimiter
// matches both halves of a CRLF pair.
func (p *Parser) isRowDelim(c byte) bool {
	if p.rowDelim == '\n' {
		return c == '\n' || c == '\r'
	}
	return c == p.rowDelim
}

func (p *Parser) isQuote(c byte) bool {
	return p.quote != NoChar && c == p.quote
}
