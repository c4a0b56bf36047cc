package loader

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/JonMunkholm/flatload/internal/flatfile"
	"github.com/JonMunkholm/flatload/internal/ingest"
)

// Format is a named set of flat-file characters.
type Format struct {
	Name             string   `json:"name"`
	Description      string   `json:"description"`
	Delimiter        byte     `json:"-"` // flatfile.NoChar for fixed width
	Quote            byte     `json:"-"`
	Escape           byte     `json:"-"`
	TrimLeadingSpace bool     `json:"trimLeadingSpace"`
	Extensions       []string `json:"extensions"`
}

// Fixed reports whether the format is fixed width.
func (f Format) Fixed() bool { return f.Delimiter == flatfile.NoChar }

// ParserConfig returns the scanner configuration for the format. Rows are
// always newline delimited, which matches LF and CRLF.
func (f Format) ParserConfig() flatfile.Config {
	return flatfile.Config{
		FieldDelimiter:   f.Delimiter,
		RowDelimiter:     '\n',
		Quote:            f.Quote,
		Escape:           f.Escape,
		TrimLeadingSpace: f.TrimLeadingSpace,
	}
}

// Parser builds a scanner for the format.
func (f Format) Parser() (*flatfile.Parser, error) {
	p, err := flatfile.NewParser(f.ParserConfig())
	if err != nil {
		return nil, fmt.Errorf("format %s: %w", f.Name, err)
	}
	return p, nil
}

// Overrides replace individual characters of a Format. Nil fields keep the
// format's value.
type Overrides struct {
	Delimiter *byte
	Quote     *byte
	Escape    *byte
	Trim      *bool
}

// WithOverrides returns a copy of f with the non-nil overrides applied.
func (f Format) WithOverrides(o Overrides) Format {
	if o.Delimiter != nil {
		f.Delimiter = *o.Delimiter
	}
	if o.Quote != nil {
		f.Quote = *o.Quote
	}
	if o.Escape != nil {
		f.Escape = *o.Escape
	}
	if o.Trim != nil {
		f.TrimLeadingSpace = *o.Trim
	}
	return f
}

var (
	ErrUnknownFormat = errors.New("unknown format")
	ErrInvalidChar   = errors.New("invalid character")
)

var charNames = map[string]byte{
	"none":      flatfile.NoChar,
	"tab":       '\t',
	"comma":     ',',
	"pipe":      '|',
	"semicolon": ';',
	"space":     ' ',
}

// ParseChar parses a configured character: a single byte, an escape (\t,
// \n, \\), a hex byte (0x7c), or a name such as tab, pipe, or none.
func ParseChar(s string) (byte, error) {
	if c, ok := charNames[strings.ToLower(s)]; ok {
		return c, nil
	}
	switch s {
	case `\t`:
		return '\t', nil
	case `\n`:
		return '\n', nil
	case `\\`:
		return '\\', nil
	}
	if len(s) > 2 && (s[:2] == "0x" || s[:2] == "0X") {
		n, err := strconv.ParseUint(s[2:], 16, 8)
		if err != nil {
			return 0, fmt.Errorf("%w %q: %v", ErrInvalidChar, s, err)
		}
		return byte(n), nil
	}
	if len(s) != 1 {
		return 0, fmt.Errorf("%w %q: want a single byte", ErrInvalidChar, s)
	}
	return s[0], nil
}

// CharString renders c in a form ParseChar accepts.
func CharString(c byte) string {
	switch {
	case c == flatfile.NoChar:
		return "none"
	case c == '\t':
		return `\t`
	case c == '\n':
		return `\n`
	case c == ' ':
		return "space"
	case c > ' ' && c < 0x7f:
		return string(c)
	default:
		return fmt.Sprintf("0x%02x", c)
	}
}

var (
	formats   = make(map[string]Format)
	formatsMu sync.RWMutex
)

func init() {
	Register(Format{
		Name:        "csv",
		Description: "Comma separated, double quotes, quotes escaped by doubling",
		Delimiter:   ',',
		Quote:       '"',
		Escape:      '"',
		Extensions:  []string{".csv"},
	})
	Register(Format{
		Name:        "tsv",
		Description: "Tab separated, backslash escapes, no quoting",
		Delimiter:   '\t',
		Escape:      '\\',
		Extensions:  []string{".tsv", ".tab"},
	})
	Register(Format{
		Name:        "psv",
		Description: "Pipe separated, double quotes, no escape character",
		Delimiter:   '|',
		Quote:       '"',
		Extensions:  []string{".psv"},
	})
	Register(Format{
		Name:        "fixed",
		Description: "Fixed width columns, widths supplied per load",
		Extensions:  []string{".dat", ".txt"},
	})
}

// Register adds a format to the registry.
// Panics if a format with the same name is already registered or if its
// characters are invalid.
func Register(f Format) {
	if _, err := f.Parser(); err != nil {
		panic(err.Error())
	}

	formatsMu.Lock()
	defer formatsMu.Unlock()

	if _, exists := formats[f.Name]; exists {
		panic(fmt.Sprintf("format already registered: %s", f.Name))
	}
	formats[f.Name] = f
}

// LookupFormat returns a format by name.
// Returns false if not found.
func LookupFormat(name string) (Format, bool) {
	formatsMu.RLock()
	defer formatsMu.RUnlock()

	f, ok := formats[strings.ToLower(name)]
	return f, ok
}

// FormatForFile returns the format whose extensions match name. Compression
// suffixes must already be removed.
func FormatForFile(name string) (Format, bool) {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		return Format{}, false
	}
	for _, f := range Formats() {
		for _, e := range f.Extensions {
			if e == ext {
				return f, true
			}
		}
	}
	return Format{}, false
}

// Formats returns all registered formats sorted by name.
func Formats() []Format {
	formatsMu.RLock()
	defer formatsMu.RUnlock()

	result := make([]Format, 0, len(formats))
	for _, f := range formats {
		result = append(result, f)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Name < result[j].Name
	})
	return result
}

// ResolveFormat looks up a format by name and applies overrides. The result
// is checked by building its parser.
func ResolveFormat(name string, o Overrides) (Format, error) {
	f, ok := LookupFormat(name)
	if !ok {
		return Format{}, fmt.Errorf("%w: %q", ErrUnknownFormat, name)
	}
	f = f.WithOverrides(o)
	if _, err := f.Parser(); err != nil {
		return Format{}, err
	}
	return f, nil
}

// ChooseFormat picks the format for a file: the named format if name is
// set, else the one registered for the file's extension once any
// compression suffix is removed, else def. Overrides apply in every case
// and the result is validated.
func ChooseFormat(name, fileName string, def Format, o Overrides) (Format, error) {
	if name != "" {
		return ResolveFormat(name, o)
	}
	_, base := ingest.DetectCompression(filepath.Base(fileName))
	if f, ok := FormatForFile(base); ok {
		return ResolveFormat(f.Name, o)
	}

	f := def.WithOverrides(o)
	if _, err := f.Parser(); err != nil {
		return Format{}, err
	}
	return f, nil
}
