// Command flatscan scans flat files and prints each row as a JSON line.
//
// Usage:
//
//	flatscan [flags] [file ...]
//
// With no files, or "-", it reads standard input. Compressed inputs (.gz,
// .zst, .xz) are decompressed by suffix. Defaults come from the FORMAT_*,
// LOAD_* and LOG_* environment variables the server reads, and from .env.
// Rows go to stdout; logs and the per-file summary go to stderr.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/JonMunkholm/flatload/internal/config"
	"github.com/JonMunkholm/flatload/internal/flatfile"
	"github.com/JonMunkholm/flatload/internal/ingest"
	"github.com/JonMunkholm/flatload/internal/loader"
	"github.com/JonMunkholm/flatload/internal/logging"
	"github.com/dustin/go-humanize"
	"github.com/joho/godotenv"
)

func main() {
	// Environment wins over .env for a command line tool.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, "flatscan:", err)
		os.Exit(1)
	}
}

type options struct {
	format    string
	delimiter string
	quote     string
	escape    string
	trim      bool
	widths    string
	columns   int
	maxLength int
	lenient   bool
	raw       bool
	limit     int
	stdinName string

	bufferSize string
	maxRowSize string
	logLevel   string
	logFormat  string
}

// record is one output line.
type record struct {
	File   string `json:"file,omitempty"`
	Row    int    `json:"row"`
	Offset int64  `json:"offset"`
	Status string `json:"status"`
	Values []any  `json:"values"` // string, or nil for a column the row lacks
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	var (
		formatCfg config.FormatConfig
		loadCfg   config.LoadConfig
		logCfg    config.LoggingConfig
	)
	for _, section := range []any{&formatCfg, &loadCfg, &logCfg} {
		if err := config.LoadInto(section); err != nil {
			return err
		}
	}

	var opts options
	fs := flag.NewFlagSet("flatscan", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.format, "format", "", "format name (csv, tsv, psv, fixed); default by file extension, then FORMAT_DEFAULT")
	fs.StringVar(&opts.delimiter, "delimiter", "", "field delimiter override: a byte, \\t, 0x7c, tab, pipe, none")
	fs.StringVar(&opts.quote, "quote", "", "quote character override")
	fs.StringVar(&opts.escape, "escape", "", "escape character override")
	fs.BoolVar(&opts.trim, "trim", false, "trim leading spaces of unquoted values")
	fs.StringVar(&opts.widths, "widths", "", "comma-separated column widths for fixed-width files")
	fs.IntVar(&opts.columns, "columns", 0, "expected column count; 0 accepts any")
	fs.IntVar(&opts.maxLength, "max-length", 0, "advisory maximum column length")
	fs.BoolVar(&opts.lenient, "lenient", false, "tolerate rows with the wrong column count")
	fs.BoolVar(&opts.raw, "raw", false, "print values as scanned, quotes and escapes included")
	fs.IntVar(&opts.limit, "limit", 0, "stop after this many rows per file; 0 scans all")
	fs.StringVar(&opts.stdinName, "name", "", "file name for stdin, used to detect compression and format")
	fs.StringVar(&opts.bufferSize, "buffer-size", loadCfg.BufferSize.String(), "initial read window")
	fs.StringVar(&opts.maxRowSize, "max-row-size", loadCfg.MaxRowSize.String(), "largest row accepted")
	fs.StringVar(&opts.logLevel, "log-level", logCfg.Level, "debug, info, warn or error")
	fs.StringVar(&opts.logFormat, "log-format", logCfg.Format, "text or json")
	if err := fs.Parse(args); err != nil {
		return err
	}

	s := &scanner{
		opts:   opts,
		stdin:  stdin,
		logger: logging.New(stderr, opts.logLevel, opts.logFormat),
	}

	var err error
	if s.def, err = formatCfg.Resolve(); err != nil {
		return err
	}
	if s.overrides, err = overridesFromFlags(fs, opts); err != nil {
		return err
	}
	if s.widths, err = parseWidths(opts.widths); err != nil {
		return err
	}
	if s.readerOpts, err = readerOptions(opts); err != nil {
		return err
	}

	files := fs.Args()
	if len(files) == 0 {
		files = []string{"-"}
	}
	s.multi = len(files) > 1

	w := bufio.NewWriter(stdout)
	s.out = json.NewEncoder(w)
	for _, file := range files {
		if err := s.scanFile(ctx, file); err != nil {
			w.Flush()
			return err
		}
	}
	return w.Flush()
}

// overridesFromFlags turns the character flags that were set into format
// overrides.
func overridesFromFlags(fs *flag.FlagSet, opts options) (loader.Overrides, error) {
	var o loader.Overrides
	var err error
	fs.Visit(func(f *flag.Flag) {
		if err != nil {
			return
		}
		var dst **byte
		var value string
		switch f.Name {
		case "delimiter":
			dst, value = &o.Delimiter, opts.delimiter
		case "quote":
			dst, value = &o.Quote, opts.quote
		case "escape":
			dst, value = &o.Escape, opts.escape
		case "trim":
			trim := opts.trim
			o.Trim = &trim
			return
		default:
			return
		}
		var c byte
		if c, err = loader.ParseChar(value); err != nil {
			err = fmt.Errorf("-%s: %w", f.Name, err)
			return
		}
		*dst = &c
	})
	return o, err
}

func parseWidths(s string) ([]int, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	widths := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("-widths: %w: %q", loader.ErrWidths, p)
		}
		widths[i] = n
	}
	return widths, nil
}

func readerOptions(opts options) (ingest.Options, error) {
	buffer, err := humanize.ParseBytes(opts.bufferSize)
	if err != nil {
		return ingest.Options{}, fmt.Errorf("-buffer-size: %w", err)
	}
	maxRow, err := humanize.ParseBytes(opts.maxRowSize)
	if err != nil {
		return ingest.Options{}, fmt.Errorf("-max-row-size: %w", err)
	}
	if maxRow < buffer {
		return ingest.Options{}, fmt.Errorf("-max-row-size %s is smaller than -buffer-size %s",
			humanize.IBytes(maxRow), humanize.IBytes(buffer))
	}
	return ingest.Options{BufferSize: int(buffer), MaxRowSize: int(maxRow)}, nil
}

type scanner struct {
	opts       options
	def        loader.Format
	overrides  loader.Overrides
	widths     []int
	readerOpts ingest.Options

	stdin  io.Reader
	out    *json.Encoder
	logger *slog.Logger
	multi  bool // name the file on every record
}

func (s *scanner) schema(format loader.Format) (*flatfile.Schema, error) {
	if format.Fixed() {
		if len(s.widths) == 0 {
			return nil, fmt.Errorf("format %s: %w: -widths is required", format.Name, loader.ErrWidths)
		}
		return flatfile.NewSchema(flatfile.FixedWidths(s.widths...), flatfile.SchemaOptions{Lenient: s.opts.lenient})
	}
	if s.opts.columns > 0 {
		return flatfile.NewSchema(flatfile.Columns(s.opts.columns, s.opts.maxLength), flatfile.SchemaOptions{Lenient: s.opts.lenient})
	}
	return flatfile.NewSchema(flatfile.Columns(loader.PreviewMaxColumns, s.opts.maxLength), flatfile.SchemaOptions{Unbounded: true})
}

func (s *scanner) scanFile(ctx context.Context, path string) error {
	name := path
	var src io.Reader
	if path == "-" {
		src, name = s.stdin, s.opts.stdinName
	} else {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		src = f
	}

	format, err := loader.ChooseFormat(s.opts.format, name, s.def, s.overrides)
	if err != nil {
		return err
	}
	parser, err := format.Parser()
	if err != nil {
		return err
	}
	schema, err := s.schema(format)
	if err != nil {
		return err
	}

	counter := ingest.NewCountingReader(src, 0)
	rc, _, err := ingest.Decompress(name, counter)
	if err != nil {
		return err
	}
	defer rc.Close()

	start := time.Now()
	reader := ingest.NewReader(rc, parser, schema, s.readerOpts)
	statuses := make(map[flatfile.Status]int)
	rows := 0

	var row flatfile.RowResult
	for s.opts.limit <= 0 || rows < s.opts.limit {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := reader.Next(&row)
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("%s: row %d: %w", path, reader.Row()+1, err)
		}
		if row.Status == flatfile.StatusOK && !s.opts.raw {
			parser.StripQuoting(&row, format.TrimLeadingSpace)
		}

		rec := record{
			Row:    reader.Row(),
			Offset: reader.Offset(),
			Status: row.Status.String(),
			Values: values(&row),
		}
		if s.multi {
			rec.File = path
		}
		if err := s.out.Encode(rec); err != nil {
			return err
		}
		rows++
		statuses[row.Status]++
	}

	args := []any{
		"file", path,
		"format", format.Name,
		"rows", rows,
		"read", humanize.IBytes(uint64(counter.BytesRead())),
		"duration", time.Since(start).Round(time.Millisecond),
	}
	for status, n := range statuses {
		if status != flatfile.StatusOK {
			args = append(args, status.String(), n)
		}
	}
	s.logger.Info("scanned", args...)
	return nil
}

func values(row *flatfile.RowResult) []any {
	out := make([]any, row.Len())
	for i := range out {
		if !row.IsNull(i) {
			out[i] = string(row.Value(i))
		}
	}
	return out
}
