package loader

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/JonMunkholm/flatload/internal/flatfile"
	"github.com/JonMunkholm/flatload/internal/ingest"
	"github.com/dustin/go-humanize"
)

// ErrTooManyRejected aborts a load once more rows were rejected than the
// request allows.
var ErrTooManyRejected = errors.New("too many rejected rows")

// ContextCheckInterval is how often, in rows, the source checks for
// cancellation.
var ContextCheckInterval = 100

// ProgressInterval is how often, in rows, progress is reported.
var ProgressInterval = 1000

// MaxRejectedKept caps the rejected rows retained for the result. Rows past
// the cap are still counted.
var MaxRejectedKept = 1000

type sourceOptions struct {
	HeaderRows  int
	MaxRejected int
	MaxRowSize  int
	OnProgress  func(read, loaded, rejected int)
}

// rowSource feeds scanned, converted rows to pgx CopyFrom. It implements
// pgx.CopyFromSource.
type rowSource struct {
	ctx    context.Context
	reader *ingest.Reader
	plan   *Plan
	opts   sourceOptions

	row    flatfile.RowResult
	values []any

	read     int // data rows, header rows excluded
	loaded   int
	rejected int
	kept     []RejectedRow
	err      error
}

func newRowSource(ctx context.Context, reader *ingest.Reader, plan *Plan, opts sourceOptions) *rowSource {
	return &rowSource{
		ctx:    ctx,
		reader: reader,
		plan:   plan,
		opts:   opts,
		values: make([]any, len(plan.Columns)),
	}
}

// Next advances to the next loadable row, rejecting malformed rows on the
// way.
func (s *rowSource) Next() bool {
	if s.err != nil {
		return false
	}
	for {
		if err := s.reader.Next(&s.row); err != nil {
			if err != io.EOF {
				s.err = fmt.Errorf("read row %d: %w", s.reader.Row()+1, err)
			}
			s.report()
			return false
		}

		if s.reader.Row() <= s.opts.HeaderRows {
			continue
		}
		s.read++

		if s.read%ContextCheckInterval == 0 {
			if err := s.ctx.Err(); err != nil {
				s.err = err
				return false
			}
		}
		if s.read%ProgressInterval == 0 {
			s.report()
		}

		if reason := s.convert(); reason != "" {
			if !s.reject(reason) {
				return false
			}
			continue
		}
		s.loaded++
		return true
	}
}

// convert fills values from the current row and returns a rejection reason
// or "".
func (s *rowSource) convert() string {
	switch s.row.Status {
	case flatfile.StatusOK:
	case flatfile.StatusRowTooLarge:
		return fmt.Sprintf("row too large: exceeds %s", humanize.IBytes(uint64(s.opts.MaxRowSize)))
	default:
		return s.row.Status.Err().Error()
	}

	s.plan.Parser.StripQuoting(&s.row, s.plan.Trim)
	for i, col := range s.plan.Columns {
		v, err := Convert(col, s.row.Value(i))
		if err != nil {
			return err.Error()
		}
		s.values[i] = v
	}
	return ""
}

// reject records the current row. It returns false once the load must stop.
func (s *rowSource) reject(reason string) bool {
	s.rejected++
	if len(s.kept) < MaxRejectedKept {
		r := RejectedRow{
			Row:    s.reader.Row(),
			Offset: s.reader.Offset(),
			Reason: reason,
		}
		if s.row.Status != flatfile.StatusRowTooLarge {
			r.Data = s.row.Strings()
		}
		s.kept = append(s.kept, r)
	}
	if s.opts.MaxRejected >= 0 && s.rejected > s.opts.MaxRejected {
		s.err = fmt.Errorf("%w: %d rejected, limit %d", ErrTooManyRejected, s.rejected, s.opts.MaxRejected)
		return false
	}
	return true
}

func (s *rowSource) report() {
	if s.opts.OnProgress != nil {
		s.opts.OnProgress(s.read, s.loaded, s.rejected)
	}
}

// Values returns the converted values of the current row. The slice is
// reused by the next call to Next.
func (s *rowSource) Values() ([]any, error) {
	return s.values, nil
}

// Err returns the error that stopped the source, if any.
func (s *rowSource) Err() error {
	return s.err
}
