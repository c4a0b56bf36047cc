package loader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/JonMunkholm/flatload/internal/flatfile"
	"github.com/JonMunkholm/flatload/internal/ingest"
	"github.com/JonMunkholm/flatload/internal/logging"
	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
)

// ErrLoadNotFound is returned for unknown or expired load ids.
var ErrLoadNotFound = errors.New("load not found")

// Options configure a Service. Zero values take the defaults below.
type Options struct {
	LoadTimeout   time.Duration
	MaxConcurrent int
	MaxWait       time.Duration
	BufferSize    int
	MaxRowSize    int
	RetainResults time.Duration // how long finished loads stay queryable
}

const (
	DefaultLoadTimeout   = 30 * time.Minute
	DefaultRetainResults = 15 * time.Minute
)

// Service runs loads in the background and tracks their progress.
type Service struct {
	pool    Pool
	limiter *Limiter
	opts    Options

	// describe is DescribeTable; tests replace it.
	describe func(ctx context.Context, db DBTX, schema, name string) (Table, error)

	mu    sync.RWMutex
	loads map[string]*activeLoad
}

type activeLoad struct {
	id     string
	req    LoadRequest
	cancel context.CancelFunc
	done   chan struct{}

	mu       sync.Mutex
	progress LoadProgress
	result   *LoadResult
	counter  *ingest.CountingReader
}

// NewService creates a Service loading through pool.
func NewService(pool Pool, opts Options) *Service {
	if opts.LoadTimeout <= 0 {
		opts.LoadTimeout = DefaultLoadTimeout
	}
	if opts.RetainResults <= 0 {
		opts.RetainResults = DefaultRetainResults
	}
	if opts.MaxRowSize <= 0 {
		opts.MaxRowSize = ingest.DefaultMaxRowSize
	}
	return &Service{
		pool:     pool,
		limiter:  NewLimiter(opts.MaxConcurrent, opts.MaxWait),
		opts:     opts,
		describe: DescribeTable,
		loads:    make(map[string]*activeLoad),
	}
}

// Limiter returns the service's concurrency limiter.
func (s *Service) Limiter() *Limiter { return s.limiter }

// LimiterStatus reports load slot usage.
func (s *Service) LimiterStatus() LimiterStatus { return s.limiter.Status() }

// DescribeTable reads the layout of a destination table.
func (s *Service) DescribeTable(ctx context.Context, schema, name string) (Table, error) {
	return s.describe(ctx, s.pool, schema, name)
}

// StartLoad validates req against the destination table and starts loading
// body in the background. It returns the load id immediately. body is
// closed when the load finishes, or before StartLoad returns an error.
//
// Returns ErrTooManyLoads if the concurrent load limit is reached and no
// slot becomes available within the wait time.
func (s *Service) StartLoad(ctx context.Context, req LoadRequest, body io.ReadCloser) (string, error) {
	started := false
	defer func() {
		if !started {
			body.Close()
		}
	}()

	if req.Schema == "" {
		req.Schema = DefaultSchema
	}
	table, err := s.describe(ctx, s.pool, req.Schema, req.Table)
	if err != nil {
		return "", err
	}
	if err := checkHeaderMatch(req); err != nil {
		return "", err
	}
	plan, err := NewPlan(table, req)
	if err != nil {
		return "", err
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		return "", err
	}

	id := uuid.New().String()
	loadCtx, cancel := context.WithTimeout(context.Background(), s.opts.LoadTimeout)

	load := &activeLoad{
		id:     id,
		req:    req,
		cancel: cancel,
		done:   make(chan struct{}),
		progress: LoadProgress{
			LoadID:     id,
			Table:      req.Table,
			FileName:   req.FileName,
			Phase:      PhaseStarting,
			BytesTotal: req.Size,
		},
	}

	s.mu.Lock()
	s.loads[id] = load
	s.mu.Unlock()

	logger := logging.WithFields(ctx,
		"load_id", id,
		"table", table.Schema+"."+table.Name,
		"file", req.FileName,
	)

	started = true
	go func() {
		defer s.limiter.Release()
		defer cancel()
		defer func() {
			if r := recover(); r != nil {
				logger.Error("panic in load", "panic", r)
				load.finish(&LoadResult{Error: fmt.Sprintf("internal error: %v", r)}, PhaseFailed)
			}
			close(load.done)
			s.cleanup(id, s.opts.RetainResults)
		}()
		defer body.Close()

		s.runLoad(loadCtx, logger, load, plan, body)
	}()

	return id, nil
}

// runLoad streams body into the destination table inside one transaction.
// Any failure rolls the whole load back.
func (s *Service) runLoad(ctx context.Context, logger *slog.Logger, load *activeLoad, plan *Plan, body io.Reader) {
	start := time.Now()
	logger.Info("load started",
		"size", humanize.IBytes(uint64(load.req.Size)),
		"replace", load.req.Replace,
		"match_header", load.req.MatchHeader,
	)

	counter := ingest.NewCountingReader(body, load.req.Size)
	load.mu.Lock()
	load.counter = counter
	load.progress.Phase = PhaseLoading
	load.mu.Unlock()

	src, err := s.copyRows(ctx, load, plan, counter)

	result := &LoadResult{Duration: time.Since(start)}
	phase := PhaseComplete
	if src != nil {
		result.RowsRead = src.read
		result.Loaded = src.loaded
		result.Rejected = src.rejected
		result.RejectedRows = src.kept
	}
	switch {
	case err != nil && ctx.Err() != nil && !errors.Is(ctx.Err(), context.DeadlineExceeded):
		phase = PhaseCancelled
		result.Error = "load cancelled"
		result.Loaded = 0
	case err != nil:
		phase = PhaseFailed
		result.Error = err.Error()
		result.Loaded = 0
	}
	load.finish(result, phase)

	if phase == PhaseComplete {
		logger.Info("load completed",
			"rows", result.RowsRead,
			"loaded", result.Loaded,
			"rejected", result.Rejected,
			"bytes", humanize.IBytes(uint64(counter.BytesRead())),
			"duration_ms", result.Duration.Milliseconds(),
		)
	} else {
		logger.Warn("load did not complete",
			"phase", phase,
			"error", err,
			"rows", result.RowsRead,
			"rejected", result.Rejected,
			"duration_ms", result.Duration.Milliseconds(),
		)
	}
}

func (s *Service) copyRows(ctx context.Context, load *activeLoad, plan *Plan, body io.Reader) (*rowSource, error) {
	rc, _, err := ingest.Decompress(load.req.FileName, body)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	reader := ingest.NewReader(rc, plan.Parser, plan.Schema, ingest.Options{
		BufferSize: s.opts.BufferSize,
		MaxRowSize: s.opts.MaxRowSize,
	})
	if load.req.MatchHeader {
		if plan, err = readHeader(reader, plan, load.req); err != nil {
			return nil, err
		}
	}
	src := newRowSource(ctx, reader, plan, sourceOptions{
		HeaderRows:  load.req.HeaderRows,
		MaxRejected: load.req.MaxRejected,
		MaxRowSize:  s.opts.MaxRowSize,
		OnProgress:  load.update,
	})

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return src, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(context.Background()) // No-op if already committed

	if load.req.Replace {
		if _, err := tx.Exec(ctx, "TRUNCATE TABLE "+plan.Table.Identifier().Sanitize()); err != nil {
			return src, fmt.Errorf("truncate %s: %w", plan.Table.Name, err)
		}
	}

	if _, err := tx.CopyFrom(ctx, plan.Table.Identifier(), plan.ColumnNames(), src); err != nil {
		if srcErr := src.Err(); srcErr != nil {
			return src, srcErr
		}
		return src, fmt.Errorf("copy into %s: %w", plan.Table.Name, err)
	}
	if err := src.Err(); err != nil {
		return src, err
	}
	if err := tx.Commit(ctx); err != nil {
		return src, fmt.Errorf("commit: %w", err)
	}
	return src, nil
}

// update records row counts reported by the source.
func (l *activeLoad) update(read, loaded, rejected int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.progress.RowsRead = read
	l.progress.Loaded = loaded
	l.progress.Rejected = rejected
}

// finish stores the final result.
func (l *activeLoad) finish(result *LoadResult, phase LoadPhase) {
	l.mu.Lock()
	defer l.mu.Unlock()

	result.LoadID = l.id
	result.Table = l.req.Table
	result.FileName = l.req.FileName
	result.Phase = phase
	l.result = result

	l.progress.Phase = phase
	l.progress.RowsRead = result.RowsRead
	l.progress.Loaded = result.Loaded
	l.progress.Rejected = result.Rejected
	l.progress.Error = result.Error
}

func (l *activeLoad) snapshot() LoadProgress {
	l.mu.Lock()
	defer l.mu.Unlock()
	p := l.progress
	if l.counter != nil {
		p.BytesRead = l.counter.BytesRead()
	}
	return p
}

func (s *Service) lookup(id string) (*activeLoad, error) {
	s.mu.RLock()
	load, ok := s.loads[id]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLoadNotFound, id)
	}
	return load, nil
}

// Progress returns the current progress without blocking.
func (s *Service) Progress(id string) (LoadProgress, error) {
	load, err := s.lookup(id)
	if err != nil {
		return LoadProgress{}, err
	}
	return load.snapshot(), nil
}

// Result returns the result of a load, blocking until it completes or ctx
// is done.
func (s *Service) Result(ctx context.Context, id string) (*LoadResult, error) {
	load, err := s.lookup(id)
	if err != nil {
		return nil, err
	}

	select {
	case <-load.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	load.mu.Lock()
	defer load.mu.Unlock()
	return load.result, nil
}

// Cancel cancels an in-progress load. Cancelling a finished load is a
// no-op.
func (s *Service) Cancel(id string) error {
	load, err := s.lookup(id)
	if err != nil {
		return err
	}
	load.cancel()
	return nil
}

// WaitForLoads blocks until all running loads finish or ctx is done.
func (s *Service) WaitForLoads(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}

// cleanup removes the load from tracking after a delay.
func (s *Service) cleanup(id string, delay time.Duration) {
	time.AfterFunc(delay, func() {
		s.mu.Lock()
		delete(s.loads, id)
		s.mu.Unlock()
	})
}

// PreviewMaxColumns bounds the columns scanned per row by Preview.
var PreviewMaxColumns = 256

// DefaultPreviewRows is the number of rows Preview returns when the request
// does not say.
const DefaultPreviewRows = 20

// MaxPreviewRows caps PreviewRequest.Rows.
const MaxPreviewRows = 1000

// PreviewRequest describes a scan-only look at the start of a file.
type PreviewRequest struct {
	FileName string
	Format   Format
	Widths   []int // fixed-width formats only
	Rows     int
}

// PreviewRow is one scanned row.
type PreviewRow struct {
	Row    int      `json:"row"`
	Offset int64    `json:"offset"`
	Status string   `json:"status"`
	Values []string `json:"values"`
}

// PreviewResult is the outcome of Preview.
type PreviewResult struct {
	Format    string       `json:"format"`
	Escaping  string       `json:"escaping"`
	Rows      []PreviewRow `json:"rows"`
	Truncated bool         `json:"truncated"` // more rows follow
}

// Preview scans the first rows of body with req.Format without touching
// the database.
func (s *Service) Preview(ctx context.Context, req PreviewRequest, body io.Reader) (*PreviewResult, error) {
	parser, err := req.Format.Parser()
	if err != nil {
		return nil, err
	}

	var schema *flatfile.Schema
	if req.Format.Fixed() {
		if len(req.Widths) == 0 {
			return nil, fmt.Errorf("%w: fixed-width preview needs widths", ErrWidths)
		}
		schema, err = flatfile.NewSchema(flatfile.FixedWidths(req.Widths...), flatfile.SchemaOptions{Lenient: true})
	} else {
		schema, err = flatfile.NewSchema(flatfile.Columns(PreviewMaxColumns, 0), flatfile.SchemaOptions{Unbounded: true})
	}
	if err != nil {
		return nil, fmt.Errorf("build schema: %w", err)
	}

	limit := req.Rows
	if limit <= 0 {
		limit = DefaultPreviewRows
	}
	if limit > MaxPreviewRows {
		limit = MaxPreviewRows
	}

	rc, _, err := ingest.Decompress(req.FileName, body)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	reader := ingest.NewReader(rc, parser, schema, ingest.Options{
		BufferSize: s.opts.BufferSize,
		MaxRowSize: s.opts.MaxRowSize,
	})

	result := &PreviewResult{
		Format:   req.Format.Name,
		Escaping: parser.Escaping().String(),
		Rows:     make([]PreviewRow, 0, limit),
	}
	var row flatfile.RowResult
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		err := reader.Next(&row)
		if err == io.EOF {
			return result, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", reader.Row()+1, err)
		}
		if len(result.Rows) == limit {
			result.Truncated = true
			return result, nil
		}
		if row.Status == flatfile.StatusOK {
			parser.StripQuoting(&row, req.Format.TrimLeadingSpace)
		}
		result.Rows = append(result.Rows, PreviewRow{
			Row:    reader.Row(),
			Offset: reader.Offset(),
			Status: row.Status.String(),
			Values: row.Strings(),
		})
	}
}
