package batch

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/samber/lo"
	"github.com/spf13/afero"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/raaihank/redactor/internal/options"
	"github.com/raaihank/redactor/internal/service"
	"github.com/raaihank/redactor/internal/workspace"
)

const progressEvery = 100

// Pipeline anonymizes a dataset record by record. Every worker owns its
// own workspace, so each workspace sees at most one call at a time.
type Pipeline struct {
	client   service.Anonymizer
	config   Config
	fs       afero.Fs
	recorder workspace.Recorder
	logger   *zap.Logger

	done atomic.Int64
}

// NewPipeline creates a new batch pipeline
func NewPipeline(client service.Anonymizer, config Config, fs afero.Fs, logger *zap.Logger) *Pipeline {
	if config.Workers <= 0 {
		config.Workers = 1
	}
	if config.Burst <= 0 {
		config.Burst = 1
	}
	if config.Options == (options.Set{}) {
		config.Options = options.Default()
	}
	return &Pipeline{
		client: client,
		config: config,
		fs:     fs,
		logger: logger.With(zap.String("component", "batch")),
	}
}

// WithRecorder records every settled submission
func (p *Pipeline) WithRecorder(r workspace.Recorder) *Pipeline {
	p.recorder = r
	return p
}

// ProcessFile reads input, anonymizes every record and writes output.
// Per-record failures are reported in the output; only read, write and
// cancellation errors abort the run.
func (p *Pipeline) ProcessFile(ctx context.Context, input, output string) (*Result, error) {
	start := time.Now()

	records, err := ReadRecords(p.fs, input)
	if err != nil {
		return nil, err
	}

	p.logger.Info("Starting batch run",
		zap.String("input", input),
		zap.String("output", output),
		zap.Int("records", len(records)),
		zap.Int("workers", p.config.Workers),
		zap.Float64("requests_per_sec", p.config.RequestsPerSec))

	rows, err := p.Process(ctx, records)
	if err != nil {
		return nil, err
	}

	if err := WriteOutputs(p.fs, output, rows, p.config.IncludeText); err != nil {
		return nil, err
	}

	result := summarize(rows)
	result.Input = input
	result.Output = output
	result.Duration = time.Since(start)

	p.logger.Info("Batch run completed",
		zap.Int64("total_records", result.TotalRecords),
		zap.Int64("succeeded", result.Succeeded),
		zap.Int64("failed", result.Failed),
		zap.Duration("duration", result.Duration))

	return result, nil
}

// Process anonymizes records and returns one output row per record, in
// input order.
func (p *Pipeline) Process(ctx context.Context, records []Record) ([]Output, error) {
	rows := make([]Output, len(records))
	if len(records) == 0 {
		return rows, nil
	}

	limit := rate.Inf
	if p.config.RequestsPerSec > 0 {
		limit = rate.Limit(p.config.RequestsPerSec)
	}
	limiter := rate.NewLimiter(limit, p.config.Burst)

	p.done.Store(0)
	jobs := make(chan int)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(jobs)
		for i := range records {
			select {
			case jobs <- i:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	workers := min(p.config.Workers, len(records))
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			ws := workspace.New(p.client, p.workspaceOptions()...)
			defer ws.Close()

			for i := range jobs {
				if err := limiter.Wait(gctx); err != nil {
					return err
				}
				row, err := p.processRecord(gctx, ws, records[i])
				if err != nil {
					return err
				}
				rows[i] = row
				p.reportProgress(len(records))
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("batch run aborted: %w", err)
	}
	return rows, nil
}

func (p *Pipeline) processRecord(ctx context.Context, ws *workspace.Workspace, rec Record) (Output, error) {
	ws.SetText(rec.Text)
	state, err := ws.Submit(ctx)
	if err != nil {
		return Output{}, err
	}
	// A cancelled run surfaces as a transport failure; stop instead of
	// recording it against the record.
	if ctx.Err() != nil {
		return Output{}, ctx.Err()
	}

	row := Output{
		ID:             rec.ID,
		AnonymizedText: state.Result,
		ErrorKind:      state.ErrorKind,
		Error:          state.Error,
	}
	if p.config.IncludeText {
		row.Text = rec.Text
	}
	return row, nil
}

func (p *Pipeline) workspaceOptions() []workspace.Option {
	opts := []workspace.Option{
		workspace.WithLogger(p.logger),
		workspace.WithOptions(p.config.Options),
	}
	if p.recorder != nil {
		opts = append(opts, workspace.WithRecorder(p.recorder))
	}
	return opts
}

func (p *Pipeline) reportProgress(total int) {
	done := p.done.Add(1)
	if done%progressEvery == 0 || done == int64(total) {
		p.logger.Info("Processing progress",
			zap.Int64("records_processed", done),
			zap.Int("records_total", total))
	}
}

func summarize(rows []Output) *Result {
	failed := lo.Filter(rows, func(o Output, _ int) bool { return o.Error != "" })
	result := &Result{
		TotalRecords: int64(len(rows)),
		Failed:       int64(len(failed)),
		Succeeded:    int64(len(rows) - len(failed)),
	}
	if len(failed) > 0 {
		result.Errors = lo.CountValuesBy(failed, func(o Output) string { return o.Error })
	}
	return result
}
