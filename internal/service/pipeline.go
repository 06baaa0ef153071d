package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/timmy/newstagger/internal/domain"
	"github.com/timmy/newstagger/internal/gateway"
	"github.com/timmy/newstagger/internal/logger"
)

// ErrInvalidConcurrency is returned when the worker pool size is below one.
var ErrInvalidConcurrency = errors.New("concurrency must be at least 1")

// RecordTagger runs the two model operations for one article.
// Implementations report failures as Failed outcomes instead of errors.
type RecordTagger interface {
	ExtractTarget(ctx context.Context, text string) domain.ExtractionOutcome
	Summarize(ctx context.Context, text string) domain.SummaryOutcome
}

// PipelineConfig holds configuration for the extraction pipeline.
type PipelineConfig struct {
	Concurrency int
	// BatchTimeout stops dispatching new records once elapsed; 0 disables it.
	BatchTimeout time.Duration
}

// Pipeline fans records out to a fixed pool of workers and returns one row per record.
type Pipeline struct {
	tagger       RecordTagger
	concurrency  int
	batchTimeout time.Duration
}

// NewPipeline creates a pipeline.
// Parameters:
//   - tagger: model operations applied to each record.
//   - cfg: worker pool size and optional batch deadline.
//
// Returns:
//   - *Pipeline: ready to run batches.
//   - error: ErrInvalidConcurrency when cfg.Concurrency < 1.
func NewPipeline(tagger RecordTagger, cfg PipelineConfig) (*Pipeline, error) {
	if cfg.Concurrency < 1 {
		return nil, fmt.Errorf("%w, got %d", ErrInvalidConcurrency, cfg.Concurrency)
	}
	return &Pipeline{
		tagger:       tagger,
		concurrency:  cfg.Concurrency,
		batchTimeout: cfg.BatchTimeout,
	}, nil
}

// PipelineStats summarizes one run.
type PipelineStats struct {
	Total     int
	Succeeded int
	Partial   int
	Failed    int
	Canceled  int
	StartTime time.Time
	EndTime   time.Time
}

// ComputeStats counts rows by status.
func ComputeStats(rows []domain.ResultRow) PipelineStats {
	stats := PipelineStats{Total: len(rows)}
	for _, row := range rows {
		switch row.Status {
		case domain.RowStatusSuccess:
			stats.Succeeded++
		case domain.RowStatusPartialFailure:
			stats.Partial++
		default:
			stats.Failed++
			if row.FailureReason() == string(gateway.KindCanceled) {
				stats.Canceled++
			}
		}
	}
	return stats
}

// Run processes records and returns exactly one row per record, indexed by
// submission position. Only a configuration error is returned; every
// per-record failure is reported on its row.
//
// Cancellation of ctx (or the batch deadline) stops dispatch. Records already
// handed to a worker finish with their own per-call timeouts; records never
// dispatched are returned as failed rows with reason "canceled".
func (p *Pipeline) Run(ctx context.Context, records []domain.NewsRecord) ([]domain.ResultRow, error) {
	if p.concurrency < 1 {
		return nil, fmt.Errorf("%w, got %d", ErrInvalidConcurrency, p.concurrency)
	}
	if len(records) == 0 {
		return []domain.ResultRow{}, nil
	}

	stats := PipelineStats{StartTime: time.Now()}
	ctx = logger.SetComponent(ctx, "pipeline")

	runCtx, cancel := p.WithDeadline(ctx)
	defer cancel()
	// Dispatched records are not interrupted by batch cancellation.
	callCtx := context.WithoutCancel(runCtx)

	workers := p.concurrency
	if workers > len(records) {
		workers = len(records)
	}

	jobsChan := make(chan int)
	resultsChan := make(chan domain.ResultRow, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			p.worker(runCtx, callCtx, workerID, records, jobsChan, resultsChan)
		}(i)
	}

	// Single collector; each row is written once at its own index.
	rows := make([]domain.ResultRow, len(records))
	filled := make([]bool, len(records))
	done := make(chan struct{})
	go func() {
		for row := range resultsChan {
			rows[row.Index] = row
			filled[row.Index] = true
		}
		close(done)
	}()

dispatch:
	for i := range records {
		if runCtx.Err() != nil {
			break
		}
		select {
		case jobsChan <- i:
		case <-runCtx.Done():
			break dispatch
		}
	}

	close(jobsChan)
	wg.Wait()
	close(resultsChan)
	<-done

	for i, ok := range filled {
		if !ok {
			rows[i] = canceledRow(i, records[i])
		}
	}

	counted := ComputeStats(rows)
	counted.StartTime = stats.StartTime
	counted.EndTime = time.Now()
	p.logStats(ctx, counted)

	return rows, nil
}

// WithDeadline bounds ctx by the batch timeout. A Run given the returned
// context keeps its deadline, so several runs can share one batch deadline.
func (p *Pipeline) WithDeadline(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.batchTimeout > 0 {
		return context.WithTimeout(ctx, p.batchTimeout)
	}
	return context.WithCancel(ctx)
}

func (p *Pipeline) worker(runCtx, callCtx context.Context, workerID int, records []domain.NewsRecord, jobs <-chan int, results chan<- domain.ResultRow) {
	for idx := range jobs {
		// Cancellation is observed between records, never mid-call.
		if runCtx.Err() != nil {
			results <- canceledRow(idx, records[idx])
			continue
		}
		recCtx := logger.WithField(logger.SetRecordID(callCtx, records[idx].RecordID), logger.FieldWorkerID, workerID)
		results <- p.processRecord(recCtx, idx, records[idx])
	}
}

// processRecord runs extraction then summarization for one record. A panic
// is confined to the record that raised it.
func (p *Pipeline) processRecord(ctx context.Context, idx int, record domain.NewsRecord) (row domain.ResultRow) {
	defer func() {
		if r := recover(); r != nil {
			logger.FromContext(ctx).WithField(logger.FieldReason, fmt.Sprint(r)).Error("Record processing panicked")
			row = failedRow(idx, record, string(gateway.KindRecord))
		}
	}()

	if strings.TrimSpace(record.Text) == "" {
		logger.FromContext(ctx).Warn("Record has empty text")
		return failedRow(idx, record, string(gateway.KindRecord))
	}

	// A failed extraction is a soft failure: summarization still runs.
	extraction := p.tagger.ExtractTarget(ctx, record.Text)
	summary := p.tagger.Summarize(ctx, record.Text)
	return domain.NewResultRow(idx, record, extraction, summary)
}

func (p *Pipeline) logStats(ctx context.Context, stats PipelineStats) {
	entry := logger.With(logger.Fields{
		"succeeded": stats.Succeeded,
		"partial":   stats.Partial,
		"failed":    stats.Failed,
		"canceled":  stats.Canceled,
	}).WithCount(stats.Total).WithDuration(stats.EndTime.Sub(stats.StartTime).Milliseconds())

	if stats.Failed > 0 {
		entry.Warn(ctx, "Extraction pipeline completed with %d failed record(s)", stats.Failed)
		return
	}
	entry.Info(ctx, "Extraction pipeline completed")
}

func failedRow(idx int, record domain.NewsRecord, reason string) domain.ResultRow {
	return domain.NewResultRow(idx, record, domain.ExtractionFailure(reason), domain.SummaryFailure(reason))
}

func canceledRow(idx int, record domain.NewsRecord) domain.ResultRow {
	return failedRow(idx, record, string(gateway.KindCanceled))
}
