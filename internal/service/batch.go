package service

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/timmy/newstagger/internal/domain"
	"github.com/timmy/newstagger/internal/export"
	"github.com/timmy/newstagger/internal/logger"
	"github.com/timmy/newstagger/internal/source"
	"github.com/timmy/newstagger/internal/storage"
)

// DateWindow returns the inclusive date range ending yesterday. With
// daysBack > 0 the window starts daysBack days before today; otherwise
// Monday looks back three days (over the weekend) and other days two.
func DateWindow(today time.Time, daysBack int) source.Window {
	y, m, d := today.Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, today.Location())

	if daysBack <= 0 {
		daysBack = 2
		if day.Weekday() == time.Monday {
			daysBack = 3
		}
	}
	return source.Window{
		Start: day.AddDate(0, 0, -daysBack),
		End:   day.AddDate(0, 0, -1),
	}
}

// ResultStore persists result rows.
type ResultStore interface {
	UpsertRows(ctx context.Context, batchID string, rows []domain.ResultRow) error
}

// JobStore persists batch job records.
type JobStore interface {
	Create(ctx context.Context, job *domain.BatchJob) error
	Update(ctx context.Context, job *domain.BatchJob) error
}

// BatchConfig holds configuration for the batch service.
type BatchConfig struct {
	DaysBack        int
	RetryFailedPass bool
	OutputDir       string
	StoragePrefix   string
}

// BatchService runs one date window end to end: fetch, tag, assemble, export.
type BatchService struct {
	source   source.Source
	pipeline *Pipeline
	results  ResultStore           // optional
	jobs     JobStore              // optional
	storage  storage.ObjectStorage // optional
	cfg      BatchConfig
}

// NewBatchService creates a new batch service. results, jobs and store may be nil.
func NewBatchService(
	src source.Source,
	pipeline *Pipeline,
	results ResultStore,
	jobs JobStore,
	store storage.ObjectStorage,
	cfg BatchConfig,
) *BatchService {
	return &BatchService{
		source:   src,
		pipeline: pipeline,
		results:  results,
		jobs:     jobs,
		storage:  store,
		cfg:      cfg,
	}
}

// BatchReport is the outcome of one batch run.
type BatchReport struct {
	Job   *domain.BatchJob
	Table domain.Table
	Stats PipelineStats
}

// Run processes the window ending the day before today.
// Parameters:
//   - ctx: context; cancellation stops dispatch but the table is still written.
//   - today: reference date for the window.
//
// Returns:
//   - *BatchReport: job record, assembled table and stats.
//   - error: non-nil if fetching, configuration or the CSV export fails.
func (s *BatchService) Run(ctx context.Context, today time.Time) (*BatchReport, error) {
	window := DateWindow(today, s.cfg.DaysBack)
	startedAt := time.Now()

	job := &domain.BatchJob{
		ID:          uuid.New().String(),
		SourceID:    s.source.SourceID(),
		WindowStart: window.StartKey(),
		WindowEnd:   window.EndKey(),
		Status:      domain.JobStatusRunning,
		StartedAt:   &startedAt,
	}
	ctx = logger.SetBatchID(ctx, job.ID)
	log := logger.FromContext(ctx)

	if s.jobs != nil {
		if err := s.jobs.Create(ctx, job); err != nil {
			log.WithError(err).Warn("Failed to create batch job record")
		}
	}

	log.WithFields(logger.Fields{
		logger.FieldSource: job.SourceID,
		"window_start":     job.WindowStart,
		"window_end":       job.WindowEnd,
	}).Info("Starting batch")

	records, err := s.source.Fetch(ctx, window)
	if err != nil {
		return nil, s.fail(ctx, job, fmt.Errorf("failed to fetch news: %w", err))
	}

	// One deadline covers both passes.
	runCtx, cancel := s.pipeline.WithDeadline(ctx)
	defer cancel()

	rows, err := s.pipeline.Run(runCtx, records)
	if err != nil {
		return nil, s.fail(ctx, job, err)
	}

	if s.cfg.RetryFailedPass {
		if canceled := ComputeStats(rows).Canceled; canceled > 0 || runCtx.Err() != nil {
			log.WithField("canceled", canceled).Warn("Batch interrupted, skipping retry pass")
		} else {
			rows, err = s.retryFailed(runCtx, rows)
			if err != nil {
				return nil, s.fail(ctx, job, err)
			}
		}
	}

	table := Collect(rows)
	stats := ComputeStats(rows)
	stats.StartTime = startedAt
	stats.EndTime = time.Now()

	path, err := export.SaveCSV(s.cfg.OutputDir, window.End, table)
	if err != nil {
		return nil, s.fail(ctx, job, err)
	}
	job.ExportPath = path
	log.WithField("path", path).Info("Exported table")

	// Upload and persistence failures are recorded but do not fail the batch;
	// the CSV already holds the full result.
	sinkCtx := context.WithoutCancel(ctx)
	var sinkErrs []string
	if s.storage != nil {
		key := storage.ExportKey(s.cfg.StoragePrefix, window.End, filepath.Base(path))
		url, err := storage.UploadFile(sinkCtx, s.storage, key, path)
		if err != nil {
			log.WithError(err).Error("Failed to upload export")
			sinkErrs = append(sinkErrs, err.Error())
		} else {
			job.ExportURL = url
			log.WithField("url", url).Info("Uploaded export")
		}
	}
	if s.results != nil {
		if err := s.results.UpsertRows(sinkCtx, job.ID, rows); err != nil {
			log.WithError(err).Error("Failed to persist result rows")
			sinkErrs = append(sinkErrs, err.Error())
		}
	}

	completedAt := time.Now()
	job.Status = domain.JobStatusCompleted
	job.CompletedAt = &completedAt
	job.TotalItems = stats.Total
	job.SucceededItems = stats.Succeeded
	job.PartialItems = stats.Partial
	job.FailedItems = stats.Failed
	job.ErrorLog = strings.Join(sinkErrs, "; ")
	s.saveJob(ctx, job)

	logger.With(logger.Fields{
		"succeeded": stats.Succeeded,
		"partial":   stats.Partial,
		"failed":    stats.Failed,
	}).WithCount(stats.Total).
		WithDuration(stats.EndTime.Sub(stats.StartTime).Milliseconds()).
		WithStatus(string(job.Status)).
		Info(ctx, "Batch completed")

	return &BatchReport{Job: job, Table: table, Stats: stats}, nil
}

// retryFailed re-runs every row that is not a success once and keeps the
// new row only when its status is strictly better.
func (s *BatchService) retryFailed(ctx context.Context, rows []domain.ResultRow) ([]domain.ResultRow, error) {
	var retryIdx []int
	var retryRecords []domain.NewsRecord
	for i, row := range rows {
		if row.Status != domain.RowStatusSuccess {
			retryIdx = append(retryIdx, i)
			retryRecords = append(retryRecords, row.Record)
		}
	}
	if len(retryRecords) == 0 {
		return rows, nil
	}

	logger.FromContext(ctx).WithField(logger.FieldCount, len(retryRecords)).Warn("Found incomplete records, starting retry")

	retried, err := s.pipeline.Run(ctx, retryRecords)
	if err != nil {
		return nil, err
	}

	merged := make([]domain.ResultRow, len(rows))
	copy(merged, rows)
	improved := 0
	for j, row := range retried {
		i := retryIdx[j]
		if row.Status.Better(merged[i].Status) {
			row.Index = merged[i].Index
			merged[i] = row
			improved++
		}
	}

	logger.FromContext(ctx).WithFields(logger.Fields{
		logger.FieldCount: len(retryRecords),
		"improved":        improved,
	}).Info("Retry pass completed")
	return merged, nil
}

func (s *BatchService) fail(ctx context.Context, job *domain.BatchJob, err error) error {
	completedAt := time.Now()
	job.Status = domain.JobStatusFailed
	job.CompletedAt = &completedAt
	job.ErrorLog = err.Error()
	s.saveJob(ctx, job)

	logger.FromContext(ctx).WithError(err).Error("Batch failed")
	return err
}

func (s *BatchService) saveJob(ctx context.Context, job *domain.BatchJob) {
	if s.jobs == nil {
		return
	}
	// The job record must be written even when the batch was canceled.
	if err := s.jobs.Update(context.WithoutCancel(ctx), job); err != nil {
		logger.FromContext(ctx).WithError(err).Warn("Failed to update batch job record")
	}
}
