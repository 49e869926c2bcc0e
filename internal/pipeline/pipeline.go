package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/crime-incident-etl/internal/domain"
	"github.com/couchcryptid/crime-incident-etl/internal/observability"
)

const (
	initialBackoff = 200 * time.Millisecond
	maxBackoff     = 5 * time.Second

	metricsSource = "kafka"
)

// BatchExtractor reads up to batchSize raw uploads from the source.
type BatchExtractor interface {
	ExtractBatch(ctx context.Context, batchSize int) ([]domain.RawUpload, error)
}

// Transformer turns one raw upload into a normalized dataset and its sink messages.
type Transformer interface {
	Transform(ctx context.Context, raw domain.RawUpload) (Result, error)
}

// BatchLoader writes multiple output events to the destination.
type BatchLoader interface {
	LoadBatch(ctx context.Context, events []domain.OutputEvent) error
}

// DatasetSink receives every dataset once its records are loaded.
type DatasetSink interface {
	ReplaceLatest(ds domain.Dataset, source string)
}

// Result is the outcome of transforming one upload.
type Result struct {
	Source  string
	Dataset domain.Dataset
	Events  []domain.OutputEvent
}

// Pipeline orchestrates the extract-transform-load loop.
type Pipeline struct {
	extractor   BatchExtractor
	transformer Transformer
	loader      BatchLoader
	sink        DatasetSink
	logger      *slog.Logger
	metrics     *observability.Metrics
	ready       atomic.Bool
	batchSize   int
}

// New creates a Pipeline with the given stages and observability. sink may be nil.
func New(e BatchExtractor, t Transformer, l BatchLoader, sink DatasetSink, logger *slog.Logger, metrics *observability.Metrics, batchSize int) *Pipeline {
	if batchSize < 1 {
		batchSize = 1
	}
	return &Pipeline{
		extractor:   e,
		transformer: t,
		loader:      l,
		sink:        sink,
		logger:      logger,
		metrics:     metrics,
		batchSize:   batchSize,
	}
}

// CheckReadiness returns nil while the pipeline is running and its last load
// succeeded.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("upload pipeline is not running or its sink is failing")
	}
	return nil
}

// Run executes the batch ETL loop until the context is cancelled.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("pipeline started", "batch_size", p.batchSize)
	p.metrics.PipelineRunning.Set(1)
	p.ready.Store(true)
	defer func() {
		p.ready.Store(false)
		p.metrics.PipelineRunning.Set(0)
	}()

	backoff := initialBackoff
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("pipeline stopping", "reason", ctx.Err())
			return nil
		default:
		}

		if !p.processBatch(ctx, &backoff) {
			return nil
		}
	}
}

// processBatch runs one extract-transform-load cycle. Returns false if the pipeline should stop.
func (p *Pipeline) processBatch(ctx context.Context, backoff *time.Duration) bool {
	start := time.Now()

	rawBatch, err := p.extractor.ExtractBatch(ctx, p.batchSize)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		p.logger.Error("extract batch failed", "error", err)
		return p.backoffOrStop(ctx, backoff)
	}

	if len(rawBatch) == 0 {
		return ctx.Err() == nil
	}

	p.metrics.BatchSize.Observe(float64(len(rawBatch)))
	*backoff = initialBackoff

	if !p.transformAndLoad(ctx, rawBatch, backoff) {
		return false
	}
	p.metrics.BatchProcessingDuration.Observe(time.Since(start).Seconds())
	return true
}

// transformAndLoad normalizes each upload, loads every resulting record in
// one write, then publishes the datasets and commits offsets. Uploads that
// fail to normalize are committed and skipped. A failed load is retried with
// the same batch until it succeeds or the context ends, so offsets are only
// committed once their records are durable. Returns false if the pipeline
// should stop.
func (p *Pipeline) transformAndLoad(ctx context.Context, rawBatch []domain.RawUpload, backoff *time.Duration) bool {
	results := make([]Result, 0, len(rawBatch))
	successfulRaws := make([]domain.RawUpload, 0, len(rawBatch))
	var events []domain.OutputEvent

	for _, raw := range rawBatch {
		res, err := p.transformer.Transform(ctx, raw)
		if err != nil {
			p.skipUpload(ctx, raw, err)
			continue
		}
		results = append(results, res)
		successfulRaws = append(successfulRaws, raw)
		events = append(events, res.Events...)
	}

	if len(results) == 0 {
		return true
	}

	for {
		err := p.loader.LoadBatch(ctx, events)
		if err == nil {
			break
		}
		p.ready.Store(false)
		p.logger.Error("load batch failed", "error", err, "uploads", len(results), "records", len(events))
		if !p.backoffOrStop(ctx, backoff) {
			return false
		}
	}
	p.ready.Store(true)
	p.metrics.RecordsProduced.Add(float64(len(events)))

	for i, res := range results {
		p.metrics.ObserveUpload(metricsSource, res.Dataset.Stats)
		if p.sink != nil {
			p.sink.ReplaceLatest(res.Dataset, res.Source)
		}
		p.commitOffset(ctx, successfulRaws[i])
	}
	return true
}

// skipUpload logs, counts, and commits an upload that cannot be normalized,
// so a malformed file never blocks the partition.
func (p *Pipeline) skipUpload(ctx context.Context, raw domain.RawUpload, err error) {
	var schemaErr *domain.SchemaError
	if errors.As(err, &schemaErr) {
		p.metrics.ObserveSchemaError(metricsSource)
	} else {
		p.metrics.UploadsProcessed.WithLabelValues(metricsSource, "invalid").Inc()
	}
	p.logger.Warn("upload rejected, skipping message",
		"error", err,
		"filename", raw.Filename(),
		"topic", raw.Topic,
		"partition", raw.Partition,
		"offset", raw.Offset,
	)
	p.commitOffset(ctx, raw)
}

// backoffOrStop checks for context cancellation, sleeps with the current backoff,
// and advances the backoff. Returns false if the pipeline should stop.
func (p *Pipeline) backoffOrStop(ctx context.Context, backoff *time.Duration) bool {
	if ctx.Err() != nil {
		return false
	}
	if !sleepWithContext(ctx, *backoff) {
		return false
	}
	*backoff = nextBackoff(*backoff, maxBackoff)
	return true
}

// commitOffset commits the message offset if a commit function is available.
func (p *Pipeline) commitOffset(ctx context.Context, raw domain.RawUpload) {
	if raw.Commit == nil {
		return
	}
	if err := raw.Commit(ctx); err != nil {
		p.logger.Warn("commit offset failed", "error", err,
			"topic", raw.Topic, "partition", raw.Partition, "offset", raw.Offset)
	}
}

func nextBackoff(current, limit time.Duration) time.Duration {
	next := current * 2
	if next > limit {
		return limit
	}
	return next
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
