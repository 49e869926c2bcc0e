package kafka

import (
	"context"
	"errors"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/crime-incident-etl/internal/config"
	"github.com/couchcryptid/crime-incident-etl/internal/domain"
)

// maxUploadMessageBytes bounds a single fetch; one message carries a whole CSV export.
const maxUploadMessageBytes = 64 << 20

// Reader consumes CSV uploads from a Kafka topic as part of a consumer group.
// Offsets are committed explicitly through RawUpload.Commit.
// It implements pipeline.BatchExtractor.
type Reader struct {
	reader        *kafkago.Reader
	flushInterval time.Duration
	logger        *slog.Logger
}

// NewReader creates a Kafka consumer for the configured source topic.
func NewReader(cfg *config.Config, logger *slog.Logger) *Reader {
	r := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     cfg.KafkaBrokers,
		GroupID:     cfg.KafkaGroupID,
		Topic:       cfg.KafkaSourceTopic,
		MinBytes:    1,
		MaxBytes:    maxUploadMessageBytes,
		StartOffset: kafkago.FirstOffset,
	})
	return &Reader{reader: r, flushInterval: cfg.BatchFlushInterval, logger: logger}
}

// ExtractBatch blocks until the first upload arrives, then collects up to
// batchSize uploads, returning early once the flush interval passes without
// a new message.
func (r *Reader) ExtractBatch(ctx context.Context, batchSize int) ([]domain.RawUpload, error) {
	first, err := r.reader.FetchMessage(ctx)
	if err != nil {
		return nil, err
	}
	batch := make([]domain.RawUpload, 0, batchSize)
	batch = append(batch, r.toRawUpload(first))

	for len(batch) < batchSize {
		fetchCtx, cancel := context.WithTimeout(ctx, r.flushInterval)
		msg, err := r.reader.FetchMessage(fetchCtx)
		cancel()
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
				break
			}
			if ctx.Err() != nil {
				return batch, nil
			}
			r.logger.Warn("fetch message failed, flushing partial batch", "error", err, "batch_size", len(batch))
			break
		}
		batch = append(batch, r.toRawUpload(msg))
	}
	return batch, nil
}

func (r *Reader) toRawUpload(msg kafkago.Message) domain.RawUpload {
	raw := mapMessageToRawUpload(msg)
	raw.Commit = func(ctx context.Context) error {
		return r.reader.CommitMessages(ctx, msg)
	}
	return raw
}

func (r *Reader) Close() error {
	return r.reader.Close()
}

// mapMessageToRawUpload copies a Kafka message into the domain type, without
// a commit hook.
func mapMessageToRawUpload(msg kafkago.Message) domain.RawUpload {
	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	return domain.RawUpload{
		Key:       msg.Key,
		Value:     msg.Value,
		Headers:   headers,
		Topic:     msg.Topic,
		Partition: msg.Partition,
		Offset:    msg.Offset,
		Timestamp: msg.Time,
	}
}
