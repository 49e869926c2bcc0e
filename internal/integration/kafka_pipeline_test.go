//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/crime-incident-etl/internal/adapter/kafka"
	"github.com/couchcryptid/crime-incident-etl/internal/config"
	"github.com/couchcryptid/crime-incident-etl/internal/domain"
	"github.com/couchcryptid/crime-incident-etl/internal/observability"
	"github.com/couchcryptid/crime-incident-etl/internal/pipeline"
	"github.com/couchcryptid/crime-incident-etl/internal/session"
)

const (
	testSourceTopic = "test-raw-uploads"
	testSinkTopic   = "test-incidents"

	// Retained rows of the sample export.
	fixtureRetained = 16
)

// incidentMessage holds a deserialized message read from the sink topic.
type incidentMessage struct {
	Key     string
	Headers map[string]string
	Body    struct {
		ID           string    `json:"id"`
		Latitude     float64   `json:"latitude"`
		Longitude    float64   `json:"longitude"`
		OccurredOn   time.Time `json:"occurred_on"`
		CategoryCode string    `json:"category_code"`
		Sector       string    `json:"sector"`
		RegistryUnit string    `json:"registry_unit"`
		MonthLabel   string    `json:"month_label"`
	}
}

// readIncident reads a single message from the sink consumer and deserializes it.
func readIncident(ctx context.Context, t *testing.T, consumer *kafkago.Reader) incidentMessage {
	t.Helper()
	readCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	msg, err := consumer.ReadMessage(readCtx)
	require.NoError(t, err, "read from sink topic")

	im := incidentMessage{Key: string(msg.Key), Headers: make(map[string]string, len(msg.Headers))}
	for _, h := range msg.Headers {
		im.Headers[h.Key] = string(h.Value)
	}
	require.NoError(t, json.Unmarshal(msg.Value, &im.Body), "unmarshal sink message")
	return im
}

func testConfig(broker, group string) *config.Config {
	return &config.Config{
		KafkaBrokers:       []string{broker},
		KafkaSourceTopic:   testSourceTopic,
		KafkaSinkTopic:     testSinkTopic,
		KafkaGroupID:       fmt.Sprintf("%s-%d", group, time.Now().UnixNano()),
		BatchFlushInterval: 5 * time.Second,
	}
}

func sinkConsumer(t *testing.T, broker string) *kafkago.Reader {
	t.Helper()
	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testSinkTopic,
		GroupID:     fmt.Sprintf("test-sink-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })
	return consumer
}

func produce(ctx context.Context, t *testing.T, broker string, msgs ...kafkago.Message) {
	t.Helper()
	producer := &kafkago.Writer{
		Addr:  kafkago.TCP(broker),
		Topic: testSourceTopic,
	}
	t.Cleanup(func() { _ = producer.Close() })
	require.NoError(t, producer.WriteMessages(ctx, msgs...))
}

// TestKafkaReaderWriter verifies the adapter layer: kafka.Reader (Extractor) and
// kafka.Writer (Loader) correctly round-trip an upload through Kafka.
func TestKafkaReaderWriter(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testSourceTopic)
	createTopic(t, broker, testSinkTopic)
	cfg := testConfig(broker, "test-reader")

	payload := loadFixture(t)
	produce(ctx, t, broker, kafkago.Message{
		Key:     []byte("upload-1"),
		Value:   payload,
		Headers: []kafkago.Header{{Key: "filename", Value: []byte("ocorrencias_2023.csv")}},
	})

	// Retry because the consumer group may need time to rebalance before
	// partitions are assigned and messages become available.
	reader := kafka.NewReader(cfg, discardLogger())
	t.Cleanup(func() { _ = reader.Close() })

	var batch []domain.RawUpload
	for {
		var err error
		batch, err = reader.ExtractBatch(ctx, 1)
		require.NoError(t, err)
		if len(batch) > 0 {
			break
		}
		if ctx.Err() != nil {
			t.Fatal("timed out waiting for upload from source topic")
		}
	}
	require.Len(t, batch, 1)
	raw := batch[0]
	assert.Equal(t, []byte("upload-1"), raw.Key)
	assert.Equal(t, payload, raw.Value)
	assert.Equal(t, "ocorrencias_2023.csv", raw.Filename())
	require.NotNil(t, raw.Commit, "commit callback should be set")
	require.NoError(t, raw.Commit(ctx))

	result, err := pipeline.NewTransformer(discardLogger()).Transform(ctx, raw)
	require.NoError(t, err)
	require.Len(t, result.Events, fixtureRetained)

	writer := kafka.NewWriter(cfg, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })
	require.NoError(t, writer.LoadBatch(ctx, result.Events[:1]))

	im := readIncident(ctx, t, sinkConsumer(t, broker))
	assert.Equal(t, "C01157", im.Headers["category_code"])
	_, err = time.Parse(time.RFC3339, im.Headers["processed_at"])
	assert.NoError(t, err, "processed_at should be valid RFC3339")

	assert.Equal(t, im.Key, im.Body.ID)
	assert.Equal(t, -30.0346, im.Body.Latitude)
	assert.Equal(t, -51.2177, im.Body.Longitude)
	assert.Equal(t, "SETOR 1", im.Body.Sector)
	assert.Equal(t, "1 BPM CENTRO", im.Body.RegistryUnit)
	assert.Equal(t, "JANEIRO", im.Body.MonthLabel)
	assert.Equal(t, time.Date(2023, time.January, 2, 0, 0, 0, 0, time.UTC), im.Body.OccurredOn)
}

// TestPipelineEndToEnd wires the full pipeline (Reader → Transformer → Writer)
// with real Kafka and verifies the published incidents and the shared dataset.
func TestPipelineEndToEnd(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testSourceTopic)
	createTopic(t, broker, testSinkTopic)
	cfg := testConfig(broker, "test-pipeline")

	produce(ctx, t, broker, kafkago.Message{
		Key:     []byte("upload-1"),
		Value:   loadFixture(t),
		Headers: []kafkago.Header{{Key: "filename", Value: []byte("ocorrencias_2023.csv")}},
	})

	reader := kafka.NewReader(cfg, discardLogger())
	t.Cleanup(func() { _ = reader.Close() })
	writer := kafka.NewWriter(cfg, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	store := session.NewStore(10, nil)
	metrics := observability.NewMetricsForTesting()
	p := pipeline.New(reader, pipeline.NewTransformer(discardLogger()), writer, store, discardLogger(), metrics, 50)

	pipelineCtx, pipelineCancel := context.WithCancel(ctx)
	errCh := make(chan error, 1)
	go func() { errCh <- p.Run(pipelineCtx) }()

	consumer := sinkConsumer(t, broker)
	received := make([]incidentMessage, 0, fixtureRetained)
	for len(received) < fixtureRetained {
		received = append(received, readIncident(ctx, t, consumer))
	}

	// The sink holds the dataset once the batch is loaded.
	require.Eventually(t, func() bool {
		st, err := store.Get(session.LatestID)
		return err == nil && st.Dataset != nil
	}, 10*time.Second, 100*time.Millisecond)

	pipelineCancel()
	require.NoError(t, <-errCh)

	ids := make(map[string]struct{}, len(received))
	for _, im := range received {
		assert.True(t, domain.IsViolentCategory(im.Headers["category_code"]), "category %q", im.Headers["category_code"])
		assert.Equal(t, im.Key, im.Body.ID)
		ids[im.Key] = struct{}{}
	}
	assert.Len(t, ids, fixtureRetained, "record ids must be unique")

	latest, err := store.Get(session.LatestID)
	require.NoError(t, err)
	assert.Equal(t, "ocorrencias_2023.csv", latest.Source)
	assert.Len(t, latest.Dataset.Records, fixtureRetained)
	assert.Equal(t, 8, latest.Dataset.Stats.Dropped())
}

// TestPipelineSchemaError verifies that an upload missing required columns is
// skipped and the pipeline continues with the next upload.
func TestPipelineSchemaError(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testSourceTopic)
	createTopic(t, broker, testSinkTopic)
	cfg := testConfig(broker, "test-schema")

	valid := "LATITUDE;LONGITUDE;DATA_FATO;CODIGO_NATUREZA_PRINCIPAL;SETOR;UNID_REGISTRO_NIVEL_6\n" +
		"-30,0346;-51,2177;05/03/2023;D01213;SETOR 1;1 BPM CENTRO\n"
	produce(ctx, t, broker,
		kafkago.Message{Key: []byte("bad"), Value: []byte("SETOR;LATITUDE\nS;-30\n")},
		kafkago.Message{Key: []byte("good"), Value: []byte(valid)},
	)

	reader := kafka.NewReader(cfg, discardLogger())
	t.Cleanup(func() { _ = reader.Close() })
	writer := kafka.NewWriter(cfg, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	store := session.NewStore(10, nil)
	p := pipeline.New(reader, pipeline.NewTransformer(discardLogger()), writer, store, discardLogger(),
		observability.NewMetricsForTesting(), 50)

	pipelineCtx, pipelineCancel := context.WithCancel(ctx)
	errCh := make(chan error, 1)
	go func() { errCh <- p.Run(pipelineCtx) }()

	consumer := sinkConsumer(t, broker)
	im := readIncident(ctx, t, consumer)
	assert.Equal(t, "D01213", im.Body.CategoryCode)

	// Verify no second message arrives (the malformed upload was skipped).
	readCtx, readCancel := context.WithTimeout(ctx, 5*time.Second)
	_, err := consumer.ReadMessage(readCtx)
	readCancel()
	assert.Error(t, err, "expected no second message on sink topic")

	pipelineCancel()
	require.NoError(t, <-errCh)

	latest, err := store.Get(session.LatestID)
	require.NoError(t, err)
	require.NotNil(t, latest.Dataset)
	assert.Len(t, latest.Dataset.Records, 1)
}
