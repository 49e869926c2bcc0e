package domain

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleExport = testHeader + ";MES_DESCRICAO\n" +
	"-30,0346;-51,2177;05/03/2023;C01157;SETOR A;1 BPM CENTRO;MARÇO\n" +
	"-30,0400;-51,2200;06/03/2023;B01121;SETOR B;9 BPM NORTE;MARÇO\n" +
	"-30,1;-51,3;07/03/2023;A99999;SETOR B;9 BPM NORTE;MARÇO\n" +
	"-29,98765432;-51,1;01/04/2023;D01217;SETOR A;\"11 BPM; SUL\";ABRIL\n" +
	"bad;-51,1;01/04/2023;D01217;SETOR A;U;ABRIL\n"

func TestEncodeCSV_Idempotent(t *testing.T) {
	first, err := Normalize(strings.NewReader(sampleExport))
	require.NoError(t, err)
	require.Len(t, first.Records, 3)

	var buf bytes.Buffer
	require.NoError(t, EncodeCSV(&buf, first.Records))

	second, err := Normalize(&buf)
	require.NoError(t, err)

	if diff := cmp.Diff(first.Records, second.Records); diff != "" {
		t.Fatalf("re-normalized records differ (-first +second):\n%s", diff)
	}
	assert.Equal(t, 0, second.Stats.Dropped())
}

func TestEncodeCSV_Format(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, EncodeCSV(&buf, []IncidentRecord{{
		Latitude:     -30.5,
		Longitude:    -51,
		OccurredOn:   time.Date(2023, time.March, 5, 0, 0, 0, 0, time.UTC),
		CategoryCode: "C01157",
		Sector:       testSectorA,
		RegistryUnit: testUnitCentro,
	}}))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, testHeader, lines[0])
	assert.Equal(t, "-30,5;-51;05/03/2023;C01157;SETOR A;1 BPM CENTRO", lines[1])
}

func TestEncodeCSV_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, EncodeCSV(&buf, nil))
	assert.Equal(t, testHeader+"\n", buf.String())
}

func TestRecordIDs(t *testing.T) {
	rec := IncidentRecord{
		Latitude:     -30.1,
		Longitude:    -51.2,
		OccurredOn:   time.Date(2023, time.March, 5, 0, 0, 0, 0, time.UTC),
		CategoryCode: "C01157",
		Sector:       testSectorA,
	}
	other := rec
	other.Sector = testSectorB

	t.Run("prefixed with category", func(t *testing.T) {
		ids := RecordIDs([]IncidentRecord{rec})
		assert.True(t, strings.HasPrefix(ids[0], "c01157-"))
	})

	t.Run("deterministic", func(t *testing.T) {
		assert.Equal(t, RecordIDs([]IncidentRecord{rec, other}), RecordIDs([]IncidentRecord{rec, other}))
	})

	t.Run("duplicates get distinct ids", func(t *testing.T) {
		ids := RecordIDs([]IncidentRecord{rec, rec})
		assert.NotEqual(t, ids[0], ids[1])
	})

	t.Run("different records differ", func(t *testing.T) {
		ids := RecordIDs([]IncidentRecord{rec, other})
		assert.NotEqual(t, ids[0], ids[1])
	})
}

func TestSerializeDataset(t *testing.T) {
	fixed := time.Date(2024, time.May, 2, 12, 0, 0, 0, time.UTC)
	SetClock(clockwork.NewFakeClockAt(fixed))
	t.Cleanup(func() { SetClock(nil) })

	ds, err := Normalize(strings.NewReader(sampleExport))
	require.NoError(t, err)

	events, err := SerializeDataset(ds)
	require.NoError(t, err)
	require.Len(t, events, len(ds.Records))

	ids := RecordIDs(ds.Records)
	for i, ev := range events {
		assert.Equal(t, []byte(ids[i]), ev.Key)
		assert.Equal(t, ds.Records[i].CategoryCode, ev.Headers["category_code"])
		assert.Equal(t, fixed.Format(time.RFC3339), ev.Headers["processed_at"])

		var body struct {
			ID           string    `json:"id"`
			Latitude     float64   `json:"latitude"`
			CategoryCode string    `json:"category_code"`
			OccurredOn   time.Time `json:"occurred_on"`
			ProcessedAt  time.Time `json:"processed_at"`
		}
		require.NoError(t, json.Unmarshal(ev.Value, &body))
		assert.Equal(t, ids[i], body.ID)
		assert.Equal(t, ds.Records[i].Latitude, body.Latitude)
		assert.Equal(t, ds.Records[i].CategoryCode, body.CategoryCode)
		assert.True(t, ds.Records[i].OccurredOn.Equal(body.OccurredOn))
		assert.True(t, fixed.Equal(body.ProcessedAt))
	}
}

func TestSerializeDataset_Empty(t *testing.T) {
	events, err := SerializeDataset(Dataset{Records: []IncidentRecord{}})
	require.NoError(t, err)
	assert.Empty(t, events)
}
