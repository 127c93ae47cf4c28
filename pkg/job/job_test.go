package job

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/eventlens/pkg/aggregation"
	"github.com/platinummonkey/eventlens/pkg/events"
)

const checkoutJob = `
name: checkout
processing:
  rename_map:
    amt: amount
  coerce:
    amount: number
  deduplicate: true
metrics:
  - name: purchases
    reducer: count
    filter:
      event_name: purchase
  - name: revenue_by_plan
    reducer: sum
    field: amount
    group_by: [plan, "@day"]
funnels:
  - name: checkout
    window: 3600000
    steps:
      - event_name: view
      - name: paid
        event_name: purchase
        where:
          currency: USD
`

func TestParse(t *testing.T) {
	def, err := Parse(strings.NewReader(checkoutJob))
	require.NoError(t, err)

	assert.Equal(t, "checkout", def.Name)

	require.NotNil(t, def.Processing)
	assert.Equal(t, map[string]string{"amt": "amount"}, def.Processing.RenameMap)
	assert.Equal(t, events.KindNumber, def.Processing.Coerce["amount"])
	assert.True(t, def.Processing.Deduplicate)
	assert.False(t, def.Processing.Lenient)

	require.Len(t, def.Metrics, 2)
	assert.Equal(t, aggregation.Count, def.Metrics[0].Reducer)
	require.NotNil(t, def.Metrics[0].Filter)
	assert.Equal(t, "purchase", def.Metrics[0].Filter.EventName)
	assert.Equal(t, aggregation.Sum, def.Metrics[1].Reducer)
	assert.Equal(t, []string{"plan", "@day"}, def.Metrics[1].GroupBy)

	require.Len(t, def.Funnels, 1)
	f := def.Funnels[0]
	assert.Equal(t, int64(3600000), f.Window)
	require.Len(t, f.Steps, 2)
	assert.Equal(t, "view", f.Steps[0].Label())
	assert.Equal(t, "paid", f.Steps[1].Label())
	assert.Equal(t, "purchase", f.Steps[1].EventName)
	assert.True(t, f.Steps[1].Where["currency"].Equal(events.String("USD")))
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name     string
		doc      string
		wantSpec bool
		wantIdx  int
		contains string
	}{
		{
			name:     "unknown field",
			doc:      "metrics:\n  - name: x\n    reducer: count\n    feild: amount\n",
			contains: "feild",
		},
		{
			name:     "unknown coercion kind",
			doc:      "processing:\n  coerce:\n    amount: decimal\n",
			contains: "decimal",
		},
		{
			name:     "unknown reducer",
			doc:      "metrics:\n  - name: ok\n    reducer: count\n  - name: p50\n    reducer: median\n    field: amount\n",
			wantSpec: true,
			wantIdx:  1,
		},
		{
			name:     "duplicate metric name",
			doc:      "metrics:\n  - name: n\n    reducer: count\n  - name: n\n    reducer: count\n",
			wantSpec: true,
			wantIdx:  1,
		},
		{
			name:     "funnel without steps",
			doc:      "funnels:\n  - name: empty\n",
			wantSpec: true,
			wantIdx:  0,
		},
		{
			name:     "negative window",
			doc:      "funnels:\n  - name: f\n    window: -1\n    steps:\n      - event_name: a\n",
			wantSpec: true,
			wantIdx:  0,
		},
		{
			name:     "negative workers",
			doc:      "processing:\n  workers: -2\n",
			contains: "workers",
		},
		{
			name:     "chained renames",
			doc:      "processing:\n  rename_map:\n    amt: amount\n    amount: total\n",
			contains: "chained renames",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.doc))
			require.Error(t, err)

			if tt.wantSpec {
				assert.ErrorIs(t, err, events.ErrInvalidSpecification)
				var serr *events.SpecError
				require.True(t, errors.As(err, &serr))
				assert.Equal(t, tt.wantIdx, serr.Index)
			}
			if tt.contains != "" {
				assert.Contains(t, err.Error(), tt.contains)
			}
		})
	}
}

func TestParse_Empty(t *testing.T) {
	_, err := Parse(strings.NewReader(""))
	assert.ErrorIs(t, err, ErrEmptyDefinition)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "checkout.yaml")
	require.NoError(t, os.WriteFile(path, []byte(checkoutJob), 0o644))

	def, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "checkout", def.Name)

	_, err = LoadFile(filepath.Join(dir, "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestReadRecords(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  int
	}{
		{"empty input", "", 0},
		{"whitespace only", " \n\t\n", 0},
		{"json array", `[{"subject_id":"u1","event_name":"a","timestamp":1},{"subject_id":"u2","event_name":"b","timestamp":2}]`, 2},
		{"empty array", "  []  ", 0},
		{"ndjson", "{\"subject_id\":\"u1\",\"event_name\":\"a\",\"timestamp\":1}\n{\"subject_id\":\"u2\",\"event_name\":\"b\",\"timestamp\":2}\n", 2},
		{"ndjson with blank lines and crlf", "\r\n{\"subject_id\":\"u1\",\"event_name\":\"a\",\"timestamp\":1}\r\n\r\n{\"subject_id\":\"u1\",\"event_name\":\"a\",\"timestamp\":2}", 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records, err := ReadRecords(strings.NewReader(tt.input))
			require.NoError(t, err)
			assert.Len(t, records, tt.want)
		})
	}
}

func TestReadRecords_PreservesLargeIntegers(t *testing.T) {
	records, err := ReadRecords(strings.NewReader(`{"subject_id":9007199254740993,"event_name":"a","timestamp":1700000000123,"properties":{"n":1.5}}`))
	require.NoError(t, err)
	require.Len(t, records, 1)

	assert.Equal(t, json.Number("9007199254740993"), records[0]["subject_id"])

	ev, err := events.Validate(records[0])
	require.NoError(t, err)
	assert.Equal(t, "9007199254740993", ev.SubjectID())
	assert.Equal(t, int64(1700000000123), ev.Timestamp())
	n, ok := ev.Property("n")
	require.True(t, ok)
	assert.True(t, n.Equal(events.Number(1.5)))
}

func TestReadRecords_Malformed(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		contains string
	}{
		{"truncated array", `[{"subject_id":"u1"}`, "record array"},
		{"trailing data after array", `[] {}`, "after record array"},
		{"bad ndjson line", "{\"subject_id\":\"u1\"}\n{oops}\n", "line 2"},
		{"non-object line", "{\"subject_id\":\"u1\"}\n42\n", "line 2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadRecords(strings.NewReader(tt.input))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.contains)
		})
	}
}

func TestReadRecordsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.ndjson")
	require.NoError(t, os.WriteFile(path, []byte("{\"subject_id\":\"u1\",\"event_name\":\"a\",\"timestamp\":1}\n"), 0o644))

	records, err := ReadRecordsFile(path)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestReport_WriteJSON(t *testing.T) {
	report := &Report{
		RunID:     "6f1c7d1e-0000-4000-8000-000000000000",
		StartedAt: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		Records:   3,
		Events:    2,
		Errors: []*events.ValidationError{
			{Index: 2, Field: "timestamp", Kind: events.MissingField, Message: "required field is missing"},
		},
		Metrics: []*aggregation.Result{
			{Name: "n", Reducer: aggregation.Count, Groups: []aggregation.Group{{Value: 2}}},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, report.WriteJSON(&buf))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))

	for _, key := range []string{"run_id", "started_at", "events", "errors", "warnings", "duplicates", "metrics", "funnels"} {
		assert.Contains(t, decoded, key)
	}
	assert.Equal(t, []any{}, decoded["warnings"])
	assert.Equal(t, []any{}, decoded["funnels"])
	assert.Equal(t, "2024-03-01T00:00:00Z", decoded["started_at"])
	assert.Equal(t, 1, report.Rejected())

	errs := decoded["errors"].([]any)
	first := errs[0].(map[string]any)
	assert.Equal(t, "MissingField", first["kind"])
	assert.Equal(t, float64(2), first["index"])

	// the report itself is left untouched
	assert.Nil(t, report.Funnels)
}
