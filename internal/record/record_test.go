package record_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhukov-alex/cdcrouter/internal/record"
)

func TestChangeRecord_Validate(t *testing.T) {
	tests := []struct {
		name    string
		rec     record.ChangeRecord
		wantErr string
	}{
		{name: "ok", rec: record.ChangeRecord{ID: "1", OriginStreamID: "test-results"}},
		{name: "missing id", rec: record.ChangeRecord{OriginStreamID: "test-results"}, wantErr: "record id is required"},
		{name: "missing origin", rec: record.ChangeRecord{ID: "1"}, wantErr: "origin stream id is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.rec.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestChangeRecord_Marshal(t *testing.T) {
	rec := record.ChangeRecord{
		ID:                   "1",
		OriginStreamID:       "test-results",
		ChangeType:           record.Insert,
		Payload:              map[string]any{"some": "thing"},
		ApproximateSizeBytes: 50,
	}

	data, err := rec.Marshal()
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "test-results", got["eventSourceARN"])
	assert.Equal(t, "INSERT", got["eventName"])
	assert.Equal(t, map[string]any{"some": "thing"}, got["dynamodb"])
}

func TestParseChangeType(t *testing.T) {
	ct, err := record.ParseChangeType("MODIFY")
	require.NoError(t, err)
	assert.Equal(t, record.Modify, ct)

	_, err = record.ParseChangeType("UPSERT")
	assert.Error(t, err)
}

func TestChangeRecord_WithPayloadLeavesOriginal(t *testing.T) {
	rec := record.ChangeRecord{ID: "1", Payload: map[string]any{"a": 1}}
	next := rec.WithPayload(map[string]any{"b": 2})

	assert.Equal(t, map[string]any{"a": 1}, rec.Payload)
	assert.Equal(t, map[string]any{"b": 2}, next.Payload)
}
