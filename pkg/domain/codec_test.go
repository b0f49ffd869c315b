package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeRecordKeepsIntegers(t *testing.T) {
	rec := Record{
		Category: "box",
		ID:       1,
		Fields: map[string]any{
			"qty":   int64(9007199254740993),
			"ratio": 0.25,
			"name":  "A",
			"dims":  map[string]any{"w": int64(3), "scale": 1.5},
			"tags":  []any{int64(-2), "x", 2.5e-3},
		},
		Refs: map[string][]Ref{"shelf": {{Category: "shelf", ID: 4}}},
	}
	data, err := EncodeRecord(rec)
	require.NoError(t, err)
	got, err := DecodeRecord(data)
	require.NoError(t, err)
	assert.Equal(t, rec, got)
}

func TestDecodeRecordRejectsMalformedInput(t *testing.T) {
	_, err := DecodeRecord([]byte(`{"category":"box","id":`))
	assert.Error(t, err)
	_, err = DecodeRecord([]byte(`{"category":"box","id":1,"fields":{"n":1e400}}`))
	assert.Error(t, err)
}
