package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyRoundTrip(t *testing.T) {
	ref, err := ParseKey(Key("lab/sample", 42))
	require.NoError(t, err)
	assert.Equal(t, Ref{Category: "lab/sample", ID: 42}, ref)

	for _, bad := range []string{"", "sample", "sample/", "/3", "sample/x"} {
		_, err := ParseKey(bad)
		assert.Error(t, err, bad)
	}
}

func TestRecordCloneIsIndependent(t *testing.T) {
	rec := Record{Category: "c", ID: 1, Fields: map[string]any{"a": 1}, Refs: map[string][]Ref{"r": {{Category: "c", ID: 2}}}}
	cp := rec.Clone()
	cp.Fields["a"] = 2
	cp.Refs["r"][0].ID = 9
	assert.Equal(t, 1, rec.Fields["a"])
	assert.Equal(t, int64(2), rec.Refs["r"][0].ID)
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterGeneric("b", "a")
	assert.Equal(t, []Category{"a", "b"}, reg.Categories())

	obj, err := reg.New("a")
	require.NoError(t, err)
	assert.Equal(t, Category("a"), obj.Category())

	_, err = reg.New("missing")
	assert.True(t, errors.Is(err, ErrUnknownCategory))
}

func TestConsistencyErrorMessage(t *testing.T) {
	err := &ConsistencyError{Op: "use", Category: "sample", ID: 7}
	assert.Contains(t, err.Error(), "use sample/7")
}
