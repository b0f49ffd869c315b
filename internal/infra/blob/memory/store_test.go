package memory

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trackcore/internal/blob/core"
)

func TestMetadataIsCopied(t *testing.T) {
	ctx := context.Background()
	s := New()
	md := map[string]string{"a": "1"}
	_, err := s.Put(ctx, "k", bytes.NewReader(nil), core.PutOptions{Metadata: md})
	require.NoError(t, err)
	md["a"] = "2"

	info, _, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "1", info.Metadata["a"])

	ok, err := s.Delete(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}
