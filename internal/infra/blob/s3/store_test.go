package s3

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trackcore/internal/blob/core"
)

func TestMockStoreListPaginates(t *testing.T) {
	ctx := context.Background()
	store := NewMockForTests()
	for i := 0; i < 5; i++ {
		_, err := store.Put(ctx, fmt.Sprintf("records/box/%d.json", i), bytes.NewReader([]byte("{}")), core.PutOptions{})
		require.NoError(t, err)
	}
	infos, err := store.List(ctx, "records/box/")
	require.NoError(t, err)
	require.Len(t, infos, 5)
	assert.Equal(t, "records/box/0.json", infos[0].Key)
	assert.Equal(t, int64(2), infos[0].Size)
}

func TestMockStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMockForTests()
	info, err := store.Put(ctx, "k", bytes.NewReader([]byte("payload")), core.PutOptions{ContentType: "text/plain"})
	require.NoError(t, err)
	assert.Equal(t, int64(7), info.Size)

	got, rc, err := store.Get(ctx, "k")
	require.NoError(t, err)
	defer func() { _ = rc.Close() }()
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(body))
	assert.Equal(t, "text/plain", got.ContentType)

	_, _, err = store.Get(ctx, "missing")
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.Equal(t, core.DriverS3, store.Driver())
}

func TestNewRequiresBucket(t *testing.T) {
	_, err := New(context.Background(), Config{})
	assert.Error(t, err)

	store, err := New(context.Background(), Config{Bucket: "b", Endpoint: "http://localhost:9000", PathStyle: true, AccessKeyID: "id", SecretAccessKey: "secret"})
	require.NoError(t, err)
	assert.Equal(t, "b", store.bucket)
}

func TestDecodeChunked(t *testing.T) {
	body, ok := decodeChunked([]byte("7;chunk-signature=abc\r\npayload\r\n0\r\n\r\n"))
	require.True(t, ok)
	assert.Equal(t, "payload", string(body))
	_, ok = decodeChunked([]byte("plain"))
	assert.False(t, ok)
}
