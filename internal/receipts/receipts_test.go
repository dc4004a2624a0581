package receipts

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPutIsContentAddressed(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	ref1, err := store.Put(ctx, "march.png", []byte("receipt-bytes"))
	require.NoError(t, err)
	ref2, err := store.Put(ctx, "march.png", []byte("receipt-bytes"))
	require.NoError(t, err)

	assert.Equal(t, ref1, ref2)

	got, ok := store.Get(ref1)
	require.True(t, ok)
	assert.Equal(t, []byte("receipt-bytes"), got)
}

func TestPutRejectsEmptyPayload(t *testing.T) {
	_, err := NewMemory().Put(context.Background(), "empty.png", nil)
	assert.Error(t, err)
}

func TestSignedURLRequiresKnownRef(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	_, err := store.SignedURL(ctx, "receipts/unknown", time.Minute)
	assert.Error(t, err)

	ref, err := store.Put(ctx, "april.png", []byte("x"))
	require.NoError(t, err)

	url, err := store.SignedURL(ctx, ref, time.Minute)
	require.NoError(t, err)
	assert.Contains(t, url, ref)
}
