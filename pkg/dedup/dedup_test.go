package dedup

import (
	"context"
	"testing"
	"time"

	"service-desk/backend/pkg/cache"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreFirstSeen(t *testing.T) {
	c := cache.New(cache.Options{})
	defer c.Close()
	s := NewMemoryStore(c, time.Minute)
	ctx := context.Background()

	first, err := s.FirstSeen(ctx, "update:1")
	require.NoError(t, err)
	assert.True(t, first)

	again, err := s.FirstSeen(ctx, "update:1")
	require.NoError(t, err)
	assert.False(t, again)

	other, err := s.FirstSeen(ctx, "update:2")
	require.NoError(t, err)
	assert.True(t, other)
}
