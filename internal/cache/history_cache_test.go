package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redisv9 "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qwery/internal/model"
)

func newTestCache(t *testing.T) (*HistoryCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redisv9.NewClient(&redisv9.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewHistoryCache(client, time.Minute, 2*time.Second), mr
}

func TestHistoryRoundTrip(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	_, hit, err := c.GetHistory(ctx, "conv-1")
	require.NoError(t, err)
	assert.False(t, hit)

	msgs := []model.Message{
		{ID: "01A", ConversationID: "conv-1", Role: model.RoleUser, Content: "hi"},
		{ID: "01B", ConversationID: "conv-1", Role: model.RoleAssistant, Content: "hello"},
	}
	require.NoError(t, c.SetHistory(ctx, "conv-1", msgs))

	got, hit, err := c.GetHistory(ctx, "conv-1")
	require.NoError(t, err)
	assert.True(t, hit)
	require.Len(t, got, 2)
	assert.Equal(t, "hello", got[1].Content)

	require.NoError(t, c.DeleteHistory(ctx, "conv-1"))
	_, hit, err = c.GetHistory(ctx, "conv-1")
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestDirtyMarkerExpires(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.MarkDirty(ctx, "conv-1"))
	dirty, err := c.IsDirty(ctx, "conv-1")
	require.NoError(t, err)
	assert.True(t, dirty)

	mr.FastForward(3 * time.Second)
	dirty, err = c.IsDirty(ctx, "conv-1")
	require.NoError(t, err)
	assert.False(t, dirty)
}

func TestHistoryExpires(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.SetHistory(ctx, "conv-1", []model.Message{{ID: "01A"}}))
	mr.FastForward(2 * time.Minute)

	_, hit, err := c.GetHistory(ctx, "conv-1")
	require.NoError(t, err)
	assert.False(t, hit)
	assert.NoError(t, c.Ping(ctx))
}
