package realtime

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRedisBroker_RelaysPublishedEventsIntoHub(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	hub := NewHub(zap.NewNop())
	broker := NewRedisBroker(client, hub, "test", zap.NewNop())
	require.NotNil(t, broker)

	ctx := context.Background()
	require.NoError(t, broker.Start(ctx))
	defer broker.Stop()

	sub := hub.Subscribe(nil)
	owner := uuid.New()
	sent := NewEvent(TableReports, EventInsert, uuid.New(), &owner)
	require.NoError(t, broker.Publish(ctx, sent))

	select {
	case got := <-sub.Events():
		assert.Equal(t, sent.ID, got.ID)
		assert.Equal(t, TableReports, got.Table)
		require.NotNil(t, got.UserID)
		assert.Equal(t, owner, *got.UserID)
	case <-time.After(2 * time.Second):
		t.Fatal("event was not relayed from redis")
	}
}

func TestNewPublisher_FallsBackToHub(t *testing.T) {
	hub := NewHub(zap.NewNop())
	assert.Nil(t, NewRedisBroker(nil, hub, "", zap.NewNop()))
	assert.Same(t, hub, NewPublisher(hub, nil))
}
