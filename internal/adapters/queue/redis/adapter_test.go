package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KoDakness/404syndicate-sub000/internal/core/domain"
	"github.com/KoDakness/404syndicate-sub000/internal/core/ports"
)

func newTestClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestNewRedisAdapterRejectsBadURL(t *testing.T) {
	_, _, err := NewRedisAdapter("not a url")
	assert.Error(t, err)
}

func TestSessionStore(t *testing.T) {
	mr, client := newTestClient(t)
	adapter := NewWithClient(client)
	ctx := context.Background()

	_, err := adapter.GetSession(ctx, "missing")
	assert.ErrorIs(t, err, ports.ErrNotFound)

	token, err := adapter.IssueSession(ctx, domain.AuthSession{UserID: "u1", Username: "neo"}, time.Hour)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	auth, err := adapter.GetSession(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "u1", auth.UserID)
	assert.Equal(t, "neo", auth.Username)

	mr.FastForward(2 * time.Hour)
	_, err = adapter.GetSession(ctx, token)
	assert.ErrorIs(t, err, ports.ErrNotFound)

	_, err = adapter.IssueSession(ctx, domain.AuthSession{UserID: "u1"}, time.Hour)
	assert.Error(t, err)
}

func TestRevokeSession(t *testing.T) {
	_, client := newTestClient(t)
	adapter := NewWithClient(client)
	ctx := context.Background()

	token, err := adapter.IssueSession(ctx, domain.AuthSession{UserID: "u1", Username: "neo"}, 0)
	require.NoError(t, err)
	require.NoError(t, adapter.RevokeSession(ctx, token))

	_, err = adapter.GetSession(ctx, token)
	assert.ErrorIs(t, err, ports.ErrNotFound)
}

func TestChatPubSub(t *testing.T) {
	_, client := newTestClient(t)
	adapter := NewWithClient(client)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := adapter.SubscribeChat(ctx)
	require.NoError(t, err)

	sent := &domain.ChatMessage{ID: "m1", Username: "neo", Content: "wake up", Type: domain.ChatTypeUser, CreatedAt: time.Now().UTC()}
	require.NoError(t, adapter.PublishChat(ctx, sent))

	select {
	case got := <-ch:
		assert.Equal(t, "m1", got.ID)
		assert.Equal(t, "wake up", got.Content)
	case <-time.After(2 * time.Second):
		t.Fatal("chat message was not delivered")
	}

	cancel()
	assert.Eventually(t, func() bool {
		select {
		case _, ok := <-ch:
			return !ok
		default:
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWriteFailureLog(t *testing.T) {
	_, client := newTestClient(t)
	log := NewWriteFailureLog(client, 0)
	ctx := context.Background()

	require.NoError(t, log.RecordFailure(ctx, "u1", "player_update", map[string]int{"credits": 10}, errors.New("db down")))
	time.Sleep(time.Millisecond)
	require.NoError(t, log.RecordFailure(ctx, "u2", "job_update", map[string]string{"job": "job-ping"}, errors.New("timeout")))

	count, err := log.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	entries, err := log.List(ctx, 0, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "u2", entries[0].UserID, "newest first")
	assert.Equal(t, "timeout", entries[0].Reason)
	assert.JSONEq(t, `{"credits":10}`, string(entries[1].Payload))

	require.NoError(t, log.Remove(ctx, entries[0].ID))
	_, err = log.Get(ctx, entries[0].ID)
	assert.ErrorIs(t, err, ports.ErrNotFound)

	count, err = log.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}
