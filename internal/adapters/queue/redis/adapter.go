package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/KoDakness/404syndicate-sub000/internal/core/domain"
	"github.com/KoDakness/404syndicate-sub000/internal/core/logger"
	"github.com/KoDakness/404syndicate-sub000/internal/core/ports"
)

const (
	ChatChannel      = "chat:inserts"
	SessionKeyPrefix = "session:"
)

type RedisAdapter struct {
	client *redis.Client
}

var (
	_ ports.ChatPubSub   = (*RedisAdapter)(nil)
	_ ports.SessionStore = (*RedisAdapter)(nil)
)

func NewRedisAdapter(url string) (*RedisAdapter, *redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, nil, err
	}
	client := redis.NewClient(opts)
	return &RedisAdapter{client: client}, client, nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client *redis.Client) *RedisAdapter {
	return &RedisAdapter{client: client}
}

// PubSub Implementation
func (r *RedisAdapter) PublishChat(ctx context.Context, msg *domain.ChatMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return r.client.Publish(ctx, ChatChannel, data).Err()
}

// SubscribeChat delivers every published chat row until ctx is done.
func (r *RedisAdapter) SubscribeChat(ctx context.Context) (<-chan *domain.ChatMessage, error) {
	pubsub := r.client.Subscribe(ctx, ChatChannel)
	// Wait for the subscription to be confirmed so no publish is missed.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, err
	}
	ch := make(chan *domain.ChatMessage)

	go func() {
		defer pubsub.Close()
		defer close(ch)

		msgs := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var chat domain.ChatMessage
				if err := json.Unmarshal([]byte(msg.Payload), &chat); err != nil {
					logger.Warn("Dropping malformed chat payload", "error", err)
					continue
				}
				select {
				case ch <- &chat:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return ch, nil
}

// Session store Implementation
func (r *RedisAdapter) GetSession(ctx context.Context, token string) (*domain.AuthSession, error) {
	data, err := r.client.Get(ctx, SessionKeyPrefix+token).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ports.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	var auth domain.AuthSession
	if err := json.Unmarshal(data, &auth); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	if auth.UserID == "" {
		return nil, ports.ErrNotFound
	}
	return &auth, nil
}

// IssueSession stores a new token for the player and returns it.
func (r *RedisAdapter) IssueSession(ctx context.Context, auth domain.AuthSession, ttl time.Duration) (string, error) {
	if auth.UserID == "" || auth.Username == "" {
		return "", fmt.Errorf("user id and username are required")
	}
	data, err := json.Marshal(auth)
	if err != nil {
		return "", err
	}
	token := uuid.NewString()
	if err := r.client.Set(ctx, SessionKeyPrefix+token, data, ttl).Err(); err != nil {
		return "", fmt.Errorf("failed to store session: %w", err)
	}
	return token, nil
}

// RevokeSession deletes a token.
func (r *RedisAdapter) RevokeSession(ctx context.Context, token string) error {
	return r.client.Del(ctx, SessionKeyPrefix+token).Err()
}
