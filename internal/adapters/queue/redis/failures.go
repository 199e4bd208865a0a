package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/KoDakness/404syndicate-sub000/internal/core/ports"
)

const (
	failuresKey        = "syndicate:write_failures"
	failuresMetaPrefix = "syndicate:write_failures:meta:"
)

// WriteFailureLog keeps the persistence writes that were dropped so an
// operator can inspect them later.
type WriteFailureLog struct {
	client *redis.Client
	ttl    time.Duration
}

var _ ports.WriteFailureSink = (*WriteFailureLog)(nil)

type FailureEntry struct {
	ID          string          `json:"id"`
	UserID      string          `json:"user_id"`
	Kind        string          `json:"kind"`
	Payload     json.RawMessage `json:"payload"`
	Reason      string          `json:"reason"`
	FailureTime time.Time       `json:"failure_time"`
}

// NewWriteFailureLog keeps entries for ttl; zero keeps them forever.
func NewWriteFailureLog(client *redis.Client, ttl time.Duration) *WriteFailureLog {
	return &WriteFailureLog{client: client, ttl: ttl}
}

func (l *WriteFailureLog) RecordFailure(ctx context.Context, userID, kind string, payload interface{}, cause error) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal failure payload: %w", err)
	}
	entry := FailureEntry{
		ID:          uuid.NewString(),
		UserID:      userID,
		Kind:        kind,
		Payload:     raw,
		FailureTime: time.Now(),
	}
	if cause != nil {
		entry.Reason = cause.Error()
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal failure entry: %w", err)
	}

	// Store metadata
	if err := l.client.Set(ctx, failuresMetaPrefix+entry.ID, data, l.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store failure metadata: %w", err)
	}

	// Add to sorted set with timestamp as score
	if err := l.client.ZAdd(ctx, failuresKey, redis.Z{
		Score:  float64(entry.FailureTime.UnixNano()),
		Member: entry.ID,
	}).Err(); err != nil {
		return fmt.Errorf("failed to index failure: %w", err)
	}
	return nil
}

// Get retrieves one entry
func (l *WriteFailureLog) Get(ctx context.Context, id string) (*FailureEntry, error) {
	data, err := l.client.Get(ctx, failuresMetaPrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ports.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get failure entry: %w", err)
	}

	var entry FailureEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("failed to unmarshal failure entry: %w", err)
	}
	return &entry, nil
}

// List returns entries newest first. Expired entries are pruned from the index.
func (l *WriteFailureLog) List(ctx context.Context, offset, limit int64) ([]*FailureEntry, error) {
	ids, err := l.client.ZRevRange(ctx, failuresKey, offset, offset+limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list failures: %w", err)
	}

	entries := make([]*FailureEntry, 0, len(ids))
	for _, id := range ids {
		entry, err := l.Get(ctx, id)
		if errors.Is(err, ports.ErrNotFound) {
			l.client.ZRem(ctx, failuresKey, id)
			continue
		}
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (l *WriteFailureLog) Remove(ctx context.Context, id string) error {
	if err := l.client.ZRem(ctx, failuresKey, id).Err(); err != nil {
		return fmt.Errorf("failed to remove failure: %w", err)
	}
	if err := l.client.Del(ctx, failuresMetaPrefix+id).Err(); err != nil {
		return fmt.Errorf("failed to remove failure metadata: %w", err)
	}
	return nil
}

// Count returns the number of indexed entries
func (l *WriteFailureLog) Count(ctx context.Context) (int64, error) {
	count, err := l.client.ZCard(ctx, failuresKey).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count failures: %w", err)
	}
	return count, nil
}
