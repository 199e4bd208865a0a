package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KoDakness/404syndicate-sub000/internal/core/circuitbreaker"
	"github.com/KoDakness/404syndicate-sub000/internal/core/domain"
)

func TestGatewayAppliesOptimistically(t *testing.T) {
	release := make(chan struct{})
	repo := &mockPlayerRepo{
		UpdatePlayerFunc: func(ctx context.Context, userID string, update domain.PlayerUpdate) error {
			<-release
			return nil
		},
	}
	g := NewPlayerGateway(repo, circuitbreaker.New("test-gw-ok"), nil, nil)
	p := domain.NewPlayer("u1", "neo")

	next, pw := g.Apply(context.Background(), p, domain.PlayerUpdate{Credits: domain.Ptr(900)})
	assert.Equal(t, 900, next.Credits, "local state changes before the write lands")
	assert.Equal(t, 500, p.Credits)

	select {
	case <-pw.Done():
		t.Fatal("write resolved before the store answered")
	default:
	}
	close(release)
	require.NoError(t, pw.Wait(context.Background()))

	updates := repo.Updates()
	require.Len(t, updates, 1)
	assert.Equal(t, map[string]interface{}{"credits": 900}, updates[0].Columns())
}

func TestGatewayEmptyUpdateSkipsWrite(t *testing.T) {
	repo := &mockPlayerRepo{}
	g := NewPlayerGateway(repo, circuitbreaker.New("test-gw-empty"), nil, nil)
	_, pw := g.Apply(context.Background(), domain.NewPlayer("u1", "neo"), domain.PlayerUpdate{})
	require.NoError(t, pw.Wait(context.Background()))
	assert.Empty(t, repo.Updates())
}

func TestGatewayFailureIsReportedNotReverted(t *testing.T) {
	boom := errors.New("connection reset")
	repo := &mockPlayerRepo{
		UpdatePlayerFunc: func(ctx context.Context, userID string, update domain.PlayerUpdate) error {
			return boom
		},
	}
	feed := NewFeedService(newFakeClock())
	sink := &collectSink{}
	feed.AddSink(sink)
	failures := &mockFailureSink{}
	g := NewPlayerGateway(repo, circuitbreaker.New("test-gw-fail"), feed, failures)

	next, pw := g.Apply(context.Background(), domain.NewPlayer("u1", "neo"), domain.PlayerUpdate{Torcoins: domain.Ptr(3)})
	assert.Equal(t, 3, next.Torcoins)
	assert.ErrorIs(t, pw.Wait(context.Background()), boom)

	texts := sink.Texts()
	require.Len(t, texts, 1)
	assert.True(t, strings.HasPrefix(texts[0], "ERROR:"))

	records := failures.Records()
	require.Len(t, records, 1)
	assert.Equal(t, "player_update", records[0].Kind)
	assert.Equal(t, "u1", records[0].UserID)
}

func TestGatewayWriteOutlivesCallerContext(t *testing.T) {
	repo := &mockPlayerRepo{
		UpdatePlayerFunc: func(ctx context.Context, userID string, update domain.PlayerUpdate) error {
			time.Sleep(10 * time.Millisecond)
			return ctx.Err()
		},
	}
	g := NewPlayerGateway(repo, circuitbreaker.New("test-gw-ctx"), nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	_, pw := g.Apply(ctx, domain.NewPlayer("u1", "neo"), domain.PlayerUpdate{Level: domain.Ptr(2)})
	cancel()
	assert.NoError(t, pw.Wait(context.Background()))
}

func TestJobWriter(t *testing.T) {
	repo := &mockJobRepo{}
	w := NewJobWriter(repo, circuitbreaker.New("test-jobs"), nil, nil)

	pw := w.Save(context.Background(), "u1", "job-ping", domain.PlayerJobUpdate{Progress: domain.Ptr(40)})
	require.NoError(t, pw.Wait(context.Background()))
	writes := repo.Writes()
	require.Len(t, writes, 1)
	assert.Equal(t, "job-ping", writes[0].JobID)

	require.NoError(t, w.Reset(context.Background(), "u1", nil).Wait(context.Background()))
	require.NoError(t, w.Reset(context.Background(), "u1", []string{"a", "b"}).Wait(context.Background()))
	assert.Equal(t, []string{"a", "b"}, repo.Deleted())
}
