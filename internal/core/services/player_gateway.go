package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/KoDakness/404syndicate-sub000/internal/core/circuitbreaker"
	"github.com/KoDakness/404syndicate-sub000/internal/core/domain"
	"github.com/KoDakness/404syndicate-sub000/internal/core/logger"
	"github.com/KoDakness/404syndicate-sub000/internal/core/metrics"
	"github.com/KoDakness/404syndicate-sub000/internal/core/ports"
	"github.com/KoDakness/404syndicate-sub000/internal/core/tracing"
)

const defaultWriteTimeout = 10 * time.Second

// PendingWrite resolves when a background write finishes.
type PendingWrite struct {
	done chan struct{}
	once sync.Once
	err  error
}

func newPendingWrite() *PendingWrite {
	return &PendingWrite{done: make(chan struct{})}
}

func resolvedWrite(err error) *PendingWrite {
	w := newPendingWrite()
	w.resolve(err)
	return w
}

func (w *PendingWrite) resolve(err error) {
	w.once.Do(func() {
		w.err = err
		close(w.done)
	})
}

// Done is closed once the write has finished.
func (w *PendingWrite) Done() <-chan struct{} {
	return w.done
}

// Wait blocks until the write finishes or ctx ends.
func (w *PendingWrite) Wait(ctx context.Context) error {
	select {
	case <-w.done:
		return w.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// writer runs best-effort writes in the background. Failures are logged,
// surfaced to the player's feed and journaled; they are never retried.
type writer struct {
	breaker  *circuitbreaker.CircuitBreaker
	notifier ports.Notifier
	failures ports.WriteFailureSink
	timeout  time.Duration
}

func (w *writer) launch(ctx context.Context, userID, kind, what string, payload interface{}, fn func(ctx context.Context) error) *PendingWrite {
	pw := newPendingWrite()
	// In-flight writes outlive the session that started them.
	base := context.WithoutCancel(ctx)
	go func() {
		ctx, cancel := context.WithTimeout(base, w.timeout)
		defer cancel()

		ctx, span := tracing.StartSpan(ctx, "write."+kind,
			attribute.String("user_id", userID),
			attribute.String("kind", kind),
		)
		err := w.breaker.Execute(ctx, func() error { return fn(ctx) })
		tracing.Finish(span, err)

		if err != nil {
			logger.Error("Persistence write failed", "user_id", userID, "kind", kind, "error", err)
			metrics.RecordWriteFailure(kind)
			if w.notifier != nil {
				w.notifier.Notify(userID, domain.FeedEntry{
					At:    time.Now(),
					Level: domain.FeedError,
					Text:  fmt.Sprintf("ERROR: failed to save %s: %v", what, err),
				})
			}
			if w.failures != nil {
				if jerr := w.failures.RecordFailure(ctx, userID, kind, payload, err); jerr != nil {
					logger.Warn("Failed to journal write failure", "user_id", userID, "kind", kind, "error", jerr)
				}
			}
		}
		pw.resolve(err)
	}()
	return pw
}

// PlayerGateway applies partial player updates optimistically and reconciles
// them with the store in the background. The contract is eventually
// consistent and last-writer-wins: a failed write is reported but the local
// state is not reverted, and concurrent writes land in arrival order.
type PlayerGateway struct {
	repo ports.PlayerRepository
	w    *writer
}

func NewPlayerGateway(repo ports.PlayerRepository, breaker *circuitbreaker.CircuitBreaker, notifier ports.Notifier, failures ports.WriteFailureSink) *PlayerGateway {
	if breaker == nil {
		breaker = circuitbreaker.New("player-writes")
	}
	return &PlayerGateway{
		repo: repo,
		w: &writer{
			breaker:  breaker,
			notifier: notifier,
			failures: failures,
			timeout:  defaultWriteTimeout,
		},
	}
}

// Apply merges upd into player and starts the remote write. Only the
// columns PlayerUpdate declares are ever forwarded.
func (g *PlayerGateway) Apply(ctx context.Context, player domain.Player, upd domain.PlayerUpdate) (domain.Player, *PendingWrite) {
	next := upd.ApplyTo(player)
	if upd.Empty() {
		return next, resolvedWrite(nil)
	}
	pw := g.w.launch(ctx, player.ID, "player_update", "player data", upd.Columns(), func(ctx context.Context) error {
		return g.repo.UpdatePlayer(ctx, player.ID, upd)
	})
	return next, pw
}

// JobWriter persists per-player job rows in the background.
type JobWriter struct {
	repo ports.JobStatusRepository
	w    *writer
}

func NewJobWriter(repo ports.JobStatusRepository, breaker *circuitbreaker.CircuitBreaker, notifier ports.Notifier, failures ports.WriteFailureSink) *JobWriter {
	if breaker == nil {
		breaker = circuitbreaker.New("job-writes")
	}
	return &JobWriter{
		repo: repo,
		w: &writer{
			breaker:  breaker,
			notifier: notifier,
			failures: failures,
			timeout:  defaultWriteTimeout,
		},
	}
}

func (j *JobWriter) Save(ctx context.Context, userID, jobID string, upd domain.PlayerJobUpdate) *PendingWrite {
	payload := upd.Columns()
	payload["job_id"] = jobID
	return j.w.launch(ctx, userID, "job_update", "contract "+jobID, payload, func(ctx context.Context) error {
		return j.repo.UpsertPlayerJob(ctx, userID, jobID, upd)
	})
}

// Reset deletes the rows of jobs returned to the pool.
func (j *JobWriter) Reset(ctx context.Context, userID string, jobIDs []string) *PendingWrite {
	if len(jobIDs) == 0 {
		return resolvedWrite(nil)
	}
	ids := append([]string(nil), jobIDs...)
	return j.w.launch(ctx, userID, "job_reset", "contract board", map[string]interface{}{"job_ids": ids}, func(ctx context.Context) error {
		return j.repo.DeletePlayerJobs(ctx, userID, ids)
	})
}
