package services

import (
	"time"

	"github.com/KoDakness/404syndicate-sub000/internal/core/domain"
)

// ProgressTickBase is the tick period at a time multiplier of 1.
const ProgressTickBase = 1000 * time.Millisecond

// ProgressChange is a job whose progress moved during a tick.
type ProgressChange struct {
	Job       domain.Job
	Completed bool
}

// TickPeriod returns the progress tick for a time multiplier.
func TickPeriod(multiplier int) time.Duration {
	if multiplier < 1 {
		multiplier = 1
	}
	return ProgressTickBase / time.Duration(multiplier)
}

// ComputeProgress is floor(elapsed/duration*100) clamped to [0, 100].
func ComputeProgress(start, now time.Time, duration time.Duration) int {
	if duration <= 0 {
		return 100
	}
	elapsed := now.Sub(start)
	if elapsed <= 0 {
		return 0
	}
	if elapsed >= duration {
		return 100
	}
	return int(int64(elapsed) * 100 / int64(duration))
}

// AdvanceProgress runs one tick over jobs in order. It returns the new job
// list and the changes that occurred; jobs is not modified.
func AdvanceProgress(jobs []domain.Job, now time.Time) ([]domain.Job, []ProgressChange) {
	var changes []ProgressChange
	out := make([]domain.Job, len(jobs))
	copy(out, jobs)

	for i, j := range out {
		if !j.InProgress() || j.StartTime == nil {
			continue
		}
		progress := ComputeProgress(*j.StartTime, now, j.Duration())
		if progress <= j.Progress {
			continue
		}
		j.Progress = progress
		completed := progress >= 100
		if completed {
			j.Progress = 100
			j.Status = domain.JobStatusCompleted
			at := now
			j.CompletedAt = &at
		}
		out[i] = j
		changes = append(changes, ProgressChange{Job: j, Completed: completed})
	}
	return out, changes
}

// ReplaceByID swaps entries of list whose id matches job, preserving order.
func ReplaceByID(list []domain.Job, job domain.Job) []domain.Job {
	out := make([]domain.Job, len(list))
	copy(out, list)
	for i := range out {
		if out[i].ID == job.ID {
			out[i] = job
		}
	}
	return out
}
