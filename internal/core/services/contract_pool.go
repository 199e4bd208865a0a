package services

import (
	"github.com/KoDakness/404syndicate-sub000/internal/core/domain"
)

// MaxVisibleContracts bounds the board, in-progress jobs excepted.
const MaxVisibleContracts = 8

// Shuffler is satisfied by *math/rand.Rand.
type Shuffler interface {
	Shuffle(n int, swap func(i, j int))
}

// ResetStatuses rebuilds the job list in template order. In-progress jobs are
// kept as they are; everything else goes back to a fresh available job.
func ResetStatuses(jobs []domain.Job, templates []domain.JobTemplate) []domain.Job {
	live := make(map[string]domain.Job, len(jobs))
	for _, j := range jobs {
		live[j.ID] = j
	}
	out := make([]domain.Job, 0, len(templates))
	for _, t := range templates {
		if j, ok := live[t.ID]; ok && j.InProgress() {
			out = append(out, j)
			continue
		}
		out = append(out, domain.NewJob(t))
	}
	return out
}

// StaleJobIDs returns the ids of jobs that carried state ResetStatuses throws away.
func StaleJobIDs(jobs []domain.Job) []string {
	var ids []string
	for _, j := range jobs {
		if j.InProgress() {
			continue
		}
		if j.Status != domain.JobStatusAvailable || j.Progress != 0 || j.StartTime != nil || j.CompletedAt != nil || j.ForcedAccept {
			ids = append(ids, j.ID)
		}
	}
	return ids
}

// SelectVisible builds the contract board: every in-progress job followed by a
// uniform sample of eligible jobs filling the remaining slots. The in-progress
// set is never truncated, so the result may exceed maxVisible.
func SelectVisible(jobs []domain.Job, activeIDs []string, maxVisible int, rng Shuffler) []domain.Job {
	active := make(map[string]struct{}, len(activeIDs))
	for _, id := range activeIDs {
		active[id] = struct{}{}
	}

	var inProgress, eligible []domain.Job
	for _, j := range jobs {
		if j.InProgress() {
			inProgress = append(inProgress, j)
			continue
		}
		if _, ok := active[j.ID]; ok || j.Status == domain.JobStatusCompleted {
			continue
		}
		eligible = append(eligible, j)
	}

	remaining := maxVisible - len(inProgress)
	if remaining < 0 {
		remaining = 0
	}

	visible := make([]domain.Job, 0, len(inProgress)+remaining)
	visible = append(visible, inProgress...)
	if remaining >= len(eligible) {
		return append(visible, eligible...)
	}

	rng.Shuffle(len(eligible), func(i, k int) {
		eligible[i], eligible[k] = eligible[k], eligible[i]
	})
	return append(visible, eligible[:remaining]...)
}
