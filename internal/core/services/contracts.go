package services

import (
	"time"

	"github.com/KoDakness/404syndicate-sub000/internal/core/domain"
)

// AcceptJob starts a visible contract. Re-accepting a completed contract
// restarts it from 0. Unmet skill requirements are rejected unless forced.
func AcceptJob(visible []domain.Job, jobID string, skills domain.Skills, forced bool, now time.Time) (domain.Job, error) {
	var (
		job   domain.Job
		found bool
	)
	for _, j := range visible {
		if j.ID == jobID {
			job, found = j, true
			break
		}
	}
	if !found {
		return domain.Job{}, ErrJobNotFound
	}
	if job.InProgress() {
		return domain.Job{}, ErrJobInProgress
	}
	if !forced {
		if err := CheckRequirements(skills, job.SkillRequirements); err != nil {
			return domain.Job{}, err
		}
	}

	start := now
	job.Status = domain.JobStatusInProgress
	job.Progress = 0
	job.StartTime = &start
	job.CompletedAt = nil
	job.ForcedAccept = forced
	return job, nil
}

// AcceptUpdate is the row write for an accepted job.
func AcceptUpdate(job domain.Job) domain.PlayerJobUpdate {
	return domain.PlayerJobUpdate{
		Status:         domain.Ptr(domain.JobStatusInProgress),
		Progress:       domain.Ptr(0),
		StartTime:      job.StartTime,
		ClearCompleted: true,
		ForcedAccept:   domain.Ptr(job.ForcedAccept),
	}
}
