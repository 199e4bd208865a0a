package domain

import (
	"time"
)

type JobStatus string

const (
	JobStatusAvailable  JobStatus = "available"
	JobStatusInProgress JobStatus = "in-progress"
	JobStatusCompleted  JobStatus = "completed"
)

type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// JobTemplate is the immutable catalog definition of a contract.
type JobTemplate struct {
	ID                string         `json:"id" yaml:"id"`
	Name              string         `json:"name" yaml:"name"`
	Description       string         `json:"description" yaml:"description"`
	DurationMs        int64          `json:"duration_ms" yaml:"duration_ms"`
	Reward            int            `json:"reward" yaml:"reward"`
	Difficulty        Difficulty     `json:"difficulty" yaml:"difficulty"`
	RiskLevel         string         `json:"risk_level" yaml:"risk_level"`
	Faction           string         `json:"faction" yaml:"faction"`
	Type              string         `json:"type" yaml:"type"`
	SkillRequirements map[string]int `json:"skill_requirements,omitempty" yaml:"skill_requirements"`
	Messages          []string       `json:"messages,omitempty" yaml:"messages"`
}

func (t JobTemplate) Duration() time.Duration {
	return time.Duration(t.DurationMs) * time.Millisecond
}

// Job is a template merged with the player's instance state.
type Job struct {
	JobTemplate
	Status       JobStatus  `json:"status"`
	Progress     int        `json:"progress"`
	StartTime    *time.Time `json:"start_time,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	ForcedAccept bool       `json:"forced_accept"`
}

// NewJob instantiates an available job from its template.
func NewJob(t JobTemplate) Job {
	return Job{JobTemplate: t, Status: JobStatusAvailable}
}

func (j Job) InProgress() bool {
	return j.Status == JobStatusInProgress
}

// TimeRemaining is zero unless the job is in progress.
func (j Job) TimeRemaining(now time.Time) time.Duration {
	if !j.InProgress() || j.StartTime == nil {
		return 0
	}
	left := j.Duration() - now.Sub(*j.StartTime)
	if left < 0 {
		return 0
	}
	return left
}

// PlayerJob is the persisted per-player status row of a job.
type PlayerJob struct {
	ID           int64      `json:"id" gorm:"primaryKey;autoIncrement"`
	UserID       string     `json:"user_id" gorm:"uniqueIndex:idx_player_job;not null"`
	JobID        string     `json:"job_id" gorm:"uniqueIndex:idx_player_job;not null"`
	Status       JobStatus  `json:"status" gorm:"not null;default:available"`
	Progress     int        `json:"progress" gorm:"default:0"`
	StartTime    *time.Time `json:"start_time"`
	CompletedAt  *time.Time `json:"completed_at"`
	ForcedAccept bool       `json:"forced_accept" gorm:"default:false"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func (PlayerJob) TableName() string {
	return "player_jobs"
}

// PlayerJobUpdate carries the fields of an upsert. Nil fields are left untouched.
type PlayerJobUpdate struct {
	Status      *JobStatus
	Progress    *int
	StartTime   *time.Time
	ClearStart  bool
	CompletedAt *time.Time
	// ClearCompleted nulls completed_at when CompletedAt is nil.
	ClearCompleted bool
	ForcedAccept   *bool
}

// Columns returns the column map forwarded to the store.
func (u PlayerJobUpdate) Columns() map[string]interface{} {
	cols := make(map[string]interface{})
	if u.Status != nil {
		cols["status"] = string(*u.Status)
	}
	if u.Progress != nil {
		cols["progress"] = *u.Progress
	}
	if u.StartTime != nil {
		cols["start_time"] = *u.StartTime
	} else if u.ClearStart {
		cols["start_time"] = nil
	}
	if u.CompletedAt != nil {
		cols["completed_at"] = *u.CompletedAt
	} else if u.ClearCompleted {
		cols["completed_at"] = nil
	}
	if u.ForcedAccept != nil {
		cols["forced_accept"] = *u.ForcedAccept
	}
	return cols
}

// ApplyTo copies the update onto a row.
func (u PlayerJobUpdate) ApplyTo(row *PlayerJob) {
	if u.Status != nil {
		row.Status = *u.Status
	}
	if u.Progress != nil {
		row.Progress = *u.Progress
	}
	if u.StartTime != nil {
		st := *u.StartTime
		row.StartTime = &st
	} else if u.ClearStart {
		row.StartTime = nil
	}
	if u.CompletedAt != nil {
		ct := *u.CompletedAt
		row.CompletedAt = &ct
	} else if u.ClearCompleted {
		row.CompletedAt = nil
	}
	if u.ForcedAccept != nil {
		row.ForcedAccept = *u.ForcedAccept
	}
}

// MergeJobs builds the live job list in template order from catalog templates
// and the player's persisted rows.
func MergeJobs(templates []JobTemplate, rows []PlayerJob) []Job {
	byID := make(map[string]PlayerJob, len(rows))
	for _, r := range rows {
		byID[r.JobID] = r
	}
	jobs := make([]Job, 0, len(templates))
	for _, t := range templates {
		job := NewJob(t)
		if r, ok := byID[t.ID]; ok {
			job.Status = r.Status
			job.Progress = r.Progress
			job.ForcedAccept = r.ForcedAccept
			if r.StartTime != nil {
				st := *r.StartTime
				job.StartTime = &st
			}
			if r.CompletedAt != nil {
				ct := *r.CompletedAt
				job.CompletedAt = &ct
			}
			if job.Status == "" {
				job.Status = JobStatusAvailable
			}
			if job.Status == JobStatusInProgress && job.StartTime == nil {
				// An in-progress row without a start time cannot advance.
				job.Status = JobStatusAvailable
				job.Progress = 0
			}
		}
		jobs = append(jobs, job)
	}
	return jobs
}

// ActiveJobIDs lists the ids of in-progress jobs in order.
func ActiveJobIDs(jobs []Job) []string {
	var ids []string
	for _, j := range jobs {
		if j.InProgress() {
			ids = append(ids, j.ID)
		}
	}
	return ids
}
