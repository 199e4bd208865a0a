package services

import (
	"time"

	"github.com/KoDakness/404syndicate-sub000/internal/core/domain"
)

const (
	AutoRefreshInterval    = 3_600_000 * time.Millisecond
	PostManualAutoCooldown = 900_000 * time.Millisecond
	ManualRefreshCooldown  = 43_200_000 * time.Millisecond
	RefreshCheckInterval   = 10 * time.Second
)

type RefreshKind string

const (
	RefreshAuto   RefreshKind = "auto"
	RefreshManual RefreshKind = "manual"
)

// Rotation is the result of resetting and resampling the contract board.
type Rotation struct {
	Kind    RefreshKind
	Jobs    []domain.Job
	Visible []domain.Job
	// StaleJobIDs are rows whose state the reset discarded.
	StaleJobIDs []string
	Update      domain.PlayerUpdate
}

// RefreshScheduler decides when the board rotates and what a rotation writes.
type RefreshScheduler struct {
	templates  []domain.JobTemplate
	maxVisible int
	rng        Shuffler
}

func NewRefreshScheduler(templates []domain.JobTemplate, maxVisible int, rng Shuffler) *RefreshScheduler {
	return &RefreshScheduler{templates: templates, maxVisible: maxVisible, rng: rng}
}

// Init is run on session load. A player without a schedule gets one an hour
// out; otherwise due reports whether an automatic refresh is owed now.
func (s *RefreshScheduler) Init(p domain.Player, now time.Time) (upd domain.PlayerUpdate, due bool) {
	if p.NextRefresh == nil {
		return domain.PlayerUpdate{NextRefresh: domain.Ptr(now.Add(AutoRefreshInterval))}, false
	}
	return domain.PlayerUpdate{}, s.Due(p, now)
}

func (s *RefreshScheduler) Due(p domain.Player, now time.Time) bool {
	return p.NextRefresh != nil && !now.Before(*p.NextRefresh)
}

// Select samples the board without resetting anything.
func (s *RefreshScheduler) Select(jobs []domain.Job) []domain.Job {
	return SelectVisible(jobs, domain.ActiveJobIDs(jobs), s.maxVisible, s.rng)
}

func (s *RefreshScheduler) rotate(jobs []domain.Job) Rotation {
	stale := StaleJobIDs(jobs)
	reset := ResetStatuses(jobs, s.templates)
	return Rotation{
		Jobs:        reset,
		Visible:     s.Select(reset),
		StaleJobIDs: stale,
	}
}

// Auto rotates the board and re-arms the hourly schedule. It also makes a
// manual refresh available again.
func (s *RefreshScheduler) Auto(jobs []domain.Job, now time.Time) Rotation {
	r := s.rotate(jobs)
	r.Kind = RefreshAuto
	r.Update = domain.PlayerUpdate{
		NextRefresh:            domain.Ptr(now.Add(AutoRefreshInterval)),
		ManualRefreshAvailable: domain.Ptr(true),
		LastRefresh:            domain.Ptr(now),
	}
	return r
}

// Manual rotates the board on demand. The next automatic refresh is pulled
// in to 15 minutes, which also restores manual availability then.
func (s *RefreshScheduler) Manual(p domain.Player, jobs []domain.Job, now time.Time) (Rotation, error) {
	if !p.ManualRefreshAvailable {
		return Rotation{}, ErrManualRefreshUnavailable
	}
	r := s.rotate(jobs)
	r.Kind = RefreshManual
	r.Update = domain.PlayerUpdate{
		NextManualRefresh:      domain.Ptr(now.Add(ManualRefreshCooldown)),
		ManualRefreshAvailable: domain.Ptr(false),
		NextRefresh:            domain.Ptr(now.Add(PostManualAutoCooldown)),
		LastRefresh:            domain.Ptr(now),
	}
	return r, nil
}
