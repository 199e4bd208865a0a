package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/KoDakness/404syndicate-sub000/internal/core/domain"
	"github.com/KoDakness/404syndicate-sub000/internal/core/logger"
	"github.com/KoDakness/404syndicate-sub000/internal/core/metrics"
	"github.com/KoDakness/404syndicate-sub000/internal/core/ports"
)

const (
	DefaultTimeMultiplier = 1
	MaxTimeMultiplier     = 100
)

// SessionDeps are the collaborators shared by every session.
type SessionDeps struct {
	Catalog ports.Catalog
	Players *PlayerGateway
	Jobs    *JobWriter
	Chat    *ChatService
	Feed    *FeedService
	Clock   Clock
	// AfterFunc schedules f after d. Defaults to time.AfterFunc.
	AfterFunc func(d time.Duration, f func())
}

func (d SessionDeps) withDefaults() SessionDeps {
	if d.Clock == nil {
		d.Clock = SystemClock()
	}
	if d.AfterFunc == nil {
		d.AfterFunc = func(dur time.Duration, f func()) { time.AfterFunc(dur, f) }
	}
	if d.Feed == nil {
		d.Feed = NewFeedService(d.Clock)
	}
	return d
}

// ContractView is a board entry with its live countdown.
type ContractView struct {
	domain.Job
	TimeRemainingMs int64 `json:"time_remaining_ms"`
}

// Snapshot is a consistent read of a session's state.
type Snapshot struct {
	Player         domain.Player  `json:"player"`
	ActiveJobs     []string       `json:"active_jobs"`
	Contracts      []ContractView `json:"contracts"`
	TimeMultiplier int            `json:"time_multiplier"`
	Admin          bool           `json:"admin"`
	Leveling       bool           `json:"leveling"`
}

// Session owns one player's game state. All state is read and replaced on
// the goroutine running Run; callers reach it through do.
type Session struct {
	userID   string
	username string
	admin    bool

	deps      SessionDeps
	rng       Random
	scheduler *RefreshScheduler
	leveling  *ProgressionController
	ctx       context.Context
	log       *slog.Logger

	player         domain.Player
	jobs           []domain.Job
	visible        []domain.Job
	foreground     bool
	timeMultiplier int
	progressTicker *time.Ticker

	cmds       chan func()
	done       chan struct{}
	lastActive atomic.Int64
}

func newSession(deps SessionDeps, player domain.Player, rows []domain.PlayerJob, admin bool, rng Random) *Session {
	deps = deps.withDefaults()
	templates := deps.Catalog.Jobs()
	s := &Session{
		userID:         player.ID,
		username:       player.Username,
		admin:          admin,
		deps:           deps,
		rng:            rng,
		scheduler:      NewRefreshScheduler(templates, MaxVisibleContracts, rng),
		leveling:       NewProgressionController(),
		ctx:            logger.WithUser(context.Background(), player.ID),
		log:            logger.ForUser(player.ID),
		player:         player.Clone(),
		jobs:           domain.MergeJobs(templates, rows),
		foreground:     true,
		timeMultiplier: DefaultTimeMultiplier,
		cmds:           make(chan func(), 16),
		done:           make(chan struct{}),
	}
	s.touch()
	return s
}

// start loads the board and schedule. It runs before the loop starts.
func (s *Session) start() {
	now := s.deps.Clock.Now()
	upd, due := s.scheduler.Init(s.player, now)
	if !upd.Empty() {
		s.applyUpdate(upd)
	}
	if due {
		s.applyRotation(s.scheduler.Auto(s.jobs, now))
	} else {
		s.visible = s.scheduler.Select(s.jobs)
		s.warnIfEmpty()
	}
	s.feed(domain.FeedInfo, fmt.Sprintf("Connected as %s. %d contracts on the board.", s.username, len(s.visible)))
	s.evaluateLeveling()
}

// Run drives the session until ctx ends.
func (s *Session) Run(ctx context.Context) {
	defer close(s.done)

	refresh := time.NewTicker(RefreshCheckInterval)
	defer refresh.Stop()
	s.progressTicker = time.NewTicker(TickPeriod(s.timeMultiplier))
	defer s.progressTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Debug("Session loop stopped")
			return
		case <-refresh.C:
			s.checkRefresh()
		case <-s.progressTicker.C:
			s.tick()
		case fn := <-s.cmds:
			fn()
		}
	}
}

// Done is closed when the loop has exited.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

func (s *Session) UserID() string   { return s.userID }
func (s *Session) Username() string { return s.username }
func (s *Session) IsAdmin() bool    { return s.admin }

func (s *Session) touch() {
	s.lastActive.Store(s.deps.Clock.Now().UnixNano())
}

// IdleFor reports how long it has been since the last player action.
func (s *Session) IdleFor(now time.Time) time.Duration {
	return now.Sub(time.Unix(0, s.lastActive.Load()))
}

// do runs fn on the loop and waits for its result. Rejections and failures
// are echoed to the terminal feed.
func (s *Session) do(ctx context.Context, fn func() error) error {
	s.touch()
	reply := make(chan error, 1)
	cmd := func() {
		err := fn()
		s.report(err)
		reply <- err
	}
	select {
	case s.cmds <- cmd:
	case <-s.done:
		return ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-reply:
		return err
	case <-s.done:
		select {
		case err := <-reply:
			return err
		default:
			return ErrSessionClosed
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// post queues fn on the loop. It must not be called from the loop itself.
func (s *Session) post(fn func()) {
	select {
	case s.cmds <- fn:
	case <-s.done:
	}
}

func (s *Session) report(err error) {
	switch {
	case err == nil:
	case IsDuplicate(err):
		s.feed(domain.FeedInfo, err.Error())
	case IsRejection(err), err == ErrNotAdmin:
		s.feed(domain.FeedWarning, "Rejected: "+err.Error())
	default:
		s.log.Error("Session action failed", "error", err)
		s.feed(domain.FeedError, "ERROR: "+err.Error())
	}
}

func (s *Session) feed(level domain.FeedLevel, text string) {
	s.deps.Feed.Notify(s.userID, domain.FeedEntry{At: s.deps.Clock.Now(), Level: level, Text: text})
}

// applyUpdate replaces the local player and reconciles in the background.
func (s *Session) applyUpdate(upd domain.PlayerUpdate) *PendingWrite {
	next, pw := s.deps.Players.Apply(s.ctx, s.player, upd)
	changed := next.Experience != s.player.Experience
	s.player = next
	if changed {
		s.evaluateLeveling()
	}
	return pw
}

func (s *Session) evaluateLeveling() {
	plan, ok := s.leveling.Evaluate(s.deps.Clock.Now(), s.player, s.foreground)
	if !ok {
		return
	}
	next, pw := s.deps.Players.Apply(s.ctx, s.player, plan.Update())
	s.player = next
	s.feed(domain.FeedSuccess, plan.Message())
	metrics.RecordLevelUps(plan.LevelsGained)
	s.log.Info("Player leveled up", "level", plan.Level, "levels_gained", plan.LevelsGained)

	// The controller stays in Leveling until the write resolves; only then
	// does the cleanup delay start.
	go func() {
		err := pw.Wait(context.Background())
		s.post(func() {
			s.leveling.Complete(s.deps.Clock.Now(), err)
			if err != nil {
				s.feed(domain.FeedError, "ERROR: level-up was not saved")
			}
			s.deps.AfterFunc(LevelUpCleanupDelay, func() {
				s.post(s.leveling.Release)
			})
		})
	}()
}

func (s *Session) tick() {
	now := s.deps.Clock.Now()
	jobs, changes := AdvanceProgress(s.jobs, now)
	if len(changes) == 0 {
		return
	}
	s.jobs = jobs
	for _, ch := range changes {
		s.visible = ReplaceByID(s.visible, ch.Job)
		if ch.Completed {
			s.completeJob(ch.Job, now)
			continue
		}
		s.deps.Jobs.Save(s.ctx, s.userID, ch.Job.ID, domain.PlayerJobUpdate{Progress: domain.Ptr(ch.Job.Progress)})
	}
}

func (s *Session) completeJob(job domain.Job, now time.Time) {
	s.feed(domain.FeedSuccess, fmt.Sprintf("Contract complete: %s", job.Name))

	reward := ComputeReward(job)
	torcoin, wraithcoin := RollBonuses(s.rng, s.player.Loadouts)
	if torcoin {
		reward.Torcoins = 1
	}
	if wraithcoin {
		reward.Wraithcoins = 1
	}
	s.applyUpdate(RewardUpdate(s.player, reward))
	s.feed(domain.FeedSuccess, fmt.Sprintf("+%d credits, +%d XP", reward.Credits, reward.Experience))

	if torcoin {
		s.feed(domain.FeedSuccess, "You intercepted a Torcoin!")
		s.announce(fmt.Sprintf("%s intercepted a Torcoin!", s.username))
	}
	if wraithcoin {
		s.feed(domain.FeedSuccess, "Your wraith gear pulled a Wraithcoin out of the noise!")
		s.announce(fmt.Sprintf("%s pulled a Wraithcoin out of the noise!", s.username))
	}

	metrics.RecordCurrency(string(domain.CurrencyCredits), reward.Credits)
	metrics.RecordCurrency(string(domain.CurrencyTorcoins), reward.Torcoins)
	metrics.RecordCurrency(string(domain.CurrencyWraithcoins), reward.Wraithcoins)
	if job.StartTime != nil {
		metrics.RecordContractCompleted(string(job.Difficulty), now.Sub(*job.StartTime))
	}

	s.deps.Jobs.Save(s.ctx, s.userID, job.ID, domain.PlayerJobUpdate{
		Status:      domain.Ptr(domain.JobStatusCompleted),
		Progress:    domain.Ptr(100),
		CompletedAt: domain.Ptr(now),
	})
}

func (s *Session) announce(text string) {
	if s.deps.Chat == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), defaultWriteTimeout)
		defer cancel()
		if _, err := s.deps.Chat.Announce(ctx, text); err != nil {
			s.log.Warn("Failed to announce bonus", "error", err)
		}
	}()
}

func (s *Session) checkRefresh() {
	now := s.deps.Clock.Now()
	if !s.scheduler.Due(s.player, now) {
		return
	}
	s.applyRotation(s.scheduler.Auto(s.jobs, now))
}

func (s *Session) applyRotation(r Rotation) {
	s.jobs = r.Jobs
	s.visible = r.Visible
	s.applyUpdate(r.Update)
	s.deps.Jobs.Reset(s.ctx, s.userID, r.StaleJobIDs)
	metrics.RecordRefresh(string(r.Kind))

	if r.Kind == RefreshManual {
		s.feed(domain.FeedSuccess, fmt.Sprintf("Manual refresh complete. %d contracts on the board.", len(s.visible)))
	} else {
		s.feed(domain.FeedInfo, fmt.Sprintf("Contract board refreshed. %d contracts on the board.", len(s.visible)))
	}
	s.warnIfEmpty()
}

func (s *Session) warnIfEmpty() {
	if len(s.visible) > 0 {
		return
	}
	s.log.Warn("No contracts available for board")
	s.feed(domain.FeedWarning, "No contracts available right now. Check back after the next refresh.")
}

func (s *Session) snapshot() Snapshot {
	now := s.deps.Clock.Now()
	views := make([]ContractView, 0, len(s.visible))
	for _, j := range s.visible {
		views = append(views, ContractView{Job: j, TimeRemainingMs: j.TimeRemaining(now).Milliseconds()})
	}
	active := domain.ActiveJobIDs(s.jobs)
	if active == nil {
		active = []string{}
	}
	return Snapshot{
		Player:         s.player.Clone(),
		ActiveJobs:     active,
		Contracts:      views,
		TimeMultiplier: s.timeMultiplier,
		Admin:          s.admin,
		Leveling:       s.leveling.State() == LevelLeveling,
	}
}

// Snapshot returns the player and the board with live countdowns.
func (s *Session) Snapshot(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	err := s.do(ctx, func() error {
		snap = s.snapshot()
		return nil
	})
	return snap, err
}

// Feed returns the latest n terminal lines.
func (s *Session) Feed(n int) []domain.FeedEntry {
	return s.deps.Feed.Recent(s.userID, n)
}

func (s *Session) AcceptJob(ctx context.Context, jobID string, forced bool) (domain.Job, error) {
	var accepted domain.Job
	err := s.do(ctx, func() error {
		job, err := AcceptJob(s.visible, jobID, s.player.Skills, forced, s.deps.Clock.Now())
		if err != nil {
			return err
		}
		s.jobs = ReplaceByID(s.jobs, job)
		s.visible = ReplaceByID(s.visible, job)
		accepted = job

		mode := ""
		if forced {
			mode = " (forced, half pay)"
		}
		s.feed(domain.FeedInfo, fmt.Sprintf("Contract accepted: %s%s", job.Name, mode))
		if len(job.Messages) > 0 {
			s.feed(domain.FeedInfo, "> "+job.Messages[s.rng.Intn(len(job.Messages))])
		}
		metrics.RecordContractAccepted(string(job.Difficulty), forced)
		s.deps.Jobs.Save(s.ctx, s.userID, job.ID, AcceptUpdate(job))
		return nil
	})
	return accepted, err
}

func (s *Session) PurchaseEquipment(ctx context.Context, itemID string) error {
	return s.do(ctx, func() error {
		item, ok := s.deps.Catalog.FindEquipment(itemID)
		if !ok {
			return fmt.Errorf("%s: %w", itemID, ErrUnknownEquipment)
		}
		upd, err := Purchase(s.player, item)
		if err != nil {
			return err
		}
		s.applyUpdate(upd)
		s.feed(domain.FeedSuccess, fmt.Sprintf("Purchased %s for %d %s", item.Name, item.Price, currencyName(item.Currency)))
		return nil
	})
}

func (s *Session) CreateLoadout(ctx context.Context, baseID, motherboardID string) (domain.Loadout, error) {
	var created domain.Loadout
	err := s.do(ctx, func() error {
		upd, lo, err := CreateLoadout(s.player, s.deps.Catalog, uuid.New().String(), baseID, motherboardID)
		if err != nil {
			return err
		}
		s.applyUpdate(upd)
		created = lo
		s.feed(domain.FeedSuccess, fmt.Sprintf("Loadout %s assembled", lo.Name))
		return nil
	})
	return created, err
}

func (s *Session) EquipLoadout(ctx context.Context, loadoutID string) error {
	return s.do(ctx, func() error {
		upd, err := EquipLoadout(s.player, loadoutID)
		if err != nil {
			return err
		}
		s.applyUpdate(upd)
		s.feed(domain.FeedInfo, "Loadout equipped")
		return nil
	})
}

func (s *Session) InstallComponent(ctx context.Context, loadoutID, slot, componentID string) error {
	return s.do(ctx, func() error {
		upd, err := InstallComponent(s.player, s.deps.Catalog, loadoutID, slot, componentID)
		if err != nil {
			return err
		}
		if upd.Empty() {
			return nil
		}
		s.applyUpdate(upd)
		s.feed(domain.FeedInfo, fmt.Sprintf("Installed %s in %s", componentID, slot))
		return nil
	})
}

func (s *Session) UninstallComponent(ctx context.Context, loadoutID, slot string) error {
	return s.do(ctx, func() error {
		upd, err := UninstallComponent(s.player, loadoutID, slot)
		if err != nil {
			return err
		}
		s.applyUpdate(upd)
		s.feed(domain.FeedInfo, fmt.Sprintf("Removed component from %s", slot))
		return nil
	})
}

func (s *Session) DeleteLoadout(ctx context.Context, loadoutID string) error {
	return s.do(ctx, func() error {
		upd, err := DeleteLoadout(s.player, loadoutID)
		if err != nil {
			return err
		}
		s.applyUpdate(upd)
		s.feed(domain.FeedInfo, "Loadout deleted")
		return nil
	})
}

func (s *Session) UpgradeSkill(ctx context.Context, name string) error {
	return s.do(ctx, func() error {
		upd, err := UpgradeSkill(s.player, name)
		if err != nil {
			return err
		}
		s.applyUpdate(upd)
		level, _ := upd.Skills.Level(name)
		s.feed(domain.FeedSuccess, fmt.Sprintf("%s upgraded to level %d", name, level))
		return nil
	})
}

// RefreshContracts runs the automatic refresh if it is due. It reports
// whether the board rotated.
func (s *Session) RefreshContracts(ctx context.Context) (bool, error) {
	var rotated bool
	err := s.do(ctx, func() error {
		now := s.deps.Clock.Now()
		if !s.scheduler.Due(s.player, now) {
			return nil
		}
		s.applyRotation(s.scheduler.Auto(s.jobs, now))
		rotated = true
		return nil
	})
	return rotated, err
}

func (s *Session) ManualRefreshContracts(ctx context.Context) error {
	return s.do(ctx, func() error {
		r, err := s.scheduler.Manual(s.player, s.jobs, s.deps.Clock.Now())
		if err != nil {
			return err
		}
		s.applyRotation(r)
		return nil
	})
}

// ApplyEventReward credits torcoins won in a puzzle event.
func (s *Session) ApplyEventReward(ctx context.Context, torcoins int) error {
	return s.do(ctx, func() error {
		return s.applyEventReward(torcoins, "")
	})
}

// CompleteEvent pays the catalog reward of eventID.
func (s *Session) CompleteEvent(ctx context.Context, eventID string) error {
	return s.do(ctx, func() error {
		for _, ev := range s.deps.Catalog.Events() {
			if ev.ID == eventID {
				return s.applyEventReward(ev.Reward, ev.Name)
			}
		}
		return fmt.Errorf("%s: %w", eventID, ErrUnknownEvent)
	})
}

func (s *Session) applyEventReward(torcoins int, name string) error {
	if torcoins <= 0 {
		return ErrInvalidReward
	}
	s.applyUpdate(domain.PlayerUpdate{Torcoins: domain.Ptr(s.player.Torcoins + torcoins)})
	metrics.RecordCurrency(string(domain.CurrencyTorcoins), torcoins)
	if name != "" {
		s.feed(domain.FeedSuccess, fmt.Sprintf("Event cleared: %s. +%d torcoins", name, torcoins))
	} else {
		s.feed(domain.FeedSuccess, fmt.Sprintf("Event reward: +%d torcoins", torcoins))
	}
	return nil
}

func (s *Session) AdvanceTutorial(ctx context.Context, step int) error {
	return s.do(ctx, func() error {
		if step < 0 {
			return ErrInvalidTutorialStep
		}
		s.applyUpdate(domain.PlayerUpdate{TutorialStep: domain.Ptr(step)})
		return nil
	})
}

func (s *Session) CompleteTutorial(ctx context.Context) error {
	return s.do(ctx, func() error {
		if s.player.TutorialCompleted {
			return nil
		}
		s.applyUpdate(domain.PlayerUpdate{TutorialCompleted: domain.Ptr(true)})
		s.feed(domain.FeedSuccess, "Tutorial complete. Welcome to the syndicate.")
		return nil
	})
}

func (s *Session) MarkFeatureSeen(ctx context.Context, key string) error {
	return s.do(ctx, func() error {
		if key == "" {
			return ErrInvalidFeature
		}
		for _, k := range s.player.SeenFeatures {
			if k == key {
				return nil
			}
		}
		seen := append(append([]string(nil), s.player.SeenFeatures...), key)
		s.applyUpdate(domain.PlayerUpdate{SeenFeatures: &seen})
		return nil
	})
}

// SetVisibility records whether the player's view is in the foreground.
// Coming back re-evaluates any pending level-up.
func (s *Session) SetVisibility(ctx context.Context, visible bool) error {
	return s.do(ctx, func() error {
		was := s.foreground
		s.foreground = visible
		if visible && !was {
			s.evaluateLeveling()
		}
		return nil
	})
}

// SetTimeMultiplier speeds up the progress tick. Admins only.
func (s *Session) SetTimeMultiplier(ctx context.Context, multiplier int) error {
	return s.do(ctx, func() error {
		if !s.admin {
			return ErrNotAdmin
		}
		if multiplier < 1 || multiplier > MaxTimeMultiplier {
			return ErrInvalidMultiplier
		}
		s.timeMultiplier = multiplier
		if s.progressTicker != nil {
			s.progressTicker.Reset(TickPeriod(multiplier))
		}
		s.feed(domain.FeedInfo, fmt.Sprintf("Time multiplier set to %dx", multiplier))
		return nil
	})
}

// SendChat posts to global chat as this player.
func (s *Session) SendChat(ctx context.Context, content string) (*domain.ChatMessage, error) {
	s.touch()
	if s.deps.Chat == nil {
		return nil, ErrChatDisabled
	}
	msg, err := s.deps.Chat.Send(ctx, s.username, content)
	if err != nil && !IsRejection(err) {
		s.feed(domain.FeedError, "ERROR: "+err.Error())
	}
	return msg, err
}

func currencyName(c domain.Currency) string {
	if c == "" {
		return string(domain.CurrencyCredits)
	}
	return string(c)
}
