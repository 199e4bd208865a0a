package services

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KoDakness/404syndicate-sub000/internal/core/circuitbreaker"
	"github.com/KoDakness/404syndicate-sub000/internal/core/domain"
)

type harness struct {
	clock   *fakeClock
	players *mockPlayerRepo
	jobs    *mockJobRepo
	chat    *mockChatRepo
	feed    *FeedService
	sink    *collectSink
	deps    SessionDeps

	mu    sync.Mutex
	after []func()
}

func newHarness(t *testing.T) *harness {
	h := &harness{
		clock:   newFakeClock(),
		players: &mockPlayerRepo{},
		jobs:    &mockJobRepo{},
		chat:    &mockChatRepo{},
		sink:    &collectSink{},
	}
	h.feed = NewFeedService(h.clock)
	h.feed.AddSink(h.sink)
	h.deps = SessionDeps{
		Catalog: testCatalog(),
		Players: NewPlayerGateway(h.players, circuitbreaker.New("session-players-"+t.Name()), h.feed, nil),
		Jobs:    NewJobWriter(h.jobs, circuitbreaker.New("session-jobs-"+t.Name()), h.feed, nil),
		Chat:    NewChatService(h.chat, nil, h.clock),
		Feed:    h.feed,
		Clock:   h.clock,
		AfterFunc: func(d time.Duration, f func()) {
			h.mu.Lock()
			h.after = append(h.after, f)
			h.mu.Unlock()
		},
	}
	return h
}

// runAfter fires every scheduled delayed callback.
func (h *harness) runAfter() {
	h.mu.Lock()
	fns := h.after
	h.after = nil
	h.mu.Unlock()
	for _, f := range fns {
		f()
	}
}

// releaseLeveling fires the level-up cleanup once the write has resolved
// and scheduled it.
func (h *harness) releaseLeveling(t *testing.T, s *Session) {
	t.Helper()
	require.Eventually(t, func() bool {
		h.runAfter()
		snap, err := s.Snapshot(context.Background())
		return err == nil && !snap.Leveling
	}, time.Second, 10*time.Millisecond)
}

func (h *harness) player() domain.Player {
	p := domain.NewPlayer("u1", "neo")
	p.NextRefresh = domain.Ptr(h.clock.Now().Add(30 * time.Minute))
	return p
}

func (h *harness) start(t *testing.T, p domain.Player, rows []domain.PlayerJob, admin bool, rng Random) *Session {
	t.Helper()
	s := newSession(h.deps, p, rows, admin, rng)
	s.start()
	ctx, cancel := context.WithCancel(context.Background())
	go s.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-s.Done()
	})
	return s
}

// tick runs one progress tick on the loop.
func tick(t *testing.T, s *Session) {
	t.Helper()
	require.NoError(t, s.do(context.Background(), func() error {
		s.tick()
		return nil
	}))
}

func (h *harness) feedHas(substr string) bool {
	for _, text := range h.sink.Texts() {
		if strings.Contains(text, substr) {
			return true
		}
	}
	return false
}

func TestSessionContractLifecycle(t *testing.T) {
	h := newHarness(t)
	p := h.player()
	p.Experience = 990
	s := h.start(t, p, nil, false, noBonus())
	ctx := context.Background()

	snap, err := s.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, snap.Contracts, 4)
	assert.Empty(t, snap.ActiveJobs)

	job, err := s.AcceptJob(ctx, "job-ping", false)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusInProgress, job.Status)
	assert.True(t, h.feedHas("Contract accepted: Ping Sweep"))
	assert.True(t, h.feedHas("> Scanning subnet..."))

	_, err = s.AcceptJob(ctx, "job-ping", false)
	assert.ErrorIs(t, err, ErrJobInProgress)

	h.clock.Advance(5 * time.Second)
	tick(t, s)
	snap, err = s.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"job-ping"}, snap.ActiveJobs)
	assert.Equal(t, 50, contract(t, snap, "job-ping").Progress)
	assert.Equal(t, int64(5000), contract(t, snap, "job-ping").TimeRemainingMs)

	h.clock.Advance(5 * time.Second)
	tick(t, s)
	snap, err = s.Snapshot(ctx)
	require.NoError(t, err)

	done := contract(t, snap, "job-ping")
	assert.Equal(t, domain.JobStatusCompleted, done.Status)
	assert.Equal(t, 100, done.Progress)
	assert.Equal(t, "job-ping", snap.Contracts[0].ID, "board order preserved")

	assert.Equal(t, 1650, snap.Player.Credits)
	assert.Equal(t, 2, snap.Player.Level)
	assert.Equal(t, 30, snap.Player.Experience)
	assert.Equal(t, 1, snap.Player.Skills.SkillPoints)
	assert.True(t, snap.Leveling)
	assert.True(t, h.feedHas("Contract complete: Ping Sweep"))
	assert.True(t, h.feedHas("+1150 credits, +40 XP"))
	assert.True(t, h.feedHas("LEVEL UP!"))

	require.Eventually(t, func() bool {
		for _, w := range h.jobs.Writes() {
			if w.JobID == "job-ping" && w.Update.Status != nil && *w.Update.Status == domain.JobStatusCompleted {
				return true
			}
		}
		return false
	}, time.Second, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		for _, u := range h.players.Updates() {
			if u.Level != nil && *u.Level == 2 {
				return true
			}
		}
		return false
	}, time.Second, 10*time.Millisecond)

	h.releaseLeveling(t, s)

	job, err = s.AcceptJob(ctx, "job-ping", false)
	require.NoError(t, err)
	assert.Equal(t, 0, job.Progress, "re-accept restarts progress")
}

func contract(t *testing.T, snap Snapshot, id string) ContractView {
	t.Helper()
	for _, c := range snap.Contracts {
		if c.ID == id {
			return c
		}
	}
	t.Fatalf("contract %s not on board", id)
	return ContractView{}
}

func TestSessionForcedAcceptHalvesPay(t *testing.T) {
	h := newHarness(t)
	s := h.start(t, h.player(), nil, false, noBonus())
	ctx := context.Background()

	_, err := s.AcceptJob(ctx, "job-vault", false)
	require.Error(t, err)
	assert.True(t, IsRejection(err))
	assert.True(t, h.feedHas("Rejected: insufficient skills: hacking 1/3, cryptography 1/2"))

	_, err = s.AcceptJob(ctx, "job-vault", true)
	require.NoError(t, err)

	h.clock.Advance(2 * time.Minute)
	tick(t, s)
	snap, err := s.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, 500+2875, snap.Player.Credits)
	assert.Equal(t, 100, snap.Player.Experience)
}

func TestSessionTorcoinAnnouncement(t *testing.T) {
	h := newHarness(t)
	s := h.start(t, h.player(), nil, false, &scriptedRandom{ints: []int{0, 99}})
	ctx := context.Background()

	_, err := s.AcceptJob(ctx, "job-phish", false)
	require.NoError(t, err)
	h.clock.Advance(time.Minute)
	tick(t, s)

	snap, err := s.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, snap.Player.Torcoins)
	assert.Equal(t, 0, snap.Player.Wraithcoins)
	assert.True(t, h.feedHas("You intercepted a Torcoin!"))

	require.Eventually(t, func() bool {
		msgs := h.chat.Messages()
		return len(msgs) == 1 && msgs[0].Type == domain.ChatTypeSystem && strings.Contains(msgs[0].Content, "neo")
	}, time.Second, 10*time.Millisecond)
}

func TestSessionRefresh(t *testing.T) {
	h := newHarness(t)
	s := h.start(t, h.player(), nil, false, noBonus())
	ctx := context.Background()

	err := s.ManualRefreshContracts(ctx)
	assert.ErrorIs(t, err, ErrManualRefreshUnavailable)

	rotated, err := s.RefreshContracts(ctx)
	require.NoError(t, err)
	assert.False(t, rotated, "not due yet")

	_, err = s.AcceptJob(ctx, "job-heist", false)
	require.NoError(t, err)

	h.clock.Advance(31 * time.Minute)
	rotated, err = s.RefreshContracts(ctx)
	require.NoError(t, err)
	assert.True(t, rotated)

	snap, err := s.Snapshot(ctx)
	require.NoError(t, err)
	assert.True(t, snap.Player.ManualRefreshAvailable)
	assert.Equal(t, h.clock.Now().Add(time.Hour), *snap.Player.NextRefresh)
	assert.Equal(t, "job-heist", snap.Contracts[0].ID, "in-progress survives the rotation")
	assert.True(t, contract(t, snap, "job-heist").InProgress())

	require.NoError(t, s.ManualRefreshContracts(ctx))
	snap, err = s.Snapshot(ctx)
	require.NoError(t, err)
	assert.False(t, snap.Player.ManualRefreshAvailable)
	assert.Equal(t, h.clock.Now().Add(15*time.Minute), *snap.Player.NextRefresh)
	assert.Equal(t, h.clock.Now().Add(12*time.Hour), *snap.Player.NextManualRefresh)
	assert.True(t, contract(t, snap, "job-heist").InProgress())
	assert.True(t, h.feedHas("Manual refresh complete"))
}

func TestSessionStartRotatesOverdueBoard(t *testing.T) {
	h := newHarness(t)
	p := h.player()
	p.NextRefresh = domain.Ptr(h.clock.Now().Add(-time.Minute))
	done := h.clock.Now().Add(-time.Hour)
	rows := []domain.PlayerJob{{UserID: "u1", JobID: "job-ping", Status: domain.JobStatusCompleted, Progress: 100, CompletedAt: &done}}

	s := h.start(t, p, rows, false, noBonus())
	snap, err := s.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusAvailable, contract(t, snap, "job-ping").Status)
	assert.True(t, snap.Player.ManualRefreshAvailable)

	require.Eventually(t, func() bool {
		return assert.ObjectsAreEqual([]string{"job-ping"}, h.jobs.Deleted())
	}, time.Second, 10*time.Millisecond)
}

func TestSessionArmsMissingSchedule(t *testing.T) {
	h := newHarness(t)
	p := domain.NewPlayer("u1", "neo")
	s := h.start(t, p, nil, false, noBonus())

	snap, err := s.Snapshot(context.Background())
	require.NoError(t, err)
	require.NotNil(t, snap.Player.NextRefresh)
	assert.Equal(t, h.clock.Now().Add(time.Hour), *snap.Player.NextRefresh)
}

func TestSessionLevelingWaitsForForeground(t *testing.T) {
	h := newHarness(t)
	p := h.player()
	p.Experience = 980
	s := h.start(t, p, nil, false, noBonus())
	ctx := context.Background()

	require.NoError(t, s.SetVisibility(ctx, false))
	_, err := s.AcceptJob(ctx, "job-ping", false)
	require.NoError(t, err)
	h.clock.Advance(10 * time.Second)
	tick(t, s)

	snap, err := s.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, snap.Player.Level)
	assert.Equal(t, 1020, snap.Player.Experience)

	require.NoError(t, s.SetVisibility(ctx, true))
	snap, err = s.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, snap.Player.Level)
	assert.Equal(t, 20, snap.Player.Experience)
}

func TestSessionLevelUpBlocksUntilWriteResolves(t *testing.T) {
	h := newHarness(t)
	gate := make(chan struct{})
	var once sync.Once
	release := func() { once.Do(func() { close(gate) }) }
	t.Cleanup(release)

	var levelWrites atomic.Int32
	h.players.UpdatePlayerFunc = func(ctx context.Context, userID string, upd domain.PlayerUpdate) error {
		if upd.Level != nil && levelWrites.Add(1) == 1 {
			<-gate
		}
		return nil
	}

	p := h.player()
	p.Experience = 1500
	s := h.start(t, p, nil, false, noBonus())
	ctx := context.Background()
	setExperience := func(exp int) {
		require.NoError(t, s.do(ctx, func() error {
			s.applyUpdate(domain.PlayerUpdate{Experience: domain.Ptr(exp)})
			return nil
		}))
	}

	snap, err := s.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, snap.Player.Level)
	assert.Equal(t, 500, snap.Player.Experience)
	assert.True(t, snap.Leveling)

	// Well past the cleanup delay, with the first write still pending.
	h.clock.Advance(5 * time.Second)
	h.runAfter()
	setExperience(1200)

	snap, err = s.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, snap.Player.Level, "no second level-up while the first is in flight")
	assert.Equal(t, 1200, snap.Player.Experience)
	assert.True(t, snap.Leveling)
	assert.Equal(t, int32(1), levelWrites.Load())

	release()
	h.releaseLeveling(t, s)

	h.clock.Advance(LevelUpMinInterval + time.Second)
	setExperience(1300)
	snap, err = s.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, snap.Player.Level)
	assert.Equal(t, 300, snap.Player.Experience)
	require.Eventually(t, func() bool { return levelWrites.Load() == 2 }, time.Second, 10*time.Millisecond)
}

func TestSessionShopAndLoadouts(t *testing.T) {
	h := newHarness(t)
	p := h.player()
	p.Credits = 1000
	s := h.start(t, p, nil, false, noBonus())
	ctx := context.Background()

	require.NoError(t, s.PurchaseEquipment(ctx, "base-shell"))
	require.NoError(t, s.PurchaseEquipment(ctx, "mb-basic"))
	require.NoError(t, s.PurchaseEquipment(ctx, "cpu-quad"))
	assert.ErrorIs(t, s.PurchaseEquipment(ctx, "cpu-quad"), ErrAlreadyOwned)
	assert.ErrorIs(t, s.PurchaseEquipment(ctx, "nope"), ErrUnknownEquipment)

	lo, err := s.CreateLoadout(ctx, "base-shell", "mb-basic")
	require.NoError(t, err)
	assert.True(t, lo.Active)
	require.NoError(t, s.InstallComponent(ctx, lo.ID, "cpu", "cpu-quad"))

	snap, err := s.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1000-100-150-80, snap.Player.Credits)
	require.Len(t, snap.Player.Loadouts, 1)
	assert.Equal(t, "cpu-quad", snap.Player.Loadouts[0].Components["cpu"])

	require.NoError(t, s.UninstallComponent(ctx, lo.ID, "cpu"))
	require.NoError(t, s.EquipLoadout(ctx, lo.ID))
	require.NoError(t, s.DeleteLoadout(ctx, lo.ID))
	snap, err = s.Snapshot(ctx)
	require.NoError(t, err)
	assert.Empty(t, snap.Player.Loadouts)
	assert.True(t, h.feedHas("Purchased Shell Case for 100 credits"))
}

func TestSessionSkillsEventsTutorial(t *testing.T) {
	h := newHarness(t)
	p := h.player()
	p.Skills.SkillPoints = 1
	s := h.start(t, p, nil, false, noBonus())
	ctx := context.Background()

	require.NoError(t, s.UpgradeSkill(ctx, domain.SkillHacking))
	assert.ErrorIs(t, s.UpgradeSkill(ctx, domain.SkillHacking), ErrNoSkillPoints)

	assert.ErrorIs(t, s.ApplyEventReward(ctx, 0), ErrInvalidReward)
	require.NoError(t, s.ApplyEventReward(ctx, 2))
	require.NoError(t, s.CompleteEvent(ctx, "ev-cipher"))
	assert.ErrorIs(t, s.CompleteEvent(ctx, "ev-missing"), ErrUnknownEvent)

	require.NoError(t, s.AdvanceTutorial(ctx, 3))
	assert.ErrorIs(t, s.AdvanceTutorial(ctx, -1), ErrInvalidTutorialStep)
	require.NoError(t, s.MarkFeatureSeen(ctx, "shop"))
	require.NoError(t, s.MarkFeatureSeen(ctx, "shop"))
	require.NoError(t, s.CompleteTutorial(ctx))

	snap, err := s.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, snap.Player.Skills.Hacking)
	assert.Equal(t, 0, snap.Player.Skills.SkillPoints)
	assert.Equal(t, 5, snap.Player.Torcoins)
	assert.Equal(t, 3, snap.Player.TutorialStep)
	assert.True(t, snap.Player.TutorialCompleted)
	assert.Equal(t, []string{"shop"}, snap.Player.SeenFeatures)
	assert.True(t, h.feedHas("Event cleared: Cipher Hunt. +3 torcoins"))
}

func TestSessionTimeMultiplier(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	s := h.start(t, h.player(), nil, false, noBonus())
	assert.ErrorIs(t, s.SetTimeMultiplier(ctx, 10), ErrNotAdmin)

	admin := h.start(t, h.player(), nil, true, noBonus())
	require.NoError(t, admin.SetTimeMultiplier(ctx, 10))
	assert.ErrorIs(t, admin.SetTimeMultiplier(ctx, 0), ErrInvalidMultiplier)
	assert.ErrorIs(t, admin.SetTimeMultiplier(ctx, 101), ErrInvalidMultiplier)

	snap, err := admin.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, 10, snap.TimeMultiplier)
	assert.True(t, snap.Admin)
}

func TestSessionSendChat(t *testing.T) {
	h := newHarness(t)
	s := h.start(t, h.player(), nil, false, noBonus())

	msg, err := s.SendChat(context.Background(), "hello syndicate")
	require.NoError(t, err)
	assert.Equal(t, "neo", msg.Username)

	_, err = s.SendChat(context.Background(), "")
	assert.ErrorIs(t, err, ErrInvalidChat)
}

func TestSessionClosed(t *testing.T) {
	h := newHarness(t)
	s := newSession(h.deps, h.player(), nil, false, noBonus())
	s.start()
	ctx, cancel := context.WithCancel(context.Background())
	go s.Run(ctx)
	cancel()
	<-s.Done()

	_, err := s.Snapshot(context.Background())
	assert.ErrorIs(t, err, ErrSessionClosed)
}
