package services

import (
	"context"
	"sync"
	"time"

	"github.com/KoDakness/404syndicate-sub000/internal/core/domain"
	"github.com/KoDakness/404syndicate-sub000/internal/core/ports"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// scriptedRandom replays ints for Intn and never reorders on Shuffle.
type scriptedRandom struct {
	mu   sync.Mutex
	ints []int
	i    int
}

func (r *scriptedRandom) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.ints) == 0 {
		return n - 1
	}
	v := r.ints[r.i%len(r.ints)]
	r.i++
	return v % n
}

func (r *scriptedRandom) Shuffle(n int, swap func(i, j int)) {}

// noBonus always rolls 99, so no bonus currency drops.
func noBonus() *scriptedRandom { return &scriptedRandom{ints: []int{99}} }

type mockPlayerRepo struct {
	mu      sync.Mutex
	updates []domain.PlayerUpdate

	GetPlayerFunc    func(ctx context.Context, userID string) (*domain.Player, error)
	CreatePlayerFunc func(ctx context.Context, userID, username string) (*domain.Player, error)
	UpdatePlayerFunc func(ctx context.Context, userID string, update domain.PlayerUpdate) error
	IsAdminFunc      func(ctx context.Context, userID string) (bool, error)
}

func (m *mockPlayerRepo) GetPlayer(ctx context.Context, userID string) (*domain.Player, error) {
	if m.GetPlayerFunc != nil {
		return m.GetPlayerFunc(ctx, userID)
	}
	return nil, ports.ErrNotFound
}

func (m *mockPlayerRepo) CreatePlayer(ctx context.Context, userID, username string) (*domain.Player, error) {
	if m.CreatePlayerFunc != nil {
		return m.CreatePlayerFunc(ctx, userID, username)
	}
	p := domain.NewPlayer(userID, username)
	return &p, nil
}

func (m *mockPlayerRepo) UpdatePlayer(ctx context.Context, userID string, update domain.PlayerUpdate) error {
	m.mu.Lock()
	m.updates = append(m.updates, update)
	m.mu.Unlock()
	if m.UpdatePlayerFunc != nil {
		return m.UpdatePlayerFunc(ctx, userID, update)
	}
	return nil
}

func (m *mockPlayerRepo) IsAdmin(ctx context.Context, userID string) (bool, error) {
	if m.IsAdminFunc != nil {
		return m.IsAdminFunc(ctx, userID)
	}
	return false, nil
}

func (m *mockPlayerRepo) Updates() []domain.PlayerUpdate {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.PlayerUpdate(nil), m.updates...)
}

type jobWrite struct {
	JobID  string
	Update domain.PlayerJobUpdate
}

type mockJobRepo struct {
	mu      sync.Mutex
	writes  []jobWrite
	deleted []string

	ListPlayerJobsFunc func(ctx context.Context, userID string) ([]domain.PlayerJob, error)
	UpsertFunc         func(ctx context.Context, userID, jobID string, update domain.PlayerJobUpdate) error
}

func (m *mockJobRepo) ListPlayerJobs(ctx context.Context, userID string) ([]domain.PlayerJob, error) {
	if m.ListPlayerJobsFunc != nil {
		return m.ListPlayerJobsFunc(ctx, userID)
	}
	return nil, nil
}

func (m *mockJobRepo) UpsertPlayerJob(ctx context.Context, userID, jobID string, update domain.PlayerJobUpdate) error {
	m.mu.Lock()
	m.writes = append(m.writes, jobWrite{JobID: jobID, Update: update})
	m.mu.Unlock()
	if m.UpsertFunc != nil {
		return m.UpsertFunc(ctx, userID, jobID, update)
	}
	return nil
}

func (m *mockJobRepo) DeletePlayerJobs(ctx context.Context, userID string, jobIDs []string) error {
	m.mu.Lock()
	m.deleted = append(m.deleted, jobIDs...)
	m.mu.Unlock()
	return nil
}

func (m *mockJobRepo) Writes() []jobWrite {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]jobWrite(nil), m.writes...)
}

func (m *mockJobRepo) Deleted() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.deleted...)
}

type mockChatRepo struct {
	mu       sync.Mutex
	messages []*domain.ChatMessage

	InsertFunc func(ctx context.Context, msg *domain.ChatMessage) error
}

func (m *mockChatRepo) InsertChatMessage(ctx context.Context, msg *domain.ChatMessage) error {
	if m.InsertFunc != nil {
		if err := m.InsertFunc(ctx, msg); err != nil {
			return err
		}
	}
	m.mu.Lock()
	m.messages = append(m.messages, msg)
	m.mu.Unlock()
	return nil
}

func (m *mockChatRepo) ListRecentChat(ctx context.Context, limit int) ([]*domain.ChatMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msgs := m.messages
	if len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return append([]*domain.ChatMessage(nil), msgs...), nil
}

func (m *mockChatRepo) Messages() []*domain.ChatMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*domain.ChatMessage(nil), m.messages...)
}

type mockPubSub struct {
	mu        sync.Mutex
	published []*domain.ChatMessage
}

func (m *mockPubSub) PublishChat(ctx context.Context, msg *domain.ChatMessage) error {
	m.mu.Lock()
	m.published = append(m.published, msg)
	m.mu.Unlock()
	return nil
}

func (m *mockPubSub) SubscribeChat(ctx context.Context) (<-chan *domain.ChatMessage, error) {
	ch := make(chan *domain.ChatMessage)
	go func() {
		<-ctx.Done()
		close(ch)
	}()
	return ch, nil
}

type mockSessionStore struct {
	sessions map[string]*domain.AuthSession
}

func (m *mockSessionStore) GetSession(ctx context.Context, token string) (*domain.AuthSession, error) {
	if s, ok := m.sessions[token]; ok {
		return s, nil
	}
	return nil, ports.ErrNotFound
}

type failureRecord struct {
	UserID string
	Kind   string
	Cause  error
}

type mockFailureSink struct {
	mu      sync.Mutex
	records []failureRecord
}

func (m *mockFailureSink) RecordFailure(ctx context.Context, userID, kind string, payload interface{}, cause error) error {
	m.mu.Lock()
	m.records = append(m.records, failureRecord{UserID: userID, Kind: kind, Cause: cause})
	m.mu.Unlock()
	return nil
}

func (m *mockFailureSink) Records() []failureRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]failureRecord(nil), m.records...)
}

type staticCatalog struct {
	jobs      []domain.JobTemplate
	equipment []domain.EquipmentTemplate
	events    []domain.EventTemplate
}

func (c *staticCatalog) Jobs() []domain.JobTemplate            { return c.jobs }
func (c *staticCatalog) Equipment() []domain.EquipmentTemplate { return c.equipment }
func (c *staticCatalog) Events() []domain.EventTemplate        { return c.events }

func (c *staticCatalog) FindEquipment(id string) (domain.EquipmentTemplate, bool) {
	for _, e := range c.equipment {
		if e.ID == id {
			return e, true
		}
	}
	return domain.EquipmentTemplate{}, false
}

func testCatalog() *staticCatalog {
	return &staticCatalog{
		jobs: []domain.JobTemplate{
			{ID: "job-ping", Name: "Ping Sweep", DurationMs: 10_000, Reward: 1000, Difficulty: domain.DifficultyEasy, Messages: []string{"Scanning subnet..."}},
			{ID: "job-phish", Name: "Phishing Kit", DurationMs: 60_000, Reward: 2000, Difficulty: domain.DifficultyMedium},
			{ID: "job-vault", Name: "Vault Breach", DurationMs: 120_000, Reward: 5000, Difficulty: domain.DifficultyHard,
				SkillRequirements: map[string]int{domain.SkillHacking: 3, domain.SkillCryptography: 2}},
			{ID: "job-heist", Name: "Long Con", DurationMs: 86_400_000, Reward: 9000, Difficulty: domain.DifficultyMedium},
		},
		equipment: []domain.EquipmentTemplate{
			{ID: "base-shell", Name: "Shell Case", Category: domain.CategoryBase, Price: 100, Currency: domain.CurrencyCredits},
			{ID: "base-wraith", Name: "Wraith Chassis", Category: domain.CategoryBase, Price: 2, Currency: domain.CurrencyWraithcoins},
			{ID: "mb-basic", Name: "Basic Board", Category: domain.CategoryMotherboard, Price: 150, Currency: domain.CurrencyCredits, Slots: []string{"cpu", "memory"}},
			{ID: "mb-pro", Name: "Pro Board", Category: domain.CategoryMotherboard, Price: 3, Currency: domain.CurrencyTorcoins, Slots: []string{"cpu", "memory", "network"}},
			{ID: "cpu-quad", Name: "Quad Core", Category: domain.CategoryComponent, Price: 80, Currency: domain.CurrencyCredits, SlotType: "cpu"},
			{ID: "cpu-octa", Name: "Octa Core", Category: domain.CategoryComponent, Price: 200, Currency: domain.CurrencyCredits, SlotType: "cpu"},
			{ID: "ram-8", Name: "8GB RAM", Category: domain.CategoryComponent, Price: 60, Currency: domain.CurrencyCredits, SlotType: "memory"},
		},
		events: []domain.EventTemplate{
			{ID: "ev-cipher", Name: "Cipher Hunt", Reward: 3},
		},
	}
}

// collectSink captures feed entries fanned out by a FeedService.
type collectSink struct {
	mu      sync.Mutex
	entries []domain.FeedEntry
}

func (c *collectSink) SendFeed(userID string, entry domain.FeedEntry) {
	c.mu.Lock()
	c.entries = append(c.entries, entry)
	c.mu.Unlock()
}

func (c *collectSink) Texts() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, e.Text)
	}
	return out
}
