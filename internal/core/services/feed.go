package services

import (
	"sync"

	"github.com/KoDakness/404syndicate-sub000/internal/core/domain"
)

const FeedCapacity = 200

// FeedSink receives every feed entry as it is recorded.
type FeedSink interface {
	SendFeed(userID string, entry domain.FeedEntry)
}

type ring struct {
	entries []domain.FeedEntry
	next    int
	full    bool
}

func (r *ring) push(e domain.FeedEntry) {
	if len(r.entries) < FeedCapacity {
		r.entries = append(r.entries, e)
		return
	}
	r.entries[r.next] = e
	r.next = (r.next + 1) % FeedCapacity
	r.full = true
}

// ordered returns entries oldest first.
func (r *ring) ordered() []domain.FeedEntry {
	out := make([]domain.FeedEntry, 0, len(r.entries))
	if !r.full {
		return append(out, r.entries...)
	}
	out = append(out, r.entries[r.next:]...)
	return append(out, r.entries[:r.next]...)
}

// FeedService keeps each player's terminal feed and fans new lines out to sinks.
type FeedService struct {
	mu    sync.RWMutex
	feeds map[string]*ring
	sinks []FeedSink
	clock Clock
}

func NewFeedService(clock Clock) *FeedService {
	if clock == nil {
		clock = SystemClock()
	}
	return &FeedService{feeds: make(map[string]*ring), clock: clock}
}

// AddSink registers a sink. Call before sessions start.
func (f *FeedService) AddSink(s FeedSink) {
	f.mu.Lock()
	f.sinks = append(f.sinks, s)
	f.mu.Unlock()
}

// Notify records entry for userID.
func (f *FeedService) Notify(userID string, entry domain.FeedEntry) {
	if entry.At.IsZero() {
		entry.At = f.clock.Now()
	}
	f.mu.Lock()
	r, ok := f.feeds[userID]
	if !ok {
		r = &ring{}
		f.feeds[userID] = r
	}
	r.push(entry)
	sinks := f.sinks
	f.mu.Unlock()

	for _, s := range sinks {
		s.SendFeed(userID, entry)
	}
}

// Post is Notify with the timestamp filled in.
func (f *FeedService) Post(userID string, level domain.FeedLevel, text string) {
	f.Notify(userID, domain.FeedEntry{At: f.clock.Now(), Level: level, Text: text})
}

// Recent returns up to n entries, oldest first. n <= 0 means all.
func (f *FeedService) Recent(userID string, n int) []domain.FeedEntry {
	f.mu.RLock()
	defer f.mu.RUnlock()
	r, ok := f.feeds[userID]
	if !ok {
		return []domain.FeedEntry{}
	}
	all := r.ordered()
	if n > 0 && n < len(all) {
		return all[len(all)-n:]
	}
	return all
}

// Forget drops a player's feed.
func (f *FeedService) Forget(userID string) {
	f.mu.Lock()
	delete(f.feeds, userID)
	f.mu.Unlock()
}
