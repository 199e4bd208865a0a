package ports

import (
	"context"
	"errors"

	"github.com/KoDakness/404syndicate-sub000/internal/core/domain"
)

// ErrNotFound is returned by repositories when a record does not exist.
var ErrNotFound = errors.New("record not found")

// ErrAlreadyExists is returned when creating a record whose key is taken.
var ErrAlreadyExists = errors.New("record already exists")

type PlayerRepository interface {
	GetPlayer(ctx context.Context, userID string) (*domain.Player, error)
	CreatePlayer(ctx context.Context, userID, username string) (*domain.Player, error)
	// UpdatePlayer writes only the columns present in the update.
	UpdatePlayer(ctx context.Context, userID string, update domain.PlayerUpdate) error
	IsAdmin(ctx context.Context, userID string) (bool, error)
}

type JobStatusRepository interface {
	ListPlayerJobs(ctx context.Context, userID string) ([]domain.PlayerJob, error)
	UpsertPlayerJob(ctx context.Context, userID, jobID string, update domain.PlayerJobUpdate) error
	// DeletePlayerJobs removes the rows of jobs that went back to the pool.
	DeletePlayerJobs(ctx context.Context, userID string, jobIDs []string) error
}

type ChatRepository interface {
	InsertChatMessage(ctx context.Context, msg *domain.ChatMessage) error
	ListRecentChat(ctx context.Context, limit int) ([]*domain.ChatMessage, error)
}

// ChatPubSub fans newly inserted chat rows out to every subscriber.
type ChatPubSub interface {
	PublishChat(ctx context.Context, msg *domain.ChatMessage) error
	SubscribeChat(ctx context.Context) (<-chan *domain.ChatMessage, error)
}

type SessionStore interface {
	GetSession(ctx context.Context, token string) (*domain.AuthSession, error)
}

// Catalog supplies the immutable template lists.
type Catalog interface {
	Jobs() []domain.JobTemplate
	Equipment() []domain.EquipmentTemplate
	Events() []domain.EventTemplate
	FindEquipment(id string) (domain.EquipmentTemplate, bool)
}

// Notifier delivers terminal feed lines to a player.
type Notifier interface {
	Notify(userID string, entry domain.FeedEntry)
}

// Presence reports whether a player has a live push connection.
type Presence interface {
	Connected(userID string) bool
}

// WriteFailureSink records persistence writes that were dropped.
type WriteFailureSink interface {
	RecordFailure(ctx context.Context, userID, kind string, payload interface{}, cause error) error
}
