package services

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/KoDakness/404syndicate-sub000/internal/core/domain"
	"github.com/KoDakness/404syndicate-sub000/internal/core/logger"
	"github.com/KoDakness/404syndicate-sub000/internal/core/metrics"
	"github.com/KoDakness/404syndicate-sub000/internal/core/ports"
)

const (
	MaxChatLength   = 500
	RecentChatLimit = 50
	SystemChatUser  = "SYSTEM"
)

type ChatService struct {
	repo   ports.ChatRepository
	pubsub ports.ChatPubSub
	clock  Clock
}

func NewChatService(repo ports.ChatRepository, pubsub ports.ChatPubSub, clock Clock) *ChatService {
	if clock == nil {
		clock = SystemClock()
	}
	return &ChatService{repo: repo, pubsub: pubsub, clock: clock}
}

// Send stores a player message and publishes the insert.
func (s *ChatService) Send(ctx context.Context, username, content string) (*domain.ChatMessage, error) {
	content = strings.TrimSpace(content)
	if n := utf8.RuneCountInString(content); n == 0 || n > MaxChatLength {
		return nil, ErrInvalidChat
	}
	return s.insert(ctx, username, content, domain.ChatTypeUser)
}

// Announce posts a system message such as a bonus currency find.
func (s *ChatService) Announce(ctx context.Context, content string) (*domain.ChatMessage, error) {
	return s.insert(ctx, SystemChatUser, content, domain.ChatTypeSystem)
}

func (s *ChatService) insert(ctx context.Context, username, content string, kind domain.ChatType) (*domain.ChatMessage, error) {
	msg := &domain.ChatMessage{
		ID:        uuid.New().String(),
		Username:  username,
		Content:   content,
		Type:      kind,
		CreatedAt: s.clock.Now(),
	}
	if err := s.repo.InsertChatMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("failed to insert chat message: %w", err)
	}
	metrics.RecordChatMessage(string(kind))

	if s.pubsub != nil {
		if err := s.pubsub.PublishChat(ctx, msg); err != nil {
			// The row is stored; subscribers catch up from history.
			logger.Warn("Failed to publish chat message", "id", msg.ID, "error", err)
		}
	}
	return msg, nil
}

// Recent returns the latest messages, oldest first.
func (s *ChatService) Recent(ctx context.Context) ([]*domain.ChatMessage, error) {
	msgs, err := s.repo.ListRecentChat(ctx, RecentChatLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to list chat: %w", err)
	}
	return msgs, nil
}
