package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"livepoll/internal/cache"
	"livepoll/internal/model"
	"livepoll/internal/repository"
)

// ChatService appends chat messages to the poll log and broadcasts them.
// Messages are mirrored to a capped Redis list so late joiners get recent
// history without loading the aggregate.
type ChatService struct {
	pollRepo    repository.PollRepo
	chatCache   cache.ChatCache
	registry    *SessionRegistry
	broadcaster Broadcaster
	logger      *zap.Logger
}

// NewChatService creates a new chat service.
func NewChatService(
	pollRepo repository.PollRepo,
	chatCache cache.ChatCache,
	registry *SessionRegistry,
	logger *zap.Logger,
) *ChatService {
	return &ChatService{
		pollRepo:  pollRepo,
		chatCache: chatCache,
		registry:  registry,
		logger:    logger,
	}
}

// SetBroadcaster sets the broadcaster for WebSocket events.
func (s *ChatService) SetBroadcaster(b Broadcaster) {
	s.broadcaster = b
}

// Send appends a message and broadcasts it to the room.
func (s *ChatService) Send(ctx context.Context, pollID, sender, role, text string) error {
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("%w: message text is required", ErrValidation)
	}

	msg := model.ChatMessage{
		Sender:    sender,
		Role:      role,
		Text:      text,
		Timestamp: time.Now(),
	}

	unlock := s.registry.LockPoll(pollID)
	defer unlock()

	poll, err := s.pollRepo.GetByID(ctx, pollID)
	if err != nil {
		return fmt.Errorf("failed to get poll: %w", err)
	}
	if poll == nil {
		return ErrPollNotFound
	}

	poll.ChatMessages = append(poll.ChatMessages, msg)
	if err := s.pollRepo.Update(ctx, poll); err != nil {
		return fmt.Errorf("failed to save poll: %w", err)
	}

	if err := s.chatCache.Append(ctx, pollID, &msg); err != nil {
		s.logger.Warn("failed to cache chat message", zap.String("poll_id", pollID), zap.Error(err))
	}

	if s.broadcaster != nil {
		s.broadcaster.ToPoll(pollID, "chat_message", msg)
	}
	return nil
}

// History returns the recent messages for a poll, preferring the cache and
// falling back to the poll document.
func (s *ChatService) History(ctx context.Context, pollID string) ([]model.ChatMessage, error) {
	msgs, err := s.chatCache.Recent(ctx, pollID)
	if err != nil {
		s.logger.Warn("chat cache read failed", zap.String("poll_id", pollID), zap.Error(err))
	}
	if len(msgs) > 0 {
		return msgs, nil
	}

	poll, err := s.pollRepo.GetByID(ctx, pollID)
	if err != nil {
		return nil, fmt.Errorf("failed to get poll: %w", err)
	}
	if poll == nil {
		return nil, ErrPollNotFound
	}
	return poll.ChatMessages, nil
}
