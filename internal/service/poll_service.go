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

// PollService handles poll creation and lookup.
type PollService struct {
	pollRepo  repository.PollRepo
	pollCache cache.PollCache
	logger    *zap.Logger
}

// NewPollService creates a new poll service.
func NewPollService(pollRepo repository.PollRepo, pollCache cache.PollCache, logger *zap.Logger) *PollService {
	return &PollService{
		pollRepo:  pollRepo,
		pollCache: pollCache,
		logger:    logger,
	}
}

// Create persists a new empty poll.
func (s *PollService) Create(ctx context.Context, title string) (*model.Poll, error) {
	if strings.TrimSpace(title) == "" {
		return nil, fmt.Errorf("%w: title is required", ErrValidation)
	}

	poll := &model.Poll{
		Title:        title,
		CreatedAt:    time.Now(),
		Questions:    []model.Question{},
		Participants: []model.Participant{},
		ChatMessages: []model.ChatMessage{},
	}

	if err := s.pollRepo.Create(ctx, poll); err != nil {
		return nil, fmt.Errorf("failed to create poll: %w", err)
	}

	if err := s.pollCache.SetMeta(ctx, poll.ID, poll.Meta()); err != nil {
		s.logger.Warn("failed to cache poll meta", zap.String("poll_id", poll.ID), zap.Error(err))
	}

	s.logger.Info("poll created", zap.String("poll_id", poll.ID), zap.String("title", title))
	return poll, nil
}

// Get retrieves the full poll aggregate.
func (s *PollService) Get(ctx context.Context, pollID string) (*model.Poll, error) {
	poll, err := s.pollRepo.GetByID(ctx, pollID)
	if err != nil {
		return nil, fmt.Errorf("failed to get poll: %w", err)
	}
	if poll == nil {
		return nil, ErrPollNotFound
	}
	return poll, nil
}

// Meta returns the poll summary, read through the cache. A miss falls back
// to the store and warms the cache.
func (s *PollService) Meta(ctx context.Context, pollID string) (*model.PollMeta, error) {
	meta, err := s.pollCache.GetMeta(ctx, pollID)
	if err != nil {
		s.logger.Warn("poll meta cache read failed", zap.String("poll_id", pollID), zap.Error(err))
	}
	if meta != nil {
		return meta, nil
	}

	poll, err := s.pollRepo.GetByID(ctx, pollID)
	if err != nil {
		return nil, fmt.Errorf("failed to get poll: %w", err)
	}
	if poll == nil {
		return nil, ErrPollNotFound
	}

	meta = poll.Meta()
	if err := s.pollCache.SetMeta(ctx, pollID, meta); err != nil {
		s.logger.Warn("failed to cache poll meta", zap.String("poll_id", pollID), zap.Error(err))
	}
	return meta, nil
}
