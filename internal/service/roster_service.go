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

// RosterService tracks connected participants per poll: join with display
// name deduplication, idempotent leave, and teacher-initiated kick.
type RosterService struct {
	pollRepo    repository.PollRepo
	pollCache   cache.PollCache
	registry    *SessionRegistry
	broadcaster Broadcaster
	logger      *zap.Logger
}

// NewRosterService creates a new roster service.
func NewRosterService(
	pollRepo repository.PollRepo,
	pollCache cache.PollCache,
	registry *SessionRegistry,
	logger *zap.Logger,
) *RosterService {
	return &RosterService{
		pollRepo:  pollRepo,
		pollCache: pollCache,
		registry:  registry,
		logger:    logger,
	}
}

// SetBroadcaster sets the broadcaster for WebSocket events.
func (s *RosterService) SetBroadcaster(b Broadcaster) {
	s.broadcaster = b
}

// Join adds a participant to a poll and returns the assigned display name.
// A taken name gets a numeric suffix: "Alice" -> "Alice (1)" -> "Alice (2)".
// Uniqueness is per poll.
func (s *RosterService) Join(ctx context.Context, pollID, connID, requestedName, tabToken string) (string, error) {
	requestedName = strings.TrimSpace(requestedName)
	if requestedName == "" {
		return "", fmt.Errorf("%w: name is required", ErrValidation)
	}

	unlock := s.registry.LockPoll(pollID)
	defer unlock()

	poll, err := s.pollRepo.GetByID(ctx, pollID)
	if err != nil {
		return "", fmt.Errorf("failed to get poll: %w", err)
	}
	if poll == nil {
		return "", ErrPollNotFound
	}

	finalName := requestedName
	for n := 1; poll.HasParticipantName(finalName); n++ {
		finalName = fmt.Sprintf("%s (%d)", requestedName, n)
	}

	poll.Participants = append(poll.Participants, model.Participant{
		ConnID:   connID,
		Name:     finalName,
		TabToken: tabToken,
		JoinedAt: time.Now(),
	})

	if err := s.pollRepo.Update(ctx, poll); err != nil {
		return "", fmt.Errorf("failed to save poll: %w", err)
	}
	s.refreshMeta(ctx, poll)

	s.logger.Info("participant joined",
		zap.String("poll_id", pollID),
		zap.String("conn_id", connID),
		zap.String("name", finalName))

	s.broadcastRoster(pollID, poll)
	return finalName, nil
}

// Leave removes the participant matching the connection. No-op if absent.
func (s *RosterService) Leave(ctx context.Context, pollID, connID string) error {
	unlock := s.registry.LockPoll(pollID)
	defer unlock()

	poll, err := s.pollRepo.GetByID(ctx, pollID)
	if err != nil {
		return fmt.Errorf("failed to get poll: %w", err)
	}
	if poll == nil {
		return nil
	}

	if !poll.RemoveParticipant(connID) {
		return nil
	}

	if err := s.pollRepo.Update(ctx, poll); err != nil {
		return fmt.Errorf("failed to save poll: %w", err)
	}
	s.refreshMeta(ctx, poll)

	s.logger.Info("participant left", zap.String("poll_id", pollID), zap.String("conn_id", connID))
	s.broadcastRoster(pollID, poll)
	return nil
}

// Kick removes a participant, notifies them, and terminates their
// connection. Kicking an absent participant is a no-op.
func (s *RosterService) Kick(ctx context.Context, pollID, connID string) error {
	unlock := s.registry.LockPoll(pollID)
	defer unlock()

	poll, err := s.pollRepo.GetByID(ctx, pollID)
	if err != nil {
		return fmt.Errorf("failed to get poll: %w", err)
	}
	if poll == nil {
		return ErrPollNotFound
	}

	removed := poll.RemoveParticipant(connID)
	if removed {
		if err := s.pollRepo.Update(ctx, poll); err != nil {
			return fmt.Errorf("failed to save poll: %w", err)
		}
		s.refreshMeta(ctx, poll)
	}

	if s.broadcaster != nil {
		s.broadcaster.ToConn(connID, "kicked_out", map[string]string{
			"message": "You have been removed from the poll",
		})
		s.broadcaster.Disconnect(connID)
	}

	s.logger.Info("participant kicked", zap.String("poll_id", pollID), zap.String("conn_id", connID))
	s.broadcastRoster(pollID, poll)
	return nil
}

// Participants returns the current roster entries for a poll.
func (s *RosterService) Participants(ctx context.Context, pollID string) ([]model.ParticipantInfo, error) {
	poll, err := s.pollRepo.GetByID(ctx, pollID)
	if err != nil {
		return nil, fmt.Errorf("failed to get poll: %w", err)
	}
	if poll == nil {
		return nil, ErrPollNotFound
	}
	return rosterOf(poll), nil
}

func (s *RosterService) refreshMeta(ctx context.Context, poll *model.Poll) {
	if err := s.pollCache.SetMeta(ctx, poll.ID, poll.Meta()); err != nil {
		s.logger.Warn("failed to refresh poll meta", zap.String("poll_id", poll.ID), zap.Error(err))
	}
}

func (s *RosterService) broadcastRoster(pollID string, poll *model.Poll) {
	if s.broadcaster == nil {
		return
	}
	s.broadcaster.ToPoll(pollID, "participants_update", map[string]interface{}{
		"participants": rosterOf(poll),
	})
}

func rosterOf(poll *model.Poll) []model.ParticipantInfo {
	infos := make([]model.ParticipantInfo, 0, len(poll.Participants))
	for _, p := range poll.Participants {
		infos = append(infos, model.ParticipantInfo{ConnID: p.ConnID, Name: p.Name})
	}
	return infos
}
