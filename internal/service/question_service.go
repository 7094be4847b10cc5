package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"livepoll/internal/cache"
	"livepoll/internal/model"
	"livepoll/internal/repository"
)

// QuestionService is the state machine governing a poll's question
// lifecycle: Idle -> QuestionActive -> Idle. At most one question is active
// per poll; starting a new one requires ending the previous one first.
type QuestionService struct {
	pollRepo    repository.PollRepo
	pollCache   cache.PollCache
	registry    *SessionRegistry
	broadcaster Broadcaster
	logger      *zap.Logger
}

// NewQuestionService creates a new question lifecycle service.
func NewQuestionService(
	pollRepo repository.PollRepo,
	pollCache cache.PollCache,
	registry *SessionRegistry,
	logger *zap.Logger,
) *QuestionService {
	return &QuestionService{
		pollRepo:  pollRepo,
		pollCache: pollCache,
		registry:  registry,
		logger:    logger,
	}
}

// SetBroadcaster sets the broadcaster for WebSocket events.
func (s *QuestionService) SetBroadcaster(b Broadcaster) {
	s.broadcaster = b
}

func validateQuestionSpec(spec *model.QuestionSpec) error {
	if strings.TrimSpace(spec.Text) == "" {
		return fmt.Errorf("%w: question text is required", ErrValidation)
	}
	if len(spec.Options) < 2 {
		return fmt.Errorf("%w: at least 2 options are required", ErrValidation)
	}
	for _, opt := range spec.Options {
		if strings.TrimSpace(opt.Text) == "" {
			return fmt.Errorf("%w: option text must not be empty", ErrValidation)
		}
	}
	return nil
}

// Start creates a new question, arms its countdown, and broadcasts it to
// the room with correctness flags withheld. Rejected with ErrQuestionActive
// while another question is running; the teacher must end it explicitly.
func (s *QuestionService) Start(ctx context.Context, pollID string, spec *model.QuestionSpec) (*model.Question, error) {
	if err := validateQuestionSpec(spec); err != nil {
		return nil, err
	}

	unlock := s.registry.LockPoll(pollID)
	defer unlock()

	poll, err := s.pollRepo.GetByID(ctx, pollID)
	if err != nil {
		return nil, fmt.Errorf("failed to get poll: %w", err)
	}
	if poll == nil {
		return nil, ErrPollNotFound
	}

	if poll.IsQuestionActive && poll.CurrentQuestionID != "" {
		return nil, ErrQuestionActive
	}

	timeLimit := spec.TimeLimit
	if timeLimit <= 0 {
		timeLimit = model.DefaultTimeLimitSec
	}

	question := model.Question{
		ID:        uuid.New().String(),
		Text:      spec.Text,
		Options:   make([]model.Option, len(spec.Options)),
		TimeLimit: timeLimit,
		StartedAt: time.Now(),
		Answers:   []model.Answer{},
	}
	for i, opt := range spec.Options {
		question.Options[i] = model.Option{Text: opt.Text, IsCorrect: opt.IsCorrect}
	}

	if err := s.registry.TrySetActiveQuestion(pollID, question.ID); err != nil {
		return nil, err
	}

	poll.Questions = append(poll.Questions, question)
	poll.CurrentQuestionID = question.ID
	poll.IsQuestionActive = true

	if err := s.pollRepo.Update(ctx, poll); err != nil {
		s.registry.ClearActiveQuestion(pollID, question.ID)
		return nil, fmt.Errorf("failed to save poll: %w", err)
	}
	s.refreshMeta(ctx, poll)

	if s.broadcaster != nil {
		s.broadcaster.ToPoll(pollID, "question_started", &model.QuestionStarted{
			QuestionID:   question.ID,
			PollID:       pollID,
			QuestionText: question.Text,
			Options:      question.OptionTexts(),
			TimeLimit:    question.TimeLimit,
			StartAt:      question.StartedAt.UnixMilli(),
			TimeLeft:     question.TimeLimit,
		})
	}

	stop := make(chan struct{})
	s.registry.RegisterTimer(pollID, question.ID, func() { close(stop) })
	go s.runCountdown(pollID, question.ID, question.TimeLimit, stop)

	s.logger.Info("question started",
		zap.String("poll_id", pollID),
		zap.String("question_id", question.ID),
		zap.Int("time_limit", question.TimeLimit))

	return &question, nil
}

// End finalizes the poll's current question: the explicit teacher path.
func (s *QuestionService) End(ctx context.Context, pollID string) error {
	return s.end(ctx, pollID, "")
}

// end finalizes a question. An empty questionID means "whatever is
// currently active" (teacher path); the timer path pins the question it
// armed for, so a stale expiry can never close a successor. Idempotent:
// whichever of the two paths reaches the critical section first wins, the
// other reports ErrQuestionEnded.
func (s *QuestionService) end(ctx context.Context, pollID, questionID string) error {
	unlock := s.registry.LockPoll(pollID)
	defer unlock()

	poll, err := s.pollRepo.GetByID(ctx, pollID)
	if err != nil {
		return fmt.Errorf("failed to get poll: %w", err)
	}
	if poll == nil {
		return ErrPollNotFound
	}

	if !poll.IsQuestionActive || poll.CurrentQuestionID == "" {
		return ErrQuestionNotActive
	}
	if questionID != "" && poll.CurrentQuestionID != questionID {
		return ErrQuestionEnded
	}

	question := poll.Question(poll.CurrentQuestionID)
	if question == nil {
		return ErrQuestionNotFound
	}
	if question.Ended() {
		return ErrQuestionEnded
	}

	now := time.Now()
	question.EndedAt = &now
	poll.IsQuestionActive = false

	if err := s.pollRepo.Update(ctx, poll); err != nil {
		return fmt.Errorf("failed to save poll: %w", err)
	}
	s.refreshMeta(ctx, poll)

	s.registry.CancelTimer(pollID, question.ID)
	s.registry.ClearActiveQuestion(pollID, question.ID)

	if s.broadcaster != nil {
		s.broadcaster.ToPoll(pollID, "question_ended", question.Tally())
	}

	s.logger.Info("question ended",
		zap.String("poll_id", pollID),
		zap.String("question_id", question.ID),
		zap.Int("total_answers", len(question.Answers)))

	return nil
}

// runCountdown ticks once per second, broadcasting the remaining time. At
// zero it ends the question through the same idempotent path as an
// explicit end. A storage failure at expiry is logged and the countdown is
// not rescheduled; the question stays active until an explicit end
// succeeds.
func (s *QuestionService) runCountdown(pollID, questionID string, seconds int, stop <-chan struct{}) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	remaining := seconds
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			remaining--
			if s.broadcaster != nil {
				s.broadcaster.ToPoll(pollID, "time_left", map[string]int{"secondsLeft": remaining})
			}
			if remaining <= 0 {
				err := s.end(context.Background(), pollID, questionID)
				switch {
				case err == nil:
					s.logger.Info("question ended by timeout",
						zap.String("poll_id", pollID),
						zap.String("question_id", questionID))
				case errors.Is(err, ErrQuestionEnded) || errors.Is(err, ErrQuestionNotActive):
					// Explicit end won the race; nothing to do.
				default:
					s.logger.Error("failed to end question on timeout",
						zap.String("poll_id", pollID),
						zap.String("question_id", questionID),
						zap.Error(err))
				}
				return
			}
		}
	}
}

// CatchUp sends the active question to a single participant with the
// countdown shortened by the elapsed time, so late joiners see the real
// remaining duration. No-op when the poll is idle.
func (s *QuestionService) CatchUp(ctx context.Context, pollID, connID string) error {
	unlock := s.registry.LockPoll(pollID)
	defer unlock()

	poll, err := s.pollRepo.GetByID(ctx, pollID)
	if err != nil {
		return fmt.Errorf("failed to get poll: %w", err)
	}
	if poll == nil {
		return ErrPollNotFound
	}

	question := poll.ActiveQuestion()
	if question == nil {
		return nil
	}

	elapsed := int(time.Since(question.StartedAt).Seconds())
	timeLeft := question.TimeLimit - elapsed
	if timeLeft < 0 {
		timeLeft = 0
	}

	if s.broadcaster != nil {
		s.broadcaster.ToConn(connID, "question_started", &model.QuestionStarted{
			QuestionID:   question.ID,
			PollID:       pollID,
			QuestionText: question.Text,
			Options:      question.OptionTexts(),
			TimeLimit:    question.TimeLimit,
			StartAt:      question.StartedAt.UnixMilli(),
			TimeLeft:     timeLeft,
		})
	}
	return nil
}

func (s *QuestionService) refreshMeta(ctx context.Context, poll *model.Poll) {
	if err := s.pollCache.SetMeta(ctx, poll.ID, poll.Meta()); err != nil {
		s.logger.Warn("failed to refresh poll meta", zap.String("poll_id", poll.ID), zap.Error(err))
	}
}
