package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"livepoll/internal/model"
	"livepoll/internal/repository"
)

// AnswerService validates and records student submissions: one answer per
// (participant, question), matched by connection ID or durable tab token.
type AnswerService struct {
	pollRepo    repository.PollRepo
	registry    *SessionRegistry
	broadcaster Broadcaster
	logger      *zap.Logger
}

// NewAnswerService creates a new answer intake service.
func NewAnswerService(pollRepo repository.PollRepo, registry *SessionRegistry, logger *zap.Logger) *AnswerService {
	return &AnswerService{
		pollRepo: pollRepo,
		registry: registry,
		logger:   logger,
	}
}

// SetBroadcaster sets the broadcaster for WebSocket events.
func (s *AnswerService) SetBroadcaster(b Broadcaster) {
	s.broadcaster = b
}

// Submit records one answer. On success the room receives the updated
// tally and the submitter alone receives correctness feedback. Validation
// order: question exists, question is the active one, participant has not
// answered, option index in bounds.
func (s *AnswerService) Submit(ctx context.Context, pollID, questionID, connID, studentName, tabToken string, optionIndex int) (*model.Tally, error) {
	unlock := s.registry.LockPoll(pollID)
	defer unlock()

	poll, err := s.pollRepo.GetByID(ctx, pollID)
	if err != nil {
		return nil, fmt.Errorf("failed to get poll: %w", err)
	}
	if poll == nil {
		return nil, ErrPollNotFound
	}

	question := poll.Question(questionID)
	if question == nil {
		return nil, ErrQuestionNotFound
	}

	// Stale or late submission to an ended or superseded question.
	if !poll.IsQuestionActive || poll.CurrentQuestionID != questionID || question.Ended() {
		return nil, ErrQuestionNotActive
	}

	if question.HasAnswerFrom(connID, tabToken) || s.registry.HasAnswered(pollID, questionID, connID, tabToken) {
		return nil, ErrAlreadyAnswered
	}

	if optionIndex < 0 || optionIndex >= len(question.Options) {
		return nil, fmt.Errorf("%w: index %d out of range", ErrInvalidOption, optionIndex)
	}

	question.Options[optionIndex].Votes++
	question.Answers = append(question.Answers, model.Answer{
		ConnID:      connID,
		StudentName: studentName,
		TabToken:    tabToken,
		OptionIndex: optionIndex,
		SubmittedAt: time.Now(),
	})

	if err := s.pollRepo.Update(ctx, poll); err != nil {
		return nil, fmt.Errorf("failed to save poll: %w", err)
	}

	// The registry mark is recorded only after the durable write so a
	// storage failure leaves no state behind.
	if err := s.registry.MarkAnswered(pollID, questionID, connID, tabToken); err != nil {
		s.logger.Warn("registry mark failed after save",
			zap.String("poll_id", pollID),
			zap.String("question_id", questionID),
			zap.Error(err))
	}

	tally := question.Tally()
	if s.broadcaster != nil {
		s.broadcaster.ToPoll(pollID, "result_update", tally)

		feedback := &model.AnswerFeedback{
			QuestionID: questionID,
			IsCorrect:  question.Options[optionIndex].IsCorrect,
		}
		if correct := question.CorrectOption(); correct != nil {
			text := correct.Text
			feedback.CorrectAnswer = &text
		}
		s.broadcaster.ToConn(connID, "answer_feedback", feedback)
	}

	s.logger.Info("answer recorded",
		zap.String("poll_id", pollID),
		zap.String("question_id", questionID),
		zap.String("conn_id", connID),
		zap.Int("option", optionIndex))

	return &tally, nil
}
