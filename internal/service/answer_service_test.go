package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"livepoll/internal/model"
)

type answerFixture struct {
	answers   *AnswerService
	questions *QuestionService
	repo      *memPollRepo
	rec       *recorder
	pollID    string
	question  *model.Question
}

func newAnswerFixture(t *testing.T) *answerFixture {
	t.Helper()
	repo := newMemPollRepo()
	rec := &recorder{}
	registry := NewSessionRegistry()

	questions := NewQuestionService(repo, newMemPollCache(), registry, testLogger())
	questions.SetBroadcaster(rec)
	answers := NewAnswerService(repo, registry, testLogger())
	answers.SetBroadcaster(rec)

	pollID := seedPoll(repo, "geography")
	q, err := questions.Start(context.Background(), pollID, capitalSpec())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { registry.CancelTimer(pollID, q.ID) })

	return &answerFixture{
		answers:   answers,
		questions: questions,
		repo:      repo,
		rec:       rec,
		pollID:    pollID,
		question:  q,
	}
}

func TestSubmitTallyAndFeedback(t *testing.T) {
	f := newAnswerFixture(t)
	ctx := context.Background()

	// First student answers "Paris" (correct).
	tally, err := f.answers.Submit(ctx, f.pollID, f.question.ID, "c1", "Alice", "tab-1", 0)
	if err != nil {
		t.Fatal(err)
	}
	if tally.Total != 1 || tally.Counts[0] != 1 || tally.Percentages[0] != 100 {
		t.Fatalf("tally after first answer: %+v", tally)
	}

	fb, ok := f.rec.last("answer_feedback")
	if !ok || !fb.Unicast || fb.Target != "c1" {
		t.Fatalf("feedback not unicast to c1: %+v ok=%v", fb, ok)
	}
	feedback := fb.Payload.(*model.AnswerFeedback)
	if !feedback.IsCorrect {
		t.Fatal("Paris marked incorrect")
	}

	// Second student answers "London" (incorrect).
	tally, err = f.answers.Submit(ctx, f.pollID, f.question.ID, "c2", "Bob", "tab-2", 1)
	if err != nil {
		t.Fatal(err)
	}
	if tally.Total != 2 || tally.Counts[0] != 1 || tally.Counts[1] != 1 {
		t.Fatalf("tally after second answer: %+v", tally)
	}
	if tally.Percentages[0] != 50 || tally.Percentages[1] != 50 {
		t.Fatalf("percentages %v, want 50/50", tally.Percentages)
	}

	fb, _ = f.rec.last("answer_feedback")
	feedback = fb.Payload.(*model.AnswerFeedback)
	if feedback.IsCorrect {
		t.Fatal("London marked correct")
	}
	if feedback.CorrectAnswer == nil || *feedback.CorrectAnswer != "Paris" {
		t.Fatalf("correct answer = %v, want Paris", feedback.CorrectAnswer)
	}

	// Every submission pushed a room-wide tally.
	if evs := f.rec.byEvent("result_update"); len(evs) != 2 {
		t.Fatalf("result_update broadcast %d times, want 2", len(evs))
	}
}

func TestSubmitDuplicates(t *testing.T) {
	f := newAnswerFixture(t)
	ctx := context.Background()

	if _, err := f.answers.Submit(ctx, f.pollID, f.question.ID, "c1", "Alice", "tab-1", 0); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		connID   string
		tabToken string
	}{
		{"same connection", "c1", "tab-1"},
		{"same connection no token", "c1", ""},
		{"reconnect with same tab", "c9", "tab-1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.answers.Submit(ctx, f.pollID, f.question.ID, tt.connID, "Alice", tt.tabToken, 1)
			if !errors.Is(err, ErrAlreadyAnswered) {
				t.Fatalf("expected ErrAlreadyAnswered, got %v", err)
			}
		})
	}

	// The rejected retries never touched the counts.
	poll, _ := f.repo.GetByID(ctx, f.pollID)
	q := poll.Question(f.question.ID)
	if q.Options[0].Votes != 1 || q.Options[1].Votes != 0 {
		t.Fatalf("votes %d/%d, want 1/0", q.Options[0].Votes, q.Options[1].Votes)
	}
}

func TestSubmitValidation(t *testing.T) {
	f := newAnswerFixture(t)
	ctx := context.Background()

	if _, err := f.answers.Submit(ctx, "missing", f.question.ID, "c1", "Alice", "", 0); !errors.Is(err, ErrPollNotFound) {
		t.Fatalf("missing poll: got %v", err)
	}
	if _, err := f.answers.Submit(ctx, f.pollID, "no-such-question", "c1", "Alice", "", 0); !errors.Is(err, ErrQuestionNotFound) {
		t.Fatalf("unknown question: got %v", err)
	}
	for _, idx := range []int{-1, 2, 99} {
		if _, err := f.answers.Submit(ctx, f.pollID, f.question.ID, "c1", "Alice", "", idx); !errors.Is(err, ErrInvalidOption) {
			t.Fatalf("index %d: expected ErrInvalidOption, got %v", idx, err)
		}
	}
}

func TestSubmitAfterEnd(t *testing.T) {
	f := newAnswerFixture(t)
	ctx := context.Background()

	if err := f.questions.End(ctx, f.pollID); err != nil {
		t.Fatal(err)
	}
	_, err := f.answers.Submit(ctx, f.pollID, f.question.ID, "c1", "Alice", "", 0)
	if !errors.Is(err, ErrQuestionNotActive) {
		t.Fatalf("expected ErrQuestionNotActive, got %v", err)
	}
}

func TestSubmitStorageFailureLeavesNoMark(t *testing.T) {
	f := newAnswerFixture(t)
	ctx := context.Background()

	f.repo.failUpdate = true
	_, err := f.answers.Submit(ctx, f.pollID, f.question.ID, "c1", "Alice", "tab-1", 0)
	if err == nil || !strings.Contains(err.Error(), "failed to save poll") {
		t.Fatalf("expected save failure, got %v", err)
	}

	// Retry after recovery must not be treated as a duplicate.
	f.repo.failUpdate = false
	tally, err := f.answers.Submit(ctx, f.pollID, f.question.ID, "c1", "Alice", "tab-1", 0)
	if err != nil {
		t.Fatalf("retry after recovery: %v", err)
	}
	if tally.Total != 1 {
		t.Fatalf("total %d after retry, want 1", tally.Total)
	}
}

func TestSubmitConcurrentDuplicates(t *testing.T) {
	f := newAnswerFixture(t)
	ctx := context.Background()

	const attempts = 20
	var accepted int32
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.answers.Submit(ctx, f.pollID, f.question.ID, "c1", "Alice", "tab-1", 0); err == nil {
				atomic.AddInt32(&accepted, 1)
			}
		}()
	}
	wg.Wait()

	if accepted != 1 {
		t.Fatalf("%d submissions accepted, want 1", accepted)
	}

	poll, _ := f.repo.GetByID(ctx, f.pollID)
	q := poll.Question(f.question.ID)
	if q.Options[0].Votes != 1 || len(q.Answers) != 1 {
		t.Fatalf("votes=%d answers=%d, want 1/1", q.Options[0].Votes, len(q.Answers))
	}
}
