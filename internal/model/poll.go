package model

import (
	"math"
	"time"
)

// DefaultTimeLimitSec is applied when a question is started without an
// explicit time limit.
const DefaultTimeLimitSec = 60

// Option is one answer choice of a question. IsCorrect is never sent to
// students before they have answered.
type Option struct {
	Text      string `json:"text" bson:"text"`
	Votes     int    `json:"votes" bson:"votes"`
	IsCorrect bool   `json:"isCorrect" bson:"isCorrect"`
}

// Answer records a single student submission for a question. A student is
// identified by their connection ID and, when the client provides one, a
// durable tab token that survives reconnects.
type Answer struct {
	ConnID      string    `json:"connId" bson:"connId"`
	StudentName string    `json:"studentName" bson:"studentName"`
	TabToken    string    `json:"tabToken,omitempty" bson:"tabToken,omitempty"`
	OptionIndex int       `json:"optionIndex" bson:"optionIndex"`
	SubmittedAt time.Time `json:"submittedAt" bson:"submittedAt"`
}

// Question is one multiple-choice prompt within a poll. Once EndedAt is set
// no further answers are accepted and vote counts are frozen.
type Question struct {
	ID        string     `json:"questionId" bson:"questionId"`
	Text      string     `json:"text" bson:"text"`
	Options   []Option   `json:"options" bson:"options"`
	TimeLimit int        `json:"timeLimit" bson:"timeLimit"` // seconds
	StartedAt time.Time  `json:"startedAt" bson:"startedAt"`
	EndedAt   *time.Time `json:"endedAt,omitempty" bson:"endedAt,omitempty"`
	Answers   []Answer   `json:"answers" bson:"answers"`
}

// Ended reports whether the question has been finalized.
func (q *Question) Ended() bool {
	return q.EndedAt != nil
}

// HasAnswerFrom reports whether the given participant already answered,
// matching by connection ID or by tab token when one is present.
func (q *Question) HasAnswerFrom(connID, tabToken string) bool {
	for _, a := range q.Answers {
		if a.ConnID == connID {
			return true
		}
		if tabToken != "" && a.TabToken == tabToken {
			return true
		}
	}
	return false
}

// CorrectOption returns the first option flagged correct, or nil.
func (q *Question) CorrectOption() *Option {
	for i := range q.Options {
		if q.Options[i].IsCorrect {
			return &q.Options[i]
		}
	}
	return nil
}

// OptionTexts returns the option texts in order, with correctness stripped.
func (q *Question) OptionTexts() []string {
	texts := make([]string, len(q.Options))
	for i, opt := range q.Options {
		texts[i] = opt.Text
	}
	return texts
}

// Tally is the running vote counts and derived percentages for a question.
type Tally struct {
	Counts      map[int]int `json:"counts"`
	Percentages map[int]int `json:"percentages"`
	Total       int         `json:"total"`
}

// Tally computes counts and percentages over all options. Percentages are
// round(votes/total*100) and all zero when nobody answered.
func (q *Question) Tally() Tally {
	t := Tally{
		Counts:      make(map[int]int, len(q.Options)),
		Percentages: make(map[int]int, len(q.Options)),
		Total:       len(q.Answers),
	}
	for i, opt := range q.Options {
		t.Counts[i] = opt.Votes
		if t.Total > 0 {
			t.Percentages[i] = int(math.Round(float64(opt.Votes) / float64(t.Total) * 100))
		} else {
			t.Percentages[i] = 0
		}
	}
	return t
}

// Participant is a connected member of a poll room.
type Participant struct {
	ConnID   string    `json:"connId" bson:"connId"`
	Name     string    `json:"name" bson:"name"`
	TabToken string    `json:"tabToken,omitempty" bson:"tabToken,omitempty"`
	JoinedAt time.Time `json:"joinedAt" bson:"joinedAt"`
}

// ChatMessage is one entry of a poll's chat log. Append-only.
type ChatMessage struct {
	Sender    string    `json:"sender" bson:"sender"`
	Role      string    `json:"role" bson:"role"`
	Text      string    `json:"text" bson:"text"`
	Timestamp time.Time `json:"timestamp" bson:"timestamp"`
}

// Poll is the aggregate owned by the poll store. IsQuestionActive is true
// iff CurrentQuestionID references a question whose EndedAt is unset.
type Poll struct {
	ID                string        `json:"pollId" bson:"_id"`
	Title             string        `json:"title" bson:"title"`
	CreatedAt         time.Time     `json:"createdAt" bson:"createdAt"`
	Questions         []Question    `json:"questions" bson:"questions"`
	Participants      []Participant `json:"participants" bson:"participants"`
	CurrentQuestionID string        `json:"currentQuestionId" bson:"currentQuestionId"`
	IsQuestionActive  bool          `json:"isQuestionActive" bson:"isQuestionActive"`
	ChatMessages      []ChatMessage `json:"chatMessages" bson:"chatMessages"`
}

// Question returns the question with the given ID, or nil.
func (p *Poll) Question(id string) *Question {
	for i := range p.Questions {
		if p.Questions[i].ID == id {
			return &p.Questions[i]
		}
	}
	return nil
}

// ActiveQuestion returns the currently active question, or nil.
func (p *Poll) ActiveQuestion() *Question {
	if !p.IsQuestionActive || p.CurrentQuestionID == "" {
		return nil
	}
	return p.Question(p.CurrentQuestionID)
}

// HasParticipantName reports whether a connected participant already uses
// the given display name. Uniqueness is scoped to this poll only.
func (p *Poll) HasParticipantName(name string) bool {
	for _, s := range p.Participants {
		if s.Name == name {
			return true
		}
	}
	return false
}

// RemoveParticipant removes the participant with the given connection ID
// and reports whether an entry was removed.
func (p *Poll) RemoveParticipant(connID string) bool {
	for i, s := range p.Participants {
		if s.ConnID == connID {
			p.Participants = append(p.Participants[:i], p.Participants[i+1:]...)
			return true
		}
	}
	return false
}

// PollMeta is the poll summary cached in Redis for fast existence and
// status checks. The store remains the source of truth on every mutation.
type PollMeta struct {
	Title             string    `json:"title"`
	CreatedAt         time.Time `json:"createdAt"`
	CurrentQuestionID string    `json:"currentQuestionId"`
	IsQuestionActive  bool      `json:"isQuestionActive"`
	Participants      int       `json:"participants"`
}

// Meta derives the cacheable summary from the aggregate.
func (p *Poll) Meta() *PollMeta {
	return &PollMeta{
		Title:             p.Title,
		CreatedAt:         p.CreatedAt,
		CurrentQuestionID: p.CurrentQuestionID,
		IsQuestionActive:  p.IsQuestionActive,
		Participants:      len(p.Participants),
	}
}
