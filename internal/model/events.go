package model

// OptionSpec is one option of a question a teacher is about to start.
type OptionSpec struct {
	Text      string `json:"text"`
	IsCorrect bool   `json:"isCorrect"`
}

// QuestionSpec is the teacher-supplied definition of a new question.
type QuestionSpec struct {
	Text      string       `json:"text"`
	Options   []OptionSpec `json:"options"`
	TimeLimit int          `json:"timeLimit"` // seconds, defaults to DefaultTimeLimitSec
}

// ParticipantInfo is the roster entry broadcast to a poll room.
type ParticipantInfo struct {
	ConnID string `json:"connId"`
	Name   string `json:"name"`
}

// QuestionStarted is sent to the room when a question starts, and to late
// joiners with TimeLeft reflecting the elapsed countdown. Correctness flags
// are deliberately absent.
type QuestionStarted struct {
	QuestionID   string   `json:"questionId"`
	PollID       string   `json:"pollId"`
	QuestionText string   `json:"questionText"`
	Options      []string `json:"options"`
	TimeLimit    int      `json:"timeLimit"`
	StartAt      int64    `json:"startAt"` // unix millis
	TimeLeft     int      `json:"timeLeft"`
}

// AnswerFeedback is unicast to a student after their own submission. It is
// the only place correctness is revealed to students.
type AnswerFeedback struct {
	QuestionID    string  `json:"questionId"`
	IsCorrect     bool    `json:"isCorrect"`
	CorrectAnswer *string `json:"correctAnswer"`
}
