package service

import "sync"

// answerSet tracks who answered a question, by connection ID and by durable
// tab token.
type answerSet struct {
	conns map[string]struct{}
	tabs  map[string]struct{}
}

func newAnswerSet() *answerSet {
	return &answerSet{
		conns: make(map[string]struct{}),
		tabs:  make(map[string]struct{}),
	}
}

func (s *answerSet) has(connID, tabToken string) bool {
	if _, ok := s.conns[connID]; ok {
		return true
	}
	if tabToken != "" {
		if _, ok := s.tabs[tabToken]; ok {
			return true
		}
	}
	return false
}

// pollSession is the live runtime state of one poll: the active question,
// per-question answer sets, and countdown cancel handles. op serializes
// every mutation for the poll (start, end, submit, join, kick, timer fire).
type pollSession struct {
	op sync.Mutex

	activeQuestion string
	answered       map[string]*answerSet
	timers         map[string]func()
}

// SessionRegistry holds the in-memory runtime state per poll. It is
// authoritative for concurrency control that must not survive a process
// restart; the poll store remains the source of truth for data.
type SessionRegistry struct {
	mu    sync.Mutex
	polls map[string]*pollSession
}

// NewSessionRegistry creates an empty registry.
func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{
		polls: make(map[string]*pollSession),
	}
}

func (r *SessionRegistry) session(pollID string) *pollSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.polls[pollID]
	if !ok {
		s = &pollSession{
			answered: make(map[string]*answerSet),
			timers:   make(map[string]func()),
		}
		r.polls[pollID] = s
	}
	return s
}

// LockPoll acquires the per-poll operation lock and returns its unlock
// function. All read-modify-write cycles against one poll run under this
// lock so that no operation observes another's intermediate state.
// Operations on different polls proceed in parallel.
func (r *SessionRegistry) LockPoll(pollID string) func() {
	s := r.session(pollID)
	s.op.Lock()
	return s.op.Unlock
}

// ActiveQuestion returns the active question ID for a poll, if any.
func (r *SessionRegistry) ActiveQuestion(pollID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.polls[pollID]
	if !ok || s.activeQuestion == "" {
		return "", false
	}
	return s.activeQuestion, true
}

// TrySetActiveQuestion atomically claims the active slot for a poll. It
// fails with ErrQuestionActive when another question holds the slot; the
// caller must end that question first.
func (r *SessionRegistry) TrySetActiveQuestion(pollID, questionID string) error {
	s := r.session(pollID)
	r.mu.Lock()
	defer r.mu.Unlock()
	if s.activeQuestion != "" {
		return ErrQuestionActive
	}
	s.activeQuestion = questionID
	s.answered[questionID] = newAnswerSet()
	return nil
}

// ClearActiveQuestion releases the active slot if questionID still holds
// it, and drops the question's answer set. No-op otherwise.
func (r *SessionRegistry) ClearActiveQuestion(pollID, questionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.polls[pollID]
	if !ok {
		return
	}
	if s.activeQuestion == questionID {
		s.activeQuestion = ""
	}
	delete(s.answered, questionID)
}

// HasAnswered reports whether the participant already answered the question
// by connection ID or tab token.
func (r *SessionRegistry) HasAnswered(pollID, questionID, connID, tabToken string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.polls[pollID]
	if !ok {
		return false
	}
	set, ok := s.answered[questionID]
	if !ok {
		return false
	}
	return set.has(connID, tabToken)
}

// MarkAnswered records the participant's submission. It fails with
// ErrAlreadyAnswered on a duplicate and ErrQuestionNotActive when the
// question's answer set no longer exists. Check and record are a single
// step under the registry lock.
func (r *SessionRegistry) MarkAnswered(pollID, questionID, connID, tabToken string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.polls[pollID]
	if !ok {
		return ErrQuestionNotActive
	}
	set, ok := s.answered[questionID]
	if !ok {
		return ErrQuestionNotActive
	}
	if set.has(connID, tabToken) {
		return ErrAlreadyAnswered
	}
	set.conns[connID] = struct{}{}
	if tabToken != "" {
		set.tabs[tabToken] = struct{}{}
	}
	return nil
}

// RegisterTimer stores the countdown cancel handle for a question,
// replacing (and firing) any stale handle for the same question.
func (r *SessionRegistry) RegisterTimer(pollID, questionID string, cancel func()) {
	s := r.session(pollID)
	r.mu.Lock()
	prev := s.timers[questionID]
	s.timers[questionID] = cancel
	r.mu.Unlock()
	if prev != nil {
		prev()
	}
}

// CancelTimer stops the countdown for a question. Idempotent; a canceled
// timer never fires again for that question.
func (r *SessionRegistry) CancelTimer(pollID, questionID string) {
	r.mu.Lock()
	s, ok := r.polls[pollID]
	var cancel func()
	if ok {
		cancel = s.timers[questionID]
		delete(s.timers, questionID)
	}
	r.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Forget drops all runtime state for a poll. Any pending countdowns are
// canceled.
func (r *SessionRegistry) Forget(pollID string) {
	r.mu.Lock()
	s, ok := r.polls[pollID]
	var cancels []func()
	if ok {
		for _, c := range s.timers {
			cancels = append(cancels, c)
		}
		delete(r.polls, pollID)
	}
	r.mu.Unlock()
	for _, c := range cancels {
		c()
	}
}
