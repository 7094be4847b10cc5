package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"livepoll/internal/model"
)

// memPollRepo is an in-memory PollRepo. GetByID returns a deep copy so
// tests observe the same read-modify-write cycle as the real store.
type memPollRepo struct {
	mu         sync.Mutex
	polls      map[string]*model.Poll
	nextID     int
	failUpdate bool
}

func newMemPollRepo() *memPollRepo {
	return &memPollRepo{polls: make(map[string]*model.Poll)}
}

func (r *memPollRepo) Create(ctx context.Context, poll *model.Poll) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if poll.ID == "" {
		r.nextID++
		poll.ID = fmt.Sprintf("poll-%d", r.nextID)
	}
	r.polls[poll.ID] = clonePoll(poll)
	return nil
}

func (r *memPollRepo) GetByID(ctx context.Context, id string) (*model.Poll, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.polls[id]
	if !ok {
		return nil, nil
	}
	return clonePoll(p), nil
}

func (r *memPollRepo) Update(ctx context.Context, poll *model.Poll) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failUpdate {
		return errors.New("store unavailable")
	}
	r.polls[poll.ID] = clonePoll(poll)
	return nil
}

func (r *memPollRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.polls, id)
	return nil
}

func clonePoll(p *model.Poll) *model.Poll {
	data, err := json.Marshal(p)
	if err != nil {
		panic(err)
	}
	var out model.Poll
	if err := json.Unmarshal(data, &out); err != nil {
		panic(err)
	}
	return &out
}

type sentEvent struct {
	Target  string // poll ID for room events, conn ID for unicasts
	Unicast bool
	Event   string
	Payload interface{}
}

// recorder captures broadcast traffic for assertions.
type recorder struct {
	mu           sync.Mutex
	events       []sentEvent
	disconnected []string
}

func (r *recorder) ToPoll(pollID, event string, payload interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, sentEvent{Target: pollID, Event: event, Payload: payload})
}

func (r *recorder) ToConn(connID, event string, payload interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, sentEvent{Target: connID, Unicast: true, Event: event, Payload: payload})
}

func (r *recorder) Disconnect(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.disconnected = append(r.disconnected, connID)
}

func (r *recorder) byEvent(event string) []sentEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []sentEvent
	for _, e := range r.events {
		if e.Event == event {
			out = append(out, e)
		}
	}
	return out
}

func (r *recorder) last(event string) (sentEvent, bool) {
	evs := r.byEvent(event)
	if len(evs) == 0 {
		return sentEvent{}, false
	}
	return evs[len(evs)-1], true
}

type memPollCache struct {
	mu    sync.Mutex
	metas map[string]*model.PollMeta
}

func newMemPollCache() *memPollCache {
	return &memPollCache{metas: make(map[string]*model.PollMeta)}
}

func (c *memPollCache) SetMeta(ctx context.Context, pollID string, meta *model.PollMeta) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.metas[pollID] = meta
	return nil
}

func (c *memPollCache) GetMeta(ctx context.Context, pollID string) (*model.PollMeta, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.metas[pollID], nil
}

func (c *memPollCache) Delete(ctx context.Context, pollID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.metas, pollID)
	return nil
}

func (c *memPollCache) Exists(ctx context.Context, pollID string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.metas[pollID]
	return ok, nil
}

type memChatCache struct {
	mu       sync.Mutex
	messages map[string][]model.ChatMessage
}

func newMemChatCache() *memChatCache {
	return &memChatCache{messages: make(map[string][]model.ChatMessage)}
}

func (c *memChatCache) Append(ctx context.Context, pollID string, msg *model.ChatMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages[pollID] = append(c.messages[pollID], *msg)
	return nil
}

func (c *memChatCache) Recent(ctx context.Context, pollID string) ([]model.ChatMessage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]model.ChatMessage(nil), c.messages[pollID]...), nil
}

func (c *memChatCache) Delete(ctx context.Context, pollID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.messages, pollID)
	return nil
}

func testLogger() *zap.Logger {
	return zap.NewNop()
}

// seedPoll inserts an empty poll and returns its ID.
func seedPoll(repo *memPollRepo, title string) string {
	poll := &model.Poll{
		Title:        title,
		Questions:    []model.Question{},
		Participants: []model.Participant{},
		ChatMessages: []model.ChatMessage{},
	}
	if err := repo.Create(context.Background(), poll); err != nil {
		panic(err)
	}
	return poll.ID
}
