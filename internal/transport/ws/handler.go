package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"livepoll/internal/model"
	"livepoll/internal/service"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for dev
	},
}

// Handler upgrades HTTP requests to WebSocket connections and dispatches
// inbound events to the services.
type Handler struct {
	hub         *Hub
	authSvc     *service.AuthService
	pollSvc     *service.PollService
	rosterSvc   *service.RosterService
	questionSvc *service.QuestionService
	answerSvc   *service.AnswerService
	chatSvc     *service.ChatService
	logger      *zap.Logger
}

// NewHandler creates a new WebSocket handler.
func NewHandler(
	hub *Hub,
	authSvc *service.AuthService,
	pollSvc *service.PollService,
	rosterSvc *service.RosterService,
	questionSvc *service.QuestionService,
	answerSvc *service.AnswerService,
	chatSvc *service.ChatService,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		hub:         hub,
		authSvc:     authSvc,
		pollSvc:     pollSvc,
		rosterSvc:   rosterSvc,
		questionSvc: questionSvc,
		answerSvc:   answerSvc,
		chatSvc:     chatSvc,
		logger:      logger,
	}
}

// ServeWS handles GET /v1/ws/polls/{pollId}. Students connect bare;
// teachers pass their token as a query parameter to get the teacher role.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	pollID := mux.Vars(r)["pollId"]

	if _, err := h.pollSvc.Meta(r.Context(), pollID); err != nil {
		if errors.Is(err, service.ErrPollNotFound) {
			http.Error(w, "poll not found", http.StatusNotFound)
			return
		}
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	role := model.RoleStudent
	if token := r.URL.Query().Get("token"); token != "" {
		if _, err := h.authSvc.ValidateTeacherToken(token); err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}
		role = model.RoleTeacher
	}

	sock, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	c := NewClient(uuid.New().String(), pollID, role)
	h.hub.Register(c)

	h.logger.Info("websocket connected",
		zap.String("conn_id", c.ID),
		zap.String("poll_id", pollID),
		zap.String("role", role))

	go h.writePump(c, sock)
	go h.readPump(c, sock)
}

// cleanup runs when a socket dies. Roster removal happens off the read
// goroutine so a slow store does not delay the socket teardown.
func (h *Handler) cleanup(c *Client) {
	h.hub.Unregister(c)
	if c.Name == "" {
		return
	}
	go func() {
		if err := h.rosterSvc.Leave(context.Background(), c.PollID, c.ID); err != nil {
			h.logger.Warn("failed to remove participant on disconnect",
				zap.String("conn_id", c.ID), zap.Error(err))
		}
	}()
}

type joinPayload struct {
	Name     string `json:"name"`
	TabToken string `json:"tabToken"`
}

type submitAnswerPayload struct {
	QuestionID  string `json:"questionId"`
	OptionIndex *int   `json:"optionIndex"`
	TabToken    string `json:"tabToken"`
}

type kickPayload struct {
	ConnID string `json:"connId"`
}

type chatPayload struct {
	Sender string `json:"sender"`
	Text   string `json:"text"`
}

func (h *Handler) dispatch(c *Client, msg Message) {
	ctx := context.Background()

	switch msg.Type {
	case "student_join":
		h.handleStudentJoin(ctx, c, msg)
	case "teacher_join":
		h.handleTeacherJoin(ctx, c)
	case "start_question":
		h.handleStartQuestion(ctx, c, msg)
	case "end_question":
		h.handleEndQuestion(ctx, c)
	case "submit_answer":
		h.handleSubmitAnswer(ctx, c, msg)
	case "kick_student":
		h.handleKickStudent(ctx, c, msg)
	case "chat_message":
		h.handleChatMessage(ctx, c, msg)
	default:
		h.sendError(c, "unknown event type")
	}
}

func (h *Handler) handleStudentJoin(ctx context.Context, c *Client, msg Message) {
	var p joinPayload
	if err := unmarshalPayload(msg, &p); err != nil {
		h.sendError(c, "invalid payload")
		return
	}
	if p.Name == "" {
		h.sendError(c, "name is required")
		return
	}

	assigned, err := h.rosterSvc.Join(ctx, c.PollID, c.ID, p.Name, p.TabToken)
	if err != nil {
		h.sendError(c, h.reason(err))
		return
	}
	c.Name = assigned
	c.TabToken = p.TabToken
	c.Role = model.RoleStudent

	if assigned != p.Name {
		h.hub.ToConn(c.ID, "name_assigned", map[string]string{"name": assigned})
	}
	h.sendChatHistory(ctx, c)
	h.catchUp(ctx, c)
}

func (h *Handler) handleTeacherJoin(ctx context.Context, c *Client) {
	if c.Role != model.RoleTeacher {
		h.sendError(c, "not authorized")
		return
	}

	participants, err := h.rosterSvc.Participants(ctx, c.PollID)
	if err != nil {
		h.sendError(c, h.reason(err))
		return
	}
	h.hub.ToConn(c.ID, "participants_update", map[string]interface{}{"participants": participants})
	h.sendChatHistory(ctx, c)
	h.catchUp(ctx, c)
}

func (h *Handler) catchUp(ctx context.Context, c *Client) {
	if err := h.questionSvc.CatchUp(ctx, c.PollID, c.ID); err != nil {
		h.logger.Warn("failed to catch up connection", zap.String("conn_id", c.ID), zap.Error(err))
	}
}

func (h *Handler) handleStartQuestion(ctx context.Context, c *Client, msg Message) {
	if c.Role != model.RoleTeacher {
		h.sendError(c, "not authorized")
		return
	}

	var spec model.QuestionSpec
	if err := unmarshalPayload(msg, &spec); err != nil {
		h.sendError(c, "invalid payload")
		return
	}
	if _, err := h.questionSvc.Start(ctx, c.PollID, &spec); err != nil {
		h.sendError(c, h.reason(err))
	}
}

func (h *Handler) handleEndQuestion(ctx context.Context, c *Client) {
	if c.Role != model.RoleTeacher {
		h.sendError(c, "not authorized")
		return
	}
	if err := h.questionSvc.End(ctx, c.PollID); err != nil {
		h.sendError(c, h.reason(err))
	}
}

func (h *Handler) handleSubmitAnswer(ctx context.Context, c *Client, msg Message) {
	var p submitAnswerPayload
	if err := unmarshalPayload(msg, &p); err != nil {
		h.sendError(c, "invalid payload")
		return
	}
	if p.QuestionID == "" || p.OptionIndex == nil {
		h.sendError(c, "questionId and optionIndex are required")
		return
	}
	tabToken := p.TabToken
	if tabToken == "" {
		tabToken = c.TabToken
	}

	_, err := h.answerSvc.Submit(ctx, c.PollID, p.QuestionID, c.ID, c.Name, tabToken, *p.OptionIndex)
	if err != nil {
		h.sendError(c, h.reason(err))
	}
}

func (h *Handler) handleKickStudent(ctx context.Context, c *Client, msg Message) {
	if c.Role != model.RoleTeacher {
		h.sendError(c, "not authorized")
		return
	}

	var p kickPayload
	if err := unmarshalPayload(msg, &p); err != nil || p.ConnID == "" {
		h.sendError(c, "invalid payload")
		return
	}
	if err := h.rosterSvc.Kick(ctx, c.PollID, p.ConnID); err != nil {
		h.sendError(c, h.reason(err))
	}
}

func (h *Handler) handleChatMessage(ctx context.Context, c *Client, msg Message) {
	var p chatPayload
	if err := unmarshalPayload(msg, &p); err != nil {
		h.sendError(c, "invalid payload")
		return
	}

	sender := c.Name
	if sender == "" {
		sender = p.Sender
	}
	role := c.Role
	if role == "" {
		role = model.RoleStudent
	}
	if err := h.chatSvc.Send(ctx, c.PollID, sender, role, p.Text); err != nil {
		h.sendError(c, h.reason(err))
	}
}

func (h *Handler) sendChatHistory(ctx context.Context, c *Client) {
	messages, err := h.chatSvc.History(ctx, c.PollID)
	if err != nil {
		h.logger.Warn("failed to load chat history", zap.String("poll_id", c.PollID), zap.Error(err))
		return
	}
	h.hub.ToConn(c.ID, "chat_history", map[string]interface{}{"messages": messages})
}

// sendError reports a failure to the offending connection only. Other
// room members never see it.
func (h *Handler) sendError(c *Client, reason string) {
	h.hub.ToConn(c.ID, "error", map[string]string{"message": reason})
}

// reason maps a service error to a client-facing message. Validation and
// state errors pass through; anything else is hidden behind a generic
// message so storage details never reach clients.
func (h *Handler) reason(err error) string {
	switch {
	case errors.Is(err, service.ErrValidation),
		errors.Is(err, service.ErrPollNotFound),
		errors.Is(err, service.ErrQuestionNotFound),
		errors.Is(err, service.ErrQuestionActive),
		errors.Is(err, service.ErrQuestionNotActive),
		errors.Is(err, service.ErrQuestionEnded),
		errors.Is(err, service.ErrAlreadyAnswered),
		errors.Is(err, service.ErrInvalidOption),
		errors.Is(err, service.ErrNotTeacher):
		return err.Error()
	default:
		return "internal error"
	}
}

func unmarshalPayload(msg Message, v interface{}) error {
	if len(msg.Payload) == 0 {
		return errors.New("empty payload")
	}
	return json.Unmarshal(msg.Payload, v)
}
