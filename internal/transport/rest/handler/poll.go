package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"livepoll/internal/service"
)

// PollHandler handles poll management endpoints
type PollHandler struct {
	pollSvc *service.PollService
}

// NewPollHandler creates a new poll handler
func NewPollHandler(pollSvc *service.PollService) *PollHandler {
	return &PollHandler{pollSvc: pollSvc}
}

type createPollRequest struct {
	Title string `json:"title"`
}

// Create handles POST /v1/polls
func (h *PollHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createPollRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	poll, err := h.pollSvc.Create(r.Context(), req.Title)
	if err != nil {
		if errors.Is(err, service.ErrValidation) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to create poll")
		return
	}

	writeJSON(w, http.StatusCreated, poll)
}

// Get handles GET /v1/polls/{pollId}
func (h *PollHandler) Get(w http.ResponseWriter, r *http.Request) {
	pollID := mux.Vars(r)["pollId"]

	poll, err := h.pollSvc.Get(r.Context(), pollID)
	if err != nil {
		if errors.Is(err, service.ErrPollNotFound) {
			writeError(w, http.StatusNotFound, "poll not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get poll")
		return
	}

	writeJSON(w, http.StatusOK, poll)
}
