package service

import "errors"

// Sentinel errors returned by the poll services. Conflict errors
// (ErrQuestionActive, ErrAlreadyAnswered, ErrQuestionEnded) are expected
// races, not bugs; they leave poll state unchanged and are reported only to
// the initiating caller.
var (
	ErrValidation        = errors.New("invalid request")
	ErrPollNotFound      = errors.New("poll not found")
	ErrQuestionNotFound  = errors.New("question not found")
	ErrQuestionActive    = errors.New("a question is already active")
	ErrQuestionNotActive = errors.New("question is not active")
	ErrQuestionEnded     = errors.New("question already ended")
	ErrAlreadyAnswered   = errors.New("answer already submitted")
	ErrInvalidOption     = errors.New("invalid option index")
	ErrNotTeacher        = errors.New("not authorized")
)
