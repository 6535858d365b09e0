package domain

import (
	"errors"
	"sort"
	"strings"
)

var (
	// ErrQuizNotFound indicates the quiz does not exist.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrQuestionNotFound indicates the question does not exist.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrUserNotFound indicates the account does not exist.
	ErrUserNotFound = errors.New("user not found")
	// ErrAttemptNotFound is returned by storage when an attempt id is unknown.
	ErrAttemptNotFound = errors.New("attempt not found")
	// ErrDuplicateUsername is returned when registering a taken username.
	ErrDuplicateUsername = errors.New("username already taken")
	// ErrInvalidCredentials is returned when a login does not match.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrForbidden is returned when the actor's role or ownership does not allow the action.
	ErrForbidden = errors.New("not authorized")
	// ErrAlreadyAttempted is returned once a result exists for the user and quiz.
	ErrAlreadyAttempted = errors.New("quiz already attempted")
	// ErrInvalidAttempt is returned for a missing, foreign or finished attempt id.
	ErrInvalidAttempt = errors.New("invalid or expired attempt")
	// ErrOpenAttemptExists is returned by storage when a second open attempt would be created.
	ErrOpenAttemptExists = errors.New("open attempt already exists")
)

// ValidationError lists per-field problems with submitted input.
type ValidationError struct {
	Fields map[string]string
}

// NewValidationError builds a ValidationError for a single field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: message}}
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}
