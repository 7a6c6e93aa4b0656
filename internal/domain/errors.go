package domain

import "errors"

var (
	// ErrQuizNotFound indicates the quiz id does not resolve in the content store.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrInvalidSubmission is returned when a submission carries no selections at all.
	ErrInvalidSubmission = errors.New("invalid submission: no answers selected")
	// ErrPersistence wraps storage failures on the attempt write path.
	// It is terminal per request; retrying is the caller's responsibility.
	ErrPersistence = errors.New("persistence failure")
	// ErrUnauthorized is returned when no trusted user identity accompanies a request.
	ErrUnauthorized = errors.New("unauthorized")
)
