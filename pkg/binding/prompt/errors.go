package prompt

import "errors"

var (
	// ErrAborted signals the user aborted input (e.g., Ctrl+C).
	ErrAborted = errors.New("prompt: aborted")
	// ErrTooManyAttempts is returned when the form is still invalid after
	// the configured number of rounds.
	ErrTooManyAttempts = errors.New("prompt: form still invalid after the last attempt")
	// ErrNothingToAsk is returned when the form is invalid but every field
	// is hidden by the field filter.
	ErrNothingToAsk = errors.New("prompt: form invalid and no visible field to correct")
)
