package model

import "errors"

// Sentinel kinds for model validation.
var (
	ErrInvalidQuiz = errors.New("invalid quiz")
)
