package scoring

import "errors"

// Sentinel kinds for engine rejections. All are non-fatal; callers decide
// whether to surface them.
var (
	ErrUnknownPlayer   = errors.New("unknown player")
	ErrInvalidQuestion = errors.New("invalid question index")
	ErrDuplicateAnswer = errors.New("duplicate answer")
	ErrQuestionOpen    = errors.New("question not closed")
)
