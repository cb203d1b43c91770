// Package model contains domain models passed between layers.
package model

// QuestionType distinguishes question shapes.
type QuestionType string

const (
	MultipleChoice QuestionType = "multiple_choice"
	TrueFalse      QuestionType = "true_false"
)

// RevealMode controls whether the host advances questions manually or on a timer.
type RevealMode string

const (
	RevealManual RevealMode = "manual"
	RevealTimed  RevealMode = "timed"
)

// QuizType distinguishes free games from deposit-backed ones.
type QuizType string

const (
	QuizFree    QuizType = "free"
	QuizDeposit QuizType = "deposit"
)

// QuizSettings carries per-quiz game options. Deposit economics are carried
// as data only; no payment logic lives in this service.
type QuizSettings struct {
	RevealMode             RevealMode `json:"reveal_mode"`
	DefaultTimePerQuestion int        `json:"default_time_per_question,omitempty"`
	QuizType               QuizType   `json:"quiz_type"`
	DepositSats            int        `json:"deposit_sats,omitempty"`
	PayoutPerCorrect       int        `json:"payout_per_correct,omitempty"`
	HostFeePercent         int        `json:"host_fee_percent,omitempty"`
}

// Question is a single quiz question. Index is its stable position.
type Question struct {
	Index            int          `json:"index"`
	Text             string       `json:"text"`
	Type             QuestionType `json:"type"`
	Options          []string     `json:"options"`
	CorrectIndex     int          `json:"correct_index"`
	TimeLimitSeconds int          `json:"time_limit_seconds"`
	Points           int          `json:"points"`
}

// TimeLimitMS returns the answer window in milliseconds.
func (q Question) TimeLimitMS() int64 {
	return int64(q.TimeLimitSeconds) * 1000
}

// Quiz is immutable after publication.
type Quiz struct {
	ID          string       `json:"id"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Language    string       `json:"language"`
	Questions   []Question   `json:"questions"`
	Settings    QuizSettings `json:"settings"`
}

// Validate reports whether the quiz is playable.
func (q *Quiz) Validate() error {
	if q.ID == "" {
		return ErrInvalidQuiz
	}
	if len(q.Questions) == 0 {
		return ErrInvalidQuiz
	}
	for _, question := range q.Questions {
		if len(question.Options) < 2 {
			return ErrInvalidQuiz
		}
		if question.CorrectIndex < 0 || question.CorrectIndex >= len(question.Options) {
			return ErrInvalidQuiz
		}
		if question.TimeLimitSeconds <= 0 {
			return ErrInvalidQuiz
		}
	}
	return nil
}
