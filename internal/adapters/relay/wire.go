package relay

// Content payloads for the quiz event kinds. All content is UTF-8 JSON.

// QuizDefinitionContent is the kind 35000 payload, tagged d=quiz_id.
type QuizDefinitionContent struct {
	QuizID        string `json:"quiz_id"`
	Title         string `json:"title"`
	Description   string `json:"description"`
	Language      string `json:"language"`
	QuestionCount int    `json:"question_count"`
}

// SessionSettings mirrors the settings block of a kind 35001 payload.
type SessionSettings struct {
	TimePerQuestion  int    `json:"time_per_question"`
	QuizType         string `json:"quiz_type"`
	DepositSats      int    `json:"deposit_sats,omitempty"`
	PayoutPerCorrect int    `json:"payout_per_correct,omitempty"`
	HostFeePercent   int    `json:"host_fee_percent,omitempty"`
}

// GameSessionContent is the kind 35001 payload, tagged h=host, d=session_id.
type GameSessionContent struct {
	QuizID   string          `json:"quiz_id"`
	PIN      string          `json:"pin"`
	Settings SessionSettings `json:"settings"`
}

// PlayerJoinContent is the kind 35002 payload, tagged p=player, e=session event.
type PlayerJoinContent struct {
	SessionID string `json:"session_id"`
	Nickname  string `json:"nickname"`
}

// AnswerContent is the kind 35003 payload, tagged p=player, e=session event.
type AnswerContent struct {
	SessionID     string `json:"session_id"`
	QuestionIndex int    `json:"question_index"`
	AnswerIndex   int    `json:"answer_index"`
	TimeMs        int64  `json:"time_ms"`
}

// PlayerStanding is one row of a score update.
type PlayerStanding struct {
	PlayerID   string `json:"player_id"`
	Nickname   string `json:"nickname"`
	TotalScore int    `json:"total_score"`
}

// ScoreUpdateContent is the kind 35004 payload, tagged e=session event.
type ScoreUpdateContent struct {
	SessionID     string           `json:"session_id"`
	QuestionIndex int              `json:"question_index"`
	Scores        []PlayerStanding `json:"scores"`
}
