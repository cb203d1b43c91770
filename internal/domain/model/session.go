package model

import "time"

// Status is a game session lifecycle phase.
type Status string

const (
	StatusLobby    Status = "lobby"
	StatusStarting Status = "starting"
	StatusQuestion Status = "question"
	StatusReveal   Status = "reveal"
	StatusFinished Status = "finished"
)

// Terminal reports whether no further transitions are possible.
func (s Status) Terminal() bool { return s == StatusFinished }

// PlayerAnswer records one answer for one question. AnswerIndex -1 denotes
// "no answer"; IsCorrect and Points are derived, never set independently.
type PlayerAnswer struct {
	QuestionIndex int   `json:"question_index"`
	AnswerIndex   int   `json:"answer_index"`
	TimeMs        int64 `json:"time_ms"`
	IsCorrect     bool  `json:"is_correct"`
	Points        int   `json:"points"`
}

// Player is a session participant. Entries are created on first valid join
// and never removed while the session is active.
type Player struct {
	ID         string         `json:"id"`
	Nickname   string         `json:"nickname"`
	JoinedAt   time.Time      `json:"joined_at"`
	TotalScore int            `json:"total_score"`
	Answers    []PlayerAnswer `json:"answers"`
}

// GameSession is the authoritative, host-owned state of one live game.
type GameSession struct {
	ID              string             `json:"id"`
	QuizID          string             `json:"quiz_id"`
	PIN             string             `json:"pin"`
	HostPubkey      string             `json:"host_pubkey"`
	Status          Status             `json:"status"`
	CurrentQuestion int                `json:"current_question"`
	Players         map[string]*Player `json:"players"`
	CreatedAt       time.Time          `json:"created_at"`
	StartedAt       *time.Time         `json:"started_at,omitempty"`
	EndedAt         *time.Time         `json:"ended_at,omitempty"`
}

// NewGameSession creates a session in the lobby phase.
func NewGameSession(id, quizID, pin, hostPubkey string, now time.Time) *GameSession {
	return &GameSession{
		ID:              id,
		QuizID:          quizID,
		PIN:             pin,
		HostPubkey:      hostPubkey,
		Status:          StatusLobby,
		CurrentQuestion: -1,
		Players:         make(map[string]*Player),
		CreatedAt:       now,
	}
}
