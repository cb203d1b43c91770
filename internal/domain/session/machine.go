// Package session drives a game session through its lifecycle:
// lobby -> starting -> question -> reveal -> (question | finished).
//
// A Machine is synchronous and owned by exactly one dispatch goroutine (see
// internal/app); it never starts goroutines or timers itself. Transitions
// depend only on the current state, the answered-player count, and elapsed
// time, so replaying the same inputs yields the same states.
package session

import (
	"time"

	"github.com/Goosie/NostrQuizAndVote/internal/domain/model"
	"github.com/Goosie/NostrQuizAndVote/internal/domain/scoring"
)

// Machine owns one session's lifecycle and its scoring engine.
type Machine struct {
	session *model.GameSession
	quiz    model.Quiz
	engine  *scoring.Engine
	now     func() time.Time
}

// Option applies a configuration option to the Machine.
type Option func(*Machine)

// WithClock injects a clock for deterministic timestamps in tests.
func WithClock(now func() time.Time) Option {
	return func(m *Machine) {
		if now != nil {
			m.now = now
		}
	}
}

// NewMachine creates a machine for a session in the lobby phase.
func NewMachine(sess *model.GameSession, quiz model.Quiz, engine *scoring.Engine, opts ...Option) *Machine {
	m := &Machine{
		session: sess,
		quiz:    quiz,
		engine:  engine,
		now:     time.Now,
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Session returns the underlying session state.
func (m *Machine) Session() *model.GameSession { return m.session }

// Engine returns the scoring engine.
func (m *Machine) Engine() *scoring.Engine { return m.engine }

// Status returns the current lifecycle phase.
func (m *Machine) Status() model.Status { return m.session.Status }

// CurrentQuestion returns the open (or last opened) question index.
func (m *Machine) CurrentQuestion() int { return m.session.CurrentQuestion }

// Question returns the currently open question. Valid only while at least one
// question has been opened.
func (m *Machine) Question() model.Question {
	return m.quiz.Questions[m.session.CurrentQuestion]
}

// Join registers a player. Joins are accepted in any non-terminal state so
// that a join event delayed by a slow relay does not orphan the player's
// later answers. Duplicate joins refresh the nickname and keep answers.
func (m *Machine) Join(playerID, nickname string) (*model.Player, error) {
	if m.session.Status.Terminal() {
		return nil, ErrSessionClosed
	}
	player := m.engine.AddPlayer(playerID, nickname, m.now())
	m.session.Players[playerID] = player
	return player, nil
}

// Start moves lobby -> starting -> question with the first question open.
// With no players present it is a no-op and returns (nil, nil).
func (m *Machine) Start() (*model.Question, error) {
	if m.session.Status.Terminal() {
		return nil, ErrSessionClosed
	}
	if m.session.Status != model.StatusLobby {
		return nil, ErrInvalidTransition
	}
	if m.engine.PlayerCount() == 0 {
		return nil, nil
	}

	now := m.now()
	m.session.Status = model.StatusStarting
	m.session.StartedAt = &now

	return m.openQuestion(0), nil
}

func (m *Machine) openQuestion(index int) *model.Question {
	m.session.CurrentQuestion = index
	m.session.Status = model.StatusQuestion
	q := m.quiz.Questions[index]
	return &q
}

// SubmitAnswer records an answer for the open question. The returned flag
// reports whether every known player has now answered, which lets the caller
// close the question ahead of the countdown.
func (m *Machine) SubmitAnswer(playerID string, questionIndex, answerIndex int, timeMs int64) (scoring.PlayerQuestionResult, bool, error) {
	if m.session.Status.Terminal() {
		return scoring.PlayerQuestionResult{}, false, ErrSessionClosed
	}
	if m.session.Status != model.StatusQuestion || questionIndex != m.session.CurrentQuestion {
		return scoring.PlayerQuestionResult{}, false, scoring.ErrInvalidQuestion
	}

	result, err := m.engine.SubmitAnswer(playerID, questionIndex, answerIndex, timeMs)
	if err != nil {
		return scoring.PlayerQuestionResult{}, false, err
	}

	allAnswered := m.engine.AnswerCount(questionIndex) >= m.engine.PlayerCount()
	return result, allAnswered, nil
}

// CloseQuestion moves question -> reveal and snapshots the result. Calling it
// again in reveal returns the cached snapshot, so a countdown that fires
// after an early all-answered close is harmless.
func (m *Machine) CloseQuestion() (*scoring.QuestionResult, error) {
	switch m.session.Status {
	case model.StatusQuestion:
		m.session.Status = model.StatusReveal
	case model.StatusReveal:
		// already closed; fall through to the cached result
	case model.StatusFinished:
		return nil, ErrSessionClosed
	default:
		return nil, ErrInvalidTransition
	}
	return m.engine.CloseQuestion(m.session.CurrentQuestion)
}

// Continue moves reveal -> question when questions remain, or -> finished
// after the last one. The second return is true when the game ended.
func (m *Machine) Continue() (*model.Question, bool, error) {
	if m.session.Status.Terminal() {
		return nil, false, ErrSessionClosed
	}
	if m.session.Status != model.StatusReveal {
		return nil, false, ErrInvalidTransition
	}

	next := m.session.CurrentQuestion + 1
	if next >= len(m.quiz.Questions) {
		m.finish()
		return nil, true, nil
	}
	return m.openQuestion(next), false, nil
}

// End finishes the session immediately from any state. Idempotent.
func (m *Machine) End() {
	if m.session.Status.Terminal() {
		return
	}
	m.finish()
}

func (m *Machine) finish() {
	now := m.now()
	m.session.Status = model.StatusFinished
	m.session.EndedAt = &now
}
