// Package app wires the game domain to the relay event bus. The Service is
// the host-side engine: it announces sessions, subscribes to player events,
// and drives each session through a single dispatch goroutine so that state
// never needs cross-goroutine coordination beyond the queue.
package app

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/Goosie/NostrQuizAndVote/internal/adapters/registry"
	"github.com/Goosie/NostrQuizAndVote/internal/adapters/relay"
	"github.com/Goosie/NostrQuizAndVote/internal/domain/model"
	"github.com/Goosie/NostrQuizAndVote/internal/domain/scoring"
	"github.com/Goosie/NostrQuizAndVote/internal/domain/session"
	"github.com/Goosie/NostrQuizAndVote/pkg/logger"
	"github.com/Goosie/NostrQuizAndVote/pkg/metrics"
)

// EventBus is the slice of the relay layer the service depends on.
type EventBus interface {
	PubKey() string
	Publish(ctx context.Context, kind int, content string, tags [][]string) (string, error)
	Subscribe(ctx context.Context, filter relay.Filter, handler relay.Handler) (string, error)
	Unsubscribe(subID string)
}

// Service hosts quiz sessions over the event bus.
type Service struct {
	bus   EventBus
	store registry.Store
	log   logger.Logger
	now   func() time.Time

	queueSize              int
	basePoints             int
	timeBonus              bool
	maxTimeBonus           int
	questionDelay          time.Duration
	defaultTimePerQuestion int

	mu       sync.RWMutex
	sessions map[string]*hostedSession
	runCtx   context.Context
	cancel   context.CancelFunc
	started  bool

	activeSessions atomic.Int64
	activePlayers  atomic.Int64
}

// New creates a Service with configuration options.
func New(bus EventBus, store registry.Store, opts ...Option) *Service {
	s := &Service{
		bus:                    bus,
		store:                  store,
		log:                    logger.Named("app"),
		now:                    time.Now,
		queueSize:              1024,
		basePoints:             100,
		timeBonus:              true,
		maxTimeBonus:           50,
		questionDelay:          2 * time.Second,
		defaultTimePerQuestion: 30,
		sessions:               make(map[string]*hostedSession),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start makes the service ready to host sessions. The context bounds the
// lifetime of every session dispatcher.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return ErrAlreadyStarted
	}
	s.runCtx, s.cancel = context.WithCancel(ctx)
	s.started = true

	s.log.Info(ctx, "service started")
	return nil
}

// Stop ends every active session and waits for the dispatchers to exit.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	cancel := s.cancel
	sessions := make([]*hostedSession, 0, len(s.sessions))
	for _, hs := range s.sessions {
		sessions = append(sessions, hs)
	}
	s.mu.Unlock()

	cancel()
	for _, hs := range sessions {
		<-hs.done
	}

	s.log.Info(context.Background(), "service stopped")
}

// PublishQuiz announces a quiz definition on the relays and returns its
// event id. The full question list stays local; only metadata goes out, so
// correct answers are never on the wire before a reveal.
func (s *Service) PublishQuiz(ctx context.Context, quiz model.Quiz) (string, error) {
	if err := quiz.Validate(); err != nil {
		return "", err
	}

	content := relay.QuizDefinitionContent{
		QuizID:        quiz.ID,
		Title:         quiz.Title,
		Description:   quiz.Description,
		Language:      quiz.Language,
		QuestionCount: len(quiz.Questions),
	}
	payload, err := json.Marshal(content)
	if err != nil {
		return "", fmt.Errorf("encoding quiz definition: %w", err)
	}

	eventID, err := s.bus.Publish(ctx, relay.KindQuizDefinition, string(payload), [][]string{{"d", quiz.ID}})
	if err != nil {
		return "", fmt.Errorf("publishing quiz %s: %w", quiz.ID, err)
	}

	s.log.Info(ctx, "quiz published",
		logger.String("quiz_id", quiz.ID),
		logger.String("event_id", eventID),
		logger.Int("questions", len(quiz.Questions)))
	return eventID, nil
}

// HostSession creates a session for a quiz, announces it on the relays, and
// starts its dispatcher. The returned session carries the generated id and
// the 6-digit join PIN.
func (s *Service) HostSession(ctx context.Context, quiz model.Quiz) (*model.GameSession, error) {
	if err := quiz.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return nil, ErrNotStarted
	}

	pin, err := s.store.NewPIN(ctx)
	if err != nil {
		return nil, fmt.Errorf("allocating join pin: %w", err)
	}

	sess := model.NewGameSession(uuid.NewString(), quiz.ID, pin, s.bus.PubKey(), s.now())
	if err := s.store.Put(ctx, sess); err != nil {
		return nil, fmt.Errorf("registering session: %w", err)
	}

	eventID, err := s.announceSession(ctx, sess, quiz)
	if err != nil {
		s.store.Delete(ctx, sess.ID)
		return nil, err
	}

	engine := scoring.NewEngine(quiz,
		scoring.WithBasePoints(s.basePoints),
		scoring.WithTimeBonus(s.timeBonus),
		scoring.WithMaxTimeBonus(s.maxTimeBonus))
	machine := session.NewMachine(sess, quiz, engine, session.WithClock(s.now))

	hs := newHostedSession(s, sess, quiz, eventID, machine)
	if err := s.subscribeSession(ctx, hs); err != nil {
		s.store.Delete(ctx, sess.ID)
		return nil, err
	}

	s.sessions[sess.ID] = hs
	s.sessionDelta(1)
	go hs.run(s.runCtx)

	s.log.Info(ctx, "session hosted",
		logger.String("session_id", sess.ID),
		logger.String("quiz_id", quiz.ID),
		logger.String("pin", pin),
		logger.String("event_id", eventID))
	return sess, nil
}

func (s *Service) announceSession(ctx context.Context, sess *model.GameSession, quiz model.Quiz) (string, error) {
	timePerQuestion := quiz.Settings.DefaultTimePerQuestion
	if timePerQuestion <= 0 {
		timePerQuestion = s.defaultTimePerQuestion
	}

	content := relay.GameSessionContent{
		QuizID: quiz.ID,
		PIN:    sess.PIN,
		Settings: relay.SessionSettings{
			TimePerQuestion:  timePerQuestion,
			QuizType:         string(quiz.Settings.QuizType),
			DepositSats:      quiz.Settings.DepositSats,
			PayoutPerCorrect: quiz.Settings.PayoutPerCorrect,
			HostFeePercent:   quiz.Settings.HostFeePercent,
		},
	}
	payload, err := json.Marshal(content)
	if err != nil {
		return "", fmt.Errorf("encoding session announcement: %w", err)
	}

	tags := [][]string{{"h", sess.HostPubkey}, {"d", sess.ID}}
	eventID, err := s.bus.Publish(ctx, relay.KindGameSession, string(payload), tags)
	if err != nil {
		return "", fmt.Errorf("announcing session %s: %w", sess.ID, err)
	}
	return eventID, nil
}

// subscribeSession opens the inbound subscriptions for one session: player
// joins and answers that reference the announcement, plus a watch on the
// session address so a conflicting announcement from another pubkey is
// surfaced instead of silently fought over.
func (s *Service) subscribeSession(ctx context.Context, hs *hostedSession) error {
	joinSub, err := s.bus.Subscribe(ctx, relay.Filter{
		Kinds: []int{relay.KindPlayerJoin},
		Tags:  map[string][]string{"e": {hs.eventID}},
	}, func(e *relay.Event) {
		hs.enqueueEvent(cmdJoin, e)
	})
	if err != nil {
		return fmt.Errorf("subscribing joins: %w", err)
	}
	hs.subs = append(hs.subs, joinSub)

	answerSub, err := s.bus.Subscribe(ctx, relay.Filter{
		Kinds: []int{relay.KindAnswer},
		Tags:  map[string][]string{"e": {hs.eventID}},
	}, func(e *relay.Event) {
		hs.enqueueEvent(cmdAnswer, e)
	})
	if err != nil {
		s.bus.Unsubscribe(joinSub)
		return fmt.Errorf("subscribing answers: %w", err)
	}
	hs.subs = append(hs.subs, answerSub)

	host := s.bus.PubKey()
	guardSub, err := s.bus.Subscribe(ctx, relay.Filter{
		Kinds: []int{relay.KindGameSession},
		Tags:  map[string][]string{"d": {hs.id}},
	}, func(e *relay.Event) {
		if e.PubKey == host {
			return
		}
		metrics.RecordEventDropped()
		s.log.Warn(context.Background(), "ignoring session announcement from non-host",
			logger.String("session_id", hs.id),
			logger.String("pubkey", e.PubKey))
	})
	if err != nil {
		s.bus.Unsubscribe(joinSub)
		s.bus.Unsubscribe(answerSub)
		return fmt.Errorf("subscribing session guard: %w", err)
	}
	hs.subs = append(hs.subs, guardSub)

	return nil
}

// StartGame begins the first question. A lobby with no players stays in the
// lobby and the call succeeds.
func (s *Service) StartGame(ctx context.Context, sessionID string) error {
	hs, err := s.hosted(sessionID)
	if err != nil {
		return err
	}
	return hs.enqueueHost(ctx, cmdStart)
}

// ContinueGame advances past a reveal to the next question or finishes the
// game after the last one.
func (s *Service) ContinueGame(ctx context.Context, sessionID string) error {
	hs, err := s.hosted(sessionID)
	if err != nil {
		return err
	}
	return hs.enqueueHost(ctx, cmdContinue)
}

// EndGame finishes a session immediately. Idempotent.
func (s *Service) EndGame(ctx context.Context, sessionID string) error {
	hs, err := s.hosted(sessionID)
	if err != nil {
		return err
	}
	err = hs.enqueueHost(ctx, cmdEnd)
	if err == ErrSessionClosed {
		return nil
	}
	return err
}

func (s *Service) hosted(sessionID string) (*hostedSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	hs, ok := s.sessions[sessionID]
	if !ok {
		return nil, registry.ErrSessionNotFound
	}
	return hs, nil
}

// SessionView is a read snapshot of one session for the HTTP layer.
type SessionView struct {
	ID              string               `json:"id"`
	QuizID          string               `json:"quiz_id"`
	PIN             string               `json:"pin"`
	HostPubkey      string               `json:"host_pubkey"`
	Status          model.Status         `json:"status"`
	CurrentQuestion int                  `json:"current_question"`
	PlayerCount     int                  `json:"player_count"`
	Players         []scoring.PlayerScore `json:"players"`
	CreatedAt       time.Time            `json:"created_at"`
	StartedAt       *time.Time           `json:"started_at,omitempty"`
	EndedAt         *time.Time           `json:"ended_at,omitempty"`
}

// Session returns a snapshot of a hosted session.
func (s *Service) Session(_ context.Context, sessionID string) (SessionView, error) {
	hs, err := s.hosted(sessionID)
	if err != nil {
		return SessionView{}, err
	}

	hs.mu.Lock()
	defer hs.mu.Unlock()

	sess := hs.machine.Session()
	return SessionView{
		ID:              sess.ID,
		QuizID:          sess.QuizID,
		PIN:             sess.PIN,
		HostPubkey:      sess.HostPubkey,
		Status:          sess.Status,
		CurrentQuestion: sess.CurrentQuestion,
		PlayerCount:     hs.machine.Engine().PlayerCount(),
		Players:         hs.machine.Engine().Leaderboard(),
		CreatedAt:       sess.CreatedAt,
		StartedAt:       sess.StartedAt,
		EndedAt:         sess.EndedAt,
	}, nil
}

// Leaderboard returns current standings for a session.
func (s *Service) Leaderboard(_ context.Context, sessionID string) ([]scoring.PlayerScore, error) {
	hs, err := s.hosted(sessionID)
	if err != nil {
		return nil, err
	}

	hs.mu.Lock()
	defer hs.mu.Unlock()
	return hs.machine.Engine().Leaderboard(), nil
}

// Results returns the final snapshot of a finished session.
func (s *Service) Results(_ context.Context, sessionID string) (scoring.GameResults, error) {
	hs, err := s.hosted(sessionID)
	if err != nil {
		return scoring.GameResults{}, err
	}

	hs.mu.Lock()
	defer hs.mu.Unlock()

	if !hs.machine.Status().Terminal() {
		return scoring.GameResults{}, ErrSessionActive
	}
	return hs.machine.Engine().FinalResults(), nil
}

// Stats summarizes the service for the operational API.
type Stats struct {
	Sessions       int      `json:"sessions"`
	ActiveSessions int      `json:"active_sessions"`
	ActivePlayers  int      `json:"active_players"`
	SessionIDs     []string `json:"session_ids"`
}

// GetStats reports hosting totals.
func (s *Service) GetStats(ctx context.Context) Stats {
	return Stats{
		Sessions:       s.store.Count(ctx),
		ActiveSessions: int(s.activeSessions.Load()),
		ActivePlayers:  int(s.activePlayers.Load()),
		SessionIDs:     s.store.IDs(ctx),
	}
}

func (s *Service) sessionDelta(d int) {
	metrics.UpdateActiveSessions(int(s.activeSessions.Add(int64(d))))
}

func (s *Service) playerDelta(d int) {
	metrics.UpdateActivePlayers(int(s.activePlayers.Add(int64(d))))
}
