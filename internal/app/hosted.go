package app

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/Goosie/NostrQuizAndVote/internal/adapters/relay"
	"github.com/Goosie/NostrQuizAndVote/internal/domain/model"
	"github.com/Goosie/NostrQuizAndVote/internal/domain/scoring"
	"github.com/Goosie/NostrQuizAndVote/internal/domain/session"
	"github.com/Goosie/NostrQuizAndVote/pkg/logger"
	"github.com/Goosie/NostrQuizAndVote/pkg/metrics"
)

// hostedSession binds one session's state machine to the event bus. All
// mutation happens on the dispatch goroutine started by run; relay handlers
// and host commands only enqueue. The mutex exists for read access from the
// HTTP layer, which snapshots state without going through the queue.
type hostedSession struct {
	svc     *Service
	id      string
	eventID string // id of the session announcement, the e-tag clients reply to
	quiz    model.Quiz
	machine *session.Machine
	queue   *commandQueue
	subs    []string
	log     logger.Logger

	mu          sync.Mutex
	timer       *time.Timer
	playerCount int
	finished    bool

	done chan struct{}
}

func newHostedSession(svc *Service, sess *model.GameSession, quiz model.Quiz, eventID string, machine *session.Machine) *hostedSession {
	return &hostedSession{
		svc:     svc,
		id:      sess.ID,
		eventID: eventID,
		quiz:    quiz,
		machine: machine,
		queue:   newCommandQueue(svc.queueSize),
		log:     svc.log.Named("session"),
		done:    make(chan struct{}),
	}
}

// run is the dispatch loop. It exits when the queue closes (session finished)
// or the service context is cancelled.
func (hs *hostedSession) run(ctx context.Context) {
	defer close(hs.done)

	for {
		select {
		case <-ctx.Done():
			hs.mu.Lock()
			hs.finishLocked(context.Background())
			hs.mu.Unlock()
			return
		case cmd, ok := <-hs.queue.dequeue():
			if !ok {
				return
			}
			hs.process(ctx, cmd)
		}
	}
}

func (hs *hostedSession) process(ctx context.Context, cmd command) {
	metrics.RecordDispatchLatency(float64(time.Since(cmd.enqueuedAt).Milliseconds()))

	hs.mu.Lock()
	defer hs.mu.Unlock()

	var err error
	switch cmd.kind {
	case cmdJoin:
		err = hs.handleJoin(ctx, cmd.event)
	case cmdAnswer:
		err = hs.handleAnswer(ctx, cmd.event)
	case cmdStart:
		err = hs.handleStart(ctx)
	case cmdExpire:
		hs.handleExpire(ctx, cmd.questionIndex)
	case cmdContinue:
		err = hs.handleContinue(ctx, cmd.reply == nil)
	case cmdEnd:
		hs.machine.End()
		hs.finishLocked(ctx)
	}

	if cmd.reply != nil {
		cmd.reply <- err
	}
}

// enqueueEvent is called from relay handler goroutines.
func (hs *hostedSession) enqueueEvent(kind commandKind, e *relay.Event) {
	if !hs.queue.tryEnqueue(command{kind: kind, event: e}) {
		hs.log.Warn(context.Background(), "dropping event, session queue full",
			logger.String("session_id", hs.id),
			logger.String("event_id", e.ID))
	}
}

// enqueueHost submits a host command and waits for its outcome.
func (hs *hostedSession) enqueueHost(ctx context.Context, kind commandKind) error {
	hs.mu.Lock()
	terminal := hs.machine.Status().Terminal()
	hs.mu.Unlock()
	if terminal {
		return ErrSessionClosed
	}

	reply := make(chan error, 1)
	if !hs.queue.tryEnqueue(command{kind: kind, reply: reply}) {
		return ErrQueueFull
	}

	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (hs *hostedSession) handleJoin(ctx context.Context, e *relay.Event) error {
	var content relay.PlayerJoinContent
	if err := json.Unmarshal([]byte(e.Content), &content); err != nil {
		hs.dropEvent(e, "malformed join content", err)
		return nil
	}
	if content.SessionID != hs.id {
		hs.dropEvent(e, "join for another session", nil)
		return nil
	}

	before := hs.machine.Engine().PlayerCount()
	player, err := hs.machine.Join(e.PubKey, content.Nickname)
	if err != nil {
		hs.dropEvent(e, "join rejected", err)
		return nil
	}
	if hs.machine.Engine().PlayerCount() > before {
		hs.playerCount++
		hs.svc.playerDelta(1)
	}

	hs.log.Info(ctx, "player joined",
		logger.String("session_id", hs.id),
		logger.String("player_id", player.ID),
		logger.String("nickname", player.Nickname),
		logger.Int("players", hs.machine.Engine().PlayerCount()))

	hs.publishScoreUpdate(ctx)
	return nil
}

func (hs *hostedSession) handleAnswer(ctx context.Context, e *relay.Event) error {
	var content relay.AnswerContent
	if err := json.Unmarshal([]byte(e.Content), &content); err != nil {
		hs.dropEvent(e, "malformed answer content", err)
		return nil
	}
	if content.SessionID != hs.id {
		hs.dropEvent(e, "answer for another session", nil)
		return nil
	}

	result, allAnswered, err := hs.machine.SubmitAnswer(e.PubKey, content.QuestionIndex, content.AnswerIndex, content.TimeMs)
	if err != nil {
		metrics.RecordAnswerRejected(rejectReason(err))
		hs.log.Debug(ctx, "answer rejected",
			logger.String("session_id", hs.id),
			logger.String("player_id", e.PubKey),
			logger.Int("question_index", content.QuestionIndex),
			logger.Error(err))
		return nil
	}

	metrics.RecordAnswerAccepted()
	hs.log.Debug(ctx, "answer accepted",
		logger.String("session_id", hs.id),
		logger.String("player_id", e.PubKey),
		logger.Int("question_index", content.QuestionIndex),
		logger.Bool("is_correct", result.IsCorrect),
		logger.Int("points", result.Points))

	hs.publishScoreUpdate(ctx)
	if allAnswered {
		return hs.closeQuestion(ctx)
	}
	return nil
}

func (hs *hostedSession) handleStart(ctx context.Context) error {
	question, err := hs.machine.Start()
	if err != nil {
		return err
	}
	if question == nil {
		hs.log.Info(ctx, "start ignored, no players in lobby",
			logger.String("session_id", hs.id))
		return nil
	}

	hs.log.Info(ctx, "game started",
		logger.String("session_id", hs.id),
		logger.Int("players", hs.machine.Engine().PlayerCount()),
		logger.Int("questions", len(hs.quiz.Questions)))

	hs.armQuestionTimer(question)
	hs.publishScoreUpdate(ctx)
	return nil
}

// handleExpire fires when a question countdown elapses. Timers are not
// cancelled atomically with state changes, so a stale fire for an already
// closed or superseded question is expected and ignored.
func (hs *hostedSession) handleExpire(ctx context.Context, questionIndex int) {
	if hs.machine.Status() != model.StatusQuestion || hs.machine.CurrentQuestion() != questionIndex {
		return
	}
	if err := hs.closeQuestion(ctx); err != nil {
		hs.log.Error(ctx, "closing expired question",
			logger.String("session_id", hs.id),
			logger.Int("question_index", questionIndex),
			logger.Error(err))
	}
}

func (hs *hostedSession) handleContinue(ctx context.Context, auto bool) error {
	question, finished, err := hs.machine.Continue()
	if err != nil {
		if auto {
			// the host advanced (or ended) before the reveal delay elapsed
			return nil
		}
		return err
	}

	if finished {
		hs.finishLocked(ctx)
		return nil
	}

	hs.log.Info(ctx, "question opened",
		logger.String("session_id", hs.id),
		logger.Int("question_index", question.Index))

	hs.armQuestionTimer(question)
	hs.publishScoreUpdate(ctx)
	return nil
}

// closeQuestion moves to reveal, publishes standings, and schedules the next
// advance when the quiz runs on timed reveals. Caller holds hs.mu.
func (hs *hostedSession) closeQuestion(ctx context.Context) error {
	hs.stopTimer()

	result, err := hs.machine.CloseQuestion()
	if err != nil {
		return err
	}
	metrics.RecordQuestionClosed()

	hs.log.Info(ctx, "question closed",
		logger.String("session_id", hs.id),
		logger.Int("question_index", result.QuestionIndex),
		logger.Int("answers", result.TotalAnswers))

	hs.publishScoreUpdate(ctx)

	if hs.quiz.Settings.RevealMode == model.RevealTimed {
		hs.timer = time.AfterFunc(hs.svc.questionDelay, func() {
			hs.queue.tryEnqueue(command{kind: cmdContinue})
		})
	}
	return nil
}

func (hs *hostedSession) armQuestionTimer(q *model.Question) {
	hs.stopTimer()
	index := hs.machine.CurrentQuestion()
	hs.timer = time.AfterFunc(time.Duration(q.TimeLimitSeconds)*time.Second, func() {
		hs.queue.tryEnqueue(command{kind: cmdExpire, questionIndex: index})
	})
}

func (hs *hostedSession) stopTimer() {
	if hs.timer != nil {
		hs.timer.Stop()
		hs.timer = nil
	}
}

// finishLocked runs terminal housekeeping exactly once. Caller holds hs.mu.
func (hs *hostedSession) finishLocked(ctx context.Context) {
	if hs.finished {
		return
	}
	hs.finished = true

	hs.stopTimer()
	hs.machine.End()
	hs.publishScoreUpdate(ctx)

	for _, subID := range hs.subs {
		hs.svc.bus.Unsubscribe(subID)
	}
	hs.subs = nil

	hs.svc.playerDelta(-hs.playerCount)
	hs.playerCount = 0
	hs.svc.sessionDelta(-1)
	hs.queue.close()

	hs.log.Info(ctx, "session finished", logger.String("session_id", hs.id))
}

// publishScoreUpdate broadcasts current standings, tagged with the session
// announcement so subscribed clients pick it up. Caller holds hs.mu.
func (hs *hostedSession) publishScoreUpdate(ctx context.Context) {
	questionIndex := hs.machine.CurrentQuestion()
	if questionIndex < 0 {
		questionIndex = 0
	}

	standings := hs.machine.Engine().Leaderboard()
	content := relay.ScoreUpdateContent{
		SessionID:     hs.id,
		QuestionIndex: questionIndex,
		Scores:        make([]relay.PlayerStanding, 0, len(standings)),
	}
	for _, s := range standings {
		content.Scores = append(content.Scores, relay.PlayerStanding{
			PlayerID:   s.PlayerID,
			Nickname:   s.Nickname,
			TotalScore: s.TotalScore,
		})
	}

	payload, err := json.Marshal(content)
	if err != nil {
		hs.log.Error(ctx, "encoding score update", logger.Error(err))
		return
	}

	tags := [][]string{{"e", hs.eventID}}
	if _, err := hs.svc.bus.Publish(ctx, relay.KindScoreUpdate, string(payload), tags); err != nil {
		hs.log.Error(ctx, "publishing score update",
			logger.String("session_id", hs.id),
			logger.Error(err))
		return
	}
	metrics.RecordScoreUpdate()
}

func (hs *hostedSession) dropEvent(e *relay.Event, reason string, err error) {
	metrics.RecordEventDropped()
	fields := []logger.Field{
		logger.String("session_id", hs.id),
		logger.String("event_id", e.ID),
		logger.String("pubkey", e.PubKey),
		logger.String("reason", reason),
	}
	if err != nil {
		fields = append(fields, logger.Error(err))
	}
	hs.log.Warn(context.Background(), "dropping event", fields...)
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, scoring.ErrDuplicateAnswer):
		return "duplicate"
	case errors.Is(err, scoring.ErrInvalidQuestion):
		return "invalid_question"
	case errors.Is(err, scoring.ErrUnknownPlayer):
		return "unknown_player"
	case errors.Is(err, session.ErrSessionClosed):
		return "session_closed"
	default:
		return "other"
	}
}
