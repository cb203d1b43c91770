// Package scoring computes answer results and leaderboards for a live game.
//
// The engine is pure state over a quiz and its player set. It is not safe for
// concurrent use; callers serialize access per session (see internal/app).
package scoring

import (
	"math"
	"sort"
	"time"

	"github.com/Goosie/NostrQuizAndVote/internal/domain/model"
)

// Default scoring configuration constants.
const (
	defaultBasePoints   = 100
	defaultMaxTimeBonus = 50
)

// PlayerQuestionResult is the outcome of one player's answer to one question.
type PlayerQuestionResult struct {
	PlayerID    string `json:"player_id"`
	AnswerIndex int    `json:"answer_index"`
	TimeMs      int64  `json:"time_ms"`
	IsCorrect   bool   `json:"is_correct"`
	Points      int    `json:"points"`
	TotalScore  int    `json:"total_score"`
}

// QuestionResult is the snapshot produced once when a question closes.
type QuestionResult struct {
	QuestionIndex int                    `json:"question_index"`
	CorrectIndex  int                    `json:"correct_index"`
	PlayerResults []PlayerQuestionResult `json:"player_results"`
	TotalAnswers  int                    `json:"total_answers"`
}

// PlayerScore is one leaderboard row. Rank is 1-based and dense.
type PlayerScore struct {
	PlayerID       string  `json:"player_id"`
	Nickname       string  `json:"nickname"`
	TotalScore     int     `json:"total_score"`
	CorrectAnswers int     `json:"correct_answers"`
	AverageTime    float64 `json:"average_time"`
	Rank           int     `json:"rank"`
}

// QuestionStats aggregates a closed question, derived from its stored result.
type QuestionStats struct {
	TotalAnswers       int     `json:"total_answers"`
	CorrectAnswers     int     `json:"correct_answers"`
	AverageTime        float64 `json:"average_time"`
	AnswerDistribution []int   `json:"answer_distribution"`
}

// GameResults is the final snapshot of a finished game.
type GameResults struct {
	FinalScores     []PlayerScore    `json:"final_scores"`
	QuestionResults []QuestionResult `json:"question_results"`
	TotalQuestions  int              `json:"total_questions"`
	TotalPlayers    int              `json:"total_players"`
}

// Engine scores answers for a single quiz session.
type Engine struct {
	quiz         model.Quiz
	basePoints   int
	timeBonus    bool
	maxTimeBonus int

	players   map[string]*model.Player
	joinOrder []string
	results   map[int]*QuestionResult
}

// NewEngine creates an engine for one quiz with configuration options.
func NewEngine(quiz model.Quiz, opts ...Option) *Engine {
	e := &Engine{
		quiz:         quiz,
		basePoints:   defaultBasePoints,
		timeBonus:    true,
		maxTimeBonus: defaultMaxTimeBonus,
		players:      make(map[string]*model.Player),
		results:      make(map[int]*QuestionResult),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// AddPlayer registers a player. Re-adding an existing id refreshes the
// nickname but keeps recorded answers, so duplicate join events are harmless.
func (e *Engine) AddPlayer(id, nickname string, joinedAt time.Time) *model.Player {
	if p, ok := e.players[id]; ok {
		if nickname != "" {
			p.Nickname = nickname
		}
		return p
	}
	p := &model.Player{
		ID:       id,
		Nickname: nickname,
		JoinedAt: joinedAt,
	}
	e.players[id] = p
	e.joinOrder = append(e.joinOrder, id)
	return p
}

// RemovePlayer drops a player and their answers.
func (e *Engine) RemovePlayer(id string) {
	if _, ok := e.players[id]; !ok {
		return
	}
	delete(e.players, id)
	for i, pid := range e.joinOrder {
		if pid == id {
			e.joinOrder = append(e.joinOrder[:i], e.joinOrder[i+1:]...)
			break
		}
	}
}

// Players returns all players in join order.
func (e *Engine) Players() []*model.Player {
	out := make([]*model.Player, 0, len(e.joinOrder))
	for _, id := range e.joinOrder {
		out = append(out, e.players[id])
	}
	return out
}

// PlayerCount returns the number of registered players.
func (e *Engine) PlayerCount() int { return len(e.players) }

// AnswerCount returns how many players have answered the given question.
func (e *Engine) AnswerCount(questionIndex int) int {
	n := 0
	for _, p := range e.players {
		for _, a := range p.Answers {
			if a.QuestionIndex == questionIndex {
				n++
				break
			}
		}
	}
	return n
}

// SubmitAnswer records one answer. The (playerID, questionIndex) pair is the
// idempotency key: a second submission for the same pair is rejected with
// ErrDuplicateAnswer regardless of payload, which absorbs relay-level
// duplicate delivery and client retries.
func (e *Engine) SubmitAnswer(playerID string, questionIndex, answerIndex int, timeMs int64) (PlayerQuestionResult, error) {
	player, ok := e.players[playerID]
	if !ok {
		return PlayerQuestionResult{}, ErrUnknownPlayer
	}
	if questionIndex < 0 || questionIndex >= len(e.quiz.Questions) {
		return PlayerQuestionResult{}, ErrInvalidQuestion
	}
	for _, a := range player.Answers {
		if a.QuestionIndex == questionIndex {
			return PlayerQuestionResult{}, ErrDuplicateAnswer
		}
	}

	question := e.quiz.Questions[questionIndex]
	limit := question.TimeLimitMS()
	if timeMs < 0 {
		timeMs = 0
	} else if timeMs > limit {
		timeMs = limit
	}

	isCorrect := answerIndex == question.CorrectIndex
	points := e.calculatePoints(question, timeMs, isCorrect)

	player.Answers = append(player.Answers, model.PlayerAnswer{
		QuestionIndex: questionIndex,
		AnswerIndex:   answerIndex,
		TimeMs:        timeMs,
		IsCorrect:     isCorrect,
		Points:        points,
	})

	total := 0
	for _, a := range player.Answers {
		total += a.Points
	}
	player.TotalScore = total

	return PlayerQuestionResult{
		PlayerID:    playerID,
		AnswerIndex: answerIndex,
		TimeMs:      timeMs,
		IsCorrect:   isCorrect,
		Points:      points,
		TotalScore:  total,
	}, nil
}

// calculatePoints applies base points plus an optional speed bonus.
func (e *Engine) calculatePoints(question model.Question, timeMs int64, isCorrect bool) int {
	if !isCorrect {
		return 0
	}

	points := question.Points
	if points == 0 {
		points = e.basePoints
	}

	if e.timeBonus {
		limit := question.TimeLimitMS()
		ratio := 1 - float64(timeMs)/float64(limit)
		points += int(math.Floor(ratio * float64(e.maxTimeBonus)))
	}

	return points
}

// CloseQuestion snapshots results for a question. Players without a recorded
// answer get a synthesized "no answer" row (answerIndex -1, zero points, full
// time) so they still rank. Closing an already-closed question returns the
// cached result without recomputation.
func (e *Engine) CloseQuestion(questionIndex int) (*QuestionResult, error) {
	if questionIndex < 0 || questionIndex >= len(e.quiz.Questions) {
		return nil, ErrInvalidQuestion
	}
	if r, ok := e.results[questionIndex]; ok {
		return r, nil
	}

	question := e.quiz.Questions[questionIndex]
	result := &QuestionResult{
		QuestionIndex: questionIndex,
		CorrectIndex:  question.CorrectIndex,
	}

	for _, id := range e.joinOrder {
		player := e.players[id]
		var answer *model.PlayerAnswer
		for i := range player.Answers {
			if player.Answers[i].QuestionIndex == questionIndex {
				answer = &player.Answers[i]
				break
			}
		}
		if answer != nil {
			result.PlayerResults = append(result.PlayerResults, PlayerQuestionResult{
				PlayerID:    id,
				AnswerIndex: answer.AnswerIndex,
				TimeMs:      answer.TimeMs,
				IsCorrect:   answer.IsCorrect,
				Points:      answer.Points,
				TotalScore:  player.TotalScore,
			})
			result.TotalAnswers++
		} else {
			result.PlayerResults = append(result.PlayerResults, PlayerQuestionResult{
				PlayerID:    id,
				AnswerIndex: -1,
				TimeMs:      question.TimeLimitMS(),
				IsCorrect:   false,
				Points:      0,
				TotalScore:  player.TotalScore,
			})
		}
	}

	e.results[questionIndex] = result
	return result, nil
}

// Closed reports whether a question's result has been produced.
func (e *Engine) Closed(questionIndex int) bool {
	_, ok := e.results[questionIndex]
	return ok
}

// Leaderboard computes the ranked standings: total score descending, ties
// broken by average time ascending, then join order. Ranks are dense, 1..N.
func (e *Engine) Leaderboard() []PlayerScore {
	scores := make([]PlayerScore, 0, len(e.joinOrder))

	for _, id := range e.joinOrder {
		player := e.players[id]
		correct := 0
		var totalTime int64
		for _, a := range player.Answers {
			if a.IsCorrect {
				correct++
			}
			totalTime += a.TimeMs
		}
		avg := 0.0
		if len(player.Answers) > 0 {
			avg = float64(totalTime) / float64(len(player.Answers))
		}
		scores = append(scores, PlayerScore{
			PlayerID:       id,
			Nickname:       player.Nickname,
			TotalScore:     player.TotalScore,
			CorrectAnswers: correct,
			AverageTime:    avg,
		})
	}

	sort.SliceStable(scores, func(i, j int) bool {
		if scores[i].TotalScore != scores[j].TotalScore {
			return scores[i].TotalScore > scores[j].TotalScore
		}
		return scores[i].AverageTime < scores[j].AverageTime
	})

	for i := range scores {
		scores[i].Rank = i + 1
	}

	return scores
}

// TotalScore returns a player's current score, zero for unknown players.
func (e *Engine) TotalScore(playerID string) int {
	if p, ok := e.players[playerID]; ok {
		return p.TotalScore
	}
	return 0
}

// QuestionStats derives aggregates from a closed question's stored result.
// Purely a read; returns ErrQuestionOpen if the question was never closed.
func (e *Engine) QuestionStats(questionIndex int) (QuestionStats, error) {
	result, ok := e.results[questionIndex]
	if !ok {
		return QuestionStats{}, ErrQuestionOpen
	}

	stats := QuestionStats{
		TotalAnswers:       result.TotalAnswers,
		AnswerDistribution: make([]int, len(e.quiz.Questions[questionIndex].Options)),
	}
	var totalTime int64
	for _, r := range result.PlayerResults {
		if r.IsCorrect {
			stats.CorrectAnswers++
		}
		totalTime += r.TimeMs
		if r.AnswerIndex >= 0 && r.AnswerIndex < len(stats.AnswerDistribution) {
			stats.AnswerDistribution[r.AnswerIndex]++
		}
	}
	if len(result.PlayerResults) > 0 {
		stats.AverageTime = float64(totalTime) / float64(len(result.PlayerResults))
	}

	return stats, nil
}

// FinalResults snapshots the finished game: final standings plus every
// question result in question order.
func (e *Engine) FinalResults() GameResults {
	questionResults := make([]QuestionResult, 0, len(e.results))
	for i := 0; i < len(e.quiz.Questions); i++ {
		if r, ok := e.results[i]; ok {
			questionResults = append(questionResults, *r)
		}
	}
	return GameResults{
		FinalScores:     e.Leaderboard(),
		QuestionResults: questionResults,
		TotalQuestions:  len(e.quiz.Questions),
		TotalPlayers:    len(e.players),
	}
}
