package scoring_test

import (
	"testing"
	"time"

	"github.com/Goosie/NostrQuizAndVote/internal/domain/model"
	scoring "github.com/Goosie/NostrQuizAndVote/internal/domain/scoring"
	. "github.com/smartystreets/goconvey/convey"
)

func twoQuestionQuiz() model.Quiz {
	return model.Quiz{
		ID:       "quiz-1",
		Title:    "Geography",
		Language: "en",
		Questions: []model.Question{
			{
				Index:            0,
				Text:             "Capital of France?",
				Type:             model.MultipleChoice,
				Options:          []string{"Paris", "Lyon", "Nice", "Lille"},
				CorrectIndex:     0,
				TimeLimitSeconds: 30,
				Points:           100,
			},
			{
				Index:            1,
				Text:             "The Nile is the longest river.",
				Type:             model.TrueFalse,
				Options:          []string{"True", "False"},
				CorrectIndex:     0,
				TimeLimitSeconds: 20,
				Points:           100,
			},
		},
	}
}

func TestSubmitAnswer(t *testing.T) {
	Convey("Given an engine with one registered player", t, func() {
		engine := scoring.NewEngine(twoQuestionQuiz(), scoring.WithMaxTimeBonus(50))
		engine.AddPlayer("alice", "Alice", time.Now())

		Convey("When submitting a correct answer", func() {
			result, err := engine.SubmitAnswer("alice", 0, 0, 5000)

			Convey("Then the answer should score base points plus time bonus", func() {
				So(err, ShouldBeNil)
				So(result.IsCorrect, ShouldBeTrue)
				// 100 + floor(50 * (1 - 5000/30000)) = 100 + 41
				So(result.Points, ShouldEqual, 141)
				So(result.TotalScore, ShouldEqual, 141)
			})

			Convey("And submitting again for the same question", func() {
				_, err := engine.SubmitAnswer("alice", 0, 2, 1000)

				Convey("Then it should be rejected as a duplicate regardless of payload", func() {
					So(err, ShouldEqual, scoring.ErrDuplicateAnswer)
					So(engine.TotalScore("alice"), ShouldEqual, 141)
				})
			})
		})

		Convey("When submitting for an unknown player", func() {
			_, err := engine.SubmitAnswer("mallory", 0, 0, 1000)
			So(err, ShouldEqual, scoring.ErrUnknownPlayer)
		})

		Convey("When submitting for a question index out of range", func() {
			_, err := engine.SubmitAnswer("alice", 2, 0, 1000)
			So(err, ShouldEqual, scoring.ErrInvalidQuestion)

			_, err = engine.SubmitAnswer("alice", -1, 0, 1000)
			So(err, ShouldEqual, scoring.ErrInvalidQuestion)
		})

		Convey("When the elapsed time exceeds the question limit", func() {
			result, err := engine.SubmitAnswer("alice", 1, 0, 99999)

			Convey("Then the time should be clamped to the limit", func() {
				So(err, ShouldBeNil)
				So(result.TimeMs, ShouldEqual, int64(20000))
				// Full time used: no bonus.
				So(result.Points, ShouldEqual, 100)
			})
		})
	})
}

func TestScoringDeterminism(t *testing.T) {
	Convey("Given timeLimit=30s, points=100, maxTimeBonus=50", t, func() {
		quiz := twoQuestionQuiz()

		Convey("A correct answer at 0ms yields 150", func() {
			engine := scoring.NewEngine(quiz, scoring.WithMaxTimeBonus(50))
			engine.AddPlayer("p", "P", time.Now())
			result, err := engine.SubmitAnswer("p", 0, 0, 0)
			So(err, ShouldBeNil)
			So(result.Points, ShouldEqual, 150)
		})

		Convey("A correct answer at 30000ms yields 100", func() {
			engine := scoring.NewEngine(quiz, scoring.WithMaxTimeBonus(50))
			engine.AddPlayer("p", "P", time.Now())
			result, err := engine.SubmitAnswer("p", 0, 0, 30000)
			So(err, ShouldBeNil)
			So(result.Points, ShouldEqual, 100)
		})

		Convey("An incorrect answer yields 0 regardless of time", func() {
			engine := scoring.NewEngine(quiz, scoring.WithMaxTimeBonus(50))
			engine.AddPlayer("p", "P", time.Now())
			result, err := engine.SubmitAnswer("p", 0, 3, 0)
			So(err, ShouldBeNil)
			So(result.Points, ShouldEqual, 0)
		})

		Convey("With time bonus disabled a correct answer yields base points", func() {
			engine := scoring.NewEngine(quiz, scoring.WithTimeBonus(false))
			engine.AddPlayer("p", "P", time.Now())
			result, err := engine.SubmitAnswer("p", 0, 0, 0)
			So(err, ShouldBeNil)
			So(result.Points, ShouldEqual, 100)
		})
	})
}

func TestCloseQuestion(t *testing.T) {
	Convey("Given three players and one answered question", t, func() {
		engine := scoring.NewEngine(twoQuestionQuiz())
		now := time.Now()
		engine.AddPlayer("a", "A", now)
		engine.AddPlayer("b", "B", now)
		engine.AddPlayer("c", "C", now)

		_, err := engine.SubmitAnswer("a", 0, 0, 5000)
		So(err, ShouldBeNil)
		_, err = engine.SubmitAnswer("b", 0, 1, 10000)
		So(err, ShouldBeNil)
		// c never answers

		Convey("When closing the question", func() {
			result, err := engine.CloseQuestion(0)
			So(err, ShouldBeNil)

			Convey("Then every player gets a row, silent ones synthesized", func() {
				So(len(result.PlayerResults), ShouldEqual, 3)
				So(result.TotalAnswers, ShouldEqual, 2)

				var cRow *scoring.PlayerQuestionResult
				for i := range result.PlayerResults {
					if result.PlayerResults[i].PlayerID == "c" {
						cRow = &result.PlayerResults[i]
					}
				}
				So(cRow, ShouldNotBeNil)
				So(cRow.AnswerIndex, ShouldEqual, -1)
				So(cRow.Points, ShouldEqual, 0)
				So(cRow.TimeMs, ShouldEqual, int64(30000))
			})

			Convey("And closing it again returns the identical cached result", func() {
				again, err := engine.CloseQuestion(0)
				So(err, ShouldBeNil)
				So(again, ShouldEqual, result) // same snapshot, no recomputation
			})

			Convey("And the leaderboard ranks the correct answerer first", func() {
				board := engine.Leaderboard()
				So(board[0].PlayerID, ShouldEqual, "a")
				So(board[0].Rank, ShouldEqual, 1)
			})
		})

		Convey("When closing an out-of-range question", func() {
			_, err := engine.CloseQuestion(5)
			So(err, ShouldEqual, scoring.ErrInvalidQuestion)
		})
	})
}

func TestLeaderboard(t *testing.T) {
	Convey("Given players with distinct and tied scores", t, func() {
		engine := scoring.NewEngine(twoQuestionQuiz(), scoring.WithTimeBonus(false))
		now := time.Now()
		engine.AddPlayer("fast", "Fast", now)
		engine.AddPlayer("slow", "Slow", now)
		engine.AddPlayer("wrong", "Wrong", now)

		// Same score, different speed.
		_, _ = engine.SubmitAnswer("fast", 0, 0, 2000)
		_, _ = engine.SubmitAnswer("slow", 0, 0, 15000)
		_, _ = engine.SubmitAnswer("wrong", 0, 3, 1000)

		Convey("Then the order is score desc, then average time asc", func() {
			board := engine.Leaderboard()
			So(len(board), ShouldEqual, 3)
			So(board[0].PlayerID, ShouldEqual, "fast")
			So(board[1].PlayerID, ShouldEqual, "slow")
			So(board[2].PlayerID, ShouldEqual, "wrong")
		})

		Convey("Then ranks are a dense 1..N sequence", func() {
			board := engine.Leaderboard()
			for i, row := range board {
				So(row.Rank, ShouldEqual, i+1)
			}
		})

		Convey("Then recomputation without mutation is idempotent", func() {
			first := engine.Leaderboard()
			second := engine.Leaderboard()
			So(second, ShouldResemble, first)
		})
	})
}

func TestQuestionStats(t *testing.T) {
	Convey("Given a closed question", t, func() {
		engine := scoring.NewEngine(twoQuestionQuiz())
		now := time.Now()
		engine.AddPlayer("a", "A", now)
		engine.AddPlayer("b", "B", now)

		_, _ = engine.SubmitAnswer("a", 0, 0, 4000)
		_, _ = engine.SubmitAnswer("b", 0, 1, 8000)
		_, err := engine.CloseQuestion(0)
		So(err, ShouldBeNil)

		Convey("Then stats aggregate the stored result", func() {
			stats, err := engine.QuestionStats(0)
			So(err, ShouldBeNil)
			So(stats.TotalAnswers, ShouldEqual, 2)
			So(stats.CorrectAnswers, ShouldEqual, 1)
			So(stats.AverageTime, ShouldEqual, 6000.0)
			So(stats.AnswerDistribution, ShouldResemble, []int{1, 1, 0, 0})
		})

		Convey("Then stats for an open question are refused", func() {
			_, err := engine.QuestionStats(1)
			So(err, ShouldEqual, scoring.ErrQuestionOpen)
		})
	})
}

func TestFinalResults(t *testing.T) {
	Convey("Given a finished two-question game", t, func() {
		engine := scoring.NewEngine(twoQuestionQuiz())
		now := time.Now()
		engine.AddPlayer("a", "A", now)
		engine.AddPlayer("b", "B", now)

		_, _ = engine.SubmitAnswer("a", 0, 0, 5000)
		_, _ = engine.SubmitAnswer("b", 0, 1, 10000)
		_, _ = engine.CloseQuestion(0)
		_, _ = engine.SubmitAnswer("a", 1, 0, 3000)
		_, _ = engine.CloseQuestion(1)

		Convey("Then the snapshot carries standings and every question result", func() {
			results := engine.FinalResults()
			So(results.TotalQuestions, ShouldEqual, 2)
			So(results.TotalPlayers, ShouldEqual, 2)
			So(len(results.QuestionResults), ShouldEqual, 2)
			So(results.FinalScores[0].PlayerID, ShouldEqual, "a")
			So(results.FinalScores[0].CorrectAnswers, ShouldEqual, 2)
		})
	})
}

func TestRejoinKeepsAnswers(t *testing.T) {
	Convey("Given a player who answered and then rejoins", t, func() {
		engine := scoring.NewEngine(twoQuestionQuiz())
		engine.AddPlayer("a", "A", time.Now())
		_, _ = engine.SubmitAnswer("a", 0, 0, 5000)

		engine.AddPlayer("a", "A2", time.Now())

		Convey("Then the answers and score survive, nickname refreshes", func() {
			So(engine.PlayerCount(), ShouldEqual, 1)
			So(engine.TotalScore("a"), ShouldBeGreaterThan, 0)
			So(engine.Players()[0].Nickname, ShouldEqual, "A2")

			_, err := engine.SubmitAnswer("a", 0, 0, 100)
			So(err, ShouldEqual, scoring.ErrDuplicateAnswer)
		})
	})
}
