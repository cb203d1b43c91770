package app

import (
	"time"

	"github.com/Goosie/NostrQuizAndVote/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger.
func WithLogger(log logger.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

// WithQueueSize sets the per-session command queue capacity.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithBasePoints sets the points for a correct answer before any bonus.
func WithBasePoints(points int) Option {
	return func(s *Service) {
		if points > 0 {
			s.basePoints = points
		}
	}
}

// WithTimeBonus toggles the speed bonus on correct answers.
func WithTimeBonus(enabled bool) Option {
	return func(s *Service) {
		s.timeBonus = enabled
	}
}

// WithMaxTimeBonus sets the bonus for an instant correct answer.
func WithMaxTimeBonus(bonus int) Option {
	return func(s *Service) {
		if bonus >= 0 {
			s.maxTimeBonus = bonus
		}
	}
}

// WithQuestionDelay sets how long a timed reveal lingers before the next
// question opens.
func WithQuestionDelay(delay time.Duration) Option {
	return func(s *Service) {
		if delay > 0 {
			s.questionDelay = delay
		}
	}
}

// WithDefaultTimePerQuestion sets the announced answer window, in seconds,
// for quizzes that do not set their own.
func WithDefaultTimePerQuestion(seconds int) Option {
	return func(s *Service) {
		if seconds > 0 {
			s.defaultTimePerQuestion = seconds
		}
	}
}

// WithClock injects a clock for deterministic timestamps in tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}
