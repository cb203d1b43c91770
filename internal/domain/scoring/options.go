package scoring

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithBasePoints sets the award for a correct answer on questions that carry
// no point value of their own.
func WithBasePoints(points int) Option {
	return func(e *Engine) {
		if points > 0 {
			e.basePoints = points
		}
	}
}

// WithTimeBonus enables or disables speed-based bonus points.
func WithTimeBonus(enabled bool) Option {
	return func(e *Engine) {
		e.timeBonus = enabled
	}
}

// WithMaxTimeBonus sets the bonus for an instant correct answer.
func WithMaxTimeBonus(bonus int) Option {
	return func(e *Engine) {
		if bonus >= 0 {
			e.maxTimeBonus = bonus
		}
	}
}
