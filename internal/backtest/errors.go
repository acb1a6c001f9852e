package backtest

import "errors"

var (
	// ErrInvalidConfig is returned when a BacktestConfig fails validation.
	ErrInvalidConfig = errors.New("invalid backtest config")

	// ErrNoTokens is returned when no tokens were given and none are active in the window.
	ErrNoTokens = errors.New("no tokens to backtest")

	// ErrDeadlineExceeded is returned when a run does not finish within its deadline.
	ErrDeadlineExceeded = errors.New("backtest deadline exceeded")
)
