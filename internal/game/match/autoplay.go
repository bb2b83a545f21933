package match

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// AutoplayOptions controls a scripted match.
type AutoplayOptions struct {
	// Restart ends any running match and starts a fresh one first.
	Restart   bool
	WithBuffs bool
	// Interval is the pause before each attack. Zero plays without pausing.
	Interval time.Duration
	// MaxTurns ends the match as a draw once reached. Zero means no limit.
	MaxTurns int
}

// Result summarizes an autoplayed match.
type Result struct {
	MatchID  string
	Turns    int
	WinnerID int
}

// Autoplay alternates attacks between entity 1 and entity 2, starting with
// 1, until the match ends, MaxTurns is reached or ctx is done. A match
// already in progress is continued unless opts.Restart is set.
func Autoplay(ctx context.Context, c *Controller, opts AutoplayOptions) (Result, error) {
	if opts.Restart || c.State() != StateInProgress {
		if err := c.Restart(opts.WithBuffs); err != nil {
			return Result{}, fmt.Errorf("autoplay: %w", err)
		}
	}

	res := Result{MatchID: c.MatchID()}
	logger := c.logger.With(zap.String("match_id", res.MatchID))

	var tick <-chan time.Time
	if opts.Interval > 0 {
		ticker := time.NewTicker(opts.Interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	attacker := 1
	for c.State() == StateInProgress {
		if opts.MaxTurns > 0 && res.Turns >= opts.MaxTurns {
			logger.Info("turn limit reached", zap.Int("turns", res.Turns))
			if err := c.EndGame(); err != nil {
				return res, fmt.Errorf("autoplay: %w", err)
			}
			break
		}

		if tick != nil {
			select {
			case <-ctx.Done():
				return res, ctx.Err()
			case <-tick:
			}
		} else if err := ctx.Err(); err != nil {
			return res, err
		}

		if err := c.DealDamage(attacker); err != nil {
			return res, fmt.Errorf("autoplay: turn %d: %w", res.Turns+1, err)
		}
		res.Turns++
		attacker = attacker%PlayerCount + 1
	}

	res.WinnerID = c.Winner()
	logger.Debug("autoplay finished", zap.Int("turns", res.Turns), zap.Int("winner_id", res.WinnerID))
	return res, nil
}
