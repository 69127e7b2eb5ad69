package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

type maturedReleaser interface {
	ReleaseMatured(ctx context.Context, batchSize int) (int, error)
}

// BalanceSweeper periodically releases matured mentor earnings.
type BalanceSweeper struct {
	releaser maturedReleaser
	interval time.Duration
	logger   zerolog.Logger
}

func NewBalanceSweeper(releaser maturedReleaser, interval time.Duration, logger zerolog.Logger) *BalanceSweeper {
	if interval <= 0 {
		interval = time.Hour
	}
	return &BalanceSweeper{
		releaser: releaser,
		interval: interval,
		logger:   logger.With().Str("component", "balance_sweeper").Logger(),
	}
}

func (s *BalanceSweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("balance sweeper stopped")
			return
		case <-ticker.C:
			released, err := s.releaser.ReleaseMatured(ctx, 100)
			if err != nil {
				s.logger.Error().Err(err).Msg("balance maturity sweep failed")
				continue
			}
			if released > 0 {
				s.logger.Info().Int("released", released).Msg("balance maturity sweep completed")
			}
		}
	}
}
