package domain

import "context"

type RoundRepository interface {
	AddOrUpdateRound(ctx context.Context, round Round) error
	GetRound(ctx context.Context, number uint64) (*Round, error)
	// GetLatestRound returns the round with the highest number.
	GetLatestRound(ctx context.Context) (*Round, error)
	GetRoundNumbers(ctx context.Context, startedAfter, startedBefore int64) ([]uint64, error)
	GetRoundStats(ctx context.Context) (*RoundStats, error)
	Close()
}

type RoundStats struct {
	SettledRounds    uint64
	RolledOverRounds uint64
	TotalPaidOut     uint64
}
