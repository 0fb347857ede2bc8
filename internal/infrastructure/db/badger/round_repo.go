package badgerdb

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/arkade-os/lotteryd/internal/core/domain"
	"github.com/dgraph-io/badger/v4"
	"github.com/timshannon/badgerhold/v4"
)

const roundStoreDir = "rounds"

type roundRepository struct {
	store *badgerhold.Store
}

func NewRoundRepository(config ...interface{}) (domain.RoundRepository, error) {
	baseDir, logger, err := parseConfig(config)
	if err != nil {
		return nil, err
	}

	var dir string
	if len(baseDir) > 0 {
		dir = filepath.Join(baseDir, roundStoreDir)
	}
	store, err := createDB(dir, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open round store: %s", err)
	}

	return &roundRepository{store}, nil
}

func (r *roundRepository) AddOrUpdateRound(ctx context.Context, round domain.Round) error {
	rnd := *round.Snapshot()
	return withRetry(func() error {
		if tx, ok := ctx.Value("tx").(*badger.Txn); ok {
			return r.store.TxUpsert(tx, round.Number, rnd)
		}
		return r.store.Upsert(round.Number, rnd)
	})
}

func (r *roundRepository) GetRound(ctx context.Context, number uint64) (*domain.Round, error) {
	var round domain.Round
	var err error
	if tx, ok := ctx.Value("tx").(*badger.Txn); ok {
		err = r.store.TxGet(tx, number, &round)
	} else {
		err = r.store.Get(number, &round)
	}
	if err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, fmt.Errorf("%w: round %d", domain.ErrNotFound, number)
		}
		return nil, err
	}
	return &round, nil
}

func (r *roundRepository) GetLatestRound(ctx context.Context) (*domain.Round, error) {
	query := badgerhold.Where("Number").Ge(uint64(0)).SortBy("Number").Reverse().Limit(1)
	rounds, err := r.findRound(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(rounds) <= 0 {
		return nil, fmt.Errorf("%w: no rounds", domain.ErrNotFound)
	}
	return &rounds[0], nil
}

func (r *roundRepository) GetRoundNumbers(
	ctx context.Context, startedAfter, startedBefore int64,
) ([]uint64, error) {
	query := badgerhold.Where("StartingTimestamp").Gt(startedAfter)
	if startedBefore > 0 {
		query = query.And("StartingTimestamp").Lt(startedBefore)
	}
	rounds, err := r.findRound(ctx, query.SortBy("Number"))
	if err != nil {
		return nil, err
	}

	numbers := make([]uint64, 0, len(rounds))
	for _, round := range rounds {
		numbers = append(numbers, round.Number)
	}
	return numbers, nil
}

func (r *roundRepository) GetRoundStats(ctx context.Context) (*domain.RoundStats, error) {
	query := badgerhold.Where("Stage").Eq(domain.RoundSettledStage)
	rounds, err := r.findRound(ctx, query)
	if err != nil {
		return nil, err
	}

	stats := &domain.RoundStats{}
	for _, round := range rounds {
		stats.SettledRounds++
		if round.RolledOver {
			stats.RolledOverRounds++
		}
		stats.TotalPaidOut += round.PrizeAmount
	}
	return stats, nil
}

func (r *roundRepository) Close() {
	_ = r.store.Close()
}

func (r *roundRepository) findRound(
	ctx context.Context, query *badgerhold.Query,
) ([]domain.Round, error) {
	var rounds []domain.Round
	var err error

	if tx, ok := ctx.Value("tx").(*badger.Txn); ok {
		err = r.store.TxFind(tx, &rounds, query)
	} else {
		err = r.store.Find(&rounds, query)
	}

	return rounds, err
}
