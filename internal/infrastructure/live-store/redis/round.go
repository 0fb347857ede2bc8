package redislivestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/arkade-os/lotteryd/internal/core/domain"
	"github.com/arkade-os/lotteryd/internal/core/ports"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

const (
	currentRoundKey = "lotteryd:currentRound"
	lastDrawKey     = "lotteryd:lastDraw"
)

type currentRoundStore struct {
	rdb          *redis.Client
	numOfRetries int
}

func NewCurrentRoundStore(rdb *redis.Client, numOfRetries int) ports.CurrentRoundStore {
	if numOfRetries <= 0 {
		numOfRetries = 1
	}
	return &currentRoundStore{rdb: rdb, numOfRetries: numOfRetries}
}

func (s *currentRoundStore) Upsert(fn func(r *domain.Round) *domain.Round) error {
	ctx := context.Background()
	var err error
	for attempt := 0; attempt < s.numOfRetries; attempt++ {
		err = s.rdb.Watch(ctx, func(tx *redis.Tx) error {
			current, err := getRound(ctx, tx)
			if err != nil {
				return err
			}

			updated := fn(current)

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				if updated == nil {
					pipe.Del(ctx, currentRoundKey)
					return nil
				}
				val, err := json.Marshal(newRoundDTO(updated))
				if err != nil {
					return err
				}
				pipe.Set(ctx, currentRoundKey, val, 0)
				return nil
			})
			return err
		}, currentRoundKey)
		if err == nil {
			return nil
		}
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return fmt.Errorf("failed to update current round after %d attempts: %w", s.numOfRetries, err)
}

func (s *currentRoundStore) Get() *domain.Round {
	round, err := getRound(context.Background(), s.rdb)
	if err != nil {
		log.WithError(err).Warn("failed to get current round from live store")
		return nil
	}
	return round
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func getRound(ctx context.Context, rdb getter) (*domain.Round, error) {
	buf, err := rdb.Get(ctx, currentRoundKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	var dto roundDTO
	if err := json.Unmarshal(buf, &dto); err != nil {
		return nil, fmt.Errorf("malformed current round: %w", err)
	}
	return dto.toDomain(), nil
}

type lastDrawStore struct {
	rdb *redis.Client
}

func NewLastDrawStore(rdb *redis.Client) ports.LastDrawStore {
	return &lastDrawStore{rdb}
}

func (s *lastDrawStore) Set(result domain.DrawResult) error {
	val, err := json.Marshal(result)
	if err != nil {
		return err
	}
	return s.rdb.Set(context.Background(), lastDrawKey, val, 0).Err()
}

func (s *lastDrawStore) Get() *domain.DrawResult {
	buf, err := s.rdb.Get(context.Background(), lastDrawKey).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.WithError(err).Warn("failed to get last draw from live store")
		}
		return nil
	}
	var result domain.DrawResult
	if err := json.Unmarshal(buf, &result); err != nil {
		log.WithError(err).Warn("malformed last draw in live store")
		return nil
	}
	return &result
}

// roundDTO drops the pending changes, events are persisted by the event store.
type roundDTO struct {
	Number            uint64
	Stage             int
	TicketPrice       uint64
	StartingTimestamp int64
	EndTime           int64
	EndingTimestamp   int64
	OpeningPot        uint64
	Pot               uint64
	TicketsCount      uint64
	Winner            string
	WinningTicket     uint64
	PrizeAmount       uint64
	CarriedPot        uint64
	RolledOver        bool
	SeedCommitment    string
	SeedSecret        string
	Seed              string
	Version           uint
}

func newRoundDTO(r *domain.Round) roundDTO {
	return roundDTO{
		Number:            r.Number,
		Stage:             int(r.Stage),
		TicketPrice:       r.TicketPrice,
		StartingTimestamp: r.StartingTimestamp,
		EndTime:           r.EndTime,
		EndingTimestamp:   r.EndingTimestamp,
		OpeningPot:        r.OpeningPot,
		Pot:               r.Pot,
		TicketsCount:      r.TicketsCount,
		Winner:            r.Winner,
		WinningTicket:     r.WinningTicket,
		PrizeAmount:       r.PrizeAmount,
		CarriedPot:        r.CarriedPot,
		RolledOver:        r.RolledOver,
		SeedCommitment:    r.SeedCommitment,
		SeedSecret:        r.SeedSecret,
		Seed:              r.Seed,
		Version:           r.Version,
	}
}

func (d roundDTO) toDomain() *domain.Round {
	return &domain.Round{
		Number:            d.Number,
		Stage:             domain.RoundStage(d.Stage),
		TicketPrice:       d.TicketPrice,
		StartingTimestamp: d.StartingTimestamp,
		EndTime:           d.EndTime,
		EndingTimestamp:   d.EndingTimestamp,
		OpeningPot:        d.OpeningPot,
		Pot:               d.Pot,
		TicketsCount:      d.TicketsCount,
		Winner:            d.Winner,
		WinningTicket:     d.WinningTicket,
		PrizeAmount:       d.PrizeAmount,
		CarriedPot:        d.CarriedPot,
		RolledOver:        d.RolledOver,
		SeedCommitment:    d.SeedCommitment,
		SeedSecret:        d.SeedSecret,
		Seed:              d.Seed,
		Version:           d.Version,
	}
}
