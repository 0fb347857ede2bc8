package sqlitedb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/arkade-os/lotteryd/internal/core/domain"
)

const selectRound = `SELECT number, stage, ticket_price, starting_timestamp, end_time,
ending_timestamp, opening_pot, pot, tickets_count, winner, winning_ticket, prize_amount,
carried_pot, rolled_over, seed_commitment, seed_secret, seed, version FROM round`

type roundRepository struct {
	db *sql.DB
}

func NewRoundRepository(config ...interface{}) (domain.RoundRepository, error) {
	db, err := parseDb(config, "round")
	if err != nil {
		return nil, err
	}
	return &roundRepository{db}, nil
}

func (r *roundRepository) Close() {
	_ = r.db.Close()
}

func (r *roundRepository) AddOrUpdateRound(ctx context.Context, round domain.Round) error {
	txBody := func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
INSERT INTO round (
	number, stage, ticket_price, starting_timestamp, end_time, ending_timestamp,
	opening_pot, pot, tickets_count, winner, winning_ticket, prize_amount,
	carried_pot, rolled_over, seed_commitment, seed_secret, seed, version
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(number) DO UPDATE SET
	stage = excluded.stage,
	starting_timestamp = excluded.starting_timestamp,
	end_time = excluded.end_time,
	ending_timestamp = excluded.ending_timestamp,
	opening_pot = excluded.opening_pot,
	pot = excluded.pot,
	tickets_count = excluded.tickets_count,
	winner = excluded.winner,
	winning_ticket = excluded.winning_ticket,
	prize_amount = excluded.prize_amount,
	carried_pot = excluded.carried_pot,
	rolled_over = excluded.rolled_over,
	seed_commitment = excluded.seed_commitment,
	seed_secret = excluded.seed_secret,
	seed = excluded.seed,
	version = excluded.version`,
			int64(round.Number), int(round.Stage), int64(round.TicketPrice),
			round.StartingTimestamp, round.EndTime, round.EndingTimestamp,
			int64(round.OpeningPot), int64(round.Pot), int64(round.TicketsCount),
			toNullString(round.Winner), int64(round.WinningTicket), int64(round.PrizeAmount),
			int64(round.CarriedPot), round.RolledOver,
			toNullString(round.SeedCommitment), toNullString(round.SeedSecret),
			toNullString(round.Seed), int64(round.Version),
		)
		if err != nil {
			return fmt.Errorf("failed to upsert round %d: %w", round.Number, err)
		}
		return nil
	}

	return execTx(ctx, r.db, txBody)
}

func (r *roundRepository) GetRound(ctx context.Context, number uint64) (*domain.Round, error) {
	row := r.db.QueryRowContext(ctx, selectRound+" WHERE number = ?", int64(number))
	round, err := scanRound(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: round %d", domain.ErrNotFound, number)
	}
	return round, err
}

func (r *roundRepository) GetLatestRound(ctx context.Context) (*domain.Round, error) {
	row := r.db.QueryRowContext(ctx, selectRound+" ORDER BY number DESC LIMIT 1")
	round, err := scanRound(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: no rounds", domain.ErrNotFound)
	}
	return round, err
}

func (r *roundRepository) GetRoundNumbers(
	ctx context.Context, startedAfter, startedBefore int64,
) ([]uint64, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if startedBefore > 0 {
		rows, err = r.db.QueryContext(ctx,
			"SELECT number FROM round WHERE starting_timestamp > ? AND starting_timestamp < ? ORDER BY number",
			startedAfter, startedBefore,
		)
	} else {
		rows, err = r.db.QueryContext(ctx,
			"SELECT number FROM round WHERE starting_timestamp > ? ORDER BY number",
			startedAfter,
		)
	}
	if err != nil {
		return nil, err
	}
	// nolint:errcheck
	defer rows.Close()

	numbers := make([]uint64, 0)
	for rows.Next() {
		var number int64
		if err := rows.Scan(&number); err != nil {
			return nil, err
		}
		numbers = append(numbers, uint64(number))
	}
	return numbers, rows.Err()
}

func (r *roundRepository) GetRoundStats(ctx context.Context) (*domain.RoundStats, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT COUNT(*), COALESCE(SUM(CASE WHEN rolled_over THEN 1 ELSE 0 END), 0),
	COALESCE(SUM(prize_amount), 0)
FROM round WHERE stage = ?`, int(domain.RoundSettledStage))

	var settled, rolledOver, paidOut int64
	if err := row.Scan(&settled, &rolledOver, &paidOut); err != nil {
		return nil, fmt.Errorf("failed to get round stats: %w", err)
	}
	return &domain.RoundStats{
		SettledRounds:    uint64(settled),
		RolledOverRounds: uint64(rolledOver),
		TotalPaidOut:     uint64(paidOut),
	}, nil
}

func scanRound(row *sql.Row) (*domain.Round, error) {
	var (
		number, ticketPrice, openingPot, pot, ticketsCount int64
		winningTicket, prizeAmount, carriedPot, version    int64
		startingTimestamp, endTime, endingTimestamp        int64
		stage                                              int
		rolledOver                                         bool
		winner, seedCommitment, seedSecret, seed           sql.NullString
	)
	if err := row.Scan(
		&number, &stage, &ticketPrice, &startingTimestamp, &endTime, &endingTimestamp,
		&openingPot, &pot, &ticketsCount, &winner, &winningTicket, &prizeAmount,
		&carriedPot, &rolledOver, &seedCommitment, &seedSecret, &seed, &version,
	); err != nil {
		return nil, err
	}

	return &domain.Round{
		Number:            uint64(number),
		Stage:             domain.RoundStage(stage),
		TicketPrice:       uint64(ticketPrice),
		StartingTimestamp: startingTimestamp,
		EndTime:           endTime,
		EndingTimestamp:   endingTimestamp,
		OpeningPot:        uint64(openingPot),
		Pot:               uint64(pot),
		TicketsCount:      uint64(ticketsCount),
		Winner:            winner.String,
		WinningTicket:     uint64(winningTicket),
		PrizeAmount:       uint64(prizeAmount),
		CarriedPot:        uint64(carriedPot),
		RolledOver:        rolledOver,
		SeedCommitment:    seedCommitment.String,
		SeedSecret:        seedSecret.String,
		Seed:              seed.String,
		Version:           uint(version),
	}, nil
}

func toNullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: len(s) > 0}
}
