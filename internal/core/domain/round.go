package domain

import (
	"fmt"
	"time"
)

const (
	RoundIdleStage RoundStage = iota
	RoundOpenStage
	// RoundClosedStage is never stored, see Round.StageAt.
	RoundClosedStage
	RoundSettledStage
)

type RoundStage int

func (s RoundStage) String() string {
	switch s {
	case RoundOpenStage:
		return "OPEN"
	case RoundClosedStage:
		return "CLOSED"
	case RoundSettledStage:
		return "SETTLED"
	default:
		return "IDLE"
	}
}

type Round struct {
	Number            uint64
	Stage             RoundStage
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
	// SeedSecret is private to the operator until the round is settled.
	SeedSecret string
	Seed       string
	Version    uint
	Changes    []Event
}

// NewRound returns an idle round. The pot is whatever the previous round left
// behind, if anything.
func NewRound(number, ticketPrice, pot uint64) *Round {
	return &Round{
		Number:      number,
		TicketPrice: ticketPrice,
		OpeningPot:  pot,
		Pot:         pot,
		Changes:     make([]Event, 0),
	}
}

func NewRoundFromEvents(events []Event) *Round {
	r := &Round{}

	for _, event := range events {
		r.on(event, true)
	}

	r.Changes = append([]Event{}, events...)

	return r
}

func (r *Round) Events() []Event {
	return r.Changes
}

func (r *Round) Start(now time.Time, duration time.Duration, secret string) ([]Event, error) {
	switch r.Stage {
	case RoundOpenStage:
		return nil, ErrRoundAlreadyOpen
	case RoundSettledStage:
		return nil, fmt.Errorf("round %d is already settled", r.Number)
	}
	if duration < time.Second {
		return nil, fmt.Errorf("round duration must be at least 1 second, got %s", duration)
	}
	commitment, err := SeedCommitment(secret)
	if err != nil {
		return nil, err
	}

	event := RoundStarted{
		RoundEvent: RoundEvent{
			Round: r.Number,
			Type:  EventTypeRoundStarted,
		},
		TicketPrice:    r.TicketPrice,
		Pot:            r.Pot,
		SeedCommitment: commitment,
		Timestamp:      now.Unix(),
		EndTime:        now.Add(duration).Unix(),
	}
	r.SeedSecret = secret
	r.raise(event)

	return []Event{event}, nil
}

// ValidatePurchase checks that a ticket can be bought for the given amount at
// the given time without changing the round.
func (r *Round) ValidatePurchase(paid uint64, now time.Time) error {
	if r.Stage != RoundOpenStage {
		return ErrRoundNotOpen
	}
	if r.IsExpired(now) {
		return ErrRoundExpired
	}
	if paid != r.TicketPrice {
		return fmt.Errorf("%w: expected %d, got %d", ErrIncorrectPrice, r.TicketPrice, paid)
	}
	if r.Pot+paid < r.Pot {
		return ErrAmountOverflow
	}
	return nil
}

func (r *Round) AddTicket(ticket Ticket, paid uint64, now time.Time) ([]Event, error) {
	if err := r.ValidatePurchase(paid, now); err != nil {
		return nil, err
	}
	if ticket.Round != r.Number {
		return nil, fmt.Errorf(
			"%w: ticket %d is tagged with round %d, current round is %d",
			ErrLedgerMismatch, ticket.Id, ticket.Round, r.Number,
		)
	}
	if len(ticket.Owner) <= 0 {
		return nil, fmt.Errorf("missing ticket owner")
	}

	event := TicketPurchased{
		RoundEvent: RoundEvent{
			Round: r.Number,
			Type:  EventTypeTicketPurchased,
		},
		Buyer:     ticket.Owner,
		TicketId:  ticket.Id,
		Amount:    paid,
		Timestamp: now.Unix(),
	}
	r.raise(event)

	return []Event{event}, nil
}

func (r *Round) Settle(
	winner string, ticketId uint64, seed string, now time.Time,
) ([]Event, error) {
	if err := r.ValidateDraw(now); err != nil {
		return nil, err
	}
	if r.TicketsCount <= 0 {
		return nil, ErrNoTickets
	}
	if len(winner) <= 0 {
		return nil, fmt.Errorf("missing winner")
	}
	if len(seed) <= 0 {
		return nil, fmt.Errorf("missing draw seed")
	}

	event := LotteryDrawn{
		RoundEvent: RoundEvent{
			Round: r.Number,
			Type:  EventTypeLotteryDrawn,
		},
		Winner:     winner,
		TicketId:   ticketId,
		Amount:     r.Pot,
		Seed:       seed,
		SeedSecret: r.SeedSecret,
		Timestamp:  now.Unix(),
	}
	r.raise(event)

	return []Event{event}, nil
}

// RollOver settles an expired round that sold no tickets. There is no winner and
// the pot moves to the next round.
func (r *Round) RollOver(now time.Time) ([]Event, error) {
	if err := r.ValidateDraw(now); err != nil {
		return nil, err
	}
	if r.TicketsCount > 0 {
		return nil, fmt.Errorf("round %d has %d tickets, it must be drawn", r.Number, r.TicketsCount)
	}

	event := RoundRolledOver{
		RoundEvent: RoundEvent{
			Round: r.Number,
			Type:  EventTypeRoundRolledOver,
		},
		CarriedPot: r.Pot,
		SeedSecret: r.SeedSecret,
		Timestamp:  now.Unix(),
	}
	r.raise(event)

	return []Event{event}, nil
}

// Next returns the idle round that follows a settled one.
func (r *Round) Next() (*Round, error) {
	if r.Stage != RoundSettledStage {
		return nil, fmt.Errorf("round %d is not settled", r.Number)
	}
	return NewRound(r.Number+1, r.TicketPrice, r.CarriedPot), nil
}

// StageAt derives the closed stage from the clock instead of storing it.
func (r *Round) StageAt(now time.Time) RoundStage {
	if r.Stage == RoundOpenStage && r.IsExpired(now) {
		return RoundClosedStage
	}
	return r.Stage
}

func (r *Round) IsOpen(now time.Time) bool {
	return r.StageAt(now) == RoundOpenStage
}

func (r *Round) IsStarted() bool {
	return r.Stage != RoundIdleStage
}

func (r *Round) IsSettled() bool {
	return r.Stage == RoundSettledStage
}

func (r *Round) IsExpired(now time.Time) bool {
	return r.Stage != RoundIdleStage && now.Unix() >= r.EndTime
}

func (r *Round) RemainingTime(now time.Time) time.Duration {
	if r.Stage != RoundOpenStage || r.IsExpired(now) {
		return 0
	}
	return time.Duration(r.EndTime-now.Unix()) * time.Second
}

// Snapshot returns a copy of the round without the pending changes, safe to
// hand out to readers.
func (r *Round) Snapshot() *Round {
	cp := *r
	cp.Changes = nil
	return &cp
}

// Public returns a snapshot that does not leak the seed secret of a round that
// is not settled yet.
func (r *Round) Public() *Round {
	cp := r.Snapshot()
	if !cp.IsSettled() {
		cp.SeedSecret = ""
	}
	return cp
}

// ValidateDraw checks that the round can be settled at the given time.
func (r *Round) ValidateDraw(now time.Time) error {
	if r.Stage != RoundOpenStage {
		return ErrRoundNotOpen
	}
	if !r.IsExpired(now) {
		return ErrRoundStillOpen
	}
	return nil
}

func (r *Round) on(event Event, replayed bool) {
	switch e := event.(type) {
	case RoundStarted:
		r.Number = e.Round
		r.Stage = RoundOpenStage
		r.TicketPrice = e.TicketPrice
		r.OpeningPot = e.Pot
		r.Pot = e.Pot
		r.SeedCommitment = e.SeedCommitment
		r.StartingTimestamp = e.Timestamp
		r.EndTime = e.EndTime
	case TicketPurchased:
		r.TicketsCount++
		r.Pot += e.Amount
	case LotteryDrawn:
		r.Stage = RoundSettledStage
		r.Winner = e.Winner
		r.WinningTicket = e.TicketId
		r.PrizeAmount = e.Amount
		r.Pot = 0
		r.Seed = e.Seed
		r.SeedSecret = e.SeedSecret
		r.EndingTimestamp = e.Timestamp
	case RoundRolledOver:
		r.Stage = RoundSettledStage
		r.RolledOver = true
		r.CarriedPot = e.CarriedPot
		r.Pot = 0
		r.SeedSecret = e.SeedSecret
		r.EndingTimestamp = e.Timestamp
	default:
		return
	}

	if replayed {
		r.Version++
	}
}

func (r *Round) raise(event Event) {
	if r.Changes == nil {
		r.Changes = make([]Event, 0)
	}
	r.Changes = append(r.Changes, event)
	r.on(event, false)
}
