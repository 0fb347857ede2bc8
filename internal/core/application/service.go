package application

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/arkade-os/lotteryd/internal/core/domain"
	"github.com/arkade-os/lotteryd/internal/core/ports"
	"github.com/arkade-os/lotteryd/internal/metrics"
	"github.com/lightningnetwork/lnd/clock"
	log "github.com/sirupsen/logrus"
)

const defaultEventsBufferSize = 1024

type service struct {
	owner               string
	ticketPrice         uint64
	roundDuration       time.Duration
	baseURI             string
	ticketLedgerAddress string
	drawPolicy          DrawPolicy
	autoDraw            bool

	wallet      ports.WalletService
	repoManager ports.RepoManager
	liveStore   ports.LiveStore
	scheduler   ports.SchedulerService
	clock       clock.Clock

	// lock makes StartRound, BuyTicket and DrawLottery a single writer.
	// Readers take it in read mode so that the live store and the ledger are
	// observed at the same point.
	lock sync.RWMutex

	eventsCh chan []domain.Event

	stop func()
	ctx  context.Context
}

func NewService(
	wallet ports.WalletService, repoManager ports.RepoManager, liveStore ports.LiveStore,
	scheduler ports.SchedulerService, clk clock.Clock,
	owner string, ticketPrice uint64, roundDuration time.Duration,
	baseURI, ticketLedgerAddress string, drawPolicy DrawPolicy, autoDraw bool,
	eventsBufferSize int,
) (Service, error) {
	if len(owner) <= 0 {
		return nil, fmt.Errorf("missing owner")
	}
	if ticketPrice == 0 {
		return nil, fmt.Errorf("ticket price must be greater than zero")
	}
	if roundDuration < time.Second {
		return nil, fmt.Errorf("round duration must be at least 1 second")
	}
	if _, err := ParseDrawPolicy(string(drawPolicy)); err != nil {
		return nil, err
	}
	if autoDraw && scheduler == nil {
		return nil, fmt.Errorf("auto draw requires a scheduler")
	}
	if clk == nil {
		clk = clock.NewDefaultClock()
	}
	if eventsBufferSize <= 0 {
		eventsBufferSize = defaultEventsBufferSize
	}

	ctx, cancel := context.WithCancel(context.Background())

	svc := &service{
		owner:               owner,
		ticketPrice:         ticketPrice,
		roundDuration:       roundDuration,
		baseURI:             baseURI,
		ticketLedgerAddress: ticketLedgerAddress,
		drawPolicy:          drawPolicy,
		autoDraw:            autoDraw,
		wallet:              wallet,
		repoManager:         repoManager,
		liveStore:           liveStore,
		scheduler:           scheduler,
		clock:               clk,
		eventsCh:            make(chan []domain.Event, eventsBufferSize),
		stop:                cancel,
		ctx:                 ctx,
	}

	repoManager.Events().RegisterEventsHandler(
		domain.RoundTopic, func(events []domain.Event) {
			svc.propagateEvents(events)
		},
	)

	return svc, nil
}

func (s *service) Start() error {
	log.Debug("restoring current round...")
	if err := s.restoreCurrentRound(context.Background()); err != nil {
		return fmt.Errorf("failed to restore current round: %w", err)
	}

	if s.scheduler != nil {
		log.Debug("starting scheduler...")
		s.scheduler.Start()
	}

	round := s.liveStore.CurrentRound().Get()
	metrics.SetRound(round)
	if s.autoDraw && round.Stage == domain.RoundOpenStage {
		s.scheduleAutoDraw(round)
	}

	log.Debugf("app service started, current round %d", round.Number)
	return nil
}

func (s *service) Stop() {
	// Scheduled draws check the context under the lock, so once it's canceled
	// none of them can reach the stores closed below.
	s.stop()

	if s.scheduler != nil {
		s.scheduler.Stop()
		log.Debug("stopped scheduler")
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	s.wallet.Close()
	log.Debug("closed connection to wallet")
	s.repoManager.Close()
	log.Debug("closed connection to db")
	close(s.eventsCh)
}

func (s *service) StartRound(ctx context.Context, caller string) (*RoundInfo, error) {
	if caller != s.owner {
		return nil, domain.ErrUnauthorized
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	round, err := s.getCurrentRound()
	if err != nil {
		return nil, err
	}

	secret, err := domain.NewSeedSecret()
	if err != nil {
		return nil, err
	}

	events, err := round.Start(s.clock.Now(), s.roundDuration, secret)
	if err != nil {
		return nil, err
	}

	// The history keeps the secret so the round can be drawn after a restart.
	if err := s.repoManager.Rounds().AddOrUpdateRound(ctx, *round); err != nil {
		return nil, fmt.Errorf("failed to persist round: %w", err)
	}
	if err := s.upsertCurrentRound(round); err != nil {
		return nil, err
	}
	s.saveEvents(ctx, round.Number, events)
	metrics.SetRound(round)

	if s.autoDraw {
		s.scheduleAutoDraw(round)
	}

	log.Infof(
		"started round %d, ends at %s",
		round.Number, time.Unix(round.EndTime, 0).UTC().Format(time.RFC3339),
	)

	return &RoundInfo{
		Number:         round.Number,
		TicketPrice:    round.TicketPrice,
		StartTime:      round.StartingTimestamp,
		EndTime:        round.EndTime,
		Pot:            round.Pot,
		SeedCommitment: round.SeedCommitment,
	}, nil
}

func (s *service) BuyTicket(
	ctx context.Context, buyer string, amount uint64,
) (ticketInfo *TicketInfo, err error) {
	defer func() {
		metrics.RecordTicketPurchase(err)
	}()

	if len(buyer) <= 0 {
		return nil, fmt.Errorf("missing buyer")
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	round, err := s.getCurrentRound()
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()

	if err := round.ValidatePurchase(amount, now); err != nil {
		return nil, err
	}

	id, err := s.repoManager.Tickets().NextTicketId(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get next ticket id: %w", err)
	}
	ticket := domain.Ticket{
		Id:       id,
		Owner:    buyer,
		Round:    round.Number,
		MintedAt: now.Unix(),
	}

	prevRound := round.Snapshot()
	events, err := round.AddTicket(ticket, amount, now)
	if err != nil {
		return nil, err
	}

	reference := ticketReference(id)
	if err := s.wallet.Deposit(ctx, reference, buyer, amount); err != nil {
		return nil, fmt.Errorf("failed to collect ticket payment: %w", err)
	}

	// The round is committed before the ticket: if minting fails the previous
	// snapshot is restored and the payment refunded.
	if err := s.upsertCurrentRound(round); err != nil {
		s.refund(ctx, reference, buyer, amount)
		return nil, err
	}
	if err := s.repoManager.Tickets().AddTicket(ctx, ticket); err != nil {
		if err := s.upsertCurrentRound(prevRound); err != nil {
			log.WithError(err).Errorf("failed to restore round %d", prevRound.Number)
		}
		s.refund(ctx, reference, buyer, amount)
		return nil, fmt.Errorf("failed to mint ticket: %w", err)
	}

	s.saveEvents(ctx, round.Number, events)
	metrics.SetRound(round)

	log.Debugf("minted ticket %d for %s in round %d", ticket.Id, buyer, round.Number)

	return s.newTicketInfo(ticket), nil
}

func (s *service) DrawLottery(
	ctx context.Context, caller string,
) (result *domain.DrawResult, err error) {
	started := time.Now()
	outcome := ""
	defer func() {
		metrics.RecordDraw(err, outcome, started)
	}()

	if s.drawPolicy == DrawPolicyOwner && caller != s.owner {
		return nil, domain.ErrUnauthorized
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	result, outcome, err = s.draw(ctx)
	return result, err
}

// draw settles the current round, the caller must hold the lock.
func (s *service) draw(
	ctx context.Context,
) (result *domain.DrawResult, outcome string, err error) {
	round, err := s.getCurrentRound()
	if err != nil {
		return nil, "", err
	}
	now := s.clock.Now()

	if err := round.ValidateDraw(now); err != nil {
		return nil, "", err
	}

	tickets, err := s.repoManager.Tickets().GetTicketsOfRound(ctx, round.Number)
	if err != nil {
		return nil, "", fmt.Errorf("failed to get tickets of round %d: %w", round.Number, err)
	}
	if uint64(len(tickets)) != round.TicketsCount {
		return nil, "", fmt.Errorf(
			"%w: round %d counts %d tickets, ledger has %d",
			domain.ErrLedgerMismatch, round.Number, round.TicketsCount, len(tickets),
		)
	}

	if len(tickets) <= 0 {
		events, err := round.RollOver(now)
		if err != nil {
			return nil, "", err
		}
		result = &domain.DrawResult{
			Round:     round.Number,
			Timestamp: now.Unix(),
		}
		if err := s.commitSettlement(ctx, round, events, *result); err != nil {
			return nil, "", err
		}
		log.Infof("round %d ended without tickets, rolled over", round.Number)
		return result, "rollover", nil
	}

	ticketIds := make([]uint64, 0, len(tickets))
	owners := make(map[uint64]string, len(tickets))
	for _, ticket := range tickets {
		ticketIds = append(ticketIds, ticket.Id)
		owners[ticket.Id] = ticket.Owner
	}

	seed, err := domain.DrawSeed(round.SeedSecret, round.Number, round.EndTime, ticketIds)
	if err != nil {
		return nil, "", err
	}
	winningTicket, err := domain.SelectWinner(seed, ticketIds)
	if err != nil {
		return nil, "", err
	}
	winner := owners[winningTicket]
	prize := round.Pot

	// Pay first: a failed transfer leaves the round open and drawable again.
	if err := s.wallet.Transfer(ctx, payoutReference(round.Number), winner, prize); err != nil {
		log.WithError(err).Warnf("failed to pay out round %d to %s", round.Number, winner)
		return nil, "", fmt.Errorf("%w: %s", domain.ErrPayoutFailed, err)
	}
	metrics.RecordPayout(prize)

	events, err := round.Settle(winner, winningTicket, domain.SeedString(seed), now)
	if err != nil {
		return nil, "", err
	}
	result = &domain.DrawResult{
		Round:     round.Number,
		Winner:    winner,
		TicketId:  winningTicket,
		Amount:    prize,
		Seed:      round.Seed,
		Timestamp: now.Unix(),
	}
	if err := s.commitSettlement(ctx, round, events, *result); err != nil {
		return nil, "", err
	}
	log.Infof(
		"round %d drawn: ticket %d of %s wins %d", round.Number, winningTicket, winner, prize,
	)
	return result, "winner", nil
}

func (s *service) GetLotteryInfo(ctx context.Context) (*LotteryInfo, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	round, err := s.getCurrentRound()
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()

	info := &LotteryInfo{
		TicketLedgerAddress: s.ticketLedgerAddress,
		Owner:               s.owner,
		TicketPrice:         round.TicketPrice,
		RoundDuration:       int64(s.roundDuration.Seconds()),
		DrawPolicy:          s.drawPolicy,
		CurrentRound:        round.Number,
		Stage:               round.StageAt(now),
		RoundStartTime:      round.StartingTimestamp,
		RoundEndTime:        round.EndTime,
		RemainingTime:       int64(round.RemainingTime(now).Seconds()),
		IsActive:            round.Stage == domain.RoundOpenStage,
		CurrentPot:          round.Pot,
		TicketsCount:        round.TicketsCount,
		SeedCommitment:      round.SeedCommitment,
	}
	if last := s.liveStore.LastDraw().Get(); last != nil {
		info.LastWinner = last.Winner
		info.LastWinAmount = last.Amount
		info.LastDrawRound = last.Round
	}
	return info, nil
}

func (s *service) GetTicket(ctx context.Context, id uint64) (*TicketInfo, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	ticket, err := s.repoManager.Tickets().GetTicket(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.newTicketInfo(*ticket), nil
}

func (s *service) GetAccountTickets(ctx context.Context, owner string) (*AccountTickets, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	tickets, err := s.repoManager.Tickets().GetTicketsOfOwner(ctx, owner)
	if err != nil {
		return nil, err
	}

	infos := make([]TicketInfo, 0, len(tickets))
	for _, ticket := range tickets {
		infos = append(infos, *s.newTicketInfo(ticket))
	}
	return &AccountTickets{
		Owner:   owner,
		Balance: uint64(len(tickets)),
		Tickets: infos,
	}, nil
}

func (s *service) GetTicketOfOwnerByIndex(
	ctx context.Context, owner string, index uint64,
) (*TicketInfo, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	ticket, err := s.repoManager.Tickets().GetTicketOfOwnerByIndex(ctx, owner, index)
	if err != nil {
		return nil, err
	}
	return s.newTicketInfo(*ticket), nil
}

func (s *service) GetEventsChannel(ctx context.Context) <-chan []domain.Event {
	return s.eventsCh
}

// restoreCurrentRound makes sure the live store holds a current round. With an
// empty live store the round is rebuilt from the history and the ledger.
func (s *service) restoreCurrentRound(ctx context.Context) error {
	if round := s.liveStore.CurrentRound().Get(); round != nil {
		return nil
	}

	latest, err := s.repoManager.Rounds().GetLatestRound(ctx)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			return err
		}
		latest = nil
	}

	var current *domain.Round
	var lastSettled *domain.Round
	switch {
	case latest == nil:
		current = domain.NewRound(1, s.ticketPrice, 0)
	case latest.IsSettled():
		current = domain.NewRound(latest.Number+1, s.ticketPrice, latest.CarriedPot)
		lastSettled = latest
	default:
		tickets, err := s.repoManager.Tickets().GetTicketsOfRound(ctx, latest.Number)
		if err != nil {
			return err
		}
		current = latest
		current.TicketsCount = uint64(len(tickets))
		current.Pot = current.OpeningPot + current.TicketsCount*current.TicketPrice
		if latest.Number > 1 {
			prev, err := s.repoManager.Rounds().GetRound(ctx, latest.Number-1)
			if err != nil && !errors.Is(err, domain.ErrNotFound) {
				return err
			}
			lastSettled = prev
		}
	}

	if lastSettled != nil && s.liveStore.LastDraw().Get() == nil {
		if err := s.liveStore.LastDraw().Set(domain.DrawResult{
			Round:     lastSettled.Number,
			Winner:    lastSettled.Winner,
			TicketId:  lastSettled.WinningTicket,
			Amount:    lastSettled.PrizeAmount,
			Seed:      lastSettled.Seed,
			Timestamp: lastSettled.EndingTimestamp,
		}); err != nil {
			return err
		}
	}

	log.Infof("restored round %d in stage %s", current.Number, current.Stage)
	return s.upsertCurrentRound(current)
}

func (s *service) commitSettlement(
	ctx context.Context, round *domain.Round, events []domain.Event, result domain.DrawResult,
) error {
	if err := s.repoManager.Rounds().AddOrUpdateRound(ctx, *round); err != nil {
		return fmt.Errorf("failed to persist settled round: %w", err)
	}
	next := domain.NewRound(round.Number+1, s.ticketPrice, round.CarriedPot)
	if err := s.upsertCurrentRound(next); err != nil {
		return err
	}
	if err := s.liveStore.LastDraw().Set(result); err != nil {
		log.WithError(err).Warn("failed to update last draw")
	}

	s.saveEvents(ctx, round.Number, events)
	metrics.SetRound(next)
	return nil
}

func (s *service) scheduleAutoDraw(round *domain.Round) {
	number := round.Number
	at := time.Unix(round.EndTime, 0)
	if err := s.scheduler.ScheduleTaskOnce(at, func() {
		s.lock.Lock()
		defer s.lock.Unlock()

		if s.ctx.Err() != nil {
			return
		}
		// The round may have been drawn by hand in the meantime.
		if current := s.liveStore.CurrentRound().Get(); current == nil ||
			current.Number != number {
			return
		}

		started := time.Now()
		result, outcome, err := s.draw(s.ctx)
		metrics.RecordDraw(err, outcome, started)
		if err != nil {
			log.WithError(err).Warnf("automatic draw of round %d failed", number)
			return
		}
		log.Debugf("automatic draw of round %d done, winner %q", result.Round, result.Winner)
	}); err != nil {
		log.WithError(err).Warnf("failed to schedule automatic draw of round %d", number)
	}
}

func (s *service) getCurrentRound() (*domain.Round, error) {
	round := s.liveStore.CurrentRound().Get()
	if round == nil {
		return nil, fmt.Errorf("current round not found, service not started")
	}
	return round, nil
}

func (s *service) upsertCurrentRound(round *domain.Round) error {
	if err := s.liveStore.CurrentRound().Upsert(func(_ *domain.Round) *domain.Round {
		return round
	}); err != nil {
		return fmt.Errorf("failed to update current round: %w", err)
	}
	return nil
}

func (s *service) saveEvents(ctx context.Context, round uint64, events []domain.Event) {
	if err := s.repoManager.Events().Save(
		ctx, domain.RoundTopic, strconv.FormatUint(round, 10), events,
	); err != nil {
		// The state is already committed, subscribers still get the events.
		log.WithError(err).Errorf("failed to save events of round %d, forwarding them", round)
		s.propagateEvents(events)
	}
}

func (s *service) propagateEvents(events []domain.Event) {
	if s.ctx.Err() != nil {
		return
	}
	select {
	case s.eventsCh <- events:
	case <-s.ctx.Done():
	}
}

func (s *service) refund(ctx context.Context, reference, to string, amount uint64) {
	if err := s.wallet.Transfer(ctx, reference+"-refund", to, amount); err != nil {
		log.WithError(err).Errorf("failed to refund %d to %s (%s)", amount, to, reference)
	}
}

func (s *service) newTicketInfo(ticket domain.Ticket) *TicketInfo {
	return &TicketInfo{
		Id:       ticket.Id,
		Owner:    ticket.Owner,
		Round:    ticket.Round,
		MintedAt: ticket.MintedAt,
		URI:      ticket.URI(s.baseURI),
	}
}

func ticketReference(id uint64) string {
	return fmt.Sprintf("ticket-%d", id)
}

func payoutReference(round uint64) string {
	return fmt.Sprintf("round-%d-payout", round)
}
