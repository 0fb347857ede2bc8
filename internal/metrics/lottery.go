package metrics

import (
	"errors"
	"time"

	"github.com/arkade-os/lotteryd/internal/core/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ticketPurchasesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lotteryd",
			Name:      "ticket_purchases_total",
			Help:      "Total ticket purchase attempts by result",
		},
		[]string{"result"},
	)

	drawsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lotteryd",
			Name:      "draws_total",
			Help:      "Total draw attempts by result and outcome",
		},
		[]string{"result", "outcome"},
	)

	drawDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "lotteryd",
			Name:      "draw_duration_ms",
			Help:      "Draw processing duration in milliseconds",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		},
		[]string{"result"},
	)

	currentRound = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "lotteryd",
		Name:      "current_round",
		Help:      "Number of the current round",
	})

	currentPot = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "lotteryd",
		Name:      "current_pot",
		Help:      "Pot of the current round in base units",
	})

	paidOutTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "lotteryd",
		Name:      "paid_out_total",
		Help:      "Total amount paid to winners in base units",
	})
)

// RecordTicketPurchase counts a purchase attempt, labelled by the error kind
// when it failed.
func RecordTicketPurchase(err error) {
	ticketPurchasesTotal.WithLabelValues(errorLabel(err)).Inc()
}

// RecordDraw outcome: "winner" | "rollover" | "none".
func RecordDraw(err error, outcome string, started time.Time) {
	res := errorLabel(err)
	if err != nil || outcome == "" {
		outcome = "none"
	}
	drawsTotal.WithLabelValues(res, outcome).Inc()
	drawDuration.WithLabelValues(res).Observe(float64(time.Since(started).Milliseconds()))
}

func RecordPayout(amount uint64) {
	paidOutTotal.Add(float64(amount))
}

func SetRound(round *domain.Round) {
	if round == nil {
		return
	}
	currentRound.Set(float64(round.Number))
	currentPot.Set(float64(round.Pot))
}

func errorLabel(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, domain.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, domain.ErrRoundNotOpen):
		return "round_not_open"
	case errors.Is(err, domain.ErrRoundExpired):
		return "round_expired"
	case errors.Is(err, domain.ErrRoundStillOpen):
		return "round_still_open"
	case errors.Is(err, domain.ErrIncorrectPrice):
		return "incorrect_price"
	case errors.Is(err, domain.ErrPayoutFailed):
		return "payout_failed"
	default:
		return "fail"
	}
}
