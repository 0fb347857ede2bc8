package handlers

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBroker(t *testing.T) {
	b := newBroker[string]()
	require.False(t, b.hasListeners())

	all := newListener[string]("all", nil)
	tickets := newListener[string]("tickets", []string{" Ticket_Purchased "})
	draws := newListener[string]("draws", []string{"lottery_drawn", "round_rolled_over"})
	b.pushListener(all)
	b.pushListener(tickets)
	b.pushListener(draws)
	require.True(t, b.hasListeners())

	delivered, dropped := b.publish("ticket 1", "ticket_purchased")
	require.Equal(t, 2, delivered)
	require.Zero(t, dropped)
	require.Equal(t, "ticket 1", <-all.ch)
	require.Equal(t, "ticket 1", <-tickets.ch)
	require.Empty(t, draws.ch)

	delivered, _ = b.publish("rollover", "round_rolled_over")
	require.Equal(t, 2, delivered)
	require.Equal(t, "rollover", <-all.ch)
	require.Equal(t, "rollover", <-draws.ch)
	require.Empty(t, tickets.ch)

	t.Run("full listener drops events", func(t *testing.T) {
		for i := 0; i < listenerBufferSize; i++ {
			delivered, dropped := b.publish("started", "round_started")
			require.Equal(t, 1, delivered)
			require.Zero(t, dropped)
		}
		delivered, dropped := b.publish("started", "round_started")
		require.Zero(t, delivered)
		require.Equal(t, 1, dropped)
		require.Len(t, all.ch, listenerBufferSize)
	})

	b.removeListener(all.id)
	b.removeListener(tickets.id)
	b.removeListener(tickets.id)
	delivered, _ = b.publish("ticket 2", "ticket_purchased")
	require.Zero(t, delivered)

	b.removeListener(draws.id)
	require.False(t, b.hasListeners())
}
