package domain_test

import (
	"strings"
	"testing"

	"github.com/arkade-os/lotteryd/internal/core/domain"
	"github.com/stretchr/testify/require"
)

func TestDraw(t *testing.T) {
	tickets := []uint64{3, 4, 5, 9, 10}

	t.Run("seed_is_deterministic", func(t *testing.T) {
		seed, err := domain.DrawSeed(secret, 1, endTime.Unix(), tickets)
		require.NoError(t, err)
		again, err := domain.DrawSeed(secret, 1, endTime.Unix(), tickets)
		require.NoError(t, err)
		require.Equal(t, seed, again)

		winner, err := domain.SelectWinner(seed, tickets)
		require.NoError(t, err)
		sameWinner, err := domain.SelectWinner(again, tickets)
		require.NoError(t, err)
		require.Equal(t, winner, sameWinner)
		require.Contains(t, tickets, winner)
	})

	t.Run("seed_binds_inputs", func(t *testing.T) {
		seed, err := domain.DrawSeed(secret, 1, endTime.Unix(), tickets)
		require.NoError(t, err)

		fixtures := []struct {
			name    string
			secret  string
			round   uint64
			endTime int64
			tickets []uint64
		}{
			{"secret", strings.Repeat("cd", domain.SeedSecretSize), 1, endTime.Unix(), tickets},
			{"round", secret, 2, endTime.Unix(), tickets},
			{"end_time", secret, 1, endTime.Unix() + 1, tickets},
			{"tickets", secret, 1, endTime.Unix(), tickets[:4]},
		}
		for _, f := range fixtures {
			t.Run(f.name, func(t *testing.T) {
				other, err := domain.DrawSeed(f.secret, f.round, f.endTime, f.tickets)
				require.NoError(t, err)
				require.NotEqual(t, seed, other)
			})
		}
	})

	t.Run("winner_in_range", func(t *testing.T) {
		for n := 1; n <= 50; n++ {
			ids := make([]uint64, 0, n)
			for i := 0; i < n; i++ {
				ids = append(ids, uint64(100+i))
			}
			seed, err := domain.DrawSeed(secret, uint64(n), endTime.Unix(), ids)
			require.NoError(t, err)
			winner, err := domain.SelectWinner(seed, ids)
			require.NoError(t, err)
			require.GreaterOrEqual(t, winner, uint64(100))
			require.Less(t, winner, uint64(100+n))
		}
	})

	t.Run("single_ticket", func(t *testing.T) {
		seed, err := domain.DrawSeed(secret, 1, endTime.Unix(), []uint64{42})
		require.NoError(t, err)
		winner, err := domain.SelectWinner(seed, []uint64{42})
		require.NoError(t, err)
		require.Equal(t, uint64(42), winner)
	})

	t.Run("no_tickets", func(t *testing.T) {
		seed, err := domain.DrawSeed(secret, 1, endTime.Unix(), nil)
		require.NoError(t, err)
		winner, err := domain.SelectWinner(seed, nil)
		require.ErrorIs(t, err, domain.ErrNoTickets)
		require.Zero(t, winner)
	})

	t.Run("commitment", func(t *testing.T) {
		s, err := domain.NewSeedSecret()
		require.NoError(t, err)
		require.Len(t, s, 2*domain.SeedSecretSize)

		commitment, err := domain.SeedCommitment(s)
		require.NoError(t, err)
		require.Len(t, commitment, 64)

		_, err = domain.SeedCommitment("not hex")
		require.Error(t, err)
	})
}
