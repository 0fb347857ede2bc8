package livestore_test

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/arkade-os/lotteryd/internal/core/domain"
	"github.com/arkade-os/lotteryd/internal/core/ports"
	inmemory "github.com/arkade-os/lotteryd/internal/infrastructure/live-store/inmemory"
	redislivestore "github.com/arkade-os/lotteryd/internal/infrastructure/live-store/redis"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

var (
	now    = time.Unix(1_700_000_000, 0)
	secret = strings.Repeat("01", domain.SeedSecretSize)
)

func TestLiveStoreImplementations(t *testing.T) {
	stores := []struct {
		name  string
		store func(t *testing.T) ports.LiveStore
	}{
		{
			name: "inmemory",
			store: func(t *testing.T) ports.LiveStore {
				return inmemory.NewLiveStore()
			},
		},
		{
			name: "redis",
			store: func(t *testing.T) ports.LiveStore {
				redisUrl := os.Getenv("REDIS_URL")
				if redisUrl == "" {
					t.Skip("REDIS_URL not set")
				}
				redisOpts, err := redis.ParseURL(redisUrl)
				require.NoError(t, err)
				rdb := redis.NewClient(redisOpts)
				require.NoError(t, rdb.FlushDB(t.Context()).Err())
				t.Cleanup(func() { _ = rdb.Close() })
				return redislivestore.NewLiveStore(rdb, 5)
			},
		},
	}

	for _, tt := range stores {
		t.Run(tt.name, func(t *testing.T) {
			runLiveStoreTests(t, tt.store(t))
		})
	}
}

func runLiveStoreTests(t *testing.T, store ports.LiveStore) {
	t.Run("CurrentRoundStore", func(t *testing.T) {
		require.Nil(t, store.CurrentRound().Get())

		err := store.CurrentRound().Upsert(func(r *domain.Round) *domain.Round {
			require.Nil(t, r)
			return domain.NewRound(1, 100, 0)
		})
		require.NoError(t, err)

		round := store.CurrentRound().Get()
		require.NotNil(t, round)
		require.Equal(t, uint64(1), round.Number)
		require.Equal(t, domain.RoundIdleStage, round.Stage)

		_, err = round.Start(now, time.Hour, secret)
		require.NoError(t, err)
		_, err = round.AddTicket(domain.Ticket{Id: 1, Owner: "alice", Round: 1}, 100, now)
		require.NoError(t, err)

		// Mutating a snapshot must not leak into the store.
		require.Equal(t, domain.RoundIdleStage, store.CurrentRound().Get().Stage)

		err = store.CurrentRound().Upsert(func(_ *domain.Round) *domain.Round {
			return round
		})
		require.NoError(t, err)

		got := store.CurrentRound().Get()
		require.NotNil(t, got)
		require.Equal(t, domain.RoundOpenStage, got.Stage)
		require.Equal(t, uint64(100), got.Pot)
		require.Equal(t, uint64(1), got.TicketsCount)
		require.Equal(t, round.EndTime, got.EndTime)
		require.Equal(t, round.SeedCommitment, got.SeedCommitment)
		require.Equal(t, secret, got.SeedSecret)
		require.Empty(t, got.Changes)

		err = store.CurrentRound().Upsert(func(r *domain.Round) *domain.Round {
			require.Equal(t, uint64(100), r.Pot)
			return nil
		})
		require.NoError(t, err)
		require.Nil(t, store.CurrentRound().Get())
	})

	t.Run("LastDrawStore", func(t *testing.T) {
		require.Nil(t, store.LastDraw().Get())

		result := domain.DrawResult{
			Round:     1,
			Winner:    "alice",
			TicketId:  1,
			Amount:    100,
			Seed:      "seed",
			Timestamp: now.Unix(),
		}
		require.NoError(t, store.LastDraw().Set(result))
		got := store.LastDraw().Get()
		require.NotNil(t, got)
		require.Equal(t, result, *got)

		rolledOver := domain.DrawResult{Round: 2, Timestamp: now.Unix()}
		require.NoError(t, store.LastDraw().Set(rolledOver))
		got = store.LastDraw().Get()
		require.NotNil(t, got)
		require.Equal(t, rolledOver, *got)
	})
}
