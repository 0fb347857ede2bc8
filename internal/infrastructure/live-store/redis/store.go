package redislivestore

import (
	"github.com/arkade-os/lotteryd/internal/core/ports"
	"github.com/redis/go-redis/v9"
)

type redisLiveStore struct {
	currentRoundStore ports.CurrentRoundStore
	lastDrawStore     ports.LastDrawStore
}

func NewLiveStore(rdb *redis.Client, numOfRetries int) ports.LiveStore {
	return &redisLiveStore{
		currentRoundStore: NewCurrentRoundStore(rdb, numOfRetries),
		lastDrawStore:     NewLastDrawStore(rdb),
	}
}

func (s *redisLiveStore) CurrentRound() ports.CurrentRoundStore { return s.currentRoundStore }
func (s *redisLiveStore) LastDraw() ports.LastDrawStore         { return s.lastDrawStore }
