package inmemorylivestore

import (
	"github.com/arkade-os/lotteryd/internal/core/ports"
)

type inMemoryLiveStore struct {
	currentRoundStore ports.CurrentRoundStore
	lastDrawStore     ports.LastDrawStore
}

func NewLiveStore() ports.LiveStore {
	return &inMemoryLiveStore{
		currentRoundStore: NewCurrentRoundStore(),
		lastDrawStore:     NewLastDrawStore(),
	}
}

func (s *inMemoryLiveStore) CurrentRound() ports.CurrentRoundStore {
	return s.currentRoundStore
}
func (s *inMemoryLiveStore) LastDraw() ports.LastDrawStore {
	return s.lastDrawStore
}
