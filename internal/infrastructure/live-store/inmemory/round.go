package inmemorylivestore

import (
	"sync"

	"github.com/arkade-os/lotteryd/internal/core/domain"
	"github.com/arkade-os/lotteryd/internal/core/ports"
)

type currentRoundStore struct {
	lock  sync.RWMutex
	round *domain.Round
}

func NewCurrentRoundStore() ports.CurrentRoundStore {
	return &currentRoundStore{}
}

func (s *currentRoundStore) Upsert(fn func(r *domain.Round) *domain.Round) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	var current *domain.Round
	if s.round != nil {
		current = s.round.Snapshot()
	}
	updated := fn(current)
	if updated == nil {
		s.round = nil
		return nil
	}
	s.round = updated.Snapshot()
	return nil
}

func (s *currentRoundStore) Get() *domain.Round {
	s.lock.RLock()
	defer s.lock.RUnlock()

	if s.round == nil {
		return nil
	}
	return s.round.Snapshot()
}

type lastDrawStore struct {
	lock   sync.RWMutex
	result *domain.DrawResult
}

func NewLastDrawStore() ports.LastDrawStore {
	return &lastDrawStore{}
}

func (s *lastDrawStore) Set(result domain.DrawResult) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.result = &result
	return nil
}

func (s *lastDrawStore) Get() *domain.DrawResult {
	s.lock.RLock()
	defer s.lock.RUnlock()
	if s.result == nil {
		return nil
	}
	result := *s.result
	return &result
}
