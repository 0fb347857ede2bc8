package ports

import "github.com/arkade-os/lotteryd/internal/core/domain"

type LiveStore interface {
	CurrentRound() CurrentRoundStore
	LastDraw() LastDrawStore
}

type CurrentRoundStore interface {
	Upsert(fn func(r *domain.Round) *domain.Round) error
	Get() *domain.Round
}

// LastDrawStore keeps the outcome of the latest settlement. It is overwritten by
// every settlement and never cleared otherwise.
type LastDrawStore interface {
	Set(result domain.DrawResult) error
	Get() *domain.DrawResult
}
