package ports

import "github.com/arkade-os/lotteryd/internal/core/domain"

type RepoManager interface {
	Events() domain.EventRepository
	Rounds() domain.RoundRepository
	Tickets() domain.TicketRepository
	Close()
}
