package db

import (
	"fmt"
	"path/filepath"

	"github.com/arkade-os/lotteryd/internal/core/domain"
	"github.com/arkade-os/lotteryd/internal/core/ports"
	badgerdb "github.com/arkade-os/lotteryd/internal/infrastructure/db/badger"
	sqlitedb "github.com/arkade-os/lotteryd/internal/infrastructure/db/sqlite"
)

const sqliteDbFile = "sqlite.db"

var (
	eventStoreTypes = map[string]func(...interface{}) (domain.EventRepository, error){
		"badger": badgerdb.NewEventRepository,
	}
	roundStoreTypes = map[string]func(...interface{}) (domain.RoundRepository, error){
		"badger": badgerdb.NewRoundRepository,
		"sqlite": sqlitedb.NewRoundRepository,
	}
	ticketStoreTypes = map[string]func(...interface{}) (domain.TicketRepository, error){
		"badger": badgerdb.NewTicketRepository,
		"sqlite": sqlitedb.NewTicketRepository,
	}
)

type ServiceConfig struct {
	EventStoreType string
	DataStoreType  string

	EventStoreConfig []interface{}
	DataStoreConfig  []interface{}
}

type service struct {
	eventStore  domain.EventRepository
	roundStore  domain.RoundRepository
	ticketStore domain.TicketRepository
}

func NewService(config ServiceConfig) (ports.RepoManager, error) {
	eventStoreFactory, ok := eventStoreTypes[config.EventStoreType]
	if !ok {
		return nil, fmt.Errorf("event store type not supported")
	}
	roundStoreFactory, ok := roundStoreTypes[config.DataStoreType]
	if !ok {
		return nil, fmt.Errorf("round store type not supported")
	}
	ticketStoreFactory, ok := ticketStoreTypes[config.DataStoreType]
	if !ok {
		return nil, fmt.Errorf("ticket store type not supported")
	}

	var eventStore domain.EventRepository
	var roundStore domain.RoundRepository
	var ticketStore domain.TicketRepository
	var err error

	switch config.EventStoreType {
	case "badger":
		eventStore, err = eventStoreFactory(config.EventStoreConfig...)
		if err != nil {
			return nil, fmt.Errorf("failed to open event store: %s", err)
		}
	default:
		return nil, fmt.Errorf("unknown event store db type")
	}

	switch config.DataStoreType {
	case "badger":
		roundStore, err = roundStoreFactory(config.DataStoreConfig...)
		if err != nil {
			eventStore.Close()
			return nil, fmt.Errorf("failed to open round store: %s", err)
		}
		ticketStore, err = ticketStoreFactory(config.DataStoreConfig...)
		if err != nil {
			eventStore.Close()
			roundStore.Close()
			return nil, fmt.Errorf("failed to open ticket store: %s", err)
		}
	case "sqlite":
		if len(config.DataStoreConfig) != 1 {
			eventStore.Close()
			return nil, fmt.Errorf("invalid data store config")
		}
		baseDir, ok := config.DataStoreConfig[0].(string)
		if !ok {
			eventStore.Close()
			return nil, fmt.Errorf("invalid base directory")
		}
		db, err := sqlitedb.OpenDb(filepath.Join(baseDir, sqliteDbFile))
		if err != nil {
			eventStore.Close()
			return nil, fmt.Errorf("failed to open db: %s", err)
		}
		roundStore, err = roundStoreFactory(db)
		if err != nil {
			eventStore.Close()
			return nil, fmt.Errorf("failed to open round store: %s", err)
		}
		ticketStore, err = ticketStoreFactory(db)
		if err != nil {
			eventStore.Close()
			roundStore.Close()
			return nil, fmt.Errorf("failed to open ticket store: %s", err)
		}
	default:
		eventStore.Close()
		return nil, fmt.Errorf("unknown data store db type")
	}

	return &service{
		eventStore:  eventStore,
		roundStore:  roundStore,
		ticketStore: ticketStore,
	}, nil
}

func (s *service) Events() domain.EventRepository {
	return s.eventStore
}

func (s *service) Rounds() domain.RoundRepository {
	return s.roundStore
}

func (s *service) Tickets() domain.TicketRepository {
	return s.ticketStore
}

func (s *service) Close() {
	s.eventStore.Close()
	s.roundStore.Close()
	s.ticketStore.Close()
}
