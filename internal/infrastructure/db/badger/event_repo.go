package badgerdb

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/arkade-os/lotteryd/internal/core/domain"
	"github.com/timshannon/badgerhold/v4"
)

const eventStoreDir = "events"

type eventDTO struct {
	Topic string
	Id    string
	Seq   uint64
	Type  int
	Data  []byte
}

type eventRepository struct {
	store    *badgerhold.Store
	lock     *sync.RWMutex
	handlers map[string][]func(events []domain.Event)
}

func NewEventRepository(config ...interface{}) (domain.EventRepository, error) {
	baseDir, logger, err := parseConfig(config)
	if err != nil {
		return nil, err
	}

	var dir string
	if len(baseDir) > 0 {
		dir = filepath.Join(baseDir, eventStoreDir)
	}
	store, err := createDB(dir, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open event store: %s", err)
	}

	return &eventRepository{
		store:    store,
		lock:     &sync.RWMutex{},
		handlers: make(map[string][]func(events []domain.Event)),
	}, nil
}

func (r *eventRepository) Save(
	ctx context.Context, topic, id string, events []domain.Event,
) error {
	if len(events) <= 0 {
		return nil
	}

	query := badgerhold.Where("Topic").Eq(topic).And("Id").Eq(id)
	count, err := r.store.Count(&eventDTO{}, query)
	if err != nil {
		return err
	}

	for i, event := range events {
		data, err := json.Marshal(event)
		if err != nil {
			return fmt.Errorf("failed to serialize event: %w", err)
		}
		dto := eventDTO{
			Topic: topic,
			Id:    id,
			Seq:   count + uint64(i),
			Type:  int(event.GetType()),
			Data:  data,
		}
		key := fmt.Sprintf("%s:%s:%020d", topic, id, dto.Seq)
		if err := withRetry(func() error {
			return r.store.Insert(key, dto)
		}); err != nil {
			return err
		}
	}

	r.publish(topic, events)
	return nil
}

func (r *eventRepository) Load(
	ctx context.Context, topic, id string,
) ([]domain.Event, error) {
	var dtos []eventDTO
	query := badgerhold.Where("Topic").Eq(topic).And("Id").Eq(id).SortBy("Seq")
	if err := r.store.Find(&dtos, query); err != nil {
		return nil, err
	}
	if len(dtos) <= 0 {
		return nil, fmt.Errorf("%w: no events for %s %s", domain.ErrNotFound, topic, id)
	}

	events := make([]domain.Event, 0, len(dtos))
	for _, dto := range dtos {
		event, err := deserializeEvent(dto)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, nil
}

func (r *eventRepository) RegisterEventsHandler(
	topic string, handler func(events []domain.Event),
) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.handlers[topic] = append(r.handlers[topic], handler)
}

func (r *eventRepository) ClearRegisteredHandlers(topics ...string) {
	r.lock.Lock()
	defer r.lock.Unlock()

	if len(topics) <= 0 {
		r.handlers = make(map[string][]func(events []domain.Event))
		return
	}
	for _, topic := range topics {
		delete(r.handlers, topic)
	}
}

func (r *eventRepository) Close() {
	_ = r.store.Close()
}

// publish runs the handlers in the caller goroutine so that events reach them
// in the order they were saved.
func (r *eventRepository) publish(topic string, events []domain.Event) {
	r.lock.RLock()
	handlers := append([]func(events []domain.Event){}, r.handlers[topic]...)
	r.lock.RUnlock()

	for _, handler := range handlers {
		handler(events)
	}
}

func deserializeEvent(dto eventDTO) (domain.Event, error) {
	var (
		event domain.Event
		err   error
	)
	switch domain.EventType(dto.Type) {
	case domain.EventTypeRoundStarted:
		var e domain.RoundStarted
		err = json.Unmarshal(dto.Data, &e)
		event = e
	case domain.EventTypeTicketPurchased:
		var e domain.TicketPurchased
		err = json.Unmarshal(dto.Data, &e)
		event = e
	case domain.EventTypeLotteryDrawn:
		var e domain.LotteryDrawn
		err = json.Unmarshal(dto.Data, &e)
		event = e
	case domain.EventTypeRoundRolledOver:
		var e domain.RoundRolledOver
		err = json.Unmarshal(dto.Data, &e)
		event = e
	default:
		return nil, fmt.Errorf("unknown event type %d", dto.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize event: %w", err)
	}
	return event, nil
}
