package domain

import "context"

type EventType int

const (
	EventTypeUndefined EventType = iota
	EventTypeRoundStarted
	EventTypeTicketPurchased
	EventTypeLotteryDrawn
	EventTypeRoundRolledOver
)

func (t EventType) String() string {
	switch t {
	case EventTypeRoundStarted:
		return "round_started"
	case EventTypeTicketPurchased:
		return "ticket_purchased"
	case EventTypeLotteryDrawn:
		return "lottery_drawn"
	case EventTypeRoundRolledOver:
		return "round_rolled_over"
	default:
		return "undefined"
	}
}

func ParseEventType(s string) (EventType, bool) {
	for _, t := range []EventType{
		EventTypeRoundStarted, EventTypeTicketPurchased,
		EventTypeLotteryDrawn, EventTypeRoundRolledOver,
	} {
		if t.String() == s {
			return t, true
		}
	}
	return EventTypeUndefined, false
}

type Event interface {
	GetTopic() string
	GetType() EventType
}

// EventRepository persists the changes of an aggregate and dispatches them, in
// order, to the handlers registered for their topic once they are stored.
type EventRepository interface {
	Save(ctx context.Context, topic, id string, events []Event) error
	Load(ctx context.Context, topic, id string) ([]Event, error)
	RegisterEventsHandler(topic string, handler func(events []Event))
	ClearRegisteredHandlers(topics ...string)
	Close()
}
