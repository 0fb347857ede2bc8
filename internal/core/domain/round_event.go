package domain

const RoundTopic = "round"

type RoundEvent struct {
	Round uint64
	Type  EventType
}

func (r RoundEvent) GetTopic() string   { return RoundTopic }
func (r RoundEvent) GetType() EventType { return r.Type }

type RoundStarted struct {
	RoundEvent
	TicketPrice    uint64
	Pot            uint64
	SeedCommitment string
	Timestamp      int64
	EndTime        int64
}

type TicketPurchased struct {
	RoundEvent
	Buyer     string
	TicketId  uint64
	Amount    uint64
	Timestamp int64
}

type LotteryDrawn struct {
	RoundEvent
	Winner     string
	TicketId   uint64
	Amount     uint64
	Seed       string
	SeedSecret string
	Timestamp  int64
}

type RoundRolledOver struct {
	RoundEvent
	CarriedPot uint64
	SeedSecret string
	Timestamp  int64
}
