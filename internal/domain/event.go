package domain

// InboundEvent is one message event as delivered by the platform's event
// callback. It is owned by the request that received it and never persisted.
type InboundEvent struct {
	Type        string
	ChannelID   string
	UserID      string
	Text        string
	Timestamp   string
	EventID     string // platform-assigned, preferred dedup key
	ClientMsgID string // client-assigned, second choice
	BotID       string
	SubType     string
	Username    string // declared display name, set for bot-authored messages
}

// BotOriginated reports whether the event was authored by a bot. Used to cut
// feedback loops before any trigger extraction happens.
func (e InboundEvent) BotOriginated() bool {
	return e.BotID != "" || e.SubType == "bot_message"
}

// HistoryMessage is one message from a channel's recent history, as returned
// by the chat gateway.
type HistoryMessage struct {
	AuthorID      string
	Text          string
	BotOriginated bool
	Username      string // declared name for bot messages; empty for humans
}

// Acknowledgment statuses returned to the platform. Always delivered with
// HTTP 200 so the platform never retries on business-logic outcomes.
const (
	StatusOK                = "ok"
	StatusAlreadyProcessed  = "already processed"
	StatusBotMessage        = "bot message"
	StatusPersonaBotMessage = "persona bot message"
)
