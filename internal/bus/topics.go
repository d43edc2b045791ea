package bus

// Fleet lifecycle topics.
const (
	TopicBotStarted = "bot.started"
	TopicBotStopped = "bot.stopped"
	TopicBotFailed  = "bot.failed"
)

// Message pipeline topics.
const (
	TopicMessageReceived = "message.received"
	TopicMessageRouted   = "message.routed"
	TopicMessageReply    = "message.reply"
	TopicMessageDenied   = "message.denied"
)

// Registry and configuration topics.
const (
	TopicHealthChecked = "health.checked"
	TopicConfigChanged = "config.changed"
)

// BotEvent is published on bot.* topics.
type BotEvent struct {
	TeamID string `json:"team_id"`
	State  string `json:"state"`
	Reason string `json:"reason,omitempty"`
}

// MessageEvent is published on message.* topics.
type MessageEvent struct {
	TeamID     string `json:"team_id"`
	ChatID     int64  `json:"chat_id"`
	ChatType   string `json:"chat_type"`
	TelegramID int64  `json:"telegram_id"`
	Text       string `json:"text"`
	Reply      string `json:"reply,omitempty"`
}

// HealthEvent is published on health.checked.
type HealthEvent struct {
	Service      string `json:"service"`
	Status       string `json:"status"`
	ResponseTime string `json:"response_time"`
	Error        string `json:"error,omitempty"`
}

// ConfigEvent is published on config.changed.
type ConfigEvent struct {
	Path   string `json:"path"`
	TeamID string `json:"team_id,omitempty"`
}
