package domain

// Chat types resolved by chat-id comparison against the team cache. The
// transport's own chat-type string is advisory only.
const (
	ChatTypeMain       = "main"
	ChatTypeLeadership = "leadership"
	ChatTypePrivate    = "private"
)

// Effective roles produced by identity resolution.
const (
	RoleEffectiveUnregistered = "unregistered"
	RoleEffectivePlayer       = "player"
	RoleEffectiveMember       = "team_member"
	RoleEffectiveAdmin        = "admin"
)

// RoutedMessage is the transient per-update envelope: created by the bot
// worker, consumed by the router, never persisted.
type RoutedMessage struct {
	TelegramID int64
	ChatID     int64
	ChatType   string // resolved, one of the ChatType constants
	TeamID     string
	Username   string
	Text       string
}

// Reply is the router's output: plain text addressed to the origin chat.
// ParseMode stays empty for tool output; tools own their presentation.
type Reply struct {
	ChatID    int64
	Text      string
	ParseMode string
}
