package domain

import "time"

// Player positions. The enumeration is closed; anything else fails validation.
const (
	PositionGoalkeeper = "goalkeeper"
	PositionDefender   = "defender"
	PositionMidfielder = "midfielder"
	PositionForward    = "forward"
	PositionUtility    = "utility"
)

// Player lifecycle statuses.
const (
	PlayerStatusPending  = "pending"
	PlayerStatusApproved = "approved"
	PlayerStatusActive   = "active"
	PlayerStatusInactive = "inactive"
	PlayerStatusRejected = "rejected"
)

// Positions lists the closed position enumeration.
func Positions() []string {
	return []string{PositionGoalkeeper, PositionDefender, PositionMidfielder, PositionForward, PositionUtility}
}

// PlayerStatuses lists the closed status enumeration.
func PlayerStatuses() []string {
	return []string{PlayerStatusPending, PlayerStatusApproved, PlayerStatusActive, PlayerStatusInactive, PlayerStatusRejected}
}

// ValidPosition reports whether p is in the closed enumeration. Empty is
// allowed: position stays unset until the player provides it.
func ValidPosition(p string) bool {
	if p == "" {
		return true
	}
	for _, known := range Positions() {
		if p == known {
			return true
		}
	}
	return false
}

// ValidPlayerStatus reports whether s is a known lifecycle status.
func ValidPlayerStatus(s string) bool {
	for _, known := range PlayerStatuses() {
		if s == known {
			return true
		}
	}
	return false
}

// Player is a registered footballer within one team. player_id is unique per
// team; phone and telegram_id are each unique per team across players.
type Player struct {
	PlayerID   string
	TeamID     string
	TelegramID int64 // 0 until the invite link is consumed
	Phone      string
	FullName   string
	Position   string
	Status     string
	CreatedAt  time.Time
	UpdatedAt  time.Time

	Extra map[string]any
}

// Linked reports whether the player has a bound Telegram account.
func (p Player) Linked() bool {
	return p.TelegramID > 0
}

// PlayerFromDoc builds a Player from an open-schema store document.
func PlayerFromDoc(id string, doc map[string]any) Player {
	p := Player{
		PlayerID:   stringField(doc, "player_id", id),
		TeamID:     stringField(doc, "team_id", ""),
		TelegramID: int64Field(doc, "telegram_id", 0),
		Phone:      stringField(doc, "phone_number", ""),
		FullName:   stringField(doc, "full_name", ""),
		Position:   stringField(doc, "position", ""),
		Status:     stringField(doc, "status", PlayerStatusPending),
		CreatedAt:  timeField(doc, "created_at"),
		UpdatedAt:  timeField(doc, "updated_at"),
	}
	p.Extra = extraFields(doc,
		"player_id", "team_id", "telegram_id", "phone_number",
		"full_name", "position", "status", "created_at", "updated_at")
	return p
}

// Doc renders the player back to an open-schema document. telegram_id is
// always written as int64 regardless of how it was stored.
func (p Player) Doc() map[string]any {
	doc := cloneExtra(p.Extra)
	doc["player_id"] = p.PlayerID
	doc["team_id"] = p.TeamID
	doc["telegram_id"] = p.TelegramID
	doc["phone_number"] = p.Phone
	doc["full_name"] = p.FullName
	doc["position"] = p.Position
	doc["status"] = p.Status
	putTime(doc, "created_at", p.CreatedAt)
	putTime(doc, "updated_at", p.UpdatedAt)
	return doc
}
