package domain

import "time"

// InviteLink statuses.
const (
	InviteStatusActive  = "active"
	InviteStatusUsed    = "used"
	InviteStatusExpired = "expired"
	InviteStatusRevoked = "revoked"
)

// InviteLink is a one-time secure token granting chat join and registration
// binding. Expiry is evaluated against wall-clock at read time; the runtime
// only ever mutates links to mark them used or expired.
type InviteLink struct {
	LinkID      string
	TeamID      string
	SecureToken string // signed compact token, always >= 32 chars
	ExpiresAt   time.Time
	Status      string
	PlayerID    string // optional target
	MemberID    string // optional target
	CreatedAt   time.Time
	UsedAt      time.Time
	UsedBy      int64 // telegram_id of the consumer

	Extra map[string]any
}

// Expired reports whether the link is past its expiry at the given instant.
func (l InviteLink) Expired(now time.Time) bool {
	return !l.ExpiresAt.IsZero() && now.After(l.ExpiresAt)
}

// Consumable reports whether the link can still be used at the given instant.
func (l InviteLink) Consumable(now time.Time) bool {
	return l.Status == InviteStatusActive && !l.Expired(now)
}

// InviteFromDoc builds an InviteLink from an open-schema store document.
func InviteFromDoc(id string, doc map[string]any) InviteLink {
	l := InviteLink{
		LinkID:      stringField(doc, "link_id", id),
		TeamID:      stringField(doc, "team_id", ""),
		SecureToken: stringField(doc, "secure_token", ""),
		ExpiresAt:   timeField(doc, "expires_at"),
		Status:      stringField(doc, "status", InviteStatusActive),
		PlayerID:    stringField(doc, "player_id", ""),
		MemberID:    stringField(doc, "member_id", ""),
		CreatedAt:   timeField(doc, "created_at"),
		UsedAt:      timeField(doc, "used_at"),
		UsedBy:      int64Field(doc, "used_by", 0),
	}
	l.Extra = extraFields(doc,
		"link_id", "team_id", "secure_token", "expires_at", "status",
		"player_id", "member_id", "created_at", "used_at", "used_by")
	return l
}

// Doc renders the invite link back to an open-schema document.
func (l InviteLink) Doc() map[string]any {
	doc := cloneExtra(l.Extra)
	doc["link_id"] = l.LinkID
	doc["team_id"] = l.TeamID
	doc["secure_token"] = l.SecureToken
	doc["status"] = l.Status
	if l.PlayerID != "" {
		doc["player_id"] = l.PlayerID
	}
	if l.MemberID != "" {
		doc["member_id"] = l.MemberID
	}
	if l.UsedBy != 0 {
		doc["used_by"] = l.UsedBy
	}
	putTime(doc, "expires_at", l.ExpiresAt)
	putTime(doc, "created_at", l.CreatedAt)
	putTime(doc, "used_at", l.UsedAt)
	return doc
}

// ActivationLog records an invite consumption in
// kickai_{team}_activation_logs.
type ActivationLog struct {
	LinkID     string
	TelegramID int64
	Entity     string // "player" or "team_member"
	EntityID   string
	At         time.Time
}

// Doc renders the activation log entry as a store document.
func (a ActivationLog) Doc() map[string]any {
	doc := map[string]any{
		"link_id":     a.LinkID,
		"telegram_id": a.TelegramID,
		"entity":      a.Entity,
		"entity_id":   a.EntityID,
	}
	putTime(doc, "at", a.At)
	return doc
}
