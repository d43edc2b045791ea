package domain

// TeamStatus values stored on team documents.
const (
	TeamStatusActive    = "active"
	TeamStatusInactive  = "inactive"
	TeamStatusSuspended = "suspended"
)

// Team is a tenant: one bot token, one main chat, one leadership chat.
// Immutable during normal operation; refresh is an explicit admin action.
type Team struct {
	ID               string
	Name             string
	BotToken         string
	MainChatID       string
	LeadershipChatID string
	Status           string

	// Extra preserves unknown document keys across read/write cycles.
	Extra map[string]any
}

// Complete reports whether the team carries everything a bot worker needs.
func (t Team) Complete() bool {
	return t.ID != "" && t.BotToken != "" && t.MainChatID != "" && t.LeadershipChatID != ""
}

// DisplayName returns the team name, falling back to the id when blank.
func (t Team) DisplayName() string {
	if t.Name == "" {
		return t.ID
	}
	return t.Name
}

// TeamFromDoc builds a Team from an open-schema store document.
func TeamFromDoc(id string, doc map[string]any) Team {
	t := Team{
		ID:               stringField(doc, "team_id", id),
		Name:             stringField(doc, "name", ""),
		BotToken:         stringField(doc, "bot_token", ""),
		MainChatID:       stringField(doc, "main_chat_id", ""),
		LeadershipChatID: stringField(doc, "leadership_chat_id", ""),
		Status:           stringField(doc, "status", TeamStatusActive),
	}
	if t.ID == "" {
		t.ID = id
	}
	t.Extra = extraFields(doc, "team_id", "name", "bot_token", "main_chat_id", "leadership_chat_id", "status")
	return t
}

// Doc renders the team back to an open-schema document, unknown keys intact.
func (t Team) Doc() map[string]any {
	doc := cloneExtra(t.Extra)
	doc["team_id"] = t.ID
	doc["name"] = t.Name
	doc["bot_token"] = t.BotToken
	doc["main_chat_id"] = t.MainChatID
	doc["leadership_chat_id"] = t.LeadershipChatID
	doc["status"] = t.Status
	return doc
}
