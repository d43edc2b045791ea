package domain

import "time"

// TeamMember roles. Leadership capability comes from chat membership, not the
// role value; is_admin marks administrative members explicitly.
const (
	RoleCoach             = "coach"
	RoleManager           = "manager"
	RoleAssistant         = "assistant"
	RoleCoordinator       = "coordinator"
	RoleVolunteer         = "volunteer"
	RoleAdmin             = "admin"
	RoleClubAdministrator = "club_administrator"
	RoleTeamManager       = "team_manager"
	RoleTeamMember        = "team_member"
)

// MemberRoles lists the closed role enumeration.
func MemberRoles() []string {
	return []string{
		RoleCoach, RoleManager, RoleAssistant, RoleCoordinator, RoleVolunteer,
		RoleAdmin, RoleClubAdministrator, RoleTeamManager, RoleTeamMember,
	}
}

// ValidMemberRole reports whether r is a known role.
func ValidMemberRole(r string) bool {
	for _, known := range MemberRoles() {
		if r == known {
			return true
		}
	}
	return false
}

// TeamMember is a club-side participant of one team. The same human may also
// be a Player in the same team, linked by an equal telegram_id.
type TeamMember struct {
	MemberID   string
	TeamID     string
	TelegramID int64
	Phone      string
	FullName   string
	Role       string
	IsAdmin    bool
	CreatedAt  time.Time
	UpdatedAt  time.Time

	Extra map[string]any
}

// MemberFromDoc builds a TeamMember from an open-schema store document.
func MemberFromDoc(id string, doc map[string]any) TeamMember {
	m := TeamMember{
		MemberID:   stringField(doc, "member_id", id),
		TeamID:     stringField(doc, "team_id", ""),
		TelegramID: int64Field(doc, "telegram_id", 0),
		Phone:      stringField(doc, "phone_number", ""),
		FullName:   stringField(doc, "full_name", ""),
		Role:       stringField(doc, "role", RoleTeamMember),
		IsAdmin:    boolField(doc, "is_admin", false),
		CreatedAt:  timeField(doc, "created_at"),
		UpdatedAt:  timeField(doc, "updated_at"),
	}
	m.Extra = extraFields(doc,
		"member_id", "team_id", "telegram_id", "phone_number",
		"full_name", "role", "is_admin", "created_at", "updated_at")
	return m
}

// Doc renders the member back to an open-schema document.
func (m TeamMember) Doc() map[string]any {
	doc := cloneExtra(m.Extra)
	doc["member_id"] = m.MemberID
	doc["team_id"] = m.TeamID
	doc["telegram_id"] = m.TelegramID
	doc["phone_number"] = m.Phone
	doc["full_name"] = m.FullName
	doc["role"] = m.Role
	doc["is_admin"] = m.IsAdmin
	putTime(doc, "created_at", m.CreatedAt)
	putTime(doc, "updated_at", m.UpdatedAt)
	return doc
}
