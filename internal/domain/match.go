package domain

import "time"

// Match statuses.
const (
	MatchStatusScheduled = "scheduled"
	MatchStatusCompleted = "completed"
	MatchStatusCancelled = "cancelled"
)

// Attendance responses. The enumeration is closed.
const (
	AttendanceYes   = "yes"
	AttendanceNo    = "no"
	AttendanceMaybe = "maybe"
)

// AttendanceResponses lists the closed response enumeration.
func AttendanceResponses() []string {
	return []string{AttendanceYes, AttendanceNo, AttendanceMaybe}
}

// ValidAttendanceResponse reports whether r is a known response.
func ValidAttendanceResponse(r string) bool {
	for _, known := range AttendanceResponses() {
		if r == known {
			return true
		}
	}
	return false
}

// Match is a scheduled fixture within one team.
type Match struct {
	MatchID   string
	TeamID    string
	Opponent  string
	KickOff   time.Time
	Venue     string
	Status    string
	Squad     []string // selected player ids, empty until selection
	CreatedAt time.Time
	UpdatedAt time.Time

	Extra map[string]any
}

// MatchFromDoc builds a Match from an open-schema store document.
func MatchFromDoc(id string, doc map[string]any) Match {
	m := Match{
		MatchID:   stringField(doc, "match_id", id),
		TeamID:    stringField(doc, "team_id", ""),
		Opponent:  stringField(doc, "opponent", ""),
		KickOff:   timeField(doc, "kickoff_time"),
		Venue:     stringField(doc, "venue", ""),
		Status:    stringField(doc, "status", MatchStatusScheduled),
		Squad:     stringSliceField(doc, "squad"),
		CreatedAt: timeField(doc, "created_at"),
		UpdatedAt: timeField(doc, "updated_at"),
	}
	m.Extra = extraFields(doc,
		"match_id", "team_id", "opponent", "kickoff_time", "venue",
		"status", "squad", "created_at", "updated_at")
	return m
}

// Doc renders the match back to an open-schema document.
func (m Match) Doc() map[string]any {
	doc := cloneExtra(m.Extra)
	doc["match_id"] = m.MatchID
	doc["team_id"] = m.TeamID
	doc["opponent"] = m.Opponent
	doc["venue"] = m.Venue
	doc["status"] = m.Status
	squad := make([]any, len(m.Squad))
	for i, id := range m.Squad {
		squad[i] = id
	}
	doc["squad"] = squad
	putTime(doc, "kickoff_time", m.KickOff)
	putTime(doc, "created_at", m.CreatedAt)
	putTime(doc, "updated_at", m.UpdatedAt)
	return doc
}

// AttendanceRecord is one player's response for one match. Keyed by
// match_id + player_id; a later record for the same pair replaces the
// earlier one.
type AttendanceRecord struct {
	MatchID    string
	PlayerID   string
	TeamID     string
	Response   string
	RecordedBy int64 // telegram_id of whoever recorded it
	RecordedAt time.Time

	Extra map[string]any
}

// AttendanceFromDoc builds an AttendanceRecord from a store document.
func AttendanceFromDoc(doc map[string]any) AttendanceRecord {
	a := AttendanceRecord{
		MatchID:    stringField(doc, "match_id", ""),
		PlayerID:   stringField(doc, "player_id", ""),
		TeamID:     stringField(doc, "team_id", ""),
		Response:   stringField(doc, "response", ""),
		RecordedBy: int64Field(doc, "recorded_by", 0),
		RecordedAt: timeField(doc, "recorded_at"),
	}
	a.Extra = extraFields(doc,
		"match_id", "player_id", "team_id", "response", "recorded_by", "recorded_at")
	return a
}

// Doc renders the attendance record as a store document.
func (a AttendanceRecord) Doc() map[string]any {
	doc := cloneExtra(a.Extra)
	doc["match_id"] = a.MatchID
	doc["player_id"] = a.PlayerID
	doc["team_id"] = a.TeamID
	doc["response"] = a.Response
	doc["recorded_by"] = a.RecordedBy
	putTime(doc, "recorded_at", a.RecordedAt)
	return doc
}
