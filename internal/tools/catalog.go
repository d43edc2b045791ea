package tools

import (
	"sort"

	"github.com/kickai/kickai/internal/domain"
)

// Chat type shorthands for catalog entries.
var (
	allChats       = []string{domain.ChatTypeMain, domain.ChatTypeLeadership, domain.ChatTypePrivate}
	leadershipOnly = []string{domain.ChatTypeLeadership}
	leadershipPriv = []string{domain.ChatTypeLeadership, domain.ChatTypePrivate}
	mainAndLeaders = []string{domain.ChatTypeMain, domain.ChatTypeLeadership}
)

// NewCatalog builds the full tool catalog over a service source.
func NewCatalog(services ServiceSource) *Registry {
	r := NewRegistry(services)

	// Player tools.
	r.Add(Entry{
		Name:        "add_player",
		Description: "Register a new player (pending approval) and issue their invite link",
		MinRole:     domain.RoleEffectiveMember,
		ChatTypes:   leadershipOnly,
		Mutating:    true,
		Params:      []Param{{Name: "full_name", Required: true}, {Name: "phone", Required: true}},
		Handler:     addPlayer(r),
	})
	r.Add(Entry{
		Name:        "approve_player",
		Description: "Approve a pending player",
		MinRole:     domain.RoleEffectiveMember,
		ChatTypes:   leadershipOnly,
		Mutating:    true,
		Params:      []Param{{Name: "player_id", Required: true}},
		Handler:     approvePlayer(r),
	})
	r.Add(Entry{
		Name:        "reject_player",
		Description: "Reject a pending player",
		MinRole:     domain.RoleEffectiveMember,
		ChatTypes:   leadershipOnly,
		Mutating:    true,
		Params:      []Param{{Name: "player_id", Required: true}},
		Handler:     rejectPlayer(r),
	})
	r.Add(Entry{
		Name:        "get_my_status",
		Description: "Show your own player record",
		MinRole:     domain.RoleEffectiveUnregistered,
		Handler:     getMyStatus(r),
	})
	r.Add(Entry{
		Name:        "get_player_status",
		Description: "Show one player's record",
		MinRole:     domain.RoleEffectiveUnregistered,
		Params:      []Param{{Name: "player_id", Required: true}},
		Handler:     getPlayerStatus(r),
	})
	r.Add(Entry{
		Name:        "get_all_players",
		Description: "List every player in the team",
		MinRole:     domain.RoleEffectivePlayer,
		RoleByChat:  map[string]string{domain.ChatTypeLeadership: domain.RoleEffectiveMember},
		Handler:     getAllPlayers(r),
	})
	r.Add(Entry{
		Name:        "get_active_players",
		Description: "List active and approved players",
		MinRole:     domain.RoleEffectiveUnregistered,
		Handler:     getActivePlayers(r),
	})
	r.Add(Entry{
		Name:        "list_team_members_and_players",
		Description: "Show the full team overview",
		MinRole:     domain.RoleEffectiveUnregistered,
		ChatTypes:   leadershipPriv,
		Handler:     listMembersAndPlayers(r),
	})
	r.Add(Entry{
		Name:        "update_my_info",
		Description: "Update a field on your own record",
		MinRole:     domain.RoleEffectivePlayer,
		ChatTypes:   allChats,
		RoleByChat: map[string]string{
			domain.ChatTypeMain:       domain.RoleEffectivePlayer,
			domain.ChatTypeLeadership: domain.RoleEffectiveMember,
			domain.ChatTypePrivate:    domain.RoleEffectiveMember,
		},
		Mutating: true,
		Params:   []Param{{Name: "field", Required: true}, {Name: "value", Required: true}},
		Handler:  updateMyInfo(r),
	})
	r.Add(Entry{
		Name:        "register_user",
		Description: "Explain how registration works",
		MinRole:     domain.RoleEffectiveUnregistered,
		Handler:     registerUser(r),
	})

	// Team member tools.
	r.Add(Entry{
		Name:        "team_member_registration",
		Description: "Register a new team member and issue their invite link",
		MinRole:     domain.RoleEffectiveMember,
		ChatTypes:   leadershipOnly,
		Mutating:    true,
		Params:      []Param{{Name: "full_name", Required: true}, {Name: "phone", Required: true}, {Name: "role", Required: false}},
		Handler:     memberRegistration(r),
	})
	r.Add(Entry{
		Name:        "get_my_team_member_status",
		Description: "Show your own team member record",
		MinRole:     domain.RoleEffectiveUnregistered,
		ChatTypes:   leadershipPriv,
		Handler:     getMyMemberStatus(r),
	})
	r.Add(Entry{
		Name:        "get_team_members",
		Description: "List every team member",
		MinRole:     domain.RoleEffectiveMember,
		ChatTypes:   leadershipPriv,
		Handler:     getTeamMembers(r),
	})
	r.Add(Entry{
		Name:        "add_team_member_role",
		Description: "Assign a role to a team member",
		MinRole:     domain.RoleEffectiveAdmin,
		ChatTypes:   leadershipOnly,
		Mutating:    true,
		Params:      []Param{{Name: "member_id", Required: true}, {Name: "role", Required: true}},
		Handler:     addMemberRole(r),
	})
	r.Add(Entry{
		Name:        "remove_team_member_role",
		Description: "Reset a team member to the base role",
		MinRole:     domain.RoleEffectiveAdmin,
		ChatTypes:   leadershipOnly,
		Mutating:    true,
		Params:      []Param{{Name: "member_id", Required: true}},
		Handler:     removeMemberRole(r),
	})
	r.Add(Entry{
		Name:        "promote_team_member_to_admin",
		Description: "Promote a team member to administrator",
		MinRole:     domain.RoleEffectiveAdmin,
		ChatTypes:   leadershipOnly,
		Mutating:    true,
		Params:      []Param{{Name: "member_id", Required: true}},
		Handler:     promoteMemberToAdmin(r),
	})
	r.Add(Entry{
		Name:        "get_my_info",
		Description: "Show your own record for this chat context",
		MinRole:     domain.RoleEffectiveUnregistered,
		Handler:     getMyInfo(r),
	})

	// Match tools.
	r.Add(Entry{
		Name:        "record_attendance",
		Description: "Record one player's availability for a match",
		MinRole:     domain.RoleEffectivePlayer,
		ChatTypes:   mainAndLeaders,
		RoleByChat:  map[string]string{domain.ChatTypeLeadership: domain.RoleEffectiveMember},
		Mutating:    true,
		Params: []Param{
			{Name: "match_id", Required: true},
			{Name: "player_id", Required: true},
			{Name: "response", Required: true},
		},
		Handler: recordAttendance(r),
	})
	r.Add(Entry{
		Name:        "bulk_record_attendance",
		Description: "Record availability for many players at once",
		MinRole:     domain.RoleEffectiveMember,
		ChatTypes:   leadershipOnly,
		Mutating:    true,
		Params:      []Param{{Name: "match_id", Required: true}, {Name: "responses", Required: true}},
		Handler:     bulkRecordAttendance(r),
	})
	r.Add(Entry{
		Name:        "get_match_attendance",
		Description: "Show every response recorded for a match",
		MinRole:     domain.RoleEffectivePlayer,
		RoleByChat:  map[string]string{domain.ChatTypeLeadership: domain.RoleEffectiveMember},
		Params:      []Param{{Name: "match_id", Required: true}},
		Handler:     getMatchAttendance(r),
	})
	r.Add(Entry{
		Name:        "get_player_attendance_history",
		Description: "Show one player's attendance across matches",
		MinRole:     domain.RoleEffectiveMember,
		ChatTypes:   leadershipPriv,
		Params:      []Param{{Name: "player_id", Required: true}},
		Handler:     getPlayerAttendanceHistory(r),
	})
	r.Add(Entry{
		Name:        "get_available_players_for_match",
		Description: "List players who answered yes for a match",
		MinRole:     domain.RoleEffectiveMember,
		ChatTypes:   leadershipPriv,
		Params:      []Param{{Name: "match_id", Required: true}},
		Handler:     getAvailablePlayersForMatch(r),
	})
	r.Add(Entry{
		Name:        "select_squad",
		Description: "Record the squad selection on a match",
		MinRole:     domain.RoleEffectiveMember,
		ChatTypes:   leadershipOnly,
		Mutating:    true,
		Params:      []Param{{Name: "match_id", Required: true}, {Name: "player_ids", Required: true}},
		Handler:     selectSquad(r),
	})

	// Communication tools.
	r.Add(Entry{
		Name:        "send_announcement",
		Description: "Send an announcement to the main chat",
		MinRole:     domain.RoleEffectiveAdmin,
		ChatTypes:   leadershipOnly,
		Mutating:    true,
		Params:      []Param{{Name: "message", Required: true}},
		Handler:     sendAnnouncement(r),
	})
	r.Add(Entry{
		Name:        "send_message",
		Description: "Send a message to an explicit chat",
		MinRole:     domain.RoleEffectiveAdmin,
		ChatTypes:   leadershipOnly,
		Mutating:    true,
		Params:      []Param{{Name: "chat_id", Required: true}, {Name: "message", Required: true}},
		Handler:     sendMessage(r),
	})
	r.Add(Entry{
		Name:        "send_telegram_message",
		Description: "Send a raw message through the team's bot",
		MinRole:     domain.RoleEffectiveAdmin,
		ChatTypes:   leadershipOnly,
		Mutating:    true,
		Params:      []Param{{Name: "chat_id", Required: true}, {Name: "message", Required: true}},
		Handler:     sendTelegramMessage(r),
	})
	r.Add(Entry{
		Name:        "send_poll",
		Description: "Send a poll to the main chat",
		MinRole:     domain.RoleEffectiveAdmin,
		ChatTypes:   leadershipOnly,
		Mutating:    true,
		Params:      []Param{{Name: "question", Required: true}, {Name: "options", Required: true}},
		Handler:     sendPoll(r),
	})
	r.Add(Entry{
		Name:        "get_invite_link",
		Description: "Create a single-use invite link",
		MinRole:     domain.RoleEffectiveAdmin,
		ChatTypes:   leadershipOnly,
		Mutating:    true,
		Params:      []Param{{Name: "target", Required: false}, {Name: "id", Required: false}},
		Handler:     getInviteLink(r),
	})

	return r
}

// Command maps a slash command onto a catalog tool. Permission metadata lives
// on the tool; the command adds the user-facing name, usage and help text,
// plus an optional per-chat tool override.
type Command struct {
	Name       string // without the leading slash
	Tool       string
	ToolByChat map[string]string
	Usage      string
	Help       string
}

// ToolFor resolves the tool this command dispatches to in a chat type.
func (c Command) ToolFor(chatType string) string {
	if override, ok := c.ToolByChat[chatType]; ok {
		return override
	}
	return c.Tool
}

// Commands returns the slash-command surface in help order.
func Commands() []Command {
	return []Command{
		{Name: "help", Tool: "", Usage: "/help", Help: "Show the commands available to you here"},
		{Name: "myinfo", Tool: "get_my_info", Usage: "/myinfo", Help: "Show your own record"},
		{Name: "list", Tool: "list_team_members_and_players",
			ToolByChat: map[string]string{domain.ChatTypeMain: "get_active_players"},
			Usage:      "/list", Help: "List the team"},
		{Name: "status", Tool: "get_player_status", Usage: "/status <player_id>", Help: "Show a player's status"},
		{Name: "register", Tool: "register_user", Usage: "/register", Help: "How to join this team"},
		{Name: "update", Tool: "update_my_info", Usage: "/update <field> <value>", Help: "Update your own record"},
		{Name: "addplayer", Tool: "add_player", Usage: "/addplayer \"<name>\" \"<phone>\"", Help: "Add a player and get their invite link"},
		{Name: "addmember", Tool: "team_member_registration", Usage: "/addmember \"<name>\" \"<phone>\" [role]", Help: "Add a team member"},
		{Name: "approve", Tool: "approve_player", Usage: "/approve <player_id>", Help: "Approve a pending player"},
		{Name: "reject", Tool: "reject_player", Usage: "/reject <player_id>", Help: "Reject a pending player"},
		{Name: "announce", Tool: "send_announcement", Usage: "/announce <message>", Help: "Announce to the main chat"},
		{Name: "invitelink", Tool: "get_invite_link", Usage: "/invitelink [player|member <id>]", Help: "Create an invite link"},
		{Name: "attendance", Tool: "record_attendance", Usage: "/attendance <match_id> <player_id> <yes|no|maybe>", Help: "Record match availability"},
		{Name: "squad", Tool: "select_squad", Usage: "/squad <match_id> <player_id>...", Help: "Select the match squad"},
	}
}

// CommandByName returns the slash command definition, if any.
func CommandByName(name string) (Command, bool) {
	for _, c := range Commands() {
		if c.Name == name {
			return c, true
		}
	}
	return Command{}, false
}

// CommandNames returns every slash command name sorted.
func CommandNames() []string {
	cmds := Commands()
	names := make([]string, 0, len(cmds))
	for _, c := range cmds {
		names = append(names, c.Name)
	}
	sort.Strings(names)
	return names
}
