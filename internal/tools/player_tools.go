package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kickai/kickai/internal/domain"
	"github.com/kickai/kickai/internal/services"
	"github.com/kickai/kickai/internal/store"
)

// Registered service names the tools resolve through the registry.
const (
	PlayerServiceName        = "player_service"
	TeamMemberServiceName    = "team_member_service"
	MatchServiceName         = "match_service"
	CommunicationServiceName = "communication_service"
	InviteServiceName        = "invite_service"
)

func titleStatus(status string) string {
	switch status {
	case domain.PlayerStatusPending:
		return "Pending Approval"
	case domain.PlayerStatusApproved:
		return "Approved"
	case domain.PlayerStatusActive:
		return "Active"
	case domain.PlayerStatusInactive:
		return "Inactive"
	case domain.PlayerStatusRejected:
		return "Rejected"
	default:
		return status
	}
}

func playerLine(p domain.Player) string {
	return fmt.Sprintf("• %s (%s) — %s, %s", p.FullName, p.PlayerID, orUnset(p.Position), titleStatus(p.Status))
}

func addPlayer(r *Registry) Handler {
	return func(ctx context.Context, inv Invocation) string {
		players, msg := service[services.PlayerService](r, PlayerServiceName, "Player Service")
		if msg != "" {
			return msg
		}
		invites, _ := service[services.InviteService](r, InviteServiceName, "Invite Service")

		name, phone := inv.Arg(0), inv.Arg(1)
		p, err := players.AddPlayer(ctx, inv.TeamID, name, phone)
		if err != nil {
			switch {
			case errors.Is(err, store.ErrConstraint):
				return fmt.Sprintf("❌ A player with phone %s already exists in this team.", phone)
			case domain.IsBadPhone(err):
				return fmt.Sprintf("❌ %s is not a valid phone number.", phone)
			default:
				return "❌ Could not add the player. Please try again later."
			}
		}

		var b strings.Builder
		b.WriteString("✅ Player Added Successfully!\n")
		fmt.Fprintf(&b, "• Name: %s\n", p.FullName)
		fmt.Fprintf(&b, "• Phone: %s\n", p.Phone)
		fmt.Fprintf(&b, "• Player ID: %s\n", p.PlayerID)
		fmt.Fprintf(&b, "• Status: %s\n", titleStatus(p.Status))
		if invites != nil {
			if _, url, err := invites.CreateInviteLink(ctx, inv.TeamID, services.InviteTarget{PlayerID: p.PlayerID}); err == nil {
				fmt.Fprintf(&b, "🔗 Invite Link: %s\n", url)
			}
		}
		b.WriteString("Share the invite link with the player to finish registration.")
		return b.String()
	}
}

func approvePlayer(r *Registry) Handler {
	return func(ctx context.Context, inv Invocation) string {
		players, msg := service[services.PlayerService](r, PlayerServiceName, "Player Service")
		if msg != "" {
			return msg
		}
		playerID := inv.Arg(0)
		p, err := players.ApprovePlayer(ctx, inv.TeamID, playerID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Sprintf("❌ Player %s was not found in this team.", playerID)
			}
			return "❌ Could not approve the player. Please try again later."
		}
		return fmt.Sprintf("✅ Player Approved\n• %s (%s) is now %s.\nThey can take part in matches once they link their Telegram account.",
			p.FullName, p.PlayerID, titleStatus(p.Status))
	}
}

func rejectPlayer(r *Registry) Handler {
	return func(ctx context.Context, inv Invocation) string {
		players, msg := service[services.PlayerService](r, PlayerServiceName, "Player Service")
		if msg != "" {
			return msg
		}
		playerID := inv.Arg(0)
		p, err := players.RejectPlayer(ctx, inv.TeamID, playerID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Sprintf("❌ Player %s was not found in this team.", playerID)
			}
			return "❌ Could not reject the player. Please try again later."
		}
		return fmt.Sprintf("⚠️ Player Rejected\n• %s (%s) has been marked %s.", p.FullName, p.PlayerID, titleStatus(p.Status))
	}
}

func getMyStatus(r *Registry) Handler {
	return func(ctx context.Context, inv Invocation) string {
		players, msg := service[services.PlayerService](r, PlayerServiceName, "Player Service")
		if msg != "" {
			return msg
		}
		p, err := players.PlayerByTelegramID(ctx, inv.TeamID, inv.TelegramID)
		if err != nil {
			return "❌ Could not look up your record. Please try again later."
		}
		if p == nil {
			return "⚠️ You are not registered as a player in this team. Contact your team leadership for an invite link."
		}
		var b strings.Builder
		b.WriteString("✅ Your Player Record\n")
		fmt.Fprintf(&b, "• Name: %s\n", p.FullName)
		fmt.Fprintf(&b, "• Player ID: %s\n", p.PlayerID)
		fmt.Fprintf(&b, "• Position: %s\n", orUnset(p.Position))
		fmt.Fprintf(&b, "• Status: %s", titleStatus(p.Status))
		return b.String()
	}
}

func getPlayerStatus(r *Registry) Handler {
	return func(ctx context.Context, inv Invocation) string {
		players, msg := service[services.PlayerService](r, PlayerServiceName, "Player Service")
		if msg != "" {
			return msg
		}
		playerID := inv.Arg(0)
		p, err := players.PlayerByID(ctx, inv.TeamID, playerID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Sprintf("❌ Player %s was not found in this team.", playerID)
			}
			return "❌ Could not look up the player. Please try again later."
		}
		var b strings.Builder
		b.WriteString("✅ Player Status\n")
		fmt.Fprintf(&b, "• Name: %s\n", p.FullName)
		fmt.Fprintf(&b, "• Player ID: %s\n", p.PlayerID)
		fmt.Fprintf(&b, "• Position: %s\n", orUnset(p.Position))
		fmt.Fprintf(&b, "• Status: %s", titleStatus(p.Status))
		return b.String()
	}
}

func getAllPlayers(r *Registry) Handler {
	return func(ctx context.Context, inv Invocation) string {
		players, msg := service[services.PlayerService](r, PlayerServiceName, "Player Service")
		if msg != "" {
			return msg
		}
		list, err := players.ListPlayers(ctx, inv.TeamID)
		if err != nil {
			return "❌ Could not list players. Please try again later."
		}
		if len(list) == 0 {
			return "⚠️ No players registered in this team yet."
		}
		var b strings.Builder
		fmt.Fprintf(&b, "✅ Players (%d)\n", len(list))
		for _, p := range list {
			b.WriteString(playerLine(p))
			b.WriteString("\n")
		}
		b.WriteString("Use /status <player_id> for details.")
		return b.String()
	}
}

func getActivePlayers(r *Registry) Handler {
	return func(ctx context.Context, inv Invocation) string {
		players, msg := service[services.PlayerService](r, PlayerServiceName, "Player Service")
		if msg != "" {
			return msg
		}
		list, err := players.ActivePlayers(ctx, inv.TeamID)
		if err != nil {
			return "❌ Could not list players. Please try again later."
		}
		if len(list) == 0 {
			return "⚠️ No active players in this team yet."
		}
		var b strings.Builder
		fmt.Fprintf(&b, "✅ Active Players (%d)\n", len(list))
		for _, p := range list {
			b.WriteString(playerLine(p))
			b.WriteString("\n")
		}
		b.WriteString("Use /status <player_id> for details.")
		return b.String()
	}
}

func listMembersAndPlayers(r *Registry) Handler {
	return func(ctx context.Context, inv Invocation) string {
		players, msg := service[services.PlayerService](r, PlayerServiceName, "Player Service")
		if msg != "" {
			return msg
		}
		members, msg := service[services.TeamMemberService](r, TeamMemberServiceName, "Team Member Service")
		if msg != "" {
			return msg
		}
		ps, err := players.ListPlayers(ctx, inv.TeamID)
		if err != nil {
			return "❌ Could not list the team. Please try again later."
		}
		ms, err := members.ListMembers(ctx, inv.TeamID)
		if err != nil {
			return "❌ Could not list the team. Please try again later."
		}
		var b strings.Builder
		fmt.Fprintf(&b, "✅ Team Overview — %d members, %d players\n", len(ms), len(ps))
		if len(ms) > 0 {
			b.WriteString("Team Members:\n")
			for _, m := range ms {
				b.WriteString(memberLine(m))
				b.WriteString("\n")
			}
		}
		if len(ps) > 0 {
			b.WriteString("Players:\n")
			for _, p := range ps {
				b.WriteString(playerLine(p))
				b.WriteString("\n")
			}
		}
		b.WriteString("Use /status <player_id> for player details.")
		return b.String()
	}
}

func updateMyInfo(r *Registry) Handler {
	return func(ctx context.Context, inv Invocation) string {
		field, value := strings.ToLower(inv.Arg(0)), inv.Arg(1)

		switch inv.ChatType {
		case domain.ChatTypeMain:
			players, msg := service[services.PlayerService](r, PlayerServiceName, "Player Service")
			if msg != "" {
				return msg
			}
			p, err := players.PlayerByTelegramID(ctx, inv.TeamID, inv.TelegramID)
			if err != nil || p == nil {
				return "⚠️ You are not registered as a player in this team. Contact your team leadership."
			}
			key, ok := playerUpdateField(field)
			if !ok {
				return fmt.Sprintf("❌ %s cannot be updated. Try: position, phone.", field)
			}
			if _, err := players.UpdatePlayer(ctx, inv.TeamID, p.PlayerID, map[string]any{key: value}); err != nil {
				if errors.Is(err, store.ErrConstraint) {
					return fmt.Sprintf("❌ A player with phone %s already exists in this team.", value)
				}
				return fmt.Sprintf("❌ Could not update %s: invalid value %q.", field, value)
			}
			return fmt.Sprintf("✅ Updated %s to %s.", field, value)
		default:
			members, msg := service[services.TeamMemberService](r, TeamMemberServiceName, "Team Member Service")
			if msg != "" {
				return msg
			}
			m, err := members.MemberByTelegramID(ctx, inv.TeamID, inv.TelegramID)
			if err != nil || m == nil {
				return "⚠️ You are not registered as a team member. Contact your team leadership."
			}
			key, ok := memberUpdateField(field)
			if !ok {
				return fmt.Sprintf("❌ %s cannot be updated. Try: phone.", field)
			}
			if _, err := members.UpdateMember(ctx, inv.TeamID, m.MemberID, map[string]any{key: value}); err != nil {
				if errors.Is(err, store.ErrConstraint) {
					return fmt.Sprintf("❌ A member with phone %s already exists in this team.", value)
				}
				return fmt.Sprintf("❌ Could not update %s: invalid value %q.", field, value)
			}
			return fmt.Sprintf("✅ Updated %s to %s.", field, value)
		}
	}
}

func playerUpdateField(field string) (string, bool) {
	switch field {
	case "position":
		return "position", true
	case "phone", "phone_number":
		return "phone_number", true
	default:
		return "", false
	}
}

func memberUpdateField(field string) (string, bool) {
	switch field {
	case "phone", "phone_number":
		return "phone_number", true
	default:
		return "", false
	}
}

func registerUser(*Registry) Handler {
	return func(_ context.Context, inv Invocation) string {
		return "⚠️ Registration works through an invite link.\n" +
			"• Players and team members are added by team leadership.\n" +
			"• Once added, you receive a personal invite link that binds your Telegram account.\n" +
			"Contact your team leadership to get started."
	}
}

func orUnset(v string) string {
	if v == "" {
		return "Not set"
	}
	return v
}
