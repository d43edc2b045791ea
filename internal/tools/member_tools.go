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

func memberLine(m domain.TeamMember) string {
	role := m.Role
	if m.IsAdmin {
		role += ", admin"
	}
	return fmt.Sprintf("• %s (%s) — %s", m.FullName, m.MemberID, role)
}

func memberRegistration(r *Registry) Handler {
	return func(ctx context.Context, inv Invocation) string {
		members, msg := service[services.TeamMemberService](r, TeamMemberServiceName, "Team Member Service")
		if msg != "" {
			return msg
		}
		invites, _ := service[services.InviteService](r, InviteServiceName, "Invite Service")

		name, phone, role := inv.Arg(0), inv.Arg(1), inv.Arg(2)
		m, err := members.AddMember(ctx, inv.TeamID, name, phone, role)
		if err != nil {
			switch {
			case errors.Is(err, store.ErrConstraint):
				return fmt.Sprintf("❌ A team member with phone %s already exists in this team.", phone)
			case domain.IsBadPhone(err):
				return fmt.Sprintf("❌ %s is not a valid phone number.", phone)
			case strings.Contains(err.Error(), "invalid role"):
				return fmt.Sprintf("❌ %s is not a valid role. Known roles: %s.", role, strings.Join(domain.MemberRoles(), ", "))
			default:
				return "❌ Could not add the team member. Please try again later."
			}
		}

		var b strings.Builder
		b.WriteString("✅ Team Member Added Successfully!\n")
		fmt.Fprintf(&b, "• Name: %s\n", m.FullName)
		fmt.Fprintf(&b, "• Member ID: %s\n", m.MemberID)
		fmt.Fprintf(&b, "• Role: %s\n", m.Role)
		if invites != nil {
			if _, url, err := invites.CreateInviteLink(ctx, inv.TeamID, services.InviteTarget{MemberID: m.MemberID}); err == nil {
				fmt.Fprintf(&b, "🔗 Invite Link: %s\n", url)
			}
		}
		b.WriteString("Share the invite link with the member to finish registration.")
		return b.String()
	}
}

func getMyMemberStatus(r *Registry) Handler {
	return func(ctx context.Context, inv Invocation) string {
		members, msg := service[services.TeamMemberService](r, TeamMemberServiceName, "Team Member Service")
		if msg != "" {
			return msg
		}
		m, err := members.MemberByTelegramID(ctx, inv.TeamID, inv.TelegramID)
		if err != nil {
			return "❌ Could not look up your record. Please try again later."
		}
		if m == nil {
			return "⚠️ You are not registered as a team member. Contact your team leadership for an invite link."
		}
		var b strings.Builder
		b.WriteString("✅ Your Team Member Record\n")
		fmt.Fprintf(&b, "• Name: %s\n", m.FullName)
		fmt.Fprintf(&b, "• Member ID: %s\n", m.MemberID)
		fmt.Fprintf(&b, "• Role: %s\n", m.Role)
		fmt.Fprintf(&b, "• Admin: %t", m.IsAdmin)
		return b.String()
	}
}

func getTeamMembers(r *Registry) Handler {
	return func(ctx context.Context, inv Invocation) string {
		members, msg := service[services.TeamMemberService](r, TeamMemberServiceName, "Team Member Service")
		if msg != "" {
			return msg
		}
		list, err := members.ListMembers(ctx, inv.TeamID)
		if err != nil {
			return "❌ Could not list team members. Please try again later."
		}
		if len(list) == 0 {
			return "⚠️ No team members registered in this team yet."
		}
		var b strings.Builder
		fmt.Fprintf(&b, "✅ Team Members (%d)\n", len(list))
		for _, m := range list {
			b.WriteString(memberLine(m))
			b.WriteString("\n")
		}
		b.WriteString("Use /addmember to add another member.")
		return b.String()
	}
}

func addMemberRole(r *Registry) Handler {
	return func(ctx context.Context, inv Invocation) string {
		members, msg := service[services.TeamMemberService](r, TeamMemberServiceName, "Team Member Service")
		if msg != "" {
			return msg
		}
		memberID, role := inv.Arg(0), inv.Arg(1)
		m, err := members.SetRole(ctx, inv.TeamID, memberID, role)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Sprintf("❌ Team member %s was not found in this team.", memberID)
			}
			return fmt.Sprintf("❌ %s is not a valid role. Known roles: %s.", role, strings.Join(domain.MemberRoles(), ", "))
		}
		return fmt.Sprintf("✅ Role Updated\n• %s (%s) is now %s.", m.FullName, m.MemberID, m.Role)
	}
}

func removeMemberRole(r *Registry) Handler {
	return func(ctx context.Context, inv Invocation) string {
		members, msg := service[services.TeamMemberService](r, TeamMemberServiceName, "Team Member Service")
		if msg != "" {
			return msg
		}
		memberID := inv.Arg(0)
		m, err := members.ClearRole(ctx, inv.TeamID, memberID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Sprintf("❌ Team member %s was not found in this team.", memberID)
			}
			return "❌ Could not update the role. Please try again later."
		}
		return fmt.Sprintf("✅ Role Reset\n• %s (%s) is back to %s.", m.FullName, m.MemberID, m.Role)
	}
}

func promoteMemberToAdmin(r *Registry) Handler {
	return func(ctx context.Context, inv Invocation) string {
		members, msg := service[services.TeamMemberService](r, TeamMemberServiceName, "Team Member Service")
		if msg != "" {
			return msg
		}
		memberID := inv.Arg(0)
		m, err := members.PromoteToAdmin(ctx, inv.TeamID, memberID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Sprintf("❌ Team member %s was not found in this team.", memberID)
			}
			return "❌ Could not promote the member. Please try again later."
		}
		return fmt.Sprintf("✅ Member Promoted\n• %s (%s) is now a team administrator.", m.FullName, m.MemberID)
	}
}

func getMyInfo(r *Registry) Handler {
	return func(ctx context.Context, inv Invocation) string {
		if inv.ChatType == domain.ChatTypeMain {
			return getMyStatus(r)(ctx, inv)
		}
		return getMyMemberStatus(r)(ctx, inv)
	}
}
