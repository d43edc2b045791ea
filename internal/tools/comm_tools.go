package tools

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/kickai/kickai/internal/services"
)

func sendAnnouncement(r *Registry) Handler {
	return func(ctx context.Context, inv Invocation) string {
		comms, msg := service[services.CommunicationService](r, CommunicationServiceName, "Communication Service")
		if msg != "" {
			return msg
		}
		text := strings.Join(inv.Args, " ")
		if strings.TrimSpace(text) == "" {
			return "❌ message is required"
		}
		if err := comms.SendAnnouncement(ctx, inv.TeamID, "📣 "+text); err != nil {
			return "❌ Could not send the announcement. Please try again later."
		}
		return "✅ Announcement sent to the main chat."
	}
}

func sendMessage(r *Registry) Handler {
	return func(ctx context.Context, inv Invocation) string {
		comms, msg := service[services.CommunicationService](r, CommunicationServiceName, "Communication Service")
		if msg != "" {
			return msg
		}
		chatID, err := strconv.ParseInt(inv.Arg(0), 10, 64)
		if err != nil {
			return fmt.Sprintf("❌ %s is not a valid chat id.", inv.Arg(0))
		}
		text := strings.Join(inv.Args[1:], " ")
		if strings.TrimSpace(text) == "" {
			return "❌ message is required"
		}
		if err := comms.SendMessage(ctx, inv.TeamID, chatID, text); err != nil {
			return "❌ Could not send the message. Please try again later."
		}
		return fmt.Sprintf("✅ Message sent to chat %d.", chatID)
	}
}

// sendTelegramMessage is the raw transport send the NL agent uses when it has
// already resolved a chat id; same contract as send_message.
func sendTelegramMessage(r *Registry) Handler {
	return sendMessage(r)
}

func sendPoll(r *Registry) Handler {
	return func(ctx context.Context, inv Invocation) string {
		comms, msg := service[services.CommunicationService](r, CommunicationServiceName, "Communication Service")
		if msg != "" {
			return msg
		}
		question := inv.Arg(0)
		options := inv.Args[1:]
		if len(options) < 2 {
			return "❌ at least two options are required"
		}
		if err := comms.SendPoll(ctx, inv.TeamID, question, options); err != nil {
			return "❌ Could not send the poll. Please try again later."
		}
		return fmt.Sprintf("✅ Poll sent to the main chat with %d options.", len(options))
	}
}

func getInviteLink(r *Registry) Handler {
	return func(ctx context.Context, inv Invocation) string {
		invites, msg := service[services.InviteService](r, InviteServiceName, "Invite Service")
		if msg != "" {
			return msg
		}
		target := services.InviteTarget{}
		switch strings.ToLower(inv.Arg(0)) {
		case "player":
			target.PlayerID = inv.Arg(1)
		case "member":
			target.MemberID = inv.Arg(1)
		case "":
			// untargeted link: binds nobody, grants chat join only
		default:
			return fmt.Sprintf("❌ %s is not a valid target. Use player <id> or member <id>.", inv.Arg(0))
		}
		link, url, err := invites.CreateInviteLink(ctx, inv.TeamID, target)
		if err != nil {
			return "❌ Could not create an invite link. Please try again later."
		}
		var b strings.Builder
		b.WriteString("✅ Invite Link Created\n")
		fmt.Fprintf(&b, "🔗 %s\n", url)
		fmt.Fprintf(&b, "• Expires: %s\n", link.ExpiresAt.Format("2006-01-02 15:04 MST"))
		b.WriteString("The link is single-use.")
		return b.String()
	}
}
