package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kickai/kickai/internal/services"
	"github.com/kickai/kickai/internal/store"
)

func recordAttendance(r *Registry) Handler {
	return func(ctx context.Context, inv Invocation) string {
		matches, msg := service[services.MatchService](r, MatchServiceName, "Match Service")
		if msg != "" {
			return msg
		}
		matchID, playerID, response := inv.Arg(0), inv.Arg(1), strings.ToLower(inv.Arg(2))
		err := matches.RecordAttendance(ctx, inv.TeamID, matchID, playerID, response, inv.TelegramID)
		if err != nil {
			switch {
			case errors.Is(err, store.ErrNotFound):
				return "❌ Match or player was not found in this team."
			case strings.Contains(err.Error(), "invalid response"):
				return fmt.Sprintf("❌ %s is not a valid response. Use yes, no or maybe.", response)
			default:
				return "❌ Could not record attendance. Please try again later."
			}
		}
		return fmt.Sprintf("✅ Attendance Recorded\n• Player %s answered %s for match %s.", playerID, response, matchID)
	}
}

func bulkRecordAttendance(r *Registry) Handler {
	return func(ctx context.Context, inv Invocation) string {
		matches, msg := service[services.MatchService](r, MatchServiceName, "Match Service")
		if msg != "" {
			return msg
		}
		matchID := inv.Arg(0)
		responses := make(map[string]string)
		for _, pair := range inv.Args[1:] {
			playerID, response, ok := strings.Cut(pair, "=")
			if !ok {
				return fmt.Sprintf("❌ %s is not a valid entry. Use player_id=response pairs.", pair)
			}
			responses[playerID] = strings.ToLower(response)
		}
		if len(responses) == 0 {
			return "❌ responses is required"
		}
		n, err := matches.BulkRecordAttendance(ctx, inv.TeamID, matchID, responses, inv.TelegramID)
		if err != nil {
			switch {
			case errors.Is(err, store.ErrNotFound):
				return "❌ Match or player was not found in this team."
			case strings.Contains(err.Error(), "invalid response"):
				return "❌ Responses must be yes, no or maybe."
			default:
				return "❌ Could not record attendance. Please try again later."
			}
		}
		return fmt.Sprintf("✅ Attendance Recorded\n• %d responses saved for match %s.", n, matchID)
	}
}

func getMatchAttendance(r *Registry) Handler {
	return func(ctx context.Context, inv Invocation) string {
		matches, msg := service[services.MatchService](r, MatchServiceName, "Match Service")
		if msg != "" {
			return msg
		}
		matchID := inv.Arg(0)
		records, err := matches.MatchAttendance(ctx, inv.TeamID, matchID)
		if err != nil {
			return "❌ Could not load attendance. Please try again later."
		}
		if len(records) == 0 {
			return fmt.Sprintf("⚠️ No attendance recorded for match %s yet.", matchID)
		}
		var b strings.Builder
		fmt.Fprintf(&b, "✅ Attendance for match %s (%d responses)\n", matchID, len(records))
		for _, rec := range records {
			fmt.Fprintf(&b, "• %s: %s\n", rec.PlayerID, rec.Response)
		}
		b.WriteString("Use /squad to select from the available players.")
		return b.String()
	}
}

func getPlayerAttendanceHistory(r *Registry) Handler {
	return func(ctx context.Context, inv Invocation) string {
		matches, msg := service[services.MatchService](r, MatchServiceName, "Match Service")
		if msg != "" {
			return msg
		}
		playerID := inv.Arg(0)
		records, err := matches.PlayerAttendanceHistory(ctx, inv.TeamID, playerID)
		if err != nil {
			return "❌ Could not load attendance history. Please try again later."
		}
		if len(records) == 0 {
			return fmt.Sprintf("⚠️ No attendance history for player %s yet.", playerID)
		}
		var b strings.Builder
		fmt.Fprintf(&b, "✅ Attendance history for %s (%d responses)\n", playerID, len(records))
		for _, rec := range records {
			fmt.Fprintf(&b, "• match %s: %s\n", rec.MatchID, rec.Response)
		}
		return b.String()
	}
}

func getAvailablePlayersForMatch(r *Registry) Handler {
	return func(ctx context.Context, inv Invocation) string {
		matches, msg := service[services.MatchService](r, MatchServiceName, "Match Service")
		if msg != "" {
			return msg
		}
		matchID := inv.Arg(0)
		players, err := matches.AvailablePlayers(ctx, inv.TeamID, matchID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Sprintf("❌ Match %s was not found in this team.", matchID)
			}
			return "❌ Could not load availability. Please try again later."
		}
		if len(players) == 0 {
			return fmt.Sprintf("⚠️ No players available for match %s yet.", matchID)
		}
		var b strings.Builder
		fmt.Fprintf(&b, "✅ Available for match %s (%d)\n", matchID, len(players))
		for _, p := range players {
			b.WriteString(playerLine(p))
			b.WriteString("\n")
		}
		b.WriteString("Use /squad to make the selection.")
		return b.String()
	}
}

func selectSquad(r *Registry) Handler {
	return func(ctx context.Context, inv Invocation) string {
		matches, msg := service[services.MatchService](r, MatchServiceName, "Match Service")
		if msg != "" {
			return msg
		}
		matchID := inv.Arg(0)
		playerIDs := inv.Args[1:]
		if len(playerIDs) == 0 {
			return "❌ player_ids is required"
		}
		m, err := matches.SelectSquad(ctx, inv.TeamID, matchID, playerIDs)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return "❌ Match or player was not found in this team."
			}
			return "❌ Could not select the squad. Please try again later."
		}
		var b strings.Builder
		fmt.Fprintf(&b, "✅ Squad Selected for match %s vs %s\n", m.MatchID, m.Opponent)
		for _, id := range m.Squad {
			fmt.Fprintf(&b, "• %s\n", id)
		}
		b.WriteString("The squad has been saved on the match.")
		return b.String()
	}
}
