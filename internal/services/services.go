// Package services holds the store-backed domain services the command tools
// dispatch into: player and team-member registries, match attendance, invite
// links and outbound messaging.
package services

import (
	"context"
	"fmt"
	"time"

	"github.com/kickai/kickai/internal/domain"
	"github.com/kickai/kickai/internal/store"
)

// PlayerService manages the per-team player registry.
type PlayerService interface {
	AddPlayer(ctx context.Context, teamID, fullName, phone string) (domain.Player, error)
	PlayerByID(ctx context.Context, teamID, playerID string) (domain.Player, error)
	PlayerByTelegramID(ctx context.Context, teamID string, telegramID int64) (*domain.Player, error)
	ListPlayers(ctx context.Context, teamID string) ([]domain.Player, error)
	ActivePlayers(ctx context.Context, teamID string) ([]domain.Player, error)
	ApprovePlayer(ctx context.Context, teamID, playerID string) (domain.Player, error)
	RejectPlayer(ctx context.Context, teamID, playerID string) (domain.Player, error)
	UpdatePlayer(ctx context.Context, teamID, playerID string, patch map[string]any) (domain.Player, error)
	LinkTelegram(ctx context.Context, teamID, playerID string, telegramID int64) error
}

// TeamMemberService manages the per-team club-side member registry.
type TeamMemberService interface {
	AddMember(ctx context.Context, teamID, fullName, phone, role string) (domain.TeamMember, error)
	MemberByID(ctx context.Context, teamID, memberID string) (domain.TeamMember, error)
	MemberByTelegramID(ctx context.Context, teamID string, telegramID int64) (*domain.TeamMember, error)
	ListMembers(ctx context.Context, teamID string) ([]domain.TeamMember, error)
	SetRole(ctx context.Context, teamID, memberID, role string) (domain.TeamMember, error)
	ClearRole(ctx context.Context, teamID, memberID string) (domain.TeamMember, error)
	PromoteToAdmin(ctx context.Context, teamID, memberID string) (domain.TeamMember, error)
	UpdateMember(ctx context.Context, teamID, memberID string, patch map[string]any) (domain.TeamMember, error)
	LinkTelegram(ctx context.Context, teamID, memberID string, telegramID int64) error
}

// MatchService manages fixtures and attendance.
type MatchService interface {
	CreateMatch(ctx context.Context, teamID, opponent string, kickoff time.Time, venue string) (domain.Match, error)
	MatchByID(ctx context.Context, teamID, matchID string) (domain.Match, error)
	ListMatches(ctx context.Context, teamID string) ([]domain.Match, error)
	RecordAttendance(ctx context.Context, teamID, matchID, playerID, response string, recordedBy int64) error
	BulkRecordAttendance(ctx context.Context, teamID, matchID string, responses map[string]string, recordedBy int64) (int, error)
	MatchAttendance(ctx context.Context, teamID, matchID string) ([]domain.AttendanceRecord, error)
	PlayerAttendanceHistory(ctx context.Context, teamID, playerID string) ([]domain.AttendanceRecord, error)
	AvailablePlayers(ctx context.Context, teamID, matchID string) ([]domain.Player, error)
	SelectSquad(ctx context.Context, teamID, matchID string, playerIDs []string) (domain.Match, error)
}

// CommunicationService sends outbound messages through the active bot
// transport.
type CommunicationService interface {
	SendMessage(ctx context.Context, teamID string, chatID int64, text string) error
	SendAnnouncement(ctx context.Context, teamID, text string) error
	SendToLeadership(ctx context.Context, teamID, text string) error
	SendPoll(ctx context.Context, teamID, question string, options []string) error
}

// InviteTarget names the entity an invite link binds on consumption. At most
// one of the ids is set.
type InviteTarget struct {
	PlayerID string
	MemberID string
}

// InviteService issues and consumes one-time signed invite links.
type InviteService interface {
	CreateInviteLink(ctx context.Context, teamID string, target InviteTarget) (domain.InviteLink, string, error)
	Consume(ctx context.Context, token string, telegramID int64) (domain.InviteLink, error)
}

// duplicateErr wraps store.ErrConstraint so callers can match uniqueness
// violations with errors.Is while the message names the conflicting field.
func duplicateErr(field, value, teamID string) error {
	return fmt.Errorf("%s %s already exists in team %s: %w", field, value, teamID, store.ErrConstraint)
}

// notFoundErr wraps store.ErrNotFound with entity context.
func notFoundErr(entity, id, teamID string) error {
	return fmt.Errorf("%s %s not found in team %s: %w", entity, id, teamID, store.ErrNotFound)
}
