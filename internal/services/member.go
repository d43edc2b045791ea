package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/kickai/kickai/internal/domain"
	"github.com/kickai/kickai/internal/store"
)

// Members is the store-backed TeamMemberService.
type Members struct {
	store  store.Store
	logger *slog.Logger
	now    func() time.Time
}

// NewMembers creates the team-member service.
func NewMembers(st store.Store, logger *slog.Logger) *Members {
	if logger == nil {
		logger = slog.Default()
	}
	return &Members{store: st, logger: logger, now: time.Now}
}

// AddMember registers a club-side member. Empty role defaults to team_member.
func (s *Members) AddMember(ctx context.Context, teamID, fullName, phone, role string) (domain.TeamMember, error) {
	if fullName == "" {
		return domain.TeamMember{}, fmt.Errorf("add member: full name is required")
	}
	if role == "" {
		role = domain.RoleTeamMember
	}
	if !domain.ValidMemberRole(role) {
		return domain.TeamMember{}, fmt.Errorf("add member: invalid role %q", role)
	}
	normalized, err := domain.NormalizePhone(phone)
	if err != nil {
		return domain.TeamMember{}, fmt.Errorf("add member: %w", err)
	}

	coll := store.MembersCollection(teamID)
	dup, err := s.store.Query(ctx, coll, []store.Filter{
		store.Where("phone_number", store.OpEq, normalized),
	})
	if err != nil {
		return domain.TeamMember{}, fmt.Errorf("add member: %w", err)
	}
	if len(dup) > 0 {
		return domain.TeamMember{}, duplicateErr("phone", normalized, teamID)
	}

	existing, err := s.store.Query(ctx, coll, nil)
	if err != nil {
		return domain.TeamMember{}, fmt.Errorf("add member: %w", err)
	}
	memberID := s.freeID(existing, fullName)

	now := s.now().UTC()
	m := domain.TeamMember{
		MemberID:  memberID,
		TeamID:    teamID,
		Phone:     normalized,
		FullName:  fullName,
		Role:      role,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := s.store.Create(ctx, coll, m.Doc(), m.MemberID); err != nil {
		return domain.TeamMember{}, fmt.Errorf("add member: %w", err)
	}
	s.logger.Info("team member added", "team_id", teamID, "member_id", m.MemberID, "role", role)
	return m, nil
}

func (s *Members) freeID(existing []store.Document, fullName string) string {
	taken := make(map[string]struct{}, len(existing))
	for _, doc := range existing {
		taken[doc.ID] = struct{}{}
	}
	for seq := len(existing) + 1; ; seq++ {
		id := domain.MemberIDFor(seq, fullName)
		if _, dup := taken[id]; !dup {
			return id
		}
	}
}

// MemberByID returns one member or a wrapped store.ErrNotFound.
func (s *Members) MemberByID(ctx context.Context, teamID, memberID string) (domain.TeamMember, error) {
	doc, err := s.store.Get(ctx, store.MembersCollection(teamID), memberID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.TeamMember{}, notFoundErr("team member", memberID, teamID)
		}
		return domain.TeamMember{}, fmt.Errorf("get member: %w", err)
	}
	return domain.MemberFromDoc(memberID, doc), nil
}

// MemberByTelegramID returns the member bound to a Telegram account, or
// (nil, nil) when none is.
func (s *Members) MemberByTelegramID(ctx context.Context, teamID string, telegramID int64) (*domain.TeamMember, error) {
	if telegramID <= 0 {
		return nil, nil
	}
	docs, err := s.store.Query(ctx, store.MembersCollection(teamID), []store.Filter{
		store.Where("telegram_id", store.OpEq, telegramID),
	}, store.WithLimit(1))
	if err != nil {
		return nil, fmt.Errorf("lookup member by telegram id: %w", err)
	}
	if len(docs) == 0 {
		return nil, nil
	}
	m := domain.MemberFromDoc(docs[0].ID, docs[0].Data)
	return &m, nil
}

// ListMembers returns every member in the team sorted by member id.
func (s *Members) ListMembers(ctx context.Context, teamID string) ([]domain.TeamMember, error) {
	docs, err := s.store.Query(ctx, store.MembersCollection(teamID), nil)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	members := make([]domain.TeamMember, 0, len(docs))
	for _, doc := range docs {
		members = append(members, domain.MemberFromDoc(doc.ID, doc.Data))
	}
	sort.Slice(members, func(i, j int) bool { return members[i].MemberID < members[j].MemberID })
	return members, nil
}

// SetRole assigns a role from the closed enumeration.
func (s *Members) SetRole(ctx context.Context, teamID, memberID, role string) (domain.TeamMember, error) {
	if !domain.ValidMemberRole(role) {
		return domain.TeamMember{}, fmt.Errorf("set role: invalid role %q", role)
	}
	return s.patchMember(ctx, teamID, memberID, map[string]any{"role": role})
}

// ClearRole resets the member to the base team_member role.
func (s *Members) ClearRole(ctx context.Context, teamID, memberID string) (domain.TeamMember, error) {
	return s.patchMember(ctx, teamID, memberID, map[string]any{"role": domain.RoleTeamMember})
}

// PromoteToAdmin marks the member administrative. Idempotent.
func (s *Members) PromoteToAdmin(ctx context.Context, teamID, memberID string) (domain.TeamMember, error) {
	return s.patchMember(ctx, teamID, memberID, map[string]any{"is_admin": true})
}

// UpdateMember merges a field patch into the member document.
func (s *Members) UpdateMember(ctx context.Context, teamID, memberID string, patch map[string]any) (domain.TeamMember, error) {
	clean := make(map[string]any, len(patch))
	for k, v := range patch {
		switch k {
		case "role":
			role, _ := v.(string)
			if !domain.ValidMemberRole(role) {
				return domain.TeamMember{}, fmt.Errorf("update member: invalid role %q", role)
			}
			clean[k] = role
		case "phone_number":
			raw, _ := v.(string)
			normalized, err := domain.NormalizePhone(raw)
			if err != nil {
				return domain.TeamMember{}, fmt.Errorf("update member: %w", err)
			}
			dup, err := s.store.Query(ctx, store.MembersCollection(teamID), []store.Filter{
				store.Where("phone_number", store.OpEq, normalized),
			})
			if err != nil {
				return domain.TeamMember{}, fmt.Errorf("update member: %w", err)
			}
			for _, d := range dup {
				if d.ID != memberID {
					return domain.TeamMember{}, duplicateErr("phone", normalized, teamID)
				}
			}
			clean[k] = normalized
		default:
			clean[k] = v
		}
	}
	return s.patchMember(ctx, teamID, memberID, clean)
}

func (s *Members) patchMember(ctx context.Context, teamID, memberID string, patch map[string]any) (domain.TeamMember, error) {
	patch["updated_at"] = s.now().UTC().Format(time.RFC3339)
	err := s.store.Update(ctx, store.MembersCollection(teamID), memberID, patch)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.TeamMember{}, notFoundErr("team member", memberID, teamID)
		}
		return domain.TeamMember{}, fmt.Errorf("update member: %w", err)
	}
	return s.MemberByID(ctx, teamID, memberID)
}

// LinkTelegram binds a Telegram account to a member. The id must not already
// be bound to a different member in the team.
func (s *Members) LinkTelegram(ctx context.Context, teamID, memberID string, telegramID int64) error {
	if telegramID <= 0 {
		return fmt.Errorf("link member: telegram id must be positive")
	}
	bound, err := s.MemberByTelegramID(ctx, teamID, telegramID)
	if err != nil {
		return err
	}
	if bound != nil && bound.MemberID != memberID {
		return duplicateErr("telegram_id", fmt.Sprintf("%d", telegramID), teamID)
	}
	err = s.store.Update(ctx, store.MembersCollection(teamID), memberID, map[string]any{
		"telegram_id": telegramID,
		"updated_at":  s.now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return notFoundErr("team member", memberID, teamID)
		}
		return fmt.Errorf("link member: %w", err)
	}
	s.logger.Info("member linked to telegram", "team_id", teamID, "member_id", memberID)
	return nil
}
