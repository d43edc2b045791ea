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

// Players is the store-backed PlayerService.
type Players struct {
	store  store.Store
	logger *slog.Logger
	now    func() time.Time
}

// NewPlayers creates the player service.
func NewPlayers(st store.Store, logger *slog.Logger) *Players {
	if logger == nil {
		logger = slog.Default()
	}
	return &Players{store: st, logger: logger, now: time.Now}
}

// AddPlayer registers a new pending player. Phone and telegram_id are unique
// per team; violations wrap store.ErrConstraint.
func (s *Players) AddPlayer(ctx context.Context, teamID, fullName, phone string) (domain.Player, error) {
	if fullName == "" {
		return domain.Player{}, fmt.Errorf("add player: full name is required")
	}
	normalized, err := domain.NormalizePhone(phone)
	if err != nil {
		return domain.Player{}, fmt.Errorf("add player: %w", err)
	}

	coll := store.PlayersCollection(teamID)
	dup, err := s.store.Query(ctx, coll, []store.Filter{
		store.Where("phone_number", store.OpEq, normalized),
	})
	if err != nil {
		return domain.Player{}, fmt.Errorf("add player: %w", err)
	}
	if len(dup) > 0 {
		return domain.Player{}, duplicateErr("phone", normalized, teamID)
	}

	existing, err := s.store.Query(ctx, coll, nil)
	if err != nil {
		return domain.Player{}, fmt.Errorf("add player: %w", err)
	}
	playerID := s.freeID(existing, fullName)

	now := s.now().UTC()
	p := domain.Player{
		PlayerID:  playerID,
		TeamID:    teamID,
		Phone:     normalized,
		FullName:  fullName,
		Status:    domain.PlayerStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := s.store.Create(ctx, coll, p.Doc(), p.PlayerID); err != nil {
		return domain.Player{}, fmt.Errorf("add player: %w", err)
	}
	s.logger.Info("player added", "team_id", teamID, "player_id", p.PlayerID)
	return p, nil
}

// freeID picks the next sequence-plus-initials id not already taken.
func (s *Players) freeID(existing []store.Document, fullName string) string {
	taken := make(map[string]struct{}, len(existing))
	for _, doc := range existing {
		taken[doc.ID] = struct{}{}
	}
	for seq := len(existing) + 1; ; seq++ {
		id := domain.PlayerIDFor(seq, fullName)
		if _, dup := taken[id]; !dup {
			return id
		}
	}
}

// PlayerByID returns one player or a wrapped store.ErrNotFound.
func (s *Players) PlayerByID(ctx context.Context, teamID, playerID string) (domain.Player, error) {
	doc, err := s.store.Get(ctx, store.PlayersCollection(teamID), playerID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Player{}, notFoundErr("player", playerID, teamID)
		}
		return domain.Player{}, fmt.Errorf("get player: %w", err)
	}
	return domain.PlayerFromDoc(playerID, doc), nil
}

// PlayerByTelegramID returns the player bound to a Telegram account, or
// (nil, nil) when none is.
func (s *Players) PlayerByTelegramID(ctx context.Context, teamID string, telegramID int64) (*domain.Player, error) {
	if telegramID <= 0 {
		return nil, nil
	}
	docs, err := s.store.Query(ctx, store.PlayersCollection(teamID), []store.Filter{
		store.Where("telegram_id", store.OpEq, telegramID),
	}, store.WithLimit(1))
	if err != nil {
		return nil, fmt.Errorf("lookup player by telegram id: %w", err)
	}
	if len(docs) == 0 {
		return nil, nil
	}
	p := domain.PlayerFromDoc(docs[0].ID, docs[0].Data)
	return &p, nil
}

// ListPlayers returns every player in the team sorted by player id.
func (s *Players) ListPlayers(ctx context.Context, teamID string) ([]domain.Player, error) {
	docs, err := s.store.Query(ctx, store.PlayersCollection(teamID), nil)
	if err != nil {
		return nil, fmt.Errorf("list players: %w", err)
	}
	players := make([]domain.Player, 0, len(docs))
	for _, doc := range docs {
		players = append(players, domain.PlayerFromDoc(doc.ID, doc.Data))
	}
	sort.Slice(players, func(i, j int) bool { return players[i].PlayerID < players[j].PlayerID })
	return players, nil
}

// ActivePlayers returns players in active or approved status.
func (s *Players) ActivePlayers(ctx context.Context, teamID string) ([]domain.Player, error) {
	players, err := s.ListPlayers(ctx, teamID)
	if err != nil {
		return nil, err
	}
	active := players[:0]
	for _, p := range players {
		if p.Status == domain.PlayerStatusActive || p.Status == domain.PlayerStatusApproved {
			active = append(active, p)
		}
	}
	return active, nil
}

// ApprovePlayer moves a pending player to approved. Approving an already
// approved or active player is a no-op, not an error.
func (s *Players) ApprovePlayer(ctx context.Context, teamID, playerID string) (domain.Player, error) {
	p, err := s.PlayerByID(ctx, teamID, playerID)
	if err != nil {
		return domain.Player{}, err
	}
	if p.Status == domain.PlayerStatusApproved || p.Status == domain.PlayerStatusActive {
		return p, nil
	}
	return s.setStatus(ctx, teamID, p, domain.PlayerStatusApproved)
}

// RejectPlayer moves a player to rejected.
func (s *Players) RejectPlayer(ctx context.Context, teamID, playerID string) (domain.Player, error) {
	p, err := s.PlayerByID(ctx, teamID, playerID)
	if err != nil {
		return domain.Player{}, err
	}
	if p.Status == domain.PlayerStatusRejected {
		return p, nil
	}
	return s.setStatus(ctx, teamID, p, domain.PlayerStatusRejected)
}

func (s *Players) setStatus(ctx context.Context, teamID string, p domain.Player, status string) (domain.Player, error) {
	now := s.now().UTC()
	err := s.store.Update(ctx, store.PlayersCollection(teamID), p.PlayerID, map[string]any{
		"status":     status,
		"updated_at": now.Format(time.RFC3339),
	})
	if err != nil {
		return domain.Player{}, fmt.Errorf("update player status: %w", err)
	}
	p.Status = status
	p.UpdatedAt = now
	s.logger.Info("player status changed", "team_id", teamID, "player_id", p.PlayerID, "status", status)
	return p, nil
}

// UpdatePlayer merges a field patch into the player document. Position and
// status values are validated against the closed enumerations; phone is
// normalized and uniqueness-checked.
func (s *Players) UpdatePlayer(ctx context.Context, teamID, playerID string, patch map[string]any) (domain.Player, error) {
	if _, err := s.PlayerByID(ctx, teamID, playerID); err != nil {
		return domain.Player{}, err
	}
	clean := make(map[string]any, len(patch)+1)
	for k, v := range patch {
		switch k {
		case "position":
			pos, _ := v.(string)
			if !domain.ValidPosition(pos) {
				return domain.Player{}, fmt.Errorf("update player: invalid position %q", pos)
			}
			clean[k] = pos
		case "status":
			st, _ := v.(string)
			if !domain.ValidPlayerStatus(st) {
				return domain.Player{}, fmt.Errorf("update player: invalid status %q", st)
			}
			clean[k] = st
		case "phone_number":
			raw, _ := v.(string)
			normalized, err := domain.NormalizePhone(raw)
			if err != nil {
				return domain.Player{}, fmt.Errorf("update player: %w", err)
			}
			dup, err := s.store.Query(ctx, store.PlayersCollection(teamID), []store.Filter{
				store.Where("phone_number", store.OpEq, normalized),
			})
			if err != nil {
				return domain.Player{}, fmt.Errorf("update player: %w", err)
			}
			for _, d := range dup {
				if d.ID != playerID {
					return domain.Player{}, duplicateErr("phone", normalized, teamID)
				}
			}
			clean[k] = normalized
		default:
			clean[k] = v
		}
	}
	clean["updated_at"] = s.now().UTC().Format(time.RFC3339)
	if err := s.store.Update(ctx, store.PlayersCollection(teamID), playerID, clean); err != nil {
		return domain.Player{}, fmt.Errorf("update player: %w", err)
	}
	return s.PlayerByID(ctx, teamID, playerID)
}

// LinkTelegram binds a Telegram account to a player. The id must not already
// be bound to a different player in the team.
func (s *Players) LinkTelegram(ctx context.Context, teamID, playerID string, telegramID int64) error {
	if telegramID <= 0 {
		return fmt.Errorf("link player: telegram id must be positive")
	}
	bound, err := s.PlayerByTelegramID(ctx, teamID, telegramID)
	if err != nil {
		return err
	}
	if bound != nil && bound.PlayerID != playerID {
		return duplicateErr("telegram_id", fmt.Sprintf("%d", telegramID), teamID)
	}
	err = s.store.Update(ctx, store.PlayersCollection(teamID), playerID, map[string]any{
		"telegram_id": telegramID,
		"status":      domain.PlayerStatusActive,
		"updated_at":  s.now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return notFoundErr("player", playerID, teamID)
		}
		return fmt.Errorf("link player: %w", err)
	}
	s.logger.Info("player linked to telegram", "team_id", teamID, "player_id", playerID)
	return nil
}
