package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/kickai/kickai/internal/domain"
	"github.com/kickai/kickai/internal/store"
)

// Invite errors surfaced to the router/tools layer.
var (
	ErrInviteInvalid = errors.New("invite link invalid")
	ErrInviteExpired = errors.New("invite link expired")
	ErrInviteUsed    = errors.New("invite link already used")
)

// DefaultInviteTTL is how long a fresh invite link stays consumable.
const DefaultInviteTTL = 7 * 24 * time.Hour

// inviteClaims is the signed payload carried in the deep-link token.
type inviteClaims struct {
	TeamID string `json:"team_id"`
	jwt.RegisteredClaims
}

// Invites issues and consumes one-time signed invite links.
type Invites struct {
	store   store.Store
	players PlayerService
	members TeamMemberService
	secret  []byte
	// botUsername resolves the team's bot username for the deep link.
	botUsername func(teamID string) string
	ttl         time.Duration
	logger      *slog.Logger
	now         func() time.Time
}

// InvitesConfig wires the invite service.
type InvitesConfig struct {
	Store       store.Store
	Players     PlayerService
	Members     TeamMemberService
	SecretKey   string
	BotUsername func(teamID string) string
	TTL         time.Duration
	Logger      *slog.Logger
}

// NewInvites creates the invite service. The secret key must be non-empty;
// config validation enforces that before startup reaches here.
func NewInvites(cfg InvitesConfig) *Invites {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultInviteTTL
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.BotUsername == nil {
		cfg.BotUsername = func(string) string { return "" }
	}
	return &Invites{
		store:       cfg.Store,
		players:     cfg.Players,
		members:     cfg.Members,
		secret:      []byte(cfg.SecretKey),
		botUsername: cfg.BotUsername,
		ttl:         cfg.TTL,
		logger:      cfg.Logger,
		now:         time.Now,
	}
}

// CreateInviteLink signs a one-time token bound to the team and optional
// target entity, stores the link record and returns the deep-link URL.
func (s *Invites) CreateInviteLink(ctx context.Context, teamID string, target InviteTarget) (domain.InviteLink, string, error) {
	if teamID == "" {
		return domain.InviteLink{}, "", fmt.Errorf("create invite: team id is required")
	}
	if target.PlayerID != "" && target.MemberID != "" {
		return domain.InviteLink{}, "", fmt.Errorf("create invite: at most one target")
	}

	now := s.now().UTC()
	expires := now.Add(s.ttl)
	jti := uuid.NewString()
	claims := inviteClaims{
		TeamID: teamID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			ExpiresAt: jwt.NewNumericDate(expires),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return domain.InviteLink{}, "", fmt.Errorf("create invite: %w", err)
	}

	link := domain.InviteLink{
		LinkID:      jti,
		TeamID:      teamID,
		SecureToken: token,
		ExpiresAt:   expires,
		Status:      domain.InviteStatusActive,
		PlayerID:    target.PlayerID,
		MemberID:    target.MemberID,
		CreatedAt:   now,
	}
	if _, err := s.store.Create(ctx, store.InvitesCollection(teamID), link.Doc(), link.LinkID); err != nil {
		return domain.InviteLink{}, "", fmt.Errorf("create invite: %w", err)
	}

	url := fmt.Sprintf("https://t.me/%s?start=%s", s.botUsername(teamID), token)
	s.logger.Info("invite link created", "team_id", teamID, "link_id", jti)
	return link, url, nil
}

// Consume verifies a token, marks its link used and binds the consumer's
// Telegram account to the target entity. Single-use: a second consumption
// returns ErrInviteUsed.
func (s *Invites) Consume(ctx context.Context, token string, telegramID int64) (domain.InviteLink, error) {
	if telegramID <= 0 {
		return domain.InviteLink{}, fmt.Errorf("consume invite: telegram id must be positive")
	}

	claims := &inviteClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return domain.InviteLink{}, ErrInviteExpired
		}
		return domain.InviteLink{}, fmt.Errorf("%w: %v", ErrInviteInvalid, err)
	}
	if !parsed.Valid || claims.TeamID == "" || claims.ID == "" {
		return domain.InviteLink{}, ErrInviteInvalid
	}

	link, coll, err := s.lookupLink(ctx, claims.TeamID, claims.ID)
	if err != nil {
		return domain.InviteLink{}, err
	}

	now := s.now().UTC()
	switch {
	case link.Status == domain.InviteStatusUsed:
		return domain.InviteLink{}, ErrInviteUsed
	case !link.Consumable(now):
		return domain.InviteLink{}, ErrInviteExpired
	}

	if err := s.bindTarget(ctx, link, telegramID); err != nil {
		return domain.InviteLink{}, err
	}

	err = s.store.Update(ctx, coll, link.LinkID, map[string]any{
		"status":  domain.InviteStatusUsed,
		"used_at": now.Format(time.RFC3339),
		"used_by": telegramID,
	})
	if err != nil {
		return domain.InviteLink{}, fmt.Errorf("consume invite: %w", err)
	}
	link.Status = domain.InviteStatusUsed
	link.UsedAt = now
	link.UsedBy = telegramID

	s.appendActivationLog(ctx, link, telegramID, now)
	s.logger.Info("invite link consumed", "team_id", link.TeamID, "link_id", link.LinkID)
	return link, nil
}

// lookupLink reads the link record, preferring the team-scoped collection
// and tolerating legacy records in the global collection during rollover.
func (s *Invites) lookupLink(ctx context.Context, teamID, linkID string) (domain.InviteLink, string, error) {
	coll := store.InvitesCollection(teamID)
	doc, err := s.store.Get(ctx, coll, linkID)
	if errors.Is(err, store.ErrNotFound) {
		coll = store.LegacyInvitesCollection
		doc, err = s.store.Get(ctx, coll, linkID)
	}
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.InviteLink{}, "", ErrInviteInvalid
		}
		return domain.InviteLink{}, "", fmt.Errorf("consume invite: %w", err)
	}
	return domain.InviteFromDoc(linkID, doc), coll, nil
}

func (s *Invites) bindTarget(ctx context.Context, link domain.InviteLink, telegramID int64) error {
	switch {
	case link.PlayerID != "" && s.players != nil:
		return s.players.LinkTelegram(ctx, link.TeamID, link.PlayerID, telegramID)
	case link.MemberID != "" && s.members != nil:
		return s.members.LinkTelegram(ctx, link.TeamID, link.MemberID, telegramID)
	default:
		return nil
	}
}

func (s *Invites) appendActivationLog(ctx context.Context, link domain.InviteLink, telegramID int64, now time.Time) {
	entity, entityID := "", ""
	switch {
	case link.PlayerID != "":
		entity, entityID = "player", link.PlayerID
	case link.MemberID != "":
		entity, entityID = "team_member", link.MemberID
	}
	log := domain.ActivationLog{
		LinkID:     link.LinkID,
		TelegramID: telegramID,
		Entity:     entity,
		EntityID:   entityID,
		At:         now,
	}
	if _, err := s.store.Create(ctx, store.ActivationLogsCollection(link.TeamID), log.Doc(), ""); err != nil {
		// The consumption already succeeded; losing the audit row is not
		// worth failing the user.
		s.logger.Warn("activation log write failed", "team_id", link.TeamID, "link_id", link.LinkID, "error", err)
	}
}
