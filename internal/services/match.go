package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/kickai/kickai/internal/domain"
	"github.com/kickai/kickai/internal/store"
)

// Matches is the store-backed MatchService.
type Matches struct {
	store   store.Store
	players PlayerService
	logger  *slog.Logger
	now     func() time.Time
}

// NewMatches creates the match service. The player service resolves squad
// and availability lookups.
func NewMatches(st store.Store, players PlayerService, logger *slog.Logger) *Matches {
	if logger == nil {
		logger = slog.Default()
	}
	return &Matches{store: st, players: players, logger: logger, now: time.Now}
}

// CreateMatch schedules a fixture.
func (s *Matches) CreateMatch(ctx context.Context, teamID, opponent string, kickoff time.Time, venue string) (domain.Match, error) {
	if opponent == "" {
		return domain.Match{}, fmt.Errorf("create match: opponent is required")
	}
	now := s.now().UTC()
	m := domain.Match{
		MatchID:   uuid.NewString(),
		TeamID:    teamID,
		Opponent:  opponent,
		KickOff:   kickoff,
		Venue:     venue,
		Status:    domain.MatchStatusScheduled,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := s.store.Create(ctx, store.MatchesCollection(teamID), m.Doc(), m.MatchID); err != nil {
		return domain.Match{}, fmt.Errorf("create match: %w", err)
	}
	s.logger.Info("match scheduled", "team_id", teamID, "match_id", m.MatchID, "opponent", opponent)
	return m, nil
}

// MatchByID returns one match or a wrapped store.ErrNotFound.
func (s *Matches) MatchByID(ctx context.Context, teamID, matchID string) (domain.Match, error) {
	doc, err := s.store.Get(ctx, store.MatchesCollection(teamID), matchID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Match{}, notFoundErr("match", matchID, teamID)
		}
		return domain.Match{}, fmt.Errorf("get match: %w", err)
	}
	return domain.MatchFromDoc(matchID, doc), nil
}

// ListMatches returns the team's fixtures sorted by kickoff time.
func (s *Matches) ListMatches(ctx context.Context, teamID string) ([]domain.Match, error) {
	docs, err := s.store.Query(ctx, store.MatchesCollection(teamID), nil)
	if err != nil {
		return nil, fmt.Errorf("list matches: %w", err)
	}
	matches := make([]domain.Match, 0, len(docs))
	for _, doc := range docs {
		matches = append(matches, domain.MatchFromDoc(doc.ID, doc.Data))
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].KickOff.Before(matches[j].KickOff) })
	return matches, nil
}

// attendanceDocID keys attendance by (match, player) so a later record for
// the same pair replaces the earlier one.
func attendanceDocID(matchID, playerID string) string {
	return matchID + ":" + playerID
}

// RecordAttendance upserts one player's response for a match.
func (s *Matches) RecordAttendance(ctx context.Context, teamID, matchID, playerID, response string, recordedBy int64) error {
	if !domain.ValidAttendanceResponse(response) {
		return fmt.Errorf("record attendance: invalid response %q", response)
	}
	if _, err := s.MatchByID(ctx, teamID, matchID); err != nil {
		return err
	}
	if _, err := s.players.PlayerByID(ctx, teamID, playerID); err != nil {
		return err
	}

	rec := domain.AttendanceRecord{
		MatchID:    matchID,
		PlayerID:   playerID,
		TeamID:     teamID,
		Response:   response,
		RecordedBy: recordedBy,
		RecordedAt: s.now().UTC(),
	}
	coll := store.AttendanceCollection(teamID)
	id := attendanceDocID(matchID, playerID)
	err := s.store.Update(ctx, coll, id, rec.Doc())
	if errors.Is(err, store.ErrNotFound) {
		_, err = s.store.Create(ctx, coll, rec.Doc(), id)
	}
	if err != nil {
		return fmt.Errorf("record attendance: %w", err)
	}
	return nil
}

// BulkRecordAttendance records responses for many players, returning the
// count written. Invalid entries abort before any write.
func (s *Matches) BulkRecordAttendance(ctx context.Context, teamID, matchID string, responses map[string]string, recordedBy int64) (int, error) {
	for playerID, response := range responses {
		if !domain.ValidAttendanceResponse(response) {
			return 0, fmt.Errorf("bulk attendance: invalid response %q for player %s", response, playerID)
		}
	}
	written := 0
	for playerID, response := range responses {
		if err := s.RecordAttendance(ctx, teamID, matchID, playerID, response, recordedBy); err != nil {
			return written, err
		}
		written++
	}
	return written, nil
}

// MatchAttendance returns every response recorded for a match, sorted by
// player id.
func (s *Matches) MatchAttendance(ctx context.Context, teamID, matchID string) ([]domain.AttendanceRecord, error) {
	docs, err := s.store.Query(ctx, store.AttendanceCollection(teamID), []store.Filter{
		store.Where("match_id", store.OpEq, matchID),
	})
	if err != nil {
		return nil, fmt.Errorf("match attendance: %w", err)
	}
	records := make([]domain.AttendanceRecord, 0, len(docs))
	for _, doc := range docs {
		records = append(records, domain.AttendanceFromDoc(doc.Data))
	}
	sort.Slice(records, func(i, j int) bool { return records[i].PlayerID < records[j].PlayerID })
	return records, nil
}

// PlayerAttendanceHistory returns one player's responses across matches,
// newest first.
func (s *Matches) PlayerAttendanceHistory(ctx context.Context, teamID, playerID string) ([]domain.AttendanceRecord, error) {
	docs, err := s.store.Query(ctx, store.AttendanceCollection(teamID), []store.Filter{
		store.Where("player_id", store.OpEq, playerID),
	})
	if err != nil {
		return nil, fmt.Errorf("attendance history: %w", err)
	}
	records := make([]domain.AttendanceRecord, 0, len(docs))
	for _, doc := range docs {
		records = append(records, domain.AttendanceFromDoc(doc.Data))
	}
	sort.Slice(records, func(i, j int) bool { return records[i].RecordedAt.After(records[j].RecordedAt) })
	return records, nil
}

// AvailablePlayers returns active players who answered yes for the match.
func (s *Matches) AvailablePlayers(ctx context.Context, teamID, matchID string) ([]domain.Player, error) {
	records, err := s.MatchAttendance(ctx, teamID, matchID)
	if err != nil {
		return nil, err
	}
	yes := make(map[string]struct{})
	for _, rec := range records {
		if rec.Response == domain.AttendanceYes {
			yes[rec.PlayerID] = struct{}{}
		}
	}
	active, err := s.players.ActivePlayers(ctx, teamID)
	if err != nil {
		return nil, err
	}
	available := make([]domain.Player, 0, len(yes))
	for _, p := range active {
		if _, ok := yes[p.PlayerID]; ok {
			available = append(available, p)
		}
	}
	return available, nil
}

// SelectSquad records the squad on the match. Every id must name an existing
// player.
func (s *Matches) SelectSquad(ctx context.Context, teamID, matchID string, playerIDs []string) (domain.Match, error) {
	m, err := s.MatchByID(ctx, teamID, matchID)
	if err != nil {
		return domain.Match{}, err
	}
	for _, id := range playerIDs {
		if _, err := s.players.PlayerByID(ctx, teamID, id); err != nil {
			return domain.Match{}, err
		}
	}
	squad := make([]any, len(playerIDs))
	for i, id := range playerIDs {
		squad[i] = id
	}
	err = s.store.Update(ctx, store.MatchesCollection(teamID), matchID, map[string]any{
		"squad":      squad,
		"updated_at": s.now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return domain.Match{}, fmt.Errorf("select squad: %w", err)
	}
	m.Squad = append([]string(nil), playerIDs...)
	s.logger.Info("squad selected", "team_id", teamID, "match_id", matchID, "size", len(playerIDs))
	return m, nil
}
