package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/kickai/kickai/internal/domain"
	"github.com/kickai/kickai/internal/store"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestAddPlayerGeneratesSequencedID(t *testing.T) {
	st := store.NewMemory()
	s := NewPlayers(st, quietLogger())
	ctx := context.Background()

	p1, err := s.AddPlayer(ctx, "KTI", "Mark Hughes", "+447999888777")
	if err != nil {
		t.Fatalf("expected add to succeed, got %v", err)
	}
	if p1.PlayerID != "01MH" {
		t.Fatalf("expected 01MH, got %s", p1.PlayerID)
	}
	if p1.Status != domain.PlayerStatusPending {
		t.Fatalf("expected pending, got %s", p1.Status)
	}

	p2, err := s.AddPlayer(ctx, "KTI", "John Smith", "+447999888778")
	if err != nil {
		t.Fatal(err)
	}
	if p2.PlayerID != "02JS" {
		t.Fatalf("expected 02JS, got %s", p2.PlayerID)
	}
}

func TestAddPlayerDuplicatePhone(t *testing.T) {
	st := store.NewMemory()
	s := NewPlayers(st, quietLogger())
	ctx := context.Background()

	if _, err := s.AddPlayer(ctx, "KTI", "Mark Hughes", "+447999888777"); err != nil {
		t.Fatal(err)
	}
	// Different formatting of the same subscriber still collides.
	_, err := s.AddPlayer(ctx, "KTI", "Other Person", "07999 888777")
	if !errors.Is(err, store.ErrConstraint) {
		t.Fatalf("expected ErrConstraint, got %v", err)
	}
	if !strings.Contains(err.Error(), "already exists") {
		t.Fatalf("expected already exists message, got %q", err.Error())
	}

	players, err := s.ListPlayers(ctx, "KTI")
	if err != nil {
		t.Fatal(err)
	}
	if len(players) != 1 {
		t.Fatalf("expected duplicate add to create nothing, got %d players", len(players))
	}

	// Same phone in a different team is fine.
	if _, err := s.AddPlayer(ctx, "URH", "Other Person", "+447999888777"); err != nil {
		t.Fatalf("expected cross-team add to succeed, got %v", err)
	}
}

func TestApprovePlayerIdempotent(t *testing.T) {
	st := store.NewMemory()
	s := NewPlayers(st, quietLogger())
	ctx := context.Background()

	p, err := s.AddPlayer(ctx, "KTI", "Mark Hughes", "+447999888777")
	if err != nil {
		t.Fatal(err)
	}
	approved, err := s.ApprovePlayer(ctx, "KTI", p.PlayerID)
	if err != nil {
		t.Fatal(err)
	}
	if approved.Status != domain.PlayerStatusApproved {
		t.Fatalf("expected approved, got %s", approved.Status)
	}
	again, err := s.ApprovePlayer(ctx, "KTI", p.PlayerID)
	if err != nil {
		t.Fatalf("expected repeat approve to succeed, got %v", err)
	}
	if again.Status != domain.PlayerStatusApproved {
		t.Fatalf("expected approved after repeat, got %s", again.Status)
	}

	if _, err := s.ApprovePlayer(ctx, "KTI", "99ZZ"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown player, got %v", err)
	}
}

func TestLinkTelegramUniquePerTeam(t *testing.T) {
	st := store.NewMemory()
	s := NewPlayers(st, quietLogger())
	ctx := context.Background()

	p1, _ := s.AddPlayer(ctx, "KTI", "Mark Hughes", "+447999888777")
	p2, _ := s.AddPlayer(ctx, "KTI", "John Smith", "+447999888778")

	if err := s.LinkTelegram(ctx, "KTI", p1.PlayerID, 777); err != nil {
		t.Fatalf("expected link to succeed, got %v", err)
	}
	got, err := s.PlayerByTelegramID(ctx, "KTI", 777)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.PlayerID != p1.PlayerID {
		t.Fatalf("expected lookup to find %s, got %+v", p1.PlayerID, got)
	}
	if got.Status != domain.PlayerStatusActive {
		t.Fatalf("expected linked player active, got %s", got.Status)
	}

	if err := s.LinkTelegram(ctx, "KTI", p2.PlayerID, 777); !errors.Is(err, store.ErrConstraint) {
		t.Fatalf("expected ErrConstraint for reused telegram id, got %v", err)
	}
	// Relinking the same player is idempotent.
	if err := s.LinkTelegram(ctx, "KTI", p1.PlayerID, 777); err != nil {
		t.Fatalf("expected relink to succeed, got %v", err)
	}
}

func TestUpdatePlayerValidation(t *testing.T) {
	st := store.NewMemory()
	s := NewPlayers(st, quietLogger())
	ctx := context.Background()

	p, _ := s.AddPlayer(ctx, "KTI", "Mark Hughes", "+447999888777")

	updated, err := s.UpdatePlayer(ctx, "KTI", p.PlayerID, map[string]any{"position": "midfielder"})
	if err != nil {
		t.Fatal(err)
	}
	if updated.Position != domain.PositionMidfielder {
		t.Fatalf("expected midfielder, got %s", updated.Position)
	}

	if _, err := s.UpdatePlayer(ctx, "KTI", p.PlayerID, map[string]any{"position": "sweeper"}); err == nil {
		t.Fatal("expected invalid position to fail")
	}
	if _, err := s.UpdatePlayer(ctx, "KTI", p.PlayerID, map[string]any{"status": "retired"}); err == nil {
		t.Fatal("expected invalid status to fail")
	}
}

func TestMemberLifecycle(t *testing.T) {
	st := store.NewMemory()
	s := NewMembers(st, quietLogger())
	ctx := context.Background()

	m, err := s.AddMember(ctx, "KTI", "Jane Coach", "+447111222333", "")
	if err != nil {
		t.Fatal(err)
	}
	if m.MemberID != "M01JC" {
		t.Fatalf("expected M01JC, got %s", m.MemberID)
	}
	if m.Role != domain.RoleTeamMember {
		t.Fatalf("expected default role, got %s", m.Role)
	}

	m, err = s.SetRole(ctx, "KTI", m.MemberID, domain.RoleCoach)
	if err != nil {
		t.Fatal(err)
	}
	if m.Role != domain.RoleCoach {
		t.Fatalf("expected coach, got %s", m.Role)
	}

	m, err = s.PromoteToAdmin(ctx, "KTI", m.MemberID)
	if err != nil {
		t.Fatal(err)
	}
	if !m.IsAdmin {
		t.Fatal("expected admin after promotion")
	}

	m, err = s.ClearRole(ctx, "KTI", m.MemberID)
	if err != nil {
		t.Fatal(err)
	}
	if m.Role != domain.RoleTeamMember {
		t.Fatalf("expected role reset, got %s", m.Role)
	}

	if _, err := s.SetRole(ctx, "KTI", m.MemberID, "owner"); err == nil {
		t.Fatal("expected invalid role to fail")
	}
	if _, err := s.AddMember(ctx, "KTI", "Dup Phone", "+447111222333", ""); !errors.Is(err, store.ErrConstraint) {
		t.Fatalf("expected ErrConstraint, got %v", err)
	}
}

func TestMatchAttendanceFlow(t *testing.T) {
	st := store.NewMemory()
	players := NewPlayers(st, quietLogger())
	s := NewMatches(st, players, quietLogger())
	ctx := context.Background()

	p1, _ := players.AddPlayer(ctx, "KTI", "Mark Hughes", "+447999888777")
	p2, _ := players.AddPlayer(ctx, "KTI", "John Smith", "+447999888778")
	if _, err := players.ApprovePlayer(ctx, "KTI", p1.PlayerID); err != nil {
		t.Fatal(err)
	}
	if _, err := players.ApprovePlayer(ctx, "KTI", p2.PlayerID); err != nil {
		t.Fatal(err)
	}

	m, err := s.CreateMatch(ctx, "KTI", "Rovers", time.Now().Add(48*time.Hour), "Home Ground")
	if err != nil {
		t.Fatal(err)
	}

	if err := s.RecordAttendance(ctx, "KTI", m.MatchID, p1.PlayerID, domain.AttendanceYes, 999); err != nil {
		t.Fatal(err)
	}
	if err := s.RecordAttendance(ctx, "KTI", m.MatchID, p2.PlayerID, domain.AttendanceNo, 999); err != nil {
		t.Fatal(err)
	}
	// Re-recording replaces, never duplicates.
	if err := s.RecordAttendance(ctx, "KTI", m.MatchID, p2.PlayerID, domain.AttendanceYes, 999); err != nil {
		t.Fatal(err)
	}

	records, err := s.MatchAttendance(ctx, "KTI", m.MatchID)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}

	available, err := s.AvailablePlayers(ctx, "KTI", m.MatchID)
	if err != nil {
		t.Fatal(err)
	}
	if len(available) != 2 {
		t.Fatalf("expected both players available, got %d", len(available))
	}

	if err := s.RecordAttendance(ctx, "KTI", m.MatchID, p1.PlayerID, "perhaps", 999); err == nil {
		t.Fatal("expected invalid response to fail")
	}

	selected, err := s.SelectSquad(ctx, "KTI", m.MatchID, []string{p1.PlayerID, p2.PlayerID})
	if err != nil {
		t.Fatal(err)
	}
	if len(selected.Squad) != 2 {
		t.Fatalf("expected squad of 2, got %v", selected.Squad)
	}
	if _, err := s.SelectSquad(ctx, "KTI", m.MatchID, []string{"99ZZ"}); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected unknown player to fail, got %v", err)
	}
}

func TestBulkRecordAttendance(t *testing.T) {
	st := store.NewMemory()
	players := NewPlayers(st, quietLogger())
	s := NewMatches(st, players, quietLogger())
	ctx := context.Background()

	p1, _ := players.AddPlayer(ctx, "KTI", "Mark Hughes", "+447999888777")
	p2, _ := players.AddPlayer(ctx, "KTI", "John Smith", "+447999888778")
	m, _ := s.CreateMatch(ctx, "KTI", "Rovers", time.Now().Add(time.Hour), "")

	n, err := s.BulkRecordAttendance(ctx, "KTI", m.MatchID, map[string]string{
		p1.PlayerID: domain.AttendanceYes,
		p2.PlayerID: domain.AttendanceMaybe,
	}, 999)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("expected 2 written, got %d", n)
	}

	// An invalid response anywhere aborts before any write.
	if _, err := s.BulkRecordAttendance(ctx, "KTI", m.MatchID, map[string]string{
		p1.PlayerID: "nope",
	}, 999); err == nil {
		t.Fatal("expected invalid bulk response to fail")
	}
}
