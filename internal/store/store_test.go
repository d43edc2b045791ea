package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

// contract runs the port contract against any driver.
func contract(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()
	coll := PlayersCollection("KTI")

	id, err := s.Create(ctx, coll, map[string]any{
		"player_id": "01MH", "team_id": "KTI", "full_name": "Mark Hughes",
		"phone_number": "+447999888777", "status": "pending", "shirt_number": int64(9),
	}, "01MH")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if id != "01MH" {
		t.Fatalf("expected caller id kept, got %s", id)
	}

	// Duplicate id is a constraint violation.
	if _, err := s.Create(ctx, coll, map[string]any{"player_id": "01MH"}, "01MH"); !errors.Is(err, ErrConstraint) {
		t.Fatalf("expected ErrConstraint for duplicate id, got %v", err)
	}

	// Round trip.
	doc, err := s.Get(ctx, coll, "01MH")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if doc["full_name"] != "Mark Hughes" {
		t.Fatalf("payload lost: %v", doc)
	}

	// Update merges; unknown keys survive.
	if err := s.Update(ctx, coll, "01MH", map[string]any{"status": "active"}); err != nil {
		t.Fatalf("update: %v", err)
	}
	doc, err = s.Get(ctx, coll, "01MH")
	if err != nil {
		t.Fatalf("get after update: %v", err)
	}
	if doc["status"] != "active" {
		t.Fatalf("patch not applied: %v", doc["status"])
	}
	if _, ok := doc["shirt_number"]; !ok {
		t.Fatalf("unknown key dropped on update: %v", doc)
	}

	// Missing documents are reported, never swallowed.
	if _, err := s.Get(ctx, coll, "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := s.Update(ctx, coll, "nope", map[string]any{"x": 1}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on update, got %v", err)
	}
	if err := s.Delete(ctx, coll, "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on delete, got %v", err)
	}

	// Generated ids.
	genID, err := s.Create(ctx, coll, map[string]any{"player_id": "02AB", "team_id": "KTI",
		"full_name": "Alice Brown", "phone_number": "+447111222333", "status": "pending"}, "")
	if err != nil {
		t.Fatalf("create with generated id: %v", err)
	}
	if genID == "" {
		t.Fatal("expected generated id")
	}

	// Query: conjunction semantics.
	docs, err := s.Query(ctx, coll, []Filter{
		Where("team_id", OpEq, "KTI"),
		Where("status", OpEq, "pending"),
	})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("expected 1 pending, got %d", len(docs))
	}
	if docs[0].Data["full_name"] != "Alice Brown" {
		t.Fatalf("wrong document matched: %v", docs[0].Data)
	}

	// Query with membership operator.
	docs, err = s.Query(ctx, coll, []Filter{
		Where("status", OpIn, []any{"pending", "active"}),
	})
	if err != nil {
		t.Fatalf("query in: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("expected 2, got %d", len(docs))
	}

	// Ordering and limit.
	docs, err = s.Query(ctx, coll, nil, WithOrderBy("full_name", false), WithLimit(1))
	if err != nil {
		t.Fatalf("query ordered: %v", err)
	}
	if len(docs) != 1 || docs[0].Data["full_name"] != "Alice Brown" {
		t.Fatalf("expected ordered first Alice Brown, got %v", docs)
	}

	// Collections listing includes ours.
	names, err := s.Collections(ctx)
	if err != nil {
		t.Fatalf("collections: %v", err)
	}
	found := false
	for _, n := range names {
		if n == coll {
			found = true
		}
	}
	if !found {
		t.Fatalf("collection %s missing from %v", coll, names)
	}

	// Delete.
	if err := s.Delete(ctx, coll, genID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.Get(ctx, coll, genID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}

	if err := s.Ping(ctx); err != nil {
		t.Fatalf("ping: %v", err)
	}
}

func TestMemoryContract(t *testing.T) {
	contract(t, NewMemory())
}

func TestSQLiteContract(t *testing.T) {
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "kickai.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer s.Close()
	contract(t, s)
}

func TestMemoryIsolation(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	original := map[string]any{"name": "Kick Thunder", "nested": map[string]any{"k": "v"}}
	if _, err := m.Create(ctx, TeamsCollection, original, "KTI"); err != nil {
		t.Fatalf("create: %v", err)
	}

	// Mutating the caller's map must not affect the stored copy.
	original["name"] = "mutated"
	original["nested"].(map[string]any)["k"] = "mutated"

	doc, err := m.Get(ctx, TeamsCollection, "KTI")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if doc["name"] != "Kick Thunder" {
		t.Fatalf("store aliased caller map: %v", doc)
	}
	if doc["nested"].(map[string]any)["k"] != "v" {
		t.Fatalf("store aliased nested map: %v", doc)
	}

	// Mutating a returned map must not affect the store.
	doc["name"] = "mutated again"
	doc2, _ := m.Get(ctx, TeamsCollection, "KTI")
	if doc2["name"] != "Kick Thunder" {
		t.Fatalf("returned map aliased store: %v", doc2)
	}
}

func TestMemorySetError(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	m.SetError(ErrUnavailable)
	if _, err := m.Get(ctx, TeamsCollection, "KTI"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected forced error, got %v", err)
	}
	if err := m.Ping(ctx); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected forced ping error, got %v", err)
	}
	m.SetError(nil)
	if err := m.Ping(ctx); err != nil {
		t.Fatalf("expected recovery, got %v", err)
	}
}

func TestTeamScopedCollectionNames(t *testing.T) {
	if got := PlayersCollection("KTI"); got != "kickai_KTI_players" {
		t.Fatalf("unexpected players collection %s", got)
	}
	if got := MembersCollection("KTI"); got != "kickai_KTI_team_members" {
		t.Fatalf("unexpected members collection %s", got)
	}
	if got := InvitesCollection("KTI"); got != "kickai_KTI_invite_links" {
		t.Fatalf("unexpected invites collection %s", got)
	}
	if got := ActivationLogsCollection("KTI"); got != "kickai_KTI_activation_logs" {
		t.Fatalf("unexpected activation logs collection %s", got)
	}
	if got := TeamFromCollection("kickai_KTI_team_members"); got != "KTI" {
		t.Fatalf("expected KTI, got %q", got)
	}
	if got := TeamFromCollection(TeamsCollection); got != "" {
		t.Fatalf("global collection has no team, got %q", got)
	}
}

func TestFilterComparisons(t *testing.T) {
	doc := map[string]any{
		"telegram_id": int64(777),
		"score":       float64(12),
		"name":        "mark",
	}
	cases := []struct {
		f    Filter
		want bool
	}{
		{Where("telegram_id", OpEq, int64(777)), true},
		{Where("telegram_id", OpEq, 777), true},        // int vs int64
		{Where("telegram_id", OpEq, float64(777)), true}, // json decode shape
		{Where("score", OpGt, 10), true},
		{Where("score", OpLt, 10), false},
		{Where("name", OpGte, "mark"), true},
		{Where("missing", OpEq, "x"), false},
		{Where("name", OpIn, []string{"mark", "zed"}), true},
		{Where("telegram_id", OpIn, []int64{1, 777}), true},
	}
	for i, c := range cases {
		if got := matchOne(doc, c.f); got != c.want {
			t.Fatalf("case %d (%v): expected %v, got %v", i, c.f, c.want, got)
		}
	}
}
