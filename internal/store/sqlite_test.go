package store

import (
	"context"
	"path/filepath"
	"testing"
)

func TestSQLitePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "kickai.db")

	s, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := s.Create(ctx, TeamsCollection, map[string]any{
		"name": "Kick Thunder", "status": "active", "main_chat_id": int64(-1001),
	}, "KTI"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	s2, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()

	doc, err := s2.Get(ctx, TeamsCollection, "KTI")
	if err != nil {
		t.Fatalf("get after reopen: %v", err)
	}
	if doc["name"] != "Kick Thunder" {
		t.Fatalf("payload lost across reopen: %v", doc)
	}
	// JSON round trips numbers as float64; filters still match.
	docs, err := s2.Query(ctx, TeamsCollection, []Filter{Where("main_chat_id", OpEq, int64(-1001))})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("expected 1 team, got %d", len(docs))
	}
}

func TestSQLiteMigrationsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kickai.db")
	for i := 0; i < 2; i++ {
		s, err := OpenSQLite(path)
		if err != nil {
			t.Fatalf("open %d: %v", i, err)
		}
		if err := s.Ping(context.Background()); err != nil {
			t.Fatalf("ping %d: %v", i, err)
		}
		if err := s.Close(); err != nil {
			t.Fatalf("close %d: %v", i, err)
		}
	}
}
