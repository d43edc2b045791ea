package shared

import (
	"context"
	"testing"
)

func TestTraceIDRoundTrip(t *testing.T) {
	ctx := context.Background()
	if got := TraceID(ctx); got != "-" {
		t.Fatalf("expected '-' for absent trace id, got %q", got)
	}
	id := NewTraceID()
	ctx = WithTraceID(ctx, id)
	if got := TraceID(ctx); got != id {
		t.Fatalf("expected %q, got %q", id, got)
	}
}

func TestMessageContextRoundTrip(t *testing.T) {
	ctx := context.Background()
	ctx = WithTeamID(ctx, "KTI")
	ctx = WithTelegramID(ctx, 777)
	ctx = WithChatType(ctx, "leadership")

	if got := TeamID(ctx); got != "KTI" {
		t.Fatalf("expected KTI, got %q", got)
	}
	if got := TelegramID(ctx); got != 777 {
		t.Fatalf("expected 777, got %d", got)
	}
	if got := ChatType(ctx); got != "leadership" {
		t.Fatalf("expected leadership, got %q", got)
	}
}

func TestContextZeroValues(t *testing.T) {
	ctx := context.Background()
	if TeamID(ctx) != "" || TelegramID(ctx) != 0 || ChatType(ctx) != "" {
		t.Fatal("expected zero values on empty context")
	}
}
