package agent

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kickai/kickai/internal/config"
	"github.com/kickai/kickai/internal/domain"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestProcessorUnconfiguredReportsFailure(t *testing.T) {
	p := NewProcessor(context.Background(), config.AISettings{Model: "llama3.1:8b"}, nil, quietLogger())
	if p.Available() {
		t.Fatal("expected unavailable without a base url")
	}
	if _, err := p.Process(context.Background(), domain.RoutedMessage{Text: "hello"}, "player"); err == nil {
		t.Fatal("expected an error from an unconfigured processor")
	}
}

func TestProcessorRejectsEmptyText(t *testing.T) {
	p := NewProcessor(context.Background(), config.AISettings{Model: "llama3.1:8b"}, nil, quietLogger())
	if _, err := p.Process(context.Background(), domain.RoutedMessage{Text: "   "}, "player"); err == nil {
		t.Fatal("expected an error for blank text")
	}
}

func TestSystemPromptPinsEnvelope(t *testing.T) {
	p := NewProcessor(context.Background(), config.AISettings{Model: "llama3.1:8b"}, nil, quietLogger())
	got := p.systemPrompt(domain.RoutedMessage{
		TelegramID: 12345,
		TeamID:     "KTI",
		ChatType:   domain.ChatTypeMain,
	}, "player")

	for _, want := range []string{"telegram_id: 12345", "team_id: KTI", "chat_type: main", `"player"`} {
		if !strings.Contains(got, want) {
			t.Fatalf("expected %q in system prompt, got %q", want, got)
		}
	}
}

func TestFactoryCreateAgentIdempotent(t *testing.T) {
	f := NewFactory(config.AISettings{Model: "llama3.1:8b"}, nil, quietLogger())
	ctx := context.Background()

	if err := f.CreateAgent(ctx, "diagnostic"); err != nil {
		t.Fatal(err)
	}
	if err := f.CreateAgent(ctx, "diagnostic"); err != nil {
		t.Fatalf("second create must be a no-op, got %v", err)
	}
	if err := f.CreateAgent(ctx, ""); err == nil {
		t.Fatal("expected an error for an empty name")
	}
	if _, ok := f.Agent("diagnostic"); !ok {
		t.Fatal("expected the diagnostic agent to be retained")
	}
	if names := f.Names(); len(names) != 1 {
		t.Fatalf("expected one agent, got %v", names)
	}
}

func TestSupportsTools(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/show" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(`{"capabilities":["completion","tools"]}`))
	}))
	defer srv.Close()

	ok, err := SupportsTools(context.Background(), srv.URL, "llama3.1:8b")
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected tools capability")
	}
}

func TestSupportsToolsAbsent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"capabilities":["completion"]}`))
	}))
	defer srv.Close()

	ok, err := SupportsTools(context.Background(), srv.URL, "gemma:2b")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("expected no tools capability")
	}
}
