package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/kickai/kickai/internal/bus"
	"github.com/kickai/kickai/internal/domain"
	"github.com/kickai/kickai/internal/fleet"
	"github.com/kickai/kickai/internal/registry"
	"github.com/kickai/kickai/internal/store"
	"github.com/kickai/kickai/internal/teamcache"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeFleet struct {
	states map[string]fleet.State
}

func (f fakeFleet) ListRunning() []string {
	var ids []string
	for id, s := range f.states {
		if s == fleet.StateRunning {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

func (f fakeFleet) Status(teamID string) (fleet.State, bool) {
	s, ok := f.states[teamID]
	return s, ok
}

func cacheWithTeams(t *testing.T, ids ...string) *teamcache.Cache {
	t.Helper()
	st := store.NewMemory()
	ctx := context.Background()
	for _, id := range ids {
		_, err := st.Create(ctx, store.TeamsCollection, map[string]any{
			"team_id":            id,
			"bot_token":          "tok",
			"main_chat_id":       "-1",
			"leadership_chat_id": "-2",
		}, id)
		if err != nil {
			t.Fatal(err)
		}
	}
	cache := teamcache.New(st, quietLogger())
	if err := cache.Initialize(ctx); err != nil {
		t.Fatal(err)
	}
	return cache
}

func getJSON(t *testing.T, h http.Handler, path string) (int, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON from %s: %v", path, err)
	}
	return rec.Code, body
}

func TestHealthOKWithoutTeams(t *testing.T) {
	g := New(Config{
		Fleet:  fakeFleet{},
		Cache:  cacheWithTeams(t),
		Logger: quietLogger(),
	})
	code, body := getJSON(t, g.Handler(), "/health")
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if body["status"] != "ok" || body["bot_running"] != false {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestHealthDegradedWhenNoWorkersButTeamsExist(t *testing.T) {
	g := New(Config{
		Fleet:  fakeFleet{},
		Cache:  cacheWithTeams(t, "KTI"),
		Logger: quietLogger(),
	})
	code, body := getJSON(t, g.Handler(), "/health")
	if code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", code)
	}
	if body["status"] != "degraded" {
		t.Fatalf("expected degraded, got %v", body["status"])
	}
}

func TestHealthOKWithRunningWorker(t *testing.T) {
	g := New(Config{
		Fleet:  fakeFleet{states: map[string]fleet.State{"KTI": fleet.StateRunning}},
		Cache:  cacheWithTeams(t, "KTI"),
		Logger: quietLogger(),
	})
	code, body := getJSON(t, g.Handler(), "/health")
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if body["bot_running"] != true {
		t.Fatalf("expected bot_running, got %v", body)
	}
}

func TestHealthDetailed(t *testing.T) {
	reg := registry.New(registry.Config{Logger: quietLogger()})
	if err := reg.Register(domain.ServiceDefinition{Name: "data_store", ServiceType: domain.ServiceTypeCore}, struct{}{}); err != nil {
		t.Fatal(err)
	}
	g := New(Config{
		Fleet: fakeFleet{states: map[string]fleet.State{
			"KTI": fleet.StateRunning,
			"OLD": fleet.StateFailed,
		}},
		Cache:       cacheWithTeams(t, "KTI", "OLD", "NEW"),
		Registry:    reg,
		Version:     "1.2.3",
		Fingerprint: "cfg-abc",
		Logger:      quietLogger(),
	})

	code, body := getJSON(t, g.Handler(), "/health/detailed")
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	workers, ok := body["workers"].(map[string]any)
	if !ok {
		t.Fatalf("expected workers map, got %v", body["workers"])
	}
	if workers["KTI"] != "running" || workers["OLD"] != "failed" || workers["NEW"] != "not_started" {
		t.Fatalf("unexpected workers %v", workers)
	}
	if body["cache_initialized"] != true {
		t.Fatalf("expected cache_initialized, got %v", body)
	}
	if body["version"] != "1.2.3" || body["config_fingerprint"] != "cfg-abc" {
		t.Fatalf("expected version and fingerprint, got %v", body)
	}
	if _, ok := body["registry"]; !ok {
		t.Fatal("expected registry stats")
	}
}

func TestMockUISendAndHistory(t *testing.T) {
	hub := fleet.NewMockHub()
	transport := hub.Transport("KTI")
	updates, err := transport.Open(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	g := New(Config{
		Fleet:   fakeFleet{},
		Cache:   cacheWithTeams(t),
		MockHub: hub,
		Logger:  quietLogger(),
	})
	h := g.Handler()

	body := bytes.NewBufferString(`{"user_id": 777, "chat_id": -100111, "text": "/help"}`)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/send_message", body))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	select {
	case upd := <-updates:
		if upd.TelegramID != 777 || upd.ChatID != -100111 || upd.Text != "/help" {
			t.Fatalf("unexpected update %+v", upd)
		}
	case <-time.After(time.Second):
		t.Fatal("expected the injected update on the transport")
	}

	// A bot reply lands in the per-chat history.
	if err := transport.Send(context.Background(), -100111, "🤖 KICKAI Commands"); err != nil {
		t.Fatal(err)
	}
	code, resp := getJSON(t, h, "/api/chats/-100111/messages?limit=10")
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	msgs, ok := resp["messages"].([]any)
	if !ok || len(msgs) != 1 {
		t.Fatalf("expected one message, got %v", resp["messages"])
	}
}

func TestMockUIRejectsBadRequests(t *testing.T) {
	g := New(Config{MockHub: fleet.NewMockHub(), Logger: quietLogger()})
	h := g.Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/send_message", strings.NewReader("{")))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid JSON, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/send_message", strings.NewReader(`{"text":"hi"}`)))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing fields, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/chats/notanumber/messages", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad chat id, got %d", rec.Code)
	}
}

func TestWebSocketStreamsBusEvents(t *testing.T) {
	b := bus.New()
	g := New(Config{
		Fleet:  fakeFleet{},
		Bus:    b,
		Logger: quietLogger(),
	})
	srv := httptest.NewServer(g.Handler())
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.CloseNow()

	// Give the handler a moment to subscribe before publishing.
	time.Sleep(50 * time.Millisecond)
	b.Publish(bus.TopicBotStarted, bus.BotEvent{TeamID: "KTI", State: "running"})

	var ev wsEvent
	if err := wsjson.Read(ctx, conn, &ev); err != nil {
		t.Fatal(err)
	}
	if ev.Topic != bus.TopicBotStarted {
		t.Fatalf("expected %s, got %s", bus.TopicBotStarted, ev.Topic)
	}
}
