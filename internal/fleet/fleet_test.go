package fleet

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kickai/kickai/internal/bus"
	"github.com/kickai/kickai/internal/domain"
	"github.com/kickai/kickai/internal/store"
	"github.com/kickai/kickai/internal/teamcache"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func waitFor(t *testing.T, d time.Duration, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// echoRouter replies to every message with a deterministic echo.
type echoRouter struct{}

func (echoRouter) Route(_ context.Context, msg domain.RoutedMessage) domain.Reply {
	return domain.Reply{ChatID: msg.ChatID, Text: "echo: " + msg.Text}
}

// panicRouter panics on the first update and echoes afterwards.
type panicRouter struct {
	mu    sync.Mutex
	calls int
}

func (r *panicRouter) Route(_ context.Context, msg domain.RoutedMessage) domain.Reply {
	r.mu.Lock()
	r.calls++
	first := r.calls == 1
	r.mu.Unlock()
	if first {
		panic("boom")
	}
	return domain.Reply{ChatID: msg.ChatID, Text: "ok: " + msg.Text}
}

// failTransport refuses every connection attempt.
type failTransport struct {
	mu    sync.Mutex
	opens int
}

func (f *failTransport) Open(context.Context) (<-chan Update, error) {
	f.mu.Lock()
	f.opens++
	f.mu.Unlock()
	return nil, errors.New("dial refused")
}

func (f *failTransport) Send(context.Context, int64, string) error { return nil }
func (f *failTransport) BotUsername() string                       { return "" }
func (f *failTransport) Close()                                    {}

func (f *failTransport) openCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.opens
}

// stallTransport opens a stream that never delivers anything.
type stallTransport struct {
	mu    sync.Mutex
	opens int
}

func (s *stallTransport) Open(context.Context) (<-chan Update, error) {
	s.mu.Lock()
	s.opens++
	s.mu.Unlock()
	return make(chan Update), nil
}

func (s *stallTransport) Send(context.Context, int64, string) error { return nil }
func (s *stallTransport) BotUsername() string                       { return "" }
func (s *stallTransport) Close()                                    {}

func (s *stallTransport) openCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opens
}

func fastWorker(w *Worker) {
	w.stall = 30 * time.Millisecond
	w.backoffFloor = time.Millisecond
	w.backoffCeil = 5 * time.Millisecond
}

func TestWorkerRoutesAndReplies(t *testing.T) {
	transport := NewMockTransport("KTI")
	b := bus.New()
	sub := b.Subscribe("message.reply")
	defer b.Unsubscribe(sub)

	w := NewWorker("KTI", transport, echoRouter{}, b, quietLogger())
	fastWorker(w)
	w.stall = time.Second

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() { defer close(done); w.Run(ctx) }()

	waitFor(t, time.Second, "worker running", func() bool { return w.State() == StateRunning })
	transport.Inject(Update{TelegramID: 777, ChatID: -100111, Text: "hello"})

	waitFor(t, time.Second, "reply recorded", func() bool {
		return len(transport.Hub().Messages(-100111, 0)) == 1
	})
	got := transport.Hub().Messages(-100111, 0)[0]
	if got.Text != "echo: hello" {
		t.Fatalf("expected echo reply, got %q", got.Text)
	}

	select {
	case ev := <-sub.Ch():
		me, ok := ev.Payload.(bus.MessageEvent)
		if !ok {
			t.Fatalf("expected MessageEvent payload, got %T", ev.Payload)
		}
		if me.TeamID != "KTI" || me.Text != "echo: hello" {
			t.Fatalf("unexpected reply event %+v", me)
		}
	case <-time.After(time.Second):
		t.Fatal("expected a message.reply event")
	}

	cancel()
	<-done
	if w.State() != StateStopped {
		t.Fatalf("expected stopped after cancel, got %s", w.State())
	}
}

func TestWorkerPanicContainedToOneUpdate(t *testing.T) {
	transport := NewMockTransport("KTI")
	w := NewWorker("KTI", transport, &panicRouter{}, nil, quietLogger())
	fastWorker(w)
	w.stall = time.Second

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	waitFor(t, time.Second, "worker running", func() bool { return w.State() == StateRunning })
	transport.Inject(Update{TelegramID: 1, ChatID: 5, Text: "first"})
	transport.Inject(Update{TelegramID: 1, ChatID: 5, Text: "second"})

	waitFor(t, time.Second, "second update handled", func() bool {
		return len(transport.Hub().Messages(5, 0)) == 1
	})
	if got := transport.Hub().Messages(5, 0)[0].Text; got != "ok: second" {
		t.Fatalf("expected ok: second, got %q", got)
	}
	if w.State() != StateRunning {
		t.Fatalf("panic must not kill the worker, state %s", w.State())
	}
}

func TestWorkerFailsAfterConsecutiveConnectErrors(t *testing.T) {
	transport := &failTransport{}
	b := bus.New()
	sub := b.Subscribe("bot.failed")
	defer b.Unsubscribe(sub)

	w := NewWorker("KTI", transport, echoRouter{}, b, quietLogger())
	fastWorker(w)

	err := w.Run(context.Background())
	if err == nil {
		t.Fatal("expected an error after exhausting connect attempts")
	}
	if w.State() != StateFailed {
		t.Fatalf("expected failed, got %s", w.State())
	}
	if transport.openCount() != maxConsecutiveFailures {
		t.Fatalf("expected %d connect attempts, got %d", maxConsecutiveFailures, transport.openCount())
	}
	select {
	case ev := <-sub.Ch():
		be := ev.Payload.(bus.BotEvent)
		if be.TeamID != "KTI" || be.State != string(StateFailed) {
			t.Fatalf("unexpected failure event %+v", be)
		}
	default:
		t.Fatal("expected a bot.failed event")
	}
}

func TestWorkerReconnectsAfterStall(t *testing.T) {
	transport := &stallTransport{}
	w := NewWorker("KTI", transport, echoRouter{}, nil, quietLogger())
	fastWorker(w)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() { defer close(done); w.Run(ctx) }()

	waitFor(t, 2*time.Second, "second connection after stall", func() bool {
		return transport.openCount() >= 2
	})
	cancel()
	<-done
}

func seedTeams(t *testing.T, st *store.Memory, teams ...map[string]any) *teamcache.Cache {
	t.Helper()
	ctx := context.Background()
	for _, doc := range teams {
		id, _ := doc["team_id"].(string)
		if _, err := st.Create(ctx, store.TeamsCollection, doc, id); err != nil {
			t.Fatal(err)
		}
	}
	cache := teamcache.New(st, quietLogger())
	if err := cache.Initialize(ctx); err != nil {
		t.Fatal(err)
	}
	return cache
}

func teamDoc(id, token, main, leadership string) map[string]any {
	return map[string]any{
		"team_id":            id,
		"name":               "Team " + id,
		"bot_token":          token,
		"main_chat_id":       main,
		"leadership_chat_id": leadership,
	}
}

func TestLoadTeamsSkipsIncompleteAndInactive(t *testing.T) {
	st := store.NewMemory()
	incomplete := teamDoc("BAD", "", "-1", "-2")
	inactive := teamDoc("OFF", "tok", "-3", "-4")
	inactive["status"] = domain.TeamStatusInactive
	cache := seedTeams(t, st, teamDoc("KTI", "tok", "-100111", "-100222"), incomplete, inactive)

	m := NewManager(Config{Cache: cache, Router: echoRouter{}, Logger: quietLogger()})
	n, err := m.LoadTeams(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("expected 1 eligible team, got %d", n)
	}
}

func TestWorkerFailureIsolation(t *testing.T) {
	st := store.NewMemory()
	cache := seedTeams(t, st,
		teamDoc("GOOD", "tok-good", "-100111", "-100222"),
		teamDoc("BROKEN", "tok-broken", "-200111", "-200222"),
	)

	hub := NewMockHub()
	broken := &failTransport{}
	m := NewManager(Config{
		Cache:  cache,
		Router: echoRouter{},
		Logger: quietLogger(),
		NewTransport: func(team domain.Team) Transport {
			if team.ID == "BROKEN" {
				return broken
			}
			return hub.Transport(team.ID)
		},
	})
	m.tune = func(w *Worker) {
		fastWorker(w)
		if w.teamID == "GOOD" {
			w.stall = time.Second
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if _, err := m.LoadTeams(ctx); err != nil {
		t.Fatal(err)
	}
	m.StartAll(ctx)

	waitFor(t, 2*time.Second, "broken team failed", func() bool {
		s, ok := m.Status("BROKEN")
		return ok && s == StateFailed
	})
	waitFor(t, 2*time.Second, "good team running", func() bool {
		s, ok := m.Status("GOOD")
		return ok && s == StateRunning
	})

	running := m.ListRunning()
	if len(running) != 1 || running[0] != "GOOD" {
		t.Fatalf("expected only GOOD running, got %v", running)
	}

	// The healthy worker still processes traffic.
	hub.Inject(777, -100111, "user", "hello")
	waitFor(t, time.Second, "good team reply", func() bool {
		return len(hub.Messages(-100111, 0)) >= 1
	})

	// The failing transport was retried through the restart budget.
	if broken.openCount() < maxConsecutiveFailures {
		t.Fatalf("expected repeated connect attempts, got %d", broken.openCount())
	}
}

func TestManagerSendAndBroadcast(t *testing.T) {
	st := store.NewMemory()
	cache := seedTeams(t, st, teamDoc("KTI", "tok", "-100111", "-100222"))

	hub := NewMockHub()
	m := NewManager(Config{
		Cache:  cache,
		Router: echoRouter{},
		Logger: quietLogger(),
		NewTransport: func(team domain.Team) Transport {
			return hub.Transport(team.ID)
		},
	})
	m.tune = func(w *Worker) {
		fastWorker(w)
		w.stall = time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if _, err := m.LoadTeams(ctx); err != nil {
		t.Fatal(err)
	}
	m.StartAll(ctx)
	waitFor(t, time.Second, "worker running", func() bool {
		s, ok := m.Status("KTI")
		return ok && s == StateRunning
	})

	if err := m.Send(ctx, "KTI", -100111, "manual message"); err != nil {
		t.Fatal(err)
	}
	if got := hub.Messages(-100111, 0); len(got) != 1 || got[0].Text != "manual message" {
		t.Fatalf("unexpected main chat history %v", got)
	}
	if err := m.Send(ctx, "NOPE", -1, "x"); err == nil {
		t.Fatal("expected an error for an unknown team")
	}

	m.StartupBroadcast(ctx, "🤖 KICKAI is up")
	leadership := hub.Messages(-100222, 0)
	if len(leadership) != 1 || !strings.Contains(leadership[0].Text, "KICKAI is up") {
		t.Fatalf("expected startup broadcast in leadership chat, got %v", leadership)
	}

	if m.BotUsername("KTI") == "" {
		t.Fatal("expected a bot username for a running team")
	}

	m.StopAll(time.Second)
	if got := m.ListRunning(); len(got) != 0 {
		t.Fatalf("expected no running workers after StopAll, got %v", got)
	}
}
