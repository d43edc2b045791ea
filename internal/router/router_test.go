package router

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/kickai/kickai/internal/domain"
	"github.com/kickai/kickai/internal/services"
	"github.com/kickai/kickai/internal/store"
	"github.com/kickai/kickai/internal/teamcache"
	"github.com/kickai/kickai/internal/tools"
)

const (
	mainChatID       = int64(-100111)
	leadershipChatID = int64(-100222)
)

type mapSource map[string]any

func (m mapSource) Get(name string) (any, error) {
	v, ok := m[name]
	if !ok {
		return nil, errors.New("not registered")
	}
	return v, nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fixture struct {
	router  *Router
	store   *store.Memory
	players *services.Players
	members *services.Members
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := store.NewMemory()
	ctx := context.Background()
	_, err := st.Create(ctx, store.TeamsCollection, map[string]any{
		"team_id":            "KTI",
		"name":               "KickAI Testing",
		"bot_token":          "token",
		"main_chat_id":       "-100111",
		"leadership_chat_id": "-100222",
	}, "KTI")
	if err != nil {
		t.Fatal(err)
	}
	cache := teamcache.New(st, quietLogger())
	if err := cache.Initialize(ctx); err != nil {
		t.Fatal(err)
	}

	players := services.NewPlayers(st, quietLogger())
	members := services.NewMembers(st, quietLogger())
	matches := services.NewMatches(st, players, quietLogger())
	invites := services.NewInvites(services.InvitesConfig{
		Store: st, Players: players, Members: members,
		SecretKey:   "test-secret",
		BotUsername: func(string) string { return "kickai_test_bot" },
		Logger:      quietLogger(),
	})
	catalog := tools.NewCatalog(mapSource{
		tools.PlayerServiceName:     players,
		tools.TeamMemberServiceName: members,
		tools.MatchServiceName:      matches,
		tools.InviteServiceName:     invites,
	})
	r, err := New(Config{
		Catalog: catalog,
		Cache:   cache,
		Players: players,
		Members: members,
		Logger:  quietLogger(),
	})
	if err != nil {
		t.Fatal(err)
	}
	return &fixture{router: r, store: st, players: players, members: members}
}

// addAdmin registers a team member, promotes them and binds a telegram id.
func (f *fixture) addAdmin(t *testing.T, telegramID int64) {
	t.Helper()
	ctx := context.Background()
	m, err := f.members.AddMember(ctx, "KTI", "Admin Person", "+447000000001", "")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.members.PromoteToAdmin(ctx, "KTI", m.MemberID); err != nil {
		t.Fatal(err)
	}
	if err := f.members.LinkTelegram(ctx, "KTI", m.MemberID, telegramID); err != nil {
		t.Fatal(err)
	}
}

// addMember registers a plain team member (no promotion) and binds a
// telegram id. Leadership capability comes from membership alone.
func (f *fixture) addMember(t *testing.T, telegramID int64) {
	t.Helper()
	ctx := context.Background()
	m, err := f.members.AddMember(ctx, "KTI", "Member Person", "+447000000002", "")
	if err != nil {
		t.Fatal(err)
	}
	if err := f.members.LinkTelegram(ctx, "KTI", m.MemberID, telegramID); err != nil {
		t.Fatal(err)
	}
}

// addPlayer registers a player and binds a telegram id.
func (f *fixture) addPlayer(t *testing.T, telegramID int64) {
	t.Helper()
	ctx := context.Background()
	p, err := f.players.AddPlayer(ctx, "KTI", "Player Person", "+447000000003")
	if err != nil {
		t.Fatal(err)
	}
	if err := f.players.LinkTelegram(ctx, "KTI", p.PlayerID, telegramID); err != nil {
		t.Fatal(err)
	}
}

func msg(telegramID, chatID int64, text string) domain.RoutedMessage {
	return domain.RoutedMessage{
		TelegramID: telegramID,
		ChatID:     chatID,
		TeamID:     "KTI",
		Text:       text,
	}
}

func TestHelpUnregisteredInMainChat(t *testing.T) {
	f := newFixture(t)
	reply := f.router.Route(context.Background(), msg(777, mainChatID, "/help"))

	if !strings.HasPrefix(reply.Text, "🤖") {
		t.Fatalf("expected 🤖 prefix, got %q", reply.Text)
	}
	if !strings.Contains(reply.Text, "Unregistered User") {
		t.Fatalf("expected Unregistered User, got %q", reply.Text)
	}
	if !strings.Contains(reply.Text, "contact") {
		t.Fatalf("expected contact guidance, got %q", reply.Text)
	}
	if strings.Contains(reply.Text, "/addplayer") {
		t.Fatalf("help must not list leadership commands, got %q", reply.Text)
	}
	if reply.ChatID != mainChatID {
		t.Fatalf("expected reply to origin chat, got %d", reply.ChatID)
	}
}

func TestHelpAdminInLeadershipListsEverything(t *testing.T) {
	f := newFixture(t)
	f.addAdmin(t, 999)
	reply := f.router.Route(context.Background(), msg(999, leadershipChatID, "/help"))
	for _, want := range []string{"/addplayer", "/approve", "/announce", "/invitelink"} {
		if !strings.Contains(reply.Text, want) {
			t.Fatalf("expected %s in admin help, got %q", want, reply.Text)
		}
	}
}

func TestLeadershipAddsPlayer(t *testing.T) {
	f := newFixture(t)
	f.addMember(t, 999)
	ctx := context.Background()

	reply := f.router.Route(ctx, msg(999, leadershipChatID, `/addplayer "Test Player Automated" "+447999888777"`))
	if !strings.Contains(reply.Text, "Player Added Successfully") {
		t.Fatalf("expected success, got %q", reply.Text)
	}
	if !strings.Contains(reply.Text, "01TA") {
		t.Fatalf("expected player id, got %q", reply.Text)
	}
	if !strings.Contains(reply.Text, "https://t.me/") {
		t.Fatalf("expected invite link, got %q", reply.Text)
	}

	docs, err := f.store.Query(ctx, store.PlayersCollection("KTI"), nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 1 {
		t.Fatalf("expected exactly one player doc, got %d", len(docs))
	}
	if docs[0].Data["full_name"] != "Test Player Automated" {
		t.Fatalf("unexpected name %v", docs[0].Data["full_name"])
	}
	if docs[0].Data["status"] != "pending" {
		t.Fatalf("expected pending, got %v", docs[0].Data["status"])
	}
}

func TestDuplicatePhoneRejected(t *testing.T) {
	f := newFixture(t)
	f.addMember(t, 999)
	ctx := context.Background()

	f.router.Route(ctx, msg(999, leadershipChatID, `/addplayer "Test Player Automated" "+447999888777"`))
	reply := f.router.Route(ctx, msg(999, leadershipChatID, `/addplayer "Other" "+447999888777"`))
	if !strings.HasPrefix(reply.Text, "❌") {
		t.Fatalf("expected ❌, got %q", reply.Text)
	}
	if !strings.Contains(reply.Text, "already exists") {
		t.Fatalf("expected already exists, got %q", reply.Text)
	}
	docs, _ := f.store.Query(ctx, store.PlayersCollection("KTI"), nil)
	if len(docs) != 1 {
		t.Fatalf("expected no new doc, got %d", len(docs))
	}
}

func TestPermissionDenialInMainChat(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// A registered player in the main chat must not add players.
	p, err := f.players.AddPlayer(ctx, "KTI", "Mark Hughes", "+447999888777")
	if err != nil {
		t.Fatal(err)
	}
	if err := f.players.LinkTelegram(ctx, "KTI", p.PlayerID, 777); err != nil {
		t.Fatal(err)
	}

	reply := f.router.Route(ctx, msg(777, mainChatID, `/addplayer "X" "+447111222333"`))
	if !strings.HasPrefix(reply.Text, "❌") {
		t.Fatalf("expected ❌, got %q", reply.Text)
	}
	lower := strings.ToLower(reply.Text)
	if !strings.Contains(lower, "permission") && !strings.Contains(lower, "leadership") {
		t.Fatalf("expected permission/leadership, got %q", reply.Text)
	}

	docs, _ := f.store.Query(ctx, store.PlayersCollection("KTI"), nil)
	if len(docs) != 1 {
		t.Fatalf("denied command must not mutate the store, got %d docs", len(docs))
	}
}

func TestPermissionMonotonicity(t *testing.T) {
	f := newFixture(t)
	e := f.router.enforcer

	chats := []string{domain.ChatTypeMain, domain.ChatTypeLeadership, domain.ChatTypePrivate}
	order := []string{"unregistered", "player", "team_member", "admin"}
	for _, entry := range f.router.catalog.Entries() {
		for _, chat := range chats {
			for i := 0; i+1 < len(order); i++ {
				lowAllowed := allowed(e, order[i], chat, entry.Name)
				highAllowed := allowed(e, order[i+1], chat, entry.Name)
				if lowAllowed && !highAllowed {
					t.Fatalf("%s in %s: %s allowed but %s denied", entry.Name, chat, order[i], order[i+1])
				}
			}
		}
	}
}

// TestPermissionGateMatrix walks the authorization table with a plain
// linked player, a plain linked member and an unregistered id. Allowed
// cells may still answer ❌ for domain reasons; only the denial template
// marks a gate rejection.
func TestPermissionGateMatrix(t *testing.T) {
	f := newFixture(t)
	f.addPlayer(t, 201)
	f.addMember(t, 202)
	const unregistered = int64(888)
	ctx := context.Background()

	cases := []struct {
		text       string
		unregMain  bool
		playerMain bool
		unregLead  bool
		memberLead bool
	}{
		{"/help", true, true, true, true},
		{"/myinfo", true, true, true, true},
		{"/list", true, true, true, true},
		{"/status 01PP", true, true, true, true},
		{"/register", true, true, true, true},
		{`/addplayer "Gate Add" "+447999000111"`, false, false, false, true},
		{`/addmember "Gate Member" "+447999000112"`, false, false, false, true},
		{"/approve 02GA", false, false, false, true},
		{"/reject 02GA", false, false, false, true},
		{"/update position midfielder", false, true, false, true},
	}
	for _, c := range cases {
		cells := []struct {
			column     string
			telegramID int64
			chatID     int64
			allow      bool
		}{
			{"unregistered@main", unregistered, mainChatID, c.unregMain},
			{"player@main", 201, mainChatID, c.playerMain},
			{"unregistered@leadership", unregistered, leadershipChatID, c.unregLead},
			{"team_member@leadership", 202, leadershipChatID, c.memberLead},
		}
		for _, cell := range cells {
			reply := f.router.Route(ctx, msg(cell.telegramID, cell.chatID, c.text))
			denied := strings.Contains(reply.Text, "Permission Denied")
			if cell.allow && denied {
				t.Errorf("%s for %s: expected allow, got %q", c.text, cell.column, reply.Text)
			}
			if !cell.allow && !denied {
				t.Errorf("%s for %s: expected denial, got %q", c.text, cell.column, reply.Text)
			}
		}
	}
}

func TestUnregisteredListsTeamInLeadershipChat(t *testing.T) {
	f := newFixture(t)
	f.addMember(t, 999)
	ctx := context.Background()
	f.router.Route(ctx, msg(999, leadershipChatID, `/addplayer "Test Player Automated" "+447999888777"`))

	reply := f.router.Route(ctx, msg(888, leadershipChatID, "/list"))
	if strings.Contains(reply.Text, "Permission Denied") {
		t.Fatalf("expected /list to be open in the leadership chat, got %q", reply.Text)
	}
	if !strings.Contains(reply.Text, "Team Overview") {
		t.Fatalf("expected team overview, got %q", reply.Text)
	}
	if !strings.Contains(reply.Text, "Test Player Automated") {
		t.Fatalf("expected the player listed, got %q", reply.Text)
	}
}

func TestRouterStateless(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	update := msg(777, mainChatID, "/status 01MH")

	first := f.router.Route(ctx, update)
	second := f.router.Route(ctx, update)
	if first.Text != second.Text {
		t.Fatalf("identical updates must produce identical replies:\n%q\n%q", first.Text, second.Text)
	}
}

func TestMutatingCommandDeduplicated(t *testing.T) {
	f := newFixture(t)
	f.addMember(t, 999)
	ctx := context.Background()

	update := msg(999, leadershipChatID, `/addplayer "Test Player Automated" "+447999888777"`)
	first := f.router.Route(ctx, update)
	second := f.router.Route(ctx, update)
	if first.Text != second.Text {
		t.Fatalf("expected the cached reply verbatim:\n%q\n%q", first.Text, second.Text)
	}
	docs, _ := f.store.Query(ctx, store.PlayersCollection("KTI"), nil)
	if len(docs) != 1 {
		t.Fatalf("replay must not mutate twice, got %d docs", len(docs))
	}
}

func TestUnknownCommand(t *testing.T) {
	f := newFixture(t)
	reply := f.router.Route(context.Background(), msg(777, mainChatID, "/frobnicate"))
	if !strings.HasPrefix(reply.Text, "❌ Unknown command /frobnicate") {
		t.Fatalf("expected unknown command, got %q", reply.Text)
	}
	if !strings.Contains(reply.Text, "/help") {
		t.Fatalf("expected /help hint, got %q", reply.Text)
	}
}

func TestBotNameSuffixStripped(t *testing.T) {
	f := newFixture(t)
	reply := f.router.Route(context.Background(), msg(777, mainChatID, "/help@kickai_test_bot"))
	if !strings.HasPrefix(reply.Text, "🤖") {
		t.Fatalf("expected help reply, got %q", reply.Text)
	}
}

func TestChatClassificationByChatID(t *testing.T) {
	f := newFixture(t)
	cases := []struct {
		chatID int64
		want   string
	}{
		{mainChatID, domain.ChatTypeMain},
		{leadershipChatID, domain.ChatTypeLeadership},
		{555123, domain.ChatTypePrivate},
	}
	for _, c := range cases {
		// The transport's advisory chat type is deliberately wrong.
		m := msg(777, c.chatID, "hello")
		m.ChatType = "supergroup"
		got := f.router.classifyChat(m)
		if got != c.want {
			t.Fatalf("chat %d: expected %s, got %s", c.chatID, c.want, got)
		}
	}
}

type cannedAgent struct {
	reply string
	err   error
}

func (a cannedAgent) Process(context.Context, domain.RoutedMessage, string) (string, error) {
	return a.reply, a.err
}

func TestNaturalLanguageFallback(t *testing.T) {
	f := newFixture(t)

	// No agent wired: deterministic fallback.
	reply := f.router.Route(context.Background(), msg(777, mainChatID, "when is training?"))
	if !strings.Contains(reply.Text, "/help") {
		t.Fatalf("expected fallback with /help hint, got %q", reply.Text)
	}

	// Agent wired and succeeding: its reply passes through.
	f.router.agent = cannedAgent{reply: "Training is Tuesday 7pm."}
	reply = f.router.Route(context.Background(), msg(777, mainChatID, "when is training?"))
	if reply.Text != "Training is Tuesday 7pm." {
		t.Fatalf("expected agent reply, got %q", reply.Text)
	}

	// Agent failing: deterministic fallback again.
	f.router.agent = cannedAgent{err: errors.New("model offline")}
	reply = f.router.Route(context.Background(), msg(777, mainChatID, "when is training?"))
	if !strings.Contains(reply.Text, "/help") {
		t.Fatalf("expected fallback after agent failure, got %q", reply.Text)
	}
}
