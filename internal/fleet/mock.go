package fleet

import (
	"context"
	"sync"
	"time"
)

// mockRingSize bounds the per-chat outbound history kept for the mock UI.
const mockRingSize = 100

// MockMessage is one outbound message recorded by the mock transport.
type MockMessage struct {
	ChatID int64     `json:"chat_id"`
	Text   string    `json:"text"`
	SentAt time.Time `json:"sent_at"`
}

// MockHub backs the local development UI: it fans injected updates out to the
// mock transports and records every outbound message per chat. One hub serves
// the whole fleet.
type MockHub struct {
	mu         sync.Mutex
	transports map[string]*MockTransport
	history    map[int64][]MockMessage
}

// NewMockHub creates an empty hub.
func NewMockHub() *MockHub {
	return &MockHub{
		transports: make(map[string]*MockTransport),
		history:    make(map[int64][]MockMessage),
	}
}

// Transport returns (creating if needed) the mock transport for a team.
func (h *MockHub) Transport(teamID string) *MockTransport {
	h.mu.Lock()
	defer h.mu.Unlock()
	t, ok := h.transports[teamID]
	if !ok {
		t = &MockTransport{hub: h, teamID: teamID}
		h.transports[teamID] = t
	}
	return t
}

// Inject delivers a simulated inbound message to every open mock transport.
// Workers whose team does not own the chat classify it as private, which is
// what a real stray message would look like.
func (h *MockHub) Inject(telegramID, chatID int64, username, text string) {
	h.mu.Lock()
	transports := make([]*MockTransport, 0, len(h.transports))
	for _, t := range h.transports {
		transports = append(transports, t)
	}
	h.mu.Unlock()

	upd := Update{
		TelegramID: telegramID,
		ChatID:     chatID,
		ChatType:   "group",
		Username:   username,
		Text:       text,
	}
	for _, t := range transports {
		t.deliver(upd)
	}
}

// Messages returns the most recent outbound messages for a chat, oldest
// first, capped at limit (0 means everything retained).
func (h *MockHub) Messages(chatID int64, limit int) []MockMessage {
	h.mu.Lock()
	defer h.mu.Unlock()
	msgs := h.history[chatID]
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	out := make([]MockMessage, len(msgs))
	copy(out, msgs)
	return out
}

func (h *MockHub) record(msg MockMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()
	ring := append(h.history[msg.ChatID], msg)
	if len(ring) > mockRingSize {
		ring = ring[len(ring)-mockRingSize:]
	}
	h.history[msg.ChatID] = ring
}

// MockTransport is the in-process Transport used when USE_MOCK_TELEGRAM is
// set. It never talks to Telegram; inbound updates come from the hub and
// outbound messages land in the hub's history.
type MockTransport struct {
	hub    *MockHub
	teamID string

	mu     sync.Mutex
	stream chan Update
}

// NewMockTransport creates a standalone mock transport without a hub;
// convenient in tests that drive a single worker directly.
func NewMockTransport(teamID string) *MockTransport {
	return &MockTransport{hub: NewMockHub(), teamID: teamID}
}

// Hub exposes the hub behind this transport.
func (m *MockTransport) Hub() *MockHub { return m.hub }

func (m *MockTransport) Open(ctx context.Context) (<-chan Update, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stream == nil {
		m.stream = make(chan Update, 64)
	}
	return m.stream, nil
}

func (m *MockTransport) deliver(upd Update) {
	m.mu.Lock()
	stream := m.stream
	m.mu.Unlock()
	if stream == nil {
		return
	}
	select {
	case stream <- upd:
	default:
	}
}

// Inject feeds one inbound update to this transport only.
func (m *MockTransport) Inject(upd Update) {
	m.deliver(upd)
}

func (m *MockTransport) Send(_ context.Context, chatID int64, text string) error {
	m.hub.record(MockMessage{ChatID: chatID, Text: text, SentAt: time.Now()})
	return nil
}

func (m *MockTransport) BotUsername() string {
	return "kickai_" + m.teamID + "_dev_bot"
}

func (m *MockTransport) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stream != nil {
		close(m.stream)
		m.stream = nil
	}
}
