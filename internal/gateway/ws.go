package gateway

import (
	"net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/kickai/kickai/internal/bus"
)

// wsEvent is the frame shape streamed to mock UI clients.
type wsEvent struct {
	Topic   string `json:"topic"`
	Payload any    `json:"payload"`
}

// handleWS streams the live event feed: message routing, bot lifecycle and
// health checks. One subscription per topic family; slow clients miss
// events rather than blocking the bus.
func (g *Gateway) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		// The mock UI is served from file:// or another local port.
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		g.logger.Warn("websocket accept failed", "error", err)
		return
	}
	defer conn.CloseNow()

	messages := g.cfg.Bus.Subscribe("message.")
	bots := g.cfg.Bus.Subscribe("bot.")
	health := g.cfg.Bus.Subscribe("health.")
	defer g.cfg.Bus.Unsubscribe(messages)
	defer g.cfg.Bus.Unsubscribe(bots)
	defer g.cfg.Bus.Unsubscribe(health)

	ctx := r.Context()
	for {
		var ev bus.Event
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "")
			return
		case ev = <-messages.Ch():
		case ev = <-bots.Ch():
		case ev = <-health.Ch():
		}
		if err := wsjson.Write(ctx, conn, wsEvent{Topic: ev.Topic, Payload: ev.Payload}); err != nil {
			return
		}
	}
}
