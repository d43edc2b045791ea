package fleet

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/kickai/kickai/internal/bus"
	"github.com/kickai/kickai/internal/domain"
)

// Worker states.
type State string

const (
	StateStarting State = "starting"
	StateRunning  State = "running"
	StateStopped  State = "stopped"
	StateFailed   State = "failed"
)

const (
	// stallTimeout bounds how long a worker waits without any update before
	// tearing the stream down and reconnecting. Long-poll streams can die
	// silently; the reconnect is cheap.
	stallTimeout = 150 * time.Second

	initialBackoff = time.Second
	maxBackoff     = 30 * time.Second

	// maxConsecutiveFailures is the number of back-to-back connect/poll
	// errors before the worker gives up for this run.
	maxConsecutiveFailures = 5
)

var (
	errStreamClosed = errors.New("update stream closed")
	errStreamStall  = errors.New("update stream stalled")
)

// MessageRouter processes one inbound message into one reply.
type MessageRouter interface {
	Route(ctx context.Context, msg domain.RoutedMessage) domain.Reply
}

// Worker runs one team's bot: it owns the transport connection, consumes
// updates serially, and sends the router's reply back to the origin chat.
type Worker struct {
	teamID    string
	transport Transport
	router    MessageRouter
	bus       *bus.Bus
	logger    *slog.Logger

	mu    sync.Mutex
	state State

	stall        time.Duration
	backoffFloor time.Duration
	backoffCeil  time.Duration
}

// NewWorker builds a worker for one team. The transport is owned by the
// worker from here on.
func NewWorker(teamID string, transport Transport, router MessageRouter, b *bus.Bus, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		teamID:    teamID,
		transport: transport,
		router:    router,
		bus:       b,
		logger:    logger.With("team_id", teamID),
		state:     StateStarting,

		stall:        stallTimeout,
		backoffFloor: initialBackoff,
		backoffCeil:  maxBackoff,
	}
}

// State returns the worker's current lifecycle state.
func (w *Worker) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

func (w *Worker) setState(s State, reason string) {
	w.mu.Lock()
	w.state = s
	w.mu.Unlock()
	if w.bus == nil {
		return
	}
	topic := ""
	switch s {
	case StateRunning:
		topic = bus.TopicBotStarted
	case StateStopped:
		topic = bus.TopicBotStopped
	case StateFailed:
		topic = bus.TopicBotFailed
	}
	if topic != "" {
		w.bus.Publish(topic, bus.BotEvent{TeamID: w.teamID, State: string(s), Reason: reason})
	}
}

// Run blocks until the context is cancelled or the worker exhausts its
// consecutive-failure budget. A cancelled context is a clean stop; any other
// return is a failure the manager may retry.
func (w *Worker) Run(ctx context.Context) error {
	w.setState(StateStarting, "")
	defer w.transport.Close()

	backoff := w.backoffFloor
	failures := 0

	for {
		if ctx.Err() != nil {
			w.setState(StateStopped, "shutdown")
			return nil
		}

		updates, err := w.transport.Open(ctx)
		if err != nil {
			failures++
			w.logger.Warn("bot connect failed", "error", err, "consecutive", failures)
			if failures >= maxConsecutiveFailures {
				w.setState(StateFailed, err.Error())
				return err
			}
			if !w.sleep(ctx, backoff) {
				w.setState(StateStopped, "shutdown")
				return nil
			}
			backoff = w.nextBackoff(backoff)
			continue
		}

		w.setState(StateRunning, "")
		w.logger.Info("bot worker running")

		consumed, err := w.consume(ctx, updates)
		w.transport.Close()

		if ctx.Err() != nil {
			w.setState(StateStopped, "shutdown")
			return nil
		}
		if consumed > 0 {
			failures = 0
			backoff = w.backoffFloor
		}
		failures++
		w.logger.Warn("update stream ended, reconnecting", "error", err, "consecutive", failures)
		if failures >= maxConsecutiveFailures {
			w.setState(StateFailed, err.Error())
			return err
		}
		if !w.sleep(ctx, backoff) {
			w.setState(StateStopped, "shutdown")
			return nil
		}
		backoff = w.nextBackoff(backoff)
	}
}

// consume drains the update stream serially until it closes, stalls, or the
// context ends. Returns how many updates were handled.
func (w *Worker) consume(ctx context.Context, updates <-chan Update) (int, error) {
	timer := time.NewTimer(w.stall)
	defer timer.Stop()

	consumed := 0
	for {
		select {
		case <-ctx.Done():
			return consumed, ctx.Err()
		case <-timer.C:
			return consumed, errStreamStall
		case upd, ok := <-updates:
			if !ok {
				return consumed, errStreamClosed
			}
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(w.stall)
			w.handleUpdate(ctx, upd)
			consumed++
		}
	}
}

// handleUpdate routes one update and sends the reply. A panic in the pipeline
// is contained to this update.
func (w *Worker) handleUpdate(ctx context.Context, upd Update) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("update handling panicked", "panic", r, "chat_id", upd.ChatID)
		}
	}()

	if upd.Text == "" {
		return
	}
	if w.bus != nil {
		w.bus.Publish(bus.TopicMessageReceived, bus.MessageEvent{
			TeamID:     w.teamID,
			ChatID:     upd.ChatID,
			ChatType:   upd.ChatType,
			TelegramID: upd.TelegramID,
			Text:       upd.Text,
		})
	}

	reply := w.router.Route(ctx, domain.RoutedMessage{
		TelegramID: upd.TelegramID,
		ChatID:     upd.ChatID,
		ChatType:   upd.ChatType,
		TeamID:     w.teamID,
		Username:   upd.Username,
		Text:       upd.Text,
	})
	if reply.Text == "" {
		return
	}

	if err := w.transport.Send(ctx, reply.ChatID, reply.Text); err != nil {
		w.logger.Error("reply send failed", "chat_id", reply.ChatID, "error", err)
		return
	}
	if w.bus != nil {
		w.bus.Publish(bus.TopicMessageReply, bus.MessageEvent{
			TeamID:     w.teamID,
			ChatID:     reply.ChatID,
			TelegramID: upd.TelegramID,
			Text:       reply.Text,
		})
	}
}

// sleep waits for d or the context, whichever comes first.
func (w *Worker) sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

func (w *Worker) nextBackoff(d time.Duration) time.Duration {
	d *= 2
	if d > w.backoffCeil {
		return w.backoffCeil
	}
	return d
}
