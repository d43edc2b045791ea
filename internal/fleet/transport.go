package fleet

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"
)

// Update is the minimal inbound shape a worker consumes. ChatType carries
// the transport's own label; the router treats it as advisory and classifies
// by chat id.
type Update struct {
	TelegramID int64
	ChatID     int64
	ChatType   string
	Username   string
	Text       string
}

// Transport is one team's chat connection. Open may be called again after a
// poll error; Close releases the current stream.
type Transport interface {
	Open(ctx context.Context) (<-chan Update, error)
	Send(ctx context.Context, chatID int64, text string) error
	BotUsername() string
	Close()
}

// telegramSendRate caps outbound messages per bot; Telegram throttles around
// 30 messages a second per token.
const telegramSendRate = 25

// telegramTransport is the production long-poll transport over tgbotapi.
type telegramTransport struct {
	token   string
	logger  *slog.Logger
	limiter *rate.Limiter

	mu  sync.Mutex
	bot *tgbotapi.BotAPI
}

// NewTelegramTransport creates a transport for one bot token.
func NewTelegramTransport(token string, logger *slog.Logger) Transport {
	if logger == nil {
		logger = slog.Default()
	}
	return &telegramTransport{
		token:   token,
		logger:  logger,
		limiter: rate.NewLimiter(rate.Limit(telegramSendRate), 5),
	}
}

func (t *telegramTransport) Open(ctx context.Context) (<-chan Update, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.bot == nil {
		bot, err := tgbotapi.NewBotAPI(t.token)
		if err != nil {
			return nil, fmt.Errorf("telegram init failed: %w", err)
		}
		t.bot = bot
		t.logger.Info("telegram bot connected", "user", bot.Self.UserName)
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	raw := t.bot.GetUpdatesChan(u)

	out := make(chan Update)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case upd, ok := <-raw:
				if !ok {
					return
				}
				if upd.Message == nil || upd.Message.From == nil {
					continue
				}
				adapted := Update{
					TelegramID: upd.Message.From.ID,
					ChatID:     upd.Message.Chat.ID,
					ChatType:   upd.Message.Chat.Type,
					Username:   upd.Message.From.UserName,
					Text:       upd.Message.Text,
				}
				select {
				case out <- adapted:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func (t *telegramTransport) Send(ctx context.Context, chatID int64, text string) error {
	if err := t.limiter.Wait(ctx); err != nil {
		return err
	}
	t.mu.Lock()
	bot := t.bot
	t.mu.Unlock()
	if bot == nil {
		return fmt.Errorf("telegram send: not connected")
	}
	if _, err := bot.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}

func (t *telegramTransport) BotUsername() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.bot == nil {
		return ""
	}
	return t.bot.Self.UserName
}

func (t *telegramTransport) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.bot != nil {
		t.bot.StopReceivingUpdates()
	}
}
