// Package notify pushes entry signals to chat channels.
package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/Alias1177/LeverageAdvisor/models"
)

// Notifier delivers one analysis result
type Notifier interface {
	Notify(ctx context.Context, rec *models.AnalysisRecord) error
}

// sender is the part of *tgbotapi.BotAPI the notifier needs
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramNotifier sends entry signals to a fixed set of chats
type TelegramNotifier struct {
	bot     sender
	chatIDs []int64
	limiter *rate.Limiter
	logger  zerolog.Logger
}

// Telegram allows about 30 messages per second per bot
const messagesPerSecond = 20

// NewTelegramNotifier connects to the Bot API with token
func NewTelegramNotifier(token string, logger zerolog.Logger, chatIDs ...int64) (*TelegramNotifier, error) {
	if token == "" {
		return nil, fmt.Errorf("telegram bot token not set")
	}
	if len(chatIDs) == 0 {
		return nil, fmt.Errorf("no telegram chat configured")
	}
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Telegram bot: %w", err)
	}
	return newTelegramNotifier(bot, logger, chatIDs...), nil
}

func newTelegramNotifier(bot sender, logger zerolog.Logger, chatIDs ...int64) *TelegramNotifier {
	return &TelegramNotifier{
		bot:     bot,
		chatIDs: chatIDs,
		limiter: rate.NewLimiter(rate.Every(time.Second/messagesPerSecond), 1),
		logger:  logger.With().Str("component", "telegram_notifier").Logger(),
	}
}

// Notify sends rec to every chat. Delivery continues past a failed chat; the
// first failure is returned.
func (n *TelegramNotifier) Notify(ctx context.Context, rec *models.AnalysisRecord) error {
	text := FormatRecommendation(rec)
	var firstErr error
	for _, chatID := range n.chatIDs {
		if err := n.limiter.Wait(ctx); err != nil {
			return err
		}
		msg := tgbotapi.NewMessage(chatID, text)
		msg.ParseMode = tgbotapi.ModeMarkdown
		if _, err := n.bot.Send(msg); err != nil {
			n.logger.Error().Err(err).Int64("chat_id", chatID).Str("symbol", rec.Symbol).Msg("Failed to send message")
			if firstErr == nil {
				firstErr = fmt.Errorf("send to chat %d: %w", chatID, err)
			}
			continue
		}
		n.logger.Debug().Int64("chat_id", chatID).Str("symbol", rec.Symbol).Msg("Message sent")
	}
	return firstErr
}

// FormatRecommendation renders a record as a Telegram Markdown message
func FormatRecommendation(rec *models.AnalysisRecord) string {
	var b strings.Builder
	if rec.Status != models.StatusSuccess {
		fmt.Fprintf(&b, "*%s %s* analysis failed\n", escape(rec.Symbol), rec.Timeframe)
		fmt.Fprintf(&b, "Reason: `%s`\n", rec.ErrorKind)
		return b.String()
	}

	header := "Leverage check"
	if rec.EntrySignal {
		header = "LONG entry signal"
	}
	fmt.Fprintf(&b, "*%s: %s %s* (%s)\n\n", header, escape(rec.Symbol), rec.Timeframe, escape(rec.Strategy))
	fmt.Fprintf(&b, "Price: `%.8g`\n", rec.CurrentPrice)
	fmt.Fprintf(&b, "Leverage: `%.1fx` (max safe `%.1fx`)\n", rec.RecommendedLeverage, rec.MaxSafeLeverage)
	fmt.Fprintf(&b, "Stop loss: `%.8g`\n", rec.StopLossPrice)
	fmt.Fprintf(&b, "Take profit: `%.8g`\n", rec.TakeProfitPrice)
	fmt.Fprintf(&b, "Risk/reward: `%.2f`  Confidence: `%.0f%%`\n", rec.RiskRewardRatio, rec.ConfidenceLevel*100)
	return b.String()
}

// escape guards the legacy Markdown control characters
func escape(s string) string {
	return strings.NewReplacer("_", "\\_", "*", "\\*", "`", "\\`", "[", "\\[").Replace(s)
}
