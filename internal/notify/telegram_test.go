package notify

import (
	"context"
	"errors"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alias1177/LeverageAdvisor/models"
)

type fakeBot struct {
	sent   []tgbotapi.MessageConfig
	failOn int64
}

func (f *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	msg := c.(tgbotapi.MessageConfig)
	if msg.ChatID == f.failOn {
		return tgbotapi.Message{}, errors.New("chat not found")
	}
	f.sent = append(f.sent, msg)
	return tgbotapi.Message{}, nil
}

func successRecord() *models.AnalysisRecord {
	return &models.AnalysisRecord{
		Symbol:              "DOGE/USD",
		Timeframe:           "1h",
		Strategy:            "default",
		Status:              models.StatusSuccess,
		CurrentPrice:        0.125,
		RecommendedLeverage: 2.8,
		MaxSafeLeverage:     4,
		StopLossPrice:       0.12,
		TakeProfitPrice:     0.13,
		RiskRewardRatio:     1.5,
		ConfidenceLevel:     0.7,
		EntrySignal:         true,
	}
}

func TestFormatRecommendation(t *testing.T) {
	text := FormatRecommendation(successRecord())
	assert.Contains(t, text, "LONG entry signal: DOGE/USD 1h")
	assert.Contains(t, text, "Leverage: `2.8x` (max safe `4.0x`)")
	assert.Contains(t, text, "Confidence: `70%`")

	failed := &models.AnalysisRecord{Symbol: "PEPE_USD", Timeframe: "4h", Status: models.StatusFailed, ErrorKind: "no_support_below_price"}
	text = FormatRecommendation(failed)
	assert.Contains(t, text, "PEPE\\_USD")
	assert.Contains(t, text, "`no_support_below_price`")
}

func TestNotifySendsToEveryChat(t *testing.T) {
	bot := &fakeBot{}
	n := newTelegramNotifier(bot, zerolog.Nop(), 1, 2)

	require.NoError(t, n.Notify(context.Background(), successRecord()))
	require.Len(t, bot.sent, 2)
	assert.Equal(t, int64(1), bot.sent[0].ChatID)
	assert.Equal(t, tgbotapi.ModeMarkdown, bot.sent[1].ParseMode)
}

func TestNotifyContinuesPastFailedChat(t *testing.T) {
	bot := &fakeBot{failOn: 1}
	n := newTelegramNotifier(bot, zerolog.Nop(), 1, 2)

	err := n.Notify(context.Background(), successRecord())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chat 1")
	require.Len(t, bot.sent, 1)
	assert.Equal(t, int64(2), bot.sent[0].ChatID)
}

func TestNewTelegramNotifierValidates(t *testing.T) {
	_, err := NewTelegramNotifier("", zerolog.Nop(), 1)
	assert.Error(t, err)
	_, err = NewTelegramNotifier("token", zerolog.Nop())
	assert.Error(t, err)
}
