package reporter

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBot struct {
	sent []tgbotapi.Chattable
	err  error
}

func (b *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	b.sent = append(b.sent, c)
	return tgbotapi.Message{}, b.err
}

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestNotify(t *testing.T) {
	bot := &fakeBot{}
	New(bot, 42, discard).Notify("fetch failed")

	require.Len(t, bot.sent, 1)
	msg := bot.sent[0].(tgbotapi.MessageConfig)
	assert.Equal(t, int64(42), msg.ChatID)
	assert.Equal(t, "feedrelay: fetch failed", msg.Text)
}

func TestNotifyDisabled(t *testing.T) {
	bot := &fakeBot{}
	New(bot, 0, discard).Notify("ignored")
	assert.Empty(t, bot.sent)

	var nilReporter *Reporter
	assert.NotPanics(t, func() { nilReporter.Notify("ignored") })
}

func TestNotifySendError(t *testing.T) {
	bot := &fakeBot{err: errors.New("boom")}
	assert.NotPanics(t, func() { New(bot, 42, discard).Notify("x") })
}
