package notifier

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/0x0BSoD/feedrelay/internal/metrics"
	"github.com/0x0BSoD/feedrelay/internal/model"
)

// BotAPI is the part of *tgbotapi.BotAPI the notifier needs.
type BotAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Notifier delivers payloads to a single channel.
type Notifier struct {
	bot     BotAPI
	chat    tgbotapi.BaseChat
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// New accepts either a numeric chat id or an @channel username.
func New(bot BotAPI, channelID string, m *metrics.Metrics, logger *slog.Logger) *Notifier {
	var chat tgbotapi.BaseChat
	if id, err := strconv.ParseInt(channelID, 10, 64); err == nil {
		chat.ChatID = id
	} else {
		chat.ChannelUsername = channelID
	}

	return &Notifier{
		bot:     bot,
		chat:    chat,
		metrics: m,
		logger:  logger,
	}
}

// Send reports whether the payload reached the channel. With an image it
// tries a captioned photo first and falls back to a plain message when the
// photo fails for any reason but cancellation. Errors never leave this method.
func (n *Notifier) Send(payload model.Payload) bool {
	if payload.ImageURL != "" {
		err := n.sendPhoto(payload)
		if err == nil {
			return true
		}

		if errors.Is(err, context.Canceled) {
			n.logger.Error("failed to send message to telegram", "err", err)
			return false
		}

		n.logger.Warn("send photo failed, falling back to send message", "image", payload.ImageURL, "err", err)
		n.metrics.PhotoFallbacks.Inc()
	}

	if err := n.sendMessage(payload); err != nil {
		n.logger.Error("failed to send message to telegram", "err", err)
		return false
	}

	return true
}

func (n *Notifier) sendPhoto(payload model.Payload) error {
	photo := tgbotapi.PhotoConfig{
		BaseFile: tgbotapi.BaseFile{
			BaseChat: n.chat,
			File:     tgbotapi.FileURL(payload.ImageURL),
		},
		Caption:   payload.Text,
		ParseMode: tgbotapi.ModeHTML,
	}

	_, err := n.bot.Send(photo)
	return err
}

func (n *Notifier) sendMessage(payload model.Payload) error {
	msg := tgbotapi.MessageConfig{
		BaseChat:              n.chat,
		Text:                  payload.Text,
		ParseMode:             tgbotapi.ModeHTML,
		DisableWebPagePreview: false,
	}

	_, err := n.bot.Send(msg)
	return err
}
