package delivery

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"live-recorder/internal/platform/config"
	"live-recorder/internal/platform/logger"
	"live-recorder/internal/recorder"
)

// TelegramMaxUpload is the bot API limit for sendDocument.
const TelegramMaxUpload = 50 * 1024 * 1024

// Telegram sends recordings and notices to a chat through a bot.
type Telegram struct {
	bot       *bot.Bot
	chatID    any
	maxUpload int64
	log       *slog.Logger
}

var _ recorder.Uploader = (*Telegram)(nil)

// NewTelegram validates the credentials and returns an uploader. It does not
// contact the bot API.
func NewTelegram(s config.TelegramSecrets, log *slog.Logger) (*Telegram, error) {
	if s.BotToken == "" {
		return nil, errors.New("telegram bot_token is required")
	}
	if s.ChatID == "" {
		return nil, errors.New("telegram chat_id is required")
	}
	if log == nil {
		log = logger.Discard()
	}

	opts := []bot.Option{
		bot.WithSkipGetMe(),
		bot.WithHTTPClient(time.Minute, &http.Client{Timeout: 30 * time.Minute}),
	}
	if s.APIBase != "" {
		opts = append(opts, bot.WithServerURL(strings.TrimRight(s.APIBase, "/")))
	}
	b, err := bot.New(s.BotToken, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating telegram bot: %w", err)
	}
	return &Telegram{
		bot:       b,
		chatID:    chatID(s.ChatID),
		maxUpload: TelegramMaxUpload,
		log:       log.With(slog.String("component", "telegram")),
	}, nil
}

// chatID keeps @channel names as strings and sends numeric ids as numbers.
func chatID(s string) any {
	if id, err := strconv.ParseInt(s, 10, 64); err == nil {
		return id
	}
	return s
}

// Send uploads path as a document. Files above the bot API limit are
// announced with a message instead.
func (t *Telegram) Send(ctx context.Context, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}
	name := filepath.Base(path)
	if info.Size() > t.maxUpload {
		t.log.Warn("recording too large for telegram", slog.String("path", path), slog.Int64("bytes", info.Size()))
		return t.Notify(ctx, fmt.Sprintf("Recording %s is %d MB, above the %d MB bot upload limit. It is kept on disk.",
			name, info.Size()>>20, t.maxUpload>>20))
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	_, err = t.bot.SendDocument(ctx, &bot.SendDocumentParams{
		ChatID:   t.chatID,
		Document: &models.InputFileUpload{Filename: name, Data: f},
		Caption:  name,
	})
	if err != nil {
		return fmt.Errorf("sending %s: %w", name, err)
	}
	t.log.Info("recording sent", slog.String("path", path), slog.Int64("bytes", info.Size()))
	return nil
}

// Notify posts message to the chat as HTML-escaped preformatted text.
func (t *Telegram) Notify(ctx context.Context, message string) error {
	_, err := t.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    t.chatID,
		Text:      "<pre>" + html.EscapeString(message) + "</pre>",
		ParseMode: models.ParseModeHTML,
	})
	if err != nil {
		return fmt.Errorf("sending message: %w", err)
	}
	return nil
}
