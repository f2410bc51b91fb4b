package notifier

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/slack-go/slack"
	tele "gopkg.in/telebot.v4"

	logx "postdeck/pkg/logx"
)

// Secrets are the chat credentials, loaded from the environment.
type Secrets struct {
	SlackToken    string
	TelegramToken string
}

// NewSender builds the Sender selected by cfg.Driver. An empty driver uses
// the log sink.
func NewSender(cfg Config, sec Secrets, log logx.Logger) (Sender, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", "log":
		return NewLogSender(log), nil
	case "slack":
		return NewSlackSender(sec.SlackToken, cfg.Channel)
	case "telegram":
		return NewTelegramSender(sec.TelegramToken, cfg.ChatID, cfg.ThreadID)
	default:
		return nil, fmt.Errorf("unknown notifier driver %q", cfg.Driver)
	}
}

// SlackSender posts to a channel via chat.postMessage.
type SlackSender struct {
	api     *slack.Client
	channel string
}

func NewSlackSender(token, channel string) (*SlackSender, error) {
	if strings.TrimSpace(token) == "" {
		return nil, errors.New("slack token is empty")
	}
	if strings.TrimSpace(channel) == "" {
		return nil, errors.New("slack channel is empty")
	}
	return &SlackSender{api: slack.New(token), channel: channel}, nil
}

func (s *SlackSender) Name() string { return "slack" }

func (s *SlackSender) Send(ctx context.Context, text string) error {
	_, _, err := s.api.PostMessageContext(ctx, s.channel, slack.MsgOptionText(text, false))
	return err
}

// TelegramSender sends to a chat (optionally a forum topic) via the Bot API.
type TelegramSender struct {
	bot      *tele.Bot
	chatID   int64
	threadID int
}

func NewTelegramSender(token string, chatID int64, threadID int) (*TelegramSender, error) {
	if strings.TrimSpace(token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	if chatID == 0 {
		return nil, errors.New("telegram chat id is empty")
	}
	// Offline skips getMe; the sender never polls for updates.
	b, err := tele.NewBot(tele.Settings{Token: token, Offline: true})
	if err != nil {
		return nil, err
	}
	return &TelegramSender{bot: b, chatID: chatID, threadID: threadID}, nil
}

func (s *TelegramSender) Name() string { return "telegram" }

func (s *TelegramSender) Send(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := s.bot.Send(&tele.Chat{ID: s.chatID}, text, &tele.SendOptions{
		DisableWebPagePreview: true,
		ThreadID:              s.threadID,
	})
	return err
}

// LogSender writes notifications to the application log.
type LogSender struct {
	log logx.Logger
}

func NewLogSender(log logx.Logger) *LogSender {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &LogSender{log: log.With(logx.String("comp", "notify"))}
}

func (s *LogSender) Name() string { return "log" }

// Send logs at info level; logging at warn would loop back through the
// alert sink.
func (s *LogSender) Send(_ context.Context, text string) error {
	s.log.Info("notification", logx.String("text", text), logx.Time("at", time.Now()))
	return nil
}
