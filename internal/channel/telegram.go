package channel

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"reportbot/internal/archive"
	"reportbot/internal/domain"
)

const (
	telegramMaxMsgLen      = 4000
	telegramMaxSendRetries = 3
)

// Telegram implements domain.Channel for the Telegram Bot API and also
// serves as the domain.DeliveryGateway: both the user's own replies and
// the final post go through the same bot account.
type Telegram struct {
	token    string
	adminIDs []int64 // Admins allowed to run /set_target (empty = allow all)

	bot     *tgbotapi.BotAPI
	bus     domain.MessageBus
	targets domain.TargetStore
	logger  *slog.Logger
}

type TelegramConfig struct {
	Token    string
	AdminIDs []string // User IDs as strings
	Targets  domain.TargetStore
	Logger   *slog.Logger
}

func NewTelegram(cfg TelegramConfig) *Telegram {
	var admins []int64
	for _, s := range cfg.AdminIDs {
		if id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64); err == nil {
			admins = append(admins, id)
		}
	}
	return &Telegram{
		token:    cfg.Token,
		adminIDs: admins,
		targets:  cfg.Targets,
		logger:   cfg.Logger,
	}
}

func (t *Telegram) Name() string { return "telegram" }

// Start connects to Telegram and begins polling for updates.
func (t *Telegram) Start(ctx context.Context, bus domain.MessageBus) error {
	t.bus = bus

	bot, err := tgbotapi.NewBotAPI(t.token)
	if err != nil {
		return fmt.Errorf("telegram bot init: %w", err)
	}
	t.bot = bot
	t.logger.Info("telegram bot connected",
		"username", bot.Self.UserName,
		"id", bot.Self.ID,
	)

	bus.OnReply(func(r domain.Reply) {
		t.send(r.ChatID, r.Text, r.Buttons)
	})

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := bot.GetUpdatesChan(u)

	t.logger.Info("telegram polling started")

	for {
		select {
		case <-ctx.Done():
			t.logger.Info("telegram channel stopping")
			bot.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			t.handleUpdate(ctx, update)
		}
	}
}

// Stop shuts down the Telegram bot.
// Note: StopReceivingUpdates is already called when ctx is cancelled in
// Start(). Calling it twice panics, so Stop() is a no-op.
func (t *Telegram) Stop() error {
	return nil
}

// handleUpdate translates a Telegram update into a wizard event.
func (t *Telegram) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	if update.CallbackQuery != nil {
		t.handleCallback(update.CallbackQuery)
		return
	}

	msg := update.Message
	if msg == nil || msg.From == nil || msg.Chat == nil {
		return
	}

	if msg.IsCommand() {
		t.handleCommand(ctx, msg)
		return
	}

	ev := domain.Event{
		UserID:    msg.From.ID,
		ChatID:    msg.Chat.ID,
		Timestamp: time.Unix(int64(msg.Date), 0),
	}

	switch {
	case len(msg.Photo) > 0:
		ev.Kind = domain.EventPhoto
		ev.FileID = largestPhoto(msg.Photo)
	case msg.Video != nil:
		ev.Kind = domain.EventClip
		ev.FileID = msg.Video.FileID
	default:
		ev.Kind = domain.EventText
		ev.Text = msg.Text
	}

	t.bus.Publish(ev)
}

// largestPhoto picks the highest-resolution variant Telegram offers.
func largestPhoto(sizes []tgbotapi.PhotoSize) string {
	best := sizes[0]
	for _, s := range sizes[1:] {
		if s.Width*s.Height > best.Width*best.Height {
			best = s
		}
	}
	return best.FileID
}

func (t *Telegram) handleCallback(cq *tgbotapi.CallbackQuery) {
	if cq.Message == nil || cq.Message.Chat == nil || cq.From == nil {
		return
	}

	// Always answer the callback so the client stops its spinner.
	callback := tgbotapi.NewCallback(cq.ID, "")
	_, _ = t.bot.Request(callback)

	ev := domain.Event{
		UserID: cq.From.ID,
		ChatID: cq.Message.Chat.ID,
	}
	if cq.Data == "cancel" {
		ev.Kind = domain.EventCancel
	} else {
		ev.Kind = domain.EventChoice
		ev.Data = cq.Data
	}

	t.bus.Publish(ev)
}

func (t *Telegram) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	switch msg.Command() {
	case "start":
		t.bus.Publish(domain.Event{
			Kind:   domain.EventStart,
			UserID: msg.From.ID,
			ChatID: msg.Chat.ID,
		})
	case "cancel":
		t.bus.Publish(domain.Event{
			Kind:   domain.EventCancel,
			UserID: msg.From.ID,
			ChatID: msg.Chat.ID,
		})
	case "set_target":
		t.handleSetTarget(ctx, msg)
	default:
		t.send(msg.Chat.ID, "Unknown command. Send /start to begin a report or /cancel to abort.", nil)
	}
}

// handleSetTarget stores the current chat as the delivery target. The
// command is admin-only, and when the target is pinned through the
// environment the write is refused with a pointer at the deployment
// settings instead.
func (t *Telegram) handleSetTarget(ctx context.Context, msg *tgbotapi.Message) {
	if len(t.adminIDs) > 0 && !t.isAdmin(msg.From.ID) {
		t.logger.Warn("set_target from non-admin",
			"user_id", msg.From.ID,
			"username", msg.From.UserName,
		)
		t.send(msg.Chat.ID, "Not allowed.", nil)
		return
	}

	if chatID, ok := archive.EnvTarget(); ok {
		t.send(msg.Chat.ID, fmt.Sprintf(
			"The target chat is set through the %s environment variable.\n"+
				"Change it in your hosting settings.\n"+
				"Current %s: <code>%d</code>",
			archive.TargetEnvVar, archive.TargetEnvVar, chatID), nil)
		return
	}

	if t.targets == nil {
		t.send(msg.Chat.ID, "Target storage is not configured.", nil)
		return
	}

	if err := t.targets.SetTargetChat(ctx, msg.Chat.ID); err != nil {
		t.logger.Error("cannot save target chat", "chat_id", msg.Chat.ID, "err", err)
		t.send(msg.Chat.ID, "Could not save the target chat, try again.", nil)
		return
	}

	t.logger.Info("target chat updated", "chat_id", msg.Chat.ID)
	t.send(msg.Chat.ID, fmt.Sprintf("Done. This chat is now the delivery target: <code>%d</code>", msg.Chat.ID), nil)
}

func (t *Telegram) isAdmin(userID int64) bool {
	for _, id := range t.adminIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// --- Delivery gateway ---

// SendPost delivers the rendered post to the target chat.
func (t *Telegram) SendPost(ctx context.Context, chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	return t.deliver(msg)
}

// SendPhoto delivers one accumulated photo by file reference.
func (t *Telegram) SendPhoto(ctx context.Context, chatID int64, fileID string) error {
	return t.deliver(tgbotapi.NewPhoto(chatID, tgbotapi.FileID(fileID)))
}

// SendClip delivers one accumulated video clip by file reference.
func (t *Telegram) SendClip(ctx context.Context, chatID int64, fileID string) error {
	return t.deliver(tgbotapi.NewVideo(chatID, tgbotapi.FileID(fileID)))
}

// deliver wraps a single gateway send, classifying Telegram Bad Request
// rejections as recoverable format faults.
func (t *Telegram) deliver(c tgbotapi.Chattable) error {
	if t.bot == nil {
		return &domain.DeliveryError{Detail: "telegram bot is not connected"}
	}
	if _, err := t.bot.Send(c); err != nil {
		return &domain.DeliveryError{
			Recoverable: strings.Contains(err.Error(), "Bad Request"),
			Detail:      err.Error(),
		}
	}
	return nil
}

// --- Reply sending ---

// send splits long replies into chunks; only the final chunk carries
// the inline keyboard.
func (t *Telegram) send(chatID int64, text string, buttons [][]domain.Button) {
	chunks := splitMessage(text, telegramMaxMsgLen)
	for i, chunk := range chunks {
		var kb *tgbotapi.InlineKeyboardMarkup
		if i == len(chunks)-1 {
			kb = keyboard(buttons)
		}
		t.sendChunk(chatID, chunk, kb)
	}
}

// splitMessage cuts text into chunks of at most max bytes, preferring
// to break on a newline past the midpoint.
func splitMessage(text string, max int) []string {
	var chunks []string
	for len(text) > 0 {
		chunk := text
		if len(chunk) > max {
			cutAt := strings.LastIndex(chunk[:max], "\n")
			if cutAt < max/2 {
				cutAt = max
			}
			chunk = text[:cutAt]
			text = text[cutAt:]
		} else {
			text = ""
		}
		chunks = append(chunks, chunk)
	}
	return chunks
}

func keyboard(buttons [][]domain.Button) *tgbotapi.InlineKeyboardMarkup {
	if len(buttons) == 0 {
		return nil
	}
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(buttons))
	for _, row := range buttons {
		btns := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			btns = append(btns, tgbotapi.NewInlineKeyboardButtonData(b.Label, b.Data))
		}
		rows = append(rows, btns)
	}
	kb := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return &kb
}

// sendChunk sends a single reply chunk with retry and rate limit
// handling. Strategy: try HTML first, on parse error fall back to plain
// text, retry other errors with backoff.
func (t *Telegram) sendChunk(chatID int64, text string, kb *tgbotapi.InlineKeyboardMarkup) {
	const maxRetries = telegramMaxSendRetries

	for attempt := 0; attempt <= maxRetries; attempt++ {
		msg := tgbotapi.NewMessage(chatID, text)
		if kb != nil {
			msg.ReplyMarkup = *kb
		}
		if attempt == 0 {
			msg.ParseMode = tgbotapi.ModeHTML
		}
		// On subsequent attempts: send as plain text (markup may be malformed).

		_, err := t.bot.Send(msg)
		if err == nil {
			return
		}

		errStr := err.Error()

		// Handle Telegram rate limiting (HTTP 429).
		if strings.Contains(errStr, "Too Many Requests") || strings.Contains(errStr, "429") {
			retryAfter := time.Duration(attempt+1) * 3 * time.Second
			t.logger.Warn("telegram rate limited, backing off",
				"retry_after", retryAfter, "attempt", attempt+1,
			)
			time.Sleep(retryAfter)
			continue
		}

		// HTML parse error on first attempt — immediately retry as plain text.
		if attempt == 0 && strings.Contains(errStr, "can't parse entities") {
			t.logger.Warn("telegram html parse error, retrying as plain text", "err", err)
			plainMsg := tgbotapi.NewMessage(chatID, text)
			if kb != nil {
				plainMsg.ReplyMarkup = *kb
			}
			if _, err2 := t.bot.Send(plainMsg); err2 == nil {
				return
			}
			// Plain also failed — fall through to backoff loop.
		}

		// Exponential backoff for other transient errors.
		if attempt < maxRetries {
			backoff := time.Duration(attempt+1) * time.Second
			t.logger.Warn("telegram send error, retrying", "err", err, "backoff", backoff)
			time.Sleep(backoff)
			continue
		}

		t.logger.Error("telegram send failed after retries", "err", err, "attempts", maxRetries+1)
	}
}
