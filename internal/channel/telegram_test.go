package channel

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"reportbot/internal/domain"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestSplitMessage_Short(t *testing.T) {
	chunks := splitMessage("hello", 100)
	if len(chunks) != 1 || chunks[0] != "hello" {
		t.Fatalf("got %v, want single chunk", chunks)
	}
}

func TestSplitMessage_BreaksOnNewline(t *testing.T) {
	text := strings.Repeat("a", 60) + "\n" + strings.Repeat("b", 60)
	chunks := splitMessage(text, 100)

	if len(chunks) != 2 {
		t.Fatalf("got %d chunks, want 2", len(chunks))
	}
	if !strings.HasSuffix(chunks[0], "a") {
		t.Fatalf("first chunk should end before the newline: %q", chunks[0])
	}
	if got := chunks[0] + chunks[1]; got != text {
		t.Fatalf("chunks lose content:\n%q\nvs\n%q", got, text)
	}
}

func TestSplitMessage_HardCutWithoutNewline(t *testing.T) {
	text := strings.Repeat("x", 250)
	chunks := splitMessage(text, 100)

	if len(chunks) != 3 {
		t.Fatalf("got %d chunks, want 3", len(chunks))
	}
	for i, c := range chunks {
		if len(c) > 100 {
			t.Fatalf("chunk %d exceeds max: %d bytes", i, len(c))
		}
	}
	if strings.Join(chunks, "") != text {
		t.Fatalf("chunks lose content")
	}
}

func TestSplitMessage_IgnoresEarlyNewline(t *testing.T) {
	// A newline before the midpoint should not produce a tiny chunk.
	text := "ab\n" + strings.Repeat("c", 200)
	chunks := splitMessage(text, 100)

	if len(chunks[0]) != 100 {
		t.Fatalf("early newline should be skipped, first chunk = %d bytes", len(chunks[0]))
	}
}

func TestLargestPhoto(t *testing.T) {
	sizes := []tgbotapi.PhotoSize{
		{FileID: "small", Width: 90, Height: 90},
		{FileID: "large", Width: 1280, Height: 720},
		{FileID: "medium", Width: 320, Height: 320},
	}
	if got := largestPhoto(sizes); got != "large" {
		t.Fatalf("largestPhoto = %q, want %q", got, "large")
	}
}

func TestKeyboard(t *testing.T) {
	if kb := keyboard(nil); kb != nil {
		t.Fatalf("empty buttons should yield no keyboard")
	}

	kb := keyboard([][]domain.Button{
		{{Label: "Winlator", Data: "category:winlator"}, {Label: "GameHub", Data: "category:gamehub"}},
		{{Label: "Cancel", Data: "cancel"}},
	})
	if kb == nil {
		t.Fatalf("expected a keyboard")
	}
	if len(kb.InlineKeyboard) != 2 {
		t.Fatalf("got %d rows, want 2", len(kb.InlineKeyboard))
	}
	if len(kb.InlineKeyboard[0]) != 2 {
		t.Fatalf("got %d buttons in first row, want 2", len(kb.InlineKeyboard[0]))
	}
	btn := kb.InlineKeyboard[0][0]
	if btn.Text != "Winlator" || btn.CallbackData == nil || *btn.CallbackData != "category:winlator" {
		t.Fatalf("button mismatch: %+v", btn)
	}
}

func TestNewTelegram_ParsesAdminIDs(t *testing.T) {
	ch := NewTelegram(TelegramConfig{
		Token:    "token",
		AdminIDs: []string{" 123 ", "456", "garbage"},
		Logger:   testLogger,
	})

	if !ch.isAdmin(123) || !ch.isAdmin(456) {
		t.Fatalf("numeric admin ids not parsed: %v", ch.adminIDs)
	}
	if ch.isAdmin(789) {
		t.Fatalf("unknown user must not be admin")
	}
	if len(ch.adminIDs) != 2 {
		t.Fatalf("garbage id should be skipped, got %v", ch.adminIDs)
	}
}

func TestDeliver_NotConnected(t *testing.T) {
	ch := NewTelegram(TelegramConfig{Token: "token", Logger: testLogger})

	err := ch.SendPost(context.Background(), -100, "post")
	if err == nil {
		t.Fatalf("expected an error when the bot is not connected")
	}
	var de *domain.DeliveryError
	if !errors.As(err, &de) {
		t.Fatalf("expected a delivery error, got %T", err)
	}
	if de.Recoverable {
		t.Fatalf("disconnected bot is not a recoverable format fault")
	}
}

func TestName(t *testing.T) {
	ch := NewTelegram(TelegramConfig{Token: "token", Logger: testLogger})
	if ch.Name() != "telegram" {
		t.Fatalf("Name = %q", ch.Name())
	}
}
