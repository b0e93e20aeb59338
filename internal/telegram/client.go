// Package telegram sends survey result summaries via the Telegram Bot API.
// It formats trap rates into a MarkdownV2 message, optionally followed by the
// trap-rate chart, and retries delivery with a linear backoff.
package telegram

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/camtrapnz/camtrap/internal/models"
)

// sender is the part of *tgbotapi.BotAPI the client uses.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Client handles Telegram notifications
type Client struct {
	bot            sender
	chatID         int64
	maxRetries     int
	retryDelayBase time.Duration
}

// Report is the content of one survey notification.
type Report struct {
	Source      string
	RunID       string
	Cameras     int
	CameraDays  int
	Independent int
	Gap         time.Duration
	BinDays     int
	Rates       []models.TrapRate
	Warnings    int
}

// NewClient creates a new Telegram client
func NewClient(botToken, chatID string, maxRetries int, retryDelayBase time.Duration) (*Client, error) {
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}
	return newClient(bot, chatID, maxRetries, retryDelayBase)
}

func newClient(bot sender, chatID string, maxRetries int, retryDelayBase time.Duration) (*Client, error) {
	chatIDInt, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid chat ID: %w", err)
	}

	if maxRetries <= 0 {
		maxRetries = 3
	}
	if retryDelayBase <= 0 {
		retryDelayBase = time.Second
	}

	return &Client{
		bot:            bot,
		chatID:         chatIDInt,
		maxRetries:     maxRetries,
		retryDelayBase: retryDelayBase,
	}, nil
}

// Send sends the survey summary, then the chart when chartPath is not empty.
func (c *Client) Send(report Report, chartPath string) error {
	msg := tgbotapi.NewMessage(c.chatID, formatMessage(report))
	msg.ParseMode = "MarkdownV2"
	if err := c.sendWithRetry(msg); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}

	if chartPath == "" {
		return nil
	}
	photo := tgbotapi.NewPhoto(c.chatID, tgbotapi.FilePath(chartPath))
	photo.Caption = "Camera trap rate per species"
	if err := c.sendWithRetry(photo); err != nil {
		return fmt.Errorf("failed to send chart: %w", err)
	}
	return nil
}

func (c *Client) sendWithRetry(msg tgbotapi.Chattable) error {
	var lastErr error

	for i := 0; i < c.maxRetries; i++ {
		_, err := c.bot.Send(msg)
		if err == nil {
			return nil
		}
		lastErr = err
		if i < c.maxRetries-1 {
			time.Sleep(c.retryDelayBase * time.Duration(i+1))
		}
	}

	return fmt.Errorf("gave up after %d retries: %w", c.maxRetries, lastErr)
}

// formatMessage formats a survey report into a Telegram message
func formatMessage(r Report) string {
	var b strings.Builder
	b.WriteString("📷 *Camera Trap Survey Results*\n\n")

	if r.Source != "" {
		fmt.Fprintf(&b, "Source: `%s`\n", escapeCode(r.Source))
	}
	fmt.Fprintf(&b, "Cameras: %d, camera\\-days: %d\n", r.Cameras, r.CameraDays)
	fmt.Fprintf(&b, "Independent detections: %d \\(gap %s\\)\n",
		r.Independent, escapeMarkdownV2(formatDuration(r.Gap)))
	if r.BinDays > 0 {
		fmt.Fprintf(&b, "History bins: %d days\n", r.BinDays)
	}
	b.WriteString("\n")

	if len(r.Rates) == 0 {
		b.WriteString("_No trap rates for the selected species\\._\n")
	}
	for i, rate := range r.Rates {
		value := escapeMarkdownV2(fmt.Sprintf("%.2f", rate.Rate))
		lower := escapeMarkdownV2(fmt.Sprintf("%.2f", rate.Lower95))
		upper := escapeMarkdownV2(fmt.Sprintf("%.2f", rate.Upper95))

		fmt.Fprintf(&b, "%d\\. %s: *%s* \\[%s – %s\\]", i+1, escapeMarkdownV2(rate.Species), value, lower, upper)
		if rate.Saturated {
			b.WriteString(" ⚠️ saturated")
		}
		b.WriteString("\n")
	}
	b.WriteString("\n_per 100 camera\\-days, 95% Wilson interval_\n")

	if r.Warnings > 0 {
		fmt.Fprintf(&b, "⚠️ %d warnings, see the run log\\.\n", r.Warnings)
	}
	if r.RunID != "" {
		fmt.Fprintf(&b, "Run: `%s`\n", escapeCode(r.RunID))
	}
	return b.String()
}

// escapeMarkdownV2 escapes special characters for Telegram MarkdownV2
func escapeMarkdownV2(text string) string {
	// Characters that need escaping in MarkdownV2:
	// _ * [ ] ( ) ~ ` > # + - = | { } . !
	var b strings.Builder
	for _, char := range text {
		switch char {
		case '_', '*', '[', ']', '(', ')', '~', '`', '>', '#', '+', '-', '=', '|', '{', '}', '.', '!', '\\':
			b.WriteRune('\\')
		}
		b.WriteRune(char)
	}
	return b.String()
}

// escapeCode escapes text inside a `code` span, where only ` and \ are special.
func escapeCode(text string) string {
	return strings.NewReplacer("\\", "\\\\", "`", "\\`").Replace(text)
}

// formatDuration formats a duration in a human-readable way
func formatDuration(d time.Duration) string {
	if d >= time.Hour && d%time.Hour == 0 {
		return fmt.Sprintf("%dh", int(d.Hours()))
	}
	if d >= time.Minute && d%time.Minute == 0 {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	return d.String()
}
