package providers

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-telegram/bot"
	"golang.org/x/time/rate"

	"sitewatch/internal/config"
	"sitewatch/internal/logging"
	"sitewatch/internal/models"
	"sitewatch/internal/utils"
)

// TelegramSender delivers notifications through a Telegram bot. The recipient
// is the numeric chat id. Sends are rate limited and retried.
type TelegramSender struct {
	cfg     config.Config
	limiter *rate.Limiter
	logger  *logging.Logger
}

func NewTelegramSender(cfg config.Config, logger *logging.Logger) *TelegramSender {
	perSecond := cfg.Telegram.RatePerSecond
	if perSecond <= 0 {
		perSecond = 20
	}
	return &TelegramSender{
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(float64(perSecond)), perSecond),
		logger:  logger,
	}
}

func (s *TelegramSender) Send(ctx context.Context, msg models.OutboundMessage) error {
	if s.cfg.Telegram.BotToken == "" {
		return fmt.Errorf("missing Telegram bot token")
	}
	chatID, err := strconv.ParseInt(msg.Recipient, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid Telegram chat id %q: %w", msg.Recipient, err)
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("telegram rate limit wait: %w", err)
	}

	text := msg.Body
	if msg.Subject != "" {
		text = fmt.Sprintf("*%s*\n%s", msg.Subject, msg.Body)
	}

	return utils.Retry(ctx, s.logger, 3, time.Second, func() error {
		b, err := bot.New(s.cfg.Telegram.BotToken)
		if err != nil {
			return fmt.Errorf("failed to initialize Telegram bot: %w", err)
		}
		params := &bot.SendMessageParams{
			ChatID:    chatID,
			Text:      text,
			ParseMode: "Markdown",
		}
		if _, err := b.SendMessage(ctx, params); err != nil {
			return fmt.Errorf("failed to send Telegram message to chat %d: %w", chatID, err)
		}
		return nil
	})
}
