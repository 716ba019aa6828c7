package notifier

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/pfrederiksen/chi-landmarks/internal/event"
	"github.com/pfrederiksen/chi-landmarks/internal/logger"
	"github.com/pfrederiksen/chi-landmarks/internal/telegram"
)

// digestThreshold is the batch size above which Telegram gets one digest
// message instead of one message per meeting.
const digestThreshold = 3

type messageSender interface {
	SendMessage(ctx context.Context, text string) error
}

// TelegramNotifier posts meetings to a Telegram chat
type TelegramNotifier struct {
	client   messageSender
	interval time.Duration
}

// NewTelegramNotifier creates a Telegram notifier from TELEGRAM_BOT_TOKEN
// and TELEGRAM_CHAT_ID.
func NewTelegramNotifier() (*TelegramNotifier, error) {
	client, err := telegram.NewClient(os.Getenv("TELEGRAM_BOT_TOKEN"), os.Getenv("TELEGRAM_CHAT_ID"))
	if err != nil {
		return nil, fmt.Errorf("creating telegram client: %w", err)
	}
	return &TelegramNotifier{client: client, interval: time.Second}, nil
}

// Notify sends one message per meeting, or a single digest for large batches
func (n *TelegramNotifier) Notify(ctx context.Context, events []*event.Event) error {
	if len(events) > digestThreshold {
		if err := n.client.SendMessage(ctx, telegram.FormatDigest(events)); err != nil {
			return fmt.Errorf("sending digest of %d meetings: %w", len(events), err)
		}
		logger.Info("Sent Telegram digest", logger.Fields{"meetings": len(events)})
		return nil
	}

	for i, evt := range events {
		if err := n.client.SendMessage(ctx, telegram.FormatMeeting(evt)); err != nil {
			return stopped(i, fmt.Errorf("sending message for meeting %s: %w", evt.ID, err))
		}
		logger.Info("Sent Telegram message", logger.Fields{"meeting_id": evt.ID})

		if i < len(events)-1 {
			select {
			case <-ctx.Done():
				return stopped(i+1, ctx.Err())
			case <-time.After(n.interval):
			}
		}
	}
	return nil
}
