package notifier

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dghubble/go-twitter/twitter" //nolint:staticcheck // Using stable v1.1 API
	"github.com/dghubble/oauth1"
	"github.com/pfrederiksen/chi-landmarks/internal/event"
	"github.com/pfrederiksen/chi-landmarks/internal/logger"
)

const (
	maxTweetLength = 280
	tweetInterval  = 2 * time.Second
)

// statusUpdater is the part of the Twitter client the notifier uses.
type statusUpdater interface {
	Update(status string, params *twitter.StatusUpdateParams) (*twitter.Tweet, error)
}

type clientStatuses struct {
	svc *twitter.StatusService
}

func (c clientStatuses) Update(status string, params *twitter.StatusUpdateParams) (*twitter.Tweet, error) {
	tweet, _, err := c.svc.Update(status, params)
	return tweet, err
}

// TwitterNotifier posts meetings to Twitter
type TwitterNotifier struct {
	statuses statusUpdater
	interval time.Duration
}

// NewTwitterNotifier creates a new Twitter notifier using environment variables
// Required environment variables:
// - TWITTER_API_KEY
// - TWITTER_API_SECRET
// - TWITTER_ACCESS_TOKEN
// - TWITTER_ACCESS_SECRET
func NewTwitterNotifier() (*TwitterNotifier, error) {
	apiKey := os.Getenv("TWITTER_API_KEY")
	apiSecret := os.Getenv("TWITTER_API_SECRET")
	accessToken := os.Getenv("TWITTER_ACCESS_TOKEN")
	accessSecret := os.Getenv("TWITTER_ACCESS_SECRET")

	if apiKey == "" || apiSecret == "" || accessToken == "" || accessSecret == "" {
		return nil, fmt.Errorf("missing required Twitter credentials in environment variables")
	}

	config := oauth1.NewConfig(apiKey, apiSecret)
	token := oauth1.NewToken(accessToken, accessSecret)
	httpClient := config.Client(oauth1.NoContext, token)
	client := twitter.NewClient(httpClient)

	return &TwitterNotifier{
		statuses: clientStatuses{svc: client.Statuses},
		interval: tweetInterval,
	}, nil
}

// Notify posts tweets for each meeting, pausing between posts
func (n *TwitterNotifier) Notify(ctx context.Context, events []*event.Event) error {
	for i, evt := range events {
		tweet := formatTweet(evt)

		if _, err := n.statuses.Update(tweet, nil); err != nil {
			return stopped(i, fmt.Errorf("failed to post tweet for meeting %s: %w", evt.ID, err))
		}
		logger.Info("Posted tweet", logger.Fields{"meeting_id": evt.ID})

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

// formatTweet formats a meeting as a tweet
func formatTweet(evt *event.Event) string {
	var b strings.Builder
	b.WriteString("🏛️ New Commission on Chicago Landmarks meeting\n\n")

	if !evt.Start.Date.IsZero() {
		start := evt.StartTime(time.UTC)
		if evt.Start.Time != nil {
			b.WriteString(fmt.Sprintf("📅 %s\n", start.Format("Mon Jan 2, 2006 3:04 PM")))
		} else {
			b.WriteString(fmt.Sprintf("📅 %s\n", start.Format("Mon Jan 2, 2006")))
		}
	}
	if evt.Location.Name != "" {
		b.WriteString(fmt.Sprintf("📍 %s, %s\n", evt.Location.Name, evt.Location.Address))
	}
	if evt.Status == event.StatusCancelled {
		b.WriteString("⚠️ Cancelled\n")
	}
	for _, doc := range evt.Documents {
		if !doc.IsZero() {
			b.WriteString(fmt.Sprintf("\n📄 %s: %s\n", doc.Note, doc.URL))
			break
		}
	}

	b.WriteString("\n#Chicago #Landmarks")

	return truncate(b.String(), maxTweetLength)
}

// truncate shortens s to at most limit runes, ending with an ellipsis.
func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit-3]) + "..."
}
