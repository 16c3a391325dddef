package notify

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/slack-go/slack"
)

// DefaultSlackTimeout bounds one Slack API call when no timeout is given.
const DefaultSlackTimeout = 15 * time.Second

// SlackMessenger posts and edits status messages in one Slack channel.
type SlackMessenger struct {
	client    *slack.Client
	channelID string
	timeout   time.Duration
}

// NewSlackMessenger returns a messenger for channelID. Each API call gives up
// after timeout (DefaultSlackTimeout when zero or negative). Extra options are
// passed to slack.New after the bounded HTTP client (tests use
// slack.OptionAPIURL).
func NewSlackMessenger(token, channelID string, timeout time.Duration, opts ...slack.Option) *SlackMessenger {
	if timeout <= 0 {
		timeout = DefaultSlackTimeout
	}
	all := append([]slack.Option{slack.OptionHTTPClient(&http.Client{Timeout: timeout})}, opts...)
	return &SlackMessenger{client: slack.New(token, all...), channelID: channelID, timeout: timeout}
}

// Post sends p as a new message and returns its timestamp, which serves as the
// message reference for later updates.
func (m *SlackMessenger) Post(ctx context.Context, p Payload) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	_, ts, err := m.client.PostMessageContext(ctx, m.channelID, options(p)...)
	if err != nil {
		return "", fmt.Errorf("slack post message: %w", err)
	}
	slog.Debug("slack message posted", slog.String("component", "slack"), slog.String("ts", ts))
	return ts, nil
}

// Update replaces the content of the message identified by ref.
func (m *SlackMessenger) Update(ctx context.Context, ref string, p Payload) error {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	if _, _, _, err := m.client.UpdateMessageContext(ctx, m.channelID, ref, options(p)...); err != nil {
		return fmt.Errorf("slack update message %s: %w", ref, err)
	}
	return nil
}

func options(p Payload) []slack.MsgOption {
	return []slack.MsgOption{
		slack.MsgOptionText(p.Text, false),
		slack.MsgOptionBlocks(p.Blocks...),
	}
}
