// Package slackgw implements the chat gateway against the Slack Web API.
package slackgw

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/slack-go/slack"

	"personabot/internal/domain"
)

const defaultAPITimeout = 15 * time.Second

// Client wraps a slack.Client behind domain.ChatGateway.
type Client struct {
	api    *slack.Client
	logger *slog.Logger
}

// Config configures the Slack gateway.
type Config struct {
	BotToken string
	APIURL   string // override for tests; empty uses the real API
	Timeout  time.Duration
	Logger   *slog.Logger
}

func New(cfg Config) (*Client, error) {
	if cfg.BotToken == "" {
		return nil, fmt.Errorf("slack bot token is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultAPITimeout
	}

	opts := []slack.Option{
		slack.OptionHTTPClient(&http.Client{Timeout: timeout}),
	}
	if cfg.APIURL != "" {
		opts = append(opts, slack.OptionAPIURL(cfg.APIURL))
	}

	return &Client{
		api:    slack.New(cfg.BotToken, opts...),
		logger: cfg.Logger,
	}, nil
}

// AuthTest verifies the bot token. Used by the check command.
func (c *Client) AuthTest(ctx context.Context) (string, error) {
	resp, err := c.api.AuthTestContext(ctx)
	if err != nil {
		return "", fmt.Errorf("slack auth test: %w", err)
	}
	return resp.User, nil
}

// PostMessage posts text to channelID under the given display identity.
func (c *Client) PostMessage(ctx context.Context, channelID, text, displayName, iconEmoji string) error {
	opts := []slack.MsgOption{
		slack.MsgOptionText(text, false),
	}
	if displayName != "" {
		opts = append(opts, slack.MsgOptionUsername(displayName))
	}
	if iconEmoji != "" {
		opts = append(opts, slack.MsgOptionIconEmoji(iconEmoji))
	}

	_, _, err := c.api.PostMessageContext(ctx, channelID, opts...)
	if err != nil {
		return fmt.Errorf("post message to %s: %w", channelID, err)
	}
	return nil
}

// RecentMessages returns up to limit most recent channel messages,
// oldest-first. Slack returns newest-first; the order is reversed here so
// callers can format history chronologically.
func (c *Client) RecentMessages(ctx context.Context, channelID string, limit int) ([]domain.HistoryMessage, error) {
	resp, err := c.api.GetConversationHistoryContext(ctx, &slack.GetConversationHistoryParameters{
		ChannelID: channelID,
		Limit:     limit,
	})
	if err != nil {
		return nil, fmt.Errorf("conversation history for %s: %w", channelID, err)
	}

	out := make([]domain.HistoryMessage, 0, len(resp.Messages))
	for i := len(resp.Messages) - 1; i >= 0; i-- {
		m := resp.Messages[i].Msg
		out = append(out, domain.HistoryMessage{
			AuthorID:      m.User,
			Text:          m.Text,
			BotOriginated: m.BotID != "" || m.SubType == "bot_message",
			Username:      m.Username,
		})
	}
	return out, nil
}

// DisplayNames resolves user IDs to display names with one users.info batch.
// Unresolved IDs map to themselves.
func (c *Client) DisplayNames(ctx context.Context, userIDs []string) (map[string]string, error) {
	names := make(map[string]string, len(userIDs))
	for _, id := range userIDs {
		names[id] = id
	}
	if len(userIDs) == 0 {
		return names, nil
	}

	users, err := c.api.GetUsersInfoContext(ctx, userIDs...)
	if err != nil {
		return names, fmt.Errorf("users info: %w", err)
	}
	for _, u := range *users {
		if name := displayName(u); name != "" {
			names[u.ID] = name
		}
	}
	return names, nil
}

func displayName(u slack.User) string {
	if u.Profile.DisplayName != "" {
		return u.Profile.DisplayName
	}
	if u.RealName != "" {
		return u.RealName
	}
	return u.Name
}
