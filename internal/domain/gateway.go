package domain

import "context"

// ChatGateway is the outbound interface to the messaging platform.
// All methods are best-effort from the caller's point of view: history and
// display-name failures degrade to empty results upstream, and post failures
// are logged and swallowed by the orchestrator.
type ChatGateway interface {
	// PostMessage posts text to a channel under the given display identity.
	PostMessage(ctx context.Context, channelID, text, displayName, iconEmoji string) error

	// RecentMessages returns up to limit most recent messages, oldest-first.
	RecentMessages(ctx context.Context, channelID string, limit int) ([]HistoryMessage, error)

	// DisplayNames resolves user IDs to display names. IDs that cannot be
	// resolved map to themselves.
	DisplayNames(ctx context.Context, userIDs []string) (map[string]string, error)
}

// Completer generates character-voiced text from a system prompt and an
// instruction.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, instruction string) (string, error)
}
