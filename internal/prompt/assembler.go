package prompt

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"personabot/internal/domain"
	"personabot/internal/persona"
)

const (
	DefaultHistoryLimit = 10

	baseInstruction = "You are roleplaying as a specific character in a group chat. " +
		"Stay in character at all times. Reply with a single chat message, no narration."
)

// Assembler builds the generation prompt for one persona: character
// description, reference corpus, and recent channel history, each in
// explicitly delimited blocks so the model can tell reference material from
// live conversation.
type Assembler struct {
	gateway      domain.ChatGateway
	registry     *persona.Registry
	historyLimit int
	logger       *slog.Logger
}

func NewAssembler(gateway domain.ChatGateway, registry *persona.Registry, historyLimit int, logger *slog.Logger) *Assembler {
	if historyLimit <= 0 {
		historyLimit = DefaultHistoryLimit
	}
	return &Assembler{
		gateway:      gateway,
		registry:     registry,
		historyLimit: historyLimit,
		logger:       logger,
	}
}

// Assemble returns the full prompt for personaName in channelID. The only
// error is an unknown persona; history or display-name failures degrade to a
// prompt without the affected block.
func (a *Assembler) Assemble(ctx context.Context, personaName, channelID string) (string, error) {
	p, err := a.registry.Get(personaName)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString(baseInstruction)
	sb.WriteString("\n\n")
	sb.WriteString("Character description:\n")
	sb.WriteString(p.SystemPrompt)
	sb.WriteString("\n")

	if len(p.RefMessages) > 0 {
		sb.WriteString("\nExample messages written by this character:\n")
		for _, ref := range p.RefMessages {
			sb.WriteString("<<<REFERENCE MESSAGE START>>>\n")
			sb.WriteString(ref)
			sb.WriteString("\n<<<REFERENCE MESSAGE END>>>\n")
		}
	}

	if channelID != "" {
		if history := a.historyBlock(ctx, channelID); history != "" {
			sb.WriteString("\nRecent conversation in this channel, oldest first:\n")
			sb.WriteString(history)
		}
	}

	return sb.String(), nil
}

// historyBlock fetches and formats recent channel history. Returns "" on any
// collaborator failure; the prompt is still usable without it.
func (a *Assembler) historyBlock(ctx context.Context, channelID string) string {
	msgs, err := a.gateway.RecentMessages(ctx, channelID, a.historyLimit)
	if err != nil {
		a.logger.Warn("history fetch failed, assembling without it", "channel", channelID, "err", err)
		return ""
	}
	if len(msgs) == 0 {
		return ""
	}

	names := a.resolveAuthors(ctx, msgs)

	var sb strings.Builder
	for _, m := range msgs {
		author := m.Username
		if !m.BotOriginated {
			author = names[m.AuthorID]
			if author == "" {
				author = m.AuthorID
			}
		}
		if author == "" {
			author = m.AuthorID
		}
		fmt.Fprintf(&sb, "<<<MESSAGE FROM %s START>>>\n%s\n<<<MESSAGE END>>>\n", author, m.Text)
	}
	return sb.String()
}

// resolveAuthors looks up display names for the human authors in one batch.
// Bot messages keep their declared username and are not looked up.
func (a *Assembler) resolveAuthors(ctx context.Context, msgs []domain.HistoryMessage) map[string]string {
	seen := make(map[string]struct{})
	var ids []string
	for _, m := range msgs {
		if m.BotOriginated || m.AuthorID == "" {
			continue
		}
		if _, ok := seen[m.AuthorID]; ok {
			continue
		}
		seen[m.AuthorID] = struct{}{}
		ids = append(ids, m.AuthorID)
	}
	if len(ids) == 0 {
		return nil
	}

	names, err := a.gateway.DisplayNames(ctx, ids)
	if err != nil {
		a.logger.Warn("display name lookup failed, using raw ids", "err", err)
		return nil
	}
	return names
}
