// Package responder drives persona response generation for one inbound
// event: trigger extraction, context assembly, generation, and posting.
package responder

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"personabot/internal/audit"
	"personabot/internal/domain"
	"personabot/internal/metrics"
	"personabot/internal/persona"
	"personabot/internal/prompt"
)

const (
	// Passed to the completer with the assembled persona prompt.
	characterInstruction = "Respond in the voice of this character."

	DefaultInterPostDelay = 1 * time.Second
)

// Orchestrator produces zero or more outbound posts for one event. Persona
// responses are strictly sequential: a later persona's context fetch is
// allowed to observe an earlier persona's freshly posted reply, which is also
// why a short delay sits between successive posts.
type Orchestrator struct {
	registry  *persona.Registry
	extractor *persona.Extractor
	assembler *prompt.Assembler
	completer domain.Completer
	gateway   domain.ChatGateway
	auditLog  *audit.Store // optional
	collector *metrics.Collector
	delay     time.Duration
	logger    *slog.Logger
}

// Config holds the orchestrator's collaborators and tuning.
type Config struct {
	Registry       *persona.Registry
	Extractor      *persona.Extractor
	Assembler      *prompt.Assembler
	Completer      domain.Completer
	Gateway        domain.ChatGateway
	AuditLog       *audit.Store // nil disables delivery logging
	Collector      *metrics.Collector
	InterPostDelay time.Duration // 0 keeps the default; negative disables
	Logger         *slog.Logger
}

// Outcome reports what one event produced, for the handler ack and tests.
type Outcome struct {
	Status    string
	Triggered int
	Posted    int
	Failed    int
}

func New(cfg Config) *Orchestrator {
	delay := cfg.InterPostDelay
	if delay == 0 {
		delay = DefaultInterPostDelay
	}
	if delay < 0 {
		delay = 0
	}
	collector := cfg.Collector
	if collector == nil {
		collector = metrics.NewCollector()
	}
	return &Orchestrator{
		registry:  cfg.Registry,
		extractor: cfg.Extractor,
		assembler: cfg.Assembler,
		completer: cfg.Completer,
		gateway:   cfg.Gateway,
		auditLog:  cfg.AuditLog,
		collector: collector,
		delay:     delay,
		logger:    cfg.Logger,
	}
}

// Respond processes one admitted event. Bot-origin rejection runs before
// trigger extraction, independent of deduplication. identity is the event's
// dedup key, carried through for delivery logging.
func (o *Orchestrator) Respond(ctx context.Context, identity string, ev domain.InboundEvent) Outcome {
	if ev.BotOriginated() {
		o.collector.Inc(metrics.BotRejectsTotal, "Events rejected as bot-originated")
		return Outcome{Status: domain.StatusBotMessage}
	}
	if o.registry.IsPersonaUsername(ev.Username) {
		o.collector.Inc(metrics.BotRejectsTotal, "Events rejected as bot-originated")
		return Outcome{Status: domain.StatusPersonaBotMessage}
	}

	triggered := o.extractor.Extract(ev.Text)
	out := Outcome{Status: domain.StatusOK, Triggered: len(triggered)}
	if len(triggered) == 0 {
		return out
	}

	for i, name := range triggered {
		o.collector.Inc(metrics.TriggersTotal, "Persona triggers extracted")
		if i > 0 && o.delay > 0 {
			// Later personas re-fetch history; the pause makes the previous
			// post observable to them, it is not rate limiting.
			select {
			case <-ctx.Done():
				o.logger.Warn("response loop cancelled", "remaining", len(triggered)-i)
				return out
			case <-time.After(o.delay):
			}
		}
		if o.respondAs(ctx, identity, name, ev.ChannelID) {
			out.Posted++
		} else {
			out.Failed++
		}
	}
	return out
}

// respondAs runs one persona's assemble → generate → post step. Returns true
// when a message was posted, including the fallback apology.
func (o *Orchestrator) respondAs(ctx context.Context, identity, name, channelID string) bool {
	p, err := o.registry.Get(name)
	if err != nil {
		// Extractor and registry share the persona set, so this is a
		// configuration error; skip the persona and keep going.
		o.logger.Error("triggered persona not configured", "persona", name, "err", err)
		return false
	}

	text, err := o.generate(ctx, identity, p, channelID)
	if err != nil {
		text = fmt.Sprintf("Sorry, I couldn't generate a response for %s.", p.Name)
	}

	if err := o.gateway.PostMessage(ctx, channelID, text, p.DisplayName, p.IconEmoji); err != nil {
		// Best-effort delivery: log, record, move on.
		o.logger.Error("post failed", "persona", p.Name, "channel", channelID, "err", err)
		o.collector.Inc(metrics.PostFailuresTotal, "Failed postMessage calls")
		o.record(ctx, identity, p.Name, channelID, audit.ActionPost, false, err.Error())
		return false
	}

	o.collector.Inc(metrics.PostsTotal, "Successful postMessage calls")
	o.record(ctx, identity, p.Name, channelID, audit.ActionPost, true, "")
	return true
}

func (o *Orchestrator) generate(ctx context.Context, identity string, p domain.Persona, channelID string) (string, error) {
	assembled, err := o.assembler.Assemble(ctx, p.Name, channelID)
	if err != nil {
		return "", err
	}

	start := time.Now()
	text, err := o.completer.Complete(ctx, assembled, characterInstruction)
	o.collector.ObserveLatency(time.Since(start))
	if err != nil {
		o.logger.Error("generation failed", "persona", p.Name, "err", err)
		o.collector.Inc(metrics.GenerationFailures, "Failed completion calls")
		o.record(ctx, identity, p.Name, channelID, audit.ActionGenerate, false, err.Error())
		return "", err
	}

	o.collector.Inc(metrics.GenerationsTotal, "Successful completion calls")
	o.record(ctx, identity, p.Name, channelID, audit.ActionGenerate, true, "")
	return text, nil
}

func (o *Orchestrator) record(ctx context.Context, identity, personaName, channelID string, action audit.Action, ok bool, detail string) {
	if o.auditLog == nil {
		return
	}
	o.auditLog.Record(ctx, audit.Entry{
		EventIdentity: identity,
		Persona:       personaName,
		ChannelID:     channelID,
		Action:        action,
		OK:            ok,
		Detail:        detail,
	})
}
