// Package webhook is the inbound HTTP surface: it accepts the platform's
// event callbacks, answers verification challenges, deduplicates message
// events, and hands admitted events to the orchestrator.
package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/slack-go/slack/slackevents"

	"personabot/internal/dedupe"
	"personabot/internal/domain"
	"personabot/internal/metrics"
	"personabot/internal/responder"
)

const maxBodyBytes = 1 << 20 // 1MB

// Config configures the webhook server.
type Config struct {
	Host            string
	Port            int
	Path            string // event endpoint path (default: /scan)
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	MetricsEndpoint string // empty disables the metrics endpoint
	Logger          *slog.Logger
}

// Server owns the HTTP listener and the per-request pipeline wiring.
type Server struct {
	host         string
	port         int
	path         string
	readTimeout  time.Duration
	writeTimeout time.Duration
	cache        *dedupe.Cache
	orchestrator *responder.Orchestrator
	collector    *metrics.Collector
	metricsPath  string
	logger       *slog.Logger
	server       *http.Server
}

func NewServer(cfg Config, cache *dedupe.Cache, orch *responder.Orchestrator, collector *metrics.Collector) *Server {
	if cfg.Path == "" {
		cfg.Path = "/scan"
	}
	if cfg.Port == 0 {
		cfg.Port = 4444
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		// The handler blocks on sequential generation calls, so the write
		// timeout has to cover the whole persona loop.
		cfg.WriteTimeout = 5 * time.Minute
	}
	if collector == nil {
		collector = metrics.NewCollector()
	}
	return &Server{
		host:         cfg.Host,
		port:         cfg.Port,
		path:         cfg.Path,
		readTimeout:  cfg.ReadTimeout,
		writeTimeout: cfg.WriteTimeout,
		cache:        cache,
		orchestrator: orch,
		collector:    collector,
		metricsPath:  cfg.MetricsEndpoint,
		logger:       cfg.Logger,
	}
}

// Start runs the HTTP server until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc(s.path, s.handleEvent)
	if s.metricsPath != "" && s.collector != nil {
		mux.HandleFunc(s.metricsPath, s.collector.Handler())
	}

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.host, s.port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       s.readTimeout,
		WriteTimeout:      s.writeTimeout,
		IdleTimeout:       60 * time.Second,
	}

	s.logger.Info("webhook server starting", "addr", s.server.Addr, "path", s.path)

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("webhook server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return fmt.Errorf("webhook server: %w", err)
	}
}

// handleEvent is the endpoint state machine: verification → dispatch →
// dedup → processing. Every parseable outcome is a 200; the platform must
// never see an error status for business-logic failures, or it retry-storms.
func (s *Server) handleEvent(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(rw, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	logger := s.logger.With("request_id", uuid.NewString())

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		http.Error(rw, "Bad Request", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	s.collector.Inc(metrics.EventsTotal, "Webhook payloads received")

	parsed, err := slackevents.ParseEvent(json.RawMessage(body), slackevents.OptionNoVerifyToken())
	if err != nil {
		// Malformed payloads are acknowledged, not retried.
		logger.Warn("unparseable payload, acking anyway", "err", err)
		writeStatus(rw, domain.StatusOK)
		return
	}

	// Verification state: echo the challenge and stop.
	if parsed.Type == slackevents.URLVerification {
		challenge, ok := parsed.Data.(*slackevents.EventsAPIURLVerificationEvent)
		if !ok || challenge.Challenge == "" {
			writeStatus(rw, domain.StatusOK)
			return
		}
		logger.Info("url verification challenge answered")
		rw.Header().Set("Content-Type", "text/plain")
		io.WriteString(rw, challenge.Challenge)
		return
	}

	// Dispatch state: anything that is not a message event gets a plain ack.
	if parsed.Type != slackevents.CallbackEvent {
		writeStatus(rw, domain.StatusOK)
		return
	}
	msg, ok := parsed.InnerEvent.Data.(*slackevents.MessageEvent)
	if !ok {
		writeStatus(rw, domain.StatusOK)
		return
	}

	ev := toInboundEvent(parsed, msg)

	// Dedup state: the admit is the only cross-request side effect.
	identity := dedupe.Identity(ev)
	if !s.cache.Admit(identity) {
		logger.Info("duplicate event rejected", "identity", identity)
		s.collector.Inc(metrics.DedupRejectsTotal, "Events rejected as duplicates")
		writeStatus(rw, domain.StatusAlreadyProcessed)
		return
	}

	// Processing state: downstream outcomes never change the ack for a
	// human-authored event.
	outcome := s.orchestrator.Respond(r.Context(), identity, ev)
	logger.Info("event processed",
		"identity", identity,
		"status", outcome.Status,
		"triggered", outcome.Triggered,
		"posted", outcome.Posted,
		"failed", outcome.Failed,
	)
	writeStatus(rw, outcome.Status)
}

func toInboundEvent(parsed slackevents.EventsAPIEvent, msg *slackevents.MessageEvent) domain.InboundEvent {
	ev := domain.InboundEvent{
		Type:        msg.Type,
		ChannelID:   msg.Channel,
		UserID:      msg.User,
		Text:        msg.Text,
		Timestamp:   msg.TimeStamp,
		ClientMsgID: msg.ClientMsgID,
		BotID:       msg.BotID,
		SubType:     msg.SubType,
		Username:    msg.Username,
	}
	if cb, ok := parsed.Data.(*slackevents.EventsAPICallbackEvent); ok {
		ev.EventID = cb.EventID
	}
	return ev
}

func writeStatus(rw http.ResponseWriter, status string) {
	rw.Header().Set("Content-Type", "application/json")
	json.NewEncoder(rw).Encode(map[string]string{"status": status})
}
