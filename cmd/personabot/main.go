package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"personabot/internal/audit"
	"personabot/internal/config"
	"personabot/internal/dedupe"
	"personabot/internal/metrics"
	"personabot/internal/persona"
	"personabot/internal/prompt"
	"personabot/internal/provider"
	"personabot/internal/responder"
	"personabot/internal/slackgw"
	"personabot/internal/webhook"
)

var (
	version    = "0.1.0"
	logger     *slog.Logger
	configPath string // overridable via --config flag
)

func main() {
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	root := &cobra.Command{
		Use:     "personabot",
		Short:   "personabot: persona webhook responder for Slack",
		Long:    "personabot answers !persona triggers in Slack channels with character-voiced replies.",
		Version: version,
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.json (default: ~/.personabot/config.json)")

	root.AddCommand(initCmd())
	root.AddCommand(serveCmd())
	root.AddCommand(checkCmd())
	root.AddCommand(configCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// resolveConfigPath returns the config path from --config flag or default.
func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return config.DefaultConfigPath()
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize config and sample personas",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			if err := os.MkdirAll(filepath.Dir(cfgPath), 0o755); err != nil {
				return err
			}
			cfg := config.Defaults()
			cfg.Slack.BotToken = "${SLACK_BOT_TOKEN}"
			cfg.OpenAI.APIKey = "${OPENAI_API_KEY}"
			if err := config.Save(cfgPath, cfg); err != nil {
				return err
			}

			personasDir := config.ExpandPath(cfg.Personas.Dir)
			if err := os.MkdirAll(personasDir, 0o755); err != nil {
				return err
			}
			if err := writeSamplePersonas(personasDir); err != nil {
				return err
			}
			logger.Info("initialized", "config", cfgPath, "personas", personasDir)
			return nil
		},
	}
}

// writeSamplePersonas seeds the personas directory, never overwriting files
// the user already has.
func writeSamplePersonas(dir string) error {
	samples := map[string]string{
		"jack.yaml": `name: jack
displayName: Jack
iconEmoji: ":pirate_flag:"
systemPrompt: |
  You are Jack, a weathered pirate captain. You speak in nautical slang,
  call everyone "matey", and relate everything back to life at sea.
refMessages:
  - "Arr, that deploy went down faster than a galleon in a squall!"
  - "Batten down the hatches, matey, the standup be starting."
`,
		"brad.yaml": `name: brad
displayName: Brad
iconEmoji: ":surfer:"
systemPrompt: |
  You are Brad, a laid-back surfer. You keep it chill, say "dude" a lot,
  and compare everything to waves and tides.
refMessages:
  - "Duuude, that merge conflict was a total wipeout."
  - "Just ride the wave, man, the tests will pass eventually."
`,
	}
	for name, body := range samples {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			continue
		}
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			return fmt.Errorf("write sample persona %s: %w", name, err)
		}
	}
	return nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the webhook server",
		Long:  "Loads personas, connects to Slack and the completion API, and serves the event endpoint. Press Ctrl+C to stop.",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger = buildLogger(cfg.General)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry, err := persona.LoadDirectory(cfg.Personas.Dir, logger)
	if err != nil {
		return fmt.Errorf("load personas: %w", err)
	}
	logger.Info("personas loaded", "names", registry.Names())

	gateway, err := slackgw.New(slackgw.Config{
		BotToken: cfg.Slack.BotToken,
		APIURL:   cfg.Slack.APIBase,
		Timeout:  time.Duration(cfg.Slack.TimeoutSeconds) * time.Second,
		Logger:   logger,
	})
	if err != nil {
		return fmt.Errorf("slack gateway: %w", err)
	}

	completer := provider.NewOpenAI(provider.OpenAIConfig{
		APIKey:      cfg.OpenAI.APIKey,
		APIBase:     cfg.OpenAI.APIBase,
		Model:       cfg.OpenAI.Model,
		MaxTokens:   cfg.OpenAI.MaxTokens,
		Temperature: cfg.OpenAI.Temperature,
		Client:      provider.SharedHTTPClient(time.Duration(cfg.OpenAI.TimeoutSeconds) * time.Second),
		Logger:      logger,
	})

	var auditLog *audit.Store
	if cfg.Audit.Enabled {
		auditLog, err = audit.NewStore(cfg.Audit.DBPath, logger)
		if err != nil {
			return fmt.Errorf("audit store: %w", err)
		}
		defer auditLog.Close()
	}

	collector := metrics.NewCollector()

	delay := time.Duration(cfg.Reply.InterPostDelayMs) * time.Millisecond
	if cfg.Reply.InterPostDelayMs == 0 {
		delay = -1 // explicit zero disables the pause
	}
	orch := responder.New(responder.Config{
		Registry:       registry,
		Extractor:      persona.NewExtractor(registry),
		Assembler:      prompt.NewAssembler(gateway, registry, cfg.Reply.HistoryLimit, logger),
		Completer:      completer,
		Gateway:        gateway,
		AuditLog:       auditLog,
		Collector:      collector,
		InterPostDelay: delay,
		Logger:         logger,
	})

	metricsEndpoint := ""
	if cfg.Metrics.Enabled {
		metricsEndpoint = cfg.Metrics.Endpoint
	}
	srv := webhook.NewServer(webhook.Config{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		Path:            cfg.Server.Path,
		ReadTimeout:     time.Duration(cfg.Server.ReadTimeoutSeconds) * time.Second,
		WriteTimeout:    time.Duration(cfg.Server.WriteTimeoutSeconds) * time.Second,
		MetricsEndpoint: metricsEndpoint,
		Logger:          logger,
	}, dedupe.NewCache(cfg.Dedupe.MaxCacheSize), orch, collector)

	return srv.Start(ctx)
}

func checkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify config, personas, and upstream connectivity",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger.Info("config ok", "path", cfgPath)

			registry, err := persona.LoadDirectory(cfg.Personas.Dir, logger)
			if err != nil {
				return fmt.Errorf("load personas: %w", err)
			}
			logger.Info("personas ok", "names", registry.Names())

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			gateway, err := slackgw.New(slackgw.Config{
				BotToken: cfg.Slack.BotToken,
				APIURL:   cfg.Slack.APIBase,
				Timeout:  time.Duration(cfg.Slack.TimeoutSeconds) * time.Second,
				Logger:   logger,
			})
			if err != nil {
				return fmt.Errorf("slack gateway: %w", err)
			}
			botUser, err := gateway.AuthTest(ctx)
			if err != nil {
				logger.Error("slack auth failed", "err", err)
			} else {
				logger.Info("slack ok", "bot_user", botUser)
			}

			completer := provider.NewOpenAI(provider.OpenAIConfig{
				APIKey:  cfg.OpenAI.APIKey,
				APIBase: cfg.OpenAI.APIBase,
				Model:   cfg.OpenAI.Model,
				Logger:  logger,
			})
			if err := completer.Healthy(ctx); err != nil {
				logger.Error("completion API unhealthy", "err", err)
			} else {
				logger.Info("completion API ok", "model", cfg.OpenAI.Model)
			}
			return nil
		},
	}
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "View configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List all config values (secrets masked)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(resolveConfigPath())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			data, _ := json.MarshalIndent(config.Sanitize(cfg), "", "  ")
			fmt.Println(string(data))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show config file path",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(resolveConfigPath())
		},
	})

	return cmd
}

func buildLogger(general config.GeneralConfig) *slog.Logger {
	var level slog.Level
	switch general.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	out := os.Stderr
	if general.LogFile != "" {
		f, err := os.OpenFile(general.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err == nil {
			out = f
		}
	}
	return slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: level}))
}
