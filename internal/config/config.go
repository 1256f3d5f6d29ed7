package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Config is the root configuration for personabot.
type Config struct {
	General  GeneralConfig  `json:"general"`
	Server   ServerConfig   `json:"server"`
	Slack    SlackConfig    `json:"slack"`
	OpenAI   OpenAIConfig   `json:"openai"`
	Personas PersonasConfig `json:"personas"`
	Dedupe   DedupeConfig   `json:"dedupe"`
	Reply    ReplyConfig    `json:"reply"`
	Audit    AuditConfig    `json:"audit"`
	Metrics  MetricsConfig  `json:"metrics"`
}

type GeneralConfig struct {
	LogLevel string `json:"logLevel"`
	LogFile  string `json:"logFile,omitempty"` // optional log file path
}

type ServerConfig struct {
	Host                string `json:"host"`
	Port                int    `json:"port"`
	Path                string `json:"path"`
	ReadTimeoutSeconds  int    `json:"readTimeoutSeconds"`
	WriteTimeoutSeconds int    `json:"writeTimeoutSeconds"`
}

type SlackConfig struct {
	BotToken       string `json:"botToken"`
	APIBase        string `json:"apiBase,omitempty"` // override for tests / proxies
	TimeoutSeconds int    `json:"timeoutSeconds"`
}

type OpenAIConfig struct {
	APIKey         string  `json:"apiKey"`
	APIBase        string  `json:"apiBase"`
	Model          string  `json:"model"`
	MaxTokens      int     `json:"maxTokens"`
	Temperature    float64 `json:"temperature"`
	TimeoutSeconds int     `json:"timeoutSeconds"`
}

type PersonasConfig struct {
	Dir string `json:"dir"`
}

type DedupeConfig struct {
	MaxCacheSize int `json:"maxCacheSize"`
}

type ReplyConfig struct {
	HistoryLimit     int `json:"historyLimit"`
	InterPostDelayMs int `json:"interPostDelayMs"`
}

type AuditConfig struct {
	Enabled bool   `json:"enabled"`
	DBPath  string `json:"dbPath"`
}

type MetricsConfig struct {
	Enabled  bool   `json:"enabled"`
	Endpoint string `json:"endpoint"`
}

// DefaultConfigDir returns the default config directory (~/.personabot).
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".personabot"
	}
	return filepath.Join(home, ".personabot")
}

func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.json")
}

func Load(path string) (*Config, error) {
	path = ExpandPath(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
	}

	// Substitute environment variables: ${VAR} and ${VAR:-default}
	data = []byte(ExpandEnvVars(string(data)))

	cfg := Defaults()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
	}

	cfg.Personas.Dir = ExpandPath(cfg.Personas.Dir)
	cfg.Audit.DBPath = ExpandPath(cfg.Audit.DBPath)
	cfg.General.LogFile = ExpandPath(cfg.General.LogFile)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns in config strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-(.*?))?\}`)

// ExpandEnvVars replaces ${VAR} with the environment variable value.
// Supports default values: ${VAR:-default} uses "default" when VAR is unset or empty.
func ExpandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		varName := groups[1]
		defaultVal := ""
		hasDefault := len(groups) >= 3 && groups[2] != ""
		if hasDefault {
			defaultVal = groups[2]
		}

		val, exists := os.LookupEnv(varName)
		if !exists || val == "" {
			if hasDefault {
				return defaultVal
			}
			return match // Keep original if no env var and no default
		}
		return val
	})
}

func Save(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("cannot marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0o600)
}

// Validate checks that the config has valid values.
func Validate(cfg *Config) error {
	var errs []string

	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		errs = append(errs, "server.port must be between 1 and 65535")
	}
	if !strings.HasPrefix(cfg.Server.Path, "/") {
		errs = append(errs, "server.path must start with /")
	}
	if cfg.Server.ReadTimeoutSeconds < 1 {
		errs = append(errs, "server.readTimeoutSeconds must be >= 1")
	}
	if cfg.Server.WriteTimeoutSeconds < 1 {
		errs = append(errs, "server.writeTimeoutSeconds must be >= 1")
	}

	if cfg.OpenAI.APIBase == "" {
		errs = append(errs, "openai.apiBase is required")
	}
	if cfg.OpenAI.Model == "" {
		errs = append(errs, "openai.model is required")
	}
	if cfg.OpenAI.MaxTokens < 1 {
		errs = append(errs, "openai.maxTokens must be >= 1")
	}
	if cfg.OpenAI.Temperature < 0 || cfg.OpenAI.Temperature > 2 {
		errs = append(errs, "openai.temperature must be between 0 and 2")
	}

	if cfg.Personas.Dir == "" {
		errs = append(errs, "personas.dir is required")
	}
	if cfg.Dedupe.MaxCacheSize < 1 {
		errs = append(errs, "dedupe.maxCacheSize must be >= 1")
	}
	if cfg.Reply.HistoryLimit < 1 {
		errs = append(errs, "reply.historyLimit must be >= 1")
	}
	if cfg.Reply.InterPostDelayMs < 0 {
		errs = append(errs, "reply.interPostDelayMs must be >= 0")
	}
	if cfg.Audit.Enabled && cfg.Audit.DBPath == "" {
		errs = append(errs, "audit.dbPath is required when audit is enabled")
	}
	if cfg.Metrics.Enabled && !strings.HasPrefix(cfg.Metrics.Endpoint, "/") {
		errs = append(errs, "metrics.endpoint must start with /")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// ExpandPath resolves ~/ to the user's home directory.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
