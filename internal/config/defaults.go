package config

func Defaults() *Config {
	return &Config{
		General: GeneralConfig{
			LogLevel: "info",
		},
		Server: ServerConfig{
			Host:                "0.0.0.0",
			Port:                4444,
			Path:                "/scan",
			ReadTimeoutSeconds:  30,
			WriteTimeoutSeconds: 300,
		},
		Slack: SlackConfig{
			TimeoutSeconds: 30,
		},
		OpenAI: OpenAIConfig{
			APIBase:        "https://api.openai.com/v1",
			Model:          "gpt-4.1-mini",
			MaxTokens:      150,
			Temperature:    0.7,
			TimeoutSeconds: 60,
		},
		Personas: PersonasConfig{
			Dir: "~/.personabot/personas",
		},
		Dedupe: DedupeConfig{
			MaxCacheSize: 100,
		},
		Reply: ReplyConfig{
			HistoryLimit:     10,
			InterPostDelayMs: 1000,
		},
		Audit: AuditConfig{
			Enabled: false,
			DBPath:  "~/.personabot/audit.db",
		},
		Metrics: MetricsConfig{
			Enabled:  false,
			Endpoint: "/metrics",
		},
	}
}
