package config

func Defaults() *Config {
	return &Config{
		General: GeneralConfig{
			LogLevel: "info",
		},
		Telegram: TelegramConfig{
			Token: "${BOT_TOKEN}",
		},
		Archive: ArchiveConfig{
			DBPath: "~/.reportbot/reportbot.db",
		},
		Metrics: MetricsConfig{
			Enabled:  false,
			Listen:   "127.0.0.1:9090",
			Endpoint: "/metrics",
		},
	}
}
