package config

// LoggingConfig mirrors internal/logging's on-disk config.json shape so a
// Config loaded here can be written out verbatim for the logger to read
// (the two packages can't import each other without a cycle).
type LoggingConfig struct {
	Level      string          `yaml:"level" json:"level,omitempty"`
	DebugMode  bool            `yaml:"debug_mode" json:"debug_mode,omitempty"`
	JSONFormat bool            `yaml:"json_format" json:"json_format,omitempty"`
	Categories map[string]bool `yaml:"categories" json:"categories,omitempty"`
}

func loadLoggingConfig() LoggingConfig {
	return LoggingConfig{
		Level:      getenv("MIRA_LOG_LEVEL", "info"),
		DebugMode:  getenvBool("MIRA_LOG_DEBUG", false),
		JSONFormat: getenvBool("MIRA_LOG_JSON", false),
	}
}
