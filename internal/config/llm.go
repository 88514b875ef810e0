package config

// LLMConfig configures the LLM adapter layer. MIRA_DISABLE_LLM=1 disables
// every chargeable provider, forcing the heuristic (mock) fallbacks - the
// same escape hatch original_source's ApiKeys::from_env provides.
type LLMConfig struct {
	Disabled bool `yaml:"disabled"`

	DeepSeekAPIKey string `yaml:"deepseek_api_key"`
	GeminiAPIKey   string `yaml:"gemini_api_key"`
	OpenAIAPIKey   string `yaml:"openai_api_key"`

	PrimaryModel    string `yaml:"primary_model"`
	StructuredModel string `yaml:"structured_model"`
	ClassifierModel string `yaml:"classifier_model"`
	EmbeddingModel  string `yaml:"embedding_model"`
	EmbeddingDims   int    `yaml:"embedding_dimensions"`

	CallTimeoutSecs     int `yaml:"call_timeout_secs"`
	MaxParallelTools    int `yaml:"max_parallel_tool_calls"`
	MaxTotalToolCalls   int `yaml:"max_total_tool_calls"`
	ToolTimeoutSecs     int `yaml:"tool_timeout_secs"`
	ToolResultMaxChars  int `yaml:"tool_result_max_chars"`
	MaxConcurrentExperts int `yaml:"max_concurrent_experts"`
}

func loadLLMConfig() LLMConfig {
	disabled := getenvBool("MIRA_DISABLE_LLM", false)
	readKey := func(names ...string) string {
		if disabled {
			return ""
		}
		for _, n := range names {
			if v := getenv(n, ""); v != "" {
				return v
			}
		}
		return ""
	}

	return LLMConfig{
		Disabled:              disabled,
		DeepSeekAPIKey:        readKey("DEEPSEEK_API_KEY"),
		GeminiAPIKey:          readKey("GEMINI_API_KEY", "GOOGLE_API_KEY"),
		OpenAIAPIKey:          readKey("OPENAI_API_KEY"),
		PrimaryModel:          getenv("MIRA_PRIMARY_MODEL", "deepseek-chat"),
		StructuredModel:       getenv("MIRA_STRUCTURED_MODEL", "deepseek-chat"),
		ClassifierModel:       getenv("MIRA_CLASSIFIER_MODEL", "gemini-flash"),
		EmbeddingModel:        getenv("MIRA_EMBEDDING_MODEL", "gemini-embedding-001"),
		EmbeddingDims:         getenvInt("MIRA_EMBEDDING_DIMENSIONS", 768),
		CallTimeoutSecs:       getenvInt("MIRA_LLM_CALL_TIMEOUT_SECS", 60),
		MaxParallelTools:      getenvInt("MIRA_MAX_PARALLEL_TOOL_CALLS", 4),
		MaxTotalToolCalls:     getenvInt("MIRA_MAX_TOTAL_TOOL_CALLS", 200),
		ToolTimeoutSecs:       getenvInt("MIRA_MCP_TOOL_TIMEOUT_SECS", 60),
		ToolResultMaxChars:    getenvInt("MIRA_TOOL_RESULT_MAX_CHARS", 8000),
		MaxConcurrentExperts:  getenvInt("MIRA_MAX_CONCURRENT_EXPERTS", 3),
	}
}

// HasProvider reports whether any chargeable chat provider is configured.
func (c LLMConfig) HasProvider() bool {
	return !c.Disabled && (c.DeepSeekAPIKey != "" || c.GeminiAPIKey != "")
}

// HasEmbeddings reports whether an embedding provider is configured.
func (c LLMConfig) HasEmbeddings() bool {
	return !c.Disabled && (c.GeminiAPIKey != "" || c.OpenAIAPIKey != "")
}
