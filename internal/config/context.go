package config

// AutoContextConfig controls agent/project/session scope auto-resolution.
type AutoContextConfig struct {
	DefaultAgentID string `yaml:"default_agent_id"`
	CacheTTLMS     int    `yaml:"cache_ttl_ms"`
}

func defaultAutoContextConfig() AutoContextConfig {
	return AutoContextConfig{
		DefaultAgentID: "",
		CacheTTLMS:     60_000,
	}
}
