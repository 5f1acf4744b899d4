package config

// MCPConfig controls the stdio JSON-RPC tool-server transport.
type MCPConfig struct {
	MaxLineBytes int `yaml:"max_line_bytes"`
	ReadTimeoutMS int `yaml:"read_timeout_ms"`
}

func defaultMCPConfig() MCPConfig {
	return MCPConfig{
		MaxLineBytes:  10 * 1024 * 1024,
		ReadTimeoutMS: 0,
	}
}
