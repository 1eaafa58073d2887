package config

import "time"

// TestConfig returns a config suitable for testing
func TestConfig() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:   "http://127.0.0.1:0/api",
			Timeout:   5 * time.Second,
			UserAgent: "connect-test/1.0",
		},
		Database: DatabaseConfig{
			Path:    ":memory:",
			Timeout: 1 * time.Second,
		},
		Feed: FeedConfig{
			PageSize:   20,
			StaleAfter: 5 * time.Minute,
		},
		Search: SearchConfig{
			InMemory: true,
		},
		Log: LogConfig{
			Level: "off",
		},
	}
}
