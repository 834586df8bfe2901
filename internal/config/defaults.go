package config

// GetDefaultConfig returns the default configuration for persai.
func GetDefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Port: 8080,
			Host: "localhost",
		},
		Auth: AuthConfig{
			Enabled: true,
		},
	}
}
