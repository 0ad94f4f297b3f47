package config

const (
	EnvBaseURL     = "IPDASH_API_URL"
	EnvIPInfoToken = "IPINFO_TOKEN"
)

// parseEnv overlays cfg with non-empty environment variables.
func parseEnv(cfg *Config, getenv func(string) string) {
	if getenv == nil {
		return
	}
	if v := getenv(EnvBaseURL); v != "" {
		cfg.BaseURL = v
	}
	if v := getenv(EnvIPInfoToken); v != "" {
		cfg.IPInfoToken = v
	}
}
