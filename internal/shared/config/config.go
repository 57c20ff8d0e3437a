package config

import (
	"os"
	"strings"
)

// Config holds application configuration.
type Config struct {
	ServiceURL      string
	TemplatePath    string
	OutputDir       string
	ForceHTTPS      bool
	DatabaseURL     string
	Port            string
	CORSAllowOrigin []string
	DevEndpoints    bool
	Env             string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	// Best-effort load of local env files for dev convenience.
	loadEnvFiles(".env", "cmd/.env")

	env := normalizeEnv(getEnv("ENV", "dev"))

	return Config{
		ServiceURL:      getEnv("ANALYSIS_SERVICE_URL", "http://localhost:8000"),
		TemplatePath:    getEnv("REPORT_TEMPLATE", "assets/templates/template.docx"),
		OutputDir:       getEnv("REPORT_OUTPUT_DIR", "./reports"),
		ForceHTTPS:      parseBool(getEnv("FORCE_HTTPS", "false")),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		Port:            getEnv("PORT", "8000"),
		CORSAllowOrigin: splitAndTrim(getEnv("CORS_ALLOW_ORIGINS", "http://localhost:3000")),
		DevEndpoints:    parseBool(getEnv("DEV_ENDPOINTS", "false")),
		Env:             env,
	}
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func parseBool(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	default:
		return "dev"
	}
}
