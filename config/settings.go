package config

import (
	"os"
	"strings"
	"time"
)

// BackendSettings configures the HTTP client for the contract REST endpoints.
type BackendSettings struct {
	BaseURL      string
	APIKey       string
	APIKeyHeader string
	Timeout      time.Duration
}

func GetBackendSettings() BackendSettings {
	baseURL := strings.TrimSpace(os.Getenv("CONTRACTS_API_BASE_URL"))
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	header := strings.TrimSpace(os.Getenv("CONTRACTS_API_KEY_HEADER"))
	if header == "" {
		header = "X-API-Key"
	}
	return BackendSettings{
		BaseURL:      strings.TrimRight(baseURL, "/"),
		APIKey:       strings.TrimSpace(os.Getenv("CONTRACTS_API_KEY")),
		APIKeyHeader: header,
		Timeout:      time.Duration(intFromEnv("CONTRACTS_API_TIMEOUT_SECONDS", 30)) * time.Second,
	}
}
