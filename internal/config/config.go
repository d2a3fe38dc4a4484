// Package config provides configuration for the chat gateway.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/cityling/cityling-server/internal/domain"
)

// Config holds the gateway configuration.
type Config struct {
	// Server settings
	Host string
	Port int

	// Storage
	StoreEngine string
	DataFile    string

	// Upstream provider
	LLMBaseURL string
	LLMAPIKey  string
	Tenant     domain.TenantScope

	// Model-type codes by content type
	VisionGPTType int
	TextGPTType   int

	// Timeout budgets. LLMTimeout bounds generic one-off calls;
	// CompanionChatTimeout bounds the conversational companion flow.
	LLMTimeout           time.Duration
	CompanionChatTimeout time.Duration

	// Companion flow model name
	CompanionModel string
}

// Load loads configuration from environment variables.
func Load() *Config {
	cfg := &Config{
		Host:        getEnv("CITYLING_HOST", ""),
		Port:        getEnvInt("CITYLING_PORT", 8080),
		StoreEngine: getEnv("CITYLING_STORE", "sqlite"),
		DataFile:    getEnv("CITYLING_DATA_FILE", "data/cityling.db"),
		LLMBaseURL:  getEnv("CITYLING_LLM_BASE_URL", "https://api-chat.charaboard.com"),
		LLMAPIKey:   getEnv("CITYLING_LLM_API_KEY", ""),
		Tenant: domain.TenantScope{
			AppID:      getEnv("CITYLING_LLM_APP_ID", "4"),
			PlatformID: getEnv("CITYLING_LLM_PLATFORM_ID", "5"),
		},
		VisionGPTType:        getEnvInt("CITYLING_LLM_VISION_GPT_TYPE", 8102),
		TextGPTType:          getEnvInt("CITYLING_LLM_TEXT_GPT_TYPE", 8602),
		LLMTimeout:           time.Duration(getEnvInt("CITYLING_LLM_TIMEOUT_SECONDS", 20)) * time.Second,
		CompanionChatTimeout: time.Duration(getEnvInt("CITYLING_COMPANION_CHAT_TIMEOUT_SECONDS", 45)) * time.Second,
		CompanionModel:       getEnv("CITYLING_COMPANION_MODEL", "qwen3.5-flash"),
	}
	return cfg
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}
