package config

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Config - all environment-driven settings for the server
type Config struct {
	// Ark API (upstream chat + image generation)
	ArkAPIKey        string
	ArkBaseURL       string
	ArkChatModel     string
	ArkImageModel    string
	ArkSeedreamModel string
	ArkAuthType      string // "bearer" (default), "direct", "x-api-key"

	// Server
	Port string
}

var globalConfig *Config

// LoadConfig - load environment variables (.env supported)
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  .env file not found, using environment variables")
	}

	globalConfig = &Config{
		ArkAPIKey:        getEnv("ARK_API_KEY", ""),
		ArkBaseURL:       strings.TrimRight(getEnv("ARK_BASE_URL", ""), "/"),
		ArkChatModel:     getEnv("ARK_CHAT_MODEL", ""),
		ArkImageModel:    getEnv("ARK_IMAGE_MODEL", ""),
		ArkSeedreamModel: getEnv("ARK_SEEDREAM_MODEL", "doubao-seedream-4-5-251128"),
		ArkAuthType:      getEnv("ARK_AUTH_TYPE", "bearer"),
		Port:             getEnv("PORT", "3000"),
	}

	// Missing Ark credentials are reported per request (500) rather than
	// refusing to boot, so the health endpoints stay reachable.
	if missing := globalConfig.MissingChatVars(); len(missing) > 0 {
		log.Printf("⚠️  Missing Ark configuration: %s", strings.Join(missing, ", "))
	}

	log.Println("✅ Configuration loaded")
	log.Printf("   Ark base URL: %s", globalConfig.ArkBaseURL)
	log.Printf("   Chat model: %s", globalConfig.ArkChatModel)
	log.Printf("   Image model: %s (seedream: %s)", globalConfig.ArkImageModel, globalConfig.ArkSeedreamModel)

	return globalConfig, nil
}

// GetConfig - return the loaded configuration
func GetConfig() *Config {
	if globalConfig == nil {
		log.Fatal("❌ Config not loaded. Call LoadConfig() first.")
	}
	return globalConfig
}

// MissingChatVars - required variables for chat/analyze endpoints that are unset
func (c *Config) MissingChatVars() []string {
	var missing []string
	if c.ArkAPIKey == "" {
		missing = append(missing, "ARK_API_KEY")
	}
	if c.ArkBaseURL == "" {
		missing = append(missing, "ARK_BASE_URL")
	}
	if c.ArkChatModel == "" {
		missing = append(missing, "ARK_CHAT_MODEL")
	}
	return missing
}

// MissingImageVars - required variables for the image generation endpoint that are unset
func (c *Config) MissingImageVars() []string {
	var missing []string
	if c.ArkAPIKey == "" {
		missing = append(missing, "ARK_API_KEY")
	}
	if c.ArkBaseURL == "" {
		missing = append(missing, "ARK_BASE_URL")
	}
	if c.ArkImageModel == "" {
		missing = append(missing, "ARK_IMAGE_MODEL")
	}
	return missing
}

// ConfigurationError - formats a 500-level message enumerating missing variables
func ConfigurationError(missing []string) string {
	return fmt.Sprintf("Server configuration error: Missing %s. Please check your .env file.", strings.Join(missing, ", "))
}

// MissingVarsError - required environment variables are unset for an endpoint
type MissingVarsError struct {
	Missing []string
}

func (e *MissingVarsError) Error() string {
	return ConfigurationError(e.Missing)
}

// getEnv - environment variable with default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
