package config

import (
	"os"

	"github.com/joho/godotenv"
)

// Environment variables
const (
	EnvRPCEndpoint = "REFI_RPC_ENDPOINT"
	EnvYieldAPIURL = "REFI_YIELD_API_URL"
	EnvMorphoAPI   = "REFI_MORPHO_GRAPHQL"
)

// LoadEnv loads environment variables from .env file
func LoadEnv() error {
	return godotenv.Load()
}

// GetEnvWithDefault gets an environment variable with a default value
func GetEnvWithDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}
