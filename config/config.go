// Package config loads server configuration from the environment, with a
// .env file honored when present.
package config

import (
	"log"
	"os"

	"github.com/joho/godotenv"
)

// Config holds the server settings.
type Config struct {
	Port string
	Env  string
}

// Load reads configuration from the environment. A missing .env file is
// fine; explicit environment variables win either way.
func Load() *Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("[CONFIG] Skipping .env: %v", err)
	}
	return &Config{
		Port: getenv("PORT", "8080"),
		Env:  getenv("ENV", "dev"),
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
