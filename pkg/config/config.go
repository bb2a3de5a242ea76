package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	JWT      JWTConfig
	PayPal   PayPalConfig
}

type ServerConfig struct {
	Port    string
	BaseURL string
}

type DatabaseConfig struct {
	URL string
}

type JWTConfig struct {
	Secret string
}

type PayPalConfig struct {
	ClientID     string
	ClientSecret string
	WebhookID    string
	APIBaseURL   string
}

func Load() *Config {
	godotenv.Load()

	return &Config{
		Server: ServerConfig{
			Port:    getEnv("PORT", "3000"),
			BaseURL: os.Getenv("APP_BASE_URL"),
		},
		Database: DatabaseConfig{
			URL: os.Getenv("DATABASE_URL"),
		},
		JWT: JWTConfig{
			Secret: os.Getenv("JWT_SECRET"),
		},
		PayPal: PayPalConfig{
			ClientID:     os.Getenv("PAYPAL_CLIENT_ID"),
			ClientSecret: os.Getenv("PAYPAL_CLIENT_SECRET"),
			WebhookID:    os.Getenv("PAYPAL_WEBHOOK_ID"),
			APIBaseURL:   getEnv("PAYPAL_API_BASE_URL", "https://api-m.sandbox.paypal.com"),
		},
	}
}

// Validate rejects a configuration that would only fail later, on the
// first provider call. Missing payment credentials are a startup error.
func (c *Config) Validate() error {
	required := map[string]string{
		"DATABASE_URL":         c.Database.URL,
		"APP_BASE_URL":         c.Server.BaseURL,
		"JWT_SECRET":           c.JWT.Secret,
		"PAYPAL_CLIENT_ID":     c.PayPal.ClientID,
		"PAYPAL_CLIENT_SECRET": c.PayPal.ClientSecret,
		"PAYPAL_WEBHOOK_ID":    c.PayPal.WebhookID,
	}

	for key, value := range required {
		if value == "" {
			return fmt.Errorf("%s is not set", key)
		}
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
