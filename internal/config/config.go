package config

import (
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	DatabaseURL string `mapstructure:"database_url"`
	RedisURL    string `mapstructure:"redis_url"`
	Port        string `mapstructure:"port"`
	PublicURL   string `mapstructure:"public_url"`

	// Auth
	JWTSecret string `mapstructure:"jwt_secret"`

	// SMS gateway (outbound delivery)
	SMSGateway SMSGatewayConfig `mapstructure:"sms_gateway"`

	// Push notifications
	FCMCredentialsFile string `mapstructure:"fcm_credentials_file"`

	// Default timezone for quiet-hours evaluation when a user has none set
	DefaultTimezone string `mapstructure:"default_timezone"`
}

type SMSGatewayConfig struct {
	URL        string `mapstructure:"url"`
	APIToken   string `mapstructure:"api_token"`
	FromNumber string `mapstructure:"from_number"`
}

// App holds the global config instance
var App Config

// LoadConfig loads configuration from file and environment variables
func LoadConfig(path string) error {
	// Auto-load .env file if present so `go run` works without exporting
	// env vars manually. Missing .env is fine (Docker/production).
	if err := godotenv.Load(); err == nil {
		log.Println("Loaded .env file")
	}

	v := viper.New()

	// Set default values
	v.SetDefault("port", "8080")
	v.SetDefault("default_timezone", "America/New_York")

	// Config file settings
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
		v.SetConfigName("dev.config")
		v.SetConfigType("yaml")
	}

	// Bind standard environment variables (Docker/deploy compatibility)
	_ = v.BindEnv("database_url", "DATABASE_URL")
	_ = v.BindEnv("redis_url", "REDIS_URL")
	_ = v.BindEnv("port", "PORT")
	_ = v.BindEnv("public_url", "PUBLIC_URL")
	_ = v.BindEnv("jwt_secret", "JWT_SECRET")
	_ = v.BindEnv("default_timezone", "DEFAULT_TIMEZONE")
	_ = v.BindEnv("fcm_credentials_file", "FCM_CREDENTIALS_FILE")

	_ = v.BindEnv("sms_gateway.url", "SMS_GATEWAY_URL")
	_ = v.BindEnv("sms_gateway.api_token", "SMS_GATEWAY_TOKEN")
	_ = v.BindEnv("sms_gateway.from_number", "SMS_FROM_NUMBER")

	v.AutomaticEnv()

	// 1. Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Println("No config file found, using defaults and environment variables")
		} else {
			return err
		}
	} else {
		log.Printf("Loaded config from: %s", v.ConfigFileUsed())
	}

	// 2. Unmarshal into struct
	if err := v.Unmarshal(&App); err != nil {
		return err
	}

	// 3. Backfill environment variables for code that still reads os.Getenv
	setEnvIfEmpty("DATABASE_URL", App.DatabaseURL)
	setEnvIfEmpty("REDIS_URL", App.RedisURL)
	setEnvIfEmpty("PORT", App.Port)
	setEnvIfEmpty("JWT_SECRET", App.JWTSecret)
	setEnvIfEmpty("SMS_GATEWAY_URL", App.SMSGateway.URL)
	setEnvIfEmpty("SMS_GATEWAY_TOKEN", App.SMSGateway.APIToken)
	setEnvIfEmpty("SMS_FROM_NUMBER", App.SMSGateway.FromNumber)
	setEnvIfEmpty("FCM_CREDENTIALS_FILE", App.FCMCredentialsFile)

	return nil
}

func setEnvIfEmpty(key, value string) {
	if value != "" && os.Getenv(key) == "" {
		os.Setenv(key, value)
	}
}
