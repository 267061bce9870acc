package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"terminly/internal/constants"
	"terminly/internal/models"
	"terminly/internal/security"
)

var (
	ErrMissingDBPath    = models.ConfigError{Message: "missing database path"}
	ErrMissingSMSFrom   = models.ConfigError{Message: "missing SMS sender identity"}
	ErrMissingJWTSecret = models.ConfigError{Message: "missing JWT secret"}
)

// Load reads the JSON config file, applies defaults, merges environment
// overrides, and validates the result.
func Load(path string) (*models.Config, error) {
	if err := security.ValidateFilePath(path); err != nil {
		return nil, fmt.Errorf("invalid config path: %w", err)
	}

	file, err := os.ReadFile(path) // #nosec G304 - path validated above
	if err != nil {
		return nil, err
	}

	var config models.Config
	if err := json.Unmarshal(file, &config); err != nil {
		return nil, err
	}

	applyDefaults(&config)
	applyEnvironmentOverrides(&config)

	if err := validate(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func applyDefaults(c *models.Config) {
	if c.Server.Port <= 0 {
		c.Server.Port = constants.DefaultServerPort
	}
	if c.Server.PublicBaseURL == "" {
		c.Server.PublicBaseURL = constants.DefaultPublicBase
	}
	if c.Reminder.Timezone == "" {
		c.Reminder.Timezone = constants.DefaultTimezone
	}
	if c.Auth.TokenTTLHour <= 0 {
		c.Auth.TokenTTLHour = int(constants.DefaultTokenTTL.Hours())
	}
	if c.Twilio.TimeoutSec <= 0 {
		c.Twilio.TimeoutSec = int(constants.DefaultHTTPTimeout.Seconds())
	}
	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = "terminly"
	}
	if c.Tracing.SampleRate <= 0 {
		c.Tracing.SampleRate = 0.1
	}
}

func applyEnvironmentOverrides(c *models.Config) {
	if path := os.Getenv("DB_PATH"); path != "" {
		c.Database.Path = path
	}
	if tz := os.Getenv("APP_TIMEZONE"); tz != "" {
		c.Reminder.Timezone = tz
	}
	if base := os.Getenv("PUBLIC_BASE_URL"); base != "" {
		c.Server.PublicBaseURL = base
	}
	if port := os.Getenv("PORT"); port != "" {
		if n, err := strconv.Atoi(port); err == nil && n > 0 {
			c.Server.Port = n
		}
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		c.LogLevel = level
	}

	// Provider credentials come from the environment only.
	c.Twilio.AccountSID = os.Getenv("TWILIO_ACCOUNT_SID")
	c.Twilio.AuthToken = os.Getenv("TWILIO_AUTH_TOKEN")
	if from := os.Getenv("TWILIO_SMS_FROM"); from != "" {
		c.Twilio.SMSFrom = from
	}
	if from := os.Getenv("TWILIO_WHATSAPP_FROM"); from != "" {
		c.Twilio.WhatsAppFrom = from
	}
	if mock := os.Getenv("MOCK_MESSAGING"); mock != "" {
		c.Twilio.Mock = strings.EqualFold(mock, "true") || mock == "1"
	}

	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		c.Auth.JWTSecret = secret
	}
}

func validate(c *models.Config) error {
	if c.Database.Path == "" {
		return ErrMissingDBPath
	}
	if c.Auth.JWTSecret == "" {
		return ErrMissingJWTSecret
	}
	if !c.Twilio.Mock {
		if c.Twilio.SMSFrom == "" {
			return ErrMissingSMSFrom
		}
		if c.Twilio.AccountSID == "" || c.Twilio.AuthToken == "" {
			return models.ConfigError{Message: "missing Twilio credentials (set TWILIO_ACCOUNT_SID and TWILIO_AUTH_TOKEN or enable mock mode)"}
		}
	}
	return nil
}
