package models

// Config holds the application configuration
type Config struct {
	Server   ServerConfig   `json:"server"`
	Database DatabaseConfig `json:"database"`
	Twilio   TwilioConfig   `json:"twilio"`
	Reminder ReminderConfig `json:"reminder"`
	Auth     AuthConfig     `json:"auth"`
	Tracing  TracingConfig  `json:"tracing"`
	LogLevel string         `json:"log_level"`
}

// ServerConfig holds HTTP server configurations
type ServerConfig struct {
	Port          int    `json:"port"`
	PublicBaseURL string `json:"public_base_url"`
}

// DatabaseConfig holds database related configurations
type DatabaseConfig struct {
	Path string `json:"path"`
}

// TwilioConfig holds messaging provider configurations. AccountSID and
// AuthToken are expected from the environment, never from the config file.
type TwilioConfig struct {
	AccountSID   string `json:"-"`
	AuthToken    string `json:"-"`
	SMSFrom      string `json:"sms_from"`
	WhatsAppFrom string `json:"whatsapp_from"`
	Mock         bool   `json:"mock"`
	TimeoutSec   int    `json:"timeout_sec"`
}

// ReminderConfig holds reminder scheduling configurations
type ReminderConfig struct {
	Timezone string `json:"timezone"`
}

// AuthConfig holds API authentication configurations
type AuthConfig struct {
	JWTSecret    string `json:"-"`
	TokenTTLHour int    `json:"token_ttl_hours"`
}

// TracingConfig holds OpenTelemetry configurations
type TracingConfig struct {
	ServiceName    string  `json:"service_name"`
	ServiceVersion string  `json:"service_version"`
	Environment    string  `json:"environment"`
	OTLPEndpoint   string  `json:"otlp_endpoint"`
	SampleRate     float64 `json:"sample_rate"`
	Enabled        bool    `json:"enabled"`
	UseStdout      bool    `json:"use_stdout"`
}

type ConfigError struct {
	Message string
}

func (e ConfigError) Error() string {
	return e.Message
}
