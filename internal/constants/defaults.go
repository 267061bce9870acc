package constants

import "time"

// Reminder scheduling configuration
const (
	// ReminderScanInterval is how often the reminder scanner wakes up.
	// The eligibility windows below are wider than this interval so a
	// reminder inside its window is hit by at least one tick.
	ReminderScanInterval = 5 * time.Minute

	// RetryScanInterval is how often the retry scheduler wakes up.
	RetryScanInterval = 15 * time.Minute

	// Reminder24WindowUpperHours / Reminder24WindowLowerHours bound the
	// 24-hour reminder window: eligible when lower < diff <= upper.
	Reminder24WindowUpperHours = 24.0
	Reminder24WindowLowerHours = 23.0

	// Reminder2WindowUpperHours / Reminder2WindowLowerHours bound the
	// 2-hour reminder window.
	Reminder2WindowUpperHours = 2.0
	Reminder2WindowLowerHours = 1.5
)

// Delivery retry configuration
const (
	MaxDeliveryAttempts = 5
	RetryBackoff        = 15 * time.Minute
	RetryBatchSize      = 50
)

// Default values applied when config omits them
const (
	DefaultTimezone     = "Europe/Zurich"
	DefaultLanguage     = "de"
	DefaultSMSQuota     = 500
	DefaultServerPort   = 8084
	DefaultPublicBase   = "http://localhost:8084"
	DefaultTokenTTL     = 12 * time.Hour
	DefaultHTTPTimeout  = 30 * time.Second
	DefaultBcryptCost   = 10
	DefaultReadLimit    = 500
	DefaultLogReadLimit = 1000
)

// Database initialization retry
const (
	DefaultDatabaseRetryAttempts = 3
	DefaultRetryBackoffMs        = 1000
	DefaultMaxBackoffMs          = 60000
)

// Server timeouts
const (
	DefaultServerReadTimeoutSec  = 15
	DefaultServerWriteTimeoutSec = 15
	DefaultServerIdleTimeoutSec  = 60
	DefaultGracefulShutdownSec   = 30
	ServerErrorChannelSize       = 1
)

// Provider circuit breaker
const (
	DispatchBreakerMaxFailures = 5
	DispatchBreakerResetWindow = 2 * time.Minute
)

// Validation bounds
const (
	MinPhoneNumberLength = 5
	MaxPhoneNumberLength = 20
	MinPasswordLength    = 6
	MinCompanyNameLength = 2
)
