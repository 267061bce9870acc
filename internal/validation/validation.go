package validation

import (
	"fmt"
	"net/mail"
	"strings"
	"unicode"

	"terminly/internal/constants"
	"terminly/internal/errors"
)

// ValidatePhoneNumber validates phone number format and length. Destinations
// already tagged for the WhatsApp channel are validated on the number behind
// the tag.
func ValidatePhoneNumber(phone string) error {
	if phone == "" {
		return errors.New(errors.ErrCodeInvalidInput, "phone number cannot be empty")
	}

	cleaned := strings.TrimPrefix(phone, "whatsapp:")
	cleaned = strings.TrimPrefix(cleaned, "+")

	if len(cleaned) < constants.MinPhoneNumberLength {
		return errors.New(errors.ErrCodeInvalidInput,
			fmt.Sprintf("phone number must be at least %d digits", constants.MinPhoneNumberLength))
	}
	if len(cleaned) > constants.MaxPhoneNumberLength {
		return errors.New(errors.ErrCodeInvalidInput,
			fmt.Sprintf("phone number too long (max %d digits)", constants.MaxPhoneNumberLength))
	}

	for _, char := range cleaned {
		if !unicode.IsDigit(char) {
			return errors.New(errors.ErrCodeInvalidInput, "phone number must contain only digits")
		}
	}

	return nil
}

// ValidateEmail validates an email address.
func ValidateEmail(email string) error {
	if email == "" {
		return errors.New(errors.ErrCodeInvalidInput, "email cannot be empty")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return errors.New(errors.ErrCodeInvalidInput, "invalid email address")
	}
	return nil
}

// ValidatePassword enforces the minimum password length.
func ValidatePassword(password string) error {
	if len(password) < constants.MinPasswordLength {
		return errors.New(errors.ErrCodeInvalidInput,
			fmt.Sprintf("password must be at least %d characters", constants.MinPasswordLength))
	}
	return nil
}

// ValidateCompanyName enforces the minimum company name length.
func ValidateCompanyName(name string) error {
	if len(strings.TrimSpace(name)) < constants.MinCompanyNameLength {
		return errors.New(errors.ErrCodeInvalidInput,
			fmt.Sprintf("company name must be at least %d characters", constants.MinCompanyNameLength))
	}
	return nil
}

// ValidateLanguageTag checks a client language tag. Empty is allowed; the
// renderer falls back to the default language.
func ValidateLanguageTag(lang string) error {
	if lang == "" {
		return nil
	}
	switch strings.ToLower(lang) {
	case "de", "fr", "it":
		return nil
	}
	return errors.New(errors.ErrCodeInvalidInput, fmt.Sprintf("unsupported language %q", lang))
}
