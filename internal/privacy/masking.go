package privacy

import (
	"strings"
)

// MaskPhoneNumber masks a phone number showing only the last 4 digits.
// Example: "+41791234567" -> "+*******4567"
func MaskPhoneNumber(phone string) string {
	if phone == "" {
		return ""
	}

	// Keep the whatsapp: channel tag readable, mask the number behind it.
	if rest, ok := strings.CutPrefix(phone, "whatsapp:"); ok {
		return "whatsapp:" + MaskPhoneNumber(rest)
	}

	if strings.HasPrefix(phone, "+") {
		if len(phone) <= 5 {
			return "+" + strings.Repeat("*", len(phone)-1)
		}
		return "+" + strings.Repeat("*", len(phone)-5) + phone[len(phone)-4:]
	}

	if len(phone) <= 4 {
		return strings.Repeat("*", len(phone))
	}
	return strings.Repeat("*", len(phone)-4) + phone[len(phone)-4:]
}

// MaskEmail masks the local part of an email address.
// Example: "hello@example.com" -> "h****@example.com"
func MaskEmail(email string) string {
	if email == "" {
		return ""
	}
	at := strings.Index(email, "@")
	if at <= 1 {
		return strings.Repeat("*", len(email))
	}
	return email[:1] + strings.Repeat("*", at-1) + email[at:]
}

// MaskProviderRef masks a provider message reference, keeping the last 4
// characters for correlation.
func MaskProviderRef(ref string) string {
	if len(ref) <= 4 {
		return strings.Repeat("*", len(ref))
	}
	return strings.Repeat("*", len(ref)-4) + ref[len(ref)-4:]
}
