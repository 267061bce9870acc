package service

import (
	"fmt"
	"strings"
)

// BuildCancelLink returns the public cancellation URL for an appointment.
func BuildCancelLink(baseURL string, appointmentID int64) string {
	return fmt.Sprintf("%s/cancel/%d", strings.TrimSuffix(baseURL, "/"), appointmentID)
}
