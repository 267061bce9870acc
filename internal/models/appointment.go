package models

import "time"

type AppointmentStatus string

const (
	AppointmentConfirmed AppointmentStatus = "confirmed"
	AppointmentCancelled AppointmentStatus = "cancelled"
)

// Appointment is a booked client appointment belonging to an account.
// AppointmentAt is stored as a naive local timestamp and interpreted in the
// configured application zone; see internal/clock.
type Appointment struct {
	ID             int64             `json:"id"`
	AccountID      int64             `json:"accountId"`
	ClientName     string            `json:"clientName"`
	Phone          string            `json:"phone"`
	ClientLanguage string            `json:"clientLanguage"`
	AppointmentAt  time.Time         `json:"appointmentAt"`
	Status         AppointmentStatus `json:"status"`

	// Reminder flags. Once set they are never cleared; a set flag means the
	// corresponding reminder was delivered and must not be sent again.
	Reminder24Sent bool `json:"reminder24Sent"`
	Reminder2Sent  bool `json:"reminder2Sent"`
	WhatsApp24Sent bool `json:"whatsapp24Sent"`

	CreatedAt time.Time `json:"createdAt"`
}

// ScanRow is an appointment joined with the owning account fields the
// reminder scanner needs to decide eligibility.
type ScanRow struct {
	Appointment
	CompanyName     string `json:"companyName"`
	SMSQuota        int    `json:"smsQuota"`
	WhatsAppEnabled bool   `json:"whatsappEnabled"`
}
