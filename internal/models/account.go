package models

import "time"

// Account is a company account that owns appointments and pays for messages.
type Account struct {
	ID           int64     `json:"id"`
	CompanyName  string    `json:"companyName"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Plan         string    `json:"plan"`
	SMSQuota     int       `json:"smsQuota"`
	WhatsAppEnabled bool   `json:"whatsappEnabled"`
	CreatedAt    time.Time `json:"createdAt"`
}
