package models

import "time"

type Channel string

const (
	ChannelSMS      Channel = "sms"
	ChannelWhatsApp Channel = "whatsapp"
)

func (c Channel) IsValid() bool {
	return c == ChannelSMS || c == ChannelWhatsApp
}

// MessageKind identifies which reminder offset (or ad-hoc send) produced a
// log entry.
type MessageKind string

const (
	KindReminder24 MessageKind = "reminder_24"
	KindReminder2  MessageKind = "reminder_2"
	KindTest       MessageKind = "test"
)

type MessageStatus string

const (
	MessagePending MessageStatus = "pending"
	MessageSent    MessageStatus = "sent"
	MessageFailed  MessageStatus = "failed"
)

// MessageLog records a single notification and its delivery state. Retries
// mutate the entry in place rather than appending new rows, so Attempts and
// NextRetryAt always describe the latest delivery state.
type MessageLog struct {
	ID            int64         `json:"id"`
	AccountID     int64         `json:"accountId"`
	AppointmentID *int64        `json:"appointmentId,omitempty"`
	Channel       Channel       `json:"channel"`
	Kind          MessageKind   `json:"kind"`
	Phone         string        `json:"phone"`
	Body          string        `json:"body"`
	Status        MessageStatus `json:"status"`
	ProviderRef   *string       `json:"providerRef,omitempty"`
	ErrorText     *string       `json:"errorText,omitempty"`
	Attempts      int           `json:"attempts"`
	NextRetryAt   *time.Time    `json:"nextRetryAt,omitempty"`
	SentAt        *time.Time    `json:"sentAt,omitempty"`
	CreatedAt     time.Time     `json:"createdAt"`
}
