package service

import (
	"context"
	"fmt"
	"time"

	"terminly/internal/clock"
	"terminly/internal/constants"
	"terminly/internal/database"
	"terminly/internal/errors"
	"terminly/internal/metrics"
	"terminly/internal/models"
	"terminly/internal/privacy"
	"terminly/internal/tracing"
	"terminly/internal/translate"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

// ReminderScanner walks all confirmed appointments and sends the reminders
// whose offset window the appointment has entered. Each appointment is
// checked against three independent windows: 24h SMS, 2h SMS, and the
// optional 24h WhatsApp copy. A delivery that fails is recorded as a failed
// log entry; recovery is the retry scheduler's job, the scanner never sends
// the same reminder twice.
type ReminderScanner struct {
	db         *database.Database
	dispatcher Dispatcher
	clk        *clock.Clock
	baseURL    string
	logger     *logrus.Logger
}

func NewReminderScanner(db *database.Database, dispatcher Dispatcher, clk *clock.Clock, baseURL string, logger *logrus.Logger) *ReminderScanner {
	return &ReminderScanner{
		db:         db,
		dispatcher: dispatcher,
		clk:        clk,
		baseURL:    baseURL,
		logger:     logger,
	}
}

func (s *ReminderScanner) Name() string { return "reminder-scan" }

func (s *ReminderScanner) Run(ctx context.Context) error {
	ctx, span := tracing.StartSpan(ctx, "reminder.scan")
	defer span.End()

	now := s.clk.Now()
	rows, err := s.db.GetAppointmentsForScan(ctx)
	if err != nil {
		tracing.RecordError(ctx, err)
		return fmt.Errorf("failed to load appointments for scan: %w", err)
	}

	tracing.AddSpanAttributes(ctx, attribute.Int("appointments.count", len(rows)))
	metrics.SetGauge("scan_appointments", float64(len(rows)), nil, "Appointments considered by the last scan")

	for i := range rows {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		// One broken row must not starve the rest of the batch.
		if err := s.processAppointment(ctx, now, &rows[i]); err != nil {
			s.logger.WithError(err).WithField("appointmentId", rows[i].ID).
				Error("Failed to process appointment")
		}
	}
	return nil
}

func inWindow(diffHours, lower, upper float64) bool {
	return diffHours > lower && diffHours <= upper
}

func (s *ReminderScanner) processAppointment(ctx context.Context, now time.Time, row *models.ScanRow) error {
	diffHours := row.AppointmentAt.Sub(now).Hours()

	in24 := inWindow(diffHours, constants.Reminder24WindowLowerHours, constants.Reminder24WindowUpperHours)
	in2 := inWindow(diffHours, constants.Reminder2WindowLowerHours, constants.Reminder2WindowUpperHours)
	if !in24 && !in2 {
		return nil
	}

	tr, err := translate.Get(row.ClientLanguage)
	if err != nil {
		return fmt.Errorf("failed to load translation: %w", err)
	}

	timeOfDay := row.AppointmentAt.Format("15:04")
	cancelText := translate.Render(tr.CancelPrompt, map[string]string{
		"link": BuildCancelLink(s.baseURL, row.ID),
	})
	body24 := translate.Render(tr.Reminder24, map[string]string{
		"time": timeOfDay, "company": row.CompanyName, "cancel": cancelText,
	})
	body2 := translate.Render(tr.Reminder2, map[string]string{
		"time": timeOfDay, "company": row.CompanyName, "cancel": "",
	})

	if in24 && !row.Reminder24Sent {
		if err := s.sendReminder(ctx, now, row, models.KindReminder24, models.ChannelSMS, body24); err != nil {
			return err
		}
	}

	if in2 && !row.Reminder2Sent {
		if err := s.sendReminder(ctx, now, row, models.KindReminder2, models.ChannelSMS, body2); err != nil {
			return err
		}
	}

	if in24 && row.WhatsAppEnabled && !row.WhatsApp24Sent {
		if err := s.sendReminder(ctx, now, row, models.KindReminder24, models.ChannelWhatsApp, body24); err != nil {
			return err
		}
	}

	return nil
}

// sendReminder dispatches one reminder and records the outcome. SMS sends
// consume account quota; a depleted quota is refused locally and logged as a
// failed entry so the retrier can pick it up once quota is topped up.
func (s *ReminderScanner) sendReminder(ctx context.Context, now time.Time, row *models.ScanRow, kind models.MessageKind, channel models.Channel, body string) error {
	pending, err := s.db.HasRetryableFailure(ctx, row.ID, kind, channel, constants.MaxDeliveryAttempts)
	if err != nil {
		return fmt.Errorf("failed to check pending retries: %w", err)
	}
	if pending {
		s.logger.WithFields(logrus.Fields{
			"appointmentId": row.ID,
			"kind":          kind,
			"channel":       channel,
		}).Debug("Retry already pending, skipping")
		return nil
	}

	var providerRef string
	sendErr := func() error {
		if channel == models.ChannelSMS && row.SMSQuota <= 0 {
			return errors.New(errors.ErrCodeQuotaExceeded, "SMS quota exceeded")
		}
		ref, err := s.dispatcher.Send(ctx, channel, row.Phone, body)
		if err != nil {
			return err
		}
		providerRef = ref
		return nil
	}()

	if sendErr != nil {
		return s.recordFailure(ctx, now, row, kind, channel, body, sendErr)
	}
	return s.recordSuccess(ctx, now, row, kind, channel, body, providerRef)
}

func (s *ReminderScanner) recordSuccess(ctx context.Context, now time.Time, row *models.ScanRow, kind models.MessageKind, channel models.Channel, body, providerRef string) error {
	if err := s.db.MarkReminderSent(ctx, row.ID, row.AccountID, kind, channel); err != nil {
		return fmt.Errorf("failed to mark reminder sent: %w", err)
	}
	if channel == models.ChannelSMS {
		if err := s.db.DecrementSMSQuota(ctx, row.AccountID); err != nil {
			return fmt.Errorf("failed to decrement quota: %w", err)
		}
		row.SMSQuota--
	}

	apptID := row.ID
	sentAt := now
	entry := &models.MessageLog{
		AccountID:     row.AccountID,
		AppointmentID: &apptID,
		Channel:       channel,
		Kind:          kind,
		Phone:         row.Phone,
		Body:          body,
		Status:        models.MessageSent,
		ProviderRef:   &providerRef,
		Attempts:      1,
		SentAt:        &sentAt,
	}
	if _, err := s.db.CreateMessageLog(ctx, entry); err != nil {
		return fmt.Errorf("failed to log sent reminder: %w", err)
	}

	metrics.IncrementCounter("reminders_sent_total",
		map[string]string{"kind": string(kind), "channel": string(channel)}, "Reminders delivered on first attempt")
	s.logger.WithFields(logrus.Fields{
		"appointmentId": row.ID,
		"kind":          kind,
		"channel":       channel,
		"phone":         privacy.MaskPhoneNumber(row.Phone),
	}).Info("Reminder sent")
	return nil
}

func (s *ReminderScanner) recordFailure(ctx context.Context, now time.Time, row *models.ScanRow, kind models.MessageKind, channel models.Channel, body string, sendErr error) error {
	apptID := row.ID
	errText := sendErr.Error()
	nextRetry := now.Add(constants.RetryBackoff)
	entry := &models.MessageLog{
		AccountID:     row.AccountID,
		AppointmentID: &apptID,
		Channel:       channel,
		Kind:          kind,
		Phone:         row.Phone,
		Body:          body,
		Status:        models.MessageFailed,
		ErrorText:     &errText,
		Attempts:      1,
		NextRetryAt:   &nextRetry,
	}
	if _, err := s.db.CreateMessageLog(ctx, entry); err != nil {
		return fmt.Errorf("failed to log failed reminder: %w", err)
	}

	metrics.IncrementCounter("reminders_failed_total",
		map[string]string{"kind": string(kind), "channel": string(channel)}, "Reminders that failed on first attempt")
	s.logger.WithError(sendErr).WithFields(logrus.Fields{
		"appointmentId": row.ID,
		"kind":          kind,
		"channel":       channel,
		"phone":         privacy.MaskPhoneNumber(row.Phone),
		"nextRetryAt":   s.clk.FormatStored(nextRetry),
	}).Warn("Reminder delivery failed, queued for retry")
	return nil
}
