package database

// Account queries
const (
	insertAccountQuery = `
		INSERT INTO accounts (company_name, email, password_hash, plan, sms_quota, whatsapp_enabled, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	selectAccountByEmailQuery = `
		SELECT id, company_name, email, password_hash, plan, sms_quota, whatsapp_enabled, created_at
		FROM accounts
		WHERE email = ?
	`

	selectAccountByIDQuery = `
		SELECT id, company_name, email, password_hash, plan, sms_quota, whatsapp_enabled, created_at
		FROM accounts
		WHERE id = ?
	`

	decrementQuotaQuery = `
		UPDATE accounts
		SET sms_quota = MAX(sms_quota - 1, 0)
		WHERE id = ?
	`
)

// Appointment queries
const (
	insertAppointmentQuery = `
		INSERT INTO appointments (account_id, client_name, phone, client_language, appointment_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	selectAppointmentColumns = `
		id, account_id, client_name, phone, client_language, appointment_at,
		status, reminder_24_sent, reminder_2_sent, whatsapp_24_sent, created_at
	`

	selectAppointmentByIDQuery = `
		SELECT a.id, a.account_id, a.client_name, a.phone, a.client_language,
		       a.appointment_at, a.status, a.reminder_24_sent, a.reminder_2_sent,
		       a.whatsapp_24_sent, a.created_at,
		       u.company_name, u.sms_quota, u.whatsapp_enabled
		FROM appointments a
		JOIN accounts u ON u.id = a.account_id
		WHERE a.id = ?
	`

	// selectScanRowsQuery feeds the reminder scanner: every confirmed
	// appointment joined with the owning account's quota and channel flags.
	selectScanRowsQuery = `
		SELECT a.id, a.account_id, a.client_name, a.phone, a.client_language,
		       a.appointment_at, a.status, a.reminder_24_sent, a.reminder_2_sent,
		       a.whatsapp_24_sent, a.created_at,
		       u.company_name, u.sms_quota, u.whatsapp_enabled
		FROM appointments a
		JOIN accounts u ON u.id = a.account_id
		WHERE a.status = 'confirmed'
	`

	cancelAppointmentQuery = `
		UPDATE appointments
		SET status = 'cancelled'
		WHERE id = ?
	`

	deleteAppointmentQuery = `
		DELETE FROM appointments
		WHERE id = ? AND account_id = ?
	`
)

// Reminder flag queries. Flags only ever transition false -> true.
const (
	markReminder24SentQuery = `
		UPDATE appointments
		SET reminder_24_sent = 1
		WHERE id = ? AND account_id = ?
	`

	markReminder2SentQuery = `
		UPDATE appointments
		SET reminder_2_sent = 1
		WHERE id = ? AND account_id = ?
	`

	markWhatsApp24SentQuery = `
		UPDATE appointments
		SET whatsapp_24_sent = 1
		WHERE id = ? AND account_id = ?
	`
)

// Message log queries
const (
	insertMessageLogQuery = `
		INSERT INTO message_logs (
			account_id, appointment_id, channel, kind, phone, body,
			status, provider_ref, error_text, attempts, next_retry_at, sent_at,
			created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	selectMessageLogColumns = `
		id, account_id, appointment_id, channel, kind, phone, body,
		status, provider_ref, error_text, attempts, next_retry_at, sent_at, created_at
	`

	// selectRetryableMessagesQuery selects failed entries still under the
	// attempt cap whose backoff has elapsed, oldest first so old failures
	// are not starved by newer ones.
	selectRetryableMessagesQuery = `
		SELECT id, account_id, appointment_id, channel, kind, phone, body,
		       status, provider_ref, error_text, attempts, next_retry_at, sent_at, created_at
		FROM message_logs
		WHERE status = 'failed'
		  AND attempts < ?
		  AND (next_retry_at IS NULL OR next_retry_at <= ?)
		ORDER BY created_at ASC
		LIMIT ?
	`

	markMessageSentQuery = `
		UPDATE message_logs
		SET status = 'sent', provider_ref = ?, error_text = NULL,
		    attempts = attempts + 1, next_retry_at = NULL, sent_at = ?
		WHERE id = ?
	`

	markMessageFailedQuery = `
		UPDATE message_logs
		SET status = 'failed', error_text = ?, attempts = attempts + 1,
		    next_retry_at = ?
		WHERE id = ?
	`

	selectMessageLogByIDQuery = `
		SELECT id, account_id, appointment_id, channel, kind, phone, body,
		       status, provider_ref, error_text, attempts, next_retry_at, sent_at, created_at
		FROM message_logs
		WHERE id = ? AND account_id = ?
	`

	// countRetryableForAppointmentQuery reports whether a retry-eligible
	// failed entry already exists for an appointment/kind/channel triple,
	// so the scanner does not race the retry scheduler with a second send.
	countRetryableForAppointmentQuery = `
		SELECT COUNT(1)
		FROM message_logs
		WHERE appointment_id = ? AND kind = ? AND channel = ?
		  AND status = 'failed' AND attempts < ?
	`
)
