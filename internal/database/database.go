package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"time"

	"terminly/internal/clock"
	"terminly/internal/migrations"
	"terminly/internal/models"
	"terminly/internal/security"

	_ "github.com/mattn/go-sqlite3"
)

// Database wraps the sqlite store holding accounts, appointments, and the
// message delivery log.
type Database struct {
	db  *sql.DB
	clk *clock.Clock
}

// New opens (creating if necessary) the sqlite database at dbPath and applies
// the initial schema. DATETIME columns hold naive strings in the clock's
// application zone; they are written with FormatStored and read back through
// ParseStored, never scanned as time.Time (the driver would reinterpret the
// naive text as UTC).
func New(dbPath string, clk *clock.Clock) (*Database, error) {
	if err := security.ValidateFilePath(dbPath); err != nil {
		return nil, fmt.Errorf("invalid database path: %w", err)
	}

	file, err := os.OpenFile(dbPath, os.O_RDWR|os.O_CREATE, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to create database file: %w", err)
	}
	if err := file.Close(); err != nil {
		return nil, fmt.Errorf("failed to close database file: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_foreign_keys=on", dbPath)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		closeAndWrap(db, &err, "failed to ping database")
		return nil, err
	}

	schema, err := migrations.GetInitialSchema()
	if err != nil {
		closeAndWrap(db, &err, "failed to read schema")
		return nil, err
	}

	if _, err := db.Exec(schema); err != nil {
		closeAndWrap(db, &err, "failed to initialize schema")
		return nil, err
	}

	return &Database{db: db, clk: clk}, nil
}

func closeAndWrap(db *sql.DB, err *error, msg string) {
	if closeErr := db.Close(); closeErr != nil {
		*err = fmt.Errorf("%s: %w (close error: %v)", msg, *err, closeErr)
		return
	}
	*err = fmt.Errorf("%s: %w", msg, *err)
}

func (d *Database) Close() error {
	return d.db.Close()
}

// Accounts

func (d *Database) CreateAccount(ctx context.Context, acct *models.Account) (int64, error) {
	res, err := d.db.ExecContext(ctx, insertAccountQuery,
		acct.CompanyName, acct.Email, acct.PasswordHash, acct.Plan,
		acct.SMSQuota, acct.WhatsAppEnabled, d.storedNow())
	if err != nil {
		return 0, fmt.Errorf("failed to create account: %w", err)
	}
	return res.LastInsertId()
}

// storedNow is the current clock instant in the storage format, used for
// created_at columns so every stored timestamp follows the same convention.
func (d *Database) storedNow() string {
	return d.clk.FormatStored(d.clk.Now())
}

func (d *Database) GetAccountByEmail(ctx context.Context, email string) (*models.Account, error) {
	return d.scanAccount(d.db.QueryRowContext(ctx, selectAccountByEmailQuery, email))
}

func (d *Database) GetAccountByID(ctx context.Context, id int64) (*models.Account, error) {
	return d.scanAccount(d.db.QueryRowContext(ctx, selectAccountByIDQuery, id))
}

func (d *Database) scanAccount(row *sql.Row) (*models.Account, error) {
	acct := &models.Account{}
	var createdAt string
	err := row.Scan(&acct.ID, &acct.CompanyName, &acct.Email, &acct.PasswordHash,
		&acct.Plan, &acct.SMSQuota, &acct.WhatsAppEnabled, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan account: %w", err)
	}
	if acct.CreatedAt, err = d.clk.ParseStored(createdAt); err != nil {
		return nil, fmt.Errorf("failed to parse account created_at: %w", err)
	}
	return acct, nil
}

// DecrementSMSQuota debits one message from the account quota, flooring at
// zero. It never fails an account below zero.
func (d *Database) DecrementSMSQuota(ctx context.Context, accountID int64) error {
	return d.withRetry(ctx, "decrement sms quota", func() error {
		_, err := d.db.ExecContext(ctx, decrementQuotaQuery, accountID)
		return err
	})
}

// Appointments

func (d *Database) CreateAppointment(ctx context.Context, appt *models.Appointment) (int64, error) {
	res, err := d.db.ExecContext(ctx, insertAppointmentQuery,
		appt.AccountID, appt.ClientName, appt.Phone, appt.ClientLanguage,
		d.clk.FormatStored(appt.AppointmentAt), d.storedNow())
	if err != nil {
		return 0, fmt.Errorf("failed to create appointment: %w", err)
	}
	return res.LastInsertId()
}

// GetAppointment returns the appointment joined with its owning account, or
// nil when no such appointment exists.
func (d *Database) GetAppointment(ctx context.Context, id int64) (*models.ScanRow, error) {
	row := d.db.QueryRowContext(ctx, selectAppointmentByIDQuery, id)
	sr, err := d.scanScanRow(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get appointment: %w", err)
	}
	return sr, nil
}

// AppointmentFilter narrows ListAppointments results. Zero values mean no
// filtering on that dimension.
type AppointmentFilter struct {
	Status models.AppointmentStatus
	From   time.Time
	To     time.Time
	Limit  int
}

func (d *Database) ListAppointments(ctx context.Context, accountID int64, filter AppointmentFilter) ([]models.Appointment, error) {
	query := "SELECT " + selectAppointmentColumns + " FROM appointments WHERE account_id = ?"
	args := []interface{}{accountID}

	if filter.Status != "" {
		query += " AND status = ?"
		args = append(args, string(filter.Status))
	}
	if !filter.From.IsZero() && !filter.To.IsZero() {
		query += " AND appointment_at BETWEEN ? AND ?"
		args = append(args, d.clk.FormatStored(filter.From), d.clk.FormatStored(filter.To))
	}
	query += " ORDER BY appointment_at DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}
	defer rows.Close()

	var out []models.Appointment
	for rows.Next() {
		var a models.Appointment
		var appointmentAt, createdAt string
		if err := rows.Scan(&a.ID, &a.AccountID, &a.ClientName, &a.Phone,
			&a.ClientLanguage, &appointmentAt, &a.Status,
			&a.Reminder24Sent, &a.Reminder2Sent, &a.WhatsApp24Sent,
			&createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan appointment: %w", err)
		}
		if a.AppointmentAt, err = d.clk.ParseStored(appointmentAt); err != nil {
			return nil, fmt.Errorf("failed to parse appointment_at: %w", err)
		}
		if a.CreatedAt, err = d.clk.ParseStored(createdAt); err != nil {
			return nil, fmt.Errorf("failed to parse appointment created_at: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// AppointmentUpdate carries the owner-editable fields; nil means unchanged.
type AppointmentUpdate struct {
	ClientName     *string
	Phone          *string
	ClientLanguage *string
	AppointmentAt  *time.Time
	Status         *models.AppointmentStatus
}

func (d *Database) UpdateAppointment(ctx context.Context, id, accountID int64, upd AppointmentUpdate) error {
	var sets []string
	var args []interface{}

	if upd.ClientName != nil {
		sets = append(sets, "client_name = ?")
		args = append(args, *upd.ClientName)
	}
	if upd.Phone != nil {
		sets = append(sets, "phone = ?")
		args = append(args, *upd.Phone)
	}
	if upd.ClientLanguage != nil {
		sets = append(sets, "client_language = ?")
		args = append(args, *upd.ClientLanguage)
	}
	if upd.AppointmentAt != nil {
		sets = append(sets, "appointment_at = ?")
		args = append(args, d.clk.FormatStored(*upd.AppointmentAt))
	}
	if upd.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, string(*upd.Status))
	}
	if len(sets) == 0 {
		return nil
	}

	args = append(args, id, accountID)
	query := "UPDATE appointments SET " + strings.Join(sets, ", ") + " WHERE id = ? AND account_id = ?"
	if _, err := d.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to update appointment: %w", err)
	}
	return nil
}

func (d *Database) DeleteAppointment(ctx context.Context, id, accountID int64) error {
	if _, err := d.db.ExecContext(ctx, deleteAppointmentQuery, id, accountID); err != nil {
		return fmt.Errorf("failed to delete appointment: %w", err)
	}
	return nil
}

// CancelAppointment sets the appointment status to cancelled. Cancelled
// appointments are never selected by the reminder scanner again.
func (d *Database) CancelAppointment(ctx context.Context, id int64) error {
	if _, err := d.db.ExecContext(ctx, cancelAppointmentQuery, id); err != nil {
		return fmt.Errorf("failed to cancel appointment: %w", err)
	}
	return nil
}

// GetAppointmentsForScan loads every confirmed appointment joined with the
// owning account's quota and channel flags, the full input of one scan tick.
func (d *Database) GetAppointmentsForScan(ctx context.Context) ([]models.ScanRow, error) {
	rows, err := d.db.QueryContext(ctx, selectScanRowsQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to load scan rows: %w", err)
	}
	defer rows.Close()

	var out []models.ScanRow
	for rows.Next() {
		sr, err := d.scanScanRow(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan appointment row: %w", err)
		}
		out = append(out, *sr)
	}
	return out, rows.Err()
}

func (d *Database) scanScanRow(scan func(dest ...interface{}) error) (*models.ScanRow, error) {
	sr := &models.ScanRow{}
	var appointmentAt, createdAt string
	err := scan(&sr.ID, &sr.AccountID, &sr.ClientName, &sr.Phone,
		&sr.ClientLanguage, &appointmentAt, &sr.Status,
		&sr.Reminder24Sent, &sr.Reminder2Sent, &sr.WhatsApp24Sent,
		&createdAt, &sr.CompanyName, &sr.SMSQuota, &sr.WhatsAppEnabled)
	if err != nil {
		return nil, err
	}
	if sr.AppointmentAt, err = d.clk.ParseStored(appointmentAt); err != nil {
		return nil, fmt.Errorf("failed to parse appointment_at: %w", err)
	}
	if sr.CreatedAt, err = d.clk.ParseStored(createdAt); err != nil {
		return nil, fmt.Errorf("failed to parse appointment created_at: %w", err)
	}
	return sr, nil
}

// MarkReminderSent flips the notified flag for the given offset/channel pair.
// Flags are never cleared once set.
func (d *Database) MarkReminderSent(ctx context.Context, appointmentID, accountID int64, kind models.MessageKind, channel models.Channel) error {
	var query string
	switch {
	case kind == models.KindReminder24 && channel == models.ChannelSMS:
		query = markReminder24SentQuery
	case kind == models.KindReminder2 && channel == models.ChannelSMS:
		query = markReminder2SentQuery
	case kind == models.KindReminder24 && channel == models.ChannelWhatsApp:
		query = markWhatsApp24SentQuery
	default:
		return fmt.Errorf("no reminder flag for kind %q on channel %q", kind, channel)
	}

	return d.withRetry(ctx, "mark reminder sent", func() error {
		_, err := d.db.ExecContext(ctx, query, appointmentID, accountID)
		return err
	})
}

// Message logs

func (d *Database) CreateMessageLog(ctx context.Context, entry *models.MessageLog) (int64, error) {
	var nextRetry, sentAt interface{}
	if entry.NextRetryAt != nil {
		nextRetry = d.clk.FormatStored(*entry.NextRetryAt)
	}
	if entry.SentAt != nil {
		sentAt = d.clk.FormatStored(*entry.SentAt)
	}

	res, err := d.db.ExecContext(ctx, insertMessageLogQuery,
		entry.AccountID, entry.AppointmentID, string(entry.Channel),
		string(entry.Kind), entry.Phone, entry.Body, string(entry.Status),
		entry.ProviderRef, entry.ErrorText, entry.Attempts, nextRetry, sentAt,
		d.storedNow())
	if err != nil {
		return 0, fmt.Errorf("failed to create message log: %w", err)
	}
	return res.LastInsertId()
}

// GetRetryableMessages returns up to limit failed entries still under the
// attempt cap whose backoff has elapsed, oldest-created first.
func (d *Database) GetRetryableMessages(ctx context.Context, now time.Time, maxAttempts, limit int) ([]models.MessageLog, error) {
	rows, err := d.db.QueryContext(ctx, selectRetryableMessagesQuery,
		maxAttempts, d.clk.FormatStored(now), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load retryable messages: %w", err)
	}
	defer rows.Close()

	var out []models.MessageLog
	for rows.Next() {
		m, err := d.scanMessageLog(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message log: %w", err)
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

// MarkMessageSent records a successful delivery: provider reference stored,
// error cleared, attempts bumped, backoff cleared.
func (d *Database) MarkMessageSent(ctx context.Context, id int64, providerRef string, sentAt time.Time) error {
	return d.withRetry(ctx, "mark message sent", func() error {
		_, err := d.db.ExecContext(ctx, markMessageSentQuery,
			providerRef, d.clk.FormatStored(sentAt), id)
		return err
	})
}

// MarkMessageFailed records a failed delivery attempt and schedules the next
// retry instant.
func (d *Database) MarkMessageFailed(ctx context.Context, id int64, errText string, nextRetryAt time.Time) error {
	return d.withRetry(ctx, "mark message failed", func() error {
		_, err := d.db.ExecContext(ctx, markMessageFailedQuery,
			errText, d.clk.FormatStored(nextRetryAt), id)
		return err
	})
}

// MessageLogFilter narrows ListMessageLogs results.
type MessageLogFilter struct {
	Status  models.MessageStatus
	Channel models.Channel
	Limit   int
}

func (d *Database) ListMessageLogs(ctx context.Context, accountID int64, filter MessageLogFilter) ([]models.MessageLog, error) {
	query := "SELECT " + selectMessageLogColumns + " FROM message_logs WHERE account_id = ?"
	args := []interface{}{accountID}

	if filter.Status != "" {
		query += " AND status = ?"
		args = append(args, string(filter.Status))
	}
	if filter.Channel != "" {
		query += " AND channel = ?"
		args = append(args, string(filter.Channel))
	}
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list message logs: %w", err)
	}
	defer rows.Close()

	var out []models.MessageLog
	for rows.Next() {
		m, err := d.scanMessageLog(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message log: %w", err)
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

func (d *Database) GetMessageLog(ctx context.Context, id, accountID int64) (*models.MessageLog, error) {
	m, err := d.scanMessageLog(d.db.QueryRowContext(ctx, selectMessageLogByIDQuery, id, accountID).Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get message log: %w", err)
	}
	return m, nil
}

// HasRetryableFailure reports whether a retry-eligible failed entry already
// exists for the appointment/kind/channel triple. The scanner uses this to
// leave recovery to the retry scheduler instead of dispatching a duplicate.
func (d *Database) HasRetryableFailure(ctx context.Context, appointmentID int64, kind models.MessageKind, channel models.Channel, maxAttempts int) (bool, error) {
	var n int
	err := d.db.QueryRowContext(ctx, countRetryableForAppointmentQuery,
		appointmentID, string(kind), string(channel), maxAttempts).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to count retryable failures: %w", err)
	}
	return n > 0, nil
}

func (d *Database) scanMessageLog(scan func(dest ...interface{}) error) (*models.MessageLog, error) {
	m := &models.MessageLog{}
	var appointmentID sql.NullInt64
	var providerRef, errorText, nextRetryAt, sentAt sql.NullString
	var createdAt string

	err := scan(&m.ID, &m.AccountID, &appointmentID, &m.Channel, &m.Kind,
		&m.Phone, &m.Body, &m.Status, &providerRef, &errorText,
		&m.Attempts, &nextRetryAt, &sentAt, &createdAt)
	if err != nil {
		return nil, err
	}

	if appointmentID.Valid {
		v := appointmentID.Int64
		m.AppointmentID = &v
	}
	if providerRef.Valid {
		v := providerRef.String
		m.ProviderRef = &v
	}
	if errorText.Valid {
		v := errorText.String
		m.ErrorText = &v
	}
	if nextRetryAt.Valid {
		t, err := d.clk.ParseStored(nextRetryAt.String)
		if err != nil {
			return nil, fmt.Errorf("failed to parse next_retry_at: %w", err)
		}
		m.NextRetryAt = &t
	}
	if sentAt.Valid {
		t, err := d.clk.ParseStored(sentAt.String)
		if err != nil {
			return nil, fmt.Errorf("failed to parse sent_at: %w", err)
		}
		m.SentAt = &t
	}
	if m.CreatedAt, err = d.clk.ParseStored(createdAt); err != nil {
		return nil, fmt.Errorf("failed to parse message log created_at: %w", err)
	}
	return m, nil
}
