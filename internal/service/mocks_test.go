package service

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"terminly/internal/clock"
	"terminly/internal/database"
	"terminly/internal/models"
	"terminly/pkg/twilio"

	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockDispatcher struct {
	mock.Mock
}

func (m *mockDispatcher) Send(ctx context.Context, channel models.Channel, to, body string) (string, error) {
	args := m.Called(ctx, channel, to, body)
	return args.String(0), args.Error(1)
}

type mockTwilioClient struct {
	mock.Mock
}

func (m *mockTwilioClient) SendSMS(ctx context.Context, to, body string) (*twilio.SendResponse, error) {
	args := m.Called(ctx, to, body)
	if resp := args.Get(0); resp != nil {
		return resp.(*twilio.SendResponse), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockTwilioClient) SendWhatsApp(ctx context.Context, to, body string) (*twilio.SendResponse, error) {
	args := m.Called(ctx, to, body)
	if resp := args.Get(0); resp != nil {
		return resp.(*twilio.SendResponse), args.Error(1)
	}
	return nil, args.Error(1)
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)
	return logger
}

func testClock(t *testing.T, now time.Time) *clock.Clock {
	t.Helper()
	clk, err := clock.NewFixed(now, "Europe/Zurich")
	require.NoError(t, err)
	return clk
}

func setupTestDB(t *testing.T, clk *clock.Clock) *database.Database {
	t.Helper()
	db, err := database.New(filepath.Join(t.TempDir(), "test.db"), clk)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

type testAccountOpts struct {
	smsQuota        int
	whatsappEnabled bool
}

func seedAccount(t *testing.T, db *database.Database, email string, opts testAccountOpts) int64 {
	t.Helper()
	id, err := db.CreateAccount(context.Background(), &models.Account{
		CompanyName:     "Studio Z",
		Email:           email,
		PasswordHash:    "hash",
		Plan:            "starter",
		SMSQuota:        opts.smsQuota,
		WhatsAppEnabled: opts.whatsappEnabled,
	})
	require.NoError(t, err)
	return id
}

func seedAppointment(t *testing.T, db *database.Database, accountID int64, at time.Time) int64 {
	t.Helper()
	id, err := db.CreateAppointment(context.Background(), &models.Appointment{
		AccountID:      accountID,
		ClientName:     "Mara Keller",
		Phone:          "+41791234567",
		ClientLanguage: "de",
		AppointmentAt:  at,
		Status:         models.AppointmentConfirmed,
	})
	require.NoError(t, err)
	return id
}
