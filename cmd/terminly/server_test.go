package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"terminly/internal/clock"
	"terminly/internal/constants"
	"terminly/internal/database"
	"terminly/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type stubDispatcher struct {
	mock.Mock
}

func (d *stubDispatcher) Send(ctx context.Context, channel models.Channel, to, body string) (string, error) {
	args := d.Called(ctx, channel, to, body)
	return args.String(0), args.Error(1)
}

type testEnv struct {
	server     *Server
	db         *database.Database
	dispatcher *stubDispatcher
	clk        *clock.Clock
	cfg        *models.Config
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	clk, err := clock.NewFixed(now, "Europe/Zurich")
	require.NoError(t, err)

	db, err := database.New(filepath.Join(t.TempDir(), "test.db"), clk)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	cfg := &models.Config{}
	cfg.Server.Port = 0
	cfg.Server.PublicBaseURL = "https://app.terminly.example"
	cfg.Auth.JWTSecret = "test-secret"
	cfg.Auth.TokenTTLHour = 1

	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)

	dispatcher := &stubDispatcher{}
	return &testEnv{
		server:     NewServer(cfg, db, dispatcher, clk, logger),
		db:         db,
		dispatcher: dispatcher,
		clk:        clk,
		cfg:        cfg,
	}
}

func (e *testEnv) request(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	e.server.router.ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	return payload
}

func (e *testEnv) seedAccount(t *testing.T, email string) int64 {
	t.Helper()
	id, err := e.db.CreateAccount(context.Background(), &models.Account{
		CompanyName:  "Studio Z",
		Email:        email,
		PasswordHash: "not-a-real-hash",
		Plan:         "starter",
		SMSQuota:     constants.DefaultSMSQuota,
	})
	require.NoError(t, err)
	return id
}

func (e *testEnv) seedAppointment(t *testing.T, accountID int64, lang string) int64 {
	t.Helper()
	id, err := e.db.CreateAppointment(context.Background(), &models.Appointment{
		AccountID:      accountID,
		ClientName:     "Mara Keller",
		Phone:          "+41791234567",
		ClientLanguage: lang,
		AppointmentAt:  e.clk.Now().Add(26 * time.Hour),
		Status:         models.AppointmentConfirmed,
	})
	require.NoError(t, err)
	return id
}

func (e *testEnv) mintToken(t *testing.T, accountID int64) string {
	t.Helper()
	claims := authClaims{
		AccountID: accountID,
		Email:     "owner@example.com",
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).
		SignedString([]byte(e.cfg.Auth.JWTSecret))
	require.NoError(t, err)
	return token
}

func TestHealthEndpoint(t *testing.T) {
	env := newTestEnv(t)

	rec := env.request(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestBannerEndpoint(t *testing.T) {
	env := newTestEnv(t)

	rec := env.request(t, http.MethodGet, "/", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	payload := decodeJSON(t, rec)
	assert.Equal(t, "Terminly API", payload["name"])
	assert.Equal(t, "online", payload["status"])
	assert.NotEmpty(t, payload["endpoints"])
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)

	rec := env.request(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	payload := decodeJSON(t, rec)
	assert.Contains(t, payload, "counters")
	assert.Contains(t, payload, "uptime_ms")
}

func TestRegisterAndLogin(t *testing.T) {
	env := newTestEnv(t)

	register := map[string]string{
		"company_name": "Studio Z",
		"email":        "Owner@Example.COM",
		"password":     "super-secret-1",
	}
	rec := env.request(t, http.MethodPost, "/api/auth/register", "", register)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	payload := decodeJSON(t, rec)
	assert.Equal(t, "Account created", payload["message"])
	assert.NotZero(t, payload["account_id"])

	// Same email, different casing.
	rec = env.request(t, http.MethodPost, "/api/auth/register", "", register)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.request(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email":    "owner@example.com",
		"password": "wrong-password",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.request(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email":    "owner@example.com",
		"password": "super-secret-1",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	payload = decodeJSON(t, rec)
	token, _ := payload["token"].(string)
	require.NotEmpty(t, token)

	account, _ := payload["account"].(map[string]interface{})
	require.NotNil(t, account)
	assert.Equal(t, "Studio Z", account["company_name"])
	assert.Equal(t, "starter", account["plan"])
	assert.Equal(t, float64(constants.DefaultSMSQuota), account["sms_quota"])

	// The issued token must work against protected routes.
	rec = env.request(t, http.MethodGet, "/api/appointments", token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]\n", rec.Body.String())
}

func TestRegisterValidation(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name string
		body map[string]string
	}{
		{"missing company", map[string]string{"email": "a@b.ch", "password": "super-secret-1"}},
		{"bad email", map[string]string{"company_name": "X", "email": "not-an-email", "password": "super-secret-1"}},
		{"short password", map[string]string{"company_name": "X", "email": "a@b.ch", "password": "short"}},
		{"unknown plan", map[string]string{"company_name": "X", "email": "a@b.ch", "password": "super-secret-1", "plan": "enterprise"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.request(t, http.MethodPost, "/api/auth/register", "", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestAuthMiddleware(t *testing.T) {
	env := newTestEnv(t)

	rec := env.request(t, http.MethodGet, "/api/appointments", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.request(t, http.MethodGet, "/api/appointments", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Token signed with the wrong secret.
	claims := authClaims{AccountID: 1, RegisteredClaims: jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}
	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("other-secret"))
	require.NoError(t, err)
	rec = env.request(t, http.MethodGet, "/api/appointments", forged, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Expired token.
	claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Hour))
	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(env.cfg.Auth.JWTSecret))
	require.NoError(t, err)
	rec = env.request(t, http.MethodGet, "/api/appointments", expired, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAppointmentLifecycle(t *testing.T) {
	env := newTestEnv(t)
	accountID := env.seedAccount(t, "owner@example.com")
	token := env.mintToken(t, accountID)

	rec := env.request(t, http.MethodPost, "/api/appointments", token, map[string]string{
		"client_name":          "Mara Keller",
		"phone":                "+41791234567",
		"client_language":      "fr",
		"appointment_datetime": "2026-03-12 14:30:00",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	created := decodeJSON(t, rec)
	id := int64(created["id"].(float64))
	require.NotZero(t, id)

	rec = env.request(t, http.MethodGet, "/api/appointments", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var listed []models.Appointment
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	require.Len(t, listed, 1)
	assert.Equal(t, "Mara Keller", listed[0].ClientName)
	assert.Equal(t, "fr", listed[0].ClientLanguage)
	assert.Equal(t, models.AppointmentConfirmed, listed[0].Status)

	status := "cancelled"
	rec = env.request(t, http.MethodPut, "/api/appointments/"+formatID(id), token, map[string]*string{
		"status": &status,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = env.request(t, http.MethodGet, "/api/appointments?status=cancelled", token, nil)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	require.Len(t, listed, 1)
	assert.Equal(t, models.AppointmentCancelled, listed[0].Status)

	rec = env.request(t, http.MethodDelete, "/api/appointments/"+formatID(id), token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.request(t, http.MethodGet, "/api/appointments", token, nil)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	assert.Empty(t, listed)
}

func TestCreateAppointmentRejectsBadInput(t *testing.T) {
	env := newTestEnv(t)
	token := env.mintToken(t, env.seedAccount(t, "owner@example.com"))

	tests := []struct {
		name string
		body map[string]string
	}{
		{"missing name", map[string]string{"phone": "+41791234567", "appointment_datetime": "2026-03-12 14:30:00"}},
		{"bad phone", map[string]string{"client_name": "X", "phone": "abc", "appointment_datetime": "2026-03-12 14:30:00"}},
		{"bad language", map[string]string{"client_name": "X", "phone": "+41791234567", "client_language": "en", "appointment_datetime": "2026-03-12 14:30:00"}},
		{"bad time", map[string]string{"client_name": "X", "phone": "+41791234567", "appointment_datetime": "tomorrow"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.request(t, http.MethodPost, "/api/appointments", token, tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestPublicCancel(t *testing.T) {
	env := newTestEnv(t)
	accountID := env.seedAccount(t, "owner@example.com")
	id := env.seedAppointment(t, accountID, "fr")

	rec := env.request(t, http.MethodGet, "/cancel/"+formatID(id), "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/plain")
	assert.Contains(t, rec.Body.String(), "annulé")

	appt, err := env.db.GetAppointment(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, models.AppointmentCancelled, appt.Status)

	// Second visit reports the appointment as already cancelled.
	rec = env.request(t, http.MethodGet, "/cancel/"+formatID(id), "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "déjà")

	rec = env.request(t, http.MethodGet, "/cancel/999999", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.request(t, http.MethodGet, "/cancel/not-a-number", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestResendMessage(t *testing.T) {
	env := newTestEnv(t)
	accountID := env.seedAccount(t, "owner@example.com")
	token := env.mintToken(t, accountID)

	errText := "provider rejected message"
	retryAt := env.clk.Now().Add(constants.RetryBackoff)
	logID, err := env.db.CreateMessageLog(context.Background(), &models.MessageLog{
		AccountID:   accountID,
		Channel:     models.ChannelSMS,
		Kind:        models.KindReminder24,
		Phone:       "+41791234567",
		Body:        "Erinnerung: Ihr Termin bei Studio Z findet morgen um 14:30 statt.",
		Status:      models.MessageFailed,
		Attempts:    1,
		ErrorText:   &errText,
		NextRetryAt: &retryAt,
	})
	require.NoError(t, err)

	env.dispatcher.On("Send", mock.Anything, models.ChannelSMS, "+41791234567", mock.Anything).
		Return("SM500", nil).Once()

	rec := env.request(t, http.MethodPost, "/api/messages/resend/"+formatID(logID), token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	entry, err := env.db.GetMessageLog(context.Background(), logID, accountID)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, models.MessageSent, entry.Status)
	require.NotNil(t, entry.ProviderRef)
	assert.Equal(t, "SM500", *entry.ProviderRef)
	assert.Nil(t, entry.NextRetryAt)
	env.dispatcher.AssertExpectations(t)

	rec = env.request(t, http.MethodPost, "/api/messages/resend/999999", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestResendMessageFailureReschedules(t *testing.T) {
	env := newTestEnv(t)
	accountID := env.seedAccount(t, "owner@example.com")
	token := env.mintToken(t, accountID)

	errText := "timeout"
	retryAt := env.clk.Now().Add(constants.RetryBackoff)
	logID, err := env.db.CreateMessageLog(context.Background(), &models.MessageLog{
		AccountID:   accountID,
		Channel:     models.ChannelWhatsApp,
		Kind:        models.KindReminder24,
		Phone:       "+41791234567",
		Body:        "hello",
		Status:      models.MessageFailed,
		Attempts:    1,
		ErrorText:   &errText,
		NextRetryAt: &retryAt,
	})
	require.NoError(t, err)

	env.dispatcher.On("Send", mock.Anything, models.ChannelWhatsApp, "+41791234567", "hello").
		Return("", assert.AnError).Once()

	rec := env.request(t, http.MethodPost, "/api/messages/resend/"+formatID(logID), token, nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	entry, err := env.db.GetMessageLog(context.Background(), logID, accountID)
	require.NoError(t, err)
	assert.Equal(t, models.MessageFailed, entry.Status)
	assert.Equal(t, 2, entry.Attempts)
	require.NotNil(t, entry.NextRetryAt)
}

func TestListMessages(t *testing.T) {
	env := newTestEnv(t)
	accountID := env.seedAccount(t, "owner@example.com")
	token := env.mintToken(t, accountID)

	now := env.clk.Now()
	ref := "SM1"
	_, err := env.db.CreateMessageLog(context.Background(), &models.MessageLog{
		AccountID: accountID, Channel: models.ChannelSMS, Kind: models.KindReminder24,
		Phone: "+41791234567", Body: "a", Status: models.MessageSent,
		Attempts: 1, ProviderRef: &ref, SentAt: &now,
	})
	require.NoError(t, err)
	errText := "boom"
	_, err = env.db.CreateMessageLog(context.Background(), &models.MessageLog{
		AccountID: accountID, Channel: models.ChannelWhatsApp, Kind: models.KindReminder2,
		Phone: "+41791234567", Body: "b", Status: models.MessageFailed,
		Attempts: 1, ErrorText: &errText,
	})
	require.NoError(t, err)

	rec := env.request(t, http.MethodGet, "/api/messages", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var logs []models.MessageLog
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &logs))
	assert.Len(t, logs, 2)

	rec = env.request(t, http.MethodGet, "/api/messages?status=failed", token, nil)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &logs))
	require.Len(t, logs, 1)
	assert.Equal(t, models.ChannelWhatsApp, logs[0].Channel)

	rec = env.request(t, http.MethodGet, "/api/messages?channel=carrier-pigeon", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTestSendEndpoints(t *testing.T) {
	env := newTestEnv(t)
	accountID := env.seedAccount(t, "owner@example.com")
	token := env.mintToken(t, accountID)

	env.dispatcher.On("Send", mock.Anything, models.ChannelSMS, "+41791234567", mock.MatchedBy(func(body string) bool {
		return body != ""
	})).Return("SM700", nil).Once()

	rec := env.request(t, http.MethodPost, "/api/settings/test-sms", token, map[string]string{"phone": "+41791234567"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	payload := decodeJSON(t, rec)
	assert.Equal(t, true, payload["success"])
	assert.Equal(t, "SM700", payload["messageId"])

	logs, err := env.db.ListMessageLogs(context.Background(), accountID, database.MessageLogFilter{})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, models.KindTest, logs[0].Kind)
	assert.Equal(t, models.MessageSent, logs[0].Status)

	env.dispatcher.On("Send", mock.Anything, models.ChannelWhatsApp, "+41791234567", mock.Anything).
		Return("", assert.AnError).Once()

	rec = env.request(t, http.MethodPost, "/api/settings/test-whatsapp", token, map[string]string{"phone": "+41791234567"})
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	payload = decodeJSON(t, rec)
	assert.Equal(t, false, payload["success"])

	logs, err = env.db.ListMessageLogs(context.Background(), accountID, database.MessageLogFilter{Status: models.MessageFailed})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, models.KindTest, logs[0].Kind)
	require.NotNil(t, logs[0].ErrorText)
	assert.Nil(t, logs[0].NextRetryAt)

	rec = env.request(t, http.MethodPost, "/api/settings/test-sms", token, map[string]string{"phone": ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	env.dispatcher.AssertExpectations(t)
}

func TestExportEndpoints(t *testing.T) {
	env := newTestEnv(t)
	accountID := env.seedAccount(t, "owner@example.com")
	token := env.mintToken(t, accountID)
	env.seedAppointment(t, accountID, "de")

	for _, path := range []string{"/api/messages/export/appointments", "/api/messages/export/messages"} {
		rec := env.request(t, http.MethodGet, path, token, nil)
		require.Equal(t, http.StatusOK, rec.Code, path)
		assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
			rec.Header().Get("Content-Type"))
		assert.Contains(t, rec.Header().Get("Content-Disposition"), "attachment")
		assert.NotZero(t, rec.Body.Len())
	}
}

func TestRequestIDHeader(t *testing.T) {
	env := newTestEnv(t)

	rec := env.request(t, http.MethodGet, "/health", "", nil)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "req-abc")
	rec = httptest.NewRecorder()
	env.server.router.ServeHTTP(rec, req)
	assert.Equal(t, "req-abc", rec.Header().Get("X-Request-ID"))
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
