package twilio

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const defaultBaseURL = "https://api.twilio.com"

// Client sends text messages through the provider. Both channels share the
// same REST endpoint; WhatsApp destinations carry a channel tag.
type Client interface {
	SendSMS(ctx context.Context, to, body string) (*SendResponse, error)
	SendWhatsApp(ctx context.Context, to, body string) (*SendResponse, error)
}

// SendResponse carries the provider reference for a accepted message.
type SendResponse struct {
	SID string `json:"sid"`
	To  string `json:"to"`
}

// ClientConfig configures a TwilioClient.
type ClientConfig struct {
	BaseURL      string
	AccountSID   string
	AuthToken    string
	SMSFrom      string
	WhatsAppFrom string
	Mock         bool
	Timeout      time.Duration
}

type TwilioClient struct {
	baseURL      string
	accountSID   string
	authToken    string
	smsFrom      string
	whatsappFrom string
	mock         bool
	client       *http.Client
	logger       *logrus.Logger
}

func NewClient(cfg ClientConfig) Client {
	return NewClientWithLogger(cfg, nil)
}

func NewClientWithLogger(cfg ClientConfig, logger *logrus.Logger) Client {
	if logger == nil {
		logger = logrus.New()
		logger.SetLevel(logrus.WarnLevel)
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	baseURL = strings.TrimSuffix(baseURL, "/")

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &TwilioClient{
		baseURL:      baseURL,
		accountSID:   cfg.AccountSID,
		authToken:    cfg.AuthToken,
		smsFrom:      cfg.SMSFrom,
		whatsappFrom: cfg.WhatsAppFrom,
		mock:         cfg.Mock,
		client:       &http.Client{Timeout: timeout},
		logger:       logger,
	}
}

// SendSMS sends a plain text message to an E.164 destination.
func (c *TwilioClient) SendSMS(ctx context.Context, to, body string) (*SendResponse, error) {
	if c.mock {
		c.logger.WithFields(logrus.Fields{
			"channel": "sms",
			"to":      to,
		}).Info("Mock messaging enabled, skipping provider call")
		return &SendResponse{SID: "MOCK-SMS", To: to}, nil
	}
	return c.createMessage(ctx, to, c.smsFrom, body)
}

// SendWhatsApp sends a message over the WhatsApp channel. Destinations not
// already tagged for the channel are tagged before sending.
func (c *TwilioClient) SendWhatsApp(ctx context.Context, to, body string) (*SendResponse, error) {
	if !strings.HasPrefix(to, "whatsapp:") {
		to = "whatsapp:" + to
	}

	if c.mock {
		c.logger.WithFields(logrus.Fields{
			"channel": "whatsapp",
			"to":      to,
		}).Info("Mock messaging enabled, skipping provider call")
		return &SendResponse{SID: "MOCK-WA", To: to}, nil
	}
	return c.createMessage(ctx, to, c.whatsappFrom, body)
}

type apiMessage struct {
	SID          string `json:"sid"`
	Status       string `json:"status"`
	ErrorCode    *int   `json:"error_code"`
	ErrorMessage string `json:"error_message"`
	To           string `json:"to"`
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
}

func (c *TwilioClient) createMessage(ctx context.Context, to, from, body string) (*SendResponse, error) {
	form := url.Values{}
	form.Set("To", to)
	form.Set("From", from)
	form.Set("Body", body)

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", c.baseURL, c.accountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(c.accountSID, c.authToken)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		var apiErr apiError
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Message != "" {
			return nil, fmt.Errorf("twilio API error: status %d, code %d: %s",
				resp.StatusCode, apiErr.Code, apiErr.Message)
		}
		return nil, fmt.Errorf("twilio API error: status %d, body: %s", resp.StatusCode, string(respBody))
	}

	var msg apiMessage
	if err := json.Unmarshal(respBody, &msg); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if msg.ErrorMessage != "" {
		return nil, fmt.Errorf("twilio message rejected: %s", msg.ErrorMessage)
	}

	return &SendResponse{SID: msg.SID, To: msg.To}, nil
}
