package service

import (
	"context"
	"time"

	"terminly/internal/constants"
	"terminly/internal/errors"
	"terminly/internal/metrics"
	"terminly/internal/models"
	"terminly/internal/privacy"
	"terminly/pkg/circuitbreaker"
	"terminly/pkg/twilio"

	"github.com/sirupsen/logrus"
)

// Dispatcher sends a rendered message over a delivery channel and returns
// the provider reference on success.
type Dispatcher interface {
	Send(ctx context.Context, channel models.Channel, to, body string) (string, error)
}

// MessageDispatcher routes messages to the provider client, with a circuit
// breaker per channel so a misbehaving channel does not block the other.
type MessageDispatcher struct {
	client     twilio.Client
	smsBreaker *circuitbreaker.CircuitBreaker
	waBreaker  *circuitbreaker.CircuitBreaker
	logger     *logrus.Logger
}

func NewMessageDispatcher(client twilio.Client, logger *logrus.Logger) *MessageDispatcher {
	return &MessageDispatcher{
		client: client,
		smsBreaker: circuitbreaker.NewWithLogger("twilio-sms",
			constants.DispatchBreakerMaxFailures, constants.DispatchBreakerResetWindow, logger),
		waBreaker: circuitbreaker.NewWithLogger("twilio-whatsapp",
			constants.DispatchBreakerMaxFailures, constants.DispatchBreakerResetWindow, logger),
		logger: logger,
	}
}

func (d *MessageDispatcher) Send(ctx context.Context, channel models.Channel, to, body string) (string, error) {
	if !channel.IsValid() {
		return "", errors.New(errors.ErrCodeInvalidInput, "unknown delivery channel: "+string(channel))
	}

	start := time.Now()
	var resp *twilio.SendResponse

	breaker := d.smsBreaker
	if channel == models.ChannelWhatsApp {
		breaker = d.waBreaker
	}

	err := breaker.Execute(ctx, func(ctx context.Context) error {
		var sendErr error
		switch channel {
		case models.ChannelSMS:
			resp, sendErr = d.client.SendSMS(ctx, to, body)
		case models.ChannelWhatsApp:
			resp, sendErr = d.client.SendWhatsApp(ctx, to, body)
		}
		return sendErr
	})

	metrics.RecordTimer("dispatch_duration", time.Since(start),
		map[string]string{"channel": string(channel)})

	if err != nil {
		metrics.IncrementCounter("dispatch_failures_total",
			map[string]string{"channel": string(channel)}, "Failed provider dispatches")
		d.logger.WithError(err).WithFields(logrus.Fields{
			"channel": channel,
			"to":      privacy.MaskPhoneNumber(to),
		}).Warn("Message dispatch failed")
		if circuitbreaker.IsOpenError(err) {
			return "", errors.WrapRetryable(err, errors.ErrCodeDispatchFailed, "provider temporarily unavailable")
		}
		return "", errors.WrapRetryable(err, errors.ErrCodeProviderAPI, "provider rejected message")
	}

	metrics.IncrementCounter("dispatch_success_total",
		map[string]string{"channel": string(channel)}, "Successful provider dispatches")
	d.logger.WithFields(logrus.Fields{
		"channel":     channel,
		"to":          privacy.MaskPhoneNumber(to),
		"providerRef": privacy.MaskProviderRef(resp.SID),
	}).Info("Message dispatched")

	return resp.SID, nil
}
