package service

import (
	"context"
	"testing"

	apperrors "terminly/internal/errors"
	"terminly/internal/models"
	"terminly/pkg/twilio"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestDispatcherRoutesSMS(t *testing.T) {
	client := &mockTwilioClient{}
	d := NewMessageDispatcher(client, testLogger())

	client.On("SendSMS", mock.Anything, "+41791234567", "hallo").
		Return(&twilio.SendResponse{SID: "SM1"}, nil).Once()

	ref, err := d.Send(context.Background(), models.ChannelSMS, "+41791234567", "hallo")
	require.NoError(t, err)
	assert.Equal(t, "SM1", ref)
	client.AssertExpectations(t)
	client.AssertNotCalled(t, "SendWhatsApp", mock.Anything, mock.Anything, mock.Anything)
}

func TestDispatcherRoutesWhatsApp(t *testing.T) {
	client := &mockTwilioClient{}
	d := NewMessageDispatcher(client, testLogger())

	client.On("SendWhatsApp", mock.Anything, "+41791234567", "hallo").
		Return(&twilio.SendResponse{SID: "WA1"}, nil).Once()

	ref, err := d.Send(context.Background(), models.ChannelWhatsApp, "+41791234567", "hallo")
	require.NoError(t, err)
	assert.Equal(t, "WA1", ref)
	client.AssertExpectations(t)
}

func TestDispatcherRejectsUnknownChannel(t *testing.T) {
	client := &mockTwilioClient{}
	d := NewMessageDispatcher(client, testLogger())

	_, err := d.Send(context.Background(), models.Channel("carrier-pigeon"), "+41791234567", "hallo")
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeInvalidInput, apperrors.GetCode(err))
	client.AssertNotCalled(t, "SendSMS", mock.Anything, mock.Anything, mock.Anything)
}

func TestDispatcherWrapsProviderErrorsRetryable(t *testing.T) {
	client := &mockTwilioClient{}
	d := NewMessageDispatcher(client, testLogger())

	client.On("SendSMS", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, assert.AnError).Once()

	_, err := d.Send(context.Background(), models.ChannelSMS, "+41791234567", "hallo")
	require.Error(t, err)
	assert.True(t, apperrors.IsRetryable(err))
	assert.Equal(t, apperrors.ErrCodeProviderAPI, apperrors.GetCode(err))
}

func TestDispatcherBreakerOpensAfterRepeatedFailures(t *testing.T) {
	client := &mockTwilioClient{}
	d := NewMessageDispatcher(client, testLogger())
	ctx := context.Background()

	client.On("SendSMS", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, assert.AnError)

	for i := 0; i < 5; i++ {
		_, err := d.Send(ctx, models.ChannelSMS, "+41791234567", "hallo")
		require.Error(t, err)
	}

	// The breaker is open now; the provider is no longer called.
	_, err := d.Send(ctx, models.ChannelSMS, "+41791234567", "hallo")
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeDispatchFailed, apperrors.GetCode(err))
	assert.True(t, apperrors.IsRetryable(err))
	client.AssertNumberOfCalls(t, "SendSMS", 5)
}

func TestDispatcherBreakersArePerChannel(t *testing.T) {
	client := &mockTwilioClient{}
	d := NewMessageDispatcher(client, testLogger())
	ctx := context.Background()

	client.On("SendSMS", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, assert.AnError)
	client.On("SendWhatsApp", mock.Anything, mock.Anything, mock.Anything).
		Return(&twilio.SendResponse{SID: "WA1"}, nil)

	for i := 0; i < 6; i++ {
		_, _ = d.Send(ctx, models.ChannelSMS, "+41791234567", "hallo")
	}

	// SMS breaker is open, WhatsApp still flows.
	ref, err := d.Send(ctx, models.ChannelWhatsApp, "+41791234567", "hallo")
	require.NoError(t, err)
	assert.Equal(t, "WA1", ref)
}
