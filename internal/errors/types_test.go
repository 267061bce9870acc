package errors

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppErrorError(t *testing.T) {
	plain := New(ErrCodeQuotaExceeded, "SMS quota exceeded")
	assert.Equal(t, "QUOTA_EXCEEDED: SMS quota exceeded", plain.Error())

	cause := stderrors.New("boom")
	wrapped := Wrap(cause, ErrCodeProviderAPI, "provider rejected message")
	assert.Equal(t, "PROVIDER_API: provider rejected message: boom", wrapped.Error())
	assert.Equal(t, cause, stderrors.Unwrap(wrapped))
}

func TestRetryable(t *testing.T) {
	cause := stderrors.New("timeout")

	assert.True(t, IsRetryable(WrapRetryable(cause, ErrCodeDispatchFailed, "send failed")))
	assert.False(t, IsRetryable(Wrap(cause, ErrCodeDispatchFailed, "send failed")))
	assert.False(t, IsRetryable(New(ErrCodeQuotaExceeded, "quota")))
	assert.False(t, IsRetryable(cause))
	assert.False(t, IsRetryable(nil))
}

func TestGetCode(t *testing.T) {
	assert.Equal(t, ErrCodeQuotaExceeded, GetCode(New(ErrCodeQuotaExceeded, "quota")))
	assert.Equal(t, ErrCodeInternalError, GetCode(stderrors.New("plain")))
}

func TestIsQuotaExceeded(t *testing.T) {
	assert.True(t, IsQuotaExceeded(New(ErrCodeQuotaExceeded, "SMS quota exceeded")))
	assert.False(t, IsQuotaExceeded(New(ErrCodeProviderAPI, "rejected")))
	assert.False(t, IsQuotaExceeded(stderrors.New("plain")))
}

func TestWithContext(t *testing.T) {
	err := New(ErrCodeDispatchFailed, "send failed").
		WithContext("channel", "sms").
		WithContext("attempts", 3)

	assert.Equal(t, "sms", err.Context["channel"])
	assert.Equal(t, 3, err.Context["attempts"])
}
