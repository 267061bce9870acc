package service

import (
	"context"
	"fmt"

	"terminly/internal/clock"
	"terminly/internal/constants"
	"terminly/internal/database"
	"terminly/internal/metrics"
	"terminly/internal/models"
	"terminly/internal/privacy"
	"terminly/internal/tracing"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

// RetryScheduler re-dispatches failed message log entries. It works purely
// on the stored entry: the original body and channel are replayed as-is,
// appointment flags are never touched, and no quota is consumed again. An
// entry that keeps failing is pushed back with a fresh backoff until the
// attempt cap is reached, after which it is left in the failed state.
type RetryScheduler struct {
	db         *database.Database
	dispatcher Dispatcher
	clk        *clock.Clock
	logger     *logrus.Logger
}

func NewRetryScheduler(db *database.Database, dispatcher Dispatcher, clk *clock.Clock, logger *logrus.Logger) *RetryScheduler {
	return &RetryScheduler{
		db:         db,
		dispatcher: dispatcher,
		clk:        clk,
		logger:     logger,
	}
}

func (r *RetryScheduler) Name() string { return "message-retry" }

func (r *RetryScheduler) Run(ctx context.Context) error {
	ctx, span := tracing.StartSpan(ctx, "message.retry")
	defer span.End()

	now := r.clk.Now()
	batch, err := r.db.GetRetryableMessages(ctx, now, constants.MaxDeliveryAttempts, constants.RetryBatchSize)
	if err != nil {
		tracing.RecordError(ctx, err)
		return fmt.Errorf("failed to load retryable messages: %w", err)
	}

	if len(batch) == 0 {
		return nil
	}
	tracing.AddSpanAttributes(ctx, attribute.Int("retry.batch", len(batch)))
	r.logger.WithField("count", len(batch)).Info("Retrying failed messages")

	for i := range batch {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := r.retryOne(ctx, &batch[i]); err != nil {
			r.logger.WithError(err).WithField("messageId", batch[i].ID).
				Error("Failed to process retry")
		}
	}
	return nil
}

func (r *RetryScheduler) retryOne(ctx context.Context, entry *models.MessageLog) error {
	providerRef, sendErr := r.dispatcher.Send(ctx, entry.Channel, entry.Phone, entry.Body)
	if sendErr != nil {
		nextRetry := r.clk.Now().Add(constants.RetryBackoff)
		if err := r.db.MarkMessageFailed(ctx, entry.ID, sendErr.Error(), nextRetry); err != nil {
			return fmt.Errorf("failed to record retry failure: %w", err)
		}

		attempts := entry.Attempts + 1
		fields := logrus.Fields{
			"messageId": entry.ID,
			"channel":   entry.Channel,
			"phone":     privacy.MaskPhoneNumber(entry.Phone),
			"attempts":  attempts,
		}
		if attempts >= constants.MaxDeliveryAttempts {
			metrics.IncrementCounter("retries_exhausted_total",
				map[string]string{"channel": string(entry.Channel)}, "Messages that ran out of retry attempts")
			r.logger.WithError(sendErr).WithFields(fields).Error("Message retry attempts exhausted")
		} else {
			metrics.IncrementCounter("retries_failed_total",
				map[string]string{"channel": string(entry.Channel)}, "Retry attempts that failed")
			r.logger.WithError(sendErr).WithFields(fields).Warn("Message retry failed, rescheduled")
		}
		return nil
	}

	if err := r.db.MarkMessageSent(ctx, entry.ID, providerRef, r.clk.Now()); err != nil {
		return fmt.Errorf("failed to record retry success: %w", err)
	}

	metrics.IncrementCounter("retries_succeeded_total",
		map[string]string{"channel": string(entry.Channel)}, "Retry attempts that succeeded")
	r.logger.WithFields(logrus.Fields{
		"messageId": entry.ID,
		"channel":   entry.Channel,
		"phone":     privacy.MaskPhoneNumber(entry.Phone),
		"attempts":  entry.Attempts + 1,
	}).Info("Message retry succeeded")
	return nil
}
