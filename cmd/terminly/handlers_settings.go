package main

import (
	"encoding/json"
	"net/http"

	"terminly/internal/models"
	"terminly/internal/privacy"
	"terminly/internal/validation"

	"github.com/sirupsen/logrus"
)

type testSendRequest struct {
	Phone string `json:"phone"`
}

var testMessages = map[models.Channel]string{
	models.ChannelSMS:      "Twilio Test erfolgreich! Ihre SMS-Integration funktioniert.",
	models.ChannelWhatsApp: "Twilio WhatsApp Test erfolgreich! Ihre Integration funktioniert.",
}

// handleTestSend sends a fixed probe message so an account can verify its
// provider configuration. Test sends are logged but bypass quota and flags.
func (s *Server) handleTestSend(channel models.Channel) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req testSendRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid input")
			return
		}
		if req.Phone == "" {
			writeError(w, http.StatusBadRequest, "Phone number required")
			return
		}
		if err := validation.ValidatePhoneNumber(req.Phone); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		body := testMessages[channel]
		providerRef, sendErr := s.dispatcher.Send(r.Context(), channel, req.Phone, body)

		accountID := accountIDFromContext(r.Context())
		entry := &models.MessageLog{
			AccountID: accountID,
			Channel:   channel,
			Kind:      models.KindTest,
			Phone:     req.Phone,
			Body:      body,
			Attempts:  1,
		}
		if sendErr != nil {
			errText := sendErr.Error()
			entry.Status = models.MessageFailed
			entry.ErrorText = &errText
		} else {
			now := s.clk.Now()
			entry.Status = models.MessageSent
			entry.ProviderRef = &providerRef
			entry.SentAt = &now
		}
		if _, err := s.db.CreateMessageLog(r.Context(), entry); err != nil {
			s.logger.WithError(err).Error("Failed to log test message")
		}

		if sendErr != nil {
			s.logger.WithError(sendErr).WithFields(logrus.Fields{
				"channel": channel,
				"phone":   privacy.MaskPhoneNumber(req.Phone),
			}).Warn("Test message failed")
			writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
				"success": false,
				"message": sendErr.Error(),
			})
			return
		}

		writeJSON(w, http.StatusOK, map[string]interface{}{
			"success":   true,
			"message":   "Test message sent",
			"messageId": providerRef,
		})
	}
}
