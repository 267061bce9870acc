package main

import (
	"net/http"
	"strconv"

	"terminly/internal/metrics"
	"terminly/internal/models"
	"terminly/internal/translate"

	"github.com/gorilla/mux"
)

// handleCancel is the public, unauthenticated cancellation endpoint the
// reminder messages link to. The response is plain localized text shown
// directly to the client.
func (s *Server) handleCancel() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
		if err != nil {
			http.Error(w, "Not found", http.StatusNotFound)
			return
		}

		appt, err := s.db.GetAppointment(r.Context(), id)
		if err != nil {
			s.logger.WithError(err).Error("Failed to load appointment for cancellation")
			http.Error(w, "Server error", http.StatusInternalServerError)
			return
		}
		if appt == nil {
			http.Error(w, "Not found", http.StatusNotFound)
			return
		}

		tr, err := translate.Get(appt.ClientLanguage)
		if err != nil {
			s.logger.WithError(err).Error("Failed to load translation")
			http.Error(w, "Server error", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")

		if appt.Status == models.AppointmentCancelled {
			w.Write([]byte(tr.CancelAlready))
			return
		}

		if err := s.db.CancelAppointment(r.Context(), id); err != nil {
			s.logger.WithError(err).Error("Failed to cancel appointment")
			http.Error(w, "Server error", http.StatusInternalServerError)
			return
		}

		metrics.IncrementCounter("appointments_cancelled_total", nil, "Appointments cancelled via public link")
		s.logger.WithField("appointmentId", id).Info("Appointment cancelled via public link")
		w.Write([]byte(tr.CancelSuccess))
	}
}
