package main

import (
	"net/http"
	"strconv"

	"terminly/internal/constants"
	"terminly/internal/database"
	"terminly/internal/models"

	"github.com/gorilla/mux"
	"github.com/xuri/excelize/v2"
)

func (s *Server) handleListMessages() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		filter := database.MessageLogFilter{Limit: constants.DefaultLogReadLimit}

		if status := q.Get("status"); status != "" {
			filter.Status = models.MessageStatus(status)
		}
		if channel := q.Get("channel"); channel != "" {
			ch := models.Channel(channel)
			if !ch.IsValid() {
				writeError(w, http.StatusBadRequest, "Invalid channel")
				return
			}
			filter.Channel = ch
		}

		logs, err := s.db.ListMessageLogs(r.Context(), accountIDFromContext(r.Context()), filter)
		if err != nil {
			s.logger.WithError(err).Error("Failed to list message logs")
			writeError(w, http.StatusInternalServerError, "Server error")
			return
		}
		if logs == nil {
			logs = []models.MessageLog{}
		}
		writeJSON(w, http.StatusOK, logs)
	}
}

// handleResendMessage replays a logged message immediately, outside the
// retry schedule. Unlike the retrier it works on any entry, sent or failed.
func (s *Server) handleResendMessage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid id")
			return
		}

		entry, err := s.db.GetMessageLog(r.Context(), id, accountIDFromContext(r.Context()))
		if err != nil {
			s.logger.WithError(err).Error("Failed to load message log")
			writeError(w, http.StatusInternalServerError, "Server error")
			return
		}
		if entry == nil {
			writeError(w, http.StatusNotFound, "Not found")
			return
		}

		providerRef, sendErr := s.dispatcher.Send(r.Context(), entry.Channel, entry.Phone, entry.Body)
		if sendErr != nil {
			nextRetry := s.clk.Now().Add(constants.RetryBackoff)
			if err := s.db.MarkMessageFailed(r.Context(), entry.ID, sendErr.Error(), nextRetry); err != nil {
				s.logger.WithError(err).Error("Failed to record resend failure")
			}
			writeError(w, http.StatusInternalServerError, "Resend failed")
			return
		}

		if err := s.db.MarkMessageSent(r.Context(), entry.ID, providerRef, s.clk.Now()); err != nil {
			s.logger.WithError(err).Error("Failed to record resend success")
			writeError(w, http.StatusInternalServerError, "Server error")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": "Resent"})
	}
}

func (s *Server) handleExportAppointments() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		appts, err := s.db.ListAppointments(r.Context(), accountIDFromContext(r.Context()), database.AppointmentFilter{})
		if err != nil {
			s.logger.WithError(err).Error("Failed to load appointments for export")
			writeError(w, http.StatusInternalServerError, "Server error")
			return
		}

		xl := excelize.NewFile()
		defer func() { _ = xl.Close() }()
		sheet := xl.GetSheetName(0)
		xl.SetSheetName(sheet, "Appointments")
		sheet = "Appointments"

		header := []string{"ID", "Client", "Phone", "Language", "DateTime", "Status", "24h Sent", "2h Sent", "Created"}
		_ = xl.SetSheetRow(sheet, "A1", &header)

		for i, a := range appts {
			record := []interface{}{
				a.ID,
				a.ClientName,
				a.Phone,
				a.ClientLanguage,
				s.clk.FormatStored(a.AppointmentAt),
				string(a.Status),
				a.Reminder24Sent,
				a.Reminder2Sent,
				s.clk.FormatStored(a.CreatedAt),
			}
			cellRef, _ := excelize.CoordinatesToCellName(1, i+2)
			_ = xl.SetSheetRow(sheet, cellRef, &record)
		}

		s.writeWorkbook(w, xl, "appointments.xlsx")
	}
}

func (s *Server) handleExportMessages() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logs, err := s.db.ListMessageLogs(r.Context(), accountIDFromContext(r.Context()), database.MessageLogFilter{})
		if err != nil {
			s.logger.WithError(err).Error("Failed to load message logs for export")
			writeError(w, http.StatusInternalServerError, "Server error")
			return
		}

		xl := excelize.NewFile()
		defer func() { _ = xl.Close() }()
		sheet := xl.GetSheetName(0)
		xl.SetSheetName(sheet, "Messages")
		sheet = "Messages"

		header := []string{"ID", "Channel", "Kind", "Phone", "Status", "Attempts", "Provider Ref", "Next Retry", "Created", "Message", "Error"}
		_ = xl.SetSheetRow(sheet, "A1", &header)

		for i, m := range logs {
			providerRef, errText, nextRetry := "", "", ""
			if m.ProviderRef != nil {
				providerRef = *m.ProviderRef
			}
			if m.ErrorText != nil {
				errText = *m.ErrorText
			}
			if m.NextRetryAt != nil {
				nextRetry = s.clk.FormatStored(*m.NextRetryAt)
			}
			record := []interface{}{
				m.ID,
				string(m.Channel),
				string(m.Kind),
				m.Phone,
				string(m.Status),
				m.Attempts,
				providerRef,
				nextRetry,
				s.clk.FormatStored(m.CreatedAt),
				m.Body,
				errText,
			}
			cellRef, _ := excelize.CoordinatesToCellName(1, i+2)
			_ = xl.SetSheetRow(sheet, cellRef, &record)
		}

		s.writeWorkbook(w, xl, "messages.xlsx")
	}
}

func (s *Server) writeWorkbook(w http.ResponseWriter, xl *excelize.File, filename string) {
	buf, err := xl.WriteToBuffer()
	if err != nil {
		s.logger.WithError(err).Error("Failed to build workbook")
		writeError(w, http.StatusInternalServerError, "Export failed")
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", "attachment; filename="+filename)
	w.Write(buf.Bytes())
}
