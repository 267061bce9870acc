package main

import (
	"encoding/json"
	"net/http"
	"strconv"

	"terminly/internal/constants"
	"terminly/internal/database"
	"terminly/internal/models"
	"terminly/internal/validation"

	"github.com/gorilla/mux"
)

type appointmentCreateRequest struct {
	ClientName     string `json:"client_name"`
	Phone          string `json:"phone"`
	ClientLanguage string `json:"client_language"`
	AppointmentAt  string `json:"appointment_datetime"`
}

func (s *Server) handleCreateAppointment() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req appointmentCreateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid input")
			return
		}

		if req.ClientName == "" {
			writeError(w, http.StatusBadRequest, "Client name is required")
			return
		}
		if err := validation.ValidatePhoneNumber(req.Phone); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if err := validation.ValidateLanguageTag(req.ClientLanguage); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		at, err := s.clk.ParseStored(req.AppointmentAt)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid appointment time")
			return
		}

		lang := req.ClientLanguage
		if lang == "" {
			lang = "de"
		}

		id, err := s.db.CreateAppointment(r.Context(), &models.Appointment{
			AccountID:      accountIDFromContext(r.Context()),
			ClientName:     req.ClientName,
			Phone:          req.Phone,
			ClientLanguage: lang,
			AppointmentAt:  at,
			Status:         models.AppointmentConfirmed,
		})
		if err != nil {
			s.logger.WithError(err).Error("Failed to create appointment")
			writeError(w, http.StatusInternalServerError, "Server error")
			return
		}

		writeJSON(w, http.StatusOK, map[string]interface{}{"message": "Created", "id": id})
	}
}

func (s *Server) handleListAppointments() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		filter := database.AppointmentFilter{Limit: constants.DefaultReadLimit}

		if status := q.Get("status"); status != "" {
			st := models.AppointmentStatus(status)
			if st != models.AppointmentConfirmed && st != models.AppointmentCancelled {
				writeError(w, http.StatusBadRequest, "Invalid status")
				return
			}
			filter.Status = st
		}
		if from, to := q.Get("from"), q.Get("to"); from != "" && to != "" {
			fromAt, err := s.clk.ParseStored(from)
			if err != nil {
				writeError(w, http.StatusBadRequest, "Invalid from time")
				return
			}
			toAt, err := s.clk.ParseStored(to)
			if err != nil {
				writeError(w, http.StatusBadRequest, "Invalid to time")
				return
			}
			filter.From, filter.To = fromAt, toAt
		}

		appts, err := s.db.ListAppointments(r.Context(), accountIDFromContext(r.Context()), filter)
		if err != nil {
			s.logger.WithError(err).Error("Failed to list appointments")
			writeError(w, http.StatusInternalServerError, "Server error")
			return
		}
		if appts == nil {
			appts = []models.Appointment{}
		}
		writeJSON(w, http.StatusOK, appts)
	}
}

type appointmentUpdateRequest struct {
	ClientName     *string `json:"client_name"`
	Phone          *string `json:"phone"`
	ClientLanguage *string `json:"client_language"`
	AppointmentAt  *string `json:"appointment_datetime"`
	Status         *string `json:"status"`
}

func (s *Server) handleUpdateAppointment() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid id")
			return
		}

		var req appointmentUpdateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid input")
			return
		}

		upd := database.AppointmentUpdate{
			ClientName: req.ClientName,
			Phone:      req.Phone,
		}
		if req.Phone != nil {
			if err := validation.ValidatePhoneNumber(*req.Phone); err != nil {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
		}
		if req.ClientLanguage != nil {
			if err := validation.ValidateLanguageTag(*req.ClientLanguage); err != nil {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			upd.ClientLanguage = req.ClientLanguage
		}
		if req.AppointmentAt != nil {
			at, err := s.clk.ParseStored(*req.AppointmentAt)
			if err != nil {
				writeError(w, http.StatusBadRequest, "Invalid appointment time")
				return
			}
			upd.AppointmentAt = &at
		}
		if req.Status != nil {
			st := models.AppointmentStatus(*req.Status)
			if st != models.AppointmentConfirmed && st != models.AppointmentCancelled {
				writeError(w, http.StatusBadRequest, "Invalid status")
				return
			}
			upd.Status = &st
		}

		if err := s.db.UpdateAppointment(r.Context(), id, accountIDFromContext(r.Context()), upd); err != nil {
			s.logger.WithError(err).Error("Failed to update appointment")
			writeError(w, http.StatusInternalServerError, "Server error")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": "Updated"})
	}
}

func (s *Server) handleDeleteAppointment() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid id")
			return
		}

		if err := s.db.DeleteAppointment(r.Context(), id, accountIDFromContext(r.Context())); err != nil {
			s.logger.WithError(err).Error("Failed to delete appointment")
			writeError(w, http.StatusInternalServerError, "Server error")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": "Deleted"})
	}
}
