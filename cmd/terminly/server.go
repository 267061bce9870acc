package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"terminly/internal/clock"
	"terminly/internal/constants"
	"terminly/internal/database"
	"terminly/internal/models"
	"terminly/internal/service"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

type Server struct {
	router     *mux.Router
	logger     *logrus.Logger
	cfg        *models.Config
	db         *database.Database
	dispatcher service.Dispatcher
	clk        *clock.Clock
	server     *http.Server
}

func NewServer(cfg *models.Config, db *database.Database, dispatcher service.Dispatcher, clk *clock.Clock, logger *logrus.Logger) *Server {
	s := &Server{
		router:     mux.NewRouter(),
		logger:     logger,
		cfg:        cfg,
		db:         db,
		dispatcher: dispatcher,
		clk:        clk,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(s.requestIDMiddleware)

	// Public endpoints
	s.router.HandleFunc("/", s.handleBanner()).Methods(http.MethodGet)
	s.router.HandleFunc("/health", s.handleHealth()).Methods(http.MethodGet)
	s.router.HandleFunc("/metrics", s.handleMetrics()).Methods(http.MethodGet)
	s.router.HandleFunc("/cancel/{id:[0-9]+}", s.handleCancel()).Methods(http.MethodGet)

	// Auth
	auth := s.router.PathPrefix("/api/auth").Subrouter()
	auth.HandleFunc("/register", s.handleRegister()).Methods(http.MethodPost)
	auth.HandleFunc("/login", s.handleLogin()).Methods(http.MethodPost)

	// Appointments
	appts := s.router.PathPrefix("/api/appointments").Subrouter()
	appts.Use(s.authMiddleware)
	appts.HandleFunc("", s.handleCreateAppointment()).Methods(http.MethodPost)
	appts.HandleFunc("", s.handleListAppointments()).Methods(http.MethodGet)
	appts.HandleFunc("/{id:[0-9]+}", s.handleUpdateAppointment()).Methods(http.MethodPut)
	appts.HandleFunc("/{id:[0-9]+}", s.handleDeleteAppointment()).Methods(http.MethodDelete)

	// Message logs
	msgs := s.router.PathPrefix("/api/messages").Subrouter()
	msgs.Use(s.authMiddleware)
	msgs.HandleFunc("", s.handleListMessages()).Methods(http.MethodGet)
	msgs.HandleFunc("/resend/{id:[0-9]+}", s.handleResendMessage()).Methods(http.MethodPost)
	msgs.HandleFunc("/export/appointments", s.handleExportAppointments()).Methods(http.MethodGet)
	msgs.HandleFunc("/export/messages", s.handleExportMessages()).Methods(http.MethodGet)

	// Settings
	settings := s.router.PathPrefix("/api/settings").Subrouter()
	settings.Use(s.authMiddleware)
	settings.HandleFunc("/test-sms", s.handleTestSend(models.ChannelSMS)).Methods(http.MethodPost)
	settings.HandleFunc("/test-whatsapp", s.handleTestSend(models.ChannelWhatsApp)).Methods(http.MethodPost)
}

func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Server.Port),
		Handler:      s.router,
		ReadTimeout:  constants.DefaultServerReadTimeoutSec * time.Second,
		WriteTimeout: constants.DefaultServerWriteTimeoutSec * time.Second,
		IdleTimeout:  constants.DefaultServerIdleTimeoutSec * time.Second,
	}

	s.logger.Infof("Starting server on port %d", s.cfg.Server.Port)
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}
}

func (s *Server) handleBanner() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"name":    "Terminly API",
			"version": Version,
			"status":  "online",
			"endpoints": map[string]string{
				"health":       "/health",
				"auth":         "/api/auth",
				"appointments": "/api/appointments",
				"messages":     "/api/messages",
				"cancel":       "/cancel/{id}",
			},
		})
	}
}
