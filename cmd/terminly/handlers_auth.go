package main

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"terminly/internal/constants"
	"terminly/internal/models"
	"terminly/internal/privacy"
	"terminly/internal/validation"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

var validPlans = map[string]bool{"starter": true, "pro": true, "business": true}

type registerRequest struct {
	CompanyName string `json:"company_name"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	Plan        string `json:"plan"`
}

func (s *Server) handleRegister() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req registerRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid input")
			return
		}

		req.Email = strings.ToLower(strings.TrimSpace(req.Email))
		if err := validation.ValidateCompanyName(req.CompanyName); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if err := validation.ValidateEmail(req.Email); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if err := validation.ValidatePassword(req.Password); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		plan := req.Plan
		if plan == "" {
			plan = "starter"
		}
		if !validPlans[plan] {
			writeError(w, http.StatusBadRequest, "Invalid plan")
			return
		}

		existing, err := s.db.GetAccountByEmail(r.Context(), req.Email)
		if err != nil {
			s.logger.WithError(err).Error("Registration lookup failed")
			writeError(w, http.StatusInternalServerError, "Server error")
			return
		}
		if existing != nil {
			writeError(w, http.StatusConflict, "Email already exists")
			return
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), constants.DefaultBcryptCost)
		if err != nil {
			s.logger.WithError(err).Error("Password hashing failed")
			writeError(w, http.StatusInternalServerError, "Server error")
			return
		}

		id, err := s.db.CreateAccount(r.Context(), &models.Account{
			CompanyName:  req.CompanyName,
			Email:        req.Email,
			PasswordHash: string(hash),
			Plan:         plan,
			SMSQuota:     constants.DefaultSMSQuota,
		})
		if err != nil {
			if strings.Contains(err.Error(), "UNIQUE constraint failed") {
				writeError(w, http.StatusConflict, "Email already exists")
				return
			}
			s.logger.WithError(err).Error("Registration failed")
			writeError(w, http.StatusInternalServerError, "Server error")
			return
		}

		s.logger.WithFields(logrus.Fields{
			"accountId": id,
			"email":     privacy.MaskEmail(req.Email),
		}).Info("Account registered")
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"message":    "Account created",
			"account_id": id,
		})
	}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleLogin() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid input")
			return
		}
		req.Email = strings.ToLower(strings.TrimSpace(req.Email))
		if req.Email == "" || req.Password == "" {
			writeError(w, http.StatusBadRequest, "Invalid input")
			return
		}

		acct, err := s.db.GetAccountByEmail(r.Context(), req.Email)
		if err != nil {
			s.logger.WithError(err).Error("Login lookup failed")
			writeError(w, http.StatusInternalServerError, "Server error")
			return
		}
		if acct == nil {
			writeError(w, http.StatusUnauthorized, "Invalid credentials")
			return
		}
		if err := bcrypt.CompareHashAndPassword([]byte(acct.PasswordHash), []byte(req.Password)); err != nil {
			writeError(w, http.StatusUnauthorized, "Invalid credentials")
			return
		}

		now := time.Now()
		claims := authClaims{
			AccountID: acct.ID,
			Email:     acct.Email,
			RegisteredClaims: jwt.RegisteredClaims{
				IssuedAt:  jwt.NewNumericDate(now),
				ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(s.cfg.Auth.TokenTTLHour) * time.Hour)),
			},
		}
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).
			SignedString([]byte(s.cfg.Auth.JWTSecret))
		if err != nil {
			s.logger.WithError(err).Error("Token signing failed")
			writeError(w, http.StatusInternalServerError, "Server error")
			return
		}

		writeJSON(w, http.StatusOK, map[string]interface{}{
			"token": token,
			"account": map[string]interface{}{
				"id":               acct.ID,
				"company_name":     acct.CompanyName,
				"plan":             acct.Plan,
				"sms_quota":        acct.SMSQuota,
				"whatsapp_enabled": acct.WhatsAppEnabled,
			},
		})
	}
}
