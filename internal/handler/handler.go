// Package handler maps HTTP requests onto the auth usecases. Handlers stay
// thin: decode, validate, call, translate errors to statuses.
package handler

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	localeen "github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	transen "github.com/go-playground/validator/v10/translations/en"
	"github.com/rs/zerolog"

	"github.com/jirayus/identity-api/internal/model"
	"github.com/jirayus/identity-api/internal/payload"
	"github.com/jirayus/identity-api/internal/token"
	"github.com/jirayus/identity-api/internal/usecase"
)

// AuthHandler serves the authentication endpoints.
type AuthHandler struct {
	account  usecase.AccountUsecase
	sessions usecase.SessionUsecase
	codec    token.Codec
	validate *validator.Validate
	trans    ut.Translator
	logger   *zerolog.Logger
}

// NewAuthHandler creates the handler set with a configured validator.
func NewAuthHandler(
	account usecase.AccountUsecase,
	sessions usecase.SessionUsecase,
	codec token.Codec,
	logger *zerolog.Logger,
) *AuthHandler {
	enLocale := localeen.New()
	uni := ut.New(enLocale, enLocale)
	trans, _ := uni.GetTranslator("en")

	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := transen.RegisterDefaultTranslations(validate, trans); err != nil {
		logger.Fatal().Err(err).Msg("failed to register validator translations")
	}

	return &AuthHandler{
		account:  account,
		sessions: sessions,
		codec:    codec,
		validate: validate,
		trans:    trans,
		logger:   logger,
	}
}

// Routes returns the /auth route tree with the per-IP rate limits applied.
func (h *AuthHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.With(httprate.LimitByIP(3, time.Minute)).Post("/register", h.Register)
	r.With(httprate.LimitByIP(5, time.Minute)).Post("/verify-email", h.VerifyEmail)
	r.With(httprate.LimitByIP(5, time.Minute)).Post("/verify-email-link", h.VerifyEmailLink)
	r.With(httprate.LimitByIP(3, time.Minute)).Post("/resend-verification", h.ResendVerification)
	r.With(httprate.LimitByIP(5, 15*time.Minute)).Post("/login", h.Login)
	r.With(httprate.LimitByIP(20, time.Minute)).Post("/refresh", h.Refresh)
	r.With(httprate.LimitByIP(3, time.Minute)).Post("/forgot-password", h.ForgotPassword)
	r.With(httprate.LimitByIP(3, time.Minute)).Post("/reset-password", h.ResetPassword)
	r.Post("/logout", h.Logout)

	r.Group(func(r chi.Router) {
		r.Use(h.RequireAuth)
		r.Get("/me", h.Me)
		r.Post("/change-password", h.ChangePassword)
		r.Post("/logout-all", h.LogoutAll)
	})

	return r
}

// decode parses and validates the request body into dst, writing the error
// response itself when the input is rejected.
func (h *AuthHandler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return false
	}

	if err := h.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			h.respondError(w, http.StatusBadRequest, verrs[0].Translate(h.trans))
			return false
		}
		h.respondError(w, http.StatusBadRequest, "invalid request")
		return false
	}

	return true
}

func (h *AuthHandler) respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error().Err(err).Msg("failed to encode response")
	}
}

func (h *AuthHandler) respondError(w http.ResponseWriter, status int, msg string) {
	h.respondJSON(w, status, payload.ErrorResponse{Error: msg})
}

// deviceInfo extracts the client attributes recorded on sessions.
func deviceInfo(r *http.Request) model.DeviceInfo {
	info := model.DeviceInfo{}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	if host != "" {
		info.IPAddress = &host
	}

	if ua := r.UserAgent(); ua != "" {
		info.UserAgent = &ua
	}

	return info
}
