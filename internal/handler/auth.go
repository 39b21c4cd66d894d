package handler

import (
	"errors"
	"net/http"

	"github.com/jirayus/identity-api/internal/payload"
	"github.com/jirayus/identity-api/internal/usecase"
)

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req payload.RegisterRequest
	if !h.decode(w, r, &req) {
		return
	}

	err := h.account.Register(r.Context(), usecase.RegisterParams{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		switch {
		case errors.Is(err, usecase.ErrUserAlreadyExists):
			h.respondError(w, http.StatusBadRequest, "email already registered")
		case errors.Is(err, usecase.ErrPasswordTooWeak), errors.Is(err, usecase.ErrPasswordBreached):
			h.respondError(w, http.StatusBadRequest, err.Error())
		default:
			h.logger.Error().Err(err).Msg("failed to register user")
			h.respondError(w, http.StatusInternalServerError, "something went wrong")
		}
		return
	}

	h.respondJSON(w, http.StatusCreated, payload.MessageResponse{
		Message: "Registered. Please check your email for the verification code.",
	})
}

func (h *AuthHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req payload.VerifyEmailRequest
	if !h.decode(w, r, &req) {
		return
	}

	pair, err := h.account.VerifyEmail(r.Context(), req.Email, req.Code, deviceInfo(r))
	if err != nil {
		switch {
		case errors.Is(err, usecase.ErrNoValidCode):
			h.respondError(w, http.StatusBadRequest, "invalid or expired code")
		case errors.Is(err, usecase.ErrCodeMismatch):
			h.respondError(w, http.StatusBadRequest, "invalid code")
		case errors.Is(err, usecase.ErrTooManyAttempts):
			h.respondError(w, http.StatusBadRequest, "too many failed attempts, request a new code")
		default:
			h.logger.Error().Err(err).Msg("failed to verify email")
			h.respondError(w, http.StatusInternalServerError, "something went wrong")
		}
		return
	}

	h.respondJSON(w, http.StatusOK, payload.TokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	})
}

func (h *AuthHandler) VerifyEmailLink(w http.ResponseWriter, r *http.Request) {
	var req payload.VerifyEmailLinkRequest
	if !h.decode(w, r, &req) {
		return
	}

	pair, err := h.account.VerifyEmailLink(r.Context(), req.Token, deviceInfo(r))
	if err != nil {
		switch {
		case errors.Is(err, usecase.ErrOneTimeTokenInvalid):
			h.respondError(w, http.StatusBadRequest, "invalid or expired token")
		case errors.Is(err, usecase.ErrOneTimeTokenUsed):
			h.respondError(w, http.StatusBadRequest, "token has already been used")
		case errors.Is(err, usecase.ErrOneTimeTokenExpired):
			h.respondError(w, http.StatusBadRequest, "token has expired")
		default:
			h.logger.Error().Err(err).Msg("failed to verify email by link")
			h.respondError(w, http.StatusInternalServerError, "something went wrong")
		}
		return
	}

	h.respondJSON(w, http.StatusOK, payload.TokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	})
}

func (h *AuthHandler) ResendVerification(w http.ResponseWriter, r *http.Request) {
	var req payload.ResendVerificationRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.account.ResendVerification(r.Context(), req.Email); err != nil {
		switch {
		case errors.Is(err, usecase.ErrResendCooldown):
			h.respondError(w, http.StatusBadRequest, "please wait before requesting another code")
		default:
			h.logger.Error().Err(err).Msg("failed to resend verification")
			h.respondError(w, http.StatusInternalServerError, "something went wrong")
		}
		return
	}

	// Identical response whether or not the account exists.
	h.respondJSON(w, http.StatusOK, payload.MessageResponse{
		Message: "If the account exists, we sent a code.",
	})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req payload.LoginRequest
	if !h.decode(w, r, &req) {
		return
	}

	pair, err := h.account.Login(r.Context(), req.Email, req.Password, deviceInfo(r))
	if err != nil {
		switch {
		case errors.Is(err, usecase.ErrInvalidCredentials):
			h.respondError(w, http.StatusUnauthorized, "invalid credentials")
		case errors.Is(err, usecase.ErrEmailNotVerified):
			h.respondError(w, http.StatusUnauthorized, "email is not verified")
		case errors.Is(err, usecase.ErrAccountDisabled):
			h.respondError(w, http.StatusUnauthorized, "account is disabled")
		default:
			h.logger.Error().Err(err).Msg("failed to log in user")
			h.respondError(w, http.StatusInternalServerError, "something went wrong")
		}
		return
	}

	h.respondJSON(w, http.StatusOK, payload.TokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	})
}

func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req payload.RefreshRequest
	if !h.decode(w, r, &req) {
		return
	}

	pair, err := h.sessions.Rotate(r.Context(), req.RefreshToken, deviceInfo(r))
	if err != nil {
		switch {
		case errors.Is(err, usecase.ErrRefreshTokenNotFound),
			errors.Is(err, usecase.ErrRefreshTokenExpired),
			errors.Is(err, usecase.ErrTokenReuseDetected):
			// One opaque rejection for every token state, so callers can't
			// distinguish stolen-token containment from a plain miss.
			h.respondError(w, http.StatusUnauthorized, "invalid refresh token")
		default:
			h.logger.Error().Err(err).Msg("failed to rotate refresh token")
			h.respondError(w, http.StatusInternalServerError, "something went wrong")
		}
		return
	}

	h.respondJSON(w, http.StatusOK, payload.TokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	var req payload.LogoutRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.sessions.Revoke(r.Context(), req.RefreshToken); err != nil {
		h.logger.Error().Err(err).Msg("failed to revoke refresh token")
		h.respondError(w, http.StatusInternalServerError, "something went wrong")
		return
	}

	h.respondJSON(w, http.StatusOK, payload.MessageResponse{Message: "Logged out"})
}

func (h *AuthHandler) LogoutAll(w http.ResponseWriter, r *http.Request) {
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		h.respondError(w, http.StatusUnauthorized, "missing token claims")
		return
	}

	if err := h.sessions.RevokeAll(r.Context(), claims.Subject); err != nil {
		h.logger.Error().Err(err).Msg("failed to revoke all user tokens")
		h.respondError(w, http.StatusInternalServerError, "something went wrong")
		return
	}

	h.respondJSON(w, http.StatusOK, payload.MessageResponse{Message: "Logged out of all sessions"})
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		h.respondError(w, http.StatusUnauthorized, "missing token claims")
		return
	}

	user, err := h.account.GetProfile(r.Context(), claims.Subject)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to load profile")
		h.respondError(w, http.StatusInternalServerError, "something went wrong")
		return
	}

	h.respondJSON(w, http.StatusOK, payload.ProfileResponse{
		ID:              user.UUID,
		Email:           user.Email,
		FirstName:       user.FirstName,
		LastName:        user.LastName,
		IsEmailVerified: user.IsEmailVerified,
	})
}

func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		h.respondError(w, http.StatusUnauthorized, "missing token claims")
		return
	}

	var req payload.ChangePasswordRequest
	if !h.decode(w, r, &req) {
		return
	}

	err := h.account.ChangePassword(r.Context(), claims.Subject, req.CurrentPassword, req.NewPassword)
	if err != nil {
		switch {
		case errors.Is(err, usecase.ErrCurrentPasswordIncorrect):
			h.respondError(w, http.StatusBadRequest, "current password incorrect")
		case errors.Is(err, usecase.ErrPasswordTooWeak), errors.Is(err, usecase.ErrPasswordBreached):
			h.respondError(w, http.StatusBadRequest, err.Error())
		default:
			h.logger.Error().Err(err).Msg("failed to change password")
			h.respondError(w, http.StatusInternalServerError, "something went wrong")
		}
		return
	}

	h.respondJSON(w, http.StatusOK, payload.MessageResponse{Message: "Password changed"})
}

func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req payload.ForgotPasswordRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.account.ForgotPassword(r.Context(), req.Email); err != nil {
		h.logger.Error().Err(err).Msg("failed to request password reset")
		h.respondError(w, http.StatusInternalServerError, "something went wrong")
		return
	}

	// Identical response whether or not the account exists.
	h.respondJSON(w, http.StatusOK, payload.MessageResponse{
		Message: "If the account exists, we sent an email.",
	})
}

func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req payload.ResetPasswordRequest
	if !h.decode(w, r, &req) {
		return
	}

	err := h.account.ResetPassword(r.Context(), req.Token, req.NewPassword)
	if err != nil {
		switch {
		case errors.Is(err, usecase.ErrOneTimeTokenInvalid):
			h.respondError(w, http.StatusBadRequest, "invalid or expired token")
		case errors.Is(err, usecase.ErrOneTimeTokenUsed):
			h.respondError(w, http.StatusBadRequest, "token has already been used")
		case errors.Is(err, usecase.ErrOneTimeTokenExpired):
			h.respondError(w, http.StatusBadRequest, "token has expired")
		case errors.Is(err, usecase.ErrAccountDisabled):
			h.respondError(w, http.StatusBadRequest, "account is disabled")
		case errors.Is(err, usecase.ErrPasswordTooWeak), errors.Is(err, usecase.ErrPasswordBreached):
			h.respondError(w, http.StatusBadRequest, err.Error())
		default:
			h.logger.Error().Err(err).Msg("failed to reset password")
			h.respondError(w, http.StatusInternalServerError, "something went wrong")
		}
		return
	}

	h.respondJSON(w, http.StatusOK, payload.MessageResponse{Message: "Password reset successful"})
}
