package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/jihokoo/spotmission/internal/apperrors"
	"github.com/jihokoo/spotmission/internal/handlers/principalctx"
	"github.com/jihokoo/spotmission/internal/handlers/render"
	"github.com/jihokoo/spotmission/internal/logger"
	"github.com/jihokoo/spotmission/internal/models"
)

type authService interface {
	// Login with password credential
	// Has to return apperrors.ErrBadCredentials when email or password is wrong
	Login(ctx context.Context, email string, password string, deviceInfo *string) (models.TokenPair, error)

	// Social handshake success hand-off, creates the principal when needed
	SocialLogin(ctx context.Context, provider string, socialID string, email string, deviceInfo *string) (models.TokenPair, error)

	// Rotate the presented refresh token
	// Invalid token: apperrors.ErrInvalidToken
	// Expired token: apperrors.ErrTokenExpired
	Refresh(ctx context.Context, refresh string) (models.TokenPair, error)

	// Delete the session, idempotent
	Logout(ctx context.Context, refresh string) error

	// Delete every session of the principal
	LogoutAll(ctx context.Context, principalID uuid.UUID) (int64, error)
}

type AuthHandler struct {
	authService authService
	logger      logger.Logger
}

func NewAuth(auth authService, l logger.Logger) *AuthHandler {
	if l == nil {
		l = logger.NewNoOp()
	}
	return &AuthHandler{authService: auth, logger: l}
}

type tokenPairResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

func pairResponse(pair models.TokenPair) tokenPairResponse {
	return tokenPairResponse{
		AccessToken:  pair.Access.Value,
		RefreshToken: pair.Refresh.Value,
	}
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	type LoginRequest struct {
		Email      string  `json:"email" validate:"required,email"`
		Password   string  `json:"password" validate:"required"`
		DeviceInfo *string `json:"deviceInfo,omitempty"`
	}

	data, err := render.BindAndValidate[LoginRequest](w, r)
	if err != nil {
		return
	}

	pair, err := h.authService.Login(r.Context(), data.Email, data.Password, data.DeviceInfo)
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrBadCredentials):
			render.ServiceError(w, "Wrong email or password", http.StatusUnauthorized)
		default:
			h.logger.Error("login failed", "error", err.Error())
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	render.JSON(w, pairResponse(pair))
}

func (h *AuthHandler) SocialLogin(w http.ResponseWriter, r *http.Request) {
	type SocialLoginRequest struct {
		Provider   string  `json:"provider" validate:"required"`
		ProviderID string  `json:"providerId" validate:"required"`
		Email      string  `json:"email" validate:"required,email"`
		DeviceInfo *string `json:"deviceInfo,omitempty"`
	}

	data, err := render.BindAndValidate[SocialLoginRequest](w, r)
	if err != nil {
		return
	}

	pair, err := h.authService.SocialLogin(r.Context(), data.Provider, data.ProviderID, data.Email, data.DeviceInfo)
	if err != nil {
		h.logger.Error("social login failed", "provider", data.Provider, "error", err.Error())
		render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	render.JSON(w, pairResponse(pair))
}

func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	type RefreshRequest struct {
		RefreshToken string `json:"refreshToken" validate:"required"`
	}

	data, err := render.BindAndValidate[RefreshRequest](w, r)
	if err != nil {
		return
	}

	pair, err := h.authService.Refresh(r.Context(), data.RefreshToken)
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrTokenExpired):
			render.AuthError(w, "expired_token", "Refresh token expired, log in again")
		case errors.Is(err, apperrors.ErrInvalidToken):
			render.AuthError(w, "invalid_token", "Refresh token is not valid")
		default:
			// Covers ErrInternalInconsistency too: logged with context in the
			// service, surfaced here without internal detail
			h.logger.Error("refresh failed", "error", err.Error())
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	render.JSON(w, pairResponse(pair))
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	type LogoutRequest struct {
		RefreshToken string `json:"refreshToken" validate:"required"`
	}
	type LogoutResponse struct {
		Message string `json:"message"`
	}

	data, err := render.BindAndValidate[LogoutRequest](w, r)
	if err != nil {
		return
	}

	if err := h.authService.Logout(r.Context(), data.RefreshToken); err != nil {
		h.logger.Error("logout failed", "error", err.Error())
		render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	render.JSON(w, LogoutResponse{Message: "Logged out"})
}

// LogoutAll relies on the gateway having resolved the bearer access token;
// RequirePrincipal guards the route so an invalid token never reaches here
func (h *AuthHandler) LogoutAll(w http.ResponseWriter, r *http.Request) {
	type LogoutAllResponse struct {
		Message  string `json:"message"`
		Sessions int64  `json:"sessions"`
	}

	principal, ok := principalctx.FromContext(r.Context())
	if !ok {
		render.AuthError(w, "invalid_token", "Authentication required")
		return
	}

	deleted, err := h.authService.LogoutAll(r.Context(), principal.ID)
	if err != nil {
		h.logger.Error("logout all failed", "principalID", principal.ID, "error", err.Error())
		render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	render.JSON(w, LogoutAllResponse{Message: "Logged out everywhere", Sessions: deleted})
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	type MeResponse struct {
		ID    uuid.UUID `json:"id"`
		Email string    `json:"email"`
		Role  string    `json:"role"`
	}

	principal, ok := principalctx.FromContext(r.Context())
	if !ok {
		render.AuthError(w, "invalid_token", "Authentication required")
		return
	}

	render.JSON(w, MeResponse{
		ID:    principal.ID,
		Email: principal.Email,
		Role:  string(principal.Role),
	})
}
