package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/villa-armonia/lot-reservation/internal/config"
	"github.com/villa-armonia/lot-reservation/internal/middleware"
	"github.com/villa-armonia/lot-reservation/internal/model"
	"github.com/villa-armonia/lot-reservation/internal/repository"
	"github.com/villa-armonia/lot-reservation/internal/utils"
)

// AccountStore is the user persistence the auth endpoints need.
type AccountStore interface {
	CreateCredentialUser(ctx context.Context, email, password string, role model.Role, cost int) (model.User, error)
	GetUserBySubject(ctx context.Context, subject string) (model.User, error)
	GetUserByID(ctx context.Context, id uint64) (model.User, error)
}

// TokenStore persists refresh token hashes.
type TokenStore interface {
	StoreRefresh(ctx context.Context, userID uint64, tokenHash string, exp time.Time) error
	ValidateRefresh(ctx context.Context, tokenHash string) (uint64, error)
	RevokeByHash(ctx context.Context, tokenHash string) error
	RevokeAllForUser(ctx context.Context, userID uint64) error
}

// AuthHandler serves credential accounts and token refresh.
type AuthHandler struct {
	cfg    config.Config
	users  AccountStore
	tokens TokenStore
	log    *zap.Logger
}

func NewAuthHandler(cfg config.Config, users AccountStore, tokens TokenStore, log *zap.Logger) *AuthHandler {
	return &AuthHandler{cfg: cfg, users: users, tokens: tokens, log: log.Named("auth")}
}

type credentialsReq struct {
	Email    string `json:"email" validate:"required,email,max=190"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}

type userPart struct {
	ID    uint64     `json:"id"`
	Email string     `json:"email"`
	Name  string     `json:"name,omitempty"`
	Role  model.Role `json:"role"`
}

type authResp struct {
	User    userPart  `json:"user"`
	Access  tokenPart `json:"access"`
	Refresh tokenPart `json:"refresh"`
}

// Register creates a password account and returns a token pair.
func (h *AuthHandler) Register(c echo.Context) error {
	req, err := h.bindCredentials(c)
	if err != nil {
		return badRequest(c, err.Error())
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	role := model.RoleFor(req.Email, h.cfg.Policy.AdminEmails)
	u, err := h.users.CreateCredentialUser(ctx, req.Email, req.Password, role, h.cfg.BcryptCost)
	switch {
	case errors.Is(err, repository.ErrDuplicate):
		return c.JSON(http.StatusConflict, echo.Map{"error": "email already registered", "code": "email_exists"})
	case errors.Is(err, utils.ErrPasswordLength):
		return badRequest(c, err.Error())
	case err != nil:
		return writeError(c, h.log, err)
	}
	resp, err := h.issuePair(ctx, u)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusCreated, resp)
}

// Login verifies a password and returns a fresh token pair.
func (h *AuthHandler) Login(c echo.Context) error {
	req, err := h.bindCredentials(c)
	if err != nil {
		return badRequest(c, err.Error())
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.users.GetUserBySubject(ctx, repository.CredentialsSubject(req.Email))
	if errors.Is(err, repository.ErrNotFound) {
		return invalidCredentials(c)
	}
	if err != nil {
		return writeError(c, h.log, err)
	}
	if u.PasswordHash == nil || !utils.VerifyPassword(*u.PasswordHash, req.Password) {
		return invalidCredentials(c)
	}
	resp, err := h.issuePair(ctx, u)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, resp)
}

// Refresh rotates a refresh token: the presented one is revoked and a new
// pair is issued.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		return badRequest(c, "refresh_token required")
	}
	hash := utils.HashRefreshRaw(strings.TrimSpace(req.RefreshToken))

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	userID, err := h.tokens.ValidateRefresh(ctx, hash)
	if errors.Is(err, repository.ErrNotFound) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh token", "code": "unauthorized"})
	}
	if err != nil {
		return writeError(c, h.log, err)
	}
	if err := h.tokens.RevokeByHash(ctx, hash); err != nil {
		return writeError(c, h.log, err)
	}
	u, err := h.users.GetUserByID(ctx, userID)
	if err != nil {
		return writeError(c, h.log, err)
	}
	resp, err := h.issuePair(ctx, u)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, resp)
}

// Logout revokes the refresh token in the body.  Without one, a valid
// bearer token revokes every session of its user.
func (h *AuthHandler) Logout(c echo.Context) error {
	var req refreshReq
	_ = c.Bind(&req)
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if raw := strings.TrimSpace(req.RefreshToken); raw != "" {
		hash := utils.HashRefreshRaw(raw)
		if _, err := h.tokens.ValidateRefresh(ctx, hash); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh token", "code": "unauthorized"})
			}
			return writeError(c, h.log, err)
		}
		if err := h.tokens.RevokeByHash(ctx, hash); err != nil {
			return writeError(c, h.log, err)
		}
		return c.NoContent(http.StatusNoContent)
	}

	auth := c.Request().Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		return badRequest(c, "refresh_token or bearer token required")
	}
	id, err := utils.ParseAccessToken(h.cfg.JWTSecret, strings.TrimPrefix(auth, "Bearer "))
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token", "code": "unauthorized"})
	}
	u, err := h.users.GetUserBySubject(ctx, id.Subject)
	if errors.Is(err, repository.ErrNotFound) {
		return c.NoContent(http.StatusNoContent)
	}
	if err != nil {
		return writeError(c, h.log, err)
	}
	if err := h.tokens.RevokeAllForUser(ctx, u.ID); err != nil {
		return writeError(c, h.log, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Me returns the caller's profile.
func (h *AuthHandler) Me(c echo.Context) error {
	id, ok := middleware.IdentityFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required", "code": "unauthorized"})
	}
	u, err := h.users.GetUserBySubject(c.Request().Context(), id.Subject)
	if errors.Is(err, repository.ErrNotFound) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "profile not found", "code": "not_found"})
	}
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, u)
}

func (h *AuthHandler) bindCredentials(c echo.Context) (credentialsReq, error) {
	var req credentialsReq
	if err := c.Bind(&req); err != nil {
		return req, errors.New("invalid body")
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := c.Validate(&req); err != nil {
		return req, err
	}
	return req, nil
}

// issuePair signs an access token and stores a new refresh token for u.
func (h *AuthHandler) issuePair(ctx context.Context, u model.User) (authResp, error) {
	access, err := utils.NewAccessToken(h.cfg.JWTSecret, u, h.cfg.AccessTTLMin)
	if err != nil {
		return authResp{}, err
	}
	refresh, err := utils.NewRefreshToken(h.cfg.RefreshTTLDays)
	if err != nil {
		return authResp{}, err
	}
	if err := h.tokens.StoreRefresh(ctx, u.ID, utils.HashRefreshRaw(refresh.Raw), refresh.Exp); err != nil {
		return authResp{}, err
	}
	return authResp{
		User:    userPart{ID: u.ID, Email: u.Email, Name: u.Name, Role: u.Role},
		Access:  tokenPart{Token: access.Token, Expires: access.Exp},
		Refresh: tokenPart{Token: refresh.Raw, Expires: refresh.Exp},
	}, nil
}

func invalidCredentials(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials", "code": "unauthorized"})
}
