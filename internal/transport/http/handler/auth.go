package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/aidarbekov/walletd/internal/domain"
	"github.com/aidarbekov/walletd/internal/usecase"
	"github.com/gin-gonic/gin"
)

// authUsecaser is the subset of AuthUsecase the handler needs.
// Defined here (point of use) so tests can inject a fake.
type authUsecaser interface {
	RequestLink(ctx context.Context, email string) (*usecase.IssueResult, error)
	Verify(ctx context.Context, rawToken string) (*usecase.VerifyResult, error)
	Logout(ctx context.Context) error
	CurrentUser(ctx context.Context) (*domain.User, error)
}

type AuthHandler struct {
	authUsecase authUsecaser
	exposeLink  bool
	logger      *slog.Logger
}

// NewAuthHandler builds the auth handler. exposeLink echoes the sign-in
// link in the response instead of relying on email delivery; enable it
// only in the local environment.
func NewAuthHandler(authUsecase authUsecaser, exposeLink bool, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		authUsecase: authUsecase,
		exposeLink:  exposeLink,
		logger:      logger.With("component", "auth_handler"),
	}
}

type magicLinkRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type sessionResponse struct {
	Email      string    `json:"email"`
	AuthMethod string    `json:"authMethod"`
	LastLogin  time.Time `json:"lastLogin"`
}

// POST /auth/magic-link
// Always returns 200 for a well-formed email so the response does not
// reveal delivery failures.
func (h *AuthHandler) RequestMagicLink(c *gin.Context) {
	var req magicLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.authUsecase.RequestLink(c.Request.Context(), req.Email)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidEmail) {
			c.JSON(http.StatusBadRequest, gin.H{"error": domain.ErrInvalidEmail.Error()})
			return
		}
		h.logger.Error("request magic link", "error", err)
		c.Status(http.StatusOK)
		return
	}

	if h.exposeLink {
		c.JSON(http.StatusOK, gin.H{"link": result.Link})
		return
	}
	c.Status(http.StatusOK)
}

// GET /auth/verify?token=<raw>
// Returns {"token": "<jwt>", "user": {...}} on success, 401 otherwise.
func (h *AuthHandler) Verify(c *gin.Context) {
	rawToken := c.Query("token")
	if rawToken == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": errLinkInvalid})
		return
	}

	result, err := h.authUsecase.Verify(c.Request.Context(), rawToken)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrLinkNotFound):
			c.JSON(http.StatusUnauthorized, gin.H{"error": errLinkInvalid})
		case errors.Is(err, domain.ErrLinkUsed):
			c.JSON(http.StatusUnauthorized, gin.H{"error": errLinkUsed})
		case errors.Is(err, domain.ErrLinkExpired):
			c.JSON(http.StatusUnauthorized, gin.H{"error": errLinkExpired})
		default:
			h.logger.Error("verify magic link", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token": result.JWT,
		"user": sessionResponse{
			Email:      result.User.Email,
			AuthMethod: result.User.AuthMethod,
			LastLogin:  result.User.LastLogin,
		},
	})
}

// POST /auth/logout
// Idempotent: logging out without a session is still a 204.
func (h *AuthHandler) Logout(c *gin.Context) {
	if err := h.authUsecase.Logout(c.Request.Context()); err != nil {
		h.logger.Error("logout", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}
	c.Status(http.StatusNoContent)
}

// GET /auth/session
func (h *AuthHandler) Session(c *gin.Context) {
	user, err := h.authUsecase.CurrentUser(c.Request.Context())
	if err != nil {
		if errors.Is(err, domain.ErrNoSession) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": errNotSignedIn})
			return
		}
		h.logger.Error("current user", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}

	c.JSON(http.StatusOK, sessionResponse{
		Email:      user.Email,
		AuthMethod: user.AuthMethod,
		LastLogin:  user.LastLogin,
	})
}
