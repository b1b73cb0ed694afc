package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/aidarbekov/walletd/internal/domain"
	"github.com/aidarbekov/walletd/internal/usecase"
	"github.com/gin-gonic/gin"
)

type TokenHandler struct {
	walletUsecase *usecase.WalletUsecase
	logger        *slog.Logger
}

func NewTokenHandler(walletUsecase *usecase.WalletUsecase, logger *slog.Logger) *TokenHandler {
	return &TokenHandler{walletUsecase: walletUsecase, logger: logger.With("component", "token_handler")}
}

type createTokenRequest struct {
	Hash     string         `json:"hash"`
	Value    string         `json:"value"    binding:"required"`
	Balance  float64        `json:"balance"`
	Metadata map[string]any `json:"metadata"`
}

type updateTokenRequest struct {
	Value    *string        `json:"value"`
	Balance  *float64       `json:"balance"`
	Metadata map[string]any `json:"metadata"`
}

type summaryResponse struct {
	User         *sessionResponse `json:"user"`
	TokenCount   int              `json:"tokenCount"`
	TotalBalance float64          `json:"totalBalance"`
	GeneratedAt  time.Time        `json:"generatedAt"`
}

// GET /tokens
func (h *TokenHandler) List(c *gin.Context) {
	tokens := h.walletUsecase.GetTokens(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"tokens": tokens, "count": len(tokens)})
}

// POST /tokens
func (h *TokenHandler) Create(c *gin.Context) {
	var req createTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	token, err := h.walletUsecase.CreateToken(c.Request.Context(), usecase.CreateTokenInput{
		Hash:     req.Hash,
		Value:    req.Value,
		Balance:  req.Balance,
		Metadata: req.Metadata,
	})
	if err != nil {
		h.writeError(c, err, "create token")
		return
	}

	c.JSON(http.StatusCreated, token)
}

// GET /tokens/:hash
func (h *TokenHandler) GetByHash(c *gin.Context) {
	token, err := h.walletUsecase.GetToken(c.Request.Context(), c.Param("hash"))
	if err != nil {
		h.writeError(c, err, "get token")
		return
	}
	c.JSON(http.StatusOK, token)
}

// PATCH /tokens/:hash
func (h *TokenHandler) Update(c *gin.Context) {
	var req updateTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	token, err := h.walletUsecase.UpdateToken(c.Request.Context(), c.Param("hash"), domain.TokenPatch{
		Value:    req.Value,
		Balance:  req.Balance,
		Metadata: req.Metadata,
	})
	if err != nil {
		h.writeError(c, err, "update token")
		return
	}

	c.JSON(http.StatusOK, token)
}

// DELETE /tokens/:hash
// Deleting an absent token is not an error.
func (h *TokenHandler) Delete(c *gin.Context) {
	if err := h.walletUsecase.DeleteToken(c.Request.Context(), c.Param("hash")); err != nil {
		h.writeError(c, err, "delete token")
		return
	}
	c.Status(http.StatusNoContent)
}

// DELETE /tokens
func (h *TokenHandler) Clear(c *gin.Context) {
	if err := h.walletUsecase.ClearTokens(c.Request.Context()); err != nil {
		h.writeError(c, err, "clear tokens")
		return
	}
	c.Status(http.StatusNoContent)
}

// GET /wallet/summary
func (h *TokenHandler) Summary(c *gin.Context) {
	summary := h.walletUsecase.Summary(c.Request.Context())

	resp := summaryResponse{
		TokenCount:   summary.TokenCount,
		TotalBalance: summary.TotalBalance,
		GeneratedAt:  time.Now().UTC(),
	}
	if summary.User != nil {
		resp.User = &sessionResponse{
			Email:      summary.User.Email,
			AuthMethod: summary.User.AuthMethod,
			LastLogin:  summary.User.LastLogin,
		}
	}
	c.JSON(http.StatusOK, resp)
}

func (h *TokenHandler) writeError(c *gin.Context, err error, op string) {
	switch {
	case errors.Is(err, domain.ErrNotAuthenticated):
		c.JSON(http.StatusUnauthorized, gin.H{"error": errNotSignedIn})
	case errors.Is(err, domain.ErrTokenNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": errTokenNotFound})
	default:
		h.logger.Error(op, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
	}
}
