package handler

import (
	"log/slog"
	"net/http"

	"github.com/aidarbekov/walletd/internal/usecase"
	"github.com/gin-gonic/gin"
)

type SyncHandler struct {
	walletUsecase *usecase.WalletUsecase
	logger        *slog.Logger
}

func NewSyncHandler(walletUsecase *usecase.WalletUsecase, logger *slog.Logger) *SyncHandler {
	return &SyncHandler{walletUsecase: walletUsecase, logger: logger.With("component", "sync_handler")}
}

// GET /sync/events
// Newest first, bounded by the audit log cap.
func (h *SyncHandler) RecentEvents(c *gin.Context) {
	events := h.walletUsecase.RecentEvents(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"events": events, "count": len(events)})
}
