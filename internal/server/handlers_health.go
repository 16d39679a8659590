package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	serviceName       = "geko-gateway"
	databasePingLimit = 2 * time.Second
)

type healthBody struct {
	Service  string `json:"service"`
	Status   string `json:"status"`
	Internet string `json:"internet"`
	Database string `json:"database"`
}

// handleHealth always answers 200; connectivity problems are reported in the
// body.
func (h *httpHandler) handleHealth(c *gin.Context) {
	body := healthBody{
		Service:  serviceName,
		Status:   "ok",
		Internet: "unknown",
		Database: "unknown",
	}

	if h.prober != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), h.probeDeadline)
		_, err := h.prober.Check(ctx)
		cancel()
		if err != nil {
			h.logger.Warn("connectivity probe failed", zap.Error(err))
			body.Internet = "disconnected"
		} else {
			body.Internet = "connected"
		}
	}

	if h.databasePing != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), databasePingLimit)
		err := h.databasePing(ctx)
		cancel()
		if err != nil {
			h.logger.Error("database ping failed", zap.Error(err))
			body.Database = "down"
			body.Status = "degraded"
		} else {
			body.Database = "up"
		}
	}

	respondData(c, http.StatusOK, body)
}
