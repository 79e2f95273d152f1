// handlers_health.go - Health check handlers
package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/shape-studio/backend/internal/session"
)

// HealthHandlerImpl implements the HealthHandler interface
type HealthHandlerImpl struct {
	version    string
	stateStore *session.StateStore
	syncMgr    *session.Manager
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(version string, stateStore *session.StateStore, syncMgr *session.Manager) HealthHandler {
	return &HealthHandlerImpl{
		version:    version,
		stateStore: stateStore,
		syncMgr:    syncMgr,
	}
}

// HandleHealth returns server health status along with the current
// workspace load: how many files are loaded and how many sync sessions
// are tracked.
func (h *HealthHandlerImpl) HandleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":       "ok",
		"version":      h.version,
		"loadedFiles":  len(h.stateStore.List()),
		"syncSessions": h.syncMgr.SessionCount(),
	})
}
