// handlers_sync.go - Sync session operation handlers
package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/shape-studio/backend/internal/models"
	"github.com/shape-studio/backend/internal/session"
)

// SyncHandlerImpl implements the SyncHandler interface
type SyncHandlerImpl struct {
	syncMgr SyncManager
}

// NewSyncHandler creates a new sync handler instance
func NewSyncHandler(syncMgr SyncManager) SyncHandler {
	return &SyncHandlerImpl{
		syncMgr: syncMgr,
	}
}

// HandleStartSync starts a new sync session for a loaded file
func (h *SyncHandlerImpl) HandleStartSync(c echo.Context) error {
	var req startSyncRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid request body", err)
	}
	if req.FileID == "" {
		return NewValidationError("fileId")
	}
	if req.Kind == "" {
		return NewValidationError("kind")
	}

	sess, err := h.syncMgr.StartSync(req.FileID, session.SyncRequest{
		Kind:      models.SyncKind(req.Kind),
		AssetType: req.AssetType,
		LibraryID: req.LibraryID,
		PageID:    req.PageID,
		ShapeID:   req.ShapeID,
		Apply:     req.Apply,
	})
	if err != nil {
		return NewBadRequestError("failed to start sync", err)
	}

	return c.JSON(http.StatusAccepted, sess)
}

// HandleSyncStatus returns the current status of a sync session
func (h *SyncHandlerImpl) HandleSyncStatus(c echo.Context) error {
	id := c.Param("sessionId")
	if id == "" {
		return NewValidationError("sessionId")
	}

	sess, ok := h.syncMgr.GetSession(id)
	if !ok {
		return NewNotFoundError("session", id)
	}

	// Touch session to prevent cleanup while being viewed
	h.syncMgr.TouchSession(id)

	return c.JSON(http.StatusOK, sess)
}

// HandleSessionKeepAlive extends session lifetime for active viewing
func (h *SyncHandlerImpl) HandleSessionKeepAlive(c echo.Context) error {
	id := c.Param("sessionId")
	if id == "" {
		return NewValidationError("sessionId")
	}

	if ok := h.syncMgr.TouchSession(id); !ok {
		return NewNotFoundError("session", id)
	}

	return c.NoContent(http.StatusNoContent)
}

// HandleSyncProgressStream streams sync progress via SSE
func (h *SyncHandlerImpl) HandleSyncProgressStream(c echo.Context) error {
	id := c.Param("sessionId")
	if id == "" {
		return NewValidationError("sessionId")
	}

	c.Response().Header().Set("Content-Type", "text/event-stream")
	c.Response().Header().Set("Cache-Control", "no-cache")
	c.Response().Header().Set("Connection", "keep-alive")
	c.Response().Header().Set("X-Accel-Buffering", "no")
	c.Response().WriteHeader(http.StatusOK)

	sess, ok := h.syncMgr.GetSession(id)
	if !ok {
		sendSSEError(c, "session not found")
		return nil
	}
	sendSSEData(c, sess)

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	timeout := time.NewTimer(5 * time.Minute)
	defer timeout.Stop()

	for {
		select {
		case <-ticker.C:
			sess, ok := h.syncMgr.GetSession(id)
			if !ok {
				sendSSEError(c, "session not found")
				return nil
			}

			sendSSEData(c, sess)

			if sess.Status == models.SyncStatusComplete ||
				sess.Status == models.SyncStatusError {
				return nil
			}

		case <-timeout.C:
			sendSSEError(c, "stream timeout")
			return nil
		}
	}
}

// HandleGetChanges returns the change pair a completed session produced
func (h *SyncHandlerImpl) HandleGetChanges(c echo.Context) error {
	id := c.Param("sessionId")
	if id == "" {
		return NewValidationError("sessionId")
	}

	redo, undo, ok := h.syncMgr.GetChanges(id)
	if !ok {
		return NewNotFoundError("session", id)
	}

	h.syncMgr.TouchSession(id)

	return c.JSON(http.StatusOK, changesResponse{
		Redo: redo,
		Undo: undo,
	})
}

// HandleGetChangesMsgpack returns the change pair in MessagePack format.
// Large change lists compress much better this way than as JSON.
func (h *SyncHandlerImpl) HandleGetChangesMsgpack(c echo.Context) error {
	id := c.Param("sessionId")
	if id == "" {
		return NewValidationError("sessionId")
	}

	redo, undo, ok := h.syncMgr.GetChanges(id)
	if !ok {
		return NewNotFoundError("session", id)
	}

	h.syncMgr.TouchSession(id)

	payload, err := msgpack.Marshal(changesResponse{Redo: redo, Undo: undo})
	if err != nil {
		return NewInternalError("failed to encode changes", err)
	}

	return c.Blob(http.StatusOK, "application/x-msgpack", payload)
}

// Request/Response types

type startSyncRequest struct {
	FileID    string `json:"fileId"`
	Kind      string `json:"kind"`
	AssetType string `json:"assetType"`
	LibraryID string `json:"libraryId"`
	PageID    string `json:"pageId"`
	ShapeID   string `json:"shapeId"`
	Apply     bool   `json:"apply"`
}

type changesResponse struct {
	Redo []models.Change `json:"redo" msgpack:"redo"`
	Undo []models.Change `json:"undo" msgpack:"undo"`
}
