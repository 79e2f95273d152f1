// interfaces.go - Handler interface definitions for clean separation of concerns
package api

import (
	"context"

	"github.com/labstack/echo/v4"
	"github.com/shape-studio/backend/internal/models"
	"github.com/shape-studio/backend/internal/session"
	"github.com/shape-studio/backend/internal/workspace"
)

// UploadHandler handles export upload operations
type UploadHandler interface {
	HandleUploadFile(c echo.Context) error
	HandleUploadChunk(c echo.Context) error
	HandleCompleteUpload(c echo.Context) error
	HandleUploadBinary(c echo.Context) error
	HandleJobStatus(c echo.Context) error
	HandleJobStream(c echo.Context) error
	HandleGetRecentFiles(c echo.Context) error
	HandleGetFile(c echo.Context) error
	HandleDeleteFile(c echo.Context) error
	HandleRenameFile(c echo.Context) error
}

// WorkspaceHandler handles loaded workspace file operations
type WorkspaceHandler interface {
	HandleLoadFile(c echo.Context) error
	HandleAttachLibrary(c echo.Context) error
	HandleListLoaded(c echo.Context) error
	HandleSaveFile(c echo.Context) error
	HandleExportFile(c echo.Context) error
	HandleUnloadFile(c echo.Context) error
	HandleDeleteLoaded(c echo.Context) error
	HandleWorkspaceStats(c echo.Context) error
	HandleListHistory(c echo.Context) error
	HandleApplyBatch(c echo.Context) error
}

// SyncHandler handles sync session operations
type SyncHandler interface {
	HandleStartSync(c echo.Context) error
	HandleSyncStatus(c echo.Context) error
	HandleSessionKeepAlive(c echo.Context) error
	HandleSyncProgressStream(c echo.Context) error
	HandleGetChanges(c echo.Context) error
	HandleGetChangesMsgpack(c echo.Context) error
}

// HealthHandler handles health check operations
type HealthHandler interface {
	HandleHealth(c echo.Context) error
}

// SyncManager defines the interface for sync session management
// This allows mocking in tests
type SyncManager interface {
	StartSync(fileID string, req session.SyncRequest) (*models.SyncSession, error)
	GetSession(id string) (*models.SyncSession, bool)
	GetChanges(id string) ([]models.Change, []models.Change, bool)
	TouchSession(id string) bool
	ApplyBatch(ctx context.Context, fileID, batchID string, undo bool) (*workspace.ChangeBatch, error)
	ListHistory(ctx context.Context, fileID string, page, pageSize int) ([]*workspace.ChangeBatch, int, error)
}
