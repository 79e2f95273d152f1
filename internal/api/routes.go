// routes.go - Route registration helpers
// This file provides a clean way to register all API routes
package api

import (
	"github.com/labstack/echo/v4"
	"github.com/shape-studio/backend/internal/session"
	"github.com/shape-studio/backend/internal/storage"
	"github.com/shape-studio/backend/internal/upload"
)

// Dependencies holds all handler dependencies
type Dependencies struct {
	Store      storage.Store
	StateStore *session.StateStore
	SyncMgr    *session.Manager
	UploadMgr  *upload.Manager
	DataDir    string
	Version    string
}

// Handlers holds all handler instances
type Handlers struct {
	Health    HealthHandler
	Upload    UploadHandler
	Workspace WorkspaceHandler
	Sync      SyncHandler
	WS        *WebSocketHandler
}

// NewHandlers creates all handler instances
func NewHandlers(deps *Dependencies) *Handlers {
	return &Handlers{
		Health:    NewHealthHandler(deps.Version, deps.StateStore, deps.SyncMgr),
		Upload:    NewUploadHandler(deps.Store, deps.UploadMgr),
		Workspace: NewWorkspaceHandler(deps.Store, deps.StateStore, deps.SyncMgr, deps.DataDir),
		Sync:      NewSyncHandler(deps.SyncMgr),
		WS:        NewWebSocketHandler(deps.Store, deps.StateStore, deps.SyncMgr),
	}
}

// RegisterRoutes registers all API routes with the Echo instance
func RegisterRoutes(e *echo.Echo, handlers *Handlers) {
	// Health check
	e.GET("/health", handlers.Health.HandleHealth)

	// Export upload routes
	uploadGroup := e.Group("/api/files")
	uploadGroup.POST("/upload", handlers.Upload.HandleUploadFile)
	uploadGroup.POST("/upload/chunk", handlers.Upload.HandleUploadChunk)
	uploadGroup.POST("/upload/complete", handlers.Upload.HandleCompleteUpload)
	uploadGroup.POST("/upload/binary", handlers.Upload.HandleUploadBinary)
	uploadGroup.GET("/upload/jobs/:jobId", handlers.Upload.HandleJobStatus)
	uploadGroup.GET("/upload/jobs/:jobId/stream", handlers.Upload.HandleJobStream)
	uploadGroup.GET("/recent", handlers.Upload.HandleGetRecentFiles)
	uploadGroup.GET("/:id", handlers.Upload.HandleGetFile)
	uploadGroup.DELETE("/:id", handlers.Upload.HandleDeleteFile)
	uploadGroup.PUT("/:id", handlers.Upload.HandleRenameFile)

	// Workspace routes
	wsGroup := e.Group("/api/workspace")
	wsGroup.POST("/load", handlers.Workspace.HandleLoadFile)
	wsGroup.GET("/loaded", handlers.Workspace.HandleListLoaded)
	wsGroup.GET("/stats", handlers.Workspace.HandleWorkspaceStats)
	wsGroup.POST("/:fileId/libraries", handlers.Workspace.HandleAttachLibrary)
	wsGroup.POST("/:fileId/save", handlers.Workspace.HandleSaveFile)
	wsGroup.GET("/:fileId/export", handlers.Workspace.HandleExportFile)
	wsGroup.POST("/:fileId/unload", handlers.Workspace.HandleUnloadFile)
	wsGroup.DELETE("/:fileId", handlers.Workspace.HandleDeleteLoaded)
	wsGroup.GET("/:fileId/history", handlers.Workspace.HandleListHistory)
	wsGroup.POST("/:fileId/history/:batchId/apply", handlers.Workspace.HandleApplyBatch)

	// Sync session routes
	syncGroup := e.Group("/api/sync")
	syncGroup.POST("", handlers.Sync.HandleStartSync)
	syncGroup.GET("/:sessionId/status", handlers.Sync.HandleSyncStatus)
	syncGroup.POST("/:sessionId/keepalive", handlers.Sync.HandleSessionKeepAlive)
	syncGroup.GET("/:sessionId/progress", handlers.Sync.HandleSyncProgressStream)
	syncGroup.GET("/:sessionId/changes", handlers.Sync.HandleGetChanges)
	syncGroup.GET("/:sessionId/changes/msgpack", handlers.Sync.HandleGetChangesMsgpack)
}

// RegisterWebSocketRoutes registers WebSocket routes
func RegisterWebSocketRoutes(e *echo.Echo, handlers *Handlers) {
	e.GET("/api/ws", handlers.WS.HandleWebSocket)
}

// SetupMiddleware configures common middleware
func SetupMiddleware(e *echo.Echo) {
	// Use custom error handler
	e.HTTPErrorHandler = ErrorHandler
}
