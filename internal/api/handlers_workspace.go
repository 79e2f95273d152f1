// handlers_workspace.go - Loaded workspace file operation handlers
package api

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/shape-studio/backend/internal/session"
	"github.com/shape-studio/backend/internal/storage"
	"github.com/shape-studio/backend/internal/workspace"
)

// WorkspaceHandlerImpl implements the WorkspaceHandler interface
type WorkspaceHandlerImpl struct {
	store      storage.Store
	stateStore *session.StateStore
	syncMgr    SyncManager
	dataDir    string
}

// NewWorkspaceHandler creates a new workspace handler instance
func NewWorkspaceHandler(store storage.Store, stateStore *session.StateStore, syncMgr SyncManager, dataDir string) WorkspaceHandler {
	return &WorkspaceHandlerImpl{
		store:      store,
		stateStore: stateStore,
		syncMgr:    syncMgr,
		dataDir:    dataDir,
	}
}

// HandleLoadFile decodes a stored export and loads it into memory
func (h *WorkspaceHandlerImpl) HandleLoadFile(c echo.Context) error {
	var req loadFileRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid request body", err)
	}
	if req.FileID == "" {
		return NewValidationError("fileId")
	}

	info, err := h.store.Get(req.FileID)
	if err != nil {
		return NewNotFoundError("file", req.FileID)
	}
	path, err := h.store.GetFilePath(req.FileID)
	if err != nil {
		return NewInternalError("failed to resolve export path", err)
	}

	info.Status = "loading"
	h.store.RegisterFile(info)

	lf, err := h.stateStore.Load(path)
	if err != nil {
		info.Status = "error"
		h.store.RegisterFile(info)
		return NewBadRequestError("failed to load export", err)
	}

	info.Status = "loaded"
	h.store.RegisterFile(info)

	return c.JSON(http.StatusOK, loadedFileResponse{
		FileID:     lf.Data.ID,
		Name:       info.Name,
		Pages:      len(lf.Data.Pages),
		Components: len(lf.Data.Components),
		Libraries:  len(lf.Libraries),
	})
}

// HandleAttachLibrary links a stored library export to a loaded file
func (h *WorkspaceHandlerImpl) HandleAttachLibrary(c echo.Context) error {
	fileID := c.Param("fileId")
	if fileID == "" {
		return NewValidationError("fileId")
	}

	var req attachLibraryRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid request body", err)
	}
	if req.FileID == "" {
		return NewValidationError("fileId")
	}

	path, err := h.store.GetFilePath(req.FileID)
	if err != nil {
		return NewNotFoundError("file", req.FileID)
	}

	lib, err := h.stateStore.AttachLibrary(fileID, path)
	if err != nil {
		return NewBadRequestError("failed to attach library", err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"libraryId":    lib.ID,
		"components":   len(lib.Components),
		"colors":       len(lib.Colors),
		"typographies": len(lib.Typographies),
	})
}

// HandleListLoaded returns the files currently held in memory
func (h *WorkspaceHandlerImpl) HandleListLoaded(c echo.Context) error {
	var loaded []loadedFileResponse
	for _, id := range h.stateStore.List() {
		lf, ok := h.stateStore.Get(id)
		if !ok {
			continue
		}
		loaded = append(loaded, loadedFileResponse{
			FileID:     id,
			Name:       filepath.Base(lf.Path),
			Pages:      len(lf.Data.Pages),
			Components: len(lf.Data.Components),
			Libraries:  len(lf.Libraries),
		})
	}
	return c.JSON(http.StatusOK, loaded)
}

// HandleSaveFile encodes a loaded file back over its original path
func (h *WorkspaceHandlerImpl) HandleSaveFile(c echo.Context) error {
	fileID := c.Param("fileId")
	if fileID == "" {
		return NewValidationError("fileId")
	}

	lf, ok := h.stateStore.Get(fileID)
	if !ok {
		return NewNotFoundError("file", fileID)
	}

	if err := h.stateStore.Save(fileID, lf.Path, ""); err != nil {
		return NewInternalError("failed to save file", err)
	}

	return c.NoContent(http.StatusNoContent)
}

// HandleExportFile encodes a loaded file in the requested format and
// returns it as a download
func (h *WorkspaceHandlerImpl) HandleExportFile(c echo.Context) error {
	fileID := c.Param("fileId")
	if fileID == "" {
		return NewValidationError("fileId")
	}
	formatName := c.QueryParam("format")
	if formatName == "" {
		formatName = "json"
	}

	if !h.stateStore.IsLoaded(fileID) {
		return NewNotFoundError("file", fileID)
	}

	exportDir := filepath.Join(h.dataDir, "exports")
	if err := os.MkdirAll(exportDir, 0755); err != nil {
		return NewInternalError("failed to create export directory", err)
	}

	ext := exportExtension(formatName)
	outPath := filepath.Join(exportDir, fmt.Sprintf("%s%s", fileID, ext))
	if err := h.stateStore.Save(fileID, outPath, formatName); err != nil {
		return NewBadRequestError("failed to export file", err)
	}

	return c.Attachment(outPath, fileID+ext)
}

// HandleUnloadFile drops a file from memory, keeping its change history
func (h *WorkspaceHandlerImpl) HandleUnloadFile(c echo.Context) error {
	fileID := c.Param("fileId")
	if fileID == "" {
		return NewValidationError("fileId")
	}

	if err := h.stateStore.Unload(fileID); err != nil {
		return NewNotFoundError("file", fileID)
	}
	return c.NoContent(http.StatusNoContent)
}

// HandleDeleteLoaded drops a file from memory and removes its change history
func (h *WorkspaceHandlerImpl) HandleDeleteLoaded(c echo.Context) error {
	fileID := c.Param("fileId")
	if fileID == "" {
		return NewValidationError("fileId")
	}

	if err := h.stateStore.Delete(fileID); err != nil {
		return NewInternalError("failed to delete file", err)
	}
	return c.NoContent(http.StatusNoContent)
}

// HandleWorkspaceStats returns state store statistics
func (h *WorkspaceHandlerImpl) HandleWorkspaceStats(c echo.Context) error {
	return c.JSON(http.StatusOK, h.stateStore.Stats())
}

// HandleListHistory returns recorded change batches for a file, newest first
func (h *WorkspaceHandlerImpl) HandleListHistory(c echo.Context) error {
	fileID := c.Param("fileId")
	if fileID == "" {
		return NewValidationError("fileId")
	}

	page, _ := strconv.Atoi(c.QueryParam("page"))
	if page < 1 {
		page = 1
	}
	pageSize, _ := strconv.Atoi(c.QueryParam("pageSize"))
	if pageSize < 1 || pageSize > 200 {
		pageSize = 20
	}

	ctx := c.Request().Context()
	batches, total, err := h.syncMgr.ListHistory(ctx, fileID, page, pageSize)
	if err != nil {
		return NewNotFoundError("file", fileID)
	}

	return c.JSON(http.StatusOK, historyResponse{
		Batches:  batches,
		Page:     page,
		PageSize: pageSize,
		Total:    total,
	})
}

// HandleApplyBatch re-applies a recorded batch, forward or inverted
func (h *WorkspaceHandlerImpl) HandleApplyBatch(c echo.Context) error {
	fileID := c.Param("fileId")
	batchID := c.Param("batchId")
	if fileID == "" {
		return NewValidationError("fileId")
	}
	if batchID == "" {
		return NewValidationError("batchId")
	}

	var req applyBatchRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid request body", err)
	}

	ctx := c.Request().Context()
	recorded, err := h.syncMgr.ApplyBatch(ctx, fileID, batchID, req.Undo)
	if err != nil {
		if strings.Contains(err.Error(), "not loaded") || strings.Contains(err.Error(), "not found") {
			return NewNotFoundError("batch", batchID)
		}
		return NewInternalError("failed to apply batch", err)
	}

	return c.JSON(http.StatusOK, recorded)
}

// Request/Response types

type loadFileRequest struct {
	FileID string `json:"fileId"`
}

type attachLibraryRequest struct {
	FileID string `json:"fileId"`
}

type applyBatchRequest struct {
	Undo bool `json:"undo"`
}

type loadedFileResponse struct {
	FileID     string `json:"fileId"`
	Name       string `json:"name"`
	Pages      int    `json:"pages"`
	Components int    `json:"components"`
	Libraries  int    `json:"libraries"`
}

type historyResponse struct {
	Batches  []*workspace.ChangeBatch `json:"batches"`
	Page     int                      `json:"page"`
	PageSize int                      `json:"pageSize"`
	Total    int                      `json:"total"`
}

// exportExtension maps a format name to its file extension.
func exportExtension(formatName string) string {
	switch strings.ToLower(formatName) {
	case "yaml":
		return ".yaml"
	case "binary":
		return ".sswf"
	default:
		return ".json"
	}
}
