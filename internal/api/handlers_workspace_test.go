// handlers_workspace_test.go - Tests for loaded workspace file handlers
package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shape-studio/backend/internal/session"
	"github.com/shape-studio/backend/internal/testutil"
	"github.com/shape-studio/backend/internal/workspace"
)

const testWorkspaceJSON = `{
	"meta": {"id": "file-1", "version": 1},
	"data": {
		"id": "file-1",
		"pages": ["P1"],
		"pagesIndex": {
			"P1": {
				"id": "P1",
				"name": "Page 1",
				"objects": {
					"rect-1": {"id": "rect-1", "name": "Rect", "type": "rect", "x": 10, "y": 20}
				}
			}
		}
	}
}`

const testLibraryJSON = `{
	"meta": {"id": "lib-1", "version": 1},
	"data": {
		"id": "lib-1",
		"colors": {
			"col-1": {"id": "col-1", "name": "Red", "color": "#ff0000", "opacity": 1}
		}
	}
}`

type workspaceTestEnv struct {
	e          *echo.Echo
	store      *testutil.MockStorageWithTempDir
	stateStore *session.StateStore
	syncMgr    *stubSyncManager
}

func newWorkspaceTestServer(t *testing.T) *workspaceTestEnv {
	t.Helper()

	store := testutil.NewMockStorageWithTempDir(t.TempDir())
	stateStore := session.NewStateStoreWithDir(t.TempDir())
	syncMgr := newStubSyncManager()

	e := echo.New()
	SetupMiddleware(e)
	h := NewWorkspaceHandler(store, stateStore, syncMgr, t.TempDir())
	g := e.Group("/api/workspace")
	g.POST("/load", h.HandleLoadFile)
	g.GET("/loaded", h.HandleListLoaded)
	g.GET("/stats", h.HandleWorkspaceStats)
	g.POST("/:fileId/libraries", h.HandleAttachLibrary)
	g.POST("/:fileId/save", h.HandleSaveFile)
	g.GET("/:fileId/export", h.HandleExportFile)
	g.POST("/:fileId/unload", h.HandleUnloadFile)
	g.DELETE("/:fileId", h.HandleDeleteLoaded)
	g.GET("/:fileId/history", h.HandleListHistory)
	g.POST("/:fileId/history/:batchId/apply", h.HandleApplyBatch)

	return &workspaceTestEnv{e: e, store: store, stateStore: stateStore, syncMgr: syncMgr}
}

func (env *workspaceTestEnv) loadWorkspace(t *testing.T) {
	t.Helper()

	env.store.AddFile("stored-1", "design.json", []byte(testWorkspaceJSON))

	req := httptest.NewRequest(http.MethodPost, "/api/workspace/load",
		strings.NewReader(`{"fileId": "stored-1"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestHandleLoadFile(t *testing.T) {
	t.Run("loads a stored export into memory", func(t *testing.T) {
		env := newWorkspaceTestServer(t)
		env.store.AddFile("stored-1", "design.json", []byte(testWorkspaceJSON))

		req := httptest.NewRequest(http.MethodPost, "/api/workspace/load",
			strings.NewReader(`{"fileId": "stored-1"}`))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		env.e.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)

		var resp loadedFileResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "file-1", resp.FileID)
		assert.Equal(t, 1, resp.Pages)

		info, err := env.store.Get("stored-1")
		require.NoError(t, err)
		assert.Equal(t, "loaded", info.Status)

		assert.True(t, env.stateStore.IsLoaded("file-1"))
	})

	t.Run("404 for an unknown stored file", func(t *testing.T) {
		env := newWorkspaceTestServer(t)

		req := httptest.NewRequest(http.MethodPost, "/api/workspace/load",
			strings.NewReader(`{"fileId": "nope"}`))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		env.e.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("marks the stored file on decode failure", func(t *testing.T) {
		env := newWorkspaceTestServer(t)
		env.store.AddFile("bad-1", "broken.json", []byte("{not json"))

		req := httptest.NewRequest(http.MethodPost, "/api/workspace/load",
			strings.NewReader(`{"fileId": "bad-1"}`))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		env.e.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)

		info, err := env.store.Get("bad-1")
		require.NoError(t, err)
		assert.Equal(t, "error", info.Status)
	})
}

func TestHandleAttachLibrary(t *testing.T) {
	env := newWorkspaceTestServer(t)
	env.loadWorkspace(t)
	env.store.AddFile("stored-lib", "palette.json", []byte(testLibraryJSON))

	req := httptest.NewRequest(http.MethodPost, "/api/workspace/file-1/libraries",
		strings.NewReader(`{"fileId": "stored-lib"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "lib-1", resp["libraryId"])
	assert.Equal(t, float64(1), resp["colors"])
}

func TestHandleListLoaded(t *testing.T) {
	env := newWorkspaceTestServer(t)
	env.loadWorkspace(t)

	req := httptest.NewRequest(http.MethodGet, "/api/workspace/loaded", nil)
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var loaded []loadedFileResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &loaded))
	require.Len(t, loaded, 1)
	assert.Equal(t, "file-1", loaded[0].FileID)
}

func TestHandleExportFile(t *testing.T) {
	env := newWorkspaceTestServer(t)
	env.loadWorkspace(t)

	t.Run("exports as yaml", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/workspace/file-1/export?format=yaml", nil)
		rec := httptest.NewRecorder()
		env.e.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Header().Get(echo.HeaderContentDisposition), "file-1.yaml")
	})

	t.Run("404 for a file that is not loaded", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/workspace/nope/export", nil)
		rec := httptest.NewRecorder()
		env.e.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestHandleUnloadFile(t *testing.T) {
	env := newWorkspaceTestServer(t)
	env.loadWorkspace(t)

	req := httptest.NewRequest(http.MethodPost, "/api/workspace/file-1/unload", nil)
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.False(t, env.stateStore.IsLoaded("file-1"))

	t.Run("unloading again is 404", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/workspace/file-1/unload", nil)
		rec := httptest.NewRecorder()
		env.e.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestHandleWorkspaceStats(t *testing.T) {
	env := newWorkspaceTestServer(t)
	env.loadWorkspace(t)

	req := httptest.NewRequest(http.MethodGet, "/api/workspace/stats", nil)
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var stats map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, float64(1), stats["loadedCount"])
}

func TestHandleListHistory(t *testing.T) {
	env := newWorkspaceTestServer(t)
	env.syncMgr.batches = []*workspace.ChangeBatch{
		{ID: "batch-1", FileID: "file-1", Kind: "file"},
	}

	t.Run("returns recorded batches", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/workspace/file-1/history", nil)
		rec := httptest.NewRecorder()
		env.e.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)

		var resp historyResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Len(t, resp.Batches, 1)
		assert.Equal(t, "batch-1", resp.Batches[0].ID)
		assert.Equal(t, 1, resp.Total)
		assert.Equal(t, 1, resp.Page)
		assert.Equal(t, 20, resp.PageSize)
	})

	t.Run("404 for a file without history", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/workspace/nope/history", nil)
		rec := httptest.NewRecorder()
		env.e.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestHandleApplyBatch(t *testing.T) {
	env := newWorkspaceTestServer(t)
	env.syncMgr.batches = []*workspace.ChangeBatch{
		{ID: "batch-1", FileID: "file-1", Kind: "file"},
	}

	t.Run("re-applies a batch inverted", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/workspace/file-1/history/batch-1/apply",
			strings.NewReader(`{"undo": true}`))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		env.e.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)

		var recorded workspace.ChangeBatch
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &recorded))
		assert.Equal(t, "undo", recorded.Kind)
	})

	t.Run("404 for an unknown batch", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/workspace/file-1/history/nope/apply",
			strings.NewReader(`{}`))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		env.e.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}
