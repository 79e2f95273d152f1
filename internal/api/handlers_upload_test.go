// handlers_upload_test.go - Tests for export upload handlers
package api

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shape-studio/backend/internal/models"
	"github.com/shape-studio/backend/internal/testutil"
	"github.com/shape-studio/backend/internal/upload"
)

func newUploadTestServer(t *testing.T) (*echo.Echo, *testutil.MockStorage) {
	t.Helper()

	store := testutil.NewMockStorage()
	uploadMgr := upload.NewManager(t.TempDir(), store)

	e := echo.New()
	SetupMiddleware(e)
	h := NewUploadHandler(store, uploadMgr)
	g := e.Group("/api/files")
	g.POST("/upload", h.HandleUploadFile)
	g.POST("/upload/chunk", h.HandleUploadChunk)
	g.POST("/upload/binary", h.HandleUploadBinary)
	g.GET("/recent", h.HandleGetRecentFiles)
	g.GET("/:id", h.HandleGetFile)
	g.DELETE("/:id", h.HandleDeleteFile)
	g.PUT("/:id", h.HandleRenameFile)
	return e, store
}

func TestHandleUploadFile(t *testing.T) {
	t.Run("saves a base64 export", func(t *testing.T) {
		e, store := newUploadTestServer(t)

		content := `{"meta": {"id": "file-1", "version": 1}, "data": {"id": "file-1"}}`
		body := fmt.Sprintf(`{"name": "design.json", "data": %q}`,
			base64.StdEncoding.EncodeToString([]byte(content)))
		req := httptest.NewRequest(http.MethodPost, "/api/files/upload", strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		require.Equal(t, http.StatusCreated, rec.Code)

		var info models.FileInfo
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
		assert.Equal(t, "design.json", info.Name)

		saved, err := store.GetFileData(info.ID)
		require.NoError(t, err)
		assert.Equal(t, content, string(saved))
	})

	t.Run("rejects invalid base64", func(t *testing.T) {
		e, _ := newUploadTestServer(t)

		body := `{"name": "design.json", "data": "not base64!!!"}`
		req := httptest.NewRequest(http.MethodPost, "/api/files/upload", strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("rejects a missing name", func(t *testing.T) {
		e, _ := newUploadTestServer(t)

		body := `{"data": "aGVsbG8="}`
		req := httptest.NewRequest(http.MethodPost, "/api/files/upload", strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHandleUploadBinary(t *testing.T) {
	e, store := newUploadTestServer(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "design.sswf")
	require.NoError(t, err)
	_, err = fw.Write([]byte("SSWF binary payload"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/files/upload/binary", &buf)
	req.Header.Set(echo.HeaderContentType, mw.FormDataContentType())
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)

	var info models.FileInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
	assert.Equal(t, "design.sswf", info.Name)
	assert.Equal(t, 1, store.GetFileCount())
}

func TestHandleUploadChunk(t *testing.T) {
	e, _ := newUploadTestServer(t)

	body := fmt.Sprintf(`{"uploadId": "up-1", "chunkIndex": 0, "data": %q, "totalChunks": 2}`,
		base64.StdEncoding.EncodeToString([]byte("first half")))
	req := httptest.NewRequest(http.MethodPost, "/api/files/upload/chunk", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusAccepted, rec.Code)

	t.Run("rejects a missing uploadId", func(t *testing.T) {
		body := `{"chunkIndex": 0, "data": "aGVsbG8="}`
		req := httptest.NewRequest(http.MethodPost, "/api/files/upload/chunk", strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHandleGetRecentFiles(t *testing.T) {
	e, store := newUploadTestServer(t)

	store.AddFile("f1", "design.json", []byte("{}"))
	store.AddFile("f2", "theme.yaml", []byte(""))
	store.AddFile("f3", "notes.txt", []byte("not an export"))
	store.AddFile("f4", "legacy.sswf", []byte("SSWF"))

	req := httptest.NewRequest(http.MethodGet, "/api/files/recent", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var files []*models.FileInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &files))
	require.Len(t, files, 3)
	for _, f := range files {
		assert.NotEqual(t, "notes.txt", f.Name)
	}
}

func TestHandleFileLifecycle(t *testing.T) {
	e, store := newUploadTestServer(t)
	store.AddFile("f1", "design.json", []byte("{}"))

	t.Run("get returns metadata", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/files/f1", nil)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)

		var info models.FileInfo
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
		assert.Equal(t, "design.json", info.Name)
	})

	t.Run("rename updates the name", func(t *testing.T) {
		body := `{"name": "renamed.json"}`
		req := httptest.NewRequest(http.MethodPut, "/api/files/f1", strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)

		var info models.FileInfo
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
		assert.Equal(t, "renamed.json", info.Name)
	})

	t.Run("rename without a name is rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPut, "/api/files/f1", strings.NewReader(`{}`))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("delete removes the file", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodDelete, "/api/files/f1", nil)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, 0, store.GetFileCount())
	})

	t.Run("get after delete is 404", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/files/f1", nil)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}
