// handlers_sync_test.go - Tests for sync session handlers
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/shape-studio/backend/internal/models"
	"github.com/shape-studio/backend/internal/session"
	"github.com/shape-studio/backend/internal/workspace"
)

// stubSyncManager is a canned-response SyncManager for handler tests.
type stubSyncManager struct {
	sessions map[string]*models.SyncSession
	redo     []models.Change
	undo     []models.Change
	batches  []*workspace.ChangeBatch
	startErr error

	lastFileID  string
	lastRequest session.SyncRequest
}

func newStubSyncManager() *stubSyncManager {
	return &stubSyncManager{sessions: make(map[string]*models.SyncSession)}
}

func (s *stubSyncManager) StartSync(fileID string, req session.SyncRequest) (*models.SyncSession, error) {
	if s.startErr != nil {
		return nil, s.startErr
	}
	s.lastFileID = fileID
	s.lastRequest = req
	sess := models.NewSyncSession("sess-1", fileID, req.Kind)
	s.sessions[sess.ID] = sess
	return sess, nil
}

func (s *stubSyncManager) GetSession(id string) (*models.SyncSession, bool) {
	sess, ok := s.sessions[id]
	return sess, ok
}

func (s *stubSyncManager) GetChanges(id string) ([]models.Change, []models.Change, bool) {
	if _, ok := s.sessions[id]; !ok {
		return nil, nil, false
	}
	return s.redo, s.undo, true
}

func (s *stubSyncManager) TouchSession(id string) bool {
	_, ok := s.sessions[id]
	return ok
}

func (s *stubSyncManager) ApplyBatch(ctx context.Context, fileID, batchID string, undo bool) (*workspace.ChangeBatch, error) {
	for _, b := range s.batches {
		if b.ID == batchID && b.FileID == fileID {
			kind := "redo"
			if undo {
				kind = "undo"
			}
			return &workspace.ChangeBatch{ID: "applied-1", FileID: fileID, Kind: kind}, nil
		}
	}
	return nil, fmt.Errorf("batch %s not found", batchID)
}

func (s *stubSyncManager) ListHistory(ctx context.Context, fileID string, page, pageSize int) ([]*workspace.ChangeBatch, int, error) {
	var out []*workspace.ChangeBatch
	for _, b := range s.batches {
		if b.FileID == fileID {
			out = append(out, b)
		}
	}
	if out == nil {
		return nil, 0, fmt.Errorf("file %s has no history", fileID)
	}
	return out, len(out), nil
}

func newSyncTestServer(mgr SyncManager) *echo.Echo {
	e := echo.New()
	SetupMiddleware(e)
	h := &SyncHandlerImpl{syncMgr: mgr}
	g := e.Group("/api/sync")
	g.POST("", h.HandleStartSync)
	g.GET("/:sessionId/status", h.HandleSyncStatus)
	g.POST("/:sessionId/keepalive", h.HandleSessionKeepAlive)
	g.GET("/:sessionId/changes", h.HandleGetChanges)
	g.GET("/:sessionId/changes/msgpack", h.HandleGetChangesMsgpack)
	return e
}

func TestHandleStartSync(t *testing.T) {
	t.Run("accepts a valid request", func(t *testing.T) {
		mgr := newStubSyncManager()
		e := newSyncTestServer(mgr)

		body := `{"fileId": "file-1", "kind": "file", "apply": true}`
		req := httptest.NewRequest(http.MethodPost, "/api/sync", strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		require.Equal(t, http.StatusAccepted, rec.Code)

		var sess models.SyncSession
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sess))
		assert.Equal(t, "sess-1", sess.ID)
		assert.Equal(t, "file-1", mgr.lastFileID)
		assert.Equal(t, models.SyncKindFile, mgr.lastRequest.Kind)
		assert.True(t, mgr.lastRequest.Apply)
	})

	t.Run("rejects a missing fileId", func(t *testing.T) {
		e := newSyncTestServer(newStubSyncManager())

		body := `{"kind": "file"}`
		req := httptest.NewRequest(http.MethodPost, "/api/sync", strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("rejects a missing kind", func(t *testing.T) {
		e := newSyncTestServer(newStubSyncManager())

		body := `{"fileId": "file-1"}`
		req := httptest.NewRequest(http.MethodPost, "/api/sync", strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("propagates manager errors as bad request", func(t *testing.T) {
		mgr := newStubSyncManager()
		mgr.startErr = fmt.Errorf("file file-1 is not loaded")
		e := newSyncTestServer(mgr)

		body := `{"fileId": "file-1", "kind": "file"}`
		req := httptest.NewRequest(http.MethodPost, "/api/sync", strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHandleSyncStatus(t *testing.T) {
	mgr := newStubSyncManager()
	mgr.sessions["sess-1"] = &models.SyncSession{
		ID:     "sess-1",
		FileID: "file-1",
		Kind:   models.SyncKindFile,
		Status: models.SyncStatusComplete,
	}
	e := newSyncTestServer(mgr)

	t.Run("returns a known session", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/sync/sess-1/status", nil)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)

		var sess models.SyncSession
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sess))
		assert.Equal(t, models.SyncStatusComplete, sess.Status)
	})

	t.Run("404 for an unknown session", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/sync/nope/status", nil)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestHandleSessionKeepAlive(t *testing.T) {
	mgr := newStubSyncManager()
	mgr.sessions["sess-1"] = models.NewSyncSession("sess-1", "file-1", models.SyncKindFile)
	e := newSyncTestServer(mgr)

	req := httptest.NewRequest(http.MethodPost, "/api/sync/sess-1/keepalive", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/sync/nope/keepalive", nil)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleGetChanges(t *testing.T) {
	mgr := newStubSyncManager()
	mgr.sessions["sess-1"] = models.NewSyncSession("sess-1", "file-1", models.SyncKindFile)
	mgr.redo = []models.Change{{
		Type:   models.ChangeModObj,
		ID:     "rect-1",
		PageID: "P1",
		Operations: []models.Operation{
			{Op: models.OpSet, Attr: "fill-color", Val: "#ff0000"},
		},
	}}
	mgr.undo = []models.Change{{
		Type:   models.ChangeModObj,
		ID:     "rect-1",
		PageID: "P1",
		Operations: []models.Operation{
			{Op: models.OpSet, Attr: "fill-color", Val: "#00ff00"},
		},
	}}
	e := newSyncTestServer(mgr)

	t.Run("returns the change pair as JSON", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/sync/sess-1/changes", nil)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)

		var resp changesResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Len(t, resp.Redo, 1)
		require.Len(t, resp.Undo, 1)
		assert.Equal(t, "rect-1", resp.Redo[0].ID)
		assert.Equal(t, "#ff0000", resp.Redo[0].Operations[0].Val)
		assert.Equal(t, "#00ff00", resp.Undo[0].Operations[0].Val)
	})

	t.Run("returns the change pair as msgpack", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/sync/sess-1/changes/msgpack", nil)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "application/x-msgpack", rec.Header().Get(echo.HeaderContentType))

		var resp changesResponse
		require.NoError(t, msgpack.Unmarshal(rec.Body.Bytes(), &resp))
		require.Len(t, resp.Redo, 1)
		assert.Equal(t, "rect-1", resp.Redo[0].ID)
	})

	t.Run("404 for an unknown session", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/sync/nope/changes", nil)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}
