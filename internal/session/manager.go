package session

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shape-studio/backend/internal/models"
	stsync "github.com/shape-studio/backend/internal/sync"
	"github.com/shape-studio/backend/internal/workspace"
)

// MaxSessions limits concurrent sync sessions to prevent memory exhaustion
const MaxSessions = 32

// SessionMaxAge is how long to keep completed sessions before cleanup
const SessionMaxAge = 30 * time.Minute

// SessionKeepAliveWindow is how long to keep sessions that are actively being used
const SessionKeepAliveWindow = 5 * time.Minute

// SyncRequest selects what a sync session runs.
//
// Kind file and library walk the whole workspace; Kind shape and inverse
// need PageID and ShapeID. An empty AssetType means every asset family,
// an empty LibraryID means every linked library.
type SyncRequest struct {
	Kind      models.SyncKind `json:"kind"`
	AssetType string          `json:"assetType,omitempty"`
	LibraryID string          `json:"libraryId,omitempty"`
	PageID    string          `json:"pageId,omitempty"`
	ShapeID   string          `json:"shapeId,omitempty"`
	// Apply applies the redo list to the loaded file and records the batch
	// in the file's change history. Without it the session only reports the
	// change pair.
	Apply bool `json:"apply,omitempty"`
}

// SessionState holds the session metadata plus the computed change pair.
type SessionState struct {
	Session      *models.SyncSession
	Redo         []models.Change
	Undo         []models.Change
	LastAccessed time.Time
}

// Manager runs sync sessions over the files held by a StateStore.
type Manager struct {
	sessions map[string]*SessionState
	mu       sync.RWMutex
	store    *StateStore
}

// NewManager creates a new sync session manager.
func NewManager(store *StateStore) *Manager {
	return &Manager{
		sessions: make(map[string]*SessionState),
		store:    store,
	}
}

// Store returns the underlying state store.
func (m *Manager) Store() *StateStore {
	return m.store
}

// StartSync begins a sync run for a loaded file.
func (m *Manager) StartSync(fileID string, req SyncRequest) (*models.SyncSession, error) {
	if !m.store.IsLoaded(fileID) {
		return nil, fmt.Errorf("file not loaded: %s", fileID)
	}
	switch req.Kind {
	case models.SyncKindFile, models.SyncKindLibrary:
	case models.SyncKindShape, models.SyncKindInverse:
		if req.PageID == "" || req.ShapeID == "" {
			return nil, fmt.Errorf("%s sync needs a page id and a shape id", req.Kind)
		}
	default:
		return nil, fmt.Errorf("unknown sync kind: %s", req.Kind)
	}

	m.cleanupOldSessionsIfNeeded()

	sessionID := uuid.New().String()
	session := models.NewSyncSession(sessionID, fileID, req.Kind)
	session.AssetType = req.AssetType
	session.LibraryID = req.LibraryID
	session.PageID = req.PageID
	session.ShapeID = req.ShapeID
	session.Status = models.SyncStatusRunning
	session.StartTime = time.Now().UnixMilli()

	state := &SessionState{
		Session:      session,
		LastAccessed: time.Now(),
	}

	m.mu.Lock()
	m.sessions[sessionID] = state
	m.mu.Unlock()

	// Run the sync in a background goroutine
	go m.runSync(sessionID, fileID, req)

	return session, nil
}

func (m *Manager) runSync(sessionID, fileID string, req SyncRequest) {
	// Recover from panics to prevent backend crash
	defer func() {
		if r := recover(); r != nil {
			fmt.Printf("[Sync %s] PANIC recovered: %v\n", shortID(sessionID), r)
			m.updateSessionError(sessionID, fmt.Sprintf("sync panicked: %v", r))
		}
	}()

	start := time.Now()
	fmt.Printf("[Sync %s] Starting %s sync of file %s\n", shortID(sessionID), req.Kind, shortID(fileID))

	lf, ok := m.store.Get(fileID)
	if !ok {
		m.updateSessionError(sessionID, fmt.Sprintf("file not loaded: %s", fileID))
		return
	}

	m.setProgress(sessionID, 10)

	lf.mu.Lock()
	defer lf.mu.Unlock()

	var redo, undo []models.Change
	switch req.Kind {
	case models.SyncKindFile, models.SyncKindLibrary:
		redo, undo = m.runLibrarySync(sessionID, lf, req)
	case models.SyncKindShape:
		pair := stsync.SyncShapeAndChildren(req.PageID, "", req.ShapeID, lf.Data, lf.Libraries, false)
		redo, undo = pair.Redo, pair.Undo
	case models.SyncKindInverse:
		redo, undo = stsync.SyncShapeInverse(req.PageID, req.ShapeID, lf.Data, lf.Libraries)
	}

	m.setProgress(sessionID, 90)

	if req.Apply && len(redo) > 0 {
		if err := stsync.ApplyChanges(lf.Data, redo); err != nil {
			fmt.Printf("[Sync %s] ERROR: apply failed: %v\n", shortID(sessionID), err)
			m.updateSessionError(sessionID, fmt.Sprintf("apply failed: %v", err))
			return
		}
		lf.Log.Append(&workspace.ChangeBatch{
			FileID:    fileID,
			SessionID: sessionID,
			Kind:      string(req.Kind),
			Redo:      redo,
			Undo:      undo,
		})
	}

	elapsed := time.Since(start).Milliseconds()
	fmt.Printf("[Sync %s] Complete: %d redo / %d undo changes in %dms\n",
		shortID(sessionID), len(redo), len(undo), elapsed)

	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.sessions[sessionID]
	if !ok {
		return
	}
	state.Redo = redo
	state.Undo = undo
	state.Session.Status = models.SyncStatusComplete
	state.Session.Progress = 100
	state.Session.RedoCount = len(redo)
	state.Session.UndoCount = len(undo)
	state.Session.ProcessingTimeMs = elapsed
	state.Session.EndTime = time.Now().UnixMilli()
}

// runLibrarySync walks the requested libraries and asset families. File
// kind targets the pages, library kind the local components.
func (m *Manager) runLibrarySync(sessionID string, lf *LoadedFile, req SyncRequest) ([]models.Change, []models.Change) {
	st := lf.State()

	assetTypes := []stsync.AssetType{stsync.AssetComponents, stsync.AssetColors, stsync.AssetTypographies}
	if req.AssetType != "" {
		assetTypes = []stsync.AssetType{stsync.AssetType(req.AssetType)}
	}

	var libIDs []string
	if req.LibraryID != "" {
		libIDs = []string{req.LibraryID}
	} else {
		for id := range lf.Libraries {
			libIDs = append(libIDs, id)
		}
		sort.Strings(libIDs)
	}

	var redo, undo []models.Change
	for i, libID := range libIDs {
		for _, assetType := range assetTypes {
			var r, u []models.Change
			if req.Kind == models.SyncKindFile {
				r, u = stsync.GenerateSyncFile(assetType, libID, st)
			} else {
				r, u = stsync.GenerateSyncLibrary(assetType, libID, st)
			}
			redo = append(redo, r...)
			undo = append(undo, u...)
		}

		progress := 10 + float64(i+1)*80.0/float64(len(libIDs))
		if progress > 89.9 {
			progress = 89.9
		}
		m.setProgress(sessionID, progress)
	}
	return redo, undo
}

func (m *Manager) setProgress(sessionID string, progress float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if state, ok := m.sessions[sessionID]; ok {
		state.Session.Progress = progress
	}
}

func (m *Manager) updateSessionError(sessionID, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.sessions[sessionID]
	if !ok {
		return
	}
	state.Session.Status = models.SyncStatusError
	state.Session.Error = reason
	state.Session.EndTime = time.Now().UnixMilli()
}

// GetSession returns a session by ID.
func (m *Manager) GetSession(id string) (*models.SyncSession, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, ok := m.sessions[id]
	if !ok {
		return nil, false
	}
	return state.Session, true
}

// GetChanges returns the change pair a completed session produced.
func (m *Manager) GetChanges(id string) ([]models.Change, []models.Change, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, ok := m.sessions[id]
	if !ok || state.Session.Status != models.SyncStatusComplete {
		return nil, nil, false
	}
	return state.Redo, state.Undo, true
}

// SessionCount returns the number of sessions currently tracked, running
// and completed alike.
func (m *Manager) SessionCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// TouchSession updates the LastAccessed timestamp for a session.
func (m *Manager) TouchSession(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.sessions[id]
	if !ok {
		return false
	}
	state.LastAccessed = time.Now()
	return true
}

// ApplyBatch re-applies a recorded batch from a file's change history.
// With undo set it applies the batch's undo list instead, and the recorded
// batch gets the lists swapped so it can itself be undone.
func (m *Manager) ApplyBatch(ctx context.Context, fileID, batchID string, undo bool) (*workspace.ChangeBatch, error) {
	lf, ok := m.store.Get(fileID)
	if !ok {
		return nil, fmt.Errorf("file not loaded: %s", fileID)
	}

	batch, err := lf.Log.GetBatch(ctx, batchID)
	if err != nil {
		return nil, err
	}

	changes := batch.Redo
	kind := "redo"
	if undo {
		changes = batch.Undo
		kind = "undo"
	}

	lf.mu.Lock()
	defer lf.mu.Unlock()

	if err := stsync.ApplyChanges(lf.Data, changes); err != nil {
		return nil, fmt.Errorf("failed to apply batch %s: %w", batchID, err)
	}

	recorded := &workspace.ChangeBatch{
		FileID: fileID,
		Kind:   kind,
		Redo:   changes,
	}
	if undo {
		recorded.Undo = batch.Redo
	} else {
		recorded.Undo = batch.Undo
	}
	return lf.Log.Append(recorded), nil
}

// ListHistory returns recorded batches for a file, newest first.
func (m *Manager) ListHistory(ctx context.Context, fileID string, page, pageSize int) ([]*workspace.ChangeBatch, int, error) {
	lf, ok := m.store.Get(fileID)
	if !ok {
		return nil, 0, fmt.Errorf("file not loaded: %s", fileID)
	}
	return lf.Log.ListBatches(ctx, fileID, page, pageSize)
}

// cleanupOldSessionsIfNeeded removes oldest completed sessions if at capacity
func (m *Manager) cleanupOldSessionsIfNeeded() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.sessions) < MaxSessions {
		return
	}

	var toDelete []string
	for id, state := range m.sessions {
		if state.Session.Status == models.SyncStatusComplete ||
			state.Session.Status == models.SyncStatusError {
			toDelete = append(toDelete, id)
		}
	}
	sort.Slice(toDelete, func(i, j int) bool {
		return m.sessions[toDelete[i]].LastAccessed.Before(m.sessions[toDelete[j]].LastAccessed)
	})

	toFree := len(m.sessions) - MaxSessions + 1
	deleted := 0
	for _, id := range toDelete {
		if deleted >= toFree {
			break
		}
		delete(m.sessions, id)
		deleted++
		fmt.Printf("[Manager] Cleaned up old session %s to free memory\n", shortID(id))
	}
}

// CleanupOldSessions removes sessions older than maxAge,
// but keeps sessions that have been accessed within SessionKeepAliveWindow.
func (m *Manager) CleanupOldSessions(maxAge time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	keepAliveCutoff := time.Now().Add(-SessionKeepAliveWindow)

	for id, state := range m.sessions {
		if state.Session.Status != models.SyncStatusComplete &&
			state.Session.Status != models.SyncStatusError {
			continue
		}
		if state.LastAccessed.After(keepAliveCutoff) {
			continue
		}
		if state.LastAccessed.Before(cutoff) {
			delete(m.sessions, id)
			fmt.Printf("[Manager] Cleaned up aged session %s (last accessed: %s ago)\n",
				shortID(id), time.Since(state.LastAccessed).Round(time.Second))
		}
	}
}
