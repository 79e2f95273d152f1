package session

import (
	"context"
	"testing"
	"time"

	"github.com/shape-studio/backend/internal/models"
)

// loadLinkedFixture loads the workspace fixture with its library attached
// and returns a manager over it.
func loadLinkedFixture(t *testing.T) *Manager {
	t.Helper()
	store := NewStateStoreWithDir(t.TempDir())
	dir := t.TempDir()
	path := writeFixture(t, dir, "file.json", workspaceJSON)
	libPath := writeFixture(t, dir, "lib.json", libraryJSON)

	if _, err := store.Load(path); err != nil {
		t.Fatalf("Failed to load file: %v", err)
	}
	if _, err := store.AttachLibrary("file-1", libPath); err != nil {
		t.Fatalf("Failed to attach library: %v", err)
	}
	return NewManager(store)
}

func waitForSession(t *testing.T, m *Manager, id string) *models.SyncSession {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		session, ok := m.GetSession(id)
		if !ok {
			t.Fatalf("Session not found: %s", id)
		}
		if session.Status == models.SyncStatusComplete {
			return session
		}
		if session.Status == models.SyncStatusError {
			t.Fatalf("Session failed: %s", session.Error)
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("Session did not complete in time")
	return nil
}

func TestManager_StartSync_Validation(t *testing.T) {
	t.Run("rejects an unloaded file", func(t *testing.T) {
		m := NewManager(NewStateStoreWithDir(t.TempDir()))

		if _, err := m.StartSync("missing", SyncRequest{Kind: models.SyncKindFile}); err == nil {
			t.Error("Expected error for unloaded file")
		}
	})

	t.Run("shape sync needs page and shape ids", func(t *testing.T) {
		m := loadLinkedFixture(t)

		if _, err := m.StartSync("file-1", SyncRequest{Kind: models.SyncKindShape}); err == nil {
			t.Error("Expected error for shape sync without target")
		}
		if _, err := m.StartSync("file-1", SyncRequest{Kind: models.SyncKindInverse, PageID: "P1"}); err == nil {
			t.Error("Expected error for inverse sync without shape id")
		}
	})

	t.Run("rejects an unknown kind", func(t *testing.T) {
		m := loadLinkedFixture(t)

		if _, err := m.StartSync("file-1", SyncRequest{Kind: "refresh"}); err == nil {
			t.Error("Expected error for unknown sync kind")
		}
	})
}

func TestManager_FileSync(t *testing.T) {
	t.Run("reports the stale library fill", func(t *testing.T) {
		m := loadLinkedFixture(t)

		session, err := m.StartSync("file-1", SyncRequest{Kind: models.SyncKindFile})
		if err != nil {
			t.Fatalf("Failed to start sync: %v", err)
		}
		done := waitForSession(t, m, session.ID)
		if done.RedoCount == 0 {
			t.Fatal("Expected sync to report changes")
		}

		redo, undo, ok := m.GetChanges(session.ID)
		if !ok {
			t.Fatal("Expected changes for completed session")
		}
		if len(undo) != len(redo) {
			t.Errorf("Expected matching redo/undo counts, got %d/%d", len(redo), len(undo))
		}

		found := false
		for _, c := range redo {
			if c.Type != models.ChangeModObj || c.ID != "rect-1" {
				continue
			}
			for _, op := range c.Operations {
				if op.Op == models.OpSet && op.Attr == "fill-color" && op.Val == "#ff0000" {
					found = true
				}
			}
		}
		if !found {
			t.Error("Expected a mod-obj change pulling fill-color from the library")
		}

		// Without Apply the file itself stays untouched.
		lf, _ := m.Store().Get("file-1")
		rect := lf.Data.PagesIndex["P1"].Objects["rect-1"]
		if rect.Attrs["fill-color"] != "#00ff00" {
			t.Errorf("Expected file to stay unchanged, got fill-color %v", rect.Attrs["fill-color"])
		}
	})

	t.Run("apply updates the file and records a batch", func(t *testing.T) {
		m := loadLinkedFixture(t)

		session, err := m.StartSync("file-1", SyncRequest{Kind: models.SyncKindFile, Apply: true})
		if err != nil {
			t.Fatalf("Failed to start sync: %v", err)
		}
		waitForSession(t, m, session.ID)

		lf, _ := m.Store().Get("file-1")
		rect := lf.Data.PagesIndex["P1"].Objects["rect-1"]
		if rect.Attrs["fill-color"] != "#ff0000" {
			t.Errorf("Expected applied fill-color #ff0000, got %v", rect.Attrs["fill-color"])
		}

		batches, total, err := m.ListHistory(context.Background(), "file-1", 1, 10)
		if err != nil {
			t.Fatalf("Failed to list history: %v", err)
		}
		if total != 1 || len(batches) != 1 {
			t.Fatalf("Expected 1 recorded batch, got %d", total)
		}
		if batches[0].SessionID != session.ID {
			t.Errorf("Expected batch to carry session %s, got %s", session.ID, batches[0].SessionID)
		}
	})
}

func TestManager_ApplyBatch(t *testing.T) {
	t.Run("undo restores the previous value", func(t *testing.T) {
		m := loadLinkedFixture(t)

		session, err := m.StartSync("file-1", SyncRequest{Kind: models.SyncKindFile, Apply: true})
		if err != nil {
			t.Fatalf("Failed to start sync: %v", err)
		}
		waitForSession(t, m, session.ID)

		batches, _, err := m.ListHistory(context.Background(), "file-1", 1, 10)
		if err != nil {
			t.Fatalf("Failed to list history: %v", err)
		}

		recorded, err := m.ApplyBatch(context.Background(), "file-1", batches[0].ID, true)
		if err != nil {
			t.Fatalf("Failed to undo batch: %v", err)
		}
		if recorded.Kind != "undo" {
			t.Errorf("Expected recorded kind undo, got %s", recorded.Kind)
		}

		lf, _ := m.Store().Get("file-1")
		rect := lf.Data.PagesIndex["P1"].Objects["rect-1"]
		if rect.Attrs["fill-color"] != "#00ff00" {
			t.Errorf("Expected undo to restore #00ff00, got %v", rect.Attrs["fill-color"])
		}

		_, total, err := m.ListHistory(context.Background(), "file-1", 1, 10)
		if err != nil {
			t.Fatalf("Failed to list history: %v", err)
		}
		if total != 2 {
			t.Errorf("Expected undo to be recorded, got %d batches", total)
		}
	})

	t.Run("returns error for unknown batch", func(t *testing.T) {
		m := loadLinkedFixture(t)

		if _, err := m.ApplyBatch(context.Background(), "file-1", "no-such-batch", false); err == nil {
			t.Error("Expected error for unknown batch")
		}
	})

	t.Run("returns error for unloaded file", func(t *testing.T) {
		m := NewManager(NewStateStoreWithDir(t.TempDir()))

		if _, err := m.ApplyBatch(context.Background(), "missing", "batch-1", false); err == nil {
			t.Error("Expected error for unloaded file")
		}
	})
}

func TestManager_GetChanges(t *testing.T) {
	t.Run("returns false for unknown session", func(t *testing.T) {
		m := NewManager(NewStateStoreWithDir(t.TempDir()))

		if _, _, ok := m.GetChanges("missing"); ok {
			t.Error("Expected no changes for unknown session")
		}
	})
}

func TestManager_TouchSession(t *testing.T) {
	t.Run("touches a known session", func(t *testing.T) {
		m := loadLinkedFixture(t)

		session, err := m.StartSync("file-1", SyncRequest{Kind: models.SyncKindFile})
		if err != nil {
			t.Fatalf("Failed to start sync: %v", err)
		}
		if !m.TouchSession(session.ID) {
			t.Error("Expected touch to succeed")
		}
		if m.TouchSession("missing") {
			t.Error("Expected touch to fail for unknown session")
		}
	})
}

func TestManager_CleanupOldSessions(t *testing.T) {
	t.Run("removes aged sessions but keeps recently accessed ones", func(t *testing.T) {
		m := NewManager(NewStateStoreWithDir(t.TempDir()))

		aged := models.NewSyncSession("aged", "file-1", models.SyncKindFile)
		aged.Status = models.SyncStatusComplete
		fresh := models.NewSyncSession("fresh", "file-1", models.SyncKindFile)
		fresh.Status = models.SyncStatusComplete
		running := models.NewSyncSession("running", "file-1", models.SyncKindFile)
		running.Status = models.SyncStatusRunning

		m.mu.Lock()
		m.sessions["aged"] = &SessionState{Session: aged, LastAccessed: time.Now().Add(-time.Hour)}
		m.sessions["fresh"] = &SessionState{Session: fresh, LastAccessed: time.Now()}
		m.sessions["running"] = &SessionState{Session: running, LastAccessed: time.Now().Add(-time.Hour)}
		m.mu.Unlock()

		m.CleanupOldSessions(30 * time.Minute)

		if _, ok := m.GetSession("aged"); ok {
			t.Error("Expected aged session to be removed")
		}
		if _, ok := m.GetSession("fresh"); !ok {
			t.Error("Expected recently accessed session to survive")
		}
		if _, ok := m.GetSession("running"); !ok {
			t.Error("Expected running session to survive")
		}
	})
}
