package session

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/shape-studio/backend/internal/models"
	"github.com/shape-studio/backend/internal/workspace"
)

// shortID safely truncates an ID for logging (handles short IDs gracefully)
func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}

// LoadedFile is one decoded workspace file held in memory, together with
// its linked libraries and its persistent change history.
type LoadedFile struct {
	Data      *models.FileData
	Libraries map[string]*models.FileData
	Log       *workspace.ChangeLog
	Path      string

	// mu serializes change application against this file.
	mu sync.Mutex
}

// State builds the engine snapshot for this file.
func (lf *LoadedFile) State() *models.State {
	libs := make([]*models.FileData, 0, len(lf.Libraries))
	for _, lib := range lf.Libraries {
		libs = append(libs, lib)
	}
	return workspace.BuildState(lf.Data, libs)
}

// StateStore keeps decoded workspace files in memory, keyed by file ID.
// Change histories live in per-file DuckDB logs under dataDir, so history
// survives a reload of the same file.
type StateStore struct {
	dataDir  string
	mu       sync.RWMutex
	files    map[string]*LoadedFile
	registry *workspace.Registry
}

// NewStateStore creates a state store.
// Uses environment variable WORKSPACE_DATA_DIR for the change log location,
// defaults to ./data/workspaces
func NewStateStore() *StateStore {
	dataDir := os.Getenv("WORKSPACE_DATA_DIR")
	if dataDir == "" {
		dataDir = "./data/workspaces"
	}
	return NewStateStoreWithDir(dataDir)
}

// NewStateStoreWithDir creates a state store with a specific data directory.
func NewStateStoreWithDir(dataDir string) *StateStore {
	os.MkdirAll(dataDir, 0755)

	store := &StateStore{
		dataDir:  dataDir,
		files:    make(map[string]*LoadedFile),
		registry: workspace.GetGlobalRegistry(),
	}
	store.scanExisting()
	return store
}

// scanExisting reports change histories left over from earlier runs. They
// are reopened lazily when their file is loaded again.
func (ss *StateStore) scanExisting() {
	entries, err := os.ReadDir(ss.dataDir)
	if err != nil {
		fmt.Printf("[StateStore] Warning: failed to scan data directory: %v\n", err)
		return
	}

	count := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, "changes_") && filepath.Ext(name) == ".duckdb" {
			count++
		}
	}
	fmt.Printf("[StateStore] Found %d existing change histories\n", count)
}

// Load decodes a workspace file and registers it under its file ID. The
// format is auto-detected. Loading a file that is already loaded replaces
// the in-memory copy but keeps its change history.
func (ss *StateStore) Load(filePath string) (*LoadedFile, error) {
	format, err := ss.registry.FindFormat(filePath)
	if err != nil {
		return nil, err
	}

	data, err := format.Decode(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", filePath, err)
	}
	if data.ID == "" {
		return nil, fmt.Errorf("file %s carries no id", filePath)
	}

	fmt.Printf("[StateStore] Loaded file %s (%s format, %d pages, %d components)\n",
		shortID(data.ID), format.Name(), len(data.Pages), len(data.Components))

	ss.mu.Lock()
	defer ss.mu.Unlock()

	if prev, ok := ss.files[data.ID]; ok {
		lf := &LoadedFile{Data: data, Libraries: prev.Libraries, Log: prev.Log, Path: filePath}
		ss.files[data.ID] = lf
		return lf, nil
	}

	log, err := workspace.NewChangeLog(ss.dataDir, data.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to open change log: %w", err)
	}

	lf := &LoadedFile{
		Data:      data,
		Libraries: make(map[string]*models.FileData),
		Log:       log,
		Path:      filePath,
	}
	ss.files[data.ID] = lf
	return lf, nil
}

// AttachLibrary decodes a library file and links it to a loaded workspace
// file. The library is keyed by its own file ID.
func (ss *StateStore) AttachLibrary(fileID, libPath string) (*models.FileData, error) {
	format, err := ss.registry.FindFormat(libPath)
	if err != nil {
		return nil, err
	}
	lib, err := format.Decode(libPath)
	if err != nil {
		return nil, fmt.Errorf("failed to decode library %s: %w", libPath, err)
	}
	if lib.ID == "" {
		return nil, fmt.Errorf("library %s carries no id", libPath)
	}

	ss.mu.Lock()
	defer ss.mu.Unlock()

	lf, ok := ss.files[fileID]
	if !ok {
		return nil, fmt.Errorf("file not loaded: %s", fileID)
	}
	lf.Libraries[lib.ID] = lib

	fmt.Printf("[StateStore] Attached library %s to file %s\n", shortID(lib.ID), shortID(fileID))
	return lib, nil
}

// Get returns a loaded file by ID.
func (ss *StateStore) Get(fileID string) (*LoadedFile, bool) {
	ss.mu.RLock()
	defer ss.mu.RUnlock()
	lf, ok := ss.files[fileID]
	return lf, ok
}

// IsLoaded checks whether a file is currently loaded.
func (ss *StateStore) IsLoaded(fileID string) bool {
	ss.mu.RLock()
	defer ss.mu.RUnlock()
	_, ok := ss.files[fileID]
	return ok
}

// Save encodes a loaded file back to disk in the named format. An empty
// format name reuses the format the file was loaded with.
func (ss *StateStore) Save(fileID, outPath, formatName string) error {
	lf, ok := ss.Get(fileID)
	if !ok {
		return fmt.Errorf("file not loaded: %s", fileID)
	}

	var format workspace.Format
	var err error
	if formatName != "" {
		format, err = ss.registry.GetFormatByName(formatName)
	} else {
		format, err = ss.registry.FindFormat(lf.Path)
	}
	if err != nil {
		return err
	}

	lf.mu.Lock()
	defer lf.mu.Unlock()
	return format.Encode(outPath, lf.Data)
}

// Unload drops a file from memory and closes its change history, keeping
// the history on disk.
func (ss *StateStore) Unload(fileID string) error {
	ss.mu.Lock()
	lf, ok := ss.files[fileID]
	if ok {
		delete(ss.files, fileID)
	}
	ss.mu.Unlock()

	if !ok {
		return fmt.Errorf("file not loaded: %s", fileID)
	}
	fmt.Printf("[StateStore] Unloaded file %s\n", shortID(fileID))
	return lf.Log.Close()
}

// Delete drops a file from memory and removes its change history from disk.
func (ss *StateStore) Delete(fileID string) error {
	ss.mu.Lock()
	lf, ok := ss.files[fileID]
	if ok {
		delete(ss.files, fileID)
	}
	ss.mu.Unlock()

	if !ok {
		// Not loaded; remove any leftover history file.
		dbPath := filepath.Join(ss.dataDir, fmt.Sprintf("changes_%s.duckdb", fileID))
		if err := os.Remove(dbPath); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to delete change history: %w", err)
		}
		return nil
	}
	fmt.Printf("[StateStore] Deleted file %s and its change history\n", shortID(fileID))
	return lf.Log.Remove()
}

// List returns all loaded file IDs in deterministic order.
func (ss *StateStore) List() []string {
	ss.mu.RLock()
	defer ss.mu.RUnlock()

	fileIDs := make([]string, 0, len(ss.files))
	for id := range ss.files {
		fileIDs = append(fileIDs, id)
	}
	sort.Strings(fileIDs)
	return fileIDs
}

// Stats returns statistics about the state store.
func (ss *StateStore) Stats() map[string]interface{} {
	ss.mu.RLock()
	defer ss.mu.RUnlock()

	totalBatches := 0
	totalLibraries := 0
	for _, lf := range ss.files {
		totalBatches += lf.Log.Len()
		totalLibraries += len(lf.Libraries)
	}

	return map[string]interface{}{
		"loadedCount":  len(ss.files),
		"libraryCount": totalLibraries,
		"batchCount":   totalBatches,
		"dataDir":      ss.dataDir,
	}
}
