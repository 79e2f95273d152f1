package workspace

import (
	"sort"

	"github.com/shape-studio/backend/internal/models"

	stsync "github.com/shape-studio/backend/internal/sync"
)

// MergeConfig configures the merge behavior.
type MergeConfig struct {
	// PreferLater makes assets from later fragments win on id collisions.
	// With false, the first occurrence of an id is kept.
	PreferLater bool
}

// DefaultMergeConfig returns the default merge configuration.
func DefaultMergeConfig() MergeConfig {
	return MergeConfig{PreferLater: true}
}

// MergeFileData merges multiple fragments of one exported file into a single
// FileData. Large exports arrive split across uploads; each fragment carries
// a subset of the pages and asset maps. Pages keep the order of the first
// fragment listing them, and asset id collisions resolve per the config.
func MergeFileData(fragments []*models.FileData, config MergeConfig) *models.FileData {
	if len(fragments) == 0 {
		return models.NewFileData("")
	}
	if len(fragments) == 1 {
		ensureIndexes(fragments[0])
		return fragments[0]
	}

	result := models.NewFileData(fragments[0].ID)
	seenPages := make(map[string]struct{})

	for _, frag := range fragments {
		if result.ID == "" {
			result.ID = frag.ID
		}
		for _, pageID := range frag.Pages {
			if _, ok := seenPages[pageID]; ok {
				continue
			}
			seenPages[pageID] = struct{}{}
			result.Pages = append(result.Pages, pageID)
		}
		for id, page := range frag.PagesIndex {
			if _, ok := result.PagesIndex[id]; !ok || config.PreferLater {
				result.PagesIndex[id] = page
			}
		}
		for id, comp := range frag.Components {
			if _, ok := result.Components[id]; !ok || config.PreferLater {
				result.Components[id] = comp
			}
		}
		for id, color := range frag.Colors {
			if _, ok := result.Colors[id]; !ok || config.PreferLater {
				result.Colors[id] = color
			}
		}
		for id, typ := range frag.Typographies {
			if _, ok := result.Typographies[id]; !ok || config.PreferLater {
				result.Typographies[id] = typ
			}
		}
		for id, media := range frag.Media {
			if _, ok := result.Media[id]; !ok || config.PreferLater {
				result.Media[id] = media
			}
		}
	}

	// Pages present in the index but never listed keep a stable tail order.
	for _, id := range sortedKeys(result.PagesIndex) {
		if _, ok := seenPages[id]; !ok {
			result.Pages = append(result.Pages, id)
		}
	}
	return result
}

// BuildState assembles the engine's snapshot from a workspace file and its
// linked libraries, keyed by library file id.
func BuildState(workspace *models.FileData, libraries []*models.FileData) *models.State {
	ensureIndexes(workspace)
	st := &models.State{WorkspaceData: workspace}
	if len(libraries) > 0 {
		st.WorkspaceLibraries = make(map[string]*models.FileData, len(libraries))
		for _, lib := range libraries {
			if lib == nil || lib.ID == "" {
				continue
			}
			ensureIndexes(lib)
			st.WorkspaceLibraries[lib.ID] = lib
		}
	}
	return st
}

// MissingLibraryRefs reports which library ids the workspace references
// through its instances but the state does not carry. Detached references
// are silently skipped by the engine, so hosts surface them here instead.
func MissingLibraryRefs(st *models.State) []string {
	missing := make(map[string]struct{})
	check := func(container *models.Container) {
		for _, s := range container.Objects {
			if s.ComponentFile == "" {
				continue
			}
			if st.Library(s.ComponentFile) == nil {
				missing[s.ComponentFile] = struct{}{}
			}
		}
	}
	for _, page := range st.WorkspaceData.PagesIndex {
		check(page)
	}
	for _, comp := range st.WorkspaceData.Components {
		check(comp)
	}
	return sortedSet(missing)
}

// SyncAll runs a full forward sync of every library against the workspace,
// pages first, then the local components, per library in id order. The
// returned pair covers every asset family.
func SyncAll(st *models.State) ([]models.Change, []models.Change) {
	var redo, undo []models.Change
	assetTypes := []stsync.AssetType{stsync.AssetComponents, stsync.AssetColors, stsync.AssetTypographies}

	for _, libID := range sortedKeysFileData(st.WorkspaceLibraries) {
		for _, assetType := range assetTypes {
			r, u := stsync.GenerateSyncFile(assetType, libID, st)
			redo = append(redo, r...)
			undo = append(undo, u...)
			r, u = stsync.GenerateSyncLibrary(assetType, libID, st)
			redo = append(redo, r...)
			undo = append(undo, u...)
		}
	}
	return redo, undo
}

func sortedKeys(m map[string]*models.Container) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func sortedKeysFileData(m map[string]*models.FileData) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func sortedSet(m map[string]struct{}) []string {
	if len(m) == 0 {
		return nil
	}
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
