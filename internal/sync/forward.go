package sync

import "github.com/shape-studio/backend/internal/models"

// GenerateSyncFile produces the change pair that propagates the given
// library's assets of one type into every page of the workspace file.
func GenerateSyncFile(assetType AssetType, libraryID string, st *models.State) ([]models.Change, []models.Change) {
	library := st.Library(libraryID)
	if library == nil || libraryAssetsEmpty(assetType, library) {
		return nil, nil
	}
	file := st.WorkspaceData

	var pair Pair
	for _, pageID := range file.Pages {
		page := file.PagesIndex[pageID]
		if page == nil {
			continue
		}
		pair = concatPairs(pair, syncContainer(assetType, libraryID, st, page, pageID, ""))
	}
	return pair.Redo, pair.Undo
}

// GenerateSyncLibrary is the component-library counterpart of
// GenerateSyncFile: it propagates the library's assets into every component
// of the local file.
func GenerateSyncLibrary(assetType AssetType, libraryID string, st *models.State) ([]models.Change, []models.Change) {
	library := st.Library(libraryID)
	if library == nil || libraryAssetsEmpty(assetType, library) {
		return nil, nil
	}
	file := st.WorkspaceData

	var pair Pair
	for _, componentID := range file.ComponentIDs() {
		component := file.Components[componentID]
		pair = concatPairs(pair, syncContainer(assetType, libraryID, st, component, "", componentID))
	}
	return pair.Redo, pair.Undo
}

func libraryAssetsEmpty(assetType AssetType, library *models.FileData) bool {
	switch assetType {
	case AssetComponents:
		return len(library.Components) == 0
	case AssetColors:
		return len(library.Colors) == 0
	case AssetTypographies:
		return len(library.Typographies) == 0
	}
	return true
}

// syncContainer walks one container in preorder and emits the asset-type
// specific pair for every shape referencing the library.
func syncContainer(assetType AssetType, libraryID string, st *models.State, container *models.Container, pageID, componentID string) Pair {
	debugf("sync container %q (%s)", container.Name, container.ID)

	matches := HasAssetReference(assetType, libraryID)
	library := st.Library(libraryID)

	var pair Pair
	walkPreorder(container, func(shape *models.Shape) {
		if !matches(shape) {
			return
		}
		switch assetType {
		case AssetComponents:
			pair = concatPairs(pair, SyncShapeAndChildren(pageID, componentID, shape.ID, st.WorkspaceData, st.WorkspaceLibraries, false))
		case AssetColors:
			pair = concatPairs(pair, generateSyncColors(shape, library, libraryID, pageID, componentID))
		case AssetTypographies:
			pair = concatPairs(pair, generateSyncTypographies(shape, library, libraryID, pageID, componentID))
		}
	})
	return pair
}

func walkPreorder(container *models.Container, visit func(*models.Shape)) {
	var rec func(s *models.Shape)
	rec = func(s *models.Shape) {
		visit(s)
		for _, child := range container.Children(s.ID) {
			rec(child)
		}
	}
	if root := container.Root(); root != nil {
		rec(root)
	}
}

// colorSyncAttrs maps each shape-level color reference to the library color
// fields it mirrors.
var colorSyncAttrs = []struct {
	refAttr    string
	colorField string
	targetAttr string
}{
	{"fill-color-ref-id", "color", "fill-color"},
	{"fill-color-ref-id", "gradient", "fill-color-gradient"},
	{"fill-color-ref-id", "opacity", "fill-opacity"},
	{"stroke-color-ref-id", "color", "stroke-color"},
	{"stroke-color-ref-id", "gradient", "stroke-color-gradient"},
	{"stroke-color-ref-id", "opacity", "stroke-opacity"},
}

// generateSyncColors refreshes a shape's color attributes from the library.
// Color propagation never interacts with touched bookkeeping, so every set
// carries ignore-touched.
func generateSyncColors(shape *models.Shape, library *models.FileData, libraryID, pageID, componentID string) Pair {
	if shape.Type == models.ShapeTypeText {
		newContent := syncTextColors(shape.Content, library, libraryID)
		return contentPair(shape, newContent, pageID, componentID)
	}

	var redoOps, undoOps []models.Operation
	for _, entry := range colorSyncAttrs {
		if !shapeRefMatches(shape, entry.refAttr, libraryID) {
			continue
		}
		refID, _ := shape.AttrValue(entry.refAttr)
		id, _ := refID.(string)
		color := library.Colors[id]
		if color == nil {
			continue
		}
		newVal := color.Value(entry.colorField)
		curVal, _ := shape.AttrValue(entry.targetAttr)
		if models.EqualAttrValues(newVal, curVal) {
			continue
		}
		redoOps = append(redoOps, setOp(entry.targetAttr, newVal, true))
		undoOps = append(undoOps, setOp(entry.targetAttr, curVal, true))
	}
	if len(redoOps) == 0 {
		return Pair{}
	}
	return Pair{
		Redo: []models.Change{modObj(shape.ID, pageID, componentID, redoOps)},
		Undo: []models.Change{modObj(shape.ID, pageID, componentID, undoOps)},
	}
}

// syncTextColors rewrites the fill color triple of every content node whose
// color reference resolves in the library.
func syncTextColors(content *models.ContentNode, library *models.FileData, libraryID string) *models.ContentNode {
	return models.MapNode(func(n *models.ContentNode) *models.ContentNode {
		if !nodeRefMatches(n, "fill-color-ref-id", "fill-color-ref-file", libraryID) {
			return n
		}
		refID, _ := n.Attr("fill-color-ref-id")
		id, _ := refID.(string)
		color := library.Colors[id]
		if color == nil {
			return n
		}
		n.SetAttr("fill-color", color.Value("color"))
		n.SetAttr("fill-opacity", color.Value("opacity"))
		n.SetAttr("fill-color-gradient", color.Value("gradient"))
		return n
	}, content)
}

// generateSyncTypographies refreshes the typography attributes of every
// content node whose typography reference resolves in the library.
func generateSyncTypographies(shape *models.Shape, library *models.FileData, libraryID, pageID, componentID string) Pair {
	newContent := models.MapNode(func(n *models.ContentNode) *models.ContentNode {
		if !nodeRefMatches(n, "typography-ref-id", "typography-ref-file", libraryID) {
			return n
		}
		refID, _ := n.Attr("typography-ref-id")
		id, _ := refID.(string)
		typography := library.Typographies[id]
		if typography == nil {
			return n
		}
		for attr, val := range typography.SyncAttrs() {
			n.SetAttr(attr, val)
		}
		return n
	}, shape.Content)
	return contentPair(shape, newContent, pageID, componentID)
}

// contentPair wraps a rewritten content tree in a mod-obj pair, collapsing
// to the empty pair when the traversal produced identical content.
func contentPair(shape *models.Shape, newContent *models.ContentNode, pageID, componentID string) Pair {
	if models.EqualContent(shape.Content, newContent) {
		return Pair{}
	}
	return Pair{
		Redo: []models.Change{modObj(shape.ID, pageID, componentID, []models.Operation{setOp("content", newContent, true)})},
		Undo: []models.Change{modObj(shape.ID, pageID, componentID, []models.Operation{setOp("content", shape.Content, true)})},
	}
}
