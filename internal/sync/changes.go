package sync

import "github.com/shape-studio/backend/internal/models"

// Pair is a redo change list together with its inverse undo list. Nothing
// is applied by the engine; both lists are data for the host.
type Pair struct {
	Redo []models.Change
	Undo []models.Change
}

// Empty reports whether the pair carries no changes.
func (p Pair) Empty() bool {
	return len(p.Redo) == 0 && len(p.Undo) == 0
}

// concatPairs concatenates change pairs preserving order.
func concatPairs(pairs ...Pair) Pair {
	var out Pair
	for _, p := range pairs {
		out.Redo = append(out.Redo, p.Redo...)
		out.Undo = append(out.Undo, p.Undo...)
	}
	return out
}

func modObj(id, pageID, componentID string, ops []models.Operation) models.Change {
	return models.Change{
		Type:        models.ChangeModObj,
		ID:          id,
		PageID:      pageID,
		ComponentID: componentID,
		Operations:  ops,
	}
}

func addObj(shape *models.Shape, pageID, componentID string, index *int) models.Change {
	return models.Change{
		Type:        models.ChangeAddObj,
		ID:          shape.ID,
		PageID:      pageID,
		ComponentID: componentID,
		ParentID:    shape.ParentID,
		FrameID:     shape.FrameID,
		Index:       index,
		Obj:         shape,
	}
}

func delObj(id, pageID, componentID string) models.Change {
	return models.Change{
		Type:        models.ChangeDelObj,
		ID:          id,
		PageID:      pageID,
		ComponentID: componentID,
	}
}

func movObjects(parentID string, shapes []string, index int, pageID, componentID string) models.Change {
	idx := index
	return models.Change{
		Type:        models.ChangeMovObjects,
		PageID:      pageID,
		ComponentID: componentID,
		ParentID:    parentID,
		Shapes:      shapes,
		Index:       &idx,
	}
}

func regObjects(pageID string, shapes []string) models.Change {
	return models.Change{
		Type:   models.ChangeRegObjects,
		PageID: pageID,
		Shapes: shapes,
	}
}

func intPtr(i int) *int { return &i }
