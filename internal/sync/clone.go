package sync

import (
	"github.com/google/uuid"

	"github.com/shape-studio/backend/internal/models"
)

// CloneHook customizes a shape during cloning. It receives the shape being
// produced (safe to mutate) and its counterpart on the other side, and
// returns the shape to keep.
type CloneHook func(shape, counterpart *models.Shape) *models.Shape

// CloneObject deep-clones the subtree rooted at root from the given object
// map, reparenting the new root under newParentID. Every cloned shape gets
// a freshly generated id.
//
// transformNew is invoked for each cloned shape (with the original as
// counterpart); transformOriginal is invoked for a copy of each original
// (with the clone as counterpart), and the returned copies are reported as
// updated originals. Either hook may be nil.
//
// Returns the new root, every new shape in parent-before-child order, and
// the updated originals in the same order.
func CloneObject(root *models.Shape, newParentID string, objects map[string]*models.Shape, transformNew, transformOriginal CloneHook) (*models.Shape, []*models.Shape, []*models.Shape) {
	var newShapes []*models.Shape
	var updatedOriginals []*models.Shape

	var cloneRec func(original *models.Shape, parentID string) *models.Shape
	cloneRec = func(original *models.Shape, parentID string) *models.Shape {
		clone := original.Clone()
		clone.ID = uuid.New().String()
		clone.ParentID = parentID
		clone.Shapes = nil

		if transformNew != nil {
			clone = transformNew(clone, original)
		}
		newShapes = append(newShapes, clone)

		if transformOriginal != nil {
			updated := transformOriginal(original.Clone(), clone)
			updatedOriginals = append(updatedOriginals, updated)
		}

		for _, childID := range original.Shapes {
			child := objects[childID]
			if child == nil {
				continue
			}
			newChild := cloneRec(child, clone.ID)
			clone.Shapes = append(clone.Shapes, newChild.ID)
		}
		return clone
	}

	newRoot := cloneRec(root, newParentID)
	return newRoot, newShapes, updatedOriginals
}
