package sync

import (
	"testing"

	"github.com/shape-studio/backend/internal/models"
)

func TestCloneObjectClonesSubtree(t *testing.T) {
	file := buildInstanceFixture()
	comp := file.Components["C1"]

	root, newShapes, _ := CloneObject(comp.Shape("m-root"), "new-parent", comp.Objects,
		func(clone, original *models.Shape) *models.Shape {
			clone.ShapeRef = original.ID
			return clone
		}, nil)

	if len(newShapes) != 2 {
		t.Fatalf("Expected 2 cloned shapes, got %d", len(newShapes))
	}
	if newShapes[0] != root {
		t.Error("Expected the root first in parent-before-child order")
	}
	if root.ParentID != "new-parent" {
		t.Errorf("Expected the root reparented, got %q", root.ParentID)
	}
	if root.ID == "m-root" || newShapes[1].ID == "m-rect" {
		t.Error("Expected fresh ids on every clone")
	}
	if root.ShapeRef != "m-root" || newShapes[1].ShapeRef != "m-rect" {
		t.Errorf("Expected the hook applied to every clone, got refs %q/%q",
			root.ShapeRef, newShapes[1].ShapeRef)
	}
	if len(root.Shapes) != 1 || root.Shapes[0] != newShapes[1].ID {
		t.Errorf("Expected the child list rebuilt with new ids, got %v", root.Shapes)
	}
	if newShapes[1].ParentID != root.ID {
		t.Errorf("Expected the child under the new root, got %q", newShapes[1].ParentID)
	}
}

func TestRepositionShape(t *testing.T) {
	origin := &models.Shape{X: 15, Y: 25}
	originRoot := &models.Shape{X: 10, Y: 20}
	destRoot := &models.Shape{X: 100, Y: 200}

	x, y := repositionShape(origin, originRoot, destRoot)
	if x != 105 || y != 205 {
		t.Errorf("Expected (105, 205), got (%v, %v)", x, y)
	}
}
