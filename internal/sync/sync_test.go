package sync

import (
	"github.com/shape-studio/backend/internal/models"
)

// buildInstanceFixture returns a file with one component C1 (a button frame
// holding a rect) and page P1 holding an in-sync instance of it at
// (100, 100).
func buildInstanceFixture() *models.FileData {
	file := models.NewFileData("file-1")

	comp := models.NewContainer("C1", "button")
	mRoot := &models.Shape{ID: "m-root", Name: "button", Type: models.ShapeTypeFrame}
	mRect := &models.Shape{
		ID: "m-rect", Name: "bg", Type: models.ShapeTypeRect, X: 10, Y: 10,
		Attrs: map[string]interface{}{"fill-color": "#000000", "fill-opacity": float64(1)},
	}
	putShape(comp, mRoot)
	putChild(comp, mRoot, mRect)
	file.Components["C1"] = comp

	page := models.NewContainer("P1", "page 1")
	pRoot := &models.Shape{ID: "p-root", Name: "root", Type: models.ShapeTypeFrame}
	iRoot := &models.Shape{
		ID: "i-root", Name: "button", Type: models.ShapeTypeFrame, X: 100, Y: 100,
		ComponentID: "C1", ComponentRoot: true, ShapeRef: "m-root",
	}
	iRect := &models.Shape{
		ID: "i-rect", Name: "bg", Type: models.ShapeTypeRect, X: 110, Y: 110,
		ShapeRef: "m-rect",
		Attrs:    map[string]interface{}{"fill-color": "#000000", "fill-opacity": float64(1)},
	}
	putShape(page, pRoot)
	putChild(page, pRoot, iRoot)
	putChild(page, iRoot, iRect)
	file.PagesIndex["P1"] = page
	file.Pages = []string{"P1"}
	return file
}

func putShape(c *models.Container, s *models.Shape) { c.Objects[s.ID] = s }

func putChild(c *models.Container, parent, child *models.Shape) {
	child.ParentID = parent.ID
	parent.Shapes = append(parent.Shapes, child.ID)
	c.Objects[child.ID] = child
}

func findOp(ops []models.Operation, attr string) *models.Operation {
	for i := range ops {
		if ops[i].Op == models.OpSet && ops[i].Attr == attr {
			return &ops[i]
		}
	}
	return nil
}

func findTouchedOp(ops []models.Operation) *models.Operation {
	for i := range ops {
		if ops[i].Op == models.OpSetTouched {
			return &ops[i]
		}
	}
	return nil
}

func findChange(changes []models.Change, typ models.ChangeType, id string) *models.Change {
	for i := range changes {
		if changes[i].Type == typ && (id == "" || changes[i].ID == id) {
			return &changes[i]
		}
	}
	return nil
}
