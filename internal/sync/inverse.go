package sync

import "github.com/shape-studio/backend/internal/models"

// SyncShapeInverse pushes the local edits of an instance subtree back into
// its master component. Attribute writes register as overrides on the
// component side (or propagate touched flags when the destination is itself
// nested in another component), and the source shapes' touched sets are
// cleared.
func SyncShapeInverse(pageID, shapeID string, file *models.FileData, libraries map[string]*models.FileData) ([]models.Change, []models.Change) {
	page := file.PagesIndex[pageID]
	if page == nil {
		return nil, nil
	}
	shape := page.Shape(shapeID)
	if shape == nil {
		return nil, nil
	}
	component := getComponent(shape.ComponentID, shape.ComponentFile, file, libraries)
	if component == nil {
		debugf("component %q not found for inverse sync of %q", shape.ComponentID, shape.ID)
		return nil, nil
	}

	w := &inverseWalker{page: page, component: component, pageID: pageID}
	pair := w.syncNormal(shape, shape, component.Root())
	return pair.Redo, pair.Undo
}

type inverseWalker struct {
	page      *models.Container
	component *models.Container
	pageID    string
}

// syncNormal pushes one shape to its master and recurses. Children that are
// themselves instance roots switch to the nested path: their subtree
// belongs to another component, so edits only mark overrides on this
// component's copy.
func (w *inverseWalker) syncNormal(shape, rootShape, rootComponent *models.Shape) Pair {
	pair := w.shapeToComponent(shape, rootShape, rootComponent)

	for _, child := range w.page.Children(shape.ID) {
		if child.IsInstanceRoot() {
			pair = concatPairs(pair, w.syncNested(child, rootShape, rootComponent))
		} else {
			pair = concatPairs(pair, w.syncNormal(child, rootShape, rootComponent))
		}
	}
	return pair
}

// shapeToComponent updates the master counterpart of one instance shape,
// then clears the touched flags on the source.
func (w *inverseWalker) shapeToComponent(shape, rootShape, rootComponent *models.Shape) Pair {
	master := w.component.Shape(shape.ShapeRef)
	if master == nil {
		return w.addShapeToComponent(shape)
	}

	debugf("inverse sync %q (%s) into master %q", shape.Name, shape.ID, master.ID)

	attrPair := updateAttrs(master, shape, rootComponent, rootShape, "", w.component.ID,
		UpdateOptions{SetTouched: true})
	resetPair := w.resetTouched(shape)
	return concatPairs(attrPair, resetPair)
}

// resetTouched clears the source shape's touched set on the page.
func (w *inverseWalker) resetTouched(shape *models.Shape) Pair {
	if len(shape.Touched) == 0 {
		return Pair{}
	}
	return Pair{
		Redo: []models.Change{modObj(shape.ID, w.pageID, "", []models.Operation{touchedOp(nil)})},
		Undo: []models.Change{modObj(shape.ID, w.pageID, "", []models.Operation{touchedOp(shape.TouchedList())})},
	}
}

// addShapeToComponent clones an instance subtree that the master is missing
// into the component, and rebinds the original instance shapes to the new
// master ids.
func (w *inverseWalker) addShapeToComponent(shape *models.Shape) Pair {
	debugf("add shape %q (%s) to component %q", shape.Name, shape.ID, w.component.ID)

	parent := w.page.Shape(shape.ParentID)
	masterParentID := ""
	if parent != nil {
		masterParentID = parent.ShapeRef
	}

	type rebind struct {
		instanceID  string
		oldShapeRef string
		newShapeRef string
	}
	var rebinds []rebind

	_, newShapes, _ := CloneObject(shape, masterParentID, w.page.Objects,
		func(clone, original *models.Shape) *models.Shape {
			rebinds = append(rebinds, rebind{
				instanceID:  original.ID,
				oldShapeRef: original.ShapeRef,
				newShapeRef: clone.ID,
			})
			// Masters carry no instance linkage of their own.
			clone.ShapeRef = ""
			clone.ComponentID = ""
			clone.ComponentFile = ""
			clone.ComponentRoot = false
			clone.Touched = nil
			return clone
		}, nil)

	index := w.page.PositionOnParent(shape.ID)

	var redo, undo []models.Change
	for i, s := range newShapes {
		var idx *int
		if i == 0 {
			idx = intPtr(index)
		}
		redo = append(redo, addObj(s, "", w.component.ID, idx))
	}
	for _, s := range newShapes {
		undo = append(undo, delObj(s.ID, "", w.component.ID))
	}

	// Point the original instance shapes at their new masters.
	for _, rb := range rebinds {
		redo = append(redo, modObj(rb.instanceID, w.pageID, "", []models.Operation{
			{Op: models.OpSet, Attr: "shape-ref", Val: rb.newShapeRef, IgnoreTouched: true},
		}))
		var oldVal interface{}
		if rb.oldShapeRef != "" {
			oldVal = rb.oldShapeRef
		}
		undo = append(undo, modObj(rb.instanceID, w.pageID, "", []models.Operation{
			{Op: models.OpSet, Attr: "shape-ref", Val: oldVal, IgnoreTouched: true},
		}))
	}
	return Pair{Redo: redo, Undo: undo}
}

// syncNested handles descendants reached through a nested component
// instance: the counterpart inside the enclosing component is found by
// shape-ref equality, roots rebind at instance roots, and touched flags are
// copied to the destination instead of registering fresh overrides.
func (w *inverseWalker) syncNested(shape, rootShape, rootComponent *models.Shape) Pair {
	master := w.findNestedCounterpart(shape)
	if master == nil {
		debugf("no nested counterpart for %q (%s)", shape.Name, shape.ID)
		return Pair{}
	}

	if shape.IsInstanceRoot() {
		rootShape = shape
		rootComponent = master
	}

	pair := updateAttrs(master, shape, rootComponent, rootShape, "", w.component.ID,
		UpdateOptions{CopyTouched: true})

	for _, child := range w.page.Children(shape.ID) {
		pair = concatPairs(pair, w.syncNested(child, rootShape, rootComponent))
	}
	return pair
}

// findNestedCounterpart locates the enclosing component's copy of a nested
// instance shape: both mirror the same shape of the inner component, so
// they share a shape-ref.
func (w *inverseWalker) findNestedCounterpart(shape *models.Shape) *models.Shape {
	if shape.ShapeRef == "" {
		return nil
	}
	var found *models.Shape
	walkPreorder(w.component, func(s *models.Shape) {
		if found == nil && s.ShapeRef == shape.ShapeRef {
			found = s
		}
	})
	return found
}
