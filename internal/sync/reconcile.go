package sync

import "github.com/shape-studio/backend/internal/models"

// getComponent resolves a component by id and owning file. An empty file id
// means the local file's own library.
func getComponent(componentID, componentFile string, file *models.FileData, libraries map[string]*models.FileData) *models.Container {
	lib := file
	if componentFile != "" {
		lib = libraries[componentFile]
	}
	if lib == nil {
		return nil
	}
	return lib.Components[componentID]
}

// SyncShapeAndChildren reconciles one instance subtree against its master
// component, producing the redo/undo pair that brings the instance up to
// date. With reset true, local overrides are discarded and the touched sets
// cleared; otherwise overridden attribute groups are preserved.
func SyncShapeAndChildren(pageID, componentID, shapeID string, file *models.FileData, libraries map[string]*models.FileData, reset bool) Pair {
	container := file.Container(pageID, componentID)
	if container == nil {
		return Pair{}
	}
	inst := container.Shape(shapeID)
	if inst == nil {
		return Pair{}
	}
	component := getComponent(inst.ComponentID, inst.ComponentFile, file, libraries)
	if component == nil {
		debugf("component %q not found for shape %q", inst.ComponentID, inst.ID)
		return Pair{}
	}
	master := component.Shape(inst.ShapeRef)
	if master == nil {
		debugf("master %q not found in component %q", inst.ShapeRef, component.ID)
		return Pair{}
	}

	opts := UpdateOptions{OmitTouched: !reset, ResetTouched: reset}
	w := &walker{
		container:   container,
		component:   component,
		pageID:      pageID,
		componentID: componentID,
	}
	return w.syncNormal(inst, master, inst, component.Root(), opts)
}

// walker carries the fixed context of one reconciliation walk.
type walker struct {
	container   *models.Container
	component   *models.Container
	pageID      string
	componentID string
}

// syncNormal reconciles one matched instance/master node and recurses over
// their children.
func (w *walker) syncNormal(inst, master, rootInst, rootMaster *models.Shape, opts UpdateOptions) Pair {
	debugf("sync %q (%s) against master %q", inst.Name, inst.ID, master.ID)

	// An instance root starts a new coordinate and touched scope.
	if inst.IsInstanceRoot() {
		rootInst = inst
		rootMaster = master
	}

	pair := updateAttrs(inst, master, rootInst, rootMaster, w.pageID, w.componentID, opts)

	instChildren := w.container.Children(inst.ID)
	masterChildren := w.component.Children(master.ID)

	for _, action := range compareChildren(instChildren, masterChildren) {
		switch action.kind {
		case actionOnlyInst:
			pair = concatPairs(pair, w.removeShape(action.inst))
		case actionOnlyMaster:
			pair = concatPairs(pair, w.addShapeToInstance(action.master, master, inst))
		case actionMatched, actionMoved:
			childOpts := opts
			if action.inst.IsInstanceRoot() {
				// Nested instances propagate their touched flags instead
				// of suppressing them.
				childOpts = UpdateOptions{CopyTouched: true}
			}
			pair = concatPairs(pair, w.syncNormal(action.inst, action.master, rootInst, rootMaster, childOpts))
			if action.kind == actionMoved {
				pair = concatPairs(pair, w.moveShape(action.inst, action.indexBefore, action.indexAfter))
			}
		}
	}
	return pair
}

type actionKind int

const (
	actionOnlyInst actionKind = iota
	actionOnlyMaster
	actionMatched
	actionMoved
)

type childAction struct {
	kind        actionKind
	inst        *models.Shape
	master      *models.Shape
	indexBefore int
	indexAfter  int
}

// compareChildren walks the two ordered child lists from the head, pairing
// instance children with their masters by shape-ref identity. Unmatched
// instance children are removals, unmatched master children are additions,
// and matched children found at different ordinals become moves. The
// fallback searches are linear; fan-outs are expected to stay in the tens.
func compareChildren(instChildren, masterChildren []*models.Shape) []childAction {
	instPos := make(map[string]int, len(instChildren))
	for i, c := range instChildren {
		instPos[c.ID] = i
	}
	masterPos := make(map[string]int, len(masterChildren))
	for i, c := range masterChildren {
		masterPos[c.ID] = i
	}

	var actions []childAction
	inst := append([]*models.Shape(nil), instChildren...)
	masters := append([]*models.Shape(nil), masterChildren...)

	for len(inst) > 0 || len(masters) > 0 {
		switch {
		case len(inst) == 0:
			for _, cm := range masters {
				actions = append(actions, childAction{kind: actionOnlyMaster, master: cm})
			}
			return actions
		case len(masters) == 0:
			for _, ci := range inst {
				actions = append(actions, childAction{kind: actionOnlyInst, inst: ci})
			}
			return actions
		}

		ci, cm := inst[0], masters[0]
		if models.IsMasterOf(cm, ci) {
			actions = append(actions, childAction{kind: actionMatched, inst: ci, master: cm})
			inst = inst[1:]
			masters = masters[1:]
			continue
		}

		// Heads differ: look for the master's instance elsewhere, and for
		// this instance child's master elsewhere.
		matchInst := findInstanceOf(cm, inst)
		matchMaster := findMasterOf(ci, masters)
		switch {
		case matchInst == nil:
			actions = append(actions, childAction{kind: actionOnlyMaster, master: cm})
			masters = masters[1:]
		case matchMaster == nil:
			actions = append(actions, childAction{kind: actionOnlyInst, inst: ci})
			inst = inst[1:]
		default:
			// The instance re-ordered its children.
			actions = append(actions, childAction{
				kind:        actionMoved,
				inst:        matchInst,
				master:      cm,
				indexBefore: instPos[matchInst.ID],
				indexAfter:  masterPos[cm.ID],
			})
			inst = removeShapeFromList(inst, matchInst.ID)
			masters = masters[1:]
		}
	}
	return actions
}

func findInstanceOf(master *models.Shape, candidates []*models.Shape) *models.Shape {
	for _, c := range candidates {
		if models.IsMasterOf(master, c) {
			return c
		}
	}
	return nil
}

func findMasterOf(instance *models.Shape, candidates []*models.Shape) *models.Shape {
	for _, c := range candidates {
		if models.IsMasterOf(c, instance) {
			return c
		}
	}
	return nil
}

func removeShapeFromList(list []*models.Shape, id string) []*models.Shape {
	out := list[:0:0]
	for _, s := range list {
		if s.ID != id {
			out = append(out, s)
		}
	}
	return out
}

// removeShape deletes an instance subtree. The redo is a single del-obj;
// the undo re-inserts the shape and every descendant ancestors-first, then
// re-registers the surviving ancestors so parent caches refresh.
func (w *walker) removeShape(shape *models.Shape) Pair {
	debugf("remove shape %q (%s)", shape.Name, shape.ID)

	redo := []models.Change{delObj(shape.ID, w.pageID, w.componentID)}

	var undo []models.Change
	restore := append([]string{shape.ID}, w.container.Descendants(shape.ID)...)
	for _, id := range restore {
		s := w.container.Shape(id)
		if s == nil {
			continue
		}
		undo = append(undo, addObj(s.Clone(), w.pageID, w.componentID, intPtr(w.container.PositionOnParent(id))))
	}
	if parents := w.container.Parents(shape.ID); len(parents) > 0 {
		undo = append(undo, regObjects(w.pageID, parents))
	}
	return Pair{Redo: redo, Undo: undo}
}

// addShapeToInstance clones a master subtree that the instance is missing,
// under the instance-side parent. Cloned shapes mirror their masters via
// shape-ref and inherit the instance parent's frame.
func (w *walker) addShapeToInstance(masterChild, master, instParent *models.Shape) Pair {
	debugf("add shape %q (%s) to instance %q", masterChild.Name, masterChild.ID, instParent.ID)

	_, newShapes, _ := CloneObject(masterChild, instParent.ID, w.component.Objects,
		func(clone, original *models.Shape) *models.Shape {
			clone.ShapeRef = original.ID
			clone.FrameID = instParent.FrameID
			return clone
		}, nil)

	index := w.component.PositionOnParent(masterChild.ID)

	var redo, undo []models.Change
	for i, s := range newShapes {
		var idx *int
		if i == 0 {
			idx = intPtr(index)
		}
		redo = append(redo, addObj(s, w.pageID, w.componentID, idx))
	}
	// Deleting the new root removes the subtree; the rest are emitted for
	// symmetry with the redo list.
	for _, s := range newShapes {
		undo = append(undo, delObj(s.ID, w.pageID, w.componentID))
	}
	return Pair{Redo: redo, Undo: undo}
}

// moveShape re-seats a matched child at its master's ordinal.
func (w *walker) moveShape(shape *models.Shape, indexBefore, indexAfter int) Pair {
	debugf("move shape %q (%s) %d -> %d", shape.Name, shape.ID, indexBefore, indexAfter)
	return Pair{
		Redo: []models.Change{movObjects(shape.ParentID, []string{shape.ID}, indexAfter, w.pageID, w.componentID)},
		Undo: []models.Change{movObjects(shape.ParentID, []string{shape.ID}, indexBefore, w.pageID, w.componentID)},
	}
}
