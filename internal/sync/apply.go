package sync

import (
	"fmt"

	"github.com/shape-studio/backend/internal/models"
)

// ApplyChanges applies a change list to a file in order. The engine only
// produces change pairs; application happens here, on the host's snapshot.
// Changes addressing containers or shapes that no longer exist are
// reported, not silently dropped; the one exception is an add-obj addressed
// to a missing component, which creates that component.
func ApplyChanges(file *models.FileData, changes []models.Change) error {
	for i, ch := range changes {
		if err := applyChange(file, ch); err != nil {
			return fmt.Errorf("change %d (%s): %w", i, ch.Type, err)
		}
	}
	return nil
}

func applyChange(file *models.FileData, ch models.Change) error {
	if ch.Type == models.ChangeRegObjects {
		// Parent re-registration exists for hosts with cached parent
		// indexes; this model resolves children from the shape lists.
		return nil
	}

	container := file.Container(ch.PageID, ch.ComponentID)
	if container == nil {
		if ch.Type == models.ChangeAddObj && ch.ComponentID != "" {
			container = models.NewContainer(ch.ComponentID, "")
			file.Components[ch.ComponentID] = container
		} else {
			return fmt.Errorf("container %q%q not found", ch.PageID, ch.ComponentID)
		}
	}

	switch ch.Type {
	case models.ChangeAddObj:
		return applyAddObj(container, ch)
	case models.ChangeDelObj:
		return applyDelObj(container, ch)
	case models.ChangeModObj:
		return applyModObj(container, ch)
	case models.ChangeMovObjects:
		return applyMovObjects(container, ch)
	}
	return fmt.Errorf("unknown change type %q", ch.Type)
}

func applyAddObj(container *models.Container, ch models.Change) error {
	if ch.Obj == nil {
		return fmt.Errorf("add-obj %q carries no shape", ch.ID)
	}
	shape := ch.Obj.Clone()
	shape.ParentID = ch.ParentID
	if ch.FrameID != "" {
		shape.FrameID = ch.FrameID
	}
	container.Objects[shape.ID] = shape

	parent := container.Shape(ch.ParentID)
	if parent == nil {
		// Root insert, or the parent arrives later in the same list.
		return nil
	}
	parent.Shapes = insertID(removeID(parent.Shapes, shape.ID), shape.ID, ch.Index)
	return nil
}

func applyDelObj(container *models.Container, ch models.Change) error {
	shape := container.Shape(ch.ID)
	if shape == nil {
		return fmt.Errorf("del-obj %q not found", ch.ID)
	}
	for _, id := range container.Descendants(ch.ID) {
		delete(container.Objects, id)
	}
	delete(container.Objects, ch.ID)
	if parent := container.Shape(shape.ParentID); parent != nil {
		parent.Shapes = removeID(parent.Shapes, ch.ID)
	}
	return nil
}

func applyModObj(container *models.Container, ch models.Change) error {
	shape := container.Shape(ch.ID)
	if shape == nil {
		return fmt.Errorf("mod-obj %q not found", ch.ID)
	}
	for _, op := range ch.Operations {
		switch op.Op {
		case models.OpSet:
			shape.SetAttrValue(op.Attr, op.Val)
			if !op.IgnoreTouched {
				if group := AttrGroup(op.Attr); group != "" {
					markTouched(shape, group)
				}
			}
		case models.OpSetTouched:
			shape.SetTouched(op.Touched)
		default:
			return fmt.Errorf("unknown operation %q on %q", op.Op, ch.ID)
		}
	}
	return nil
}

func markTouched(shape *models.Shape, group string) {
	if shape.Touched == nil {
		shape.Touched = make(map[string]struct{})
	}
	shape.Touched[group] = struct{}{}
}

func applyMovObjects(container *models.Container, ch models.Change) error {
	parent := container.Shape(ch.ParentID)
	if parent == nil {
		return fmt.Errorf("mov-objects parent %q not found", ch.ParentID)
	}
	for _, id := range ch.Shapes {
		parent.Shapes = removeID(parent.Shapes, id)
	}
	for i, id := range ch.Shapes {
		var idx *int
		if ch.Index != nil {
			idx = intPtr(*ch.Index + i)
		}
		parent.Shapes = insertID(parent.Shapes, id, idx)
		if moved := container.Shape(id); moved != nil {
			moved.ParentID = parent.ID
		}
	}
	return nil
}

func removeID(list []string, id string) []string {
	out := list[:0:0]
	for _, cur := range list {
		if cur != id {
			out = append(out, cur)
		}
	}
	return out
}

// insertID places id at the given index, clamping out-of-range indexes and
// appending when no index is given.
func insertID(list []string, id string, index *int) []string {
	if index == nil || *index < 0 || *index >= len(list) {
		return append(list, id)
	}
	i := *index
	out := make([]string, 0, len(list)+1)
	out = append(out, list[:i]...)
	out = append(out, id)
	out = append(out, list[i:]...)
	return out
}
