package sync

import "github.com/shape-studio/backend/internal/models"

// UpdateOptions controls how updateAttrs interacts with touched bookkeeping.
type UpdateOptions struct {
	// OmitTouched skips attributes whose group the destination has
	// overridden.
	OmitTouched bool
	// ResetTouched clears the destination's touched set in the redo and
	// restores it in the undo.
	ResetTouched bool
	// SetTouched makes the emitted sets register as overrides when applied
	// (ignore-touched false); otherwise sets are applied silently.
	SetTouched bool
	// CopyTouched replaces the destination's touched set with the origin's.
	CopyTouched bool
}

// updateAttrs produces the mod-obj pair that copies the syncable attribute
// set from origin onto dest. Position is synced by relative repositioning
// against the respective roots; the remaining attributes follow the
// component sync table. Returns the empty pair when nothing changes.
func updateAttrs(dest, origin, destRoot, originRoot *models.Shape, pageID, componentID string, opts UpdateOptions) Pair {
	var redoOps, undoOps []models.Operation
	ignoreTouched := !opts.SetTouched

	// Position first: keep origin's offset from its root, relative to the
	// destination root.
	newX, newY := repositionShape(origin, originRoot, destRoot)
	positionOmitted := opts.OmitTouched && dest.TouchedGroup(GroupGeometry)
	if !positionOmitted {
		if newX != dest.X {
			redoOps = append(redoOps, setOp("x", newX, ignoreTouched))
			undoOps = append(undoOps, setOp("x", dest.X, ignoreTouched))
		}
		if newY != dest.Y {
			redoOps = append(redoOps, setOp("y", newY, ignoreTouched))
			undoOps = append(undoOps, setOp("y", dest.Y, ignoreTouched))
		}
	}

	for _, attr := range componentSyncAttrOrder {
		if attr == "x" || attr == "y" {
			continue
		}
		destVal, present := dest.AttrValue(attr)
		if !present {
			continue
		}
		if opts.OmitTouched && dest.TouchedGroup(AttrGroup(attr)) {
			continue
		}
		originVal, _ := origin.AttrValue(attr)
		if models.EqualAttrValues(originVal, destVal) {
			continue
		}
		redoOps = append(redoOps, setOp(attr, originVal, ignoreTouched))
		undoOps = append(undoOps, setOp(attr, destVal, ignoreTouched))
	}

	switch {
	case opts.SetTouched:
		// The redo's sets register as overrides when applied, and so would
		// the undo's. A trailing set-touched restores the exact set instead.
		if len(redoOps) > 0 {
			undoOps = append(undoOps, touchedOp(dest.TouchedList()))
		}
	case opts.ResetTouched:
		if len(dest.Touched) > 0 {
			redoOps = append(redoOps, touchedOp(nil))
			undoOps = append(undoOps, touchedOp(dest.TouchedList()))
		}
	case opts.CopyTouched:
		// The redo intentionally carries the origin's touched set as-is.
		if !equalStringLists(origin.TouchedList(), dest.TouchedList()) {
			redoOps = append(redoOps, touchedOp(origin.TouchedList()))
			undoOps = append(undoOps, touchedOp(dest.TouchedList()))
		}
	}

	if len(redoOps) == 0 {
		return Pair{}
	}
	return Pair{
		Redo: []models.Change{modObj(dest.ID, pageID, componentID, redoOps)},
		Undo: []models.Change{modObj(dest.ID, pageID, componentID, undoOps)},
	}
}

func setOp(attr string, val interface{}, ignoreTouched bool) models.Operation {
	return models.Operation{Op: models.OpSet, Attr: attr, Val: val, IgnoreTouched: ignoreTouched}
}

func touchedOp(groups []string) models.Operation {
	return models.Operation{Op: models.OpSetTouched, Touched: groups}
}

func equalStringLists(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
