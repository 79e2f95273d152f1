package models

import "encoding/json"

// ChangeType discriminates the change record union.
type ChangeType string

const (
	ChangeAddObj     ChangeType = "add-obj"
	ChangeDelObj     ChangeType = "del-obj"
	ChangeModObj     ChangeType = "mod-obj"
	ChangeMovObjects ChangeType = "mov-objects"
	ChangeRegObjects ChangeType = "reg-objects"
)

// OpType discriminates operations inside a mod-obj change.
type OpType string

const (
	OpSet        OpType = "set"
	OpSetTouched OpType = "set-touched"
)

// Operation is one attribute mutation inside a mod-obj change.
//
// For OpSet, Attr/Val carry the attribute and its new value; IgnoreTouched
// tells the applier not to register the write as a user override. For
// OpSetTouched, Touched carries the full replacement group set (nil clears).
type Operation struct {
	Op            OpType      `json:"op"`
	Attr          string      `json:"attr,omitempty"`
	Val           interface{} `json:"val,omitempty"`
	IgnoreTouched bool        `json:"ignoreTouched,omitempty"`
	Touched       []string    `json:"touched,omitempty"`
}

// UnmarshalJSON decodes an operation and revives structured attribute
// values. Val is an interface{}, so a plain decode of a persisted
// operation yields map[string]interface{} where the live value was a
// *ContentNode or *Gradient; ReviveAttrValue restores the typed form.
func (o *Operation) UnmarshalJSON(data []byte) error {
	type operation Operation
	var raw operation
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*o = Operation(raw)
	o.Val = ReviveAttrValue(o.Attr, o.Val)
	return nil
}

// ReviveAttrValue converts a generically decoded attribute value back to
// the typed form the engine produces for that attribute. Values that are
// already typed, or attributes with scalar values, pass through unchanged.
func ReviveAttrValue(attr string, val interface{}) interface{} {
	m, ok := val.(map[string]interface{})
	if !ok {
		return val
	}
	switch attr {
	case "content":
		node := &ContentNode{}
		if remarshal(m, node) == nil {
			return node
		}
	case "fill-color-gradient", "stroke-color-gradient":
		grad := &Gradient{}
		if remarshal(m, grad) == nil {
			return grad
		}
	}
	return val
}

func remarshal(src, dst interface{}) error {
	data, err := json.Marshal(src)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dst)
}

// Change is one record of a redo or undo list. Type selects the variant;
// the other fields are populated per variant:
//
//	add-obj:     ID, ParentID, FrameID?, Index?, Obj, container
//	del-obj:     ID, container
//	mod-obj:     ID, Operations, container
//	mov-objects: ParentID, Shapes, Index, container
//	reg-objects: PageID, Shapes
//
// "container" is exactly one of PageID/ComponentID, naming where the change
// applies.
type Change struct {
	Type        ChangeType  `json:"type"`
	ID          string      `json:"id,omitempty"`
	PageID      string      `json:"pageId,omitempty"`
	ComponentID string      `json:"componentId,omitempty"`
	ParentID    string      `json:"parentId,omitempty"`
	FrameID     string      `json:"frameId,omitempty"`
	Index       *int        `json:"index,omitempty"`
	Obj         *Shape      `json:"obj,omitempty"`
	Operations  []Operation `json:"operations,omitempty"`
	Shapes      []string    `json:"shapes,omitempty"`
}
