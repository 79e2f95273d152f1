package models

import "sort"

// Gradient describes a gradient fill.
type Gradient struct {
	Type     string         `json:"type"` // linear, radial
	StartX   float64        `json:"startX"`
	StartY   float64        `json:"startY"`
	EndX     float64        `json:"endX"`
	EndY     float64        `json:"endY"`
	Width    float64        `json:"width,omitempty"`
	Stops    []GradientStop `json:"stops,omitempty"`
}

// GradientStop is one stop of a gradient.
type GradientStop struct {
	Color   string  `json:"color"`
	Opacity float64 `json:"opacity"`
	Offset  float64 `json:"offset"`
}

// Color is a library color asset. Exactly one of Color/Gradient is usually
// set; Opacity applies to either.
type Color struct {
	ID       string    `json:"id"`
	Name     string    `json:"name,omitempty"`
	Color    string    `json:"color,omitempty"`
	Opacity  float64   `json:"opacity,omitempty"`
	Gradient *Gradient `json:"gradient,omitempty"`
}

// Value returns the color field selected by name ("color", "gradient" or
// "opacity") as an attribute value. A missing gradient yields nil.
func (c *Color) Value(field string) interface{} {
	switch field {
	case "color":
		if c.Color == "" {
			return nil
		}
		return c.Color
	case "opacity":
		return c.Opacity
	case "gradient":
		if c.Gradient == nil {
			return nil
		}
		return c.Gradient
	}
	return nil
}

// Typography is a library typography asset.
type Typography struct {
	ID            string `json:"id"`
	Name          string `json:"name,omitempty"`
	FontID        string `json:"fontId,omitempty"`
	FontFamily    string `json:"fontFamily,omitempty"`
	FontVariantID string `json:"fontVariantId,omitempty"`
	FontSize      string `json:"fontSize,omitempty"`
	FontStyle     string `json:"fontStyle,omitempty"`
	FontWeight    string `json:"fontWeight,omitempty"`
	LineHeight    string `json:"lineHeight,omitempty"`
	LetterSpacing string `json:"letterSpacing,omitempty"`
	TextTransform string `json:"textTransform,omitempty"`
}

// SyncAttrs returns the typography fields merged into text nodes during
// sync: every field except the asset's own id and name.
func (t *Typography) SyncAttrs() map[string]interface{} {
	out := make(map[string]interface{})
	put := func(k, v string) {
		if v != "" {
			out[k] = v
		}
	}
	put("font-id", t.FontID)
	put("font-family", t.FontFamily)
	put("font-variant-id", t.FontVariantID)
	put("font-size", t.FontSize)
	put("font-style", t.FontStyle)
	put("font-weight", t.FontWeight)
	put("line-height", t.LineHeight)
	put("letter-spacing", t.LetterSpacing)
	put("text-transform", t.TextTransform)
	return out
}

// MediaAsset is a library media (image) asset.
type MediaAsset struct {
	ID       string `json:"id"`
	Name     string `json:"name,omitempty"`
	Width    int    `json:"width,omitempty"`
	Height   int    `json:"height,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
}

// FileData is the data of one design file: its pages plus the four asset
// libraries it exports.
type FileData struct {
	ID           string                 `json:"id,omitempty"`
	Pages        []string               `json:"pages,omitempty"` // page ids in display order
	PagesIndex   map[string]*Container  `json:"pagesIndex,omitempty"`
	Components   map[string]*Container  `json:"components,omitempty"`
	Colors       map[string]*Color      `json:"colors,omitempty"`
	Typographies map[string]*Typography `json:"typographies,omitempty"`
	Media        map[string]*MediaAsset `json:"media,omitempty"`
}

// NewFileData creates an empty file.
func NewFileData(id string) *FileData {
	return &FileData{
		ID:           id,
		PagesIndex:   make(map[string]*Container),
		Components:   make(map[string]*Container),
		Colors:       make(map[string]*Color),
		Typographies: make(map[string]*Typography),
		Media:        make(map[string]*MediaAsset),
	}
}

// Container resolves a page or component container. Exactly one of pageID
// and componentID must be non-empty.
func (f *FileData) Container(pageID, componentID string) *Container {
	if pageID != "" {
		return f.PagesIndex[pageID]
	}
	return f.Components[componentID]
}

// ComponentIDs returns the component ids in deterministic order.
func (f *FileData) ComponentIDs() []string {
	ids := make([]string, 0, len(f.Components))
	for id := range f.Components {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Clone returns a deep copy of the file data.
func (f *FileData) Clone() *FileData {
	out := NewFileData(f.ID)
	out.Pages = append([]string(nil), f.Pages...)
	for id, p := range f.PagesIndex {
		out.PagesIndex[id] = p.Clone()
	}
	for id, c := range f.Components {
		out.Components[id] = c.Clone()
	}
	for id, c := range f.Colors {
		cc := *c
		if c.Gradient != nil {
			g := *c.Gradient
			g.Stops = append([]GradientStop(nil), c.Gradient.Stops...)
			cc.Gradient = &g
		}
		out.Colors[id] = &cc
	}
	for id, t := range f.Typographies {
		tt := *t
		out.Typographies[id] = &tt
	}
	for id, m := range f.Media {
		mm := *m
		out.Media[id] = &mm
	}
	return out
}

// State is an immutable snapshot of the workspace: the file being edited
// plus every linked library, keyed by file id.
type State struct {
	WorkspaceData      *FileData            `json:"workspaceData"`
	WorkspaceLibraries map[string]*FileData `json:"workspaceLibraries,omitempty"`
}

// Library resolves a library by file id; the empty id denotes the local
// file's own library.
func (s *State) Library(fileID string) *FileData {
	if fileID == "" {
		return s.WorkspaceData
	}
	return s.WorkspaceLibraries[fileID]
}

// Clone returns a deep copy of the snapshot.
func (s *State) Clone() *State {
	out := &State{WorkspaceData: s.WorkspaceData.Clone()}
	if s.WorkspaceLibraries != nil {
		out.WorkspaceLibraries = make(map[string]*FileData, len(s.WorkspaceLibraries))
		for id, f := range s.WorkspaceLibraries {
			out.WorkspaceLibraries[id] = f.Clone()
		}
	}
	return out
}
