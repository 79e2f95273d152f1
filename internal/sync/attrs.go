package sync

// Attribute group tags. Touched tracking works at group granularity: a user
// override to any attribute marks its whole group.
const (
	GroupGeometry = "geometry-group"
	GroupRadius   = "radius-group"
	GroupFill     = "fill-group"
	GroupStroke   = "stroke-group"
	GroupText     = "text-group"
	GroupImage    = "image-group"
	GroupShadow   = "shadow-group"
	GroupBlur     = "blur-group"
)

// componentSyncAttrOrder lists every syncable attribute in the order the
// attribute updater walks them. Position (x, y) is listed for group lookup
// but handled separately by relative repositioning.
var componentSyncAttrOrder = []string{
	"x",
	"y",
	"width",
	"height",
	"rotation",
	"rx",
	"ry",
	"fill-color",
	"fill-opacity",
	"fill-color-gradient",
	"fill-color-ref-id",
	"fill-color-ref-file",
	"stroke-color",
	"stroke-opacity",
	"stroke-color-gradient",
	"stroke-color-ref-id",
	"stroke-color-ref-file",
	"stroke-width",
	"stroke-style",
	"stroke-alignment",
	"content",
	"typography-ref-id",
	"typography-ref-file",
	"image-id",
	"image-width",
	"image-height",
	"shadow",
	"blur",
}

// ComponentSyncAttrs maps each syncable attribute to its touched group.
var ComponentSyncAttrs = map[string]string{
	"x":                     GroupGeometry,
	"y":                     GroupGeometry,
	"width":                 GroupGeometry,
	"height":                GroupGeometry,
	"rotation":              GroupGeometry,
	"rx":                    GroupRadius,
	"ry":                    GroupRadius,
	"fill-color":            GroupFill,
	"fill-opacity":          GroupFill,
	"fill-color-gradient":   GroupFill,
	"fill-color-ref-id":     GroupFill,
	"fill-color-ref-file":   GroupFill,
	"stroke-color":          GroupStroke,
	"stroke-opacity":        GroupStroke,
	"stroke-color-gradient": GroupStroke,
	"stroke-color-ref-id":   GroupStroke,
	"stroke-color-ref-file": GroupStroke,
	"stroke-width":          GroupStroke,
	"stroke-style":          GroupStroke,
	"stroke-alignment":      GroupStroke,
	"content":               GroupText,
	"typography-ref-id":     GroupText,
	"typography-ref-file":   GroupText,
	"image-id":              GroupImage,
	"image-width":           GroupImage,
	"image-height":          GroupImage,
	"shadow":                GroupShadow,
	"blur":                  GroupBlur,
}

// AttrGroup returns the touched group of an attribute, or "" when the
// attribute is not tracked (untracked attributes are always overwritten).
func AttrGroup(attr string) string {
	return ComponentSyncAttrs[attr]
}
