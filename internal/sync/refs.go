package sync

import "github.com/shape-studio/backend/internal/models"

// AssetType names a syncable library asset family.
type AssetType string

const (
	AssetComponents   AssetType = "components"
	AssetColors       AssetType = "colors"
	AssetTypographies AssetType = "typographies"
)

// colorRefAttrs are the shape-level reference attributes that can point at a
// library color.
var colorRefAttrs = []string{"fill-color-ref-id", "stroke-color-ref-id"}

// HasAssetReference builds a shape predicate matching shapes that reference
// any asset of the given type in the given library. The empty library id
// matches references to the local library (whose *-ref-file is unset).
func HasAssetReference(assetType AssetType, libraryID string) func(*models.Shape) bool {
	switch assetType {
	case AssetComponents:
		return func(s *models.Shape) bool {
			return s.ComponentID != "" && s.ComponentFile == libraryID
		}
	case AssetColors:
		return func(s *models.Shape) bool {
			if s.Type == models.ShapeTypeText {
				return models.SomeNode(func(n *models.ContentNode) bool {
					return nodeRefMatches(n, "fill-color-ref-id", "fill-color-ref-file", libraryID) ||
						nodeRefMatches(n, "stroke-color-ref-id", "stroke-color-ref-file", libraryID)
				}, s.Content)
			}
			for _, refAttr := range colorRefAttrs {
				if shapeRefMatches(s, refAttr, libraryID) {
					return true
				}
			}
			return false
		}
	case AssetTypographies:
		return func(s *models.Shape) bool {
			if s.Type != models.ShapeTypeText {
				return false
			}
			return models.SomeNode(func(n *models.ContentNode) bool {
				return nodeRefMatches(n, "typography-ref-id", "typography-ref-file", libraryID)
			}, s.Content)
		}
	}
	return func(*models.Shape) bool { return false }
}

func shapeRefMatches(s *models.Shape, refAttr, libraryID string) bool {
	if _, ok := s.AttrValue(refAttr); !ok {
		return false
	}
	file, _ := s.AttrValue(refFileAttr(refAttr))
	return refFileEquals(file, libraryID)
}

func nodeRefMatches(n *models.ContentNode, refAttr, fileAttr, libraryID string) bool {
	if _, ok := n.Attr(refAttr); !ok {
		return false
	}
	file, _ := n.Attr(fileAttr)
	return refFileEquals(file, libraryID)
}

// refFileAttr derives the companion *-ref-file attribute of a *-ref-id one.
func refFileAttr(refIDAttr string) string {
	return refIDAttr[:len(refIDAttr)-len("id")] + "file"
}

// refFileEquals compares a *-ref-file attribute value against a library id,
// treating an absent or empty value as the local library.
func refFileEquals(val interface{}, libraryID string) bool {
	file, _ := val.(string)
	return file == libraryID
}
