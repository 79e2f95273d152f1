package sync

import "github.com/shape-studio/backend/internal/models"

// repositionShape computes the position dest should take so that it keeps
// the same offset from destRoot that origin has from originRoot.
func repositionShape(origin, originRoot, destRoot *models.Shape) (x, y float64) {
	x = destRoot.X + (origin.X - originRoot.X)
	y = destRoot.Y + (origin.Y - originRoot.Y)
	return x, y
}
