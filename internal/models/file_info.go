package models

import "time"

// FileInfo represents metadata about an uploaded export.
type FileInfo struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Size       int64     `json:"size"`
	UploadedAt time.Time `json:"uploadedAt"`
	Status     string    `json:"status"`           // "uploaded", "loading", "loaded", "error"
	Format     string    `json:"format,omitempty"` // detected export format
}
