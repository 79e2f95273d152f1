package workspace

import (
	"fmt"
	"sort"
	"time"

	"github.com/shape-studio/backend/internal/models"
)

// Format is one on-disk encoding of a design file.
type Format interface {
	// Name returns the unique name of the format.
	Name() string
	// CanDecode returns true if this format can handle the given file.
	CanDecode(filePath string) (bool, error)
	// Decode reads the file and returns its data.
	Decode(filePath string) (*models.FileData, error)
	// Encode writes the file data to the given path.
	Encode(filePath string, file *models.FileData) error
}

// FileMeta is the envelope every encoded file carries around its data.
type FileMeta struct {
	ID         string    `json:"id" yaml:"id" msgpack:"id"`
	Name       string    `json:"name,omitempty" yaml:"name,omitempty" msgpack:"name,omitempty"`
	Version    int       `json:"version" yaml:"version" msgpack:"version"`
	ExportedAt time.Time `json:"exportedAt,omitempty" yaml:"exportedAt,omitempty" msgpack:"exportedAt,omitempty"`
}

// fileEnvelope is the serialized form shared by every format.
type fileEnvelope struct {
	Meta FileMeta         `json:"meta" yaml:"meta" msgpack:"meta"`
	Data *models.FileData `json:"data" yaml:"data" msgpack:"data"`
}

// CurrentFileVersion is the envelope version this build reads and writes.
const CurrentFileVersion = 1

func checkEnvelope(env *fileEnvelope, filePath string) (*models.FileData, error) {
	if env.Meta.Version > CurrentFileVersion {
		return nil, fmt.Errorf("file %s: unsupported version %d", filePath, env.Meta.Version)
	}
	if env.Data == nil {
		return nil, fmt.Errorf("file %s: empty data section", filePath)
	}
	if env.Data.ID == "" {
		env.Data.ID = env.Meta.ID
	}
	ensureIndexes(env.Data)
	return env.Data, nil
}

// ensureIndexes backfills the map fields a hand-written or truncated export
// may omit, so callers never see nil maps.
func ensureIndexes(f *models.FileData) {
	if f.PagesIndex == nil {
		f.PagesIndex = make(map[string]*models.Container)
	}
	if f.Components == nil {
		f.Components = make(map[string]*models.Container)
	}
	if f.Colors == nil {
		f.Colors = make(map[string]*models.Color)
	}
	if f.Typographies == nil {
		f.Typographies = make(map[string]*models.Typography)
	}
	if f.Media == nil {
		f.Media = make(map[string]*models.MediaAsset)
	}
	if f.Pages == nil && len(f.PagesIndex) > 0 {
		for id := range f.PagesIndex {
			f.Pages = append(f.Pages, id)
		}
		sort.Strings(f.Pages)
	}
}

func envelopeFor(file *models.FileData) fileEnvelope {
	return fileEnvelope{
		Meta: FileMeta{ID: file.ID, Version: CurrentFileVersion, ExportedAt: time.Now().UTC()},
		Data: file,
	}
}
