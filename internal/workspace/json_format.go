package workspace

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/shape-studio/backend/internal/models"
)

// JSONFormat reads and writes the plain JSON export.
type JSONFormat struct{}

func NewJSONFormat() *JSONFormat {
	return &JSONFormat{}
}

func (f *JSONFormat) Name() string {
	return "json"
}

// CanDecode accepts .json files whose first non-space byte opens an object.
func (f *JSONFormat) CanDecode(filePath string) (bool, error) {
	if !strings.HasSuffix(strings.ToLower(filePath), ".json") {
		return false, nil
	}
	file, err := os.Open(filePath)
	if err != nil {
		return false, err
	}
	defer file.Close()

	r := bufio.NewReader(file)
	for {
		b, err := r.ReadByte()
		if err != nil {
			return false, nil
		}
		switch b {
		case ' ', '\t', '\n', '\r':
			continue
		case '{':
			return true, nil
		default:
			return false, nil
		}
	}
}

func (f *JSONFormat) Decode(filePath string) (*models.FileData, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", filePath, err)
	}
	defer file.Close()

	var env fileEnvelope
	dec := json.NewDecoder(bufio.NewReader(file))
	if err := dec.Decode(&env); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", filePath, err)
	}
	return checkEnvelope(&env, filePath)
}

func (f *JSONFormat) Encode(filePath string, data *models.FileData) error {
	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("creating %s: %w", filePath, err)
	}
	defer file.Close()

	w := bufio.NewWriter(file)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(envelopeFor(data)); err != nil {
		return fmt.Errorf("encoding %s: %w", filePath, err)
	}
	return w.Flush()
}
