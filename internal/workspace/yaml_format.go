package workspace

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/shape-studio/backend/internal/models"
)

// YAMLFormat reads and writes the YAML export, the format used for
// hand-maintained shared libraries kept under version control.
type YAMLFormat struct{}

func NewYAMLFormat() *YAMLFormat {
	return &YAMLFormat{}
}

func (f *YAMLFormat) Name() string {
	return "yaml"
}

func (f *YAMLFormat) CanDecode(filePath string) (bool, error) {
	lower := strings.ToLower(filePath)
	return strings.HasSuffix(lower, ".yaml") || strings.HasSuffix(lower, ".yml"), nil
}

func (f *YAMLFormat) Decode(filePath string) (*models.FileData, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", filePath, err)
	}
	defer file.Close()

	var env fileEnvelope
	dec := yaml.NewDecoder(bufio.NewReader(file))
	if err := dec.Decode(&env); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", filePath, err)
	}
	return checkEnvelope(&env, filePath)
}

func (f *YAMLFormat) Encode(filePath string, data *models.FileData) error {
	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("creating %s: %w", filePath, err)
	}
	defer file.Close()

	w := bufio.NewWriter(file)
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(envelopeFor(data)); err != nil {
		return fmt.Errorf("encoding %s: %w", filePath, err)
	}
	if err := enc.Close(); err != nil {
		return err
	}
	return w.Flush()
}
