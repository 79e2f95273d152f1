package workspace

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"os"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/shape-studio/backend/internal/models"
)

const (
	// Magic number "SSWF" (shape studio workspace file)
	BinaryMagic uint32 = 0x53535746
	// Current binary format version
	BinaryVersion uint8 = 1
)

// binaryHeader is the fixed-size file header preceding the msgpack payload.
type binaryHeader struct {
	Magic    uint32
	Version  uint8
	Flags    uint8
	Reserved [2]uint8
}

// BinaryFormat reads and writes the compact msgpack export. This is the
// format the frontend uploads and the one persistent storage keeps: the
// envelope is identical to the JSON one, encoded as msgpack behind a small
// magic header.
type BinaryFormat struct{}

func NewBinaryFormat() *BinaryFormat {
	return &BinaryFormat{}
}

func (f *BinaryFormat) Name() string {
	return "binary"
}

// CanDecode checks the magic number, so detection works regardless of the
// file extension.
func (f *BinaryFormat) CanDecode(filePath string) (bool, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return false, err
	}
	defer file.Close()

	var magic uint32
	if err := binary.Read(file, binary.BigEndian, &magic); err != nil {
		return false, nil
	}
	return magic == BinaryMagic, nil
}

func (f *BinaryFormat) Decode(filePath string) (*models.FileData, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", filePath, err)
	}
	defer file.Close()

	r := bufio.NewReader(file)
	var header binaryHeader
	if err := binary.Read(r, binary.BigEndian, &header); err != nil {
		return nil, fmt.Errorf("reading header of %s: %w", filePath, err)
	}
	if header.Magic != BinaryMagic {
		return nil, fmt.Errorf("file %s: invalid magic number %x", filePath, header.Magic)
	}
	if header.Version != BinaryVersion {
		return nil, fmt.Errorf("file %s: unsupported binary version %d", filePath, header.Version)
	}

	var env fileEnvelope
	dec := msgpack.NewDecoder(r)
	if err := dec.Decode(&env); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", filePath, err)
	}
	return checkEnvelope(&env, filePath)
}

func (f *BinaryFormat) Encode(filePath string, data *models.FileData) error {
	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("creating %s: %w", filePath, err)
	}
	defer file.Close()

	w := bufio.NewWriter(file)
	header := binaryHeader{Magic: BinaryMagic, Version: BinaryVersion}
	if err := binary.Write(w, binary.BigEndian, &header); err != nil {
		return fmt.Errorf("writing header of %s: %w", filePath, err)
	}

	enc := msgpack.NewEncoder(w)
	if err := enc.Encode(envelopeFor(data)); err != nil {
		return fmt.Errorf("encoding %s: %w", filePath, err)
	}
	return w.Flush()
}
