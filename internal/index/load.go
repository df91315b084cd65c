package index

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"
)

// MetadataFile is the name of the metadata document inside an index dir.
const MetadataFile = "index_meta.json"

// defaultVectorFile is used when the metadata omits the blob name.
const defaultVectorFile = "vectors.f32"

// Load reads an index from dir. It fails closed: any missing file, invalid
// JSON, or size mismatch yields an error wrapping ErrNotReady and no index is
// returned.
func Load(dir string) (*Index, error) {
	metaPath := filepath.Join(dir, MetadataFile)
	b, err := os.ReadFile(metaPath)
	if err != nil {
		return nil, fmt.Errorf("%w: cannot read metadata %s: %v", ErrNotReady, metaPath, err)
	}

	var m Metadata
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("%w: invalid metadata JSON %s: %v", ErrNotReady, metaPath, err)
	}
	if m.Dim <= 0 {
		return nil, fmt.Errorf("%w: invalid dim in metadata: %d", ErrNotReady, m.Dim)
	}
	if len(m.Entries) == 0 {
		return nil, fmt.Errorf("%w: metadata lists no entries", ErrNotReady)
	}
	if m.VectorFile == "" {
		m.VectorFile = defaultVectorFile
	}
	for slug, rows := range m.DishRows {
		for _, r := range rows {
			if r < 0 || r >= len(m.Entries) {
				return nil, fmt.Errorf("%w: dish %q references row %d outside matrix (%d rows)",
					ErrNotReady, slug, r, len(m.Entries))
			}
		}
	}

	vectors, err := loadVectors(filepath.Join(dir, m.VectorFile), len(m.Entries), m.Dim)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotReady, err)
	}

	return &Index{Meta: m, Vectors: vectors}, nil
}

func loadVectors(path string, rows, dim int) ([]float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cannot open vector file %s: %w", path, err)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("cannot stat vector file %s: %w", path, err)
	}

	expected := int64(rows * dim * 4)
	if st.Size() != expected {
		return nil, fmt.Errorf("vector file size mismatch: got %d want %d (rows=%d dim=%d)",
			st.Size(), expected, rows, dim)
	}

	out := make([]float32, rows*dim)
	if err := binary.Read(io.LimitReader(f, expected), binary.LittleEndian, out); err != nil {
		return nil, fmt.Errorf("cannot read vectors from %s: %w", path, err)
	}
	return out, nil
}
