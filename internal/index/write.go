package index

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"
)

// Write persists the index artifacts (metadata document + vector blob) to
// dir. Both files are written together; callers swap the whole directory into
// place with AtomicSwap.
func Write(dir string, x *Index) error {
	if x == nil || len(x.Meta.Entries) == 0 {
		return fmt.Errorf("no entries to write")
	}
	if x.Meta.Dim <= 0 {
		return fmt.Errorf("invalid dim: %d", x.Meta.Dim)
	}
	if len(x.Vectors) != len(x.Meta.Entries)*x.Meta.Dim {
		return fmt.Errorf("vector length mismatch: got %d want %d",
			len(x.Vectors), len(x.Meta.Entries)*x.Meta.Dim)
	}

	m := x.Meta
	if m.VectorFile == "" {
		m.VectorFile = defaultVectorFile
	}
	if m.CreatedAt == "" {
		m.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create index dir %s: %w", dir, err)
	}

	mb, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, MetadataFile), mb, 0o644); err != nil {
		return fmt.Errorf("cannot write metadata: %w", err)
	}

	vf, err := os.Create(filepath.Join(dir, m.VectorFile))
	if err != nil {
		return fmt.Errorf("cannot create vector file: %w", err)
	}
	if err := binary.Write(vf, binary.LittleEndian, x.Vectors); err != nil {
		_ = vf.Close()
		return fmt.Errorf("cannot write vectors: %w", err)
	}
	if err := vf.Close(); err != nil {
		return err
	}
	return nil
}

// AtomicSwap replaces destDir with srcDir by renaming, keeping a rollback
// copy until the swap succeeds.
func AtomicSwap(srcDir, destDir string) error {
	parent := filepath.Dir(destDir)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return err
	}
	backup := destDir + ".bak"
	_ = os.RemoveAll(backup)
	if _, err := os.Stat(destDir); err == nil {
		if err := os.Rename(destDir, backup); err != nil {
			return err
		}
	}
	if err := os.Rename(srcDir, destDir); err != nil {
		// rollback best-effort
		if _, stErr := os.Stat(backup); stErr == nil {
			_ = os.Rename(backup, destDir)
		}
		return err
	}
	_ = os.RemoveAll(backup)
	return nil
}
