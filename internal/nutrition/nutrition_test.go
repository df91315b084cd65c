package nutrition

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadTable_LookupNormalized(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nutrition.yaml")
	body := "feijao:\n  calories: 77\n  protein: 4.5\nrice:\n  calories: 130\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	tbl, err := LoadTable(path)
	if err != nil {
		t.Fatalf("LoadTable: %v", err)
	}
	if tbl.Len() != 2 {
		t.Errorf("Len: got %d", tbl.Len())
	}

	// Accented query hits the unaccented entry.
	f, err := tbl.Lookup("Feijão")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if f.Calories != 77 {
		t.Errorf("calories: got %v", f.Calories)
	}

	if _, err := tbl.Lookup("unobtainium"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestEmptyTable(t *testing.T) {
	if _, err := EmptyTable().Lookup("rice"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
