package index

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/soulnutri/dishscan/internal/embedding"
)

// fakeProvider returns a fixed vector per image content byte, failing for
// images whose content starts with '!'.
type fakeProvider struct {
	calls int
}

func (f *fakeProvider) ModelID() string { return "clip:fake" }
func (f *fakeProvider) Dim() int        { return 2 }

func (f *fakeProvider) Embed(ctx context.Context, image []byte) ([]float32, error) {
	f.calls++
	if len(image) > 0 && image[0] == '!' {
		return nil, &embedding.Error{Op: "call", Err: errors.New("unreadable image")}
	}
	return []float32{1, 0}, nil
}

func writeSourceTree(t *testing.T, dishes map[string][]string) string {
	t.Helper()
	root := t.TempDir()
	for slug, images := range dishes {
		dir := filepath.Join(root, slug)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatal(err)
		}
		for i, content := range images {
			name := filepath.Join(dir, "img"+string(rune('a'+i))+".jpg")
			if err := os.WriteFile(name, []byte(content), 0o644); err != nil {
				t.Fatal(err)
			}
		}
	}
	return root
}

func TestBuild_HappyPath(t *testing.T) {
	src := writeSourceTree(t, map[string][]string{
		"rice":  {"r1", "r2"},
		"beans": {"b1"},
	})
	out := filepath.Join(t.TempDir(), "idx")

	x, stats, err := Build(context.Background(), &fakeProvider{}, BuildOptions{
		SourceDir:  src,
		OutDir:     out,
		MaxPerDish: 10,
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if stats.TotalDishes != 2 || stats.TotalImages != 3 || stats.Skipped != 0 {
		t.Errorf("stats: %+v", stats)
	}
	if stats.Dim != 2 {
		t.Errorf("dim: got %d", stats.Dim)
	}
	if x.Len() != 3 {
		t.Errorf("entries: got %d", x.Len())
	}

	// Artifacts round-trip.
	loaded, err := Load(out)
	if err != nil {
		t.Fatalf("Load built index: %v", err)
	}
	if loaded.DishCount() != 2 {
		t.Errorf("loaded dishes: got %d", loaded.DishCount())
	}
}

func TestBuild_SkipsFailedEmbeddings(t *testing.T) {
	src := writeSourceTree(t, map[string][]string{
		"rice": {"ok", "!bad", "ok2"},
	})

	_, stats, err := Build(context.Background(), &fakeProvider{}, BuildOptions{SourceDir: src})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if stats.Skipped != 1 {
		t.Errorf("skipped: got %d", stats.Skipped)
	}
	if stats.TotalImages != 2 {
		t.Errorf("images: got %d", stats.TotalImages)
	}
}

func TestBuild_MaxPerDishCap(t *testing.T) {
	src := writeSourceTree(t, map[string][]string{
		"rice": {"a", "b", "c", "d"},
	})

	_, stats, err := Build(context.Background(), &fakeProvider{}, BuildOptions{
		SourceDir:  src,
		MaxPerDish: 2,
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if stats.TotalImages != 2 {
		t.Errorf("cap ignored: indexed %d images", stats.TotalImages)
	}
}

func TestBuild_AllFailedIsError(t *testing.T) {
	src := writeSourceTree(t, map[string][]string{
		"rice": {"!bad1", "!bad2"},
	})
	if _, _, err := Build(context.Background(), &fakeProvider{}, BuildOptions{SourceDir: src}); err == nil {
		t.Fatal("expected error when nothing could be indexed")
	}
}

func TestBuild_EmptySourceIsError(t *testing.T) {
	if _, _, err := Build(context.Background(), &fakeProvider{}, BuildOptions{SourceDir: t.TempDir()}); err == nil {
		t.Fatal("expected error for empty source dir")
	}
}

func TestBuild_Cancellation(t *testing.T) {
	src := writeSourceTree(t, map[string][]string{
		"rice": {"a", "b"},
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, _, err := Build(ctx, &fakeProvider{}, BuildOptions{SourceDir: src}); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
