// Package ingest copies dish photos into the organized source tree the
// index builder reads, applying exclude filtering and MD5-based duplicate
// and conflict resolution.
package ingest

import (
	"crypto/md5"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ConflictPair records a conflict found during an import.
type ConflictPair struct {
	Original string // path of the photo already in the organized tree
	Conflict string // path where the incoming conflicting version was stored
	Source   string // import source label
}

// Result is returned by ImportDir.
type Result struct {
	Conflicts []ConflictPair
	Imported  int // number of photos actually copied
	Skipped   int // identical duplicates skipped
	Ignored   int // non-image or excluded files

	// Dish-level counts (a "dish" is a top-level subdirectory of srcDir).
	DishesImported  int // dishes with ≥1 newly copied photo
	DishesSkipped   int // dishes whose every photo was an identical duplicate
	DishesConflicts int // dishes with ≥1 conflict
}

var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
}

// ImportDir copies photos from srcDir into dstDir. srcDir must hold one
// sub-directory per dish, named by the dish slug. source labels where the
// photos came from and is used to build conflict file names.
func ImportDir(srcDir, dstDir, source string, excludes []string) (*Result, error) {
	result := &Result{}

	// Dish-level outcome sets — key is the top-level child name (dish slug).
	dishImported := map[string]bool{}
	dishSkipped := map[string]bool{}
	dishConflict := map[string]bool{}

	err := filepath.WalkDir(srcDir, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if path == srcDir {
			return nil
		}

		rel, err := filepath.Rel(srcDir, path)
		if err != nil {
			return err
		}

		if matchesExclude(rel, excludes) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			result.Ignored++
			return nil
		}

		dst := filepath.Join(dstDir, rel)

		if d.IsDir() {
			return os.MkdirAll(dst, 0o755)
		}

		if !imageExtensions[strings.ToLower(filepath.Ext(path))] {
			result.Ignored++
			return nil
		}

		// Top-level component = dish slug (files at root get key ".").
		dishKey := strings.SplitN(rel, string(filepath.Separator), 2)[0]

		// ── MD5 conflict resolution ──────────────────────────────────────────
		if _, err := os.Stat(dst); err == nil {
			srcMD5, err := fileMD5(path)
			if err != nil {
				return fmt.Errorf("md5 %s: %w", path, err)
			}
			dstMD5, err := fileMD5(dst)
			if err != nil {
				return fmt.Errorf("md5 %s: %w", dst, err)
			}
			if srcMD5 == dstMD5 {
				// Identical photo — skip silently.
				result.Skipped++
				dishSkipped[dishKey] = true
				return nil
			}
			// Different content under the same name — conflict-safe write.
			conflictDst := conflictPath(dst, source)
			if err := copyFile(path, conflictDst); err != nil {
				return fmt.Errorf("conflict copy %s → %s: %w", path, conflictDst, err)
			}
			result.Conflicts = append(result.Conflicts, ConflictPair{
				Original: dst,
				Conflict: conflictDst,
				Source:   source,
			})
			result.Imported++
			dishConflict[dishKey] = true
			return nil
		}

		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return err
		}
		if err := copyFile(path, dst); err != nil {
			return fmt.Errorf("copy %s → %s: %w", path, dst, err)
		}
		result.Imported++
		dishImported[dishKey] = true
		return nil
	})
	if err != nil {
		return result, err
	}

	// A dish is "skipped" only when every photo was a duplicate.
	result.DishesImported = len(dishImported)
	result.DishesConflicts = len(dishConflict)
	for s := range dishSkipped {
		if !dishImported[s] && !dishConflict[s] {
			result.DishesSkipped++
		}
	}

	return result, nil
}

// conflictPath builds the conflict filename for an incoming photo.
// Strategy: insert .conflict-<source> before the final extension.
//
//	feijoada_01.jpg → feijoada_01.conflict-fieldshoot.jpg
func conflictPath(original, source string) string {
	ext := filepath.Ext(original)
	base := strings.TrimSuffix(original, ext)
	return base + ".conflict-" + source + ext
}

// matchesExclude reports whether relPath matches any of the given glob patterns.
func matchesExclude(relPath string, patterns []string) bool {
	name := filepath.Base(relPath)
	for _, pattern := range patterns {
		// Match against the full relative path AND just the basename.
		if matched, _ := filepath.Match(pattern, name); matched {
			return true
		}
		if matched, _ := filepath.Match(pattern, relPath); matched {
			return true
		}
	}
	return false
}

// fileMD5 returns the hex-encoded MD5 digest of the file at path.
func fileMD5(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}

// copyFile copies src to dst, preserving permissions.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode())
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}
