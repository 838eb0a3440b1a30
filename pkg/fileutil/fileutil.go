// Package fileutil provides file utilities for writing containers with
// tmp+mv semantics.
package fileutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/eunmann/bpack/pkg/logging"
)

// tmpSuffix marks files created by CreateTemp.
const tmpSuffix = ".bpack.tmp"

// Exists returns true if the file exists.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// IsNonEmpty returns true if the file exists and has non-zero size.
func IsNonEmpty(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Size() > 0
}

// TempFile is a file written next to its final path and moved into place
// by Commit. Readers never observe a partially written final file.
type TempFile struct {
	*os.File
	outPath string
	done    bool
}

// CreateTemp creates a uniquely named temporary file in the directory of
// outPath. The directory is created if needed.
func CreateTemp(outPath string) (*TempFile, error) {
	dir := filepath.Dir(outPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	tmpPath := filepath.Join(dir, "."+filepath.Base(outPath)+"."+uuid.NewString()+tmpSuffix)
	f, err := os.OpenFile(tmpPath, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	return &TempFile{File: f, outPath: outPath}, nil
}

// OutPath returns the path the file is moved to on Commit.
func (t *TempFile) OutPath() string {
	return t.outPath
}

// Commit syncs and closes the temporary file, then atomically renames it to
// the output path. On failure the temporary file is removed.
func (t *TempFile) Commit() error {
	if t.done {
		return nil
	}
	t.done = true
	tmpPath := t.Name()

	if err := t.Sync(); err != nil {
		t.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := t.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, t.outPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename temp to final: %w", err)
	}
	return nil
}

// Discard closes and removes the temporary file. It is a no-op after Commit.
func (t *TempFile) Discard() error {
	if t.done {
		return nil
	}
	t.done = true
	t.Close()
	if err := os.Remove(t.Name()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove temp file: %w", err)
	}
	return nil
}

// WriteTmpThenMove writes to a temporary file then atomically moves it to
// the final path. The writeFunc receives the open temporary file and should
// write the complete content.
func WriteTmpThenMove(outPath string, writeFunc func(f *os.File) error) error {
	tmp, err := CreateTemp(outPath)
	if err != nil {
		return err
	}
	if err := writeFunc(tmp.File); err != nil {
		tmp.Discard()
		return err
	}
	return tmp.Commit()
}

// CleanupTmpFiles removes temporary files left in dir by interrupted
// writers. Only files created by CreateTemp are touched.
func CleanupTmpFiles(dir string) error {
	return cleanupTmp(dir, func(name string) bool {
		return strings.HasPrefix(name, ".") && strings.HasSuffix(name, tmpSuffix)
	})
}

// CleanupTmpFilesFor removes temporary files left by interrupted writers of
// outPath. Temp files of other outputs in the same directory are kept.
func CleanupTmpFilesFor(outPath string) error {
	prefix := "." + filepath.Base(outPath) + "."
	return cleanupTmp(filepath.Dir(outPath), func(name string) bool {
		id, ok := strings.CutPrefix(name, prefix)
		if !ok {
			return false
		}
		id, ok = strings.CutSuffix(id, tmpSuffix)
		return ok && uuid.Validate(id) == nil
	})
}

func cleanupTmp(dir string, match func(name string) bool) error {
	log := logging.L()

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read dir: %w", err)
	}

	var removed int
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !match(name) {
			continue
		}
		if rmErr := os.Remove(filepath.Join(dir, name)); rmErr == nil {
			removed++
		}
	}

	if removed > 0 {
		log.Debug().Int("files_removed", removed).Str("dir", dir).Msg("cleaned up tmp files")
	}
	return nil
}
