package fileutil

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestExists(t *testing.T) {
	tmpDir := t.TempDir()

	if Exists(filepath.Join(tmpDir, "nonexistent")) {
		t.Error("Exists returned true for non-existent file")
	}

	path := filepath.Join(tmpDir, "exists.txt")
	if err := os.WriteFile(path, []byte("content"), 0o644); err != nil {
		t.Fatal(err)
	}
	if !Exists(path) {
		t.Error("Exists returned false for existing file")
	}
}

func TestIsNonEmpty(t *testing.T) {
	tmpDir := t.TempDir()

	if IsNonEmpty(filepath.Join(tmpDir, "nonexistent")) {
		t.Error("IsNonEmpty returned true for non-existent file")
	}

	emptyPath := filepath.Join(tmpDir, "empty.txt")
	if err := os.WriteFile(emptyPath, []byte{}, 0o644); err != nil {
		t.Fatal(err)
	}
	if IsNonEmpty(emptyPath) {
		t.Error("IsNonEmpty returned true for empty file")
	}

	fullPath := filepath.Join(tmpDir, "full.txt")
	if err := os.WriteFile(fullPath, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if !IsNonEmpty(fullPath) {
		t.Error("IsNonEmpty returned false for non-empty file")
	}
}

func TestTempFileCommit(t *testing.T) {
	tmpDir := t.TempDir()
	outPath := filepath.Join(tmpDir, "sub", "out.bpk")

	tmp, err := CreateTemp(outPath)
	if err != nil {
		t.Fatalf("CreateTemp: %v", err)
	}
	if tmp.OutPath() != outPath {
		t.Errorf("OutPath = %q, want %q", tmp.OutPath(), outPath)
	}
	if Exists(outPath) {
		t.Fatal("output exists before Commit")
	}
	if _, err := tmp.Write([]byte("hello")); err != nil {
		t.Fatal(err)
	}
	tmpPath := tmp.Name()
	if err := tmp.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "hello" {
		t.Errorf("content = %q, want %q", data, "hello")
	}
	if Exists(tmpPath) {
		t.Error("temp file still exists after Commit")
	}
	if err := tmp.Discard(); err != nil {
		t.Errorf("Discard after Commit: %v", err)
	}
	if !Exists(outPath) {
		t.Error("Discard after Commit removed the output")
	}
}

func TestTempFileDiscard(t *testing.T) {
	tmpDir := t.TempDir()
	outPath := filepath.Join(tmpDir, "out.bpk")

	tmp, err := CreateTemp(outPath)
	if err != nil {
		t.Fatal(err)
	}
	tmpPath := tmp.Name()
	if !strings.HasPrefix(filepath.Base(tmpPath), ".out.bpk.") {
		t.Errorf("temp name = %q, want hidden sibling of output", filepath.Base(tmpPath))
	}
	if err := tmp.Discard(); err != nil {
		t.Fatalf("Discard: %v", err)
	}
	if Exists(tmpPath) || Exists(outPath) {
		t.Error("Discard left files behind")
	}
}

func TestCreateTempUnique(t *testing.T) {
	outPath := filepath.Join(t.TempDir(), "out.bpk")
	a, err := CreateTemp(outPath)
	if err != nil {
		t.Fatal(err)
	}
	defer a.Discard()
	b, err := CreateTemp(outPath)
	if err != nil {
		t.Fatal(err)
	}
	defer b.Discard()
	if a.Name() == b.Name() {
		t.Errorf("two temp files share the name %q", a.Name())
	}
}

func TestWriteTmpThenMove(t *testing.T) {
	tmpDir := t.TempDir()
	outPath := filepath.Join(tmpDir, "out.txt")

	err := WriteTmpThenMove(outPath, func(f *os.File) error {
		_, err := f.WriteString("test content")
		return err
	})
	if err != nil {
		t.Fatalf("WriteTmpThenMove failed: %v", err)
	}
	data, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "test content" {
		t.Errorf("content = %q, want %q", data, "test content")
	}

	failPath := filepath.Join(tmpDir, "fail.txt")
	wantErr := errors.New("write failed")
	err = WriteTmpThenMove(failPath, func(*os.File) error { return wantErr })
	if !errors.Is(err, wantErr) {
		t.Errorf("error = %v, want %v", err, wantErr)
	}
	if Exists(failPath) {
		t.Error("output exists after failed write")
	}
	entries, _ := os.ReadDir(tmpDir)
	if len(entries) != 1 {
		t.Errorf("dir has %d entries, want 1 (temp file not cleaned up)", len(entries))
	}
}

func TestCleanupTmpFiles(t *testing.T) {
	tmpDir := t.TempDir()

	stale, err := CreateTemp(filepath.Join(tmpDir, "a.bpk"))
	if err != nil {
		t.Fatal(err)
	}
	stale.Close()
	keep := filepath.Join(tmpDir, "notes.tmp")
	if err := os.WriteFile(keep, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	if err := CleanupTmpFiles(tmpDir); err != nil {
		t.Fatalf("CleanupTmpFiles: %v", err)
	}
	if Exists(stale.Name()) {
		t.Error("stale temp file not removed")
	}
	if !Exists(keep) {
		t.Error("unrelated .tmp file removed")
	}
	if err := CleanupTmpFiles(filepath.Join(tmpDir, "missing")); err != nil {
		t.Errorf("CleanupTmpFiles on missing dir: %v", err)
	}
}

func TestCleanupTmpFilesFor(t *testing.T) {
	tmpDir := t.TempDir()

	var names []string
	for _, out := range []string{"a.bpk", "b.bpk", "a.bpk.old"} {
		tmp, err := CreateTemp(filepath.Join(tmpDir, out))
		if err != nil {
			t.Fatal(err)
		}
		tmp.Close()
		names = append(names, tmp.Name())
	}

	if err := CleanupTmpFilesFor(filepath.Join(tmpDir, "a.bpk")); err != nil {
		t.Fatalf("CleanupTmpFilesFor: %v", err)
	}
	if Exists(names[0]) {
		t.Error("temp file of a.bpk not removed")
	}
	for _, name := range names[1:] {
		if !Exists(name) {
			t.Errorf("temp file of another output removed: %s", filepath.Base(name))
		}
	}
}
