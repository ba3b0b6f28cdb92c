package utils

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestFileReaderCaching(t *testing.T) {
	tempDir := t.TempDir()
	testFile := filepath.Join(tempDir, "test.go")

	if err := os.WriteFile(testFile, []byte("package main\n"), 0644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	reader := NewFileReader()

	first, err := reader.ReadFile(testFile)
	if err != nil {
		t.Fatalf("First read failed: %v", err)
	}
	if string(first) != "package main\n" {
		t.Errorf("Unexpected content %q", first)
	}
	if reader.CachedFiles() != 1 {
		t.Errorf("Expected 1 cached file, got %d", reader.CachedFiles())
	}

	// Modify the file; the cache must notice
	time.Sleep(10 * time.Millisecond)
	if err := os.WriteFile(testFile, []byte("package main // changed\n"), 0644); err != nil {
		t.Fatalf("Failed to modify test file: %v", err)
	}

	second, err := reader.ReadFile(testFile)
	if err != nil {
		t.Fatalf("Second read failed: %v", err)
	}
	if string(second) != "package main // changed\n" {
		t.Errorf("Expected fresh content, got %q", second)
	}

	reader.InvalidateFile(testFile)
	if reader.CachedFiles() != 0 {
		t.Errorf("Expected empty cache after invalidation, got %d", reader.CachedFiles())
	}
}

func TestFileReaderUnchanged(t *testing.T) {
	path := filepath.Join(t.TempDir(), "svc_woven.go")
	reader := NewFileReader()

	if reader.Unchanged(path, []byte("package svc\n")) {
		t.Error("A missing file is never unchanged")
	}

	if err := os.WriteFile(path, []byte("package svc\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if !reader.Unchanged(path, []byte("package svc\n")) {
		t.Error("Expected identical content to be unchanged")
	}
	if reader.Unchanged(path, []byte("package svc // v2\n")) {
		t.Error("Expected different content to be changed")
	}
}

func TestFileReaderErrors(t *testing.T) {
	reader := NewFileReader()

	if _, err := reader.ReadFile(""); err == nil {
		t.Error("Expected error for empty path")
	}
	if _, err := reader.ReadFile(filepath.Join(t.TempDir(), "missing.go")); err == nil {
		t.Error("Expected error for missing file")
	}
	if _, err := reader.ReadFile("a/../../b.go"); err == nil {
		t.Error("Expected error for path traversal")
	}
}

func TestFileReaderExists(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "go.mod")
	if err := os.WriteFile(file, []byte("module x\n"), 0644); err != nil {
		t.Fatal(err)
	}

	reader := NewFileReader()
	if !reader.Exists(file) {
		t.Error("Expected file to exist")
	}
	if reader.Exists(dir) {
		t.Error("Directories are not files")
	}
	if reader.Exists(filepath.Join(dir, "nope")) {
		t.Error("Expected missing file")
	}
}
