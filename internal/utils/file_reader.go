package utils

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// readFile is the content of a file and the stat it was read at
type readFile struct {
	content []byte
	modTime time.Time
	size    int64
}

func (f readFile) current(info os.FileInfo) bool {
	return info.ModTime().Equal(f.modTime) && info.Size() == f.size
}

// FileReader reads files and keeps their content while they are unchanged
// on disk. go.mod files and woven outputs are read more than once per run.
type FileReader struct {
	mu    sync.RWMutex
	files map[string]readFile
}

// NewFileReader creates a new FileReader instance with caching
func NewFileReader() *FileReader {
	return &FileReader{files: make(map[string]readFile)}
}

// ReadFile reads a file, serving it from the cache while it is unchanged on disk
func (fr *FileReader) ReadFile(filePath string) ([]byte, error) {
	cleanPath, err := fr.validateAndCleanPath(filePath)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", filepath.Base(cleanPath), err)
	}

	fr.mu.RLock()
	cached, ok := fr.files[cleanPath]
	fr.mu.RUnlock()
	if ok && cached.current(info) {
		return cached.content, nil
	}

	content, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", filepath.Base(cleanPath), err)
	}

	fr.mu.Lock()
	fr.files[cleanPath] = readFile{content: content, modTime: info.ModTime(), size: info.Size()}
	fr.mu.Unlock()
	return content, nil
}

// Unchanged reports whether filePath already holds content. A regenerated
// file that would not change is left alone, so its modification time and
// the build cache entries depending on it survive.
func (fr *FileReader) Unchanged(filePath string, content []byte) bool {
	if !fr.Exists(filePath) {
		return false
	}
	current, err := fr.ReadFile(filePath)
	return err == nil && bytes.Equal(current, content)
}

// Exists reports whether filePath names an existing file
func (fr *FileReader) Exists(filePath string) bool {
	info, err := os.Stat(filePath)
	return err == nil && !info.IsDir()
}

// InvalidateFile removes a specific file from the cache
func (fr *FileReader) InvalidateFile(filePath string) {
	fr.mu.Lock()
	delete(fr.files, filepath.Clean(filePath))
	fr.mu.Unlock()
}

// ClearCache clears all cached files
func (fr *FileReader) ClearCache() {
	fr.mu.Lock()
	fr.files = make(map[string]readFile)
	fr.mu.Unlock()
}

// CachedFiles returns the number of cached files
func (fr *FileReader) CachedFiles() int {
	fr.mu.RLock()
	defer fr.mu.RUnlock()
	return len(fr.files)
}

// validateAndCleanPath validates and cleans a file path
func (fr *FileReader) validateAndCleanPath(filePath string) (string, error) {
	if err := NotEmpty("filePath")(filePath); err != nil {
		return "", fmt.Errorf("file path %w", err)
	}

	// Clean the path to prevent path traversal
	cleanPath := filepath.Clean(filePath)

	// Allow .. only at the beginning (relative path)
	if strings.Contains(cleanPath, "..") && !strings.HasPrefix(cleanPath, "..") {
		return "", fmt.Errorf("path traversal not allowed in file path: %s", filePath)
	}

	if _, err := os.Stat(cleanPath); os.IsNotExist(err) {
		return "", fmt.Errorf("file does not exist: %s", cleanPath)
	}

	return cleanPath, nil
}
