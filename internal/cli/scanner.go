package cli

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/toyz/aspect/internal/errors"
	"github.com/toyz/aspect/internal/utils"
)

// DirectoryScanner handles recursive directory scanning for Go files
type DirectoryScanner struct {
	fileProcessor *utils.FileProcessor
}

// NewDirectoryScanner creates a new directory scanner
func NewDirectoryScanner(fileProcessor *utils.FileProcessor) *DirectoryScanner {
	return &DirectoryScanner{
		fileProcessor: fileProcessor,
	}
}

// ScanDirectories returns the directories holding Go source files. A
// Go-style "dir/..." pattern includes every subdirectory; a plain directory
// stands for itself.
func (s *DirectoryScanner) ScanDirectories(rootDirs []string) ([]string, error) {
	var packageDirs []string
	seen := make(map[string]bool)

	for _, rootDir := range rootDirs {
		dir, recursive := splitPattern(rootDir)

		cleanPath, err := filepath.Abs(dir)
		if err != nil {
			return nil, errors.WrapWithOperation("process", fmt.Sprintf("path resolution %s", dir), err)
		}

		dirs, err := s.fileProcessor.ScanDirectoriesWithGoFiles([]string{cleanPath}, recursive)
		if err != nil {
			return nil, errors.WrapFileSystemError("scan", cleanPath, err)
		}
		for _, d := range dirs {
			if !seen[d] {
				seen[d] = true
				packageDirs = append(packageDirs, d)
			}
		}
	}

	return packageDirs, nil
}

// splitPattern separates the "/..." suffix of a directory pattern
func splitPattern(pattern string) (string, bool) {
	if pattern == "..." {
		return ".", true
	}
	if !strings.HasSuffix(pattern, "/...") {
		return pattern, false
	}

	dir := strings.TrimSuffix(pattern, "/...")
	if dir == "" {
		dir = "."
	}
	return dir, true
}
