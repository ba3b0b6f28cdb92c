package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// DefaultWovenSuffix names the files written next to their aspect sources
const DefaultWovenSuffix = "_woven.go"

// FileProcessor provides utilities for common file processing operations
type FileProcessor struct {
	fileReader *FileReader
	suffix     string
}

// NewFileProcessor creates a file processor recognising generated files by suffix
func NewFileProcessor(suffix string) *FileProcessor {
	return NewFileProcessorWithReader(NewFileReader(), suffix)
}

// NewFileProcessorWithReader creates a file processor with an existing FileReader
func NewFileProcessorWithReader(reader *FileReader, suffix string) *FileProcessor {
	if suffix == "" {
		suffix = DefaultWovenSuffix
	}
	return &FileProcessor{
		fileReader: reader,
		suffix:     suffix,
	}
}

// FileFilter defines a function that determines whether a file should be processed
type FileFilter func(path string, info os.DirEntry) bool

// DirectoryFilter defines a function that determines whether a directory should be processed
type DirectoryFilter func(path string, info os.DirEntry) bool

// FileWalkOptions configures file walking behavior
type FileWalkOptions struct {
	FileFilter      FileFilter
	DirectoryFilter DirectoryFilter
	SkipErrors      bool
}

// SourceFileFilter filters for .go files, excluding tests and generated files
func SourceFileFilter(suffix string) FileFilter {
	return func(path string, info os.DirEntry) bool {
		if info.IsDir() {
			return false
		}

		name := info.Name()
		return strings.HasSuffix(name, ".go") &&
			!strings.HasSuffix(name, "_test.go") &&
			!strings.HasSuffix(name, suffix)
	}
}

// GeneratedFileFilter filters for files carrying the generated suffix
func GeneratedFileFilter(suffix string) FileFilter {
	return func(path string, info os.DirEntry) bool {
		if info.IsDir() {
			return false
		}

		return strings.HasSuffix(info.Name(), suffix)
	}
}

// DefaultDirectoryFilter skips common directories that shouldn't contain source code
func DefaultDirectoryFilter() DirectoryFilter {
	skipDirs := map[string]bool{
		"vendor":       true,
		"node_modules": true,
		"testdata":     true,
		"build":        true,
		"dist":         true,
		"target":       true,
	}

	return func(path string, info os.DirEntry) bool {
		if !info.IsDir() {
			return true
		}

		name := info.Name()

		// Skip hidden directories
		if strings.HasPrefix(name, ".") && name != "." && name != ".." {
			return false
		}

		// Skip known directories and the pack-style _ prefix the go tool ignores
		return !skipDirs[name] && !strings.HasPrefix(name, "_")
	}
}

// WalkFiles walks through files in a directory tree with filtering
func (fp *FileProcessor) WalkFiles(rootDir string, options FileWalkOptions) ([]string, error) {
	var matchedFiles []string

	err := filepath.WalkDir(rootDir, func(path string, entry os.DirEntry, err error) error {
		if err != nil {
			if options.SkipErrors {
				return nil
			}
			return err
		}

		if entry.IsDir() {
			if path != rootDir && options.DirectoryFilter != nil && !options.DirectoryFilter(path, entry) {
				return filepath.SkipDir
			}
			return nil
		}

		if options.FileFilter == nil || options.FileFilter(path, entry) {
			matchedFiles = append(matchedFiles, path)
		}
		return nil
	})

	return matchedFiles, err
}

// ScanDirectoriesWithGoFiles returns the directories holding Go source files.
// Subdirectories are included when recursive is set.
func (fp *FileProcessor) ScanDirectoriesWithGoFiles(rootDirs []string, recursive bool) ([]string, error) {
	var packageDirs []string
	visited := make(map[string]bool)

	for _, rootDir := range rootDirs {
		dirs, err := fp.scanDirectory(rootDir, recursive, visited)
		if err != nil {
			return nil, err
		}
		packageDirs = append(packageDirs, dirs...)
	}

	return packageDirs, nil
}

func (fp *FileProcessor) scanDirectory(dir string, recursive bool, visited map[string]bool) ([]string, error) {
	// Resolve absolute path to handle symlinks and avoid cycles
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, WrapProcessError(fmt.Sprintf("path resolution %s", dir), err)
	}

	if visited[absDir] {
		return nil, nil
	}
	visited[absDir] = true

	var packageDirs []string

	hasGoFiles, err := fp.HasGoFiles(dir)
	if err != nil {
		return nil, WrapProcessError(fmt.Sprintf("Go file check in %s", dir), err)
	}

	if hasGoFiles {
		packageDirs = append(packageDirs, dir)
	}

	if !recursive {
		return packageDirs, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, WrapProcessError(fmt.Sprintf("directory read %s", dir), err)
	}

	directoryFilter := DefaultDirectoryFilter()

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		entryPath := filepath.Join(dir, entry.Name())
		if !directoryFilter(entryPath, entry) {
			continue
		}

		subDirs, err := fp.scanDirectory(entryPath, true, visited)
		if err != nil {
			return nil, err
		}
		packageDirs = append(packageDirs, subDirs...)
	}

	return packageDirs, nil
}

// HasGoFiles checks if a directory contains any source .go files
func (fp *FileProcessor) HasGoFiles(dir string) (bool, error) {
	files, err := fp.listFiles(dir, SourceFileFilter(fp.suffix))
	return len(files) > 0, err
}

// SourceFiles lists the source .go files of a directory, sorted
func (fp *FileProcessor) SourceFiles(dir string) ([]string, error) {
	files, err := fp.listFiles(dir, SourceFileFilter(fp.suffix))
	if err != nil {
		return nil, WrapProcessError(fmt.Sprintf("directory read %s", dir), err)
	}
	return files, nil
}

// GeneratedFiles lists the generated files of a directory, sorted
func (fp *FileProcessor) GeneratedFiles(dir string) ([]string, error) {
	files, err := fp.listFiles(dir, GeneratedFileFilter(fp.suffix))
	if err != nil {
		return nil, WrapProcessError(fmt.Sprintf("directory read %s", dir), err)
	}
	return files, nil
}

func (fp *FileProcessor) listFiles(dir string, filter FileFilter) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())
		if filter(path, entry) {
			files = append(files, path)
		}
	}
	sort.Strings(files)
	return files, nil
}

// OutputPath returns the generated file written for a source file
func (fp *FileProcessor) OutputPath(source string) string {
	return strings.TrimSuffix(source, ".go") + fp.suffix
}

// Suffix returns the generated file suffix
func (fp *FileProcessor) Suffix() string {
	return fp.suffix
}

// GetFileReader returns the underlying FileReader for advanced operations
func (fp *FileProcessor) GetFileReader() *FileReader {
	return fp.fileReader
}
