package cli

import (
	"fmt"
	"os"

	"github.com/toyz/aspect/internal/errors"
	"github.com/toyz/aspect/internal/utils"
)

// Cleaner removes woven files
type Cleaner struct {
	fileProcessor *utils.FileProcessor
}

// NewCleaner creates a new cleaner for files carrying suffix
func NewCleaner(suffix string) *Cleaner {
	return &Cleaner{
		fileProcessor: utils.NewFileProcessor(suffix),
	}
}

// CleanGeneratedFiles removes the woven files of the given directories and
// returns their paths. Files with the suffix but without the generated
// header are left alone.
func (c *Cleaner) CleanGeneratedFiles(directories []string) ([]string, error) {
	var removed []string

	for _, pattern := range directories {
		dir, recursive := splitPattern(pattern)
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			continue
		}

		files, err := c.generatedFiles(dir, recursive)
		if err != nil {
			return removed, fmt.Errorf("failed to clean directory %s: %w", pattern, err)
		}

		for _, file := range files {
			ok, err := c.removeGenerated(file)
			if err != nil {
				return removed, err
			}
			if ok {
				removed = append(removed, file)
			}
		}
	}

	return removed, nil
}

// generatedFiles lists the files carrying the suffix, skipping vendor and
// hidden directories when recursive
func (c *Cleaner) generatedFiles(dir string, recursive bool) ([]string, error) {
	if !recursive {
		return c.fileProcessor.GeneratedFiles(dir)
	}

	return c.fileProcessor.WalkFiles(dir, utils.FileWalkOptions{
		FileFilter:      utils.GeneratedFileFilter(c.fileProcessor.Suffix()),
		DirectoryFilter: utils.DefaultDirectoryFilter(),
		// Skip directories that can't be accessed
		SkipErrors: true,
	})
}

// removeGenerated deletes file when it starts with the generated header
func (c *Cleaner) removeGenerated(file string) (bool, error) {
	reader := c.fileProcessor.GetFileReader()

	content, err := reader.ReadFile(file)
	if err != nil {
		return false, errors.WrapFileSystemError("read", file, err)
	}
	if !IsGenerated(content) {
		return false, nil
	}

	if err := os.Remove(file); err != nil {
		return false, errors.WrapFileSystemError("remove", file, err)
	}
	reader.InvalidateFile(file)
	return true, nil
}
