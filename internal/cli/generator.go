package cli

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/toyz/aspect/internal/errors"
	"github.com/toyz/aspect/internal/metered"
	"github.com/toyz/aspect/internal/utils"
)

// RuntimeModule is the module woven code imports
const RuntimeModule = "github.com/toyz/aspect"

// Generator coordinates the CLI generation process
type Generator struct {
	config        Config
	fileProcessor *utils.FileProcessor
	scanner       *DirectoryScanner
	gomod         *utils.GoModParser
	reporter      *DiagnosticReporter
	diagnostics   *utils.DiagnosticSystem

	mu       sync.Mutex
	summary  GenerationSummary
	failures *errors.MultipleErrors
}

// NewGenerator creates a new CLI generator
func NewGenerator(config Config, diagnostics *utils.DiagnosticSystem) *Generator {
	fp := utils.NewFileProcessor(config.Suffix)
	return &Generator{
		config:        config,
		fileProcessor: fp,
		scanner:       NewDirectoryScanner(fp),
		gomod:         utils.NewGoModParser(fp.GetFileReader()),
		reporter:      NewDiagnosticReporter(config.Verbose),
		diagnostics:   diagnostics,
	}
}

// GetSummary returns the generation summary
func (g *Generator) GetSummary() GenerationSummary {
	return g.summary
}

// Reporter returns the reporter used for warnings and errors
func (g *Generator) Reporter() *DiagnosticReporter {
	return g.reporter
}

// SetReporter replaces the reporter used for warnings
func (g *Generator) SetReporter(reporter *DiagnosticReporter) {
	g.reporter = reporter
}

// Run weaves every aspect source below the configured directories. Weaving
// failures of single files are collected and returned together once all
// directories are done.
func (g *Generator) Run(ctx context.Context) error {
	startTime := time.Now()
	g.summary = GenerationSummary{}
	g.failures = errors.NewMultipleErrors()
	g.fileProcessor.GetFileReader().ClearCache()

	if err := g.config.Validate(); err != nil {
		return errors.Wrap(errors.ConfigurationErrorCode, "invalid configuration", err)
	}
	if len(g.config.Directories) == 0 {
		return errors.New(errors.ConfigurationErrorCode, "no directories to scan").
			WithSuggestion("Pass one or more directories, for example ./...")
	}

	g.diagnostics.Debug("Scanning directories: %v", g.config.Directories)
	g.diagnostics.StartProgress("Scanning directories for Go packages")

	packageDirs, err := g.scanner.ScanDirectories(g.config.Directories)
	if err != nil {
		g.diagnostics.EndProgress(false, "")
		return err
	}
	if len(packageDirs) == 0 {
		g.diagnostics.EndProgress(false, "")
		return errors.New(errors.FileSystemErrorCode, "no Go packages found in specified directories").
			WithContext("directories", g.config.Directories).
			WithSuggestions(
				"Ensure the directories contain Go files",
				"Try scanning parent directories or use './...' pattern",
			)
	}
	g.diagnostics.EndProgress(true, fmt.Sprintf("%d packages", len(packageDirs)))
	g.summary.PackagesScanned = len(packageDirs)

	g.checkModule(packageDirs[0])

	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(g.config.Jobs)
	for _, dir := range packageDirs {
		group.Go(func() error {
			return g.processDirectory(gctx, dir)
		})
	}
	if err := group.Wait(); err != nil {
		return err
	}

	sort.Strings(g.summary.GeneratedFiles)
	g.diagnostics.Verbose("Weaving completed in %v", time.Since(startTime).Round(time.Millisecond))

	return g.failures.ErrOrNil()
}

// checkModule warns when the enclosing module cannot import the runtime
func (g *Generator) checkModule(dir string) {
	goMod, err := g.gomod.FindGoModFile(dir)
	if err != nil {
		g.reporter.ReportWarning("No go.mod found; woven files import "+RuntimeModule,
			"Run 'go mod init' in the project root")
		return
	}

	ok, err := g.gomod.DependsOn(goMod, RuntimeModule)
	if err != nil {
		g.reporter.ReportWarning(fmt.Sprintf("Could not read %s: %v", goMod, err))
		return
	}
	if !ok {
		module, err := g.gomod.ParseModuleName(goMod)
		if err != nil {
			module = goMod
		}
		g.reporter.ReportWarning(fmt.Sprintf("%s does not require %s; woven files will not build", module, RuntimeModule),
			"Run 'go get "+RuntimeModule+"' in "+filepath.Dir(goMod))
	}
}

// processDirectory weaves the aspect sources of one directory, in file order
func (g *Generator) processDirectory(ctx context.Context, dir string) error {
	files, err := g.fileProcessor.SourceFiles(dir)
	if err != nil {
		g.fail(errors.WrapFileSystemError("list", dir, err))
		return nil
	}

	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := g.processFile(file); err != nil {
			g.fail(err)
		}
	}
	return nil
}

func (g *Generator) processFile(path string) error {
	src, err := g.fileProcessor.GetFileReader().ReadFile(path)
	if err != nil {
		return errors.WrapFileSystemError("read", path, err)
	}

	source, ok, err := ParseAspectSource(path, src, g.config.Tag)
	if err != nil || !ok {
		return err
	}
	g.diagnostics.Debug("Weaving %s", path)

	result, err := metered.Generate(path, src)
	if err != nil {
		return err
	}

	code, err := source.Assemble(g.config.Tag, result.Source)
	if err != nil {
		return err
	}

	output := g.fileProcessor.OutputPath(path)
	reader := g.fileProcessor.GetFileReader()
	unchanged := reader.Unchanged(output, code)
	if !unchanged {
		if err := utils.WriteGoFile(output, code); err != nil {
			return errors.WrapFileSystemError("write", output, err)
		}
		reader.InvalidateFile(output)
	}

	g.mu.Lock()
	if unchanged {
		g.summary.UnchangedFiles++
	}
	g.summary.SourcesFound++
	g.summary.TypesWoven += len(result.Types)
	g.summary.MethodsWoven += result.Methods
	g.summary.GeneratedFiles = append(g.summary.GeneratedFiles, output)
	g.mu.Unlock()

	g.diagnostics.Item("%s (%d methods)", relative(output), result.Methods)
	return nil
}

// fail records a file failure; the run goes on with the other files
func (g *Generator) fail(err error) {
	var aspectErr errors.AspectError
	if !stderrors.As(err, &aspectErr) {
		aspectErr = errors.Wrap(errors.UnknownErrorCode, "weaving failed", err)
	}

	g.mu.Lock()
	g.failures.Add(aspectErr)
	g.mu.Unlock()
}

// relative shortens path for display when it lies below the working directory
func relative(path string) string {
	wd, err := os.Getwd()
	if err != nil {
		return path
	}
	if rel, err := filepath.Rel(wd, path); err == nil && !strings.HasPrefix(rel, "..") {
		return rel
	}
	return path
}
