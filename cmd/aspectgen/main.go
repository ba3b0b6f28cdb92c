package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/toyz/aspect/internal/cli"
	"github.com/toyz/aspect/internal/utils"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	flags := flag.NewFlagSet("aspectgen", flag.ContinueOnError)
	flags.SetOutput(stderr)

	// Define command-line flags
	var (
		verboseFlag = flags.Bool("verbose", false, "Enable verbose output and detailed error reporting")
		quietFlag   = flags.Bool("quiet", false, "Only show errors")
		cleanFlag   = flags.Bool("clean", false, "Delete the woven files of the specified directories")
		configFlag  = flags.String("config", "", "Config file (defaults to ./"+cli.DefaultConfigFile+" when present)")
		tagFlag     = flags.String("tag", cli.DefaultTag, "Build tag marking aspect sources")
		suffixFlag  = flags.String("suffix", utils.DefaultWovenSuffix, "Suffix of woven files")
		jobsFlag    = flags.Int("jobs", 0, "Directories woven at once (defaults to GOMAXPROCS)")
		helpFlag    = flags.Bool("help", false, "Show help information")
	)

	flags.Usage = func() {
		fmt.Fprintf(stderr, "Usage: aspectgen [options] <directory-paths...>\n\n")
		fmt.Fprintf(stderr, "Aspect Weaver\n")
		fmt.Fprintf(stderr, "Weaves //measure: directives of Go files built with the aspect tag into\n")
		fmt.Fprintf(stderr, "generated twins that build without it.\n\n")
		fmt.Fprintf(stderr, "Options:\n")
		flags.PrintDefaults()
		fmt.Fprintf(stderr, "\nArguments:\n")
		fmt.Fprintf(stderr, "  directory-paths    One or more directories holding aspect sources\n")
		fmt.Fprintf(stderr, "                     Supports Go-style patterns like './...' for recursive scanning\n")
		fmt.Fprintf(stderr, "\nExamples:\n")
		fmt.Fprintf(stderr, "  aspectgen ./...                   # Weave everything recursively\n")
		fmt.Fprintf(stderr, "  aspectgen -tag weave ./internal/... # Use a custom build tag\n")
		fmt.Fprintf(stderr, "  aspectgen -clean ./...            # Delete all woven files\n")
	}

	if err := flags.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	// Show help if requested
	if *helpFlag {
		flags.Usage()
		return 0
	}

	dirs := flags.Args()
	if len(dirs) == 0 {
		fmt.Fprintf(stderr, "Error: At least one directory path is required\n\n")
		flags.Usage()
		return 1
	}

	config, err := loadConfig(*configFlag)
	if err != nil {
		cli.NewDiagnosticReporterTo(stderr, *verboseFlag).ReportError(err)
		return 1
	}

	// Explicit flags win over the config file
	flags.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "tag":
			config.Tag = *tagFlag
		case "suffix":
			config.Suffix = *suffixFlag
		case "jobs":
			config.Jobs = *jobsFlag
		case "verbose":
			config.Verbose = *verboseFlag
		}
	})
	config.Directories = dirs

	level := utils.DiagnosticInfo
	switch {
	case *quietFlag:
		level = utils.DiagnosticError
	case config.Verbose:
		level = utils.DiagnosticVerbose
	}
	diagnostics := utils.NewDiagnosticSystemWithWriters(level, stdout, stderr)
	reporter := cli.NewDiagnosticReporterTo(stderr, config.Verbose)

	diagnostics.Section("Aspect Weaver")

	if *cleanFlag {
		return clean(config, diagnostics, reporter)
	}

	if config.Verbose {
		diagnostics.Subsection("Configuration")
		diagnostics.List("Target directories: %s", strings.Join(dirs, ", "))
		diagnostics.List("Build tag: %s", config.Tag)
		diagnostics.List("Woven suffix: %s", config.Suffix)
		diagnostics.List("Jobs: %d", config.Jobs)
	}

	generator := cli.NewGenerator(config, diagnostics)
	generator.SetReporter(reporter)

	diagnostics.Subsection("Weaving")
	diagnostics.Indent()
	err = generator.Run(ctx)
	diagnostics.Unindent()
	if err != nil {
		reporter.ReportError(err)
		diagnostics.Error("Weaving failed")
		return 1
	}

	summary := generator.GetSummary()
	diagnostics.Summary("Weaving Complete!", map[string]interface{}{
		"Packages scanned": summary.PackagesScanned,
		"Aspect sources":   summary.SourcesFound,
		"Types woven":      summary.TypesWoven,
		"Methods woven":    summary.MethodsWoven,
		"Files generated":  len(summary.GeneratedFiles),
		"Files unchanged":  summary.UnchangedFiles,
	})

	if config.Verbose && len(summary.GeneratedFiles) > 0 {
		diagnostics.Subsection("Generated Files")
		for _, file := range summary.GeneratedFiles {
			diagnostics.List("%s", file)
		}
	}
	return 0
}

// loadConfig reads path, or the default config file when it exists
func loadConfig(path string) (cli.Config, error) {
	if path == "" {
		if _, err := os.Stat(cli.DefaultConfigFile); err != nil {
			return cli.DefaultConfig(), nil
		}
		path = cli.DefaultConfigFile
	}
	return cli.LoadConfigFile(path)
}

func clean(config cli.Config, diagnostics *utils.DiagnosticSystem, reporter *cli.DiagnosticReporter) int {
	if err := config.Validate(); err != nil {
		reporter.ReportError(err)
		return 1
	}

	diagnostics.Info("Cleaning %s files in %s", config.Suffix, strings.Join(config.Directories, ", "))
	diagnostics.StartProgress("Cleaning woven files")
	removed, err := cli.NewCleaner(config.Suffix).CleanGeneratedFiles(config.Directories)
	if err != nil {
		diagnostics.EndProgress(false, "")
		diagnostics.Error("Clean operation failed: %v", err)
		return 1
	}
	diagnostics.EndProgress(true, fmt.Sprintf("%d files", len(removed)))

	for _, file := range removed {
		diagnostics.Verbose("removed %s", file)
	}
	diagnostics.Success("Removed %d woven files", len(removed))
	return 0
}
