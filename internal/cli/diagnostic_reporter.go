package cli

import (
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/fatih/color"

	"github.com/toyz/aspect/internal/errors"
	"github.com/toyz/aspect/internal/metered"
)

// DiagnosticReporter provides user-friendly error reporting and diagnostics
type DiagnosticReporter struct {
	verbose bool
	out     io.Writer
}

// NewDiagnosticReporter creates a new diagnostic reporter writing to stderr
func NewDiagnosticReporter(verbose bool) *DiagnosticReporter {
	return NewDiagnosticReporterTo(os.Stderr, verbose)
}

// NewDiagnosticReporterTo creates a diagnostic reporter writing to out
func NewDiagnosticReporterTo(out io.Writer, verbose bool) *DiagnosticReporter {
	return &DiagnosticReporter{
		verbose: verbose,
		out:     out,
	}
}

// ReportWarning provides user-friendly warning reporting
func (r *DiagnosticReporter) ReportWarning(message string, suggestions ...string) {
	orange := color.New(color.FgYellow, color.Bold)
	orange.Fprint(r.out, "! ")
	fmt.Fprintf(r.out, "%s\n", message)

	if r.verbose {
		for _, s := range suggestions {
			fmt.Fprintf(r.out, "   - %s\n", s)
		}
	}
}

// ReportError provides comprehensive error reporting with user-friendly output
func (r *DiagnosticReporter) ReportError(err error) {
	var multi *errors.MultipleErrors
	if stderrors.As(err, &multi) && len(multi.Errors) > 1 {
		fmt.Fprintf(r.out, "\nERROR: Weaving failed in %d places\n", len(multi.Errors))
		fmt.Fprintf(r.out, "==============================\n")
		for i, e := range multi.Errors {
			fmt.Fprintf(r.out, "\n[%d/%d] ", i+1, len(multi.Errors))
			r.reportOne(e)
		}
		fmt.Fprintf(r.out, "\n")
		return
	}

	fmt.Fprintf(r.out, "\nERROR: Weaving Failed\n")
	fmt.Fprintf(r.out, "=====================\n\n")
	r.reportOne(err)
	fmt.Fprintf(r.out, "\n")
}

func (r *DiagnosticReporter) reportOne(err error) {
	var aspectErr errors.AspectError
	if !stderrors.As(err, &aspectErr) {
		r.reportBasicError(err)
		return
	}

	r.printErrorHeader(aspectErr.ErrorCode())

	fmt.Fprintf(r.out, "Message: %s\n\n", messageOf(aspectErr))

	if loc := aspectErr.Location(); !loc.IsEmpty() {
		fmt.Fprintf(r.out, "Location: %s\n\n", loc)
	}

	var genErr *errors.GenerationError
	if stderrors.As(err, &genErr) && genErr.Target != "" {
		fmt.Fprintf(r.out, "Target: %s\n\n", genErr.Target)
	}

	var syntaxErr *errors.SyntaxError
	if stderrors.As(err, &syntaxErr) && syntaxErr.Input != "" {
		fmt.Fprintf(r.out, "Input: %s\n\n", syntaxErr.Input)
	}

	if ctx := aspectErr.Context(); len(ctx) > 0 {
		r.printContext(ctx)
	}

	if suggestions := aspectErr.Suggestions(); len(suggestions) > 0 {
		r.printSuggestions(suggestions)
	}

	r.printAdditionalHelp(aspectErr.ErrorCode())

	if r.verbose {
		r.printErrorChain(err)
	}
}

// messageOf returns the message without the location prefix printed separately
func messageOf(err errors.AspectError) string {
	msg := err.Error()
	if loc := err.Location(); !loc.IsEmpty() {
		msg = strings.TrimPrefix(msg, loc.String()+": ")
	}
	return msg
}

// reportBasicError reports a basic error without rich context
func (r *DiagnosticReporter) reportBasicError(err error) {
	fmt.Fprintf(r.out, "Message: %s\n\n", err.Error())

	errorMsg := strings.ToLower(err.Error())
	if strings.Contains(errorMsg, "go.mod") || strings.Contains(errorMsg, "module") {
		fmt.Fprintf(r.out, "This appears to be a module-related issue.\n")
		fmt.Fprintf(r.out, "Common solutions:\n")
		fmt.Fprintf(r.out, "  - Check your go.mod file\n")
		fmt.Fprintf(r.out, "  - Run 'go get github.com/toyz/aspect' in the target module\n\n")
	}
}

// printErrorHeader prints a formatted error header based on error code
func (r *DiagnosticReporter) printErrorHeader(code errors.ErrorCode) {
	var title string

	switch code {
	case errors.SyntaxErrorCode:
		title = "Syntax Error"
	case errors.ValidationErrorCode:
		title = "Directive Validation Error"
	case errors.GenerationErrorCode:
		title = "Code Generation Error"
	case errors.FileSystemErrorCode:
		title = "File System Error"
	case errors.ConfigurationErrorCode:
		title = "Configuration Error"
	default:
		title = "Unknown Error"
	}

	fmt.Fprintf(r.out, "Type: %s\n", title)
	fmt.Fprintf(r.out, "%s\n\n", strings.Repeat("-", len(title)+6))
}

// printContext prints context information in a readable format
func (r *DiagnosticReporter) printContext(context map[string]interface{}) {
	fmt.Fprintf(r.out, "Context:\n")

	keys := make([]string, 0, len(context))
	for key := range context {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		fmt.Fprintf(r.out, "   %s: %v\n", formatContextKey(key), context[key])
	}

	fmt.Fprintf(r.out, "\n")
}

// formatContextKey converts snake_case keys to Title Case
func formatContextKey(key string) string {
	parts := strings.Split(key, "_")
	for i, part := range parts {
		if len(part) > 0 {
			parts[i] = strings.ToUpper(part[:1]) + part[1:]
		}
	}
	return strings.Join(parts, " ")
}

// printSuggestions prints actionable suggestions
func (r *DiagnosticReporter) printSuggestions(suggestions []string) {
	fmt.Fprintf(r.out, "Suggestions:\n")

	for i, suggestion := range suggestions {
		lines := strings.Split(suggestion, "\n")
		fmt.Fprintf(r.out, "   %d. %s\n", i+1, lines[0])
		for _, line := range lines[1:] {
			if strings.TrimSpace(line) != "" {
				fmt.Fprintf(r.out, "      %s\n", line)
			}
		}
	}

	fmt.Fprintf(r.out, "\n")
}

// printAdditionalHelp prints additional help based on error code
func (r *DiagnosticReporter) printAdditionalHelp(code errors.ErrorCode) {
	switch code {
	case errors.SyntaxErrorCode:
		fmt.Fprintf(r.out, "Directive Syntax Help:\n")
		fmt.Fprintf(r.out, "  - Directives start with //measure: or //metered: and no space\n")
		fmt.Fprintf(r.out, "  - Arguments are comma separated: //measure:HitCount, Retry(max=3)\n")
		fmt.Fprintf(r.out, "  - Lists use brackets: //measure:[ResponseTime, InFlight]\n\n")

	case errors.ValidationErrorCode:
		fmt.Fprintf(r.out, "Known metrics:\n")
		fmt.Fprintf(r.out, "  - %s\n\n", strings.Join(metered.NewWeaver().KnownMetrics(), ", "))

	case errors.GenerationErrorCode:
		fmt.Fprintf(r.out, "Woven Method Requirements:\n")
		fmt.Fprintf(r.out, "  - A named pointer receiver on a non-generic type\n")
		fmt.Fprintf(r.out, "  - At most two results\n")
		fmt.Fprintf(r.out, "  - A body (no assembly stubs)\n\n")
	}

	fmt.Fprintf(r.out, "For more help:\n")
	fmt.Fprintf(r.out, "  - Run with -verbose for more detailed output\n")
}

// printErrorChain prints every error in the chain in verbose mode
func (r *DiagnosticReporter) printErrorChain(err error) {
	fmt.Fprintf(r.out, "\nError Chain:\n")
	level := 1
	for err != nil {
		fmt.Fprintf(r.out, "  %d. %s\n", level, err.Error())
		err = stderrors.Unwrap(err)
		level++
	}
}

// Debug prints debug information when verbose mode is enabled
func (r *DiagnosticReporter) Debug(format string, args ...interface{}) {
	if r.verbose {
		fmt.Fprintf(r.out, "[DEBUG] "+format+"\n", args...)
	}
}

// GenerationSummary contains information about the generation process
type GenerationSummary struct {
	PackagesScanned int
	SourcesFound    int
	TypesWoven      int
	MethodsWoven    int
	GeneratedFiles  []string
	UnchangedFiles  int // generated files already up to date
}
