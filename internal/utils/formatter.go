package utils

import (
	"fmt"
	"go/format"
	"go/parser"
	"go/token"
	"os"
)

// FormatGoCode formats Go source code using the same logic as gofmt. A
// declaration list without a package clause is formatted too.
func FormatGoCode(source []byte) ([]byte, error) {
	formatted, err := format.Source(source)
	if err != nil {
		// Report the syntax error when there is one, it points at the line
		if parseErr := CheckGoCode(source); parseErr != nil {
			return nil, parseErr
		}
		return nil, err
	}
	return formatted, nil
}

// CheckGoCode reports whether source parses as a Go file
func CheckGoCode(source []byte) error {
	if _, err := parser.ParseFile(token.NewFileSet(), "", source, parser.ParseComments); err != nil {
		return fmt.Errorf("invalid Go syntax: %w", err)
	}
	return nil
}

// WriteGoFile writes code to filename once it parses. The code is written as
// is; woven files keep the layout of their source.
func WriteGoFile(filename string, code []byte) error {
	if err := CheckGoCode(code); err != nil {
		return fmt.Errorf("failed to write %s: %w", filename, err)
	}
	return os.WriteFile(filename, code, 0644)
}
