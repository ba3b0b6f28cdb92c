package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGoModParser(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"go.mod": `module example.com/app

go 1.22

require github.com/toyz/aspect v0.1.0

replace example.com/local => ../local
`,
		"internal/svc/svc.go": "package svc",
	})

	p := NewGoModParser(NewFileReader())

	found, err := p.FindGoModFile(filepath.Join(root, "internal", "svc"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "go.mod"), found)

	name, err := p.ParseModuleName(found)
	require.NoError(t, err)
	assert.Equal(t, "example.com/app", name)

	for _, tt := range []struct {
		module string
		want   bool
	}{
		{"github.com/toyz/aspect", true},
		{"example.com/app", true},
		{"example.com/local", true},
		{"github.com/other/lib", false},
	} {
		ok, err := p.DependsOn(found, tt.module)
		require.NoError(t, err)
		assert.Equal(t, tt.want, ok, tt.module)
	}
}

func TestGoModParser_Errors(t *testing.T) {
	root := t.TempDir()
	p := NewGoModParser(NewFileReader())

	_, err := p.ParseModuleName(filepath.Join(root, "mod.txt"))
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(root, "go.mod"), []byte("go 1.22\n"), 0644))
	_, err = p.ParseModuleName(filepath.Join(root, "go.mod"))
	assert.ErrorContains(t, err, "no module declaration")

	require.NoError(t, os.WriteFile(filepath.Join(root, "go.mod"), []byte("module (\n"), 0644))
	p = NewGoModParser(NewFileReader())
	_, err = p.ParseModuleName(filepath.Join(root, "go.mod"))
	assert.Error(t, err)
}
