package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/afs"
	"gopkg.in/yaml.v3"
)

// IntegrationSpec is one end-to-end case from testdata/integration.yaml.
type IntegrationSpec struct {
	Name        string   `yaml:"name"`
	Input       string   `yaml:"input"`
	Skip        string   `yaml:"skip,omitempty"`
	Expect      []string `yaml:"expect"`       // substrings that must appear
	ExpectOrder []string `yaml:"expect_order"` // substrings that must appear in order
}

// IntegrationFile is the testdata/integration.yaml structure.
type IntegrationFile struct {
	Tests []IntegrationSpec `yaml:"tests"`
}

func TestIntegration(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("testdata", "integration.yaml"))
	require.NoError(t, err)

	var file IntegrationFile
	require.NoError(t, yaml.Unmarshal(data, &file))
	require.NotEmpty(t, file.Tests)

	for _, tc := range file.Tests {
		t.Run(tc.Name, func(t *testing.T) {
			if tc.Skip != "" {
				t.Skip(tc.Skip)
			}
			output := compileSource(t, tc.Input)

			for _, want := range tc.Expect {
				if !assert.Contains(t, output, want) {
					t.Log(contextDiff(want, output))
				}
			}
			last := -1
			for _, want := range tc.ExpectOrder {
				at := strings.Index(output, want)
				require.GreaterOrEqual(t, at, 0, "missing %q", want)
				assert.Greater(t, at, last, "%q out of order", want)
				last = at
			}
		})
	}
}

// compileSource runs the full pipeline over one in-memory source file.
func compileSource(t *testing.T, source string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.cels"), []byte(source), 0o644))

	outFile := filepath.Join(t.TempDir(), "out.cpp")
	p := &pipeline{
		fs:         afs.New(),
		sourceDir:  dir,
		outputFile: outFile,
	}
	require.NoError(t, p.compile(context.Background()))

	data, err := os.ReadFile(outFile)
	require.NoError(t, err)
	return string(data)
}

// contextDiff renders a unified diff between the expectation and the
// produced output for readable failures.
func contextDiff(want, got string) string {
	text, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(want),
		B:        difflib.SplitLines(got),
		FromFile: "expected fragment",
		ToFile:   "emitted output",
		Context:  2,
	})
	if err != nil {
		return err.Error()
	}
	return text
}

func TestCompileImports(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.cels"),
		[]byte("import \"lib\";\nvar v: int = 1;\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "lib.cels"),
		[]byte("var shared: int;\n"), 0o644))

	outFile := filepath.Join(t.TempDir(), "out.cpp")
	p := &pipeline{fs: afs.New(), sourceDir: dir, outputFile: outFile}
	require.NoError(t, p.compile(context.Background()))

	data, err := os.ReadFile(outFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "int shared;")
	assert.Contains(t, string(data), "int v;")
}

func TestCompileMissingDirFails(t *testing.T) {
	p := &pipeline{
		fs:         afs.New(),
		sourceDir:  filepath.Join(t.TempDir(), "absent"),
		outputFile: filepath.Join(t.TempDir(), "out.cpp"),
	}
	err := p.compile(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "source directory")
}

func TestCompileWritesTableCache(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.cels"), []byte("var x: int;\n"), 0o644))

	outDir := t.TempDir()
	p := &pipeline{fs: afs.New(), sourceDir: dir, outputFile: filepath.Join(outDir, "out.cpp")}
	require.NoError(t, p.compile(context.Background()))

	cache := filepath.Join(outDir, "cels_lr1_at.txt")
	info, err := os.Stat(cache)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))

	// A second run reuses the cache.
	p2 := &pipeline{fs: afs.New(), sourceDir: dir, outputFile: filepath.Join(outDir, "out.cpp")}
	require.NoError(t, p2.compile(context.Background()))
}

func TestCompileErrorExitsNonZero(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.cels"), []byte("var $;\n"), 0o644))

	outFile := filepath.Join(t.TempDir(), "out.cpp")
	var out, errOut strings.Builder
	cmd := newRootCmd(&out, &errOut)
	cmd.SetArgs(normalizeFlags([]string{"-d" + dir, "-o" + outFile}))
	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, errOut.String(), "lexical error")
}
