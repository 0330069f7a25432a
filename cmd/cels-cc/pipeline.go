package main

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/viant/afs"

	"github.com/notimplife/cels-cc/pkg/ast"
	"github.com/notimplife/cels-cc/pkg/astbuild"
	"github.com/notimplife/cels-cc/pkg/cppgen"
	"github.com/notimplife/cels-cc/pkg/diag"
	"github.com/notimplife/cels-cc/pkg/env"
	"github.com/notimplife/cels-cc/pkg/multiframe"
)

// sourcePattern selects the compiler's inputs under the source dir.
const sourcePattern = "**/*.cels"

// pipeline drives one compilation: walk sources, parse them into a
// shared environment, run the multiframe pass, emit and write C++.
type pipeline struct {
	fs             afs.Service
	sourceDir      string
	outputFile     string
	systemIncludes []string
	localIncludes  []string

	builder  *astbuild.Builder
	imported map[string]bool
}

func (p *pipeline) compile(ctx context.Context) error {
	files, err := p.listSources()
	if err != nil {
		return err
	}

	e, err := env.NewDefault()
	if err != nil {
		return err
	}
	builder, err := astbuild.New(e, p.tableCachePath())
	if err != nil {
		return err
	}
	p.builder = builder
	p.imported = map[string]bool{}
	builder.ImportSolver = func(path string) (ast.Node, error) {
		return p.solveImport(ctx, path)
	}

	var blocks []ast.Node
	for _, file := range files {
		// Files already pulled in through an import are not parsed
		// twice.
		if p.imported[file] {
			continue
		}
		p.imported[file] = true
		block, err := p.parseFile(ctx, file)
		if err != nil {
			return err
		}
		blocks = append(blocks, block)
	}
	program := ast.NewBlock(blocks...)
	program.Scope = e.Global

	if err := multiframe.ExtractCalls(program, e); err != nil {
		return err
	}

	emitter := cppgen.New(e)
	emitter.SystemIncludes = p.systemIncludes
	emitter.LocalIncludes = p.localIncludes
	code, err := emitter.EmitProgram(program)
	if err != nil {
		return err
	}

	if err := p.fs.Upload(ctx, p.outputFile, 0o644, strings.NewReader(code)); err != nil {
		return diag.Wrap(diag.Errorf(diag.IO, "cannot write output %s", p.outputFile), err)
	}
	return nil
}

// tableCachePath places the LR(1) table cache next to the output file
// unless CELS_LR1_CACHE overrides it.
func (p *pipeline) tableCachePath() string {
	if path := os.Getenv("CELS_LR1_CACHE"); path != "" {
		return path
	}
	return filepath.Join(filepath.Dir(p.outputFile), "cels_lr1_at.txt")
}

// listSources returns the .cels files under the source dir in
// deterministic path order.
func (p *pipeline) listSources() ([]string, error) {
	info, err := os.Stat(p.sourceDir)
	if err != nil || !info.IsDir() {
		return nil, diag.Errorf(diag.IO, "source directory not found: %s", p.sourceDir)
	}
	var files []string
	err = filepath.WalkDir(p.sourceDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(p.sourceDir, path)
		if err != nil {
			return err
		}
		if ok, _ := doublestar.PathMatch(sourcePattern, filepath.ToSlash(rel)); ok {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, diag.Wrap(diag.Errorf(diag.IO, "cannot walk source directory %s", p.sourceDir), err)
	}
	sort.Strings(files)
	if len(files) == 0 {
		return nil, diag.Errorf(diag.IO, "no .cels sources under %s", p.sourceDir)
	}
	return files, nil
}

func (p *pipeline) parseFile(ctx context.Context, path string) (*ast.Block, error) {
	data, err := p.fs.DownloadWithURL(ctx, path)
	if err != nil {
		return nil, diag.Wrap(diag.Errorf(diag.IO, "cannot read source %s", path), err)
	}
	block, err := p.builder.BuildAST(string(data))
	if err != nil {
		return nil, err
	}
	return block, nil
}

// solveImport resolves `import "p"` to <dir>/p.cels, compiling it into
// the shared environment at most once.
func (p *pipeline) solveImport(ctx context.Context, path string) (ast.Node, error) {
	rel := path
	if !strings.HasSuffix(rel, ".cels") {
		rel += ".cels"
	}
	full := filepath.Join(p.sourceDir, filepath.FromSlash(rel))
	if p.imported[full] {
		return nil, nil
	}
	p.imported[full] = true
	if _, err := os.Stat(full); err != nil {
		return nil, diag.Errorf(diag.IO, "imported file not found: %s", full)
	}
	return p.parseFile(ctx, full)
}
