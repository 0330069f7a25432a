package lr1

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/notimplife/cels-cc/pkg/diag"
	"github.com/notimplife/cels-cc/pkg/grammar"
)

// The on-disk table format is a text stream: the first line is the
// grammar checksum, then one cell per line as
//
//	<state> <kind> <payload> <action>+
//
// with kind t (terminal), n (non-terminal) or e (end-of-word, payload
// `$`), and actions s<n>, r<n> or a.

// Save writes the table to path atomically (temp file + rename), so an
// interrupted write cannot poison the cache.
func (t *Table) Save(path string) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp*")
	if err != nil {
		return diag.Wrap(diag.Errorf(diag.IO, "cannot create table cache in %s", dir), err)
	}
	defer os.Remove(tmp.Name())

	w := bufio.NewWriter(tmp)
	fmt.Fprintln(w, t.Grammar.Checksum())
	for _, key := range t.sortedKeys() {
		actions := t.cells[key]
		parts := make([]string, len(actions))
		for i, a := range actions {
			parts[i] = a.String()
		}
		fmt.Fprintf(w, "%d %c %s %s\n", key.State, key.Col.Kind, key.Col.Payload, strings.Join(parts, " "))
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return diag.Wrap(diag.Errorf(diag.IO, "cannot write table cache %s", path), err)
	}
	if err := tmp.Close(); err != nil {
		return diag.Wrap(diag.Errorf(diag.IO, "cannot write table cache %s", path), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return diag.Wrap(diag.Errorf(diag.IO, "cannot replace table cache %s", path), err)
	}
	return nil
}

// Load reads a persisted table for g. It returns (nil, nil) when the
// file does not exist or its checksum no longer matches the grammar;
// the caller recomputes and rewrites in that case. A present but
// malformed file is an error.
func Load(g *grammar.Grammar, path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, diag.Wrap(diag.Errorf(diag.IO, "cannot read table cache %s", path), err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	if !sc.Scan() {
		return nil, nil
	}
	if strings.TrimSpace(sc.Text()) != g.Checksum() {
		return nil, nil
	}

	t := &Table{Grammar: g, cells: map[cellKey][]Action{}}
	lineNo := 1
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 4 {
			return nil, diag.Errorf(diag.Grammar, "table cache %s:%d: malformed cell %q", path, lineNo, line)
		}
		state, err := strconv.Atoi(fields[0])
		if err != nil {
			return nil, diag.Errorf(diag.Grammar, "table cache %s:%d: bad state %q", path, lineNo, fields[0])
		}
		kind := fields[1]
		payload := fields[2]
		var col Column
		switch kind {
		case "t":
			term, ok := g.TerminalByValue(payload)
			if !ok {
				return nil, diag.Errorf(diag.Grammar, "table cache %s:%d: unknown terminal %q", path, lineNo, payload)
			}
			col = TermColumn(term)
		case "n":
			nt, ok := g.NonTerminalByName(payload)
			if !ok {
				return nil, diag.Errorf(diag.Grammar, "table cache %s:%d: unknown non-terminal %q", path, lineNo, payload)
			}
			col = NonTermColumn(nt)
		case "e":
			col = EOWColumn()
		default:
			return nil, diag.Errorf(diag.Grammar, "table cache %s:%d: invalid component type %q", path, lineNo, kind)
		}
		for _, as := range fields[3:] {
			a, err := parseAction(as)
			if err != nil {
				return nil, err
			}
			t.add(cellKey{State: state, Col: col}, a)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, diag.Wrap(diag.Errorf(diag.IO, "cannot read table cache %s", path), err)
	}
	return t, nil
}
