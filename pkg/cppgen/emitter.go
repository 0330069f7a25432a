// Package cppgen linearises the compiled scope tree and AST to C++
// text. Packages map to namespaces, structs and plain functions emit
// straight C++, and multiframe overloads emit state-machine structs
// driven by the host ExecutionController. Fragments are topologically
// ordered by signature dependencies before concatenation.
package cppgen

import (
	"fmt"
	"strings"

	"github.com/notimplife/cels-cc/pkg/ast"
	"github.com/notimplife/cels-cc/pkg/diag"
	"github.com/notimplife/cels-cc/pkg/env"
	"github.com/notimplife/cels-cc/pkg/scope"
	"github.com/notimplife/cels-cc/pkg/symbols"
)

// celestaHeader is the runtime header providing ExecutionController,
// TaskData and the string type.
const celestaHeader = "<Celesta>"

// Identifier is a symbol's C++ name: the short declaration name and the
// qualified reference form.
type Identifier struct {
	Name     string
	FullName string
}

// Emitter turns one compiled environment into C++ text.
type Emitter struct {
	Env *env.Environment

	// SystemIncludes and LocalIncludes override/extend the prologue:
	// each system include emits #include <h>, each local one
	// #include "h".
	SystemIncludes []string
	LocalIncludes  []string

	ids     map[scope.Symbol]Identifier
	headers []string
}

// New returns an emitter for the environment.
func New(e *env.Environment) *Emitter {
	return &Emitter{Env: e, ids: map[scope.Symbol]Identifier{}}
}

// identify records the C++ identifier of a symbol.
func (em *Emitter) identify(sym scope.Symbol, id Identifier) { em.ids[sym] = id }

// identifier resolves a symbol's C++ identifier.
func (em *Emitter) identifier(sym scope.Symbol) (Identifier, error) {
	if id, ok := em.ids[sym]; ok {
		return id, nil
	}
	return Identifier{}, diag.Errorf(diag.Internal, "no C++ identifier for symbol %s", sym.FullName())
}

// symbolID derives the default identifier: the name qualified by every
// enclosing scope up to (excluding) the first anonymous `@` scope.
func symbolID(sym scope.Symbol) Identifier {
	path := []string{sym.Name()}
	for s := sym.Scope(); s != nil && !strings.HasPrefix(s.Name(), "@"); s = s.Parent() {
		if s.Name() != "" {
			path = append(path, s.Name())
		}
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return Identifier{Name: sym.Name(), FullName: strings.Join(path, "::")}
}

// addHeader collects a header for the prologue, deduplicated.
func (em *Emitter) addHeader(h string) {
	for _, existing := range em.headers {
		if existing == h {
			return
		}
	}
	em.headers = append(em.headers, h)
}

// typeName maps a data type to its C++ spelling.
func (em *Emitter) typeName(t symbols.DataType) (string, error) {
	switch v := t.(type) {
	case *symbols.PointerType:
		inner, err := em.typeName(v.Element)
		if err != nil {
			return "", err
		}
		return inner + "*", nil
	case *symbols.TaskType:
		inner, err := em.typeName(v.Element)
		if err != nil {
			return "", err
		}
		em.addHeader(celestaHeader)
		return "Celesta::TaskData<" + inner + ">", nil
	case *symbols.StaticArrayType:
		// Arrays only appear through declarators; see declare.
		inner, err := em.typeName(v.Element)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s[%d]", inner, v.Length), nil
	case *symbols.PrimitiveType:
		switch v.Name() {
		case "int":
			return "int", nil
		case "uint":
			return "unsigned int", nil
		case "short":
			return "short", nil
		case "ushort":
			return "unsigned short", nil
		case "float":
			return "float", nil
		case "bool":
			return "bool", nil
		case "void":
			return "void", nil
		case "string":
			em.addHeader(celestaHeader)
			return "Celesta::string", nil
		default:
			return "", diag.Errorf(diag.Type, "type %s has no C++ mapping", v.FullName())
		}
	case *symbols.StructType:
		id, err := em.identifier(v)
		if err != nil {
			return "", err
		}
		return id.FullName, nil
	default:
		return "", diag.Errorf(diag.Internal, "unknown data type %T", t)
	}
}

// declare renders `T name` with the array declarator form when needed.
func (em *Emitter) declare(t symbols.DataType, name string) (string, error) {
	if arr, ok := symbols.IsStaticArray(t); ok {
		inner, err := em.typeName(arr.Element)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s %s[%d]", inner, name, arr.Length), nil
	}
	tn, err := em.typeName(t)
	if err != nil {
		return "", err
	}
	return tn + " " + name, nil
}

// EmitProgram produces the complete C++ translation unit: prologue
// includes, dependency-ordered declarations, then the remaining
// top-level statements of root in source order.
func (em *Emitter) EmitProgram(root *ast.Block) (string, error) {
	em.registerIdentifiers()

	fragments, err := em.collectFragments()
	if err != nil {
		return "", err
	}
	sorted, err := sortFragments(fragments)
	if err != nil {
		return "", err
	}

	var body strings.Builder
	var openNS []string
	closeTo := func(target []string) {
		for len(openNS) > len(target) || (len(openNS) > 0 && !samePrefix(openNS, target)) {
			openNS = openNS[:len(openNS)-1]
			body.WriteString("}\n")
		}
		for len(openNS) < len(target) {
			body.WriteString("namespace " + target[len(openNS)] + "\n{\n")
			openNS = append(openNS, target[len(openNS)])
		}
	}
	for _, f := range sorted {
		closeTo(f.NS)
		body.WriteString(f.Code)
		for _, h := range f.Headers {
			em.addHeader(h)
		}
	}
	closeTo(nil)

	tail, err := em.emitTopLevel(root)
	if err != nil {
		return "", err
	}

	var out strings.Builder
	for _, h := range em.prologueHeaders() {
		out.WriteString("#include " + h + "\n")
	}
	out.WriteString("\n")
	out.WriteString(body.String())
	out.WriteString(tail)
	return out.String(), nil
}

func samePrefix(open, target []string) bool {
	for i := range open {
		if i >= len(target) || open[i] != target[i] {
			return false
		}
	}
	return true
}

// prologueHeaders resolves the include list: CLI-provided headers when
// any, the Celesta runtime header otherwise, plus headers the emitted
// fragments requested.
func (em *Emitter) prologueHeaders() []string {
	var out []string
	seen := map[string]struct{}{}
	push := func(h string) {
		if _, ok := seen[h]; !ok {
			seen[h] = struct{}{}
			out = append(out, h)
		}
	}
	if len(em.SystemIncludes) == 0 && len(em.LocalIncludes) == 0 {
		push(celestaHeader)
	}
	for _, h := range em.SystemIncludes {
		push("<" + h + ">")
	}
	for _, h := range em.LocalIncludes {
		push("\"" + h + "\"")
	}
	for _, h := range em.headers {
		push(h)
	}
	return out
}

// registerIdentifiers assigns the default C++ identifier to every
// nameable symbol of the compilation.
func (em *Emitter) registerIdentifiers() {
	for _, sym := range em.Env.EnumerateSymbols() {
		switch sym.(type) {
		case *symbols.PrimitiveType:
			// Primitives map through typeName.
		case *symbols.StructType, *symbols.Field, *symbols.Function,
			*symbols.FormalParameter, *symbols.Variable:
			em.identify(sym, symbolID(sym))
		}
	}
}

// collectFragments walks the scope tree gathering one fragment per
// struct, function overload and package-level variable.
func (em *Emitter) collectFragments() ([]*Fragment, error) {
	var fragments []*Fragment
	var walk func(s *scope.Scope, ns []string) error
	walk = func(s *scope.Scope, ns []string) error {
		for _, sym := range s.SymbolsBySID() {
			switch v := sym.(type) {
			case *symbols.StructType:
				f, err := em.structFragment(v, ns)
				if err != nil {
					return err
				}
				f.order = len(fragments)
				fragments = append(fragments, f)
			case *symbols.Function:
				for _, overload := range v.Overloads() {
					f, err := em.overloadFragment(overload, ns)
					if err != nil {
						return err
					}
					f.order = len(fragments)
					fragments = append(fragments, f)
				}
			case *symbols.Variable:
				decl, err := em.declare(v.Type, v.Name())
				if err != nil {
					return err
				}
				set := map[string]struct{}{}
				namedTypeDeps(v.Type, set)
				fragments = append(fragments, &Fragment{
					Name:  v.FullName(),
					Deps:  setToSlice(set),
					NS:    ns,
					Code:  decl + ";\n",
					order: len(fragments),
				})
			}
		}
		for _, sub := range s.Subscopes() {
			switch {
			case sub.IsPackage:
				if err := walk(sub, append(append([]string{}, ns...), sub.Name())); err != nil {
					return err
				}
			default:
				// Struct member scopes and function overload scopes are
				// emitted with their owning symbol.
			}
		}
		return nil
	}
	if err := walk(em.Env.Global, nil); err != nil {
		return nil, err
	}
	return fragments, nil
}

// structFragment emits `struct S { ... };` with fields and methods in
// sid order.
func (em *Emitter) structFragment(st *symbols.StructType, ns []string) (*Fragment, error) {
	id, err := em.identifier(st)
	if err != nil {
		return nil, err
	}
	var inner strings.Builder
	deps := map[string]struct{}{}
	members := st.Members()
	for _, member := range members {
		switch m := member.(type) {
		case *symbols.Field:
			decl, err := em.declare(m.Type, m.Name())
			if err != nil {
				return nil, err
			}
			namedTypeDeps(m.Type, deps)
			inner.WriteString(decl + ";\n")
		case *symbols.Function:
			for _, overload := range m.Overloads() {
				code, headers, err := em.emitOverload(overload)
				if err != nil {
					return nil, err
				}
				for _, d := range signatureDeps(overload) {
					deps[d] = struct{}{}
				}
				for _, h := range headers {
					em.addHeader(h)
				}
				inner.WriteString(code)
			}
		}
	}
	// The struct's own name is never a dependency of itself.
	delete(deps, st.TypeName())
	code := "struct " + id.Name + "\n{\n" + indent(inner.String()) + "\n};\n"
	return &Fragment{Name: st.TypeName(), Deps: setToSlice(deps), NS: ns, Code: code}, nil
}

// overloadFragment wraps one free-function overload as a fragment.
func (em *Emitter) overloadFragment(overload *symbols.FunctionOverload, ns []string) (*Fragment, error) {
	code, headers, err := em.emitOverload(overload)
	if err != nil {
		return nil, err
	}
	return &Fragment{
		Name:    overload.Func.FullName() + "#" + overload.String(),
		Deps:    signatureDeps(overload),
		NS:      ns,
		Code:    code,
		Headers: headers,
	}, nil
}

// emitOverload dispatches between plain functions and multiframe
// state-machine structs.
func (em *Emitter) emitOverload(overload *symbols.FunctionOverload) (string, []string, error) {
	var headers []string
	if overload.CppInclude != "" {
		headers = append(headers, "\""+overload.CppInclude+"\"")
	}
	if overload.IsMultiframe {
		if overload.IsExtern {
			return "", nil, diag.Errorf(diag.Type, "extern multiframe functions are not supported: %s", overload)
		}
		code, err := em.emitMultiframe(overload)
		return code, headers, err
	}

	funID, err := em.identifier(overload.Func)
	if err != nil {
		return "", nil, err
	}
	retType, err := em.typeName(overload.ReturnType)
	if err != nil {
		return "", nil, err
	}
	params := overload.Params
	if overload.Func.IsMethod() {
		// The implicit this parameter becomes C++'s own.
		params = params[1:]
	}
	var sig strings.Builder
	sig.WriteString(retType + " " + funID.Name + "(")
	for i, p := range params {
		if i > 0 {
			sig.WriteString(", ")
		}
		em.identify(p, Identifier{Name: p.Name(), FullName: p.Name()})
		decl, err := em.declare(p.Type, p.Name())
		if err != nil {
			return "", nil, err
		}
		sig.WriteString(decl)
	}
	sig.WriteString(")")
	if overload.Func.IsMethod() {
		em.identify(overload.Params[0], Identifier{Name: "this", FullName: "this"})
	}

	impl, _ := overload.Implementation.(ast.Node)
	if impl == nil {
		return sig.String() + ";\n", headers, nil
	}
	body, err := em.emitNode(impl, nil)
	if err != nil {
		return "", nil, err
	}
	return sig.String() + "\n" + body, headers, nil
}

// emitTopLevel emits the statements of the program block that are not
// declarations (those were emitted through the scope walk), in source
// order, recursing through packages.
func (em *Emitter) emitTopLevel(root *ast.Block) (string, error) {
	var out strings.Builder
	var visit func(n ast.Node) error
	visit = func(n ast.Node) error {
		switch v := n.(type) {
		case *ast.Block:
			for _, c := range v.Children() {
				if err := visit(c); err != nil {
					return err
				}
			}
		case *ast.Package:
			for _, c := range v.Children() {
				if err := visit(c); err != nil {
					return err
				}
			}
		case *ast.FuncDecl, *ast.StructDecl, *ast.FieldDecl:
			// Emitted by the scope walk.
		case *ast.VDecl:
			// Emitted as a variable fragment.
		default:
			code, err := em.emitNode(n, nil)
			if err != nil {
				return err
			}
			out.WriteString(code)
			if !strings.HasSuffix(code, "\n") {
				out.WriteString(";\n")
			}
		}
		return nil
	}
	if err := visit(root); err != nil {
		return "", err
	}
	return out.String(), nil
}

// indent shifts text one level right, matching the emitted style.
func indent(text string) string {
	if text == "" {
		return ""
	}
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	for i, l := range lines {
		if l != "" {
			lines[i] = "    " + l
		}
	}
	return strings.Join(lines, "\n")
}
