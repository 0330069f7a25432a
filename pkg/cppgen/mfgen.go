package cppgen

import (
	"strconv"
	"strings"

	"github.com/notimplife/cels-cc/pkg/ast"
	"github.com/notimplife/cels-cc/pkg/diag"
	"github.com/notimplife/cels-cc/pkg/multiframe"
	"github.com/notimplife/cels-cc/pkg/symbols"
)

// emitMultiframe lowers one multiframe overload to a state-machine
// struct: a params struct, an optional return_value, the hoisted
// locals (task-typed ones as TaskData slots), one f<k> entry point per
// functional component, and f_cleanup detaching every task slot.
func (em *Emitter) emitMultiframe(overload *symbols.FunctionOverload) (string, error) {
	funID, err := em.identifier(overload.Func)
	if err != nil {
		return "", err
	}

	cfg, err := multiframe.NewCFG(overload)
	if err != nil {
		return "", err
	}
	if err := cfg.Ungroup(); err != nil {
		return "", err
	}
	components, err := cfg.FindComponents()
	if err != nil {
		return "", err
	}

	em.addHeader(celestaHeader)

	var inner strings.Builder

	if len(overload.Params) > 0 {
		var fields strings.Builder
		for _, p := range overload.Params {
			em.identify(p, Identifier{Name: p.Name(), FullName: "ctx->params." + p.Name()})
			decl, err := em.declare(p.Type, p.Name())
			if err != nil {
				return "", err
			}
			fields.WriteString(decl + ";\n")
		}
		inner.WriteString("struct\n{\n" + indent(fields.String()) + "\n} params;\n")
	}

	if !symbols.Same(overload.ReturnType, em.Env.DtypeVoid) {
		retType, err := em.typeName(overload.ReturnType)
		if err != nil {
			return "", err
		}
		inner.WriteString(retType + " return_value;\n")
	}

	state := &mfState{structName: funID.Name, seen: map[string]struct{}{}}
	var compCode []string
	for _, comp := range multiframe.SortedComponents(components) {
		code, err := em.emitComponent(comp, state)
		if err != nil {
			return "", err
		}
		compCode = append(compCode, code)
	}

	for _, decl := range state.vdecls {
		inner.WriteString(decl + ";\n")
	}
	for _, code := range compCode {
		inner.WriteString(code)
	}
	inner.WriteString(em.emitCleanup(state))

	return "struct " + funID.Name + "\n{\n" + indent(inner.String()) + "\n};\n", nil
}

// mfState accumulates hoisted locals while components are emitted.
type mfState struct {
	structName string
	vdecls     []string
	taskSlots  []string
	seen       map[string]struct{}
}

// emitCleanup emits f_cleanup; cancellation invokes it on every live
// frame, so it must detach every task-typed local.
func (em *Emitter) emitCleanup(state *mfState) string {
	var body strings.Builder
	if len(state.taskSlots) > 0 {
		body.WriteString("auto* ctx = (" + state.structName + "*)_ctx;\n")
		for _, name := range state.taskSlots {
			body.WriteString("ctx->" + name + ".detach();\n")
		}
	}
	return "inline static void f_cleanup(void* _ctx, Celesta::ExecutionController* ctrl)\n{\n" +
		indent(body.String()) + "\n}\n\n"
}

// emitComponent emits one f<k> entry point: a label per CFG node,
// gotos along flow edges, and the suspension protocol at suspension
// points.
func (em *Emitter) emitComponent(comp *multiframe.Component, state *mfState) (string, error) {
	prio := func(n ast.Node) (string, bool, error) {
		switch v := n.(type) {
		case *ast.VDecl:
			em.identify(v.Var, Identifier{Name: v.Var.Name(), FullName: "ctx->" + v.Var.Name()})
			if _, dup := state.seen[v.Var.Name()]; !dup {
				state.seen[v.Var.Name()] = struct{}{}
				decl, err := em.declare(v.Var.Type, v.Var.Name())
				if err != nil {
					return "", true, err
				}
				state.vdecls = append(state.vdecls, decl)
				if _, isTask := symbols.IsTask(v.Var.Type); isTask {
					state.taskSlots = append(state.taskSlots, v.Var.Name())
				}
			}
			return "", true, nil

		case *ast.Suspend:
			return "ctrl->suspend();\n", true, nil

		case *ast.Return:
			var out strings.Builder
			if v.Value() != nil {
				value, err := em.emitNode(v.Value(), nil)
				if err != nil {
					return "", true, err
				}
				out.WriteString("ctx->return_value = " + value + ";\n")
			}
			out.WriteString("f_cleanup(_ctx, ctrl);\nctrl->ret(); return;\n")
			return out.String(), true, nil

		case *multiframe.PreCall:
			return em.emitPreCall(v, state)

		case *multiframe.PostCall:
			return em.emitPostCall(v)
		}
		return "", false, nil
	}

	var inner strings.Builder
	inner.WriteString("auto* ctx = (" + state.structName + "*)_ctx;\n")
	inner.WriteString("goto L_" + itoa(comp.Head.ID) + ";\n")

	for _, node := range multiframe.EnumerateNodes(comp.Head) {
		inner.WriteString("L_" + itoa(node.ID) + ":\n")
		switch node.Type {
		case multiframe.NodeConditional:
			cond, err := em.emitNode(node.AST, prio)
			if err != nil {
				return "", err
			}
			inner.WriteString("if (" + cond + ")\n")
			inner.WriteString("    goto L_" + itoa(node.Next[1].ID) + "; else goto L_" + itoa(node.Next[0].ID) + ";\n")

		case multiframe.NodeInstr:
			if node.AST != nil {
				code, err := em.emitNode(node.AST, prio)
				if err != nil {
					return "", err
				}
				if !strings.HasSuffix(code, "\n") {
					code += ";\n"
				}
				inner.WriteString(code)
			}
			if len(node.Next) > 0 {
				inner.WriteString("goto L_" + itoa(node.Next[0].ID) + ";\n")
			} else {
				inner.WriteString("return;\n")
			}

		case multiframe.NodeFuncJump:
			inner.WriteString("ctrl->jump(ctx, " + state.structName + "::f" + itoa(node.Comp.ID) + "); return;\n")

		case multiframe.NodeEnd:
			inner.WriteString("f_cleanup(_ctx, ctrl);\nctrl->ret(); return;\n")

		default:
			return "", diag.Errorf(diag.Internal, "unknown CFG node type %c", node.Type)
		}
	}

	return "inline static void f" + itoa(comp.ID) + "(void* _ctx, Celesta::ExecutionController* ctrl)\n{\n" +
		indent(inner.String()) + "\n}\n\n", nil
}

// emitPreCall captures the arguments, pushes the callee frame and hands
// control to it; the caller resumes in component JumpF.
func (em *Emitter) emitPreCall(pre *multiframe.PreCall, state *mfState) (string, bool, error) {
	calleeID, err := em.identifier(pre.Call.Overload.Func)
	if err != nil {
		return "", true, err
	}
	var out strings.Builder
	out.WriteString("{\n")
	out.WriteString("    auto* f = ctrl->push<" + calleeID.FullName + ">();\n")
	for i, arg := range pre.Call.Args() {
		code, err := em.emitNode(arg, nil)
		if err != nil {
			return "", true, err
		}
		out.WriteString("    f->params." + pre.Call.Overload.Params[i].Name() + " = " + code + ";\n")
	}
	out.WriteString("    ctrl->call(f, " + calleeID.FullName + "::f0, ctx, " +
		state.structName + "::f" + itoa(pre.JumpF) + ");\n")
	out.WriteString("    return;\n")
	out.WriteString("}\n")
	return out.String(), true, nil
}

// emitPostCall reads the callee's return value and pops its frame.
func (em *Emitter) emitPostCall(post *multiframe.PostCall) (string, bool, error) {
	calleeID, err := em.identifier(post.Call.Overload.Func)
	if err != nil {
		return "", true, err
	}
	var out strings.Builder
	if post.ResultLHS != nil {
		lhs, err := em.emitNode(post.ResultLHS, nil)
		if err != nil {
			return "", true, err
		}
		out.WriteString("{\n")
		out.WriteString("    auto* f = ctrl->peek<" + calleeID.FullName + ">();\n")
		out.WriteString("    " + lhs + " = f->return_value;\n")
		out.WriteString("}\n")
	}
	out.WriteString("ctrl->pop();\n")
	return out.String(), true, nil
}

func itoa(n int) string { return strconv.Itoa(n) }
