package cppgen

import (
	"fmt"
	"strings"

	"github.com/notimplife/cels-cc/pkg/ast"
	"github.com/notimplife/cels-cc/pkg/diag"
	"github.com/notimplife/cels-cc/pkg/symbols"
)

// prioFn lets the multiframe emitter intercept node kinds that need
// state-machine treatment before the plain translation below runs.
type prioFn func(n ast.Node) (string, bool, error)

// emitNode translates one AST node to C++ text. Statements come out
// without a trailing semicolon; blocks terminate their children.
func (em *Emitter) emitNode(n ast.Node, prio prioFn) (string, error) {
	if prio != nil {
		if code, handled, err := prio(n); err != nil || handled {
			return code, err
		}
	}

	switch v := n.(type) {
	case *ast.Block:
		var inner strings.Builder
		for _, c := range v.Children() {
			code, err := em.emitNode(c, prio)
			if err != nil {
				return "", err
			}
			if strings.HasSuffix(code, "\n") {
				inner.WriteString(code)
			} else {
				inner.WriteString(code + ";\n")
			}
		}
		return "{\n" + indent(inner.String()) + "\n}\n", nil

	case *ast.Assign:
		if ts, ok := v.Right().(*ast.TaskStart); ok {
			return em.emitTaskBind(v.Left(), ts, prio)
		}
		left, err := em.emitNode(v.Left(), prio)
		if err != nil {
			return "", err
		}
		right, err := em.emitNode(v.Right(), prio)
		if err != nil {
			return "", err
		}
		return left + " = " + right, nil

	case *ast.VDecl:
		em.identify(v.Var, Identifier{Name: v.Var.Name(), FullName: v.Var.Name()})
		return em.declare(v.Var.Type, v.Var.Name())

	case *ast.SymbolTerm:
		id, err := em.identifier(v.Sym)
		if err != nil {
			return "", err
		}
		return id.FullName, nil

	case *ast.Literal:
		return em.emitLiteral(v)

	case *ast.BinaryOp:
		left, err := em.emitNode(v.Left(), prio)
		if err != nil {
			return "", err
		}
		right, err := em.emitNode(v.Right(), prio)
		if err != nil {
			return "", err
		}
		return "(" + left + " " + v.Op.Symbol + " " + right + ")", nil

	case *ast.UnaryOp:
		operand, err := em.emitNode(v.Operand(), prio)
		if err != nil {
			return "", err
		}
		symbol := v.Op.Symbol
		if symbol == "not" {
			symbol = "!"
		}
		if v.Op.Fix == symbols.Postfix {
			return "(" + operand + symbol + ")", nil
		}
		return "(" + symbol + operand + ")", nil

	case *ast.TypeConvert:
		inner, err := em.emitNode(v.Expression(), prio)
		if err != nil {
			return "", err
		}
		target, err := em.typeName(v.Type())
		if err != nil {
			return "", err
		}
		return "((" + target + ")(" + inner + "))", nil

	case *ast.AddressOf:
		operand, err := em.emitNode(v.Operand(), prio)
		if err != nil {
			return "", err
		}
		return "(&" + operand + ")", nil

	case *ast.Dereference:
		operand, err := em.emitNode(v.Operand(), prio)
		if err != nil {
			return "", err
		}
		return "*(" + operand + ")", nil

	case *ast.FieldAccessor:
		element, err := em.emitNode(v.Element(), prio)
		if err != nil {
			return "", err
		}
		return "(" + element + ")." + v.Field.Name(), nil

	case *ast.IndexAccess:
		element, err := em.emitNode(v.Element(), prio)
		if err != nil {
			return "", err
		}
		key, err := em.emitNode(v.Key(), prio)
		if err != nil {
			return "", err
		}
		return element + "[" + key + "]", nil

	case *ast.Call:
		return em.emitCall(v, prio)

	case *ast.Return:
		if v.Value() == nil {
			return "return", nil
		}
		value, err := em.emitNode(v.Value(), prio)
		if err != nil {
			return "", err
		}
		return "return " + value, nil

	case *ast.While:
		cond, err := em.emitNode(v.Condition(), prio)
		if err != nil {
			return "", err
		}
		body, err := em.emitNode(v.Body(), prio)
		if err != nil {
			return "", err
		}
		return "while (" + cond + ")\n" + body, nil

	case *ast.If:
		cond, err := em.emitNode(v.Condition(), prio)
		if err != nil {
			return "", err
		}
		then, err := em.emitNode(v.Then(), prio)
		if err != nil {
			return "", err
		}
		out := "if (" + cond + ")\n" + then
		if v.Else() != nil {
			els, err := em.emitNode(v.Else(), prio)
			if err != nil {
				return "", err
			}
			out += "else\n" + els
		}
		return out, nil

	case *ast.TaskReady:
		task, err := em.emitNode(v.Task(), prio)
		if err != nil {
			return "", err
		}
		return task + ".ready()", nil

	case *ast.TaskResult:
		task, err := em.emitNode(v.Task(), prio)
		if err != nil {
			return "", err
		}
		return task + ".result()", nil

	case *ast.TaskStart:
		return "", diag.Errorf(diag.Type, "taskstart must be bound to a task variable")

	default:
		// Node kinds with no C++ surface leave a marker instead of
		// failing the whole emission.
		return fmt.Sprintf("/* not implemented: node %T */", n), nil
	}
}

func (em *Emitter) emitLiteral(l *ast.Literal) (string, error) {
	switch v := l.Value.(type) {
	case int:
		return fmt.Sprintf("%d", v), nil
	case float64:
		s := fmt.Sprintf("%g", v)
		if !strings.ContainsAny(s, ".eE") {
			s += ".0"
		}
		return s + "f", nil
	case bool:
		if v {
			return "true", nil
		}
		return "false", nil
	case string:
		return fmt.Sprintf("%q", v), nil
	default:
		return "", diag.Errorf(diag.Internal, "literal of unsupported kind %T", l.Value)
	}
}

func (em *Emitter) emitCall(call *ast.Call, prio prioFn) (string, error) {
	funID, err := em.identifier(call.Overload.Func)
	if err != nil {
		return "", err
	}
	args := call.Args()
	// Method calls spell receiver.method(rest): the address-of this
	// argument reverts to the receiver expression.
	if call.Overload.Func.IsMethod() && len(args) > 0 {
		receiver := args[0]
		recvCode := ""
		if addr, ok := receiver.(*ast.AddressOf); ok {
			recvCode, err = em.emitNode(addr.Operand(), prio)
		} else {
			recvCode, err = em.emitNode(receiver, prio)
			recvCode = "(*" + recvCode + ")"
		}
		if err != nil {
			return "", err
		}
		rest, err := em.emitArgs(args[1:], prio)
		if err != nil {
			return "", err
		}
		return "(" + recvCode + ")." + funID.Name + "(" + rest + ")", nil
	}
	argCode, err := em.emitArgs(args, prio)
	if err != nil {
		return "", err
	}
	return funID.FullName + "(" + argCode + ")", nil
}

func (em *Emitter) emitArgs(args []ast.Expr, prio prioFn) (string, error) {
	parts := make([]string, len(args))
	for i, a := range args {
		code, err := em.emitNode(a, prio)
		if err != nil {
			return "", err
		}
		parts[i] = code
	}
	return strings.Join(parts, ", "), nil
}

// emitTaskBind lowers `t = taskstart lambda...` into a push of the
// callee frame, the capture of its parameters, and the attachment of
// the frame to the task slot.
func (em *Emitter) emitTaskBind(lhs ast.Expr, ts *ast.TaskStart, prio prioFn) (string, error) {
	closure := ts.Closure()
	calleeID, err := em.identifier(closure.Overload.Func)
	if err != nil {
		return "", err
	}
	slot, err := em.emitNode(lhs, prio)
	if err != nil {
		return "", err
	}
	var out strings.Builder
	out.WriteString("{\n")
	out.WriteString("    auto* f = ctrl->push<" + calleeID.FullName + ">();\n")
	for i, arg := range closure.CapturedArgs() {
		code, err := em.emitNode(arg, prio)
		if err != nil {
			return "", err
		}
		out.WriteString("    f->params." + closure.Overload.Params[i].Name() + " = " + code + ";\n")
	}
	out.WriteString("    " + slot + ".attach(ctrl, f, " + calleeID.FullName + "::f0);\n")
	out.WriteString("}\n")
	return out.String(), nil
}
