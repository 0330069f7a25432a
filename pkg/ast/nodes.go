package ast

import (
	"fmt"
	"strings"

	"github.com/notimplife/cels-cc/pkg/scope"
	"github.com/notimplife/cels-cc/pkg/symbols"
)

func indent(text string) string {
	if text == "" {
		return ""
	}
	return "  " + strings.Join(strings.Split(text, "\n"), "\n  ")
}

// Block is an ordered statement sequence. Nested blocks passed to
// NewBlock are flattened. Scope records the lexical scope the block was
// parsed under; the multiframe pass allocates extracted temporaries in
// it.
type Block struct {
	NodeBase
	Scope *scope.Scope
}

// NewBlock builds a block from children, splicing nested blocks.
func NewBlock(children ...Node) *Block {
	b := &Block{}
	b.InitNode(b)
	b.RegisterChildList("children")
	for _, c := range flattenBlocks(children) {
		b.AppendChild("children", c)
	}
	return b
}

func flattenBlocks(children []Node) []Node {
	var out []Node
	for _, c := range children {
		if inner, ok := c.(*Block); ok {
			out = append(out, flattenBlocks(Children(inner))...)
		} else {
			out = append(out, c)
		}
	}
	return out
}

// Children returns the block's statements.
func (b *Block) Children() []Node { return b.ChildList("children") }

// Append adds a statement at the end.
func (b *Block) Append(n Node) { b.AppendChild("children", n) }

func (b *Block) String() string {
	parts := make([]string, 0, len(b.Children()))
	for _, c := range b.Children() {
		parts = append(parts, c.String())
	}
	return fmt.Sprintf("[Block(%d)]\n%s", len(parts), strings.Join(parts, ";\n"))
}

// Literal is a constant of a primitive type.
type Literal struct {
	ExprBase
	Value any
}

func NewLiteral(value any, t symbols.DataType) *Literal {
	l := &Literal{Value: value}
	l.InitExpr(l, t)
	return l
}

func (l *Literal) String() string { return fmt.Sprintf("%v:%s", l.Value, l.Type()) }

// VDecl declares a variable; initialisation is a separate Assign.
type VDecl struct {
	NodeBase
	Var *symbols.Variable
}

func NewVDecl(v *symbols.Variable) *VDecl {
	d := &VDecl{Var: v}
	d.InitNode(d)
	return d
}

func (d *VDecl) String() string { return fmt.Sprintf("var %s : %s", d.Var.FullName(), d.Var.Type) }

// Package groups top-level statements under a package scope.
type Package struct {
	NodeBase
	Name  string
	Scope *scope.Scope
}

// NewPackage adopts the children of block.
func NewPackage(name string, block *Block, s *scope.Scope) *Package {
	p := &Package{Name: name, Scope: s}
	p.InitNode(p)
	p.RegisterChildList("children")
	for _, c := range append([]Node(nil), Children(block)...) {
		p.AppendChild("children", c)
	}
	return p
}

func (p *Package) Children() []Node { return p.ChildList("children") }

func (p *Package) String() string {
	parts := make([]string, 0, len(p.Children()))
	for _, c := range p.Children() {
		parts = append(parts, c.String())
	}
	return fmt.Sprintf("package %s begin\n%s\nend", p.Name, indent(strings.Join(parts, ";\n")))
}

// BinaryOp applies a resolved binary operator.
type BinaryOp struct {
	ExprBase
	Op *symbols.BinaryOperator
}

func NewBinaryOp(op *symbols.BinaryOperator, left, right Expr) *BinaryOp {
	n := &BinaryOp{Op: op}
	n.InitExpr(n, op.Result)
	n.RegisterChild("left")
	n.RegisterChild("right")
	n.SetChild("left", left)
	n.SetChild("right", right)
	return n
}

func (n *BinaryOp) Left() Expr  { return n.Child("left").(Expr) }
func (n *BinaryOp) Right() Expr { return n.Child("right").(Expr) }

func (n *BinaryOp) String() string {
	return fmt.Sprintf("(%s%s%s)", n.Left(), n.Op.Symbol, n.Right())
}

// UnaryOp applies a resolved unary operator.
type UnaryOp struct {
	ExprBase
	Op *symbols.UnaryOperator
}

func NewUnaryOp(op *symbols.UnaryOperator, operand Expr) *UnaryOp {
	n := &UnaryOp{Op: op}
	n.InitExpr(n, op.Result)
	n.RegisterChild("operand")
	n.SetChild("operand", operand)
	return n
}

func (n *UnaryOp) Operand() Expr { return n.Child("operand").(Expr) }

func (n *UnaryOp) String() string {
	if n.Op.Fix == symbols.Postfix {
		return fmt.Sprintf("(%s %s)", n.Operand(), n.Op.Symbol)
	}
	return fmt.Sprintf("(%s %s)", n.Op.Symbol, n.Operand())
}

// SymbolTerm references a variable, parameter, or function symbol.
type SymbolTerm struct {
	ExprBase
	Sym scope.Symbol
}

// NewSymbolTerm types the term from the symbol, or from the explicit
// marker type for function symbols.
func NewSymbolTerm(sym scope.Symbol, explicit symbols.DataType) *SymbolTerm {
	t := explicit
	if dt := symbols.DataTypeOf(sym); dt != nil {
		t = dt
	}
	n := &SymbolTerm{Sym: sym}
	n.InitExpr(n, t)
	return n
}

func (n *SymbolTerm) addressable() {}

func (n *SymbolTerm) String() string { return fmt.Sprintf("%s:%s", n.Sym.FullName(), n.Type()) }

// While loops on a condition.
type While struct {
	NodeBase
}

func NewWhile(cond Expr, block Node) *While {
	n := &While{}
	n.InitNode(n)
	n.RegisterChild("condition")
	n.RegisterChild("block")
	n.SetChild("condition", cond)
	n.SetChild("block", block)
	return n
}

func (n *While) Condition() Expr { return n.Child("condition").(Expr) }
func (n *While) Body() Node      { return n.Child("block") }

func (n *While) String() string {
	return fmt.Sprintf("while %s do begin\n%s\nend", n.Condition(), indent(n.Body().String()))
}

// If branches on a condition; the else branch may be nil.
type If struct {
	NodeBase
}

func NewIf(cond Expr, then, els Node) *If {
	n := &If{}
	n.InitNode(n)
	n.RegisterChild("condition")
	n.RegisterChild("then_branch")
	n.RegisterChild("else_branch")
	n.SetChild("condition", cond)
	n.SetChild("then_branch", then)
	if els != nil {
		n.SetChild("else_branch", els)
	}
	return n
}

func (n *If) Condition() Expr { return n.Child("condition").(Expr) }
func (n *If) Then() Node      { return n.Child("then_branch") }
func (n *If) Else() Node      { return n.Child("else_branch") }

func (n *If) String() string {
	if n.Else() != nil {
		return fmt.Sprintf("if %s then\n%s\nelse\n%s\nfi", n.Condition(), indent(n.Then().String()), indent(n.Else().String()))
	}
	return fmt.Sprintf("if %s then\n%s\nfi", n.Condition(), indent(n.Then().String()))
}

// Assign stores right into left.
type Assign struct {
	NodeBase
}

func NewAssign(left, right Expr) *Assign {
	n := &Assign{}
	n.InitNode(n)
	n.RegisterChild("left")
	n.RegisterChild("right")
	n.SetChild("left", left)
	n.SetChild("right", right)
	return n
}

func (n *Assign) Left() Expr  { return n.Child("left").(Expr) }
func (n *Assign) Right() Expr { return n.Child("right").(Expr) }

func (n *Assign) String() string { return fmt.Sprintf("%s = %s", n.Left(), n.Right()) }

// TypeConvert applies a registered implicit converter.
type TypeConvert struct {
	ExprBase
	Conv *symbols.TypeConverter
}

func NewTypeConvert(expr Expr, conv *symbols.TypeConverter) *TypeConvert {
	n := &TypeConvert{Conv: conv}
	n.InitExpr(n, conv.To)
	n.RegisterChild("expression")
	n.SetChild("expression", expr)
	return n
}

func (n *TypeConvert) Expression() Expr { return n.Child("expression").(Expr) }

func (n *TypeConvert) String() string { return fmt.Sprintf("conv(%s, %s)", n.Expression(), n.Type()) }

// FuncDecl declares one function overload; the implementation child
// mirrors the overload's body so tree walks reach it.
type FuncDecl struct {
	NodeBase
	Overload *symbols.FunctionOverload
}

func NewFuncDecl(overload *symbols.FunctionOverload) *FuncDecl {
	n := &FuncDecl{Overload: overload}
	n.InitNode(n)
	n.RegisterChild("implementation")
	if impl, ok := overload.Implementation.(Node); ok && impl != nil {
		n.SetChild("implementation", impl)
	}
	return n
}

func (n *FuncDecl) Implementation() Node { return n.Child("implementation") }

func (n *FuncDecl) String() string {
	var flags []string
	if n.Overload.IsExtern {
		flags = append(flags, "E")
	}
	if n.Overload.IsMultiframe {
		flags = append(flags, "M")
	}
	if n.Overload.CppInclude != "" {
		flags = append(flags, "C")
	}
	flagStr := ""
	if len(flags) > 0 {
		flagStr = "[" + strings.Join(flags, "") + "]"
	}
	body := ""
	if impl := n.Implementation(); impl != nil {
		body = "\nbegin\n" + indent(impl.String()) + "\nend"
	}
	return fmt.Sprintf("function%s %s%s", flagStr, n.Overload, body)
}

// StructDecl declares a struct with its member declarations.
type StructDecl struct {
	NodeBase
	Type *symbols.StructType
}

func NewStructDecl(t *symbols.StructType, members []Node) *StructDecl {
	n := &StructDecl{Type: t}
	n.InitNode(n)
	n.RegisterChildList("members")
	for _, m := range members {
		n.AppendChild("members", m)
	}
	return n
}

func (n *StructDecl) Members() []Node { return n.ChildList("members") }

func (n *StructDecl) String() string {
	parts := make([]string, 0, len(n.Members()))
	for _, m := range n.Members() {
		parts = append(parts, m.String())
	}
	return fmt.Sprintf("struct %s begin\n%s\nend", n.Type.FullName(), indent(strings.Join(parts, ";\n")))
}

// AddressOf takes the address of an addressable expression.
type AddressOf struct {
	ExprBase
}

func NewAddressOf(operand Addressable) *AddressOf {
	n := &AddressOf{}
	n.InitExpr(n, symbols.MakePointer(operand.Type()))
	n.RegisterChild("operand")
	n.SetChild("operand", operand)
	return n
}

func (n *AddressOf) Operand() Expr { return n.Child("operand").(Expr) }

func (n *AddressOf) String() string { return fmt.Sprintf("addressof(%s):%s", n.Operand(), n.Type()) }

// Dereference loads through a pointer expression.
type Dereference struct {
	ExprBase
}

// NewDereference types the node as the pointer's element type; the
// builder validates the operand is a pointer.
func NewDereference(operand Expr, element symbols.DataType) *Dereference {
	n := &Dereference{}
	n.InitExpr(n, element)
	n.RegisterChild("operand")
	n.SetChild("operand", operand)
	return n
}

func (n *Dereference) addressable() {}

func (n *Dereference) Operand() Expr { return n.Child("operand").(Expr) }

func (n *Dereference) String() string {
	return fmt.Sprintf("dereference(%s):%s", n.Operand(), n.Type())
}

// FieldDecl declares a struct field.
type FieldDecl struct {
	NodeBase
	Field *symbols.Field
}

func NewFieldDecl(f *symbols.Field) *FieldDecl {
	n := &FieldDecl{Field: f}
	n.InitNode(n)
	return n
}

func (n *FieldDecl) String() string {
	return fmt.Sprintf("field %s: %s", n.Field.FullName(), n.Field.Type)
}

// FieldAccessor reads a field of a struct-typed expression.
type FieldAccessor struct {
	ExprBase
	Field *symbols.Field
}

func NewFieldAccessor(element Expr, f *symbols.Field) *FieldAccessor {
	n := &FieldAccessor{Field: f}
	n.InitExpr(n, f.Type)
	n.RegisterChild("element")
	n.SetChild("element", element)
	return n
}

func (n *FieldAccessor) addressable() {}

func (n *FieldAccessor) Element() Expr { return n.Child("element").(Expr) }

func (n *FieldAccessor) String() string {
	return fmt.Sprintf("(%s).%s:%s", n.Element(), n.Field.Name(), n.Type())
}

// MethodAccessor binds a method to a receiver expression; its type is
// the @instance_method marker, callable only.
type MethodAccessor struct {
	ExprBase
	Method *symbols.Function
}

func NewMethodAccessor(element Expr, method *symbols.Function, marker symbols.DataType) *MethodAccessor {
	n := &MethodAccessor{Method: method}
	n.InitExpr(n, marker)
	n.RegisterChild("element")
	n.SetChild("element", element)
	return n
}

func (n *MethodAccessor) Element() Expr { return n.Child("element").(Expr) }

func (n *MethodAccessor) String() string {
	return fmt.Sprintf("(%s).%s", n.Element(), n.Method.Name())
}

// IndexAccess applies a resolved indexer.
type IndexAccess struct {
	ExprBase
	Indexer *symbols.Indexer
}

func NewIndexAccess(element, key Expr, ix *symbols.Indexer) *IndexAccess {
	n := &IndexAccess{Indexer: ix}
	n.InitExpr(n, ix.Output)
	n.RegisterChild("element")
	n.RegisterChild("key")
	n.SetChild("element", element)
	n.SetChild("key", key)
	return n
}

func (n *IndexAccess) addressable() {}

func (n *IndexAccess) Element() Expr { return n.Child("element").(Expr) }
func (n *IndexAccess) Key() Expr     { return n.Child("key").(Expr) }

func (n *IndexAccess) String() string {
	return fmt.Sprintf("%s[%s]:%s", n.Element(), n.Key(), n.Type())
}

// Call invokes one resolved function overload. For closure calls the
// implementation is linked as a child so tree walks reach the lambda
// body.
type Call struct {
	ExprBase
	Overload *symbols.FunctionOverload
}

func NewCall(overload *symbols.FunctionOverload, args []Expr, includeImpl bool) *Call {
	n := &Call{Overload: overload}
	n.InitExpr(n, overload.ReturnType)
	n.RegisterChildList("args")
	n.RegisterChild("impl_ref")
	for _, a := range args {
		n.AppendChild("args", a)
	}
	if includeImpl {
		if impl, ok := overload.Implementation.(Node); ok && impl != nil {
			n.SetChild("impl_ref", impl)
		}
	}
	return n
}

// Args returns the argument expressions.
func (n *Call) Args() []Expr {
	children := n.ChildList("args")
	out := make([]Expr, len(children))
	for i, c := range children {
		out[i] = c.(Expr)
	}
	return out
}

func (n *Call) String() string {
	parts := make([]string, 0, len(n.Args()))
	for _, a := range n.Args() {
		parts = append(parts, a.String())
	}
	mf := ""
	if n.Overload.IsMultiframe {
		mf = "<M>"
	}
	return fmt.Sprintf("%s%s(%s)", n.Overload.Func.FullName(), mf, strings.Join(parts, ", "))
}

// Return exits the enclosing function, optionally with a value.
type Return struct {
	NodeBase
}

func NewReturn(value Expr) *Return {
	n := &Return{}
	n.InitNode(n)
	n.RegisterChild("value")
	if value != nil {
		n.SetChild("value", value)
	}
	return n
}

func (n *Return) Value() Expr {
	if v := n.Child("value"); v != nil {
		return v.(Expr)
	}
	return nil
}

func (n *Return) String() string {
	if v := n.Value(); v != nil {
		return "return " + v.String()
	}
	return "return"
}

// Suspend yields control to the host controller.
type Suspend struct {
	NodeBase
}

func NewSuspend() *Suspend {
	n := &Suspend{}
	n.InitNode(n)
	return n
}

func (n *Suspend) String() string { return "suspend" }

// Break exits the innermost loop.
type Break struct {
	NodeBase
}

func NewBreak() *Break {
	n := &Break{}
	n.InitNode(n)
	return n
}

func (n *Break) String() string { return "break" }

// Continue restarts the innermost loop.
type Continue struct {
	NodeBase
}

func NewContinue() *Continue {
	n := &Continue{}
	n.InitNode(n)
	return n
}

func (n *Continue) String() string { return "continue" }

// FunctionClosure is a lambda expression: a synthetic overload plus the
// address-of arguments of its captured symbols.
type FunctionClosure struct {
	ExprBase
	Overload *symbols.FunctionOverload
}

func NewFunctionClosure(overload *symbols.FunctionOverload, closureType symbols.DataType, capturedArgs []Expr) *FunctionClosure {
	n := &FunctionClosure{Overload: overload}
	n.InitExpr(n, closureType)
	n.RegisterChildList("captured_args")
	n.RegisterChild("implementation")
	for _, a := range capturedArgs {
		n.AppendChild("captured_args", a)
	}
	if impl, ok := overload.Implementation.(Node); ok && impl != nil {
		n.SetChild("implementation", impl)
	}
	return n
}

func (n *FunctionClosure) CapturedArgs() []Expr {
	children := n.ChildList("captured_args")
	out := make([]Expr, len(children))
	for i, c := range children {
		out[i] = c.(Expr)
	}
	return out
}

func (n *FunctionClosure) Implementation() Node { return n.Child("implementation") }

func (n *FunctionClosure) String() string {
	parts := make([]string, 0, len(n.CapturedArgs()))
	for _, a := range n.CapturedArgs() {
		parts = append(parts, a.String())
	}
	return fmt.Sprintf("(lambda %s[%s])", n.Overload.Func.FullName(), strings.Join(parts, ", "))
}

// TaskStart launches a closure as a task bound to a fresh callee frame.
type TaskStart struct {
	ExprBase
}

func NewTaskStart(closure *FunctionClosure, taskType *symbols.TaskType) *TaskStart {
	n := &TaskStart{}
	n.InitExpr(n, taskType)
	n.RegisterChild("closure")
	n.SetChild("closure", closure)
	return n
}

func (n *TaskStart) Closure() *FunctionClosure { return n.Child("closure").(*FunctionClosure) }

func (n *TaskStart) String() string { return fmt.Sprintf("taskstart %s:%s", n.Closure(), n.Type()) }

// TaskReady queries a task's completion flag without blocking.
type TaskReady struct {
	ExprBase
}

func NewTaskReady(task Expr, boolType symbols.DataType) *TaskReady {
	n := &TaskReady{}
	n.InitExpr(n, boolType)
	n.RegisterChild("task")
	n.SetChild("task", task)
	return n
}

func (n *TaskReady) Task() Expr { return n.Child("task").(Expr) }

func (n *TaskReady) String() string { return fmt.Sprintf("taskready(%s)", n.Task()) }

// TaskResult reads a finished task's value; its type is the task's
// element type.
type TaskResult struct {
	ExprBase
}

func NewTaskResult(task Expr, element symbols.DataType) *TaskResult {
	n := &TaskResult{}
	n.InitExpr(n, element)
	n.RegisterChild("task")
	n.SetChild("task", task)
	return n
}

func (n *TaskResult) Task() Expr { return n.Child("task").(Expr) }

func (n *TaskResult) String() string { return fmt.Sprintf("taskresult(%s):%s", n.Task(), n.Type()) }
