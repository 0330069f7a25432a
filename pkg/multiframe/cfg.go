package multiframe

import (
	"fmt"
	"sort"

	"github.com/notimplife/cels-cc/pkg/ast"
	"github.com/notimplife/cels-cc/pkg/diag"
	"github.com/notimplife/cels-cc/pkg/symbols"
)

// NodeType classifies CFG nodes: plain instructions, conditionals,
// jumps into another functional component, and the end node.
const (
	NodeInstr       = 'i'
	NodeConditional = 'c'
	NodeFuncJump    = 'f'
	NodeEnd         = 'e'
)

// Node is one CFG node. Conditionals hold the condition expression and
// order their successors [false, true]; f-nodes reference the component
// they jump into.
type Node struct {
	ID   int
	Type byte
	AST  ast.Node
	Next []*Node
	Comp *Component // target component of an f-node
}

func (n *Node) String() string {
	next := make([]int, len(n.Next))
	for i, s := range n.Next {
		next[i] = s.ID
	}
	if n.Type == NodeFuncJump {
		return fmt.Sprintf("{Node #%d f, next=%v, f_head=%d}", n.ID, next, n.Comp.ID)
	}
	astStr := "None"
	if n.AST != nil {
		astStr = n.AST.String()
	}
	return fmt.Sprintf("{Node #%d %c, next=%v, ast=%s}", n.ID, n.Type, next, astStr)
}

// Component is one functional component: a maximal subgraph executable
// without crossing a suspension point, entered at Head. The entry
// component has id 1.
type Component struct {
	ID   int
	Head *Node
}

// PreCall is the first half of a split multiframe call: it captures the
// arguments, pushes the callee frame, and records the component to
// resume in.
type PreCall struct {
	ast.NodeBase
	Call      *ast.Call
	ResultLHS ast.Expr // nil for calls in statement position
	JumpF     int      // component id resumed after the callee returns
}

// NewPreCall detaches nothing; the CFG owns the pseudo node.
func NewPreCall(call *ast.Call, lhs ast.Expr) *PreCall {
	p := &PreCall{Call: call, ResultLHS: lhs}
	p.InitNode(p)
	return p
}

func (p *PreCall) String() string { return fmt.Sprintf("pre[%s]", p.Call) }

// PostCall is the second half: it reads the callee's return value and
// pops the frame.
type PostCall struct {
	ast.NodeBase
	Call      *ast.Call
	ResultLHS ast.Expr
}

func NewPostCall(call *ast.Call, lhs ast.Expr) *PostCall {
	p := &PostCall{Call: call, ResultLHS: lhs}
	p.InitNode(p)
	return p
}

func (p *PostCall) String() string { return fmt.Sprintf("post[%s]", p.Call) }

// CFG is the control-flow graph of one multiframe overload.
type CFG struct {
	Overload *symbols.FunctionOverload

	nextID int
	start  *Node
	graph  *Node
	end    *Node
}

// NewCFG wraps the overload's implementation between a start and an end
// node.
func NewCFG(overload *symbols.FunctionOverload) (*CFG, error) {
	impl, _ := overload.Implementation.(ast.Node)
	if impl == nil {
		return nil, diag.Errorf(diag.Internal, "multiframe overload %s has no implementation", overload)
	}
	c := &CFG{Overload: overload}
	c.start = c.newNode(nil, NodeInstr)
	c.graph = c.newNode(impl, NodeInstr)
	c.end = c.newNode(nil, NodeEnd)
	c.start.Next = []*Node{c.graph}
	c.graph.Next = []*Node{c.end}
	return c, nil
}

func (c *CFG) newNode(a ast.Node, typ byte) *Node {
	c.nextID++
	return &Node{ID: c.nextID, Type: typ, AST: a}
}

// Start returns the pre-entry node.
func (c *CFG) Start() *Node { return c.start }

// EnumerateNodes yields every node reachable from n, depth-first.
func EnumerateNodes(n *Node) []*Node {
	visited := map[int]struct{}{}
	stack := []*Node{n}
	var out []*Node
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, ok := visited[cur.ID]; ok {
			continue
		}
		visited[cur.ID] = struct{}{}
		out = append(out, cur)
		stack = append(stack, cur.Next...)
	}
	return out
}

// jumpLinks records break/continue targets while ungrouping loops.
type jumpLinks struct {
	breaks    map[ast.Node][]*Node
	continues map[ast.Node][]*Node
}

// Ungroup flattens the AST into single-instruction nodes: blocks become
// chains, whiles become conditionals with a back edge, ifs reconverge
// on a shared successor, break/continue redirect to the targets their
// loop recorded.
func (c *CFG) Ungroup() error {
	links := &jumpLinks{breaks: map[ast.Node][]*Node{}, continues: map[ast.Node][]*Node{}}
	return c.ungroupNode(c.graph, links)
}

func (c *CFG) ungroupNode(n *Node, links *jumpLinks) error {
	switch a := n.AST.(type) {
	case *ast.Block:
		children := ast.Children(a)
		if len(children) == 0 {
			n.AST = nil
			return nil
		}
		oldNext := n.Next
		nodes := make([]*Node, len(children))
		nodes[0] = n
		n.AST = children[0]
		for i := 1; i < len(children); i++ {
			nodes[i] = c.newNode(children[i], NodeInstr)
		}
		for i := 0; i < len(nodes)-1; i++ {
			nodes[i].Next = []*Node{nodes[i+1]}
		}
		nodes[len(nodes)-1].Next = oldNext
		for _, node := range nodes {
			if err := c.ungroupNode(node, links); err != nil {
				return err
			}
		}
		return nil

	case *ast.While:
		cond := a.Condition()
		body := a.Body()

		// Collect this loop's own jumps; nested loops keep theirs.
		var breaks, continues []ast.Node
		ast.Walk(a, func(child ast.Node) bool {
			if w, ok := child.(*ast.While); ok && w != a {
				return true
			}
			switch child.(type) {
			case *ast.Break:
				breaks = append(breaks, child)
			case *ast.Continue:
				continues = append(continues, child)
			}
			return false
		})

		if len(n.Next) != 1 {
			return diag.Errorf(diag.Internal, "while node with %d successors", len(n.Next))
		}
		bodyNode := c.newNode(body, NodeInstr)
		bodyNode.Next = []*Node{n}
		n.Next = append(n.Next, bodyNode) // [false, true]
		n.AST = cond
		n.Type = NodeConditional

		for _, br := range breaks {
			links.breaks[br] = []*Node{n.Next[0]}
		}
		for _, co := range continues {
			links.continues[co] = []*Node{n}
		}
		return c.ungroupNode(bodyNode, links)

	case *ast.Break:
		target, ok := links.breaks[a]
		if !ok {
			return diag.Errorf(diag.Syntax, "break outside of a loop")
		}
		n.Next = target
		return nil

	case *ast.Continue:
		target, ok := links.continues[a]
		if !ok {
			return diag.Errorf(diag.Syntax, "continue outside of a loop")
		}
		n.Next = target
		return nil

	case *ast.If:
		endNode := c.newNode(nil, NodeInstr)
		endNode.Next = n.Next

		thenNode := c.newNode(a.Then(), NodeInstr)
		thenNode.Next = []*Node{endNode}
		n.Next = []*Node{endNode, thenNode} // [false/else, true]

		var elseNode *Node
		if a.Else() != nil {
			elseNode = c.newNode(a.Else(), NodeInstr)
			elseNode.Next = []*Node{endNode}
			n.Next[0] = elseNode
		}
		n.AST = a.Condition()
		n.Type = NodeConditional

		if err := c.ungroupNode(thenNode, links); err != nil {
			return err
		}
		if elseNode != nil {
			return c.ungroupNode(elseNode, links)
		}
		return nil
	}
	return nil
}

// isSuspension reports whether a node yields control to the host: an
// explicit suspend or the pre half of a multiframe call.
func isSuspension(n *Node) bool {
	switch n.AST.(type) {
	case *ast.Suspend, *PreCall:
		return true
	}
	return false
}

// splitCalls turns every multiframe-call instruction into a [Pre, Post]
// pair. Extraction has already guaranteed that such calls appear either
// bare or as the right-hand side of an assignment.
func (c *CFG) splitCalls() {
	var callNodes []*Node
	for _, n := range EnumerateNodes(c.start) {
		if _, _, ok := multiframeCallOf(n.AST); ok {
			callNodes = append(callNodes, n)
		}
	}
	for _, n := range callNodes {
		call, lhs, _ := multiframeCallOf(n.AST)
		post := c.newNode(NewPostCall(call, lhs), NodeInstr)
		post.Next = n.Next
		n.AST = NewPreCall(call, lhs)
		n.Next = []*Node{post}
	}
}

// multiframeCallOf matches `lhs = call(...)` and bare `call(...)` nodes
// for multiframe callees.
func multiframeCallOf(a ast.Node) (*ast.Call, ast.Expr, bool) {
	switch v := a.(type) {
	case *ast.Assign:
		if call, ok := v.Right().(*ast.Call); ok && call.Overload.IsMultiframe {
			return call, v.Left(), true
		}
	case *ast.Call:
		if v.Overload.IsMultiframe {
			return v, nil, true
		}
	}
	return nil, nil, false
}

// FindComponents partitions the ungrouped CFG into functional
// components: nodes are labelled with the set of BFS waves reaching
// them without crossing a suspension point; distinct label sets are
// distinct components, and every inter-component edge is rewritten to
// route through an f-node referencing the callee component.
func (c *CFG) FindComponents() (map[int]*Component, error) {
	c.splitCalls()

	labels := map[int][]int{}
	heads := map[int]struct{}{}
	all := func() []*Node { return EnumerateNodes(c.start) }
	for _, n := range all() {
		labels[n.ID] = nil
	}

	bfs := func(start *Node, wave int) []*Node {
		var suspends []*Node
		queue := []*Node{start}
		visited := map[int]struct{}{start.ID: {}}
		for len(queue) > 0 {
			n := queue[0]
			queue = queue[1:]
			labels[n.ID] = append(labels[n.ID], wave)
			if isSuspension(n) {
				suspends = append(suspends, n)
				continue
			}
			for _, next := range n.Next {
				_, seen := visited[next.ID]
				_, isHead := heads[next.ID]
				if !seen && !isHead {
					visited[next.ID] = struct{}{}
					queue = append(queue, next)
				}
			}
		}
		return suspends
	}

	wave := 1
	heads[c.graph.ID] = struct{}{}
	heads[c.start.ID] = struct{}{}

	frontier := []*Node{c.graph}
	for len(frontier) > 0 {
		var next []*Node
		for _, h := range frontier {
			suspends := bfs(h, wave)
			wave++
			for _, s := range suspends {
				nh := s.Next[0]
				if _, ok := heads[nh.ID]; !ok {
					heads[nh.ID] = struct{}{}
					next = append(next, nh)
				}
			}
			// Nodes whose label set differs from a predecessor's start
			// their own component.
			for _, n := range all() {
				for _, succ := range n.Next {
					if len(labels[n.ID]) == 0 || len(labels[succ.ID]) == 0 {
						continue
					}
					if !equalInts(labels[n.ID], labels[succ.ID]) {
						if _, ok := heads[succ.ID]; !ok {
							heads[succ.ID] = struct{}{}
							next = append(next, succ)
						}
					}
				}
			}
		}
		frontier = next
	}

	// Collapse label sets to dense component ids in enumeration order;
	// the entry component lands on id 1.
	componentOf := map[int]int{}
	labelIDs := map[string]int{}
	for _, n := range all() {
		key := fmt.Sprint(labels[n.ID])
		if _, ok := labelIDs[key]; !ok {
			labelIDs[key] = len(labelIDs)
		}
		componentOf[n.ID] = labelIDs[key]
	}

	components := map[int]*Component{}
	type rerouted struct {
		from *Node
		to   *Node
	}
	reroutes := map[int][]rerouted{}
	for headID := range heads {
		var head *Node
		for _, n := range all() {
			if n.ID == headID {
				head = n
				break
			}
		}
		if head == nil {
			return nil, diag.Errorf(diag.Internal, "component head %d not reachable", headID)
		}
		compID := componentOf[headID]
		var calls []rerouted
		for _, n := range EnumerateNodes(head) {
			if componentOf[n.ID] != compID {
				continue
			}
			for _, succ := range n.Next {
				_, succIsHead := heads[succ.ID]
				if componentOf[succ.ID] != compID || succIsHead {
					calls = append(calls, rerouted{from: n, to: succ})
				}
			}
		}
		components[compID] = &Component{ID: compID, Head: head}
		reroutes[compID] = calls
	}

	// Route inter-component edges through f-nodes once every component
	// exists.
	for _, calls := range reroutes {
		for _, edge := range calls {
			target, ok := components[componentOf[edge.to.ID]]
			if !ok {
				return nil, diag.Errorf(diag.Internal, "edge into unknown component %d", componentOf[edge.to.ID])
			}
			fnode := c.newNode(nil, NodeFuncJump)
			fnode.Comp = target
			for i, succ := range edge.from.Next {
				if succ == edge.to {
					edge.from.Next[i] = fnode
					break
				}
			}
		}
	}

	// Pre nodes record the component they resume in after the callee
	// returns.
	for _, comp := range components {
		for _, n := range EnumerateNodes(comp.Head) {
			pre, ok := n.AST.(*PreCall)
			if !ok {
				continue
			}
			if len(n.Next) != 1 || n.Next[0].Type != NodeFuncJump {
				return nil, diag.Errorf(diag.Internal,
					"multiframe pre-call can only be followed by an f-jump")
			}
			pre.JumpF = n.Next[0].Comp.ID
		}
	}

	for _, comp := range components {
		collapseLinearPaths(comp.Head)
	}
	return components, nil
}

// SortedComponents returns the components ordered by id.
func SortedComponents(components map[int]*Component) []*Component {
	out := make([]*Component, 0, len(components))
	for _, comp := range components {
		out = append(out, comp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// collapseLinearPaths repeatedly merges instruction pairs A -> B where
// A has one successor, B one predecessor, and both carry AST, replacing
// them with a single block node. Conditionals, f-nodes, suspension
// boundaries and join points never merge.
func collapseLinearPaths(head *Node) {
	for {
		preds := map[int]int{}
		for _, n := range EnumerateNodes(head) {
			for _, succ := range n.Next {
				preds[succ.ID]++
			}
		}
		merged := false
		visited := map[int]struct{}{}
		for _, n := range EnumerateNodes(head) {
			if n.Type != NodeInstr || n.AST == nil {
				continue
			}
			if _, ok := visited[n.ID]; ok {
				continue
			}
			if preds[n.ID] > 1 || len(n.Next) != 1 {
				continue
			}
			succ := n.Next[0]
			if succ.Type != NodeInstr || succ.AST == nil {
				continue
			}
			if _, ok := visited[succ.ID]; ok {
				continue
			}
			if preds[succ.ID] > 1 {
				continue
			}
			// Suspension nodes stay single so each frame has at most
			// one external suspension.
			if isSuspension(n) || isSuspension(succ) {
				continue
			}
			n.AST = ast.NewBlock(n.AST, succ.AST)
			n.Next = succ.Next
			visited[n.ID] = struct{}{}
			visited[succ.ID] = struct{}{}
			merged = true
		}
		if !merged {
			return
		}
	}
}
