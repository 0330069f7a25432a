// Package ast defines the typed abstract syntax tree. Nodes declare
// named child slots (single or list) at construction; assigning a node
// to a slot detaches it from its previous parent atomically, so parent
// links stay consistent under the in-place rewrites of the closure and
// multiframe passes.
package ast

import (
	"fmt"

	"github.com/notimplife/cels-cc/pkg/symbols"
)

// Node is any AST node.
type Node interface {
	fmt.Stringer
	Base() *NodeBase
}

// Expr is a node carrying a data type.
type Expr interface {
	Node
	Type() symbols.DataType
}

// Addressable marks expressions whose address may be taken.
type Addressable interface {
	Expr
	addressable()
}

type slot struct {
	key    string
	isList bool
	node   Node
	nodes  []Node
}

// NodeBase is the common node state; concrete nodes embed it and call
// InitNode with themselves.
type NodeBase struct {
	self      Node
	parent    Node
	parentKey string
	slots     []*slot
}

// Base returns the node's base.
func (b *NodeBase) Base() *NodeBase { return b }

// InitNode wires the embedding node; must be called before slots are
// registered.
func (b *NodeBase) InitNode(self Node) { b.self = self }

// Parent returns the parent node, nil at the root.
func (b *NodeBase) Parent() Node { return b.parent }

// RegisterChild declares a single-node slot.
func (b *NodeBase) RegisterChild(key string) {
	b.slots = append(b.slots, &slot{key: key})
}

// RegisterChildList declares a list slot.
func (b *NodeBase) RegisterChildList(key string) {
	b.slots = append(b.slots, &slot{key: key, isList: true})
}

func (b *NodeBase) slotFor(key string) *slot {
	for _, s := range b.slots {
		if s.key == key {
			return s
		}
	}
	panic(fmt.Sprintf("ast: node child key not found: %q", key))
}

// Child returns the node in a single slot, nil when unset.
func (b *NodeBase) Child(key string) Node {
	s := b.slotFor(key)
	if s.isList {
		panic(fmt.Sprintf("ast: %q is a list slot", key))
	}
	return s.node
}

// ChildList returns the nodes of a list slot.
func (b *NodeBase) ChildList(key string) []Node {
	s := b.slotFor(key)
	if !s.isList {
		panic(fmt.Sprintf("ast: %q is not a list slot", key))
	}
	return s.nodes
}

// SetChild assigns a single slot, detaching any previous occupant and
// detaching child from its previous parent. A nil child clears the
// slot.
func (b *NodeBase) SetChild(key string, child Node) {
	s := b.slotFor(key)
	if s.isList {
		panic(fmt.Sprintf("ast: %q is a list slot", key))
	}
	if s.node != nil {
		s.node.Base().parent = nil
		s.node.Base().parentKey = ""
		s.node = nil
	}
	if child == nil {
		return
	}
	detach(child)
	s.node = child
	child.Base().parent = b.self
	child.Base().parentKey = key
}

// AppendChild appends to a list slot, detaching child from its previous
// parent.
func (b *NodeBase) AppendChild(key string, child Node) {
	s := b.slotFor(key)
	if !s.isList {
		panic(fmt.Sprintf("ast: %q is not a list slot", key))
	}
	detach(child)
	s.nodes = append(s.nodes, child)
	child.Base().parent = b.self
	child.Base().parentKey = key
}

// detach removes child from its current parent, if any.
func detach(child Node) {
	cb := child.Base()
	if cb.parent == nil {
		return
	}
	ps := cb.parent.Base().slotFor(cb.parentKey)
	if ps.isList {
		for i, n := range ps.nodes {
			if n == child {
				ps.nodes = append(ps.nodes[:i], ps.nodes[i+1:]...)
				break
			}
		}
	} else if ps.node == child {
		ps.node = nil
	}
	cb.parent = nil
	cb.parentKey = ""
}

// Children returns every child of n in slot declaration order.
func Children(n Node) []Node {
	var out []Node
	for _, s := range n.Base().slots {
		if s.isList {
			out = append(out, s.nodes...)
		} else if s.node != nil {
			out = append(out, s.node)
		}
	}
	return out
}

// Walk visits n and its descendants depth-first. When fn returns true
// the walk does not descend into that node's children.
func Walk(n Node, fn func(Node) bool) {
	if fn(n) {
		return
	}
	for _, c := range Children(n) {
		Walk(c, fn)
	}
}

// ReplaceWith swaps old for replacement in old's parent slot. The old
// node is left detached.
func ReplaceWith(old, replacement Node) {
	ob := old.Base()
	if ob.parent == nil {
		panic("ast: cannot replace a root node")
	}
	parent, key := ob.parent, ob.parentKey
	ps := parent.Base().slotFor(key)
	detach(replacement)
	if ps.isList {
		for i, n := range ps.nodes {
			if n == old {
				ps.nodes[i] = replacement
				break
			}
		}
	} else {
		ps.node = replacement
	}
	ob.parent = nil
	ob.parentKey = ""
	replacement.Base().parent = parent
	replacement.Base().parentKey = key
}

// InsertBefore inserts newNode immediately before anchor inside the
// anchor's parent block.
func InsertBefore(anchor, newNode Node) {
	block, ok := anchor.Base().parent.(*Block)
	if !ok {
		panic("ast: insert-before requires the node's parent to be a block")
	}
	s := block.Base().slotFor("children")
	detach(newNode)
	for i, n := range s.nodes {
		if n == anchor {
			s.nodes = append(s.nodes[:i], append([]Node{newNode}, s.nodes[i:]...)...)
			newNode.Base().parent = block
			newNode.Base().parentKey = "children"
			return
		}
	}
	panic("ast: insert-before anchor not found in its block")
}

// ExprBase extends NodeBase with the expression data type.
type ExprBase struct {
	NodeBase
	dataType symbols.DataType
}

// InitExpr wires the embedding expression and its type.
func (b *ExprBase) InitExpr(self Node, t symbols.DataType) {
	b.InitNode(self)
	b.dataType = t
}

// Type returns the expression's data type.
func (b *ExprBase) Type() symbols.DataType { return b.dataType }
