package parser

import "strings"

// Node is one node of a derivation tree. Internal nodes carry the nonterminal
// that was expanded and the index of the alternative used to expand it; leaf
// nodes carry literal terminal text.
type Node struct {
	Nonterminal string
	Alt         int
	Children    []*Node
	Terminal    string
}

// IsTerminal reports whether n is a terminal leaf.
func (n *Node) IsTerminal() bool {
	return n.Nonterminal == ""
}

// Tree is the derivation tree produced by one successful parse. It records
// which alternative was chosen at every expansion step.
type Tree struct {
	Root *Node
}

// Walk visits every internal node in depth-first order, reporting the
// nonterminal and the alternative index used to expand it.
func (t *Tree) Walk(fn func(nonterminal string, alt int)) {
	var visit func(n *Node)
	visit = func(n *Node) {
		if n == nil || n.IsTerminal() {
			return
		}
		fn(n.Nonterminal, n.Alt)
		for _, c := range n.Children {
			visit(c)
		}
	}
	visit(t.Root)
}

// String reassembles the parsed input from the tree's terminal leaves.
func (t *Tree) String() string {
	var b strings.Builder
	var visit func(n *Node)
	visit = func(n *Node) {
		if n == nil {
			return
		}
		if n.IsTerminal() {
			b.WriteString(n.Terminal)
			return
		}
		for _, c := range n.Children {
			visit(c)
		}
	}
	visit(t.Root)
	return b.String()
}
