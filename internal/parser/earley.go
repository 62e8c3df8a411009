package parser

import (
	"fmt"
	"sort"
	"strings"

	"github.com/grammarkit/mining-service/internal/grammar"
)

// Parser is the parsing capability the miner depends on: given one input
// string, produce a derivation tree annotated with the alternative chosen at
// each expansion, or a parse failure.
type Parser interface {
	Parse(input string) (*Tree, error)
}

// ParseError reports an input that does not belong to the grammar's language.
type ParseError struct {
	Input  string
	Offset int
}

func (e *ParseError) Error() string {
	snippet := e.Input[e.Offset:]
	if len(snippet) > 20 {
		snippet = snippet[:20] + "..."
	}
	return fmt.Sprintf("parse failed at offset %d (%q)", e.Offset, snippet)
}

// EarleyParser is a chart parser over rune positions. Terminals match literal
// substrings. Left recursion, right recursion and epsilon alternatives are all
// supported. For ambiguous inputs the same derivation is returned every time
// for the same (grammar, input) pair.
type EarleyParser struct {
	start    string
	rules    map[string][][]grammar.Symbol
	nullable map[string]bool
	nullNode map[string]*Node
}

// NewEarley builds a parser for g rooted at start. The grammar is validated
// up front; a malformed grammar is rejected before any parsing happens.
func NewEarley(g grammar.Grammar, start string) (*EarleyParser, error) {
	if err := grammar.Validate(g, start); err != nil {
		return nil, err
	}

	rules := make(map[string][][]grammar.Symbol, len(g))
	for name, expansions := range g {
		alts := make([][]grammar.Symbol, len(expansions))
		for i, expansion := range expansions {
			alts[i] = grammar.Symbols(expansion)
		}
		rules[name] = alts
	}

	p := &EarleyParser{start: start, rules: rules}
	p.nullable = computeNullable(rules)
	p.nullNode = buildNullNodes(rules, p.nullable)
	return p, nil
}

// item is one Earley chart entry: a partially recognized alternative with its
// origin column and the child nodes recognized so far.
type item struct {
	name     string
	alt      int
	syms     []grammar.Symbol
	dot      int
	origin   int
	children []*Node
}

func (it *item) complete() bool {
	return it.dot >= len(it.syms)
}

func (it *item) next() grammar.Symbol {
	return it.syms[it.dot]
}

func (it *item) advance(child *Node) *item {
	children := make([]*Node, 0, len(it.children)+1)
	children = append(children, it.children...)
	children = append(children, child)
	return &item{name: it.name, alt: it.alt, syms: it.syms, dot: it.dot + 1, origin: it.origin, children: children}
}

type itemKey struct {
	name     string
	alt, dot int
	origin   int
}

type column struct {
	items []*item
	seen  map[itemKey]bool
}

func (c *column) add(it *item) {
	key := itemKey{it.name, it.alt, it.dot, it.origin}
	if c.seen[key] {
		return
	}
	c.seen[key] = true
	c.items = append(c.items, it)
}

// Parse recognizes input and returns its derivation tree. Inputs outside the
// grammar's language yield a *ParseError carrying the offset where progress
// stopped.
func (p *EarleyParser) Parse(input string) (*Tree, error) {
	n := len(input)
	cols := make([]*column, n+1)
	for i := range cols {
		cols[i] = &column{seen: map[itemKey]bool{}}
	}

	for alt, syms := range p.rules[p.start] {
		cols[0].add(&item{name: p.start, alt: alt, syms: syms, origin: 0})
	}

	var root *Node
	for k := 0; k <= n; k++ {
		for i := 0; i < len(cols[k].items); i++ {
			it := cols[k].items[i]
			if it.complete() {
				node := &Node{Nonterminal: it.name, Alt: it.alt, Children: it.children}
				if root == nil && it.name == p.start && it.origin == 0 && k == n {
					root = node
				}
				for _, parent := range cols[it.origin].items {
					if !parent.complete() {
						if sym := parent.next(); sym.Nonterminal && sym.Text == it.name {
							cols[k].add(parent.advance(node))
						}
					}
				}
				continue
			}

			sym := it.next()
			if sym.Nonterminal {
				for alt, syms := range p.rules[sym.Text] {
					cols[k].add(&item{name: sym.Text, alt: alt, syms: syms, origin: k})
				}
				// Nullable prediction must also advance the predicting item,
				// or epsilon completions added later in this column are lost.
				if p.nullable[sym.Text] {
					cols[k].add(it.advance(p.nullNode[sym.Text]))
				}
			} else if strings.HasPrefix(input[k:], sym.Text) {
				leaf := &Node{Terminal: sym.Text}
				cols[k+len(sym.Text)].add(it.advance(leaf))
			}
		}
	}

	if root == nil {
		offset := 0
		for k := n; k >= 0; k-- {
			if len(cols[k].items) > 0 {
				offset = k
				break
			}
		}
		return nil, &ParseError{Input: input, Offset: offset}
	}
	return &Tree{Root: root}, nil
}

// computeNullable finds every nonterminal that can derive the empty string.
func computeNullable(rules map[string][][]grammar.Symbol) map[string]bool {
	nullable := map[string]bool{}
	for changed := true; changed; {
		changed = false
		for name, alts := range rules {
			if nullable[name] {
				continue
			}
			for _, syms := range alts {
				all := true
				for _, sym := range syms {
					if !sym.Nonterminal || !nullable[sym.Text] {
						all = false
						break
					}
				}
				if all {
					nullable[name] = true
					changed = true
					break
				}
			}
		}
	}
	return nullable
}

// buildNullNodes precomputes one deterministic empty derivation per nullable
// nonterminal, used when a prediction is advanced over a nullable symbol.
// Names are visited in sorted order and the first constructible alternative
// wins, so the derivation never depends on map iteration order.
func buildNullNodes(rules map[string][][]grammar.Symbol, nullable map[string]bool) map[string]*Node {
	var names []string
	for name := range rules {
		if nullable[name] {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	nodes := map[string]*Node{}
	for changed := true; changed; {
		changed = false
		for _, name := range names {
			if nodes[name] != nil {
				continue
			}
			for alt, syms := range rules[name] {
				children := make([]*Node, 0, len(syms))
				ok := true
				for _, sym := range syms {
					if !sym.Nonterminal || nodes[sym.Text] == nil {
						ok = false
						break
					}
					children = append(children, nodes[sym.Text])
				}
				if ok {
					nodes[name] = &Node{Nonterminal: name, Alt: alt, Children: children}
					changed = true
					break
				}
			}
		}
	}
	return nodes
}
