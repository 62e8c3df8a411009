// Package generator samples strings from a mined probabilistic grammar,
// choosing expansion alternatives according to their learned probabilities.
package generator

import (
	"fmt"
	"math/rand"
	"strings"

	"github.com/grammarkit/mining-service/internal/grammar"
)

// DefaultMaxDepth bounds nonterminal expansion depth before generation
// switches to the cheapest alternatives to force termination.
const DefaultMaxDepth = 40

// Generator produces random strings distributed according to a probabilistic
// grammar. The same seed yields the same sequence of outputs.
type Generator struct {
	pg       *grammar.Probabilistic
	rnd      *rand.Rand
	maxDepth int
	minDepth map[string]int
}

// New builds a Generator over pg. The probabilistic grammar is checked for the
// sum-to-1 invariant and its base grammar for well-formedness.
func New(pg *grammar.Probabilistic, seed int64, maxDepth int) (*Generator, error) {
	if err := pg.Check(); err != nil {
		return nil, err
	}
	base := pg.Grammar()
	if err := grammar.Validate(base, pg.Start); err != nil {
		return nil, err
	}
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	return &Generator{
		pg:       pg,
		rnd:      rand.New(rand.NewSource(seed)),
		maxDepth: maxDepth,
		minDepth: computeMinDepth(base),
	}, nil
}

// Generate produces one string starting from the grammar's start symbol.
func (g *Generator) Generate() (string, error) {
	var b strings.Builder
	if err := g.expand(&b, g.pg.Start, 0); err != nil {
		return "", err
	}
	return b.String(), nil
}

// GenerateN produces n strings.
func (g *Generator) GenerateN(n int) ([]string, error) {
	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		s, err := g.Generate()
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func (g *Generator) expand(b *strings.Builder, nonterminal string, depth int) error {
	alts := g.pg.Rules[nonterminal]
	if len(alts) == 0 {
		return fmt.Errorf("nonterminal %s has no alternatives", nonterminal)
	}

	var expansion string
	if depth >= g.maxDepth {
		expansion = g.cheapest(alts)
	} else {
		expansion = g.weighted(alts)
	}

	for _, sym := range grammar.Symbols(expansion) {
		if sym.Nonterminal {
			if err := g.expand(b, sym.Text, depth+1); err != nil {
				return err
			}
		} else {
			b.WriteString(sym.Text)
		}
	}
	return nil
}

// weighted picks an alternative by learned probability.
func (g *Generator) weighted(alts []grammar.WeightedAlternative) string {
	r := g.rnd.Float64()
	acc := 0.0
	for _, alt := range alts {
		acc += alt.Probability
		if r <= acc {
			return alt.Expansion
		}
	}
	// Floating-point slack can leave r just above the accumulated sum.
	return alts[len(alts)-1].Expansion
}

// cheapest picks the alternative with the smallest expansion depth, so deep
// derivations wind down instead of recursing further.
func (g *Generator) cheapest(alts []grammar.WeightedAlternative) string {
	best := alts[0].Expansion
	bestCost := expansionCost(best, g.minDepth)
	for _, alt := range alts[1:] {
		if c := expansionCost(alt.Expansion, g.minDepth); c < bestCost {
			best, bestCost = alt.Expansion, c
		}
	}
	return best
}

const unreachableDepth = 1 << 20

func expansionCost(expansion string, minDepth map[string]int) int {
	cost := 0
	for _, sym := range grammar.Symbols(expansion) {
		if !sym.Nonterminal {
			continue
		}
		d, ok := minDepth[sym.Text]
		if !ok {
			d = unreachableDepth
		}
		if d > cost {
			cost = d
		}
	}
	return cost
}

// computeMinDepth finds, per nonterminal, the minimum expansion depth needed
// to reach a derivation made only of terminals.
func computeMinDepth(g grammar.Grammar) map[string]int {
	depth := map[string]int{}
	for changed := true; changed; {
		changed = false
		for name, expansions := range g {
			for _, expansion := range expansions {
				cost := 1 + expansionCost(expansion, depth)
				if cur, ok := depth[name]; !ok || cost < cur {
					depth[name] = cost
					changed = true
				}
			}
		}
	}
	return depth
}
