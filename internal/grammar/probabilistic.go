package grammar

import (
	"fmt"
	"math"
)

// WeightedAlternative is one expansion alternative annotated with its learned
// selection probability.
type WeightedAlternative struct {
	Expansion   string  `json:"expansion"`
	Probability float64 `json:"probability"`
}

// Probabilistic is a grammar whose alternatives carry learned probabilities.
// For every nonterminal the probabilities across its alternatives sum to 1.
// Values are created once at the end of mining and not mutated afterwards.
type Probabilistic struct {
	Start string                           `json:"start"`
	Rules map[string][]WeightedAlternative `json:"rules"`
}

// ProbTolerance is the floating-point slack allowed when checking that a
// nonterminal's probabilities sum to 1.
const ProbTolerance = 1e-9

// Grammar strips the probabilities, recovering the underlying base grammar.
func (p *Probabilistic) Grammar() Grammar {
	g := make(Grammar, len(p.Rules))
	for name, alts := range p.Rules {
		expansions := make([]string, len(alts))
		for i, alt := range alts {
			expansions[i] = alt.Expansion
		}
		g[name] = expansions
	}
	return g
}

// Check verifies the sum-to-1 invariant for every nonterminal.
func (p *Probabilistic) Check() error {
	for name, alts := range p.Rules {
		if len(alts) == 0 {
			return fmt.Errorf("nonterminal %s has no alternatives", name)
		}
		sum := 0.0
		for _, alt := range alts {
			if alt.Probability < 0 || alt.Probability > 1 {
				return fmt.Errorf("nonterminal %s alternative %q has probability %v outside [0,1]", name, alt.Expansion, alt.Probability)
			}
			sum += alt.Probability
		}
		if math.Abs(sum-1) > ProbTolerance {
			return fmt.Errorf("nonterminal %s probabilities sum to %v, want 1", name, sum)
		}
	}
	return nil
}
