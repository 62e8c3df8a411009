package generator

import (
	"context"
	"strings"
	"testing"

	"github.com/grammarkit/mining-service/internal/grammar"
	"github.com/grammarkit/mining-service/internal/miner"
	"github.com/grammarkit/mining-service/internal/parser"
)

func uniform(g grammar.Grammar, start string) *grammar.Probabilistic {
	rules := map[string][]grammar.WeightedAlternative{}
	for name, expansions := range g {
		alts := make([]grammar.WeightedAlternative, len(expansions))
		for i, e := range expansions {
			alts[i] = grammar.WeightedAlternative{Expansion: e, Probability: 1.0 / float64(len(expansions))}
		}
		rules[name] = alts
	}
	return &grammar.Probabilistic{Start: start, Rules: rules}
}

func TestGenerateDeterministicWithSeed(t *testing.T) {
	g := grammar.Grammar{
		"<start>": {"<word><start>", "<word>"},
		"<word>":  {"a", "b", "c"},
	}
	pg := uniform(g, "<start>")

	first, err := New(pg, 42, 0)
	if err != nil {
		t.Fatalf("Failed to build generator: %v", err)
	}
	second, err := New(pg, 42, 0)
	if err != nil {
		t.Fatalf("Failed to build generator: %v", err)
	}

	a, err := first.GenerateN(20)
	if err != nil {
		t.Fatalf("Generation failed: %v", err)
	}
	b, err := second.GenerateN(20)
	if err != nil {
		t.Fatalf("Generation failed: %v", err)
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("Same seed must yield same output, diverged at %d: %q vs %q", i, a[i], b[i])
		}
	}
}

func TestGenerateOutputReparses(t *testing.T) {
	g := grammar.Grammar{
		"<start>": {"<expr>"},
		"<expr>":  {"<digit>+<expr>", "<digit>"},
		"<digit>": {"0", "1", "2"},
	}
	p, err := parser.NewEarley(g, "<start>")
	if err != nil {
		t.Fatalf("Failed to build parser: %v", err)
	}

	gen, err := New(uniform(g, "<start>"), 7, 0)
	if err != nil {
		t.Fatalf("Failed to build generator: %v", err)
	}
	outputs, err := gen.GenerateN(50)
	if err != nil {
		t.Fatalf("Generation failed: %v", err)
	}
	for _, out := range outputs {
		if _, err := p.Parse(out); err != nil {
			t.Errorf("Generated string %q does not parse under the source grammar: %v", out, err)
		}
	}
}

func TestGenerateTerminatesOnRecursiveGrammar(t *testing.T) {
	// Heavily biased toward recursion; the depth budget must still force
	// termination.
	pg := &grammar.Probabilistic{
		Start: "<start>",
		Rules: map[string][]grammar.WeightedAlternative{
			"<start>": {
				{Expansion: "a<start>", Probability: 0.99},
				{Expansion: "a", Probability: 0.01},
			},
		},
	}
	gen, err := New(pg, 1, 10)
	if err != nil {
		t.Fatalf("Failed to build generator: %v", err)
	}
	out, err := gen.Generate()
	if err != nil {
		t.Fatalf("Generation failed: %v", err)
	}
	if len(out) == 0 || len(out) > 12 {
		t.Errorf("Expected bounded output, got %d chars", len(out))
	}
}

func TestGenerateFollowsMinedDistribution(t *testing.T) {
	g := grammar.Grammar{
		"<start>": {"a<n>"},
		"<n>":     {"x", "y"},
	}
	m, err := miner.New(g, "<start>")
	if err != nil {
		t.Fatalf("Failed to build miner: %v", err)
	}
	pg, _, err := m.Mine(context.Background(), []string{"ax", "ax", "ax", "ax", "ay"})
	if err != nil {
		t.Fatalf("Mining failed: %v", err)
	}

	gen, err := New(pg, 99, 0)
	if err != nil {
		t.Fatalf("Failed to build generator: %v", err)
	}
	outputs, err := gen.GenerateN(1000)
	if err != nil {
		t.Fatalf("Generation failed: %v", err)
	}

	xCount := 0
	for _, out := range outputs {
		if strings.HasSuffix(out, "x") {
			xCount++
		}
	}
	// P(x) = 0.8; allow generous sampling slack.
	if xCount < 700 || xCount > 900 {
		t.Errorf("Expected roughly 800/1000 outputs ending in x, got %d", xCount)
	}
}

func TestGenerateRejectsInvalidDistribution(t *testing.T) {
	pg := &grammar.Probabilistic{
		Start: "<start>",
		Rules: map[string][]grammar.WeightedAlternative{
			"<start>": {{Expansion: "a", Probability: 0.4}},
		},
	}
	if _, err := New(pg, 1, 0); err == nil {
		t.Error("Expected invalid distribution to be rejected")
	}
}
