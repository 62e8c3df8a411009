package miner

import (
	"context"
	"math"
	"reflect"
	"testing"

	"github.com/grammarkit/mining-service/internal/grammar"
)

var axGrammar = grammar.Grammar{
	"<start>": {"a<n>"},
	"<n>":     {"x", "y"},
}

func mustMine(t *testing.T, g grammar.Grammar, start string, samples []string, opts ...Option) (*grammar.Probabilistic, *Report) {
	t.Helper()
	m, err := New(g, start, opts...)
	if err != nil {
		t.Fatalf("Failed to build miner: %v", err)
	}
	pg, report, err := m.Mine(context.Background(), samples)
	if err != nil {
		t.Fatalf("Mining failed: %v", err)
	}
	return pg, report
}

func prob(t *testing.T, pg *grammar.Probabilistic, nonterminal, expansion string) float64 {
	t.Helper()
	for _, alt := range pg.Rules[nonterminal] {
		if alt.Expansion == expansion {
			return alt.Probability
		}
	}
	t.Fatalf("No alternative %q for %s", expansion, nonterminal)
	return 0
}

func TestMineConcreteScenario(t *testing.T) {
	// {S -> "a" N, N -> "x" | "y"} with samples ax, ax, ay:
	// N -> x gets 2/3, N -> y gets 1/3.
	pg, report := mustMine(t, axGrammar, "<start>", []string{"ax", "ax", "ay"})

	if report.Parsed != 3 || report.Failed != 0 {
		t.Fatalf("Expected 3 parsed samples, got %+v", report)
	}
	if got := prob(t, pg, "<n>", "x"); math.Abs(got-2.0/3.0) > grammar.ProbTolerance {
		t.Errorf("Expected P(x)=2/3, got %v", got)
	}
	if got := prob(t, pg, "<n>", "y"); math.Abs(got-1.0/3.0) > grammar.ProbTolerance {
		t.Errorf("Expected P(y)=1/3, got %v", got)
	}
	if err := pg.Check(); err != nil {
		t.Errorf("Result violates sum-to-1 invariant: %v", err)
	}
}

func TestMineSumToOne(t *testing.T) {
	g := grammar.Grammar{
		"<start>": {"<expr>"},
		"<expr>":  {"<term>+<expr>", "<term>"},
		"<term>":  {"<digit>*<term>", "<digit>"},
		"<digit>": {"0", "1", "2", "3", "4", "5", "6", "7", "8", "9"},
	}
	pg, report := mustMine(t, g, "<start>", []string{"1+2*3", "4", "5+6", "7*8*9", "0+1+2"})
	if report.Failed != 0 {
		t.Fatalf("Expected all samples to parse, report: %+v", report)
	}
	if err := pg.Check(); err != nil {
		t.Errorf("Sum-to-1 invariant violated: %v", err)
	}
}

func TestMineSingleAlternativeGetsProbabilityOne(t *testing.T) {
	pg, _ := mustMine(t, axGrammar, "<start>", []string{"ax", "ax", "ax"})
	if got := prob(t, pg, "<n>", "x"); got != 1.0 {
		t.Errorf("Expected P(x)=1.0 when only x is observed, got %v", got)
	}
	if got := prob(t, pg, "<n>", "y"); got != 0.0 {
		t.Errorf("Expected P(y)=0.0 when y is never observed, got %v", got)
	}
}

func TestMineUnexercisedNonterminalIsUniform(t *testing.T) {
	g := grammar.Grammar{
		"<start>": {"a<n>", "b"},
		"<n>":     {"x", "y"},
	}
	// Only "b" is sampled, so <n> is never exercised.
	pg, _ := mustMine(t, g, "<start>", []string{"b", "b"})
	if got := prob(t, pg, "<n>", "x"); got != 0.5 {
		t.Errorf("Expected uniform 0.5 for unexercised <n> -> x, got %v", got)
	}
	if got := prob(t, pg, "<n>", "y"); got != 0.5 {
		t.Errorf("Expected uniform 0.5 for unexercised <n> -> y, got %v", got)
	}
}

func TestMineEmptySampleSet(t *testing.T) {
	pg, report := mustMine(t, axGrammar, "<start>", nil)
	if report.Samples != 0 {
		t.Errorf("Expected empty report, got %+v", report)
	}
	if got := prob(t, pg, "<n>", "x"); got != 0.5 {
		t.Errorf("Expected uniform fallback on empty sample set, got %v", got)
	}
	if err := pg.Check(); err != nil {
		t.Errorf("Uniform fallback should satisfy sum-to-1: %v", err)
	}
}

func TestMinePartialFailure(t *testing.T) {
	// One bad sample must not abort the run and must not change the counts
	// collected from the good samples.
	withBad, report := mustMine(t, axGrammar, "<start>", []string{"ax", "zz", "ay"})
	if report.Parsed != 2 || report.Failed != 1 {
		t.Fatalf("Expected 2 parsed / 1 failed, got %+v", report)
	}
	if len(report.Failures) != 1 || report.Failures[0].Index != 1 {
		t.Fatalf("Expected failure at index 1, got %+v", report.Failures)
	}

	onlyGood, _ := mustMine(t, axGrammar, "<start>", []string{"ax", "ay"})
	if !reflect.DeepEqual(withBad.Rules, onlyGood.Rules) {
		t.Errorf("Probabilities with a failing sample must equal those from the parsing subset:\n%v\nvs\n%v", withBad.Rules, onlyGood.Rules)
	}
}

func TestMineAllSamplesFail(t *testing.T) {
	pg, report := mustMine(t, axGrammar, "<start>", []string{"zz", "qq"})
	if report.Parsed != 0 || report.Failed != 2 {
		t.Fatalf("Expected all samples to fail, got %+v", report)
	}
	if got := prob(t, pg, "<n>", "x"); got != 0.5 {
		t.Errorf("Expected uniform fallback when no sample parses, got %v", got)
	}
}

func TestMineIdempotent(t *testing.T) {
	samples := []string{"ax", "ay", "ax", "ax", "ay"}
	m, err := New(axGrammar, "<start>")
	if err != nil {
		t.Fatalf("Failed to build miner: %v", err)
	}
	first, _, err := m.Mine(context.Background(), samples)
	if err != nil {
		t.Fatalf("First mining run failed: %v", err)
	}
	second, _, err := m.Mine(context.Background(), samples)
	if err != nil {
		t.Fatalf("Second mining run failed: %v", err)
	}
	if !reflect.DeepEqual(first.Rules, second.Rules) {
		t.Error("Mining the same samples twice must yield identical probabilities")
	}
}

func TestMineMonotonicEvidence(t *testing.T) {
	base := []string{"ax", "ay", "ay"}
	before, _ := mustMine(t, axGrammar, "<start>", base)
	after, _ := mustMine(t, axGrammar, "<start>", append(append([]string{}, base...), "ax"))

	if prob(t, after, "<n>", "x") < prob(t, before, "<n>", "x") {
		t.Error("Adding evidence for x must not decrease its probability")
	}
}

func TestMineParallelMatchesSequential(t *testing.T) {
	samples := []string{"ax", "ay", "ax", "zz", "ay", "ax", "ax", "ay", "bad", "ax"}
	sequential, seqReport := mustMine(t, axGrammar, "<start>", samples)
	parallel, parReport := mustMine(t, axGrammar, "<start>", samples, WithWorkers(4))

	if !reflect.DeepEqual(sequential.Rules, parallel.Rules) {
		t.Errorf("Parallel mining must match sequential mining:\n%v\nvs\n%v", sequential.Rules, parallel.Rules)
	}
	if !reflect.DeepEqual(seqReport.Failures, parReport.Failures) {
		t.Errorf("Failure reports must match: %+v vs %+v", seqReport.Failures, parReport.Failures)
	}
}

func TestMineRejectsMalformedGrammar(t *testing.T) {
	g := grammar.Grammar{"<start>": {"<missing>"}}
	if _, err := New(g, "<start>"); err == nil {
		t.Fatal("Expected malformed grammar to be rejected before mining")
	}

	if _, err := New(axGrammar, "<nope>"); err == nil {
		t.Fatal("Expected undefined start symbol to be rejected")
	}
}

func TestMineCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	m, err := New(axGrammar, "<start>")
	if err != nil {
		t.Fatalf("Failed to build miner: %v", err)
	}
	if _, _, err := m.Mine(ctx, []string{"ax", "ay"}); err == nil {
		t.Error("Expected cancelled context to abandon the batch")
	}
}
