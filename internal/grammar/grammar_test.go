package grammar

import (
	"testing"
)

func TestSymbols(t *testing.T) {
	syms := Symbols("a<expr>+<expr>")
	if len(syms) != 4 {
		t.Fatalf("Expected 4 symbols, got %d: %v", len(syms), syms)
	}
	if syms[0].Text != "a" || syms[0].Nonterminal {
		t.Errorf("First symbol should be terminal 'a', got %+v", syms[0])
	}
	if syms[1].Text != "<expr>" || !syms[1].Nonterminal {
		t.Errorf("Second symbol should be nonterminal <expr>, got %+v", syms[1])
	}
	if syms[2].Text != "+" || syms[2].Nonterminal {
		t.Errorf("Third symbol should be terminal '+', got %+v", syms[2])
	}
}

func TestSymbolsEpsilon(t *testing.T) {
	if syms := Symbols(""); len(syms) != 0 {
		t.Errorf("Empty expansion should yield no symbols, got %v", syms)
	}
}

func TestSymbolsPlainTerminal(t *testing.T) {
	syms := Symbols("abc")
	if len(syms) != 1 || syms[0].Text != "abc" || syms[0].Nonterminal {
		t.Errorf("Expected single terminal 'abc', got %v", syms)
	}
}

func TestValidateWellFormed(t *testing.T) {
	g := Grammar{
		"<start>": {"a<n>"},
		"<n>":     {"x", "y"},
	}
	if err := Validate(g, "<start>"); err != nil {
		t.Errorf("Well-formed grammar rejected: %v", err)
	}
}

func TestValidateMissingStart(t *testing.T) {
	g := Grammar{"<n>": {"x"}}
	err := Validate(g, "<start>")
	if err == nil {
		t.Fatal("Expected error for missing start symbol")
	}
	merr, ok := err.(*MalformedGrammarError)
	if !ok {
		t.Fatalf("Expected *MalformedGrammarError, got %T", err)
	}
	if merr.Start != "<start>" {
		t.Errorf("Expected missing start <start>, got %q", merr.Start)
	}
}

func TestValidateDanglingReference(t *testing.T) {
	g := Grammar{
		"<start>": {"<a><b>"},
		"<a>":     {"x"},
	}
	err := Validate(g, "<start>")
	if err == nil {
		t.Fatal("Expected error for dangling nonterminal reference")
	}
	merr := err.(*MalformedGrammarError)
	if len(merr.Missing) != 1 || merr.Missing[0] != "<b>" {
		t.Errorf("Expected missing [<b>], got %v", merr.Missing)
	}
}

func TestDecodeJSON(t *testing.T) {
	data := []byte(`{"<start>": ["<digit>"], "<digit>": ["0", "1"]}`)
	g, err := DecodeJSON(data)
	if err != nil {
		t.Fatalf("Failed to decode grammar: %v", err)
	}
	if len(g["<digit>"]) != 2 {
		t.Errorf("Expected 2 alternatives for <digit>, got %v", g["<digit>"])
	}
}

func TestDecodeYAML(t *testing.T) {
	data := []byte("\"<start>\":\n  - \"<digit>\"\n\"<digit>\":\n  - \"0\"\n  - \"1\"\n")
	g, err := DecodeYAML(data)
	if err != nil {
		t.Fatalf("Failed to decode YAML grammar: %v", err)
	}
	if len(g["<digit>"]) != 2 {
		t.Errorf("Expected 2 alternatives for <digit>, got %v", g["<digit>"])
	}
}

func TestProbabilisticCheck(t *testing.T) {
	pg := &Probabilistic{
		Start: "<start>",
		Rules: map[string][]WeightedAlternative{
			"<start>": {{Expansion: "a", Probability: 0.25}, {Expansion: "b", Probability: 0.75}},
		},
	}
	if err := pg.Check(); err != nil {
		t.Errorf("Valid probabilistic grammar rejected: %v", err)
	}

	pg.Rules["<start>"][0].Probability = 0.5
	if err := pg.Check(); err == nil {
		t.Error("Expected sum-to-1 violation to be reported")
	}
}

func TestProbabilisticGrammarRoundTrip(t *testing.T) {
	pg := &Probabilistic{
		Start: "<start>",
		Rules: map[string][]WeightedAlternative{
			"<start>": {{Expansion: "a<n>", Probability: 1}},
			"<n>":     {{Expansion: "x", Probability: 0.5}, {Expansion: "y", Probability: 0.5}},
		},
	}
	g := pg.Grammar()
	if len(g["<n>"]) != 2 || g["<n>"][0] != "x" {
		t.Errorf("Base grammar not recovered: %v", g)
	}
	if err := Validate(g, "<start>"); err != nil {
		t.Errorf("Recovered grammar should validate: %v", err)
	}
}
