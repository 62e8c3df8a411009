package services

import (
	"strings"
	"testing"

	"github.com/grammarkit/mining-service/internal/models"
)

const digitDefinition = `{
	"<start>": ["<digit>"],
	"<digit>": ["0", "1", "2", "3", "4", "5", "6", "7", "8", "9"]
}`

func TestCreateAndResolveGrammar(t *testing.T) {
	svc := NewGrammarService(t.TempDir())

	created, err := svc.CreateGrammar(models.CreateGrammarRequest{
		Name:       "digits",
		Directory:  "default",
		Format:     "json",
		Definition: digitDefinition,
	})
	if err != nil {
		t.Fatalf("CreateGrammar failed: %v", err)
	}
	if created.Format != "json" {
		t.Errorf("expected json format, got %s", created.Format)
	}

	g, start, err := svc.ResolveGrammar("default/digits", "")
	if err != nil {
		t.Fatalf("ResolveGrammar failed: %v", err)
	}
	if start != DefaultStartSymbol {
		t.Errorf("expected start %s, got %s", DefaultStartSymbol, start)
	}
	if len(g["<digit>"]) != 10 {
		t.Errorf("expected 10 digit alternatives, got %d", len(g["<digit>"]))
	}

	// Bare names resolve against the default directory
	if _, _, err := svc.ResolveGrammar("digits", ""); err != nil {
		t.Errorf("bare name resolution failed: %v", err)
	}
}

func TestResolveGrammarStoredStart(t *testing.T) {
	svc := NewGrammarService(t.TempDir())

	def := `{"<expr>": ["<digit>+<digit>"], "<digit>": ["1", "2"]}`
	created, err := svc.CreateGrammar(models.CreateGrammarRequest{
		Name:        "expr",
		Directory:   "default",
		Format:      "json",
		Definition:  def,
		Start:       "<expr>",
		Description: "addition over two digits",
	})
	if err != nil {
		t.Fatalf("CreateGrammar failed: %v", err)
	}
	if created.Start != "<expr>" {
		t.Errorf("created grammar lost its start symbol: got %q", created.Start)
	}

	// The stored start symbol must survive the round trip to disk
	stored, err := svc.GetGrammar("default", "expr")
	if err != nil {
		t.Fatalf("GetGrammar failed: %v", err)
	}
	if stored.Start != "<expr>" {
		t.Errorf("stored grammar lost its start symbol: got %q, want %q", stored.Start, "<expr>")
	}
	if stored.Description != "addition over two digits" {
		t.Errorf("stored grammar lost its description: got %q", stored.Description)
	}

	// Resolving by reference without an explicit start must use the stored one
	_, start, err := svc.ResolveGrammar("default/expr", "")
	if err != nil {
		t.Fatalf("ResolveGrammar failed: %v", err)
	}
	if start != "<expr>" {
		t.Errorf("expected stored start %q to win, got %q", "<expr>", start)
	}

	listed, err := svc.ListGrammars("default")
	if err != nil {
		t.Fatalf("ListGrammars failed: %v", err)
	}
	if len(listed.Grammars) != 1 {
		t.Fatalf("expected 1 grammar in listing, got %d", len(listed.Grammars))
	}
	if listed.Grammars[0].Start != "<expr>" {
		t.Errorf("listing lost the start symbol: got %q", listed.Grammars[0].Start)
	}
}

func TestResolveInlineGrammar(t *testing.T) {
	svc := NewGrammarService(t.TempDir())

	g, start, err := svc.ResolveGrammar(digitDefinition, "<digit>")
	if err != nil {
		t.Fatalf("inline resolution failed: %v", err)
	}
	if start != "<digit>" {
		t.Errorf("expected explicit start to win, got %s", start)
	}
	if _, ok := g["<start>"]; !ok {
		t.Error("inline grammar lost its rules")
	}
}

func TestCreateGrammarRejectsDanglingReference(t *testing.T) {
	svc := NewGrammarService(t.TempDir())

	_, err := svc.CreateGrammar(models.CreateGrammarRequest{
		Name:       "broken",
		Directory:  "default",
		Format:     "json",
		Definition: `{"<start>": ["<missing>"]}`,
	})
	if err == nil {
		t.Fatal("expected error for grammar with undefined nonterminal")
	}
	if !strings.Contains(err.Error(), "<missing>") {
		t.Errorf("error should name the dangling nonterminal, got: %v", err)
	}
}

func TestCreateGrammarRejectsBareStartSymbol(t *testing.T) {
	svc := NewGrammarService(t.TempDir())

	_, err := svc.CreateGrammar(models.CreateGrammarRequest{
		Name:       "bare",
		Directory:  "default",
		Format:     "json",
		Definition: digitDefinition,
		Start:      "start",
	})
	if err == nil {
		t.Fatal("expected error for start symbol without angle brackets")
	}
	if !strings.Contains(err.Error(), "nonterminal") {
		t.Errorf("error should explain the start symbol form, got: %v", err)
	}
}

func TestResolveGrammarUnknownReference(t *testing.T) {
	svc := NewGrammarService(t.TempDir())

	if _, _, err := svc.ResolveGrammar("default/nope", ""); err == nil {
		t.Fatal("expected error for unknown grammar reference")
	}
	if _, _, err := svc.ResolveGrammar("a/b/c", ""); err == nil {
		t.Fatal("expected error for malformed grammar reference")
	}
}
