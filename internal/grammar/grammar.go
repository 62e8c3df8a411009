package grammar

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Grammar maps each nonterminal (written "<name>") to its ordered list of
// expansion alternatives. An alternative is a string mixing literal terminal
// text with embedded nonterminal references, e.g. "<digit><integer>".
// Grammars are treated as immutable once constructed.
type Grammar map[string][]string

// Symbol is one token of an expansion: either literal terminal text or a
// reference to a nonterminal.
type Symbol struct {
	Text        string
	Nonterminal bool
}

var nonterminalRe = regexp.MustCompile(`<[^<> ]+>`)

// Symbols splits an expansion into its terminal and nonterminal symbols.
// An empty expansion yields no symbols (epsilon).
func Symbols(expansion string) []Symbol {
	var syms []Symbol
	rest := expansion
	for len(rest) > 0 {
		loc := nonterminalRe.FindStringIndex(rest)
		if loc == nil {
			syms = append(syms, Symbol{Text: rest})
			break
		}
		if loc[0] > 0 {
			syms = append(syms, Symbol{Text: rest[:loc[0]]})
		}
		syms = append(syms, Symbol{Text: rest[loc[0]:loc[1]], Nonterminal: true})
		rest = rest[loc[1]:]
	}
	return syms
}

// IsNonterminal reports whether s is written in nonterminal form ("<name>").
func IsNonterminal(s string) bool {
	return nonterminalRe.MatchString(s) && strings.HasPrefix(s, "<") && strings.HasSuffix(s, ">")
}

// MalformedGrammarError describes a grammar that fails well-formedness:
// a missing start symbol or expansions referencing undefined nonterminals.
type MalformedGrammarError struct {
	Start   string
	Missing []string
}

func (e *MalformedGrammarError) Error() string {
	var parts []string
	if e.Start != "" {
		parts = append(parts, fmt.Sprintf("start symbol %s is not defined", e.Start))
	}
	if len(e.Missing) > 0 {
		parts = append(parts, fmt.Sprintf("undefined nonterminals referenced: %s", strings.Join(e.Missing, ", ")))
	}
	return "malformed grammar: " + strings.Join(parts, "; ")
}

// Validate checks that start is defined and that every nonterminal referenced
// from any expansion has a definition. It returns a *MalformedGrammarError
// listing every violation at once, so callers can surface a complete picture
// before mining begins.
func Validate(g Grammar, start string) error {
	missing := map[string]bool{}
	for _, expansions := range g {
		for _, expansion := range expansions {
			for _, sym := range Symbols(expansion) {
				if sym.Nonterminal {
					if _, ok := g[sym.Text]; !ok {
						missing[sym.Text] = true
					}
				}
			}
		}
	}

	errOut := &MalformedGrammarError{}
	if _, ok := g[start]; !ok {
		errOut.Start = start
	}
	for name := range missing {
		errOut.Missing = append(errOut.Missing, name)
	}
	sort.Strings(errOut.Missing)

	if errOut.Start == "" && len(errOut.Missing) == 0 {
		return nil
	}
	return errOut
}

// Clone returns a deep copy so callers can hold a Grammar without sharing
// backing slices with the source.
func Clone(g Grammar) Grammar {
	out := make(Grammar, len(g))
	for name, expansions := range g {
		out[name] = append([]string(nil), expansions...)
	}
	return out
}

// DecodeJSON parses a grammar definition in JSON form:
// {"<start>": ["<expr>"], "<expr>": ["<expr>+<expr>", "1"]}.
func DecodeJSON(data []byte) (Grammar, error) {
	var g Grammar
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("failed to decode grammar JSON: %w", err)
	}
	return g, nil
}

// DecodeYAML parses a grammar definition in YAML form (same shape as JSON).
func DecodeYAML(data []byte) (Grammar, error) {
	var g Grammar
	if err := yaml.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("failed to decode grammar YAML: %w", err)
	}
	return g, nil
}

// Decode picks the decoder by format ("json" or "yaml"/"yml").
func Decode(data []byte, format string) (Grammar, error) {
	switch strings.ToLower(format) {
	case "json", "":
		return DecodeJSON(data)
	case "yaml", "yml":
		return DecodeYAML(data)
	default:
		return nil, fmt.Errorf("unsupported grammar format: %s", format)
	}
}
