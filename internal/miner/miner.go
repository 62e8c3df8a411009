// Package miner learns production-choice probabilities for a context-free
// grammar from a corpus of sample inputs. Each sample is parsed into a
// derivation tree; the miner counts how often every alternative of every
// nonterminal was chosen across all trees and folds the counts into a
// probability distribution per nonterminal.
package miner

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/grammarkit/mining-service/internal/grammar"
	"github.com/grammarkit/mining-service/internal/parser"
)

// SampleFailure records one sample that did not parse. Failed samples
// contribute no counts but never abort a mining run.
type SampleFailure struct {
	Index int    `json:"index"`
	Input string `json:"input"`
	Error string `json:"error"`
}

// Report summarizes one mining run.
type Report struct {
	Samples  int             `json:"samples"`
	Parsed   int             `json:"parsed"`
	Failed   int             `json:"failed"`
	Failures []SampleFailure `json:"failures,omitempty"`
	Duration time.Duration   `json:"-"`
}

// choiceCounter accumulates, per nonterminal, how often each alternative was
// chosen. It is scoped to a single mining invocation and never escapes it.
type choiceCounter map[string][]int

func newChoiceCounter(g grammar.Grammar) choiceCounter {
	c := make(choiceCounter, len(g))
	for name, expansions := range g {
		c[name] = make([]int, len(expansions))
	}
	return c
}

func (c choiceCounter) observe(tree *parser.Tree) {
	tree.Walk(func(nonterminal string, alt int) {
		counts := c[nonterminal]
		if alt >= 0 && alt < len(counts) {
			counts[alt]++
		}
	})
}

// merge adds other's counts into c. Counter merging is pointwise addition, so
// partial counters from concurrent workers combine in any order.
func (c choiceCounter) merge(other choiceCounter) {
	for name, counts := range other {
		dst := c[name]
		for i, n := range counts {
			dst[i] += n
		}
	}
}

// Miner mines probabilistic grammars from sample corpora. A Miner is immutable
// after construction and safe for concurrent use; all mutable mining state is
// local to each Mine call.
type Miner struct {
	grammar grammar.Grammar
	start   string
	parser  parser.Parser
	workers int
}

// Option configures a Miner.
type Option func(*Miner)

// WithWorkers sets the number of goroutines parsing samples concurrently
// within one Mine call. Values below 2 keep mining sequential.
func WithWorkers(n int) Option {
	return func(m *Miner) {
		if n > 1 {
			m.workers = n
		}
	}
}

// WithParser substitutes the parsing capability. The default is the bundled
// Earley parser.
func WithParser(p parser.Parser) Option {
	return func(m *Miner) {
		m.parser = p
	}
}

// New validates g and builds a Miner rooted at start. Malformed grammars are
// rejected here, before any mining begins.
func New(g grammar.Grammar, start string, opts ...Option) (*Miner, error) {
	if err := grammar.Validate(g, start); err != nil {
		return nil, err
	}
	m := &Miner{grammar: grammar.Clone(g), start: start, workers: 1}
	for _, opt := range opts {
		opt(m)
	}
	if m.parser == nil {
		p, err := parser.NewEarley(m.grammar, start)
		if err != nil {
			return nil, err
		}
		m.parser = p
	}
	return m, nil
}

// Mine parses every sample, aggregates alternative-choice counts over all
// derivation trees, and returns the grammar with learned probabilities.
// Nonterminals never exercised by any sample fall back to a uniform
// distribution over their alternatives, so every nonterminal ends up with a
// usable distribution. Mining the same samples twice yields identical results.
func (m *Miner) Mine(ctx context.Context, samples []string) (*grammar.Probabilistic, *Report, error) {
	start := time.Now()

	var counter choiceCounter
	var failures []SampleFailure
	var err error
	if m.workers > 1 && len(samples) > 1 {
		counter, failures, err = m.countParallel(ctx, samples)
	} else {
		counter, failures, err = m.countSequential(ctx, samples)
	}
	if err != nil {
		return nil, nil, err
	}

	report := &Report{
		Samples:  len(samples),
		Parsed:   len(samples) - len(failures),
		Failed:   len(failures),
		Failures: failures,
		Duration: time.Since(start),
	}
	return m.normalize(counter), report, nil
}

func (m *Miner) countSequential(ctx context.Context, samples []string) (choiceCounter, []SampleFailure, error) {
	counter := newChoiceCounter(m.grammar)
	var failures []SampleFailure
	for i, sample := range samples {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		tree, err := m.parser.Parse(sample)
		if err != nil {
			failures = append(failures, SampleFailure{Index: i, Input: sample, Error: err.Error()})
			continue
		}
		counter.observe(tree)
	}
	return counter, failures, nil
}

// countParallel fans samples out to a worker pool. Every worker owns a private
// counter; the partial counters merge additively after all workers join, and
// normalization runs exactly once afterwards, so the result is identical to
// sequential mining.
func (m *Miner) countParallel(ctx context.Context, samples []string) (choiceCounter, []SampleFailure, error) {
	type indexed struct {
		index int
		input string
	}
	jobs := make(chan indexed)

	var wg sync.WaitGroup
	partials := make([]choiceCounter, m.workers)
	partialFails := make([][]SampleFailure, m.workers)
	for w := 0; w < m.workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			counter := newChoiceCounter(m.grammar)
			for job := range jobs {
				tree, err := m.parser.Parse(job.input)
				if err != nil {
					partialFails[w] = append(partialFails[w], SampleFailure{Index: job.index, Input: job.input, Error: err.Error()})
					continue
				}
				counter.observe(tree)
			}
			partials[w] = counter
		}(w)
	}

	var ctxErr error
feed:
	for i, sample := range samples {
		select {
		case jobs <- indexed{i, sample}:
		case <-ctx.Done():
			ctxErr = ctx.Err()
			break feed
		}
	}
	close(jobs)
	wg.Wait()
	if ctxErr != nil {
		return nil, nil, ctxErr
	}

	counter := newChoiceCounter(m.grammar)
	var failures []SampleFailure
	for w := 0; w < m.workers; w++ {
		counter.merge(partials[w])
		failures = append(failures, partialFails[w]...)
	}
	sort.Slice(failures, func(i, j int) bool { return failures[i].Index < failures[j].Index })
	return counter, failures, nil
}

// normalize folds counts into per-nonterminal distributions: count/total when
// the nonterminal was exercised, uniform otherwise.
func (m *Miner) normalize(counter choiceCounter) *grammar.Probabilistic {
	rules := make(map[string][]grammar.WeightedAlternative, len(m.grammar))
	for name, expansions := range m.grammar {
		counts := counter[name]
		total := 0
		for _, n := range counts {
			total += n
		}

		alts := make([]grammar.WeightedAlternative, len(expansions))
		for i, expansion := range expansions {
			p := 0.0
			if total > 0 {
				p = float64(counts[i]) / float64(total)
			} else if len(expansions) > 0 {
				p = 1.0 / float64(len(expansions))
			}
			alts[i] = grammar.WeightedAlternative{Expansion: expansion, Probability: p}
		}
		rules[name] = alts
	}
	return &grammar.Probabilistic{Start: m.start, Rules: rules}
}

// Grammar returns the validated base grammar the miner was built with.
func (m *Miner) Grammar() grammar.Grammar {
	return grammar.Clone(m.grammar)
}

// Start returns the start symbol.
func (m *Miner) Start() string {
	return m.start
}

// String implements fmt.Stringer for log output.
func (m *Miner) String() string {
	return fmt.Sprintf("miner(start=%s, nonterminals=%d, workers=%d)", m.start, len(m.grammar), m.workers)
}
