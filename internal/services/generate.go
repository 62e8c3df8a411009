package services

import (
	"context"
	"fmt"
	"time"

	"github.com/grammarkit/mining-service/internal/generator"
	"github.com/grammarkit/mining-service/internal/grammar"
)

type GenerateRequest struct {
	TraceID string                                   `json:"trace_id,omitempty"`
	ReqID   string                                   `json:"req_id"`
	Start   string                                   `json:"start"`
	Rules   map[string][]grammar.WeightedAlternative `json:"rules"`
	Count   int                                      `json:"count,omitempty"`
	Seed    int64                                    `json:"seed,omitempty"`
	ReplyTo string                                   `json:"reply_to,omitempty"`
}

type GenerateResponse struct {
	ReqID      string   `json:"req_id"`
	Outputs    []string `json:"outputs,omitempty"`
	DurationMs int64    `json:"duration_ms"`
	Error      string   `json:"error,omitempty"`
}

// GenerateService samples strings from mined probabilistic grammars, the
// downstream half of the mine-then-generate workflow.
type GenerateService struct {
	maxDepth int
}

func NewGenerateService(maxDepth int) *GenerateService {
	return &GenerateService{maxDepth: maxDepth}
}

// ProcessGenerate produces Count strings distributed according to the
// request's learned rules.
func (s *GenerateService) ProcessGenerate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	start := time.Now()

	count := req.Count
	if count <= 0 {
		count = 1
	}

	startSym := req.Start
	if startSym == "" {
		startSym = DefaultStartSymbol
	}

	seed := req.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	pg := &grammar.Probabilistic{Start: startSym, Rules: req.Rules}
	gen, err := generator.New(pg, seed, s.maxDepth)
	if err != nil {
		return &GenerateResponse{
			ReqID:      req.ReqID,
			DurationMs: time.Since(start).Milliseconds(),
			Error:      err.Error(),
		}, fmt.Errorf("invalid probabilistic grammar: %w", err)
	}

	outputs, err := gen.GenerateN(count)
	if err != nil {
		return &GenerateResponse{
			ReqID:      req.ReqID,
			DurationMs: time.Since(start).Milliseconds(),
			Error:      err.Error(),
		}, err
	}

	return &GenerateResponse{
		ReqID:      req.ReqID,
		Outputs:    outputs,
		DurationMs: time.Since(start).Milliseconds(),
	}, nil
}
