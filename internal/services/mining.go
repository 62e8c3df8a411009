package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/grammarkit/mining-service/internal/grammar"
	"github.com/grammarkit/mining-service/internal/miner"
	"github.com/grammarkit/mining-service/internal/models"
	"github.com/grammarkit/mining-service/internal/repository"
)

type MiningRequest struct {
	TraceID string   `json:"trace_id,omitempty"`
	ReqID   string   `json:"req_id"`
	Grammar string   `json:"grammar"` // inline JSON definition or dir/name reference
	Start   string   `json:"start,omitempty"`
	Samples []string `json:"samples"`
	Workers int      `json:"workers,omitempty"` // parse fan-out override
	ReplyTo string   `json:"reply_to,omitempty"`
}

type MiningResponse struct {
	ReqID      string                                   `json:"req_id"`
	Start      string                                   `json:"start,omitempty"`
	Rules      map[string][]grammar.WeightedAlternative `json:"rules,omitempty"`
	Samples    int                                      `json:"samples"`
	Parsed     int                                      `json:"parsed"`
	Failed     int                                      `json:"failed"`
	Failures   []miner.SampleFailure                    `json:"failures,omitempty"`
	DurationMs int64                                    `json:"duration_ms"`
	Error      string                                   `json:"error,omitempty"`
}

type MiningService struct {
	repo           repository.Repository
	grammarService *GrammarService
	workers        int
}

func NewMiningService(repo repository.Repository, grammarService *GrammarService, workers int) *MiningService {
	return &MiningService{
		repo:           repo,
		grammarService: grammarService,
		workers:        workers,
	}
}

// ProcessMining resolves the requested grammar, mines production-choice
// probabilities from the samples and logs the run. Per-sample parse failures
// are reported in the response but never fail the run; only a malformed
// grammar or a cancelled context does.
func (s *MiningService) ProcessMining(ctx context.Context, req MiningRequest, source string, replyTo string, workerID string) (response *MiningResponse, err error) {
	start := time.Now()

	// Add service-level crash recovery
	defer func() {
		if r := recover(); r != nil {
			duration := time.Since(start)
			errStr := fmt.Sprintf("service panic: %v", r)

			traceID := req.TraceID
			if traceID == "" {
				traceID = req.ReqID
			}

			panicLog := &models.RunLog{
				Timestamp:   start,
				TraceID:     traceID,
				RunID:       req.ReqID,
				WorkerID:    workerID,
				Source:      source,
				ReplyTo:     replyTo,
				GrammarUsed: req.Grammar,
				StartSymbol: req.Start,
				Samples:     len(req.Samples),
				DurationMs:  float64(duration.Milliseconds()),
				Status:      "panic",
				Error:       errStr,
			}
			s.repo.Run().LogRun(ctx, panicLog)

			response = &MiningResponse{
				ReqID:      req.ReqID,
				Samples:    len(req.Samples),
				DurationMs: duration.Milliseconds(),
				Error:      errStr,
			}
			err = fmt.Errorf("service panic: %v", r)
		}
	}()

	traceID := req.TraceID
	if traceID == "" {
		traceID = req.ReqID // fallback to request ID
	}

	workers := req.Workers
	if workers <= 0 {
		workers = s.workers
	}

	var pg *grammar.Probabilistic
	var report *miner.Report
	var startSym string

	g, startSym, resolveErr := s.grammarService.ResolveGrammar(req.Grammar, req.Start)
	err = resolveErr
	if err == nil {
		var m *miner.Miner
		m, err = miner.New(g, startSym, miner.WithWorkers(workers))
		if err == nil {
			pg, report, err = m.Mine(ctx, req.Samples)
		}
	}

	duration := time.Since(start)
	status := "ok"
	errStr := ""
	if err != nil {
		status = "error"
		errStr = err.Error()
	}

	runLog := &models.RunLog{
		Timestamp:   start,
		TraceID:     traceID,
		RunID:       req.ReqID,
		WorkerID:    workerID,
		Source:      source,
		ReplyTo:     replyTo,
		GrammarUsed: grammarRefForLog(req.Grammar),
		StartSymbol: startSym,
		Samples:     len(req.Samples),
		DurationMs:  float64(duration.Milliseconds()),
		Status:      status,
		Error:       errStr,
	}
	if report != nil {
		runLog.Parsed = report.Parsed
		runLog.Failed = report.Failed
	}
	if pg != nil {
		if b, marshalErr := json.Marshal(pg.Rules); marshalErr == nil {
			runLog.ResultJSON = string(b)
		}
	}
	s.repo.Run().LogRun(ctx, runLog)

	response = &MiningResponse{
		ReqID:      req.ReqID,
		DurationMs: duration.Milliseconds(),
		Samples:    len(req.Samples),
	}
	if pg != nil {
		response.Start = pg.Start
		response.Rules = pg.Rules
	}
	if report != nil {
		response.Parsed = report.Parsed
		response.Failed = report.Failed
		response.Failures = report.Failures
	}
	if err != nil {
		response.Error = errStr
		slog.Warn("Mining run failed", "req_id", req.ReqID, "error", errStr)
	}

	return response, err
}

// grammarRefForLog keeps run logs readable when the grammar was supplied
// inline instead of by reference.
func grammarRefForLog(ref string) string {
	if len(ref) > 120 {
		return "inline"
	}
	return ref
}

// GetRunLogs retrieves mining run logs through the repository interface
func (s *MiningService) GetRunLogs(ctx context.Context, limit int) ([]*models.RunLog, error) {
	return s.repo.Run().GetRunLogs(ctx, limit)
}

// GetRepository returns the repository for use by other services
func (s *MiningService) GetRepository() repository.Repository {
	return s.repo
}
