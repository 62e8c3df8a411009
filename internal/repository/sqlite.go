package repository

import (
	"context"
	"time"

	"github.com/grammarkit/mining-service/internal/models"
	"github.com/grammarkit/mining-service/internal/store"
)

// SQLiteRepository implements Repository interface using SQLite
type SQLiteRepository struct {
	db          *store.DB
	grammarRepo GrammarRepositoryInterface
	runRepo     RunRepositoryInterface
	eventRepo   EventRepositoryInterface
}

func NewSQLiteRepository(db *store.DB, grammarRoot string) Repository {
	return &SQLiteRepository{
		db:          db,
		grammarRepo: NewGrammarRepository(grammarRoot),
		runRepo:     &SQLiteRunRepository{db: db},
		eventRepo:   &SQLiteEventRepository{db: db},
	}
}

func (r *SQLiteRepository) Grammar() GrammarRepositoryInterface {
	return r.grammarRepo
}

func (r *SQLiteRepository) Run() RunRepositoryInterface {
	return r.runRepo
}

func (r *SQLiteRepository) Event() EventRepositoryInterface {
	return r.eventRepo
}

// SQLiteRunRepository handles mining run logging
type SQLiteRunRepository struct {
	db *store.DB
}

func (r *SQLiteRunRepository) LogRun(ctx context.Context, run *models.RunLog) error {
	r.db.Run(
		run.Timestamp,
		run.TraceID,
		run.RunID,
		run.WorkerID,
		run.Source,
		run.ReplyTo,
		run.GrammarUsed,
		run.StartSymbol,
		run.Samples,
		run.Parsed,
		run.Failed,
		run.ResultJSON,
		time.Duration(run.DurationMs)*time.Millisecond,
		run.Status,
		run.Error,
	)
	return nil
}

func (r *SQLiteRunRepository) GetRunLogs(ctx context.Context, limit int) ([]*models.RunLog, error) {
	rows, err := r.db.Query(`SELECT ts,trace_id,run_id,worker_id,source,reply_to,grammar_used,start_symbol,samples,parsed,failed,result_json,dur_ms,status,error FROM runs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []*models.RunLog
	for rows.Next() {
		var log models.RunLog
		var tsFloat float64

		if err := rows.Scan(
			&tsFloat, &log.TraceID, &log.RunID, &log.WorkerID, &log.Source, &log.ReplyTo,
			&log.GrammarUsed, &log.StartSymbol, &log.Samples, &log.Parsed, &log.Failed,
			&log.ResultJSON, &log.DurationMs, &log.Status, &log.Error,
		); err == nil {
			log.Timestamp = time.Unix(0, int64(tsFloat*1e9))
			logs = append(logs, &log)
		}
	}

	return logs, nil
}

// SQLiteEventRepository handles event logging
type SQLiteEventRepository struct {
	db *store.DB
}

func (r *SQLiteEventRepository) LogEvent(ctx context.Context, level, code, msg string, meta map[string]interface{}) error {
	r.db.Event(level, code, msg, meta)
	return nil
}
