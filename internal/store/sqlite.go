package store

import (
	"database/sql"
	"encoding/json"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

type DB struct {
	*sql.DB
}

func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	// Create events table
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS events(
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		ts REAL,
		level TEXT,
		code TEXT,
		msg TEXT,
		meta TEXT
	)`); err != nil {
		return nil, err
	}

	// Create runs table with one row per mining run
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS runs(
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		ts REAL,
		trace_id TEXT,
		run_id TEXT,
		worker_id TEXT,
		source TEXT,
		reply_to TEXT,
		grammar_used TEXT,
		start_symbol TEXT,
		samples INTEGER,
		parsed INTEGER,
		failed INTEGER,
		result_json TEXT,
		dur_ms REAL,
		status TEXT,
		error TEXT
	)`); err != nil {
		return nil, err
	}

	return &DB{db}, nil
}

func (db *DB) Event(level, code, msg string, meta map[string]interface{}) {
	m := ""
	if meta != nil {
		b, _ := json.Marshal(meta)
		m = string(b)
	}
	_, _ = db.Exec(`INSERT INTO events(ts,level,code,msg,meta) VALUES(?,?,?,?,?)`,
		float64(time.Now().UnixNano())/1e9, level, code, msg, m)
}

func (db *DB) Run(start time.Time, traceID, runID, workerID, source, replyTo, grammarUsed, startSymbol string,
	samples, parsed, failed int, resultJSON string, dur time.Duration, status, errStr string) {
	_, _ = db.Exec(`INSERT INTO runs(
		ts, trace_id, run_id, worker_id, source, reply_to, grammar_used, start_symbol, samples, parsed, failed, result_json, dur_ms, status, error)
		VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		float64(start.UnixNano())/1e9, traceID, runID, workerID, source, replyTo, grammarUsed, startSymbol, samples, parsed, failed, resultJSON, float64(dur.Milliseconds()), status, errStr)
}
