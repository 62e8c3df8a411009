package models

import "time"

// RunLog represents one logged mining run
type RunLog struct {
	Timestamp   time.Time `json:"ts"`
	TraceID     string    `json:"trace_id"`
	RunID       string    `json:"run_id"`
	WorkerID    string    `json:"worker_id"`
	Source      string    `json:"source"`
	ReplyTo     string    `json:"reply_to"`
	GrammarUsed string    `json:"grammar_used"`
	StartSymbol string    `json:"start_symbol"`
	Samples     int       `json:"samples"`
	Parsed      int       `json:"parsed"`
	Failed      int       `json:"failed"`
	ResultJSON  string    `json:"result_json"`
	DurationMs  float64   `json:"dur_ms"`
	Status      string    `json:"status"`
	Error       string    `json:"error"`
}
