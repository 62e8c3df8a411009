package client

import "time"

// WeightedAlternative is one expansion of a nonterminal together with its
// learned probability.
type WeightedAlternative struct {
	Expansion   string  `json:"expansion"`
	Probability float64 `json:"probability"`
}

// MiningRequest represents a request to the mining service
type MiningRequest struct {
	ReqID   string   `json:"req_id"`
	Grammar string   `json:"grammar"`
	Start   string   `json:"start,omitempty"`
	Samples []string `json:"samples"`
	Workers int      `json:"workers,omitempty"`
	ReplyTo string   `json:"reply_to,omitempty"`
}

// SampleFailure reports one sample that did not parse
type SampleFailure struct {
	Index int    `json:"index"`
	Input string `json:"input"`
	Error string `json:"error"`
}

// MiningResponse represents a response from the mining service
type MiningResponse struct {
	ReqID      string                           `json:"req_id"`
	Start      string                           `json:"start,omitempty"`
	Rules      map[string][]WeightedAlternative `json:"rules,omitempty"`
	Samples    int                              `json:"samples"`
	Parsed     int                              `json:"parsed"`
	Failed     int                              `json:"failed"`
	Failures   []SampleFailure                  `json:"failures,omitempty"`
	DurationMs int64                            `json:"duration_ms"`
	Error      string                           `json:"error,omitempty"`
}

// GenerateRequest represents a request to sample strings from a learned grammar
type GenerateRequest struct {
	ReqID   string                           `json:"req_id"`
	Start   string                           `json:"start,omitempty"`
	Rules   map[string][]WeightedAlternative `json:"rules"`
	Count   int                              `json:"count,omitempty"`
	Seed    int64                            `json:"seed,omitempty"`
	ReplyTo string                           `json:"reply_to,omitempty"`
}

// GenerateResponse represents generated sample strings
type GenerateResponse struct {
	ReqID      string   `json:"req_id"`
	Outputs    []string `json:"outputs,omitempty"`
	DurationMs int64    `json:"duration_ms"`
	Error      string   `json:"error,omitempty"`
}

// HealthStatus represents service health information
type HealthStatus struct {
	ServiceName  string    `json:"service_name"`
	Status       string    `json:"status"`
	LastActivity time.Time `json:"last_activity"`
	Capabilities []string  `json:"capabilities"`
	Endpoint     string    `json:"endpoint"`
	NATSTopic    string    `json:"nats_topic"`
	Version      string    `json:"version"`
}
