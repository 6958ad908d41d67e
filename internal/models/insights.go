package models

import "encoding/json"

// InsightStatus tracks the lifecycle of one proxied analysis call.
type InsightStatus string

const (
	InsightPending  InsightStatus = "PENDING"
	InsightRetrying InsightStatus = "RETRYING"
	InsightComplete InsightStatus = "COMPLETE"
	InsightFailed   InsightStatus = "FAILED"
)

// InsightContext is the structured snapshot the client sends alongside its
// prompt. The sections are passed through verbatim into the model prompt.
type InsightContext struct {
	Stats    json.RawMessage `json:"stats,omitempty"`
	Odds     json.RawMessage `json:"odds,omitempty"`
	Injuries json.RawMessage `json:"injuries,omitempty"`
}

// InsightRequest is the body of POST /generate-insights. Request-scoped,
// never persisted.
type InsightRequest struct {
	Prompt  string         `json:"prompt" binding:"required"`
	Context InsightContext `json:"context"`
}

// InsightResult is the outcome of one analysis call. Text is the upstream
// completion verbatim; Attempts counts retries actually performed.
type InsightResult struct {
	Status   InsightStatus `json:"status"`
	Text     string        `json:"text,omitempty"`
	Attempts int           `json:"attempts"`
}
