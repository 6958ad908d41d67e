package models

import "time"

// Entity is one merged entity inside the aggregated document.
type Entity struct {
	Attributes map[string]interface{} `json:"attributes"`
}

// AggregatedDocument is the cache artifact produced by one pipeline run. It
// is rebuilt wholesale every run and is read-only to the serving layer.
type AggregatedDocument struct {
	RunID       string                           `json:"run_id"`
	GeneratedAt time.Time                        `json:"generated_at"`
	SourcesUsed []string                         `json:"sources_used"`
	Entities    map[EntityType]map[string]Entity `json:"entities"`
}

// NewAggregatedDocument returns an empty document with all entity buckets
// initialized.
func NewAggregatedDocument(runID string, generatedAt time.Time) *AggregatedDocument {
	return &AggregatedDocument{
		RunID:       runID,
		GeneratedAt: generatedAt,
		Entities: map[EntityType]map[string]Entity{
			EntityTeam:   {},
			EntityPlayer: {},
			EntityGame:   {},
		},
	}
}

// EntityCount returns the total number of merged entities across all types.
func (d *AggregatedDocument) EntityCount() int {
	count := 0
	for _, bucket := range d.Entities {
		count += len(bucket)
	}
	return count
}
