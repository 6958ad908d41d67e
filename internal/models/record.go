package models

import "time"

// EntityType identifies which namespace a record's ID lives in. IDs are only
// required to be unique within a single entity type.
type EntityType string

const (
	EntityTeam   EntityType = "team"
	EntityPlayer EntityType = "player"
	EntityGame   EntityType = "game"
)

// Valid reports whether t is one of the recognized entity types.
func (t EntityType) Valid() bool {
	switch t {
	case EntityTeam, EntityPlayer, EntityGame:
		return true
	}
	return false
}

// NormalizedRecord is the common shape every source adapter projects its raw
// upstream data into. Attributes hold source-specific fields keyed by stable
// names; the aggregator merges them across sources by (EntityType, ID).
type NormalizedRecord struct {
	EntityType      EntityType             `json:"entity_type"`
	ID              string                 `json:"id"`
	Attributes      map[string]interface{} `json:"attributes"`
	SourceTimestamp time.Time              `json:"source_timestamp"`
}

// RecordSet is one adapter's normalized output for a single run.
type RecordSet struct {
	Source   string             `json:"source"`
	Category string             `json:"category"`
	Records  []NormalizedRecord `json:"records"`
}
