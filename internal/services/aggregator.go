package services

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Donovan-Gamboa/NFL-Insight-Analysis/internal/models"
)

// MergeOptions is the explicit priority table governing cross-source merges.
// Lower priority values win; keys listed in OverrideKeys ignore priority and
// take the record with the newest source timestamp instead, so live odds
// always replace stale odds.
type MergeOptions struct {
	SourcePriority map[string]int
	OverrideKeys   map[string]bool
}

// DefaultMergeOptions returns the standing priority table:
// stats > schedule/injury > odds, with the odds fields as override keys.
func DefaultMergeOptions() MergeOptions {
	return MergeOptions{
		SourcePriority: map[string]int{
			"nflverse": 0,
			"espn":     1,
			"oddsapi":  2,
		},
		OverrideKeys: map[string]bool{
			"odds_h2h":     true,
			"odds_spreads": true,
			"odds_totals":  true,
			"props":        true,
		},
	}
}

// Aggregator merges normalized record sets into the cache artifact.
type Aggregator struct {
	opts   MergeOptions
	logger *logrus.Logger
	now    func() time.Time
}

func NewAggregator(opts MergeOptions, logger *logrus.Logger) *Aggregator {
	return &Aggregator{
		opts:   opts,
		logger: logger,
		now:    time.Now,
	}
}

// Merge groups records by (entity type, id) and unions their attributes in
// source-priority order. A later source's value is only applied when the key
// is absent, except for override keys. Records with an empty id or an
// unrecognized entity type are skipped and logged.
func (a *Aggregator) Merge(sets []models.RecordSet) (*models.AggregatedDocument, error) {
	doc := models.NewAggregatedDocument(uuid.NewString(), a.now())

	ordered := make([]models.RecordSet, len(sets))
	copy(ordered, sets)
	sort.SliceStable(ordered, func(i, j int) bool {
		return a.priority(ordered[i].Source) < a.priority(ordered[j].Source)
	})

	type overrideKey struct {
		entityType models.EntityType
		id         string
		attr       string
	}
	overrideSeen := make(map[overrideKey]time.Time)
	sourceSeen := make(map[string]bool)

	for _, set := range ordered {
		merged := 0
		for _, rec := range set.Records {
			if rec.ID == "" || !rec.EntityType.Valid() {
				a.logger.WithFields(logrus.Fields{
					"component":   "aggregator",
					"source":      set.Source,
					"entity_type": string(rec.EntityType),
				}).Warn("Skipping record with missing id or unrecognized entity type")
				continue
			}

			bucket := doc.Entities[rec.EntityType]
			entity, ok := bucket[rec.ID]
			if !ok {
				entity = models.Entity{Attributes: make(map[string]interface{}, len(rec.Attributes))}
			}

			for attr, value := range rec.Attributes {
				if a.opts.OverrideKeys[attr] {
					key := overrideKey{rec.EntityType, rec.ID, attr}
					if seen, tracked := overrideSeen[key]; !tracked || rec.SourceTimestamp.After(seen) {
						entity.Attributes[attr] = value
						overrideSeen[key] = rec.SourceTimestamp
					}
					continue
				}
				if _, exists := entity.Attributes[attr]; !exists {
					entity.Attributes[attr] = value
				}
			}

			bucket[rec.ID] = entity
			merged++
		}

		if merged > 0 && !sourceSeen[set.Source] {
			sourceSeen[set.Source] = true
			doc.SourcesUsed = append(doc.SourcesUsed, set.Source)
		}
	}

	a.logger.WithFields(logrus.Fields{
		"component": "aggregator",
		"run_id":    doc.RunID,
		"entities":  doc.EntityCount(),
		"sources":   doc.SourcesUsed,
	}).Info("Merged record sets into aggregated document")

	return doc, nil
}

func (a *Aggregator) priority(source string) int {
	if p, ok := a.opts.SourcePriority[source]; ok {
		return p
	}
	// unknown sources merge last, after every configured one
	return len(a.opts.SourcePriority) + 1
}

// WriteDocument persists the document to path atomically: it writes to a
// temp file in the same directory and renames it over the target, so a
// concurrent reader always sees either the old or the new artifact.
func (a *Aggregator) WriteDocument(doc *models.AggregatedDocument, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating artifact directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".dashboard_data-*.json")
	if err != nil {
		return fmt.Errorf("creating temp artifact: %w", err)
	}
	defer os.Remove(tmp.Name())

	encoder := json.NewEncoder(tmp)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(doc); err != nil {
		tmp.Close()
		return fmt.Errorf("encoding artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp artifact: %w", err)
	}

	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("setting artifact permissions: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replacing artifact: %w", err)
	}

	a.logger.WithFields(logrus.Fields{
		"component": "aggregator",
		"run_id":    doc.RunID,
		"path":      path,
	}).Info("Artifact written")
	return nil
}
