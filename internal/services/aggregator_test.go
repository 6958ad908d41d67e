package services

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Donovan-Gamboa/NFL-Insight-Analysis/internal/models"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel) // Reduce noise in tests
	return log
}

func testAggregator() *Aggregator {
	return NewAggregator(DefaultMergeOptions(), testLogger())
}

func record(entityType models.EntityType, id string, attrs map[string]interface{}, ts time.Time) models.NormalizedRecord {
	return models.NormalizedRecord{
		EntityType:      entityType,
		ID:              id,
		Attributes:      attrs,
		SourceTimestamp: ts,
	}
}

func TestMergeDisjointSetsYieldsUnion(t *testing.T) {
	ts := time.Date(2025, 10, 1, 12, 0, 0, 0, time.UTC)
	statsSet := models.RecordSet{
		Source:   "nflverse",
		Category: "stats",
		Records: []models.NormalizedRecord{
			record(models.EntityPlayer, "joshallen", map[string]interface{}{"pass_yards": 4200}, ts),
			record(models.EntityTeam, "BUF", map[string]interface{}{"abbr": "BUF"}, ts),
		},
	}
	espnSet := models.RecordSet{
		Source:   "espn",
		Category: "schedule_injury",
		Records: []models.NormalizedRecord{
			record(models.EntityGame, "401547", map[string]interface{}{"week": 5}, ts),
			record(models.EntityPlayer, "daltonkincaid", map[string]interface{}{"injury_status": "Questionable"}, ts),
		},
	}

	agg := testAggregator()
	doc, err := agg.Merge([]models.RecordSet{statsSet, espnSet})
	require.NoError(t, err)

	assert.Equal(t, 4, doc.EntityCount())
	assert.Contains(t, doc.Entities[models.EntityPlayer], "joshallen")
	assert.Contains(t, doc.Entities[models.EntityPlayer], "daltonkincaid")
	assert.Contains(t, doc.Entities[models.EntityTeam], "BUF")
	assert.Contains(t, doc.Entities[models.EntityGame], "401547")
	assert.ElementsMatch(t, []string{"nflverse", "espn"}, doc.SourcesUsed)

	// Reordering disjoint input sets must not change the merged content.
	reversed, err := agg.Merge([]models.RecordSet{espnSet, statsSet})
	require.NoError(t, err)
	assert.Equal(t, doc.Entities, reversed.Entities)
}

func TestMergeSelfIsIdempotent(t *testing.T) {
	ts := time.Date(2025, 10, 1, 12, 0, 0, 0, time.UTC)
	set := models.RecordSet{
		Source: "espn",
		Records: []models.NormalizedRecord{
			record(models.EntityPlayer, "jamescook", map[string]interface{}{"injury_status": "Probable"}, ts),
			record(models.EntityGame, "401547", map[string]interface{}{"week": 5, "odds_h2h": "line-a"}, ts),
		},
	}

	agg := testAggregator()
	once, err := agg.Merge([]models.RecordSet{set})
	require.NoError(t, err)
	twice, err := agg.Merge([]models.RecordSet{set, set})
	require.NoError(t, err)

	assert.Equal(t, once.Entities, twice.Entities)
}

func TestMergeFirstSourceWinsExceptOverrideKeys(t *testing.T) {
	early := time.Date(2025, 10, 1, 10, 0, 0, 0, time.UTC)
	late := early.Add(2 * time.Hour)

	statsSet := models.RecordSet{
		Source: "nflverse",
		Records: []models.NormalizedRecord{
			record(models.EntityPlayer, "joshallen", map[string]interface{}{
				"display_name": "J.Allen",
				"props":        "stale-line",
			}, early),
		},
	}
	oddsSet := models.RecordSet{
		Source: "oddsapi",
		Records: []models.NormalizedRecord{
			record(models.EntityPlayer, "joshallen", map[string]interface{}{
				"display_name": "Josh Allen",
				"props":        "live-line",
			}, late),
		},
	}

	doc, err := testAggregator().Merge([]models.RecordSet{statsSet, oddsSet})
	require.NoError(t, err)

	player := doc.Entities[models.EntityPlayer]["joshallen"]
	// display_name keeps the higher-priority source's value
	assert.Equal(t, "J.Allen", player.Attributes["display_name"])
	// props is an override key: the newest timestamp wins regardless of priority
	assert.Equal(t, "live-line", player.Attributes["props"])
}

func TestMergeFailedAdapterLeavesOtherCategoriesIntact(t *testing.T) {
	ts := time.Date(2025, 10, 1, 12, 0, 0, 0, time.UTC)
	// The odds adapter failed this run, so its set simply is not passed in.
	statsSet := models.RecordSet{
		Source: "nflverse",
		Records: []models.NormalizedRecord{
			record(models.EntityPlayer, "joshallen", map[string]interface{}{"pass_yards": 4200}, ts),
		},
	}
	espnSet := models.RecordSet{
		Source: "espn",
		Records: []models.NormalizedRecord{
			record(models.EntityGame, "401547", map[string]interface{}{"week": 5}, ts),
		},
	}

	doc, err := testAggregator().Merge([]models.RecordSet{statsSet, espnSet})
	require.NoError(t, err)

	assert.Equal(t, 2, doc.EntityCount())
	assert.ElementsMatch(t, []string{"nflverse", "espn"}, doc.SourcesUsed)
	assert.NotContains(t, doc.SourcesUsed, "oddsapi")
}

func TestMergeThreeSourcesOntoOnePlayer(t *testing.T) {
	ts := time.Date(2025, 10, 1, 12, 0, 0, 0, time.UTC)
	sets := []models.RecordSet{
		{Source: "nflverse", Records: []models.NormalizedRecord{
			record(models.EntityPlayer, "joshallen", map[string]interface{}{"pass_yards": 4200}, ts),
		}},
		{Source: "espn", Records: []models.NormalizedRecord{
			record(models.EntityPlayer, "joshallen", map[string]interface{}{"injury_status": "Probable"}, ts),
		}},
		{Source: "oddsapi", Records: []models.NormalizedRecord{
			record(models.EntityPlayer, "joshallen", map[string]interface{}{"props": 265.5}, ts),
		}},
	}

	doc, err := testAggregator().Merge(sets)
	require.NoError(t, err)

	require.Len(t, doc.Entities[models.EntityPlayer], 1)
	player := doc.Entities[models.EntityPlayer]["joshallen"]
	assert.Equal(t, 4200, player.Attributes["pass_yards"])
	assert.Equal(t, "Probable", player.Attributes["injury_status"])
	assert.Equal(t, 265.5, player.Attributes["props"])
}

func TestMergeSkipsInvalidRecords(t *testing.T) {
	ts := time.Date(2025, 10, 1, 12, 0, 0, 0, time.UTC)
	set := models.RecordSet{
		Source: "espn",
		Records: []models.NormalizedRecord{
			record(models.EntityPlayer, "", map[string]interface{}{"injury_status": "Out"}, ts),
			record(models.EntityType("franchise"), "BUF", map[string]interface{}{"abbr": "BUF"}, ts),
			record(models.EntityPlayer, "khalilshakir", map[string]interface{}{"injury_status": "Probable"}, ts),
		},
	}

	doc, err := testAggregator().Merge([]models.RecordSet{set})
	require.NoError(t, err)

	assert.Equal(t, 1, doc.EntityCount())
	assert.Contains(t, doc.Entities[models.EntityPlayer], "khalilshakir")
}

func TestWriteDocumentAtomicReplace(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dashboard_data.json")
	agg := testAggregator()

	first := models.NewAggregatedDocument("run-1", time.Now())
	first.Entities[models.EntityTeam]["BUF"] = models.Entity{Attributes: map[string]interface{}{"abbr": "BUF"}}
	require.NoError(t, agg.WriteDocument(first, path))

	second := models.NewAggregatedDocument("run-2", time.Now())
	require.NoError(t, agg.WriteDocument(second, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var loaded models.AggregatedDocument
	require.NoError(t, json.Unmarshal(data, &loaded))
	assert.Equal(t, "run-2", loaded.RunID)

	// No temp leftovers in the artifact directory.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "dashboard_data.json", entries[0].Name())
}
