package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Donovan-Gamboa/NFL-Insight-Analysis/internal/config"
	"github.com/Donovan-Gamboa/NFL-Insight-Analysis/internal/models"
	"github.com/Donovan-Gamboa/NFL-Insight-Analysis/internal/providers"
)

// PipelineService orchestrates one aggregation run: fetch every source,
// tolerate per-adapter failures, merge, write the artifact. Runs are
// serialized; callers may invoke Run from the CLI and the cron scheduler
// concurrently without coordinating.
type PipelineService struct {
	cfg        *config.Config
	logger     *logrus.Logger
	stats      *providers.NFLverseAdapter
	espn       *providers.ESPNAdapter
	odds       *providers.OddsAdapter
	breakers   *CircuitBreakerService
	aggregator *Aggregator
	now        func() time.Time

	runMu sync.Mutex
}

// NewPipelineService wires the three source adapters to the aggregator.
func NewPipelineService(
	cfg *config.Config,
	logger *logrus.Logger,
	stats *providers.NFLverseAdapter,
	espn *providers.ESPNAdapter,
	odds *providers.OddsAdapter,
	breakers *CircuitBreakerService,
	aggregator *Aggregator,
) *PipelineService {
	return &PipelineService{
		cfg:        cfg,
		logger:     logger,
		stats:      stats,
		espn:       espn,
		odds:       odds,
		breakers:   breakers,
		aggregator: aggregator,
		now:        time.Now,
	}
}

type fetchResult struct {
	name string
	set  models.RecordSet
	err  error
}

// Run executes one full aggregation run and writes the artifact. It fails
// only when no adapter produced data or the artifact cannot be written;
// individual adapter failures downgrade that category to partial data.
func (p *PipelineService) Run(ctx context.Context) (*models.AggregatedDocument, error) {
	p.runMu.Lock()
	defer p.runMu.Unlock()

	runLog := p.logger.WithFields(logrus.Fields{
		"component": "pipeline",
		"run_id":    uuid.NewString(),
	})
	runLog.Info("Starting aggregation run")
	start := p.now()

	// Phase 1: team stats and schedule/injuries are independent.
	phase1 := p.fetchConcurrently(ctx, map[string]func(context.Context) (models.RecordSet, error){
		p.stats.Name(): p.stats.Fetch,
		p.espn.Name():  p.espn.Fetch,
	})

	var sets []models.RecordSet
	var espnSet *models.RecordSet
	failed := 0
	for _, result := range phase1 {
		if result.err != nil {
			failed++
			runLog.WithError(result.err).WithField("source", result.name).Error("Adapter failed, continuing with partial data")
			continue
		}
		sets = append(sets, result.set)
		if result.name == p.espn.Name() {
			set := result.set
			espnSet = &set
		}
	}

	// Phase 2: odds and opponent stats both depend on knowing the next game.
	var next *providers.UpcomingGame
	if espnSet != nil {
		next = providers.NextGameFromRecords(espnSet.Records, p.now())
	}
	if next != nil {
		runLog.WithFields(logrus.Fields{
			"opponent": next.OpponentName,
			"date":     next.Date,
		}).Info("Identified next game")
	} else {
		runLog.Info("No upcoming game found, skipping opponent and odds fetches")
	}

	phase2 := p.fetchConcurrently(ctx, p.phase2Fetches(next))
	for _, result := range phase2 {
		if result.err != nil {
			failed++
			runLog.WithError(result.err).WithField("source", result.name).Error("Adapter failed, continuing with partial data")
			continue
		}
		sets = append(sets, result.set)
	}

	records := 0
	for _, set := range sets {
		records += len(set.Records)
	}
	if records == 0 {
		return nil, fmt.Errorf("aggregation run produced no data: all adapters failed")
	}

	doc, err := p.aggregator.Merge(sets)
	if err != nil {
		return nil, fmt.Errorf("merging record sets: %w", err)
	}
	if err := p.aggregator.WriteDocument(doc, p.cfg.ArtifactPath); err != nil {
		return nil, fmt.Errorf("writing artifact: %w", err)
	}

	runLog.WithFields(logrus.Fields{
		"duration":        p.now().Sub(start).String(),
		"entities":        doc.EntityCount(),
		"failed_adapters": failed,
	}).Info("Aggregation run complete")
	return doc, nil
}

// phase2Fetches builds the second fetch wave. Both fetches are cheap no-ops
// when there is no upcoming game.
func (p *PipelineService) phase2Fetches(next *providers.UpcomingGame) map[string]func(context.Context) (models.RecordSet, error) {
	fetches := map[string]func(context.Context) (models.RecordSet, error){
		p.odds.Name(): func(ctx context.Context) (models.RecordSet, error) {
			return p.odds.Fetch(ctx, next)
		},
	}
	if next != nil && next.OpponentAbbr != "" {
		fetches[p.stats.Name()] = func(ctx context.Context) (models.RecordSet, error) {
			return p.stats.FetchTeam(ctx, next.OpponentAbbr, false)
		}
	}
	return fetches
}

// fetchConcurrently runs each fetch in its own goroutine behind that
// source's circuit breaker. Each goroutine writes only its own result slot,
// so no locking is needed beyond the final collection.
func (p *PipelineService) fetchConcurrently(ctx context.Context, fetches map[string]func(context.Context) (models.RecordSet, error)) []fetchResult {
	results := make([]fetchResult, 0, len(fetches))
	slots := make([]fetchResult, len(fetches))

	var wg sync.WaitGroup
	i := 0
	for name, fetch := range fetches {
		wg.Add(1)
		go func(slot int, name string, fetch func(context.Context) (models.RecordSet, error)) {
			defer wg.Done()
			outcome, err := p.breakers.Execute(name, func() (interface{}, error) {
				return fetch(ctx)
			})
			result := fetchResult{name: name, err: err}
			if err == nil {
				result.set = outcome.(models.RecordSet)
			}
			slots[slot] = result
		}(i, name, fetch)
		i++
	}
	wg.Wait()

	results = append(results, slots...)
	return results
}
