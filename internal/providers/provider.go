package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/Donovan-Gamboa/NFL-Insight-Analysis/internal/models"
)

// ResponseCache caches upstream responses between runs. A nil cache is a
// valid no-op implementation.
type ResponseCache interface {
	Get(key string, dest interface{}) error
	Set(key string, value interface{}, ttl time.Duration) error
}

// Cache TTLs per upstream payload category.
const (
	teamDirectoryTTL = 24 * time.Hour   // logos and abbreviations change rarely
	seasonStatsTTL   = 6 * time.Hour    // play-by-play updates after game days
	oddsTTL          = 5 * time.Minute  // live lines move constantly
	injuryReportTTL  = 15 * time.Minute // status can change quickly
)

// getJSON performs a GET against an upstream provider and decodes the JSON
// body. Transport failures and non-success statuses map to
// ErrSourceUnavailable, undecodable bodies to ErrSchemaMismatch.
func getJSON(ctx context.Context, client *http.Client, url string, dest interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: unexpected status %d", models.ErrSourceUnavailable, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("%w: %v", models.ErrSchemaMismatch, err)
	}
	return nil
}

// cacheGet is a nil-safe cache read. It returns false on miss or when no
// cache is configured.
func cacheGet(cache ResponseCache, key string, dest interface{}) bool {
	if cache == nil {
		return false
	}
	return cache.Get(key, dest) == nil
}

// cacheSet is a nil-safe cache write.
func cacheSet(cache ResponseCache, key string, value interface{}, ttl time.Duration) {
	if cache == nil {
		return
	}
	_ = cache.Set(key, value, ttl)
}
