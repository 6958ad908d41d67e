package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/Donovan-Gamboa/NFL-Insight-Analysis/internal/config"
	"github.com/Donovan-Gamboa/NFL-Insight-Analysis/internal/models"
)

func newTestOddsAdapter(baseURL, apiKey string, cache ResponseCache) *OddsAdapter {
	cfg := &config.Config{
		OddsAPIKey:         apiKey,
		OddsBaseURL:        baseURL,
		TeamName:           "Buffalo Bills",
		ExternalAPITimeout: 5 * time.Second,
	}
	a := NewOddsAdapter(cfg, cache, testLogger())
	a.limiter = rate.NewLimiter(rate.Inf, 1)
	a.now = func() time.Time { return testNow }
	return a
}

func testUpcomingGame() *UpcomingGame {
	return &UpcomingGame{
		EventID:      "401005",
		Week:         5,
		Date:         testNow.Add(96 * time.Hour),
		OpponentID:   "15",
		OpponentName: "Miami Dolphins",
		OpponentAbbr: "MIA",
	}
}

func oddsFixtureServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc("/sports/americanfootball_nfl/events", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[
			{"id":"evt-kc-lv","home_team":"Kansas City Chiefs","away_team":"Las Vegas Raiders"},
			{"id":"evt-buf-mia","home_team":"Buffalo Bills","away_team":"Miami Dolphins"}
		]`)
	})

	mux.HandleFunc("/sports/americanfootball_nfl/events/evt-buf-mia/odds", func(w http.ResponseWriter, r *http.Request) {
		markets := r.URL.Query().Get("markets")
		switch {
		case markets == "h2h":
			fmt.Fprint(w, `{"bookmakers":[{"key":"draftkings","markets":[{"key":"h2h","outcomes":[
				{"name":"Buffalo Bills","price":1.45},
				{"name":"Miami Dolphins","price":2.75}
			]}]}]}`)
		case markets == "player_pass_yds":
			fmt.Fprint(w, `{"bookmakers":[{"key":"draftkings","markets":[{"key":"player_pass_yds","outcomes":[
				{"name":"Over","description":"J.Allen","price":1.87,"point":265.5},
				{"name":"Under","description":"J.Allen","price":1.93,"point":265.5}
			]}]}]}`)
		case strings.HasPrefix(markets, "player_rush"):
			// markets with no quotes from any bookmaker
			fmt.Fprint(w, `{"bookmakers":[]}`)
		default:
			fmt.Fprint(w, `{"bookmakers":[{"key":"draftkings","markets":[]}]}`)
		}
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestOddsAdapterFetch(t *testing.T) {
	server := oddsFixtureServer(t)
	adapter := newTestOddsAdapter(server.URL, "odds-key", nil)

	set, err := adapter.Fetch(context.Background(), testUpcomingGame())
	require.NoError(t, err)
	assert.Equal(t, "oddsapi", set.Source)
	assert.Equal(t, "odds", set.Category)

	var game, player *models.NormalizedRecord
	for i := range set.Records {
		rec := &set.Records[i]
		require.NotEmpty(t, rec.ID)
		switch rec.EntityType {
		case models.EntityGame:
			game = rec
		case models.EntityPlayer:
			player = rec
		}
	}

	// The game record reuses the schedule's event id so odds merge onto the
	// schedule entity rather than creating a parallel one.
	require.NotNil(t, game)
	assert.Equal(t, "401005", game.ID)
	assert.Equal(t, "evt-buf-mia", game.Attributes["odds_event_id"])
	h2h, ok := game.Attributes["odds_h2h"].([]OddsOutcome)
	require.True(t, ok)
	require.Len(t, h2h, 2)
	assert.Equal(t, "Buffalo Bills", h2h[0].Name)
	assert.InDelta(t, 1.45, h2h[0].Price, 0.001)

	// The prop outcome's description resolves to the canonical player id.
	require.NotNil(t, player)
	assert.Equal(t, "joshallen", player.ID)
	assert.Equal(t, "J.Allen", player.Attributes["display_name"])
	props, ok := player.Attributes["props"].(map[string][]OddsOutcome)
	require.True(t, ok)
	require.Contains(t, props, "player_pass_yds")
	require.NotNil(t, props["player_pass_yds"][0].Point)
	assert.InDelta(t, 265.5, *props["player_pass_yds"][0].Point, 0.001)
}

func TestOddsAdapterSkipsWithoutAPIKey(t *testing.T) {
	adapter := newTestOddsAdapter("http://127.0.0.1:1", "", nil)

	set, err := adapter.Fetch(context.Background(), testUpcomingGame())
	require.NoError(t, err)
	assert.Empty(t, set.Records)
}

func TestOddsAdapterSkipsWithoutUpcomingGame(t *testing.T) {
	adapter := newTestOddsAdapter("http://127.0.0.1:1", "odds-key", nil)

	set, err := adapter.Fetch(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, set.Records)
}

func TestOddsAdapterCachesMarketResponses(t *testing.T) {
	var h2hFetches int32
	mux := http.NewServeMux()
	mux.HandleFunc("/sports/americanfootball_nfl/events", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"id":"evt-buf-mia","home_team":"Buffalo Bills","away_team":"Miami Dolphins"}]`)
	})
	mux.HandleFunc("/sports/americanfootball_nfl/events/evt-buf-mia/odds", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("markets") != "h2h" {
			fmt.Fprint(w, `{"bookmakers":[]}`)
			return
		}
		atomic.AddInt32(&h2hFetches, 1)
		fmt.Fprint(w, `{"bookmakers":[{"key":"draftkings","markets":[{"key":"h2h","outcomes":[
			{"name":"Buffalo Bills","price":1.45},
			{"name":"Miami Dolphins","price":2.75}
		]}]}]}`)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	adapter := newTestOddsAdapter(server.URL, "odds-key", newMemoryCache())

	first, err := adapter.Fetch(context.Background(), testUpcomingGame())
	require.NoError(t, err)
	second, err := adapter.Fetch(context.Background(), testUpcomingGame())
	require.NoError(t, err)

	// Second fetch reads the quoted market from cache.
	assert.EqualValues(t, 1, atomic.LoadInt32(&h2hFetches))

	for _, set := range []models.RecordSet{first, second} {
		var game *models.NormalizedRecord
		for i := range set.Records {
			if set.Records[i].EntityType == models.EntityGame {
				game = &set.Records[i]
			}
		}
		require.NotNil(t, game)
		require.Contains(t, game.Attributes, "odds_h2h")
	}
}

func TestOddsAdapterSkipsWhenEventNotListed(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/sports/americanfootball_nfl/events", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"id":"evt-kc-lv","home_team":"Kansas City Chiefs","away_team":"Las Vegas Raiders"}]`)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	adapter := newTestOddsAdapter(server.URL, "odds-key", nil)
	set, err := adapter.Fetch(context.Background(), testUpcomingGame())
	require.NoError(t, err)
	assert.Empty(t, set.Records)
}
