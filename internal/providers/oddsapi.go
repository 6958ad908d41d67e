package providers

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/Donovan-Gamboa/NFL-Insight-Analysis/internal/config"
	"github.com/Donovan-Gamboa/NFL-Insight-Analysis/internal/models"
)

const oddsSportKey = "americanfootball_nfl"

// marketGroups lists the betting markets to query, in focused groups.
// Smaller requests are more robust than one large one and keep partial data
// flowing when a single market is unavailable upstream.
var marketGroups = []string{
	// Standard team markets
	"h2h",
	"spreads",
	"totals",

	// Passing props
	"player_pass_yds",
	"player_pass_tds",
	"player_pass_attempts",
	"player_pass_completions",
	"player_pass_interceptions",
	"player_pass_longest_completion",

	// Rushing props
	"player_rush_yds",
	"player_rush_attempts",
	"player_rush_longest",

	// Receiving props
	"player_reception_yds",
	"player_receptions",
	"player_reception_longest",

	// Touchdowns / scoring props
	"player_1st_td",
	"player_anytime_td",
}

// OddsAdapter fetches live game odds and player props for the upcoming game
// from The Odds API.
type OddsAdapter struct {
	httpClient *http.Client
	cache      ResponseCache
	logger     *logrus.Logger
	apiKey     string
	baseURL    string
	teamName   string
	limiter    *rate.Limiter
	now        func() time.Time
}

type oddsEvent struct {
	ID       string `json:"id"`
	HomeTeam string `json:"home_team"`
	AwayTeam string `json:"away_team"`
}

type oddsEventResponse struct {
	Bookmakers []oddsBookmaker `json:"bookmakers"`
}

type oddsBookmaker struct {
	Key     string       `json:"key"`
	Markets []oddsMarket `json:"markets"`
}

type oddsMarket struct {
	Key      string        `json:"key"`
	Outcomes []OddsOutcome `json:"outcomes"`
}

// OddsOutcome is one quoted line from a bookmaker.
type OddsOutcome struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Price       float64  `json:"price"`
	Point       *float64 `json:"point,omitempty"`
}

// NewOddsAdapter creates an odds adapter. Requests are paced at one per
// second per The Odds API usage guidance; market responses are cached
// briefly to spend the API quota on line movement, not repeat lookups.
func NewOddsAdapter(cfg *config.Config, cache ResponseCache, logger *logrus.Logger) *OddsAdapter {
	return &OddsAdapter{
		httpClient: &http.Client{Timeout: cfg.ExternalAPITimeout},
		cache:      cache,
		logger:     logger,
		apiKey:     cfg.OddsAPIKey,
		baseURL:    cfg.OddsBaseURL,
		teamName:   cfg.TeamName,
		limiter:    rate.NewLimiter(rate.Limit(1), 1),
		now:        time.Now,
	}
}

func (a *OddsAdapter) Name() string     { return "oddsapi" }
func (a *OddsAdapter) Category() string { return "odds" }

// Fetch collects odds for the given upcoming game. A missing API key or a
// game with no listed event yields an empty set, not an error: odds are
// optional per run.
func (a *OddsAdapter) Fetch(ctx context.Context, next *UpcomingGame) (models.RecordSet, error) {
	set := models.RecordSet{Source: a.Name(), Category: a.Category()}
	log := a.logger.WithField("source", a.Name())

	if a.apiKey == "" {
		log.Warn("Odds API key not configured, skipping odds fetch")
		return set, nil
	}
	if next == nil {
		log.Warn("No upcoming game found, skipping odds fetch")
		return set, nil
	}

	eventID, err := a.findEventID(ctx, next)
	if err != nil {
		return set, err
	}
	if eventID == "" {
		log.WithField("opponent", next.OpponentName).Warn("Could not find odds event for next game")
		return set, nil
	}
	log.WithField("event_id", eventID).Info("Found odds event for next game")

	fetchedAt := a.now()
	gameAttrs := map[string]interface{}{"odds_event_id": eventID}
	props := make(map[string]map[string]interface{})

	for _, markets := range marketGroups {
		if err := a.limiter.Wait(ctx); err != nil {
			return set, fmt.Errorf("%w: %v", models.ErrSourceUnavailable, err)
		}

		bookmaker, err := a.fetchMarketGroup(ctx, eventID, markets)
		if err != nil {
			log.WithError(err).WithField("markets", markets).Warn("Market group fetch failed")
			continue
		}
		if bookmaker == nil {
			log.WithField("markets", markets).Debug("No odds found for market group")
			continue
		}

		for _, market := range bookmaker.Markets {
			switch market.Key {
			case "h2h", "spreads", "totals":
				key := "odds_" + market.Key
				if _, exists := gameAttrs[key]; !exists {
					gameAttrs[key] = market.Outcomes
				}
			default:
				if !strings.Contains(market.Key, "player") {
					continue
				}
				for _, outcome := range market.Outcomes {
					if outcome.Description == "" {
						continue
					}
					norm := NormalizePlayerName(outcome.Description)
					entry, ok := props[norm]
					if !ok {
						entry = map[string]interface{}{
							"display_name": outcome.Description,
							"markets":      map[string][]OddsOutcome{},
						}
						props[norm] = entry
					}
					playerMarkets := entry["markets"].(map[string][]OddsOutcome)
					if _, exists := playerMarkets[market.Key]; !exists {
						playerMarkets[market.Key] = market.Outcomes
					}
				}
			}
		}
	}

	set.Records = append(set.Records, models.NormalizedRecord{
		EntityType:      models.EntityGame,
		ID:              next.EventID,
		Attributes:      gameAttrs,
		SourceTimestamp: fetchedAt,
	})
	for norm, entry := range props {
		set.Records = append(set.Records, models.NormalizedRecord{
			EntityType: models.EntityPlayer,
			ID:         norm,
			Attributes: map[string]interface{}{
				"display_name": entry["display_name"],
				"props":        entry["markets"],
			},
			SourceTimestamp: fetchedAt,
		})
	}

	log.WithField("player_props", len(props)).Info("Live odds fetched")
	return set, nil
}

// findEventID resolves The Odds API event id for the configured team's game
// against the given opponent.
func (a *OddsAdapter) findEventID(ctx context.Context, next *UpcomingGame) (string, error) {
	var events []oddsEvent
	url := fmt.Sprintf("%s/sports/%s/events?apiKey=%s", a.baseURL, oddsSportKey, a.apiKey)
	if err := getJSON(ctx, a.httpClient, url, &events); err != nil {
		return "", fmt.Errorf("listing events: %w", err)
	}

	for _, event := range events {
		teams := event.HomeTeam + " " + event.AwayTeam
		if strings.Contains(teams, a.teamName) && strings.Contains(teams, next.OpponentName) {
			return event.ID, nil
		}
	}
	return "", nil
}

// fetchMarketGroup returns the first bookmaker quoting the requested
// markets, falling back from US regions to all regions when none respond.
func (a *OddsAdapter) fetchMarketGroup(ctx context.Context, eventID, markets string) (*oddsBookmaker, error) {
	cacheKey := fmt.Sprintf("odds:%s:%s", eventID, markets)
	var cached oddsBookmaker
	if cacheGet(a.cache, cacheKey, &cached) && len(cached.Markets) > 0 {
		return &cached, nil
	}

	var resp oddsEventResponse
	url := fmt.Sprintf("%s/sports/%s/events/%s/odds?apiKey=%s&regions=us&markets=%s",
		a.baseURL, oddsSportKey, eventID, a.apiKey, markets)
	if err := getJSON(ctx, a.httpClient, url, &resp); err != nil {
		return nil, err
	}

	if len(resp.Bookmakers) == 0 {
		url = fmt.Sprintf("%s/sports/%s/events/%s/odds?apiKey=%s&markets=%s",
			a.baseURL, oddsSportKey, eventID, a.apiKey, markets)
		if err := getJSON(ctx, a.httpClient, url, &resp); err != nil {
			return nil, err
		}
	}

	for i := range resp.Bookmakers {
		if len(resp.Bookmakers[i].Markets) > 0 {
			cacheSet(a.cache, cacheKey, resp.Bookmakers[i], oddsTTL)
			return &resp.Bookmakers[i], nil
		}
	}
	return nil, nil
}
