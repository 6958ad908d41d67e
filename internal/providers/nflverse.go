package providers

import (
	"compress/gzip"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Donovan-Gamboa/NFL-Insight-Analysis/internal/config"
	"github.com/Donovan-Gamboa/NFL-Insight-Analysis/internal/models"
)

// NFLverseAdapter fetches play-by-play data from the nflverse data releases
// and aggregates it into per-player weekly game logs plus league-wide team
// yardage rankings. Parsed seasons are kept in memory so the opponent fetch
// in the same run does not re-download the file.
type NFLverseAdapter struct {
	httpClient *http.Client
	cache      ResponseCache
	logger     *logrus.Logger
	baseURL    string
	teamAbbr   string
	now        func() time.Time

	mu      sync.Mutex
	seasons map[int]*seasonStats
}

// TeamRanking holds one team's per-game yardage averages and league ranks
// for a single season. Offensive ranks sort descending, defensive ascending.
type TeamRanking struct {
	AvgOffYards     float64 `json:"avg_off_yards"`
	AvgPassYards    float64 `json:"avg_pass_yards"`
	AvgRushYards    float64 `json:"avg_rush_yards"`
	AvgDefYards     float64 `json:"avg_def_yards"`
	AvgDefPassYards float64 `json:"avg_def_pass_yards"`
	AvgDefRushYards float64 `json:"avg_def_rush_yards"`

	RankOffenseYards     int `json:"rank_offense_yards"`
	RankPassOffenseYards int `json:"rank_pass_offense_yards"`
	RankRushOffenseYards int `json:"rank_rush_offense_yards"`
	RankDefenseYards     int `json:"rank_defense_yards"`
	RankPassDefenseYards int `json:"rank_pass_defense_yards"`
	RankRushDefenseYards int `json:"rank_rush_defense_yards"`
}

// playerSeasonLog and seasonStats carry exported fields so a parsed season
// survives a JSON round trip through the response cache.
type playerSeasonLog struct {
	DisplayName string                 `json:"display_name"`
	Weeks       map[int]map[string]int `json:"weeks"`
}

type seasonStats struct {
	Season   int                                    `json:"season"`
	TeamLogs map[string]map[string]*playerSeasonLog `json:"team_logs"`
	Rankings map[string]*TeamRanking                `json:"rankings"`
}

// pbpColumns are the play-by-play CSV columns the adapter consumes. A header
// missing any of them is a schema mismatch.
var pbpColumns = []string{
	"game_id", "week", "posteam", "defteam",
	"yards_gained", "passing_yards", "rushing_yards", "receiving_yards",
	"pass_touchdown", "rush_touchdown", "pass_attempt", "complete_pass", "rush_attempt",
	"passer_player_name", "rusher_player_name", "receiver_player_name",
}

// statConfigs maps each offensive role to the CSV columns aggregated for it,
// keyed by the output stat suffix.
var statConfigs = map[string]map[string]string{
	"passer": {
		"yards":       "passing_yards",
		"tds":         "pass_touchdown",
		"attempts":    "pass_attempt",
		"completions": "complete_pass",
	},
	"rusher": {
		"yards":    "rushing_yards",
		"tds":      "rush_touchdown",
		"attempts": "rush_attempt",
	},
	"receiver": {
		"yards":      "receiving_yards",
		"tds":        "pass_touchdown",
		"receptions": "complete_pass",
	},
}

// NewNFLverseAdapter creates a play-by-play stats adapter for the configured
// team. Season files are large, so the HTTP timeout is stretched well past
// the default external API timeout and parsed seasons are cached across
// processes in addition to the in-run memoization.
func NewNFLverseAdapter(cfg *config.Config, cache ResponseCache, logger *logrus.Logger) *NFLverseAdapter {
	return &NFLverseAdapter{
		httpClient: &http.Client{Timeout: 5 * time.Minute},
		cache:      cache,
		logger:     logger,
		baseURL:    cfg.NFLverseBaseURL,
		teamAbbr:   cfg.TeamAbbr,
		now:        time.Now,
		seasons:    make(map[int]*seasonStats),
	}
}

func (a *NFLverseAdapter) Name() string     { return "nflverse" }
func (a *NFLverseAdapter) Category() string { return "stats" }

// Fetch returns game logs for the configured team across the current and
// previous seasons, plus league-wide team rankings.
func (a *NFLverseAdapter) Fetch(ctx context.Context) (models.RecordSet, error) {
	return a.FetchTeam(ctx, a.teamAbbr, true)
}

// FetchTeam returns game logs for one team. Rankings are league-wide and
// only included when requested, so the opponent fetch does not duplicate
// the ranking entities already emitted for the primary team.
func (a *NFLverseAdapter) FetchTeam(ctx context.Context, teamAbbr string, includeRankings bool) (models.RecordSet, error) {
	set := models.RecordSet{Source: a.Name(), Category: a.Category()}
	current, previous := SeasonYears(a.now())
	fetchedAt := a.now()

	var loaded []*seasonStats
	for _, season := range []int{current, previous} {
		stats, err := a.seasonData(ctx, season)
		if err != nil {
			a.logger.WithError(err).WithFields(logrus.Fields{
				"source": a.Name(),
				"season": season,
			}).Warn("Could not load season play-by-play data")
			continue
		}
		loaded = append(loaded, stats)
	}
	if len(loaded) == 0 {
		return set, fmt.Errorf("%w: no season data available", models.ErrSourceUnavailable)
	}

	// Player game logs for the requested team, one entity per player with
	// per-season nested logs.
	playerAttrs := make(map[string]map[string]interface{})
	for _, stats := range loaded {
		seasonKey := strconv.Itoa(stats.Season)
		for norm, log := range stats.TeamLogs[teamAbbr] {
			attrs, ok := playerAttrs[norm]
			if !ok {
				attrs = map[string]interface{}{
					"display_name": log.DisplayName,
					"team":         teamAbbr,
					"game_logs":    map[string]map[string]map[string]int{},
				}
				playerAttrs[norm] = attrs
			}
			weeks := make(map[string]map[string]int, len(log.Weeks))
			for week, weekStats := range log.Weeks {
				weeks[strconv.Itoa(week)] = weekStats
			}
			attrs["game_logs"].(map[string]map[string]map[string]int)[seasonKey] = weeks
		}
	}
	for norm, attrs := range playerAttrs {
		set.Records = append(set.Records, models.NormalizedRecord{
			EntityType:      models.EntityPlayer,
			ID:              norm,
			Attributes:      attrs,
			SourceTimestamp: fetchedAt,
		})
	}

	if includeRankings {
		teamAttrs := make(map[string]map[string]interface{})
		for _, stats := range loaded {
			seasonKey := strconv.Itoa(stats.Season)
			for abbr, ranking := range stats.Rankings {
				attrs, ok := teamAttrs[abbr]
				if !ok {
					attrs = map[string]interface{}{
						"abbr":     abbr,
						"rankings": map[string]*TeamRanking{},
					}
					teamAttrs[abbr] = attrs
				}
				attrs["rankings"].(map[string]*TeamRanking)[seasonKey] = ranking
			}
		}
		for abbr, attrs := range teamAttrs {
			set.Records = append(set.Records, models.NormalizedRecord{
				EntityType:      models.EntityTeam,
				ID:              abbr,
				Attributes:      attrs,
				SourceTimestamp: fetchedAt,
			})
		}
	}

	a.logger.WithFields(logrus.Fields{
		"source":  a.Name(),
		"team":    teamAbbr,
		"records": len(set.Records),
	}).Info("Play-by-play data processed")
	return set, nil
}

// seasonData downloads and parses one season, memoizing the result for the
// remainder of the run and caching it across runs.
func (a *NFLverseAdapter) seasonData(ctx context.Context, season int) (*seasonStats, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if stats, ok := a.seasons[season]; ok {
		return stats, nil
	}

	cacheKey := fmt.Sprintf("nflverse:season:%d", season)
	var cached seasonStats
	if cacheGet(a.cache, cacheKey, &cached) && len(cached.TeamLogs) > 0 {
		a.seasons[season] = &cached
		return &cached, nil
	}

	url := fmt.Sprintf("%s/pbp/play_by_play_%d.csv.gz", a.baseURL, season)
	a.logger.WithFields(logrus.Fields{"source": a.Name(), "season": season}).Info("Downloading play-by-play data")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: unexpected status %d", models.ErrSourceUnavailable, resp.StatusCode)
	}

	gz, err := gzip.NewReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrSchemaMismatch, err)
	}
	defer gz.Close()

	stats, err := parseSeason(gz, season)
	if err != nil {
		return nil, err
	}

	cacheSet(a.cache, cacheKey, stats, seasonStatsTTL)
	a.seasons[season] = stats
	return stats, nil
}

// parseSeason streams one season's play-by-play CSV, aggregating player
// game logs for every team and the per-game yardage sums that feed the
// league rankings.
func parseSeason(r io.Reader, season int) (*seasonStats, error) {
	reader := csv.NewReader(r)
	reader.ReuseRecord = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: reading header: %v", models.ErrSchemaMismatch, err)
	}
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[name] = i
	}
	for _, required := range pbpColumns {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("%w: missing column %q", models.ErrSchemaMismatch, required)
		}
	}

	offense := make(map[string]map[string]*gameYards) // team -> game -> yards
	defense := make(map[string]map[string]*gameYards)

	stats := &seasonStats{
		Season:   season,
		TeamLogs: make(map[string]map[string]*playerSeasonLog),
		Rankings: make(map[string]*TeamRanking),
	}

	addYards := func(byTeam map[string]map[string]*gameYards, team, gameID string, total, pass, rush float64) {
		games, ok := byTeam[team]
		if !ok {
			games = make(map[string]*gameYards)
			byTeam[team] = games
		}
		yards, ok := games[gameID]
		if !ok {
			yards = &gameYards{}
			games[gameID] = yards
		}
		yards.total += total
		yards.pass += pass
		yards.rush += rush
	}

	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: reading row: %v", models.ErrSchemaMismatch, err)
		}

		field := func(name string) string { return row[cols[name]] }
		gameID := field("game_id")
		posteam := field("posteam")
		defteam := field("defteam")
		week, _ := strconv.Atoi(field("week"))

		total := parseStat(field("yards_gained"))
		pass := parseStat(field("passing_yards"))
		rush := parseStat(field("rushing_yards"))
		if posteam != "" && gameID != "" {
			addYards(offense, posteam, gameID, total, pass, rush)
		}
		if defteam != "" && gameID != "" {
			addYards(defense, defteam, gameID, total, pass, rush)
		}

		if posteam == "" || week == 0 {
			continue
		}
		for role, roleColumns := range statConfigs {
			name := field(role + "_player_name")
			if name == "" || name == "NA" {
				continue
			}

			teamPlayers, ok := stats.TeamLogs[posteam]
			if !ok {
				teamPlayers = make(map[string]*playerSeasonLog)
				stats.TeamLogs[posteam] = teamPlayers
			}
			norm := NormalizePlayerName(name)
			log, ok := teamPlayers[norm]
			if !ok {
				log = &playerSeasonLog{DisplayName: name, Weeks: make(map[int]map[string]int)}
				teamPlayers[norm] = log
			}
			weekStats, ok := log.Weeks[week]
			if !ok {
				weekStats = map[string]int{"week": week}
				log.Weeks[week] = weekStats
			}

			for suffix, column := range roleColumns {
				weekStats[role+"_"+suffix] += int(parseStat(field(column)))
			}
			if (role == "rusher" || role == "receiver") && weekStats[role+"_tds"] > 0 {
				weekStats[role+"_anytime_td"] = 1
			}
		}
	}

	computeRankings(stats, offense, defense)
	return stats, nil
}

type gameYards struct{ total, pass, rush float64 }

// computeRankings turns per-game yardage sums into per-team averages and
// league ranks. Ties share the best rank, matching a min-method ranking.
func computeRankings(stats *seasonStats, offense, defense map[string]map[string]*gameYards) {
	teams := make(map[string]bool)
	for team := range offense {
		teams[team] = true
	}
	for team := range defense {
		teams[team] = true
	}

	average := func(games map[string]*gameYards) (total, pass, rush float64) {
		if len(games) == 0 {
			return 0, 0, 0
		}
		for _, yards := range games {
			total += yards.total
			pass += yards.pass
			rush += yards.rush
		}
		n := float64(len(games))
		return total / n, pass / n, rush / n
	}

	for team := range teams {
		ranking := &TeamRanking{}
		ranking.AvgOffYards, ranking.AvgPassYards, ranking.AvgRushYards = average(offense[team])
		ranking.AvgDefYards, ranking.AvgDefPassYards, ranking.AvgDefRushYards = average(defense[team])
		stats.Rankings[team] = ranking
	}

	// rank assigns 1 + the number of strictly better teams, so tied teams
	// share the best rank.
	rank := func(value func(*TeamRanking) float64, assign func(*TeamRanking, int), higherIsBetter bool) {
		for _, ranking := range stats.Rankings {
			position := 1
			for _, other := range stats.Rankings {
				if higherIsBetter && value(other) > value(ranking) {
					position++
				} else if !higherIsBetter && value(other) < value(ranking) {
					position++
				}
			}
			assign(ranking, position)
		}
	}

	rank(func(r *TeamRanking) float64 { return r.AvgOffYards },
		func(r *TeamRanking, p int) { r.RankOffenseYards = p }, true)
	rank(func(r *TeamRanking) float64 { return r.AvgPassYards },
		func(r *TeamRanking, p int) { r.RankPassOffenseYards = p }, true)
	rank(func(r *TeamRanking) float64 { return r.AvgRushYards },
		func(r *TeamRanking, p int) { r.RankRushOffenseYards = p }, true)
	rank(func(r *TeamRanking) float64 { return r.AvgDefYards },
		func(r *TeamRanking, p int) { r.RankDefenseYards = p }, false)
	rank(func(r *TeamRanking) float64 { return r.AvgDefPassYards },
		func(r *TeamRanking, p int) { r.RankPassDefenseYards = p }, false)
	rank(func(r *TeamRanking) float64 { return r.AvgDefRushYards },
		func(r *TeamRanking, p int) { r.RankRushDefenseYards = p }, false)
}

// parseStat parses a numeric CSV field, treating empty and NA values as 0.
func parseStat(s string) float64 {
	if s == "" || s == "NA" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}
