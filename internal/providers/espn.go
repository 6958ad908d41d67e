package providers

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/Donovan-Gamboa/NFL-Insight-Analysis/internal/config"
	"github.com/Donovan-Gamboa/NFL-Insight-Analysis/internal/models"
)

// ESPNAdapter fetches the team schedule and detailed injury reports from
// ESPN's public site and core APIs.
type ESPNAdapter struct {
	httpClient  *http.Client
	cache       ResponseCache
	logger      *logrus.Logger
	siteBaseURL string
	coreBaseURL string
	teamID      string
	refLimiter  *rate.Limiter
	now         func() time.Time
}

// ESPN API response structures. The core API returns "$ref" links instead of
// inline data, so injuries need nested fetches.

type espnTeamsResponse struct {
	Sports []struct {
		Leagues []struct {
			Teams []struct {
				Team struct {
					ID           string `json:"id"`
					Abbreviation string `json:"abbreviation"`
					Logos        []struct {
						Href string `json:"href"`
					} `json:"logos"`
				} `json:"team"`
			} `json:"teams"`
		} `json:"leagues"`
	} `json:"sports"`
}

type espnScheduleResponse struct {
	Events []struct {
		ID   string `json:"id"`
		Date string `json:"date"`
		Week struct {
			Number int `json:"number"`
		} `json:"week"`
		Competitions []struct {
			Competitors []struct {
				ID   string `json:"id"`
				Team struct {
					DisplayName string `json:"displayName"`
				} `json:"team"`
			} `json:"competitors"`
		} `json:"competitions"`
	} `json:"events"`
}

type espnRefList struct {
	Items []struct {
		Ref string `json:"$ref"`
	} `json:"items"`
}

type espnInjuryDetail struct {
	Status       string `json:"status"`
	ShortComment string `json:"shortComment"`
	Athlete      struct {
		Ref string `json:"$ref"`
	} `json:"athlete"`
}

type espnAthlete struct {
	DisplayName string `json:"displayName"`
	Position    struct {
		Abbreviation string `json:"abbreviation"`
	} `json:"position"`
}

// teamInfo is the cached directory entry for one NFL team.
type teamInfo struct {
	Abbr string `json:"abbr"`
	Logo string `json:"logo"`
}

// UpcomingGame identifies the next scheduled game, used to scope the odds
// and opponent-stats fetches.
type UpcomingGame struct {
	EventID      string
	Week         int
	Date         time.Time
	OpponentID   string
	OpponentName string
	OpponentAbbr string
}

// NewESPNAdapter creates an ESPN schedule/injury adapter. The injury detail
// endpoints are paced with a rate limiter because each report needs two
// nested reference fetches.
func NewESPNAdapter(cfg *config.Config, cache ResponseCache, logger *logrus.Logger) *ESPNAdapter {
	return &ESPNAdapter{
		httpClient:  &http.Client{Timeout: cfg.ExternalAPITimeout},
		cache:       cache,
		logger:      logger,
		siteBaseURL: cfg.ESPNSiteBaseURL,
		coreBaseURL: cfg.ESPNCoreBaseURL,
		teamID:      cfg.TeamID,
		refLimiter:  rate.NewLimiter(rate.Limit(10), 1),
		now:         time.Now,
	}
}

func (a *ESPNAdapter) Name() string     { return "espn" }
func (a *ESPNAdapter) Category() string { return "schedule_injury" }

// Fetch returns the team directory, full schedule, and injury reports for
// the configured team and its next opponent as one normalized record set.
func (a *ESPNAdapter) Fetch(ctx context.Context) (models.RecordSet, error) {
	set := models.RecordSet{Source: a.Name(), Category: a.Category()}
	fetchedAt := a.now()

	teams, err := a.teamDirectory(ctx)
	if err != nil {
		return set, fmt.Errorf("team directory: %w", err)
	}
	for id, info := range teams {
		set.Records = append(set.Records, models.NormalizedRecord{
			EntityType: models.EntityTeam,
			ID:         info.Abbr,
			Attributes: map[string]interface{}{
				"espn_id": id,
				"abbr":    info.Abbr,
				"logo":    info.Logo,
			},
			SourceTimestamp: fetchedAt,
		})
	}

	schedule, err := a.fetchSchedule(ctx, teams)
	if err != nil {
		return set, fmt.Errorf("schedule: %w", err)
	}
	set.Records = append(set.Records, schedule...)

	injuries := a.fetchInjuries(ctx, a.teamID, "team", fetchedAt)
	set.Records = append(set.Records, injuries...)

	if next := NextGameFromRecords(schedule, a.now()); next != nil && next.OpponentID != "" {
		a.logger.WithFields(logrus.Fields{
			"source":   a.Name(),
			"opponent": next.OpponentName,
		}).Info("Fetching injuries for next opponent")
		set.Records = append(set.Records, a.fetchInjuries(ctx, next.OpponentID, "opponent", fetchedAt)...)
	}

	return set, nil
}

// teamDirectory returns a map of ESPN team id to abbreviation and logo,
// cached across runs since it changes rarely.
func (a *ESPNAdapter) teamDirectory(ctx context.Context) (map[string]teamInfo, error) {
	cacheKey := "espn:teams"
	teams := make(map[string]teamInfo)
	if cacheGet(a.cache, cacheKey, &teams) && len(teams) > 0 {
		return teams, nil
	}

	var resp espnTeamsResponse
	if err := getJSON(ctx, a.httpClient, a.siteBaseURL+"/teams", &resp); err != nil {
		return nil, err
	}

	for _, sport := range resp.Sports {
		for _, league := range sport.Leagues {
			for _, entry := range league.Teams {
				info := teamInfo{Abbr: entry.Team.Abbreviation}
				if len(entry.Team.Logos) > 0 {
					info.Logo = entry.Team.Logos[0].Href
				}
				if entry.Team.ID != "" && info.Abbr != "" {
					teams[entry.Team.ID] = info
				}
			}
		}
	}
	if len(teams) == 0 {
		return nil, fmt.Errorf("%w: teams directory is empty", models.ErrSchemaMismatch)
	}

	cacheSet(a.cache, cacheKey, teams, teamDirectoryTTL)
	return teams, nil
}

func (a *ESPNAdapter) fetchSchedule(ctx context.Context, teams map[string]teamInfo) ([]models.NormalizedRecord, error) {
	var resp espnScheduleResponse
	url := fmt.Sprintf("%s/teams/%s/schedule", a.siteBaseURL, a.teamID)
	if err := getJSON(ctx, a.httpClient, url, &resp); err != nil {
		return nil, err
	}

	fetchedAt := a.now()
	var records []models.NormalizedRecord
	for _, event := range resp.Events {
		if event.ID == "" || len(event.Competitions) == 0 {
			a.logger.WithField("source", a.Name()).Warn("Skipping schedule event with missing id or competition")
			continue
		}

		var opponentID, opponentName string
		for _, competitor := range event.Competitions[0].Competitors {
			if competitor.ID != a.teamID {
				opponentID = competitor.ID
				opponentName = competitor.Team.DisplayName
			}
		}
		if opponentName == "" {
			opponentName = "TBD"
		}

		info := teams[opponentID]
		records = append(records, models.NormalizedRecord{
			EntityType: models.EntityGame,
			ID:         event.ID,
			Attributes: map[string]interface{}{
				"week":          event.Week.Number,
				"date":          event.Date,
				"opponent_id":   opponentID,
				"opponent_name": opponentName,
				"opponent_abbr": info.Abbr,
				"opponent_logo": info.Logo,
			},
			SourceTimestamp: fetchedAt,
		})
	}
	return records, nil
}

// fetchInjuries resolves the injury reference list for one team. Individual
// reference failures skip that report only, matching the isolation rule for
// record-level schema problems. Reports are cached briefly since each one
// costs two nested reference fetches.
func (a *ESPNAdapter) fetchInjuries(ctx context.Context, teamID, side string, fetchedAt time.Time) []models.NormalizedRecord {
	log := a.logger.WithFields(logrus.Fields{"source": a.Name(), "team_id": teamID})

	cacheKey := "espn:injuries:" + teamID
	var cached []models.NormalizedRecord
	if cacheGet(a.cache, cacheKey, &cached) {
		log.WithField("count", len(cached)).Debug("Injury reports served from cache")
		return cached
	}

	var list espnRefList
	url := fmt.Sprintf("%s/teams/%s/injuries", a.coreBaseURL, teamID)
	if err := getJSON(ctx, a.httpClient, url, &list); err != nil {
		log.WithError(err).Warn("Could not fetch injury list")
		return nil
	}

	var records []models.NormalizedRecord
	for _, item := range list.Items {
		if err := a.refLimiter.Wait(ctx); err != nil {
			log.WithError(err).Warn("Injury fetch cancelled")
			break
		}

		var detail espnInjuryDetail
		if err := getJSON(ctx, a.httpClient, item.Ref, &detail); err != nil {
			log.WithError(err).WithField("ref", item.Ref).Warn("Could not process injury reference")
			continue
		}
		if detail.Athlete.Ref == "" {
			continue
		}

		if err := a.refLimiter.Wait(ctx); err != nil {
			break
		}
		var athlete espnAthlete
		if err := getJSON(ctx, a.httpClient, detail.Athlete.Ref, &athlete); err != nil {
			log.WithError(err).WithField("ref", detail.Athlete.Ref).Warn("Could not process athlete reference")
			continue
		}
		if athlete.DisplayName == "" {
			continue
		}

		records = append(records, models.NormalizedRecord{
			EntityType: models.EntityPlayer,
			ID:         NormalizePlayerName(athlete.DisplayName),
			Attributes: map[string]interface{}{
				"display_name":  athlete.DisplayName,
				"position":      athlete.Position.Abbreviation,
				"injury_status": detail.Status,
				"injury_detail": detail.ShortComment,
				"injury_side":   side,
			},
			SourceTimestamp: fetchedAt,
		})
	}

	cacheSet(a.cache, cacheKey, records, injuryReportTTL)
	log.WithField("count", len(records)).Info("Fetched injury reports")
	return records
}

// NextGameFromRecords returns the earliest future game among the given
// schedule records, or nil when none is upcoming.
func NextGameFromRecords(records []models.NormalizedRecord, now time.Time) *UpcomingGame {
	var future []UpcomingGame
	for _, rec := range records {
		if rec.EntityType != models.EntityGame {
			continue
		}
		dateStr, _ := rec.Attributes["date"].(string)
		date, err := time.Parse(time.RFC3339, dateStr)
		if err != nil {
			// ESPN emits dates both with and without seconds
			date, err = time.Parse("2006-01-02T15:04Z07:00", dateStr)
			if err != nil {
				continue
			}
		}
		if !date.After(now) {
			continue
		}

		game := UpcomingGame{EventID: rec.ID, Date: date}
		if week, ok := rec.Attributes["week"].(int); ok {
			game.Week = week
		}
		game.OpponentID, _ = rec.Attributes["opponent_id"].(string)
		game.OpponentName, _ = rec.Attributes["opponent_name"].(string)
		game.OpponentAbbr, _ = rec.Attributes["opponent_abbr"].(string)
		future = append(future, game)
	}
	if len(future) == 0 {
		return nil
	}
	sort.Slice(future, func(i, j int) bool { return future[i].Date.Before(future[j].Date) })
	return &future[0]
}
