package providers

import (
	"strings"
	"time"
)

// playerNameVariants maps short-form names used by some upstreams to the
// normalized full name, so records from ESPN, nflverse and the odds feed
// merge onto the same player entity.
var playerNameVariants = map[string]string{
	"jallen":   "joshallen",
	"jaallen":  "joshallen",
	"kcoleman": "keoncoleman",
	"jcook":    "jamescook",
	"dkincaid": "daltonkincaid",
	"dknox":    "dawsonknox",
	"kshakir":  "khalilshakir",
	"rdavis":   "raydavis",
	"jpalmer":  "joshuapalmer",
}

// NormalizePlayerName lowercases a player name, strips spaces and periods,
// and resolves known short-form aliases.
func NormalizePlayerName(name string) string {
	lookup := strings.ToLower(strings.NewReplacer(".", "", " ", "").Replace(name))
	if full, ok := playerNameVariants[lookup]; ok {
		return full
	}
	return lookup
}

// SeasonYears returns the current and previous NFL season years as of now.
// The NFL data year rolls over in March.
func SeasonYears(now time.Time) (current, previous int) {
	current = now.Year()
	if now.Month() < time.March {
		current--
	}
	return current, current - 1
}
