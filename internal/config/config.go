package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	// Server
	Port string `mapstructure:"PORT"`
	Env  string `mapstructure:"ENV"`

	// Serving layer
	PublicDir    string `mapstructure:"PUBLIC_DIR"`
	ArtifactPath string `mapstructure:"ARTIFACT_PATH"`

	// Team under analysis (ESPN numeric id + nflverse abbreviation)
	TeamID   string `mapstructure:"TEAM_ID"`
	TeamAbbr string `mapstructure:"TEAM_ABBR"`
	TeamName string `mapstructure:"TEAM_NAME"`

	// External APIs
	OddsAPIKey      string `mapstructure:"ODDS_API_KEY"`
	OddsBaseURL     string `mapstructure:"ODDS_BASE_URL"`
	NFLverseBaseURL string `mapstructure:"NFLVERSE_BASE_URL"`
	ESPNSiteBaseURL string `mapstructure:"ESPN_SITE_BASE_URL"`
	ESPNCoreBaseURL string `mapstructure:"ESPN_CORE_BASE_URL"`

	// AI Integration (key is server-held, never exposed to clients)
	GeminiAPIKey        string        `mapstructure:"GEMINI_API_KEY"`
	GeminiBaseURL       string        `mapstructure:"GEMINI_BASE_URL"`
	GeminiModel         string        `mapstructure:"GEMINI_MODEL"`
	InsightsMaxRetries  int           `mapstructure:"INSIGHTS_MAX_RETRIES"`
	InsightsBackoffBase time.Duration `mapstructure:"INSIGHTS_BACKOFF_BASE"`

	// Redis (optional response cache; empty disables caching)
	RedisURL string `mapstructure:"REDIS_URL"`

	// Pipeline
	PipelineSchedule string `mapstructure:"PIPELINE_SCHEDULE"`

	// Resilience
	ExternalAPITimeout      time.Duration `mapstructure:"EXTERNAL_API_TIMEOUT"`
	CircuitBreakerThreshold int           `mapstructure:"CIRCUIT_BREAKER_THRESHOLD"`
}

func LoadConfig() (*Config, error) {
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AddConfigPath("..")

	// Set defaults
	viper.SetDefault("PORT", "8080")
	viper.SetDefault("ENV", "development")
	viper.SetDefault("PUBLIC_DIR", "public")
	viper.SetDefault("ARTIFACT_PATH", "public/dashboard_data.json")

	// Buffalo Bills by default, matching the dashboard frontend
	viper.SetDefault("TEAM_ID", "2")
	viper.SetDefault("TEAM_ABBR", "BUF")
	viper.SetDefault("TEAM_NAME", "Buffalo Bills")

	viper.SetDefault("ODDS_API_KEY", "")
	viper.SetDefault("ODDS_BASE_URL", "https://api.the-odds-api.com/v4")
	viper.SetDefault("NFLVERSE_BASE_URL", "https://github.com/nflverse/nflverse-data/releases/download")
	viper.SetDefault("ESPN_SITE_BASE_URL", "https://site.api.espn.com/apis/site/v2/sports/football/nfl")
	viper.SetDefault("ESPN_CORE_BASE_URL", "https://sports.core.api.espn.com/v2/sports/football/leagues/nfl")

	viper.SetDefault("GEMINI_API_KEY", "")
	viper.SetDefault("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta")
	viper.SetDefault("GEMINI_MODEL", "gemini-2.5-pro")
	viper.SetDefault("INSIGHTS_MAX_RETRIES", 4)
	viper.SetDefault("INSIGHTS_BACKOFF_BASE", "1s")

	viper.SetDefault("REDIS_URL", "")

	viper.SetDefault("PIPELINE_SCHEDULE", "") // empty disables in-process runs

	viper.SetDefault("EXTERNAL_API_TIMEOUT", "30s")
	viper.SetDefault("CIRCUIT_BREAKER_THRESHOLD", 5)

	// Read from environment
	viper.AutomaticEnv()

	// Read config file if exists
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	return &config, nil
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}
