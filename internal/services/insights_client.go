package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/Donovan-Gamboa/NFL-Insight-Analysis/internal/config"
	"github.com/Donovan-Gamboa/NFL-Insight-Analysis/internal/models"
)

// InsightsClient proxies analysis requests to the Gemini API. The API key is
// attached server-side via header and is never echoed to callers; retry
// delays go through an injectable sleep so tests run without real time.
type InsightsClient struct {
	httpClient     *http.Client
	logger         *logrus.Logger
	apiKey         string
	baseURL        string
	model          string
	maxRetries     int
	backoffBase    time.Duration
	circuitBreaker *gobreaker.CircuitBreaker
	sleep          func(time.Duration)
}

// Gemini generateContent request/response payloads.

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// NewInsightsClient creates a Gemini proxy client with backoff retries and a
// circuit breaker.
func NewInsightsClient(cfg *config.Config, logger *logrus.Logger) *InsightsClient {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "gemini-api",
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"circuit":    name,
				"from_state": from.String(),
				"to_state":   to.String(),
			}).Info("Gemini API circuit breaker state changed")
		},
	})

	return &InsightsClient{
		httpClient: &http.Client{
			Timeout: 60 * time.Second, // allow longer timeout for AI processing
		},
		logger:         logger,
		apiKey:         cfg.GeminiAPIKey,
		baseURL:        cfg.GeminiBaseURL,
		model:          cfg.GeminiModel,
		maxRetries:     cfg.InsightsMaxRetries,
		backoffBase:    cfg.InsightsBackoffBase,
		circuitBreaker: cb,
		sleep:          time.Sleep,
	}
}

// GenerateInsights runs one stateless analysis call: PENDING, then
// RETRYING(n) on rate limits and transient network failures, ending in
// COMPLETE or FAILED. Errors surfaced to callers are always the generic
// ErrInsightsFailed; upstream detail stays in the server log.
func (c *InsightsClient) GenerateInsights(ctx context.Context, req *models.InsightRequest) (*models.InsightResult, error) {
	result := &models.InsightResult{Status: models.InsightPending}

	if c.apiKey == "" {
		c.logger.WithField("component", "insights").Error("Gemini API key not configured")
		result.Status = models.InsightFailed
		return result, models.ErrInsightsFailed
	}

	prompt := buildPrompt(req)

	outcome, err := c.circuitBreaker.Execute(func() (interface{}, error) {
		return c.generateWithRetry(ctx, prompt, result)
	})
	if err != nil {
		result.Status = models.InsightFailed
		return result, models.ErrInsightsFailed
	}

	result.Status = models.InsightComplete
	result.Text = outcome.(string)
	return result, nil
}

// generateWithRetry attempts the upstream call with exponential backoff:
// fixed base delay, doubling per retry, capped attempt count.
func (c *InsightsClient) generateWithRetry(ctx context.Context, prompt string, result *models.InsightResult) (string, error) {
	log := c.logger.WithField("component", "insights")

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := c.backoffBase << uint(attempt-1)
			result.Status = models.InsightRetrying
			result.Attempts = attempt
			log.WithFields(logrus.Fields{
				"attempt": attempt,
				"delay":   delay.String(),
			}).Warn("Upstream call failed, backing off before retry")
			c.sleep(delay)
		}

		text, err := c.callGemini(ctx, prompt)
		if err == nil {
			return text, nil
		}
		lastErr = err

		if !isRetryable(err) {
			break
		}
	}

	// Log the real reason server-side only; callers get the generic error.
	log.WithError(lastErr).Error("Insight generation failed")
	return "", lastErr
}

// callGemini performs one generateContent request. Rate limiting maps to
// ErrRateLimited, transport failures to a transient error; both retry.
func (c *InsightsClient) callGemini(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(geminiRequest{
		Contents: []geminiContent{{Parts: []geminiPart{{Text: prompt}}}},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, c.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	// The key travels in a header, never in the URL, so it cannot leak
	// through transport error strings.
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("transient network error contacting upstream")
	}
	defer resp.Body.Close()

	// Classify by status before touching the body. Throttled responses do
	// not always carry a JSON payload and must still be retryable.
	if resp.StatusCode == http.StatusTooManyRequests {
		return "", models.ErrRateLimited
	}

	var decoded geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("failed to decode upstream response, status %d", resp.StatusCode)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("upstream error, status %d: %s", resp.StatusCode, decoded.Error.Message)
	}

	var parts []string
	for _, candidate := range decoded.Candidates {
		for _, part := range candidate.Content.Parts {
			if part.Text != "" {
				parts = append(parts, part.Text)
			}
		}
	}
	if len(parts) == 0 {
		return "", fmt.Errorf("upstream returned no completion text")
	}
	return strings.Join(parts, ""), nil
}

// isRetryable reports whether the failure is worth another attempt.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, models.ErrRateLimited) {
		return true
	}
	return strings.Contains(err.Error(), "transient network error")
}

// IsHealthy checks if the upstream client is usable.
func (c *InsightsClient) IsHealthy() bool {
	return c.circuitBreaker.State() == gobreaker.StateClosed
}

// buildPrompt folds the structured context snapshot into the user prompt.
// Sections are passed through verbatim.
func buildPrompt(req *models.InsightRequest) string {
	var b strings.Builder
	b.WriteString(req.Prompt)

	sections := []struct {
		title string
		body  json.RawMessage
	}{
		{"Stats snapshot", req.Context.Stats},
		{"Odds snapshot", req.Context.Odds},
		{"Injury notes", req.Context.Injuries},
	}
	for _, section := range sections {
		if len(section.body) == 0 {
			continue
		}
		b.WriteString("\n\n## ")
		b.WriteString(section.title)
		b.WriteString("\n")
		b.Write(section.body)
	}
	return b.String()
}
