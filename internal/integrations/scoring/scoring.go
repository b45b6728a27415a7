package scoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Dan9191/loan-service/internal/config"
	"github.com/Dan9191/loan-service/internal/metrics"
	"github.com/Dan9191/loan-service/internal/models"
	"github.com/sirupsen/logrus"
)

// Client handles integration with the external ML scoring service.
// It performs exactly one request per call and never retries.
type Client struct {
	url    string
	client *http.Client
	log    *logrus.Logger
}

// NewClient initializes a new scoring client
func NewClient(cfg *config.Config, log *logrus.Logger) *Client {
	return &Client{
		url: strings.TrimRight(cfg.ScoringURL, "/"),
		client: &http.Client{
			Timeout: cfg.ScoringTimeout,
		},
		log: log,
	}
}

// Score sends the feature payload to POST /apply_direct and returns the raw decision
func (c *Client) Score(ctx context.Context, payload *models.ScoreRequest) (*models.ScoreResult, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode score request: %w", err)
	}

	start := time.Now()
	raw, err := c.do(ctx, http.MethodPost, "/apply_direct", body)
	metrics.ScoringDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ScoringRequests.WithLabelValues("error").Inc()
		return nil, err
	}

	var result models.ScoreResult
	if err := json.Unmarshal(raw, &result); err != nil {
		metrics.ScoringRequests.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to decode score response: %w", err)
	}
	metrics.ScoringRequests.WithLabelValues("ok").Inc()

	c.log.WithFields(logrus.Fields{
		"application": payload.ApplicationID,
		"status":      result.Status,
		"final_sci":   result.FinalSCI,
	}).Info("Scoring service responded")
	return &result, nil
}

// IncomeBarrier retrieves the current high-income threshold from GET /income_barrier
func (c *Client) IncomeBarrier(ctx context.Context) (float64, error) {
	raw, err := c.do(ctx, http.MethodGet, "/income_barrier", nil)
	if err != nil {
		return 0, err
	}
	var resp struct {
		IncomeBarrier *float64 `json:"income_barrier"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return 0, fmt.Errorf("failed to decode income barrier: %w", err)
	}
	if resp.IncomeBarrier == nil || *resp.IncomeBarrier <= 0 {
		return 0, fmt.Errorf("income barrier missing from response")
	}
	return *resp.IncomeBarrier, nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.url+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("scoring request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	c.log.Debugf("Scoring response %s %s: %s", method, path, string(raw))
	return raw, nil
}
