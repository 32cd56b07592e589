package client

import (
	"context"
	"net/url"
	"time"

	domain "github.com/donaldgifford/ebay-connector/pkg/types"
)

// ListJobs returns the most recent run for each distinct sync job.
func (c *Client) ListJobs(ctx context.Context) ([]domain.JobRun, error) {
	var runs []domain.JobRun
	if err := c.get(ctx, "/api/v1/jobs", nil, &runs); err != nil {
		return nil, err
	}
	return runs, nil
}

// GetJobHistory returns the run history for a specific sync job.
func (c *Client) GetJobHistory(ctx context.Context, jobName string) ([]domain.JobRun, error) {
	var runs []domain.JobRun
	if err := c.get(ctx, "/api/v1/jobs/"+url.PathEscape(jobName), nil, &runs); err != nil {
		return nil, err
	}
	return runs, nil
}

// TriggerSync runs one sync domain now and returns the server's status line.
func (c *Client) TriggerSync(ctx context.Context, syncDomain string) (string, error) {
	var resp struct {
		Status string `json:"status"`
	}
	if err := c.post(ctx, "/api/v1/sync/"+url.PathEscape(syncDomain), nil, &resp); err != nil {
		return "", err
	}
	return resp.Status, nil
}

// Quota is the server's eBay call budget.
type Quota struct {
	DailyLimit int64     `json:"daily_limit"`
	DailyUsed  int64     `json:"daily_used"`
	Remaining  int64     `json:"remaining"`
	Exhausted  bool      `json:"exhausted"`
	ResetAt    time.Time `json:"reset_at"`
	PerSecond  float64   `json:"per_second"`
	Burst      int       `json:"burst"`
}

// GetQuota returns the server's eBay call budget.
func (c *Client) GetQuota(ctx context.Context) (*Quota, error) {
	var q Quota
	if err := c.get(ctx, "/api/v1/quota", nil, &q); err != nil {
		return nil, err
	}
	return &q, nil
}
