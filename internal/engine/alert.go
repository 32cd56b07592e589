package engine

import (
	"context"
	"fmt"

	"github.com/donaldgifford/ebay-connector/internal/metrics"
	"github.com/donaldgifford/ebay-connector/internal/notify"
)

const batchThreshold = 5

// SyncFailure is one failed account (or catalog) sync of a job run.
type SyncFailure struct {
	Job       string
	AccountID string
	Err       error
}

// ReportFailures alerts operators about failed syncs. A run with 5+
// failures is sent as one batch. Delivery errors are returned after every
// alert was attempted.
func ReportFailures(ctx context.Context, n notify.Notifier, job string, failures []SyncFailure) error {
	if len(failures) == 0 {
		return nil
	}

	if len(failures) >= batchThreshold {
		payloads := make([]notify.AlertPayload, 0, len(failures))
		for i := range failures {
			payloads = append(payloads, *buildAlertPayload(&failures[i]))
		}
		if err := n.SendBatchAlert(ctx, payloads, "sync "+job); err != nil {
			metrics.AlertFailuresTotal.Inc()
			return fmt.Errorf("sending batch alert: %w", err)
		}
		metrics.AlertsFiredTotal.Add(float64(len(payloads)))
		return nil
	}

	var firstErr error
	for i := range failures {
		if err := n.SendAlert(ctx, buildAlertPayload(&failures[i])); err != nil {
			metrics.AlertFailuresTotal.Inc()
			if firstErr == nil {
				firstErr = fmt.Errorf("sending alert: %w", err)
			}
			continue
		}
		metrics.AlertsFiredTotal.Inc()
	}
	return firstErr
}

func buildAlertPayload(f *SyncFailure) *notify.AlertPayload {
	title := fmt.Sprintf("%s sync failed", f.Job)
	if f.AccountID != "" {
		title = fmt.Sprintf("%s sync failed for account %s", f.Job, f.AccountID)
	}
	return &notify.AlertPayload{
		Kind:      notify.KindSyncFailed,
		Title:     title,
		AccountID: f.AccountID,
		Error:     f.Err.Error(),
	}
}
