package engine

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/donaldgifford/ebay-connector/internal/notify"
)

func failures(n int) []SyncFailure {
	out := make([]SyncFailure, 0, n)
	for i := range n {
		out = append(out, SyncFailure{Job: JobOrders, AccountID: fmt.Sprintf("a%d", i), Err: errors.New("boom")})
	}
	return out
}

func TestReportFailures_NoFailures(t *testing.T) {
	t.Parallel()

	mn := &mockNotifier{}
	require.NoError(t, ReportFailures(context.Background(), mn, JobOrders, nil))
	mn.AssertNotCalled(t, "SendAlert", mock.Anything, mock.Anything)
}

func TestReportFailures_SingleAlerts(t *testing.T) {
	t.Parallel()

	mn := &mockNotifier{}
	mn.On("SendAlert", mock.Anything, mock.MatchedBy(func(a *notify.AlertPayload) bool {
		return a.Kind == notify.KindSyncFailed && a.Error == "boom"
	})).Return(nil).Times(3)

	require.NoError(t, ReportFailures(context.Background(), mn, JobOrders, failures(3)))
	mn.AssertExpectations(t)
}

func TestReportFailures_BatchAtThreshold(t *testing.T) {
	t.Parallel()

	mn := &mockNotifier{}
	mn.On("SendBatchAlert", mock.Anything, mock.MatchedBy(func(a []notify.AlertPayload) bool {
		return len(a) == batchThreshold && a[0].Title == "orders sync failed for account a0"
	}), "sync orders").Return(nil).Once()

	require.NoError(t, ReportFailures(context.Background(), mn, JobOrders, failures(batchThreshold)))
	mn.AssertExpectations(t)
	mn.AssertNotCalled(t, "SendAlert", mock.Anything, mock.Anything)
}

func TestReportFailures_DeliveryErrors(t *testing.T) {
	t.Parallel()

	t.Run("single alerts keep going", func(t *testing.T) {
		t.Parallel()

		mn := &mockNotifier{}
		mn.On("SendAlert", mock.Anything, mock.Anything).Return(errors.New("webhook down")).Times(2)

		err := ReportFailures(context.Background(), mn, JobReturns, failures(2))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "webhook down")
		mn.AssertExpectations(t)
	})

	t.Run("batch", func(t *testing.T) {
		t.Parallel()

		mn := &mockNotifier{}
		mn.On("SendBatchAlert", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("webhook down")).Once()

		err := ReportFailures(context.Background(), mn, JobReturns, failures(6))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "sending batch alert")
	})
}

func TestBuildAlertPayload(t *testing.T) {
	t.Parallel()

	p := buildAlertPayload(&SyncFailure{Job: JobCategories, Err: errors.New("eBay down")})
	assert.Equal(t, notify.KindSyncFailed, p.Kind)
	assert.Equal(t, "categories sync failed", p.Title)
	assert.Empty(t, p.AccountID)
	assert.Equal(t, "eBay down", p.Error)
}
