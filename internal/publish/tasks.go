package publish

import (
	"context"
	"errors"
	"fmt"

	"github.com/donaldgifford/ebay-connector/internal/ebay"
	"github.com/donaldgifford/ebay-connector/internal/notify"
	"github.com/donaldgifford/ebay-connector/internal/tasks"
	domain "github.com/donaldgifford/ebay-connector/pkg/types"
)

// Task names.
const (
	TaskPublish     = "publish.listing"
	TaskApplyUpdate = "publish.item_update"
)

type listingTask struct {
	ListingID string `json:"listing_id"`
}

type updateTask struct {
	UpdateID string `json:"update_id"`
}

// RejectedError is returned by the publish task when eBay rejected a
// listing, so the executor reports the failure.
type RejectedError struct {
	ListingID string
	Details   []domain.StatusDetail
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("eBay rejected listing %s", e.ListingID)
}

// RegisterTasks binds the publish and item update tasks to exec. Only
// transport errors are retried, following policy.
func (s *Service) RegisterTasks(exec *tasks.Executor, policy tasks.RetryPolicy) {
	exec.Register(TaskPublish, s.handlePublish,
		tasks.WithPolicy(policy),
		tasks.OnFailure(s.onPublishFailure),
	)
	exec.Register(TaskApplyUpdate, s.handleUpdate,
		tasks.WithPolicy(policy),
		tasks.OnFailure(s.onUpdateFailure),
	)
}

func (s *Service) handlePublish(ctx context.Context, t tasks.Task) error {
	var p listingTask
	if err := t.Decode(&p); err != nil {
		return err
	}

	res, err := s.Publish(ctx, p.ListingID)
	if errors.Is(err, ErrNotInProgress) {
		// Duplicate delivery of an already finished publish.
		s.log.Info("skipping publish", "listing_id", p.ListingID, "reason", err)
		return nil
	}
	if err != nil {
		return err
	}
	if res.Outcome == OutcomeApplicationFailed {
		return &RejectedError{ListingID: p.ListingID, Details: res.Details}
	}
	return nil
}

func (s *Service) onPublishFailure(ctx context.Context, t tasks.Task, err error) {
	var p listingTask
	if decodeErr := t.Decode(&p); decodeErr != nil {
		s.log.Error("decoding failed publish task", "task_id", t.ID, "error", decodeErr)
		return
	}

	alert := &notify.AlertPayload{
		Kind:      notify.KindPublishFailed,
		Title:     p.ListingID,
		ListingID: p.ListingID,
		Error:     err.Error(),
	}

	if ebay.IsTransport(err) {
		if exErr := s.Exhausted(ctx, p.ListingID, err); exErr != nil {
			s.log.Error("failing exhausted listing", "listing_id", p.ListingID, "error", exErr)
		}
		alert.Kind = notify.KindTaskExhausted
	}

	var rejected *RejectedError
	if errors.As(err, &rejected) {
		alert.Details = rejected.Details
		alert.Error = ""
	}

	if l, getErr := s.store.GetListing(ctx, p.ListingID); getErr == nil {
		alert.Title = l.Title
		alert.AccountID = l.AccountID
		alert.SKU = l.SKU
	}
	s.alert(ctx, alert)
}

func (s *Service) handleUpdate(ctx context.Context, t tasks.Task) error {
	var p updateTask
	if err := t.Decode(&p); err != nil {
		return err
	}
	return s.ApplyItemUpdate(ctx, p.UpdateID)
}

func (s *Service) onUpdateFailure(ctx context.Context, t tasks.Task, err error) {
	var p updateTask
	if decodeErr := t.Decode(&p); decodeErr != nil {
		s.log.Error("decoding failed update task", "task_id", t.ID, "error", decodeErr)
		return
	}

	u, getErr := s.store.GetItemUpdate(ctx, p.UpdateID)
	if getErr != nil {
		s.log.Error("loading failed item update", "update_id", p.UpdateID, "error", getErr)
		return
	}
	if !u.Status.Terminal() {
		u.Status = domain.UpdateFailed
		u.StatusDetails = append(u.StatusDetails, domain.FatalStatusDetail(err))
		for i := range u.VariationUpdates {
			if !u.VariationUpdates[i].Status.Terminal() {
				u.VariationUpdates[i].Status = domain.UpdateFailed
			}
		}
		if saveErr := s.store.SaveItemUpdate(ctx, u); saveErr != nil {
			s.log.Error("failing item update", "update_id", u.ID, "error", saveErr)
		}
	}

	s.alert(ctx, &notify.AlertPayload{
		Kind:      notify.KindTaskExhausted,
		Title:     TaskApplyUpdate,
		ListingID: u.ListingID,
		Error:     err.Error(),
	})
}
