package publish

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/donaldgifford/ebay-connector/internal/ebay"
	"github.com/donaldgifford/ebay-connector/internal/ebay/wire"
	"github.com/donaldgifford/ebay-connector/internal/metrics"
	"github.com/donaldgifford/ebay-connector/internal/store"
	"github.com/donaldgifford/ebay-connector/internal/tasks"
	domain "github.com/donaldgifford/ebay-connector/pkg/types"
)

var (
	// ErrNotSubmittable is returned by Submit for listings that are not
	// draft or failed.
	ErrNotSubmittable = errors.New("listing cannot be submitted")

	// ErrNotInProgress is returned by Publish for listings that were not
	// submitted.
	ErrNotInProgress = errors.New("listing is not in progress")

	// ErrNotPublished is returned by operations that need a live eBay item.
	ErrNotPublished = errors.New("listing is not published")

	// ErrWrongAccount is returned when a listing belongs to another account.
	ErrWrongAccount = errors.New("listing belongs to another account")

	// ErrTokenExpired is returned when the account cannot authenticate
	// against eBay.
	ErrTokenExpired = errors.New("eBay token missing or expired")
)

// Outcome discriminates the result of a lifecycle operation.
type Outcome string

// Outcomes.
const (
	OutcomeQueued            Outcome = "queued"
	OutcomePublished         Outcome = "published"
	OutcomeValidationFailed  Outcome = "validation_failed"
	OutcomeApplicationFailed Outcome = "application_failed"
)

// Result is what Submit and Publish hand back. Expected failures are
// outcomes, not errors: ValidationFailed carries Validation and
// ApplicationFailed carries eBay's Details.
type Result struct {
	Outcome    Outcome
	Listing    *domain.Listing
	Validation ValidationErrors
	Details    []domain.StatusDetail
}

// Submit validates a draft or failed listing, moves it to in_progress and
// queues the publish task.
func (s *Service) Submit(ctx context.Context, listingID string, acc *domain.Account) (Result, error) {
	l, err := s.store.GetListing(ctx, listingID)
	if err != nil {
		return Result{}, fmt.Errorf("loading listing %s: %w", listingID, err)
	}
	if l.AccountID != acc.ID {
		return Result{}, fmt.Errorf("%w: %s", ErrWrongAccount, listingID)
	}
	if !l.Status.CanSubmit() {
		return Result{}, fmt.Errorf("%w: %s is %s", ErrNotSubmittable, listingID, l.Status)
	}
	if !acc.HasValidToken(s.now()) {
		return Result{}, ErrTokenExpired
	}

	verrs, err := s.ValidateListing(ctx, l, acc)
	if err != nil {
		return Result{}, err
	}
	if len(verrs) > 0 {
		metrics.PublishOutcomesTotal.WithLabelValues(string(OutcomeValidationFailed)).Inc()
		return Result{Outcome: OutcomeValidationFailed, Listing: l, Validation: verrs}, nil
	}

	err = s.store.TransitionListing(ctx, l.ID,
		[]domain.PublishingStatus{domain.StatusDraft, domain.StatusFailed}, domain.StatusInProgress)
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return Result{}, fmt.Errorf("%w: %s changed concurrently", ErrNotSubmittable, listingID)
		}
		return Result{}, fmt.Errorf("submitting listing %s: %w", listingID, err)
	}
	l.Status = domain.StatusInProgress

	t, err := tasks.New(TaskPublish, l.ID, listingTask{ListingID: l.ID})
	if err == nil {
		err = s.queue.Enqueue(ctx, t)
	}
	if err != nil {
		l.AppendStatusDetails(domain.FatalStatusDetail(err))
		if markErr := s.store.MarkListingFailed(ctx, l.ID, l.StatusDetails); markErr != nil {
			s.log.Error("failing listing after enqueue error", "listing_id", l.ID, "error", markErr)
		}
		return Result{}, fmt.Errorf("queueing publish of %s: %w", l.ID, err)
	}

	s.log.Info("listing submitted", "listing_id", l.ID, "account_id", acc.ID, "task_id", t.ID)
	metrics.PublishOutcomesTotal.WithLabelValues(string(OutcomeQueued)).Inc()
	return Result{Outcome: OutcomeQueued, Listing: l}, nil
}

// SubmitMany submits each listing and returns the submitted listings and the
// failures, both keyed by listing id. Validation failures are reported as
// ValidationErrors.
func (s *Service) SubmitMany(
	ctx context.Context,
	listingIDs []string,
	acc *domain.Account,
) (map[string]*domain.Listing, map[string]error) {
	submitted := make(map[string]*domain.Listing, len(listingIDs))
	errs := make(map[string]error)
	for _, id := range listingIDs {
		res, err := s.Submit(ctx, id, acc)
		switch {
		case err != nil:
			errs[id] = err
		case res.Outcome == OutcomeValidationFailed:
			errs[id] = res.Validation
		default:
			submitted[id] = res.Listing
		}
	}
	return submitted, errs
}

// Publish sends an in_progress listing to eBay. Transport errors are
// returned untouched so the caller can retry; the listing stays
// in_progress. eBay rejections fail the listing and are reported as
// OutcomeApplicationFailed with a nil error. Anything else fails the
// listing with a fatal entry and is returned.
func (s *Service) Publish(ctx context.Context, listingID string) (Result, error) {
	l, err := s.store.GetListing(ctx, listingID)
	if err != nil {
		return Result{}, fmt.Errorf("loading listing %s: %w", listingID, err)
	}
	if l.Status != domain.StatusInProgress {
		return Result{}, fmt.Errorf("%w: %s is %s", ErrNotInProgress, listingID, l.Status)
	}

	acc, err := s.store.GetAccount(ctx, l.AccountID)
	if err != nil {
		return Result{}, fmt.Errorf("loading account %s: %w", l.AccountID, err)
	}
	if !acc.HasValidToken(s.now()) {
		return s.failFatal(ctx, l, ErrTokenExpired)
	}

	item := wire.EncodeItem(l, s.itemDefaults(acc))
	ex := &ebay.Exchange{}
	callCtx := ebay.WithExchange(ctx, ex)

	var res *wire.AddItemResult
	if l.EbayItemID != nil {
		res, err = s.gateway.ReviseFixedPriceItem(callCtx, session(acc), item)
	} else {
		res, err = s.gateway.AddFixedPriceItem(callCtx, session(acc), item)
	}
	s.recordAttempt(ctx, l.ID, nil, domain.AttemptPublish, err == nil, ex)

	if err == nil {
		return s.markPublished(ctx, l, res)
	}

	if ebay.IsTransport(err) {
		metrics.PublishOutcomesTotal.WithLabelValues("transport_error").Inc()
		s.log.Warn("publish transport error", "listing_id", l.ID, "error", err)
		return Result{}, err
	}

	if appErr, ok := ebay.AsApplication(err); ok {
		l.AppendStatusDetails(appErr.Details...)
		if err := s.store.MarkListingFailed(ctx, l.ID, l.StatusDetails); err != nil {
			return Result{}, fmt.Errorf("failing listing %s: %w", l.ID, err)
		}
		l.Status = domain.StatusFailed
		metrics.PublishOutcomesTotal.WithLabelValues(string(OutcomeApplicationFailed)).Inc()
		s.log.Warn("eBay rejected listing", "listing_id", l.ID, "error", appErr)
		return Result{Outcome: OutcomeApplicationFailed, Listing: l, Details: appErr.Details}, nil
	}

	return s.failFatal(ctx, l, err)
}

func (s *Service) markPublished(ctx context.Context, l *domain.Listing, res *wire.AddItemResult) (Result, error) {
	itemID := res.ItemID
	if itemID == "" && l.EbayItemID != nil {
		itemID = *l.EbayItemID
	}
	if itemID == "" {
		return s.failFatal(ctx, l, errors.New("eBay returned no item id"))
	}

	var endsAt *time.Time
	if res.EndTime != nil {
		t := res.EndTime.Time
		endsAt = &t
	}
	now := s.now()
	if err := s.store.MarkListingPublished(ctx, l.ID, itemID, now, endsAt); err != nil {
		return Result{}, fmt.Errorf("marking listing %s published: %w", l.ID, err)
	}

	l.Status = domain.StatusPublished
	l.EbayItemID = &itemID
	l.PublishedAt = &now
	l.EndsAt = endsAt
	l.StatusDetails = nil

	metrics.PublishOutcomesTotal.WithLabelValues(string(OutcomePublished)).Inc()
	s.log.Info("listing published", "listing_id", l.ID, "ebay_item_id", itemID)
	return Result{Outcome: OutcomePublished, Listing: l}, nil
}

// failFatal records a generic fatal entry, fails the listing and returns
// cause.
func (s *Service) failFatal(ctx context.Context, l *domain.Listing, cause error) (Result, error) {
	l.AppendStatusDetails(domain.FatalStatusDetail(cause))
	if err := s.store.MarkListingFailed(ctx, l.ID, l.StatusDetails); err != nil {
		s.log.Error("failing listing", "listing_id", l.ID, "error", err)
	} else {
		l.Status = domain.StatusFailed
	}
	metrics.PublishOutcomesTotal.WithLabelValues("fatal").Inc()
	s.log.Error("publish failed", "listing_id", l.ID, "error", cause)
	return Result{Listing: l}, fmt.Errorf("publishing listing %s: %w", l.ID, cause)
}

// Exhausted fails a listing whose publish retries ran out, recording the
// last transport error. Listings no longer in progress are left alone.
func (s *Service) Exhausted(ctx context.Context, listingID string, cause error) error {
	l, err := s.store.GetListing(ctx, listingID)
	if err != nil {
		return fmt.Errorf("loading listing %s: %w", listingID, err)
	}
	if l.Status != domain.StatusInProgress {
		return nil
	}

	var te *ebay.TransportError
	if errors.As(cause, &te) && len(te.Details) > 0 {
		l.AppendStatusDetails(te.Details...)
	} else {
		l.AppendStatusDetails(domain.FatalStatusDetail(cause))
	}

	err = s.store.MarkListingFailed(ctx, l.ID, l.StatusDetails)
	if err != nil && !errors.Is(err, store.ErrConflict) {
		return fmt.Errorf("failing listing %s: %w", l.ID, err)
	}
	metrics.PublishOutcomesTotal.WithLabelValues("exhausted").Inc()
	return nil
}

// Unpublish ends a published listing on eBay. A listing eBay already
// closed is unpublished without error.
func (s *Service) Unpublish(ctx context.Context, listingID string, acc *domain.Account) (*domain.Listing, error) {
	l, err := s.store.GetListing(ctx, listingID)
	if err != nil {
		return nil, fmt.Errorf("loading listing %s: %w", listingID, err)
	}
	if l.AccountID != acc.ID {
		return nil, fmt.Errorf("%w: %s", ErrWrongAccount, listingID)
	}
	if l.Status != domain.StatusPublished || l.EbayItemID == nil {
		return nil, fmt.Errorf("%w: %s is %s", ErrNotPublished, listingID, l.Status)
	}
	if !acc.HasValidToken(s.now()) {
		return nil, ErrTokenExpired
	}

	ex := &ebay.Exchange{}
	_, err = s.gateway.EndFixedPriceItem(ebay.WithExchange(ctx, ex), session(acc), *l.EbayItemID, ebay.EndingNotAvailable)
	if err != nil {
		appErr, ok := ebay.AsApplication(err)
		if !ok || !appErr.OnlyCodes(ebay.CodeAlreadyClosed) {
			s.recordAttempt(ctx, l.ID, nil, domain.AttemptUnpublish, false, ex)
			return nil, fmt.Errorf("ending eBay item %s: %w", *l.EbayItemID, err)
		}
		s.log.Info("eBay item already closed", "listing_id", l.ID, "ebay_item_id", *l.EbayItemID)
	}
	s.recordAttempt(ctx, l.ID, nil, domain.AttemptUnpublish, true, ex)

	now := s.now()
	if err := s.store.MarkListingUnpublished(ctx, l.ID, now); err != nil {
		return nil, fmt.Errorf("unpublishing listing %s: %w", l.ID, err)
	}
	l.Status = domain.StatusUnpublished
	l.UnpublishedAt = &now

	s.log.Info("listing unpublished", "listing_id", l.ID, "ebay_item_id", *l.EbayItemID)
	return l, nil
}

// MarkClosed unpublishes the listing of an item eBay ended on its own.
// Unknown and already unpublished items are ignored.
func (s *Service) MarkClosed(ctx context.Context, ebayItemID string) error {
	l, err := s.store.GetListingByEbayItemID(ctx, ebayItemID)
	if errors.Is(err, store.ErrNotFound) {
		s.log.Info("closed item has no listing", "ebay_item_id", ebayItemID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("loading listing of item %s: %w", ebayItemID, err)
	}

	err = s.store.MarkListingUnpublished(ctx, l.ID, s.now())
	if errors.Is(err, store.ErrConflict) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("closing listing %s: %w", l.ID, err)
	}
	s.log.Info("listing closed by eBay", "listing_id", l.ID, "ebay_item_id", ebayItemID)
	return nil
}

// recordAttempt stores the audit record of one eBay call. Failures to
// record are logged, never returned.
func (s *Service) recordAttempt(
	ctx context.Context,
	listingID string,
	updateID *string,
	typ domain.AttemptType,
	success bool,
	ex *ebay.Exchange,
) {
	a := &domain.APIAttempt{
		ListingID: listingID,
		UpdateID:  updateID,
		Type:      typ,
		Success:   success,
		Request:   ex.Request,
		Response:  ex.Response,
	}
	if err := s.store.InsertAPIAttempt(context.WithoutCancel(ctx), a); err != nil {
		s.log.Warn("recording api attempt", "listing_id", listingID, "type", typ, "error", err)
	}
}
