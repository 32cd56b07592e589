package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	domain "github.com/donaldgifford/ebay-connector/pkg/types"
)

// CreateListing inserts a new listing snapshot. A second live listing for
// the same product and account is rejected with ErrConflict.
func (s *PostgresStore) CreateListing(ctx context.Context, l *domain.Listing) error {
	if l.Status == "" {
		l.Status = domain.StatusDraft
	}

	args := listingArgs(l)
	args["account_id"] = l.AccountID
	args["core_product_id"] = l.CoreProductID
	args["sku"] = l.SKU
	args["status"] = string(l.Status)
	args["status_details"] = nonNil(l.StatusDetails)

	err := s.pool.QueryRow(ctx, queryCreateListing, args).Scan(&l.ID, &l.CreatedAt, &l.UpdatedAt)
	if isUniqueViolation(err) {
		return ErrConflict
	}
	if err != nil {
		return fmt.Errorf("creating listing: %w", err)
	}
	return nil
}

// UpdateListingSnapshot rewrites the denormalised product data of a listing.
// Status, ids and timestamps are left untouched.
func (s *PostgresStore) UpdateListingSnapshot(ctx context.Context, l *domain.Listing) error {
	args := listingArgs(l)
	args["id"] = l.ID

	if err := s.pool.QueryRow(ctx, queryUpdateListingSnapshot, args).Scan(&l.UpdatedAt); err != nil {
		return notFound(err, "updating listing snapshot")
	}
	return nil
}

func listingArgs(l *domain.Listing) pgx.NamedArgs {
	return pgx.NamedArgs{
		"title":             l.Title,
		"description":       l.Description,
		"image_urls":        nonNil(l.ImageURLs),
		"gross_price":       l.GrossPrice,
		"currency":          l.Currency,
		"quantity":          l.Quantity,
		"tax_rate":          l.TaxRate,
		"category_id":       l.CategoryID,
		"specifics":         nonNil(l.Specifics),
		"shipping":          nonNil(l.Shipping),
		"return_policy":     l.ReturnPolicy,
		"click_and_collect": l.ClickAndCollect,
		"variations":        nonNil(l.Variations),
	}
}

// GetListing retrieves a listing by its internal UUID.
func (s *PostgresStore) GetListing(ctx context.Context, id string) (*domain.Listing, error) {
	return s.getListing(ctx, queryGetListing, id)
}

// GetActiveListing returns the live (not unpublished) listing of a product.
func (s *PostgresStore) GetActiveListing(
	ctx context.Context,
	accountID string,
	coreProductID int64,
) (*domain.Listing, error) {
	return s.getListing(ctx, queryGetActiveListing, accountID, coreProductID)
}

// GetListingByEbayItemID retrieves a listing by its eBay item id.
func (s *PostgresStore) GetListingByEbayItemID(ctx context.Context, ebayItemID string) (*domain.Listing, error) {
	return s.getListing(ctx, queryGetListingByEbayItemID, ebayItemID)
}

// GetListingBySKU finds the live listing carrying the SKU, either on the
// listing itself or on one of its variations.
func (s *PostgresStore) GetListingBySKU(ctx context.Context, sku string) (*domain.Listing, error) {
	return s.getListing(ctx, queryGetListingBySKU, sku)
}

func (s *PostgresStore) getListing(ctx context.Context, query string, args ...any) (*domain.Listing, error) {
	l := &domain.Listing{}
	if err := scanListing(s.pool.QueryRow(ctx, query, args...), l); err != nil {
		return nil, notFound(err, "getting listing")
	}
	return l, nil
}

// ListListings queries listings with optional filters, returning results and total count.
func (s *PostgresStore) ListListings(
	ctx context.Context,
	opts *ListingQuery,
) ([]domain.Listing, int, error) {
	dataSQL, countSQL, args := opts.ToSQL()

	var total int
	if err := s.pool.QueryRow(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting listings: %w", err)
	}

	listings, err := s.queryListings(ctx, dataSQL, args...)
	if err != nil {
		return nil, 0, err
	}
	return listings, total, nil
}

// ListPublishedListings returns the published listings of an account for
// the given core products.
func (s *PostgresStore) ListPublishedListings(
	ctx context.Context,
	accountID string,
	coreProductIDs []int64,
) ([]domain.Listing, error) {
	if len(coreProductIDs) == 0 {
		return nil, nil
	}
	return s.queryListings(ctx, queryListPublishedListings, accountID, coreProductIDs)
}

// TransitionListing moves a listing to the target status only if it is
// currently in one of the from statuses. ErrConflict is returned otherwise.
func (s *PostgresStore) TransitionListing(
	ctx context.Context,
	id string,
	from []domain.PublishingStatus,
	to domain.PublishingStatus,
) error {
	states := make([]string, len(from))
	for i, st := range from {
		states[i] = string(st)
	}

	tag, err := s.pool.Exec(ctx, queryTransitionListing, id, states, string(to))
	if err != nil {
		return fmt.Errorf("transitioning listing to %s: %w", to, err)
	}
	return s.checkAffected(ctx, tag.RowsAffected(), id)
}

// MarkListingPublished stores the eBay item id and flips the listing to
// published in a single statement.
func (s *PostgresStore) MarkListingPublished(
	ctx context.Context,
	id, ebayItemID string,
	publishedAt time.Time,
	endsAt *time.Time,
) error {
	tag, err := s.pool.Exec(ctx, queryMarkListingPublished, id, ebayItemID, publishedAt, endsAt)
	if err != nil {
		return fmt.Errorf("marking listing published: %w", err)
	}
	return s.checkAffected(ctx, tag.RowsAffected(), id)
}

// MarkListingFailed moves an in-progress listing to failed with details.
func (s *PostgresStore) MarkListingFailed(
	ctx context.Context,
	id string,
	details []domain.StatusDetail,
) error {
	tag, err := s.pool.Exec(ctx, queryMarkListingFailed, id, nonNil(details))
	if err != nil {
		return fmt.Errorf("marking listing failed: %w", err)
	}
	return s.checkAffected(ctx, tag.RowsAffected(), id)
}

// MarkListingUnpublished ends a listing. It is a no-op conflict for a
// listing that is already unpublished.
func (s *PostgresStore) MarkListingUnpublished(ctx context.Context, id string, at time.Time) error {
	tag, err := s.pool.Exec(ctx, queryMarkListingUnpublished, id, at)
	if err != nil {
		return fmt.Errorf("marking listing unpublished: %w", err)
	}
	return s.checkAffected(ctx, tag.RowsAffected(), id)
}

// UpdateListingStock persists the price, quantity and variation stock of a
// published listing after a successful item update.
func (s *PostgresStore) UpdateListingStock(ctx context.Context, l *domain.Listing) error {
	tag, err := s.pool.Exec(ctx, queryUpdateListingStock, l.ID, l.GrossPrice, l.Quantity, nonNil(l.Variations))
	if err != nil {
		return fmt.Errorf("updating listing stock: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// checkAffected distinguishes a missing listing from one in the wrong state
// after a conditional update touched no rows.
func (s *PostgresStore) checkAffected(ctx context.Context, affected int64, id string) error {
	if affected > 0 {
		return nil
	}
	if _, err := s.GetListing(ctx, id); err != nil {
		return err
	}
	return ErrConflict
}

// CreateItemUpdate inserts a new item update.
func (s *PostgresStore) CreateItemUpdate(ctx context.Context, u *domain.ItemUpdate) error {
	if u.Status == "" {
		u.Status = domain.UpdateDraft
	}
	args := pgx.NamedArgs{
		"listing_id":        u.ListingID,
		"status":            string(u.Status),
		"price":             u.Price,
		"quantity":          u.Quantity,
		"status_details":    nonNil(u.StatusDetails),
		"variation_updates": nonNil(u.VariationUpdates),
	}
	if err := s.pool.QueryRow(ctx, queryCreateItemUpdate, args).Scan(
		&u.ID, &u.CreatedAt, &u.UpdatedAt,
	); err != nil {
		return fmt.Errorf("creating item update: %w", err)
	}
	return nil
}

// GetItemUpdate retrieves an item update together with its API attempts.
func (s *PostgresStore) GetItemUpdate(ctx context.Context, id string) (*domain.ItemUpdate, error) {
	u := &domain.ItemUpdate{}
	if err := scanItemUpdate(s.pool.QueryRow(ctx, queryGetItemUpdate, id), u); err != nil {
		return nil, notFound(err, "getting item update")
	}
	return u, nil
}

// SaveItemUpdate persists the status and per-variation progress of an update.
func (s *PostgresStore) SaveItemUpdate(ctx context.Context, u *domain.ItemUpdate) error {
	args := pgx.NamedArgs{
		"id":                u.ID,
		"status":            string(u.Status),
		"status_details":    nonNil(u.StatusDetails),
		"variation_updates": nonNil(u.VariationUpdates),
	}
	if err := s.pool.QueryRow(ctx, querySaveItemUpdate, args).Scan(&u.UpdatedAt); err != nil {
		return notFound(err, "saving item update")
	}
	return nil
}

// ListItemUpdates returns the newest updates of a listing.
func (s *PostgresStore) ListItemUpdates(
	ctx context.Context,
	listingID string,
	limit int,
) ([]domain.ItemUpdate, error) {
	limit, _ = clampLimit(limit, 0)
	rows, err := s.pool.Query(ctx, queryListItemUpdates, listingID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying item updates: %w", err)
	}
	defer rows.Close()

	var updates []domain.ItemUpdate
	for rows.Next() {
		var u domain.ItemUpdate
		if err := scanItemUpdate(rows, &u); err != nil {
			return nil, fmt.Errorf("scanning item update: %w", err)
		}
		updates = append(updates, u)
	}
	return updates, rows.Err()
}

// InsertAPIAttempt appends one outbound call to the audit trail.
func (s *PostgresStore) InsertAPIAttempt(ctx context.Context, a *domain.APIAttempt) error {
	if err := s.pool.QueryRow(ctx, queryInsertAPIAttempt,
		a.ListingID, a.UpdateID, string(a.Type), a.Success, a.Request, a.Response,
	).Scan(&a.ID, &a.CreatedAt); err != nil {
		return fmt.Errorf("inserting api attempt: %w", err)
	}
	return nil
}

// ListAPIAttempts returns the newest API attempts of a listing.
func (s *PostgresStore) ListAPIAttempts(
	ctx context.Context,
	listingID string,
	limit int,
) ([]domain.APIAttempt, error) {
	limit, _ = clampLimit(limit, 0)
	rows, err := s.pool.Query(ctx, queryListAPIAttempts, listingID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying api attempts: %w", err)
	}
	defer rows.Close()

	var attempts []domain.APIAttempt
	for rows.Next() {
		var a domain.APIAttempt
		if err := rows.Scan(
			&a.ID, &a.ListingID, &a.UpdateID, &a.Type, &a.Success,
			&a.Request, &a.Response, &a.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning api attempt: %w", err)
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}

func (s *PostgresStore) queryListings(
	ctx context.Context,
	query string,
	args ...any,
) ([]domain.Listing, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying listings: %w", err)
	}
	defer rows.Close()

	var listings []domain.Listing
	for rows.Next() {
		var l domain.Listing
		if err := scanListing(rows, &l); err != nil {
			return nil, fmt.Errorf("scanning listing: %w", err)
		}
		listings = append(listings, l)
	}

	return listings, rows.Err()
}

// scanListing scans a full listing row.
func scanListing(row scannable, l *domain.Listing) error {
	return row.Scan(
		&l.ID, &l.AccountID, &l.CoreProductID, &l.EbayItemID, &l.SKU, &l.Status, &l.StatusDetails,
		&l.Title, &l.Description, &l.ImageURLs, &l.GrossPrice, &l.Currency, &l.Quantity, &l.TaxRate,
		&l.CategoryID, &l.Specifics, &l.Shipping, &l.ReturnPolicy, &l.ClickAndCollect, &l.Variations,
		&l.PublishedAt, &l.UnpublishedAt, &l.EndsAt, &l.CreatedAt, &l.UpdatedAt,
	)
}

func scanItemUpdate(row scannable, u *domain.ItemUpdate) error {
	return row.Scan(
		&u.ID, &u.ListingID, &u.Status, &u.Price, &u.Quantity, &u.StatusDetails,
		&u.VariationUpdates, &u.CreatedAt, &u.UpdatedAt,
	)
}
