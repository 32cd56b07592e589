package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	domain "github.com/donaldgifford/ebay-connector/pkg/types"
)

// ReplaceCategories swaps the whole category tree of a country in one
// transaction. Specifics of the removed categories cascade away with them.
func (s *PostgresStore) ReplaceCategories(ctx context.Context, country string, cats []domain.Category) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, queryDeleteCategories, country); err != nil {
			return fmt.Errorf("deleting categories: %w", err)
		}

		_, err := tx.CopyFrom(ctx,
			pgx.Identifier{"categories"},
			[]string{"country", "id", "parent_id", "name", "level", "is_leaf", "variations_enabled"},
			pgx.CopyFromSlice(len(cats), func(i int) ([]any, error) {
				c := cats[i]
				return []any{country, c.ID, c.ParentID, c.Name, c.Level, c.IsLeaf, c.Variations}, nil
			}),
		)
		if err != nil {
			return fmt.Errorf("copying categories: %w", err)
		}
		return nil
	})
}

// GetCategory retrieves one category of a country's tree.
func (s *PostgresStore) GetCategory(ctx context.Context, country, id string) (*domain.Category, error) {
	c := &domain.Category{}
	if err := s.pool.QueryRow(ctx, queryGetCategory, country, id).Scan(
		&c.ID, &c.Country, &c.ParentID, &c.Name, &c.Level, &c.IsLeaf, &c.Variations,
	); err != nil {
		return nil, notFound(err, "getting category")
	}
	return c, nil
}

// ListChildCategories returns the children of parentID, or the root
// categories when parentID is empty.
func (s *PostgresStore) ListChildCategories(ctx context.Context, country, parentID string) ([]domain.Category, error) {
	rows, err := s.pool.Query(ctx, queryListChildCategories, country, parentID)
	if err != nil {
		return nil, fmt.Errorf("querying child categories: %w", err)
	}
	defer rows.Close()

	var cats []domain.Category
	for rows.Next() {
		var c domain.Category
		if err := rows.Scan(&c.ID, &c.Country, &c.ParentID, &c.Name, &c.Level, &c.IsLeaf, &c.Variations); err != nil {
			return nil, fmt.Errorf("scanning category: %w", err)
		}
		cats = append(cats, c)
	}
	return cats, rows.Err()
}

// ListLeafCategoryIDs returns the leaf category ids of a country in
// ascending order, the order batch planning depends on.
func (s *PostgresStore) ListLeafCategoryIDs(ctx context.Context, country string) ([]string, error) {
	rows, err := s.pool.Query(ctx, queryListLeafCategoryIDs, country)
	if err != nil {
		return nil, fmt.Errorf("querying leaf categories: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scanning leaf categories: %w", err)
	}
	return ids, nil
}

// ReplaceSpecifics swaps the specifics of one batch of categories.
func (s *PostgresStore) ReplaceSpecifics(
	ctx context.Context,
	country string,
	categoryIDs []string,
	specs []domain.Specific,
) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, queryDeleteSpecifics, country, categoryIDs); err != nil {
			return fmt.Errorf("deleting specifics: %w", err)
		}

		_, err := tx.CopyFrom(ctx,
			pgx.Identifier{"category_specifics"},
			[]string{"country", "category_id", "name", "required", "selection_only", "max_values", "values"},
			pgx.CopyFromSlice(len(specs), func(i int) ([]any, error) {
				sp := specs[i]
				return []any{
					country, sp.CategoryID, sp.Name, sp.Required, sp.SelectionOnly,
					sp.MaxValues, nonNil(sp.Values),
				}, nil
			}),
		)
		if err != nil {
			return fmt.Errorf("copying specifics: %w", err)
		}
		return nil
	})
}

// ListSpecifics returns the specifics of a category, required ones first.
func (s *PostgresStore) ListSpecifics(ctx context.Context, country, categoryID string) ([]domain.Specific, error) {
	rows, err := s.pool.Query(ctx, queryListSpecifics, country, categoryID)
	if err != nil {
		return nil, fmt.Errorf("querying specifics: %w", err)
	}
	defer rows.Close()

	var specs []domain.Specific
	for rows.Next() {
		var sp domain.Specific
		if err := rows.Scan(
			&sp.CategoryID, &sp.Country, &sp.Name, &sp.Required,
			&sp.SelectionOnly, &sp.MaxValues, &sp.Values,
		); err != nil {
			return nil, fmt.Errorf("scanning specific: %w", err)
		}
		specs = append(specs, sp)
	}
	return specs, rows.Err()
}

// ReplaceShippingServices swaps the shipping services of a country.
func (s *PostgresStore) ReplaceShippingServices(
	ctx context.Context,
	country string,
	svcs []domain.ShippingService,
) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, queryDeleteShippingServices, country); err != nil {
			return fmt.Errorf("deleting shipping services: %w", err)
		}

		_, err := tx.CopyFrom(ctx,
			pgx.Identifier{"shipping_services"},
			[]string{"country", "code", "description", "carrier", "international", "valid"},
			pgx.CopyFromSlice(len(svcs), func(i int) ([]any, error) {
				sv := svcs[i]
				return []any{country, sv.Code, sv.Description, sv.Carrier, sv.International, sv.Valid}, nil
			}),
		)
		if err != nil {
			return fmt.Errorf("copying shipping services: %w", err)
		}
		return nil
	})
}

// ListShippingServices returns the shipping services of a country.
func (s *PostgresStore) ListShippingServices(ctx context.Context, country string) ([]domain.ShippingService, error) {
	rows, err := s.pool.Query(ctx, queryListShippingServices, country)
	if err != nil {
		return nil, fmt.Errorf("querying shipping services: %w", err)
	}
	defer rows.Close()

	var svcs []domain.ShippingService
	for rows.Next() {
		var sv domain.ShippingService
		if err := rows.Scan(
			&sv.Code, &sv.Country, &sv.Description, &sv.Carrier,
			&sv.International, &sv.Valid, &sv.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning shipping service: %w", err)
		}
		svcs = append(svcs, sv)
	}
	return svcs, rows.Err()
}

// InsertNotification persists an inbound notification before it is dispatched.
func (s *PostgresStore) InsertNotification(ctx context.Context, n *domain.Notification) error {
	if n.Status == "" {
		n.Status = domain.NotificationUnhandled
	}
	if err := s.pool.QueryRow(ctx, queryInsertNotification,
		n.EventType, n.Timestamp, n.Signature, n.Payload, string(n.Status), n.Details,
	).Scan(&n.ID, &n.CreatedAt, &n.UpdatedAt); err != nil {
		return fmt.Errorf("inserting notification: %w", err)
	}
	return nil
}

// UpdateNotificationStatus records the dispatch outcome of a notification.
func (s *PostgresStore) UpdateNotificationStatus(
	ctx context.Context,
	id string,
	status domain.NotificationStatus,
	details json.RawMessage,
) error {
	tag, err := s.pool.Exec(ctx, queryUpdateNotificationStatus, id, string(status), details)
	if err != nil {
		return fmt.Errorf("updating notification status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListNotifications queries the notification audit log.
func (s *PostgresStore) ListNotifications(
	ctx context.Context,
	q *NotificationQuery,
) ([]domain.Notification, int, error) {
	dataSQL, countSQL, args := q.ToSQL()

	var total int
	if err := s.pool.QueryRow(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting notifications: %w", err)
	}

	rows, err := s.pool.Query(ctx, dataSQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("querying notifications: %w", err)
	}
	defer rows.Close()

	var out []domain.Notification
	for rows.Next() {
		var n domain.Notification
		if err := rows.Scan(
			&n.ID, &n.EventType, &n.Timestamp, &n.Signature, &n.Payload,
			&n.Status, &n.Details, &n.CreatedAt, &n.UpdatedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("scanning notification: %w", err)
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterating notifications: %w", err)
	}
	return out, total, nil
}
