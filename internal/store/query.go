package store

import (
	"fmt"
	"strings"
)

const (
	defaultLimit = 50
	maxLimit     = 500

	orderByCreated   = "created_at"
	orderByUpdated   = "updated_at"
	orderByPublished = "published_at"
)

// validOrderBy maps allowed OrderBy values to their SQL column expressions.
var validOrderBy = map[string]string{
	orderByCreated:   "created_at DESC",
	orderByUpdated:   "updated_at DESC",
	orderByPublished: "published_at DESC NULLS LAST",
}

const defaultOrderBy = "created_at DESC"

const countListingsSelect = "SELECT COUNT(*) FROM listings"

// whereBuilder accumulates AND-ed conditions with positional parameters.
type whereBuilder struct {
	conditions []string
	args       []any
}

func (w *whereBuilder) add(expr string, arg any) {
	w.args = append(w.args, arg)
	w.conditions = append(w.conditions, fmt.Sprintf(expr, len(w.args)))
}

func (w *whereBuilder) clause() string {
	if len(w.conditions) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conditions, " AND ")
}

func clampLimit(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	return limit, max(offset, 0)
}

// ToSQL builds the WHERE clause, ORDER BY, LIMIT, and OFFSET for a listing query.
// It returns two SQL strings (one for the data query, one for the count query)
// and the positional parameters.
func (q *ListingQuery) ToSQL() (dataSQL, countSQL string, args []any) {
	var w whereBuilder

	if q.AccountID != nil {
		w.add("account_id = $%d", *q.AccountID)
	}
	if q.Status != nil {
		w.add("status = $%d", string(*q.Status))
	}
	if q.CoreProductID != nil {
		w.add("core_product_id = $%d", *q.CoreProductID)
	}

	orderClause := defaultOrderBy
	if col, ok := validOrderBy[q.OrderBy]; ok {
		orderClause = col
	}

	limit, offset := clampLimit(q.Limit, q.Offset)
	where := w.clause()

	dataSQL = fmt.Sprintf(
		"%s%s ORDER BY %s LIMIT %d OFFSET %d",
		listingSelect, where, orderClause, limit, offset,
	)
	countSQL = countListingsSelect + where

	return dataSQL, countSQL, w.args
}

// ToSQL builds the data and count queries for the notification audit log.
func (q *NotificationQuery) ToSQL() (dataSQL, countSQL string, args []any) {
	var w whereBuilder

	if q.Status != nil {
		w.add("status = $%d", string(*q.Status))
	}
	if q.EventType != nil {
		w.add("event_type = $%d", *q.EventType)
	}

	limit, offset := clampLimit(q.Limit, q.Offset)
	where := w.clause()

	dataSQL = fmt.Sprintf(
		"%s%s ORDER BY created_at DESC LIMIT %d OFFSET %d",
		notificationSelect, where, limit, offset,
	)
	countSQL = "SELECT COUNT(*) FROM notifications" + where

	return dataSQL, countSQL, w.args
}
