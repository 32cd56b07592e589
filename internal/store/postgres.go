package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	domain "github.com/donaldgifford/ebay-connector/pkg/types"
)

const defaultPoolSize = 10

// pgUniqueViolation is the SQLSTATE raised for unique constraint violations.
const pgUniqueViolation = "23505"

// watermarkColumns maps sync domains onto their checkpoint columns.
var watermarkColumns = map[domain.SyncDomain]string{
	domain.SyncProducts: "last_products_sync",
	domain.SyncOrders:   "last_orders_sync",
	domain.SyncReturns:  "last_returns_sync",
}

// PostgresStore implements Store using pgxpool (connection-pooled PostgreSQL).
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore with connection pooling.
func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}

	cfg.MaxConns = defaultPoolSize

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

// Close gracefully shuts down the connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Ping verifies the database connection is alive.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Migrate applies pending SQL schema migrations.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	return RunMigrations(ctx, s.pool)
}

// UpsertAccount inserts or updates an account by username. Sync watermarks
// are left untouched; they only move through UpdateWatermark.
func (s *PostgresStore) UpsertAccount(ctx context.Context, a *domain.Account) error {
	var (
		tokenValue     *string
		tokenExpiresAt *time.Time
	)
	if a.Token != nil {
		tokenValue = &a.Token.Value
		if !a.Token.ExpiresAt.IsZero() {
			tokenExpiresAt = &a.Token.ExpiresAt
		}
	}

	args := pgx.NamedArgs{
		"username":          a.Username,
		"core_account_id":   a.CoreAccountID,
		"ebay_user_id":      a.EbayUserID,
		"country":           a.Country,
		"site_id":           a.SiteID,
		"currency":          a.Currency,
		"token_value":       tokenValue,
		"token_expires_at":  tokenExpiresAt,
		"location":          a.Location,
		"return_policy":     a.ReturnPolicy,
		"shipping":          nonNil(a.Shipping),
		"click_and_collect": a.ClickAndCollect,
	}

	if err := s.pool.QueryRow(ctx, queryUpsertAccount, args).Scan(
		&a.ID, &a.CreatedAt, &a.UpdatedAt,
	); err != nil {
		return fmt.Errorf("upserting account: %w", err)
	}
	return nil
}

// GetAccount retrieves an account by its internal id.
func (s *PostgresStore) GetAccount(ctx context.Context, id string) (*domain.Account, error) {
	return s.getAccount(ctx, queryGetAccount, id)
}

// GetAccountByUsername resolves the trusted-header identity to an account.
func (s *PostgresStore) GetAccountByUsername(ctx context.Context, username string) (*domain.Account, error) {
	return s.getAccount(ctx, queryGetAccountByUsername, username)
}

// GetAccountByEbayUserID resolves the recipient of an eBay notification.
func (s *PostgresStore) GetAccountByEbayUserID(ctx context.Context, ebayUserID string) (*domain.Account, error) {
	return s.getAccount(ctx, queryGetAccountByEbayUserID, ebayUserID)
}

func (s *PostgresStore) getAccount(ctx context.Context, query string, arg any) (*domain.Account, error) {
	a := &domain.Account{}
	if err := scanAccount(s.pool.QueryRow(ctx, query, arg), a); err != nil {
		return nil, notFound(err, "getting account")
	}
	return a, nil
}

// ListAccounts returns every connected account, oldest first.
func (s *PostgresStore) ListAccounts(ctx context.Context) ([]domain.Account, error) {
	rows, err := s.pool.Query(ctx, queryListAccounts)
	if err != nil {
		return nil, fmt.Errorf("querying accounts: %w", err)
	}
	defer rows.Close()

	var accounts []domain.Account
	for rows.Next() {
		var a domain.Account
		if err := scanAccount(rows, &a); err != nil {
			return nil, fmt.Errorf("scanning account: %w", err)
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// UpdateWatermark stores the checkpoint of a completed sync run.
func (s *PostgresStore) UpdateWatermark(
	ctx context.Context,
	accountID string,
	d domain.SyncDomain,
	t time.Time,
) error {
	col, ok := watermarkColumns[d]
	if !ok {
		return fmt.Errorf("unknown sync domain %q", d)
	}

	tag, err := s.pool.Exec(ctx, fmt.Sprintf(queryUpdateWatermarkFmt, col), accountID, t)
	if err != nil {
		return fmt.Errorf("updating %s watermark: %w", d, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// InsertJobRun records the start of a job execution and returns its UUID.
func (s *PostgresStore) InsertJobRun(ctx context.Context, jobName string) (string, error) {
	var id string
	if err := s.pool.QueryRow(ctx, queryInsertJobRun, jobName).Scan(&id); err != nil {
		return "", fmt.Errorf("inserting job run: %w", err)
	}
	return id, nil
}

// CompleteJobRun marks a job run as finished with the given status and metadata.
func (s *PostgresStore) CompleteJobRun(
	ctx context.Context,
	id string,
	status string,
	errText string,
	rowsAffected int,
) error {
	_, err := s.pool.Exec(ctx, queryCompleteJobRun, id, status, errText, rowsAffected)
	if err != nil {
		return fmt.Errorf("completing job run: %w", err)
	}
	return nil
}

// ListJobRuns returns the most recent runs for a specific job, newest first.
func (s *PostgresStore) ListJobRuns(
	ctx context.Context,
	jobName string,
	limit int,
) ([]domain.JobRun, error) {
	rows, err := s.pool.Query(ctx, queryListJobRuns, jobName, limit)
	if err != nil {
		return nil, fmt.Errorf("querying job runs: %w", err)
	}
	defer rows.Close()

	return scanJobRuns(rows)
}

// ListLatestJobRuns returns the single most recent run for each distinct job name.
func (s *PostgresStore) ListLatestJobRuns(ctx context.Context) ([]domain.JobRun, error) {
	rows, err := s.pool.Query(ctx, queryListLatestJobRuns)
	if err != nil {
		return nil, fmt.Errorf("querying latest job runs: %w", err)
	}
	defer rows.Close()

	return scanJobRuns(rows)
}

// RecoverStaleJobRuns marks any 'running' job rows older than olderThan as 'crashed',
// then deletes all rows older than 30 days. Returns the number of rows marked as crashed.
func (s *PostgresStore) RecoverStaleJobRuns(
	ctx context.Context,
	olderThan time.Duration,
) (int, error) {
	cutoff := time.Now().Add(-olderThan)

	tag, err := s.pool.Exec(ctx, queryMarkStaleJobRunsCrashed, cutoff)
	if err != nil {
		return 0, fmt.Errorf("marking stale job runs crashed: %w", err)
	}
	affected := int(tag.RowsAffected())

	if _, err := s.pool.Exec(ctx, queryDeleteOldJobRuns); err != nil {
		return affected, fmt.Errorf("deleting old job runs: %w", err)
	}

	return affected, nil
}

// AcquireSchedulerLock attempts to acquire a distributed lock for the given job.
// Returns true if the lock was acquired, false if another holder already owns it.
func (s *PostgresStore) AcquireSchedulerLock(
	ctx context.Context,
	jobName string,
	holder string,
	ttl time.Duration,
) (bool, error) {
	expiresAt := time.Now().Add(ttl)

	var gotName string
	err := s.pool.QueryRow(ctx, queryAcquireSchedulerLock, jobName, holder, expiresAt).Scan(&gotName)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil // held by another replica
	}
	if err != nil {
		return false, fmt.Errorf("acquiring scheduler lock: %w", err)
	}

	return true, nil
}

// ReleaseSchedulerLock deletes the lock row for the given job and holder.
func (s *PostgresStore) ReleaseSchedulerLock(
	ctx context.Context,
	jobName string,
	holder string,
) error {
	_, err := s.pool.Exec(ctx, queryReleaseSchedulerLock, jobName, holder)
	if err != nil {
		return fmt.Errorf("releasing scheduler lock: %w", err)
	}
	return nil
}

// scanJobRuns scans rows from a job_runs query into a slice.
func scanJobRuns(rows pgx.Rows) ([]domain.JobRun, error) {
	var runs []domain.JobRun
	for rows.Next() {
		var r domain.JobRun
		if err := rows.Scan(
			&r.ID, &r.JobName, &r.StartedAt, &r.CompletedAt,
			&r.Status, &r.ErrorText, &r.RowsAffected,
		); err != nil {
			return nil, fmt.Errorf("scanning job run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// scannable abstracts pgx.Row and pgx.Rows for reuse.
type scannable interface {
	Scan(dest ...any) error
}

func scanAccount(row scannable, a *domain.Account) error {
	var (
		tokenValue     *string
		tokenExpiresAt *time.Time
	)
	if err := row.Scan(
		&a.ID, &a.Username, &a.CoreAccountID, &a.EbayUserID, &a.Country, &a.SiteID, &a.Currency,
		&tokenValue, &tokenExpiresAt, &a.Location, &a.ReturnPolicy, &a.Shipping, &a.ClickAndCollect,
		&a.LastProductsSync, &a.LastOrdersSync, &a.LastReturnsSync, &a.CreatedAt, &a.UpdatedAt,
	); err != nil {
		return err
	}

	a.Token = nil
	if tokenValue != nil {
		a.Token = &domain.Token{Value: *tokenValue}
		if tokenExpiresAt != nil {
			a.Token.ExpiresAt = *tokenExpiresAt
		}
	}
	return nil
}

// notFound maps pgx.ErrNoRows onto ErrNotFound and wraps everything else.
func notFound(err error, doing string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return fmt.Errorf("%s: %w", doing, err)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

// nonNil keeps NOT NULL jsonb columns as '[]' rather than JSON null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
