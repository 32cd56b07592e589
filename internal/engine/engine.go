package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/donaldgifford/ebay-connector/internal/ebay"
	"github.com/donaldgifford/ebay-connector/internal/notify"
	"github.com/donaldgifford/ebay-connector/internal/syncer"
	domain "github.com/donaldgifford/ebay-connector/pkg/types"
)

// Job names. Each sync domain is one scheduled job.
const (
	JobProducts   = "products"
	JobOrders     = "orders"
	JobReturns    = "returns"
	JobCategories = "categories"
	JobShipping   = "shipping"
)

// Jobs lists every job in scheduling order.
var Jobs = []string{JobProducts, JobOrders, JobReturns, JobCategories, JobShipping}

// ErrUnknownJob is returned for a job name outside Jobs.
var ErrUnknownJob = errors.New("unknown sync job")

// ErrNoCatalogAccount means no account holds a token the catalog can be
// fetched with.
var ErrNoCatalogAccount = errors.New("no account with a valid eBay token")

// AccountStore lists the accounts the engine syncs.
type AccountStore interface {
	GetAccount(ctx context.Context, id string) (*domain.Account, error)
	ListAccounts(ctx context.Context) ([]domain.Account, error)
}

// Syncer runs the individual sync feeds.
type Syncer interface {
	SyncProducts(ctx context.Context, acc *domain.Account) (syncer.Stats, error)
	SyncOrders(ctx context.Context, acc *domain.Account) (syncer.Stats, error)
	SyncReturns(ctx context.Context, acc *domain.Account) (syncer.Stats, error)
	SyncCategories(ctx context.Context, sess ebay.Session, countries []string) (syncer.CatalogStats, error)
	SyncShipping(ctx context.Context, sess ebay.Session, countries []string) (syncer.CatalogStats, error)
}

// Engine runs the sync jobs across all accounts.
type Engine struct {
	store    AccountStore
	syncer   Syncer
	notifier notify.Notifier
	log      *slog.Logger
	now      func() time.Time

	countries     []string
	staggerOffset time.Duration
}

// EngineOption configures the Engine.
type EngineOption func(*Engine)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.log = l
	}
}

// WithStaggerOffset sets the delay between processing each account.
func WithStaggerOffset(d time.Duration) EngineOption {
	return func(e *Engine) {
		e.staggerOffset = d
	}
}

// WithCountries sets the marketplaces whose catalog is mirrored. Defaults to
// the countries of the accounts.
func WithCountries(c []string) EngineOption {
	return func(e *Engine) {
		e.countries = c
	}
}

// WithNowFunc overrides the clock used for token checks.
func WithNowFunc(f func() time.Time) EngineOption {
	return func(e *Engine) {
		e.now = f
	}
}

// NewEngine creates a new Engine with injected dependencies.
func NewEngine(s AccountStore, sy Syncer, n notify.Notifier, opts ...EngineOption) *Engine {
	eng := &Engine{
		store:         s,
		syncer:        sy,
		notifier:      n,
		log:           slog.Default(),
		now:           time.Now,
		staggerOffset: 2 * time.Second,
	}
	for _, opt := range opts {
		opt(eng)
	}
	return eng
}

// Run executes one job for every account, or once for the catalog jobs.
// Account failures do not stop the run; they are reported and joined into
// the returned error.
func (eng *Engine) Run(ctx context.Context, job string) error {
	switch job {
	case JobProducts, JobOrders, JobReturns:
		return eng.runAccounts(ctx, job)
	case JobCategories, JobShipping:
		return eng.runCatalog(ctx, job)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownJob, job)
	}
}

// RunAccount executes a per-account job for one account.
func (eng *Engine) RunAccount(ctx context.Context, job, accountID string) (syncer.Stats, error) {
	acc, err := eng.store.GetAccount(ctx, accountID)
	if err != nil {
		return syncer.Stats{}, fmt.Errorf("loading account %s: %w", accountID, err)
	}
	return eng.syncAccount(ctx, job, acc)
}

func (eng *Engine) syncAccount(ctx context.Context, job string, acc *domain.Account) (syncer.Stats, error) {
	switch job {
	case JobProducts:
		return eng.syncer.SyncProducts(ctx, acc)
	case JobOrders:
		return eng.syncer.SyncOrders(ctx, acc)
	case JobReturns:
		return eng.syncer.SyncReturns(ctx, acc)
	default:
		return syncer.Stats{}, fmt.Errorf("%w: %q is not an account job", ErrUnknownJob, job)
	}
}

func (eng *Engine) runAccounts(ctx context.Context, job string) error {
	accounts, err := eng.store.ListAccounts(ctx)
	if err != nil {
		return fmt.Errorf("listing accounts: %w", err)
	}

	var failures []SyncFailure
	for i := range accounts {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		acc := &accounts[i]
		if !acc.HasValidToken(eng.now()) {
			eng.log.Warn("skipping account without valid token", "account_id", acc.ID, "domain", job)
			continue
		}

		st, err := eng.syncAccount(ctx, job, acc)
		if err != nil {
			eng.log.Error("sync failed", "account_id", acc.ID, "domain", job, "error", err)
			failures = append(failures, SyncFailure{Job: job, AccountID: acc.ID, Err: err})
		} else {
			eng.log.Info("sync complete",
				"account_id", acc.ID,
				"domain", job,
				"pages", st.Pages,
				"applied", st.Applied,
				"skipped", st.Skipped,
			)
		}

		// Stagger between accounts to avoid API bursts.
		if i < len(accounts)-1 && eng.staggerOffset > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(eng.staggerOffset):
			}
		}
	}

	if len(failures) == 0 {
		return nil
	}
	if err := ReportFailures(ctx, eng.notifier, job, failures); err != nil {
		eng.log.Error("reporting sync failures", "domain", job, "error", err)
	}
	errs := make([]error, 0, len(failures))
	for _, f := range failures {
		errs = append(errs, fmt.Errorf("account %s: %w", f.AccountID, f.Err))
	}
	return errors.Join(errs...)
}

func (eng *Engine) runCatalog(ctx context.Context, job string) error {
	accounts, err := eng.store.ListAccounts(ctx)
	if err != nil {
		return fmt.Errorf("listing accounts: %w", err)
	}

	var sess *ebay.Session
	countries := slices.Clone(eng.countries)
	for i := range accounts {
		acc := &accounts[i]
		if sess == nil && acc.HasValidToken(eng.now()) {
			sess = &ebay.Session{Token: acc.Token.Value, SiteID: acc.SiteID}
		}
		if len(eng.countries) == 0 && acc.Country != "" && !slices.Contains(countries, acc.Country) {
			countries = append(countries, acc.Country)
		}
	}
	if sess == nil {
		return ErrNoCatalogAccount
	}
	slices.Sort(countries)

	var st syncer.CatalogStats
	if job == JobCategories {
		st, err = eng.syncer.SyncCategories(ctx, *sess, countries)
	} else {
		st, err = eng.syncer.SyncShipping(ctx, *sess, countries)
	}
	if err != nil {
		if rerr := ReportFailures(ctx, eng.notifier, job, []SyncFailure{{Job: job, Err: err}}); rerr != nil {
			eng.log.Error("reporting sync failures", "domain", job, "error", rerr)
		}
		return err
	}

	eng.log.Info("catalog sync complete",
		"domain", job,
		"countries", st.Countries,
		"categories", st.Categories,
		"batches", st.Batches,
		"services", st.Services,
	)
	return nil
}
