package syncer

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/donaldgifford/ebay-connector/internal/ebay"
	"github.com/donaldgifford/ebay-connector/internal/metrics"
	domain "github.com/donaldgifford/ebay-connector/pkg/types"
)

// Catalog feed names.
const (
	DomainCategories = "categories"
	DomainShipping   = "shipping"
)

const shippingDetailName = "ShippingServiceDetails"

// Batch is one GetCategorySpecifics call.
type Batch struct {
	Country     string
	Index       int
	CategoryIDs []string
}

// PlanBatches splits the leaf categories of each country into batches of at
// most size ids. Countries and ids are sorted so the plan is the same on
// every run and a failed run can be resumed from a batch index.
func PlanBatches(ids map[string][]string, size int) []Batch {
	if size <= 0 {
		size = defaultBatchSize
	}
	countries := make([]string, 0, len(ids))
	for c := range ids {
		countries = append(countries, c)
	}
	slices.Sort(countries)

	var out []Batch
	for _, c := range countries {
		sorted := slices.Clone(ids[c])
		slices.SortFunc(sorted, compareIDs)
		sorted = slices.Compact(sorted)
		for chunk := range slices.Chunk(sorted, size) {
			out = append(out, Batch{Country: c, Index: len(out), CategoryIDs: chunk})
		}
	}
	return out
}

// compareIDs orders numeric ids by value: shorter first, then lexically.
func compareIDs(a, b string) int {
	if c := cmp.Compare(len(a), len(b)); c != 0 {
		return c
	}
	return cmp.Compare(a, b)
}

// CatalogStats summarises a catalog resync.
type CatalogStats struct {
	Countries  int
	Categories int
	Batches    int
	Specifics  int
	Services   int
}

// SyncCategories replaces the category trees of countries and then fetches
// the specifics of all leaf categories batch by batch. sess supplies the
// token; the site is chosen per country.
func (s *Syncer) SyncCategories(ctx context.Context, sess ebay.Session, countries []string) (st CatalogStats, err error) {
	ctx, done := s.observe(ctx, DomainCategories)
	defer func() { done(err) }()

	leaves := make(map[string][]string, len(countries))
	sites := make(map[string]int, len(countries))
	for _, country := range countries {
		site, err := ebay.SiteForCountry(country)
		if err != nil {
			return st, err
		}
		sites[country] = site

		n, err := s.syncTree(ctx, sess.WithSite(site), country)
		if err != nil {
			return st, err
		}
		st.Countries++
		st.Categories += n

		ids, err := s.store.ListLeafCategoryIDs(ctx, country)
		if err != nil {
			return st, fmt.Errorf("listing leaf categories of %s: %w", country, err)
		}
		leaves[country] = ids
	}

	for _, b := range PlanBatches(leaves, s.batchSize) {
		res, err := s.trading.GetCategorySpecifics(ctx, sess.WithSite(sites[b.Country]), b.CategoryIDs)
		if err != nil {
			return st, fmt.Errorf("fetching specifics batch %d (%s): %w", b.Index, b.Country, err)
		}
		var specs []domain.Specific
		for _, rec := range res.Recommendations {
			specs = append(specs, rec.ToDomain(b.Country)...)
		}
		if err := s.store.ReplaceSpecifics(ctx, b.Country, b.CategoryIDs, specs); err != nil {
			return st, fmt.Errorf("saving specifics batch %d (%s): %w", b.Index, b.Country, err)
		}
		st.Batches++
		st.Specifics += len(specs)
	}

	s.log.InfoContext(ctx, "categories synced",
		"countries", st.Countries,
		"categories", st.Categories,
		"batches", st.Batches,
		"specifics", st.Specifics,
	)
	return st, nil
}

func (s *Syncer) syncTree(ctx context.Context, sess ebay.Session, country string) (int, error) {
	tree, err := s.trading.GetCategories(ctx, sess)
	if err != nil {
		return 0, fmt.Errorf("fetching categories of %s: %w", country, err)
	}
	features, err := s.trading.GetCategoryFeatures(ctx, sess)
	if err != nil {
		return 0, fmt.Errorf("fetching category features of %s: %w", country, err)
	}

	variations := make(map[string]bool, len(features.Categories))
	for _, f := range features.Categories {
		variations[f.CategoryID] = f.VariationsEnabled
	}

	cats := make([]domain.Category, 0, len(tree.Categories))
	for _, c := range tree.Categories {
		cat := c.ToDomain(country)
		enabled, ok := variations[cat.ID]
		if !ok {
			enabled = features.SiteDefaults.VariationsEnabled
		}
		cat.Variations = enabled
		cats = append(cats, cat)
	}

	if err := s.store.ReplaceCategories(ctx, country, cats); err != nil {
		return 0, fmt.Errorf("saving categories of %s: %w", country, err)
	}
	return len(cats), nil
}

// SyncShipping replaces the shipping services of countries, addressing each
// country's eBay site explicitly.
func (s *Syncer) SyncShipping(ctx context.Context, sess ebay.Session, countries []string) (st CatalogStats, err error) {
	ctx, done := s.observe(ctx, DomainShipping)
	defer func() { done(err) }()

	now := s.now()
	for _, country := range countries {
		site, err := ebay.SiteForCountry(country)
		if err != nil {
			return st, err
		}
		res, err := s.trading.GeteBayDetails(ctx, sess.WithSite(site), shippingDetailName)
		if err != nil {
			return st, fmt.Errorf("fetching shipping services of %s: %w", country, err)
		}

		svcs := make([]domain.ShippingService, 0, len(res.ShippingServiceDetails))
		for _, d := range res.ShippingServiceDetails {
			svc := d.ToDomain(country)
			svc.UpdatedAt = now
			svcs = append(svcs, svc)
		}
		if err := s.store.ReplaceShippingServices(ctx, country, svcs); err != nil {
			return st, fmt.Errorf("saving shipping services of %s: %w", country, err)
		}
		st.Countries++
		st.Services += len(svcs)
	}
	return st, nil
}

// observe wraps a full resync in a span and the sync run metrics.
func (s *Syncer) observe(ctx context.Context, name string) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := otel.Tracer(instrumentationName).Start(ctx, "sync."+name)
	return ctx, func(err error) {
		status := "succeeded"
		if err != nil {
			status = "failed"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.SetAttributes(attribute.String("sync.status", status))
		span.End()
		metrics.SyncRunsTotal.WithLabelValues(name, status).Inc()
		metrics.SyncDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	}
}
