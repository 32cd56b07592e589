package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"

	apiclient "github.com/donaldgifford/ebay-connector/internal/api/client"
	domain "github.com/donaldgifford/ebay-connector/pkg/types"
)

const timeLayout = "2006-01-02 15:04:05"

// tabWriter wraps tabwriter with error tracking.
type tabWriter struct {
	*tabwriter.Writer
	err error
}

func newTabWriter(w io.Writer) *tabWriter {
	return &tabWriter{Writer: tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)}
}

func (tw *tabWriter) writef(format string, args ...any) {
	if tw.err != nil {
		return
	}
	_, tw.err = fmt.Fprintf(tw.Writer, format, args...)
}

func (tw *tabWriter) finish() error {
	if tw.err != nil {
		return tw.err
	}
	return tw.Flush()
}

func printListingStatuses(statuses map[string]apiclient.ListingStatus) error {
	products := make([]string, 0, len(statuses))
	for p := range statuses {
		products = append(products, p)
	}
	sort.Strings(products)

	tw := newTabWriter(os.Stdout)
	tw.writef("PRODUCT\tLISTING\tSKU\tSTATUS\n")
	for _, p := range products {
		st := statuses[p]
		tw.writef("%s\t%s\t%s\t%s\n", p, st.ListingID, st.SKU, st.Status)
	}
	return tw.finish()
}

func printListingsTable(listings []domain.Listing) error {
	tw := newTabWriter(os.Stdout)
	tw.writef("ID\tPRODUCT\tSKU\tTITLE\tPRICE\tQTY\tSTATUS\tEBAY ITEM\n")
	for i := range listings {
		l := &listings[i]
		tw.writef("%s\t%d\t%s\t%s\t%s %s\t%d\t%s\t%s\n",
			l.ID,
			l.CoreProductID,
			l.SKU,
			truncate(l.Title, 40),
			l.GrossPrice.StringFixed(2),
			l.Currency,
			l.Quantity,
			l.Status,
			deref(l.EbayItemID),
		)
	}
	return tw.finish()
}

func printListingDetail(l *domain.Listing) error {
	tw := newTabWriter(os.Stdout)
	tw.writef("ID:\t%s\n", l.ID)
	tw.writef("Product:\t%d\n", l.CoreProductID)
	tw.writef("SKU:\t%s\n", l.SKU)
	tw.writef("eBay Item:\t%s\n", deref(l.EbayItemID))
	tw.writef("Title:\t%s\n", l.Title)
	tw.writef("Price:\t%s %s\n", l.GrossPrice.StringFixed(2), l.Currency)
	tw.writef("Quantity:\t%d\n", l.Quantity)
	tw.writef("Category:\t%s\n", l.CategoryID)
	tw.writef("Status:\t%s\n", l.Status)
	if l.PublishedAt != nil {
		tw.writef("Published:\t%s\n", l.PublishedAt.Format(timeLayout))
	}
	if l.HasVariations() {
		tw.writef("Variations:\t%d\n", len(l.Variations))
	}
	for _, d := range l.StatusDetails {
		tw.writef("%s:\t[%s] %s\n", d.Severity, d.Code, d.ShortMessage)
	}
	return tw.finish()
}

func printAttemptsTable(attempts []domain.APIAttempt) error {
	tw := newTabWriter(os.Stdout)
	tw.writef("TIME\tTYPE\tSUCCESS\tID\n")
	for i := range attempts {
		a := &attempts[i]
		tw.writef("%s\t%s\t%v\t%s\n", a.CreatedAt.Format(timeLayout), a.Type, a.Success, a.ID)
	}
	return tw.finish()
}

func printJobRunsTable(runs []domain.JobRun) error {
	tw := newTabWriter(os.Stdout)
	tw.writef("JOB\tSTATUS\tSTARTED\tCOMPLETED\tERROR\n")
	for i := range runs {
		r := &runs[i]
		completed := "-"
		if r.CompletedAt != nil {
			completed = r.CompletedAt.Format(timeLayout)
		}
		tw.writef("%s\t%s\t%s\t%s\t%s\n",
			r.JobName,
			r.Status,
			r.StartedAt.Format(timeLayout),
			completed,
			truncate(r.ErrorText, 40),
		)
	}
	return tw.finish()
}

func printNotificationsTable(ns []domain.Notification) error {
	tw := newTabWriter(os.Stdout)
	tw.writef("RECEIVED\tEVENT\tSTATUS\tTIMESTAMP\tID\n")
	for i := range ns {
		n := &ns[i]
		tw.writef("%s\t%s\t%s\t%s\t%s\n",
			n.CreatedAt.Format(timeLayout),
			n.EventType,
			n.Status,
			n.Timestamp.Format(timeLayout),
			n.ID,
		)
	}
	return tw.finish()
}

func printAccountDetail(a *domain.Account) error {
	tw := newTabWriter(os.Stdout)
	tw.writef("ID:\t%s\n", a.ID)
	tw.writef("Username:\t%s\n", a.Username)
	tw.writef("Core Account:\t%s\n", a.CoreAccountID)
	tw.writef("eBay User:\t%s\n", a.EbayUserID)
	tw.writef("Marketplace:\t%s (site %d)\n", a.Country, a.SiteID)
	tw.writef("Click & Collect:\t%v\n", a.ClickAndCollect)
	if a.Token != nil {
		tw.writef("Token Expires:\t%s\n", a.Token.ExpiresAt.Format(timeLayout))
	}
	if a.Location != nil {
		tw.writef("Location:\t%s, %s %s\n", a.Location.LocationID, a.Location.PostalCode, a.Location.City)
	}
	return tw.finish()
}

func printQuota(q *apiclient.Quota) error {
	tw := newTabWriter(os.Stdout)
	if q.DailyLimit == 0 {
		tw.writef("Daily:\t%d calls (unmetered)\n", q.DailyUsed)
	} else {
		tw.writef("Daily:\t%d / %d calls\n", q.DailyUsed, q.DailyLimit)
		tw.writef("Remaining:\t%d\n", q.Remaining)
	}
	tw.writef("Resets:\t%s\n", q.ResetAt.Local().Format(timeLayout))
	tw.writef("Rate:\t%g/s (burst %d)\n", q.PerSecond, q.Burst)
	if q.Exhausted {
		tw.writef("Status:\tEXHAUSTED\n")
	}
	return tw.finish()
}

func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func deref(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
