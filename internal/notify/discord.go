package notify

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/donaldgifford/ebay-connector/internal/metrics"
)

const (
	colorRed    = 0xE74C3C // publish and unpublish failures
	colorOrange = 0xE67E22 // exhausted tasks
	colorYellow = 0xF1C40F // everything else
)

// maxEmbeds is Discord's per-message embed limit.
const maxEmbeds = 10

// DiscordNotifier implements Notifier via Discord webhook.
type DiscordNotifier struct {
	webhookURL string
	http       *resty.Client
}

type discordOptions struct {
	httpClient *http.Client
	retries    int
	retryWait  time.Duration
}

// DiscordOption configures a DiscordNotifier.
type DiscordOption func(*discordOptions)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) DiscordOption {
	return func(o *discordOptions) {
		o.httpClient = c
	}
}

// WithRetries sets how often a rate limited webhook call is repeated and
// the initial wait between attempts.
func WithRetries(n int, wait time.Duration) DiscordOption {
	return func(o *discordOptions) {
		o.retries = n
		o.retryWait = wait
	}
}

// NewDiscordNotifier creates a new DiscordNotifier. Calls answered with 429
// are retried twice by default with exponential backoff capped at five
// seconds.
func NewDiscordNotifier(webhookURL string, opts ...DiscordOption) *DiscordNotifier {
	o := discordOptions{retries: 2, retryWait: 500 * time.Millisecond}
	for _, opt := range opts {
		opt(&o)
	}

	hc := resty.New()
	if o.httpClient != nil {
		hc = resty.NewWithClient(o.httpClient)
	}
	hc.SetRetryCount(o.retries).
		SetRetryWaitTime(o.retryWait).
		SetRetryMaxWaitTime(5 * time.Second).
		AddRetryCondition(func(r *resty.Response, _ error) bool {
			return r != nil && r.StatusCode() == http.StatusTooManyRequests
		})

	return &DiscordNotifier{webhookURL: webhookURL, http: hc}
}

// discordWebhookPayload is the Discord webhook JSON structure.
type discordWebhookPayload struct {
	Embeds []discordEmbed `json:"embeds"`
}

type discordEmbed struct {
	Title       string              `json:"title"`
	URL         string              `json:"url,omitempty"`
	Color       int                 `json:"color"`
	Description string              `json:"description,omitempty"`
	Fields      []discordEmbedField `json:"fields,omitempty"`
}

type discordEmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

// SendAlert sends a single alert as a Discord embed.
func (d *DiscordNotifier) SendAlert(ctx context.Context, alert *AlertPayload) error {
	payload := discordWebhookPayload{
		Embeds: []discordEmbed{buildEmbed(alert)},
	}
	return d.post(ctx, payload)
}

// SendBatchAlert sends multiple alerts as a single Discord message.
func (d *DiscordNotifier) SendBatchAlert(
	ctx context.Context,
	alerts []AlertPayload,
	source string,
) error {
	if len(alerts) == 0 {
		return nil
	}

	limit := min(len(alerts), maxEmbeds)
	embeds := make([]discordEmbed, 0, limit+1)
	for i := range limit {
		embeds = append(embeds, buildEmbed(&alerts[i]))
	}

	if len(alerts) > maxEmbeds {
		embeds = append(embeds, discordEmbed{
			Title:       fmt.Sprintf("... and %d more alerts from %s", len(alerts)-maxEmbeds, source),
			Color:       colorYellow,
			Description: "Check the connector logs for the full list.",
		})
	}

	return d.post(ctx, discordWebhookPayload{Embeds: embeds})
}

func buildEmbed(alert *AlertPayload) discordEmbed {
	embed := discordEmbed{
		Title: fmt.Sprintf("%s: %s", kindTitle(alert.Kind), alert.Title),
		URL:   alert.EbayURL,
		Color: kindColor(alert.Kind),
	}

	add := func(name, value string) {
		if value != "" {
			embed.Fields = append(embed.Fields, discordEmbedField{Name: name, Value: value, Inline: true})
		}
	}
	add("Account", alert.AccountID)
	add("Listing", alert.ListingID)
	add("SKU", alert.SKU)

	var lines []string
	if alert.Error != "" {
		lines = append(lines, alert.Error)
	}
	for _, det := range alert.Details {
		msg := det.LongMessage
		if msg == "" {
			msg = det.ShortMessage
		}
		lines = append(lines, fmt.Sprintf("[%s] %s", det.Code, msg))
	}
	embed.Description = strings.Join(lines, "\n")

	return embed
}

func kindTitle(k AlertKind) string {
	switch k {
	case KindPublishFailed:
		return "Publish failed"
	case KindUnpublishFailed:
		return "Unpublish failed"
	case KindTaskExhausted:
		return "Task gave up"
	case KindSyncFailed:
		return "Sync failed"
	case KindHandlerFailed:
		return "Notification failed"
	default:
		return "Alert"
	}
}

func kindColor(k AlertKind) int {
	switch k {
	case KindPublishFailed, KindUnpublishFailed:
		return colorRed
	case KindTaskExhausted:
		return colorOrange
	default:
		return colorYellow
	}
}

func (d *DiscordNotifier) post(ctx context.Context, payload discordWebhookPayload) (err error) {
	defer func() {
		if err != nil {
			metrics.AlertFailuresTotal.Inc()
			return
		}
		metrics.AlertsFiredTotal.Inc()
	}()

	resp, err := d.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(payload).
		Post(d.webhookURL)
	if err != nil {
		return fmt.Errorf("sending discord webhook: %w", err)
	}

	switch code := resp.StatusCode(); {
	case code == http.StatusTooManyRequests:
		return fmt.Errorf("discord rate limited (429) after %d attempts", resp.Request.Attempt)
	case code < 200 || code >= 300:
		return fmt.Errorf("discord returned %d: %s", code, strings.TrimSpace(resp.String()))
	}
	return nil
}
