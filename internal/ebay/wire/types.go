package wire

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TimeLayout is the only timestamp format eBay emits and accepts.
const TimeLayout = "2006-01-02T15:04:05.000Z"

const parseLayout = "2006-01-02T15:04:05.999999999Z"

// MoneyPlaces is the precision of every amount on the wire.
const MoneyPlaces = 2

// ParseTime parses an eBay timestamp. The fractional seconds and the
// trailing Z are mandatory; anything else is a schema violation.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	dot := strings.LastIndexByte(s, '.')
	if !strings.HasSuffix(s, "Z") || dot < 0 || dot+1 >= len(s)-1 {
		return time.Time{}, fmt.Errorf("invalid eBay timestamp %q", s)
	}

	t, err := time.Parse(parseLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid eBay timestamp %q: %w", s, err)
	}
	return t.UTC(), nil
}

// FormatTime renders t in the eBay timestamp format.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// Time is a timestamp element.
type Time struct {
	time.Time
}

// NewTime wraps t.
func NewTime(t time.Time) *Time {
	return &Time{Time: t}
}

// MarshalXML implements xml.Marshaler.
func (t Time) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	return e.EncodeElement(FormatTime(t.Time), start)
}

// UnmarshalXML implements xml.Unmarshaler.
func (t *Time) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	var s string
	if err := d.DecodeElement(&s, &start); err != nil {
		return err
	}
	parsed, err := ParseTime(s)
	if err != nil {
		return err
	}
	t.Time = parsed
	return nil
}

// Amount is a money element with a currencyID attribute.
type Amount struct {
	Value      decimal.Decimal
	CurrencyID string
}

// NewAmount builds an Amount.
func NewAmount(v decimal.Decimal, currency string) *Amount {
	return &Amount{Value: v, CurrencyID: currency}
}

// String renders the amount at wire precision.
func (a Amount) String() string {
	return a.Value.StringFixed(MoneyPlaces)
}

// MarshalXML implements xml.Marshaler. Values are quantized, never rejected.
func (a Amount) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	if a.CurrencyID != "" {
		start.Attr = append(start.Attr, xml.Attr{
			Name:  xml.Name{Local: "currencyID"},
			Value: a.CurrencyID,
		})
	}
	return e.EncodeElement(a.String(), start)
}

// UnmarshalXML implements xml.Unmarshaler.
func (a *Amount) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	var raw struct {
		Value      string `xml:",chardata"`
		CurrencyID string `xml:"currencyID,attr"`
	}
	if err := d.DecodeElement(&raw, &start); err != nil {
		return err
	}
	v, err := decimal.NewFromString(strings.TrimSpace(raw.Value))
	if err != nil {
		return fmt.Errorf("invalid amount %q: %w", raw.Value, err)
	}
	a.Value = v
	a.CurrencyID = raw.CurrencyID
	return nil
}

// List decodes a JSON value that is either a single object or an array of
// objects into a slice. eBay's JSON renditions of XML payloads collapse
// one-element lists into bare objects.
type List[T any] []T

// UnmarshalJSON implements json.Unmarshaler.
func (l *List[T]) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0, bytes.Equal(data, []byte("null")):
		*l = nil
		return nil
	case data[0] == '[':
		var items []T
		if err := json.Unmarshal(data, &items); err != nil {
			return err
		}
		*l = items
		return nil
	default:
		var item T
		if err := json.Unmarshal(data, &item); err != nil {
			return err
		}
		*l = List[T]{item}
		return nil
	}
}

// NormalizeList decodes raw into a slice regardless of whether it holds a
// single value or an array.
func NormalizeList[T any](raw json.RawMessage) ([]T, error) {
	var l List[T]
	if err := l.UnmarshalJSON(raw); err != nil {
		return nil, fmt.Errorf("normalizing list: %w", err)
	}
	return l, nil
}

// ImageRewriter substitutes the scheme and host of picture URLs so eBay can
// fetch them from a public, plain-HTTP host.
type ImageRewriter struct {
	from *url.URL
	to   *url.URL
}

// NewImageRewriter builds a rewriter from two base URLs such as
// "https://cdn.internal" and "http://images.example.com". An empty from
// disables rewriting.
func NewImageRewriter(from, to string) (*ImageRewriter, error) {
	if from == "" {
		return &ImageRewriter{}, nil
	}
	f, err := url.Parse(from)
	if err != nil {
		return nil, fmt.Errorf("parsing image from-host: %w", err)
	}
	t, err := url.Parse(to)
	if err != nil {
		return nil, fmt.Errorf("parsing image to-host: %w", err)
	}
	if t.Host == "" {
		return nil, fmt.Errorf("image to-host %q has no host", to)
	}
	return &ImageRewriter{from: f, to: t}, nil
}

// Rewrite returns raw with its scheme and host replaced when it points at
// the configured source host.
func (r *ImageRewriter) Rewrite(raw string) string {
	if r == nil || r.from == nil {
		return raw
	}
	u, err := url.Parse(raw)
	if err != nil || !strings.EqualFold(u.Host, r.from.Host) {
		return raw
	}
	u.Scheme = r.to.Scheme
	u.Host = r.to.Host
	return u.String()
}
