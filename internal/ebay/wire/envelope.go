// Package wire maps connector domain values to and from the eBay Trading API
// XML format. Every shape quirk of the eBay schema (single-vs-list values,
// fixed money precision, strict timestamps) is contained here.
package wire

import (
	"bytes"
	"encoding/xml"
	"fmt"
)

// Namespace is the Trading API XML namespace.
const Namespace = "urn:ebay:apis:eBLBaseComponents"

// Ack values returned in every Trading API response.
const (
	AckSuccess        = "Success"
	AckWarning        = "Warning"
	AckFailure        = "Failure"
	AckPartialFailure = "PartialFailure"
)

// Error classifications and severities.
const (
	ClassRequest  = "RequestError"
	ClassSystem   = "SystemError"
	SeverityError = "Error"
	SeverityWarn  = "Warning"
)

// Request is implemented by every outbound call body via RequestBase.
type Request interface {
	Authenticate(token string)
}

// Response is implemented by every inbound call body via ResponseBase.
type Response interface {
	Base() *ResponseBase
}

// Credentials carries the seller's auth token inside the request body.
type Credentials struct {
	EBayAuthToken string `xml:"eBayAuthToken"`
}

// RequestBase holds the fields shared by all Trading API requests.
type RequestBase struct {
	RequesterCredentials *Credentials `xml:"RequesterCredentials,omitempty"`
	ErrorLanguage        string       `xml:"ErrorLanguage,omitempty"`
	WarningLevel         string       `xml:"WarningLevel,omitempty"`
}

// Authenticate sets the auth token and the default error verbosity.
func (b *RequestBase) Authenticate(token string) {
	b.RequesterCredentials = &Credentials{EBayAuthToken: token}
	if b.ErrorLanguage == "" {
		b.ErrorLanguage = "en_US"
	}
	if b.WarningLevel == "" {
		b.WarningLevel = "High"
	}
}

// ErrorParameter is one substitution value of an eBay error message.
type ErrorParameter struct {
	ParamID string `xml:"ParamID,attr"`
	Value   string `xml:"Value"`
}

// ErrorEntry is one element of the Errors list in a response.
type ErrorEntry struct {
	ShortMessage        string           `xml:"ShortMessage"`
	LongMessage         string           `xml:"LongMessage"`
	ErrorCode           string           `xml:"ErrorCode"`
	SeverityCode        string           `xml:"SeverityCode"`
	ErrorClassification string           `xml:"ErrorClassification"`
	ErrorParameters     []ErrorParameter `xml:"ErrorParameters"`
}

// ResponseBase holds the fields shared by all Trading API responses.
type ResponseBase struct {
	Timestamp string       `xml:"Timestamp"`
	Ack       string       `xml:"Ack"`
	Errors    []ErrorEntry `xml:"Errors"`
	Version   string       `xml:"Version"`
	Build     string       `xml:"Build"`
}

// Base returns the shared response fields.
func (r *ResponseBase) Base() *ResponseBase {
	return r
}

// Failed reports whether eBay rejected the call.
func (r *ResponseBase) Failed() bool {
	return r.Ack == AckFailure || r.Ack == AckPartialFailure
}

// Warnings returns the entries with warning severity.
func (r *ResponseBase) Warnings() []ErrorEntry {
	var out []ErrorEntry
	for _, e := range r.Errors {
		if e.SeverityCode == SeverityWarn {
			out = append(out, e)
		}
	}
	return out
}

// Encode renders body as the XML request document for call, e.g. call
// "AddFixedPriceItem" produces an AddFixedPriceItemRequest root element.
func Encode(call string, body any) ([]byte, error) {
	return EncodeNS(Namespace, call+"Request", body)
}

// EncodeNS renders body under a root element with an explicit namespace.
func EncodeNS(ns, root string, body any) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)

	enc := xml.NewEncoder(&buf)
	start := xml.StartElement{Name: xml.Name{Space: ns, Local: root}}
	if err := enc.EncodeElement(body, start); err != nil {
		return nil, fmt.Errorf("encoding %s: %w", root, err)
	}
	if err := enc.Flush(); err != nil {
		return nil, fmt.Errorf("flushing %s: %w", root, err)
	}

	return buf.Bytes(), nil
}

// Decode parses a response document into v.
func Decode(data []byte, v any) error {
	if err := xml.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
