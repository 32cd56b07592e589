package ebay

import (
	"errors"
	"fmt"
	"strings"

	"github.com/donaldgifford/ebay-connector/internal/ebay/wire"
	domain "github.com/donaldgifford/ebay-connector/pkg/types"
)

// CodeAlreadyClosed is returned by EndFixedPriceItem when the listing has
// already ended on eBay.
const CodeAlreadyClosed = "1047"

// TransportError is a failure that did not produce a usable answer from eBay:
// network errors, timeouts, HTTP 5xx or an all-SystemError failure. It is
// safe to retry.
type TransportError struct {
	Call    string
	Status  int
	Details []domain.StatusDetail
	Err     error
}

func (e *TransportError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("eBay %s transport error: %v", e.Call, e.Err)
	case e.Status != 0:
		return fmt.Sprintf("eBay %s transport error: status %d", e.Call, e.Status)
	default:
		return fmt.Sprintf("eBay %s system error: %s", e.Call, joinMessages(e.Details))
	}
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Retryable marks transport failures for the task runner.
func (e *TransportError) Retryable() bool {
	return true
}

// ApplicationError is a business rejection by eBay. Details carries the eBay
// error entries verbatim.
type ApplicationError struct {
	Call    string
	Details []domain.StatusDetail
}

func (e *ApplicationError) Error() string {
	return fmt.Sprintf("eBay %s failed: %s", e.Call, joinMessages(e.Details))
}

// HasCode reports whether any error entry carries code.
func (e *ApplicationError) HasCode(code string) bool {
	for _, d := range e.Details {
		if d.Code == code {
			return true
		}
	}
	return false
}

// OnlyCodes reports whether every error-severity entry carries one of codes.
func (e *ApplicationError) OnlyCodes(codes ...string) bool {
	found := false
	for _, d := range e.Details {
		if d.Severity != wire.SeverityError {
			continue
		}
		found = true
		ok := false
		for _, c := range codes {
			if d.Code == c {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	return found
}

// IsTransport reports whether err is, or wraps, a TransportError.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// AsApplication unwraps an ApplicationError.
func AsApplication(err error) (*ApplicationError, bool) {
	var ae *ApplicationError
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

// StatusDetails converts eBay error entries into status details.
func StatusDetails(entries []wire.ErrorEntry) []domain.StatusDetail {
	out := make([]domain.StatusDetail, 0, len(entries))
	for _, e := range entries {
		out = append(out, domain.StatusDetail{
			Code:           e.ErrorCode,
			Classification: e.ErrorClassification,
			Severity:       e.SeverityCode,
			ShortMessage:   e.ShortMessage,
			LongMessage:    e.LongMessage,
		})
	}
	return out
}

// classify turns a failed response into a TransportError when every
// error-severity entry is a SystemError, and an ApplicationError otherwise.
func classify(call string, base *wire.ResponseBase) error {
	details := StatusDetails(base.Errors)

	system := false
	for _, e := range base.Errors {
		if e.SeverityCode != wire.SeverityError {
			continue
		}
		if e.ErrorClassification != wire.ClassSystem {
			return &ApplicationError{Call: call, Details: details}
		}
		system = true
	}
	if system {
		return &TransportError{Call: call, Details: details}
	}
	return &ApplicationError{Call: call, Details: details}
}

func joinMessages(details []domain.StatusDetail) string {
	msgs := make([]string, 0, len(details))
	for _, d := range details {
		if d.Severity == wire.SeverityWarn {
			continue
		}
		msgs = append(msgs, fmt.Sprintf("[%s] %s", d.Code, d.ShortMessage))
	}
	if len(msgs) == 0 {
		return "no error details"
	}
	return strings.Join(msgs, "; ")
}
