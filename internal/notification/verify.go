package notification

import (
	"crypto/md5" //nolint:gosec // eBay's notification signature is defined over MD5.
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"time"
)

// DefaultWindow is how old a notification may be before it is rejected.
const DefaultWindow = 10 * time.Minute

// Credentials are the application keys the signature is derived from.
type Credentials struct {
	DevID  string
	AppID  string
	CertID string
}

// Sign returns the signature eBay attaches to a notification sent at the
// raw timestamp.
func Sign(rawTimestamp string, c Credentials) string {
	sum := md5.Sum([]byte(rawTimestamp + c.DevID + c.AppID + c.CertID)) //nolint:gosec // see import
	return base64.StdEncoding.EncodeToString(sum[:])
}

// Verify checks the signature of env and that it was sent within window of
// now. A stale notification is rejected even when its signature matches.
func Verify(env *Envelope, c Credentials, now time.Time, window time.Duration) error {
	want := Sign(env.RawTimestamp, c)
	if subtle.ConstantTimeCompare([]byte(want), []byte(env.Signature)) != 1 {
		return ErrSignature
	}

	if window <= 0 {
		window = DefaultWindow
	}
	if age := now.Sub(env.Timestamp); age > window || age < -window {
		return fmt.Errorf("%w: sent %s ago", ErrStale, age.Truncate(time.Second))
	}
	return nil
}
