package ingress

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"fmt"
	"time"

	"github.com/relaycast/relaycast-go/common"
)

// Sign returns the hex-encoded HMAC-SHA256 of the payload
func Sign(secret string, payload []byte) string {
	digest := hmac.New(sha256.New, []byte(secret))
	digest.Write(payload) // nolint:errcheck

	return fmt.Sprintf("%x", digest.Sum(nil))
}

// VerifySignature checks the hex-encoded signature of the raw payload in constant time
func VerifySignature(secret string, payload []byte, signature string) bool {
	actual := []byte(Sign(secret, payload))
	digest := []byte(signature)

	return subtle.ConstantTimeEq(int32(len(actual)), int32(len(digest))) == 1 &&
		subtle.ConstantTimeCompare(actual, digest) == 1
}

// VerifyTimestamp checks that the timestamp (ms) is within tolerance of now in either direction.
// The bounds are inclusive.
func VerifyTimestamp(ts int64, now time.Time, tolerance time.Duration) error {
	if ts <= 0 {
		return common.ErrValidation.New("timestamp is required")
	}

	diff := now.Sub(time.UnixMilli(ts))

	if diff < 0 {
		diff = -diff
	}

	if diff > tolerance {
		return common.ErrValidation.New("timestamp is outside of the allowed %ds window", int(tolerance.Seconds()))
	}

	return nil
}
