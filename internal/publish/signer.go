package publish

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"time"
)

const minSigningKeyLength = 16

var (
	// ErrSigningKeyTooShort indicates a signing secret too weak to use.
	ErrSigningKeyTooShort = errors.New("link signing key must be at least 16 bytes")
	// ErrLinkExpired indicates a correctly signed link past its expiry.
	ErrLinkExpired = errors.New("link has expired")
	// ErrLinkInvalid indicates a malformed or forged link.
	ErrLinkInvalid = errors.New("link signature is invalid")
)

// LinkSigner issues and checks time-limited HMAC signatures for object keys.
type LinkSigner struct {
	secret []byte
	now    func() time.Time
}

// NewLinkSigner creates a signer from a shared secret.
func NewLinkSigner(secret []byte) (*LinkSigner, error) {
	if len(secret) < minSigningKeyLength {
		return nil, ErrSigningKeyTooShort
	}

	return &LinkSigner{secret: secret, now: time.Now}, nil
}

// NewEphemeralLinkSigner creates a signer with a random secret. Links it
// issues stop verifying when the process exits.
func NewEphemeralLinkSigner() (*LinkSigner, error) {
	secret := make([]byte, sha256.Size)

	_, err := rand.Read(secret)
	if err != nil {
		return nil, fmt.Errorf("generate link signing key: %w", err)
	}

	return NewLinkSigner(secret)
}

// WithClock returns a copy of the signer that reads time from now.
func (s *LinkSigner) WithClock(now func() time.Time) *LinkSigner {
	return &LinkSigner{secret: s.secret, now: now}
}

// Sign returns the expiry (unix seconds) and signature granting access to key
// for the given duration.
func (s *LinkSigner) Sign(key string, expiry time.Duration) (expires, signature string) {
	expires = strconv.FormatInt(s.now().Add(expiry).Unix(), 10)

	return expires, s.mac(key, expires)
}

// Verify checks a signature produced by Sign.
func (s *LinkSigner) Verify(key, expires, signature string) error {
	expiresAt, err := strconv.ParseInt(expires, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: bad expiry", ErrLinkInvalid)
	}

	if !hmac.Equal([]byte(signature), []byte(s.mac(key, expires))) {
		return ErrLinkInvalid
	}

	if s.now().Unix() > expiresAt {
		return ErrLinkExpired
	}

	return nil
}

func (s *LinkSigner) mac(key, expires string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(key))
	mac.Write([]byte{'\n'})
	mac.Write([]byte(expires))

	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
