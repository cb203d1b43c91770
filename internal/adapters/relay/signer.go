package relay

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// Signer supplies the cryptographic identity for outbound events. Key
// management and the signature scheme live behind this interface; the bus
// only requires that Sign fills in PubKey, ID, and Sig.
type Signer interface {
	// PubKey returns the hex-encoded public identity.
	PubKey() string

	// Sign computes the event id and signature in place.
	Sign(ctx context.Context, e *Event) error
}

// digestSigner derives a stable event id from the canonical serialization
// and authenticates it with an HMAC over the secret. It stands in for a
// schnorr-capable signer in hosts and tests that do not need verifiable
// signatures.
type digestSigner struct {
	secret []byte
	pubkey string
}

// NewDigestSigner creates a Signer from secret key material.
func NewDigestSigner(secret []byte) Signer {
	sum := sha256.Sum256(secret)
	return &digestSigner{
		secret: secret,
		pubkey: hex.EncodeToString(sum[:]),
	}
}

func (s *digestSigner) PubKey() string { return s.pubkey }

func (s *digestSigner) Sign(_ context.Context, e *Event) error {
	e.PubKey = s.pubkey

	// Canonical serialization: [0, pubkey, created_at, kind, tags, content].
	canonical, err := json.Marshal([]interface{}{0, e.PubKey, e.CreatedAt, e.Kind, e.Tags, e.Content})
	if err != nil {
		return err
	}
	id := sha256.Sum256(canonical)
	e.ID = hex.EncodeToString(id[:])

	mac := hmac.New(sha256.New, s.secret)
	mac.Write(id[:])
	e.Sig = hex.EncodeToString(mac.Sum(nil))
	return nil
}
