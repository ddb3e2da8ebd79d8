package pki

import (
	"context"
	"crypto"

	"github.com/wolfeidau/certforge/internal/arena"
)

// Signer produces signatures over encoded certificates. Implementations may
// hold the key locally or call out to a remote key service; every method may
// block and must honour ctx cancellation.
type Signer interface {
	// Sign returns the signature over message using the algorithm reported by
	// SignatureAlgorithm. The message is hashed by the signer.
	Sign(ctx context.Context, message []byte) ([]byte, error)

	// SignatureAlgorithm returns the identifier written into the certificate.
	SignatureAlgorithm(ctx context.Context) (AlgorithmIdentifier, error)

	// SubjectPublicKeyInfo returns the public key of the signer, allocated in a.
	SubjectPublicKeyInfo(ctx context.Context, a *arena.Arena) (SubjectPublicKeyInfo, error)
}

// KeyHolder is implemented by signers that hold their private key in process.
type KeyHolder interface {
	PrivateKey() crypto.Signer
}
