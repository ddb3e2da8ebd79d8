package pki

import (
	"context"
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"fmt"

	"github.com/wolfeidau/certforge/internal/arena"
)

// ECDSASigner signs with an in-process ECDSA key. The digest follows the
// curve: SHA-256 for P-256, SHA-384 for P-384 and SHA-512 for P-521.
type ECDSASigner struct {
	key  *ecdsa.PrivateKey
	algo SignatureAlgorithm
}

var _ Signer = (*ECDSASigner)(nil)

// NewECDSASigner wraps an existing ECDSA key.
func NewECDSASigner(key *ecdsa.PrivateKey) (*ECDSASigner, error) {
	algo, err := ecdsaAlgorithm(key.Curve)
	if err != nil {
		return nil, err
	}
	return &ECDSASigner{key: key, algo: algo}, nil
}

// GenerateECDSASigner creates a signer with a fresh key on curve.
func GenerateECDSASigner(curve elliptic.Curve) (*ECDSASigner, error) {
	if _, err := ecdsaAlgorithm(curve); err != nil {
		return nil, err
	}
	key, err := ecdsa.GenerateKey(curve, rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate ECDSA key: %w", err)
	}
	return NewECDSASigner(key)
}

func ecdsaAlgorithm(curve elliptic.Curve) (SignatureAlgorithm, error) {
	switch curve {
	case elliptic.P256():
		return ECDSAWithSHA256, nil
	case elliptic.P384():
		return ECDSAWithSHA384, nil
	case elliptic.P521():
		return ECDSAWithSHA512, nil
	default:
		return UnknownSignatureAlgorithm, fmt.Errorf("%w: unsupported curve", ErrUnsupportedKey)
	}
}

// Sign returns the DER encoded Ecdsa-Sig-Value over the digest of message.
func (s *ECDSASigner) Sign(ctx context.Context, message []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d, err := digest(s.algo.Hash(), message)
	if err != nil {
		return nil, err
	}
	return ecdsa.SignASN1(rand.Reader, s.key, d)
}

// SignatureAlgorithm returns the identifier of the signer's algorithm.
func (s *ECDSASigner) SignatureAlgorithm(context.Context) (AlgorithmIdentifier, error) {
	return s.algo.Identifier()
}

// SubjectPublicKeyInfo returns the signer's public key, allocated in a.
func (s *ECDSASigner) SubjectPublicKeyInfo(_ context.Context, a *arena.Arena) (SubjectPublicKeyInfo, error) {
	return PublicKeyInfo(a, &s.key.PublicKey)
}

// Algorithm returns the signature algorithm used by the signer.
func (s *ECDSASigner) Algorithm() SignatureAlgorithm {
	return s.algo
}

// PrivateKey returns the in-process private key.
func (s *ECDSASigner) PrivateKey() crypto.Signer {
	return s.key
}
