package pki

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"fmt"
	"strings"

	"github.com/wolfeidau/certforge/internal/arena"
)

// RSAPadding selects the RSA signature scheme.
type RSAPadding int

const (
	PKCS1v15 RSAPadding = iota
	PSS
)

func (p RSAPadding) String() string {
	if p == PSS {
		return "pss"
	}
	return "pkcs1v15"
}

// ParseRSAPadding accepts "pkcs1v15" or "pss".
func ParseRSAPadding(s string) (RSAPadding, error) {
	switch strings.ToLower(s) {
	case "", "pkcs1v15", "pkcs1", "pkcs1-v1_5":
		return PKCS1v15, nil
	case "pss":
		return PSS, nil
	default:
		return PKCS1v15, fmt.Errorf("unknown RSA padding %q", s)
	}
}

// ParseHash accepts "sha256", "sha384" or "sha512". The empty string returns
// zero, meaning the default for the key.
func ParseHash(s string) (crypto.Hash, error) {
	switch strings.ToLower(strings.ReplaceAll(s, "-", "")) {
	case "":
		return 0, nil
	case "sha256":
		return crypto.SHA256, nil
	case "sha384":
		return crypto.SHA384, nil
	case "sha512":
		return crypto.SHA512, nil
	default:
		return 0, fmt.Errorf("unknown hash %q", s)
	}
}

// DefaultHash returns the digest paired with an RSA modulus size: SHA-256 up
// to 2048 bits, SHA-384 up to 3072 bits and SHA-512 above.
func DefaultHash(bits int) crypto.Hash {
	switch {
	case bits <= 2048:
		return crypto.SHA256
	case bits <= 3072:
		return crypto.SHA384
	default:
		return crypto.SHA512
	}
}

// RSASigner signs with an in-process RSA key using PKCS#1 v1.5 or PSS.
type RSASigner struct {
	key     *rsa.PrivateKey
	padding RSAPadding
	algo    SignatureAlgorithm
}

var _ Signer = (*RSASigner)(nil)

// NewRSASigner wraps an existing RSA key. A zero hash selects DefaultHash
// for the key size.
func NewRSASigner(key *rsa.PrivateKey, padding RSAPadding, hash crypto.Hash) (*RSASigner, error) {
	if hash == 0 {
		hash = DefaultHash(key.N.BitLen())
	}
	algo, err := signatureAlgorithmForKey(keyRSA, hash, padding == PSS)
	if err != nil {
		return nil, err
	}
	return &RSASigner{key: key, padding: padding, algo: algo}, nil
}

// GenerateRSASigner creates a signer with a fresh key of the given size.
func GenerateRSASigner(bits int, padding RSAPadding, hash crypto.Hash) (*RSASigner, error) {
	switch bits {
	case 1024, 2048, 3072, 4096:
	default:
		return nil, fmt.Errorf("%w: RSA key size %d", ErrUnsupportedKey, bits)
	}
	key, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, fmt.Errorf("failed to generate RSA key: %w", err)
	}
	return NewRSASigner(key, padding, hash)
}

// Sign hashes message and signs it with PKCS#1 v1.5 or PSS padding.
func (s *RSASigner) Sign(ctx context.Context, message []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	hash := s.algo.Hash()
	d, err := digest(hash, message)
	if err != nil {
		return nil, err
	}
	if s.padding == PSS {
		return rsa.SignPSS(rand.Reader, s.key, hash, d, &rsa.PSSOptions{
			SaltLength: rsa.PSSSaltLengthEqualsHash,
			Hash:       hash,
		})
	}
	return rsa.SignPKCS1v15(rand.Reader, s.key, hash, d)
}

// SignatureAlgorithm returns the identifier of the signer's algorithm.
func (s *RSASigner) SignatureAlgorithm(context.Context) (AlgorithmIdentifier, error) {
	return s.algo.Identifier()
}

// SubjectPublicKeyInfo returns the signer's public key, allocated in a.
func (s *RSASigner) SubjectPublicKeyInfo(_ context.Context, a *arena.Arena) (SubjectPublicKeyInfo, error) {
	return PublicKeyInfo(a, &s.key.PublicKey)
}

// Algorithm returns the signature algorithm used by the signer.
func (s *RSASigner) Algorithm() SignatureAlgorithm {
	return s.algo
}

// PrivateKey returns the in-process private key.
func (s *RSASigner) PrivateKey() crypto.Signer {
	return s.key
}
