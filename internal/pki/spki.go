package pki

import (
	"crypto"
	"crypto/sha256"
	"crypto/x509"
	"fmt"

	"github.com/mr-tron/base58"
	"github.com/wolfeidau/certforge/internal/arena"
	"golang.org/x/crypto/cryptobyte"
	cryptobyte_asn1 "golang.org/x/crypto/cryptobyte/asn1"
)

// SubjectPublicKeyInfo is a decoded SPKI. Raw is the complete DER encoding
// and PublicKey is the content of its subjectPublicKey BIT STRING; both refer
// to arena storage.
type SubjectPublicKeyInfo struct {
	Raw       []byte
	Algorithm AlgorithmIdentifier
	PublicKey []byte
}

// ParseSubjectPublicKeyInfo copies der into the arena and decodes it.
func ParseSubjectPublicKeyInfo(a *arena.Arena, der []byte) (SubjectPublicKeyInfo, error) {
	raw := a.Alloc(der)

	input := cryptobyte.String(raw)
	var spki, algorithm cryptobyte.String
	if !input.ReadASN1(&spki, cryptobyte_asn1.SEQUENCE) || !input.Empty() {
		return SubjectPublicKeyInfo{}, fmt.Errorf("%w: malformed subject public key info", ErrUnsupportedKey)
	}
	if !spki.ReadASN1(&algorithm, cryptobyte_asn1.SEQUENCE) {
		return SubjectPublicKeyInfo{}, fmt.Errorf("%w: malformed public key algorithm", ErrUnsupportedKey)
	}

	var ai AlgorithmIdentifier
	if !algorithm.ReadASN1ObjectIdentifier(&ai.Algorithm) {
		return SubjectPublicKeyInfo{}, fmt.Errorf("%w: malformed public key algorithm identifier", ErrUnsupportedKey)
	}
	if !algorithm.Empty() {
		ai.Parameters = []byte(algorithm)
	}

	var publicKey []byte
	if !spki.ReadASN1BitStringAsBytes(&publicKey) || !spki.Empty() {
		return SubjectPublicKeyInfo{}, fmt.Errorf("%w: malformed subject public key", ErrUnsupportedKey)
	}

	return SubjectPublicKeyInfo{Raw: raw, Algorithm: ai, PublicKey: publicKey}, nil
}

// PublicKeyInfo encodes pub as an SPKI in the arena.
func PublicKeyInfo(a *arena.Arena, pub crypto.PublicKey) (SubjectPublicKeyInfo, error) {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return SubjectPublicKeyInfo{}, fmt.Errorf("%w: %v", ErrUnsupportedKey, err)
	}
	return ParseSubjectPublicKeyInfo(a, der)
}

// KeyIdentifier returns the 20 byte SHA-1 of the public key bits.
func (s SubjectPublicKeyInfo) KeyIdentifier() []byte {
	return keyIdentifier(s.PublicKey)
}

// Fingerprint returns the base58 encoded SHA-256 of the DER encoding.
func (s SubjectPublicKeyInfo) Fingerprint() string {
	sum := sha256.Sum256(s.Raw)
	return base58.Encode(sum[:])
}

func (s SubjectPublicKeyInfo) marshal(b *cryptobyte.Builder) {
	b.AddBytes(s.Raw)
}
