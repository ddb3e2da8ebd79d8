package pki

import (
	"context"
	"crypto"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/certforge/internal/arena"
)

func mustName(t *testing.T, a *arena.Arena, pairs ...Pair) Name {
	t.Helper()
	n, err := NewName(a, pairs)
	require.NoError(t, err)
	return n
}

func mustSPKI(t *testing.T, a *arena.Arena, s Signer) SubjectPublicKeyInfo {
	t.Helper()
	spki, err := s.SubjectPublicKeyInfo(context.Background(), a)
	require.NoError(t, err)
	return spki
}

func mustECDSA(t *testing.T, curve elliptic.Curve) *ECDSASigner {
	t.Helper()
	s, err := GenerateECDSASigner(curve)
	require.NoError(t, err)
	return s
}

func mustParse(t *testing.T, cert *Certificate) *x509.Certificate {
	t.Helper()
	parsed, err := cert.X509()
	require.NoError(t, err)
	return parsed
}

func defaultValidity() Validity {
	now := time.Now().UTC().Truncate(time.Second)
	return Validity{NotBefore: now.Add(-time.Hour), NotAfter: now.AddDate(1, 0, 0)}
}

// selfSigned issues a CA certificate for s.
func selfSigned(t *testing.T, a *arena.Arena, s Signer, pairs ...Pair) *Certificate {
	t.Helper()
	pathLen := uint8(1)
	cert, err := Issue(context.Background(), a, s, CertificateRequest{
		Subject:    mustName(t, a, pairs...),
		Validity:   defaultValidity(),
		SubjectKey: mustSPKI(t, a, s),
		IsCA:       true,
		MaxPathLen: &pathLen,
		KeyUsage:   []KeyUsage{KeyUsageCertSign, KeyUsageCRLSign, KeyUsageDigitalSignature},
	})
	require.NoError(t, err)
	return cert
}

// errSigner fails every Sign call with err.
type errSigner struct {
	Signer
	err error
}

func (s errSigner) Sign(context.Context, []byte) ([]byte, error) {
	return nil, s.err
}

// testRSAKey is shared so the suite generates a single 2048 bit key.
var testRSAKey = sync.OnceValue(func() *rsa.PrivateKey {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		panic(err)
	}
	return key
})

func rsaSigner(padding RSAPadding, hash crypto.Hash) func(t *testing.T) Signer {
	return func(t *testing.T) Signer {
		t.Helper()
		s, err := NewRSASigner(testRSAKey(), padding, hash)
		require.NoError(t, err)
		return s
	}
}
