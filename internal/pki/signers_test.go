package pki

import (
	"context"
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/sha512"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/certforge/internal/arena"
)

func TestDefaultHash(t *testing.T) {
	tests := []struct {
		bits int
		want crypto.Hash
	}{
		{1024, crypto.SHA256},
		{2048, crypto.SHA256},
		{3072, crypto.SHA384},
		{4096, crypto.SHA512},
	}

	for _, tt := range tests {
		require.Equal(t, tt.want, DefaultHash(tt.bits), "bits %d", tt.bits)
	}
}

func TestECDSASigner(t *testing.T) {
	ctx := context.Background()
	message := []byte("to be signed")

	t.Run("p256 signs sha256 digest", func(t *testing.T) {
		s := mustECDSA(t, elliptic.P256())
		require.Equal(t, ECDSAWithSHA256, s.Algorithm())

		sig, err := s.Sign(ctx, message)
		require.NoError(t, err)

		digest := sha256.Sum256(message)
		pub := s.PrivateKey().Public().(*ecdsa.PublicKey)
		require.True(t, ecdsa.VerifyASN1(pub, digest[:], sig))
	})

	t.Run("p384 signs sha384 digest", func(t *testing.T) {
		s := mustECDSA(t, elliptic.P384())
		require.Equal(t, ECDSAWithSHA384, s.Algorithm())

		sig, err := s.Sign(ctx, message)
		require.NoError(t, err)

		digest := sha512.Sum384(message)
		pub := s.PrivateKey().Public().(*ecdsa.PublicKey)
		require.True(t, ecdsa.VerifyASN1(pub, digest[:], sig))
	})

	t.Run("unsupported curve", func(t *testing.T) {
		_, err := GenerateECDSASigner(elliptic.P224())
		require.ErrorIs(t, err, ErrUnsupportedKey)
	})

	t.Run("public key info", func(t *testing.T) {
		a := arena.New()
		s := mustECDSA(t, elliptic.P256())
		spki := mustSPKI(t, a, s)

		require.Equal(t, "1.2.840.10045.2.1", spki.Algorithm.Algorithm.String())
		require.Len(t, spki.PublicKey, 65)
		require.Len(t, spki.KeyIdentifier(), 20)
	})
}

func TestRSASigner(t *testing.T) {
	ctx := context.Background()
	message := []byte("to be signed")
	key := testRSAKey()

	t.Run("default hash for key size", func(t *testing.T) {
		s, err := NewRSASigner(key, PKCS1v15, 0)
		require.NoError(t, err)
		require.Equal(t, SHA256WithRSA, s.Algorithm())
	})

	t.Run("pkcs1v15 verifies", func(t *testing.T) {
		s, err := NewRSASigner(key, PKCS1v15, crypto.SHA512)
		require.NoError(t, err)

		sig, err := s.Sign(ctx, message)
		require.NoError(t, err)

		digest := sha512.Sum512(message)
		require.NoError(t, rsa.VerifyPKCS1v15(&key.PublicKey, crypto.SHA512, digest[:], sig))
	})

	t.Run("pss uses hash length salt", func(t *testing.T) {
		s, err := NewRSASigner(key, PSS, crypto.SHA384)
		require.NoError(t, err)
		require.Equal(t, SHA384WithRSAPSS, s.Algorithm())

		sig, err := s.Sign(ctx, message)
		require.NoError(t, err)

		digest := sha512.Sum384(message)
		require.NoError(t, rsa.VerifyPSS(&key.PublicKey, crypto.SHA384, digest[:], sig, &rsa.PSSOptions{
			SaltLength: crypto.SHA384.Size(),
		}))
	})

	t.Run("unsupported hash", func(t *testing.T) {
		_, err := NewRSASigner(key, PKCS1v15, crypto.SHA1)
		require.ErrorIs(t, err, ErrUnsupportedAlgorithm)
	})

	t.Run("unsupported key size", func(t *testing.T) {
		_, err := GenerateRSASigner(1536, PKCS1v15, 0)
		require.ErrorIs(t, err, ErrUnsupportedKey)
	})

	t.Run("cancelled context", func(t *testing.T) {
		s, err := NewRSASigner(key, PSS, 0)
		require.NoError(t, err)

		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err = s.Sign(cctx, message)
		require.ErrorIs(t, err, context.Canceled)
	})
}

func TestParseOptions(t *testing.T) {
	padding, err := ParseRSAPadding("PSS")
	require.NoError(t, err)
	require.Equal(t, PSS, padding)

	padding, err = ParseRSAPadding("")
	require.NoError(t, err)
	require.Equal(t, PKCS1v15, padding)

	_, err = ParseRSAPadding("oaep")
	require.Error(t, err)

	hash, err := ParseHash("sha-384")
	require.NoError(t, err)
	require.Equal(t, crypto.SHA384, hash)

	hash, err = ParseHash("")
	require.NoError(t, err)
	require.Zero(t, hash)

	_, err = ParseHash("md5")
	require.Error(t, err)
}
