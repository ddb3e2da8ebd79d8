package commands

import (
	"bytes"
	"context"
	"crypto"
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/kms/types"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/certforge/internal/pki"
)

var testNow = time.Date(2026, time.March, 14, 9, 30, 0, 0, time.UTC)

func newTestGlobals() (*Globals, *bytes.Buffer) {
	out := &bytes.Buffer{}
	return &Globals{
		Version: "test",
		Clock:   clockwork.NewFakeClockAt(testNow),
		Out:     out,
	}, out
}

func readCertificate(t *testing.T, path string) *x509.Certificate {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return decodeCertificate(t, data)
}

func decodeCertificate(t *testing.T, data []byte) *x509.Certificate {
	t.Helper()
	block, _ := pem.Decode(data)
	require.NotNil(t, block)
	require.Equal(t, "CERTIFICATE", block.Type)
	cert, err := x509.ParseCertificate(block.Bytes)
	require.NoError(t, err)
	return cert
}

// newTestCA writes a self-signed P-384 CA certificate and key into dir.
func newTestCA(t *testing.T, dir string) (certPath, keyPath string) {
	t.Helper()
	certPath = filepath.Join(dir, "ca.pem")
	keyPath = filepath.Join(dir, "ca.key")

	globals, _ := newTestGlobals()
	cmd := &SelfSignECDSACmd{
		CertificateFlags: CertificateFlags{
			Name:           "C=US, O=Acme, CN=Acme Root",
			Output:         certPath,
			ExtensionFlags: ExtensionFlags{CA: true, CAPathlen: 0},
		},
		KeyFlags: KeyFlags{NewKey: keyPath},
		Curve:    "p384",
	}
	require.NoError(t, cmd.Run(context.Background(), globals))
	return certPath, keyPath
}

// fakeKMS answers GetPublicKey and ECDSA Sign calls with a local key.
type fakeKMS struct {
	key      crypto.Signer
	failures int
	calls    int
}

func (f *fakeKMS) GetPublicKey(_ context.Context, params *kms.GetPublicKeyInput, _ ...func(*kms.Options)) (*kms.GetPublicKeyOutput, error) {
	der, err := x509.MarshalPKIXPublicKey(f.key.Public())
	if err != nil {
		return nil, err
	}
	return &kms.GetPublicKeyOutput{KeyId: params.KeyId, PublicKey: der}, nil
}

func (f *fakeKMS) Sign(_ context.Context, params *kms.SignInput, _ ...func(*kms.Options)) (*kms.SignOutput, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, errors.New("throttled")
	}
	switch params.SigningAlgorithm {
	case types.SigningAlgorithmSpecEcdsaSha256, types.SigningAlgorithmSpecEcdsaSha384:
	default:
		return nil, errors.New("unexpected signing algorithm " + string(params.SigningAlgorithm))
	}
	sig, err := ecdsa.SignASN1(rand.Reader, f.key.(*ecdsa.PrivateKey), params.Message)
	if err != nil {
		return nil, err
	}
	return &kms.SignOutput{KeyId: params.KeyId, Signature: sig, SigningAlgorithm: params.SigningAlgorithm}, nil
}

func useFakeKMS(t *testing.T, fake *fakeKMS) {
	t.Helper()
	orig := kmsClientFactory
	kmsClientFactory = func(context.Context, string, string) (pki.KMSAPI, error) {
		return fake, nil
	}
	t.Cleanup(func() { kmsClientFactory = orig })
}
