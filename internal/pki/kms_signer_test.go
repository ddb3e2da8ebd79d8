package pki

import (
	"context"
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/kms/types"
	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/certforge/internal/arena"
)

// fakeKMS signs digests with a local key the way KMS does.
type fakeKMS struct {
	key     crypto.Signer
	signErr error
	inputs  []*kms.SignInput
}

func (f *fakeKMS) GetPublicKey(_ context.Context, params *kms.GetPublicKeyInput, _ ...func(*kms.Options)) (*kms.GetPublicKeyOutput, error) {
	der, err := x509.MarshalPKIXPublicKey(f.key.Public())
	if err != nil {
		return nil, err
	}
	return &kms.GetPublicKeyOutput{KeyId: params.KeyId, PublicKey: der}, nil
}

func (f *fakeKMS) Sign(_ context.Context, params *kms.SignInput, _ ...func(*kms.Options)) (*kms.SignOutput, error) {
	f.inputs = append(f.inputs, params)
	if f.signErr != nil {
		return nil, f.signErr
	}

	var (
		sig []byte
		err error
	)
	switch params.SigningAlgorithm {
	case types.SigningAlgorithmSpecEcdsaSha256, types.SigningAlgorithmSpecEcdsaSha384:
		sig, err = ecdsa.SignASN1(rand.Reader, f.key.(*ecdsa.PrivateKey), params.Message)
	case types.SigningAlgorithmSpecRsassaPssSha256:
		sig, err = rsa.SignPSS(rand.Reader, f.key.(*rsa.PrivateKey), crypto.SHA256, params.Message,
			&rsa.PSSOptions{SaltLength: rsa.PSSSaltLengthEqualsHash})
	case types.SigningAlgorithmSpecRsassaPkcs1V15Sha512:
		sig, err = rsa.SignPKCS1v15(rand.Reader, f.key.(*rsa.PrivateKey), crypto.SHA512, params.Message)
	default:
		return nil, errors.New("unexpected signing algorithm " + string(params.SigningAlgorithm))
	}
	if err != nil {
		return nil, err
	}
	return &kms.SignOutput{KeyId: params.KeyId, Signature: sig, SigningAlgorithm: params.SigningAlgorithm}, nil
}

func TestKMSSigner(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name     string
		key      crypto.Signer
		opts     KMSOptions
		wantAlgo SignatureAlgorithm
		wantSpec types.SigningAlgorithmSpec
		wantX509 x509.SignatureAlgorithm
	}{
		{
			name:     "ecdsa p384",
			key:      mustECDSA(t, elliptic.P384()).PrivateKey(),
			wantAlgo: ECDSAWithSHA384,
			wantSpec: types.SigningAlgorithmSpecEcdsaSha384,
			wantX509: x509.ECDSAWithSHA384,
		},
		{
			name:     "rsa pss default hash",
			key:      testRSAKey(),
			opts:     KMSOptions{Padding: PSS},
			wantAlgo: SHA256WithRSAPSS,
			wantSpec: types.SigningAlgorithmSpecRsassaPssSha256,
			wantX509: x509.SHA256WithRSAPSS,
		},
		{
			name:     "rsa pkcs1v15 sha512",
			key:      testRSAKey(),
			opts:     KMSOptions{Padding: PKCS1v15, Hash: crypto.SHA512},
			wantAlgo: SHA512WithRSA,
			wantSpec: types.SigningAlgorithmSpecRsassaPkcs1V15Sha512,
			wantX509: x509.SHA512WithRSA,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := arena.New()
			client := &fakeKMS{key: tt.key}

			signer, err := NewKMSSigner(ctx, client, "alias/certforge-test", tt.opts)
			require.NoError(t, err)
			require.Equal(t, tt.wantAlgo, signer.Algorithm())
			require.Equal(t, "alias/certforge-test", signer.KeyID())

			cert := selfSigned(t, a, signer, Pair{"CN", "kms root"})
			parsed := mustParse(t, cert)
			require.Equal(t, tt.wantX509, parsed.SignatureAlgorithm)
			require.NoError(t, parsed.CheckSignatureFrom(parsed))

			require.Len(t, client.inputs, 1)
			require.Equal(t, types.MessageTypeDigest, client.inputs[0].MessageType)
			require.Equal(t, tt.wantSpec, client.inputs[0].SigningAlgorithm)
			require.Equal(t, "alias/certforge-test", aws.ToString(client.inputs[0].KeyId))
			require.Len(t, client.inputs[0].Message, tt.wantAlgo.Hash().Size())
		})
	}

	t.Run("sign failure is a signing error", func(t *testing.T) {
		a := arena.New()
		cause := errors.New("throttled")
		client := &fakeKMS{key: mustECDSA(t, elliptic.P256()).PrivateKey(), signErr: cause}

		signer, err := NewKMSSigner(ctx, client, "key", KMSOptions{})
		require.NoError(t, err)

		tbs, err := NewTBSCertificate(ctx, a, signer, CertificateRequest{
			Subject:    mustName(t, a, Pair{"CN", "kms"}),
			Validity:   defaultValidity(),
			SubjectKey: mustSPKI(t, a, signer),
		})
		require.NoError(t, err)

		_, err = tbs.Sign(ctx, a, signer)
		require.True(t, IsSigningError(err))
		require.ErrorIs(t, err, cause)
	})
}
