package pki

import (
	"context"
	"crypto"
	"crypto/ecdsa"
	"crypto/rsa"
	"crypto/x509"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/kms/types"
	"github.com/wolfeidau/certforge/internal/arena"
)

// KMSAPI is the subset of the KMS client used by KMSSigner.
type KMSAPI interface {
	GetPublicKey(ctx context.Context, params *kms.GetPublicKeyInput, optFns ...func(*kms.Options)) (*kms.GetPublicKeyOutput, error)
	Sign(ctx context.Context, params *kms.SignInput, optFns ...func(*kms.Options)) (*kms.SignOutput, error)
}

var _ KMSAPI = (*kms.Client)(nil)

// KMSOptions select the signature scheme for RSA keys held in KMS. They are
// ignored for ECDSA keys.
type KMSOptions struct {
	Padding RSAPadding
	Hash    crypto.Hash
}

// KMSSigner implements Signer with an asymmetric key held in AWS KMS.
// The private key never leaves KMS; only digests are sent for signing.
type KMSSigner struct {
	client    KMSAPI
	keyID     string
	algo      SignatureAlgorithm
	spec      types.SigningAlgorithmSpec
	publicKey []byte
}

var _ Signer = (*KMSSigner)(nil)

// NewKMSSigner looks up the public key of kmsKeyID and selects the matching
// signing algorithm. The kmsKeyID can be a key ID, key ARN, alias name, or
// alias ARN.
func NewKMSSigner(ctx context.Context, client KMSAPI, kmsKeyID string, opts KMSOptions) (*KMSSigner, error) {
	pubKeyOutput, err := client.GetPublicKey(ctx, &kms.GetPublicKeyInput{
		KeyId: aws.String(kmsKeyID),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get public key from KMS: %w", err)
	}

	kmsPublicKey, err := x509.ParsePKIXPublicKey(pubKeyOutput.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("failed to parse KMS public key: %w", err)
	}

	var algo SignatureAlgorithm
	switch pub := kmsPublicKey.(type) {
	case *ecdsa.PublicKey:
		algo, err = ecdsaAlgorithm(pub.Curve)
	case *rsa.PublicKey:
		hash := opts.Hash
		if hash == 0 {
			hash = DefaultHash(pub.N.BitLen())
		}
		algo, err = signatureAlgorithmForKey(keyRSA, hash, opts.Padding == PSS)
	default:
		err = fmt.Errorf("%w: KMS key type %T", ErrUnsupportedKey, kmsPublicKey)
	}
	if err != nil {
		return nil, err
	}

	spec, err := kmsSigningAlgorithm(algo)
	if err != nil {
		return nil, err
	}

	return &KMSSigner{
		client:    client,
		keyID:     kmsKeyID,
		algo:      algo,
		spec:      spec,
		publicKey: pubKeyOutput.PublicKey,
	}, nil
}

func kmsSigningAlgorithm(algo SignatureAlgorithm) (types.SigningAlgorithmSpec, error) {
	switch algo {
	case ECDSAWithSHA256:
		return types.SigningAlgorithmSpecEcdsaSha256, nil
	case ECDSAWithSHA384:
		return types.SigningAlgorithmSpecEcdsaSha384, nil
	case ECDSAWithSHA512:
		return types.SigningAlgorithmSpecEcdsaSha512, nil
	case SHA256WithRSA:
		return types.SigningAlgorithmSpecRsassaPkcs1V15Sha256, nil
	case SHA384WithRSA:
		return types.SigningAlgorithmSpecRsassaPkcs1V15Sha384, nil
	case SHA512WithRSA:
		return types.SigningAlgorithmSpecRsassaPkcs1V15Sha512, nil
	case SHA256WithRSAPSS:
		return types.SigningAlgorithmSpecRsassaPssSha256, nil
	case SHA384WithRSAPSS:
		return types.SigningAlgorithmSpecRsassaPssSha384, nil
	case SHA512WithRSAPSS:
		return types.SigningAlgorithmSpecRsassaPssSha512, nil
	default:
		return "", fmt.Errorf("%w: %s has no KMS signing algorithm", ErrUnsupportedAlgorithm, algo)
	}
}

// Sign hashes message locally and asks KMS to sign the digest. KMS returns
// ECDSA signatures already DER encoded.
func (s *KMSSigner) Sign(ctx context.Context, message []byte) ([]byte, error) {
	d, err := digest(s.algo.Hash(), message)
	if err != nil {
		return nil, err
	}

	signOutput, err := s.client.Sign(ctx, &kms.SignInput{
		KeyId:            aws.String(s.keyID),
		Message:          d,
		MessageType:      types.MessageTypeDigest,
		SigningAlgorithm: s.spec,
	})
	if err != nil {
		return nil, fmt.Errorf("KMS sign operation failed: %w", err)
	}

	return signOutput.Signature, nil
}

// SignatureAlgorithm returns the identifier of the signer's algorithm.
func (s *KMSSigner) SignatureAlgorithm(context.Context) (AlgorithmIdentifier, error) {
	return s.algo.Identifier()
}

// SubjectPublicKeyInfo returns the signer's public key, allocated in a.
func (s *KMSSigner) SubjectPublicKeyInfo(_ context.Context, a *arena.Arena) (SubjectPublicKeyInfo, error) {
	return ParseSubjectPublicKeyInfo(a, s.publicKey)
}

// Algorithm returns the signature algorithm used by the signer.
func (s *KMSSigner) Algorithm() SignatureAlgorithm {
	return s.algo
}

// KeyID returns the KMS key the signer uses.
func (s *KMSSigner) KeyID() string {
	return s.keyID
}
