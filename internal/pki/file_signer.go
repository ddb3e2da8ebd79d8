package pki

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
)

// SignerOptions select the scheme used when an RSA key is loaded. They are
// ignored for ECDSA keys.
type SignerOptions struct {
	Padding RSAPadding
	Hash    crypto.Hash
}

// NewSigner wraps an in-process private key.
func NewSigner(key crypto.Signer, opts SignerOptions) (Signer, error) {
	switch k := key.(type) {
	case *ecdsa.PrivateKey:
		return NewECDSASigner(k)
	case *rsa.PrivateKey:
		return NewRSASigner(k, opts.Padding, opts.Hash)
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedKey, key)
	}
}

// LoadSigner reads a private key file and wraps it in a Signer.
func LoadSigner(path string, opts SignerOptions) (Signer, error) {
	key, err := LoadPrivateKey(path)
	if err != nil {
		return nil, err
	}
	return NewSigner(key, opts)
}

// LoadPrivateKey reads a PEM or DER private key in PKCS#8, PKCS#1 or SEC1 form.
func LoadPrivateKey(path string) (crypto.Signer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}

	key, err := ParsePrivateKey(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse key file %s: %w", path, err)
	}
	return key, nil
}

// ParsePrivateKey decodes a PEM or DER private key.
func ParsePrivateKey(data []byte) (crypto.Signer, error) {
	der := data
	if block, _ := pem.Decode(data); block != nil {
		der = block.Bytes
	}

	if key, err := x509.ParsePKCS8PrivateKey(der); err == nil {
		signer, ok := key.(crypto.Signer)
		if !ok {
			return nil, fmt.Errorf("%w: %T", ErrUnsupportedKey, key)
		}
		return signer, nil
	}
	if key, err := x509.ParsePKCS1PrivateKey(der); err == nil {
		return key, nil
	}
	if key, err := x509.ParseECPrivateKey(der); err == nil {
		return key, nil
	}

	return nil, fmt.Errorf("%w: not a PKCS#8, PKCS#1 or SEC1 private key", ErrUnsupportedKey)
}

// WritePrivateKey writes key to path as a PKCS#8 PEM file readable only by the owner.
func WritePrivateKey(path string, key crypto.Signer) error {
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return fmt.Errorf("failed to marshal private key: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("failed to create key file: %w", err)
	}

	if err := pem.Encode(f, &pem.Block{Type: "PRIVATE KEY", Bytes: der}); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write key: %w", err)
	}
	return f.Close()
}

// LoadCertificate reads a PEM or DER certificate file.
func LoadCertificate(path string) (*x509.Certificate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read cert file: %w", err)
	}

	der := data
	if block, _ := pem.Decode(data); block != nil {
		if block.Type != "CERTIFICATE" {
			return nil, fmt.Errorf("unexpected PEM block %q in %s", block.Type, path)
		}
		der = block.Bytes
	}

	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, fmt.Errorf("failed to parse certificate: %w", err)
	}
	return cert, nil
}

// VerifyKeyPair checks that a certificate's public key matches a private key.
func VerifyKeyPair(cert *x509.Certificate, key crypto.Signer) error {
	pub, ok := key.Public().(interface{ Equal(crypto.PublicKey) bool })
	if !ok {
		return fmt.Errorf("%w: %T", ErrUnsupportedKey, key.Public())
	}
	if !pub.Equal(cert.PublicKey) {
		return ErrKeyMismatch
	}
	return nil
}
