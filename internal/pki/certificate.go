package pki

import (
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/cryptobyte"
	cryptobyte_asn1 "golang.org/x/crypto/cryptobyte/asn1"
)

// Version3 is the encoded version number of an X.509v3 certificate.
const Version3 = 2

// TBSCertificate is the to-be-signed portion of a certificate (RFC 5280 section 4.1.2).
type TBSCertificate struct {
	Version      int
	SerialNumber *big.Int
	Signature    AlgorithmIdentifier
	Issuer       Name
	Validity     EncodedValidity
	Subject      Name
	PublicKey    SubjectPublicKeyInfo
	Extensions   []Extension
}

// Marshal returns the DER encoding of the TBSCertificate.
func (t *TBSCertificate) Marshal() ([]byte, error) {
	if t.SerialNumber == nil || t.SerialNumber.Sign() < 0 {
		return nil, fmt.Errorf("%w: serial number must be non-negative", ErrEncoding)
	}

	b := cryptobyte.NewBuilder(make([]byte, 0, 1024))
	b.AddASN1(cryptobyte_asn1.SEQUENCE, func(b *cryptobyte.Builder) {
		b.AddASN1(cryptobyte_asn1.Tag(0).ContextSpecific().Constructed(), func(b *cryptobyte.Builder) {
			b.AddASN1Int64(int64(t.Version))
		})
		b.AddASN1BigInt(t.SerialNumber)
		t.Signature.marshal(b)
		t.Issuer.marshal(b)
		t.Validity.marshal(b)
		t.Subject.marshal(b)
		t.PublicKey.marshal(b)
		if len(t.Extensions) == 0 {
			return
		}
		b.AddASN1(cryptobyte_asn1.Tag(3).ContextSpecific().Constructed(), func(b *cryptobyte.Builder) {
			b.AddASN1(cryptobyte_asn1.SEQUENCE, func(b *cryptobyte.Builder) {
				for _, ext := range t.Extensions {
					ext.marshal(b)
				}
			})
		})
	})

	der, err := b.Bytes()
	if err != nil {
		return nil, fmt.Errorf("%w: tbs certificate: %v", ErrEncoding, err)
	}
	return der, nil
}

// Certificate is a signed certificate. Raw is the complete DER encoding
// produced when the certificate was assembled.
type Certificate struct {
	TBS                *TBSCertificate
	RawTBS             []byte
	SignatureAlgorithm AlgorithmIdentifier
	Signature          []byte
	Raw                []byte
}

func marshalCertificate(rawTBS []byte, algorithm AlgorithmIdentifier, signature []byte) ([]byte, error) {
	b := cryptobyte.NewBuilder(make([]byte, 0, len(rawTBS)+len(signature)+32))
	b.AddASN1(cryptobyte_asn1.SEQUENCE, func(b *cryptobyte.Builder) {
		b.AddBytes(rawTBS)
		algorithm.marshal(b)
		b.AddASN1BitString(signature)
	})

	der, err := b.Bytes()
	if err != nil {
		return nil, fmt.Errorf("%w: certificate: %v", ErrEncoding, err)
	}
	return der, nil
}

// X509 parses the certificate with the standard library.
func (c *Certificate) X509() (*x509.Certificate, error) {
	return x509.ParseCertificate(c.Raw)
}

// PEM returns the certificate as a PEM block with type CERTIFICATE and CRLF
// line endings.
func (c *Certificate) PEM() string {
	block := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: c.Raw})
	return strings.ReplaceAll(string(block), "\n", "\r\n")
}

// WritePEMFile writes the PEM encoding to path. The file is written under a
// temporary name and renamed into place.
func (c *Certificate) WritePEMFile(path string) error {
	f, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create certificate file: %w", err)
	}
	tmp := f.Name()

	if _, err := f.WriteString(c.PEM()); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to write certificate: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to close certificate file: %w", err)
	}
	if err := os.Chmod(tmp, 0o644); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to set certificate file mode: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to move certificate into place: %w", err)
	}
	return nil
}
