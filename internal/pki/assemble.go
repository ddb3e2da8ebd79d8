package pki

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/wolfeidau/certforge/internal/arena"
	"github.com/wolfeidau/certforge/internal/telemetry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

const tracerName = "github.com/wolfeidau/certforge/internal/pki"

// Sign encodes the TBSCertificate, signs it with signer and wraps the result
// into a Certificate. The signature algorithm of the certificate is taken
// from the signer and must match t.Signature.
//
// Encoding failures return an error wrapping ErrEncoding; signer failures
// return a *SigningError.
func (t *TBSCertificate) Sign(ctx context.Context, a *arena.Arena, signer Signer) (*Certificate, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "pki.Sign",
		trace.WithAttributes(attribute.String("pki.signature_algorithm", t.Signature.Algorithm.String())),
	)
	defer span.End()

	cert, err := t.sign(ctx, a, signer)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		telemetry.GetMetrics().SigningErrorsTotal.Add(ctx, 1)
		return nil, err
	}

	span.SetAttributes(attribute.String("pki.serial", t.SerialNumber.Text(16)))
	telemetry.GetMetrics().CertificatesSignedTotal.Add(ctx, 1,
		metric.WithAttributes(attribute.String("pki.signature_algorithm", t.Signature.Algorithm.String())),
	)
	return cert, nil
}

func (t *TBSCertificate) sign(ctx context.Context, a *arena.Arena, signer Signer) (*Certificate, error) {
	rawTBS, err := t.Marshal()
	if err != nil {
		return nil, err
	}
	rawTBS = a.Alloc(rawTBS)

	started := time.Now()
	signature, err := signer.Sign(ctx, rawTBS)
	telemetry.GetMetrics().SigningDuration.Record(ctx, float64(time.Since(started).Milliseconds()))
	if err != nil {
		return nil, &SigningError{Cause: err}
	}
	signature = a.Alloc(signature)

	algorithm, err := signer.SignatureAlgorithm(ctx)
	if err != nil {
		return nil, &SigningError{Cause: err}
	}

	raw, err := marshalCertificate(rawTBS, algorithm, signature)
	if err != nil {
		return nil, err
	}

	return &Certificate{
		TBS:                t,
		RawTBS:             rawTBS,
		SignatureAlgorithm: algorithm,
		Signature:          signature,
		Raw:                a.Alloc(raw),
	}, nil
}

// CertificateRequest describes a certificate to issue.
type CertificateRequest struct {
	Subject  Name
	Validity Validity
	// SubjectKey is the public key being certified.
	SubjectKey SubjectPublicKeyInfo

	// Issuer and IssuerKey identify the signing CA. When nil the certificate
	// is self-signed and the subject values are used.
	Issuer    *Name
	IssuerKey *SubjectPublicKeyInfo

	IsCA       bool
	MaxPathLen *uint8
	KeyUsage   []KeyUsage
}

// NewTBSCertificate assembles the TBSCertificate for req: a random serial,
// the signature algorithm of signer, and the extension set of basic
// constraints (critical), key usage (critical, when requested), subject and
// authority key identifiers.
func NewTBSCertificate(ctx context.Context, a *arena.Arena, signer Signer, req CertificateRequest) (*TBSCertificate, error) {
	algorithm, err := signer.SignatureAlgorithm(ctx)
	if err != nil {
		return nil, &SigningError{Cause: err}
	}

	serial, err := RandomSerial()
	if err != nil {
		return nil, err
	}

	validity, err := req.Validity.Encode()
	if err != nil {
		return nil, err
	}

	issuer := req.Subject
	if req.Issuer != nil {
		issuer = *req.Issuer
	}
	issuerKey := req.SubjectKey
	if req.IssuerKey != nil {
		issuerKey = *req.IssuerKey
	}

	var extensions []Extension

	bc, err := BasicConstraints(a, true, req.IsCA, req.MaxPathLen)
	if err != nil {
		return nil, err
	}
	extensions = append(extensions, bc)

	if len(req.KeyUsage) > 0 {
		ku, err := KeyUsageExtension(a, true, req.KeyUsage)
		if err != nil {
			return nil, err
		}
		extensions = append(extensions, ku)
	}

	ski, err := SubjectKeyIdentifier(a, false, req.SubjectKey)
	if err != nil {
		return nil, err
	}
	aki, err := AuthorityKeyIdentifier(a, false, issuerKey)
	if err != nil {
		return nil, err
	}
	extensions = append(extensions, ski, aki)

	return &TBSCertificate{
		Version:      Version3,
		SerialNumber: serial,
		Signature:    algorithm,
		Issuer:       issuer,
		Validity:     validity,
		Subject:      req.Subject,
		PublicKey:    req.SubjectKey,
		Extensions:   extensions,
	}, nil
}

// Issue builds and signs a single certificate.
func Issue(ctx context.Context, a *arena.Arena, signer Signer, req CertificateRequest) (*Certificate, error) {
	tbs, err := NewTBSCertificate(ctx, a, signer, req)
	if err != nil {
		return nil, err
	}
	return tbs.Sign(ctx, a, signer)
}

// IssueAll issues every request concurrently against the same arena and
// signer. Results are returned in request order; the first failure cancels
// the remaining work.
func IssueAll(ctx context.Context, a *arena.Arena, signer Signer, reqs []CertificateRequest) ([]*Certificate, error) {
	certs := make([]*Certificate, len(reqs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))

	for i, req := range reqs {
		g.Go(func() error {
			cert, err := Issue(ctx, a, signer, req)
			if err != nil {
				return fmt.Errorf("request %d: %w", i, err)
			}
			certs[i] = cert
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return certs, nil
}

// IsSigningError reports whether err came from a Signer.
func IsSigningError(err error) bool {
	var signingErr *SigningError
	return errors.As(err, &signingErr)
}
