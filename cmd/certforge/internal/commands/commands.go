package commands

import (
	"context"
	"crypto/elliptic"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/certforge/internal/arena"
	"github.com/wolfeidau/certforge/internal/dn"
	"github.com/wolfeidau/certforge/internal/logger"
	"github.com/wolfeidau/certforge/internal/pki"
	"github.com/wolfeidau/certforge/internal/telemetry"
)

type Globals struct {
	Debug   bool
	Version string

	// Clock and Out default to the real clock and stdout.
	Clock clockwork.Clock
	Out   io.Writer
}

// session is the per-invocation state shared by the commands: one arena for
// every certificate built during the run and a logger tagged with a session id.
type session struct {
	id       string
	arena    *arena.Arena
	clock    clockwork.Clock
	out      io.Writer
	shutdown telemetry.ShutdownFunc
}

func (g *Globals) newSession(ctx context.Context, command string) (context.Context, *session, error) {
	id := uuid.New().String()

	log.Logger = logger.WithSession(logger.Setup(g.Debug), id)
	ctx = log.Logger.WithContext(ctx)

	shutdown, err := telemetry.InitTelemetry(ctx, "certforge", g.Version)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	s := &session{
		id:       id,
		arena:    arena.New(),
		clock:    g.Clock,
		out:      g.Out,
		shutdown: shutdown,
	}
	if s.clock == nil {
		s.clock = clockwork.NewRealClock()
	}
	if s.out == nil {
		s.out = os.Stdout
	}

	zerolog.Ctx(ctx).Debug().Str("command", command).Msg("session started")

	return ctx, s, nil
}

func (s *session) close(ctx context.Context) {
	stats := s.arena.Stats()
	zerolog.Ctx(ctx).Debug().
		Int("regions", stats.Regions).
		Int("chunks", stats.Chunks).
		Int64("allocated", stats.Allocated).
		Msg("session finished")

	if err := s.shutdown(ctx); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("failed to flush telemetry")
	}
}

// ValidityFlags select the validity window of issued certificates.
type ValidityFlags struct {
	NotBefore string `help:"Start of validity (RFC 3339). Defaults to now."`
	NotAfter  string `help:"End of validity (RFC 3339). Defaults to not-before plus --days."`
	Days      int    `help:"Validity period in days when --not-after is not set." default:"0"`
}

// ExtensionFlags select the extensions of issued certificates.
type ExtensionFlags struct {
	CA        bool     `help:"Issue a CA certificate."`
	CAPathlen int      `help:"Maximum number of intermediate CAs below this one (CA only)." default:"-1"`
	Usages    []string `help:"Key usages, e.g. digital-signature,key-cert-sign,crl-sign." sep:","`
}

const defaultValidityDays = 365

// certOptions is the resolved form of the certificate flags and profile.
type certOptions struct {
	subject  []pki.Pair
	validity pki.Validity
	isCA     bool
	pathLen  *uint8
	usages   []pki.KeyUsage
}

func resolveCertOptions(clock clockwork.Clock, name string, vf ValidityFlags, ef ExtensionFlags, profile *Profile) (certOptions, error) {
	if profile != nil {
		profile.apply(&name, &vf, &ef)
	}

	var opts certOptions

	if name == "" {
		return opts, fmt.Errorf("a subject name is required (use --name or a profile)")
	}
	subject, err := dn.Parse(name)
	if err != nil {
		return opts, err
	}
	if unknown := pki.UnknownKeys(subject); len(unknown) > 0 {
		log.Debug().Strs("keys", unknown).Msg("ignoring unsupported name attributes")
	}
	opts.subject = subject

	opts.validity, err = resolveValidity(clock, vf)
	if err != nil {
		return opts, err
	}

	opts.isCA = ef.CA
	if ef.CAPathlen >= 0 {
		if !ef.CA {
			return opts, fmt.Errorf("--ca-pathlen requires --ca")
		}
		if ef.CAPathlen > 255 {
			return opts, fmt.Errorf("--ca-pathlen must be at most 255")
		}
		pathLen := uint8(ef.CAPathlen)
		opts.pathLen = &pathLen
	}

	usages := ef.Usages
	if len(usages) == 0 {
		usages = defaultUsages(ef.CA)
	}
	for _, u := range usages {
		ku, err := pki.ParseKeyUsage(strings.TrimSpace(u))
		if err != nil {
			return opts, err
		}
		opts.usages = append(opts.usages, ku)
	}

	return opts, nil
}

func defaultUsages(ca bool) []string {
	if ca {
		return []string{"key-cert-sign", "crl-sign", "digital-signature"}
	}
	return []string{"digital-signature", "key-encipherment"}
}

func resolveValidity(clock clockwork.Clock, vf ValidityFlags) (pki.Validity, error) {
	notBefore := clock.Now().UTC().Truncate(time.Second)
	if vf.NotBefore != "" {
		t, err := time.Parse(time.RFC3339, vf.NotBefore)
		if err != nil {
			return pki.Validity{}, fmt.Errorf("invalid --not-before: %w", err)
		}
		notBefore = t
	}

	days := vf.Days
	if days <= 0 {
		days = defaultValidityDays
	}
	notAfter := notBefore.AddDate(0, 0, days)
	if vf.NotAfter != "" {
		t, err := time.Parse(time.RFC3339, vf.NotAfter)
		if err != nil {
			return pki.Validity{}, fmt.Errorf("invalid --not-after: %w", err)
		}
		notAfter = t
	}

	if !notAfter.After(notBefore) {
		return pki.Validity{}, fmt.Errorf("not after (%s) must be later than not before (%s)",
			notAfter.Format(time.RFC3339), notBefore.Format(time.RFC3339))
	}

	return pki.Validity{NotBefore: notBefore, NotAfter: notAfter}, nil
}

// request builds the certificate request for opts.
func (opts certOptions) request(a *arena.Arena, subjectKey pki.SubjectPublicKeyInfo) (pki.CertificateRequest, error) {
	subject, err := pki.NewName(a, opts.subject)
	if err != nil {
		return pki.CertificateRequest{}, err
	}
	return pki.CertificateRequest{
		Subject:    subject,
		Validity:   opts.validity,
		SubjectKey: subjectKey,
		IsCA:       opts.isCA,
		MaxPathLen: opts.pathLen,
		KeyUsage:   opts.usages,
	}, nil
}

// localSigner is a Signer whose private key can be written to disk.
type localSigner interface {
	pki.Signer
	pki.KeyHolder
}

// keyTypes lists the key types accepted by --key-type.
const keyTypes = "ecdsa-p256,ecdsa-p384,ecdsa-p521,rsa-1024,rsa-2048,rsa-3072,rsa-4096"

func generateKey(keyType string, opts pki.SignerOptions) (localSigner, error) {
	var (
		signer localSigner
		err    error
	)
	switch keyType {
	case "ecdsa-p256":
		signer, err = pki.GenerateECDSASigner(elliptic.P256())
	case "ecdsa-p384":
		signer, err = pki.GenerateECDSASigner(elliptic.P384())
	case "ecdsa-p521":
		signer, err = pki.GenerateECDSASigner(elliptic.P521())
	case "rsa-1024":
		signer, err = pki.GenerateRSASigner(1024, opts.Padding, opts.Hash)
	case "rsa-2048":
		signer, err = pki.GenerateRSASigner(2048, opts.Padding, opts.Hash)
	case "rsa-3072":
		signer, err = pki.GenerateRSASigner(3072, opts.Padding, opts.Hash)
	case "rsa-4096":
		signer, err = pki.GenerateRSASigner(4096, opts.Padding, opts.Hash)
	default:
		return nil, fmt.Errorf("unknown key type %q (want one of %s)", keyType, keyTypes)
	}
	if err != nil {
		return nil, err
	}

	telemetry.GetMetrics().KeysGeneratedTotal.Add(context.Background(), 1)

	return signer, nil
}

// writeCertificate writes the PEM certificate to path, or to the session
// output when path is empty.
func (s *session) writeCertificate(cert *pki.Certificate, path string) error {
	if path == "" {
		_, err := io.WriteString(s.out, cert.PEM())
		return err
	}
	return cert.WritePEMFile(path)
}

func logCertificate(ctx context.Context, cert *pki.Certificate, path string) {
	zerolog.Ctx(ctx).Info().
		Str("subject", cert.TBS.Subject.String()).
		Str("issuer", cert.TBS.Issuer.String()).
		Str("serial", cert.TBS.SerialNumber.Text(16)).
		Str("fingerprint", cert.TBS.PublicKey.Fingerprint()).
		Time("not_after", cert.TBS.Validity.NotAfter.Time).
		Str("path", path).
		Msg("certificate issued")
}

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// fileStem turns a common name into a file name stem.
func fileStem(pairs []pki.Pair, fallback string) string {
	for i := len(pairs) - 1; i >= 0; i-- {
		if pairs[i].Key != "CN" {
			continue
		}
		stem := strings.Trim(unsafeFileChars.ReplaceAllString(pairs[i].Value, "-"), "-.")
		if stem != "" {
			return strings.ToLower(stem)
		}
	}
	return fallback
}
