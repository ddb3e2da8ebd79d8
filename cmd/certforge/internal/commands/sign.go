package commands

import (
	"bytes"
	"context"
	"crypto"
	"crypto/x509"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/wolfeidau/certforge/internal/arena"
	"github.com/wolfeidau/certforge/internal/dn"
	"github.com/wolfeidau/certforge/internal/pki"
	"software.sslmate.com/src/go-pkcs12"
)

// SignCmd issues one certificate per --name, signed by an existing CA.
type SignCmd struct {
	CACert string `help:"CA certificate (PEM or DER)." name:"ca-cert" required:"" type:"existingfile"`
	CAKey  string `help:"CA private key. Omit when the CA key is in KMS." name:"ca-key" type:"existingfile"`

	KMSFlags `embed:""`
	RSAFlags `embed:""`

	Name    []string `help:"Subject name of a certificate to issue; repeat for several." short:"n" sep:"none"`
	Profile string   `help:"YAML certificate profile." type:"existingfile"`
	Key     string   `help:"Existing subject private key (only with a single --name)." type:"existingfile"`
	KeyType string   `help:"Type of generated subject keys (${enum})." enum:"ecdsa-p256,ecdsa-p384,ecdsa-p521,rsa-1024,rsa-2048,rsa-3072,rsa-4096" default:"ecdsa-p256"`
	OutDir  string   `help:"Directory for issued certificates and generated keys." default:"."`

	P12Password string `help:"Also write a PKCS#12 bundle per certificate protected by this password." name:"p12-password" env:"CERTFORGE_P12_PASSWORD"`

	ValidityFlags  `embed:""`
	ExtensionFlags `embed:""`
}

type leaf struct {
	stem string
	key  crypto.Signer
	opts certOptions
	// generated keys are written once their certificate is issued
	generated bool
}

func (cmd *SignCmd) Run(ctx context.Context, globals *Globals) error {
	ctx, s, err := globals.newSession(ctx, "sign")
	if err != nil {
		return err
	}
	defer s.close(ctx)

	caCert, err := pki.LoadCertificate(cmd.CACert)
	if err != nil {
		return err
	}
	if !caCert.BasicConstraintsValid || !caCert.IsCA {
		return fmt.Errorf("%s is not a CA certificate", cmd.CACert)
	}

	caSigner, err := cmd.caSigner(ctx, s.arena, caCert)
	if err != nil {
		return err
	}

	issuer, err := pki.NameFromDER(s.arena, caCert.RawSubject)
	if err != nil {
		return err
	}
	issuerKey, err := pki.ParseSubjectPublicKeyInfo(s.arena, caCert.RawSubjectPublicKeyInfo)
	if err != nil {
		return err
	}

	profile, err := loadProfile(cmd.Profile)
	if err != nil {
		return err
	}

	names := cmd.Name
	if len(names) == 0 && profile != nil && profile.Name != "" {
		names = []string{profile.Name}
	}
	if len(names) == 0 {
		return fmt.Errorf("at least one --name is required")
	}
	if cmd.Key != "" && len(names) != 1 {
		return fmt.Errorf("--key can only be used with a single --name")
	}

	if err := os.MkdirAll(cmd.OutDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	leaves, err := cmd.prepareLeaves(ctx, s, names, profile)
	if err != nil {
		return err
	}

	reqs := make([]pki.CertificateRequest, len(leaves))
	for i, l := range leaves {
		spki, err := pki.PublicKeyInfo(s.arena, l.key.Public())
		if err != nil {
			return err
		}
		req, err := l.opts.request(s.arena, spki)
		if err != nil {
			return err
		}
		req.Issuer = &issuer
		req.IssuerKey = &issuerKey
		reqs[i] = req
	}

	certs, err := pki.IssueAll(ctx, s.arena, caSigner, reqs)
	if err != nil {
		return fmt.Errorf("failed to issue certificates: %w", err)
	}

	for i, cert := range certs {
		path := filepath.Join(cmd.OutDir, leaves[i].stem+".pem")
		if err := cert.WritePEMFile(path); err != nil {
			return err
		}
		logCertificate(ctx, cert, path)

		if leaves[i].generated {
			if err := pki.WritePrivateKey(filepath.Join(cmd.OutDir, leaves[i].stem+".key"), leaves[i].key); err != nil {
				return err
			}
		}

		if cmd.P12Password != "" {
			if err := writePKCS12(filepath.Join(cmd.OutDir, leaves[i].stem+".p12"), leaves[i].key, cert, caCert, cmd.P12Password); err != nil {
				return err
			}
		}

		if _, err := fmt.Fprintln(s.out, path); err != nil {
			return err
		}
	}

	return nil
}

func (cmd *SignCmd) caSigner(ctx context.Context, a *arena.Arena, caCert *x509.Certificate) (pki.Signer, error) {
	opts, err := cmd.options()
	if err != nil {
		return nil, err
	}

	switch {
	case cmd.CAKey != "" && cmd.KMSKeyID != "":
		return nil, fmt.Errorf("--ca-key and --kms-key-id are mutually exclusive")
	case cmd.CAKey != "":
		key, err := pki.LoadPrivateKey(cmd.CAKey)
		if err != nil {
			return nil, err
		}
		if err := pki.VerifyKeyPair(caCert, key); err != nil {
			return nil, fmt.Errorf("CA key and certificate do not match: %w", err)
		}
		return pki.NewSigner(key, opts)
	case cmd.KMSKeyID != "":
		signer, err := cmd.KMSFlags.signer(ctx, opts)
		if err != nil {
			return nil, err
		}
		spki, err := signer.SubjectPublicKeyInfo(ctx, a)
		if err != nil {
			return nil, err
		}
		if !bytes.Equal(spki.Raw, caCert.RawSubjectPublicKeyInfo) {
			return nil, fmt.Errorf("KMS public key does not match CA certificate: %w", pki.ErrKeyMismatch)
		}
		return signer, nil
	default:
		return nil, fmt.Errorf("one of --ca-key or --kms-key-id is required")
	}
}

func (cmd *SignCmd) prepareLeaves(ctx context.Context, s *session, names []string, profile *Profile) ([]leaf, error) {
	leaves := make([]leaf, 0, len(names))
	seen := map[string]int{}

	for i, name := range names {
		opts, err := resolveCertOptions(s.clock, name, cmd.ValidityFlags, cmd.ExtensionFlags, profile)
		if err != nil {
			return nil, fmt.Errorf("name %q: %w", name, err)
		}

		stem := fileStem(opts.subject, fmt.Sprintf("leaf-%d", i+1))
		if n := seen[stem]; n > 0 {
			seen[stem] = n + 1
			stem = fmt.Sprintf("%s-%d", stem, n+1)
		} else {
			seen[stem] = 1
		}

		var (
			key       crypto.Signer
			generated bool
		)
		if cmd.Key != "" {
			key, err = pki.LoadPrivateKey(cmd.Key)
			if err != nil {
				return nil, err
			}
		} else {
			signer, err := generateKey(cmd.KeyType, pki.SignerOptions{})
			if err != nil {
				return nil, err
			}
			key = signer.PrivateKey()
			generated = true
		}

		zerolog.Ctx(ctx).Debug().Str("stem", stem).Str("subject", dn.Format(opts.subject)).Msg("prepared certificate request")

		leaves = append(leaves, leaf{stem: stem, key: key, opts: opts, generated: generated})
	}

	return leaves, nil
}

func writePKCS12(path string, key crypto.Signer, cert *pki.Certificate, caCert *x509.Certificate, password string) error {
	leafCert, err := cert.X509()
	if err != nil {
		return fmt.Errorf("failed to parse issued certificate: %w", err)
	}

	pfx, err := pkcs12.Modern.Encode(key, leafCert, []*x509.Certificate{caCert}, password)
	if err != nil {
		return fmt.Errorf("failed to encode PKCS#12 bundle: %w", err)
	}

	if err := os.WriteFile(path, pfx, 0o600); err != nil {
		return fmt.Errorf("failed to write PKCS#12 bundle: %w", err)
	}
	return nil
}
