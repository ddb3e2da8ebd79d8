package commands

import (
	"context"
	"fmt"

	"github.com/wolfeidau/certforge/internal/pki"
)

// SelfSignCmd groups the self-signed certificate commands by key type.
type SelfSignCmd struct {
	ECDSA SelfSignECDSACmd `cmd:"" name:"ecdsa" help:"Self-sign with an ECDSA key."`
	RSA   SelfSignRSACmd   `cmd:"" name:"rsa" help:"Self-sign with an RSA key."`
	KMS   SelfSignKMSCmd   `cmd:"" name:"kms" help:"Self-sign with a key held in AWS KMS."`
}

// CertificateFlags describe the certificate being issued.
type CertificateFlags struct {
	Name    string `help:"Subject name, e.g. 'C=US, O=Acme, CN=Acme Root'." short:"n"`
	Profile string `help:"YAML certificate profile." type:"existingfile"`
	Output  string `help:"Certificate output path. Prints PEM to stdout when empty." short:"o"`

	ValidityFlags  `embed:""`
	ExtensionFlags `embed:""`
}

// KeyFlags select the private key of a self-signed certificate.
type KeyFlags struct {
	Key    string `help:"Existing private key (PEM or DER)." xor:"key" type:"existingfile"`
	NewKey string `help:"Generate a new key and write it to this path." xor:"key"`
}

// RSAFlags select the RSA signature scheme.
type RSAFlags struct {
	Mode     string `help:"RSA padding (${enum})." enum:"pkcs1v15,pss" default:"pkcs1v15"`
	HashMode string `help:"Digest: sha256, sha384 or sha512. Defaults by key size." default:""`
}

func (f RSAFlags) options() (pki.SignerOptions, error) {
	padding, err := pki.ParseRSAPadding(f.Mode)
	if err != nil {
		return pki.SignerOptions{}, err
	}
	hash, err := pki.ParseHash(f.HashMode)
	if err != nil {
		return pki.SignerOptions{}, err
	}
	return pki.SignerOptions{Padding: padding, Hash: hash}, nil
}

func (f KeyFlags) signer(keyType string, opts pki.SignerOptions) (pki.Signer, error) {
	switch {
	case f.Key != "":
		return pki.LoadSigner(f.Key, opts)
	case f.NewKey != "":
		signer, err := generateKey(keyType, opts)
		if err != nil {
			return nil, err
		}
		if err := pki.WritePrivateKey(f.NewKey, signer.PrivateKey()); err != nil {
			return nil, err
		}
		return signer, nil
	default:
		return nil, fmt.Errorf("one of --key or --new-key is required")
	}
}

type SelfSignECDSACmd struct {
	CertificateFlags `embed:""`
	KeyFlags         `embed:""`

	Curve string `help:"Curve for --new-key (${enum})." enum:"p256,p384,p521" default:"p256"`
}

func (cmd *SelfSignECDSACmd) Run(ctx context.Context, globals *Globals) error {
	ctx, s, err := globals.newSession(ctx, "self-sign ecdsa")
	if err != nil {
		return err
	}
	defer s.close(ctx)

	signer, err := cmd.signer("ecdsa-"+cmd.Curve, pki.SignerOptions{})
	if err != nil {
		return err
	}
	if _, ok := signer.(*pki.ECDSASigner); !ok {
		return fmt.Errorf("%s is not an ECDSA key", cmd.Key)
	}

	return s.selfSign(ctx, cmd.CertificateFlags, signer)
}

type SelfSignRSACmd struct {
	CertificateFlags `embed:""`
	KeyFlags         `embed:""`
	RSAFlags         `embed:""`

	Size int `help:"Modulus size for --new-key: 1024, 2048, 3072 or 4096." default:"2048"`
}

func (cmd *SelfSignRSACmd) Run(ctx context.Context, globals *Globals) error {
	ctx, s, err := globals.newSession(ctx, "self-sign rsa")
	if err != nil {
		return err
	}
	defer s.close(ctx)

	opts, err := cmd.options()
	if err != nil {
		return err
	}

	signer, err := cmd.signer(fmt.Sprintf("rsa-%d", cmd.Size), opts)
	if err != nil {
		return err
	}
	if _, ok := signer.(*pki.RSASigner); !ok {
		return fmt.Errorf("%s is not an RSA key", cmd.Key)
	}

	return s.selfSign(ctx, cmd.CertificateFlags, signer)
}

type SelfSignKMSCmd struct {
	CertificateFlags `embed:""`
	KMSFlags         `embed:""`
	RSAFlags         `embed:""`
}

func (cmd *SelfSignKMSCmd) Run(ctx context.Context, globals *Globals) error {
	ctx, s, err := globals.newSession(ctx, "self-sign kms")
	if err != nil {
		return err
	}
	defer s.close(ctx)

	if cmd.KMSKeyID == "" {
		return fmt.Errorf("--kms-key-id is required")
	}

	opts, err := cmd.options()
	if err != nil {
		return err
	}

	signer, err := cmd.KMSFlags.signer(ctx, opts)
	if err != nil {
		return err
	}

	return s.selfSign(ctx, cmd.CertificateFlags, signer)
}

func (s *session) selfSign(ctx context.Context, flags CertificateFlags, signer pki.Signer) error {
	profile, err := loadProfile(flags.Profile)
	if err != nil {
		return err
	}

	opts, err := resolveCertOptions(s.clock, flags.Name, flags.ValidityFlags, flags.ExtensionFlags, profile)
	if err != nil {
		return err
	}

	spki, err := signer.SubjectPublicKeyInfo(ctx, s.arena)
	if err != nil {
		return fmt.Errorf("failed to get signer public key: %w", err)
	}

	req, err := opts.request(s.arena, spki)
	if err != nil {
		return err
	}

	cert, err := pki.Issue(ctx, s.arena, signer, req)
	if err != nil {
		return fmt.Errorf("failed to issue certificate: %w", err)
	}

	if err := s.writeCertificate(cert, flags.Output); err != nil {
		return fmt.Errorf("failed to write certificate: %w", err)
	}

	logCertificate(ctx, cert, flags.Output)
	return nil
}
