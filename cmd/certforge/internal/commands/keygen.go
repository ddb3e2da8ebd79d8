package commands

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/wolfeidau/certforge/internal/pki"
)

// KeygenCmd generates a private key and writes it as PKCS#8 PEM.
type KeygenCmd struct {
	Type   string `help:"Key type (${enum})." enum:"ecdsa-p256,ecdsa-p384,ecdsa-p521,rsa-1024,rsa-2048,rsa-3072,rsa-4096" default:"ecdsa-p256"`
	Output string `help:"Path of the private key file." short:"o" required:""`
}

func (cmd *KeygenCmd) Run(ctx context.Context, globals *Globals) error {
	ctx, s, err := globals.newSession(ctx, "keygen")
	if err != nil {
		return err
	}
	defer s.close(ctx)

	signer, err := generateKey(cmd.Type, pki.SignerOptions{})
	if err != nil {
		return err
	}

	if err := pki.WritePrivateKey(cmd.Output, signer.PrivateKey()); err != nil {
		return err
	}

	spki, err := signer.SubjectPublicKeyInfo(ctx, s.arena)
	if err != nil {
		return err
	}

	zerolog.Ctx(ctx).Info().
		Str("type", cmd.Type).
		Str("path", cmd.Output).
		Str("fingerprint", spki.Fingerprint()).
		Msg("private key written")

	_, err = fmt.Fprintln(s.out, spki.Fingerprint())
	return err
}
