package commands

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/rs/zerolog"
	"github.com/wolfeidau/certforge/internal/pki"
)

// KMSFlags select a signing key held in AWS KMS.
type KMSFlags struct {
	KMSKeyID    string `help:"KMS key ID, ARN or alias used for signing." name:"kms-key-id" env:"CERTFORGE_KMS_KEY_ID"`
	AWSRegion   string `help:"AWS region" env:"AWS_REGION"`
	AWSEndpoint string `help:"AWS endpoint (for LocalStack)" env:"AWS_ENDPOINT" default:""`
	KMSRetries  uint   `help:"Attempts per KMS sign call." name:"kms-retries" default:"3"`
}

// kmsClientFactory is replaced in tests.
var kmsClientFactory = func(ctx context.Context, region, endpoint string) (pki.KMSAPI, error) {
	var opts []func(*config.LoadOptions) error
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return kms.NewFromConfig(cfg, func(o *kms.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	}), nil
}

func (f KMSFlags) signer(ctx context.Context, opts pki.SignerOptions) (pki.Signer, error) {
	client, err := kmsClientFactory(ctx, f.AWSRegion, f.AWSEndpoint)
	if err != nil {
		return nil, err
	}

	signer, err := pki.NewKMSSigner(ctx, client, f.KMSKeyID, pki.KMSOptions{Padding: opts.Padding, Hash: opts.Hash})
	if err != nil {
		return nil, err
	}

	zerolog.Ctx(ctx).Info().
		Str("kms_key_id", f.KMSKeyID).
		Str("algorithm", signer.Algorithm().String()).
		Msg("using KMS signer")

	tries := f.KMSRetries
	if tries == 0 {
		tries = 1
	}
	return newRetrySigner(signer, tries), nil
}
