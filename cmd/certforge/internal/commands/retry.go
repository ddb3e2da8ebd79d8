package commands

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"
	"github.com/wolfeidau/certforge/internal/pki"
)

// retrySigner retries Sign calls of a remote signer with exponential backoff.
// Cancellation and deadline errors are not retried.
type retrySigner struct {
	pki.Signer
	maxTries uint
	backOff  func() backoff.BackOff
}

func newRetrySigner(signer pki.Signer, maxTries uint) *retrySigner {
	return &retrySigner{
		Signer:   signer,
		maxTries: maxTries,
		backOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 200 * time.Millisecond
			b.MaxInterval = 5 * time.Second
			return b
		},
	}
}

func (r *retrySigner) Sign(ctx context.Context, message []byte) ([]byte, error) {
	attempt := 0
	operation := func() ([]byte, error) {
		attempt++
		sig, err := r.Signer.Sign(ctx, message)
		if err == nil {
			return sig, nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, backoff.Permanent(err)
		}
		zerolog.Ctx(ctx).Warn().Err(err).Int("attempt", attempt).Msg("remote sign failed")
		return nil, err
	}

	return backoff.Retry(ctx, operation,
		backoff.WithBackOff(r.backOff()),
		backoff.WithMaxTries(r.maxTries),
	)
}
