package commands

import (
	"context"
	"crypto/elliptic"
	"errors"
	"testing"

	"github.com/cenkalti/backoff/v5"
	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/certforge/internal/pki"
)

// flakySigner fails the first failures Sign calls with err.
type flakySigner struct {
	*pki.ECDSASigner
	failures int
	err      error
	calls    int
}

func (f *flakySigner) Sign(ctx context.Context, message []byte) ([]byte, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, f.err
	}
	return f.ECDSASigner.Sign(ctx, message)
}

func newFlakySigner(t *testing.T, failures int, err error) *flakySigner {
	t.Helper()
	s, genErr := pki.GenerateECDSASigner(elliptic.P256())
	require.NoError(t, genErr)
	return &flakySigner{ECDSASigner: s, failures: failures, err: err}
}

func fastRetry(signer pki.Signer, tries uint) *retrySigner {
	r := newRetrySigner(signer, tries)
	r.backOff = func() backoff.BackOff { return backoff.NewConstantBackOff(0) }
	return r
}

func TestRetrySigner(t *testing.T) {
	ctx := context.Background()
	errThrottled := errors.New("throttled")

	t.Run("recovers", func(t *testing.T) {
		flaky := newFlakySigner(t, 2, errThrottled)
		sig, err := fastRetry(flaky, 3).Sign(ctx, []byte("tbs"))
		require.NoError(t, err)
		require.NotEmpty(t, sig)
		require.Equal(t, 3, flaky.calls)
	})

	t.Run("gives up", func(t *testing.T) {
		flaky := newFlakySigner(t, 5, errThrottled)
		_, err := fastRetry(flaky, 2).Sign(ctx, []byte("tbs"))
		require.ErrorIs(t, err, errThrottled)
		require.Equal(t, 2, flaky.calls)
	})

	t.Run("does not retry cancellation", func(t *testing.T) {
		flaky := newFlakySigner(t, 5, context.Canceled)
		_, err := fastRetry(flaky, 5).Sign(ctx, []byte("tbs"))
		require.ErrorIs(t, err, context.Canceled)
		require.Equal(t, 1, flaky.calls)
	})

	t.Run("delegates key material", func(t *testing.T) {
		flaky := newFlakySigner(t, 0, nil)
		r := fastRetry(flaky, 1)

		want, err := flaky.SignatureAlgorithm(ctx)
		require.NoError(t, err)
		got, err := r.SignatureAlgorithm(ctx)
		require.NoError(t, err)
		require.True(t, want.Equal(got))
	})
}
