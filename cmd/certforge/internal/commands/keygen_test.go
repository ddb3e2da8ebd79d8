package commands

import (
	"context"
	"crypto/ecdsa"
	"crypto/rsa"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/certforge/internal/pki"
)

func TestKeygenCmd_Run(t *testing.T) {
	tests := []struct {
		keyType string
		check   func(t *testing.T, key any)
	}{
		{keyType: "ecdsa-p256", check: func(t *testing.T, key any) {
			k, ok := key.(*ecdsa.PrivateKey)
			require.True(t, ok)
			require.Equal(t, "P-256", k.Curve.Params().Name)
		}},
		{keyType: "ecdsa-p521", check: func(t *testing.T, key any) {
			k, ok := key.(*ecdsa.PrivateKey)
			require.True(t, ok)
			require.Equal(t, "P-521", k.Curve.Params().Name)
		}},
		{keyType: "rsa-2048", check: func(t *testing.T, key any) {
			k, ok := key.(*rsa.PrivateKey)
			require.True(t, ok)
			require.Equal(t, 2048, k.N.BitLen())
		}},
	}

	for _, tt := range tests {
		t.Run(tt.keyType, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "key.pem")
			globals, out := newTestGlobals()

			cmd := &KeygenCmd{Type: tt.keyType, Output: path}
			require.NoError(t, cmd.Run(context.Background(), globals))

			info, err := os.Stat(path)
			require.NoError(t, err)
			require.Equal(t, os.FileMode(0o600), info.Mode().Perm())

			key, err := pki.LoadPrivateKey(path)
			require.NoError(t, err)
			tt.check(t, key)

			require.NotEmpty(t, strings.TrimSpace(out.String()))
		})
	}
}

func TestKeygenCmd_UnknownType(t *testing.T) {
	globals, _ := newTestGlobals()
	cmd := &KeygenCmd{Type: "ed25519", Output: filepath.Join(t.TempDir(), "key.pem")}
	err := cmd.Run(context.Background(), globals)
	require.ErrorContains(t, err, "unknown key type")
}
