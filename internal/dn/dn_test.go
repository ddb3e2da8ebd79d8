package dn

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/certforge/internal/pki"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []pki.Pair
	}{
		{
			name:  "mixed spacing",
			input: "C=US,ST = CA, L =SF",
			want:  []pki.Pair{{Key: "C", Value: "US"}, {Key: "ST", Value: "CA"}, {Key: "L", Value: "SF"}},
		},
		{
			name:  "quoted value with space",
			input: `C=US,ST = "CA Minor", L =SF`,
			want:  []pki.Pair{{Key: "C", Value: "US"}, {Key: "ST", Value: "CA Minor"}, {Key: "L", Value: "SF"}},
		},
		{
			name:  "quoted value with comma and escapes",
			input: `O="Acme, \"Inc\"", CN=acme`,
			want:  []pki.Pair{{Key: "O", Value: `Acme, "Inc"`}, {Key: "CN", Value: "acme"}},
		},
		{
			name:  "unquoted value keeps inner spaces",
			input: "CN = my ca  ",
			want:  []pki.Pair{{Key: "CN", Value: "my ca"}},
		},
		{
			name:  "unknown keys are kept for the encoder to drop",
			input: "CN=leaf,EMAIL=x",
			want:  []pki.Pair{{Key: "CN", Value: "leaf"}, {Key: "EMAIL", Value: "x"}},
		},
		{
			name:  "non ascii value",
			input: "O=Bücher",
			want:  []pki.Pair{{Key: "O", Value: "Bücher"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.input)
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestParseErrors(t *testing.T) {
	t.Run("empty input", func(t *testing.T) {
		_, err := Parse("   ")
		require.ErrorIs(t, err, ErrEmpty)
	})

	for _, input := range []string{
		"CN",
		"CN=",
		"=foo",
		"CN=a,",
		`CN="open`,
		`CN="bad \q escape"`,
		`CN="a" O=b`,
		`CN=a"b`,
	} {
		t.Run(input, func(t *testing.T) {
			_, err := Parse(input)
			require.ErrorIs(t, err, ErrSyntax)
		})
	}
}

func TestFormat(t *testing.T) {
	pairs := []pki.Pair{{Key: "C", Value: "US"}, {Key: "ST", Value: "CA Minor"}, {Key: "O", Value: "a,b"}}

	require.Equal(t, `C = US, ST = CA Minor, O = "a,b"`, Format(pairs))

	roundTrip, err := Parse(Format(pairs))
	require.NoError(t, err)
	require.Equal(t, pairs, roundTrip)
}
