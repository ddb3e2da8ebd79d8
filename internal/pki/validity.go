package pki

import (
	"fmt"
	"time"

	"golang.org/x/crypto/cryptobyte"
	cryptobyte_asn1 "golang.org/x/crypto/cryptobyte/asn1"
)

var (
	minValidityTime = time.Date(1970, time.January, 1, 0, 0, 0, 0, time.UTC)
	maxValidityTime = time.Date(9999, time.December, 31, 23, 59, 59, 0, time.UTC)
)

// generalizedTimeYear is the first year RFC 5280 requires GeneralizedTime for.
const generalizedTimeYear = 2050

// Validity is the certificate validity window. NotBefore must precede
// NotAfter; that ordering is not checked.
type Validity struct {
	NotBefore time.Time
	NotAfter  time.Time
}

// Time is an encoded validity instant in UTC, truncated to whole seconds.
type Time struct {
	Time        time.Time
	Generalized bool
}

// EncodedValidity is a Validity ready to be written into a certificate.
type EncodedValidity struct {
	NotBefore Time
	NotAfter  Time
}

// Encode chooses the time encoding for each bound independently: UTCTime for
// instants before 2050 and GeneralizedTime from 2050 onwards.
func (v Validity) Encode() (EncodedValidity, error) {
	notBefore, err := encodeTime(v.NotBefore)
	if err != nil {
		return EncodedValidity{}, fmt.Errorf("not before: %w", err)
	}
	notAfter, err := encodeTime(v.NotAfter)
	if err != nil {
		return EncodedValidity{}, fmt.Errorf("not after: %w", err)
	}
	return EncodedValidity{NotBefore: notBefore, NotAfter: notAfter}, nil
}

func encodeTime(t time.Time) (Time, error) {
	t = t.UTC().Truncate(time.Second)
	if t.Before(minValidityTime) || t.After(maxValidityTime) {
		return Time{}, fmt.Errorf("%w: %s", ErrInvalidTimeRange, t.Format(time.RFC3339))
	}
	return Time{Time: t, Generalized: t.Year() >= generalizedTimeYear}, nil
}

func (t Time) marshal(b *cryptobyte.Builder) {
	if t.Generalized {
		b.AddASN1GeneralizedTime(t.Time)
		return
	}
	b.AddASN1UTCTime(t.Time)
}

func (v EncodedValidity) marshal(b *cryptobyte.Builder) {
	b.AddASN1(cryptobyte_asn1.SEQUENCE, func(b *cryptobyte.Builder) {
		v.NotBefore.marshal(b)
		v.NotAfter.marshal(b)
	})
}
