package pki

import (
	"crypto/sha1"
	"encoding/asn1"
	"fmt"
	"strings"

	"github.com/wolfeidau/certforge/internal/arena"
	"golang.org/x/crypto/cryptobyte"
	cryptobyte_asn1 "golang.org/x/crypto/cryptobyte/asn1"
)

// Extension is a certificate extension with a DER encoded value.
type Extension struct {
	ID       asn1.ObjectIdentifier
	Critical bool
	Value    []byte
}

func (e Extension) marshal(b *cryptobyte.Builder) {
	b.AddASN1(cryptobyte_asn1.SEQUENCE, func(b *cryptobyte.Builder) {
		b.AddASN1ObjectIdentifier(e.ID)
		if e.Critical {
			b.AddASN1Boolean(true)
		}
		b.AddASN1OctetString(e.Value)
	})
}

// KeyUsage is a set of key usage flags (RFC 5280 section 4.2.1.3). Bit n of
// the mask corresponds to named bit n of the extension.
type KeyUsage uint16

const (
	KeyUsageDigitalSignature KeyUsage = 1 << iota
	KeyUsageContentCommitment
	KeyUsageKeyEncipherment
	KeyUsageDataEncipherment
	KeyUsageKeyAgreement
	KeyUsageCertSign
	KeyUsageCRLSign
	KeyUsageEncipherOnly
	KeyUsageDecipherOnly
)

// allKeyUsages is the union of the defined key usage bits.
const allKeyUsages = KeyUsageDecipherOnly<<1 - 1

var keyUsageNames = []struct {
	usage KeyUsage
	names []string
}{
	{KeyUsageDigitalSignature, []string{"digital-signature"}},
	{KeyUsageContentCommitment, []string{"non-repudiation", "content-commitment"}},
	{KeyUsageKeyEncipherment, []string{"key-encipherment"}},
	{KeyUsageDataEncipherment, []string{"data-encipherment"}},
	{KeyUsageKeyAgreement, []string{"key-agreement"}},
	{KeyUsageCertSign, []string{"key-cert-sign", "cert-sign"}},
	{KeyUsageCRLSign, []string{"crl-sign"}},
	{KeyUsageEncipherOnly, []string{"encipher-only"}},
	{KeyUsageDecipherOnly, []string{"decipher-only"}},
}

// ParseKeyUsage maps a usage name such as "digital-signature" or
// "DigitalSignature" to its flag.
func ParseKeyUsage(s string) (KeyUsage, error) {
	want := normalizeUsageName(s)
	for _, entry := range keyUsageNames {
		for _, name := range entry.names {
			if normalizeUsageName(name) == want {
				return entry.usage, nil
			}
		}
	}
	return 0, fmt.Errorf("unknown key usage %q", s)
}

func (ku KeyUsage) String() string {
	var names []string
	for _, entry := range keyUsageNames {
		if ku&entry.usage != 0 {
			names = append(names, entry.names[0])
		}
	}
	return strings.Join(names, ",")
}

func normalizeUsageName(s string) string {
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, "-", "")
	return strings.ReplaceAll(s, "_", "")
}

// BasicConstraints builds the basic constraints extension. pathLen is only
// written for CA certificates.
func BasicConstraints(a *arena.Arena, critical, isCA bool, pathLen *uint8) (Extension, error) {
	b := cryptobyte.NewBuilder(make([]byte, 0, 8))
	b.AddASN1(cryptobyte_asn1.SEQUENCE, func(b *cryptobyte.Builder) {
		if !isCA {
			return
		}
		b.AddASN1Boolean(true)
		if pathLen != nil {
			b.AddASN1Uint64(uint64(*pathLen))
		}
	})
	return newExtension(a, OIDExtensionBasicConstraints, critical, b)
}

// KeyUsageExtension builds the key usage extension from the union of usages.
func KeyUsageExtension(a *arena.Arena, critical bool, usages []KeyUsage) (Extension, error) {
	if len(usages) == 0 {
		return Extension{}, ErrEmptyUsageSet
	}

	var ku KeyUsage
	for _, u := range usages {
		ku |= u
	}
	if ku == 0 {
		return Extension{}, ErrEmptyUsageSet
	}
	if extra := ku &^ allKeyUsages; extra != 0 {
		return Extension{}, fmt.Errorf("%w: undefined key usage bits %#04x", ErrEncoding, uint16(extra))
	}

	var bits [2]byte
	bits[0] = reverseBitsInAByte(byte(ku))
	bits[1] = reverseBitsInAByte(byte(ku >> 8))

	l := 1
	if bits[1] != 0 {
		l = 2
	}
	bitString := bits[:l]
	unused := len(bitString)*8 - asn1BitLength(bitString)

	b := cryptobyte.NewBuilder(make([]byte, 0, 8))
	b.AddASN1(cryptobyte_asn1.BIT_STRING, func(b *cryptobyte.Builder) {
		b.AddUint8(uint8(unused))
		b.AddBytes(bitString)
	})
	return newExtension(a, OIDExtensionKeyUsage, critical, b)
}

// SubjectKeyIdentifier builds the subject key identifier extension from the
// SHA-1 of the subject public key bits.
func SubjectKeyIdentifier(a *arena.Arena, critical bool, spki SubjectPublicKeyInfo) (Extension, error) {
	b := cryptobyte.NewBuilder(make([]byte, 0, 24))
	b.AddASN1OctetString(spki.KeyIdentifier())
	return newExtension(a, OIDExtensionSubjectKeyID, critical, b)
}

// AuthorityKeyIdentifier builds the authority key identifier extension from
// the SHA-1 of the issuer public key bits. Only keyIdentifier is set.
func AuthorityKeyIdentifier(a *arena.Arena, critical bool, issuer SubjectPublicKeyInfo) (Extension, error) {
	b := cryptobyte.NewBuilder(make([]byte, 0, 26))
	b.AddASN1(cryptobyte_asn1.SEQUENCE, func(b *cryptobyte.Builder) {
		b.AddASN1(cryptobyte_asn1.Tag(0).ContextSpecific(), func(b *cryptobyte.Builder) {
			b.AddBytes(issuer.KeyIdentifier())
		})
	})
	return newExtension(a, OIDExtensionAuthorityKeyID, critical, b)
}

func newExtension(a *arena.Arena, id asn1.ObjectIdentifier, critical bool, b *cryptobyte.Builder) (Extension, error) {
	value, err := b.Bytes()
	if err != nil {
		return Extension{}, fmt.Errorf("%w: extension %s: %v", ErrEncoding, id, err)
	}
	return Extension{ID: id, Critical: critical, Value: a.Alloc(value)}, nil
}

// keyIdentifier is the SHA-1 of the public key bits (RFC 5280 section 4.2.1.2, method 1).
func keyIdentifier(publicKey []byte) []byte {
	sum := sha1.Sum(publicKey)
	return sum[:]
}

func reverseBitsInAByte(in byte) byte {
	b1 := in>>4 | in<<4
	b2 := b1>>2&0x33 | b1<<2&0xcc
	b3 := b2>>1&0x55 | b2<<1&0xaa
	return b3
}

// asn1BitLength returns the bit-length of bitString by considering the
// most-significant bit in a byte to be the "first" bit.
func asn1BitLength(bitString []byte) int {
	bitLen := len(bitString) * 8

	for i := range bitString {
		b := bitString[len(bitString)-i-1]

		for bit := uint(0); bit < 8; bit++ {
			if (b>>bit)&1 == 1 {
				return bitLen
			}
			bitLen--
		}
	}

	return 0
}
