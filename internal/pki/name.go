package pki

import (
	"crypto/x509/pkix"
	"encoding/asn1"
	"fmt"
	"unicode/utf8"

	"github.com/wolfeidau/certforge/internal/arena"
	"golang.org/x/crypto/cryptobyte"
	cryptobyte_asn1 "golang.org/x/crypto/cryptobyte/asn1"
	"golang.org/x/text/unicode/norm"
)

// Pair is a single key/value entry of a distinguished name, e.g. {"CN", "example"}.
type Pair struct {
	Key   string
	Value string
}

// Attribute is one AttributeTypeAndValue. Value holds the UTF-8 bytes of the
// UTF8String.
type Attribute struct {
	Type  asn1.ObjectIdentifier
	Value []byte
}

// Name is an X.501 distinguished name: an ordered sequence of single
// attribute RDNs, or a pre-encoded name copied from an existing certificate.
type Name struct {
	attributes []Attribute
	raw        []byte
}

// NewName builds a Name from ordered pairs. Pairs with a key outside
// C, ST, L, O, OU and CN are dropped without error. Values are normalized to
// NFC and copied into the arena.
func NewName(a *arena.Arena, pairs []Pair) (Name, error) {
	attrs := make([]Attribute, 0, len(pairs))
	for _, p := range pairs {
		oid, ok := AttributeType(p.Key)
		if !ok {
			continue
		}
		if !utf8.ValidString(p.Value) {
			return Name{}, fmt.Errorf("%w: %w: %s value is not valid UTF-8", ErrEncoding, ErrInvalidName, p.Key)
		}
		attrs = append(attrs, Attribute{
			Type:  oid,
			Value: a.Alloc([]byte(norm.NFC.String(p.Value))),
		})
	}
	return Name{attributes: attrs}, nil
}

// NameFromDER wraps an encoded RDNSequence, such as the subject of an issuing
// certificate, so it is reproduced byte for byte.
func NameFromDER(a *arena.Arena, der []byte) (Name, error) {
	input := cryptobyte.String(der)
	var seq cryptobyte.String
	if !input.ReadASN1(&seq, cryptobyte_asn1.SEQUENCE) || !input.Empty() {
		return Name{}, fmt.Errorf("%w: not a DER SEQUENCE", ErrInvalidName)
	}
	return Name{raw: a.Alloc(der)}, nil
}

// UnknownKeys returns the keys in pairs that NewName drops.
func UnknownKeys(pairs []Pair) []string {
	var keys []string
	for _, p := range pairs {
		if _, ok := AttributeType(p.Key); !ok {
			keys = append(keys, p.Key)
		}
	}
	return keys
}

// Attributes returns the attributes of a Name built with NewName.
func (n Name) Attributes() []Attribute {
	return n.attributes
}

// Marshal returns the DER RDNSequence.
func (n Name) Marshal() ([]byte, error) {
	b := cryptobyte.NewBuilder(nil)
	n.marshal(b)
	der, err := b.Bytes()
	if err != nil {
		return nil, fmt.Errorf("%w: name: %v", ErrEncoding, err)
	}
	return der, nil
}

func (n Name) marshal(b *cryptobyte.Builder) {
	if n.raw != nil {
		b.AddBytes(n.raw)
		return
	}
	b.AddASN1(cryptobyte_asn1.SEQUENCE, func(b *cryptobyte.Builder) {
		for _, attr := range n.attributes {
			b.AddASN1(cryptobyte_asn1.SET, func(b *cryptobyte.Builder) {
				b.AddASN1(cryptobyte_asn1.SEQUENCE, func(b *cryptobyte.Builder) {
					b.AddASN1ObjectIdentifier(attr.Type)
					b.AddASN1(cryptobyte_asn1.UTF8String, func(b *cryptobyte.Builder) {
						b.AddBytes(attr.Value)
					})
				})
			})
		}
	})
}

// String renders the name in RFC 2253 form.
func (n Name) String() string {
	der, err := n.Marshal()
	if err != nil {
		return "<invalid name>"
	}
	var seq pkix.RDNSequence
	if _, err := asn1.Unmarshal(der, &seq); err != nil {
		return "<invalid name>"
	}
	return seq.String()
}
