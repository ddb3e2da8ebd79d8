package pki

import (
	"bytes"
	"crypto"
	_ "crypto/sha256"
	_ "crypto/sha512"
	"encoding/asn1"
	"fmt"
	"sync"

	"golang.org/x/crypto/cryptobyte"
	cryptobyte_asn1 "golang.org/x/crypto/cryptobyte/asn1"
)

// AlgorithmIdentifier is the DER AlgorithmIdentifier (RFC 5280 section 4.1.1.2).
// Parameters holds the complete encoding of the parameters element, or nil
// when the element is absent.
type AlgorithmIdentifier struct {
	Algorithm  asn1.ObjectIdentifier
	Parameters []byte
}

// Equal reports whether both identifiers encode to the same bytes.
func (ai AlgorithmIdentifier) Equal(other AlgorithmIdentifier) bool {
	return ai.Algorithm.Equal(other.Algorithm) && bytes.Equal(ai.Parameters, other.Parameters)
}

func (ai AlgorithmIdentifier) marshal(b *cryptobyte.Builder) {
	b.AddASN1(cryptobyte_asn1.SEQUENCE, func(b *cryptobyte.Builder) {
		b.AddASN1ObjectIdentifier(ai.Algorithm)
		if ai.Parameters != nil {
			b.AddBytes(ai.Parameters)
		}
	})
}

// SignatureAlgorithm enumerates the signature algorithms certificates can be
// signed with.
type SignatureAlgorithm int

const (
	UnknownSignatureAlgorithm SignatureAlgorithm = iota

	ECDSAWithSHA256
	ECDSAWithSHA384
	ECDSAWithSHA512
	SHA256WithRSA
	SHA384WithRSA
	SHA512WithRSA
	SHA256WithRSAPSS
	SHA384WithRSAPSS
	SHA512WithRSAPSS
)

type publicKeyAlgorithm int

const (
	unknownPublicKeyAlgorithm publicKeyAlgorithm = iota
	keyRSA
	keyECDSA
)

var signatureAlgorithmDetails = []struct {
	algo     SignatureAlgorithm
	name     string
	oid      asn1.ObjectIdentifier
	pubKey   publicKeyAlgorithm
	hash     crypto.Hash
	isRSAPSS bool
}{
	{ECDSAWithSHA256, "ECDSA-SHA256", oidSignatureECDSAWithSHA256, keyECDSA, crypto.SHA256, false},
	{ECDSAWithSHA384, "ECDSA-SHA384", oidSignatureECDSAWithSHA384, keyECDSA, crypto.SHA384, false},
	{ECDSAWithSHA512, "ECDSA-SHA512", oidSignatureECDSAWithSHA512, keyECDSA, crypto.SHA512, false},
	{SHA256WithRSA, "SHA256-RSA", oidSignatureSHA256WithRSA, keyRSA, crypto.SHA256, false},
	{SHA384WithRSA, "SHA384-RSA", oidSignatureSHA384WithRSA, keyRSA, crypto.SHA384, false},
	{SHA512WithRSA, "SHA512-RSA", oidSignatureSHA512WithRSA, keyRSA, crypto.SHA512, false},
	{SHA256WithRSAPSS, "SHA256-RSAPSS", oidSignatureRSAPSS, keyRSA, crypto.SHA256, true},
	{SHA384WithRSAPSS, "SHA384-RSAPSS", oidSignatureRSAPSS, keyRSA, crypto.SHA384, true},
	{SHA512WithRSAPSS, "SHA512-RSAPSS", oidSignatureRSAPSS, keyRSA, crypto.SHA512, true},
}

// asn1Null is the DER encoding of NULL, used as the parameters of the
// PKCS#1 v1.5 signature algorithms and of the digests inside PSS parameters.
var asn1Null = []byte{0x05, 0x00}

// pssParameters holds the DER RSASSA-PSS-params (RFC 4055 section 3.1) per
// digest. They are computed once and never modified afterwards.
var pssParameters = sync.OnceValue(func() map[crypto.Hash][]byte {
	params := make(map[crypto.Hash][]byte, 3)
	for _, h := range []crypto.Hash{crypto.SHA256, crypto.SHA384, crypto.SHA512} {
		der, err := marshalPSSParameters(h)
		if err != nil {
			panic(fmt.Sprintf("pki: building PSS parameters for %s: %v", h, err))
		}
		params[h] = der
	}
	return params
})

func marshalPSSParameters(h crypto.Hash) ([]byte, error) {
	hashOID, ok := hashOIDs[h]
	if !ok {
		return nil, fmt.Errorf("%w: no digest identifier for %s", ErrUnsupportedAlgorithm, h)
	}
	hashAlgorithm := AlgorithmIdentifier{Algorithm: hashOID, Parameters: asn1Null}

	b := cryptobyte.NewBuilder(make([]byte, 0, 64))
	b.AddASN1(cryptobyte_asn1.SEQUENCE, func(b *cryptobyte.Builder) {
		b.AddASN1(cryptobyte_asn1.Tag(0).ContextSpecific().Constructed(), func(b *cryptobyte.Builder) {
			hashAlgorithm.marshal(b)
		})
		b.AddASN1(cryptobyte_asn1.Tag(1).ContextSpecific().Constructed(), func(b *cryptobyte.Builder) {
			b.AddASN1(cryptobyte_asn1.SEQUENCE, func(b *cryptobyte.Builder) {
				b.AddASN1ObjectIdentifier(oidMGF1)
				hashAlgorithm.marshal(b)
			})
		})
		b.AddASN1(cryptobyte_asn1.Tag(2).ContextSpecific().Constructed(), func(b *cryptobyte.Builder) {
			b.AddASN1Int64(int64(h.Size()))
		})
		// trailerField is left at its DEFAULT of 1 and therefore omitted
	})
	return b.Bytes()
}

var hashOIDs = map[crypto.Hash]asn1.ObjectIdentifier{
	crypto.SHA256: oidSHA256,
	crypto.SHA384: oidSHA384,
	crypto.SHA512: oidSHA512,
}

func (algo SignatureAlgorithm) String() string {
	for _, details := range signatureAlgorithmDetails {
		if details.algo == algo {
			return details.name
		}
	}
	return fmt.Sprintf("SignatureAlgorithm(%d)", int(algo))
}

// Hash returns the digest the algorithm signs over.
func (algo SignatureAlgorithm) Hash() crypto.Hash {
	for _, details := range signatureAlgorithmDetails {
		if details.algo == algo {
			return details.hash
		}
	}
	return 0
}

// IsRSAPSS reports whether the algorithm is one of the RSASSA-PSS variants.
func (algo SignatureAlgorithm) IsRSAPSS() bool {
	for _, details := range signatureAlgorithmDetails {
		if details.algo == algo {
			return details.isRSAPSS
		}
	}
	return false
}

// Identifier returns the DER AlgorithmIdentifier for the algorithm. ECDSA
// identifiers have absent parameters, PKCS#1 v1.5 identifiers carry NULL and
// PSS identifiers carry the shared RSASSA-PSS-params for the digest. The
// returned Parameters must not be modified.
func (algo SignatureAlgorithm) Identifier() (AlgorithmIdentifier, error) {
	for _, details := range signatureAlgorithmDetails {
		if details.algo != algo {
			continue
		}
		ai := AlgorithmIdentifier{Algorithm: details.oid}
		switch {
		case details.isRSAPSS:
			ai.Parameters = pssParameters()[details.hash]
		case details.pubKey == keyRSA:
			ai.Parameters = asn1Null
		}
		return ai, nil
	}
	return AlgorithmIdentifier{}, fmt.Errorf("%w: %s", ErrUnsupportedAlgorithm, algo)
}

// SignatureAlgorithmFor resolves an AlgorithmIdentifier back to its
// SignatureAlgorithm.
func SignatureAlgorithmFor(ai AlgorithmIdentifier) (SignatureAlgorithm, error) {
	for _, details := range signatureAlgorithmDetails {
		if !details.oid.Equal(ai.Algorithm) {
			continue
		}
		if !details.isRSAPSS {
			return details.algo, nil
		}
		if bytes.Equal(ai.Parameters, pssParameters()[details.hash]) {
			return details.algo, nil
		}
	}
	return UnknownSignatureAlgorithm, fmt.Errorf("%w: %s", ErrUnsupportedAlgorithm, ai.Algorithm)
}

// HashForAlgorithm returns the digest used by the algorithm identified by ai.
func HashForAlgorithm(ai AlgorithmIdentifier) (crypto.Hash, error) {
	algo, err := SignatureAlgorithmFor(ai)
	if err != nil {
		return 0, err
	}
	return algo.Hash(), nil
}

func signatureAlgorithmForKey(pub publicKeyAlgorithm, h crypto.Hash, pss bool) (SignatureAlgorithm, error) {
	for _, details := range signatureAlgorithmDetails {
		if details.pubKey == pub && details.hash == h && details.isRSAPSS == pss {
			return details.algo, nil
		}
	}
	return UnknownSignatureAlgorithm, fmt.Errorf("%w: no algorithm for %s", ErrUnsupportedAlgorithm, h)
}

// digest hashes message with h.
func digest(h crypto.Hash, message []byte) ([]byte, error) {
	if !h.Available() {
		return nil, fmt.Errorf("%w: digest %s not available", ErrUnsupportedAlgorithm, h)
	}
	hh := h.New()
	hh.Write(message)
	return hh.Sum(nil), nil
}
