package pki

import (
	"encoding/asn1"
)

// Attribute types used in distinguished names (RFC 4519).
var (
	OIDCountryName            = asn1.ObjectIdentifier{2, 5, 4, 6}
	OIDStateOrProvinceName    = asn1.ObjectIdentifier{2, 5, 4, 8}
	OIDLocalityName           = asn1.ObjectIdentifier{2, 5, 4, 7}
	OIDOrganizationName       = asn1.ObjectIdentifier{2, 5, 4, 10}
	OIDOrganizationalUnitName = asn1.ObjectIdentifier{2, 5, 4, 11}
	OIDCommonName             = asn1.ObjectIdentifier{2, 5, 4, 3}
)

// Certificate extensions (RFC 5280 section 4.2.1).
var (
	OIDExtensionSubjectKeyID     = asn1.ObjectIdentifier{2, 5, 29, 14}
	OIDExtensionKeyUsage         = asn1.ObjectIdentifier{2, 5, 29, 15}
	OIDExtensionBasicConstraints = asn1.ObjectIdentifier{2, 5, 29, 19}
	OIDExtensionAuthorityKeyID   = asn1.ObjectIdentifier{2, 5, 29, 35}
)

// Signature and digest algorithms.
var (
	oidSignatureSHA256WithRSA   = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 11}
	oidSignatureSHA384WithRSA   = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 12}
	oidSignatureSHA512WithRSA   = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 13}
	oidSignatureRSAPSS          = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 10}
	oidSignatureECDSAWithSHA256 = asn1.ObjectIdentifier{1, 2, 840, 10045, 4, 3, 2}
	oidSignatureECDSAWithSHA384 = asn1.ObjectIdentifier{1, 2, 840, 10045, 4, 3, 3}
	oidSignatureECDSAWithSHA512 = asn1.ObjectIdentifier{1, 2, 840, 10045, 4, 3, 4}

	oidSHA256 = asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 2, 1}
	oidSHA384 = asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 2, 2}
	oidSHA512 = asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 2, 3}

	oidMGF1 = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 8}
)

// attributeTypes maps the short keys accepted in subject and issuer names to
// their attribute type.
var attributeTypes = map[string]asn1.ObjectIdentifier{
	"C":  OIDCountryName,
	"ST": OIDStateOrProvinceName,
	"L":  OIDLocalityName,
	"O":  OIDOrganizationName,
	"OU": OIDOrganizationalUnitName,
	"CN": OIDCommonName,
}

// AttributeType returns the attribute type for a name key such as "CN".
func AttributeType(key string) (asn1.ObjectIdentifier, bool) {
	oid, ok := attributeTypes[key]
	return oid, ok
}
