package attest

import (
	"crypto/x509"
	"encoding/asn1"
	"fmt"
)

// attestationExtensionOID identifies the Android key attestation extension.
var attestationExtensionOID = asn1.ObjectIdentifier{1, 3, 6, 1, 4, 1, 11129, 2, 1, 17}

// SecurityLevel is the Keymaster security level of an attestation or key.
type SecurityLevel int

const (
	SecurityLevelSoftware           SecurityLevel = 0
	SecurityLevelTrustedEnvironment SecurityLevel = 1
	SecurityLevelStrongBox          SecurityLevel = 2
)

// VerifiedBootState is the boot state reported by the bootloader.
type VerifiedBootState int

const (
	VerifiedBootVerified   VerifiedBootState = 0
	VerifiedBootSelfSigned VerifiedBootState = 1
	VerifiedBootUnverified VerifiedBootState = 2
	VerifiedBootFailed     VerifiedBootState = 3
)

// KeyOriginGenerated marks keys generated inside the Keymaster.
const KeyOriginGenerated = 0

// RootOfTrust is the verified boot information bound into the key.
type RootOfTrust struct {
	VerifiedBootKey   []byte
	DeviceLocked      bool
	VerifiedBootState VerifiedBootState
}

// PackageInfo names one package sharing the attested application's UID.
type PackageInfo struct {
	PackageName string
	Version     int
}

// ApplicationID identifies the application that requested the attestation.
type ApplicationID struct {
	Packages         []PackageInfo
	SignatureDigests [][]byte
}

// AuthorizationList is one half of the attested key's authorizations. Absent
// integer fields are -1 so that zero-valued enums cannot be confused with
// missing ones.
type AuthorizationList struct {
	OSVersion         int
	OSPatchLevel      int
	Origin            int
	AllApplications   bool
	RollbackResistant bool
	RootOfTrust       *RootOfTrust
	ApplicationID     *ApplicationID
}

// KeyDescription is the decoded key attestation extension of a leaf
// certificate.
type KeyDescription struct {
	AttestationVersion       int
	AttestationSecurityLevel SecurityLevel
	KeymasterVersion         int
	KeymasterSecurityLevel   SecurityLevel
	AttestationChallenge     []byte
	UniqueID                 []byte
	SoftwareEnforced         AuthorizationList
	TEEEnforced              AuthorizationList
}

// Keymaster authorization tags used by this server. Tag numbers are the
// context-specific tags of the AuthorizationList fields.
const (
	tagAllApplications          = 600
	tagOrigin                   = 702
	tagRollbackResistant        = 703
	tagRootOfTrust              = 704
	tagOSVersion                = 705
	tagOSPatchLevel             = 706
	tagAttestationApplicationID = 709
)

type keyDescriptionRaw struct {
	AttestationVersion       int
	AttestationSecurityLevel asn1.Enumerated
	KeymasterVersion         int
	KeymasterSecurityLevel   asn1.Enumerated
	AttestationChallenge     []byte
	UniqueID                 []byte
	SoftwareEnforced         asn1.RawValue
	TEEEnforced              asn1.RawValue
}

type rootOfTrustRaw struct {
	VerifiedBootKey   []byte
	DeviceLocked      bool
	VerifiedBootState asn1.Enumerated
}

type packageInfoRaw struct {
	PackageName []byte
	Version     int
}

type applicationIDRaw struct {
	Packages         []packageInfoRaw `asn1:"set"`
	SignatureDigests [][]byte         `asn1:"set"`
}

// ParseKeyDescription extracts and decodes the key attestation extension from
// a leaf certificate.
func ParseKeyDescription(cert *x509.Certificate) (*KeyDescription, error) {
	for _, ext := range cert.Extensions {
		if ext.Id.Equal(attestationExtensionOID) {
			return parseKeyDescription(ext.Value)
		}
	}
	return nil, fmt.Errorf("certificate has no key attestation extension")
}

func parseKeyDescription(der []byte) (*KeyDescription, error) {
	var raw keyDescriptionRaw
	if _, err := asn1.Unmarshal(der, &raw); err != nil {
		return nil, fmt.Errorf("parse key description: %w", err)
	}

	software, err := parseAuthorizationList(raw.SoftwareEnforced.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse software enforced list: %w", err)
	}
	tee, err := parseAuthorizationList(raw.TEEEnforced.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse tee enforced list: %w", err)
	}

	return &KeyDescription{
		AttestationVersion:       raw.AttestationVersion,
		AttestationSecurityLevel: SecurityLevel(raw.AttestationSecurityLevel),
		KeymasterVersion:         raw.KeymasterVersion,
		KeymasterSecurityLevel:   SecurityLevel(raw.KeymasterSecurityLevel),
		AttestationChallenge:     raw.AttestationChallenge,
		UniqueID:                 raw.UniqueID,
		SoftwareEnforced:         software,
		TEEEnforced:              tee,
	}, nil
}

// parseAuthorizationList walks the elements of an AuthorizationList SEQUENCE.
// Fields carry explicit context-specific tags with high tag numbers; tags this
// server has no policy over are skipped.
func parseAuthorizationList(contents []byte) (AuthorizationList, error) {
	list := AuthorizationList{OSVersion: -1, OSPatchLevel: -1, Origin: -1}
	rest := contents
	for len(rest) > 0 {
		var el asn1.RawValue
		var err error
		rest, err = asn1.Unmarshal(rest, &el)
		if err != nil {
			return list, fmt.Errorf("parse authorization: %w", err)
		}
		if el.Class != asn1.ClassContextSpecific {
			continue
		}
		switch el.Tag {
		case tagOSVersion:
			if list.OSVersion, err = parseInt(el.Bytes); err != nil {
				return list, fmt.Errorf("parse os version: %w", err)
			}
		case tagOSPatchLevel:
			if list.OSPatchLevel, err = parseInt(el.Bytes); err != nil {
				return list, fmt.Errorf("parse os patch level: %w", err)
			}
		case tagOrigin:
			if list.Origin, err = parseInt(el.Bytes); err != nil {
				return list, fmt.Errorf("parse origin: %w", err)
			}
		case tagAllApplications:
			list.AllApplications = true
		case tagRollbackResistant:
			list.RollbackResistant = true
		case tagRootOfTrust:
			var rot rootOfTrustRaw
			if _, err := asn1.Unmarshal(el.Bytes, &rot); err != nil {
				return list, fmt.Errorf("parse root of trust: %w", err)
			}
			list.RootOfTrust = &RootOfTrust{
				VerifiedBootKey:   rot.VerifiedBootKey,
				DeviceLocked:      rot.DeviceLocked,
				VerifiedBootState: VerifiedBootState(rot.VerifiedBootState),
			}
		case tagAttestationApplicationID:
			appID, err := parseApplicationID(el.Bytes)
			if err != nil {
				return list, err
			}
			list.ApplicationID = appID
		}
	}
	return list, nil
}

// parseApplicationID decodes the AttestationApplicationId structure, which is
// DER wrapped in an OCTET STRING.
func parseApplicationID(octets []byte) (*ApplicationID, error) {
	var wrapped []byte
	if _, err := asn1.Unmarshal(octets, &wrapped); err != nil {
		return nil, fmt.Errorf("parse application id wrapper: %w", err)
	}
	var raw applicationIDRaw
	if _, err := asn1.Unmarshal(wrapped, &raw); err != nil {
		return nil, fmt.Errorf("parse application id: %w", err)
	}
	appID := &ApplicationID{SignatureDigests: raw.SignatureDigests}
	for _, p := range raw.Packages {
		appID.Packages = append(appID.Packages, PackageInfo{
			PackageName: string(p.PackageName),
			Version:     p.Version,
		})
	}
	return appID, nil
}

func parseInt(der []byte) (int, error) {
	var v int
	if _, err := asn1.Unmarshal(der, &v); err != nil {
		return 0, err
	}
	return v, nil
}
