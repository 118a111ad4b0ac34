package attest

import (
	"encoding/hex"
	"strings"

	"github.com/copperhead/attestation-server/pkg/devices"
)

const (
	attestationAppPackageName    = "co.copperhead.attestation"
	attestationAppMinimumVersion = 7

	attestationAppSignatureDigestRelease = "BE9FDEEE9EB474CEEB57B7795B75B0DFC0970EAA513574BC37A598E153916A8A"
	attestationAppSignatureDigestDebug   = "17727D8B61D55A864936B1A7B4A2554A15151F32EBCF44CDAA6E6C3258231890"

	osVersionMinimum    = 80000
	osPatchLevelMinimum = 201801
)

// Verified is the outcome of the content policy over a chain that already
// passed certificate verification.
type Verified struct {
	Device          string
	VerifiedBootKey string
	OSVersion       int
	OSPatchLevel    int
	AppVersion      int
	Stock           bool
}

// verifyPolicy applies the content policy to a parsed key attestation
// extension. Checks run in a fixed order and the first failure wins.
func (v *Verifier) verifyPolicy(key *KeyDescription) (*Verified, error) {
	// Consume the challenge first so replayed evidence fails fast.
	if !v.challenges.Consume(key.AttestationChallenge) {
		return nil, ErrChallengeNotPending
	}

	// The attestation must come from the attestation app itself, keyed by
	// its release signature.
	appID := key.SoftwareEnforced.ApplicationID
	if appID == nil || len(appID.Packages) != 1 {
		return nil, ErrWrongApp
	}
	pkg := appID.Packages[0]
	if pkg.PackageName != attestationAppPackageName {
		return nil, ErrWrongApp
	}
	if pkg.Version < attestationAppMinimumVersion {
		return nil, ErrAppTooOld
	}
	if len(appID.SignatureDigests) != 1 {
		return nil, ErrWrongAppSignature
	}
	digest := strings.ToUpper(hex.EncodeToString(appID.SignatureDigests[0]))
	if digest != attestationAppSignatureDigestRelease {
		if !v.allowDebugAppSignature || digest != attestationAppSignatureDigestDebug {
			return nil, ErrWrongAppSignature
		}
	}

	tee := key.TEEEnforced
	if tee.OSVersion < osVersionMinimum {
		return nil, ErrOSTooOld
	}
	if tee.OSPatchLevel < osPatchLevelMinimum {
		return nil, ErrPatchTooOld
	}

	rot := tee.RootOfTrust
	if rot == nil {
		return nil, ErrMissingRootOfTrust
	}
	if !rot.DeviceLocked {
		return nil, ErrDeviceNotLocked
	}

	bootKey := strings.ToUpper(hex.EncodeToString(rot.VerifiedBootKey))
	var device devices.Descriptor
	var known, stock bool
	switch rot.VerifiedBootState {
	case VerifiedBootVerified:
		device, known = v.catalog.LookupStock(bootKey)
		stock = true
	case VerifiedBootSelfSigned:
		device, known = v.catalog.LookupAltOS(bootKey)
	default:
		return nil, ErrUnknownVerifiedBootState
	}
	if !known {
		return nil, ErrUnknownDevice
	}

	// Key provenance.
	if tee.Origin != KeyOriginGenerated {
		return nil, ErrKeyNotGenerated
	}
	if tee.AllApplications {
		return nil, ErrKeyNotAppBound
	}
	if device.RequiresRollbackResistance && !tee.RollbackResistant {
		return nil, ErrKeyNotRollbackResistant
	}

	// Per-device version floors; both security levels must be the TEE.
	if key.AttestationVersion < device.MinAttestationVersion {
		return nil, ErrAttestationVersionTooLow
	}
	if key.AttestationSecurityLevel != SecurityLevelTrustedEnvironment {
		return nil, ErrSoftwareSecurityLevel
	}
	if key.KeymasterVersion < device.MinKeymasterVersion {
		return nil, ErrKeymasterVersionTooLow
	}
	if key.KeymasterSecurityLevel != SecurityLevelTrustedEnvironment {
		return nil, ErrSoftwareSecurityLevel
	}

	return &Verified{
		Device:          device.Name,
		VerifiedBootKey: bootKey,
		OSVersion:       tee.OSVersion,
		OSPatchLevel:    tee.OSPatchLevel,
		AppVersion:      pkg.Version,
		Stock:           stock,
	}, nil
}
