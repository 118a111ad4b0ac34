package attest

import (
	"bytes"
	"context"
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/copperhead/attestation-server/pkg/challenge"
	"github.com/copperhead/attestation-server/pkg/devices"
	"github.com/copperhead/attestation-server/pkg/protocol"
)

// ChallengeStore consumes challenges previously issued to Auditees.
type ChallengeStore interface {
	Consume(challenge []byte) bool
}

// Verifier composes the codec, chain verification, content policy and the
// pinning state machine into the two verification flows: first pairing and
// paired re-verification.
type Verifier struct {
	root                   *x509.Certificate
	catalog                *devices.Catalog
	challenges             ChallengeStore
	pinning                PinningStore
	allowDebugAppSignature bool
	now                    func() time.Time
}

// Option configures a Verifier.
type Option func(*Verifier)

// WithRoot overrides the pinned root certificate.
func WithRoot(root *x509.Certificate) Option {
	return func(v *Verifier) { v.root = root }
}

// WithCatalog overrides the device catalog.
func WithCatalog(catalog *devices.Catalog) Option {
	return func(v *Verifier) { v.catalog = catalog }
}

// WithDebugAppSignature additionally accepts the debug signing key of the
// attestation app. Never enable outside development setups.
func WithDebugAppSignature() Option {
	return func(v *Verifier) { v.allowDebugAppSignature = true }
}

// NewVerifier creates a verifier bound to a challenge store and a pinning
// store. By default chains are verified against the Google attestation root
// and devices are resolved through the compiled-in catalog.
func NewVerifier(challenges ChallengeStore, pinning PinningStore, opts ...Option) *Verifier {
	v := &Verifier{
		root:       GoogleRoot(),
		catalog:    devices.Default(),
		challenges: challenges,
		pinning:    pinning,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Result is the outcome of a successful verification. Strong reports whether
// the attestation was checked against an existing pairing rather than
// creating one.
type Result struct {
	Strong      bool
	TEEEnforced string
	OSEnforced  string
}

// VerifySerialized verifies a serialized attestation message and advances the
// pairing state machine. On success the audit log has been appended and the
// textual report is returned.
func (v *Verifier) VerifySerialized(ctx context.Context, payload []byte) (*Result, error) {
	msg, err := protocol.Decode(payload)
	if err != nil {
		return nil, err
	}

	// The root is never transmitted; append the pinned one so chain identity
	// checks compare DER exactly.
	chain := make([]*x509.Certificate, 0, len(msg.Chain)+1)
	for i, der := range msg.Chain {
		cert, err := x509.ParseCertificate(der)
		if err != nil {
			return nil, fmt.Errorf("%w at index %d: %s", ErrMalformedCertificate, i, err)
		}
		chain = append(chain, cert)
	}
	chain = append(chain, v.root)
	if len(chain) != chainLength {
		return nil, ErrUnsupportedChainLength
	}

	unlock := v.pinning.LockDevice(msg.Fingerprint)
	defer unlock()

	record, err := v.pinning.Get(ctx, msg.Fingerprint)
	if err != nil {
		return nil, fmt.Errorf("load pairing record: %w", err)
	}

	leafFingerprint := sha256.Sum256(chain[0].Raw)
	if record == nil && !bytes.Equal(leafFingerprint[:], msg.Fingerprint) {
		// The device referenced a persistent key this server has never
		// paired with.
		return nil, ErrPairingMissing
	}
	strong := record != nil

	if record != nil {
		// Pinned chain continuity: the intermediates must not change for the
		// lifetime of the pairing.
		for i := 1; i <= 2; i++ {
			if !bytes.Equal(chain[i].Raw, record.PinnedCertificates[i]) {
				return nil, ErrChainMismatch
			}
		}
		persistent, err := x509.ParseCertificate(record.PinnedCertificates[0])
		if err != nil {
			return nil, ErrCorruptPairingData
		}
		persistentFingerprint := sha256.Sum256(persistent.Raw)
		if !bytes.Equal(persistentFingerprint[:], msg.Fingerprint) {
			return nil, ErrCorruptPairingData
		}
		if err := persistent.CheckSignature(x509.ECDSAWithSHA256, msg.SignedRange, msg.Signature); err != nil {
			return nil, fmt.Errorf("%w: %s", ErrInvalidSignature, err)
		}
	} else {
		if err := chain[0].CheckSignature(x509.ECDSAWithSHA256, msg.SignedRange, msg.Signature); err != nil {
			return nil, fmt.Errorf("%w: %s", ErrInvalidSignature, err)
		}
	}

	now := v.now()
	if err := verifyChain(chain, v.root, now); err != nil {
		return nil, err
	}

	key, err := ParseKeyDescription(chain[0])
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformedExtension, err)
	}
	verified, err := v.verifyPolicy(key)
	if err != nil {
		return nil, err
	}
	verifiedBootKey, err := hex.DecodeString(verified.VerifiedBootKey)
	if err != nil {
		return nil, fmt.Errorf("decode verified boot key: %w", err)
	}

	if record != nil {
		if !bytes.Equal(verifiedBootKey, record.PinnedVerifiedBootKey) {
			return nil, ErrBootKeyChanged
		}
		if verified.OSVersion < record.PinnedOSVersion {
			return nil, ErrOSVersionDowngrade
		}
		if verified.OSPatchLevel < record.PinnedOSPatchLevel {
			return nil, ErrOSPatchDowngrade
		}
		if verified.AppVersion < record.PinnedAppVersion {
			return nil, ErrAppVersionDowngrade
		}
		err = v.pinning.UpdateMonotonic(ctx, msg.Fingerprint,
			verified.OSVersion, verified.OSPatchLevel, verified.AppVersion, now.UnixMilli())
		if err != nil {
			return nil, fmt.Errorf("update pairing record: %w", err)
		}
	} else {
		err = v.pinning.Create(ctx, msg.Fingerprint, &PairingRecord{
			PinnedCertificates: [3][]byte{
				chain[0].Raw, chain[1].Raw, chain[2].Raw,
			},
			PinnedVerifiedBootKey: verifiedBootKey,
			PinnedOSVersion:       verified.OSVersion,
			PinnedOSPatchLevel:    verified.OSPatchLevel,
			PinnedAppVersion:      verified.AppVersion,
			VerifiedTimeFirst:     now.UnixMilli(),
			VerifiedTimeLast:      now.UnixMilli(),
		})
		if err != nil {
			return nil, fmt.Errorf("create pairing record: %w", err)
		}
	}

	teeEnforced := renderTEEEnforced(verified, now)
	osEnforced := renderOSEnforced(verified.AppVersion, msg.Flags)
	if err := v.pinning.AppendAudit(ctx, msg.Fingerprint, strong, teeEnforced, osEnforced); err != nil {
		return nil, fmt.Errorf("append audit log: %w", err)
	}

	return &Result{Strong: strong, TEEEnforced: teeEnforced, OSEnforced: osEnforced}, nil
}

var _ ChallengeStore = (*challenge.Store)(nil)
