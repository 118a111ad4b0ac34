package attest

import "context"

// PairingRecord is the durable pinning state for one device, keyed by the
// fingerprint of its persistent attestation key.
//
// The pinned certificates and verified boot key never change after creation;
// the version fields only move forward.
type PairingRecord struct {
	// PinnedCertificates holds the DER of the attestation certificate and the
	// two intermediates. The root is global and not pinned per device.
	PinnedCertificates    [3][]byte
	PinnedVerifiedBootKey []byte
	PinnedOSVersion       int
	PinnedOSPatchLevel    int
	PinnedAppVersion      int
	// VerifiedTimeFirst and VerifiedTimeLast are epoch milliseconds.
	VerifiedTimeFirst int64
	VerifiedTimeLast  int64
}

// PinningStore is the durable store behind the pairing state machine. All
// operations for one fingerprint must be serialized by holding the device
// lock across the whole get/check/update sequence.
type PinningStore interface {
	// LockDevice acquires the per-fingerprint lock and returns its release
	// function.
	LockDevice(fingerprint []byte) (unlock func())
	// Get returns the pairing record for a fingerprint, or nil if the device
	// has never paired.
	Get(ctx context.Context, fingerprint []byte) (*PairingRecord, error)
	// Create inserts the record written by a first pairing. It fails if the
	// fingerprint is already present.
	Create(ctx context.Context, fingerprint []byte, record *PairingRecord) error
	// UpdateMonotonic advances the version fields and the last verified time.
	// The caller has already checked monotonicity; the store enforces it
	// again as a safety net.
	UpdateMonotonic(ctx context.Context, fingerprint []byte, osVersion, osPatchLevel, appVersion int, now int64) error
	// AppendAudit appends one entry to the attestation audit log.
	AppendAudit(ctx context.Context, fingerprint []byte, strong bool, teeEnforced, osEnforced string) error
}
