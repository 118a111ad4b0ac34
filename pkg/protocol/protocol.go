// Package protocol implements the compact wire format used between the
// Auditor and the attestation server.
package protocol

// ProtocolError is a typed error for wire-format errors.
type ProtocolError string

func (e ProtocolError) Error() string { return string(e) }

const (
	// ErrUnsupportedVersion is returned when the message version is newer than this server supports.
	ErrUnsupportedVersion = ProtocolError("unsupported protocol version")
	// ErrMessageTooLarge is returned when the payload exceeds MaxMessageSize.
	ErrMessageTooLarge = ProtocolError("message too large")
	// ErrChainTooLarge is returned when the inflated certificate chain exceeds its budget.
	ErrChainTooLarge = ProtocolError("certificate chain is too large")
	// ErrTruncatedMessage is returned when the payload ends before a field is complete.
	ErrTruncatedMessage = ProtocolError("truncated message")
	// ErrInvalidFlags is returned when the OS-enforced flag byte is internally inconsistent.
	ErrInvalidFlags = ProtocolError("invalid device administrator state")
)

const (
	// Version is the highest protocol version this server understands.
	Version = 1

	// ChallengeLength is the size of a challenge and of a challenge index.
	ChallengeLength = 32
	// FingerprintLength is the size of the persistent key fingerprint (SHA-256).
	FingerprintLength = 32

	// MaxMessageSize bounds a serialized attestation message.
	MaxMessageSize = 2953
	// maxEncodedChainLength bounds the inflated certificate chain.
	maxEncodedChainLength = 3000

	// wireChainLength is the number of certificates carried on the wire. The
	// Google root is never transmitted; the verifier appends it locally.
	wireChainLength = 3
)

// OS-enforced flag bits. Unknown bits are ignored.
const (
	FlagUserProfileSecure    = 1 << 0
	FlagAccessibility        = 1 << 1
	FlagDeviceAdmin          = 1 << 2
	FlagADBEnabled           = 1 << 3
	FlagAddUsersWhenLocked   = 1 << 4
	FlagEnrolledFingerprints = 1 << 5
	FlagDenyNewUSB           = 1 << 6
	FlagDeviceAdminNonSystem = 1 << 7
)

// Flags is the decoded OS-enforced flag byte.
type Flags struct {
	UserProfileSecure    bool
	Accessibility        bool
	DeviceAdmin          bool
	DeviceAdminNonSystem bool
	ADBEnabled           bool
	AddUsersWhenLocked   bool
	EnrolledFingerprints bool
	DenyNewUSB           bool
}

// ParseFlags decodes the OS-enforced flag byte. A non-system device
// administrator without the device administrator bit is inconsistent and
// rejected.
func ParseFlags(b byte) (Flags, error) {
	f := Flags{
		UserProfileSecure:    b&FlagUserProfileSecure != 0,
		Accessibility:        b&FlagAccessibility != 0,
		DeviceAdmin:          b&FlagDeviceAdmin != 0,
		DeviceAdminNonSystem: b&FlagDeviceAdminNonSystem != 0,
		ADBEnabled:           b&FlagADBEnabled != 0,
		AddUsersWhenLocked:   b&FlagAddUsersWhenLocked != 0,
		EnrolledFingerprints: b&FlagEnrolledFingerprints != 0,
		DenyNewUSB:           b&FlagDenyNewUSB != 0,
	}
	if f.DeviceAdminNonSystem && !f.DeviceAdmin {
		return Flags{}, ErrInvalidFlags
	}
	return f, nil
}

// Message is a decoded attestation message.
//
// Chain holds the DER certificates carried on the wire, leaf first. The
// trailing Google root is not part of the wire format. SignedRange references
// the original payload bytes covering everything up to and including the
// OS-enforced flag byte; Signature covers the rest of the payload.
type Message struct {
	Version     byte
	Chain       [][]byte
	Fingerprint []byte
	Flags       Flags
	RawFlags    byte
	SignedRange []byte
	Signature   []byte
}
