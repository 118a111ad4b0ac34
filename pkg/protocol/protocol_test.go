package protocol_test

import (
	"crypto/rand"
	"encoding/binary"
	"testing"

	"github.com/copperhead/attestation-server/pkg/protocol"
	"github.com/stretchr/testify/require"
)

func randomBytes(t *testing.T, n int) []byte {
	t.Helper()
	b := make([]byte, n)
	_, err := rand.Read(b)
	require.NoError(t, err)
	return b
}

// buildPayload assembles a full wire message from its parts.
func buildPayload(t *testing.T, chain [][]byte, fingerprint []byte, flags byte, signature []byte) []byte {
	t.Helper()
	signedRange, err := protocol.EncodeSignedRange(protocol.Version, chain, fingerprint, flags)
	require.NoError(t, err)
	return append(signedRange, signature...)
}

func TestDecodeRoundTrip(t *testing.T) {
	t.Parallel()

	chain := [][]byte{
		randomBytes(t, 600),
		randomBytes(t, 500),
		randomBytes(t, 700),
	}
	fingerprint := randomBytes(t, protocol.FingerprintLength)
	signature := randomBytes(t, 70)
	flags := byte(protocol.FlagUserProfileSecure | protocol.FlagEnrolledFingerprints)

	payload := buildPayload(t, chain, fingerprint, flags, signature)
	require.LessOrEqual(t, len(payload), protocol.MaxMessageSize)

	msg, err := protocol.Decode(payload)
	require.NoError(t, err)

	require.Equal(t, byte(protocol.Version), msg.Version)
	require.Len(t, msg.Chain, len(chain))
	for i := range chain {
		require.Equal(t, chain[i], msg.Chain[i])
	}
	require.Equal(t, fingerprint, msg.Fingerprint)
	require.Equal(t, flags, msg.RawFlags)
	require.True(t, msg.Flags.UserProfileSecure)
	require.True(t, msg.Flags.EnrolledFingerprints)
	require.False(t, msg.Flags.ADBEnabled)
	require.Equal(t, signature, msg.Signature)
	require.Equal(t, payload[:len(payload)-len(signature)], msg.SignedRange)
}

func TestDecodeUnsupportedVersion(t *testing.T) {
	t.Parallel()

	payload := buildPayload(t, [][]byte{randomBytes(t, 100)},
		randomBytes(t, protocol.FingerprintLength), 0, randomBytes(t, 64))
	payload[0] = protocol.Version + 1

	_, err := protocol.Decode(payload)
	require.ErrorIs(t, err, protocol.ErrUnsupportedVersion)
}

func TestDecodeMessageTooLarge(t *testing.T) {
	t.Parallel()

	_, err := protocol.Decode(make([]byte, protocol.MaxMessageSize+1))
	require.ErrorIs(t, err, protocol.ErrMessageTooLarge)
}

func TestDecodeTruncated(t *testing.T) {
	t.Parallel()

	payload := buildPayload(t, [][]byte{randomBytes(t, 100)},
		randomBytes(t, protocol.FingerprintLength), 0, randomBytes(t, 64))

	t.Run("empty", func(t *testing.T) {
		t.Parallel()
		_, err := protocol.Decode(nil)
		require.ErrorIs(t, err, protocol.ErrTruncatedMessage)
	})

	t.Run("compressed chain cut short", func(t *testing.T) {
		t.Parallel()
		compressedLen := binary.BigEndian.Uint16(payload[1:3])
		_, err := protocol.Decode(payload[:3+int(compressedLen)-1])
		require.ErrorIs(t, err, protocol.ErrTruncatedMessage)
	})

	t.Run("missing signature", func(t *testing.T) {
		t.Parallel()
		_, err := protocol.Decode(payload[:len(payload)-64])
		require.ErrorIs(t, err, protocol.ErrTruncatedMessage)
	})

	t.Run("missing fingerprint", func(t *testing.T) {
		t.Parallel()
		_, err := protocol.Decode(payload[:len(payload)-64-protocol.FingerprintLength-1])
		require.ErrorIs(t, err, protocol.ErrTruncatedMessage)
	})
}

func TestDecodeInvalidFlags(t *testing.T) {
	t.Parallel()

	// A non-system device admin flag without the device admin flag is
	// inconsistent.
	flags := byte(protocol.FlagDeviceAdminNonSystem)
	payload := buildPayload(t, [][]byte{randomBytes(t, 100)},
		randomBytes(t, protocol.FingerprintLength), flags, randomBytes(t, 64))

	_, err := protocol.Decode(payload)
	require.ErrorIs(t, err, protocol.ErrInvalidFlags)
}

func TestDecodeAcceptsConsistentDeviceAdminFlags(t *testing.T) {
	t.Parallel()

	flags := byte(protocol.FlagDeviceAdmin | protocol.FlagDeviceAdminNonSystem)
	payload := buildPayload(t, [][]byte{randomBytes(t, 100)},
		randomBytes(t, protocol.FingerprintLength), flags, randomBytes(t, 64))

	msg, err := protocol.Decode(payload)
	require.NoError(t, err)
	require.True(t, msg.Flags.DeviceAdmin)
	require.True(t, msg.Flags.DeviceAdminNonSystem)
}

func TestEncodeRejectsOversizedChain(t *testing.T) {
	t.Parallel()

	_, err := protocol.EncodeSignedRange(protocol.Version,
		[][]byte{randomBytes(t, 1600), randomBytes(t, 1600)},
		randomBytes(t, protocol.FingerprintLength), 0)
	require.ErrorIs(t, err, protocol.ErrChainTooLarge)
}

func TestEncodeChallengeMessage(t *testing.T) {
	t.Parallel()

	index := randomBytes(t, protocol.ChallengeLength)
	challenge := randomBytes(t, protocol.ChallengeLength)
	msg := protocol.EncodeChallengeMessage(index, challenge)

	require.Len(t, msg, 1+2*protocol.ChallengeLength)
	require.Equal(t, byte(protocol.Version), msg[0])
	require.Equal(t, index, msg[1:1+protocol.ChallengeLength])
	require.Equal(t, challenge, msg[1+protocol.ChallengeLength:])
}
