package protocol

import (
	"bytes"
	"compress/flate"
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// Decode parses a serialized attestation message.
//
// Wire layout, big-endian:
//
//	version:          u8
//	compressedLen:    u16
//	compressedChain:  compressedLen bytes of raw DEFLATE with a preset dictionary
//	fingerprint:      32 bytes
//	osEnforcedFlags:  u8
//	signature:        rest of payload
//
// The inflated chain is a concatenation of [u16 length][DER certificate]
// records. Decode splits framing only; it does not look inside the
// certificates.
func Decode(payload []byte) (*Message, error) {
	if len(payload) > MaxMessageSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrMessageTooLarge, len(payload))
	}
	if len(payload) < 3 {
		return nil, ErrTruncatedMessage
	}
	version := payload[0]
	if version > Version {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, version)
	}

	compressedLen := int(binary.BigEndian.Uint16(payload[1:3]))
	rest := payload[3:]
	if len(rest) < compressedLen {
		return nil, ErrTruncatedMessage
	}
	encodedChain, err := inflateChain(rest[:compressedLen])
	if err != nil {
		return nil, err
	}
	chain, err := splitChain(encodedChain)
	if err != nil {
		return nil, err
	}
	rest = rest[compressedLen:]

	if len(rest) < FingerprintLength+1 {
		return nil, ErrTruncatedMessage
	}
	fingerprint := rest[:FingerprintLength]
	rawFlags := rest[FingerprintLength]
	flags, err := ParseFlags(rawFlags)
	if err != nil {
		return nil, err
	}

	signature := rest[FingerprintLength+1:]
	if len(signature) == 0 {
		return nil, ErrTruncatedMessage
	}

	return &Message{
		Version:     version,
		Chain:       chain,
		Fingerprint: fingerprint,
		Flags:       flags,
		RawFlags:    rawFlags,
		SignedRange: payload[:len(payload)-len(signature)],
		Signature:   signature,
	}, nil
}

// inflateChain decompresses the raw DEFLATE stream using the preset
// dictionary. Decompression must finish within maxEncodedChainLength bytes.
func inflateChain(compressed []byte) ([]byte, error) {
	r := flate.NewReaderDict(bytes.NewReader(compressed), deflateDictionary)
	defer r.Close() //nolint:errcheck

	out := make([]byte, maxEncodedChainLength+1)
	n, err := io.ReadFull(r, out)
	switch {
	case err == nil:
		// Output filled past the budget before the stream finished.
		return nil, ErrChainTooLarge
	case err == io.EOF, err == io.ErrUnexpectedEOF:
		return out[:n], nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrTruncatedMessage, err)
	}
}

// splitChain splits the inflated chain into its DER certificate records.
func splitChain(encoded []byte) ([][]byte, error) {
	var chain [][]byte
	for len(encoded) > 0 {
		if len(encoded) < 2 {
			return nil, ErrTruncatedMessage
		}
		certLen := int(binary.BigEndian.Uint16(encoded))
		encoded = encoded[2:]
		if len(encoded) < certLen {
			return nil, ErrTruncatedMessage
		}
		chain = append(chain, encoded[:certLen])
		encoded = encoded[certLen:]
	}
	return chain, nil
}

// EncodeSignedRange serializes the signed portion of an attestation message:
// everything up to and including the flag byte. The caller signs the result
// and appends the signature to form the full payload.
func EncodeSignedRange(version byte, chain [][]byte, fingerprint []byte, flags byte) ([]byte, error) {
	if len(fingerprint) != FingerprintLength {
		return nil, fmt.Errorf("fingerprint must be %d bytes, got %d", FingerprintLength, len(fingerprint))
	}

	var encodedChain bytes.Buffer
	for _, cert := range chain {
		if len(cert) > math.MaxUint16 {
			return nil, fmt.Errorf("certificate too large: %d bytes", len(cert))
		}
		var certLen [2]byte
		binary.BigEndian.PutUint16(certLen[:], uint16(len(cert)))
		encodedChain.Write(certLen[:])
		encodedChain.Write(cert)
	}
	if encodedChain.Len() > maxEncodedChainLength {
		return nil, ErrChainTooLarge
	}

	var compressed bytes.Buffer
	w, err := flate.NewWriterDict(&compressed, flate.BestCompression, deflateDictionary)
	if err != nil {
		return nil, fmt.Errorf("create deflate writer: %w", err)
	}
	if _, err := w.Write(encodedChain.Bytes()); err != nil {
		return nil, fmt.Errorf("compress chain: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("compress chain: %w", err)
	}

	var out bytes.Buffer
	out.WriteByte(version)
	var compressedLen [2]byte
	binary.BigEndian.PutUint16(compressedLen[:], uint16(compressed.Len()))
	out.Write(compressedLen[:])
	out.Write(compressed.Bytes())
	out.Write(fingerprint)
	out.WriteByte(flags)
	return out.Bytes(), nil
}

// EncodeChallengeMessage serializes a challenge frame for the Auditee:
// the maximum supported protocol version followed by the challenge index and
// the challenge itself.
func EncodeChallengeMessage(index, challenge []byte) []byte {
	out := make([]byte, 0, 1+len(index)+len(challenge))
	out = append(out, Version)
	out = append(out, index...)
	out = append(out, challenge...)
	return out
}
