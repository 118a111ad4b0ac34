package attest

import (
	"bytes"
	"crypto/x509"
	"fmt"
	"time"
)

// chainLength is the only chain length accepted by protocol version 1: the
// attestation leaf, two intermediates and the Google root.
const chainLength = 4

// verifyChain walks the certificate chain leaf first, checking each
// certificate's validity window and its signature against the next
// certificate's public key. The final certificate must be correctly
// self-signed and byte-identical to the pinned root. Nothing inside the
// attestation extension is trusted at this point.
func verifyChain(chain []*x509.Certificate, root *x509.Certificate, now time.Time) error {
	if len(chain) != chainLength {
		return ErrUnsupportedChainLength
	}
	for i := 0; i < len(chain)-1; i++ {
		if err := checkValidity(chain[i], now); err != nil {
			return fmt.Errorf("%w at index %d", err, i)
		}
		if err := chain[i].CheckSignatureFrom(chain[i+1]); err != nil {
			return fmt.Errorf("%w at index %d: %s", ErrChainSignature, i, err)
		}
	}

	last := chain[len(chain)-1]
	if err := checkValidity(last, now); err != nil {
		return fmt.Errorf("%w at index %d", err, len(chain)-1)
	}
	if err := last.CheckSignatureFrom(last); err != nil {
		return fmt.Errorf("%w: root is not correctly self-signed: %s", ErrChainSignature, err)
	}
	if !bytes.Equal(last.Raw, root.Raw) {
		return ErrRootMismatch
	}
	return nil
}

func checkValidity(cert *x509.Certificate, now time.Time) error {
	if now.Before(cert.NotBefore) || now.After(cert.NotAfter) {
		return ErrCertExpired
	}
	return nil
}
