package attest_test

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"encoding/hex"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/copperhead/attestation-server/pkg/attest"
	"github.com/copperhead/attestation-server/pkg/protocol"
	"github.com/stretchr/testify/require"
)

// Signature digests of the attestation app.
const (
	releaseDigestHex = "BE9FDEEE9EB474CEEB57B7795B75B0DFC0970EAA513574BC37A598E153916A8A"
	debugDigestHex   = "17727D8B61D55A864936B1A7B4A2554A15151F32EBCF44CDAA6E6C3258231890"
)

// DER helpers for building the key attestation extension by hand. The
// AuthorizationList fields use explicit context-specific tags in the
// high-tag-number form.

func derLength(n int) []byte {
	switch {
	case n < 0x80:
		return []byte{byte(n)}
	case n < 0x100:
		return []byte{0x81, byte(n)}
	default:
		return []byte{0x82, byte(n >> 8), byte(n)}
	}
}

func base128(tag int) []byte {
	var out []byte
	for tag > 0 {
		out = append([]byte{byte(tag & 0x7F)}, out...)
		tag >>= 7
	}
	for i := 0; i < len(out)-1; i++ {
		out[i] |= 0x80
	}
	return out
}

// contextExplicit wraps inner in a constructed context-specific element.
func contextExplicit(tag int, inner []byte) []byte {
	out := []byte{0xBF}
	out = append(out, base128(tag)...)
	out = append(out, derLength(len(inner))...)
	return append(out, inner...)
}

// sequence wraps the concatenated parts in a SEQUENCE.
func sequence(parts ...[]byte) []byte {
	content := bytes.Join(parts, nil)
	out := []byte{0x30}
	out = append(out, derLength(len(content))...)
	return append(out, content...)
}

func mustMarshal(t *testing.T, v any) []byte {
	t.Helper()
	der, err := asn1.Marshal(v)
	require.NoError(t, err)
	return der
}

type testPackageInfo struct {
	PackageName []byte
	Version     int
}

type testApplicationID struct {
	Packages         []testPackageInfo `asn1:"set"`
	SignatureDigests [][]byte          `asn1:"set"`
}

type testRootOfTrust struct {
	VerifiedBootKey   []byte
	DeviceLocked      bool
	VerifiedBootState asn1.Enumerated
}

// extensionParams describes the key attestation extension of a test leaf.
// defaultExtension returns values that pass every policy check.
type extensionParams struct {
	AttestationVersion       int
	AttestationSecurityLevel int
	KeymasterVersion         int
	KeymasterSecurityLevel   int
	Challenge                []byte

	PackageName      string
	AppVersion       int
	SignatureDigests [][]byte

	OSVersion         int
	OSPatchLevel      int
	Origin            int
	AllApplications   bool
	RollbackResistant bool
	OmitRootOfTrust   bool
	DeviceLocked      bool
	VerifiedBootState int
	VerifiedBootKey   []byte
}

func defaultExtension(challenge, bootKey []byte) extensionParams {
	releaseDigest, _ := hex.DecodeString(releaseDigestHex)
	return extensionParams{
		AttestationVersion:       2,
		AttestationSecurityLevel: 1,
		KeymasterVersion:         3,
		KeymasterSecurityLevel:   1,
		Challenge:                challenge,
		PackageName:              "co.copperhead.attestation",
		AppVersion:               10,
		SignatureDigests:         [][]byte{releaseDigest},
		OSVersion:                80000,
		OSPatchLevel:             201801,
		Origin:                   0,
		RollbackResistant:        true,
		DeviceLocked:             true,
		VerifiedBootState:        0,
		VerifiedBootKey:          bootKey,
	}
}

// buildExtension serializes an extensionParams as the key attestation
// extension value.
func buildExtension(t *testing.T, p extensionParams) []byte {
	t.Helper()

	appID := testApplicationID{
		Packages:         []testPackageInfo{{PackageName: []byte(p.PackageName), Version: p.AppVersion}},
		SignatureDigests: p.SignatureDigests,
	}
	appIDDER := mustMarshal(t, appID)
	software := sequence(contextExplicit(709, mustMarshal(t, appIDDER)))

	var teeParts [][]byte
	if p.AllApplications {
		teeParts = append(teeParts, contextExplicit(600, mustMarshal(t, asn1.NullRawValue)))
	}
	teeParts = append(teeParts, contextExplicit(702, mustMarshal(t, p.Origin)))
	if p.RollbackResistant {
		teeParts = append(teeParts, contextExplicit(703, mustMarshal(t, asn1.NullRawValue)))
	}
	if !p.OmitRootOfTrust {
		rot := testRootOfTrust{
			VerifiedBootKey:   p.VerifiedBootKey,
			DeviceLocked:      p.DeviceLocked,
			VerifiedBootState: asn1.Enumerated(p.VerifiedBootState),
		}
		teeParts = append(teeParts, contextExplicit(704, mustMarshal(t, rot)))
	}
	teeParts = append(teeParts, contextExplicit(705, mustMarshal(t, p.OSVersion)))
	teeParts = append(teeParts, contextExplicit(706, mustMarshal(t, p.OSPatchLevel)))
	tee := sequence(teeParts...)

	return sequence(
		mustMarshal(t, p.AttestationVersion),
		mustMarshal(t, asn1.Enumerated(p.AttestationSecurityLevel)),
		mustMarshal(t, p.KeymasterVersion),
		mustMarshal(t, asn1.Enumerated(p.KeymasterSecurityLevel)),
		mustMarshal(t, p.Challenge),
		mustMarshal(t, []byte{}),
		software,
		tee,
	)
}

var attestationExtensionOID = asn1.ObjectIdentifier{1, 3, 6, 1, 4, 1, 11129, 2, 1, 17}

// testChain holds the CA side of a generated attestation chain: a self-signed
// root, an intermediate and the device provisioning certificate. Leaves are
// minted per message.
type testChain struct {
	Root            *x509.Certificate
	Intermediate    *x509.Certificate
	Provisioning    *x509.Certificate
	ProvisioningKey *ecdsa.PrivateKey
}

func generateKey(t *testing.T) *ecdsa.PrivateKey {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	return key
}

func createCertificate(t *testing.T, template, parent *x509.Certificate, pub *ecdsa.PublicKey, signer *ecdsa.PrivateKey) *x509.Certificate {
	t.Helper()
	der, err := x509.CreateCertificate(rand.Reader, template, parent, pub, signer)
	require.NoError(t, err)
	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)
	return cert
}

func caTemplate(serial int64, cn string) *x509.Certificate {
	return &x509.Certificate{
		SerialNumber:          big.NewInt(serial),
		Subject:               pkix.Name{CommonName: cn},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(24 * time.Hour),
		IsCA:                  true,
		BasicConstraintsValid: true,
		KeyUsage:              x509.KeyUsageCertSign,
	}
}

func newTestChain(t *testing.T) *testChain {
	t.Helper()

	rootKey := generateKey(t)
	rootTemplate := caTemplate(1, "test attestation root")
	root := createCertificate(t, rootTemplate, rootTemplate, &rootKey.PublicKey, rootKey)

	intermediateKey := generateKey(t)
	intermediate := createCertificate(t, caTemplate(2, "test attestation intermediate"),
		root, &intermediateKey.PublicKey, rootKey)

	provisioningKey := generateKey(t)
	provisioning := createCertificate(t, caTemplate(3, "test device provisioning"),
		intermediate, &provisioningKey.PublicKey, intermediateKey)

	return &testChain{
		Root:            root,
		Intermediate:    intermediate,
		Provisioning:    provisioning,
		ProvisioningKey: provisioningKey,
	}
}

// mintLeaf creates a fresh attestation leaf carrying the given extension,
// returning the certificate and its private key.
func (tc *testChain) mintLeaf(t *testing.T, p extensionParams) (*x509.Certificate, *ecdsa.PrivateKey) {
	t.Helper()

	leafKey := generateKey(t)
	template := &x509.Certificate{
		SerialNumber: big.NewInt(time.Now().UnixNano()),
		Subject:      pkix.Name{CommonName: "Android Keystore Key"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtraExtensions: []pkix.Extension{{
			Id:    attestationExtensionOID,
			Value: buildExtension(t, p),
		}},
	}
	leaf := createCertificate(t, template, tc.Provisioning, &leafKey.PublicKey, tc.ProvisioningKey)
	return leaf, leafKey
}

// wireChain returns the three certificates as transmitted on the wire.
func (tc *testChain) wireChain(leaf *x509.Certificate) [][]byte {
	return [][]byte{leaf.Raw, tc.Provisioning.Raw, tc.Intermediate.Raw}
}

// signPayload assembles the full wire payload: signed range plus an ECDSA
// P-256 signature over its SHA-256 digest.
func signPayload(t *testing.T, signedRange []byte, key *ecdsa.PrivateKey) []byte {
	t.Helper()
	digest := sha256.Sum256(signedRange)
	sig, err := ecdsa.SignASN1(rand.Reader, key, digest[:])
	require.NoError(t, err)
	return append(append([]byte(nil), signedRange...), sig...)
}

func buildMessage(t *testing.T, chain [][]byte, fingerprint []byte, flags byte, signer *ecdsa.PrivateKey) []byte {
	t.Helper()
	signedRange, err := protocol.EncodeSignedRange(protocol.Version, chain, fingerprint, flags)
	require.NoError(t, err)
	return signPayload(t, signedRange, signer)
}

func fingerprintOf(cert *x509.Certificate) []byte {
	sum := sha256.Sum256(cert.Raw)
	return sum[:]
}

// fakePinningStore is the in-memory PinningStore used by orchestrator tests.
type fakePinningStore struct {
	lockMu sync.Mutex

	mu      sync.Mutex
	records map[string]*attest.PairingRecord
	audits  []fakeAuditEntry
}

type fakeAuditEntry struct {
	fingerprint []byte
	strong      bool
	teeEnforced string
	osEnforced  string
}

func newFakePinningStore() *fakePinningStore {
	return &fakePinningStore{records: make(map[string]*attest.PairingRecord)}
}

func (f *fakePinningStore) LockDevice([]byte) func() {
	f.lockMu.Lock()
	return f.lockMu.Unlock
}

func (f *fakePinningStore) Get(_ context.Context, fingerprint []byte) (*attest.PairingRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	record, ok := f.records[string(fingerprint)]
	if !ok {
		return nil, nil
	}
	clone := *record
	return &clone, nil
}

func (f *fakePinningStore) Create(_ context.Context, fingerprint []byte, record *attest.PairingRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.records[string(fingerprint)]; ok {
		return errAlreadyExists
	}
	clone := *record
	f.records[string(fingerprint)] = &clone
	return nil
}

func (f *fakePinningStore) UpdateMonotonic(_ context.Context, fingerprint []byte, osVersion, osPatchLevel, appVersion int, now int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	record, ok := f.records[string(fingerprint)]
	if !ok {
		return errNotFound
	}
	record.PinnedOSVersion = max(record.PinnedOSVersion, osVersion)
	record.PinnedOSPatchLevel = max(record.PinnedOSPatchLevel, osPatchLevel)
	record.PinnedAppVersion = max(record.PinnedAppVersion, appVersion)
	record.VerifiedTimeLast = now
	return nil
}

func (f *fakePinningStore) AppendAudit(_ context.Context, fingerprint []byte, strong bool, teeEnforced, osEnforced string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.audits = append(f.audits, fakeAuditEntry{
		fingerprint: append([]byte(nil), fingerprint...),
		strong:      strong,
		teeEnforced: teeEnforced,
		osEnforced:  osEnforced,
	})
	return nil
}

var (
	errAlreadyExists = fakeStoreError("record already exists")
	errNotFound      = fakeStoreError("record not found")
)

type fakeStoreError string

func (e fakeStoreError) Error() string { return string(e) }
