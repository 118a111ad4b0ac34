// Package store implements the durable device pinning store on SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	_ "github.com/ncruces/go-sqlite3/driver" // database/sql driver
	_ "github.com/ncruces/go-sqlite3/embed"  // sqlite WASM binary

	"github.com/copperhead/attestation-server/pkg/attest"
)

// StoreError is a typed error for persistence failures.
type StoreError string

func (e StoreError) Error() string { return string(e) }

const (
	// ErrAlreadyExists is returned when creating a pairing record for a
	// fingerprint that already has one.
	ErrAlreadyExists = StoreError("pairing record already exists")
	// ErrNotFound is returned when updating a pairing record that does not
	// exist.
	ErrNotFound = StoreError("pairing record not found")
)

// busyTimeoutMillis bounds how long a connection waits on a locked database
// before surfacing the error.
const busyTimeoutMillis = 5000

const schema = `
CREATE TABLE IF NOT EXISTS Devices (
	fingerprint BLOB PRIMARY KEY,
	pinned_certificate_0 BLOB NOT NULL,
	pinned_certificate_1 BLOB NOT NULL,
	pinned_certificate_2 BLOB NOT NULL,
	pinned_verified_boot_key BLOB NOT NULL,
	pinned_os_version INTEGER NOT NULL,
	pinned_os_patch_level INTEGER NOT NULL,
	pinned_app_version INTEGER NOT NULL,
	verified_time_first INTEGER NOT NULL,
	verified_time_last INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS Attestations (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	fingerprint BLOB NOT NULL,
	strong INTEGER NOT NULL,
	tee_enforced TEXT NOT NULL,
	os_enforced TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS Samples (
	sample BLOB NOT NULL
);
`

// Store wraps the SQLite database backing pairing, audit and sample data.
// Per-fingerprint writers are serialized through LockDevice.
type Store struct {
	db *sql.DB

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// Open creates or opens the database at path and applies the schema. The
// store uses a single non-pooled connection so transactions and pragmas
// behave predictably.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3",
		fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)", path, busyTimeoutMillis))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close() //nolint:errcheck
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{db: db, locks: make(map[string]*sync.Mutex)}, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// LockDevice acquires the lock serializing operations for one fingerprint.
// Locks are never evicted; the map is bounded by the number of devices seen.
func (s *Store) LockDevice(fingerprint []byte) func() {
	s.mu.Lock()
	lock, ok := s.locks[string(fingerprint)]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[string(fingerprint)] = lock
	}
	s.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}

// Get returns the pairing record for a fingerprint, or nil if the device has
// never paired.
func (s *Store) Get(ctx context.Context, fingerprint []byte) (*attest.PairingRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT pinned_certificate_0, pinned_certificate_1, pinned_certificate_2,
			pinned_verified_boot_key,
			pinned_os_version, pinned_os_patch_level, pinned_app_version,
			verified_time_first, verified_time_last
		FROM Devices WHERE fingerprint = ?`, fingerprint)

	var record attest.PairingRecord
	err := row.Scan(
		&record.PinnedCertificates[0], &record.PinnedCertificates[1], &record.PinnedCertificates[2],
		&record.PinnedVerifiedBootKey,
		&record.PinnedOSVersion, &record.PinnedOSPatchLevel, &record.PinnedAppVersion,
		&record.VerifiedTimeFirst, &record.VerifiedTimeLast)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query pairing record: %w", err)
	}
	return &record, nil
}

// Create inserts a first-pairing record. It fails with ErrAlreadyExists if
// the fingerprint is already pinned.
func (s *Store) Create(ctx context.Context, fingerprint []byte, record *attest.PairingRecord) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO Devices VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (fingerprint) DO NOTHING`,
		fingerprint,
		record.PinnedCertificates[0], record.PinnedCertificates[1], record.PinnedCertificates[2],
		record.PinnedVerifiedBootKey,
		record.PinnedOSVersion, record.PinnedOSPatchLevel, record.PinnedAppVersion,
		record.VerifiedTimeFirst, record.VerifiedTimeLast)
	if err != nil {
		return fmt.Errorf("insert pairing record: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert pairing record: %w", err)
	}
	if n == 0 {
		return ErrAlreadyExists
	}
	return nil
}

// UpdateMonotonic advances the version fields and the last verified time.
// MAX keeps the stored values monotonic even if a caller slipped through.
func (s *Store) UpdateMonotonic(ctx context.Context, fingerprint []byte, osVersion, osPatchLevel, appVersion int, now int64) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE Devices SET
			pinned_os_version = MAX(pinned_os_version, ?),
			pinned_os_patch_level = MAX(pinned_os_patch_level, ?),
			pinned_app_version = MAX(pinned_app_version, ?),
			verified_time_last = ?
		WHERE fingerprint = ?`,
		osVersion, osPatchLevel, appVersion, now, fingerprint)
	if err != nil {
		return fmt.Errorf("update pairing record: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update pairing record: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// AppendAudit appends one entry to the attestation audit log.
func (s *Store) AppendAudit(ctx context.Context, fingerprint []byte, strong bool, teeEnforced, osEnforced string) error {
	strongInt := 0
	if strong {
		strongInt = 1
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO Attestations VALUES (NULL, ?, ?, ?, ?)`,
		fingerprint, strongInt, teeEnforced, osEnforced)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// AuditEntry is one row of the attestation audit log.
type AuditEntry struct {
	ID          int64
	Fingerprint []byte
	Strong      bool
	TEEEnforced string
	OSEnforced  string
}

// AuditLog returns the audit entries for a fingerprint, oldest first.
func (s *Store) AuditLog(ctx context.Context, fingerprint []byte) ([]AuditEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, fingerprint, strong, tee_enforced, os_enforced
		FROM Attestations WHERE fingerprint = ? ORDER BY id`, fingerprint)
	if err != nil {
		return nil, fmt.Errorf("query audit log: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var entries []AuditEntry
	for rows.Next() {
		var e AuditEntry
		var strongInt int
		if err := rows.Scan(&e.ID, &e.Fingerprint, &strongInt, &e.TEEEnforced, &e.OSEnforced); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		e.Strong = strongInt != 0
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read audit log: %w", err)
	}
	return entries, nil
}

// InsertSample stores one submitted sample blob.
func (s *Store) InsertSample(ctx context.Context, sample []byte) error {
	if _, err := s.db.ExecContext(ctx, `INSERT INTO Samples VALUES (?)`, sample); err != nil {
		return fmt.Errorf("insert sample: %w", err)
	}
	return nil
}
