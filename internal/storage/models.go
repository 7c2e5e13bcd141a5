package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/OctoberEnd/chatbox/internal/auth"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// LoadCredential returns the stored credential, if any.
// Satisfies auth.Store.
func (s *Store) LoadCredential() (auth.Credential, bool, error) {
	var cred auth.Credential
	var mode string
	err := s.db.QueryRow(
		"SELECT access_token, refresh_token, auth_mode FROM credentials WHERE id = 1",
	).Scan(&cred.AccessToken, &cred.RefreshToken, &mode)
	if err == sql.ErrNoRows {
		return auth.Credential{}, false, nil
	}
	if err != nil {
		return auth.Credential{}, false, fmt.Errorf("loading credential: %w", err)
	}
	cred.Mode = auth.Mode(mode)
	return cred, true, nil
}

// SaveCredential upserts the credential row. The access and refresh tokens
// are written in one statement inside a transaction so a refresh can never
// leave a split pair behind.
func (s *Store) SaveCredential(cred auth.Credential) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	_, err = tx.Exec(`INSERT INTO credentials (id, access_token, refresh_token, auth_mode, updated_at)
		VALUES (1, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			auth_mode = excluded.auth_mode,
			updated_at = excluded.updated_at`,
		cred.AccessToken, cred.RefreshToken, string(cred.Mode), time.Now().UTC())
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("saving credential: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing credential: %w", err)
	}
	return nil
}

// UploadRecord is one entry of the upload dedup cache.
type UploadRecord struct {
	SHA256     string
	FileID     string
	Name       string
	Size       int64
	UploadedAt time.Time
}

// LookupUpload returns the cached server file id for a content hash.
func (s *Store) LookupUpload(sha string) (UploadRecord, error) {
	var rec UploadRecord
	err := s.db.QueryRow(
		"SELECT sha256, file_id, name, size, uploaded_at FROM uploads WHERE sha256 = ?", sha,
	).Scan(&rec.SHA256, &rec.FileID, &rec.Name, &rec.Size, &rec.UploadedAt)
	if err == sql.ErrNoRows {
		return UploadRecord{}, ErrNotFound
	}
	if err != nil {
		return UploadRecord{}, fmt.Errorf("looking up upload: %w", err)
	}
	return rec, nil
}

// RecordUpload stores a completed upload in the dedup cache.
func (s *Store) RecordUpload(rec UploadRecord) error {
	if rec.UploadedAt.IsZero() {
		rec.UploadedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(`INSERT INTO uploads (sha256, file_id, name, size, uploaded_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(sha256) DO UPDATE SET
			file_id = excluded.file_id,
			name = excluded.name,
			size = excluded.size,
			uploaded_at = excluded.uploaded_at`,
		rec.SHA256, rec.FileID, rec.Name, rec.Size, rec.UploadedAt)
	if err != nil {
		return fmt.Errorf("recording upload: %w", err)
	}
	return nil
}
