// Package credstore persists the session token and user identity across
// restarts, under the fixed keys "token" and "user".
package credstore

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"

	"artclient/internal/domain"
	"artclient/internal/security"
)

const (
	keyToken = "token"
	keyUser  = "user"
)

// storedUser is the serialized identity half of a session; the token is
// stored separately so either can be read without the other.
type storedUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

// Store is a sqlite-backed domain.CredentialStore. Values are encrypted
// at rest with the device-derived key.
type Store struct {
	db  *sql.DB
	enc *security.Encryptor
}

// Open opens (creating if needed) the credential database at path.
func Open(path string, enc *security.Encryptor) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: open credential db: %v", domain.ErrStorageUnavailable, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: ping credential db: %v", domain.ErrStorageUnavailable, err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS credentials (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);`); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: migrate credential db: %v", domain.ErrStorageUnavailable, err)
	}
	return &Store{db: db, enc: enc}, nil
}

func (s *Store) Save(session domain.Session) error {
	userJSON, err := json.Marshal(storedUser{
		ID:       session.UserID,
		Username: session.Username,
		Role:     session.Role,
	})
	if err != nil {
		return fmt.Errorf("%w: marshal user: %v", domain.ErrStorageUnavailable, err)
	}

	encToken, err := s.enc.Encrypt(session.Token)
	if err != nil {
		return fmt.Errorf("%w: encrypt token: %v", domain.ErrStorageUnavailable, err)
	}
	encUser, err := s.enc.Encrypt(string(userJSON))
	if err != nil {
		return fmt.Errorf("%w: encrypt user: %v", domain.ErrStorageUnavailable, err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("%w: begin save: %v", domain.ErrStorageUnavailable, err)
	}
	defer tx.Rollback()

	const upsert = `INSERT INTO credentials (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value;`
	if _, err := tx.Exec(upsert, keyToken, encToken); err != nil {
		return fmt.Errorf("%w: save token: %v", domain.ErrStorageUnavailable, err)
	}
	if _, err := tx.Exec(upsert, keyUser, encUser); err != nil {
		return fmt.Errorf("%w: save user: %v", domain.ErrStorageUnavailable, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit save: %v", domain.ErrStorageUnavailable, err)
	}
	return nil
}

func (s *Store) Load() (domain.Session, bool, error) {
	token, ok, err := s.get(keyToken)
	if err != nil || !ok {
		return domain.Session{}, false, err
	}
	userRaw, ok, err := s.get(keyUser)
	if err != nil || !ok {
		return domain.Session{}, false, err
	}

	var u storedUser
	if err := json.Unmarshal([]byte(userRaw), &u); err != nil {
		// A corrupt record is indistinguishable from no record for callers.
		return domain.Session{}, false, nil
	}
	return domain.Session{
		UserID:   u.ID,
		Username: u.Username,
		Role:     u.Role,
		Token:    token,
	}, true, nil
}

func (s *Store) get(key string) (string, bool, error) {
	var enc string
	err := s.db.QueryRow(`SELECT value FROM credentials WHERE key = ?`, key).Scan(&enc)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("%w: read %s: %v", domain.ErrStorageUnavailable, key, err)
	}
	plain, err := s.enc.Decrypt(enc)
	if err != nil {
		// Wrong device secret or corrupted row; treat as absent.
		return "", false, nil
	}
	return plain, true, nil
}

func (s *Store) Clear() error {
	if _, err := s.db.Exec(`DELETE FROM credentials WHERE key IN (?, ?)`, keyToken, keyUser); err != nil {
		return fmt.Errorf("%w: clear credentials: %v", domain.ErrStorageUnavailable, err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
