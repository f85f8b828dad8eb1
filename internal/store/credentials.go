package store

import (
	"database/sql"
	"errors"
	"time"

	"github.com/matheus3301/koichat/internal/chat"
)

// SaveCredentials stores the logged-in identity, replacing any previous one.
func (db *DB) SaveCredentials(id chat.Identity, apiURL string) error {
	_, err := db.Exec(`
		INSERT INTO credentials (id, user_id, token, role, full_name, username, api_url, saved_at)
		VALUES (1, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			user_id = excluded.user_id,
			token = excluded.token,
			role = excluded.role,
			full_name = excluded.full_name,
			username = excluded.username,
			api_url = excluded.api_url,
			saved_at = excluded.saved_at`,
		id.UserID, id.Token, id.Role, id.FullName, id.Username, apiURL, time.Now().UnixMilli())
	return err
}

// LoadCredentials returns the stored identity, or nil when logged out.
func (db *DB) LoadCredentials() (*Credentials, error) {
	var c Credentials
	err := db.QueryRow(`
		SELECT user_id, token, role, full_name, username, api_url, saved_at
		FROM credentials WHERE id = 1`).Scan(
		&c.Identity.UserID, &c.Identity.Token, &c.Identity.Role,
		&c.Identity.FullName, &c.Identity.Username, &c.APIURL, &c.SavedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ClearCredentials forgets the stored identity.
func (db *DB) ClearCredentials() error {
	_, err := db.Exec(`DELETE FROM credentials`)
	return err
}
