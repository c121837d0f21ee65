package db

import (
	"fmt"
	"time"

	"inmo-search/internal/models"
)

// GetUserByIdentifier looks up an active user by username or DNI. The login
// form accepts either.
func (db *DB) GetUserByIdentifier(ident string) (*models.User, error) {
	var u models.User
	query := "SELECT * FROM users WHERE (username = ? OR dni = ?) AND is_active = 1"
	if err := db.Get(&u, query, ident, ident); err != nil {
		return nil, fmt.Errorf("failed to get user %q: %w", ident, err)
	}
	return &u, nil
}

// CreateUser inserts a staff account. Used by the seed tool.
func (db *DB) CreateUser(u *models.User) error {
	res, err := db.Exec(
		"INSERT INTO users (username, dni, password_hash, is_staff, is_active, creado) VALUES (?, ?, ?, ?, ?, ?)",
		u.Username, u.DNI, u.PasswordHash, u.IsStaff, u.IsActive, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to create user %s: %w", u.Username, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read created user id: %w", err)
	}
	u.ID = id
	return nil
}

// CreateSession stores a login session.
func (db *DB) CreateSession(s *models.Session) error {
	s.Creado = time.Now().UTC()
	_, err := db.Exec(
		"INSERT INTO sessions (token, user_id, expires_at, creado) VALUES (?, ?, ?, ?)",
		s.Token, s.UserID, s.ExpiresAt, s.Creado,
	)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// GetSessionUser resolves a session token to its user. Expired sessions are
// treated as missing.
func (db *DB) GetSessionUser(token string) (*models.User, error) {
	var u models.User
	query := `
		SELECT u.* FROM users u
		JOIN sessions s ON s.user_id = u.id
		WHERE s.token = ? AND s.expires_at > ? AND u.is_active = 1
	`
	if err := db.Get(&u, query, token, time.Now().UTC()); err != nil {
		return nil, fmt.Errorf("failed to resolve session: %w", err)
	}
	return &u, nil
}

// DeleteSession removes a session token (logout).
func (db *DB) DeleteSession(token string) error {
	if _, err := db.Exec("DELETE FROM sessions WHERE token = ?", token); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// PurgeExpiredSessions clears sessions past their expiry.
func (db *DB) PurgeExpiredSessions() error {
	if _, err := db.Exec("DELETE FROM sessions WHERE expires_at <= ?", time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to purge sessions: %w", err)
	}
	return nil
}
