package storage

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

// DB wraps the database connection and provides query methods
type DB struct {
	conn *sql.DB
}

// Config contains database connection configuration
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// New creates a new database connection
func New(cfg Config) (*DB, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	conn, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	// Test the connection
	if err := conn.Ping(); err != nil {
		return nil, err
	}

	return &DB{conn: conn}, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// InitSchema creates all database tables
func (db *DB) InitSchema() error {
	schema := `
	-- Users table
	CREATE TABLE IF NOT EXISTS users (
		id BIGSERIAL PRIMARY KEY,
		username VARCHAR(255) UNIQUE NOT NULL,
		hashed_password VARCHAR(255) NOT NULL,
		created_at BIGINT NOT NULL DEFAULT EXTRACT(EPOCH FROM NOW())::BIGINT
	);

	-- Secrets table: ciphertext is the same length as the plaintext it
	-- replaces; the IV that seeded the engine is stored next to it
	CREATE TABLE IF NOT EXISTS secrets (
		id BIGSERIAL PRIMARY KEY,
		user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		name VARCHAR(255) NOT NULL,
		algorithm VARCHAR(50) NOT NULL,
		iv BYTEA NOT NULL,
		ciphertext BYTEA NOT NULL,
		created_at BIGINT NOT NULL DEFAULT EXTRACT(EPOCH FROM NOW())::BIGINT,
		UNIQUE(user_id, name)
	);

	-- Indexes for performance
	CREATE INDEX IF NOT EXISTS idx_secrets_user_id ON secrets(user_id);
	`

	_, err := db.conn.Exec(schema)
	return err
}

// User operations

// CreateUser creates a new user with hashed password
func (db *DB) CreateUser(username, hashedPassword string) (int64, error) {
	var id int64
	err := db.conn.QueryRow(
		"INSERT INTO users (username, hashed_password) VALUES ($1, $2) RETURNING id",
		username, hashedPassword,
	).Scan(&id)
	return id, err
}

// GetUserByID retrieves a user by ID
func (db *DB) GetUserByID(userID int64) (*User, error) {
	user := &User{}
	err := db.conn.QueryRow(
		"SELECT id, username, hashed_password, created_at FROM users WHERE id = $1",
		userID,
	).Scan(&user.ID, &user.Username, &user.HashedPassword, &user.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	return user, err
}

// GetUserByUsername retrieves a user by username
func (db *DB) GetUserByUsername(username string) (*User, error) {
	user := &User{}
	err := db.conn.QueryRow(
		"SELECT id, username, hashed_password, created_at FROM users WHERE username = $1",
		username,
	).Scan(&user.ID, &user.Username, &user.HashedPassword, &user.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	return user, err
}

// Secret operations

// CreateSecret stores an encrypted payload with its IV and the name of
// the algorithm that produced it
func (db *DB) CreateSecret(userID int64, name, algorithm string, iv, ciphertext []byte) (int64, error) {
	var id int64
	err := db.conn.QueryRow(
		"INSERT INTO secrets (user_id, name, algorithm, iv, ciphertext) VALUES ($1, $2, $3, $4, $5) RETURNING id",
		userID, name, algorithm, iv, ciphertext,
	).Scan(&id)
	return id, err
}

// GetSecret retrieves a secret by ID
func (db *DB) GetSecret(secretID int64) (*Secret, error) {
	secret := &Secret{}
	err := db.conn.QueryRow(
		"SELECT id, user_id, name, algorithm, iv, ciphertext, created_at FROM secrets WHERE id = $1",
		secretID,
	).Scan(&secret.ID, &secret.UserID, &secret.Name, &secret.Algorithm, &secret.IV, &secret.Ciphertext, &secret.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	return secret, err
}

// ListUserSecrets lists all secrets of a user, newest first, without payloads
func (db *DB) ListUserSecrets(userID int64) ([]*Secret, error) {
	rows, err := db.conn.Query(
		"SELECT id, user_id, name, algorithm, created_at FROM secrets WHERE user_id = $1 ORDER BY created_at DESC, id DESC",
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var secrets []*Secret
	for rows.Next() {
		secret := &Secret{}
		err := rows.Scan(&secret.ID, &secret.UserID, &secret.Name, &secret.Algorithm, &secret.CreatedAt)
		if err != nil {
			return nil, err
		}
		secrets = append(secrets, secret)
	}

	return secrets, rows.Err()
}

// DeleteSecret deletes a secret
func (db *DB) DeleteSecret(secretID int64) error {
	_, err := db.conn.Exec("DELETE FROM secrets WHERE id = $1", secretID)
	return err
}

// Data types

// User represents a user in the system
type User struct {
	ID             int64
	Username       string
	HashedPassword string
	CreatedAt      int64
}

// Secret represents a stored encrypted payload
type Secret struct {
	ID         int64  `json:"id"`
	UserID     int64  `json:"user_id"`
	Name       string `json:"name"`
	Algorithm  string `json:"algorithm"`
	IV         []byte `json:"-"`
	Ciphertext []byte `json:"-"`
	CreatedAt  int64  `json:"created_at"`
}
