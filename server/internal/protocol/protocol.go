package protocol

import (
	"time"
)

// EncryptionAlgorithm type for available algorithms
type EncryptionAlgorithm string

const (
	KAMISADO EncryptionAlgorithm = "KAMISADO"
)

// WebSocket deadlines
var (
	ReadDeadline  = time.Now().Add(time.Hour)
	WriteDeadline = time.Now().Add(time.Second * 10)
)

// User represents a registered user
type User struct {
	ID             int64
	Username       string
	HashedPassword string
	CreatedAt      int64
}

// Secret represents one stored vault entry. The ciphertext is a
// length-preserving Kamisado transform of the plaintext; the IV that
// seeded the engine is persisted next to it (the core itself defines no
// framing, so the IV rides here).
type Secret struct {
	ID         int64  `json:"id"`
	UserID     int64  `json:"user_id"`
	Name       string `json:"name"`
	Algorithm  string `json:"algorithm"`
	IV         []byte `json:"iv,omitempty"`
	Ciphertext []byte `json:"ciphertext,omitempty"`
	CreatedAt  int64  `json:"created_at"`
}

// StoreSecretRequest asks the vault to encrypt and persist a payload
type StoreSecretRequest struct {
	Name       string `json:"name"`
	Plaintext  string `json:"plaintext"`  // hex encoded
	Passphrase string `json:"passphrase"` // cipher key material, never stored
}

// RevealSecretRequest asks the vault to decrypt a stored payload
type RevealSecretRequest struct {
	Passphrase string `json:"passphrase"`
}

// SecretResponse represents a vault operation response
type SecretResponse struct {
	Success   bool   `json:"success"`
	SecretID  int64  `json:"secret_id,omitempty"`
	Name      string `json:"name,omitempty"`
	Plaintext string `json:"plaintext,omitempty"` // hex encoded, reveal only
	CreatedAt int64  `json:"created_at,omitempty"`
	Error     string `json:"error,omitempty"`
}

// ListSecretsResponse returns a user's vault entries without payloads
type ListSecretsResponse struct {
	Secrets []*Secret `json:"secrets"`
}

// CipherRequest drives the stateless /api/cipher endpoints
type CipherRequest struct {
	Key  string `json:"key"`  // hex encoded
	IV   string `json:"iv"`   // hex encoded
	Data string `json:"data"` // hex encoded
}

// CipherResponse carries the transformed bytes back
type CipherResponse struct {
	Result string `json:"result"` // hex encoded, same length as input
	Error  string `json:"error,omitempty"`
}

// WebSocketEvent represents a real-time event sent over WebSocket
type WebSocketEvent struct {
	Type      string      `json:"type"`    // "secret_stored", "secret_deleted", etc.
	UserID    int64       `json:"user_id"` // Target user ID, 0 broadcasts to all
	Data      interface{} `json:"data"`    // Event data
	Timestamp int64       `json:"timestamp"`
}

// SecretEvent data
type SecretEvent struct {
	SecretID  int64  `json:"secret_id"`
	Name      string `json:"name"`
	Action    string `json:"action"` // "stored", "deleted"
	Timestamp int64  `json:"timestamp"`
}

// SessionRequest is a client frame on the live cipher WebSocket channel
type SessionRequest struct {
	Type      string `json:"type"`    // "open", "encrypt", "decrypt", "close"
	SessionID string `json:"session"` // uuid assigned by "open"
	Key       string `json:"key"`     // hex encoded, "open" only
	IV        string `json:"iv"`      // hex encoded, "open" only
	Data      string `json:"data"`    // hex encoded payload
}

// SessionResponse is the server frame answering a SessionRequest
type SessionResponse struct {
	Type      string `json:"type"`
	SessionID string `json:"session,omitempty"`
	Data      string `json:"data,omitempty"` // hex encoded result
	Error     string `json:"error,omitempty"`
	Timestamp int64  `json:"timestamp"`
}
