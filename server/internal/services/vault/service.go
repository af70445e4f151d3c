package vault

import (
	"context"
	"crypto/rand"
	"fmt"
	"time"

	"github.com/pwrmind/KamisadoCipher/server/internal/pkg/encryption"
	"github.com/pwrmind/KamisadoCipher/server/internal/pkg/helpers"
	"github.com/pwrmind/KamisadoCipher/server/internal/protocol"
	"github.com/pwrmind/KamisadoCipher/server/internal/storage"
)

var log = helpers.NewLogger("vault")

// ivSize is how many random IV bytes are stored per secret. The engine
// only consumes the first byte; the rest is slack kept for compatibility
// with longer-IV engines behind the same seam.
const ivSize = 8

// Store defines the persistence interface
type Store interface {
	CreateSecret(userID int64, name, algorithm string, iv, ciphertext []byte) (int64, error)
	GetSecret(secretID int64) (*storage.Secret, error)
	ListUserSecrets(userID int64) ([]*storage.Secret, error)
	DeleteSecret(secretID int64) error
}

// Service implements the secret vault on top of the Kamisado engine.
// A fresh engine is constructed per operation, so concurrent requests
// never share cipher state.
type Service struct {
	store            Store
	maxSecretBytes   int
	broadcastHandler func(event interface{})
}

// NewService creates a new vault service
func NewService(store Store, maxSecretBytes int) *Service {
	return &Service{
		store:          store,
		maxSecretBytes: maxSecretBytes,
	}
}

// SetBroadcastHandler sets the callback for broadcasting events
func (s *Service) SetBroadcastHandler(handler func(event interface{})) {
	s.broadcastHandler = handler
}

// StoreSecret encrypts a payload under the passphrase and persists the
// ciphertext with the IV that seeded the engine. The passphrase itself is
// never stored; without it the stored bytes cannot be reversed.
func (s *Service) StoreSecret(ctx context.Context, userID int64, name string, plaintext []byte, passphrase string) (int64, error) {
	if name == "" {
		return 0, fmt.Errorf("secret name cannot be empty")
	}
	if s.maxSecretBytes > 0 && len(plaintext) > s.maxSecretBytes {
		return 0, fmt.Errorf("secret exceeds %d bytes", s.maxSecretBytes)
	}

	iv := make([]byte, ivSize)
	if _, err := rand.Read(iv); err != nil {
		return 0, fmt.Errorf("failed to generate IV: %w", err)
	}

	engine, err := encryption.NewKamisado([]byte(passphrase), iv)
	if err != nil {
		return 0, err
	}
	defer engine.Close()

	ciphertext := engine.Encrypt(plaintext)

	secretID, err := s.store.CreateSecret(userID, name, engine.Name(), iv, ciphertext)
	if err != nil {
		log.Error("Failed to save secret", err)
		return 0, err
	}

	log.Info("Stored secret: id=%d, user_id=%d, %d bytes", secretID, userID, len(ciphertext))
	s.notify(userID, secretID, name, "stored")

	return secretID, nil
}

// RevealSecret loads a stored secret and decrypts it with an engine
// rebuilt from the passphrase and the stored IV. The cipher carries no
// integrity check, so a wrong passphrase yields garbage bytes rather
// than an error.
func (s *Service) RevealSecret(ctx context.Context, userID, secretID int64, passphrase string) ([]byte, *storage.Secret, error) {
	secret, err := helpers.ValidateSecretOwner(s.store, secretID, userID)
	if err != nil {
		return nil, nil, err
	}

	engine, err := encryption.NewKamisado([]byte(passphrase), secret.IV)
	if err != nil {
		return nil, nil, err
	}
	defer engine.Close()

	plaintext := engine.Decrypt(secret.Ciphertext)

	log.Debug("Revealed secret: id=%d, user_id=%d", secretID, userID)
	return plaintext, secret, nil
}

// ListSecrets returns a user's vault entries without payloads
func (s *Service) ListSecrets(ctx context.Context, userID int64) ([]*protocol.Secret, error) {
	secrets, err := s.store.ListUserSecrets(userID)
	if err != nil {
		return nil, err
	}

	result := make([]*protocol.Secret, 0, len(secrets))
	for _, sec := range secrets {
		result = append(result, &protocol.Secret{
			ID:        sec.ID,
			UserID:    sec.UserID,
			Name:      sec.Name,
			Algorithm: sec.Algorithm,
			CreatedAt: sec.CreatedAt,
		})
	}

	return result, nil
}

// DeleteSecret removes a secret after an ownership check
func (s *Service) DeleteSecret(ctx context.Context, userID, secretID int64) error {
	secret, err := helpers.ValidateSecretOwner(s.store, secretID, userID)
	if err != nil {
		return err
	}

	if err := s.store.DeleteSecret(secretID); err != nil {
		log.Error("Failed to delete secret", err)
		return err
	}

	log.Info("Deleted secret: id=%d, user_id=%d", secretID, userID)
	s.notify(userID, secretID, secret.Name, "deleted")

	return nil
}

// notify pushes a targeted vault event to the WebSocket hub
func (s *Service) notify(userID, secretID int64, name, action string) {
	if s.broadcastHandler == nil {
		return
	}

	now := time.Now().Unix()
	s.broadcastHandler(&protocol.WebSocketEvent{
		Type:      "secret_" + action,
		UserID:    userID,
		Timestamp: now,
		Data: &protocol.SecretEvent{
			SecretID:  secretID,
			Name:      name,
			Action:    action,
			Timestamp: now,
		},
	})
}
