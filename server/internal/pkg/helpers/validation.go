package helpers

import (
	"errors"

	"github.com/pwrmind/KamisadoCipher/server/internal/storage"
)

// UserGetter is the slice of the storage layer user validation needs
type UserGetter interface {
	GetUserByID(userID int64) (*storage.User, error)
}

// SecretGetter is the slice of the storage layer secret validation needs
type SecretGetter interface {
	GetSecret(secretID int64) (*storage.Secret, error)
}

// ValidateUserExists checks if a user exists in the database
func ValidateUserExists(db UserGetter, userID int64) (*storage.User, error) {
	if userID <= 0 {
		return nil, errors.New("invalid user ID")
	}

	user, err := db.GetUserByID(userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, errors.New("user not found")
	}

	return user, nil
}

// ValidateSecretOwner checks that a secret exists and belongs to the user
func ValidateSecretOwner(db SecretGetter, secretID, userID int64) (*storage.Secret, error) {
	if secretID <= 0 {
		return nil, errors.New("invalid secret ID")
	}

	secret, err := db.GetSecret(secretID)
	if err != nil {
		return nil, err
	}
	if secret == nil {
		return nil, errors.New("secret not found")
	}

	if secret.UserID != userID {
		return nil, errors.New("secret does not belong to user")
	}

	return secret, nil
}
