package encryption

import "errors"

// ErrInvalidInput is the only construction-time failure: the engine
// refuses an empty key or an empty IV. Once constructed, Encrypt,
// Decrypt and Reset are total over all byte sequences.
var ErrInvalidInput = errors.New("encryption: key and IV must be non-empty")

// StreamCipher is the interface that all keyed stream engines must implement
type StreamCipher interface {
	// Encrypt transforms plaintext into ciphertext of equal length
	Encrypt(plaintext []byte) []byte

	// Decrypt transforms ciphertext back into plaintext of equal length
	Decrypt(ciphertext []byte) []byte

	// Reset restores the engine to its post-construction state
	Reset()

	// Close zeroes all key-derived state; the engine must not be used after
	Close()

	// MaskCount returns the number of keystream mask slots
	MaskCount() int

	// Name returns the algorithm name
	Name() string
}

const (
	// KamisadoMaskCount is the size of the mask table (slots 0..7)
	KamisadoMaskCount = 8
)

// Kamisado is a self-referential byte stream cipher: a small mask table
// seeded from the key and a single feedback byte ("current color") seeded
// from the IV jointly produce a data-dependent keystream. It is a didactic
// construction and makes no security claims.
type Kamisado struct {
	initial [KamisadoMaskCount]byte // key schedule output, restored on every reset
	masks   [KamisadoMaskCount]byte // working table, mutated per processed byte
	color   byte                    // feedback byte, follows the ciphertext
	seed    byte                    // first IV byte
}
