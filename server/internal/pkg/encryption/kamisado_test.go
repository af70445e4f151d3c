package encryption

import (
	"bytes"
	"crypto/rand"
	"errors"
	"math/big"
	"testing"
)

// Test key and IV matching the reference scenario
var (
	testKey = []byte("StrongKamisadoKey")
	testIV  = []byte{0x3F}
)

func randomBytes(t *testing.T, n int) []byte {
	t.Helper()
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		t.Fatalf("Failed to generate random bytes: %v", err)
	}
	return b
}

func randomLength(t *testing.T, max int64) int {
	t.Helper()
	n, err := rand.Int(rand.Reader, big.NewInt(max))
	if err != nil {
		t.Fatalf("Failed to generate random length: %v", err)
	}
	return int(n.Int64()) + 1
}

func TestKamisadoReferenceScenario(t *testing.T) {
	plaintext := []byte("Kamisado Secret!")

	enc, err := NewKamisado(testKey, testIV)
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}

	ciphertext := enc.Encrypt(plaintext)
	if len(ciphertext) != len(plaintext) {
		t.Fatalf("Ciphertext length %d, want %d", len(ciphertext), len(plaintext))
	}
	if bytes.Equal(ciphertext, plaintext) {
		t.Fatal("Ciphertext equals plaintext")
	}

	// Decryption on the same instance after an explicit reset
	enc.Reset()
	decrypted := enc.Decrypt(ciphertext)
	if !bytes.Equal(decrypted, plaintext) {
		t.Fatalf("Round-trip failed: expected %q, got %q", plaintext, decrypted)
	}
}

func TestKamisadoRoundTripFreshEngines(t *testing.T) {
	plaintext := []byte("Kamisado Secret!")

	enc, err := NewKamisado(testKey, testIV)
	if err != nil {
		t.Fatalf("Failed to create encrypting engine: %v", err)
	}
	dec, err := NewKamisado(testKey, testIV)
	if err != nil {
		t.Fatalf("Failed to create decrypting engine: %v", err)
	}

	if got := dec.Decrypt(enc.Encrypt(plaintext)); !bytes.Equal(got, plaintext) {
		t.Fatalf("Round-trip failed: expected %q, got %q", plaintext, got)
	}
}

func TestKamisadoRoundTripRandom(t *testing.T) {
	for i := 0; i < 25; i++ {
		key := randomBytes(t, randomLength(t, 64))
		iv := randomBytes(t, randomLength(t, 16))
		data := randomBytes(t, randomLength(t, 2048))

		engine, err := NewKamisado(key, iv)
		if err != nil {
			t.Fatalf("Failed to create engine: %v", err)
		}

		ciphertext := engine.Encrypt(data)
		if len(ciphertext) != len(data) {
			t.Fatalf("Length not preserved: got %d, want %d", len(ciphertext), len(data))
		}

		decrypted := engine.Decrypt(ciphertext)
		if !bytes.Equal(decrypted, data) {
			t.Fatalf("Round-trip failed for %d-byte input", len(data))
		}
	}
}

func TestKamisadoEmptyInput(t *testing.T) {
	engine, err := NewKamisado(testKey, testIV)
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}

	if out := engine.Encrypt(nil); len(out) != 0 {
		t.Fatalf("Encrypt of empty input returned %d bytes", len(out))
	}
	if out := engine.Decrypt([]byte{}); len(out) != 0 {
		t.Fatalf("Decrypt of empty input returned %d bytes", len(out))
	}

	// An empty pass must leave nothing behind but the reset itself
	if engine.masks != engine.initial {
		t.Fatal("Working mask table mutated by empty input")
	}
	if engine.color != testIV[0] {
		t.Fatal("Feedback byte mutated by empty input")
	}
}

// Every call resets internally, so back-to-back encrypts of the same
// plaintext on one instance must agree.
func TestKamisadoDeterminismWithoutReset(t *testing.T) {
	plaintext := []byte("repeatable keystream")

	engine, err := NewKamisado(testKey, testIV)
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}

	first := engine.Encrypt(plaintext)
	second := engine.Encrypt(plaintext)
	if !bytes.Equal(first, second) {
		t.Fatal("Repeated Encrypt calls diverged")
	}
}

func TestKamisadoKeySensitivity(t *testing.T) {
	plaintext := []byte("same plaintext, different keys")

	e1, err := NewKamisado([]byte("StrongKamisadoKey"), testIV)
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}
	e2, err := NewKamisado([]byte("strongKamisadoKey"), testIV)
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}

	if bytes.Equal(e1.Encrypt(plaintext), e2.Encrypt(plaintext)) {
		t.Fatal("Distinct keys produced identical ciphertext")
	}
}

// Only the first IV byte seeds the feedback state; trailing IV bytes must
// not change the ciphertext.
func TestKamisadoIVFirstByteOnly(t *testing.T) {
	plaintext := []byte("IV tail is ignored")

	short, err := NewKamisado(testKey, []byte{0xAA})
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}
	long, err := NewKamisado(testKey, []byte{0xAA, 0xBB})
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}

	if !bytes.Equal(short.Encrypt(plaintext), long.Encrypt(plaintext)) {
		t.Fatal("Ciphertext depends on IV bytes past the first")
	}
}

func TestKamisadoInvalidInput(t *testing.T) {
	if _, err := NewKamisado(nil, testIV); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("Empty key: got %v, want ErrInvalidInput", err)
	}
	if _, err := NewKamisado(testKey, nil); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("Empty IV: got %v, want ErrInvalidInput", err)
	}
	if _, err := NewKamisado([]byte{}, []byte{}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("Empty key and IV: got %v, want ErrInvalidInput", err)
	}
}

func TestKamisadoClose(t *testing.T) {
	engine, err := NewKamisado(testKey, testIV)
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}
	engine.Encrypt([]byte("wake the state up"))
	engine.Close()

	var zero [KamisadoMaskCount]byte
	if engine.masks != zero || engine.initial != zero {
		t.Fatal("Close left mask bytes behind")
	}
	if engine.color != 0 || engine.seed != 0 {
		t.Fatal("Close left feedback state behind")
	}
}

func TestKamisadoImplementsStreamCipher(t *testing.T) {
	engine, err := NewKamisado(testKey, testIV)
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}

	var cipher StreamCipher = engine
	if cipher.Name() != "KAMISADO" {
		t.Fatalf("Unexpected name %q", cipher.Name())
	}
	if cipher.MaskCount() != KamisadoMaskCount {
		t.Fatalf("Unexpected mask count %d", cipher.MaskCount())
	}
}

func BenchmarkKamisadoEncrypt(b *testing.B) {
	engine, err := NewKamisado(testKey, testIV)
	if err != nil {
		b.Fatalf("Failed to create engine: %v", err)
	}

	data := make([]byte, 1024)
	if _, err := rand.Read(data); err != nil {
		b.Fatalf("Failed to generate data: %v", err)
	}

	b.SetBytes(int64(len(data)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		engine.Encrypt(data)
	}
}
