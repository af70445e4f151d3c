package encryption

import (
	"crypto/sha256"
)

// kamisadoSBoxMask selects the 5 low bits of the old mask before the
// substitution lookup. The width is fixed at 5 bits and must match the
// table size; changing one without the other breaks reciprocity.
const kamisadoSBoxMask = 0x1F

// kamisadoSBox is the fixed substitution table for the mask update rule:
// the first 32 entries of the AES S-box. Any fixed non-linear 32-entry
// table works, but it must stay identical across encrypt and decrypt.
var kamisadoSBox = [32]byte{
	0x63, 0x7C, 0x77, 0x7B, 0xF2, 0x6B, 0x6F, 0xC5,
	0x30, 0x01, 0x67, 0x2B, 0xFE, 0xD7, 0xAB, 0x76,
	0xCA, 0x82, 0xC9, 0x7D, 0xFA, 0x59, 0x47, 0xF0,
	0xAD, 0xD4, 0xA2, 0xAF, 0x9C, 0xA4, 0x72, 0xC0,
}

// NewKamisado creates a new engine bound to one key and one IV. Only the
// first IV byte is used (it seeds the feedback state); longer IVs are
// accepted. The key schedule runs once, here.
func NewKamisado(key, iv []byte) (*Kamisado, error) {
	if len(key) == 0 || len(iv) == 0 {
		return nil, ErrInvalidInput
	}

	k := &Kamisado{
		initial: deriveMasks(key),
		seed:    iv[0],
	}
	k.Reset()
	return k, nil
}

// deriveMasks is the key schedule: the first 8 bytes of SHA-256(key)
// become the initial mask table. Deterministic in the key alone.
func deriveMasks(key []byte) [KamisadoMaskCount]byte {
	digest := sha256.Sum256(key)

	var masks [KamisadoMaskCount]byte
	copy(masks[:], digest[:KamisadoMaskCount])
	return masks
}

// MaskCount returns the number of mask slots
func (k *Kamisado) MaskCount() int {
	return KamisadoMaskCount
}

// Name returns the cipher name
func (k *Kamisado) Name() string {
	return "KAMISADO"
}

// Reset restores the working mask table from the initial table and
// re-seeds the feedback byte from the IV
func (k *Kamisado) Reset() {
	k.masks = k.initial
	k.color = k.seed
}

// Close zeroes both mask tables and the feedback state. Hardening only;
// the engine must not be used afterwards.
func (k *Kamisado) Close() {
	for i := range k.masks {
		k.masks[i] = 0
		k.initial[i] = 0
	}
	k.color = 0
	k.seed = 0
}

// Encrypt transforms plaintext into ciphertext of equal length. State is
// reset at the start of every call, so repeated calls on the same engine
// with the same input yield the same output.
func (k *Kamisado) Encrypt(plaintext []byte) []byte {
	return k.process(plaintext, false)
}

// Decrypt transforms ciphertext back into plaintext of equal length. Like
// Encrypt it resets state first, so one engine can run both directions.
func (k *Kamisado) Decrypt(ciphertext []byte) []byte {
	return k.process(ciphertext, true)
}

// process runs one full sequential pass over the input. The feedback byte
// always follows the ciphertext side: the output byte when encrypting, the
// input byte when decrypting. That symmetry is what makes the transform
// invertible. Positions cannot be processed in parallel because the mask
// written at position i is read at position i+1.
func (k *Kamisado) process(input []byte, decrypt bool) []byte {
	k.Reset()

	output := make([]byte, len(input))
	for i, in := range input {
		idx := selectIndex(k.color)
		mask := k.masks[idx]

		out := in ^ mask
		output[i] = out

		k.masks[idx] = updateMask(mask, idx)
		if decrypt {
			k.color = in
		} else {
			k.color = out
		}
	}

	return output
}

// selectIndex picks the next mask slot from the three low bits of the
// feedback byte
func selectIndex(color byte) byte {
	return color & 0x07
}

// updateMask replaces a just-used mask: substitute the 5 low bits through
// the S-box, rotate left one bit, fold in the slot index
func updateMask(old, index byte) byte {
	return rotl8(kamisadoSBox[old&kamisadoSBoxMask], 1) ^ index
}

// rotl8 rotates an 8-bit value left by n bits
func rotl8(x byte, n uint) byte {
	return x<<n | x>>(8-n)
}
