//go:build js && wasm
// +build js,wasm

package encryption

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"syscall/js"
)

func bytesToHex(b []byte) string          { return hex.EncodeToString(b) }
func hexToBytes(s string) ([]byte, error) { return hex.DecodeString(s) }

func errorObject(msg string) js.Value {
	obj := js.Global().Get("Object").New()
	obj.Set("error", msg)
	return obj
}

func registerWasm() {
	// WasmCrypto.Encrypt(keyHex, ivHex, plaintextHex) -> {ciphertext, iv}
	// An empty ivHex asks the module to draw a random IV; it is returned
	// alongside the ciphertext so the caller can store it.
	encrypt := js.FuncOf(func(this js.Value, args []js.Value) any {
		if len(args) < 3 {
			return errorObject("insufficient args")
		}
		keyHex := args[0].String()
		ivHex := args[1].String()
		ptHex := args[2].String()

		key, err := hexToBytes(keyHex)
		if err != nil {
			return errorObject("invalid key hex")
		}
		pt, err := hexToBytes(ptHex)
		if err != nil {
			return errorObject("invalid plaintext hex")
		}

		var iv []byte
		if ivHex != "" {
			iv, err = hexToBytes(ivHex)
			if err != nil {
				return errorObject("invalid iv hex")
			}
		}
		if len(iv) == 0 {
			iv = make([]byte, 1)
			rand.Read(iv)
		}

		engine, err := NewKamisado(key, iv)
		if err != nil {
			return errorObject(err.Error())
		}
		defer engine.Close()

		out := engine.Encrypt(pt)

		result := js.Global().Get("Object").New()
		result.Set("ciphertext", bytesToHex(out))
		result.Set("iv", bytesToHex(iv))
		fmt.Println("[GO] Encrypt returning object with ciphertext and iv")
		return result
	})

	// WasmCrypto.Decrypt(keyHex, ivHex, ciphertextHex) -> {plaintext}
	decrypt := js.FuncOf(func(this js.Value, args []js.Value) any {
		if len(args) < 3 {
			return errorObject("insufficient args")
		}
		keyHex := args[0].String()
		ivHex := args[1].String()
		ctHex := args[2].String()

		key, err := hexToBytes(keyHex)
		if err != nil {
			return errorObject("invalid key hex")
		}
		iv, err := hexToBytes(ivHex)
		if err != nil {
			return errorObject("invalid iv hex")
		}
		ct, err := hexToBytes(ctHex)
		if err != nil {
			return errorObject("invalid ciphertext hex")
		}

		engine, err := NewKamisado(key, iv)
		if err != nil {
			return errorObject(err.Error())
		}
		defer engine.Close()

		out := engine.Decrypt(ct)

		result := js.Global().Get("Object").New()
		result.Set("plaintext", bytesToHex(out))
		fmt.Println("[GO] Decrypt returning object with plaintext")
		return result
	})

	// WasmCrypto.GenerateKey(length) -> {key}
	generateKey := js.FuncOf(func(this js.Value, args []js.Value) any {
		length := 32
		if len(args) > 0 && args[0].Type() == js.TypeNumber {
			length = args[0].Int()
		}
		if length < 1 {
			return errorObject("key length must be positive")
		}

		key := make([]byte, length)
		if _, err := rand.Read(key); err != nil {
			return errorObject("failed to generate key")
		}

		result := js.Global().Get("Object").New()
		result.Set("key", bytesToHex(key))
		return result
	})

	wasmObj := js.Global().Get("WasmCrypto")
	if wasmObj.Type() == js.TypeUndefined {
		wasmObj = js.Global().Get("Object").New()
		js.Global().Set("WasmCrypto", wasmObj)
	}
	wasmObj.Set("Encrypt", encrypt)
	wasmObj.Set("Decrypt", decrypt)
	wasmObj.Set("GenerateKey", generateKey)
}

// RegisterWasmFunctions registers all WASM functions with JavaScript
func RegisterWasmFunctions() {
	registerWasm()
}
