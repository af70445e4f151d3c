package gateway

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pwrmind/KamisadoCipher/server/internal/pkg/encryption"
	"github.com/pwrmind/KamisadoCipher/server/internal/protocol"
	"github.com/pwrmind/KamisadoCipher/server/internal/services/auth"
	"github.com/pwrmind/KamisadoCipher/server/internal/services/vault"
	"github.com/pwrmind/KamisadoCipher/server/internal/storage"
)

// fakeStore backs both the auth and vault services in tests
type fakeStore struct {
	nextUserID   int64
	nextSecretID int64
	users        map[string]*storage.User
	secrets      map[int64]*storage.Secret
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:   make(map[string]*storage.User),
		secrets: make(map[int64]*storage.Secret),
	}
}

func (f *fakeStore) CreateUser(username, hashedPassword string) (int64, error) {
	f.nextUserID++
	f.users[username] = &storage.User{ID: f.nextUserID, Username: username, HashedPassword: hashedPassword}
	return f.nextUserID, nil
}

func (f *fakeStore) GetUserByUsername(username string) (*storage.User, error) {
	return f.users[username], nil
}

func (f *fakeStore) GetUserByID(userID int64) (*storage.User, error) {
	for _, u := range f.users {
		if u.ID == userID {
			return u, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) CreateSecret(userID int64, name, algorithm string, iv, ciphertext []byte) (int64, error) {
	f.nextSecretID++
	f.secrets[f.nextSecretID] = &storage.Secret{
		ID: f.nextSecretID, UserID: userID, Name: name, Algorithm: algorithm,
		IV: append([]byte(nil), iv...), Ciphertext: append([]byte(nil), ciphertext...),
	}
	return f.nextSecretID, nil
}

func (f *fakeStore) GetSecret(secretID int64) (*storage.Secret, error) {
	return f.secrets[secretID], nil
}

func (f *fakeStore) ListUserSecrets(userID int64) ([]*storage.Secret, error) {
	var out []*storage.Secret
	for _, s := range f.secrets {
		if s.UserID == userID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeStore) DeleteSecret(secretID int64) error {
	delete(f.secrets, secretID)
	return nil
}

func newTestServer(t *testing.T) (*httptest.Server, string) {
	t.Helper()

	store := newFakeStore()
	authSvc := auth.New("test-secret", store)
	vaultSvc := vault.NewService(store, 1<<20)
	server := New("127.0.0.1:0", authSvc, vaultSvc)

	ts := httptest.NewServer(corsMiddleware(server.routes()))
	t.Cleanup(ts.Close)

	body := bytes.NewBufferString(`{"username":"alice","password":"password123"}`)
	resp, err := http.Post(ts.URL+"/api/auth/register", "application/json", body)
	if err != nil {
		t.Fatalf("Register request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Register returned status %d", resp.StatusCode)
	}

	var reg struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&reg); err != nil {
		t.Fatalf("Failed to decode register response: %v", err)
	}
	if reg.Token == "" {
		t.Fatal("Register returned no token")
	}

	return ts, reg.Token
}

func doJSON(t *testing.T, method, url, token string, payload interface{}, out interface{}) *http.Response {
	t.Helper()

	var body bytes.Buffer
	if payload != nil {
		if err := json.NewEncoder(&body).Encode(payload); err != nil {
			t.Fatalf("Failed to encode payload: %v", err)
		}
	}

	req, err := http.NewRequest(method, url, &body)
	if err != nil {
		t.Fatalf("Failed to build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("Failed to decode response: %v", err)
		}
	}
	return resp
}

func TestSecretLifecycle(t *testing.T) {
	ts, token := newTestServer(t)

	plaintext := []byte("Kamisado Secret!")
	var stored protocol.SecretResponse
	resp := doJSON(t, "POST", ts.URL+"/api/secrets", token, &protocol.StoreSecretRequest{
		Name:       "api-token",
		Plaintext:  hex.EncodeToString(plaintext),
		Passphrase: "StrongKamisadoKey",
	}, &stored)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Store returned status %d", resp.StatusCode)
	}
	if !stored.Success || stored.SecretID == 0 {
		t.Fatalf("Unexpected store response: %+v", stored)
	}

	var list protocol.ListSecretsResponse
	doJSON(t, "GET", ts.URL+"/api/secrets", token, nil, &list)
	if len(list.Secrets) != 1 || list.Secrets[0].Name != "api-token" {
		t.Fatalf("Unexpected listing: %+v", list.Secrets)
	}

	var revealed protocol.SecretResponse
	resp = doJSON(t, "POST", fmt.Sprintf("%s/api/secrets/%d/reveal", ts.URL, stored.SecretID), token,
		&protocol.RevealSecretRequest{Passphrase: "StrongKamisadoKey"}, &revealed)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Reveal returned status %d", resp.StatusCode)
	}
	got, err := hex.DecodeString(revealed.Plaintext)
	if err != nil {
		t.Fatalf("Reveal returned bad hex: %v", err)
	}
	if !bytes.Equal(got, plaintext) {
		t.Fatalf("Revealed %q, want %q", got, plaintext)
	}

	resp = doJSON(t, "DELETE", fmt.Sprintf("%s/api/secrets/%d", ts.URL, stored.SecretID), token, nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Delete returned status %d", resp.StatusCode)
	}

	list = protocol.ListSecretsResponse{}
	doJSON(t, "GET", ts.URL+"/api/secrets", token, nil, &list)
	if len(list.Secrets) != 0 {
		t.Fatalf("Listing not empty after delete: %+v", list.Secrets)
	}
}

func TestCipherEndpointsRoundTrip(t *testing.T) {
	ts, token := newTestServer(t)

	data := []byte("stateless engine access over HTTP")
	req := &protocol.CipherRequest{
		Key:  hex.EncodeToString([]byte("StrongKamisadoKey")),
		IV:   "3f",
		Data: hex.EncodeToString(data),
	}

	var enc protocol.CipherResponse
	resp := doJSON(t, "POST", ts.URL+"/api/cipher/encrypt", token, req, &enc)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Encrypt returned status %d", resp.StatusCode)
	}
	if len(enc.Result) != len(req.Data) {
		t.Fatalf("Ciphertext hex length %d, want %d", len(enc.Result), len(req.Data))
	}

	var dec protocol.CipherResponse
	doJSON(t, "POST", ts.URL+"/api/cipher/decrypt", token, &protocol.CipherRequest{
		Key: req.Key, IV: req.IV, Data: enc.Result,
	}, &dec)

	got, err := hex.DecodeString(dec.Result)
	if err != nil {
		t.Fatalf("Decrypt returned bad hex: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Fatalf("Round-trip through endpoints failed: got %q", got)
	}
}

func TestCipherEndpointRejectsEmptyKey(t *testing.T) {
	ts, token := newTestServer(t)

	resp := doJSON(t, "POST", ts.URL+"/api/cipher/encrypt", token, &protocol.CipherRequest{
		Key: "", IV: "3f", Data: "00",
	}, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("Empty key returned status %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
}

func TestUnauthorizedAccess(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := doJSON(t, "GET", ts.URL+"/api/secrets", "", nil, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("Missing token returned status %d", resp.StatusCode)
	}

	resp = doJSON(t, "GET", ts.URL+"/api/secrets", "not-a-jwt", nil, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("Bad token returned status %d", resp.StatusCode)
	}
}

func TestUserProfile(t *testing.T) {
	ts, token := newTestServer(t)

	var profile struct {
		UserID   int64  `json:"user_id"`
		Username string `json:"username"`
	}
	resp := doJSON(t, "GET", ts.URL+"/api/me", token, nil, &profile)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Profile returned status %d", resp.StatusCode)
	}
	if profile.Username != "alice" || profile.UserID == 0 {
		t.Fatalf("Unexpected profile: %+v", profile)
	}
}

func TestSessionFrames(t *testing.T) {
	client := &Client{sessions: make(map[string]*encryption.Kamisado)}

	opened := client.handleSession(&protocol.SessionRequest{
		Type: "open",
		Key:  hex.EncodeToString([]byte("StrongKamisadoKey")),
		IV:   "3f",
	})
	if opened.Type != "opened" || opened.SessionID == "" {
		t.Fatalf("Unexpected open response: %+v", opened)
	}

	data := []byte("live cipher session")
	encrypted := client.handleSession(&protocol.SessionRequest{
		Type:      "encrypt",
		SessionID: opened.SessionID,
		Data:      hex.EncodeToString(data),
	})
	if encrypted.Type != "encrypted" || encrypted.Error != "" {
		t.Fatalf("Unexpected encrypt response: %+v", encrypted)
	}

	decrypted := client.handleSession(&protocol.SessionRequest{
		Type:      "decrypt",
		SessionID: opened.SessionID,
		Data:      encrypted.Data,
	})
	got, err := hex.DecodeString(decrypted.Data)
	if err != nil {
		t.Fatalf("Decrypt frame returned bad hex: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Fatalf("Session round-trip failed: got %q", got)
	}

	if resp := client.handleSession(&protocol.SessionRequest{Type: "encrypt", SessionID: "nope"}); resp.Type != "error" {
		t.Fatalf("Unknown session accepted: %+v", resp)
	}

	closed := client.handleSession(&protocol.SessionRequest{Type: "close", SessionID: opened.SessionID})
	if closed.Type != "closed" {
		t.Fatalf("Unexpected close response: %+v", closed)
	}
	if len(client.sessions) != 0 {
		t.Fatal("Session survived close")
	}

	if resp := client.handleSession(&protocol.SessionRequest{Type: "open", Key: "", IV: "3f"}); resp.Type != "error" {
		t.Fatalf("Empty key accepted: %+v", resp)
	}
}
