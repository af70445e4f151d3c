// Gateway API implementation
package gateway

import (
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/pwrmind/KamisadoCipher/server/internal/pkg/encryption"
	"github.com/pwrmind/KamisadoCipher/server/internal/pkg/helpers"
	"github.com/pwrmind/KamisadoCipher/server/internal/protocol"
	"github.com/pwrmind/KamisadoCipher/server/internal/services/auth"
	"github.com/pwrmind/KamisadoCipher/server/internal/services/vault"
)

var log = helpers.NewLogger("gateway")

// Server represents the API gateway
type Server struct {
	addr       string
	authSvc    *auth.Service
	vaultSvc   *vault.Service
	mu         sync.RWMutex
	clients    map[*Client]bool
	broadcast  chan interface{}
	register   chan *Client
	unregister chan *Client
}

// Client represents a connected WebSocket client. Each client owns its
// live cipher sessions; sessions is only ever touched from readPump, so
// it needs no lock.
type Client struct {
	userID   int64
	conn     *websocket.Conn
	send     chan interface{}
	server   *Server
	sessions map[string]*encryption.Kamisado
}

// corsMiddleware adds CORS headers to all responses
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		// Handle preflight requests
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// extractToken extracts the token from "Bearer <token>" format
func extractToken(authHeader string) string {
	parts := strings.Fields(authHeader)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return ""
	}
	return parts[1]
}

// parseInt parses a route variable, returning 0 on malformed input
func parseInt(s string) int64 {
	n, _ := strconv.ParseInt(s, 10, 64)
	return n
}

// New creates a new gateway server
func New(addr string, authSvc *auth.Service, vaultSvc *vault.Service) *Server {
	server := &Server{
		addr:       addr,
		authSvc:    authSvc,
		vaultSvc:   vaultSvc,
		clients:    make(map[*Client]bool),
		broadcast:  make(chan interface{}, 1024), // Buffered channel to prevent blocking
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}

	vaultSvc.SetBroadcastHandler(func(event interface{}) {
		server.Broadcast(event)
	})

	return server
}

// Start starts the gateway server
func (s *Server) Start() error {
	// Start hub goroutine
	go s.runHub()

	log.Info("Gateway server listening on %s", s.addr)
	return http.ListenAndServe(s.addr, corsMiddleware(s.routes()))
}

// routes builds the HTTP router
func (s *Server) routes() *mux.Router {
	router := mux.NewRouter()

	// Root endpoint - return OK for health checks
	router.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("KamisadoCipher Vault API Server"))
	}).Methods("GET", "OPTIONS")

	// Auth endpoints
	router.HandleFunc("/api/auth/register", s.handleRegister).Methods("POST", "OPTIONS")
	router.HandleFunc("/api/auth/login", s.handleLogin).Methods("POST", "OPTIONS")
	router.HandleFunc("/api/me", s.handleMe).Methods("GET", "OPTIONS")

	// Vault endpoints - more specific routes first
	router.HandleFunc("/api/secrets", s.handleStoreSecret).Methods("POST", "OPTIONS")
	router.HandleFunc("/api/secrets", s.handleListSecrets).Methods("GET", "OPTIONS")
	router.HandleFunc("/api/secrets/{secretID}/reveal", s.handleRevealSecret).Methods("POST", "OPTIONS")
	router.HandleFunc("/api/secrets/{secretID}", s.handleDeleteSecret).Methods("DELETE", "OPTIONS")

	// Stateless cipher endpoints (no persistence, raw engine access)
	router.HandleFunc("/api/cipher/encrypt", s.handleCipherEncrypt).Methods("POST", "OPTIONS")
	router.HandleFunc("/api/cipher/decrypt", s.handleCipherDecrypt).Methods("POST", "OPTIONS")

	// WebSocket endpoint
	router.HandleFunc("/ws", s.handleWebSocket)

	return router
}

// Broadcast queues an event for delivery to connected clients
func (s *Server) Broadcast(event interface{}) {
	select {
	case s.broadcast <- event:
	default:
		log.Warn("Broadcast channel full, dropping event")
	}
}

// authenticate validates the Bearer token and returns the caller's claims
func (s *Server) authenticate(w http.ResponseWriter, r *http.Request) (*auth.Claims, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		http.Error(w, "Missing authorization token", http.StatusUnauthorized)
		return nil, false
	}

	token := extractToken(authHeader)
	if token == "" {
		http.Error(w, "Invalid authorization header format", http.StatusUnauthorized)
		return nil, false
	}

	claims, err := s.authSvc.ValidateToken(token)
	if err != nil {
		http.Error(w, "Invalid token", http.StatusUnauthorized)
		return nil, false
	}

	return claims, true
}

// handleRegister handles user registration
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	userID, err := s.authSvc.Register(req.Username, req.Password)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	token, err := s.authSvc.CreateToken(userID, req.Username)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"user_id":  userID,
		"token":    token,
		"username": req.Username,
	})
}

// handleLogin handles user login
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	token, err := s.authSvc.Login(req.Username, req.Password)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	claims, err := s.authSvc.ValidateToken(token)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"user_id":  claims.UserID,
		"username": claims.Username,
		"token":    token,
	})
}

// handleMe returns the profile of the authenticated user
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	claims, ok := s.authenticate(w, r)
	if !ok {
		return
	}

	user, err := s.authSvc.GetUser(claims.UserID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"user_id":    user.ID,
		"username":   user.Username,
		"created_at": user.CreatedAt,
	})
}

// Vault handlers

func (s *Server) handleStoreSecret(w http.ResponseWriter, r *http.Request) {
	claims, ok := s.authenticate(w, r)
	if !ok {
		return
	}

	var req protocol.StoreSecretRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	plaintext, err := hex.DecodeString(req.Plaintext)
	if err != nil {
		http.Error(w, "Invalid plaintext hex", http.StatusBadRequest)
		return
	}

	secretID, err := s.vaultSvc.StoreSecret(r.Context(), claims.UserID, req.Name, plaintext, req.Passphrase)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(&protocol.SecretResponse{
		Success:  true,
		SecretID: secretID,
		Name:     req.Name,
	})
}

func (s *Server) handleListSecrets(w http.ResponseWriter, r *http.Request) {
	claims, ok := s.authenticate(w, r)
	if !ok {
		return
	}

	secrets, err := s.vaultSvc.ListSecrets(r.Context(), claims.UserID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(&protocol.ListSecretsResponse{Secrets: secrets})
}

func (s *Server) handleRevealSecret(w http.ResponseWriter, r *http.Request) {
	claims, ok := s.authenticate(w, r)
	if !ok {
		return
	}

	var req protocol.RevealSecretRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	secretID := parseInt(mux.Vars(r)["secretID"])
	plaintext, secret, err := s.vaultSvc.RevealSecret(r.Context(), claims.UserID, secretID, req.Passphrase)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(&protocol.SecretResponse{
		Success:   true,
		SecretID:  secret.ID,
		Name:      secret.Name,
		Plaintext: hex.EncodeToString(plaintext),
		CreatedAt: secret.CreatedAt,
	})
}

func (s *Server) handleDeleteSecret(w http.ResponseWriter, r *http.Request) {
	claims, ok := s.authenticate(w, r)
	if !ok {
		return
	}

	secretID := parseInt(mux.Vars(r)["secretID"])
	if err := s.vaultSvc.DeleteSecret(r.Context(), claims.UserID, secretID); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(&protocol.SecretResponse{Success: true, SecretID: secretID})
}

// Cipher handlers

func (s *Server) handleCipherEncrypt(w http.ResponseWriter, r *http.Request) {
	s.handleCipher(w, r, false)
}

func (s *Server) handleCipherDecrypt(w http.ResponseWriter, r *http.Request) {
	s.handleCipher(w, r, true)
}

// handleCipher runs one stateless pass of the engine over the request
// payload. Nothing is persisted; the engine is zeroed before returning.
func (s *Server) handleCipher(w http.ResponseWriter, r *http.Request, decrypt bool) {
	if _, ok := s.authenticate(w, r); !ok {
		return
	}

	var req protocol.CipherRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	key, err := hex.DecodeString(req.Key)
	if err != nil {
		http.Error(w, "Invalid key hex", http.StatusBadRequest)
		return
	}
	iv, err := hex.DecodeString(req.IV)
	if err != nil {
		http.Error(w, "Invalid IV hex", http.StatusBadRequest)
		return
	}
	data, err := hex.DecodeString(req.Data)
	if err != nil {
		http.Error(w, "Invalid data hex", http.StatusBadRequest)
		return
	}

	engine, err := encryption.NewKamisado(key, iv)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	defer engine.Close()

	var result []byte
	if decrypt {
		result = engine.Decrypt(data)
	} else {
		result = engine.Encrypt(data)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(&protocol.CipherResponse{Result: hex.EncodeToString(result)})
}

// handleWebSocket handles WebSocket connections
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error("WebSocket upgrade failed", err)
		return
	}

	// Try to get token from query parameter first (preferred for WebSocket)
	token := r.URL.Query().Get("token")

	// Fall back to Authorization header if not in query
	if token == "" {
		token = extractToken(r.Header.Get("Authorization"))
	}

	if token == "" {
		log.Warn("WebSocket connection rejected: no token provided")
		conn.Close()
		return
	}

	claims, err := s.authSvc.ValidateToken(token)
	if err != nil {
		log.Warn("WebSocket connection rejected: invalid token")
		conn.Close()
		return
	}

	client := &Client{
		userID:   claims.UserID,
		conn:     conn,
		send:     make(chan interface{}, 256),
		server:   s,
		sessions: make(map[string]*encryption.Kamisado),
	}

	s.register <- client
	log.Info("WebSocket client connected: user %d", claims.UserID)

	// Start reading and writing goroutines
	go client.readPump()
	go client.writePump()
}

// runHub manages all connected clients
func (s *Server) runHub() {
	for {
		select {
		case client := <-s.register:
			s.mu.Lock()
			s.clients[client] = true
			s.mu.Unlock()

		case client := <-s.unregister:
			s.mu.Lock()
			if _, ok := s.clients[client]; ok {
				delete(s.clients, client)
				close(client.send)
			}
			s.mu.Unlock()
			log.Info("Client disconnected: user %d", client.userID)

		case message := <-s.broadcast:
			s.mu.RLock()
			// A WebSocketEvent with UserID != 0 goes only to that user,
			// on every connection they hold (multiple tabs)
			if wsEvent, ok := message.(*protocol.WebSocketEvent); ok && wsEvent.UserID != 0 {
				for c := range s.clients {
					if c.userID != wsEvent.UserID {
						continue
					}
					select {
					case c.send <- message:
					default:
						log.Warn("Send channel full for user %d, disconnecting", c.userID)
						go func(cl *Client) { s.unregister <- cl }(c)
					}
				}
			} else {
				for c := range s.clients {
					select {
					case c.send <- message:
					default:
						go func(cl *Client) { s.unregister <- cl }(c)
					}
				}
			}
			s.mu.RUnlock()
		}
	}
}

// readPump reads frames from the WebSocket connection and drives the
// client's live cipher sessions
func (c *Client) readPump() {
	defer func() {
		c.closeSessions()
		c.server.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(protocol.ReadDeadline)
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		var req protocol.SessionRequest
		if err := c.conn.ReadJSON(&req); err != nil {
			break
		}
		select {
		case c.send <- c.handleSession(&req):
		default:
			return
		}
	}
}

// handleSession processes one cipher-session frame
func (c *Client) handleSession(req *protocol.SessionRequest) *protocol.SessionResponse {
	now := time.Now().Unix()

	switch req.Type {
	case "open":
		key, err := hex.DecodeString(req.Key)
		if err != nil {
			return sessionError(req, "invalid key hex", now)
		}
		iv, err := hex.DecodeString(req.IV)
		if err != nil {
			return sessionError(req, "invalid iv hex", now)
		}

		engine, err := encryption.NewKamisado(key, iv)
		if err != nil {
			return sessionError(req, err.Error(), now)
		}

		sessionID := uuid.NewString()
		c.sessions[sessionID] = engine
		return &protocol.SessionResponse{Type: "opened", SessionID: sessionID, Timestamp: now}

	case "encrypt", "decrypt":
		engine, ok := c.sessions[req.SessionID]
		if !ok {
			return sessionError(req, "unknown session", now)
		}
		data, err := hex.DecodeString(req.Data)
		if err != nil {
			return sessionError(req, "invalid data hex", now)
		}

		var result []byte
		if req.Type == "decrypt" {
			result = engine.Decrypt(data)
		} else {
			result = engine.Encrypt(data)
		}
		return &protocol.SessionResponse{
			Type:      req.Type + "ed",
			SessionID: req.SessionID,
			Data:      hex.EncodeToString(result),
			Timestamp: now,
		}

	case "close":
		if engine, ok := c.sessions[req.SessionID]; ok {
			engine.Close()
			delete(c.sessions, req.SessionID)
		}
		return &protocol.SessionResponse{Type: "closed", SessionID: req.SessionID, Timestamp: now}

	default:
		return sessionError(req, "unknown frame type", now)
	}
}

func sessionError(req *protocol.SessionRequest, msg string, now int64) *protocol.SessionResponse {
	return &protocol.SessionResponse{
		Type:      "error",
		SessionID: req.SessionID,
		Error:     msg,
		Timestamp: now,
	}
}

// closeSessions zeroes every engine the client still holds
func (c *Client) closeSessions() {
	for id, engine := range c.sessions {
		engine.Close()
		delete(c.sessions, id)
	}
}

// writePump writes messages to the WebSocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				// Channel closed
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
