package handlers

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"aimint-backend/internal/dto"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

var jwtSecret = func() []byte {
	if v := os.Getenv("JWT_SECRET"); v != "" {
		return []byte(v)
	}
	return []byte("aimint-jwt-secret-dev")
}()

const (
	loginMessagePrefix = "Sign in to AI Mint Hub: "
	nonceTTL           = 5 * time.Minute
)

// nonceStore holds issued login nonces. Each nonce authenticates at most one
// login; consuming it removes it, so a captured signature cannot be replayed.
type nonceStore struct {
	mu     sync.Mutex
	issued map[string]time.Time // nonce -> expiry
}

func newNonceStore() *nonceStore {
	return &nonceStore{issued: make(map[string]time.Time)}
}

func (s *nonceStore) issue(nonce string) {
	s.mu.Lock()
	now := time.Now()
	for n, exp := range s.issued {
		if now.After(exp) {
			delete(s.issued, n)
		}
	}
	s.issued[nonce] = now.Add(nonceTTL)
	s.mu.Unlock()
}

// consume removes the nonce and reports whether it was live.
func (s *nonceStore) consume(nonce string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	exp, ok := s.issued[nonce]
	if !ok {
		return false
	}
	delete(s.issued, nonce)
	return time.Now().Before(exp)
}

// AuthHandler issues user JWTs against wallet signatures.
type AuthHandler struct {
	nonces *nonceStore
}

type JWTClaims = dto.JWTClaims

// NewAuthHandler creates the auth handler.
func NewAuthHandler() *AuthHandler {
	return &AuthHandler{nonces: newNonceStore()}
}

// GenerateNonceHandler returns a fresh login nonce the wallet must sign.
func (h *AuthHandler) GenerateNonceHandler(c *gin.Context) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "nonce generation failed"})
		return
	}
	nonce := hex.EncodeToString(buf)
	h.nonces.issue(nonce)
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"nonce":   nonce,
		"message": loginMessagePrefix + nonce,
	})
}

// AuthenticateHandler verifies a personal-sign signature over the login
// message and issues a JWT bound to the recovered address.
func (h *AuthHandler) AuthenticateHandler(c *gin.Context) {
	var req dto.AuthRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.AuthResponse{
			Success: false,
			Message: fmt.Sprintf("invalid request: %v", err),
		})
		return
	}

	if !h.validateSignature(req.Address, req.Message, req.Signature) {
		c.JSON(http.StatusUnauthorized, dto.AuthResponse{
			Success: false,
			Message: "signature verification failed",
		})
		return
	}

	// The signed message must carry a live nonce, consumed here so the same
	// signature can never log in twice.
	nonce := strings.TrimPrefix(req.Message, loginMessagePrefix)
	if nonce == req.Message || !h.nonces.consume(nonce) {
		c.JSON(http.StatusUnauthorized, dto.AuthResponse{
			Success: false,
			Message: "unknown or expired nonce",
		})
		return
	}

	token, err := GenerateJWTToken(strings.ToLower(req.Address))
	if err != nil {
		log.Printf("❌ JWT generation failed: %v", err)
		c.JSON(http.StatusInternalServerError, dto.AuthResponse{
			Success: false,
			Message: "token generation failed",
		})
		return
	}

	log.Printf("✅ User authenticated: %s", req.Address)
	c.JSON(http.StatusOK, dto.AuthResponse{
		Success: true,
		Token:   token,
		Message: "authenticated",
	})
}

// validateSignature recovers the signer of an EIP-191 personal-sign message
// and compares it to the claimed address.
func (h *AuthHandler) validateSignature(address, message, signature string) bool {
	sig, err := hexutil.Decode(signature)
	if err != nil || len(sig) != 65 {
		return false
	}
	// Wallets produce V as 27/28; crypto.SigToPub expects 0/1.
	if sig[64] >= 27 {
		sig[64] -= 27
	}

	msg := fmt.Sprintf("\x19Ethereum Signed Message:\n%d%s", len(message), message)
	digest := crypto.Keccak256([]byte(msg))

	pub, err := crypto.SigToPub(digest, sig)
	if err != nil {
		log.Printf("🔐 Signature recovery failed for %s: %v", address, err)
		return false
	}
	recovered := crypto.PubkeyToAddress(*pub)
	return strings.EqualFold(recovered.Hex(), address)
}

// GenerateJWTToken issues a 24h HS256 user token.
func GenerateJWTToken(address string) (string, error) {
	claims := JWTClaims{
		Address: address,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			NotBefore: jwt.NewNumericDate(time.Now()),
			Issuer:    "aimint-backend",
			Subject:   address,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(jwtSecret)
}

// ValidateJWTToken parses and verifies a user token.
func ValidateJWTToken(tokenString string) (*JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return jwtSecret, nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}
