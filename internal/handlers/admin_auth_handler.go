package handlers

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"aimint-backend/internal/dto"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/pquerna/otp/totp"
	"golang.org/x/crypto/bcrypt"
)

// AdminAuthHandler authenticates operators with password + TOTP. Credentials
// come from the environment: ADMIN_USERNAME, ADMIN_PASSWORD_HASH (bcrypt),
// ADMIN_TOTP_SECRET.
type AdminAuthHandler struct{}

type AdminJWTClaims = dto.AdminJWTClaims

// NewAdminAuthHandler creates the admin auth handler.
func NewAdminAuthHandler() *AdminAuthHandler {
	return &AdminAuthHandler{}
}

// LoginHandler verifies password and TOTP and issues an admin JWT.
func (h *AdminAuthHandler) LoginHandler(c *gin.Context) {
	var req dto.AdminLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": fmt.Sprintf("invalid request: %v", err)})
		return
	}

	username := os.Getenv("ADMIN_USERNAME")
	passwordHash := os.Getenv("ADMIN_PASSWORD_HASH")
	totpSecret := os.Getenv("ADMIN_TOTP_SECRET")
	if username == "" || passwordHash == "" || totpSecret == "" {
		log.Printf("⚠️ Admin login attempted but admin credentials are not configured")
		c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "message": "admin login not configured"})
		return
	}

	if req.Username != username {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "invalid credentials"})
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(req.Password)); err != nil {
		log.Printf("🚫 Admin login failed for %s: bad password", req.Username)
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "invalid credentials"})
		return
	}
	if !totp.Validate(req.TOTPCode, totpSecret) {
		log.Printf("🚫 Admin login failed for %s: bad TOTP code", req.Username)
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "invalid credentials"})
		return
	}

	token, err := generateAdminJWTToken(req.Username)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "token generation failed"})
		return
	}

	log.Printf("✅ Admin authenticated: %s", req.Username)
	c.JSON(http.StatusOK, gin.H{"success": true, "token": token})
}

func generateAdminJWTToken(username string) (string, error) {
	claims := AdminJWTClaims{
		Username: username,
		Role:     "admin",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(8 * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			NotBefore: jwt.NewNumericDate(time.Now()),
			Issuer:    "aimint-backend",
			Subject:   username,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(jwtSecret)
}

// ValidateAdminJWTToken parses and verifies an admin token.
func ValidateAdminJWTToken(tokenString string) (*AdminJWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &AdminJWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return jwtSecret, nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*AdminJWTClaims)
	if !ok || !token.Valid || claims.Role != "admin" {
		return nil, fmt.Errorf("invalid admin token")
	}
	return claims, nil
}
