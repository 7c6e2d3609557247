// Package auth validates and mints the HS256 bearer tokens that identify
// callers. Tokens carry the caller id, role hint and optional member id.
package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const defaultIssuer = "propertydesk"

var (
	jwtSecret     string
	jwtSecretOnce sync.Once
	jwtSecretErr  error

	issuerMu sync.RWMutex
	issuer   = defaultIssuer
)

// Claims represents the JWT claims structure
type Claims struct {
	UserID   string `json:"user_id"`
	Email    string `json:"email,omitempty"`
	Name     string `json:"name,omitempty"`
	Role     string `json:"role,omitempty"`
	MemberID string `json:"member_id,omitempty"`
	jwt.RegisteredClaims
}

// Identity is the caller information embedded in a minted token.
type Identity struct {
	UserID   string
	Email    string
	Name     string
	Role     string
	MemberID string
}

// SetIssuer overrides the issuer written to and expected in tokens.
func SetIssuer(iss string) {
	if iss == "" {
		iss = defaultIssuer
	}
	issuerMu.Lock()
	issuer = iss
	issuerMu.Unlock()
}

func currentIssuer() string {
	issuerMu.RLock()
	defer issuerMu.RUnlock()
	return issuer
}

// isDevMode mirrors middleware.IsDevMode without importing it.
func isDevMode() bool {
	devMode := os.Getenv("DEV_MODE")
	ginMode := os.Getenv("GIN_MODE")
	return devMode == "true" || devMode == "1" || ginMode == "debug"
}

func generateRandomSecret() string {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("dev-fallback-%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(bytes)
}

// ValidateJWTSecret checks that PD_JWT_SECRET is configured. In dev mode a
// random secret is generated instead. Call this at application startup.
func ValidateJWTSecret() error {
	jwtSecretOnce.Do(func() {
		secret := os.Getenv("PD_JWT_SECRET")

		if secret == "" {
			if isDevMode() {
				jwtSecret = generateRandomSecret()
				log.Printf("WARNING: PD_JWT_SECRET not set. Using auto-generated secret for development.")
			} else {
				jwtSecretErr = errors.New("SECURITY ERROR: PD_JWT_SECRET environment variable is required in production. " +
					"Generate a secure secret with: openssl rand -hex 32")
			}
			return
		}

		if len(secret) < 32 {
			log.Printf("WARNING: PD_JWT_SECRET is shorter than recommended 32 characters.")
		}
		jwtSecret = secret
	})

	return jwtSecretErr
}

// GetJWTSecret retrieves the validated JWT secret.
// Panics if the secret cannot be validated.
func GetJWTSecret() string {
	if jwtSecret == "" {
		if err := ValidateJWTSecret(); err != nil {
			panic(err)
		}
	}
	return jwtSecret
}

// GenerateJWT signs a token for id that expires after expiresIn (1h when zero).
func GenerateJWT(id Identity, expiresIn time.Duration) (string, error) {
	if id.UserID == "" {
		return "", errors.New("user id is required")
	}
	if expiresIn == 0 {
		expiresIn = time.Hour
	}

	now := time.Now()
	claims := &Claims{
		UserID:   id.UserID,
		Email:    id.Email,
		Name:     id.Name,
		Role:     id.Role,
		MemberID: id.MemberID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(expiresIn)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    currentIssuer(),
			Subject:   id.UserID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(GetJWTSecret()))
}

// ValidateJWT parses and validates a token, enforcing the HMAC signing
// method and the configured issuer.
func ValidateJWT(tokenString string) (*Claims, error) {
	secret := GetJWTSecret()

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	}, jwt.WithIssuer(currentIssuer()))
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}

	claims, ok := token.Claims.(*Claims)
	if !ok {
		return nil, errors.New("invalid claims type")
	}
	if claims.UserID == "" {
		return nil, errors.New("token has no user id")
	}
	return claims, nil
}
