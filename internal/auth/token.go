// Package auth issues and verifies the bearer tokens that identify QR owners.
package auth

import (
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/qr-hub/internal/config"
)

// Issuer is written into the iss claim of locally issued tokens
const Issuer = "qr-hub"

var (
	// ErrInvalidToken is returned for any token that fails verification
	ErrInvalidToken = errors.New("invalid token")
	// ErrMissingSubject is returned for a valid token that names no user
	ErrMissingSubject = errors.New("token has no subject")
)

// Claims is the token payload. The subject is the owner id.
type Claims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Token is a freshly issued access token
type Token struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// TokenManager signs HS256 tokens and verifies HS, RS and ES tokens
type TokenManager struct {
	secret    []byte
	publicKey interface{}
	ttl       time.Duration
	now       func() time.Time
	ephemeral bool
}

// NewTokenManager builds a manager from config. Without a secret a random one is
// generated, so tokens do not survive a restart; Ephemeral reports this.
func NewTokenManager(cfg config.AuthConfig) (*TokenManager, error) {
	m := &TokenManager{
		secret: []byte(cfg.JWTSecret),
		ttl:    cfg.TokenTTL,
		now:    time.Now,
	}
	if m.ttl <= 0 {
		m.ttl = 24 * time.Hour
	}

	if len(m.secret) == 0 {
		buf := make([]byte, 32)
		if _, err := rand.Read(buf); err != nil {
			return nil, fmt.Errorf("failed to generate token secret: %w", err)
		}
		m.secret = []byte(hex.EncodeToString(buf))
		m.ephemeral = true
	}

	if cfg.JWTPublicKey != "" {
		key, err := ParsePublicKey(cfg.JWTPublicKey)
		if err != nil {
			return nil, err
		}
		m.publicKey = key
	}

	return m, nil
}

// Ephemeral reports whether the signing secret was generated at startup
func (m *TokenManager) Ephemeral() bool {
	return m.ephemeral
}

// Issue signs a token for userID
func (m *TokenManager) Issue(userID, email string) (*Token, error) {
	now := m.now().UTC()
	expiresAt := now.Add(m.ttl)

	claims := Claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}

	return &Token{
		AccessToken: signed,
		TokenType:   "bearer",
		ExpiresAt:   expiresAt.Truncate(time.Second),
	}, nil
}

// Verify checks the signature and expiry of tokenString and returns its claims
func (m *TokenManager) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, m.keyFunc,
		jwt.WithValidMethods([]string{"HS256", "HS384", "HS512", "RS256", "RS384", "RS512", "ES256", "ES384", "ES512"}),
		jwt.WithTimeFunc(m.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return nil, ErrMissingSubject
	}
	return claims, nil
}

func (m *TokenManager) keyFunc(token *jwt.Token) (interface{}, error) {
	switch token.Method.(type) {
	case *jwt.SigningMethodHMAC:
		return m.secret, nil
	case *jwt.SigningMethodRSA:
		if key, ok := m.publicKey.(*rsa.PublicKey); ok {
			return key, nil
		}
	case *jwt.SigningMethodECDSA:
		if key, ok := m.publicKey.(*ecdsa.PublicKey); ok {
			return key, nil
		}
	}
	return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
}

// ParsePublicKey parses a PEM-encoded RSA or ECDSA public key
func ParsePublicKey(pemKey string) (interface{}, error) {
	block, _ := pem.Decode([]byte(pemKey))
	if block == nil {
		return nil, errors.New("failed to decode PEM block containing public key")
	}

	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse public key: %w", err)
	}

	switch key := pub.(type) {
	case *rsa.PublicKey, *ecdsa.PublicKey:
		return key, nil
	default:
		return nil, fmt.Errorf("unsupported public key type %T", pub)
	}
}
