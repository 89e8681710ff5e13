// Package auth verifies session tokens issued by the external auth provider.
// The login flow itself lives outside this service; we only check signatures
// and extract the viewer identity.
package auth

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/jia-app/billingservice/internal/billing/domain"
)

// JWTValidator validates session JWT tokens
type JWTValidator struct {
	publicKey *rsa.PublicKey
}

// NewJWTValidator creates a new JWT validator from a PEM-encoded RSA public key
func NewJWTValidator(publicKeyPEM string) (*JWTValidator, error) {
	if publicKeyPEM == "" {
		return nil, fmt.Errorf("public key PEM is required")
	}

	block, _ := pem.Decode([]byte(publicKeyPEM))
	if block == nil {
		return nil, fmt.Errorf("failed to decode PEM block containing public key")
	}

	publicKey, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse public key: %w", err)
	}

	rsaPublicKey, ok := publicKey.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("public key is not an RSA key")
	}

	return &JWTValidator{publicKey: rsaPublicKey}, nil
}

// Validate verifies a session token and returns the viewer's user id from
// the subject claim.
func (v *JWTValidator) Validate(tokenString string) (domain.UserID, error) {
	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.publicKey, nil
	})
	if err != nil {
		return "", fmt.Errorf("invalid session token: %w", err)
	}

	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject == "" {
		return "", fmt.Errorf("session token has no subject")
	}

	return domain.UserID(claims.Subject), nil
}
