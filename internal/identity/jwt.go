package identity

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// TokenClaims are the claims carried by development bearer tokens.
type TokenClaims struct {
	UserID  string   `json:"uid"`
	Contact string   `json:"contact,omitempty"`
	Roles   []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

// JWTVerifier issues and validates HS256 bearer tokens.
type JWTVerifier struct {
	signingKey []byte
	issuer     string
}

// NewJWTVerifier creates a verifier for tokens signed with signingKey.
// An empty issuer disables the issuer check.
func NewJWTVerifier(signingKey, issuer string) *JWTVerifier {
	return &JWTVerifier{
		signingKey: []byte(signingKey),
		issuer:     issuer,
	}
}

// GenerateSigningKey generates a random 256-bit signing key, hex encoded.
func GenerateSigningKey() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate signing key: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// Issue creates a signed token for userID valid for ttl.
func (v *JWTVerifier) Issue(userID, contact string, roles []string, ttl time.Duration) (string, error) {
	if userID == "" {
		return "", errors.New("user id is required")
	}
	now := time.Now()
	claims := TokenClaims{
		UserID:  userID,
		Contact: contact,
		Roles:   roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    v.issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.signingKey)
}

// Verify validates the token signature, lifetime and issuer.
func (v *JWTVerifier) Verify(_ context.Context, credential string) (*Caller, error) {
	token, err := jwt.ParseWithClaims(credential, &TokenClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.signingKey, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*TokenClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	if v.issuer != "" && !claims.VerifyIssuer(v.issuer, true) {
		return nil, fmt.Errorf("unexpected issuer %q", claims.Issuer)
	}
	if claims.UserID == "" {
		return nil, errors.New("token has no uid")
	}

	return &Caller{
		ID:      claims.UserID,
		Contact: NormalizeContact(claims.Contact),
		Roles:   claims.Roles,
	}, nil
}
