package identity

import (
	"context"
	"fmt"

	"firebase.google.com/go/v4/auth"
)

// idTokenVerifier is the part of *auth.Client the verifier needs.
type idTokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error)
}

// FirebaseVerifier validates Firebase ID tokens. Roles come from the custom
// claims "role" (string), "roles" (list) and "admin" (bool, maps to the
// "admin" role).
type FirebaseVerifier struct {
	client idTokenVerifier
}

// NewFirebaseVerifier wraps a Firebase Auth client.
func NewFirebaseVerifier(client *auth.Client) *FirebaseVerifier {
	return &FirebaseVerifier{client: client}
}

// Verify checks the ID token and returns the caller it identifies.
func (v *FirebaseVerifier) Verify(ctx context.Context, credential string) (*Caller, error) {
	token, err := v.client.VerifyIDToken(ctx, credential)
	if err != nil {
		return nil, fmt.Errorf("invalid Firebase token: %w", err)
	}
	if token.UID == "" {
		return nil, fmt.Errorf("invalid Firebase token: empty uid")
	}
	return callerFromClaims(token.UID, token.Claims), nil
}

func callerFromClaims(uid string, claims map[string]interface{}) *Caller {
	c := &Caller{ID: uid}

	if email, ok := claims["email"].(string); ok && email != "" {
		c.Contact = NormalizeContact(email)
	} else if phone, ok := claims["phone_number"].(string); ok {
		c.Contact = NormalizeContact(phone)
	}

	if role, ok := claims["role"].(string); ok && role != "" {
		c.Roles = append(c.Roles, role)
	}
	if roles, ok := claims["roles"].([]interface{}); ok {
		for _, r := range roles {
			if s, ok := r.(string); ok && s != "" && !c.HasRole(s) {
				c.Roles = append(c.Roles, s)
			}
		}
	}
	if admin, ok := claims["admin"].(bool); ok && admin && !c.HasRole("admin") {
		c.Roles = append(c.Roles, "admin")
	}
	return c
}
