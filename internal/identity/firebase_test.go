package identity

import (
	"context"
	"errors"
	"testing"

	"firebase.google.com/go/v4/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeIDTokens map[string]*auth.Token

func (f fakeIDTokens) VerifyIDToken(_ context.Context, idToken string) (*auth.Token, error) {
	tok, ok := f[idToken]
	if !ok {
		return nil, errors.New("token revoked")
	}
	return tok, nil
}

func TestFirebaseVerifier(t *testing.T) {
	v := &FirebaseVerifier{client: fakeIDTokens{
		"good": {UID: "uid-1", Claims: map[string]interface{}{"email": "Donor@Example.com", "admin": true}},
		"anon": {UID: ""},
	}}

	caller, err := v.Verify(context.Background(), "good")
	require.NoError(t, err)
	assert.Equal(t, &Caller{ID: "uid-1", Contact: "donor@example.com", Roles: []string{"admin"}}, caller)

	_, err = v.Verify(context.Background(), "anon")
	assert.Error(t, err)

	_, err = v.Verify(context.Background(), "revoked")
	assert.ErrorContains(t, err, "token revoked")
}

func TestCallerFromClaims(t *testing.T) {
	c := callerFromClaims("u", map[string]interface{}{
		"phone_number": "+1 555 010 0000",
		"role":         "coordinator",
		"roles":        []interface{}{"coordinator", "driver", 7},
		"admin":        false,
	})
	assert.Equal(t, "+15550100000", c.Contact)
	assert.Equal(t, []string{"coordinator", "driver"}, c.Roles)

	c = callerFromClaims("u", nil)
	assert.Equal(t, &Caller{ID: "u"}, c)
}

func TestCallerHasRole(t *testing.T) {
	var nilCaller *Caller
	assert.False(t, nilCaller.HasRole("admin"))
	assert.False(t, (&Caller{Roles: []string{"admin"}}).HasRole(""))
	assert.True(t, (&Caller{Roles: []string{"driver", "admin"}}).HasRole("admin"))
}
