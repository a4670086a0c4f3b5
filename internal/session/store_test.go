package session

import (
	"encoding/hex"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewToken(t *testing.T) {
	tok, err := NewToken()
	require.NoError(t, err)
	require.Len(t, tok, 64, "32 random bytes, hex-encoded")
	_, err = hex.DecodeString(tok)
	require.NoError(t, err)

	other, err := NewToken()
	require.NoError(t, err)
	require.NotEqual(t, tok, other)
}

func TestSessionSnapshotRoundTrip(t *testing.T) {
	// The stored shape is what the resolver middleware hands to every
	// request; admin flag and identity must survive the redis round trip
	// byte-for-byte.
	in := Session{UserID: "user_1700000000_abc", Email: "ada@example.com", IsAdmin: true}
	body, err := json.Marshal(in)
	require.NoError(t, err)
	require.JSONEq(t, `{"user_id":"user_1700000000_abc","email":"ada@example.com","is_admin":true}`, string(body))

	var out Session
	require.NoError(t, json.Unmarshal(body, &out))
	require.Equal(t, in, out)
}
