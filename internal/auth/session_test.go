// internal/auth/session_test.go
package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateAndAuthenticateJWT(t *testing.T) {
	require.NoError(t, Init(0))

	token, err := CreateJWT("player-1")
	require.NoError(t, err)

	sub, err := AuthenticateJWT(token)
	require.NoError(t, err)
	assert.Equal(t, "player-1", sub)

	_, err = AuthenticateJWT(token + "x")
	assert.Error(t, err)
	_, err = AuthenticateJWT("not-a-token")
	assert.Error(t, err)
}

func TestTokenFromOldKeyIsRejected(t *testing.T) {
	require.NoError(t, Init(0))
	token, err := CreateJWT("player-1")
	require.NoError(t, err)

	require.NoError(t, Init(0))
	_, err = AuthenticateJWT(token)
	assert.Error(t, err)
}

func TestExpiredToken(t *testing.T) {
	require.NoError(t, Init(-time.Minute))
	token, err := CreateJWT("player-1")
	require.NoError(t, err)
	_, err = AuthenticateJWT(token)
	assert.Error(t, err)
}

func TestParseTokenExpireTime(t *testing.T) {
	for _, v := range []string{"", "0", "never"} {
		d, err := ParseTokenExpireTime(v)
		require.NoError(t, err)
		assert.Zero(t, d)
	}
	d, err := ParseTokenExpireTime("72h")
	require.NoError(t, err)
	assert.Equal(t, 72*time.Hour, d)
	_, err = ParseTokenExpireTime("soon")
	assert.Error(t, err)
}

func TestBearerToken(t *testing.T) {
	tok, err := BearerToken("Bearer abc.def")
	require.NoError(t, err)
	assert.Equal(t, "abc.def", tok)

	tok, err = BearerToken("bearer xyz")
	require.NoError(t, err)
	assert.Equal(t, "xyz", tok)

	_, err = BearerToken("")
	assert.ErrorIs(t, err, ErrNoToken)
	_, err = BearerToken("Basic abc")
	assert.ErrorIs(t, err, ErrNoToken)
}
