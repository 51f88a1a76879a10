package utils_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SscSPs/takas_swap_engine/internal/utils"
	"github.com/SscSPs/takas_swap_engine/internal/utils/tokentest"
)

const testSecret = "test-secret-key-that-is-long-enough"

func TestAccessToken_RoundTrip(t *testing.T) {
	token, err := tokentest.Sign("user-1", "admin", testSecret, "takas-test", time.Hour)
	require.NoError(t, err)

	claims, err := utils.ParseAccessToken(token, testSecret, "takas-test")
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, "admin", claims.Role)

	// no issuer configured accepts any issuer
	_, err = utils.ParseAccessToken(token, testSecret, "")
	assert.NoError(t, err)
}

func TestParseAccessToken_Rejections(t *testing.T) {
	expired, _ := tokentest.Sign("user-1", "", testSecret, "takas-test", -time.Minute)
	_, err := utils.ParseAccessToken(expired, testSecret, "")
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)

	valid, _ := tokentest.Sign("user-1", "", testSecret, "takas-test", time.Hour)
	_, err = utils.ParseAccessToken(valid, "another-secret-of-enough-length", "")
	assert.ErrorIs(t, err, jwt.ErrTokenSignatureInvalid)

	_, err = utils.ParseAccessToken(valid, testSecret, "someone-else")
	assert.ErrorIs(t, err, jwt.ErrTokenInvalidIssuer)

	anonymous, _ := tokentest.Sign("", "", testSecret, "", time.Hour)
	_, err = utils.ParseAccessToken(anonymous, testSecret, "")
	assert.ErrorIs(t, err, utils.ErrMissingSubject)

	_, err = utils.ParseAccessToken("not.a.token", testSecret, "")
	assert.Error(t, err)
}
