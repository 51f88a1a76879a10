package pagination

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeToken(t *testing.T) {
	createdAt := time.Date(2023, 5, 15, 14, 30, 45, 123456789, time.UTC)

	token := EncodeToken(createdAt, "swap-42")
	assert.NotEmpty(t, token, "Token should not be empty")

	cursor, err := DecodeToken(token)
	require.NoError(t, err)
	assert.Equal(t, createdAt, cursor.CreatedAt)
	assert.Equal(t, "swap-42", cursor.ID)

	// Non-UTC input is normalised
	local := time.Date(2024, 1, 2, 3, 4, 5, 0, time.FixedZone("X", 3*3600))
	cursor, err = DecodeToken(EncodeToken(local, "id"))
	require.NoError(t, err)
	assert.True(t, local.Equal(cursor.CreatedAt))
}

func TestDecodeTokenError(t *testing.T) {
	_, err := DecodeToken("this is not base64!")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "base64 decode")

	noSep := base64.RawURLEncoding.EncodeToString([]byte("2023-05-15T00:00:00Z"))
	_, err = DecodeToken(noSep)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "split")

	badDate := base64.RawURLEncoding.EncodeToString([]byte("notadate|abc"))
	_, err = DecodeToken(badDate)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "created_at parse")
}

func TestNextToken(t *testing.T) {
	type row struct {
		at time.Time
		id string
	}
	now := time.Now().UTC()
	rows := []row{{now, "a"}, {now.Add(-time.Second), "b"}}
	key := func(r row) (time.Time, string) { return r.at, r.id }

	assert.Nil(t, NextToken(rows, 3, key), "short page has no next token")

	tok := NextToken(rows, 2, key)
	require.NotNil(t, tok)
	cursor, err := DecodeToken(*tok)
	require.NoError(t, err)
	assert.Equal(t, "b", cursor.ID)
}
