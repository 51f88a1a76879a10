package pagination

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"
)

const timeFormat = time.RFC3339Nano // Use a precise time format

// Cursor is a keyset position: rows strictly older than (CreatedAt, ID) come next.
type Cursor struct {
	CreatedAt time.Time
	ID        string
}

// EncodeToken creates a base64 encoded token from a row's creation time and id.
// This is used for consistent pagination across different repositories.
func EncodeToken(createdAt time.Time, id string) string {
	tokenStr := fmt.Sprintf("%s|%s", createdAt.UTC().Format(timeFormat), id)
	return base64.RawURLEncoding.EncodeToString([]byte(tokenStr))
}

// DecodeToken parses the base64 encoded token back into a cursor.
func DecodeToken(token string) (Cursor, error) {
	decodedBytes, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return Cursor{}, fmt.Errorf("invalid pagination token format (base64 decode): %w", err)
	}
	parts := strings.SplitN(string(decodedBytes), "|", 2)
	if len(parts) != 2 || parts[1] == "" {
		return Cursor{}, fmt.Errorf("invalid pagination token format (split)")
	}

	createdAt, err := time.Parse(timeFormat, parts[0])
	if err != nil {
		return Cursor{}, fmt.Errorf("invalid pagination token format (created_at parse): %w", err)
	}

	return Cursor{CreatedAt: createdAt, ID: parts[1]}, nil
}

// NextToken returns the token for the page after items when the page is full.
func NextToken[T any](items []T, limit int, key func(T) (time.Time, string)) *string {
	if limit <= 0 || len(items) < limit {
		return nil
	}
	createdAt, id := key(items[len(items)-1])
	token := EncodeToken(createdAt, id)
	return &token
}
