package utils

import (
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/blake2b"

	"github.com/SscSPs/takas_swap_engine/internal/core/domain"
)

// ErrInvalidQRToken is returned for tokens that are malformed or carry a bad MAC.
var ErrInvalidQRToken = errors.New("invalid QR token")

const macBytes = 16

// QRClaims is what a verified token binds to.
type QRClaims struct {
	SwapID string
	Side   domain.LegSide
}

// QRSigner issues and verifies leg-bound QR tokens of the form swapID.side.nonce.mac,
// where mac is a keyed BLAKE2b over the first three fields.
type QRSigner struct {
	key []byte
}

// NewQRSigner creates a signer. The key must be 1 to 64 bytes.
func NewQRSigner(secret string) (*QRSigner, error) {
	if len(secret) == 0 || len(secret) > blake2b.Size {
		return nil, fmt.Errorf("QR signing secret must be between 1 and %d bytes", blake2b.Size)
	}
	return &QRSigner{key: []byte(secret)}, nil
}

func (s *QRSigner) mac(payload string) (string, error) {
	h, err := blake2b.New(macBytes, s.key)
	if err != nil {
		return "", fmt.Errorf("failed to init mac: %w", err)
	}
	h.Write([]byte(payload))
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Issue creates a fresh token for one leg of a swap.
func (s *QRSigner) Issue(swapID string, side domain.LegSide) (string, error) {
	nonce, err := GenerateSecureRandomString(12)
	if err != nil {
		return "", err
	}
	payload := strings.Join([]string{swapID, string(side), nonce}, ".")
	mac, err := s.mac(payload)
	if err != nil {
		return "", err
	}
	return payload + "." + mac, nil
}

// Verify checks the MAC and returns the leg the token is bound to.
func (s *QRSigner) Verify(token string) (QRClaims, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 4 {
		return QRClaims{}, ErrInvalidQRToken
	}
	side := domain.LegSide(parts[1])
	if parts[0] == "" || !side.Valid() || parts[2] == "" {
		return QRClaims{}, ErrInvalidQRToken
	}
	want, err := s.mac(strings.Join(parts[:3], "."))
	if err != nil {
		return QRClaims{}, err
	}
	if subtle.ConstantTimeCompare([]byte(want), []byte(parts[3])) != 1 {
		return QRClaims{}, ErrInvalidQRToken
	}
	return QRClaims{SwapID: parts[0], Side: side}, nil
}
