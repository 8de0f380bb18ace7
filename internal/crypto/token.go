package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
)

// HashToken derives the storage key for a refresh token. Only this hash is
// ever persisted; the signed token itself stays with the client.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// NewResetToken returns a 64-character hex string from 32 random bytes.
func NewResetToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
