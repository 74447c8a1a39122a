package crypto

import (
	"crypto/rand"
	"encoding/base64"
)

// RandomString returns length URL-safe random characters.
func RandomString(length int) (string, error) {
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b)[:length], nil
}
