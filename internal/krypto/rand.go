package krypto

import (
	"crypto/rand"
	"fmt"
)

// genRandomBytes returns n bytes from a cryptographically secure
// random source.
func genRandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("failed to read random bytes: %w", err)
	}
	return b, nil
}
