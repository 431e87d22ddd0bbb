package session

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const (
	IDLength   = 8
	idAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
)

var alphabetSize = big.NewInt(int64(len(idAlphabet)))

// NewID returns a random upper-case base36 session id. Collisions are possible
// and not detected.
func NewID() (string, error) {
	b := make([]byte, IDLength)
	for i := range b {
		n, err := rand.Int(rand.Reader, alphabetSize)
		if err != nil {
			return "", fmt.Errorf("generate session ID: %w", err)
		}
		b[i] = idAlphabet[n.Int64()]
	}

	return string(b), nil
}
