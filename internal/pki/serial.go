package pki

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const serialBytes = 32

// RandomSerial returns a non-negative 256-bit serial number from the system
// random source.
func RandomSerial() (*big.Int, error) {
	buf := make([]byte, serialBytes)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("failed to read random serial: %w", err)
	}
	return new(big.Int).SetBytes(buf), nil
}
