package random

import (
	"crypto/rand"
	"encoding/hex"
)

// String returns 2n random hex characters.
func String(n int) string {
	bytes := make([]byte, n)

	_, err := rand.Read(bytes)
	if err != nil {
		panic(err)
	}

	return hex.EncodeToString(bytes)
}
