package lockmgr

import (
	"crypto/rand"
	"encoding/hex"
)

const (
	ownerIDBytes = 32
)

// generateOwnerID creates a new unique owner ID
// The owner ID is a hex encoded random value of 256 bit.
func generateOwnerID() (string, error) {
	randomBytes := make([]byte, ownerIDBytes)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(randomBytes), nil
}
