// internal/utils/crypto.go
package utils

import (
	"crypto/sha256"
	"encoding/hex"
)

// ContentHash fingerprints raw asset bytes before pinning, so duplicate
// uploads can be detected without refetching from the pinning service.
func ContentHash(fileData []byte) string {
	hasher := sha256.New()
	hasher.Write(fileData)
	return hex.EncodeToString(hasher.Sum(nil))
}
