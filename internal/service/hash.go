package service

import (
	"crypto/sha256"
	"encoding/hex"
)

// ContentHash is the identity of a document: the sha256 of its
// normalized text.
func ContentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
