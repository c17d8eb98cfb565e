package proxy

import (
	"crypto/rand"
	"encoding/hex"
)

// NewRequestID generates the 8-byte hex correlation id of spec.md §3
// PerRequestState (original_source: os.urandom(8).hex()). google/uuid
// (retained from the teacher's go.mod) is not used here because its
// canonical string form doesn't match this wire contract.
func NewRequestID() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
