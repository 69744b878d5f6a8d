package app

import (
	"crypto/rand"
	"encoding/hex"
)

// generateID produces a random hex identifier for interventions and code
// formats. These are internal keys only; the human-facing references are
// the generated document codes.
func generateID() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
