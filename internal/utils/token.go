package utils // package utils provides helper functions for identifiers and hashing

import (
	"crypto/rand" // secure random number generation
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NewEntityID builds an external identifier of the form
// "<prefix>_<unix>_<suffix>" where the suffix is a random UUID with the
// hyphens stripped. These ids are handed to clients instead of the
// auto-increment row ids and are not guessable.
func NewEntityID(prefix string) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")
	return fmt.Sprintf("%s_%d_%s", prefix, time.Now().UTC().Unix(), suffix)
}

// RandomHex returns a hex-encoded string generated from n bytes of
// cryptographically secure random data. Session tokens are built from
// this; 32 bytes yields 64 hex characters.
func RandomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
