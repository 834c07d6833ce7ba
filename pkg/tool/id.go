package tool

import (
	"strings"

	"github.com/google/uuid"
)

func GenerateUUIDV7() string {
	return uuid.Must(uuid.NewV7()).String()
}

// GenerateToken returns a random 32 hex character token for one-time links.
func GenerateToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// ShortCode returns an upper-case code of n characters derived from a random uuid.
func ShortCode(n int) string {
	s := strings.ToUpper(GenerateToken())
	if n <= 0 || n > len(s) {
		return s
	}
	return s[:n]
}
