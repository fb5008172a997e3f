package order

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

const numberPrefix = "BV-"

// NewNumber returns a human-facing order number of the form
// BV-<UTC YYYYMMDDHHMMSS>-<6 uppercase alphanumerics>.
func NewNumber(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
	return numberPrefix + now.UTC().Format("20060102150405") + "-" + suffix
}

// LooksLikeNumber reports whether key has the order number prefix.
func LooksLikeNumber(key string) bool {
	return strings.HasPrefix(key, numberPrefix)
}
