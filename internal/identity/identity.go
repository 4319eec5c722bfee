// Package identity derives the deduplication keys articles are stored under.
package identity

import (
	"crypto/md5"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"newsdesk/internal/domain"
)

const (
	providerPrefix = "newsapi"
	manualPrefix   = "manual"
	unknownSource  = "unknown"
	hashLength     = 8
)

// Derive returns the key for a provider article. The same (source, title) pair
// always yields the same key.
func Derive(source, title string) (string, error) {
	if strings.TrimSpace(title) == "" {
		return "", fmt.Errorf("%w: missing title", domain.ErrItemSyncFailed)
	}

	normalized := NormalizeSource(source)
	sum := md5.Sum([]byte(normalized + "_" + title))
	hash := hex.EncodeToString(sum[:])[:hashLength]

	return fmt.Sprintf("%s_%s_%s", providerPrefix, normalized, hash), nil
}

// NormalizeSource lower-cases the name and collapses whitespace runs into "_".
func NormalizeSource(source string) string {
	fields := strings.Fields(strings.ToLower(source))
	if len(fields) == 0 {
		return unknownSource
	}
	return strings.Join(fields, "_")
}

// Manual returns a fresh key for an article created by hand.
func Manual(now time.Time) (string, error) {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random suffix: %w", err)
	}
	return fmt.Sprintf("%s_%d_%s", manualPrefix, now.UnixMilli(), hex.EncodeToString(buf)), nil
}
