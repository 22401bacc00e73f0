package ledger

import (
	"crypto/sha1"
	"encoding/hex"
	"strings"
)

// Episode keys are content hashes of whatever identity the source exposes.
// They stay stable across runs even when titles get cleaned up or a page
// moves between listing positions.

// KeyFromURL derives the episode key for a canonical page or media URL.
func KeyFromURL(rawURL string) string {
	return hashKey(strings.TrimSpace(rawURL))
}

// KeyFromFeedEntry derives a stable key for one feed entry. GUIDs win when
// present, then the enclosure URL, then the entry link and title combined.
func KeyFromFeedEntry(feedURL, guid, enclosure, link, title string) string {
	feedURL = strings.TrimSpace(feedURL)
	if value := strings.TrimSpace(guid); value != "" {
		return hashKey(feedURL + "\x00guid\x00" + value)
	}
	if value := strings.TrimSpace(enclosure); value != "" {
		return hashKey(feedURL + "\x00enclosure\x00" + value)
	}
	return hashKey(feedURL + "\x00entry\x00" + strings.TrimSpace(link) + "\x00" + strings.TrimSpace(title))
}

// ShortKey returns the abbreviated key form used as a filename tag.
func ShortKey(key string) string {
	if len(key) <= 10 {
		return key
	}
	return key[:10]
}

func hashKey(identity string) string {
	sum := sha1.Sum([]byte(identity))
	return hex.EncodeToString(sum[:])
}
