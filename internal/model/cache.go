package model

import (
	"strings"
	"time"
)

// cacheKeyMaxLen bounds normalized cache keys so near-identical long product
// titles collapse to the same entry.
const cacheKeyMaxLen = 60

// CacheEntry is one learned item-to-category association. Entries are never
// deleted, only superseded by corrections.
type CacheEntry struct {
	LastUsedAt     time.Time
	Key            string
	CategoryID     string
	CategoryName   string
	Confidence     float64
	TimesUsed      int
	TimesCorrected int
}

// NormalizeItemKey folds an item description into its cache key: lower-cased,
// whitespace collapsed, bounded length. The bound counts runes so multi-byte
// titles never truncate mid-character.
func NormalizeItemKey(description string) string {
	key := strings.ToLower(strings.TrimSpace(description))
	key = strings.Join(strings.Fields(key), " ")
	if runes := []rune(key); len(runes) > cacheKeyMaxLen {
		key = string(runes[:cacheKeyMaxLen])
	}
	return key
}
