package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode"
)

// Normalize folds a query for exact matching: lower case, runs of
// whitespace collapsed to one space, and trailing punctuation and spaces
// removed. Normalize(Normalize(q)) == Normalize(q) for every q.
func Normalize(q string) string {
	folded := strings.Join(strings.Fields(strings.ToLower(q)), " ")
	return strings.TrimRightFunc(folded, func(r rune) bool {
		return unicode.IsPunct(r) || unicode.IsSpace(r)
	})
}

// Digest is the hex SHA-256 of a normalized query.
func Digest(normalized string) string {
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}
