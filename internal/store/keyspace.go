package store

import "strings"

// Key layout:
//
//	session:<id>            session metadata (JSON)
//	session:<id>:history    list of history entries (JSON)
//	session:<id>:queries    query counter
//	session:<id>:activity   last activity, unix nanoseconds
//	session:<id>:cache      list of cache entry digests, oldest first
//	cache:<id>:<digest>     cache entry (JSON)
const (
	sessionPrefix = "session:"
	cachePrefix   = "cache:"
)

// SessionKey is the metadata key of a session.
func SessionKey(id string) string { return sessionPrefix + id }

// HistoryKey is the list key holding a session's history.
func HistoryKey(id string) string { return sessionPrefix + id + ":history" }

// QueriesKey is the counter key holding a session's query count.
func QueriesKey(id string) string { return sessionPrefix + id + ":queries" }

// ActivityKey holds a session's last activity timestamp.
func ActivityKey(id string) string { return sessionPrefix + id + ":activity" }

// CacheIndexKey is the list key indexing a session's cache entries. Every
// per-session cache operation goes through it so none has to scan the
// keyspace.
func CacheIndexKey(id string) string { return sessionPrefix + id + ":cache" }

// CachePrefix is the prefix shared by every cache entry of a session.
func CachePrefix(id string) string { return cachePrefix + id + ":" }

// CacheKey is the key of one cache entry.
func CacheKey(id, digest string) string { return CachePrefix(id) + digest }

// SessionIDFromKey extracts the session ID from a metadata key. It reports
// false for history, counter, activity and cache keys.
func SessionIDFromKey(key string) (string, bool) {
	id, ok := strings.CutPrefix(key, sessionPrefix)
	if !ok || id == "" || strings.Contains(id, ":") {
		return "", false
	}
	return id, true
}

// SessionKeyPrefix matches every session-scoped key of every session.
const SessionKeyPrefix = sessionPrefix

// OwnerFromKey returns the session that owns any session-scoped or cache
// key, including the metadata key itself.
func OwnerFromKey(key string) (string, bool) {
	rest, ok := strings.CutPrefix(key, sessionPrefix)
	if !ok {
		rest, ok = strings.CutPrefix(key, cachePrefix)
	}
	if !ok {
		return "", false
	}
	id, _, _ := strings.Cut(rest, ":")
	return id, id != ""
}
