package store

import "testing"

func TestKeyspace(t *testing.T) {
	t.Parallel()

	if got := SessionKey("abc"); got != "session:abc" {
		t.Errorf("SessionKey = %q", got)
	}
	if got := HistoryKey("abc"); got != "session:abc:history" {
		t.Errorf("HistoryKey = %q", got)
	}
	if got := CacheIndexKey("abc"); got != "session:abc:cache" {
		t.Errorf("CacheIndexKey = %q", got)
	}
	if got := CacheKey("abc", "ff00"); got != "cache:abc:ff00" {
		t.Errorf("CacheKey = %q", got)
	}
}

func TestSessionIDFromKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		key  string
		id   string
		isID bool
	}{
		{"session:abc", "abc", true},
		{"session:abc:history", "", false},
		{"session:abc:queries", "", false},
		{"session:abc:cache", "", false},
		{"cache:abc:ff", "", false},
		{"session:", "", false},
	}
	for _, tt := range tests {
		id, ok := SessionIDFromKey(tt.key)
		if id != tt.id || ok != tt.isID {
			t.Errorf("SessionIDFromKey(%q) = (%q, %v), want (%q, %v)", tt.key, id, ok, tt.id, tt.isID)
		}
	}
}

func TestOwnerFromKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		key string
		id  string
		ok  bool
	}{
		{"session:abc", "abc", true},
		{"session:abc:history", "abc", true},
		{"session:abc:activity", "abc", true},
		{"session:abc:cache", "abc", true},
		{"cache:abc:ff00", "abc", true},
		{"cache:", "", false},
		{"other:abc", "", false},
	}
	for _, tt := range tests {
		id, ok := OwnerFromKey(tt.key)
		if id != tt.id || ok != tt.ok {
			t.Errorf("OwnerFromKey(%q) = (%q, %v), want (%q, %v)", tt.key, id, ok, tt.id, tt.ok)
		}
	}
}
