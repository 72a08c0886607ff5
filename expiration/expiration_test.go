package expiration

import (
	"testing"
	"time"

	"github.com/tidemark-io/shoal/types"
)

func TestExpireAfterWriteFixedDeadline(t *testing.T) {
	s := &ExpireAfterWrite{TTL: time.Minute}
	now := time.Now()

	ent := &types.CacheEntry{Key: "k"}
	s.OnWrite(ent, now)

	want := now.Add(time.Minute)
	if !ent.ExpireAt.Equal(want) {
		t.Fatalf("deadline = %v, want %v", ent.ExpireAt, want)
	}

	// Reads must not move the deadline.
	s.OnAccess(ent, now.Add(30*time.Second))
	if !ent.ExpireAt.Equal(want) {
		t.Fatalf("deadline moved on access: %v", ent.ExpireAt)
	}

	if s.IsExpired(ent, now.Add(59*time.Second)) {
		t.Fatal("expired before deadline")
	}
	if !s.IsExpired(ent, now.Add(61*time.Second)) {
		t.Fatal("not expired after deadline")
	}
}

func TestExpireAfterWriteKeepsExplicitTTL(t *testing.T) {
	s := &ExpireAfterWrite{TTL: time.Minute}
	now := time.Now()

	explicit := now.Add(5 * time.Second)
	ent := &types.CacheEntry{Key: "k", ExpireAt: explicit}
	s.OnWrite(ent, now)

	if !ent.ExpireAt.Equal(explicit) {
		t.Fatalf("explicit deadline overwritten: %v", ent.ExpireAt)
	}
}

func TestExpireAfterWriteZeroTTLNeverExpires(t *testing.T) {
	s := &ExpireAfterWrite{}
	now := time.Now()

	ent := &types.CacheEntry{Key: "k"}
	s.OnWrite(ent, now)

	if !ent.ExpireAt.IsZero() {
		t.Fatalf("expected no deadline, got %v", ent.ExpireAt)
	}
	if s.IsExpired(ent, now.Add(24*time.Hour)) {
		t.Fatal("entry without TTL expired")
	}
}

func TestExpireAfterAccessSlidesDeadline(t *testing.T) {
	s := &ExpireAfterAccess{TTL: time.Minute}
	now := time.Now()

	ent := &types.CacheEntry{Key: "k"}
	s.OnWrite(ent, now)

	access := now.Add(45 * time.Second)
	s.OnAccess(ent, access)

	want := access.Add(time.Minute)
	if !ent.ExpireAt.Equal(want) {
		t.Fatalf("deadline = %v, want %v", ent.ExpireAt, want)
	}
	if !ent.LastAccessedAt.Equal(access) {
		t.Fatalf("LastAccessedAt = %v, want %v", ent.LastAccessedAt, access)
	}
}
