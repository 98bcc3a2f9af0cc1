package sharding

import (
	"fmt"
	"testing"
)

func TestGetShardIDRange(t *testing.T) {
	for _, entityID := range []string{"member-1", "member-2", "", "a-very-long-member-identifier"} {
		got := GetShardID(entityID)
		if got < 0 || got >= ShardCount {
			t.Errorf("GetShardID(%q) = %d, out of range [0,%d)", entityID, got, ShardCount)
		}
	}
}

func TestGetSubject(t *testing.T) {
	subject := GetSubject("member", "member-1")
	expected := fmt.Sprintf("loyalty.event.%d.member.member-1", GetShardID("member-1"))
	if subject != expected {
		t.Errorf("GetSubject = %v, want %v", subject, expected)
	}
}

func TestStableSharding(t *testing.T) {
	id := "test-stable-id"
	if GetShardID(id) != GetShardID(id) {
		t.Error("sharding is not deterministic")
	}
}

func TestDistribution(t *testing.T) {
	// Rough check to ensure we don't map everything to shard 0.
	distribution := make(map[int]int)
	for i := 0; i < 1000; i++ {
		key := fmt.Sprintf("key-%d", i)
		distribution[GetShardID(key)]++
	}

	if len(distribution) < 100 {
		t.Errorf("sharding distribution is too poor: only %d unique shards for 1000 keys", len(distribution))
	}
}
