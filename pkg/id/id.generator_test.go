package id_test

import (
	"strconv"
	"strings"
	"testing"

	"github.com/LuisNMHN/NetmarketHN-sub000/pkg/id"
)

func TestNewSnowflakeRejectsBadNode(t *testing.T) {
	if _, err := id.NewSnowflake(-1); err == nil {
		t.Error("negative node id accepted")
	}
	if _, err := id.NewSnowflake(1024); err == nil {
		t.Error("node id past the 10-bit range accepted")
	}
}

func TestSnowflakeStrictlyIncreasing(t *testing.T) {
	sf, err := id.NewSnowflake(7)
	if err != nil {
		t.Fatalf("NewSnowflake: %v", err)
	}

	var prev int64
	for i := 0; i < 5000; i++ {
		n, err := strconv.ParseInt(sf.Generate(), 10, 64)
		if err != nil {
			t.Fatalf("non-numeric id: %v", err)
		}
		if n <= prev {
			t.Fatalf("id %d not greater than previous %d", n, prev)
		}
		prev = n
	}
}

func TestPrefixedULID(t *testing.T) {
	a := id.New("msg")
	b := id.New("msg")
	if !strings.HasPrefix(a, "msg_") {
		t.Errorf("missing prefix: %q", a)
	}
	if a == b {
		t.Error("two ids collided")
	}
}
