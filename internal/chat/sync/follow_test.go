package sync_test

import (
	"testing"
	"time"

	csync "github.com/LuisNMHN/NetmarketHN-sub000/internal/chat/sync"
)

// waitFollow polls the gate until it follows again or the deadline hits.
func waitFollow(t *testing.T, g *csync.FollowGate) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !g.OnNewMessage() {
		if time.Now().After(deadline) {
			t.Fatal("follow did not resume after the scroll went idle")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestFollowWhenNearBottom(t *testing.T) {
	g := csync.NewFollowGate(100, time.Hour)

	if !g.OnNewMessage() {
		t.Error("fresh gate at the bottom did not follow")
	}
	if g.HasNew() {
		t.Error("HasNew latched while following")
	}
}

func TestActiveScrollSuppressesFollow(t *testing.T) {
	g := csync.NewFollowGate(100, time.Hour)

	g.ReportScroll(50)
	if g.OnNewMessage() {
		t.Error("followed while the user is actively scrolling")
	}
	if !g.HasNew() {
		t.Error("HasNew not latched for the suppressed message")
	}
}

func TestFollowResumesAfterScrollIdle(t *testing.T) {
	g := csync.NewFollowGate(100, 20*time.Millisecond)

	g.ReportScroll(30)
	if g.OnNewMessage() {
		t.Fatal("followed mid-scroll")
	}
	waitFollow(t, g)
	if g.HasNew() {
		t.Error("HasNew still latched after follow resumed")
	}
}

func TestLatchWhenScrolledUp(t *testing.T) {
	g := csync.NewFollowGate(100, time.Hour)

	g.ReportScroll(800)
	if g.OnNewMessage() {
		t.Error("followed while the user reads history")
	}
	if !g.HasNew() {
		t.Error("HasNew not latched")
	}

	// Still latched until the user comes back down or jumps.
	if g.OnNewMessage() {
		t.Error("second message followed while scrolled up")
	}
}

func TestScrolledUpStaysLatchedPastIdle(t *testing.T) {
	g := csync.NewFollowGate(100, 20*time.Millisecond)

	g.ReportScroll(800)
	time.Sleep(60 * time.Millisecond)

	// Idle fired, but the viewport is still up in history.
	if g.OnNewMessage() {
		t.Error("followed while scrolled up, idle or not")
	}
	if !g.HasNew() {
		t.Error("HasNew not latched")
	}
}

func TestScrollBackDownClearsLatch(t *testing.T) {
	g := csync.NewFollowGate(100, 20*time.Millisecond)

	g.ReportScroll(800)
	g.OnNewMessage()
	if !g.HasNew() {
		t.Fatal("latch not set")
	}

	g.ReportScroll(10)
	if g.HasNew() {
		t.Error("returning near the bottom did not clear the latch")
	}
	waitFollow(t, g)
}

func TestJumpToLatest(t *testing.T) {
	g := csync.NewFollowGate(100, time.Hour)

	g.ReportScroll(500)
	g.OnNewMessage()

	g.JumpToLatest()
	if g.HasNew() {
		t.Error("JumpToLatest left the latch set")
	}
	if !g.OnNewMessage() {
		t.Error("gate did not follow after JumpToLatest")
	}
}
