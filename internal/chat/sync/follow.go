package sync

import (
	"sync"
	"time"
)

const (
	// DefaultNearBottomPx is the distance from the bottom within which
	// new messages auto-follow.
	DefaultNearBottomPx = 100
	// DefaultScrollIdle resets the "actively scrolling" state after a
	// pause so auto-follow can resume.
	DefaultScrollIdle = 2500 * time.Millisecond
)

// FollowGate decides whether the view jumps to the newest message or
// latches a "has new messages" flag instead. The consumer reports
// viewport distance on scroll; the gate never yanks the viewport away
// from a user reading history.
type FollowGate struct {
	mu sync.Mutex

	nearBottomPx int
	idle         time.Duration

	distance  int // px from the bottom, as last reported
	scrolling bool
	hasNew    bool
	idleTimer *time.Timer
}

func NewFollowGate(nearBottomPx int, idle time.Duration) *FollowGate {
	if nearBottomPx <= 0 {
		nearBottomPx = DefaultNearBottomPx
	}
	if idle <= 0 {
		idle = DefaultScrollIdle
	}
	return &FollowGate{nearBottomPx: nearBottomPx, idle: idle}
}

// ReportScroll records the current distance from the bottom and marks
// the user as actively scrolling until the idle timer fires.
func (g *FollowGate) ReportScroll(distanceFromBottomPx int) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.distance = distanceFromBottomPx
	g.scrolling = true
	if g.distance <= g.nearBottomPx {
		// Back near the bottom clears the latch.
		g.hasNew = false
	}

	if g.idleTimer != nil {
		g.idleTimer.Stop()
	}
	g.idleTimer = time.AfterFunc(g.idle, func() {
		g.mu.Lock()
		g.scrolling = false
		g.idleTimer = nil
		g.mu.Unlock()
	})
}

// OnNewMessage returns true when the view should auto-scroll to the
// newest message: near the bottom and not mid-scroll. Otherwise the
// HasNew latch is set and the caller surfaces a "jump to latest"
// affordance. Once the idle timer clears the scrolling state, follow
// resumes on the next message.
func (g *FollowGate) OnNewMessage() (follow bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.scrolling || g.distance > g.nearBottomPx {
		g.hasNew = true
		return false
	}
	g.hasNew = false
	return true
}

// HasNew reports whether unseen messages arrived while scrolled up.
func (g *FollowGate) HasNew() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.hasNew
}

// JumpToLatest is the manual affordance: clears the latch, resets the
// distance to the bottom and drops the scrolling state, since the jump
// is an explicit request to track the newest message.
func (g *FollowGate) JumpToLatest() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.hasNew = false
	g.distance = 0
	g.scrolling = false
	if g.idleTimer != nil {
		g.idleTimer.Stop()
		g.idleTimer = nil
	}
}
