package sync

import (
	"sync"
	"time"
)

// DefaultTypingIdle is how long after the last keystroke the debouncer
// pushes the stop-typing signal.
const DefaultTypingIdle = 1 * time.Second

// TypingDebouncer turns a stream of keystrokes into at most one
// "typing" signal followed by exactly one "stopped" signal. Local state
// flips synchronously on every keystroke for immediate UI feedback;
// the remote signal is debounced. Switching conversations or sending a
// message must call Stop so the other party never sees a stuck
// indicator.
type TypingDebouncer struct {
	mu     sync.Mutex
	idle   time.Duration
	signal func(isTyping bool) // pushes the remote typing state
	timer  *time.Timer
	typing bool
}

func NewTypingDebouncer(idle time.Duration, signal func(bool)) *TypingDebouncer {
	if idle <= 0 {
		idle = DefaultTypingIdle
	}
	return &TypingDebouncer{idle: idle, signal: signal}
}

// Keystroke registers input. The first keystroke signals typing
// immediately; each one re-arms the idle timer that will signal stop.
func (d *TypingDebouncer) Keystroke() {
	d.mu.Lock()
	if !d.typing {
		d.typing = true
		d.mu.Unlock()
		d.signal(true)
		d.mu.Lock()
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.idle, d.timeout)
	d.mu.Unlock()
}

func (d *TypingDebouncer) timeout() {
	d.mu.Lock()
	wasTyping := d.typing
	d.typing = false
	d.timer = nil
	d.mu.Unlock()
	if wasTyping {
		d.signal(false)
	}
}

// Stop force-clears any pending timer and signals not-typing
// immediately. Idempotent: an already-stopped debouncer stays silent.
func (d *TypingDebouncer) Stop() {
	d.mu.Lock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	wasTyping := d.typing
	d.typing = false
	d.mu.Unlock()
	if wasTyping {
		d.signal(false)
	}
}

// Typing reports the immediate local state.
func (d *TypingDebouncer) Typing() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.typing
}
