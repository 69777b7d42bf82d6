package notify

import (
	"sync"
	"time"
)

// DefaultTTL is how long a message stays visible unless replaced
const DefaultTTL = 3000 * time.Millisecond

// ToastMessage is a transient user-facing message
type ToastMessage struct {
	Text      string
	CreatedAt time.Time
}

// Listener is called when the visible message changes. visible is false when the slot was cleared.
type Listener func(msg ToastMessage, visible bool)

// Channel is a single-slot notification queue: the newest message always wins
type Channel struct {
	ttl time.Duration
	now func() time.Time

	mu         sync.Mutex
	current    ToastMessage
	visible    bool
	generation uint64
	timer      *time.Timer
	listeners  []Listener
}

// NewChannel creates a notification channel with the given expiry
func NewChannel(ttl time.Duration) *Channel {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Channel{
		ttl: ttl,
		now: time.Now,
	}
}

// Subscribe registers a listener for message changes
func (c *Channel) Subscribe(l Listener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, l)
}

// Post replaces the current message and restarts the expiry timer
func (c *Channel) Post(text string) {
	c.mu.Lock()
	if c.timer != nil {
		c.timer.Stop()
	}

	c.generation++
	gen := c.generation
	c.current = ToastMessage{Text: text, CreatedAt: c.now()}
	c.visible = true
	c.timer = time.AfterFunc(c.ttl, func() { c.expire(gen) })

	msg := c.current
	listeners := c.snapshotListeners()
	c.mu.Unlock()

	for _, l := range listeners {
		l(msg, true)
	}
}

// Current returns the visible message, if any
func (c *Channel) Current() (ToastMessage, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current, c.visible
}

// Clear hides the current message immediately
func (c *Channel) Clear() {
	c.mu.Lock()
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.generation++
	c.expireLocked()
}

// Close stops any pending expiry timer
func (c *Channel) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

func (c *Channel) expire(gen uint64) {
	c.mu.Lock()
	// a newer message owns the slot
	if gen != c.generation {
		c.mu.Unlock()
		return
	}
	c.timer = nil
	c.expireLocked()
}

// expireLocked clears the slot and releases the lock before notifying
func (c *Channel) expireLocked() {
	if !c.visible {
		c.mu.Unlock()
		return
	}

	msg := c.current
	c.current = ToastMessage{}
	c.visible = false
	listeners := c.snapshotListeners()
	c.mu.Unlock()

	for _, l := range listeners {
		l(msg, false)
	}
}

func (c *Channel) snapshotListeners() []Listener {
	out := make([]Listener, len(c.listeners))
	copy(out, c.listeners)
	return out
}
