// Package anchor implements the ownership-token registry that keeps parent
// handles reachable for exactly the lifetime of their children. A child pins
// its parent under a fresh token at construction and releases the token at
// its single authoritative teardown point; releasing a token twice is a
// defined no-op.
package anchor

import "sync"

// Token identifies one pin in a Registry. The zero Token is "no pin" and is
// never issued. Tokens are not reused while live.
type Token uint64

// Registry maps live tokens to the values they pin. It is safe for use from
// multiple goroutines; all other synchronization is the caller's problem.
type Registry struct {
	mu      sync.Mutex
	buckets []bucket
	count   int
	dead    int
	mask    uint64
	next    uint64
}

const (
	slotEmpty = iota
	slotUsed
	slotDead
)

type bucket struct {
	key   uint64
	value any
	state uint8
}

// Fibonacci hash constant: 2^64 / golden ratio.
// Sequential tokens spread well under this multiplier.
const fibHash64 = 0x9E3779B97F4A7C15

func (r *Registry) hash(key uint64) uint64 {
	return key * fibHash64
}

// Pin stores v under a fresh token and returns the token.
func (r *Registry) Pin(v any) Token {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.next++
	key := r.next
	r.set(key, v)
	return Token(key)
}

// Value returns the pinned value for t, or (nil, false) if t was already
// released or never issued.
func (r *Registry) Value(t Token) (any, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.buckets) == 0 {
		return nil, false
	}
	idx := r.hash(uint64(t)) & r.mask
	for {
		b := &r.buckets[idx]
		if b.state == slotEmpty {
			return nil, false
		}
		if b.state == slotUsed && b.key == uint64(t) {
			return b.value, true
		}
		idx = (idx + 1) & r.mask
	}
}

// Release drops the pin for t. It reports whether the token was live;
// releasing an already-released token returns false and has no effect.
func (r *Registry) Release(t Token) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if t == 0 || len(r.buckets) == 0 {
		return false
	}
	idx := r.hash(uint64(t)) & r.mask
	for {
		b := &r.buckets[idx]
		if b.state == slotEmpty {
			return false
		}
		if b.state == slotUsed && b.key == uint64(t) {
			// Tombstone rather than empty: later keys may have probed past
			// this slot.
			b.state = slotDead
			b.value = nil
			r.count--
			r.dead++
			return true
		}
		idx = (idx + 1) & r.mask
	}
}

// Len returns the number of live pins.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// set stores a key-value pair. Caller holds r.mu.
func (r *Registry) set(key uint64, value any) {
	if len(r.buckets) == 0 {
		r.buckets = make([]bucket, 16)
		r.mask = 15
	} else if (r.count+r.dead)*4 >= len(r.buckets)*3 {
		r.grow()
	}

	idx := r.hash(key) & r.mask
	for {
		b := &r.buckets[idx]
		if b.state != slotUsed {
			if b.state == slotDead {
				r.dead--
			}
			b.key = key
			b.value = value
			b.state = slotUsed
			r.count++
			return
		}
		idx = (idx + 1) & r.mask
	}
}

// grow doubles the table and drops tombstones.
func (r *Registry) grow() {
	oldBuckets := r.buckets
	newSize := len(oldBuckets) * 2
	r.buckets = make([]bucket, newSize)
	r.mask = uint64(newSize - 1)
	r.count = 0
	r.dead = 0

	for i := range oldBuckets {
		if oldBuckets[i].state == slotUsed {
			r.set(oldBuckets[i].key, oldBuckets[i].value)
		}
	}
}
