// Package dedup drops duplicate MQTT payloads. QoS 1 delivers at least once,
// so a consumer that writes an audit mirror must ignore redeliveries.
package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"
)

// Filter remembers payload hashes for a TTL, capped in size.
type Filter struct {
	mu   sync.Mutex
	ttl  time.Duration
	max  int
	seen map[string]time.Time
}

func New(ttl time.Duration, max int) *Filter {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if max <= 0 {
		max = 10000
	}
	return &Filter{ttl: ttl, max: max, seen: make(map[string]time.Time, max)}
}

// ShouldProcess reports whether this payload has not been seen within the TTL
// and marks it seen.
func (f *Filter) ShouldProcess(payload []byte) bool {
	h := sha256.Sum256(payload)
	return f.shouldProcessID(hex.EncodeToString(h[:]))
}

func (f *Filter) shouldProcessID(id string) bool {
	now := time.Now()
	f.mu.Lock()
	defer f.mu.Unlock()
	if exp, ok := f.seen[id]; ok && now.Before(exp) {
		return false
	}
	f.seen[id] = now.Add(f.ttl)
	if len(f.seen) > f.max {
		for k, exp := range f.seen {
			if now.After(exp) {
				delete(f.seen, k)
			}
			if len(f.seen) <= f.max {
				break
			}
		}
	}
	return true
}
