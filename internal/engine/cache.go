package engine

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/roach88/advect/internal/ir"
)

// MinCacheLimit is the smallest bounded cache size. Zero means unbounded.
const MinCacheLimit = 2

// domainCache holds the domain payloads resident on one rank and the set
// of keys with an outstanding request.
//
// A key is pending from RequestDomain until its payload is installed; at
// most one request per key is outstanding. Pending keys are not resident
// and therefore never evicted.
//
// A key is pinned while an Active curve sits in it. The LRU may push a
// pinned payload out, but it then stays resident in overflow until the
// last pin is released, so a bounded cache can exceed its limit by the
// number of distinct domains the Active queue spans.
type domainCache struct {
	all     map[ir.DomainKey]ir.Payload // unbounded mode
	bounded *lru.Cache[ir.DomainKey, ir.Payload]
	pending map[ir.DomainKey]struct{}

	pins     map[ir.DomainKey]int
	overflow map[ir.DomainKey]ir.Payload

	evictions int
}

func newDomainCache(limit int) (*domainCache, error) {
	c := &domainCache{
		pending:  make(map[ir.DomainKey]struct{}),
		pins:     make(map[ir.DomainKey]int),
		overflow: make(map[ir.DomainKey]ir.Payload),
	}
	if limit == 0 {
		c.all = make(map[ir.DomainKey]ir.Payload)
		return c, nil
	}
	if limit < MinCacheLimit {
		return nil, fmt.Errorf("cache limit %d below minimum %d", limit, MinCacheLimit)
	}
	bounded, err := lru.NewWithEvict[ir.DomainKey, ir.Payload](limit, func(key ir.DomainKey, payload ir.Payload) {
		if c.pins[key] > 0 {
			c.overflow[key] = payload
			return
		}
		c.evictions++
	})
	if err != nil {
		return nil, err
	}
	c.bounded = bounded
	return c, nil
}

func (c *domainCache) isResident(key ir.DomainKey) bool {
	if c.bounded != nil {
		if c.bounded.Contains(key) {
			return true
		}
		_, ok := c.overflow[key]
		return ok
	}
	_, ok := c.all[key]
	return ok
}

// payload returns the resident payload for key and marks it recently used.
func (c *domainCache) payload(key ir.DomainKey) (ir.Payload, bool) {
	if c.bounded != nil {
		if p, ok := c.bounded.Get(key); ok {
			return p, true
		}
		p, ok := c.overflow[key]
		return p, ok
	}
	p, ok := c.all[key]
	return p, ok
}

// pin keeps key resident until a matching unpin.
func (c *domainCache) pin(key ir.DomainKey) {
	c.pins[key]++
}

// unpin releases one pin. A payload held only in overflow is dropped with
// the last pin.
func (c *domainCache) unpin(key ir.DomainKey) {
	n := c.pins[key] - 1
	if n > 0 {
		c.pins[key] = n
		return
	}
	delete(c.pins, key)
	if _, ok := c.overflow[key]; ok {
		delete(c.overflow, key)
		c.evictions++
	}
}

func (c *domainCache) isPending(key ir.DomainKey) bool {
	_, ok := c.pending[key]
	return ok
}

// markPending records an outstanding request. It returns false when the
// key is already resident or pending, in which case no request may be sent.
func (c *domainCache) markPending(key ir.DomainKey) bool {
	if c.isResident(key) || c.isPending(key) {
		return false
	}
	c.pending[key] = struct{}{}
	return true
}

// install stores payload and clears the pending mark. It reports whether
// the key was pending.
func (c *domainCache) install(key ir.DomainKey, payload ir.Payload) bool {
	_, wasPending := c.pending[key]
	delete(c.pending, key)
	if c.bounded != nil {
		delete(c.overflow, key)
		c.bounded.Add(key, payload)
	} else {
		c.all[key] = payload
	}
	return wasPending
}

// clearPending drops the pending mark without installing anything.
func (c *domainCache) clearPending(key ir.DomainKey) bool {
	_, ok := c.pending[key]
	delete(c.pending, key)
	return ok
}

func (c *domainCache) residentLen() int {
	if c.bounded != nil {
		return c.bounded.Len() + len(c.overflow)
	}
	return len(c.all)
}

func (c *domainCache) pendingLen() int {
	return len(c.pending)
}
