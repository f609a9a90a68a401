package profile

import (
	"sort"
	"sync"
	"time"
)

// TokenPool holds the single-use challenge tokens of one profile: a bounded,
// mint-time-ordered V3 sequence plus at most one V2 slot. Tokens older than
// the TTL are never handed out; Pop purges them lazily and the registry
// sweep purges them periodically.
type TokenPool struct {
	mu               sync.Mutex
	v3               []ChallengeToken
	v2               *ChallengeToken
	consecutiveEmpty int

	limits Limits
	now    func() time.Time
}

// NewTokenPool returns an empty pool with the given limits.
func NewTokenPool(limits Limits) *TokenPool {
	return &TokenPool{limits: limits.sanitized(), now: time.Now}
}

// Push validates and inserts one token. It reports whether the token was
// accepted. Rejection reasons: empty value, value below the minimum length,
// exact duplicate of an already-held token, or already expired at push time.
func (p *TokenPool) Push(value string, kind Kind, action string, age time.Duration) bool {
	if p == nil || value == "" || len(value) < p.limits.MinTokenLength {
		return false
	}
	if age < 0 {
		age = 0
	}
	if age >= p.limits.TokenTTL {
		return false
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.holdsLocked(value) {
		return false
	}
	tok := ChallengeToken{
		Value:    value,
		Kind:     kind,
		Action:   action,
		MintedAt: p.now().Add(-age),
	}
	if kind == KindV2 {
		p.v2 = &tok
		return true
	}
	p.v3 = append(p.v3, tok)
	sort.SliceStable(p.v3, func(i, j int) bool {
		return p.v3[i].MintedAt.Before(p.v3[j].MintedAt)
	})
	if overflow := len(p.v3) - p.limits.Capacity; overflow > 0 {
		p.v3 = append(p.v3[:0:0], p.v3[overflow:]...)
	}
	return true
}

// Pop removes and returns the oldest still-valid token of the given kind.
// Expired entries are purged first. A V2 pop clears the slot whether or not
// it yields a token.
func (p *TokenPool) Pop(kind Kind) (ChallengeToken, bool) {
	if p == nil {
		return ChallengeToken{}, false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.purgeLocked()

	if kind == KindV2 {
		tok := p.v2
		p.v2 = nil
		if tok == nil {
			p.consecutiveEmpty++
			return ChallengeToken{}, false
		}
		p.consecutiveEmpty = 0
		return *tok, true
	}

	if len(p.v3) == 0 {
		p.consecutiveEmpty++
		return ChallengeToken{}, false
	}
	tok := p.v3[0]
	p.v3 = append(p.v3[:0:0], p.v3[1:]...)
	p.consecutiveEmpty = 0
	return tok, true
}

// Count returns the number of non-expired V3 tokens without mutating the
// pool or the consecutive-empty counter.
func (p *TokenPool) Count() int {
	if p == nil {
		return 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	cutoff := p.now().Add(-p.limits.TokenTTL)
	n := 0
	for _, tok := range p.v3 {
		if tok.MintedAt.After(cutoff) {
			n++
		}
	}
	return n
}

// HasValidV2 reports whether a non-expired V2 token is held, without
// consuming it.
func (p *TokenPool) HasValidV2() bool {
	if p == nil {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.v2 != nil && p.v2.MintedAt.After(p.now().Add(-p.limits.TokenTTL))
}

// Purge drops every expired token and returns how many were removed.
func (p *TokenPool) Purge() int {
	if p == nil {
		return 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.purgeLocked()
}

// ConsecutiveEmpty returns how many pops in a row found no token.
func (p *TokenPool) ConsecutiveEmpty() int {
	if p == nil {
		return 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.consecutiveEmpty
}

func (p *TokenPool) purgeLocked() int {
	cutoff := p.now().Add(-p.limits.TokenTTL)
	removed := 0
	kept := p.v3[:0]
	for _, tok := range p.v3 {
		if tok.MintedAt.After(cutoff) {
			kept = append(kept, tok)
		} else {
			removed++
		}
	}
	p.v3 = kept
	if p.v2 != nil && !p.v2.MintedAt.After(cutoff) {
		p.v2 = nil
		removed++
	}
	return removed
}

func (p *TokenPool) holdsLocked(value string) bool {
	for _, tok := range p.v3 {
		if tok.Value == value {
			return true
		}
	}
	return p.v2 != nil && p.v2.Value == value
}
