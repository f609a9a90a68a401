package profile

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// ErrNoProfilesAvailable is returned by Select when no profile has pushed
// recently enough to be considered active.
var ErrNoProfilesAvailable = errors.New("no active profiles available")

// DefaultProfileID is used when a push carries neither a profile id nor an
// auth token to derive one from.
const DefaultProfileID = "default"

// Registry owns every profile, keyed by id in insertion order, plus the
// shared round-robin cursor used when several token-bearing profiles are
// eligible for the same request. Profiles are created lazily on first push
// and removed only by Delete.
type Registry struct {
	mu       sync.Mutex
	profiles map[string]*Profile
	order    []string
	cursor   int

	limits Limits
	now    func() time.Time
}

// NewRegistry returns an empty registry with sanitized limits.
func NewRegistry(limits Limits) *Registry {
	return &Registry{
		profiles: make(map[string]*Profile),
		limits:   limits.sanitized(),
		now:      time.Now,
	}
}

// ResolveProfileID picks the profile id for a push: the explicit id, else a
// digest of the auth token, else the shared default id.
func ResolveProfileID(data PushData) string {
	if id := strings.TrimSpace(data.ProfileID); id != "" {
		return id
	}
	if tok := strings.TrimSpace(data.AuthToken); tok != "" {
		sum := sha256.Sum256([]byte(tok))
		return "profile-" + hex.EncodeToString(sum[:])[:12]
	}
	return DefaultProfileID
}

// Apply routes one push to its profile, creating the profile on first
// sight, and returns it.
func (r *Registry) Apply(data PushData) *Profile {
	if r == nil {
		return nil
	}
	id := ResolveProfileID(data)

	r.mu.Lock()
	p, ok := r.profiles[id]
	if !ok {
		p = NewProfile(id, r.limits)
		p.setClock(r.now)
		r.profiles[id] = p
		r.order = append(r.order, id)
		log.Debugf("profile %s registered", id)
	}
	r.mu.Unlock()

	p.ApplyPush(data)
	return p
}

// Get returns the profile under id, if any.
func (r *Registry) Get(id string) (*Profile, bool) {
	if r == nil {
		return nil, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.profiles[id]
	return p, ok
}

// Delete removes a profile permanently and reports whether it existed.
func (r *Registry) Delete(id string) bool {
	if r == nil {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.profiles[id]; !ok {
		return false
	}
	delete(r.profiles, id)
	for i, existing := range r.order {
		if existing == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

// Profiles returns every profile in insertion order.
func (r *Registry) Profiles() []*Profile {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.profilesLocked()
}

func (r *Registry) profilesLocked() []*Profile {
	out := make([]*Profile, 0, len(r.order))
	for _, id := range r.order {
		if p, ok := r.profiles[id]; ok {
			out = append(out, p)
		}
	}
	return out
}

// Select picks the profile to serve a request for modelName. Active
// profiles supporting the model are preferred, ranked by health; when
// several of those hold tokens, a shared round-robin cursor spreads load
// across them instead of draining the healthiest first.
func (r *Registry) Select(modelName string) (*Profile, error) {
	if r == nil {
		return nil, ErrNoProfilesAvailable
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	activeSet := make([]*Profile, 0, len(r.order))
	for _, p := range r.profilesLocked() {
		if p.Active() {
			activeSet = append(activeSet, p)
		}
	}
	if len(activeSet) == 0 {
		return nil, ErrNoProfilesAvailable
	}

	candidates := activeSet
	if modelName != "" {
		matching := make([]*Profile, 0, len(activeSet))
		for _, p := range activeSet {
			if p.Catalog().Contains(modelName) {
				matching = append(matching, p)
			}
		}
		if len(matching) > 0 {
			candidates = matching
		}
	}
	if len(candidates) == 0 {
		return nil, ErrNoProfilesAvailable
	}

	scores := make(map[*Profile]int, len(candidates))
	for _, p := range candidates {
		scores[p] = p.HealthScore()
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return scores[candidates[i]] > scores[candidates[j]]
	})

	withTokens := make([]*Profile, 0, len(candidates))
	for _, p := range candidates {
		if p.TokenCount() > 0 {
			withTokens = append(withTokens, p)
		}
	}
	if len(withTokens) > 0 {
		r.cursor = (r.cursor + 1) % len(withTokens)
		return withTokens[r.cursor], nil
	}
	return candidates[0], nil
}

// PopTokenFor obtains a challenge token for a request served by p: first
// p's own V3 pool, then its V2 slot, then a V3 borrowed from another active
// profile in registry order. The donor id is returned for borrowed tokens.
// ok is false when no token exists anywhere; the request still proceeds.
func (r *Registry) PopTokenFor(p *Profile) (ChallengeToken, string, bool) {
	if tok, ok := p.PopToken(KindV3); ok {
		return tok, "", true
	}
	if tok, ok := p.PopToken(KindV2); ok {
		return tok, "", true
	}
	if r == nil {
		return ChallengeToken{}, "", false
	}

	r.mu.Lock()
	others := r.profilesLocked()
	r.mu.Unlock()
	for _, donor := range others {
		if donor.ID() == p.ID() || !donor.Active() {
			continue
		}
		if tok, ok := donor.PopToken(KindV3); ok {
			log.Debugf("profile %s borrowed a token from %s", p.ID(), donor.ID())
			return tok, donor.ID(), true
		}
	}
	return ChallengeToken{}, "", false
}

// ModelNames merges the catalogs of all active profiles into one sorted
// name list.
func (r *Registry) ModelNames() []string {
	if r == nil {
		return nil
	}
	seen := make(map[string]struct{})
	names := make([]string, 0)
	for _, p := range r.Profiles() {
		if !p.Active() {
			continue
		}
		for _, name := range p.Catalog().Names() {
			if _, dup := seen[name]; !dup {
				seen[name] = struct{}{}
				names = append(names, name)
			}
		}
	}
	sort.Strings(names)
	return names
}

// ActiveCount reports how many profiles are currently active.
func (r *Registry) ActiveCount() int {
	count := 0
	for _, p := range r.Profiles() {
		if p.Active() {
			count++
		}
	}
	return count
}

// Snapshots captures every profile's status in insertion order.
func (r *Registry) Snapshots() []Snapshot {
	profiles := r.Profiles()
	out := make([]Snapshot, 0, len(profiles))
	for _, p := range profiles {
		out = append(out, p.Snapshot())
	}
	return out
}

// Sweep purges expired tokens across every pool and returns the total
// removed. Pop purges lazily as well, so the sweep is housekeeping, not a
// correctness requirement.
func (r *Registry) Sweep() int {
	removed := 0
	for _, p := range r.Profiles() {
		removed += p.Pool().Purge()
	}
	return removed
}

// Run sweeps expired tokens on the configured interval until ctx is done.
func (r *Registry) Run(ctx context.Context) error {
	if r == nil {
		return nil
	}
	ticker := time.NewTicker(r.limits.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if removed := r.Sweep(); removed > 0 {
				log.Debugf("token sweep removed %d expired tokens", removed)
			}
		}
	}
}

// SetClock rewires the registry and every existing profile onto now,
// used by tests to control token expiry and activity windows.
func (r *Registry) SetClock(now func() time.Time) {
	if r == nil || now == nil {
		return
	}
	r.mu.Lock()
	r.now = now
	profiles := r.profilesLocked()
	r.mu.Unlock()
	for _, p := range profiles {
		p.setClock(now)
	}
}
