package profile

import (
	"sort"
	"strings"
	"sync"
	"time"
)

// Health score weights. The score ranks eligible profiles during selection
// and never exceeds 100; an inactive profile always scores 0.
const (
	healthPerToken     = 15
	healthTokenCap     = 45
	healthAuthToken    = 20
	healthClearance    = 10
	healthCatalog      = 10
	healthRecencyFresh = 15
	healthRecencyWarm  = 10
	healthRecencyCool  = 5
	healthMax          = 100
)

// userIDCookie is the cookie consulted first when extracting an upstream
// user id. Fallback: the first cookie (by sorted name) whose name contains
// "user" and whose value is longer than 20 characters.
const userIDCookie = "arena-user-id"

// Profile is one independently authenticated upstream identity: cookies,
// auth and clearance tokens, a challenge token pool, and a model catalog.
// All mutation goes through ApplyPush and the token pop paths.
type Profile struct {
	id   string
	pool *TokenPool

	mu             sync.Mutex
	cookies        map[string]string
	authToken      string
	clearanceToken string
	catalog        *ModelCatalog
	nextActions    map[string]string
	lastPush       time.Time
	tokensServed   int64
	tokensReceived int64

	limits Limits
	now    func() time.Time
}

// NewProfile returns an empty profile under the given id.
func NewProfile(id string, limits Limits) *Profile {
	limits = limits.sanitized()
	return &Profile{
		id:          id,
		pool:        NewTokenPool(limits),
		cookies:     make(map[string]string),
		nextActions: make(map[string]string),
		limits:      limits,
		now:         time.Now,
	}
}

// ID returns the profile id.
func (p *Profile) ID() string {
	if p == nil {
		return ""
	}
	return p.id
}

// defaultTokenAction is assumed for pushed V3 tokens that carry no action.
const defaultTokenAction = "chat_submit"

// ApplyPush applies one extension push: a non-empty cookie jar replaces the
// previous one, credentials overwrite when non-empty, the catalog is
// replaced wholesale when the push carries a model list, next-action hashes
// are merged, and every pushed token goes through pool validation. The push
// always refreshes the activity stamp.
func (p *Profile) ApplyPush(data PushData) {
	if p == nil {
		return
	}
	accepted := int64(0)
	for _, t := range data.V3Tokens {
		action := t.Action
		if action == "" {
			action = defaultTokenAction
		}
		if p.pool.Push(t.Token, KindV3, action, time.Duration(t.AgeMS)*time.Millisecond) {
			accepted++
		}
	}
	if data.V2Token != nil {
		if p.pool.Push(data.V2Token.Token, KindV2, "", time.Duration(data.V2Token.AgeMS)*time.Millisecond) {
			accepted++
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if len(data.Cookies) > 0 {
		cookies := make(map[string]string, len(data.Cookies))
		for name, value := range data.Cookies {
			cookies[name] = value
		}
		p.cookies = cookies
	}
	if tok := strings.TrimSpace(data.AuthToken); tok != "" {
		p.authToken = tok
	}
	if clr := strings.TrimSpace(data.CFClearance); clr != "" {
		p.clearanceToken = clr
	}
	if data.Models != nil {
		p.catalog = NewModelCatalog(data.Models)
	}
	for action, hash := range data.NextActions {
		p.nextActions[action] = hash
	}
	p.tokensReceived += accepted
	p.lastPush = p.now()
}

// Active reports whether the profile received a push within the profile
// timeout window.
func (p *Profile) Active() bool {
	if p == nil {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.activeLocked()
}

func (p *Profile) activeLocked() bool {
	if p.lastPush.IsZero() {
		return false
	}
	return p.now().Sub(p.lastPush) < p.limits.ProfileTimeout
}

// HealthScore ranks the profile for selection: token richness, credential
// presence, catalog presence, and push recency, capped at 100. Inactive
// profiles score 0.
func (p *Profile) HealthScore() int {
	if p == nil {
		return 0
	}
	tokens := p.pool.Count()

	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.activeLocked() {
		return 0
	}
	score := tokens * healthPerToken
	if score > healthTokenCap {
		score = healthTokenCap
	}
	if p.authToken != "" {
		score += healthAuthToken
	}
	if p.clearanceToken != "" {
		score += healthClearance
	}
	if !p.catalog.Empty() {
		score += healthCatalog
	}
	switch age := p.now().Sub(p.lastPush); {
	case age < 30*time.Second:
		score += healthRecencyFresh
	case age < 60*time.Second:
		score += healthRecencyWarm
	case age < 90*time.Second:
		score += healthRecencyCool
	}
	if score > healthMax {
		score = healthMax
	}
	return score
}

// PopToken removes the oldest valid token of the given kind, counting a
// successful pop toward tokensServed.
func (p *Profile) PopToken(kind Kind) (ChallengeToken, bool) {
	if p == nil {
		return ChallengeToken{}, false
	}
	tok, ok := p.pool.Pop(kind)
	if ok {
		p.mu.Lock()
		p.tokensServed++
		p.mu.Unlock()
	}
	return tok, ok
}

// TokenCount returns the number of valid V3 tokens without consuming any.
func (p *Profile) TokenCount() int {
	if p == nil {
		return 0
	}
	return p.pool.Count()
}

// Pool exposes the underlying token pool for maintenance sweeps.
func (p *Profile) Pool() *TokenPool {
	if p == nil {
		return nil
	}
	return p.pool
}

// Catalog returns the current model catalog, possibly nil before the first
// catalog-bearing push.
func (p *Profile) Catalog() *ModelCatalog {
	if p == nil {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.catalog
}

// Credentials is the header material one upstream call needs.
type Credentials struct {
	Cookies        map[string]string
	AuthToken      string
	ClearanceToken string
	UserID         string
}

// RequestCredentials snapshots the cookie map and tokens for an upstream
// call, including the heuristically extracted user id.
func (p *Profile) RequestCredentials() Credentials {
	if p == nil {
		return Credentials{}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	cookies := make(map[string]string, len(p.cookies))
	for name, value := range p.cookies {
		cookies[name] = value
	}
	return Credentials{
		Cookies:        cookies,
		AuthToken:      p.authToken,
		ClearanceToken: p.clearanceToken,
		UserID:         userIDFromCookies(p.cookies),
	}
}

// userIDFromCookies extracts an upstream user id from the cookie set: the
// arena-user-id cookie wins, otherwise the first cookie by sorted name whose
// name contains "user" and whose value is longer than 20 characters. This
// is a bounded heuristic, not a trust mechanism.
func userIDFromCookies(cookies map[string]string) string {
	if value, ok := cookies[userIDCookie]; ok && value != "" {
		return value
	}
	names := make([]string, 0, len(cookies))
	for name := range cookies {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if strings.Contains(strings.ToLower(name), "user") && len(cookies[name]) > 20 {
			return cookies[name]
		}
	}
	return ""
}

// Snapshot captures the profile state for status reporting.
func (p *Profile) Snapshot() Snapshot {
	if p == nil {
		return Snapshot{}
	}
	health := p.HealthScore()
	tokens := p.pool.Count()
	hasV2 := p.pool.HasValidV2()

	p.mu.Lock()
	defer p.mu.Unlock()
	var age float64
	if !p.lastPush.IsZero() {
		age = p.now().Sub(p.lastPush).Seconds()
	}
	actions := make([]string, 0, len(p.nextActions))
	for action := range p.nextActions {
		actions = append(actions, action)
	}
	sort.Strings(actions)
	cookieNames := make([]string, 0, len(p.cookies))
	for name := range p.cookies {
		cookieNames = append(cookieNames, name)
	}
	sort.Strings(cookieNames)
	return Snapshot{
		ID:             p.id,
		Active:         p.activeLocked(),
		HealthScore:    health,
		V3Tokens:       tokens,
		HasV2Token:     hasV2,
		TextModels:     p.catalog.TextCount(),
		ImageModels:    p.catalog.ImageCount(),
		HasAuthToken:   p.authToken != "",
		HasClearance:   p.clearanceToken != "",
		LastPushAgeSec: age,
		TokensServed:   p.tokensServed,
		TokensReceived: p.tokensReceived,
		NextActions:    actions,
		CookieNames:    cookieNames,
	}
}

// setClock rewires the profile and its pool onto a test clock.
func (p *Profile) setClock(now func() time.Time) {
	p.mu.Lock()
	p.now = now
	p.mu.Unlock()
	p.pool.mu.Lock()
	p.pool.now = now
	p.pool.mu.Unlock()
}
