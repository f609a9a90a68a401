// Package profile manages browser profiles: their credentials, per-profile
// challenge token pools, model catalogs, health scoring, and selection.
package profile

import "time"

// Kind distinguishes the two challenge token families the upstream accepts.
type Kind string

const (
	KindV3 Kind = "v3"
	KindV2 Kind = "v2"
)

// ChallengeToken is one externally minted anti-automation credential. It is
// immutable once created and consumed at most once.
type ChallengeToken struct {
	Value    string
	Kind     Kind
	Action   string
	MintedAt time.Time
}

// Limits bounds pool and profile behavior. Zero values are replaced with
// defaults by NewRegistry and NewTokenPool.
type Limits struct {
	Capacity       int
	TokenTTL       time.Duration
	MinTokenLength int
	ProfileTimeout time.Duration
	SweepInterval  time.Duration
}

// DefaultLimits returns the stock pool and profile bounds.
func DefaultLimits() Limits {
	return Limits{
		Capacity:       30,
		TokenTTL:       110 * time.Second,
		MinTokenLength: 20,
		ProfileTimeout: 120 * time.Second,
		SweepInterval:  30 * time.Second,
	}
}

func (l Limits) sanitized() Limits {
	def := DefaultLimits()
	if l.Capacity <= 0 {
		l.Capacity = def.Capacity
	}
	if l.TokenTTL <= 0 {
		l.TokenTTL = def.TokenTTL
	}
	if l.MinTokenLength <= 0 {
		l.MinTokenLength = def.MinTokenLength
	}
	if l.ProfileTimeout <= 0 {
		l.ProfileTimeout = def.ProfileTimeout
	}
	if l.SweepInterval <= 0 {
		l.SweepInterval = def.SweepInterval
	}
	return l
}

// PushData is one JSON push from the browser extension. All fields are
// optional; a nil Models slice means the push carried no catalog at all,
// while an empty non-nil slice clears the catalog.
type PushData struct {
	ProfileID   string            `json:"profile_id"`
	Cookies     map[string]string `json:"cookies"`
	AuthToken   string            `json:"auth_token"`
	CFClearance string            `json:"cf_clearance"`
	V3Tokens    []V3Token         `json:"v3_tokens"`
	V2Token     *V2Token          `json:"v2_token"`
	Models      []ModelEntry      `json:"models"`
	NextActions map[string]string `json:"next_actions"`
}

// V3Token is one pushed reCAPTCHA v3 token with its age at push time.
type V3Token struct {
	Token  string `json:"token"`
	Action string `json:"action"`
	AgeMS  int64  `json:"age_ms"`
}

// V2Token is the single-slot reCAPTCHA v2 token.
type V2Token struct {
	Token string `json:"token"`
	AgeMS int64  `json:"age_ms"`
}

// ModelEntry is one catalog row from a push.
type ModelEntry struct {
	PublicName   string       `json:"publicName"`
	ID           string       `json:"id"`
	Capabilities Capabilities `json:"capabilities"`
}

// Capabilities lists what a model consumes and produces.
type Capabilities struct {
	InputCapabilities  []string `json:"inputCapabilities"`
	OutputCapabilities []string `json:"outputCapabilities"`
}

// Modality is the upstream generation mode derived from the resolved model.
type Modality string

const (
	ModalityChat  Modality = "chat"
	ModalityImage Modality = "image"
)

// Snapshot is a point-in-time read of one profile for status reporting.
// Cookie values never leave the profile, only their names do.
type Snapshot struct {
	ID             string   `json:"id"`
	Active         bool     `json:"active"`
	HealthScore    int      `json:"health_score"`
	V3Tokens       int      `json:"v3_tokens"`
	HasV2Token     bool     `json:"has_v2"`
	TextModels     int      `json:"text_models"`
	ImageModels    int      `json:"image_models"`
	HasAuthToken   bool     `json:"has_auth"`
	HasClearance   bool     `json:"has_cf"`
	LastPushAgeSec float64  `json:"last_push_ago"`
	TokensServed   int64    `json:"tokens_served"`
	TokensReceived int64    `json:"tokens_received"`
	NextActions    []string `json:"next_actions"`
	CookieNames    []string `json:"cookies"`
}
