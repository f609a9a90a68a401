// Package arena converts OpenAI-style chat completion requests into the
// upstream evaluation protocol and translates the upstream line-tagged
// event stream back into OpenAI responses.
package arena

import "github.com/google/uuid"

// NewMessageID returns a time-ordered identifier for upstream message and
// evaluation ids: a UUIDv7, millisecond-sortable with random low bits. The
// v4 fallback only fires when the random source fails.
func NewMessageID() string {
	if id, err := uuid.NewV7(); err == nil {
		return id.String()
	}
	return uuid.NewString()
}
