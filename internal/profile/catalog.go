package profile

import (
	"sort"
	"strings"
)

// ModelCatalog maps public model names to upstream ids, split by output
// capability, with a vision set for image-input models. A model declaring
// both text and image output appears in both partitions; one declaring
// neither is not resolvable. A catalog is built once from a push and never
// mutated; profiles swap catalogs wholesale.
type ModelCatalog struct {
	text   map[string]string
	image  map[string]string
	vision map[string]struct{}
}

// NewModelCatalog builds a catalog from pushed entries. Entries without a
// public name or upstream id are skipped.
func NewModelCatalog(entries []ModelEntry) *ModelCatalog {
	c := &ModelCatalog{
		text:   make(map[string]string),
		image:  make(map[string]string),
		vision: make(map[string]struct{}),
	}
	for _, entry := range entries {
		name := strings.TrimSpace(entry.PublicName)
		id := strings.TrimSpace(entry.ID)
		if name == "" || id == "" {
			continue
		}
		if hasCapability(entry.Capabilities.OutputCapabilities, "text") {
			c.text[name] = id
		}
		if hasCapability(entry.Capabilities.OutputCapabilities, "image") {
			c.image[name] = id
		}
		if hasCapability(entry.Capabilities.InputCapabilities, "image") {
			c.vision[name] = struct{}{}
		}
	}
	return c
}

func hasCapability(caps []string, want string) bool {
	for _, c := range caps {
		if strings.EqualFold(strings.TrimSpace(c), want) {
			return true
		}
	}
	return false
}

// Contains reports whether name is an exact catalog entry in either
// partition.
func (c *ModelCatalog) Contains(name string) bool {
	if c == nil {
		return false
	}
	_, inText := c.text[name]
	_, inImage := c.image[name]
	return inText || inImage
}

// Resolve maps a requested model name to its upstream id, canonical public
// name, and modality. Exact matches win over fuzzy ones and text output
// wins over image, so a fuzzy match may rewrite the public name the caller
// sees. Fuzzy matching scans sorted names, case-insensitively, and accepts
// either string containing the other.
func (c *ModelCatalog) Resolve(name string) (ResolvedModel, bool) {
	if c == nil || name == "" {
		return ResolvedModel{}, false
	}
	if id, ok := c.text[name]; ok {
		return ResolvedModel{UpstreamID: id, PublicName: name, Modality: ModalityChat}, true
	}
	if id, ok := c.image[name]; ok {
		return ResolvedModel{UpstreamID: id, PublicName: name, Modality: ModalityImage}, true
	}

	lower := strings.ToLower(name)
	for _, candidate := range sortedKeys(c.text) {
		if fuzzyMatch(lower, candidate) {
			return ResolvedModel{UpstreamID: c.text[candidate], PublicName: candidate, Modality: ModalityChat}, true
		}
	}
	for _, candidate := range sortedKeys(c.image) {
		if fuzzyMatch(lower, candidate) {
			return ResolvedModel{UpstreamID: c.image[candidate], PublicName: candidate, Modality: ModalityImage}, true
		}
	}
	return ResolvedModel{}, false
}

// ResolvedModel is the outcome of model resolution.
type ResolvedModel struct {
	UpstreamID string
	PublicName string
	Modality   Modality
}

func fuzzyMatch(requestedLower, candidate string) bool {
	candidateLower := strings.ToLower(candidate)
	return strings.Contains(candidateLower, requestedLower) || strings.Contains(requestedLower, candidateLower)
}

// IsVision reports whether the model accepts image input.
func (c *ModelCatalog) IsVision(name string) bool {
	if c == nil {
		return false
	}
	_, ok := c.vision[name]
	return ok
}

// Names returns every public model name across both partitions, sorted.
func (c *ModelCatalog) Names() []string {
	if c == nil {
		return nil
	}
	seen := make(map[string]struct{}, len(c.text)+len(c.image))
	out := make([]string, 0, len(c.text)+len(c.image))
	for name := range c.text {
		if _, dup := seen[name]; !dup {
			seen[name] = struct{}{}
			out = append(out, name)
		}
	}
	for name := range c.image {
		if _, dup := seen[name]; !dup {
			seen[name] = struct{}{}
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// Empty reports whether the catalog holds no models at all.
func (c *ModelCatalog) Empty() bool {
	return c == nil || (len(c.text) == 0 && len(c.image) == 0)
}

// TextCount and ImageCount size the two partitions for status reporting.
func (c *ModelCatalog) TextCount() int {
	if c == nil {
		return 0
	}
	return len(c.text)
}

func (c *ModelCatalog) ImageCount() int {
	if c == nil {
		return 0
	}
	return len(c.image)
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
