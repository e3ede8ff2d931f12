package topic

import (
	"fmt"
	"strings"
)

// Builder encapsulates the construction of MQTT topic strings under a common
// root namespace (e.g. "iot/v1", "gatewing/prod"). All topics follow the
// pattern {root}/{segment}/{identifier}.
type Builder struct {
	root string
}

// NewBuilder creates a new Builder with the specified root namespace.
func NewBuilder(root string) *Builder {
	return &Builder{root: strings.TrimSuffix(root, "/")}
}

// Build constructs the topic string for a segment and identifier.
func (b *Builder) Build(segment, id string) string {
	return fmt.Sprintf("%s/%s/%s", b.root, segment, id)
}

// BuildWildcard constructs the single-level wildcard filter for a segment,
// matching all identifiers. Used by cloud-side subscribers.
func (b *Builder) BuildWildcard(segment string) string {
	return b.Build(segment, Wildcard)
}
