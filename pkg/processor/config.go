package processor

import (
	"fmt"
	"maps"
	"slices"

	"github.com/platinummonkey/eventlens/pkg/events"
)

// Config defines the transformation rules applied to a batch
type Config struct {
	// DropUnknownProperties removes every property whose (renamed) key is not
	// listed in KnownProperties
	DropUnknownProperties bool `yaml:"drop_unknown_properties" json:"drop_unknown_properties"`
	// KnownProperties lists the property keys kept when dropping is enabled
	KnownProperties []string `yaml:"known_properties" json:"known_properties,omitempty"`
	// RenameMap renames property keys. A renamed key replaces an existing
	// property of the same name. Targets must not be renamed themselves, so
	// processing an already processed batch changes nothing.
	RenameMap map[string]string `yaml:"rename_map" json:"rename_map,omitempty"`
	// Coerce converts the value of a (renamed) property to the given kind
	Coerce map[string]events.Kind `yaml:"coerce" json:"coerce,omitempty"`
	// Deduplicate removes events equal to an earlier event in canonical order
	Deduplicate bool `yaml:"deduplicate" json:"deduplicate"`
	// Lenient omits unusable properties with a warning instead of rejecting
	// the record
	Lenient bool `yaml:"lenient" json:"lenient"`
	// Workers bounds the number of goroutines validating records.
	// Values below 2 validate sequentially.
	Workers int `yaml:"workers" json:"workers,omitempty"`
}

// DefaultConfig returns the default processing settings: no renaming, no
// coercion, unknown properties kept, duplicates retained, strict validation.
func DefaultConfig() *Config {
	return &Config{Workers: 1}
}

// Validate checks the configuration for contradictory rules
func (c *Config) Validate() error {
	if c.Workers < 0 {
		return fmt.Errorf("workers must be non-negative, got %d", c.Workers)
	}
	for _, from := range slices.Sorted(maps.Keys(c.RenameMap)) {
		to := c.RenameMap[from]
		if from == "" || to == "" {
			return fmt.Errorf("rename_map entries must have non-empty keys (%q -> %q)", from, to)
		}
		if next, ok := c.RenameMap[to]; ok && to != from {
			return fmt.Errorf("rename_map target %q is also renamed to %q; chained renames are not allowed", to, next)
		}
	}
	for key, kind := range c.Coerce {
		if key == "" {
			return fmt.Errorf("coerce entries must name a property")
		}
		if kind < events.KindNull || kind > events.KindString {
			return fmt.Errorf("coerce %q: unknown kind %d", key, kind)
		}
	}
	return nil
}
