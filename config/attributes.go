package config

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Attribute keys accepted by ApplyAttributes.
const (
	AttrRepository     = "repository"
	AttrWorkspace      = "workspace"
	AttrBranch         = "branch"
	AttrSubmodulesHack = "submodulesHack"
	AttrPollInterval   = "pollInterval"
)

// ApplyAttributes overlays a flat attribute map onto c. Only present keys
// change c. submodulesHack toggles RecoveryFallback. Unknown keys and
// unparsable values fail the whole call without modifying c.
func (c *Config) ApplyAttributes(attrs map[string]string) error {
	next := *c

	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		value := strings.TrimSpace(attrs[key])
		switch key {
		case AttrRepository:
			next.Repository = value
		case AttrWorkspace:
			next.Workspace = value
		case AttrBranch:
			next.Branch = value
		case AttrSubmodulesHack:
			b, err := parseBool(value)
			if err != nil {
				return fmt.Errorf("%w: attribute %s: %v", ErrInvalidConfig, key, err)
			}
			next.RecoveryFallback = b
		case AttrPollInterval:
			d, err := ParseDuration(value)
			if err != nil {
				return fmt.Errorf("%w: attribute %s: %v", ErrInvalidConfig, key, err)
			}
			next.PollInterval = d
		default:
			return fmt.Errorf("%w: unknown attribute %q", ErrInvalidConfig, key)
		}
	}

	*c = next
	return nil
}

// Attributes returns c in attribute form. Empty values are omitted.
func (c *Config) Attributes() map[string]string {
	attrs := make(map[string]string)
	set := func(k, v string) {
		if v != "" {
			attrs[k] = v
		}
	}

	set(AttrRepository, c.Repository)
	set(AttrWorkspace, c.Workspace)
	set(AttrBranch, c.Branch)
	attrs[AttrSubmodulesHack] = strconv.FormatBool(c.RecoveryFallback)
	if c.PollInterval > 0 {
		attrs[AttrPollInterval] = c.PollInterval.Std().String()
	}
	return attrs
}

// parseBool accepts strconv booleans plus yes/no and on/off. An empty value
// is false.
func parseBool(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "":
		return false, nil
	case "yes", "on":
		return true, nil
	case "no", "off":
		return false, nil
	}
	return strconv.ParseBool(s)
}
