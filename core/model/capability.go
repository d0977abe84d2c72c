package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Capability is an emergency category a team is qualified to handle. It is
// also the matching key between requests and teams.
type Capability string

const (
	CapabilityFire            Capability = "FIRE"
	CapabilityMedical         Capability = "MEDICAL"
	CapabilityCrime           Capability = "CRIME"
	CapabilityNaturalDisaster Capability = "NATURAL_DISASTER"
	CapabilityAccident        Capability = "ACCIDENT"
	CapabilityRescue          Capability = "RESCUE"
	CapabilityHazmat          Capability = "HAZMAT"
)

var catalog = []Capability{
	CapabilityFire,
	CapabilityMedical,
	CapabilityCrime,
	CapabilityNaturalDisaster,
	CapabilityAccident,
	CapabilityRescue,
	CapabilityHazmat,
}

// Capabilities returns the catalog in declaration order.
func Capabilities() []Capability {
	out := make([]Capability, len(catalog))
	copy(out, catalog)
	return out
}

// Valid reports whether c belongs to the catalog.
func (c Capability) Valid() bool {
	for _, k := range catalog {
		if k == c {
			return true
		}
	}
	return false
}

func (c Capability) String() string { return string(c) }

// ParseCapability converts s into a catalog value. Matching ignores case and
// accepts '-' or ' ' in place of '_'.
func ParseCapability(s string) (Capability, error) {
	norm := strings.ToUpper(strings.TrimSpace(s))
	norm = strings.NewReplacer("-", "_", " ", "_").Replace(norm)
	c := Capability(norm)
	if !c.Valid() {
		return "", fmt.Errorf("unknown capability %q", s)
	}
	return c, nil
}

// CapabilitySet is the set of capabilities held by a team.
type CapabilitySet map[Capability]struct{}

// NewCapabilitySet builds a set from the given values.
func NewCapabilitySet(caps ...Capability) CapabilitySet {
	s := make(CapabilitySet, len(caps))
	for _, c := range caps {
		s[c] = struct{}{}
	}
	return s
}

// Has reports whether c is part of the set.
func (s CapabilitySet) Has(c Capability) bool {
	_, ok := s[c]
	return ok
}

// Slice returns the members in catalog order so output is stable.
func (s CapabilitySet) Slice() []Capability {
	out := make([]Capability, 0, len(s))
	for _, c := range catalog {
		if s.Has(c) {
			out = append(out, c)
		}
	}
	return out
}

// Clone returns an independent copy of the set.
func (s CapabilitySet) Clone() CapabilitySet {
	out := make(CapabilitySet, len(s))
	for c := range s {
		out[c] = struct{}{}
	}
	return out
}

// Validate checks the set is non-empty and only holds catalog values.
func (s CapabilitySet) Validate() error {
	if len(s) == 0 {
		return fmt.Errorf("capability set is empty")
	}
	for c := range s {
		if !c.Valid() {
			return fmt.Errorf("unknown capability %q", string(c))
		}
	}
	return nil
}

// MarshalJSON encodes the set as an ordered list.
func (s CapabilitySet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Slice())
}

// UnmarshalJSON decodes a list of capability names.
func (s *CapabilitySet) UnmarshalJSON(b []byte) error {
	var names []string
	if err := json.Unmarshal(b, &names); err != nil {
		return err
	}
	out := make(CapabilitySet, len(names))
	for _, n := range names {
		c, err := ParseCapability(n)
		if err != nil {
			return err
		}
		out[c] = struct{}{}
	}
	*s = out
	return nil
}
