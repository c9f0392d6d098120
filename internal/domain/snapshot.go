package domain

import "time"

// IndexSnapshot is one immutable generation of the capability index.
// Vectors[i] embeds Routed[i] and SkillVectors[i] embeds Skills[i]; a
// snapshot with no vectors marks a degraded boot where embedding never
// succeeded.
type IndexSnapshot struct {
	Generation uint64
	BuiltAt    time.Time

	Core   []ToolDescriptor
	Routed []ToolDescriptor
	// Vectors are row-aligned with Routed.
	Vectors [][]float64

	Skills       []SkillDescriptor
	SkillVectors [][]float64
}

// AllTools returns core and routed descriptors in index order. Safe on a
// nil snapshot.
func (s *IndexSnapshot) AllTools() []ToolDescriptor {
	if s == nil {
		return nil
	}
	out := make([]ToolDescriptor, 0, len(s.Core)+len(s.Routed))
	out = append(out, s.Core...)
	out = append(out, s.Routed...)
	return out
}

// Lookup finds a tool by name across core and routed sets.
func (s *IndexSnapshot) Lookup(name string) (ToolDescriptor, bool) {
	if s == nil {
		return ToolDescriptor{}, false
	}
	for _, t := range s.Core {
		if t.Name == name {
			return t, true
		}
	}
	for _, t := range s.Routed {
		if t.Name == name {
			return t, true
		}
	}
	return ToolDescriptor{}, false
}
