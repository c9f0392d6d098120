package catalog

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"

	"toolgate/internal/domain"
)

// Catalog is the parsed tool and skill registry.
type Catalog struct {
	Tools  []domain.ToolDescriptor
	Skills []domain.SkillDescriptor
}

type rawCatalog struct {
	Tools  []rawTool  `toml:"tools"`
	Skills []rawSkill `toml:"skills"`
}

type rawTool struct {
	Name         string         `toml:"name"`
	Description  string         `toml:"description"`
	Domain       string         `toml:"domain"`
	RequiredRole string         `toml:"requiredRole"`
	Core         bool           `toml:"core"`
	InputSchema  map[string]any `toml:"inputSchema"`
}

type rawSkill struct {
	Name         string   `toml:"name"`
	Description  string   `toml:"description"`
	Domain       string   `toml:"domain"`
	RequiredRole string   `toml:"requiredRole"`
	Keywords     []string `toml:"keywords"`
	Instructions string   `toml:"instructions"`
}

// LoadCatalog reads and validates the TOML descriptor registry.
func LoadCatalog(path string) (Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Catalog{}, fmt.Errorf("read catalog: %w", err)
	}
	return ParseCatalog(raw)
}

// ParseCatalog decodes the registry and rejects duplicate or unnamed
// descriptors.
func ParseCatalog(raw []byte) (Catalog, error) {
	var decoded rawCatalog
	if err := toml.Unmarshal(raw, &decoded); err != nil {
		return Catalog{}, fmt.Errorf("parse catalog: %w", err)
	}

	seen := make(map[string]struct{}, len(decoded.Tools))
	out := Catalog{}
	for i, t := range decoded.Tools {
		if t.Name == "" {
			return Catalog{}, fmt.Errorf("catalog tool %d has no name", i)
		}
		if _, dup := seen[t.Name]; dup {
			return Catalog{}, fmt.Errorf("catalog tool %q declared twice", t.Name)
		}
		seen[t.Name] = struct{}{}
		out.Tools = append(out.Tools, domain.ToolDescriptor{
			Name:         t.Name,
			Description:  t.Description,
			Domain:       t.Domain,
			RequiredRole: t.RequiredRole,
			Core:         t.Core,
			InputSchema:  t.InputSchema,
		})
	}

	seenSkills := make(map[string]struct{}, len(decoded.Skills))
	for i, s := range decoded.Skills {
		if s.Name == "" {
			return Catalog{}, fmt.Errorf("catalog skill %d has no name", i)
		}
		if _, dup := seenSkills[s.Name]; dup {
			return Catalog{}, fmt.Errorf("catalog skill %q declared twice", s.Name)
		}
		seenSkills[s.Name] = struct{}{}
		out.Skills = append(out.Skills, domain.SkillDescriptor{
			Name:         s.Name,
			Description:  s.Description,
			Domain:       s.Domain,
			RequiredRole: s.RequiredRole,
			Keywords:     s.Keywords,
			Instructions: s.Instructions,
		})
	}
	return out, nil
}
