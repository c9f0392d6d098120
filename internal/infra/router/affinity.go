package router

import "toolgate/internal/domain"

// Context tag families used for domain affinity scoring. The table is
// fixed: tools in the context's own family score higher, tools in an
// adjacent family are neutral, and everything else is penalized.
type family struct {
	members  map[string]struct{}
	adjacent []string
}

const defaultFamily = "home"

var families = map[string]family{
	"home": {
		members:  tagSet("home", "smart_home", "iot"),
		adjacent: []string{"media", "standard"},
	},
	"media": {
		members:  tagSet("media", "music", "video"),
		adjacent: []string{"home", "standard"},
	},
	"dev": {
		members:  tagSet("dev", "code", "system"),
		adjacent: []string{"standard"},
	},
	"comms": {
		members:  tagSet("comms", "email", "chat"),
		adjacent: []string{"standard"},
	},
	"standard": {
		members:  tagSet("standard", "utility", "search"),
		adjacent: []string{"home", "media", "dev", "comms"},
	},
}

// affinityMultiplier scores a tool domain against the turn's context tag.
func affinityMultiplier(contextTag, domainTag string) float64 {
	fam := familyFor(contextTag)
	if _, ok := fam.members[domainTag]; ok {
		return domain.SameFamilyBoost
	}
	for _, name := range fam.adjacent {
		if _, ok := families[name].members[domainTag]; ok {
			return domain.AdjacentFamilyFactor
		}
	}
	return domain.ForeignFamilyPenalty
}

func familyFor(tag string) family {
	if tag == "" {
		return families[defaultFamily]
	}
	if fam, ok := families[tag]; ok {
		return fam
	}
	for _, fam := range families {
		if _, ok := fam.members[tag]; ok {
			return fam
		}
	}
	return families[defaultFamily]
}

func tagSet(tags ...string) map[string]struct{} {
	out := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		out[t] = struct{}{}
	}
	return out
}
