package scoring

import "strings"

// VenueTiers holds curated venue name fragments. Matching is
// case-insensitive substring containment against the article's venue field,
// so "NeurIPS 2024 Workshop" matches the "neurips" entry.
type VenueTiers struct {
	Tier1 []string
	Tier2 []string
}

// DefaultVenues returns the built-in curated venue lists.
func DefaultVenues() *VenueTiers {
	return &VenueTiers{
		Tier1: []string{
			"nature",
			"science",
			"cell",
			"lancet",
			"nejm",
			"new england journal",
			"neurips",
			"nips",
			"icml",
			"iclr",
			"acl",
			"cvpr",
			"jama",
			"pnas",
		},
		Tier2: []string{
			"plos",
			"bioinformatics",
			"ieee",
			"acm",
			"emnlp",
			"aaai",
			"bmc",
			"frontiers",
			"scientific reports",
			"elife",
		},
	}
}

// ImpactScore maps a venue name onto its tier points: 20 for tier-1 venues,
// 12 for tier-2, 5 otherwise (including unknown or empty venues).
func (v *VenueTiers) ImpactScore(venue string) float64 {
	if venue == "" {
		return 5
	}
	lower := strings.ToLower(venue)
	for _, fragment := range v.Tier1 {
		if strings.Contains(lower, fragment) {
			return maxImpactScore
		}
	}
	for _, fragment := range v.Tier2 {
		if strings.Contains(lower, fragment) {
			return 12
		}
	}
	return 5
}
