// Package schemes matches claims against the welfare scheme catalog.
package schemes

import (
	_ "embed"
	"fmt"
	"sort"

	"fraatlas/internal/models"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var catalogYAML []byte

// Rules restrict which claims a scheme applies to. Empty lists match anything.
type Rules struct {
	ClaimTypes  []models.ClaimType   `yaml:"claim_types" json:"claim_types,omitempty"`
	Statuses    []models.ClaimStatus `yaml:"statuses" json:"statuses,omitempty"`
	MaxLandArea *float64             `yaml:"max_land_area" json:"max_land_area,omitempty"`
}

// Scheme is a government welfare programme.
type Scheme struct {
	Name        string   `yaml:"name" json:"scheme"`
	Description string   `yaml:"description" json:"description"`
	Benefits    string   `yaml:"benefits" json:"benefits"`
	Priority    string   `yaml:"priority" json:"priority"`
	Criteria    []string `yaml:"criteria" json:"eligibility_criteria"`
	Rules       Rules    `yaml:"rules" json:"rules"`
}

var priorityRank = map[string]int{"High": 0, "Medium": 1, "Low": 2}

// Catalog holds the known schemes.
type Catalog struct {
	schemes []Scheme
}

// Load parses a catalog document.
func Load(data []byte) (*Catalog, error) {
	var doc struct {
		Schemes []Scheme `yaml:"schemes"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse scheme catalog: %w", err)
	}
	for _, s := range doc.Schemes {
		if s.Name == "" {
			return nil, fmt.Errorf("scheme catalog: entry without name")
		}
		if _, ok := priorityRank[s.Priority]; !ok {
			return nil, fmt.Errorf("scheme %q: unknown priority %q", s.Name, s.Priority)
		}
	}
	return &Catalog{schemes: doc.Schemes}, nil
}

// Default returns the embedded catalog.
func Default() *Catalog {
	c, err := Load(catalogYAML)
	if err != nil {
		panic(err)
	}
	return c
}

// All returns every scheme sorted by priority.
func (c *Catalog) All() []Scheme {
	out := append([]Scheme(nil), c.schemes...)
	sortByPriority(out)
	return out
}

// Recommend returns the schemes the claim is eligible for, highest priority first.
func (c *Catalog) Recommend(claim *models.Claim) []Scheme {
	out := make([]Scheme, 0, len(c.schemes))
	for _, s := range c.schemes {
		if s.Rules.Matches(claim) {
			out = append(out, s)
		}
	}
	sortByPriority(out)
	return out
}

// Matches reports whether claim satisfies every rule.
func (r Rules) Matches(claim *models.Claim) bool {
	if len(r.ClaimTypes) > 0 && !contains(r.ClaimTypes, claim.ClaimType) {
		return false
	}
	if len(r.Statuses) > 0 && !contains(r.Statuses, claim.Status) {
		return false
	}
	if r.MaxLandArea != nil {
		if claim.LandArea == nil || *claim.LandArea > *r.MaxLandArea {
			return false
		}
	}
	return true
}

func contains[T comparable](list []T, v T) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

func sortByPriority(list []Scheme) {
	sort.SliceStable(list, func(i, j int) bool {
		return priorityRank[list[i].Priority] < priorityRank[list[j].Priority]
	})
}
