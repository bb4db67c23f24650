// Package catalog holds the static reference data shown next to a prediction:
// descriptive sentences per migraine subtype and the default symptom profiles.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// FallbackInfo is returned for labels with no catalog entry.
const FallbackInfo = "No detailed info available."

// ErrUnknownProfile is returned when a profile name matches no default profile.
var ErrUnknownProfile = errors.New("unknown profile")

//go:embed data/catalog.yaml
var embeddedCatalog []byte

// Profile is a named, representative symptom vector.
type Profile struct {
	Name   string    `yaml:"name" json:"name"`
	Values []float64 `yaml:"values" json:"values"`
}

type catalogFile struct {
	Subtypes map[string][]string `yaml:"subtypes"`
	Profiles []Profile           `yaml:"profiles"`
}

// Catalog is read-only after Load and safe for concurrent use.
type Catalog struct {
	info      map[string][]string
	names     map[string]string
	profiles  []Profile
	byProfile map[string]int
}

// NormalizeLabel trims, case-folds and strips hyphens and spaces so that
// "Migraine without aura" and "migraine-without aura" share a key.
func NormalizeLabel(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer("-", "", " ", "").Replace(s)
}

// Load reads the catalog from path. An empty path loads the embedded default.
func Load(path string) (*Catalog, error) {
	data := embeddedCatalog
	source := "embedded"
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read catalog: %w", err)
		}
		source = path
	}

	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", source, err)
	}

	log.Info().
		Str("source", source).
		Int("subtypes", len(c.info)).
		Int("profiles", len(c.profiles)).
		Msg("catalog loaded")
	return c, nil
}

// Parse builds a Catalog from YAML. Keys or profile names that collide after
// normalization are rejected.
func Parse(data []byte) (*Catalog, error) {
	var cf catalogFile
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}

	c := &Catalog{
		info:      make(map[string][]string, len(cf.Subtypes)),
		names:     make(map[string]string, len(cf.Subtypes)),
		byProfile: make(map[string]int, len(cf.Profiles)),
	}

	for name, points := range cf.Subtypes {
		key := NormalizeLabel(name)
		if key == "" {
			return nil, fmt.Errorf("subtype with empty name")
		}
		if prev, dup := c.names[key]; dup {
			return nil, fmt.Errorf("subtypes %q and %q normalize to the same key", prev, name)
		}
		if len(points) == 0 {
			return nil, fmt.Errorf("subtype %q has no info", name)
		}
		c.names[key] = name
		c.info[key] = append([]string(nil), points...)
	}

	width := -1
	for i, p := range cf.Profiles {
		key := NormalizeLabel(p.Name)
		if key == "" {
			return nil, fmt.Errorf("profile %d has no name", i)
		}
		if prev, dup := c.byProfile[key]; dup {
			return nil, fmt.Errorf("profiles %q and %q normalize to the same key", cf.Profiles[prev].Name, p.Name)
		}
		if width >= 0 && len(p.Values) != width {
			return nil, fmt.Errorf("profile %q has %d values, want %d", p.Name, len(p.Values), width)
		}
		width = len(p.Values)
		c.byProfile[key] = i
		c.profiles = append(c.profiles, copyProfile(p))
	}

	return c, nil
}

// Info returns the descriptive sentences for label. When the label is not
// catalogued it returns the single fallback sentence and false.
func (c *Catalog) Info(label string) ([]string, bool) {
	points, ok := c.info[NormalizeLabel(label)]
	if !ok {
		log.Debug().Str("label", label).Msg("no catalog entry for label")
		return []string{FallbackInfo}, false
	}
	return append([]string(nil), points...), true
}

// Has reports whether label has a catalog entry.
func (c *Catalog) Has(label string) bool {
	_, ok := c.info[NormalizeLabel(label)]
	return ok
}

// Subtypes returns the catalogued subtype names, sorted.
func (c *Catalog) Subtypes() []string {
	out := make([]string, 0, len(c.names))
	for _, name := range c.names {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Profiles returns the default profiles in file order.
func (c *Catalog) Profiles() []Profile {
	out := make([]Profile, len(c.profiles))
	for i, p := range c.profiles {
		out[i] = copyProfile(p)
	}
	return out
}

// Profile looks up a default profile by normalized name.
func (c *Catalog) Profile(name string) (Profile, bool) {
	i, ok := c.byProfile[NormalizeLabel(name)]
	if !ok {
		return Profile{}, false
	}
	return copyProfile(c.profiles[i]), true
}

// LookupProfile is Profile with ErrUnknownProfile on a miss.
func (c *Catalog) LookupProfile(name string) (Profile, error) {
	p, ok := c.Profile(name)
	if !ok {
		return Profile{}, fmt.Errorf("%w: %q", ErrUnknownProfile, name)
	}
	return p, nil
}

// Missing returns the labels that have no catalog entry, in input order.
func (c *Catalog) Missing(labels []string) []string {
	var missing []string
	for _, l := range labels {
		if !c.Has(l) {
			missing = append(missing, l)
		}
	}
	return missing
}

func copyProfile(p Profile) Profile {
	return Profile{Name: p.Name, Values: append([]float64(nil), p.Values...)}
}
