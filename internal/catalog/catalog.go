// Package catalog is the immutable registry of fixtures, groups, palettes,
// wheel maps and show definitions loaded once at startup.
package catalog

import (
	"sort"

	"lightrig/internal/color"
	"lightrig/internal/dmx"
)

// CapturableChannels are the channels recorded by scenes and band presets.
var CapturableChannels = []string{"pan", "tilt", "dim", "strobe", "color", "gobo", "r", "g", "b", "w"}

// DirectChannels are the value-map keys a fixture write passes through.
var DirectChannels = []string{
	"pan", "tilt", "dim", "strobe", "color", "gobo", "r", "g", "b", "w",
	"pattern", "speed", "macro", "segment", "rate", "mode", "rotation", "zoom",
}

// Fixture is one patched device after mode normalization.
type Fixture struct {
	Name     string
	Start    int            // 1-indexed DMX start address
	Channels map[string]int // logical channel -> 1-indexed offset
	Mode     string         // active channel-map mode, empty if the fixture has none
	Color    color.Strategy // nil when the fixture has no color matching
}

// Index returns the frame slot of channel ch. ok is false when the fixture has
// no such channel or the slot lies outside the universe.
func (f *Fixture) Index(ch string) (int, bool) {
	o, ok := f.Channels[ch]
	if !ok {
		return 0, false
	}
	idx := dmx.Index(f.Start, o)
	return idx, dmx.InRange(idx)
}

// Has reports whether the fixture exposes channel ch.
func (f *Fixture) Has(ch string) bool {
	_, ok := f.Channels[ch]
	return ok
}

// Capturable lists the capturable channels of the fixture in canonical order.
func (f *Fixture) Capturable() []string {
	var out []string
	for _, ch := range CapturableChannels {
		if f.Has(ch) {
			out = append(out, ch)
		}
	}
	return out
}

// Caps summarizes what a fixture can do, for status display.
type Caps struct {
	Name        string          `json:"name"`
	Start       int             `json:"start"`
	Caps        map[string]bool `json:"caps"`
	GoboChoices []string        `json:"gobo_choices"`
}

// Cluster is an automatic look family with its time-rotated variants.
type Cluster struct {
	Key   string   `yaml:"key" json:"key"`
	Label string   `yaml:"label" json:"label,omitempty"`
	Subs  []string `yaml:"subs" json:"subs,omitempty"`
}

// WheelSlot is one named position of a wheel table.
type WheelSlot struct {
	Name  string
	Value int
}

// Catalog is read-only after Load returns.
type Catalog struct {
	fixtures map[string]*Fixture
	order    []string

	Groups    map[string][]string
	Palettes  map[string]string
	WheelMaps map[string][]WheelSlot
	GoboMaps  map[string][]WheelSlot

	AIClusters   []Cluster
	BandClusters []Cluster
	SoloTargets  []string

	Colors      map[string]string // custom colors, band palette lookup
	WLEDEffects map[string]int    // effect name -> WLED effect id

	GroupPresets map[string]map[string]Values
	BandTargets  []string
	ApplyOrder   []string // fixtures or groups replayed first, in this order

	Missing []string // configured paths Load did not find
}

// Fixture returns the named fixture.
func (c *Catalog) Fixture(name string) (*Fixture, bool) {
	f, ok := c.fixtures[name]
	return f, ok
}

// FixtureNames lists fixtures in catalog file order.
func (c *Catalog) FixtureNames() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// ReplayOrder lists every fixture once: those named by ApplyOrder first,
// groups expanded to their members, then the rest in file order. Unknown
// names are skipped.
func (c *Catalog) ReplayOrder() []string {
	out := make([]string, 0, len(c.order))
	seen := make(map[string]bool, len(c.order))
	add := func(name string) {
		if _, ok := c.fixtures[name]; ok && !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	for _, name := range c.ApplyOrder {
		if members, ok := c.Groups[name]; ok {
			for _, m := range members {
				add(m)
			}
			continue
		}
		add(name)
	}
	for _, name := range c.order {
		add(name)
	}
	return out
}

// Group returns the members of a group in group order.
func (c *Catalog) Group(name string) ([]string, bool) {
	g, ok := c.Groups[name]
	return g, ok
}

// GroupPreset returns preset name of group.
func (c *Catalog) GroupPreset(group, name string) (Values, bool) {
	v, ok := c.GroupPresets[group][name]
	return v, ok
}

// IsBandTarget reports whether target is in the band target list.
func (c *Catalog) IsBandTarget(target string) bool {
	for _, t := range c.BandTargets {
		if t == target {
			return true
		}
	}
	return false
}

// AICluster returns the AI cluster with the given key.
func (c *Catalog) AICluster(key string) (Cluster, bool) {
	return findCluster(c.AIClusters, key)
}

// BandClusterKeys lists band cluster keys in catalog order.
func (c *Catalog) BandClusterKeys() []string {
	out := make([]string, 0, len(c.BandClusters))
	for _, cl := range c.BandClusters {
		out = append(out, cl.Key)
	}
	return out
}

// Caps describes fixture name for the fixture list.
func (c *Catalog) Caps(name string) (Caps, bool) {
	f, ok := c.fixtures[name]
	if !ok {
		return Caps{}, false
	}
	caps := map[string]bool{
		"pan":    f.Has("pan"),
		"tilt":   f.Has("tilt"),
		"dim":    f.Has("dim"),
		"strobe": f.Has("strobe"),
		"color":  f.Has("color"),
		"gobo":   f.Has("gobo"),
		"rgb":    f.Has("r") && f.Has("g") && f.Has("b"),
		"w":      f.Has("w"),
	}
	out := Caps{Name: name, Start: f.Start, Caps: caps, GoboChoices: []string{}}
	if f.Has("gobo") {
		seen := map[string]bool{}
		for _, table := range []string{"mh_gobo", "scanner_gobo"} {
			for _, slot := range c.GoboMaps[table] {
				if !seen[slot.Name] {
					seen[slot.Name] = true
					out.GoboChoices = append(out.GoboChoices, slot.Name)
				}
			}
		}
		sort.Strings(out.GoboChoices)
	}
	return out, true
}

func findCluster(list []Cluster, key string) (Cluster, bool) {
	for _, cl := range list {
		if cl.Key == key {
			return cl, true
		}
	}
	return Cluster{}, false
}
