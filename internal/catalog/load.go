package catalog

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"lightrig/internal/color"
	"lightrig/internal/dmx"
)

// defaultMode is the channel-map mode used when a fixture names none, or names
// one it does not define.
const defaultMode = "simple"

// Paths locates the definition files. Empty or missing files load as empty
// sections. The files are YAML; JSON documents are accepted as-is.
type Paths struct {
	Fixtures     string
	AIClusters   string
	BandClusters string
	Colors       string
	WLEDEffects  string
	Presets      string
}

// Sources holds the raw contents of the definition files.
type Sources struct {
	Fixtures     []byte
	AIClusters   []byte
	BandClusters []byte
	Colors       []byte
	WLEDEffects  []byte
	Presets      []byte
}

// Load reads every file in p and builds the catalog. Configured paths that
// do not exist are listed in Catalog.Missing.
func Load(p Paths) (*Catalog, error) {
	var src Sources
	var missing []string
	for _, f := range []struct {
		path string
		dst  *[]byte
	}{
		{p.Fixtures, &src.Fixtures},
		{p.AIClusters, &src.AIClusters},
		{p.BandClusters, &src.BandClusters},
		{p.Colors, &src.Colors},
		{p.WLEDEffects, &src.WLEDEffects},
		{p.Presets, &src.Presets},
	} {
		data, err := readOptional(f.path)
		if errors.Is(err, fs.ErrNotExist) {
			missing = append(missing, f.path)
			continue
		}
		if err != nil {
			return nil, err
		}
		*f.dst = data
	}
	c, err := Build(src)
	if err != nil {
		return nil, err
	}
	c.Missing = missing
	return c, nil
}

func readOptional(path string) ([]byte, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return data, nil
}

type rawFixtureFile struct {
	Palettes  map[string]string     `yaml:"color_palettes"`
	Groups    map[string][]string   `yaml:"groups"`
	WheelMaps map[string]wheelTable `yaml:"wheel_maps"`
	GoboMaps  map[string]wheelTable `yaml:"gobo_maps"`
	Fixtures  fixtureList           `yaml:"fixtures"`
}

type rawFixture struct {
	Start      int                       `yaml:"start"`
	Ch         map[string]int            `yaml:"ch"`
	Modes      map[string]map[string]int `yaml:"modes"`
	Mode       string                    `yaml:"mode"`
	MatchColor *rawMatch                 `yaml:"match_color"`
}

type rawMatch struct {
	Strategy string `yaml:"strategy"`
	Wheel    string `yaml:"wheel"`
}

// UnmarshalYAML rejects keys other than strategy and wheel.
func (m *rawMatch) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("%w: match_color: expected a mapping, got line %d", ErrInvalidMatch, node.Line)
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		switch k := node.Content[i].Value; k {
		case "strategy", "wheel":
		default:
			return fmt.Errorf("%w: match_color: unknown key %q on line %d", ErrInvalidMatch, k, node.Content[i].Line)
		}
	}
	type plain rawMatch
	return node.Decode((*plain)(m))
}

type namedFixture struct {
	name string
	raw  rawFixture
}

// fixtureList keeps fixtures in file order.
type fixtureList []namedFixture

func (l *fixtureList) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("fixtures: expected a mapping, got line %d", node.Line)
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		var raw rawFixture
		if err := node.Content[i+1].Decode(&raw); err != nil {
			return fmt.Errorf("fixture %q: %w", node.Content[i].Value, err)
		}
		*l = append(*l, namedFixture{name: node.Content[i].Value, raw: raw})
	}
	return nil
}

// wheelTable keeps wheel slots in file order; ties in color matching resolve
// to the earlier slot.
type wheelTable []WheelSlot

func (t *wheelTable) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("wheel table: expected a mapping, got line %d", node.Line)
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		var v int
		if err := node.Content[i+1].Decode(&v); err != nil {
			return fmt.Errorf("wheel slot %q: %w", node.Content[i].Value, err)
		}
		*t = append(*t, WheelSlot{Name: node.Content[i].Value, Value: v})
	}
	return nil
}

type rawClusterFile struct {
	Clusters    []Cluster `yaml:"clusters"`
	SoloTargets []string  `yaml:"solo_targets"`
}

type rawPresetFile struct {
	GroupPresets map[string]map[string]Values `yaml:"group_presets"`
	BandTargets  []string                     `yaml:"band_targets"`
	ApplyOrder   []string                     `yaml:"apply_order"`
}

// Build decodes and validates src.
func Build(src Sources) (*Catalog, error) {
	var ff rawFixtureFile
	if err := decode("fixtures", src.Fixtures, &ff); err != nil {
		return nil, err
	}
	var ai, band rawClusterFile
	if err := decode("ai clusters", src.AIClusters, &ai); err != nil {
		return nil, err
	}
	if err := decode("band clusters", src.BandClusters, &band); err != nil {
		return nil, err
	}
	colors := map[string]string{}
	if err := decode("colors", src.Colors, &colors); err != nil {
		return nil, err
	}
	effects := map[string]int{}
	if err := decode("wled effects", src.WLEDEffects, &effects); err != nil {
		return nil, err
	}
	var presets rawPresetFile
	if err := decode("presets", src.Presets, &presets); err != nil {
		return nil, err
	}

	c := &Catalog{
		fixtures:     make(map[string]*Fixture, len(ff.Fixtures)),
		Groups:       orEmpty(ff.Groups),
		Palettes:     orEmpty(ff.Palettes),
		WheelMaps:    tables(ff.WheelMaps),
		GoboMaps:     tables(ff.GoboMaps),
		AIClusters:   ai.Clusters,
		BandClusters: band.Clusters,
		SoloTargets:  band.SoloTargets,
		Colors:       colors,
		WLEDEffects:  effects,
		GroupPresets: orEmpty(presets.GroupPresets),
		BandTargets:  presets.BandTargets,
		ApplyOrder:   presets.ApplyOrder,
	}

	palette := make(map[string]color.RGB, len(c.Palettes))
	for name, hex := range c.Palettes {
		rgb, err := color.ParseHex(hex)
		if err != nil {
			return nil, fmt.Errorf("%w: palette %q: %w", ErrInvalidColor, name, err)
		}
		palette[name] = rgb
	}
	for name, hex := range c.Colors {
		if _, err := color.ParseHex(hex); err != nil {
			return nil, fmt.Errorf("%w: custom color %q: %w", ErrInvalidColor, name, err)
		}
	}
	for name, table := range c.WheelMaps {
		for _, slot := range table {
			if slot.Value < 0 || slot.Value > 255 {
				return nil, fmt.Errorf("%w: wheel map %q slot %q value %d out of range", ErrInvalidMatch, name, slot.Name, slot.Value)
			}
		}
	}

	for _, nf := range ff.Fixtures {
		if _, dup := c.fixtures[nf.name]; dup {
			return nil, fmt.Errorf("%w: duplicate fixture %q", ErrInvalidFixture, nf.name)
		}
		f, err := buildFixture(nf.name, nf.raw, c.WheelMaps, palette)
		if err != nil {
			return nil, err
		}
		c.fixtures[nf.name] = f
		c.order = append(c.order, nf.name)
	}
	return c, nil
}

func decode(what string, data []byte, dst any) error {
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil
	}
	if err := yaml.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrMalformed, what, err)
	}
	return nil
}

func buildFixture(name string, raw rawFixture, wheels map[string][]WheelSlot, palette map[string]color.RGB) (*Fixture, error) {
	if raw.Start < 1 || raw.Start > dmx.UniverseSize {
		return nil, fmt.Errorf("%w: %q start %d outside 1-%d", ErrInvalidFixture, name, raw.Start, dmx.UniverseSize)
	}

	f := &Fixture{Name: name, Start: raw.Start, Channels: raw.Ch}
	if len(raw.Modes) > 0 {
		active := raw.Mode
		if active == "" {
			active = defaultMode
		}
		ch, ok := raw.Modes[active]
		if !ok {
			active = defaultMode
			ch, ok = raw.Modes[defaultMode]
		}
		if !ok {
			return nil, fmt.Errorf("%w: %q has no mode %q", ErrInvalidFixture, name, raw.Mode)
		}
		f.Channels, f.Mode = ch, active
	}
	if f.Channels == nil {
		f.Channels = map[string]int{}
	}
	for ch, offset := range f.Channels {
		if offset < 1 {
			return nil, fmt.Errorf("%w: %q channel %q offset %d", ErrInvalidFixture, name, ch, offset)
		}
	}

	strategy, err := compileMatch(f, raw.MatchColor, wheels, palette)
	if err != nil {
		return nil, err
	}
	f.Color = strategy
	return f, nil
}

// compileMatch turns a match_color descriptor into a color strategy.
func compileMatch(f *Fixture, m *rawMatch, wheels map[string][]WheelSlot, palette map[string]color.RGB) (color.Strategy, error) {
	if m == nil {
		return nil, nil
	}
	switch m.Strategy {
	case "none":
		return nil, nil
	case "":
		return nil, fmt.Errorf("%w: %q match_color has no strategy", ErrInvalidMatch, f.Name)
	case "rgb":
		if !f.Has(color.ChannelRed) || !f.Has(color.ChannelGreen) || !f.Has(color.ChannelBlue) {
			return nil, fmt.Errorf("%w: %q uses rgb without r/g/b channels", ErrInvalidMatch, f.Name)
		}
		return color.RGBMix{White: f.Has(color.ChannelWhite)}, nil
	case "wheel":
		if !f.Has(color.ChannelWheel) {
			return nil, fmt.Errorf("%w: %q uses wheel without a color channel", ErrInvalidMatch, f.Name)
		}
		entries, err := wheelEntries(f.Name, m.Wheel, wheels, palette, false)
		if err != nil {
			return nil, err
		}
		return color.Wheel{Entries: entries}, nil
	case "wheel_combo":
		if !f.Has(color.ChannelGoboColor1) {
			return nil, fmt.Errorf("%w: %q uses wheel_combo without gobo_color1", ErrInvalidMatch, f.Name)
		}
		entries, err := wheelEntries(f.Name, m.Wheel, wheels, palette, true)
		if err != nil {
			return nil, err
		}
		return color.WheelCombo{Entries: entries, Second: f.Has(color.ChannelGoboColor2)}, nil
	default:
		return nil, fmt.Errorf("%w: %q unknown strategy %q", ErrInvalidMatch, f.Name, m.Strategy)
	}
}

// white is the reference color for wheel slots missing from the palette.
var white = color.RGB{R: 255, G: 255, B: 255}

func wheelEntries(fixture, table string, wheels map[string][]WheelSlot, palette map[string]color.RGB, combo bool) ([]color.WheelEntry, error) {
	slots, ok := wheels[table]
	if !ok || len(slots) == 0 {
		return nil, fmt.Errorf("%w: %q references empty or unknown wheel map %q", ErrInvalidMatch, fixture, table)
	}
	entries := make([]color.WheelEntry, 0, len(slots))
	for _, slot := range slots {
		ref := slot.Name
		if combo {
			ref, _, _ = strings.Cut(ref, "+")
		}
		rgb, ok := palette[ref]
		if !ok {
			rgb = white
		}
		entries = append(entries, color.WheelEntry{Name: slot.Name, Ref: rgb, Value: slot.Value})
	}
	return entries, nil
}

func tables(in map[string]wheelTable) map[string][]WheelSlot {
	out := make(map[string][]WheelSlot, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func orEmpty[K comparable, V any](m map[K]V) map[K]V {
	if m == nil {
		return map[K]V{}
	}
	return m
}
