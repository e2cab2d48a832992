package color

// Channel names produced by the strategies.
const (
	ChannelRed        = "r"
	ChannelGreen      = "g"
	ChannelBlue       = "b"
	ChannelWhite      = "w"
	ChannelWheel      = "color"
	ChannelGoboColor1 = "gobo_color1"
	ChannelGoboColor2 = "gobo_color2"
)

// Channels is a logical channel name to value map.
type Channels map[string]int

// Strategy is the color-mixing capability of one fixture. The concrete types
// are RGBMix, Wheel and WheelCombo; a fixture without a strategy holds nil.
type Strategy interface {
	// Kind is the catalog name of the strategy.
	Kind() string
	resolve(target RGB) Channels
}

// RGBMix drives separate red, green and blue channels.
type RGBMix struct {
	// White is set when the fixture has a dedicated white channel. It is
	// always driven to zero.
	White bool
}

// Kind implements Strategy.
func (RGBMix) Kind() string { return "rgb" }

func (s RGBMix) resolve(target RGB) Channels {
	out := Channels{
		ChannelRed:   int(target.R),
		ChannelGreen: int(target.G),
		ChannelBlue:  int(target.B),
	}
	if s.White {
		out[ChannelWhite] = 0
	}
	return out
}

// WheelEntry is one physical wheel position with the palette color it is
// matched against.
type WheelEntry struct {
	Name  string
	Ref   RGB
	Value int
}

// Wheel selects the nearest discrete color on a single color wheel channel.
type Wheel struct {
	Entries []WheelEntry // in table order
}

// Kind implements Strategy.
func (Wheel) Kind() string { return "wheel" }

func (s Wheel) resolve(target RGB) Channels {
	e, ok := nearest(s.Entries, target)
	if !ok {
		return Channels{}
	}
	return Channels{ChannelWheel: e.Value}
}

// WheelCombo drives the paired gobo/color wheels of a dual scanner. Entry
// names are composites "A+B" and only A takes part in the match.
type WheelCombo struct {
	Entries []WheelEntry // Ref holds the color of the first component
	Second  bool         // fixture has gobo_color2
}

// Kind implements Strategy.
func (WheelCombo) Kind() string { return "wheel_combo" }

func (s WheelCombo) resolve(target RGB) Channels {
	e, ok := nearest(s.Entries, target)
	if !ok {
		return Channels{}
	}
	out := Channels{ChannelGoboColor1: e.Value}
	if s.Second {
		out[ChannelGoboColor2] = e.Value
	}
	return out
}

// nearest returns the first entry with the smallest distance to target.
func nearest(entries []WheelEntry, target RGB) (WheelEntry, bool) {
	if len(entries) == 0 {
		return WheelEntry{}, false
	}
	best := entries[0]
	bestD := Distance(target, best.Ref)
	for _, e := range entries[1:] {
		if d := Distance(target, e.Ref); d < bestD {
			best, bestD = e, d
		}
	}
	return best, true
}

// Resolve converts hex into channel values for strategy s. A nil strategy
// resolves to no channels.
func Resolve(s Strategy, hex string) (Channels, error) {
	if s == nil {
		return nil, nil
	}
	target, err := ParseHex(hex)
	if err != nil {
		return nil, err
	}
	return s.resolve(target), nil
}
