package rig

import "lightrig/internal/catalog"

// Device fixtures driven by the engine and the show controller.
const (
	FixtureTubeDMX   = "tube_dmx"
	FixtureStrobe    = "strobe_dmx"
	FixtureBlindTop  = "bl_top"
	FixtureBlindBot  = "bl_bottom"
	FixtureLaser     = "laser"
	defaultPatternID = 10
)

var tubePatterns = map[string]int{
	"fade_up": 10,
	"wave":    30,
	"pulse":   50,
	"chaos":   70,
	"rainbow": 90,
}

// TubePattern returns the DMX value of a tube pattern; unknown patterns map
// to fade_up.
func TubePattern(name string) int {
	if v, ok := tubePatterns[name]; ok {
		return v
	}
	return defaultPatternID
}

// IsTubePattern reports whether name is a known tube pattern.
func IsTubePattern(name string) bool {
	_, ok := tubePatterns[name]
	return ok
}

// ApplyTube drives the DMX pixel tube.
func (r *Rig) ApplyTube(pattern string, speed, strobe, dim int) {
	r.SetChannels(FixtureTubeDMX, map[string]int{
		"pattern": TubePattern(pattern),
		"speed":   speed,
		"strobe":  strobe,
		"dim":     dim,
	})
}

// ApplyStrobe drives the DMX strobe.
func (r *Rig) ApplyStrobe(rate, dim int) {
	r.SetChannels(FixtureStrobe, map[string]int{"rate": rate, "dim": dim})
}

// ApplyBlinders sets the blinder dimmers. A nil value leaves that blinder
// untouched. Both blinders go out in one frame.
func (r *Rig) ApplyBlinders(top, bottom *int) {
	var batch []Write
	if top != nil {
		batch = append(batch, Write{FixtureBlindTop, catalog.ChannelValues(map[string]int{"dim": *top})})
	}
	if bottom != nil {
		batch = append(batch, Write{FixtureBlindBot, catalog.ChannelValues(map[string]int{"dim": *bottom})})
	}
	if len(batch) == 0 {
		return
	}
	r.WriteBatch(batch)
}

// SetLaser switches the laser output channel.
func (r *Rig) SetLaser(on bool) {
	v := 0
	if on {
		v = 255
	}
	r.SetChannels(FixtureLaser, map[string]int{"on": v})
}
