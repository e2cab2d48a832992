package midi

import (
	"strconv"
	"strings"
)

// Default note layout of the Launchpad in its generic mode: the 8x8 grid runs
// upward from gridBase row by row, the top row and right column sit below it.
const (
	gridBase   = 36
	topBase    = 8
	rightBase  = 16
	rowButtons = 8
)

// Default MIDImix numbering.
const (
	faderBase      = 0
	knobABase      = 16
	knobBBase      = 24
	knobCBase      = 32
	mixTopBase     = 40
	mixSecondBase  = 48
	mixRightBase   = 60
	mixRightButton = 4
)

// Bindings maps controller numbers to action strings.
type Bindings struct {
	Launchpad map[uint8]string // note -> action
	MixCC     map[uint8]string
	MixNote   map[uint8]string
}

// NewBindings builds the default map from layout and applies the remap
// overrides on top.
func NewBindings(layout Layout, remap Remap) Bindings {
	b := Bindings{
		Launchpad: launchpadBindings(layout.Launchpad),
		MixCC:     map[uint8]string{},
		MixNote:   map[uint8]string{},
	}
	mixBindings(layout.MIDImix, b.MixCC, b.MixNote)

	override(b.Launchpad, remap.Map.Launchpad.Note)
	override(b.MixCC, remap.Map.MIDImix.CC)
	override(b.MixNote, remap.Map.MIDImix.Note)
	return b
}

func override(dst map[uint8]string, src map[string]string) {
	for k, action := range src {
		n, err := strconv.ParseUint(k, 10, 7)
		if err != nil || action == "" {
			continue
		}
		dst[uint8(n)] = action
	}
}

func launchpadBindings(l LaunchpadLayout) map[uint8]string {
	m := map[uint8]string{}
	each(l.TopButtons, func(i int, name string) {
		if a, ok := topAction(name); ok {
			m[uint8(topBase+i)] = a
		}
	})
	each(l.RightColumn, func(i int, name string) {
		if a, ok := rightAction(name); ok {
			m[uint8(rightBase+i)] = a
		}
	})

	rows := [][]string{l.AIClusters, l.Blinders, l.StroboFX, l.TubeDMX, l.WLEDTubes, l.Guirlande, l.Laser, l.Misc}
	for r, row := range rows {
		each(row, func(c int, name string) {
			m[uint8(gridBase+r*rowButtons+c)] = gridAction(r, name)
		})
	}
	return m
}

// each calls fn for at most one row of buttons.
func each(names []string, fn func(int, string)) {
	for i, name := range names {
		if i == rowButtons {
			return
		}
		fn(i, name)
	}
}

func topAction(name string) (string, bool) {
	switch name {
	case "blackout_all", "blackout_keep_guir", "full_on", "full_toggle":
		return "blinder:" + name, true
	}
	if pct, ok := strings.CutPrefix(name, "blinder_"); ok {
		return "blinder:" + pct, true
	}
	return "", false
}

func rightAction(name string) (string, bool) {
	switch name {
	case "ai_toggle", "force_auto", "force_a", "force_b", "force_c":
		return name, true
	case "band_toggle":
		return "band_mode", true
	case "manual_toggle":
		return "manual_mode", true
	}
	return "", false
}

func gridAction(row int, name string) string {
	switch row {
	case 0:
		return "ai_cluster:" + name
	case 1:
		if name == "top" || name == "bottom" {
			return "blinder:" + name
		}
		return "effect:strobo:" + name
	case 2:
		return "effect:strobo:" + name
	case 3:
		return "effect:tube_dmx:" + name
	case 4:
		return "effect:wled_tubes:" + name
	case 5:
		return "effect:guirlande:" + name
	case 6:
		return "effect:laser:" + name
	default:
		if name == "strobe_dmx_momentary" {
			return name
		}
		return "effect:misc:" + name
	}
}

func mixBindings(l MIDImixLayout, cc, note map[uint8]string) {
	for _, g := range []struct {
		names  []string
		base   int
		prefix string
	}{
		{l.Faders, faderBase, "level:"},
		{l.KnobsA, knobABase, "param:"},
		{l.KnobsB, knobBBase, "param:"},
		{l.KnobsC, knobCBase, "param:"},
	} {
		each(g.names, func(i int, name string) {
			cc[uint8(g.base+i)] = g.prefix + name
		})
	}

	each(l.TopButtons, func(i int, name string) {
		note[uint8(mixTopBase+i)] = "band_cluster:" + strings.TrimPrefix(name, "band_")
	})
	each(l.SecondRow, func(i int, name string) {
		note[uint8(mixSecondBase+i)] = "band_pos:" + strings.TrimPrefix(name, "pos_")
	})
	for i, name := range l.RightButtons {
		if i == mixRightButton {
			break
		}
		note[uint8(mixRightBase+i)] = name
	}
}
