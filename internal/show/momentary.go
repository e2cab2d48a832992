package show

import (
	"fmt"
	"time"

	"lightrig/internal/state"
)

// Momentary ids. A retrigger of the same id restarts its hold.
const (
	momentBlinder = "blinder"
	momentStrobe  = "strobe"
)

// blinderLevels are the presets that set both blinders to one level.
var blinderLevels = map[string]int{
	"25":      64,
	"50":      128,
	"75":      192,
	"100":     255,
	"full_on": 255,
}

// Blinder applies a blinder preset. With momentary set, flash presets revert
// both blinders to 0 after the blinder hold; blackouts and full_toggle latch.
func (c *Controller) Blinder(name string, momentary bool) error {
	switch name {
	case "blackout_all":
		c.blackout(false)
	case "blackout_keep_guir":
		c.blackout(true)
	case "full_toggle":
		v, _ := c.rig.ChannelValue("bl_top", "dim")
		next := 255
		if v > 0 {
			next = 0
		}
		c.rig.ApplyBlinders(&next, &next)
	default:
		top, bottom, ok := blinderPreset(name)
		if !ok {
			return fmt.Errorf("%w: blinder %q", ErrUnknownPreset, name)
		}
		if momentary {
			return c.TriggerMomentary(name, c.blinderHold)
		}
		c.rig.ApplyBlinders(top, bottom)
	}
	c.rec.Record("blinder", map[string]string{"preset": name}, nil)
	return nil
}

func (c *Controller) blackout(keepGuirlande bool) {
	zero := 0
	c.rig.ApplyBlinders(&zero, &zero)
	if _, err := c.state.Update(func(s *state.State) error {
		if keepGuirlande {
			s.Guirlande.On = true
		} else {
			s.WLEDTubes.On = false
			s.Guirlande.On = false
		}
		return nil
	}); err != nil {
		c.log.Warnf("blackout: %v", err)
	}
}

func blinderPreset(name string) (top, bottom *int, ok bool) {
	full := 255
	switch name {
	case "top":
		return &full, nil, true
	case "bottom":
		return nil, &full, true
	}
	v, ok := blinderLevels[name]
	if !ok {
		return nil, nil, false
	}
	return &v, &v, true
}

// StrobeMomentary fires the strobe at the state rate. With momentary set the
// rate reverts to 0 after the strobe hold.
func (c *Controller) StrobeMomentary(momentary bool) error {
	if momentary {
		return c.TriggerMomentary(momentStrobe, c.strobeHold)
	}
	s := c.State().StroboDMX
	c.rig.ApplyStrobe(s.Rate, s.Dim)
	return nil
}

// TriggerMomentary applies a momentary preset and schedules its revert. A
// non-positive hold takes the configured default.
func (c *Controller) TriggerMomentary(presetID string, hold time.Duration) error {
	if presetID == momentStrobe {
		if hold <= 0 {
			hold = c.strobeHold
		}
		c.moments.Trigger(momentStrobe, hold, func() {
			s := c.State().StroboDMX
			c.rig.ApplyStrobe(s.Rate, s.Dim)
		}, func() {
			c.rig.ApplyStrobe(0, c.State().StroboDMX.Dim)
		})
		c.rec.Record("momentary", map[string]string{"preset": presetID}, nil)
		return nil
	}

	top, bottom, ok := blinderPreset(presetID)
	if !ok {
		return fmt.Errorf("%w: momentary %q", ErrUnknownPreset, presetID)
	}
	if hold <= 0 {
		hold = c.blinderHold
	}
	c.moments.Trigger(momentBlinder, hold, func() {
		c.rig.ApplyBlinders(top, bottom)
	}, func() {
		zero := 0
		c.rig.ApplyBlinders(&zero, &zero)
	})
	c.rec.Record("momentary", map[string]string{"preset": presetID}, nil)
	return nil
}
