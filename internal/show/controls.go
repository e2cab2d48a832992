package show

import (
	"fmt"

	"lightrig/internal/catalog"
	"lightrig/internal/rig"
	"lightrig/internal/state"
)

// Group names driven by the console faders and knobs.
const (
	groupParsBig    = "pars_big"
	groupParsSmall  = "pars_small"
	groupMovingPar  = "moving_par"
	groupWashFX     = "wash_fx"
	groupMovingHead = "moving_head"
	groupScanner    = "scanner"
	groupDualScan   = "dual_scan"

	// tubeOnDim is the tube dimmer restored by the tube on/off toggle.
	tubeOnDim = 180
	// masterFloor keeps the strips visible at the bottom of the master fader.
	masterFloor = 10
	// boolThreshold is the controller value from which a knob reads as on.
	boolThreshold = 64
)

// scaleMIDI maps a 0..127 controller value to 0..255.
func scaleMIDI(v int) int {
	return int(float64(v) * 2.01)
}

// groupChannel maps a control to the group and channel it writes.
var groupChannel = map[string][2]string{
	"par_big_all":    {groupParsBig, "dim"},
	"par_small_all":  {groupParsSmall, "dim"},
	"moving_par_lr":  {groupMovingPar, "dim"},
	"washfx_dim":     {groupWashFX, "dim"},
	"mh_pan":         {groupMovingHead, "pan"},
	"mh_tilt":        {groupMovingHead, "tilt"},
	"scanner_pan":    {groupScanner, "pan"},
	"scanner_tilt":   {groupScanner, "tilt"},
	"dualscan_speed": {groupDualScan, "strobe"},
}

// Level handles a fader. value is a 0..127 controller value.
func (c *Controller) Level(control string, value int) error {
	d := scaleMIDI(value)
	switch control {
	case "blinder_top":
		c.rig.ApplyBlinders(&d, nil)
		return nil
	case "blinder_bottom":
		c.rig.ApplyBlinders(nil, &d)
		return nil
	case "par_big_all", "par_small_all", "moving_par_lr":
		c.writeGroupChannel(control, d)
		return nil
	}
	_, err := c.state.Update(func(s *state.State) error {
		switch control {
		case "tube_dmx":
			s.TubeDMX.Dim = d
			c.applyTube(s.TubeDMX)
		case "wled_tubes_lr":
			s.WLEDTubes.Intensity = d
		case "guirlande":
			s.Guirlande.Intensity = d
		default:
			return fmt.Errorf("%w: level %q", ErrUnknownControl, control)
		}
		return nil
	})
	return err
}

// Param handles a knob. value is a 0..127 controller value.
func (c *Controller) Param(control string, value int) error {
	d := scaleMIDI(value)
	switch control {
	case "washfx_dim", "mh_pan", "mh_tilt", "scanner_pan", "scanner_tilt", "dualscan_speed":
		c.writeGroupChannel(control, d)
		return nil
	case "washfx_speed":
		c.rig.WriteGroup(groupWashFX, catalog.ChannelValues(map[string]int{"macro": min(255, d)}))
		return nil
	}
	_, err := c.state.Update(func(s *state.State) error {
		switch control {
		case "strobe_rate":
			s.StroboDMX.Rate = d
			c.rig.ApplyStrobe(s.StroboDMX.Rate, s.StroboDMX.Dim)
		case "strobe_dim":
			s.StroboDMX.Dim = d
			c.rig.ApplyStrobe(s.StroboDMX.Rate, s.StroboDMX.Dim)
		case "ai_variation":
			s.AIVariation = value >= boolThreshold
		case "ai_smooth":
			s.AISmooth = value >= boolThreshold
		case "ai_colormix":
			s.AIColormix = value >= boolThreshold
		case "band_fill":
			s.BandFill = d
		case "master_dim":
			s.Guirlande.Intensity = max(masterFloor, d)
			s.WLEDTubes.Intensity = max(masterFloor, d)
		default:
			return fmt.Errorf("%w: param %q", ErrUnknownControl, control)
		}
		return nil
	})
	return err
}

func (c *Controller) writeGroupChannel(control string, v int) {
	gc := groupChannel[control]
	c.rig.WriteGroup(gc[0], catalog.ChannelValues(map[string]int{gc[1]: v}))
}

// Effect targets.
const (
	TargetTubeDMX   = "tube_dmx"
	TargetWLEDTubes = "wled_tubes"
	TargetGuirlande = "guirlande"
	TargetStrobo    = "strobo"
	TargetLaser     = "laser"

	fxOnOff = "on_off"
)

// stroboRates maps strobe effect names to a strobe rate.
var stroboRates = map[string]int{
	"ai_wave":  128,
	"ai_pulse": 160,
	"ai_lr":    190,
	"ai_chaos": 220,
}

// Effect selects an effect on a device family. An effect name the target does
// not know leaves its state unchanged.
func (c *Controller) Effect(target, fx string) (state.State, error) {
	if target == TargetLaser {
		switch fx {
		case "laser_on":
			c.rig.SetLaser(true)
		case "laser_off":
			c.rig.SetLaser(false)
		default:
			c.log.Debugf("unknown laser effect %q", fx)
		}
		return c.State(), nil
	}
	st, err := c.state.Update(func(s *state.State) error {
		switch target {
		case TargetTubeDMX:
			if fx == fxOnOff {
				if s.TubeDMX.Dim > 0 {
					s.TubeDMX.Dim = 0
				} else {
					s.TubeDMX.Dim = tubeOnDim
				}
			} else if rig.IsTubePattern(fx) {
				s.TubeDMX.Pattern = fx
			}
			c.applyTube(s.TubeDMX)
		case TargetWLEDTubes:
			c.wledEffect(&s.WLEDTubes, fx)
		case TargetGuirlande:
			c.wledEffect(&s.Guirlande, fx)
		case TargetStrobo:
			if r, ok := stroboRates[fx]; ok {
				s.StroboDMX.Rate = r
			}
			c.rig.ApplyStrobe(s.StroboDMX.Rate, s.StroboDMX.Dim)
		default:
			return fmt.Errorf("%w: %q", ErrUnknownTarget, target)
		}
		return nil
	})
	if err == nil {
		c.rec.Record("effect", map[string]string{"target": target, "fx": fx}, nil)
	}
	return st, err
}

func (c *Controller) wledEffect(w *state.WLED, fx string) {
	if fx == fxOnOff {
		w.On = !w.On
		return
	}
	if _, ok := c.cat.WLEDEffects[fx]; ok {
		w.FX = fx
		return
	}
	c.log.Debugf("unknown WLED effect %q", fx)
}

func (c *Controller) applyTube(t state.TubeDMX) {
	c.rig.ApplyTube(t.Pattern, t.Speed, t.Strobe, t.Dim)
}
