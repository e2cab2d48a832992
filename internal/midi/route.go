package midi

import (
	"context"
	"strings"

	"lightrig/internal/show"
	"lightrig/internal/state"
)

// Show is the part of the show controller the bridge drives.
type Show interface {
	Control(cmd string) (state.State, error)
	Force(ctx context.Context, set int) int
	SetMode(r show.ModeRequest) (state.State, error)
	SelectAI(cluster, sub *string) (state.State, error)
	SelectBand(cluster, sub *string) (state.State, error)
	SetBandTarget(target string) (state.State, error)
	Level(control string, value int) error
	Param(control string, value int) error
	Blinder(name string, momentary bool) error
	StrobeMomentary(momentary bool) error
	Effect(target, fx string) (state.State, error)
	MIDILog(payload map[string]any) map[string]any
}

var forceSets = map[string]int{
	"force_auto": 0,
	"force_a":    1,
	"force_b":    2,
	"force_c":    3,
}

var modeActions = map[string]state.Mode{
	"ai_mode":     state.ModeAI,
	"band_mode":   state.ModeBand,
	"manual_mode": state.ModeManual,
}

// Route runs action with a controller value of 0-127. Actions nothing
// handles are passed to MIDILog.
func Route(ctx context.Context, s Show, action string, value int) error {
	switch action {
	case show.CmdAIToggle, show.CmdAIFullToggle, show.CmdBandPauseToggle, show.CmdBandStop:
		_, err := s.Control(action)
		return err
	case "strobe_dmx_momentary":
		return s.StrobeMomentary(true)
	}
	if set, ok := forceSets[action]; ok {
		s.Force(ctx, set)
		return nil
	}
	if m, ok := modeActions[action]; ok {
		mode := string(m)
		_, err := s.SetMode(show.ModeRequest{Mode: &mode})
		return err
	}

	kind, arg, _ := strings.Cut(action, ":")
	switch kind {
	case "ai_cluster":
		_, err := s.SelectAI(&arg, nil)
		return err
	case "band_cluster":
		_, err := s.SelectBand(&arg, nil)
		return err
	case "band_pos":
		_, err := s.SetBandTarget(arg)
		return err
	case "level":
		return s.Level(arg, value)
	case "param":
		return s.Param(arg, value)
	case "blinder":
		return s.Blinder(arg, true)
	case "effect":
		if target, fx, ok := strings.Cut(arg, ":"); ok {
			_, err := s.Effect(target, fx)
			return err
		}
	}
	s.MIDILog(map[string]any{"action": action, "value": value})
	return nil
}
