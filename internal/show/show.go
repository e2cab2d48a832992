// Package show is the operation layer of the rig. The HTTP API, MIDI routing
// and MQTT commands all call into a Controller.
package show

import (
	"fmt"
	"net/http"
	"time"

	"lightrig/internal/catalog"
	"lightrig/internal/color"
	"lightrig/internal/config"
	"lightrig/internal/logger"
	"lightrig/internal/momentary"
	"lightrig/internal/preset"
	"lightrig/internal/rig"
	"lightrig/internal/state"
	"lightrig/internal/telemetry"
)

const (
	defaultBlinderHold = 150 * time.Millisecond
	defaultStrobeHold  = 100 * time.Millisecond
	defaultForceWait   = 400 * time.Millisecond
)

// Options carries the controller's outside collaborators.
type Options struct {
	BlinderHold  time.Duration
	StrobeHold   time.Duration
	Force        config.ForceConf
	SafeShutdown string
	Recorder     telemetry.Recorder
	// StartScript launches the shutdown script; tests replace it.
	StartScript func(path string) error
}

// Controller applies show operations to the state, the rig and the presets.
// State changes that also write the rig do so inside the state update, so
// the lock order is always state then rig.
type Controller struct {
	cat     *catalog.Catalog
	state   *state.Holder
	rig     *rig.Rig
	presets *preset.Store
	moments *momentary.Scheduler
	rec     telemetry.Recorder
	log     *logger.Log

	blinderHold time.Duration
	strobeHold  time.Duration
	force       config.ForceConf
	http        *http.Client
	script      string
	startScript func(string) error
}

// New returns a controller.
func New(log logger.Logger, st *state.Holder, r *rig.Rig, p *preset.Store, m *momentary.Scheduler, opt Options) *Controller {
	c := &Controller{
		cat:         r.Catalog(),
		state:       st,
		rig:         r,
		presets:     p,
		moments:     m,
		rec:         opt.Recorder,
		log:         log.Module("show"),
		blinderHold: opt.BlinderHold,
		strobeHold:  opt.StrobeHold,
		force:       opt.Force,
		script:      opt.SafeShutdown,
		startScript: opt.StartScript,
	}
	if c.blinderHold <= 0 {
		c.blinderHold = defaultBlinderHold
	}
	if c.strobeHold <= 0 {
		c.strobeHold = defaultStrobeHold
	}
	if c.force.Timeout.Duration <= 0 {
		c.force.Timeout.Duration = defaultForceWait
	}
	c.http = &http.Client{Timeout: c.force.Timeout.Duration}
	if c.rec == nil {
		c.rec = telemetry.Nop{}
	}
	if c.startScript == nil {
		c.startScript = startDetached
	}
	return c
}

// Catalog returns the catalog the controller works against.
func (c *Controller) Catalog() *catalog.Catalog {
	return c.cat
}

// State returns a copy of the current state.
func (c *Controller) State() state.State {
	return c.state.Snapshot()
}

// Frame returns the current DMX frame.
func (c *Controller) Frame() []byte {
	f := c.rig.Frame()
	return f[:]
}

// ModeRequest changes the mode and optionally the selected clusters.
type ModeRequest struct {
	Mode        *string `json:"mode"`
	AICluster   *string `json:"ai_cluster"`
	AISub       *string `json:"ai_sub"`
	BandCluster *string `json:"band_cluster"`
}

// SetMode applies r.
func (c *Controller) SetMode(r ModeRequest) (state.State, error) {
	if r.Mode != nil && !state.Mode(*r.Mode).Valid() {
		return c.State(), fmt.Errorf("%w: %q", ErrInvalidMode, *r.Mode)
	}
	st, err := c.state.Update(func(s *state.State) error {
		if r.Mode != nil {
			s.Mode = state.Mode(*r.Mode)
		}
		setIf(&s.AICluster, r.AICluster)
		setIf(&s.AISub, r.AISub)
		setIf(&s.BandCluster, r.BandCluster)
		return nil
	})
	if err == nil {
		c.rec.Record("mode", map[string]string{"mode": string(st.Mode)}, nil)
	}
	return st, err
}

// SelectAI switches to AI mode, optionally selecting a cluster and sub.
func (c *Controller) SelectAI(cluster, sub *string) (state.State, error) {
	st, err := c.state.Update(func(s *state.State) error {
		s.Mode = state.ModeAI
		setIf(&s.AICluster, cluster)
		setIf(&s.AISub, sub)
		return nil
	})
	if err == nil {
		c.rec.Record("mode", map[string]string{"mode": string(st.Mode), "cluster": st.AICluster}, nil)
	}
	return st, err
}

// SetAIColor changes the AI color lock.
func (c *Controller) SetAIColor(enabled *bool, hex *string) (state.ColorLock, error) {
	if err := checkHex(hex); err != nil {
		return c.State().AIColorLock, err
	}
	st, err := c.state.Update(func(s *state.State) error {
		setIf(&s.AIColorLock.Enabled, enabled)
		setIf(&s.AIColorLock.Hex, hex)
		return nil
	})
	return st.AIColorLock, err
}

// SetAIInclude updates the AI include map. Unknown families are ignored.
func (c *Controller) SetAIInclude(inc map[string]bool) (state.Include, error) {
	st, err := c.state.Update(func(s *state.State) error {
		s.AIInclude.Merge(inc)
		return nil
	})
	return st.AIInclude, err
}

// SelectBand switches to band mode, optionally selecting a cluster and sub.
func (c *Controller) SelectBand(cluster, sub *string) (state.State, error) {
	st, err := c.state.Update(func(s *state.State) error {
		s.Mode = state.ModeBand
		setIf(&s.BandCluster, cluster)
		setIf(&s.BandSub, sub)
		return nil
	})
	if err == nil {
		c.rec.Record("mode", map[string]string{"mode": string(st.Mode), "cluster": st.BandCluster}, nil)
	}
	return st, err
}

// AccentRequest changes the band accent.
type AccentRequest struct {
	Enabled *bool   `json:"enabled"`
	Hex     *string `json:"hex"`
	Pct     *int    `json:"pct"`
}

// BandColorRequest changes the band color lock, palette, accent and include map.
type BandColorRequest struct {
	Enabled *bool           `json:"enabled"`
	Hex     *string         `json:"hex"`
	Palette *string         `json:"palette"`
	Accent  *AccentRequest  `json:"accent"`
	Include map[string]bool `json:"include"`
}

// SetBandColor applies r.
func (c *Controller) SetBandColor(r BandColorRequest) (state.State, error) {
	if err := checkHex(r.Hex); err != nil {
		return c.State(), err
	}
	if r.Accent != nil {
		if err := checkHex(r.Accent.Hex); err != nil {
			return c.State(), err
		}
	}
	return c.state.Update(func(s *state.State) error {
		setIf(&s.BandColorLock.Enabled, r.Enabled)
		setIf(&s.BandColorLock.Hex, r.Hex)
		setIf(&s.BandPalette, r.Palette)
		if a := r.Accent; a != nil {
			setIf(&s.BandAccent.Enabled, a.Enabled)
			setIf(&s.BandAccent.Hex, a.Hex)
			setIf(&s.BandAccent.Pct, a.Pct)
		}
		if r.Include != nil {
			s.BandInclude.Merge(r.Include)
		}
		return nil
	})
}

// Show control commands.
const (
	CmdBandPauseToggle = "band_pause_toggle"
	CmdBandStop        = "band_stop"
	CmdAIToggle        = "ai_toggle"
	CmdAIFullToggle    = "ai_full_toggle"
)

// Control runs a show control command.
func (c *Controller) Control(cmd string) (state.State, error) {
	st, err := c.state.Update(func(s *state.State) error {
		switch cmd {
		case CmdBandPauseToggle:
			if !s.BandRunning {
				s.BandRunning, s.BandPaused = true, false
			} else {
				s.BandPaused = !s.BandPaused
			}
		case CmdBandStop:
			s.BandRunning, s.BandPaused = false, false
			s.BandCluster = state.InitialBandCluster
		case CmdAIToggle:
			s.AIEnabled = !s.AIEnabled
		case CmdAIFullToggle:
			s.AIFull = !s.AIFull
			s.AIEnabled = true
		default:
			return fmt.Errorf("%w: %q", ErrUnknownCommand, cmd)
		}
		return nil
	})
	if err == nil {
		c.rec.Record("control", map[string]string{"cmd": cmd}, nil)
	}
	return st, err
}

// SetFixture writes a value map to one fixture.
func (c *Controller) SetFixture(name string, v catalog.Values) error {
	if name == "" {
		return ErrMissingName
	}
	c.rig.WriteFixture(name, v)
	return nil
}

// SetGroup writes a value map to every member of a group.
func (c *Controller) SetGroup(group string, v catalog.Values) error {
	if group == "" {
		return ErrMissingName
	}
	c.rig.WriteGroup(group, v)
	return nil
}

// Fixtures describes every fixture in catalog order.
func (c *Controller) Fixtures() []catalog.Caps {
	names := c.cat.FixtureNames()
	out := make([]catalog.Caps, 0, len(names))
	for _, n := range names {
		caps, _ := c.cat.Caps(n)
		out = append(out, caps)
	}
	return out
}

// SaveScene captures the rig as a named scene.
func (c *Controller) SaveScene(name string) ([]string, error) {
	if name == "" {
		return nil, ErrMissingName
	}
	return c.presets.SaveScene(name)
}

// LoadScene replays a named scene.
func (c *Controller) LoadScene(name string) error {
	if name == "" {
		return ErrMissingName
	}
	return c.presets.LoadScene(name)
}

// DeleteScene removes a named scene.
func (c *Controller) DeleteScene(name string) error {
	return c.presets.DeleteScene(name)
}

// Scenes lists the saved scenes.
func (c *Controller) Scenes() []string {
	return c.presets.Scenes()
}

// ApplyGroupPreset applies a catalog group preset.
func (c *Controller) ApplyGroupPreset(group, name string) error {
	if group == "" || name == "" {
		return ErrMissingName
	}
	return c.presets.ApplyGroupPreset(group, name)
}

// SaveBandPreset captures the rig for a band target.
func (c *Controller) SaveBandPreset(target string) error {
	return c.presets.SaveBandPreset(target)
}

// LoadBandPreset replays the rig snapshot of a band target.
func (c *Controller) LoadBandPreset(target string) error {
	return c.presets.LoadBandPreset(target)
}

// SaveRehearsal stores aim offsets for a fixture.
func (c *Controller) SaveRehearsal(fixture string, rec map[string]any) (preset.Rehearsal, error) {
	if fixture == "" {
		return nil, ErrMissingName
	}
	return c.presets.SaveRehearsal(fixture, rec)
}

// SetBandTarget records the band target being aimed.
func (c *Controller) SetBandTarget(target string) (state.State, error) {
	return c.state.Update(func(s *state.State) error {
		s.BandTarget = target
		return nil
	})
}

func setIf[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

func checkHex(hex *string) error {
	if hex == nil {
		return nil
	}
	if _, err := color.ParseHex(*hex); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidColor, err)
	}
	return nil
}
