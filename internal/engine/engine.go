// Package engine runs the automatic looks. One tick computes the look of the
// active mode from the state and writes it to the strips and the rig.
package engine

import (
	"context"
	"fmt"
	"time"

	"lightrig/internal/catalog"
	"lightrig/internal/logger"
	"lightrig/internal/rig"
	"lightrig/internal/state"
	"lightrig/internal/telemetry"
	"lightrig/internal/wled"
)

const (
	defaultTick    = 20 * time.Millisecond
	defaultBackoff = 100 * time.Millisecond

	// subPeriod is the wall-clock period of AI sub-cluster rotation, in seconds.
	subPeriod = 16
	// advancePeriod is the wall-clock period of band cluster advance, in seconds.
	advancePeriod = 32

	defaultColor     = "#FFFFFF"
	defaultBandColor = "#FFE6CC"
)

// clusterColors is the main color of each AI cluster.
var clusterColors = map[string]string{
	"tech_house":    "#00FFFF",
	"rock_pop":      "#FFE6CC",
	"goa_psy":       "#FF00FF",
	"dnb_dub":       "#7FDBFF",
	"retro_7090":    "#FFB000",
	"party":         "#FFFFFF",
	"electro_swing": "#FFE6CC",
	"slow":          "#FFE6CC",
}

// Strips sets the state of a WLED strip.
type Strips interface {
	Set(which string, on bool, fx string, speed, intensity int, hex string)
}

// Options tunes the scheduler. Zero values take the defaults.
type Options struct {
	Tick     time.Duration
	Backoff  time.Duration
	Now      func() time.Time
	Recorder telemetry.Recorder
}

// Engine is driven by a single goroutine: Run, or a test calling Tick.
type Engine struct {
	cat     *catalog.Catalog
	state   *state.Holder
	rig     *rig.Rig
	strips  Strips
	rec     telemetry.Recorder
	log     *logger.Log
	tick    time.Duration
	backoff time.Duration
	now     func() time.Time

	// lastAdvance is the advance period already handled; the boundary second
	// spans many ticks.
	lastAdvance int64
}

// New returns an engine.
func New(log logger.Logger, cat *catalog.Catalog, st *state.Holder, r *rig.Rig, strips Strips, opt Options) *Engine {
	e := &Engine{
		cat:         cat,
		state:       st,
		rig:         r,
		strips:      strips,
		rec:         opt.Recorder,
		log:         log.Module("engine"),
		tick:        opt.Tick,
		backoff:     opt.Backoff,
		now:         opt.Now,
		lastAdvance: -1,
	}
	if e.tick <= 0 {
		e.tick = defaultTick
	}
	if e.backoff <= 0 {
		e.backoff = defaultBackoff
	}
	if e.now == nil {
		e.now = time.Now
	}
	if e.rec == nil {
		e.rec = telemetry.Nop{}
	}
	return e
}

// Run ticks until ctx is done. A failed tick is logged and the next one is
// delayed by the back-off.
func (e *Engine) Run(ctx context.Context) {
	e.log.Infof("engine started, tick %s", e.tick)
	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			e.log.Info("engine stopped")
			return
		case <-timer.C:
		}
		delay := e.tick
		if err := e.Tick(e.now()); err != nil {
			e.log.Errorf("tick failed: %v", err)
			delay = e.backoff
		}
		timer.Reset(delay)
	}
}

// Tick runs one cadence at wall-clock time now. It never panics; a panic in a
// collaborator is returned as an error.
func (e *Engine) Tick(now time.Time) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tick panic: %v", r)
		}
	}()

	st := e.state.Snapshot()
	switch st.Mode {
	case state.ModeAI:
		e.aiTick(now, st)
	case state.ModeBand:
		e.bandTick(now, st)
	}
	return nil
}

func (e *Engine) aiTick(now time.Time, st state.State) {
	if !st.AIEnabled {
		return
	}
	if st.AIFull && (st.AISub == "" || now.Unix()%subPeriod == 0) {
		sub := e.chooseSub(st.AICluster, now)
		if sub != st.AISub {
			st = e.state.UpdateIfChanged(func(s *state.State) {
				if s.Mode == state.ModeAI && s.AICluster == st.AICluster {
					s.AISub = sub
				}
			})
		}
	}

	col := aiColor(st)
	inc := st.AIInclude
	if inc[state.FamilyGuirlande] {
		g := st.Guirlande
		e.strips.Set(wled.Guirlande, true, g.FX, g.Speed, g.Intensity, col)
	}
	if inc[state.FamilyWLEDTubes] {
		t := st.WLEDTubes
		for _, seg := range []string{wled.TubeLeft, wled.TubeRight} {
			e.strips.Set(seg, t.On, t.FX, t.Speed, t.Intensity, col)
		}
	}
	if inc[state.FamilyTubeDMX] {
		td := st.TubeDMX
		e.rig.ApplyTube(td.Pattern, td.Speed, td.Strobe, td.Dim)
	}
}

// chooseSub picks the sub-cluster from absolute wall-clock time, so every
// instance with a synchronized clock agrees.
func (e *Engine) chooseSub(cluster string, now time.Time) string {
	cl, ok := e.cat.AICluster(cluster)
	if !ok || len(cl.Subs) == 0 {
		return ""
	}
	i := (now.Unix() / subPeriod) % int64(len(cl.Subs))
	return cl.Subs[i]
}

func aiColor(st state.State) string {
	if st.AIColorLock.Enabled {
		return st.AIColorLock.Hex
	}
	if c, ok := clusterColors[st.AICluster]; ok {
		return c
	}
	return defaultColor
}

func (e *Engine) bandTick(now time.Time, st state.State) {
	col := e.bandColor(st)
	inc := st.BandInclude
	if inc[state.FamilyGuirlande] {
		e.strips.Set(wled.Guirlande, true, "Breathe", 96, 120, col)
	}
	if inc[state.FamilyWLEDTubes] {
		for _, seg := range []string{wled.TubeLeft, wled.TubeRight} {
			e.strips.Set(seg, true, "Solid", 0, 255, col)
		}
	}
	if inc[state.FamilyTubeDMX] {
		e.rig.ApplyTube("fade_up", 64, 0, 180)
	}

	// Advance is gated on ai_full, an AI-mode flag (see DESIGN.md).
	if !st.BandRunning || st.BandPaused || !st.AIFull {
		return
	}
	sec := now.Unix()
	if sec%advancePeriod != 0 || sec/advancePeriod == e.lastAdvance {
		return
	}
	e.lastAdvance = sec / advancePeriod
	order := e.cat.BandClusterKeys()
	next := nextCluster(order, st.BandCluster)
	if indexOf(order, st.BandCluster) < 0 {
		e.log.Warnf("unknown band cluster %q, reset to %s", st.BandCluster, next)
	}
	e.state.UpdateIfChanged(func(s *state.State) {
		if s.BandCluster == st.BandCluster {
			s.BandCluster = next
		}
	})
	e.rec.Record("band_advance", map[string]string{"from": st.BandCluster, "to": next}, nil)
	e.log.Debugf("band advanced %s -> %s", st.BandCluster, next)
}

func (e *Engine) bandColor(st state.State) string {
	if st.BandColorLock.Enabled {
		return st.BandColorLock.Hex
	}
	if c, ok := e.cat.Colors[st.BandPalette]; ok {
		return c
	}
	return defaultBandColor
}

// nextCluster returns the cluster after cur in order, wrapping. An unknown
// cur restarts the timeline.
func nextCluster(order []string, cur string) string {
	i := indexOf(order, cur)
	if i < 0 {
		return state.InitialBandCluster
	}
	return order[(i+1)%len(order)]
}

func indexOf(list []string, v string) int {
	for i, s := range list {
		if s == v {
			return i
		}
	}
	return -1
}
