package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"lightrig/internal/catalog"
	"lightrig/internal/logger"
	"lightrig/internal/rig"
	"lightrig/internal/state"
	"lightrig/internal/store"
)

type stripCall struct {
	which     string
	on        bool
	fx        string
	speed     int
	intensity int
	hex       string
}

type fakeStrips struct {
	mu    sync.Mutex
	calls []stripCall
	panic bool
}

func (f *fakeStrips) Set(which string, on bool, fx string, speed, intensity int, hex string) {
	if f.panic {
		panic("device exploded")
	}
	f.mu.Lock()
	f.calls = append(f.calls, stripCall{which, on, fx, speed, intensity, hex})
	f.mu.Unlock()
}

func (f *fakeStrips) take() []stripCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := f.calls
	f.calls = nil
	return out
}

type fixture struct {
	engine *Engine
	state  *state.Holder
	rig    *rig.Rig
	strips *fakeStrips
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cat, err := catalog.Build(catalog.Sources{
		Fixtures: []byte(`
fixtures:
  tube_dmx: {start: 1, ch: {pattern: 1, speed: 2, strobe: 3, dim: 4}}
`),
		AIClusters:   []byte(`{"clusters": [{"key": "tech_house", "subs": ["minimal", "peak", "groove"]}]}`),
		BandClusters: []byte(`{"clusters": [{"key": "intro"}, {"key": "verse"}, {"key": "chorus"}]}`),
		Colors:       []byte(`{"Amber": "#FFB000"}`),
	})
	if err != nil {
		t.Fatal(err)
	}
	st := state.NewHolder(logger.Discard(), store.NewMemory())
	r := rig.New(logger.Discard(), cat, nil)
	strips := &fakeStrips{}
	e := New(logger.Discard(), cat, st, r, strips, Options{})
	return &fixture{engine: e, state: st, rig: r, strips: strips}
}

func (f *fixture) set(t *testing.T, fn func(s *state.State)) {
	t.Helper()
	if _, err := f.state.Update(func(s *state.State) error {
		fn(s)
		return nil
	}); err != nil {
		t.Fatal(err)
	}
}

func (f *fixture) tick(t *testing.T, unix int64) {
	t.Helper()
	if err := f.engine.Tick(time.Unix(unix, 0)); err != nil {
		t.Fatalf("Tick() error = %v", err)
	}
}

func (f *fixture) channel(ch string) int {
	v, _ := f.rig.ChannelValue("tube_dmx", ch)
	return int(v)
}

func TestAITick(t *testing.T) {
	f := newFixture(t)
	f.tick(t, 1000)

	calls := f.strips.take()
	if len(calls) != 3 {
		t.Fatalf("strip calls = %d, want guirlande + two tubes", len(calls))
	}
	want := []stripCall{
		{"guirlande", true, "Breathe", 120, 180, "#00FFFF"},
		{"tube_L", true, "Solid", 120, 255, "#00FFFF"},
		{"tube_R", true, "Solid", 120, 255, "#00FFFF"},
	}
	for i, c := range calls {
		if c != want[i] {
			t.Errorf("call %d = %+v, want %+v", i, c, want[i])
		}
	}
	if f.channel("pattern") != 10 || f.channel("speed") != 64 || f.channel("dim") != 160 {
		t.Errorf("tube = %d/%d/%d", f.channel("pattern"), f.channel("speed"), f.channel("dim"))
	}
}

func TestAIColor(t *testing.T) {
	tests := []struct {
		name    string
		cluster string
		lock    state.ColorLock
		want    string
	}{
		{"cluster table", "goa_psy", state.ColorLock{}, "#FF00FF"},
		{"unknown cluster", "polka", state.ColorLock{}, "#FFFFFF"},
		{"lock wins", "goa_psy", state.ColorLock{Enabled: true, Hex: "#123456"}, "#123456"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.set(t, func(s *state.State) {
				s.AICluster = tt.cluster
				s.AIColorLock = tt.lock
			})
			f.tick(t, 1000)
			calls := f.strips.take()
			if len(calls) == 0 || calls[0].hex != tt.want {
				t.Errorf("color = %+v, want %s", calls, tt.want)
			}
		})
	}
}

func TestAIIncludeAndDisabled(t *testing.T) {
	f := newFixture(t)
	f.set(t, func(s *state.State) {
		s.AIInclude[state.FamilyWLEDTubes] = false
		s.AIInclude[state.FamilyTubeDMX] = false
	})
	f.tick(t, 1000)
	calls := f.strips.take()
	if len(calls) != 1 || calls[0].which != "guirlande" {
		t.Errorf("calls = %+v, want guirlande only", calls)
	}
	if f.channel("dim") != 0 {
		t.Error("tube written although excluded")
	}

	f.set(t, func(s *state.State) { s.AIEnabled = false })
	f.tick(t, 1001)
	if calls := f.strips.take(); len(calls) != 0 {
		t.Errorf("disabled AI wrote %+v", calls)
	}
}

func TestAISubRotation(t *testing.T) {
	f := newFixture(t)
	f.set(t, func(s *state.State) { s.AIFull = true })

	// 1600/16 = 100, 100 % 3 = 1
	f.tick(t, 1600)
	if got := f.state.Snapshot().AISub; got != "peak" {
		t.Errorf("AISub = %q, want peak", got)
	}
	// not on a boundary: sub kept
	f.tick(t, 1617)
	if got := f.state.Snapshot().AISub; got != "peak" {
		t.Errorf("AISub off-boundary = %q, want peak", got)
	}
	// 1616/16 = 101, 101 % 3 = 2
	f.tick(t, 1616)
	if got := f.state.Snapshot().AISub; got != "groove" {
		t.Errorf("AISub = %q, want groove", got)
	}
}

func TestAISubNotRotatedWithoutFull(t *testing.T) {
	f := newFixture(t)
	f.tick(t, 1600)
	if got := f.state.Snapshot().AISub; got != "" {
		t.Errorf("AISub = %q without ai_full", got)
	}
}

func TestBandTick(t *testing.T) {
	f := newFixture(t)
	f.set(t, func(s *state.State) {
		s.Mode = state.ModeBand
		s.BandColorLock.Enabled = false
		s.BandPalette = "Amber"
	})
	f.tick(t, 1001)

	calls := f.strips.take()
	want := []stripCall{
		{"guirlande", true, "Breathe", 96, 120, "#FFB000"},
		{"tube_L", true, "Solid", 0, 255, "#FFB000"},
		{"tube_R", true, "Solid", 0, 255, "#FFB000"},
	}
	if len(calls) != len(want) {
		t.Fatalf("calls = %+v", calls)
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Errorf("call %d = %+v, want %+v", i, calls[i], want[i])
		}
	}
	if f.channel("dim") != 180 || f.channel("pattern") != 10 {
		t.Errorf("tube dim/pattern = %d/%d", f.channel("dim"), f.channel("pattern"))
	}

	f.set(t, func(s *state.State) { s.BandPalette = "Missing" })
	f.tick(t, 1002)
	if calls := f.strips.take(); calls[0].hex != "#FFE6CC" {
		t.Errorf("palette fallback = %s", calls[0].hex)
	}
}

func TestBandAdvanceOncePerPeriod(t *testing.T) {
	f := newFixture(t)
	f.set(t, func(s *state.State) {
		s.Mode = state.ModeBand
		s.BandRunning = true
		s.AIFull = true
	})

	boundary := int64(32 * 100)
	for i := 0; i < 50; i++ {
		f.tick(t, boundary) // one boundary second, many ticks
	}
	if got := f.state.Snapshot().BandCluster; got != "verse" {
		t.Fatalf("BandCluster = %q, want verse after one advance", got)
	}
	f.tick(t, boundary+1)
	f.tick(t, boundary+31)
	if got := f.state.Snapshot().BandCluster; got != "verse" {
		t.Errorf("advanced off-boundary to %q", got)
	}
	f.tick(t, boundary+32)
	f.tick(t, boundary+64)
	if got := f.state.Snapshot().BandCluster; got != "intro" {
		t.Errorf("BandCluster = %q, want wrap to intro", got)
	}
}

func TestBandAdvanceGates(t *testing.T) {
	tests := []struct {
		name    string
		running bool
		paused  bool
		full    bool
	}{
		{"stopped", false, false, true},
		{"paused", true, true, true},
		{"ai_full off", true, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.set(t, func(s *state.State) {
				s.Mode = state.ModeBand
				s.BandRunning = tt.running
				s.BandPaused = tt.paused
				s.AIFull = tt.full
			})
			f.tick(t, 3200)
			if got := f.state.Snapshot().BandCluster; got != "intro" {
				t.Errorf("BandCluster = %q, want no advance", got)
			}
		})
	}
}

func TestUnknownBandClusterResetsOnAdvance(t *testing.T) {
	f := newFixture(t)
	f.set(t, func(s *state.State) {
		s.Mode = state.ModeBand
		s.BandCluster = "bridge"
		s.BandRunning = true
		s.BandPaused = true
		s.AIFull = true
	})
	f.tick(t, 3200)
	if got := f.state.Snapshot().BandCluster; got != "bridge" {
		t.Errorf("paused timeline: BandCluster = %q, want bridge kept", got)
	}

	f.set(t, func(s *state.State) { s.BandPaused = false })
	f.tick(t, 3201)
	if got := f.state.Snapshot().BandCluster; got != "bridge" {
		t.Errorf("off-boundary tick: BandCluster = %q, want bridge kept", got)
	}
	f.tick(t, 3232)
	if got := f.state.Snapshot().BandCluster; got != "intro" {
		t.Errorf("BandCluster = %q, want intro after the advance", got)
	}
}

func TestManualModeIsIdle(t *testing.T) {
	f := newFixture(t)
	f.set(t, func(s *state.State) { s.Mode = state.ModeManual })
	f.tick(t, 3200)
	if calls := f.strips.take(); len(calls) != 0 {
		t.Errorf("manual mode wrote %+v", calls)
	}
	if f.channel("dim") != 0 {
		t.Error("manual mode wrote the tube")
	}
}

func TestTickRecoversPanics(t *testing.T) {
	f := newFixture(t)
	f.strips.panic = true
	if err := f.engine.Tick(time.Unix(1000, 0)); err == nil {
		t.Error("Tick() = nil, want the recovered panic as an error")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	f := newFixture(t)
	f.engine.tick = time.Millisecond
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		f.engine.Run(ctx)
		close(done)
	}()

	deadline := time.Now().Add(time.Second)
	for f.channel("dim") == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if f.channel("dim") != 160 {
		t.Error("Run never ticked")
	}
}

func TestRunContinuesAfterFailure(t *testing.T) {
	f := newFixture(t)
	f.strips.panic = true
	f.engine.tick = time.Millisecond
	f.engine.backoff = 5 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	f.engine.Run(ctx) // returns at the deadline without panicking
}
