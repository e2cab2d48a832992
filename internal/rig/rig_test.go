package rig

import (
	"sync"
	"testing"

	"lightrig/internal/catalog"
	"lightrig/internal/dmx"
	"lightrig/internal/logger"
)

const testCatalog = `
color_palettes:
  Cyan: "#00FFFF"
  Red: "#FF0000"
groups:
  pars: [par1, par2, ghost]
wheel_maps:
  mh_color: {Cyan: 10, Red: 20}
fixtures:
  mh1:
    start: 10
    ch: {pan: 1, tilt: 3, dim: 5}
  mh2:
    start: 20
    ch: {dim: 1, color: 2}
    match_color: {strategy: wheel, wheel: mh_color}
  par1:
    start: 30
    ch: {dim: 1, r: 2, g: 3, b: 4, w: 5}
    match_color: {strategy: rgb}
  par2:
    start: 40
    ch: {dim: 1, r: 2, g: 3, b: 4}
    match_color: {strategy: rgb}
  edge:
    start: 511
    ch: {dim: 1, pan: 2, tilt: 3}
  tube_dmx:
    start: 100
    ch: {pattern: 1, speed: 2, strobe: 3, dim: 4}
  strobe_dmx:
    start: 110
    ch: {rate: 1, dim: 2}
  bl_top:
    start: 120
    ch: {dim: 1}
  bl_bottom:
    start: 121
    ch: {dim: 1}
  laser:
    start: 130
    ch: {on: 1}
`

type recorder struct {
	mu     sync.Mutex
	frames []dmx.Frame
}

func (r *recorder) FlushUniverse(f dmx.Frame) {
	r.mu.Lock()
	r.frames = append(r.frames, f)
	r.mu.Unlock()
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.frames)
}

func newTestRig(t *testing.T) (*Rig, *recorder) {
	t.Helper()
	cat, err := catalog.Build(catalog.Sources{Fixtures: []byte(testCatalog)})
	if err != nil {
		t.Fatalf("catalog.Build: %v", err)
	}
	rec := &recorder{}
	return New(logger.Discard(), cat, rec), rec
}

func values(ch map[string]int) catalog.Values {
	return catalog.ChannelValues(ch)
}

func TestWriteFixtureIndex(t *testing.T) {
	r, rec := newTestRig(t)
	r.WriteFixture("mh1", values(map[string]int{"tilt": 7}))
	r.WriteFixture("mh1", values(map[string]int{"pan": 200}))

	f := r.Frame()
	if f[9] != 200 {
		t.Errorf("buffer[9] = %d, want 200", f[9])
	}
	if f[11] != 7 || f[13] != 0 {
		t.Errorf("buffer[11], buffer[13] = %d, %d; want unchanged 7, 0", f[11], f[13])
	}
	if rec.count() != 2 {
		t.Errorf("flushes = %d, want one per call", rec.count())
	}
}

func TestWriteFixtureClamps(t *testing.T) {
	tests := []struct {
		in   int
		want byte
	}{
		{-20, 0},
		{0, 0},
		{128, 128},
		{255, 255},
		{999, 255},
	}
	r, _ := newTestRig(t)
	for _, tt := range tests {
		r.WriteFixture("mh1", values(map[string]int{"dim": tt.in}))
		if got, _ := r.ChannelValue("mh1", "dim"); got != tt.want {
			t.Errorf("dim %d stored as %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestWriteFixtureIgnoresUnknown(t *testing.T) {
	r, rec := newTestRig(t)
	r.WriteFixture("nope", values(map[string]int{"dim": 255}))
	// strobe is not in mh1's map, on is not a direct key
	r.WriteFixture("mh1", values(map[string]int{"strobe": 255, "dim": 40}))
	r.WriteFixture("laser", values(map[string]int{"on": 255}))

	if got, _ := r.ChannelValue("mh1", "dim"); got != 40 {
		t.Errorf("mh1 dim = %d, want 40", got)
	}
	if got, _ := r.ChannelValue("laser", "on"); got != 0 {
		t.Errorf("laser on = %d, non-direct key should be ignored", got)
	}
	f := r.Frame()
	nonZero := 0
	for _, b := range f {
		if b != 0 {
			nonZero++
		}
	}
	if nonZero != 1 {
		t.Errorf("%d slots written, want 1", nonZero)
	}
	if rec.count() != 3 {
		t.Errorf("flushes = %d", rec.count())
	}
}

func TestWriteFixtureOutOfRange(t *testing.T) {
	r, _ := newTestRig(t)
	// edge starts at 511: dim -> 510, pan -> 511, tilt -> 512 (dropped)
	r.WriteFixture("edge", values(map[string]int{"dim": 1, "pan": 2, "tilt": 3}))
	f := r.Frame()
	if f[510] != 1 || f[511] != 2 {
		t.Errorf("edge slots = %d, %d", f[510], f[511])
	}
	if _, ok := r.ChannelValue("edge", "tilt"); ok {
		t.Error("tilt lies outside the universe")
	}
}

func TestWriteFixtureColor(t *testing.T) {
	r, _ := newTestRig(t)

	r.WriteFixture("par1", catalog.Values{Hex: "#102030", Channels: map[string]int{"dim": 255, "g": 99}})
	want := map[string]byte{"dim": 255, "r": 0x10, "g": 99, "b": 0x30, "w": 0}
	for ch, v := range want {
		if got, _ := r.ChannelValue("par1", ch); got != v {
			t.Errorf("par1 %s = %d, want %d", ch, got, v)
		}
	}

	r.WriteFixture("mh2", catalog.Values{Hex: "#00FFFF"})
	if got, _ := r.ChannelValue("mh2", "color"); got != 10 {
		t.Errorf("mh2 color = %d, want 10", got)
	}

	// no strategy: color ignored, direct keys still apply
	r.WriteFixture("mh1", catalog.Values{Hex: "#FF0000", Channels: map[string]int{"dim": 5}})
	if got, _ := r.ChannelValue("mh1", "dim"); got != 5 {
		t.Errorf("mh1 dim = %d", got)
	}

	// bad hex: color dropped, direct keys still apply
	r.WriteFixture("par2", catalog.Values{Hex: "red", Channels: map[string]int{"dim": 9}})
	if got, _ := r.ChannelValue("par2", "dim"); got != 9 {
		t.Errorf("par2 dim = %d", got)
	}
	if got, _ := r.ChannelValue("par2", "r"); got != 0 {
		t.Errorf("par2 r = %d, want untouched", got)
	}
}

func TestWriteGroupOneFlush(t *testing.T) {
	r, rec := newTestRig(t)
	r.WriteGroup("pars", catalog.Values{Hex: "#FF0000", Channels: map[string]int{"dim": 200}})

	if rec.count() != 1 {
		t.Errorf("flushes = %d, want 1", rec.count())
	}
	for _, name := range []string{"par1", "par2"} {
		if d, _ := r.ChannelValue(name, "dim"); d != 200 {
			t.Errorf("%s dim = %d", name, d)
		}
		if red, _ := r.ChannelValue(name, "r"); red != 255 {
			t.Errorf("%s r = %d", name, red)
		}
	}

	r.WriteGroup("nope", values(map[string]int{"dim": 1}))
	if rec.count() != 1 {
		t.Error("unknown group should not flush")
	}
}

func TestWriteBatchLaterWins(t *testing.T) {
	r, rec := newTestRig(t)
	r.WriteBatch([]Write{
		{Fixture: "mh1", Values: values(map[string]int{"dim": 10})},
		{Fixture: "mh1", Values: values(map[string]int{"dim": 20})},
	})
	if d, _ := r.ChannelValue("mh1", "dim"); d != 20 {
		t.Errorf("dim = %d, want the later write", d)
	}
	if rec.count() != 1 {
		t.Errorf("flushes = %d", rec.count())
	}
}

func TestDevices(t *testing.T) {
	r, _ := newTestRig(t)

	r.ApplyTube("chaos", 64, 5, 180)
	r.ApplyStrobe(128, 255)
	top := 255
	r.ApplyBlinders(&top, nil)
	r.SetLaser(true)

	checks := []struct {
		fixture, ch string
		want        byte
	}{
		{"tube_dmx", "pattern", 70},
		{"tube_dmx", "speed", 64},
		{"tube_dmx", "strobe", 5},
		{"tube_dmx", "dim", 180},
		{"strobe_dmx", "rate", 128},
		{"bl_top", "dim", 255},
		{"bl_bottom", "dim", 0},
		{"laser", "on", 255},
	}
	for _, c := range checks {
		if got, _ := r.ChannelValue(c.fixture, c.ch); got != c.want {
			t.Errorf("%s.%s = %d, want %d", c.fixture, c.ch, got, c.want)
		}
	}

	r.ApplyTube("disco", 0, 0, 0)
	if got, _ := r.ChannelValue("tube_dmx", "pattern"); got != 10 {
		t.Errorf("unknown pattern = %d, want fade_up", got)
	}
}

func TestCapture(t *testing.T) {
	r, _ := newTestRig(t)
	r.WriteFixture("mh1", values(map[string]int{"pan": 50, "tilt": 60}))

	snap := r.Capture()
	if got := snap["mh1"]; got["pan"] != 50 || got["tilt"] != 60 || got["dim"] != 0 {
		t.Errorf("mh1 capture = %v", got)
	}
	if _, ok := snap["laser"]; ok {
		t.Error("laser has no capturable channel")
	}
	if _, ok := snap["strobe_dmx"]; !ok {
		t.Error("strobe_dmx has dim and should be captured")
	}
	if got := snap["edge"]; len(got) != 2 {
		t.Errorf("edge capture = %v, want only in-range channels", got)
	}
}

func TestConcurrentWritesFlushInOrder(t *testing.T) {
	r, rec := newTestRig(t)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(v int) {
			defer wg.Done()
			r.WriteFixture("mh1", values(map[string]int{"dim": v}))
		}(i)
	}
	wg.Wait()

	last := rec.frames[len(rec.frames)-1]
	if last != r.Frame() {
		t.Error("last flushed frame differs from the universe")
	}
}
