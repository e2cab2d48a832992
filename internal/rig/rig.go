// Package rig writes fixture values into the universe and hands every
// resulting frame to the DMX transport.
package rig

import (
	"sync"

	"lightrig/internal/catalog"
	"lightrig/internal/color"
	"lightrig/internal/dmx"
	"lightrig/internal/logger"
)

// Transport receives the whole frame after every write.
type Transport interface {
	FlushUniverse(frame dmx.Frame)
}

// Discard is a Transport that drops frames, for rigs without DMX output.
type Discard struct{}

// FlushUniverse implements Transport.
func (Discard) FlushUniverse(dmx.Frame) {}

// Write is one fixture's share of a multi-fixture write.
type Write struct {
	Fixture string
	Values  catalog.Values
}

// Rig is the fixture writer. Unknown fixtures, groups and channels are
// ignored rather than reported.
type Rig struct {
	mu        sync.Mutex // serializes apply+flush so frames leave in write order
	cat       *catalog.Catalog
	universe  *dmx.Universe
	transport Transport
	log       *logger.Log
}

// New returns a rig writing to an all-zero universe.
func New(log logger.Logger, cat *catalog.Catalog, t Transport) *Rig {
	if t == nil {
		t = Discard{}
	}
	return &Rig{
		cat:       cat,
		universe:  dmx.NewUniverse(),
		transport: t,
		log:       log.Module("rig"),
	}
}

// Catalog returns the catalog the rig writes against.
func (r *Rig) Catalog() *catalog.Catalog {
	return r.cat
}

// WriteFixture resolves a color request, applies the direct channels of v and
// flushes once.
func (r *Rig) WriteFixture(name string, v catalog.Values) {
	r.WriteBatch([]Write{{Fixture: name, Values: v}})
}

// WriteGroup writes v to every member of group in group order, as one batch.
func (r *Rig) WriteGroup(group string, v catalog.Values) {
	members, ok := r.cat.Group(group)
	if !ok {
		r.log.Debugf("write to unknown group %q ignored", group)
		return
	}
	batch := make([]Write, 0, len(members))
	for _, m := range members {
		batch = append(batch, Write{Fixture: m, Values: v})
	}
	r.WriteBatch(batch)
}

// WriteBatch applies every write under one lock and flushes once. The final
// frame equals applying the writes one by one in order.
func (r *Rig) WriteBatch(batch []Write) {
	var values []dmx.ChannelValue
	for _, w := range batch {
		values = append(values, r.fixtureValues(w.Fixture, w.Values)...)
	}
	r.apply(values)
}

// SetChannels writes raw values to any channel in the fixture's map, bypassing
// the direct-key filter. Device helpers use it for pattern, rate and similar
// channels.
func (r *Rig) SetChannels(name string, ch map[string]int) {
	f, ok := r.cat.Fixture(name)
	if !ok {
		return
	}
	r.apply(channelValues(f, ch))
}

// ChannelValue reads a fixture channel from the universe.
func (r *Rig) ChannelValue(fixture, ch string) (byte, bool) {
	f, ok := r.cat.Fixture(fixture)
	if !ok {
		return 0, false
	}
	idx, ok := f.Index(ch)
	if !ok {
		return 0, false
	}
	return r.universe.Get(idx)
}

// Frame returns a copy of the current universe.
func (r *Rig) Frame() dmx.Frame {
	return r.universe.Snapshot()
}

// Capture reads the capturable channels of every fixture from one consistent
// frame. Fixtures without capturable channels are omitted.
func (r *Rig) Capture() map[string]map[string]int {
	frame := r.universe.Snapshot()
	out := map[string]map[string]int{}
	for _, name := range r.cat.FixtureNames() {
		f, _ := r.cat.Fixture(name)
		rec := map[string]int{}
		for _, ch := range f.Capturable() {
			if idx, ok := f.Index(ch); ok {
				rec[ch] = int(frame[idx])
			}
		}
		if len(rec) > 0 {
			out[name] = rec
		}
	}
	return out
}

// Refresh resends the current frame without changing it.
func (r *Rig) Refresh() {
	r.apply(nil)
}

func (r *Rig) apply(values []dmx.ChannelValue) {
	r.mu.Lock()
	defer r.mu.Unlock()
	frame := r.universe.Apply(values)
	r.transport.FlushUniverse(frame)
}

// fixtureValues builds the pending writes of one fixture: the resolved color
// first, then direct keys, which override resolved channels.
func (r *Rig) fixtureValues(name string, v catalog.Values) []dmx.ChannelValue {
	f, ok := r.cat.Fixture(name)
	if !ok {
		r.log.Debugf("write to unknown fixture %q ignored", name)
		return nil
	}

	write := map[string]int{}
	if v.Hex != "" {
		resolved, err := color.Resolve(f.Color, v.Hex)
		if err != nil {
			r.log.Warnf("fixture %s: color %q ignored: %v", name, v.Hex, err)
		}
		for ch, val := range resolved {
			write[ch] = val
		}
	}
	for _, ch := range catalog.DirectChannels {
		if val, ok := v.Channels[ch]; ok {
			write[ch] = val
		}
	}
	return channelValues(f, write)
}

func channelValues(f *catalog.Fixture, ch map[string]int) []dmx.ChannelValue {
	out := make([]dmx.ChannelValue, 0, len(ch))
	for name, val := range ch {
		idx, ok := f.Index(name)
		if !ok {
			continue
		}
		out = append(out, dmx.ChannelValue{Index: idx, Value: val})
	}
	return out
}
