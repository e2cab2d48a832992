// Package midi routes Launchpad and MIDImix controllers to the show.
package midi

import (
	"context"
	"fmt"
	"strings"
	"sync"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv" // Register MIDI driver

	"lightrig/internal/config"
	"lightrig/internal/logger"
	"lightrig/internal/state"
)

// Port names matched when none are configured.
const (
	launchpadPort = "Launchpad"
	midimixPort   = "MIDImix"
)

const (
	devLaunchpad = "launchpad"
	devMIDImix   = "midimix"
)

type eventKind int

const (
	notePress eventKind = iota
	noteRelease
	controlChange
)

type event struct {
	device string
	kind   eventKind
	number uint8
	value  uint8
}

type sender func(gomidi.Message) error

// Bridge listens on the controller ports and runs the bound actions.
type Bridge struct {
	log   *logger.Log
	show  Show
	cfg   config.MIDIConf
	bind  Bindings
	learn bool
	leds  LEDMap

	mu      sync.Mutex
	lpSend  sender
	mixSend sender
	lit     map[string]uint8 // device -> feedback pad currently lit

	ctx    context.Context
	events chan event
	stops  []func()
	wg     sync.WaitGroup
}

// NewBridge loads the layout, remap and LED files named in cfg.
func NewBridge(log logger.Logger, cfg config.MIDIConf, s Show) (*Bridge, error) {
	layout, err := LoadLayout(cfg.Layout)
	if err != nil {
		return nil, fmt.Errorf("midi layout: %w", err)
	}
	remap, err := LoadRemap(cfg.Remap)
	if err != nil {
		return nil, fmt.Errorf("midi remap: %w", err)
	}
	leds, err := LoadLEDMap(cfg.LEDMap)
	if err != nil {
		return nil, fmt.Errorf("midi led map: %w", err)
	}
	return newBridge(log, cfg, s, NewBindings(layout, remap), remap.LearnMode, leds), nil
}

func newBridge(log logger.Logger, cfg config.MIDIConf, s Show, b Bindings, learn bool, leds LEDMap) *Bridge {
	return &Bridge{
		log:    log.Module("midi"),
		show:   s,
		cfg:    cfg,
		bind:   b,
		learn:  learn,
		leds:   leds,
		lit:    map[string]uint8{},
		events: make(chan event, 64),
	}
}

// Start opens the configured ports. A controller that is not plugged in is
// skipped with a warning.
func (b *Bridge) Start(ctx context.Context) error {
	b.ctx = ctx
	ins := gomidi.GetInPorts()
	outs := gomidi.GetOutPorts()

	for _, d := range []struct {
		device  string
		in, out string
		send    *sender
	}{
		{devLaunchpad, or(b.cfg.LaunchpadIn, launchpadPort), or(b.cfg.LaunchpadOut, launchpadPort), &b.lpSend},
		{devMIDImix, or(b.cfg.MIDImixIn, midimixPort), or(b.cfg.MIDImixOut, midimixPort), &b.mixSend},
	} {
		if out := findPort[drivers.Out](outs, d.out); out != nil {
			send, err := gomidi.SendTo(out)
			if err != nil {
				b.log.Warnf("%s: open output %s: %v", d.device, out.String(), err)
			} else {
				*d.send = send
			}
		}

		in := findPort[drivers.In](ins, d.in)
		if in == nil {
			b.log.Warnf("%s: no input port matching %q", d.device, d.in)
			continue
		}
		device := d.device
		stop, err := gomidi.ListenTo(in, func(msg gomidi.Message, _ int32) {
			b.receive(device, msg)
		})
		if err != nil {
			b.log.Warnf("%s: open input %s: %v", device, in.String(), err)
			continue
		}
		b.stops = append(b.stops, stop)
		b.log.Infof("%s: listening on %s", device, in.String())
	}

	b.wg.Add(1)
	go b.run()
	return nil
}

// Stop closes the ports and waits for the worker, which exits with the Start
// context.
func (b *Bridge) Stop() {
	for _, stop := range b.stops {
		stop()
	}
	b.wg.Wait()
	gomidi.CloseDriver()
}

func or(name, fallback string) string {
	if name == "" {
		return fallback
	}
	return name
}

// findPort returns the first port whose name contains name, ignoring case.
func findPort[P interface{ String() string }](ports []P, name string) P {
	var zero P
	name = strings.ToLower(name)
	for _, p := range ports {
		if strings.Contains(strings.ToLower(p.String()), name) {
			return p
		}
	}
	return zero
}

// receive runs on the driver goroutine; events are dropped when the worker
// falls behind.
func (b *Bridge) receive(device string, msg gomidi.Message) {
	var ch, key, vel, cc, val uint8
	var ev event
	switch {
	case msg.GetNoteStart(&ch, &key, &vel):
		ev = event{device: device, kind: notePress, number: key, value: vel}
	case msg.GetNoteEnd(&ch, &key):
		ev = event{device: device, kind: noteRelease, number: key}
	case msg.GetControlChange(&ch, &cc, &val):
		ev = event{device: device, kind: controlChange, number: cc, value: val}
	default:
		return
	}
	select {
	case b.events <- ev:
	default:
		b.log.Debugf("%s: event dropped", device)
	}
}

func (b *Bridge) run() {
	defer b.wg.Done()
	for {
		select {
		case <-b.ctx.Done():
			return
		case ev := <-b.events:
			b.handle(ev)
		}
	}
}

// handle runs the action bound to one controller event.
func (b *Bridge) handle(ev event) {
	var action, field string
	value := 127
	switch {
	case ev.kind == noteRelease:
		b.light(ev.device, ev.number, b.leds.Off)
		return
	case ev.kind == controlChange && ev.device == devMIDImix:
		action, field, value = b.bind.MixCC[ev.number], "cc", int(ev.value)
	case ev.kind == notePress && ev.device == devMIDImix:
		action, field = b.bind.MixNote[ev.number], "note"
	case ev.kind == notePress:
		action, field = b.bind.Launchpad[ev.number], "note"
	default:
		return
	}

	if b.learn {
		var suggested any
		if action != "" {
			suggested = action
		}
		b.show.MIDILog(map[string]any{"device": ev.device, field: int(ev.number), "suggested": suggested})
	}
	if action == "" {
		return
	}
	if err := Route(b.ctx, b.show, action, value); err != nil {
		b.log.Warnf("%s %s %d: %s: %v", ev.device, field, ev.number, action, err)
		if field == "note" {
			b.light(ev.device, ev.number, b.leds.Warn)
		}
		return
	}
	if field == "note" {
		b.light(ev.device, ev.number, b.leds.On)
	}
}

// ShowState lights the pad of the selected AI cluster and the MIDImix button
// of the selected band cluster.
func (b *Bridge) ShowState(st state.State) {
	b.feedback(devLaunchpad, b.bind.Launchpad, "ai_cluster:"+st.AICluster)
	b.feedback(devMIDImix, b.bind.MixNote, "band_cluster:"+st.BandCluster)
}

func (b *Bridge) feedback(device string, m map[uint8]string, action string) {
	note, ok := noteFor(m, action)
	b.mu.Lock()
	prev, had := b.lit[device]
	if ok {
		b.lit[device] = note
	} else {
		delete(b.lit, device)
	}
	b.mu.Unlock()

	if had && (!ok || prev != note) {
		b.light(device, prev, b.leds.Off)
	}
	if ok && (!had || prev != note) {
		b.light(device, note, b.leds.On)
	}
}

// noteFor returns the lowest note bound to action.
func noteFor(m map[uint8]string, action string) (uint8, bool) {
	var note uint8
	found := false
	for n, a := range m {
		if a == action && (!found || n < note) {
			note, found = n, true
		}
	}
	return note, found
}

func (b *Bridge) light(device string, note, vel uint8) {
	b.mu.Lock()
	defer b.mu.Unlock()
	send := b.lpSend
	if device == devMIDImix {
		send = b.mixSend
	}
	if send == nil {
		return
	}
	if err := send(gomidi.NoteOn(0, note, vel)); err != nil {
		b.log.Debugf("%s led %d: %v", device, note, err)
	}
}
