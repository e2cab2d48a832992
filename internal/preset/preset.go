// Package preset captures and replays whole-rig snapshots: named scenes, the
// catalog's group presets and per-target band presets.
package preset

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"lightrig/internal/catalog"
	"lightrig/internal/logger"
	"lightrig/internal/rig"
	"lightrig/internal/store"
)

const saveTimeout = 2 * time.Second

// Snapshot is fixture -> captured channel values.
type Snapshot map[string]map[string]int

// Rehearsal is the stored aim offsets of one fixture.
type Rehearsal map[string]any

// RehearsalKeys are the fields a rehearsal record accepts.
var RehearsalKeys = []string{"pan_off", "tilt_off", "color_fix", "gobo_fix"}

// Store owns scenes, band presets and rehearsal offsets.
type Store struct {
	mu        sync.Mutex
	rig       *rig.Rig
	cat       *catalog.Catalog
	store     store.Store
	log       *logger.Log
	scenes    map[string]Snapshot
	band      map[string]Snapshot
	rehearsal map[string]Rehearsal
}

// New returns an empty preset store.
func New(log logger.Logger, r *rig.Rig, s store.Store) *Store {
	return &Store{
		rig:       r,
		cat:       r.Catalog(),
		store:     s,
		log:       log.Module("preset"),
		scenes:    map[string]Snapshot{},
		band:      map[string]Snapshot{},
		rehearsal: map[string]Rehearsal{},
	}
}

// Load reads the persisted documents.
func (p *Store) Load(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, d := range []struct {
		key string
		dst any
	}{
		{store.KeyScenes, &p.scenes},
		{store.KeyBandPresets, &p.band},
		{store.KeyRehearsal, &p.rehearsal},
	} {
		if _, err := p.store.Load(ctx, d.key, d.dst); err != nil {
			return fmt.Errorf("loading %s: %w", d.key, err)
		}
	}
	// a stored JSON null decodes to a nil map
	if p.scenes == nil {
		p.scenes = map[string]Snapshot{}
	}
	if p.band == nil {
		p.band = map[string]Snapshot{}
	}
	if p.rehearsal == nil {
		p.rehearsal = map[string]Rehearsal{}
	}
	return nil
}

// SaveScene captures the rig under name, replacing any scene of that name.
func (p *Store) SaveScene(name string) ([]string, error) {
	if name == "" {
		return nil, ErrEmptyName
	}
	snap := Snapshot(p.rig.Capture())

	p.mu.Lock()
	defer p.mu.Unlock()
	p.scenes[name] = snap
	p.persist(store.KeyScenes, p.scenes)
	return p.sceneNames(), nil
}

// LoadScene replays a scene. Values are written as raw channels.
func (p *Store) LoadScene(name string) error {
	p.mu.Lock()
	snap, ok := p.scenes[name]
	p.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %q", ErrSceneNotFound, name)
	}
	p.rig.WriteBatch(p.replay(snap))
	return nil
}

// DeleteScene removes a scene.
func (p *Store) DeleteScene(name string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.scenes[name]; !ok {
		return fmt.Errorf("%w: %q", ErrSceneNotFound, name)
	}
	delete(p.scenes, name)
	p.persist(store.KeyScenes, p.scenes)
	return nil
}

// Scenes lists scene names in sorted order.
func (p *Store) Scenes() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sceneNames()
}

func (p *Store) sceneNames() []string {
	out := make([]string, 0, len(p.scenes))
	for n := range p.scenes {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// ApplyGroupPreset writes a catalog group preset to every member of group.
func (p *Store) ApplyGroupPreset(group, name string) error {
	v, ok := p.cat.GroupPreset(group, name)
	if !ok {
		return fmt.Errorf("%w: %s/%s", ErrPresetNotFound, group, name)
	}
	p.rig.WriteGroup(group, v)
	return nil
}

// SaveBandPreset captures the whole rig for a band target.
func (p *Store) SaveBandPreset(target string) error {
	if !p.cat.IsBandTarget(target) {
		return fmt.Errorf("%w: %q", ErrUnknownTarget, target)
	}
	snap := Snapshot(p.rig.Capture())

	p.mu.Lock()
	defer p.mu.Unlock()
	p.band[target] = snap
	p.persist(store.KeyBandPresets, p.band)
	return nil
}

// LoadBandPreset replays the snapshot saved for target.
func (p *Store) LoadBandPreset(target string) error {
	if !p.cat.IsBandTarget(target) {
		return fmt.Errorf("%w: %q", ErrUnknownTarget, target)
	}
	p.mu.Lock()
	snap, ok := p.band[target]
	p.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %q", ErrBandPresetNotFound, target)
	}
	p.rig.WriteBatch(p.replay(snap))
	return nil
}

// SaveRehearsal merges the known offset fields of rec into the fixture's
// record and returns the stored record.
func (p *Store) SaveRehearsal(fixture string, rec map[string]any) (Rehearsal, error) {
	if fixture == "" {
		return nil, ErrEmptyName
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	cur := p.rehearsal[fixture]
	if cur == nil {
		cur = Rehearsal{}
	}
	for _, k := range RehearsalKeys {
		if v, ok := rec[k]; ok {
			cur[k] = v
		}
	}
	p.rehearsal[fixture] = cur
	p.persist(store.KeyRehearsal, p.rehearsal)

	out := make(Rehearsal, len(cur))
	for k, v := range cur {
		out[k] = v
	}
	return out, nil
}

// replay orders writes by the catalog replay order, so the resulting frame
// does not depend on map iteration. Fixtures no longer in the catalog are
// skipped.
func (p *Store) replay(snap Snapshot) []rig.Write {
	batch := make([]rig.Write, 0, len(snap))
	for _, n := range p.cat.ReplayOrder() {
		if vals, ok := snap[n]; ok {
			batch = append(batch, rig.Write{Fixture: n, Values: catalog.ChannelValues(vals)})
		}
	}
	return batch
}

func (p *Store) persist(key string, doc any) {
	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()
	if err := p.store.Save(ctx, key, doc); err != nil {
		p.log.Warnf("%s not persisted: %v", key, err)
	}
}
