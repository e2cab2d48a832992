package midi

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"
)

// Layout names what every controller element does. The files are JSON; the
// YAML decoder reads them as-is.
type Layout struct {
	Launchpad LaunchpadLayout `yaml:"launchpad"`
	MIDImix   MIDImixLayout   `yaml:"midimix"`
}

// LaunchpadLayout lists the top row, the right column and the eight grid rows.
type LaunchpadLayout struct {
	TopButtons  []string `yaml:"top_buttons"`
	RightColumn []string `yaml:"right_column"`
	AIClusters  []string `yaml:"row1_ai_clusters"`
	Blinders    []string `yaml:"row2_blinders"`
	StroboFX    []string `yaml:"row3_strobo_fx"`
	TubeDMX     []string `yaml:"row4_tube_dmx"`
	WLEDTubes   []string `yaml:"row5_wled_tubes"`
	Guirlande   []string `yaml:"row6_guirlande"`
	Laser       []string `yaml:"row7_laser"`
	Misc        []string `yaml:"row8_misc"`
}

// MIDImixLayout lists faders, the three knob rows and the button rows.
type MIDImixLayout struct {
	Faders       []string `yaml:"faders"`
	KnobsA       []string `yaml:"knobsA"`
	KnobsB       []string `yaml:"knobsB"`
	KnobsC       []string `yaml:"knobsC"`
	TopButtons   []string `yaml:"top_buttons"`
	SecondRow    []string `yaml:"second_row"`
	RightButtons []string `yaml:"right_buttons"`
}

// Remap holds learned overrides, keyed by device then message kind then
// number ("cc" or "note" -> "<n>" -> action).
type Remap struct {
	LearnMode bool `yaml:"learn_mode"`
	Map       struct {
		MIDImix   DeviceRemap `yaml:"midimix"`
		Launchpad DeviceRemap `yaml:"launchpad"`
	} `yaml:"map"`
}

// DeviceRemap maps controller numbers to actions.
type DeviceRemap struct {
	CC   map[string]string `yaml:"cc"`
	Note map[string]string `yaml:"note"`
}

// LEDMap holds the pad velocities used for feedback.
type LEDMap struct {
	On   uint8 `yaml:"on"`
	Off  uint8 `yaml:"off"`
	Warn uint8 `yaml:"warn"`
}

// DefaultLEDMap is used when no LED map file exists.
func DefaultLEDMap() LEDMap {
	return LEDMap{On: 3, Off: 0, Warn: 1}
}

// LoadLayout reads the layout file. A missing file yields an empty layout.
func LoadLayout(path string) (Layout, error) {
	var l Layout
	err := loadFile(path, &l)
	return l, err
}

// LoadRemap reads the remap file. A missing file yields no overrides.
func LoadRemap(path string) (Remap, error) {
	var r Remap
	err := loadFile(path, &r)
	return r, err
}

// LoadLEDMap reads the LED map, keeping defaults for absent keys.
func LoadLEDMap(path string) (LEDMap, error) {
	m := DefaultLEDMap()
	err := loadFile(path, &m)
	return m, err
}

func loadFile(path string, dst any) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}
