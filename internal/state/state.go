// Package state holds the rig's mode state and device state.
package state

// Mode selects which automatic look, if any, the engine drives.
type Mode string

// Modes.
const (
	ModeAI     Mode = "ai"
	ModeBand   Mode = "band"
	ModeManual Mode = "manual"
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	switch m {
	case ModeAI, ModeBand, ModeManual:
		return true
	}
	return false
}

// Device families of the include maps.
const (
	FamilyParsBig    = "pars_big"
	FamilyParsSmall  = "pars_small"
	FamilyMovingPar  = "moving_par"
	FamilyWashFX     = "wash_fx"
	FamilyMovingHead = "moving_head"
	FamilyScanner    = "scanner"
	FamilyDualScan   = "dual_scan"
	FamilyWLEDTubes  = "wled_tubes"
	FamilyTubeDMX    = "tube_dmx"
	FamilyGuirlande  = "guirlande"
)

// Families lists every include-map family.
var Families = []string{
	FamilyParsBig, FamilyParsSmall, FamilyMovingPar, FamilyWashFX, FamilyMovingHead,
	FamilyScanner, FamilyDualScan, FamilyWLEDTubes, FamilyTubeDMX, FamilyGuirlande,
}

// InitialBandCluster is where the band timeline starts and where an unknown
// cluster resets to.
const InitialBandCluster = "intro"

// ColorLock pins the engine color.
type ColorLock struct {
	Enabled bool   `json:"enabled"`
	Hex     string `json:"hex"`
}

// Accent is the band accent color.
type Accent struct {
	Enabled bool   `json:"enabled"`
	Hex     string `json:"hex"`
	Pct     int    `json:"pct"`
}

// Include flags which device families an engine drives.
type Include map[string]bool

// WLED is the state of one WLED strip family.
type WLED struct {
	On        bool   `json:"on"`
	FX        string `json:"fx"`
	Speed     int    `json:"speed"`
	Intensity int    `json:"intensity"`
}

// TubeDMX is the state of the DMX pixel tube.
type TubeDMX struct {
	Pattern string `json:"pattern"`
	Speed   int    `json:"speed"`
	Strobe  int    `json:"strobe"`
	Dim     int    `json:"dim"`
}

// StroboDMX is the state of the DMX strobe.
type StroboDMX struct {
	Rate int `json:"rate"`
	Dim  int `json:"dim"`
}

// State is the whole persisted state document.
type State struct {
	Mode Mode `json:"mode"`

	AIEnabled   bool      `json:"ai_enabled"`
	AIFull      bool      `json:"ai_full"`
	AICluster   string    `json:"ai_cluster"`
	AISub       string    `json:"ai_sub"`
	AIColorLock ColorLock `json:"ai_color_lock"`
	AIInclude   Include   `json:"ai_include"`
	AIVariation bool      `json:"ai_variation"`
	AISmooth    bool      `json:"ai_smooth"`
	AIColormix  bool      `json:"ai_colormix"`

	BandCluster   string    `json:"band_cluster"`
	BandSub       string    `json:"band_sub"`
	BandRunning   bool      `json:"band_running"`
	BandPaused    bool      `json:"band_paused"`
	BandColorLock ColorLock `json:"band_color_lock"`
	BandPalette   string    `json:"band_palette"`
	BandAccent    Accent    `json:"band_accent"`
	BandInclude   Include   `json:"band_include"`
	BandFill      int       `json:"band_fill"`
	BandTarget    string    `json:"band_target"`

	Guirlande WLED      `json:"guirlande"`
	WLEDTubes WLED      `json:"wled_tubes"`
	TubeDMX   TubeDMX   `json:"tube_dmx"`
	StroboDMX StroboDMX `json:"strobo_dmx"`
}

// Default is the state of a fresh install.
func Default() State {
	return State{
		Mode:        ModeAI,
		AIEnabled:   true,
		AICluster:   "tech_house",
		AIColorLock: ColorLock{Hex: "#FFFFFF"},
		AIInclude:   allFamilies(),

		BandCluster:   InitialBandCluster,
		BandColorLock: ColorLock{Enabled: true, Hex: "#FFE6CC"},
		BandPalette:   "WarmWhite",
		BandAccent:    Accent{Enabled: true, Hex: "#FFB000", Pct: 10},
		BandInclude:   allFamilies(),

		Guirlande: WLED{On: true, FX: "Breathe", Speed: 120, Intensity: 180},
		WLEDTubes: WLED{On: true, FX: "Solid", Speed: 120, Intensity: 255},
		TubeDMX:   TubeDMX{Pattern: "fade_up", Speed: 64, Dim: 160},
		StroboDMX: StroboDMX{Dim: 255},
	}
}

func allFamilies() Include {
	inc := make(Include, len(Families))
	for _, f := range Families {
		inc[f] = true
	}
	return inc
}

// Clone returns a deep copy of s.
func (s State) Clone() State {
	s.AIInclude = s.AIInclude.clone()
	s.BandInclude = s.BandInclude.clone()
	return s
}

func (inc Include) clone() Include {
	if inc == nil {
		return nil
	}
	out := make(Include, len(inc))
	for k, v := range inc {
		out[k] = v
	}
	return out
}

// Merge sets the known families present in upd, ignoring unknown keys.
func (inc Include) Merge(upd map[string]bool) {
	for k := range inc {
		if v, ok := upd[k]; ok {
			inc[k] = v
		}
	}
}
