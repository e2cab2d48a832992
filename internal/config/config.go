package config

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml"
)

// Config структура конфигурации.
type Config struct {
	Logger    LogConf       // Logger - logger configuration.
	DMX       DMXConf       // DMX - Art-Net output.
	HTTP      HTTPConf      // HTTP - API listener.
	MQTT      MQTTConf      // MQTT - broker bridge.
	Storage   StorageConf   // Storage - persisted documents.
	Catalog   CatalogConf   // Catalog - fixture and show definition files.
	WLED      WLEDConf      // WLED - LED strip controllers.
	Engine    EngineConf    // Engine - automatic mode scheduler.
	Momentary MomentaryConf // Momentary - hold times for momentary actions.
	InfluxDB  InfluxDBConf  `toml:"influxdb"`     // InfluxDB - show event telemetry.
	MIDI      MIDIConf      `toml:"midi"`         // MIDI - controller routing.
	Force     ForceConf     `toml:"force-bridge"` // Force - external force bridge.
	Scripts   ScriptsConf   // Scripts - shell hooks.
}

// LogConf структура конфигурации.
type LogConf struct {
	Level string `toml:"log-level"` // Level - уровень логирования.
}

// DMXConf describes the Art-Net output.
type DMXConf struct {
	Enabled  bool     `toml:"enabled"`  // Enabled - send frames over Art-Net.
	Universe uint16   `toml:"universe"` // Universe: high byte - Net, low byte - SubUni.
	Network  string   `toml:"network"`  // Network - CIDR of the Art-Net interface.
	MaxFPS   int      `toml:"max-fps"`  // MaxFPS - sender frame rate limit.
	Refresh  Duration `toml:"refresh"`  // Refresh - resend interval for the last frame.
}

// HTTPConf describes the API listener.
type HTTPConf struct {
	Listen       string   `toml:"listen"`        // Listen - host:port.
	ReadTimeout  Duration `toml:"read-timeout"`  // ReadTimeout - request read timeout.
	WriteTimeout Duration `toml:"write-timeout"` // WriteTimeout - response write timeout.
}

// MQTTConf структура конфигурации.
type MQTTConf struct {
	Enabled  bool   `toml:"enabled"`  // Enabled - connect to the broker.
	ClientID string `toml:"clientID"` // ClientID - имя клиента.
	Host     string `toml:"server"`   // Host - адрес MQTT сервера.
	Port     string `toml:"port"`     // Port - порт MQTT сервера.
	User     string `toml:"user"`     // User - логин для подключения к MQTT серверу.
	Password string `toml:"password"` // Password - пароль для подключения к MQTT серверу.
	Qos      byte   `toml:"qos"`      // Qos - качество обслуживания.
	Prefix   string `toml:"prefix"`   // Prefix - topic root.
}

// StorageConf describes the document store.
type StorageConf struct {
	Path string `toml:"path"` // Path - SQLite database file.
}

// CatalogConf lists the definition files loaded once at startup.
type CatalogConf struct {
	Fixtures     string `toml:"fixtures"`      // Fixtures - fixtures, groups, palettes, wheel maps.
	AIClusters   string `toml:"ai-clusters"`   // AIClusters - automatic look families.
	BandClusters string `toml:"band-clusters"` // BandClusters - band timeline clusters.
	Colors       string `toml:"colors"`        // Colors - custom named colors.
	WLEDEffects  string `toml:"wled-effects"`  // WLEDEffects - effect name to id.
	Presets      string `toml:"presets"`       // Presets - group presets and band targets.
}

// WLEDConf maps logical strip names to WLED JSON API endpoints.
type WLEDConf struct {
	Timeout   Duration          `toml:"timeout"`   // Timeout - per post.
	Endpoints map[string]string `toml:"endpoints"` // Endpoints - guirlande, tube_L, tube_R.
}

// EngineConf describes the tick scheduler.
type EngineConf struct {
	Tick    Duration `toml:"tick"`    // Tick - cadence.
	Backoff Duration `toml:"backoff"` // Backoff - delay after a failed tick.
}

// MomentaryConf holds reference hold durations.
type MomentaryConf struct {
	Blinder Duration `toml:"blinder"` // Blinder - blinder flash hold.
	Strobe  Duration `toml:"strobe"`  // Strobe - strobe test hold.
}

// InfluxDBConf describes the optional telemetry sink.
type InfluxDBConf struct {
	Enabled bool   `toml:"enabled"`
	URL     string `toml:"url"`
	Token   string `toml:"token"`
	Org     string `toml:"org"`
	Bucket  string `toml:"bucket"`
}

// MIDIConf describes the controller ports and layout files.
type MIDIConf struct {
	Enabled      bool   `toml:"enabled"`
	Layout       string `toml:"layout"`        // Layout - midi_layout file.
	Remap        string `toml:"remap"`         // Remap - learned overrides.
	LEDMap       string `toml:"led-map"`       // LEDMap - pad velocities.
	LaunchpadIn  string `toml:"launchpad-in"`  // LaunchpadIn - input port name.
	LaunchpadOut string `toml:"launchpad-out"` // LaunchpadOut - output port name.
	MIDImixIn    string `toml:"midimix-in"`    // MIDImixIn - input port name.
	MIDImixOut   string `toml:"midimix-out"`   // MIDImixOut - output port name.
}

// ForceConf describes the external force bridge.
type ForceConf struct {
	URL     string   `toml:"url"`
	Key     string   `toml:"key"`
	Timeout Duration `toml:"timeout"`
}

// ScriptsConf lists shell hooks.
type ScriptsConf struct {
	SafeShutdown string `toml:"safe-shutdown"`
}

// Duration decodes TOML strings such as "20ms".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("duration %q: %w", text, err)
	}
	d.Duration = v
	return nil
}

// Default returns the configuration used for every key the file leaves out.
func Default() Config {
	return Config{
		Logger: LogConf{Level: "info"},
		DMX: DMXConf{
			Enabled: true,
			Network: "192.168.6.0/24",
			MaxFPS:  40,
			Refresh: Duration{time.Second},
		},
		HTTP: HTTPConf{
			Listen:       ":5000",
			ReadTimeout:  Duration{5 * time.Second},
			WriteTimeout: Duration{5 * time.Second},
		},
		MQTT: MQTTConf{
			ClientID: "lightrig",
			Host:     "127.0.0.1",
			Port:     "1883",
			Prefix:   "lightrig",
		},
		Storage: StorageConf{Path: "data/lightrig.db"},
		Catalog: CatalogConf{
			Fixtures:     "config/fixtures_full.json",
			AIClusters:   "config/ai_clusters.json",
			BandClusters: "config/band_clusters.json",
			Colors:       "config/custom_colors.json",
			WLEDEffects:  "config/custom_wled_fx.json",
			Presets:      "config/custom_presets.json",
		},
		WLED:      WLEDConf{Timeout: Duration{250 * time.Millisecond}, Endpoints: map[string]string{}},
		Engine:    EngineConf{Tick: Duration{20 * time.Millisecond}, Backoff: Duration{100 * time.Millisecond}},
		Momentary: MomentaryConf{Blinder: Duration{150 * time.Millisecond}, Strobe: Duration{100 * time.Millisecond}},
		MIDI: MIDIConf{
			Layout: "config/midi_layout.json",
			Remap:  "config/midi_remap.json",
			LEDMap: "config/midi_led_map.json",
		},
		Force:   ForceConf{URL: "http://192.168.4.200", Key: "LETMEIN", Timeout: Duration{400 * time.Millisecond}},
		Scripts: ScriptsConf{SafeShutdown: "scripts/safe_shutdown.sh"},
	}
}

// NewConfig конструктор.
func NewConfig(path string) (*Config, error) {
	// default values
	cfg := Default()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return &cfg, err
	}
	return &cfg, nil
}
