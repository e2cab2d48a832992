package catalog

import (
	"encoding/json"
	"fmt"
	"math"

	"gopkg.in/yaml.v3"
)

// HexKey is the value-map key carrying a color request.
const HexKey = "hex"

// Values is a value map for one fixture: direct channel values plus an
// optional color request. On the wire it is a flat object, e.g.
// {"hex": "#FF0000", "dim": 255}.
type Values struct {
	Hex      string
	Channels map[string]int
}

// ChannelValues builds a Values without a color request.
func ChannelValues(ch map[string]int) Values {
	return Values{Channels: ch}
}

// Empty reports whether v carries nothing to write.
func (v Values) Empty() bool {
	return v.Hex == "" && len(v.Channels) == 0
}

// MarshalJSON implements json.Marshaler.
func (v Values) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(v.Channels)+1)
	for k, val := range v.Channels {
		m[k] = val
	}
	if v.Hex != "" {
		m[HexKey] = v.Hex
	}
	return json.Marshal(m)
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *Values) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidValues, err)
	}
	out, err := valuesFromMap(raw)
	if err != nil {
		return err
	}
	*v = out
	return nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (v *Values) UnmarshalYAML(node *yaml.Node) error {
	var raw map[string]any
	if err := node.Decode(&raw); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidValues, err)
	}
	out, err := valuesFromMap(raw)
	if err != nil {
		return err
	}
	*v = out
	return nil
}

func valuesFromMap(raw map[string]any) (Values, error) {
	out := Values{Channels: make(map[string]int, len(raw))}
	for k, val := range raw {
		if k == HexKey {
			s, ok := val.(string)
			if !ok {
				return Values{}, fmt.Errorf("%w: hex must be a string", ErrInvalidValues)
			}
			out.Hex = s
			continue
		}
		n, ok := toInt(val)
		if !ok {
			return Values{}, fmt.Errorf("%w: channel %q has non-numeric value %v", ErrInvalidValues, k, val)
		}
		out.Channels[k] = n
	}
	return out, nil
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case uint64:
		return int(n), true
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return 0, false
		}
		return int(n), true
	default:
		return 0, false
	}
}
