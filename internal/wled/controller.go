package wled

import (
	"lightrig/internal/color"
	"lightrig/internal/logger"
)

// Strip names.
const (
	Guirlande = "guirlande"
	TubeLeft  = "tube_L"
	TubeRight = "tube_R"
)

// Controller maps logical strip names and effect names onto WLED posts.
type Controller struct {
	poster    Poster
	endpoints map[string]string
	effects   map[string]int
	log       *logger.Log
}

// NewController returns a controller posting through p. endpoints maps strip
// names to URLs; effects maps effect names to WLED effect ids.
func NewController(log logger.Logger, p Poster, endpoints map[string]string, effects map[string]int) *Controller {
	return &Controller{
		poster:    p,
		endpoints: endpoints,
		effects:   effects,
		log:       log.Module("wled"),
	}
}

// Set posts a state to the strip which. Strips without an endpoint are
// skipped; unknown effects fall back to id 0.
func (c *Controller) Set(which string, on bool, fx string, speed, intensity int, hex string) {
	url := c.endpoints[which]
	if url == "" {
		return
	}
	rgb, err := color.ParseHex(hex)
	if err != nil {
		c.log.Warnf("%s: color %q: %v", which, hex, err)
		return
	}
	c.poster.PostEffect(url, BuildPayload(on, c.effects[fx], speed, intensity, rgb))
}

// BuildPayload builds a single-segment payload.
func BuildPayload(on bool, fxID, speed, intensity int, rgb color.RGB) Payload {
	return Payload{
		On:  on,
		Bri: max(1, intensity),
		Seg: []Segment{{
			FX:  fxID,
			SX:  speed,
			IX:  intensity,
			Col: [][3]int{{int(rgb.R), int(rgb.G), int(rgb.B)}},
			Pal: 0,
		}},
	}
}
