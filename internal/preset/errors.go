package preset

import "errors"

// Lookup errors. Callers check them with errors.Is.
var (
	ErrSceneNotFound      = errors.New("preset: scene not found")
	ErrPresetNotFound     = errors.New("preset: group preset not found")
	ErrUnknownTarget      = errors.New("preset: unknown band target")
	ErrBandPresetNotFound = errors.New("preset: band preset not saved")
	ErrEmptyName          = errors.New("preset: empty name")
)
