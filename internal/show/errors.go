package show

import "errors"

var (
	ErrUnknownCommand = errors.New("show: unknown command")
	ErrUnknownControl = errors.New("show: unknown control")
	ErrUnknownPreset  = errors.New("show: unknown preset")
	ErrUnknownTarget  = errors.New("show: unknown effect target")
	ErrInvalidMode    = errors.New("show: invalid mode")
	ErrInvalidColor   = errors.New("show: invalid color")
	ErrMissingName    = errors.New("show: name required")
	ErrNoScript       = errors.New("show: no shutdown script configured")
)
