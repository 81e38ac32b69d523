package scene

import "errors"

var (
	ErrNotFound         = errors.New("sticker not found")
	ErrLocked           = errors.New("sticker is locked")
	ErrCapacityExceeded = errors.New("sticker capacity exceeded")
	ErrInvalidSticker   = errors.New("invalid sticker")
	ErrInvalidTransform = errors.New("invalid transform")
	ErrDuplicateID      = errors.New("duplicate sticker id")
	ErrInvalidCanvas    = errors.New("invalid canvas")
	ErrInvalidState     = errors.New("invalid scene state")
	ErrInvalidDirection = errors.New("invalid reorder direction")
)
