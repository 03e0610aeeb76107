package transform

import "errors"

var (
	// ErrUnknownTransform is returned when a transform name is not registered.
	ErrUnknownTransform = errors.New("unknown transform")

	// ErrEmptyImage is returned when a transform receives an image without pixel data.
	ErrEmptyImage = errors.New("image has no decoded pixels")
)
