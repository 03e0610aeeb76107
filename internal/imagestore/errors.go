package imagestore

import "errors"

var (
	// ErrImageTooLarge is returned when an image exceeds the configured size limit.
	ErrImageTooLarge = errors.New("image too large")

	// ErrUnsupportedFormat is returned when image bytes cannot be decoded.
	ErrUnsupportedFormat = errors.New("unsupported image format")

	// ErrDownload is returned when the server answers with an error status.
	ErrDownload = errors.New("image download failed")
)
