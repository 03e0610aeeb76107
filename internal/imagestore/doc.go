// Package imagestore acquires images by URL and stores transformed results.
//
// Downloaded images are cached on disk under a key derived from the image
// URL (hex SHA3-256), so an image is downloaded at most once across runs.
// Concurrent requests for the same URL within a process are collapsed into
// one download.
//
// Layout below the store directory:
//
//	raw/<key[:2]>/<key>               original bytes as downloaded
//	<transform>/<key[:2]>/<key>.png   transformed image
package imagestore
