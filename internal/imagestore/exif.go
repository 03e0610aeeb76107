package imagestore

import (
	"strconv"
	"strings"

	exif "github.com/dsoprea/go-exif/v3"
)

// exifTags lists the tags kept in model.Image.EXIF.
var exifTags = map[string]bool{
	"Orientation":      true,
	"Make":             true,
	"Model":            true,
	"Software":         true,
	"DateTime":         true,
	"DateTimeOriginal": true,
	"Artist":           true,
	"Copyright":        true,
	"PixelXDimension":  true,
	"PixelYDimension":  true,
}

// extractEXIF returns the kept EXIF tags and the orientation (0 when absent).
// Images without EXIF data yield a nil map.
func extractEXIF(data []byte) (map[string]string, int) {
	rawExif, err := exif.SearchAndExtractExif(data)
	if err != nil || rawExif == nil {
		return nil, 0
	}

	entries, _, err := exif.GetFlatExifData(rawExif, nil)
	if err != nil {
		return nil, 0
	}

	tags := make(map[string]string)
	orientation := 0
	for _, entry := range entries {
		if !exifTags[entry.TagName] {
			continue
		}
		if _, seen := tags[entry.TagName]; seen {
			continue // IFD0 wins over thumbnail IFDs
		}
		tags[entry.TagName] = entry.Formatted
		if entry.TagName == "Orientation" {
			orientation = parseOrientation(entry.Value, entry.Formatted)
		}
	}
	if len(tags) == 0 {
		return nil, 0
	}
	return tags, orientation
}

// parseOrientation reads the Orientation tag value. Values outside 1-8 are
// reported as 0.
func parseOrientation(value any, formatted string) int {
	n := 0
	switch v := value.(type) {
	case []uint16:
		if len(v) > 0 {
			n = int(v[0])
		}
	case uint16:
		n = int(v)
	default:
		s := strings.Trim(strings.TrimSpace(formatted), "[]")
		if fields := strings.Fields(s); len(fields) > 0 {
			n, _ = strconv.Atoi(fields[0]) //nolint:errcheck // invalid values map to 0
		}
	}
	if n < 1 || n > 8 {
		return 0
	}
	return n
}
