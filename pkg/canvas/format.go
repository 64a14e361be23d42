package canvas

import (
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// Format is raster encoding handled by backends
type Format int

const (
	// UNKNOWN format
	UNKNOWN Format = iota
	// JPEG format
	JPEG
	// PNG format
	PNG
	// GIF format
	GIF
)

var formatNames = map[string]Format{
	"jpg":  JPEG,
	"jpeg": JPEG,
	"png":  PNG,
	"gif":  GIF,
}

// ParseFormat returns Format for given name or file extension (case-insensitive, optional leading dot)
func ParseFormat(name string) (Format, error) {
	name = strings.ToLower(strings.TrimPrefix(name, "."))
	if f, ok := formatNames[name]; ok {
		return f, nil
	}

	return UNKNOWN, errors.Wrapf(ErrUnsupportedFormat, "%q", name)
}

// FormatFromPath returns Format based on file extension
func FormatFromPath(path string) (Format, error) {
	ext := filepath.Ext(path)
	if ext == "" {
		return UNKNOWN, errors.Wrapf(ErrUnsupportedFormat, "no extension in %s", path)
	}

	return ParseFormat(ext)
}

func (f Format) String() string {
	switch f {
	case JPEG:
		return "jpeg"
	case PNG:
		return "png"
	case GIF:
		return "gif"
	default:
		return "unknown"
	}
}

// ContentType returns mime type of format
func (f Format) ContentType() string {
	if f == UNKNOWN {
		return "application/octet-stream"
	}

	return "image/" + f.String()
}
