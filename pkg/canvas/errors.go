package canvas

import (
	"github.com/aldor007/easel/pkg/monitoring"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

var (
	// ErrNotFound is returned by Load when source path doesn't exist
	ErrNotFound = errors.New("image not found")
	// ErrDecode is returned when image format is unsupported or backend was unable to decode it
	ErrDecode = errors.New("unable to decode image")
	// ErrInvalidHandle is returned for operations on canvas without raster (e.g. after Destroy)
	ErrInvalidHandle = errors.New("canvas has no raster")
	// ErrInvalidRatio is returned when merge ratio is not positive
	ErrInvalidRatio = errors.New("ratio must be positive")
	// ErrInvalidDimensions is returned when requested width or height is not positive
	ErrInvalidDimensions = errors.New("dimensions must be positive")
	// ErrUnsupportedFormat is returned for unknown image format names
	ErrUnsupportedFormat = errors.New("unsupported image format")
)

// BackendError is failure reported by Backend. It is propagated without any retry
type BackendError struct {
	Op  string // backend operation name e.g. "resample"
	Err error  // error returned by backend
}

func (e *BackendError) Error() string {
	return "backend " + e.Op + ": " + e.Err.Error()
}

// Unwrap returns backend error
func (e *BackendError) Unwrap() error {
	return e.Err
}

// Cause returns backend error, compatible with errors.Cause
func (e *BackendError) Cause() error {
	return e.Err
}

func backendError(op string, err error) error {
	if err == nil {
		return nil
	}

	monitoring.Log().Warn("Canvas backend failure", zap.String("op", op), zap.Error(err))
	return &BackendError{Op: op, Err: err}
}
