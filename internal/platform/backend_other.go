//go:build !linux

package platform

import "errors"

// ErrUnsupported is returned on platforms without a window backend.
var ErrUnsupported = errors.New("window backend not supported on this platform")
