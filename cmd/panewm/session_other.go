//go:build !linux

package main

import "github.com/1broseidon/panewm/internal/platform"

func openSession() (*desktopSession, error) {
	return nil, platform.ErrUnsupported
}
