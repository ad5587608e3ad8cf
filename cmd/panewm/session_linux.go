//go:build linux

package main

import (
	"github.com/1broseidon/panewm/internal/hotkeys"
	"github.com/1broseidon/panewm/internal/platform"
)

// openSession connects to the X server named by $DISPLAY.
func openSession() (*desktopSession, error) {
	backend, err := platform.NewLinuxBackendFromDisplay()
	if err != nil {
		return nil, err
	}
	return &desktopSession{
		Backend: backend,
		Events:  backend,
		Grabber: hotkeys.NewX11Grabber(backend.XUtil(), backend.RootWindow()),
		Loop:    backend.EventLoop,
		Stop:    backend.StopEventLoop,
		Close:   backend.Disconnect,
	}, nil
}
