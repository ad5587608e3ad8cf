package main

import (
	"github.com/1broseidon/panewm/internal/hotkeys"
	"github.com/1broseidon/panewm/internal/platform"
)

// desktopSession is the window-system connection a long-lived process runs
// on. Loop blocks dispatching window-system events until Stop.
type desktopSession struct {
	Backend platform.Backend
	Events  platform.EventSource
	Grabber hotkeys.Grabber
	Loop    func()
	Stop    func()
	Close   func()
}
