//go:build linux

package svc

import (
	"net"

	"golang.org/x/sys/unix"
)

type peerCred struct {
	PID int32
	UID uint32
}

func peerCredentials(conn net.Conn) (peerCred, bool) {
	uc, ok := conn.(*net.UnixConn)
	if !ok {
		return peerCred{}, false
	}
	raw, err := uc.SyscallConn()
	if err != nil {
		return peerCred{}, false
	}
	var cred *unix.Ucred
	var credErr error
	if err := raw.Control(func(fd uintptr) {
		cred, credErr = unix.GetsockoptUcred(int(fd), unix.SOL_SOCKET, unix.SO_PEERCRED)
	}); err != nil || credErr != nil || cred == nil {
		return peerCred{}, false
	}
	return peerCred{PID: cred.Pid, UID: cred.Uid}, true
}
