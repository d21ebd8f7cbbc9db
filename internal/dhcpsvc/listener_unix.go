//go:build !windows

package dhcpsvc

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// controlSetReuseBroadcast is a net.ListenConfig.Control callback that sets
// SO_REUSEADDR and SO_BROADCAST on the raw socket before bind, matching
// spec.md §4.2's "Binds a non-blocking UDP socket with SO_REUSEADDR and
// SO_BROADCAST". net.ListenUDP alone sets neither.
func controlSetReuseBroadcast(_, _ string, c syscall.RawConn) error {
	var sockErr error
	err := c.Control(func(fd uintptr) {
		if sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); sockErr != nil {
			return
		}

		sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_BROADCAST, 1)
	})
	if err != nil {
		return err
	}

	return sockErr
}
