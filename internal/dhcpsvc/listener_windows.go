//go:build windows

package dhcpsvc

import "syscall"

// controlSetReuseBroadcast is a no-op on windows; this package's test and
// deployment targets are unix, matching the teacher's own
// v4_unix.go/v4_windows.go split.
func controlSetReuseBroadcast(_, _ string, _ syscall.RawConn) error {
	return nil
}
