//go:build !unix && !windows

package transport

import "syscall"

// reuseAddrControl 在不支持的平台上不做任何事
func reuseAddrControl(network, address string, c syscall.RawConn) error {
	return nil
}
