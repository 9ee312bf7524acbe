package transport

import (
	"fmt"
	"net"
)

// ListenConfig 根据套接字选项构造 net.ListenConfig
func ListenConfig(opts Options) *net.ListenConfig {
	lc := &net.ListenConfig{}
	if opts.ReuseAddr {
		lc.Control = reuseAddrControl
	}
	lc.KeepAliveConfig = keepAliveConfig(opts)
	if !opts.KeepAlive {
		lc.KeepAlive = -1
	}
	return lc
}

// DialConfig 根据套接字选项构造 net.Dialer
// network 决定 LocalAddr 的解析方式 ("tcp" 或 "udp")
func DialConfig(network string, opts Options) (*net.Dialer, error) {
	d := &net.Dialer{}
	if opts.ReuseAddr {
		d.Control = reuseAddrControl
	}
	d.KeepAliveConfig = keepAliveConfig(opts)
	if !opts.KeepAlive {
		d.KeepAlive = -1
	}
	if opts.LocalAddr != "" {
		laddr, err := resolveLocal(network, opts.LocalAddr)
		if err != nil {
			return nil, err
		}
		d.LocalAddr = laddr
	}
	return d, nil
}

func keepAliveConfig(opts Options) net.KeepAliveConfig {
	if !opts.KeepAlive {
		return net.KeepAliveConfig{Enable: false}
	}
	return net.KeepAliveConfig{
		Enable:   true,
		Idle:     opts.KeepAlivePeriod,
		Interval: opts.KeepAlivePeriod,
	}
}

func resolveLocal(network, addr string) (net.Addr, error) {
	switch network {
	case "tcp", "tcp4", "tcp6":
		return net.ResolveTCPAddr(network, addr)
	case "udp", "udp4", "udp6":
		return net.ResolveUDPAddr(network, addr)
	}
	return nil, fmt.Errorf("transport: unsupported network %q for local address", network)
}
