package transport

import (
	"context"
	"errors"
	"net"
	"net/netip"
)

// ErrNoAddress 解析结果为空
var ErrNoAddress = errors.New("transport: no address for host")

// Resolver 将 host/port 解析为有序的候选端点列表 "ip:port"
type Resolver interface {
	Resolve(ctx context.Context, network, host, port string) ([]string, error)
}

// ResolverFunc 将普通函数适配为 Resolver
type ResolverFunc func(ctx context.Context, network, host, port string) ([]string, error)

// Resolve 实现 Resolver
func (f ResolverFunc) Resolve(ctx context.Context, network, host, port string) ([]string, error) {
	return f(ctx, network, host, port)
}

// NetResolver 基于 net.Resolver 的解析器
// IP 字面量直接返回，不经过 DNS
type NetResolver struct {
	Resolver *net.Resolver
}

// DefaultResolver 使用 net.DefaultResolver
var DefaultResolver Resolver = NetResolver{}

// Resolve 实现 Resolver，结果保持解析器返回的顺序
func (r NetResolver) Resolve(ctx context.Context, network, host, port string) ([]string, error) {
	res := r.Resolver
	if res == nil {
		res = net.DefaultResolver
	}
	if host == "" {
		return nil, &net.DNSError{Err: "missing host", Name: host, IsNotFound: true}
	}
	p, err := res.LookupPort(ctx, network, port)
	if err != nil {
		return nil, err
	}
	if ip, err := netip.ParseAddr(host); err == nil {
		return []string{netip.AddrPortFrom(ip, uint16(p)).String()}, nil
	}
	ips, err := res.LookupNetIP(ctx, "ip", host)
	if err != nil {
		return nil, err
	}
	if len(ips) == 0 {
		return nil, ErrNoAddress
	}
	endpoints := make([]string, 0, len(ips))
	for _, ip := range ips {
		endpoints = append(endpoints, netip.AddrPortFrom(ip.Unmap(), uint16(p)).String())
	}
	return endpoints, nil
}
