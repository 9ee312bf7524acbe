// Package socks5 提供 SOCKS5 代理能力选项以及在已连接套接字上的隧道协商
package socks5

import (
	"context"
	"errors"
	"fmt"
	"net"

	"golang.org/x/net/proxy"

	"github.com/Chevalier11/asio2/attempt"
)

// ErrUnsupported 请求了未实现的命令或网络类型
var ErrUnsupported = errors.New("socks5: unsupported")

// Command SOCKS5 请求命令
type Command uint8

const (
	CmdConnect      Command = 0x01
	CmdBind         Command = 0x02
	CmdUDPAssociate Command = 0x03
)

func (c Command) String() string {
	switch c {
	case CmdConnect:
		return "connect"
	case CmdBind:
		return "bind"
	case CmdUDPAssociate:
		return "udp-associate"
	}
	return fmt.Sprintf("command(%d)", uint8(c))
}

// Method 认证方式
type Method uint8

const (
	MethodAnonymous Method = 0x00
	MethodPassword  Method = 0x02
)

// Option 代理规格，作为能力选项传给 Start
// 存在该选项时连接协议解析代理地址而不是目标地址
type Option struct {
	Host     string
	Port     string
	Username string
	Password string
	// Command 为零值时使用 CmdConnect
	Command Command
}

// Tag 实现 attempt.Capability
func (Option) Tag() attempt.Tag { return attempt.TagProxy }

// Addr 返回代理地址 "host:port"
func (o Option) Addr() string {
	return net.JoinHostPort(o.Host, o.Port)
}

// Cmd 返回生效的命令
func (o Option) Cmd() Command {
	if o.Command == 0 {
		return CmdConnect
	}
	return o.Command
}

// Methods 返回协商时提供的认证方式
func (o Option) Methods() []Method {
	if o.Username != "" {
		return []Method{MethodAnonymous, MethodPassword}
	}
	return []Method{MethodAnonymous}
}

// Negotiate 在已连接到代理的 conn 上协商到 targetHost:targetPort 的隧道
// 协商失败时 conn 会被关闭
func Negotiate(ctx context.Context, conn net.Conn, network string, opt Option, targetHost, targetPort string) (net.Conn, error) {
	switch network {
	case "tcp", "tcp4", "tcp6":
	default:
		return nil, fmt.Errorf("%w: network %q", ErrUnsupported, network)
	}
	if cmd := opt.Cmd(); cmd != CmdConnect {
		return nil, fmt.Errorf("%w: command %s", ErrUnsupported, cmd)
	}

	var auth *proxy.Auth
	if opt.Username != "" {
		auth = &proxy.Auth{User: opt.Username, Password: opt.Password}
	}
	d, err := proxy.SOCKS5("tcp", opt.Addr(), auth, &connDialer{conn: conn})
	if err != nil {
		return nil, err
	}
	cd, ok := d.(proxy.ContextDialer)
	if !ok {
		return nil, fmt.Errorf("%w: dialer without context support", ErrUnsupported)
	}
	return cd.DialContext(ctx, "tcp", net.JoinHostPort(targetHost, targetPort))
}

// connDialer 把已经建立的代理连接交给 proxy 包，只能使用一次
type connDialer struct {
	conn net.Conn
}

func (d *connDialer) Dial(network, addr string) (net.Conn, error) {
	return d.DialContext(context.Background(), network, addr)
}

func (d *connDialer) DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	if d.conn == nil {
		return nil, errors.New("socks5: proxy connection already used")
	}
	c := d.conn
	d.conn = nil
	return c, nil
}
