// Package transport 定义连接引擎消费的套接字原语，并提供
// TCP、UDP、KCP 与 WebSocket 四种实现（拨号与监听两侧）。
package transport

import (
	"context"
	"net"
	"time"
)

// Transport 套接字原语
// 引擎按 Dial → (代理协商) → Handshake 的顺序使用它建立连接
type Transport interface {
	// Name 返回传输名称 (e.g. "tcp", "ws")
	Name() string
	// Network 返回底层网络类型，用于地址解析与代理兼容性判断
	Network() string
	// MessageOriented 为 true 时每次读取即一条完整消息，不经过帧匹配
	MessageOriented() bool
	// Dial 连接到已解析的端点 "ip:port"
	Dial(ctx context.Context, opts Options, endpoint string) (Conn, error)
	// Handshake 在已连接（可能经过代理隧道）的套接字上完成传输层握手，
	// 例如 WebSocket 升级；无需握手的传输原样返回 conn
	Handshake(ctx context.Context, conn Conn, host, port string) (Conn, error)
	// Listen 在本地地址上监听
	Listen(ctx context.Context, addr string, opts Options) (Listener, error)
}

// Listener is a generic network listener
type Listener interface {
	// Accept waits for and returns the next connection to the listener.
	Accept() (Conn, error)
	// Close closes the listener.
	Close() error
	// Addr returns the listener's network address.
	Addr() net.Addr
}

// Conn is a generic network connection
type Conn interface {
	net.Conn
}

// MessageReader 由能够整条读取消息的连接实现（例如 WebSocket）
// 引擎优先使用它，避免大消息被读缓冲区截断
type MessageReader interface {
	ReadMessage() ([]byte, error)
}

// Options 套接字选项
type Options struct {
	// LocalAddr 拨号前绑定的本地地址 "ip:port"，为空则由系统选择
	LocalAddr string
	// ReuseAddr 设置 SO_REUSEADDR
	ReuseAddr bool
	// KeepAlive 启用 TCP keep-alive
	KeepAlive bool
	// KeepAlivePeriod keep-alive 探测间隔，0 使用系统默认
	KeepAlivePeriod time.Duration
}

// netListener 将 net.Listener 适配为 Listener
type netListener struct {
	net.Listener
}

func (l netListener) Accept() (Conn, error) {
	return l.Listener.Accept()
}
