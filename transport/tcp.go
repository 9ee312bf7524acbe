package transport

import (
	"context"
)

// TCP 流式传输
type TCP struct{}

// NewTCP 创建 TCP 传输
func NewTCP() *TCP { return &TCP{} }

func (*TCP) Name() string          { return "tcp" }
func (*TCP) Network() string       { return "tcp" }
func (*TCP) MessageOriented() bool { return false }

// Dial 连接到端点
func (*TCP) Dial(ctx context.Context, opts Options, endpoint string) (Conn, error) {
	d, err := DialConfig("tcp", opts)
	if err != nil {
		return nil, err
	}
	return d.DialContext(ctx, "tcp", endpoint)
}

// Handshake TCP 无传输层握手
func (*TCP) Handshake(ctx context.Context, conn Conn, host, port string) (Conn, error) {
	return conn, nil
}

// Listen 在 addr 上监听
func (*TCP) Listen(ctx context.Context, addr string, opts Options) (Listener, error) {
	ln, err := ListenConfig(opts).Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	return netListener{ln}, nil
}
