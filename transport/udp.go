package transport

import (
	"context"
)

// UDP 面向消息的数据报传输
// 客户端使用已连接的 UDP 套接字；服务端通过 UDPMux 按远端地址生成会话
type UDP struct {
	// Backlog 每个会话的接收队列长度
	Backlog int
}

// NewUDP 创建 UDP 传输
func NewUDP() *UDP { return &UDP{Backlog: 128} }

func (*UDP) Name() string          { return "udp" }
func (*UDP) Network() string       { return "udp" }
func (*UDP) MessageOriented() bool { return true }

// Dial 创建连接到端点的 UDP 套接字
func (*UDP) Dial(ctx context.Context, opts Options, endpoint string) (Conn, error) {
	d, err := DialConfig("udp", opts)
	if err != nil {
		return nil, err
	}
	return d.DialContext(ctx, "udp", endpoint)
}

// Handshake UDP 无传输层握手
func (*UDP) Handshake(ctx context.Context, conn Conn, host, port string) (Conn, error) {
	return conn, nil
}

// Listen 在 addr 上监听并启动复用器
func (u *UDP) Listen(ctx context.Context, addr string, opts Options) (Listener, error) {
	pc, err := ListenConfig(opts).ListenPacket(ctx, "udp", addr)
	if err != nil {
		return nil, err
	}
	mux := NewUDPMux(pc, u.Backlog)
	mux.Start()
	return mux, nil
}
