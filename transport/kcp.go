package transport

import (
	"context"
	"net"

	"github.com/xtaci/kcp-go/v5"
)

// KCPConfig KCP 配置参数
type KCPConfig struct {
	// NoDelay 模式: 0=关闭, 1=开启
	NoDelay int
	// Interval 内部更新间隔(ms)
	Interval int
	// Resend 快速重传触发次数，0=关闭
	Resend int
	// NC 拥塞控制：0=正常, 1=关闭
	NC int
	// SndWnd 发送窗口大小
	SndWnd int
	// RcvWnd 接收窗口大小
	RcvWnd int
	// MTU 最大传输单元
	MTU int
	// StreamMode 流模式，开启后消息边界由帧匹配器决定
	StreamMode bool
	// SocketBuffer 底层 UDP 套接字读写缓冲区大小，0 保持系统默认
	SocketBuffer int
}

// DefaultKCPConfig 返回平衡模式的 KCP 配置
func DefaultKCPConfig() *KCPConfig {
	return &KCPConfig{
		NoDelay:      0,    // 关闭 nodelay，节省带宽
		Interval:     30,   // 30ms 更新间隔
		Resend:       2,    // 2 次 ACK 后快速重传
		NC:           1,    // 关闭拥塞控制
		SndWnd:       64,   // 发送窗口
		RcvWnd:       64,   // 接收窗口
		MTU:          1350, // MTU（留余量给加密头）
		StreamMode:   true, // 流模式
		SocketBuffer: 4 * 1024 * 1024,
	}
}

// KCP 可靠数据报传输，不使用 FEC 与内置加密
type KCP struct {
	config *KCPConfig
}

// NewKCP 创建 KCP 传输，config 为 nil 时使用 DefaultKCPConfig
func NewKCP(config *KCPConfig) *KCP {
	if config == nil {
		config = DefaultKCPConfig()
	}
	return &KCP{config: config}
}

func (*KCP) Name() string    { return "kcp" }
func (*KCP) Network() string { return "udp" }

// MessageOriented 流模式下为 false
func (k *KCP) MessageOriented() bool { return !k.config.StreamMode }

// Config 返回当前配置
func (k *KCP) Config() *KCPConfig { return k.config }

// Dial 在一个未连接的 UDP 套接字上创建 KCP 会话
// KCP 通过 WriteTo 发送，已连接的 UDP 套接字不能使用 WriteTo
func (k *KCP) Dial(ctx context.Context, opts Options, endpoint string) (Conn, error) {
	laddr := opts.LocalAddr
	if laddr == "" {
		laddr = ":0"
	}
	pc, err := ListenConfig(opts).ListenPacket(ctx, "udp", laddr)
	if err != nil {
		return nil, err
	}
	k.applySocketBuffer(pc)

	session, err := kcp.NewConn(endpoint, nil, 0, 0, pc)
	if err != nil {
		pc.Close()
		return nil, err
	}
	k.configureSession(session)
	return &kcpConn{UDPSession: session, pconn: pc}, nil
}

// Handshake KCP 无传输层握手
func (*KCP) Handshake(ctx context.Context, conn Conn, host, port string) (Conn, error) {
	return conn, nil
}

// Listen 在 addr 上监听 KCP 会话
func (k *KCP) Listen(ctx context.Context, addr string, opts Options) (Listener, error) {
	pc, err := ListenConfig(opts).ListenPacket(ctx, "udp", addr)
	if err != nil {
		return nil, err
	}
	k.applySocketBuffer(pc)

	ln, err := kcp.ServeConn(nil, 0, 0, pc)
	if err != nil {
		pc.Close()
		return nil, err
	}
	return &kcpListener{ln: ln, pconn: pc, kcp: k}, nil
}

func (k *KCP) applySocketBuffer(pc net.PacketConn) {
	if k.config.SocketBuffer <= 0 {
		return
	}
	if uc, ok := pc.(*net.UDPConn); ok {
		uc.SetReadBuffer(k.config.SocketBuffer)
		uc.SetWriteBuffer(k.config.SocketBuffer)
	}
}

// configureSession 应用 KCP 配置到会话
func (k *KCP) configureSession(session *kcp.UDPSession) {
	cfg := k.config
	session.SetNoDelay(cfg.NoDelay, cfg.Interval, cfg.Resend, cfg.NC)
	session.SetWindowSize(cfg.SndWnd, cfg.RcvWnd)
	session.SetMtu(cfg.MTU)
	session.SetStreamMode(cfg.StreamMode)
}

// kcpConn 关闭会话时一并关闭拨号方独占的 UDP 套接字
type kcpConn struct {
	*kcp.UDPSession
	pconn net.PacketConn
}

func (c *kcpConn) Close() error {
	err := c.UDPSession.Close()
	c.pconn.Close()
	return err
}

type kcpListener struct {
	ln    *kcp.Listener
	pconn net.PacketConn
	kcp   *KCP
}

func (l *kcpListener) Accept() (Conn, error) {
	session, err := l.ln.AcceptKCP()
	if err != nil {
		return nil, err
	}
	l.kcp.configureSession(session)
	return session, nil
}

func (l *kcpListener) Close() error {
	err := l.ln.Close()
	l.pconn.Close()
	return err
}

func (l *kcpListener) Addr() net.Addr {
	return l.ln.Addr()
}
