package transport

import (
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Chevalier11/asio2/internal/pool"
)

// Packet 表示一个接收到的 UDP 数据包
type Packet struct {
	Data []byte
	Addr net.Addr
}

// UDPMux 实现 UDP 端口复用
// 它将单个 UDP 套接字按远端地址拆分为多个虚拟连接：来自新地址的第一个
// 数据包创建一个 VirtualConn 并通过 Accept 交给服务端，之后同一地址的
// 数据包都投递到该连接
type UDPMux struct {
	conn    net.PacketConn
	peers   sync.Map // map[string]*VirtualConn
	accept  chan *VirtualConn
	closed  chan struct{}
	once    sync.Once
	wg      sync.WaitGroup
	backlog int
}

// NewUDPMux 创建一个新的 UDP 复用器
// backlog 为每个虚拟连接的接收队列长度，同时也是待 Accept 的连接上限
func NewUDPMux(conn net.PacketConn, backlog int) *UDPMux {
	if backlog <= 0 {
		backlog = 128
	}
	return &UDPMux{
		conn:    conn,
		accept:  make(chan *VirtualConn, backlog),
		closed:  make(chan struct{}),
		backlog: backlog,
	}
}

// Start 启动读取循环
func (m *UDPMux) Start() {
	m.wg.Add(1)
	go m.readLoop()
}

// readLoop 读取 UDP 数据包并分发
func (m *UDPMux) readLoop() {
	defer m.wg.Done()

	buf := pool.GetLargeBuffer()
	defer pool.PutLargeBuffer(buf)

	for {
		n, addr, err := m.conn.ReadFrom(*buf)
		if err != nil {
			select {
			case <-m.closed:
				return
			default:
			}
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			// 套接字已失效，关闭所有虚拟连接
			m.Close()
			return
		}

		data := make([]byte, n)
		copy(data, (*buf)[:n])
		m.dispatch(Packet{Data: data, Addr: addr})
	}
}

func (m *UDPMux) dispatch(packet Packet) {
	key := packet.Addr.String()
	if val, ok := m.peers.Load(key); ok {
		val.(*VirtualConn).deliver(packet)
		return
	}

	v := newVirtualConn(m, packet.Addr, m.backlog)
	m.peers.Store(key, v)
	select {
	case m.accept <- v:
		v.deliver(packet)
	default:
		// 待接受队列已满，丢弃
		m.peers.CompareAndDelete(key, v)
	}
}

// Accept 等待来自新远端地址的虚拟连接
func (m *UDPMux) Accept() (Conn, error) {
	select {
	case v := <-m.accept:
		return v, nil
	case <-m.closed:
		return nil, net.ErrClosed
	}
}

// Close 关闭复用器
func (m *UDPMux) Close() error {
	var err error
	m.once.Do(func() {
		close(m.closed)
		err = m.conn.Close()
		m.peers.Range(func(key, value interface{}) bool {
			value.(*VirtualConn).safeClose()
			return true
		})
	})
	return err
}

// Wait 等待读取循环退出
func (m *UDPMux) Wait() {
	m.wg.Wait()
}

// Addr 返回本地地址
func (m *UDPMux) Addr() net.Addr {
	return m.conn.LocalAddr()
}

// PeerCount 返回当前活跃的虚拟连接数
func (m *UDPMux) PeerCount() int {
	n := 0
	m.peers.Range(func(key, value interface{}) bool {
		n++
		return true
	})
	return n
}

// VirtualConn 复用器上的单个远端会话，实现 net.Conn 接口
type VirtualConn struct {
	mux      *UDPMux
	raddr    net.Addr
	readChan chan Packet
	done     chan struct{}
	deadline atomic.Int64 // UnixNano，0 表示无超时
	once     sync.Once
}

func newVirtualConn(mux *UDPMux, raddr net.Addr, bufferSize int) *VirtualConn {
	return &VirtualConn{
		mux:      mux,
		raddr:    raddr,
		readChan: make(chan Packet, bufferSize),
		done:     make(chan struct{}),
	}
}

func (v *VirtualConn) deliver(packet Packet) {
	select {
	case v.readChan <- packet:
	case <-v.done:
	default:
		// 缓冲区满，丢弃
	}
}

// safeClose 安全关闭
func (v *VirtualConn) safeClose() {
	v.once.Do(func() {
		close(v.done)
	})
}

// Read 读取一个完整数据报，p 不足时截断
// 关闭后即使缓冲区仍有数据也返回 net.ErrClosed
func (v *VirtualConn) Read(p []byte) (int, error) {
	select {
	case <-v.done:
		return 0, net.ErrClosed
	case <-v.mux.closed:
		return 0, net.ErrClosed
	default:
	}
	var timeout <-chan time.Time
	if d := v.deadline.Load(); d != 0 {
		wait := time.Until(time.Unix(0, d))
		if wait <= 0 {
			return 0, os.ErrDeadlineExceeded
		}
		t := time.NewTimer(wait)
		defer t.Stop()
		timeout = t.C
	}

	select {
	case packet := <-v.readChan:
		return copy(p, packet.Data), nil
	case <-timeout:
		return 0, os.ErrDeadlineExceeded
	case <-v.done:
		return 0, net.ErrClosed
	case <-v.mux.closed:
		return 0, net.ErrClosed
	}
}

// Write 直接写入底层的 UDP 套接字
func (v *VirtualConn) Write(p []byte) (int, error) {
	select {
	case <-v.done:
		return 0, net.ErrClosed
	default:
	}
	return v.mux.conn.WriteTo(p, v.raddr)
}

// Close 注销该远端，底层套接字由 Mux 控制
func (v *VirtualConn) Close() error {
	v.safeClose()
	v.mux.peers.CompareAndDelete(v.raddr.String(), v)
	return nil
}

// LocalAddr 返回 Mux 的地址
func (v *VirtualConn) LocalAddr() net.Addr {
	return v.mux.Addr()
}

// RemoteAddr 返回远端地址
func (v *VirtualConn) RemoteAddr() net.Addr {
	return v.raddr
}

// SetDeadline 设置读超时，写操作不阻塞
func (v *VirtualConn) SetDeadline(t time.Time) error {
	return v.SetReadDeadline(t)
}

// SetReadDeadline 设置读超时
func (v *VirtualConn) SetReadDeadline(t time.Time) error {
	if t.IsZero() {
		v.deadline.Store(0)
	} else {
		v.deadline.Store(t.UnixNano())
	}
	return nil
}

// SetWriteDeadline 写操作直接调用底层 WriteTo，这里忽略
func (v *VirtualConn) SetWriteDeadline(t time.Time) error {
	return nil
}
