package engine

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"math/rand/v2"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Chevalier11/asio2/metrics"
	"github.com/Chevalier11/asio2/transport"
)

// fakeTransport 由测试控制拨号结果的流式传输
type fakeTransport struct {
	mu     sync.Mutex
	dialed []string
	dial   func(ctx context.Context, ep string) (transport.Conn, error)
}

func newFake(dial func(ctx context.Context, ep string) (transport.Conn, error)) *fakeTransport {
	return &fakeTransport{dial: dial}
}

func (*fakeTransport) Name() string          { return "fake" }
func (*fakeTransport) Network() string       { return "tcp" }
func (*fakeTransport) MessageOriented() bool { return false }

func (f *fakeTransport) Dial(ctx context.Context, _ transport.Options, ep string) (transport.Conn, error) {
	f.mu.Lock()
	f.dialed = append(f.dialed, ep)
	f.mu.Unlock()
	return f.dial(ctx, ep)
}

func (*fakeTransport) Handshake(_ context.Context, conn transport.Conn, _, _ string) (transport.Conn, error) {
	return conn, nil
}

func (*fakeTransport) Listen(context.Context, string, transport.Options) (transport.Listener, error) {
	return nil, errors.New("fake: listen not supported")
}

func (f *fakeTransport) Dialed() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.dialed...)
}

// recordConn 记录每次写入，并检测写入是否重叠
type recordConn struct {
	net.Conn
	mu       sync.Mutex
	writes   []string
	inflight atomic.Int32
	overlap  atomic.Bool
	jitter   bool
}

func newRecordConn() *recordConn {
	a, _ := net.Pipe()
	return &recordConn{Conn: a}
}

func (r *recordConn) Write(p []byte) (int, error) {
	if r.inflight.Add(1) > 1 {
		r.overlap.Store(true)
	}
	if r.jitter {
		time.Sleep(time.Duration(rand.IntN(200)) * time.Microsecond)
	}
	r.mu.Lock()
	r.writes = append(r.writes, string(p))
	r.mu.Unlock()
	r.inflight.Add(-1)
	return len(p), nil
}

func (r *recordConn) Writes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.writes...)
}

// blockConn 写入阻塞直到 release 关闭
type blockConn struct {
	net.Conn
	release chan struct{}
}

func (b *blockConn) Write(p []byte) (int, error) {
	<-b.release
	return len(p), nil
}

func fixedResolver(eps ...string) transport.Resolver {
	return transport.ResolverFunc(func(context.Context, string, string, string) ([]string, error) {
		return eps, nil
	})
}

// newTestClient 创建使用独立指标收集器的客户端，测试结束时停止
func newTestClient(t *testing.T, tr transport.Transport, opts ...Option) (*Client, *metrics.Collector) {
	t.Helper()
	m := metrics.NewCollector()
	cl, err := NewClient(tr, append([]Option{WithMetrics(m)}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(cl.Stop)
	return cl, m
}

// startServer 在回环地址的随机端口启动服务端
func startServer(t *testing.T, tr transport.Transport, opts []Option, args ...any) (*Server, *metrics.Collector) {
	t.Helper()
	m := metrics.NewCollector()
	srv, err := NewServer(tr, append([]Option{WithMetrics(m)}, opts...)...)
	require.NoError(t, err)
	require.NoError(t, srv.Start("127.0.0.1", "0", args...))
	t.Cleanup(func() { srv.Stop() })
	return srv, m
}

func echoOpts() []Option {
	return []Option{WithOnRecv(func(c *Conn, msg []byte) { c.AsyncSend(msg) })}
}

func splitAddr(t *testing.T, addr net.Addr) (string, string) {
	t.Helper()
	require.NotNil(t, addr)
	host, port, err := net.SplitHostPort(addr.String())
	require.NoError(t, err)
	return host, port
}

func recvChan(n int) (chan string, Option) {
	ch := make(chan string, n)
	return ch, WithOnRecv(func(_ *Conn, msg []byte) { ch <- string(msg) })
}

func expectRecv(t *testing.T, ch <-chan string, want string) {
	t.Helper()
	select {
	case got := <-ch:
		require.Equal(t, want, got)
	case <-time.After(3 * time.Second):
		t.Fatalf("等待消息 %q 超时", want)
	}
}

// startSocks5Proxy 无认证的最小 SOCKS5 代理，只支持 CONNECT
func startSocks5Proxy(t *testing.T) (string, string) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			go serveSocks5(c)
		}
	}()
	return splitAddr(t, ln.Addr())
}

func serveSocks5(c net.Conn) {
	defer c.Close()
	buf := make([]byte, 262)
	if _, err := io.ReadFull(c, buf[:2]); err != nil {
		return
	}
	if _, err := io.ReadFull(c, buf[:buf[1]]); err != nil {
		return
	}
	if _, err := c.Write([]byte{5, 0}); err != nil {
		return
	}
	if _, err := io.ReadFull(c, buf[:4]); err != nil {
		return
	}
	var host string
	switch buf[3] {
	case 1:
		if _, err := io.ReadFull(c, buf[:4]); err != nil {
			return
		}
		host = net.IP(buf[:4]).String()
	case 3:
		if _, err := io.ReadFull(c, buf[:1]); err != nil {
			return
		}
		n := int(buf[0])
		if _, err := io.ReadFull(c, buf[:n]); err != nil {
			return
		}
		host = string(buf[:n])
	case 4:
		if _, err := io.ReadFull(c, buf[:16]); err != nil {
			return
		}
		host = net.IP(buf[:16]).String()
	default:
		return
	}
	if _, err := io.ReadFull(c, buf[:2]); err != nil {
		return
	}
	port := binary.BigEndian.Uint16(buf[:2])
	target, err := net.Dial("tcp", net.JoinHostPort(host, strconv.Itoa(int(port))))
	if err != nil {
		c.Write([]byte{5, 5, 0, 1, 0, 0, 0, 0, 0, 0})
		return
	}
	defer target.Close()
	if _, err := c.Write([]byte{5, 0, 0, 1, 0, 0, 0, 0, 0, 0}); err != nil {
		return
	}
	go io.Copy(target, c)
	io.Copy(c, target)
}

var errWrite = errors.New("write failed")

type errConn struct {
	net.Conn
}

func (*errConn) Write([]byte) (int, error) {
	return 0, errWrite
}
