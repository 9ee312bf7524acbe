package transport

import (
	"bytes"
	"context"
	"io"
	"net"
	"strings"
	"testing"
	"time"
)

func TestListenConfig(t *testing.T) {
	lc := ListenConfig(Options{ReuseAddr: true})
	if lc == nil {
		t.Fatal("ListenConfig 返回 nil")
	}
	if lc.Control == nil {
		t.Error("ReuseAddr 时 Control 函数应该被设置")
	}
	if ListenConfig(Options{}).Control != nil {
		t.Error("未启用 ReuseAddr 时不应设置 Control")
	}
}

func TestDialConfig(t *testing.T) {
	dc, err := DialConfig("tcp", Options{LocalAddr: "127.0.0.1:0", ReuseAddr: true, KeepAlive: true, KeepAlivePeriod: time.Second})
	if err != nil {
		t.Fatalf("DialConfig 失败: %v", err)
	}
	if _, ok := dc.LocalAddr.(*net.TCPAddr); !ok {
		t.Errorf("LocalAddr 类型应为 *net.TCPAddr，实际 %T", dc.LocalAddr)
	}
	if dc.Control == nil {
		t.Error("Control 函数应该被设置")
	}
	if !dc.KeepAliveConfig.Enable || dc.KeepAliveConfig.Idle != time.Second {
		t.Errorf("KeepAliveConfig 不正确: %+v", dc.KeepAliveConfig)
	}

	udc, err := DialConfig("udp", Options{LocalAddr: "127.0.0.1:0"})
	if err != nil {
		t.Fatalf("DialConfig(udp) 失败: %v", err)
	}
	if _, ok := udc.LocalAddr.(*net.UDPAddr); !ok {
		t.Errorf("LocalAddr 类型应为 *net.UDPAddr，实际 %T", udc.LocalAddr)
	}

	if _, err := DialConfig("unix", Options{LocalAddr: "x"}); err == nil {
		t.Error("不支持的网络类型应返回错误")
	}
}

func TestNetResolver(t *testing.T) {
	r := NetResolver{}
	ctx := context.Background()

	eps, err := r.Resolve(ctx, "tcp", "127.0.0.1", "8080")
	if err != nil {
		t.Fatalf("Resolve 失败: %v", err)
	}
	if len(eps) != 1 || eps[0] != "127.0.0.1:8080" {
		t.Errorf("IPv4 字面量解析结果不正确: %v", eps)
	}

	eps, err = r.Resolve(ctx, "tcp", "::1", "80")
	if err != nil || len(eps) != 1 || eps[0] != "[::1]:80" {
		t.Errorf("IPv6 字面量解析结果不正确: %v (%v)", eps, err)
	}

	eps, err = r.Resolve(ctx, "tcp", "localhost", "9")
	if err != nil {
		t.Fatalf("解析 localhost 失败: %v", err)
	}
	for _, ep := range eps {
		if !strings.HasSuffix(ep, ":9") {
			t.Errorf("端点端口不正确: %s", ep)
		}
	}

	if _, err := r.Resolve(ctx, "tcp", "", "80"); err == nil {
		t.Error("空主机应返回错误")
	}
	if _, err := r.Resolve(ctx, "tcp", "127.0.0.1", "no-such-service-xyz"); err == nil {
		t.Error("非法端口应返回错误")
	}
}

func TestResolverFunc(t *testing.T) {
	var r Resolver = ResolverFunc(func(ctx context.Context, network, host, port string) ([]string, error) {
		return []string{host + ":" + port}, nil
	})
	eps, _ := r.Resolve(context.Background(), "tcp", "a", "1")
	if len(eps) != 1 || eps[0] != "a:1" {
		t.Errorf("ResolverFunc 结果不正确: %v", eps)
	}
}

// echoServer 接受连接并原样回写，直到 Listener 关闭
func echoServer(ln Listener) {
	for {
		c, err := ln.Accept()
		if err != nil {
			return
		}
		go func() {
			defer c.Close()
			buf := make([]byte, 4096)
			for {
				n, err := c.Read(buf)
				if err != nil {
					return
				}
				if _, err := c.Write(buf[:n]); err != nil {
					return
				}
			}
		}()
	}
}

func roundTrip(t *testing.T, tr Transport) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ln, err := tr.Listen(ctx, "127.0.0.1:0", Options{ReuseAddr: true})
	if err != nil {
		t.Fatalf("%s Listen 失败: %v", tr.Name(), err)
	}
	defer ln.Close()
	go echoServer(ln)

	host, port, _ := net.SplitHostPort(ln.Addr().String())
	conn, err := tr.Dial(ctx, Options{}, ln.Addr().String())
	if err != nil {
		t.Fatalf("%s Dial 失败: %v", tr.Name(), err)
	}
	conn, err = tr.Handshake(ctx, conn, host, port)
	if err != nil {
		t.Fatalf("%s Handshake 失败: %v", tr.Name(), err)
	}
	defer conn.Close()

	msg := []byte("hello " + tr.Name())
	if _, err := conn.Write(msg); err != nil {
		t.Fatalf("%s Write 失败: %v", tr.Name(), err)
	}
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	got := make([]byte, len(msg))
	if _, err := io.ReadFull(conn, got); err != nil {
		t.Fatalf("%s Read 失败: %v", tr.Name(), err)
	}
	if !bytes.Equal(got, msg) {
		t.Errorf("%s 回显不一致: %q", tr.Name(), got)
	}
}

func TestTCPRoundTrip(t *testing.T) { roundTrip(t, NewTCP()) }
func TestUDPRoundTrip(t *testing.T) { roundTrip(t, NewUDP()) }
func TestKCPRoundTrip(t *testing.T) { roundTrip(t, NewKCP(nil)) }
func TestWSRoundTrip(t *testing.T)  { roundTrip(t, NewWS()) }

func TestTransportProperties(t *testing.T) {
	tests := []struct {
		tr      Transport
		network string
		message bool
	}{
		{NewTCP(), "tcp", false},
		{NewUDP(), "udp", true},
		{NewKCP(nil), "udp", false},
		{NewKCP(&KCPConfig{StreamMode: false}), "udp", true},
		{NewWS(), "tcp", true},
	}
	for _, tt := range tests {
		if tt.tr.Network() != tt.network {
			t.Errorf("%s Network 期望 %s，实际 %s", tt.tr.Name(), tt.network, tt.tr.Network())
		}
		if tt.tr.MessageOriented() != tt.message {
			t.Errorf("%s MessageOriented 期望 %v", tt.tr.Name(), tt.message)
		}
	}
}

func TestWSReadMessage(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	tr := NewWS()
	tr.Path = "/chat"
	ln, err := tr.Listen(ctx, "127.0.0.1:0", Options{})
	if err != nil {
		t.Fatalf("Listen 失败: %v", err)
	}
	defer ln.Close()

	accepted := make(chan Conn, 1)
	go func() {
		c, err := ln.Accept()
		if err == nil {
			accepted <- c
		}
	}()

	host, port, _ := net.SplitHostPort(ln.Addr().String())
	raw, err := tr.Dial(ctx, Options{}, ln.Addr().String())
	if err != nil {
		t.Fatalf("Dial 失败: %v", err)
	}
	client, err := tr.Handshake(ctx, raw, host, port)
	if err != nil {
		t.Fatalf("Handshake 失败: %v", err)
	}
	defer client.Close()

	var server Conn
	select {
	case server = <-accepted:
	case <-time.After(3 * time.Second):
		t.Fatal("服务端未接受连接")
	}
	defer server.Close()

	big := bytes.Repeat([]byte("m"), 100000)
	client.Write([]byte("first"))
	client.Write(big)

	mr, ok := server.(MessageReader)
	if !ok {
		t.Fatal("WebSocket 连接应实现 MessageReader")
	}
	m1, err := mr.ReadMessage()
	if err != nil || string(m1) != "first" {
		t.Fatalf("第一条消息期望 first，实际 %q (%v)", m1, err)
	}
	m2, err := mr.ReadMessage()
	if err != nil || len(m2) != len(big) {
		t.Fatalf("大消息应整条读取，实际长度 %d (%v)", len(m2), err)
	}
}

func TestWSWrongPathFails(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	srv := NewWS()
	srv.Path = "/only"
	ln, err := srv.Listen(ctx, "127.0.0.1:0", Options{})
	if err != nil {
		t.Fatalf("Listen 失败: %v", err)
	}
	defer ln.Close()

	cli := NewWS()
	cli.Path = "/other"
	host, port, _ := net.SplitHostPort(ln.Addr().String())
	raw, err := cli.Dial(ctx, Options{}, ln.Addr().String())
	if err != nil {
		t.Fatalf("Dial 失败: %v", err)
	}
	if _, err := cli.Handshake(ctx, raw, host, port); err == nil {
		t.Error("路径不匹配时握手应失败")
	}
}

func TestTransportInterface(t *testing.T) {
	var _ Transport = (*TCP)(nil)
	var _ Transport = (*UDP)(nil)
	var _ Transport = (*KCP)(nil)
	var _ Transport = (*WS)(nil)
	var _ Listener = (*UDPMux)(nil)
	var _ Listener = netListener{}
	var _ Conn = (*VirtualConn)(nil)
	var _ Conn = (*wsConn)(nil)
	var _ MessageReader = (*wsConn)(nil)
}
