package transport

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// WS WebSocket 传输
// 拨号阶段与 TCP 相同；Handshake 在已连接（可能经过代理）的套接字上
// 完成 HTTP 升级。每条 WebSocket 消息对应一条应用消息
type WS struct {
	// Path 升级请求路径
	Path string
	// Header 客户端升级请求附加的头部
	Header http.Header
	// Binary 为 true 时以二进制帧发送，否则以文本帧发送
	Binary bool
	// ReadLimit 单条消息最大字节数，0 不限制
	ReadLimit int64
	// HandshakeTimeout 服务端升级超时
	HandshakeTimeout time.Duration
}

// NewWS 创建 WebSocket 传输，默认路径 "/"，二进制帧
func NewWS() *WS {
	return &WS{Path: "/", Binary: true, HandshakeTimeout: 10 * time.Second}
}

func (*WS) Name() string          { return "ws" }
func (*WS) Network() string       { return "tcp" }
func (*WS) MessageOriented() bool { return true }

// Dial 建立底层 TCP 连接
func (*WS) Dial(ctx context.Context, opts Options, endpoint string) (Conn, error) {
	d, err := DialConfig("tcp", opts)
	if err != nil {
		return nil, err
	}
	return d.DialContext(ctx, "tcp", endpoint)
}

// Handshake 在 conn 上完成客户端升级
func (w *WS) Handshake(ctx context.Context, conn Conn, host, port string) (Conn, error) {
	used := false
	dialer := websocket.Dialer{
		NetDialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			if used {
				return nil, errors.New("transport: websocket handshake already consumed the connection")
			}
			used = true
			return conn, nil
		},
		HandshakeTimeout: w.HandshakeTimeout,
	}
	u := url.URL{Scheme: "ws", Host: net.JoinHostPort(host, port), Path: w.path()}
	c, resp, err := dialer.DialContext(ctx, u.String(), w.Header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, err
	}
	return w.wrap(c), nil
}

// Listen 在 addr 上启动 HTTP 服务并升级匹配路径的请求
func (w *WS) Listen(ctx context.Context, addr string, opts Options) (Listener, error) {
	ln, err := ListenConfig(opts).Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	wl := &wsListener{
		ln:     ln,
		accept: make(chan Conn, 64),
		closed: make(chan struct{}),
	}
	upgrader := websocket.Upgrader{
		HandshakeTimeout: w.HandshakeTimeout,
		CheckOrigin:      func(r *http.Request) bool { return true },
	}
	mux := http.NewServeMux()
	mux.HandleFunc(w.path(), func(rw http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		select {
		case wl.accept <- w.wrap(c):
		case <-wl.closed:
			c.Close()
		}
	})
	wl.srv = &http.Server{Handler: mux, ReadHeaderTimeout: w.HandshakeTimeout}
	go wl.srv.Serve(ln)
	return wl, nil
}

func (w *WS) path() string {
	if w.Path == "" {
		return "/"
	}
	return w.Path
}

func (w *WS) wrap(c *websocket.Conn) *wsConn {
	if w.ReadLimit > 0 {
		c.SetReadLimit(w.ReadLimit)
	}
	mt := websocket.TextMessage
	if w.Binary {
		mt = websocket.BinaryMessage
	}
	return &wsConn{Conn: c, messageType: mt}
}

type wsListener struct {
	ln     net.Listener
	srv    *http.Server
	accept chan Conn
	closed chan struct{}
	once   sync.Once
}

func (l *wsListener) Accept() (Conn, error) {
	select {
	case c := <-l.accept:
		return c, nil
	case <-l.closed:
		return nil, net.ErrClosed
	}
}

func (l *wsListener) Close() error {
	var err error
	l.once.Do(func() {
		close(l.closed)
		err = l.srv.Close()
	})
	return err
}

func (l *wsListener) Addr() net.Addr {
	return l.ln.Addr()
}

// wsConn 将 websocket.Conn 适配为 net.Conn
// Read 按字节流读取消息内容；ReadMessage 一次返回整条消息
type wsConn struct {
	*websocket.Conn
	messageType int
	reader      io.Reader
}

func (c *wsConn) ReadMessage() ([]byte, error) {
	if c.reader != nil {
		rest, err := io.ReadAll(c.reader)
		c.reader = nil
		if err != nil || len(rest) > 0 {
			return rest, err
		}
	}
	_, data, err := c.Conn.ReadMessage()
	return data, err
}

func (c *wsConn) Read(p []byte) (int, error) {
	for {
		if c.reader == nil {
			_, r, err := c.Conn.NextReader()
			if err != nil {
				return 0, err
			}
			c.reader = r
		}
		n, err := c.reader.Read(p)
		if err == io.EOF {
			c.reader = nil
			if n > 0 {
				return n, nil
			}
			continue
		}
		return n, err
	}
}

func (c *wsConn) Write(p []byte) (int, error) {
	if err := c.Conn.WriteMessage(c.messageType, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (c *wsConn) SetDeadline(t time.Time) error {
	if err := c.Conn.SetReadDeadline(t); err != nil {
		return err
	}
	return c.Conn.SetWriteDeadline(t)
}
