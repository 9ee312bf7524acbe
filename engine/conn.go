package engine

import (
	"context"
	"net"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/Chevalier11/asio2/attempt"
	"github.com/Chevalier11/asio2/internal/lane"
	"github.com/Chevalier11/asio2/log"
	"github.com/Chevalier11/asio2/metrics"
	"github.com/Chevalier11/asio2/rdc"
	"github.com/Chevalier11/asio2/transport"
)

type role uint8

const (
	roleClient role = iota
	roleSession
)

func (r role) String() string {
	if r == roleSession {
		return "session"
	}
	return "client"
}

type connAddrs struct {
	local, remote net.Addr
}

// Conn 一个连接（客户端或服务端会话）
//
// 除原子字段外，所有可变状态只在连接自己的 lane 上访问；
// 公开方法可以在任意 goroutine 调用。
type Conn struct {
	id      string
	role    role
	cfg     *Config
	tr      transport.Transport
	lane    *lane.Lane
	log     log.Logger
	metrics *metrics.Collector

	state      stateCell
	pendingOps atomic.Int64
	stops      atomic.Uint64
	refs       atomic.Int64
	destroyed  atomic.Bool
	addrs      atomic.Pointer[connAddrs]
	endpoints  atomic.Pointer[[]string]
	target     atomic.Pointer[string]
	onDestroy  func(*Conn)

	// 以下字段只在 lane 上访问
	host, port     string
	desc           attempt.Descriptor
	eps            []string
	sock           transport.Conn
	gen            uint64
	ctx            context.Context
	cancel         context.CancelFunc
	connectTimer   *lane.Timer
	silenceTimer   *lane.Timer
	reconnectTimer *lane.Timer
	timedOut       bool
	pendingConnect bool
	startDone      func(error)
	startedAt      time.Time
	lastActive     time.Time
	calls          *rdc.Table
	userStopped    bool
	reconnectTries int
	ops            []pendingOp
	running        bool
	owner          *Handle
}

func newConn(r role, cfg *Config, tr transport.Transport) *Conn {
	var exec lane.Executor = lane.GoExecutor{}
	if cfg.Executor != nil {
		exec = cfg.Executor
	}
	id := uuid.NewString()
	c := &Conn{
		id:      id,
		role:    r,
		cfg:     cfg,
		tr:      tr,
		lane:    lane.New(exec),
		log:     log.Named(cfg.Logger, r.String()+"/"+id[:8]),
		metrics: cfg.Metrics,
	}
	c.owner = c.acquire()
	return c
}

// ID 连接唯一标识
func (c *Conn) ID() string { return c.id }

// State 当前状态
func (c *Conn) State() State { return c.state.load() }

// IsStarted 是否处于 started 状态
func (c *Conn) IsStarted() bool { return c.state.load() == StateStarted }

// IsSession 是否为服务端会话
func (c *Conn) IsSession() bool { return c.role == roleSession }

// Transport 返回连接使用的传输
func (c *Conn) Transport() transport.Transport { return c.tr }

// Target 最近一次连接目标 "host:port"，会话为对端地址
func (c *Conn) Target() string {
	if p := c.target.Load(); p != nil {
		return *p
	}
	return ""
}

// Endpoints 最近一次解析得到的端点列表
func (c *Conn) Endpoints() []string {
	if p := c.endpoints.Load(); p != nil {
		return append([]string(nil), (*p)...)
	}
	return nil
}

// LocalAddr 已连接时返回本地地址，否则为 nil
func (c *Conn) LocalAddr() net.Addr {
	if a := c.addrs.Load(); a != nil {
		return a.local
	}
	return nil
}

// RemoteAddr 已连接时返回对端地址，否则为 nil
func (c *Conn) RemoteAddr() net.Addr {
	if a := c.addrs.Load(); a != nil {
		return a.remote
	}
	return nil
}

// PendingOps 已入队但未完成的操作数
func (c *Conn) PendingOps() int64 { return c.pendingOps.Load() }

// Post 在连接的 lane 上异步执行 fn
func (c *Conn) Post(fn func()) { c.lane.Post(fn) }

// InLane 判断当前 goroutine 是否正在执行该连接的 lane
func (c *Conn) InLane() bool { return c.lane.InLane() }

func (c *Conn) stale(att uint64) bool { return att != c.gen }

// Handle 连接存活句柄
// 会话在最后一个句柄释放后从服务端移除
type Handle struct {
	c        *Conn
	released atomic.Bool
}

// Acquire 获取存活句柄，调用方负责 Release
func (c *Conn) Acquire() *Handle {
	return c.acquire()
}

func (c *Conn) acquire() *Handle {
	c.refs.Add(1)
	return &Handle{c: c}
}

// Conn 返回句柄对应的连接
func (h *Handle) Conn() *Conn { return h.c }

// Release 释放句柄，重复调用无效
func (h *Handle) Release() {
	if h == nil || !h.released.CompareAndSwap(false, true) {
		return
	}
	if h.c.refs.Add(-1) == 0 {
		h.c.destroy()
	}
}

func (c *Conn) destroy() {
	if !c.destroyed.CompareAndSwap(false, true) {
		return
	}
	if s := c.state.load(); s != StateStopped {
		c.log.Error("destroyed in state %s", s)
	}
	if c.onDestroy != nil {
		c.onDestroy(c)
	}
}

func (c *Conn) fireInit() {
	if fn := c.cfg.OnInit; fn != nil {
		fn(c)
	}
}

func (c *Conn) fireConnect(err error) {
	if fn := c.cfg.OnConnect; fn != nil {
		fn(c, err)
	}
}

func (c *Conn) fireRecv(msg []byte) {
	if fn := c.cfg.OnRecv; fn != nil {
		fn(c, msg)
	}
}

func (c *Conn) fireDisconnect(err error) {
	if fn := c.cfg.OnDisconnect; fn != nil {
		fn(c, err)
	}
}
