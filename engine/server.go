package engine

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/Chevalier11/asio2/attempt"
	"github.com/Chevalier11/asio2/log"
	"github.com/Chevalier11/asio2/transport"
)

// Server 监听并为每个接入的套接字创建会话
// 每个会话拥有独立的 lane，握手失败的会话被静默丢弃
type Server struct {
	cfg *Config
	tr  transport.Transport
	log log.Logger

	state stateCell
	mu    sync.Mutex // 保护 Start/Stop 期间的字段
	ln    transport.Listener
	desc  attempt.Descriptor
	eg    *errgroup.Group

	addr     atomic.Pointer[net.Addr]
	sessions sync.Map // id -> *Conn
	live     sync.WaitGroup
}

// NewServer 使用传输与配置选项创建服务端
// 配置中的回调同样作用于每个会话
func NewServer(tr transport.Transport, opts ...Option) (*Server, error) {
	if tr == nil {
		return nil, fmt.Errorf("%w: nil transport", ErrInvalidArgument)
	}
	cfg, err := newConfig(opts)
	if err != nil {
		return nil, err
	}
	return &Server{
		cfg: cfg,
		tr:  tr,
		log: log.Named(cfg.Logger, "server/"+tr.Name()),
	}, nil
}

// State 当前状态
func (s *Server) State() State { return s.state.load() }

// Start 在 host:port 上监听，args 与 Client.Start 相同并作用于每个会话
func (s *Server) Start(host, port string, args ...any) error {
	desc, err := newDescriptor(s.cfg, s.tr, args)
	if err != nil {
		return err
	}
	if desc.Has(attempt.TagProxy) {
		return fmt.Errorf("%w: socks5 option on server", ErrInvalidArgument)
	}
	if !s.state.cas(StateStopped, StateStarting) {
		return ErrAlreadyStarted
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ln, err := s.tr.Listen(context.Background(), net.JoinHostPort(host, port), s.cfg.socketOptions())
	if err != nil {
		s.state.store(StateStopped)
		return err
	}
	s.ln = ln
	s.desc = desc
	s.eg = &errgroup.Group{}
	addr := ln.Addr()
	s.addr.Store(&addr)
	s.state.store(StateStarted)
	s.log.Info("listening on %s", addr)

	s.eg.Go(func() error { return s.acceptLoop(ln, desc) })
	return nil
}

func (s *Server) acceptLoop(ln transport.Listener, desc attempt.Descriptor) error {
	for {
		sock, err := ln.Accept()
		if err != nil {
			if s.state.load() != StateStarted || errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.log.Error("accept failed: %v", err)
			return err
		}
		s.newSession(sock, desc)
	}
}

func (s *Server) newSession(sock transport.Conn, desc attempt.Descriptor) {
	c := newConn(roleSession, s.cfg, s.tr)
	c.onDestroy = func(c *Conn) {
		s.sessions.Delete(c.id)
		s.live.Done()
	}
	s.live.Add(1)
	s.sessions.Store(c.id, c)
	s.cfg.Metrics.IncSessionsAccepted()
	c.lane.Post(func() { c.accept(sock, desc) })
}

// Stop 关闭监听，停止所有会话并等待它们全部释放
// 不能在会话的回调中调用
func (s *Server) Stop() error {
	if !s.state.cas(StateStarted, StateStopping) {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ln.Close()
	err := s.eg.Wait()

	s.sessions.Range(func(_, v any) bool {
		v.(*Conn).Stop()
		return true
	})
	s.live.Wait()

	s.addr.Store(nil)
	s.state.store(StateStopped)
	s.log.Info("stopped")
	return err
}

// Addr 监听地址，未启动时为 nil
func (s *Server) Addr() net.Addr {
	if p := s.addr.Load(); p != nil {
		return *p
	}
	return nil
}

// SessionCount 当前存活会话数
func (s *Server) SessionCount() int {
	n := 0
	s.sessions.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// Find 按 ID 查找会话
func (s *Server) Find(id string) (*Conn, bool) {
	v, ok := s.sessions.Load(id)
	if !ok {
		return nil, false
	}
	return v.(*Conn), true
}

// Range 遍历存活会话，fn 返回 false 时停止
func (s *Server) Range(fn func(c *Conn) bool) {
	s.sessions.Range(func(_, v any) bool {
		return fn(v.(*Conn))
	})
}
