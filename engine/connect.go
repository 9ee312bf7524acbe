package engine

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/Chevalier11/asio2/attempt"
	"github.com/Chevalier11/asio2/rdc"
	"github.com/Chevalier11/asio2/secure"
	"github.com/Chevalier11/asio2/socks5"
	"github.com/Chevalier11/asio2/transport"
)

// newDescriptor 解析 Start 的附加参数并检查与传输的兼容性
func newDescriptor(cfg *Config, tr transport.Transport, args []any) (attempt.Descriptor, error) {
	desc, err := attempt.New(cfg.DefaultMatcher, args...)
	if err != nil {
		return attempt.Descriptor{}, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	if desc.Has(attempt.TagProxy) && tr.Network() != "tcp" {
		return attempt.Descriptor{}, fmt.Errorf("%w: socks5 over %s transport", ErrUnsupported, tr.Name())
	}
	if desc.Has(attempt.TagSecure) && tr.Network() == "udp" && tr.MessageOriented() {
		return attempt.Descriptor{}, fmt.Errorf("%w: secure channel over %s transport", ErrUnsupported, tr.Name())
	}
	if opt, ok := attempt.Get[rdc.Option](desc); ok && !opt.Valid() {
		return attempt.Descriptor{}, fmt.Errorf("%w: rdc option without SendKey", ErrInvalidArgument)
	}
	return desc, nil
}

// start 在 lane 上发起一次客户端连接，done 恰好被调用一次
func (c *Conn) start(host, port string, desc attempt.Descriptor, done func(error)) {
	if !c.state.cas(StateStopped, StateStarting) {
		done(ErrAlreadyStarted)
		return
	}
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
	c.reconnectTries = 0
	c.userStopped = false
	c.host, c.port, c.desc = host, port, desc
	target := net.JoinHostPort(host, port)
	c.target.Store(&target)
	c.startDone = done
	c.beginConnect()
}

// accept 在 lane 上接管服务端接受的套接字，之后的连接步骤只剩安全握手
func (c *Conn) accept(sock transport.Conn, desc attempt.Descriptor) {
	if !c.state.cas(StateStopped, StateStarting) {
		sock.Close()
		return
	}
	c.sock = sock
	c.desc = desc
	if ra := sock.RemoteAddr(); ra != nil {
		target := ra.String()
		c.target.Store(&target)
		c.host, c.port, _ = net.SplitHostPort(target)
	}
	c.beginConnect()
}

// beginConnect 开始一次新的连接尝试，状态必须已是 starting
func (c *Conn) beginConnect() {
	c.gen++
	att := c.gen
	c.timedOut = false
	c.pendingConnect = true
	c.startedAt = time.Now()
	c.ctx, c.cancel = context.WithCancel(context.Background())
	c.calls = nil
	if opt, ok := attempt.Get[rdc.Option](c.desc); ok {
		c.calls = rdc.NewTable(opt)
	}
	c.metrics.IncConnectsTotal()
	c.log.Debug("connect %s:%s via %s (attempt %d)", c.host, c.port, c.tr.Name(), att)

	c.fireInit()
	if c.stale(att) || c.state.load() != StateStarting {
		return
	}

	if d := c.cfg.ConnectTimeout; d > 0 {
		c.connectTimer = c.lane.After(d, func() { c.onConnectTimeout(att, d) })
	}

	if c.role == roleSession {
		c.secureStep(att)
		return
	}
	c.resolve(att)
}

func (c *Conn) onConnectTimeout(att uint64, d time.Duration) {
	if c.stale(att) || c.state.load() != StateStarting {
		return
	}
	c.timedOut = true
	c.log.Warn("connect %s:%s timed out after %v", c.host, c.port, d)
	c.cancel()
	if c.sock != nil {
		c.sock.Close()
	}
}

func (c *Conn) resolve(att uint64) {
	host, port, network := c.host, c.port, c.tr.Network()
	if p, ok := attempt.Get[socks5.Option](c.desc); ok {
		host, port, network = p.Host, p.Port, "tcp"
	}
	ctx, resolver := c.ctx, c.cfg.Resolver
	go func() {
		eps, err := resolver.Resolve(ctx, network, host, port)
		c.lane.Post(func() { c.onResolved(att, eps, err) })
	}()
}

func (c *Conn) onResolved(att uint64, eps []string, err error) {
	if c.stale(att) {
		return
	}
	if err != nil {
		c.finish(att, fmt.Errorf("%w: %w", ErrHostUnreachable, err))
		return
	}
	if len(eps) == 0 {
		c.finish(att, ErrHostUnreachable)
		return
	}
	c.eps = eps
	snapshot := append([]string(nil), eps...)
	c.endpoints.Store(&snapshot)
	c.tryEndpoint(att, 0, nil)
}

// tryEndpoint 按解析顺序逐个拨号，全部失败时以最后一个错误结束
func (c *Conn) tryEndpoint(att uint64, i int, lastErr error) {
	if i >= len(c.eps) {
		if lastErr != nil {
			c.finish(att, fmt.Errorf("%w: %w", ErrHostUnreachable, lastErr))
		} else {
			c.finish(att, ErrHostUnreachable)
		}
		return
	}
	ep := c.eps[i]
	ctx, tr, opts := c.ctx, c.tr, c.cfg.socketOptions()
	go func() {
		conn, err := tr.Dial(ctx, opts, ep)
		c.lane.Post(func() { c.onDialed(att, i, ep, conn, err) })
	}()
}

func (c *Conn) onDialed(att uint64, i int, ep string, conn transport.Conn, err error) {
	if c.stale(att) {
		if conn != nil {
			conn.Close()
		}
		return
	}
	if err != nil {
		c.log.Debug("dial %s failed: %v", ep, err)
		if c.timedOut || c.ctx.Err() != nil {
			c.finish(att, err)
			return
		}
		c.tryEndpoint(att, i+1, err)
		return
	}
	c.sock = conn
	if c.timedOut {
		c.finish(att, ErrTimedOut)
		return
	}
	c.proxyStep(att)
}

func (c *Conn) proxyStep(att uint64) {
	opt, ok := attempt.Get[socks5.Option](c.desc)
	if !ok {
		c.handshakeStep(att)
		return
	}
	ctx, sock, network := c.ctx, c.sock, c.tr.Network()
	host, port := c.host, c.port
	go func() {
		conn, err := socks5.Negotiate(ctx, sock, network, opt, host, port)
		c.lane.Post(func() {
			if c.stale(att) {
				return
			}
			if err != nil {
				c.metrics.IncProxyFailed()
				c.finish(att, err)
				return
			}
			c.metrics.IncProxyOK()
			c.sock = conn
			c.handshakeStep(att)
		})
	}()
}

func (c *Conn) handshakeStep(att uint64) {
	ctx, sock, tr := c.ctx, c.sock, c.tr
	host, port := c.host, c.port
	go func() {
		conn, err := tr.Handshake(ctx, sock, host, port)
		c.lane.Post(func() {
			if c.stale(att) {
				return
			}
			if err != nil {
				c.finish(att, err)
				return
			}
			c.sock = conn
			c.secureStep(att)
		})
	}()
}

func (c *Conn) secureStep(att uint64) {
	opt, ok := attempt.Get[secure.Option](c.desc)
	if !ok {
		c.finish(att, nil)
		return
	}
	ctx, sock := c.ctx, c.sock
	initiator := c.role == roleClient
	go func() {
		sc, err := secure.Handshake(ctx, sock, opt, initiator)
		c.lane.Post(func() {
			if c.stale(att) {
				if sc != nil {
					sc.Close()
				}
				return
			}
			if err != nil {
				c.metrics.IncSecureFailed()
				c.finish(att, err)
				return
			}
			c.metrics.IncSecureOK()
			c.sock = sc
			c.finish(att, nil)
		})
	}()
}

// finish 结束当前连接尝试；超时标志优先于步骤自身的结果
func (c *Conn) finish(att uint64, err error) {
	if c.stale(att) {
		return
	}
	c.connectTimer.Stop()
	c.connectTimer = nil
	if c.timedOut {
		err = ErrTimedOut
	}
	if err == nil && !c.state.cas(StateStarting, StateStarted) {
		err = ErrAborted
	}
	if err == nil {
		c.lastActive = time.Now()
		c.addrs.Store(&connAddrs{local: c.sock.LocalAddr(), remote: c.sock.RemoteAddr()})
	}

	c.notifyConnect(err)
	if err != nil {
		c.disconnect(err)
		return
	}
	if c.stale(att) || c.state.load() != StateStarted {
		return
	}
	c.startRecv(att)
	c.armSilence(att, c.cfg.SilenceTimeout)
}

// notifyConnect 报告连接尝试结果，每次尝试至多一次
func (c *Conn) notifyConnect(err error) {
	if !c.pendingConnect {
		return
	}
	c.pendingConnect = false

	if err != nil {
		c.metrics.IncConnectsFailed()
		if errors.Is(err, ErrTimedOut) {
			c.metrics.IncConnectsTimedOut()
		}
	} else {
		c.metrics.RecordConnectLatency(time.Since(c.startedAt))
		c.metrics.AddActive(1)
		if c.reconnectTries > 0 {
			c.metrics.IncReconnectSuccess()
			c.reconnectTries = 0
		}
	}

	if done := c.startDone; done != nil {
		c.startDone = nil
		done(err)
	}

	if c.role == roleSession {
		if err != nil {
			c.metrics.IncSessionsDropped()
			c.log.Debug("session from %s dropped: %v", c.Target(), err)
			return
		}
		c.log.Debug("session from %s started", c.Target())
		c.fireConnect(nil)
		return
	}

	if err != nil {
		c.log.Debug("connect %s:%s failed: %v", c.host, c.port, err)
	} else {
		c.log.Info("connected to %s", c.RemoteAddr())
	}
	c.fireConnect(err)
}
