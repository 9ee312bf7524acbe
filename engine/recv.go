package engine

import (
	"time"

	"github.com/Chevalier11/asio2/internal/pool"
	"github.com/Chevalier11/asio2/match"
	"github.com/Chevalier11/asio2/transport"
)

// startRecv 启动接收循环，循环持有一个存活句柄直到退出
func (c *Conn) startRecv(att uint64) {
	sock := c.sock
	m, mo := c.desc.Matcher(), c.tr.MessageOriented()
	h := c.acquire()
	go func() {
		defer h.Release()
		switch {
		case mo:
			if mr, ok := sock.(transport.MessageReader); ok {
				c.readMessages(att, mr)
				return
			}
			c.readDatagrams(att, sock)
		default:
			c.readStream(att, sock, m)
		}
	}()
}

func (c *Conn) readMessages(att uint64, mr transport.MessageReader) {
	for {
		msg, err := mr.ReadMessage()
		if err != nil {
			c.postReadError(att, err)
			return
		}
		c.postMessage(att, msg)
	}
}

// readDatagrams 面向消息的传输，每次读取即一条消息
func (c *Conn) readDatagrams(att uint64, sock transport.Conn) {
	buf := pool.GetLargeBuffer()
	defer pool.PutLargeBuffer(buf)
	for {
		n, err := sock.Read(*buf)
		if n > 0 {
			c.postMessage(att, append([]byte(nil), (*buf)[:n]...))
		}
		if err != nil {
			c.postReadError(att, err)
			return
		}
	}
}

// readStream 字节流传输，累积读取内容并按匹配器切分消息
func (c *Conn) readStream(att uint64, sock transport.Conn, m match.Matcher) {
	buf := pool.Get(c.cfg.ReadBufferSize)
	defer pool.Put(buf)
	var acc []byte
	for {
		n, err := sock.Read(*buf)
		if n > 0 {
			acc = append(acc, (*buf)[:n]...)
			msgs, rest := match.Split(m, acc)
			for _, msg := range msgs {
				c.postMessage(att, append([]byte(nil), msg...))
			}
			acc = append(acc[:0], rest...)
			if limit := c.cfg.MaxBufferSize; limit > 0 && len(acc) > limit {
				c.postReadError(att, ErrNoBufferSpace)
				return
			}
		}
		if err != nil {
			c.postReadError(att, err)
			return
		}
	}
}

func (c *Conn) postMessage(att uint64, msg []byte) {
	c.lane.Post(func() { c.deliver(att, msg) })
}

func (c *Conn) postReadError(att uint64, err error) {
	c.lane.Post(func() {
		if !c.stale(att) {
			c.disconnect(err)
		}
	})
}

func (c *Conn) deliver(att uint64, msg []byte) {
	if c.stale(att) || c.state.load() != StateStarted {
		return
	}
	c.lastActive = time.Now()
	c.metrics.AddBytesReceived(int64(len(msg)))
	if c.calls != nil && c.calls.Resolve(msg) {
		return
	}
	c.fireRecv(msg)
}

// armSilence 静默计时；到期时按最后一次收到数据的时间重新计算剩余时长
func (c *Conn) armSilence(att uint64, d time.Duration) {
	timeout := c.cfg.SilenceTimeout
	if timeout <= 0 {
		return
	}
	c.silenceTimer = c.lane.After(d, func() {
		if c.stale(att) || c.state.load() != StateStarted {
			return
		}
		idle := time.Since(c.lastActive)
		if idle >= timeout {
			c.log.Warn("silent for %v, disconnecting", idle.Round(time.Millisecond))
			c.disconnect(ErrTimedOut)
			return
		}
		c.armSilence(att, timeout-idle)
	})
}
