package engine

import (
	"context"
	"fmt"

	"github.com/Chevalier11/asio2/internal/lane"
	"github.com/Chevalier11/asio2/rdc"
)

type callResult struct {
	resp []byte
	err  error
}

// pendingCall 只在 lane 上访问
type pendingCall struct {
	table *rdc.Table
	key   any
}

// Call 发送请求并等待关联键相同的响应
// 需要在 Start 时附带 rdc.Option；不匹配任何调用的消息照常交给 OnRecv
func (c *Conn) Call(ctx context.Context, req any) ([]byte, error) {
	if c.lane.InLane() {
		return nil, ErrInProgress
	}
	buf, err := c.prepare(req)
	if err != nil {
		return nil, err
	}

	ch := make(chan callResult, 1)
	pc := &pendingCall{}
	c.lane.Post(func() { c.startCall(pc, buf, ch) })

	select {
	case r := <-ch:
		return r.resp, r.err
	case <-ctx.Done():
		c.lane.Post(func() {
			if pc.table != nil {
				pc.table.Cancel(pc.key, ctx.Err())
			}
		})
		return nil, ctx.Err()
	}
}

func (c *Conn) startCall(pc *pendingCall, buf []byte, ch chan<- callResult) {
	if c.state.load() != StateStarted {
		ch <- callResult{err: ErrNotConnected}
		return
	}
	table := c.calls
	if table == nil {
		ch <- callResult{err: fmt.Errorf("%w: no rdc option on this connection", ErrUnsupported)}
		return
	}
	opt := table.Option()
	key, ok := opt.SendKey(buf)
	if !ok {
		ch <- callResult{err: fmt.Errorf("%w: request has no correlation key", ErrInvalidArgument)}
		return
	}

	var timer *lane.Timer
	err := table.Add(key, func(resp []byte, err error) {
		timer.Stop()
		ch <- callResult{resp: resp, err: err}
	})
	if err != nil {
		ch <- callResult{err: fmt.Errorf("%w: %w", ErrInvalidArgument, err)}
		return
	}
	pc.table, pc.key = table, key
	c.metrics.IncRDCCalls()

	if opt.Timeout > 0 {
		timer = c.lane.After(opt.Timeout, func() {
			if table.Cancel(key, ErrTimedOut) {
				c.metrics.IncRDCTimeouts()
			}
		})
	}

	if err := c.enqueue(c.sendOp(buf, func(_ int, err error) {
		if err != nil {
			table.Cancel(key, err)
		}
	})); err != nil {
		table.Cancel(key, err)
	}
}
