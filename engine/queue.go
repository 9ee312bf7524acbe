package engine

import "sync/atomic"

// op 队列中的一个操作，持有 Guard 期间队列不会启动下一个操作
type op func(g *Guard)

type pendingOp struct {
	fn op
	h  *Handle
}

// Guard 操作守卫
// 最后一个副本释放时当前操作完成，队列在 lane 上启动下一个操作
type Guard struct {
	st       *guardState
	released atomic.Bool
}

type guardState struct {
	c    *Conn
	h    *Handle
	refs atomic.Int32
}

// Copy 返回共享同一操作的新副本，每个副本都必须 Release
func (g *Guard) Copy() *Guard {
	g.st.refs.Add(1)
	return &Guard{st: g.st}
}

// Release 释放副本，重复调用无效
func (g *Guard) Release() {
	if g == nil || !g.released.CompareAndSwap(false, true) {
		return
	}
	if g.st.refs.Add(-1) != 0 {
		return
	}
	c, h := g.st.c, g.st.h
	c.lane.Post(func() {
		c.opDone()
		h.Release()
	})
}

// enqueue 将操作追加到队列尾部，可在任意 goroutine 调用
// 操作按入队顺序在 lane 上逐个执行
func (c *Conn) enqueue(fn op) error {
	if limit := int64(c.cfg.MaxPendingOps); limit > 0 {
		for {
			n := c.pendingOps.Load()
			if n >= limit {
				c.metrics.IncOpsRejected()
				return ErrQueueFull
			}
			if c.pendingOps.CompareAndSwap(n, n+1) {
				break
			}
		}
	} else {
		c.pendingOps.Add(1)
	}
	h := c.acquire()
	c.metrics.IncOpsQueued()
	c.lane.Post(func() {
		c.ops = append(c.ops, pendingOp{fn: fn, h: h})
		c.runNext()
	})
	return nil
}

func (c *Conn) runNext() {
	if c.running || len(c.ops) == 0 {
		return
	}
	next := c.ops[0]
	c.ops[0] = pendingOp{}
	c.ops = c.ops[1:]
	c.running = true

	g := &Guard{st: &guardState{c: c, h: next.h}}
	g.st.refs.Store(1)
	next.fn(g)
	g.Release()
}

func (c *Conn) opDone() {
	c.running = false
	c.pendingOps.Add(-1)
	c.metrics.IncOpsCompleted()
	c.runNext()
}
