package engine

import "fmt"

// SendResult 发送结果
type SendResult struct {
	N   int
	Err error
}

// persist 将负载转换为队列持有的字节切片
// []byte 与 string 会被复制；*[]byte 转移所有权，调用方之后不得再修改
func persist(data any) ([]byte, error) {
	switch v := data.(type) {
	case []byte:
		return append([]byte(nil), v...), nil
	case string:
		return []byte(v), nil
	case *[]byte:
		if v == nil {
			return nil, fmt.Errorf("%w: nil *[]byte", ErrInvalidArgument)
		}
		return *v, nil
	case *string:
		if v == nil {
			return nil, fmt.Errorf("%w: nil *string", ErrInvalidArgument)
		}
		return []byte(*v), nil
	default:
		return nil, fmt.Errorf("%w: unsupported payload %T", ErrInvalidArgument, data)
	}
}

func (c *Conn) prepare(data any) ([]byte, error) {
	if c.state.load() != StateStarted {
		return nil, ErrNotConnected
	}
	return persist(data)
}

// sendOp 写出 buf，写完成后在 lane 上调用 done 并释放守卫
func (c *Conn) sendOp(buf []byte, done func(n int, err error)) op {
	return func(g *Guard) {
		if c.state.load() != StateStarted || c.sock == nil {
			c.metrics.IncSendFailed()
			done(0, ErrNotConnected)
			return
		}
		sock, att := c.sock, c.gen
		gc := g.Copy()
		go func() {
			n, err := sock.Write(buf)
			c.lane.Post(func() {
				defer gc.Release()
				if err != nil {
					c.metrics.IncSendFailed()
				} else {
					c.metrics.AddBytesSent(int64(n))
				}
				done(n, err)
				if err != nil && !c.stale(att) {
					c.disconnect(err)
				}
			})
		}()
	}
}

// AsyncSend 入队发送，不关心结果；只返回参数与状态校验错误
func (c *Conn) AsyncSend(data any) error {
	buf, err := c.prepare(data)
	if err != nil {
		return err
	}
	return c.enqueue(c.sendOp(buf, func(int, error) {}))
}

// AsyncSendFunc 入队发送，完成后在 lane 上调用 fn
// 校验失败同样通过 fn 报告
func (c *Conn) AsyncSendFunc(data any, fn func(n int, err error)) {
	if fn == nil {
		fn = func(int, error) {}
	}
	buf, err := c.prepare(data)
	if err == nil {
		err = c.enqueue(c.sendOp(buf, fn))
	}
	if err != nil {
		c.lane.Post(func() { fn(0, err) })
	}
}

// AsyncSendFuture 入队发送，返回的通道恰好收到一个结果
func (c *Conn) AsyncSendFuture(data any) <-chan SendResult {
	ch := make(chan SendResult, 1)
	c.AsyncSendFunc(data, func(n int, err error) {
		ch <- SendResult{N: n, Err: err}
	})
	return ch
}

// Send 阻塞发送并返回写出的字节数
// 在连接自己的 lane 上调用时发送照常入队，但立即返回 ErrInProgress
func (c *Conn) Send(data any) (int, error) {
	buf, err := c.prepare(data)
	if err != nil {
		return 0, err
	}
	ch := make(chan SendResult, 1)
	err = c.enqueue(c.sendOp(buf, func(n int, err error) {
		ch <- SendResult{N: n, Err: err}
	}))
	if err != nil {
		return 0, err
	}
	if c.lane.InLane() {
		return 0, ErrInProgress
	}
	r := <-ch
	return r.N, r.Err
}
