package engine

import (
	"errors"
	"fmt"

	"github.com/Chevalier11/asio2/attempt"
	"github.com/Chevalier11/asio2/transport"
)

// Client 主动连接的一端
type Client struct {
	*Conn
}

// NewClient 使用传输与配置选项创建客户端
func NewClient(tr transport.Transport, opts ...Option) (*Client, error) {
	if tr == nil {
		return nil, fmt.Errorf("%w: nil transport", ErrInvalidArgument)
	}
	cfg, err := newConfig(opts)
	if err != nil {
		return nil, err
	}
	return &Client{Conn: newConn(roleClient, cfg, tr)}, nil
}

// Config 返回客户端配置
func (cl *Client) Config() *Config { return cl.cfg }

// Start 连接到 host:port 并等待结果
//
// args 可以包含一个消息匹配器（match.Matcher 或 func([]byte) (int, bool)）
// 以及 socks5.Option、secure.Option、rdc.Option 等能力选项。
// 连接作为一个操作进入操作队列，排在之前入队的发送之后。
// 在客户端自己的 lane 上调用时连接照常发起，但立即返回 ErrInProgress。
func (cl *Client) Start(host, port string, args ...any) error {
	desc, err := newDescriptor(cl.cfg, cl.tr, args)
	if err != nil {
		return err
	}
	ch := make(chan error, 1)
	if err := cl.enqueueStart(host, port, desc, func(err error) { ch <- err }); err != nil {
		return err
	}
	if cl.lane.InLane() {
		return ErrInProgress
	}
	return <-ch
}

// AsyncStart 发起连接后立即返回，结果通过 OnConnect 报告
// 返回值只包含参数校验、已启动与队列已满错误
func (cl *Client) AsyncStart(host, port string, args ...any) error {
	if cl.State() != StateStopped {
		return ErrAlreadyStarted
	}
	desc, err := newDescriptor(cl.cfg, cl.tr, args)
	if err != nil {
		return err
	}
	return cl.enqueueStart(host, port, desc, func(err error) {
		if errors.Is(err, ErrAlreadyStarted) {
			cl.log.Warn("async start ignored: %v", err)
		}
	})
}

// enqueueStart 把连接任务放入操作队列；守卫在连接步骤发起后释放
// 入队之后调用过 Stop 的连接任务以 ErrAborted 结束
func (cl *Client) enqueueStart(host, port string, desc attempt.Descriptor, done func(error)) error {
	stops := cl.stops.Load()
	return cl.enqueue(func(*Guard) {
		if cl.stops.Load() != stops {
			done(ErrAborted)
			return
		}
		cl.start(host, port, desc, done)
	})
}
