package engine

import "sync/atomic"

// State 连接状态
// stopped → starting → started → stopping → stopped，starting 也可直接进入 stopping
type State int32

const (
	// StateStopped 已停止
	StateStopped State = iota
	// StateStarting 连接中
	StateStarting
	// StateStarted 已连接
	StateStarted
	// StateStopping 断开中
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateStarted:
		return "started"
	case StateStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// stateCell 原子状态，所有迁移都通过 CAS 完成
type stateCell struct {
	v atomic.Int32
}

func (c *stateCell) load() State {
	return State(c.v.Load())
}

func (c *stateCell) store(s State) {
	c.v.Store(int32(s))
}

func (c *stateCell) cas(from, to State) bool {
	return c.v.CompareAndSwap(int32(from), int32(to))
}
