// Package lane 提供串行执行上下文（lane）
//
// 每个连接固定在一个 lane 上：投递到同一 lane 的任务严格按投递顺序、
// 且互不并发地执行；不同 lane 之间可以并行。lane 本身不持有线程，
// 有任务时才向 Executor 申请一次执行，队列清空后归还。
package lane

import (
	"runtime"
	"sync/atomic"
)

// Executor 运行 lane 的排空循环
// 实现可以是 goroutine、工作池或任何能异步执行函数的调度器
type Executor interface {
	Go(fn func())
}

// GoExecutor 为每次调度启动一个 goroutine
type GoExecutor struct{}

// Go 实现 Executor
func (GoExecutor) Go(fn func()) { go fn() }

// ExecutorFunc 将普通函数适配为 Executor
type ExecutorFunc func(fn func())

// Go 实现 Executor
func (f ExecutorFunc) Go(fn func()) { f(fn) }

// Lane 串行执行上下文
type Lane struct {
	exec    Executor
	q       mpsc
	pending atomic.Int64
	// runner 当前执行排空循环的 goroutine id，空闲时为 0
	runner atomic.Int64
}

// New 创建 lane，exec 为 nil 时使用 GoExecutor
func New(exec Executor) *Lane {
	if exec == nil {
		exec = GoExecutor{}
	}
	l := &Lane{exec: exec}
	l.q.init()
	return l
}

// Post 将 fn 追加到 lane 尾部，从任意 goroutine 调用都不会阻塞
func (l *Lane) Post(fn func()) {
	if fn == nil {
		return
	}
	l.q.push(fn)
	if l.pending.Add(1) == 1 {
		l.exec.Go(l.run)
	}
}

// Dispatch 若当前已在 lane 内则立即执行 fn，否则等同 Post
func (l *Lane) Dispatch(fn func()) {
	if fn == nil {
		return
	}
	if l.InLane() {
		fn()
		return
	}
	l.Post(fn)
}

// InLane 判断调用方是否正在该 lane 上执行
// lane 有任务在执行时需要解析 runtime.Stack 取得 goroutine id，开销在微秒级
func (l *Lane) InLane() bool {
	r := l.runner.Load()
	return r != 0 && r == goid()
}

// Pending 返回已投递但尚未执行完毕的任务数
func (l *Lane) Pending() int64 {
	return l.pending.Load()
}

func (l *Lane) run() {
	id := goid()
	for {
		l.runner.Store(id)
		n := l.pending.Load()
		for i := int64(0); i < n; i++ {
			l.next()()
		}
		l.runner.Store(0)
		if l.pending.Add(-n) == 0 {
			return
		}
	}
}

// next 取出下一个任务；生产者已计数但尚未完成链接时短暂让出
func (l *Lane) next() func() {
	for {
		if fn := l.q.pop(); fn != nil {
			return fn
		}
		runtime.Gosched()
	}
}
