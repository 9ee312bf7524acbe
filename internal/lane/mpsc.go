package lane

import "sync/atomic"

type node struct {
	next atomic.Pointer[node]
	fn   func()
}

// mpsc 无锁多生产者单消费者队列（Vyukov）
// tail 始终指向已消费的哨兵节点，真正的任务在 tail.next 上
type mpsc struct {
	head atomic.Pointer[node]
	tail *node
}

func (q *mpsc) init() {
	stub := &node{}
	q.head.Store(stub)
	q.tail = stub
}

func (q *mpsc) push(fn func()) {
	n := &node{fn: fn}
	prev := q.head.Swap(n)
	prev.next.Store(n)
}

// pop 仅由消费者调用；队列为空或生产者尚未完成链接时返回 nil
func (q *mpsc) pop() func() {
	next := q.tail.next.Load()
	if next == nil {
		return nil
	}
	q.tail = next
	fn := next.fn
	next.fn = nil
	return fn
}
