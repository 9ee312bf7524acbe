package lane

import (
	"sync/atomic"
	"time"
)

const (
	timerArmed int32 = iota
	timerFired
	timerCanceled
)

// Timer 单次定时器，回调总是在 lane 上执行
type Timer struct {
	t     *time.Timer
	state atomic.Int32
}

// After 在 d 之后将 fn 投递到 lane
// 在 lane 内调用 Stop 成功后 fn 保证不会执行
func (l *Lane) After(d time.Duration, fn func()) *Timer {
	tm := &Timer{}
	tm.t = time.AfterFunc(d, func() {
		l.Post(func() {
			if tm.state.CompareAndSwap(timerArmed, timerFired) {
				fn()
			}
		})
	})
	return tm
}

// Stop 取消定时器，可重复调用，也可与到期竞争
// 返回 true 表示本次调用阻止了回调
func (tm *Timer) Stop() bool {
	if tm == nil {
		return false
	}
	if tm.state.CompareAndSwap(timerArmed, timerCanceled) {
		tm.t.Stop()
		return true
	}
	return false
}

// Fired 判断回调是否已经执行
func (tm *Timer) Fired() bool {
	return tm != nil && tm.state.Load() == timerFired
}
