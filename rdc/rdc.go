// Package rdc 提供请求/响应关联（remote data call）能力选项
//
// 出站请求与入站消息各自通过键函数提取关联键；键相同的入站消息
// 被视为该请求的响应，其余消息照常交给接收回调。
package rdc

import (
	"errors"
	"time"

	"github.com/Chevalier11/asio2/attempt"
)

// ErrDuplicateKey 同一关联键已有未完成的调用
var ErrDuplicateKey = errors.New("rdc: duplicate correlation key")

// KeyFunc 从消息中提取关联键，ok 为 false 表示该消息不参与关联
type KeyFunc func(msg []byte) (key any, ok bool)

// Option 关联规格，作为能力选项传给 Start
type Option struct {
	// SendKey 从出站请求提取关联键
	SendKey KeyFunc
	// RecvKey 从入站消息提取关联键，为 nil 时使用 SendKey
	RecvKey KeyFunc
	// Timeout 调用默认超时，0 表示只受调用方 ctx 约束
	Timeout time.Duration
}

// Tag 实现 attempt.Capability
func (Option) Tag() attempt.Tag { return attempt.TagRDC }

// Valid 判断选项是否可用
func (o Option) Valid() bool {
	return o.SendKey != nil
}

func (o Option) recvKey() KeyFunc {
	if o.RecvKey != nil {
		return o.RecvKey
	}
	return o.SendKey
}

// PrefixKey 以消息前 n 字节作为关联键
func PrefixKey(n int) KeyFunc {
	return func(msg []byte) (any, bool) {
		if n <= 0 || len(msg) < n {
			return nil, false
		}
		return string(msg[:n]), true
	}
}

// Callback 调用完成回调，resp 与 err 恰有一个有效
type Callback func(resp []byte, err error)

// Table 未完成调用表
// 不是并发安全的，由所属连接的 lane 独占访问
type Table struct {
	opt     Option
	pending map[any]Callback
}

// NewTable 创建调用表
func NewTable(opt Option) *Table {
	return &Table{opt: opt, pending: make(map[any]Callback)}
}

// Option 返回表使用的规格
func (t *Table) Option() Option {
	return t.opt
}

// Add 登记一个等待响应的调用
func (t *Table) Add(key any, cb Callback) error {
	if _, ok := t.pending[key]; ok {
		return ErrDuplicateKey
	}
	t.pending[key] = cb
	return nil
}

// Resolve 尝试将入站消息匹配到未完成调用，匹配成功返回 true
func (t *Table) Resolve(msg []byte) bool {
	key, ok := t.opt.recvKey()(msg)
	if !ok {
		return false
	}
	cb, ok := t.pending[key]
	if !ok {
		return false
	}
	delete(t.pending, key)
	cb(msg, nil)
	return true
}

// Cancel 以 err 结束指定调用，调用不存在时返回 false
func (t *Table) Cancel(key any, err error) bool {
	cb, ok := t.pending[key]
	if !ok {
		return false
	}
	delete(t.pending, key)
	cb(nil, err)
	return true
}

// FailAll 以 err 结束所有未完成调用
func (t *Table) FailAll(err error) {
	pending := t.pending
	t.pending = make(map[any]Callback)
	for _, cb := range pending {
		cb(nil, err)
	}
}

// Len 返回未完成调用数
func (t *Table) Len() int {
	return len(t.pending)
}
