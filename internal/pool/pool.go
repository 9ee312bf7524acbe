// Package pool 提供读缓冲池，减少接收循环的 GC 压力
package pool

import (
	"sync"
)

// 缓冲区大小常量
const (
	// LargeBufferSize 大缓冲区大小 (64KB)
	// 用于数据报接收，单个 UDP 报文不会超过该大小
	LargeBufferSize = 65535

	// ReadBufferSize 流式连接默认单次读取大小
	ReadBufferSize = 4096

	// PacketBufferSize 通用小包大小 (MTU)
	PacketBufferSize = 1500
)

var classes = [...]int{PacketBufferSize, ReadBufferSize, LargeBufferSize}

var pools [len(classes)]sync.Pool

func init() {
	for i := range pools {
		size := classes[i]
		pools[i].New = func() interface{} {
			buf := make([]byte, size)
			return &buf
		}
	}
}

// class 返回能容纳 size 字节的最小档位，超过最大档位返回 -1
func class(size int) int {
	for i, c := range classes {
		if size <= c {
			return i
		}
	}
	return -1
}

// Get 获取长度至少为 size 的缓冲区，使用完毕后应调用 Put 归还
// 超过 LargeBufferSize 的请求直接分配，不经过池
func Get(size int) *[]byte {
	i := class(size)
	if i < 0 {
		buf := make([]byte, size)
		return &buf
	}
	buf := pools[i].Get().(*[]byte)
	*buf = (*buf)[:size]
	return buf
}

// Put 归还缓冲区到池，容量不匹配任何档位的缓冲区被丢弃
func Put(buf *[]byte) {
	if buf == nil {
		return
	}
	c := cap(*buf)
	for i, size := range classes {
		if c == size {
			// 重置长度但保留容量
			*buf = (*buf)[:c]
			pools[i].Put(buf)
			return
		}
	}
}

// GetLargeBuffer 从大缓冲池获取缓冲区 (64KB)
func GetLargeBuffer() *[]byte {
	return Get(LargeBufferSize)
}

// PutLargeBuffer 归还大缓冲区到池
func PutLargeBuffer(buf *[]byte) {
	Put(buf)
}
