// Package protocol 提供长度前缀帧的编解码工具函数
//
// 帧格式: [长度头 (大端序, 1/2/4/8 字节)] [负载]
package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// 常用长度头大小
const (
	Header8  = 1
	Header16 = 2
	Header32 = 4
	Header64 = 8
)

var (
	// ErrHeaderSize 长度头大小不是 1/2/4/8
	ErrHeaderSize = errors.New("protocol: header size must be 1, 2, 4 or 8")
	// ErrFrameTooLarge 负载超过长度头可表示的范围
	ErrFrameTooLarge = errors.New("protocol: payload exceeds header capacity")
)

// ValidHeaderSize 判断长度头大小是否合法
func ValidHeaderSize(headerSize int) bool {
	switch headerSize {
	case Header8, Header16, Header32, Header64:
		return true
	}
	return false
}

// MaxPayload 返回长度头可表示的最大负载长度
func MaxPayload(headerSize int) uint64 {
	if headerSize >= Header64 {
		return ^uint64(0)
	}
	return 1<<(8*uint(headerSize)) - 1
}

// PutLength 将长度写入 dst 前 headerSize 字节（大端序）
func PutLength(dst []byte, headerSize int, n uint64) error {
	if !ValidHeaderSize(headerSize) {
		return ErrHeaderSize
	}
	if n > MaxPayload(headerSize) {
		return fmt.Errorf("%w: %d > %d", ErrFrameTooLarge, n, MaxPayload(headerSize))
	}
	if len(dst) < headerSize {
		return io.ErrShortBuffer
	}
	switch headerSize {
	case Header8:
		dst[0] = byte(n)
	case Header16:
		binary.BigEndian.PutUint16(dst, uint16(n))
	case Header32:
		binary.BigEndian.PutUint32(dst, uint32(n))
	case Header64:
		binary.BigEndian.PutUint64(dst, n)
	}
	return nil
}

// ReadLength 从 header 解码负载长度，字节不足时 ok 为 false
func ReadLength(header []byte, headerSize int) (n uint64, ok bool) {
	if !ValidHeaderSize(headerSize) || len(header) < headerSize {
		return 0, false
	}
	switch headerSize {
	case Header8:
		return uint64(header[0]), true
	case Header16:
		return uint64(binary.BigEndian.Uint16(header)), true
	case Header32:
		return uint64(binary.BigEndian.Uint32(header)), true
	default:
		return binary.BigEndian.Uint64(header), true
	}
}

// EncodeFrame 编码帧（添加长度前缀）
func EncodeFrame(headerSize int, payload []byte) ([]byte, error) {
	if !ValidHeaderSize(headerSize) {
		return nil, ErrHeaderSize
	}
	frame := make([]byte, headerSize+len(payload))
	if err := PutLength(frame, headerSize, uint64(len(payload))); err != nil {
		return nil, err
	}
	copy(frame[headerSize:], payload)
	return frame, nil
}

// FrameEnd 判断 buf 中是否已包含一个完整帧，返回帧结束位置
func FrameEnd(buf []byte, headerSize int) (end int, found bool) {
	n, ok := ReadLength(buf, headerSize)
	if !ok {
		return 0, false
	}
	if n > uint64(len(buf)-headerSize) {
		return 0, false
	}
	return headerSize + int(n), true
}

// ReadFrame 从 r 读取一个完整帧的负载
func ReadFrame(r io.Reader, headerSize int, maxPayload int) ([]byte, error) {
	if !ValidHeaderSize(headerSize) {
		return nil, ErrHeaderSize
	}
	var hdr [Header64]byte
	if _, err := io.ReadFull(r, hdr[:headerSize]); err != nil {
		return nil, err
	}
	n, _ := ReadLength(hdr[:headerSize], headerSize)
	if maxPayload > 0 && n > uint64(maxPayload) {
		return nil, fmt.Errorf("%w: %d > %d", ErrFrameTooLarge, n, maxPayload)
	}
	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, err
	}
	return payload, nil
}
