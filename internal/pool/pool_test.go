package pool

import (
	"testing"
)

func TestGetSizes(t *testing.T) {
	tests := []struct {
		size    int
		wantCap int
	}{
		{1, PacketBufferSize},
		{PacketBufferSize, PacketBufferSize},
		{PacketBufferSize + 1, ReadBufferSize},
		{ReadBufferSize, ReadBufferSize},
		{10000, LargeBufferSize},
		{LargeBufferSize + 1, LargeBufferSize + 1},
	}
	for _, tt := range tests {
		buf := Get(tt.size)
		if len(*buf) != tt.size {
			t.Errorf("Get(%d) 长度期望 %d，实际 %d", tt.size, tt.size, len(*buf))
		}
		if cap(*buf) != tt.wantCap {
			t.Errorf("Get(%d) 容量期望 %d，实际 %d", tt.size, tt.wantCap, cap(*buf))
		}
		Put(buf)
	}
}

func TestPutRestoresLength(t *testing.T) {
	buf := Get(10)
	Put(buf)
	if len(*buf) != PacketBufferSize {
		t.Errorf("Put 后长度期望 %d，实际 %d", PacketBufferSize, len(*buf))
	}
}

func TestGetLargeBuffer(t *testing.T) {
	buf := GetLargeBuffer()
	if buf == nil {
		t.Fatal("GetLargeBuffer 返回 nil")
	}
	if len(*buf) != LargeBufferSize {
		t.Errorf("缓冲区大小期望 %d，实际 %d", LargeBufferSize, len(*buf))
	}
	PutLargeBuffer(buf)
}

func TestPutNilAndForeignBuffer(t *testing.T) {
	// 确保 nil 和非池内缓冲区不会 panic
	Put(nil)
	foreign := make([]byte, 7)
	Put(&foreign)
}

func BenchmarkGetPutReadBuffer(b *testing.B) {
	for i := 0; i < b.N; i++ {
		buf := Get(ReadBufferSize)
		Put(buf)
	}
}
