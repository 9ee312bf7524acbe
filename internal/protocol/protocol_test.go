package protocol

import (
	"bytes"
	"errors"
	"io"
	"testing"
)

func TestEncodeFrame(t *testing.T) {
	data := []byte("hello")
	for _, hs := range []int{Header8, Header16, Header32, Header64} {
		frame, err := EncodeFrame(hs, data)
		if err != nil {
			t.Fatalf("EncodeFrame(%d) 失败: %v", hs, err)
		}
		if len(frame) != hs+len(data) {
			t.Errorf("帧长度期望 %d，实际 %d", hs+len(data), len(frame))
		}
		n, ok := ReadLength(frame, hs)
		if !ok || n != uint64(len(data)) {
			t.Errorf("解码长度期望 %d，实际 %d (ok=%v)", len(data), n, ok)
		}
		if !bytes.Equal(frame[hs:], data) {
			t.Errorf("负载不一致: %q", frame[hs:])
		}
	}
}

func TestEncodeFrameBigEndian(t *testing.T) {
	frame, err := EncodeFrame(Header16, make([]byte, 0x0102))
	if err != nil {
		t.Fatalf("EncodeFrame 失败: %v", err)
	}
	if frame[0] != 0x01 || frame[1] != 0x02 {
		t.Errorf("长度头应为大端序，实际 %x %x", frame[0], frame[1])
	}
}

func TestEncodeFrameErrors(t *testing.T) {
	if _, err := EncodeFrame(3, nil); !errors.Is(err, ErrHeaderSize) {
		t.Errorf("非法长度头期望 ErrHeaderSize，实际 %v", err)
	}
	if _, err := EncodeFrame(Header8, make([]byte, 256)); !errors.Is(err, ErrFrameTooLarge) {
		t.Errorf("超长负载期望 ErrFrameTooLarge，实际 %v", err)
	}
	if err := PutLength(make([]byte, 1), Header16, 1); !errors.Is(err, io.ErrShortBuffer) {
		t.Errorf("缓冲区不足期望 io.ErrShortBuffer，实际 %v", err)
	}
}

func TestFrameEnd(t *testing.T) {
	tests := []struct {
		name  string
		buf   []byte
		end   int
		found bool
	}{
		{"空", nil, 0, false},
		{"长度头不完整", []byte{0x00}, 0, false},
		{"负载不完整", []byte{0x00, 0x03, 'a', 'b'}, 0, false},
		{"完整帧", []byte{0x00, 0x03, 'a', 'b', 'c'}, 5, true},
		{"完整帧后有多余字节", []byte{0x00, 0x01, 'a', 0x00}, 3, true},
		{"空负载", []byte{0x00, 0x00}, 2, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			end, found := FrameEnd(tt.buf, Header16)
			if end != tt.end || found != tt.found {
				t.Errorf("FrameEnd = (%d, %v)，期望 (%d, %v)", end, found, tt.end, tt.found)
			}
		})
	}
}

func TestReadFrame(t *testing.T) {
	var buf bytes.Buffer
	for _, p := range []string{"AB", "", "CDE"} {
		frame, _ := EncodeFrame(Header32, []byte(p))
		buf.Write(frame)
	}
	for _, want := range []string{"AB", "", "CDE"} {
		got, err := ReadFrame(&buf, Header32, 0)
		if err != nil {
			t.Fatalf("ReadFrame 失败: %v", err)
		}
		if string(got) != want {
			t.Errorf("ReadFrame 期望 %q，实际 %q", want, got)
		}
	}
	if _, err := ReadFrame(&buf, Header32, 0); err != io.EOF {
		t.Errorf("读完后期望 io.EOF，实际 %v", err)
	}
}

func TestReadFrameLimit(t *testing.T) {
	frame, _ := EncodeFrame(Header16, make([]byte, 100))
	if _, err := ReadFrame(bytes.NewReader(frame), Header16, 10); !errors.Is(err, ErrFrameTooLarge) {
		t.Errorf("超过上限期望 ErrFrameTooLarge，实际 %v", err)
	}
}
