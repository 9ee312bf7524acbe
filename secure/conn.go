package secure

import (
	"fmt"
	"net"
	"sync"

	"github.com/flynn/noise"

	"github.com/Chevalier11/asio2/internal/protocol"
)

// maxRecord 单条加密记录的最大负载（2 字节长度头减去 AEAD 标签）
const maxRecord = 65535 - 16

// Conn 加密记录连接
// 同一时刻最多一个 goroutine 写、一个 goroutine 读
type Conn struct {
	net.Conn
	send *noise.CipherState
	recv *noise.CipherState
	peer []byte
	hash []byte

	rbuf []byte

	mu     sync.Mutex
	closed bool
}

// Write 将 p 按记录上限切分后加密发送，返回明文字节数
func (c *Conn) Write(p []byte) (int, error) {
	written := 0
	for len(p) > 0 {
		chunk := p
		if len(chunk) > maxRecord {
			chunk = chunk[:maxRecord]
		}
		ct, err := c.send.Encrypt(nil, nil, chunk)
		if err != nil {
			return written, fmt.Errorf("加密失败: %w", err)
		}
		frame, err := protocol.EncodeFrame(protocol.Header16, ct)
		if err != nil {
			return written, err
		}
		if _, err := c.Conn.Write(frame); err != nil {
			return written, err
		}
		written += len(chunk)
		p = p[len(chunk):]
	}
	return written, nil
}

// Read 读取解密后的字节流
func (c *Conn) Read(p []byte) (int, error) {
	for len(c.rbuf) == 0 {
		ct, err := protocol.ReadFrame(c.Conn, protocol.Header16, 0)
		if err != nil {
			return 0, err
		}
		pt, err := c.recv.Decrypt(nil, nil, ct)
		if err != nil {
			return 0, fmt.Errorf("解密失败: %w", err)
		}
		c.rbuf = pt
	}
	n := copy(p, c.rbuf)
	c.rbuf = c.rbuf[n:]
	return n, nil
}

// RemotePublicKey 获取对端静态公钥
func (c *Conn) RemotePublicKey() []byte {
	return c.peer
}

// HandshakeHash 获取握手哈希（用于通道绑定）
func (c *Conn) HandshakeHash() []byte {
	return c.hash
}

// Close 关闭底层连接，可重复调用
func (c *Conn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()
	return c.Conn.Close()
}
