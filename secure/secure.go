// Package secure 提供基于 Noise XX 的安全通道能力选项
//
// 握手消息与之后的加密记录都使用 2 字节大端长度前缀分帧，
// 因此要求底层连接保持字节流语义（TCP、KCP 流模式或 WebSocket）。
package secure

import (
	"bytes"
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/flynn/noise"

	"github.com/Chevalier11/asio2/attempt"
	"github.com/Chevalier11/asio2/internal/protocol"
)

var (
	// ErrPeerRejected 对端静态公钥未通过校验
	ErrPeerRejected = errors.New("secure: peer rejected")
	// ErrNoKeypair 未配置静态密钥对
	ErrNoKeypair = errors.New("secure: missing static keypair")
)

// CipherSuite Noise 协议套件
var CipherSuite = noise.NewCipherSuite(noise.DH25519, noise.CipherChaChaPoly, noise.HashBLAKE2b)

// maxHandshakeMsg 单条握手消息上限
const maxHandshakeMsg = 4096

// Option 安全通道规格，作为能力选项传给 Start
// 客户端在代理与传输握手之后作为发起方执行；服务端会话作为响应方执行
type Option struct {
	// Keypair 本端静态密钥对
	Keypair noise.DHKey
	// Prologue 双方必须一致，可用作网络口令
	Prologue []byte
	// PeerKey 非空时要求对端静态公钥与之相等
	PeerKey []byte
	// Authorize 非空时在握手完成后校验对端静态公钥
	Authorize func(peerStatic []byte) error
}

// Tag 实现 attempt.Capability
func (Option) Tag() attempt.Tag { return attempt.TagSecure }

func (o Option) verify(peer []byte) error {
	if len(o.PeerKey) > 0 && !bytes.Equal(o.PeerKey, peer) {
		return fmt.Errorf("%w: unexpected static key %s", ErrPeerRejected, Fingerprint(peer))
	}
	if o.Authorize != nil {
		if err := o.Authorize(peer); err != nil {
			return fmt.Errorf("%w: %w", ErrPeerRejected, err)
		}
	}
	return nil
}

// Handshake 在 conn 上执行 Noise XX 握手，返回加密记录连接
// ctx 的截止时间与取消都会中断阻塞中的读写
func Handshake(ctx context.Context, conn net.Conn, opt Option, initiator bool) (*Conn, error) {
	if len(opt.Keypair.Private) != 32 || len(opt.Keypair.Public) != 32 {
		return nil, ErrNoKeypair
	}

	hs, err := noise.NewHandshakeState(noise.Config{
		CipherSuite:   CipherSuite,
		Random:        rand.Reader,
		Pattern:       noise.HandshakeXX,
		Initiator:     initiator,
		Prologue:      opt.Prologue,
		StaticKeypair: opt.Keypair,
	})
	if err != nil {
		return nil, fmt.Errorf("创建握手状态失败: %w", err)
	}

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
		defer conn.SetDeadline(time.Time{})
	}
	stop := context.AfterFunc(ctx, func() {
		conn.SetDeadline(time.Unix(1, 0))
	})
	defer stop()

	var send, recv *noise.CipherState
	if initiator {
		// -> e
		if _, _, err := writeHandshake(conn, hs); err != nil {
			return nil, ctxErr(ctx, err)
		}
		// <- e, ee, s, es
		if _, _, err := readHandshake(conn, hs); err != nil {
			return nil, ctxErr(ctx, err)
		}
		// -> s, se
		cs1, cs2, err := writeHandshake(conn, hs)
		if err != nil {
			return nil, ctxErr(ctx, err)
		}
		send, recv = cs1, cs2
	} else {
		if _, _, err := readHandshake(conn, hs); err != nil {
			return nil, ctxErr(ctx, err)
		}
		if _, _, err := writeHandshake(conn, hs); err != nil {
			return nil, ctxErr(ctx, err)
		}
		cs1, cs2, err := readHandshake(conn, hs)
		if err != nil {
			return nil, ctxErr(ctx, err)
		}
		send, recv = cs2, cs1
	}
	if send == nil || recv == nil {
		return nil, errors.New("secure: handshake did not complete")
	}

	peer := hs.PeerStatic()
	if err := opt.verify(peer); err != nil {
		return nil, err
	}
	return &Conn{
		Conn: conn,
		send: send,
		recv: recv,
		peer: peer,
		hash: hs.ChannelBinding(),
	}, nil
}

func writeHandshake(conn net.Conn, hs *noise.HandshakeState) (*noise.CipherState, *noise.CipherState, error) {
	msg, cs1, cs2, err := hs.WriteMessage(nil, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("生成握手消息失败: %w", err)
	}
	frame, err := protocol.EncodeFrame(protocol.Header16, msg)
	if err != nil {
		return nil, nil, err
	}
	if _, err := conn.Write(frame); err != nil {
		return nil, nil, err
	}
	return cs1, cs2, nil
}

func readHandshake(conn net.Conn, hs *noise.HandshakeState) (*noise.CipherState, *noise.CipherState, error) {
	msg, err := protocol.ReadFrame(conn, protocol.Header16, maxHandshakeMsg)
	if err != nil {
		return nil, nil, err
	}
	_, cs1, cs2, err := hs.ReadMessage(nil, msg)
	if err != nil {
		return nil, nil, fmt.Errorf("读取握手消息失败: %w", err)
	}
	return cs1, cs2, nil
}

// ctxErr 优先报告 ctx 的原因，便于上层识别超时
func ctxErr(ctx context.Context, err error) error {
	if cerr := ctx.Err(); cerr != nil {
		return fmt.Errorf("%w: %w", cerr, err)
	}
	if deadline, ok := ctx.Deadline(); ok && !time.Now().Before(deadline) {
		return fmt.Errorf("%w: %w", context.DeadlineExceeded, err)
	}
	return err
}
