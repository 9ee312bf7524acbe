package secure

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/flynn/noise"
	"golang.org/x/crypto/curve25519"
)

// NewKeypair 生成随机的 Curve25519 静态密钥对
func NewKeypair() (noise.DHKey, error) {
	var seed [32]byte
	if _, err := rand.Read(seed[:]); err != nil {
		return noise.DHKey{}, fmt.Errorf("生成密钥失败: %w", err)
	}
	return KeypairFromSeed(seed)
}

// KeypairFromSeed 由 32 字节私钥推导密钥对
func KeypairFromSeed(seed [32]byte) (noise.DHKey, error) {
	pub, err := curve25519.X25519(seed[:], curve25519.Basepoint)
	if err != nil {
		return noise.DHKey{}, fmt.Errorf("计算公钥失败: %w", err)
	}
	priv := make([]byte, 32)
	copy(priv, seed[:])
	return noise.DHKey{Private: priv, Public: pub}, nil
}

// Fingerprint 返回公钥 SHA256 前 8 字节的十六进制表示，用于日志
func Fingerprint(pub []byte) string {
	sum := sha256.Sum256(pub)
	return hex.EncodeToString(sum[:8])
}
