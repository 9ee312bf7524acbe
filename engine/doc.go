// Package engine 实现与传输无关的异步连接引擎
//
// 每个连接（Client 或 Server 接入的会话）拥有一条 lane：一个串行执行队列，
// 连接的状态迁移、定时器、操作队列与全部回调都在 lane 上执行，
// 套接字 I/O 在独立 goroutine 中完成后再投递回 lane。
//
// 连接流程: 解析 → 逐个端点拨号 → socks5 协商 → 传输握手 → 安全握手 → started。
// 整个流程受 ConnectTimeout 约束，超时结果优先于步骤自身的结果。
//
// 发送支持四种形式: AsyncSend（不关心结果）、AsyncSendFunc（回调）、
// AsyncSendFuture（通道）与阻塞的 Send。同一连接上的操作严格按入队顺序执行，
// 前一个操作的 Guard 全部释放之前不会开始下一个。
package engine
