package engine

import "errors"

// 错误分类
// 具体的套接字错误通过 %w 包装，errors.Is 可同时匹配分类与底层错误
var (
	// ErrAborted 连接尝试在完成前被 Stop 或新的尝试取代
	ErrAborted = errors.New("engine: operation aborted")
	// ErrTimedOut 连接超时或静默超时
	ErrTimedOut = errors.New("engine: timed out")
	// ErrHostUnreachable 所有端点均连接失败，或主机没有可用地址
	ErrHostUnreachable = errors.New("engine: host unreachable")
	// ErrNotConnected 连接未处于 started 状态
	ErrNotConnected = errors.New("engine: not connected")
	// ErrInvalidArgument 参数非法（nil 负载、不支持的负载类型、重复能力选项等）
	ErrInvalidArgument = errors.New("engine: invalid argument")
	// ErrAlreadyStarted 连接不处于 stopped 状态时再次 Start
	ErrAlreadyStarted = errors.New("engine: already started")
	// ErrInProgress 在连接自身 lane 上发起的阻塞调用无法等待完成
	ErrInProgress = errors.New("engine: operation in progress")
	// ErrQueueFull 挂起操作数达到 MaxPendingOps
	ErrQueueFull = errors.New("engine: operation queue full")
	// ErrUnsupported 能力选项与传输不兼容
	ErrUnsupported = errors.New("engine: unsupported")
	// ErrNoBufferSpace 接收缓冲累积超过 MaxBufferSize 仍未匹配出完整消息
	ErrNoBufferSpace = errors.New("engine: no buffer space")
)
