package engine

import (
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/Chevalier11/asio2/internal/pool"
	"github.com/Chevalier11/asio2/log"
	"github.com/Chevalier11/asio2/match"
	"github.com/Chevalier11/asio2/metrics"
	"github.com/Chevalier11/asio2/transport"
)

// Executor 运行 lane 的执行器，默认每次调度启动一个 goroutine
type Executor interface {
	Go(fn func())
}

// Handlers 事件回调，全部在连接的 lane 上执行
type Handlers struct {
	// OnInit 套接字选项确定之后、绑定与连接之前触发
	OnInit func(c *Conn)
	// OnConnect 客户端每次连接尝试结束时触发，err 为 nil 表示成功
	OnConnect func(c *Conn, err error)
	// OnRecv 收到一条完整消息，msg 在回调返回后仍归调用方所有
	OnRecv func(c *Conn, msg []byte)
	// OnDisconnect 已连接的连接断开时触发，用户主动 Stop 时 err 为 nil
	OnDisconnect func(c *Conn, err error)
}

// Config 引擎配置，Client 与 Server 共用
type Config struct {
	// 连接超时，覆盖解析、拨号、代理与握手全部阶段；0 表示不限制
	ConnectTimeout time.Duration

	// 静默超时，已连接后超过该时长未收到数据即断开；0 表示不启用
	SilenceTimeout time.Duration

	// 拨号前绑定的本地地址 "ip:port"
	LocalAddr string

	// TCP keep-alive
	KeepAlive       bool
	KeepAlivePeriod time.Duration

	// SO_REUSEADDR
	ReuseAddr bool

	// 流式传输单次读取大小
	ReadBufferSize int

	// 接收缓冲累积上限，0 表示不限制
	MaxBufferSize int

	// 单个连接挂起操作上限，0 表示不限制
	MaxPendingOps int

	// 日志记录器，默认静默（NopLogger）
	Logger log.Logger

	// 指标收集器，默认 metrics.Global
	Metrics *metrics.Collector

	// lane 执行器
	Executor Executor

	// 地址解析器
	Resolver transport.Resolver

	// 是否启用客户端自动重连
	EnableReconnect bool

	// 重连配置（nil 则使用默认配置）
	ReconnectConfig *ReconnectConfig

	// 未指定匹配器时使用的默认匹配器
	DefaultMatcher match.Matcher

	Handlers
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		ConnectTimeout:  5 * time.Second,
		SilenceTimeout:  0,
		KeepAlive:       true,
		KeepAlivePeriod: 0,
		ReuseAddr:       true,
		ReadBufferSize:  pool.ReadBufferSize,
		MaxBufferSize:   0,
		MaxPendingOps:   0,
		Logger:          log.Nop(),
		Metrics:         metrics.Global,
		Executor:        nil, // 每次调度启动 goroutine
		Resolver:        transport.DefaultResolver,
		EnableReconnect: false,
		ReconnectConfig: nil, // 使用默认重连配置
		DefaultMatcher:  match.Any(),
	}
}

// Validate 验证配置参数的有效性，并为空字段填充默认值
func (c *Config) Validate() error {
	var errs []error

	if c.ConnectTimeout < 0 {
		errs = append(errs, errors.New("ConnectTimeout must not be negative"))
	}
	if c.SilenceTimeout < 0 {
		errs = append(errs, errors.New("SilenceTimeout must not be negative"))
	}
	if c.KeepAlivePeriod < 0 {
		errs = append(errs, errors.New("KeepAlivePeriod must not be negative"))
	}
	if c.ReadBufferSize <= 0 {
		errs = append(errs, errors.New("ReadBufferSize must be positive"))
	}
	if c.MaxBufferSize < 0 {
		errs = append(errs, errors.New("MaxBufferSize must not be negative"))
	}
	if c.MaxPendingOps < 0 {
		errs = append(errs, errors.New("MaxPendingOps must not be negative"))
	}
	if c.LocalAddr != "" {
		if _, _, err := net.SplitHostPort(c.LocalAddr); err != nil {
			errs = append(errs, fmt.Errorf("invalid local address %q: %w", c.LocalAddr, err))
		}
	}
	if c.ReconnectConfig != nil {
		if err := c.ReconnectConfig.Validate(); err != nil {
			errs = append(errs, err)
		}
	}

	if c.Logger == nil {
		c.Logger = log.Nop()
	}
	if c.Metrics == nil {
		c.Metrics = metrics.Global
	}
	if c.Resolver == nil {
		c.Resolver = transport.DefaultResolver
	}
	if c.DefaultMatcher == nil {
		c.DefaultMatcher = match.Any()
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

func (c *Config) socketOptions() transport.Options {
	return transport.Options{
		LocalAddr:       c.LocalAddr,
		ReuseAddr:       c.ReuseAddr,
		KeepAlive:       c.KeepAlive,
		KeepAlivePeriod: c.KeepAlivePeriod,
	}
}

func (c *Config) reconnectConfig() *ReconnectConfig {
	if c.ReconnectConfig != nil {
		return c.ReconnectConfig
	}
	return DefaultReconnectConfig()
}

// Option 配置选项函数
type Option func(*Config)

// WithConnectTimeout 设置连接超时
func WithConnectTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		c.ConnectTimeout = timeout
	}
}

// WithSilenceTimeout 设置静默超时
func WithSilenceTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		c.SilenceTimeout = timeout
	}
}

// WithLocalAddr 设置拨号绑定的本地地址
func WithLocalAddr(addr string) Option {
	return func(c *Config) {
		c.LocalAddr = addr
	}
}

// WithKeepAlive 设置 TCP keep-alive
func WithKeepAlive(enable bool, period time.Duration) Option {
	return func(c *Config) {
		c.KeepAlive = enable
		c.KeepAlivePeriod = period
	}
}

// WithReuseAddr 设置 SO_REUSEADDR
func WithReuseAddr(enable bool) Option {
	return func(c *Config) {
		c.ReuseAddr = enable
	}
}

// WithReadBufferSize 设置单次读取大小
func WithReadBufferSize(size int) Option {
	return func(c *Config) {
		c.ReadBufferSize = size
	}
}

// WithMaxBufferSize 设置接收缓冲累积上限
func WithMaxBufferSize(size int) Option {
	return func(c *Config) {
		c.MaxBufferSize = size
	}
}

// WithMaxPendingOps 设置挂起操作上限
func WithMaxPendingOps(n int) Option {
	return func(c *Config) {
		c.MaxPendingOps = n
	}
}

// WithLogger 设置日志记录器
func WithLogger(logger log.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// WithMetrics 设置指标收集器
func WithMetrics(m *metrics.Collector) Option {
	return func(c *Config) {
		c.Metrics = m
	}
}

// WithExecutor 设置 lane 执行器
func WithExecutor(exec Executor) Option {
	return func(c *Config) {
		c.Executor = exec
	}
}

// WithResolver 设置地址解析器
func WithResolver(r transport.Resolver) Option {
	return func(c *Config) {
		c.Resolver = r
	}
}

// WithReconnect 设置是否启用自动重连
func WithReconnect(enable bool) Option {
	return func(c *Config) {
		c.EnableReconnect = enable
	}
}

// WithReconnectConfig 设置重连配置
func WithReconnectConfig(cfg *ReconnectConfig) Option {
	return func(c *Config) {
		c.ReconnectConfig = cfg
	}
}

// WithDefaultMatcher 设置默认消息匹配器
func WithDefaultMatcher(m match.Matcher) Option {
	return func(c *Config) {
		c.DefaultMatcher = m
	}
}

// WithOnInit 设置初始化回调
func WithOnInit(fn func(c *Conn)) Option {
	return func(c *Config) {
		c.OnInit = fn
	}
}

// WithOnConnect 设置连接结果回调
func WithOnConnect(fn func(c *Conn, err error)) Option {
	return func(c *Config) {
		c.OnConnect = fn
	}
}

// WithOnRecv 设置消息回调
func WithOnRecv(fn func(c *Conn, msg []byte)) Option {
	return func(c *Config) {
		c.OnRecv = fn
	}
}

// WithOnDisconnect 设置断开回调
func WithOnDisconnect(fn func(c *Conn, err error)) Option {
	return func(c *Config) {
		c.OnDisconnect = fn
	}
}

func newConfig(opts []Option) (*Config, error) {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	return cfg, nil
}
