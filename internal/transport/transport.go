package transport

import (
	"crypto/tls"
	"net"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mdavid/SuperSocket/internal/protocol"
	"github.com/mdavid/SuperSocket/pkg/util/conc"
	"github.com/mdavid/SuperSocket/pkg/util/merr"
)

// Mode 表示服务器的接入模式。
type Mode string

const (
	// ModeSync 为同步模式：每条连接一个读协程，命令在读协程内执行。
	ModeSync Mode = "Sync"
	// ModeAsync 为异步模式：读协程只负责收包，命令执行投递到共享协程池。
	ModeAsync Mode = "Async"
	// ModeUdp 为数据报模式：按远端地址划分虚拟会话，解析契约与异步模式一致。
	ModeUdp Mode = "Udp"
)

// ParseMode 解析模式字符串，匹配时不区分大小写。
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "sync":
		return ModeSync, nil
	case "async":
		return ModeAsync, nil
	case "udp":
		return ModeUdp, nil
	default:
		return "", merr.WrapErrRequestInvalid("unknown mode " + s)
	}
}

func (m Mode) String() string {
	return string(m)
}

// 传输层状态。
const (
	StateNotStarted int32 = iota
	StateRunning
	StateStopped
)

// Conn 抽象一条已被接受的传输层连接句柄。
//
// 对 TCP 是一条真实连接；对 UDP 是绑定到某个远端地址的虚拟连接。
type Conn interface {
	// RemoteAddr 返回远端地址。
	RemoteAddr() net.Addr
	// Write 将整段数据写入对端，内部串行化并发调用。
	Write(p []byte) error
	// Close 关闭连接，幂等。
	Close() error
}

// Session 是传输层对会话的最小视图。
// 完整的会话语义由服务器核心定义，传输层只负责路由。
type Session interface {
	ID() string
}

// Handler 由服务器编排层实现，传输层通过它回调到核心。
//
// 说明：
//   - 回调可能来自传输层的任意 worker 协程，实现方需要保证并发安全；
//   - OnNewConn 返回错误时，传输层关闭该连接且不再产生后续回调。
type Handler interface {
	// OnNewConn 在每条连接被接受后调用，核心在其中创建并注册会话。
	OnNewConn(conn Conn) (Session, error)

	// OnRequest 在解析出一条完整请求后调用。
	OnRequest(sess Session, req *protocol.Request)

	// OnConnClosed 在连接生命周期结束时调用。
	// err 为断开原因，对端正常关闭时为 nil。
	OnConnClosed(sess Session, err error)
}

// Transport 抽象一种具体接入模式的 I/O 引擎。
//
// 生命周期：NotStarted -> Running -> Stopped；
// Stop 之后允许再次 Start（服务器 Start 失败回滚后重试时会用到）。
type Transport interface {
	// Start 启动监听与收发协程，失败时不残留任何已启动资源。
	Start() error
	// Stop 停止监听并等待全部连接协程退出，幂等。
	Stop()
	// IsRunning 返回传输层当前是否处于 Running 状态。
	IsRunning() bool
}

// Options 为构建传输层实例的通用参数。
type Options struct {
	// Addr 为已解析的监听地址，形如 "0.0.0.0:4502"。
	Addr string
	// TLS 非 nil 时对 TCP 监听启用传输安全；Udp 模式忽略。
	TLS *tls.Config
	// ReadTimeout/WriteTimeout 控制单次读写的超时时间，为 0 表示不设置 deadline。
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	// MaxConnections 为最大并发连接数，0 表示不限制。
	MaxConnections int
	// ReceiveBufferSize 为异步模式单次 Read 的缓冲区大小。
	ReceiveBufferSize int
	// Pool 为异步/数据报模式的命令执行协程池。
	Pool *conc.Pool
	// Logger 为传输层日志。
	Logger *zap.Logger
}

const defaultReceiveBufferSize = 4 * 1024

func (o *Options) receiveBufferSize() int {
	if o.ReceiveBufferSize <= 0 {
		return defaultReceiveBufferSize
	}
	return o.ReceiveBufferSize
}

func (o *Options) logger() *zap.Logger {
	if o.Logger == nil {
		return zap.NewNop()
	}
	return o.Logger
}
