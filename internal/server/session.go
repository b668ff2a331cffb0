package server

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/mdavid/SuperSocket/internal/transport"
	"github.com/mdavid/SuperSocket/pkg/log"
	"github.com/mdavid/SuperSocket/pkg/util/merr"
)

// SessionState 表示会话的生命周期状态。
type SessionState int32

const (
	SessionActive SessionState = iota
	SessionClosing
	SessionClosed
)

func (s SessionState) String() string {
	switch s {
	case SessionActive:
		return "Active"
	case SessionClosing:
		return "Closing"
	case SessionClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// CloseReason 描述会话被关闭的原因。
type CloseReason int32

const (
	CloseReasonUnknown CloseReason = iota
	// CloseReasonServerShutdown 表示服务器停止时的批量关闭。
	CloseReasonServerShutdown
	// CloseReasonClientClosing 表示对端主动断开。
	CloseReasonClientClosing
	// CloseReasonServerClosing 表示服务器侧业务主动关闭。
	CloseReasonServerClosing
	// CloseReasonTimeOut 表示会话因空闲超时被清理。
	CloseReasonTimeOut
	// CloseReasonSocketError 表示底层连接读写出错。
	CloseReasonSocketError
	// CloseReasonApplicationError 表示业务处理过程中发生不可恢复错误。
	CloseReasonApplicationError
)

func (r CloseReason) String() string {
	switch r {
	case CloseReasonServerShutdown:
		return "ServerShutdown"
	case CloseReasonClientClosing:
		return "ClientClosing"
	case CloseReasonServerClosing:
		return "ServerClosing"
	case CloseReasonTimeOut:
		return "TimeOut"
	case CloseReasonSocketError:
		return "SocketError"
	case CloseReasonApplicationError:
		return "ApplicationError"
	default:
		return "Unknown"
	}
}

// Session 是服务器核心对一条会话的完整视图。
//
// 约定：
//   - 每个 Session 对应一条底层连接（TCP 连接或 UDP 虚拟连接）；
//   - 身份键在其生命周期内全局唯一，由框架在 Init 时分配；
//   - 业务会话类型通过嵌入 AppSession 获得全部基础能力，按需覆写钩子。
type Session interface {
	// ID 返回会话身份键。
	ID() string

	// State 返回会话当前状态。
	State() SessionState

	// StartTime 返回会话建立时间。
	StartTime() time.Time

	// LastActiveTime 返回最近一次活跃时间。
	LastActiveTime() time.Time

	// Touch 将最近活跃时间刷新为当前时刻，由传输层在每条请求到达时调用。
	Touch()

	// Conn 返回底层传输句柄。
	Conn() transport.Conn

	// Server 返回所属服务器（非拥有引用）。
	Server() *AppServer

	// Send 向对端发送一段响应数据。
	Send(data []byte) error

	// Close 关闭会话。幂等：重复关闭只有第一次生效。
	Close(reason CloseReason) error

	// Init 将会话绑定到服务器与传输句柄，并分配身份键。
	// 由 AppServer.CreateSession 在注册前调用一次。
	Init(server *AppServer, conn transport.Conn)

	// SetClosedHandler 挂接关闭通知，无论关闭由哪条路径触发都会恰好回调一次。
	SetClosedHandler(fn func(sess Session, reason CloseReason))

	// OnSessionStarted 在会话注册成功后被调用一次，用于发送问候语等。
	// 默认实现为空。
	OnSessionStarted()

	// HandleError 在该会话的请求处理发生故障时被调用。
	// 故障只影响当前会话，不会波及注册表或其他会话。默认实现仅记录日志。
	HandleError(err error)
}

// AppSession 提供了 Session 接口的基础实现。
//
// 设计目标：
//   - 封装最小但完整的会话能力：身份键、时间戳、发送与关闭；
//   - 默认实现 OnSessionStarted/HandleError 为空或仅记日志，
//     方便业务在自定义会话中嵌入并覆写。
type AppSession struct {
	id     string
	server *AppServer
	conn   transport.Conn

	startTime  time.Time
	lastActive *atomic.Time
	state      *atomic.Int32

	closeOnce sync.Once
	onClosed  func(sess Session, reason CloseReason)

	// self 指向嵌入方，保证关闭通知携带完整的会话动态类型。
	self Session
}

// 确保 AppSession 实现了 Session 接口。
var _ Session = (*AppSession)(nil)

// Init 实现 Session.Init。
func (s *AppSession) Init(server *AppServer, conn transport.Conn) {
	now := time.Now()
	s.id = uuid.NewString()
	s.server = server
	s.conn = conn
	s.startTime = now
	s.lastActive = atomic.NewTime(now)
	s.state = atomic.NewInt32(int32(SessionActive))
	if s.self == nil {
		s.self = s
	}
}

// Bind 记录嵌入方自身，使关闭通知携带完整的会话类型。
// 业务会话在构造时调用：sess.Bind(sess)。
func (s *AppSession) Bind(self Session) {
	s.self = self
}

// ID 实现 Session.ID。
func (s *AppSession) ID() string {
	return s.id
}

// State 实现 Session.State。
func (s *AppSession) State() SessionState {
	return SessionState(s.state.Load())
}

// StartTime 实现 Session.StartTime。
func (s *AppSession) StartTime() time.Time {
	return s.startTime
}

// LastActiveTime 实现 Session.LastActiveTime。
func (s *AppSession) LastActiveTime() time.Time {
	return s.lastActive.Load()
}

// Touch 实现 Session.Touch。
func (s *AppSession) Touch() {
	s.lastActive.Store(time.Now())
}

// Conn 实现 Session.Conn。
func (s *AppSession) Conn() transport.Conn {
	return s.conn
}

// Server 实现 Session.Server。
func (s *AppSession) Server() *AppServer {
	return s.server
}

// Send 实现 Session.Send。
func (s *AppSession) Send(data []byte) error {
	if s.State() != SessionActive {
		return merr.ErrSessionClosed
	}
	return s.conn.Write(data)
}

// Close 实现 Session.Close。
//
// 幂等：清理触发的关闭与业务触发的关闭竞争时，清理逻辑只执行一次；
// 关闭通知恰好回调一次，由它驱动注册表移除。
func (s *AppSession) Close(reason CloseReason) error {
	var err error
	s.closeOnce.Do(func() {
		s.state.Store(int32(SessionClosing))
		err = s.conn.Close()
		s.state.Store(int32(SessionClosed))
		if s.onClosed != nil {
			s.onClosed(s.self, reason)
		}
	})
	return err
}

// SetClosedHandler 实现 Session.SetClosedHandler。
func (s *AppSession) SetClosedHandler(fn func(sess Session, reason CloseReason)) {
	s.onClosed = fn
}

// OnSessionStarted 默认实现为空，方便在自定义会话中覆写。
func (s *AppSession) OnSessionStarted() {}

// HandleError 默认实现仅记录日志，方便在自定义会话中覆写
// （例如将错误文本回写给对端）。
func (s *AppSession) HandleError(err error) {
	log.L().Warn("session request fault",
		zap.String("session", s.id),
		zap.Error(err))
}
