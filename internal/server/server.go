package server

import (
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/mdavid/SuperSocket/internal/cert"
	"github.com/mdavid/SuperSocket/internal/protocol"
	"github.com/mdavid/SuperSocket/internal/transport"
	"github.com/mdavid/SuperSocket/pkg/log"
	"github.com/mdavid/SuperSocket/pkg/metrics"
	"github.com/mdavid/SuperSocket/pkg/util/conc"
	"github.com/mdavid/SuperSocket/pkg/util/merr"
)

// ServerState 表示服务器实例的生命周期状态。
//
// 状态机：Created -> Configured -> Running -> Stopped；
// Start 失败时回滚到 Configured，允许修正环境后重试。
type ServerState int32

const (
	ServerCreated ServerState = iota
	ServerConfigured
	ServerRunning
	ServerStopped
)

func (s ServerState) String() string {
	switch s {
	case ServerCreated:
		return "Created"
	case ServerConfigured:
		return "Configured"
	case ServerRunning:
		return "Running"
	case ServerStopped:
		return "Stopped"
	default:
		return "Unknown"
	}
}

// AdminHost 是可选管理端口的最小契约。
//
// Open 在服务器进入 Running 之后被调用，必须同步暴露绑定失败；
// Close 在服务器停止时被调用，幂等。
type AdminHost interface {
	Open(srv *AppServer) error
	Close() error
}

// Options 为 Setup 的装配参数。
type Options struct {
	// Commands 为显式注册的命令列表。
	Commands []Command

	// Providers 为可选扩展列表，按声明顺序初始化。
	Providers []Provider

	// SessionFactory 构造业务会话实例，为空时使用裸 AppSession。
	SessionFactory func() Session

	// Admin 为可选的管理端口，为空时不启用。
	Admin AdminHost

	// PoolSize 为异步/数据报模式命令执行协程池的容量，<= 0 表示不限制。
	PoolSize int

	// Logger 为服务器日志，为空时从全局 logger 派生。
	Logger *zap.Logger
}

// AppServer 是框架的编排核心。
//
// 设计目标：
//   - 持有唯一的传输层实例、会话注册表与命令/扩展注册表；
//   - 作为传输层的 Handler，把连接事件翻译为会话生命周期事件；
//   - 对外暴露 Setup/Start/Stop 三段式生命周期。
type AppServer struct {
	state *atomic.Int32

	cfg    ServerConfig
	addr   string
	logger *zap.Logger

	commands  *CommandRegistry
	providers *ProviderRegistry
	sessions  *SessionRegistry

	trans   transport.Transport
	pool    *conc.Pool
	admin   AdminHost
	factory func() Session

	startTime time.Time

	// lifecycle 串行化 Start/Stop 转换，state 只在持锁时写入。
	lifecycle sync.Mutex
	sweepStop chan struct{}
	sweepWG   sync.WaitGroup
}

// 确保 AppServer 实现了传输层回调契约。
var _ transport.Handler = (*AppServer)(nil)

// NewAppServer 创建一个未配置的服务器实例。
func NewAppServer() *AppServer {
	return &AppServer{
		state:  atomic.NewInt32(int32(ServerCreated)),
		logger: zap.NewNop(),
	}
}

// Setup 校验配置并装配全部运行组件，成功后进入 Configured 状态。
//
// 说明：
//   - Setup 只允许在 Created 状态调用一次；
//   - 任何一步失败都使 Setup 整体失败，状态保持 Created，
//     不会暴露部分装配的服务器；
//   - 配置在此处拷贝一份，Setup 之后外部修改原配置不再生效。
func (s *AppServer) Setup(cfg *ServerConfig, proto protocol.Protocol, opts Options) error {
	if ServerState(s.state.Load()) != ServerCreated {
		return merr.WrapErrServerState(s.StateName(), "setup")
	}
	if cfg == nil {
		return merr.WrapErrServerSetup(nil, "config is nil")
	}

	conf := *cfg
	if err := conf.Validate(); err != nil {
		return merr.WrapErrServerSetup(err, "validate config")
	}

	addr, err := conf.ResolveEndpoint()
	if err != nil {
		return merr.WrapErrServerSetup(err, "resolve endpoint")
	}

	tlsConf, err := cert.Load(conf.Certificate)
	if err != nil {
		return merr.WrapErrServerSetup(err, "load certificate")
	}

	commands, err := NewCommandRegistry(opts.Commands)
	if err != nil {
		return merr.WrapErrServerSetup(err, "build command registry")
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.L().With(zap.String("server", conf.Name))
	}

	var pool *conc.Pool
	mode := conf.mode()
	if mode != transport.ModeSync {
		pool, err = conc.NewPool(opts.PoolSize, conc.WithConcealPanic(true))
		if err != nil {
			return merr.WrapErrServerSetup(err, "create command pool")
		}
	}

	s.cfg = conf
	s.addr = addr
	s.logger = logger
	s.commands = commands
	s.sessions = NewSessionRegistry(conf.Name, logger)
	s.pool = pool
	s.admin = opts.Admin
	s.factory = opts.SessionFactory
	if s.factory == nil {
		s.factory = func() Session { return &AppSession{} }
	}

	trans, err := transport.Select(mode, proto, s, transport.Options{
		Addr:              addr,
		TLS:               tlsConf,
		ReadTimeout:       conf.readTimeout(),
		WriteTimeout:      conf.writeTimeout(),
		MaxConnections:    conf.MaxConnections,
		ReceiveBufferSize: conf.ReceiveBufferSize,
		Pool:              pool,
		Logger:            logger,
	})
	if err != nil {
		s.releasePool()
		return merr.WrapErrServerSetup(err, "select transport")
	}
	s.trans = trans

	providers, err := loadProviders(s, &s.cfg, opts.Providers)
	if err != nil {
		s.releasePool()
		return merr.WrapErrServerSetup(err, "load providers")
	}
	s.providers = providers

	s.state.Store(int32(ServerConfigured))
	logger.Info("server configured",
		zap.String("addr", addr),
		zap.String("mode", mode.String()),
		zap.Int("commands", commands.Count()),
		zap.Int("providers", providers.Count()))
	return nil
}

// Start 启动传输层、空闲清理与可选管理端口，全部就绪后才进入 Running。
//
// 失败回滚：任何一步失败都撤销此前已启动的部分，状态保持 Configured，
// 不残留半启动的服务器。Start 与 Stop 持同一把生命周期锁，
// Start 进行中到达的 Stop 会等它收尾后再做完整清理。
func (s *AppServer) Start() error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	if ServerState(s.state.Load()) != ServerConfigured {
		return merr.WrapErrServerState(s.StateName(), "start")
	}

	if err := s.trans.Start(); err != nil {
		return err
	}

	if s.cfg.ClearIdleSession {
		s.sweepStop = make(chan struct{})
		s.sweepWG.Add(1)
		go s.sweepLoop(s.sweepStop)
	}

	if s.admin != nil {
		if err := s.admin.Open(s); err != nil {
			s.stopSweeper()
			s.trans.Stop()
			return err
		}
	}

	s.startTime = time.Now()
	s.state.Store(int32(ServerRunning))
	s.logger.Info("server started", zap.String("addr", s.addr))
	return nil
}

// Stop 停止服务器并释放全部资源，幂等；与进行中的 Start 互斥。
func (s *AppServer) Stop() {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	prev := ServerState(s.state.Swap(int32(ServerStopped)))
	switch prev {
	case ServerRunning:
	case ServerConfigured:
		// 已装配但从未成功启动：传输层与管理端口都不在运行，
		// 只需释放 Setup 创建的协程池。
		s.releasePool()
		return
	default:
		return
	}

	s.stopSweeper()
	// 先带着 ServerShutdown 原因批量关闭会话，再停传输层：
	// 传输层停止时也会关闭底层连接，但那条路径拿不到真实的关闭原因。
	s.sessions.CloseAll(CloseReasonServerShutdown)
	s.trans.Stop()

	if s.admin != nil {
		if err := s.admin.Close(); err != nil {
			s.logger.Warn("failed to close admin host", zap.Error(err))
		}
	}
	s.releasePool()

	s.logger.Info("server stopped")
}

func (s *AppServer) sweepLoop(stop <-chan struct{}) {
	defer s.sweepWG.Done()

	ticker := time.NewTicker(s.cfg.sweepInterval())
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case now := <-ticker.C:
			s.sessions.SweepIdle(now, s.cfg.idleTimeout())
		}
	}
}

func (s *AppServer) stopSweeper() {
	if s.sweepStop == nil {
		return
	}
	close(s.sweepStop)
	s.sweepWG.Wait()
	s.sweepStop = nil
}

func (s *AppServer) releasePool() {
	if s.pool != nil {
		s.pool.Release()
		s.pool = nil
	}
}

// OnNewConn 实现 transport.Handler：为新连接创建并注册会话。
func (s *AppServer) OnNewConn(conn transport.Conn) (transport.Session, error) {
	sess := s.factory()
	sess.Init(s, conn)
	sess.SetClosedHandler(s.onSessionClosed)

	if err := s.sessions.Register(sess); err != nil {
		return nil, err
	}

	metrics.SessionsCurrent.WithLabelValues(s.cfg.Name).Inc()
	metrics.SessionsTotal.WithLabelValues(s.cfg.Name).Inc()
	s.logger.Debug("session registered",
		zap.String("session", sess.ID()),
		zap.String("remote", conn.RemoteAddr().String()))

	s.notifyStarted(sess)
	return sess, nil
}

// OnRequest 实现 transport.Handler：把请求路由给命令注册表。
func (s *AppServer) OnRequest(ts transport.Session, req *protocol.Request) {
	sess, ok := ts.(Session)
	if !ok {
		return
	}
	s.ExecuteCommand(sess, req)
}

// OnConnClosed 实现 transport.Handler：连接结束时关闭对应会话。
// 会话若已通过其他路径关闭，这里是幂等的空操作。
func (s *AppServer) OnConnClosed(ts transport.Session, err error) {
	sess, ok := ts.(Session)
	if !ok {
		return
	}

	reason := CloseReasonClientClosing
	if err != nil {
		reason = CloseReasonSocketError
	}
	if cerr := sess.Close(reason); cerr != nil {
		s.logger.Warn("failed to close session",
			zap.String("session", sess.ID()),
			zap.Error(cerr))
	}
}

// ExecuteCommand 查找并执行一条命令。
//
// 故障隔离：未知命令、命令返回错误或命令 panic 都只通知该会话的
// HandleError 钩子，不影响注册表与其他会话。
func (s *AppServer) ExecuteCommand(sess Session, req *protocol.Request) {
	if req == nil {
		return
	}
	sess.Touch()

	cmd, ok := s.commands.Lookup(req.Key)
	if !ok {
		metrics.CommandsFailed.WithLabelValues(s.cfg.Name, "unknown").Inc()
		s.notifyError(sess, merr.WrapErrCommandNotFound(req.Key))
		return
	}

	name := strings.ToLower(cmd.Name())
	if err := s.runCommand(cmd, sess, req); err != nil {
		metrics.CommandsFailed.WithLabelValues(s.cfg.Name, name).Inc()
		s.notifyError(sess, err)
		return
	}
	metrics.CommandsExecuted.WithLabelValues(s.cfg.Name, name).Inc()
}

// runCommand 执行命令并把 panic 折叠为普通错误。
func (s *AppServer) runCommand(cmd Command, sess Session, req *protocol.Request) (err error) {
	defer func() {
		if v := recover(); v != nil {
			err = errors.Newf("panic in command %s: %v", cmd.Name(), v)
		}
	}()
	return cmd.Execute(sess, req)
}

// notifyStarted 调用会话的启动钩子，并吸收业务覆写可能抛出的 panic。
func (s *AppServer) notifyStarted(sess Session) {
	defer func() {
		if v := recover(); v != nil {
			s.logger.Warn("session started hook panicked",
				zap.String("session", sess.ID()),
				zap.Any("panic", v))
		}
	}()
	sess.OnSessionStarted()
}

// notifyError 调用会话的错误钩子，并吸收业务覆写可能抛出的 panic。
func (s *AppServer) notifyError(sess Session, err error) {
	defer func() {
		if v := recover(); v != nil {
			s.logger.Warn("session error handler panicked",
				zap.String("session", sess.ID()),
				zap.Any("panic", v))
		}
	}()
	sess.HandleError(err)
}

// onSessionClosed 是挂到每个会话上的关闭通知，由它驱动注册表移除。
func (s *AppServer) onSessionClosed(sess Session, reason CloseReason) {
	s.sessions.Unregister(sess.ID())
	metrics.SessionsCurrent.WithLabelValues(s.cfg.Name).Dec()
	metrics.SessionsClosed.WithLabelValues(s.cfg.Name, reason.String()).Inc()
	s.logger.Debug("session closed",
		zap.String("session", sess.ID()),
		zap.String("reason", reason.String()))
}

// SessionInfo 是会话的只读快照，供管理端口等外部观察者使用。
type SessionInfo struct {
	ID             string    `json:"id"`
	RemoteAddr     string    `json:"remote_addr"`
	State          string    `json:"state"`
	StartTime      time.Time `json:"start_time"`
	LastActiveTime time.Time `json:"last_active_time"`
}

// Name 返回服务器实例名。
func (s *AppServer) Name() string {
	return s.cfg.Name
}

// Addr 返回已解析的监听地址。
func (s *AppServer) Addr() string {
	return s.addr
}

// State 返回服务器当前状态。
func (s *AppServer) State() ServerState {
	return ServerState(s.state.Load())
}

// StateName 返回服务器当前状态名。
func (s *AppServer) StateName() string {
	return s.State().String()
}

// StartTime 返回最近一次 Start 成功的时刻。
func (s *AppServer) StartTime() time.Time {
	return s.startTime
}

// SessionCount 返回当前在线会话数。
func (s *AppServer) SessionCount() int {
	if s.sessions == nil {
		return 0
	}
	return s.sessions.Count()
}

// LookupSession 按身份键查找在线会话。
func (s *AppServer) LookupSession(id string) (Session, bool) {
	if s.sessions == nil {
		return nil, false
	}
	return s.sessions.Lookup(id)
}

// LookupSessionInfo 按身份键返回会话的只读快照。
func (s *AppServer) LookupSessionInfo(id string) (SessionInfo, error) {
	sess, ok := s.LookupSession(id)
	if !ok {
		return SessionInfo{}, merr.WrapErrSessionNotFound(id)
	}
	return newSessionInfo(sess), nil
}

// Sessions 返回全部在线会话的只读快照。
func (s *AppServer) Sessions() []SessionInfo {
	if s.sessions == nil {
		return nil
	}
	infos := make([]SessionInfo, 0, s.sessions.Count())
	s.sessions.Range(func(sess Session) bool {
		infos = append(infos, newSessionInfo(sess))
		return true
	})
	return infos
}

func newSessionInfo(sess Session) SessionInfo {
	return SessionInfo{
		ID:             sess.ID(),
		RemoteAddr:     sess.Conn().RemoteAddr().String(),
		State:          sess.State().String(),
		StartTime:      sess.StartTime(),
		LastActiveTime: sess.LastActiveTime(),
	}
}

// CommandNames 返回已注册的命令名列表。
func (s *AppServer) CommandNames() []string {
	if s.commands == nil {
		return nil
	}
	return s.commands.Names()
}

// GetProvider 按名字查找已装载的扩展。
func (s *AppServer) GetProvider(name string) (Provider, bool) {
	return s.providers.Get(name)
}
