package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"io"
	"net"
	"sync"

	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/mdavid/SuperSocket/pkg/util/merr"
	"github.com/mdavid/SuperSocket/pkg/util/retry"
)

// tcpListener 封装 TCP 监听与接受循环，供同步/异步传输层复用。
//
// 职责：
//   - 管理 NotStarted/Running/Stopped 状态流转；
//   - 接受连接，进行最大连接数控制；
//   - 对瞬时 Accept 错误（超时类）使用退避重试，其他错误结束接受循环；
//   - 每条连接交由注入的 handle 在独立协程中处理。
type tcpListener struct {
	opts   Options
	handle func(ctx context.Context, conn net.Conn)

	state     *atomic.Int32
	ln        net.Listener
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	connCount *atomic.Int32
	logger    *zap.Logger

	connMu sync.Mutex
	conns  map[net.Conn]struct{}
}

func newTCPListener(opts Options, handle func(ctx context.Context, conn net.Conn)) *tcpListener {
	return &tcpListener{
		opts:      opts,
		handle:    handle,
		state:     atomic.NewInt32(StateNotStarted),
		connCount: atomic.NewInt32(0),
		logger:    opts.logger(),
		conns:     make(map[net.Conn]struct{}),
	}
}

// Start 实现 Transport.Start。
func (l *tcpListener) Start() error {
	if !l.state.CompareAndSwap(StateNotStarted, StateRunning) &&
		!l.state.CompareAndSwap(StateStopped, StateRunning) {
		return merr.WrapErrTransportState(stateName(l.state.Load()), "start transport")
	}

	ln, err := net.Listen("tcp", l.opts.Addr)
	if err != nil {
		l.state.Store(StateStopped)
		return err
	}
	if l.opts.TLS != nil {
		ln = tls.NewListener(ln, l.opts.TLS)
	}
	l.ln = ln

	ctx, cancel := context.WithCancel(context.Background())
	l.cancel = cancel

	l.wg.Add(1)
	go l.acceptLoop(ctx)

	l.logger.Info("transport listening",
		zap.String("addr", ln.Addr().String()),
		zap.Bool("tls", l.opts.TLS != nil))
	return nil
}

// Stop 实现 Transport.Stop。
//
// 连接协程可能阻塞在 Read 上，必须关闭全部在途连接才能让它们退出，
// 否则 Wait 永远不会返回。
func (l *tcpListener) Stop() {
	if !l.state.CompareAndSwap(StateRunning, StateStopped) {
		return
	}
	l.cancel()
	_ = l.ln.Close()

	l.connMu.Lock()
	for conn := range l.conns {
		_ = conn.Close()
	}
	l.connMu.Unlock()

	l.wg.Wait()
}

func (l *tcpListener) trackConn(conn net.Conn) {
	l.connMu.Lock()
	l.conns[conn] = struct{}{}
	l.connMu.Unlock()
}

func (l *tcpListener) untrackConn(conn net.Conn) {
	l.connMu.Lock()
	delete(l.conns, conn)
	l.connMu.Unlock()
}

// IsRunning 实现 Transport.IsRunning。
func (l *tcpListener) IsRunning() bool {
	return l.state.Load() == StateRunning
}

func (l *tcpListener) acceptLoop(ctx context.Context) {
	defer l.wg.Done()

	for {
		var conn net.Conn
		err := retry.Do(ctx, func() error {
			c, aerr := l.ln.Accept()
			if aerr != nil {
				return aerr
			}
			conn = c
			return nil
		}, retry.RetryErr(isTransientAcceptErr))
		if err != nil {
			// 监听器被关闭或上层已取消，接受循环正常退出。
			if errors.Is(err, net.ErrClosed) || ctx.Err() != nil {
				return
			}
			l.logger.Error("accept failed, accept loop exiting", zap.Error(err))
			return
		}

		if max := l.opts.MaxConnections; max > 0 && int(l.connCount.Load()) >= max {
			l.logger.Warn("rejecting connection",
				zap.String("remote", conn.RemoteAddr().String()),
				zap.Error(merr.WrapErrConnectionLimit(max)))
			_ = conn.Close()
			continue
		}

		l.connCount.Inc()
		l.trackConn(conn)
		l.wg.Add(1)
		go func(conn net.Conn) {
			defer l.wg.Done()
			defer l.connCount.Dec()
			defer l.untrackConn(conn)
			l.handle(ctx, conn)
		}(conn)
	}
}

// isTransientAcceptErr 判断 Accept 错误是否为可重试的瞬时错误。
func isTransientAcceptErr(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// isNormalClose 判断读错误是否为对端或本端正常关闭。
func isNormalClose(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed)
}

func stateName(state int32) string {
	switch state {
	case StateNotStarted:
		return "NotStarted"
	case StateRunning:
		return "Running"
	case StateStopped:
		return "Stopped"
	default:
		return "Unknown"
	}
}
