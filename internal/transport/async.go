package transport

import (
	"context"
	"net"
	"time"

	"go.uber.org/zap"

	"github.com/mdavid/SuperSocket/internal/protocol"
)

// asyncTransport 是 Async 模式的 TCP 传输层。
//
// 每条连接的读协程只负责收包与增量解析，命令执行投递到共享协程池，
// 避免慢命令阻塞网络收包。
type asyncTransport struct {
	*tcpListener

	proto protocol.AsyncProtocol
	h     Handler
}

var _ Transport = (*asyncTransport)(nil)

func newAsyncTransport(proto protocol.AsyncProtocol, h Handler, opts Options) *asyncTransport {
	t := &asyncTransport{
		proto: proto,
		h:     h,
	}
	t.tcpListener = newTCPListener(opts, t.handleConn)
	return t
}

func (t *asyncTransport) handleConn(ctx context.Context, raw net.Conn) {
	conn := newTCPConn(raw, t.opts.WriteTimeout)

	sess, err := t.h.OnNewConn(conn)
	if err != nil {
		t.logger.Warn("session rejected",
			zap.String("remote", raw.RemoteAddr().String()),
			zap.Error(err))
		_ = conn.Close()
		return
	}

	filter := t.proto.NewCommandFilter()
	buf := make([]byte, t.opts.receiveBufferSize())

	var cause error
	for ctx.Err() == nil {
		if t.opts.ReadTimeout > 0 {
			_ = raw.SetReadDeadline(time.Now().Add(t.opts.ReadTimeout))
		}
		n, rerr := raw.Read(buf)
		if n > 0 {
			reqs, ferr := filter.Filter(buf[:n])
			t.dispatch(sess, reqs)
			if ferr != nil {
				cause = ferr
				break
			}
		}
		if rerr != nil {
			if !isNormalClose(rerr) {
				cause = rerr
			}
			break
		}
	}

	_ = conn.Close()
	t.h.OnConnClosed(sess, cause)
}

// dispatch 将一批已解析请求投递到共享协程池执行。
// 同一批请求保持解析顺序；池不可用时退化为原地执行。
func (t *asyncTransport) dispatch(sess Session, reqs []*protocol.Request) {
	if len(reqs) == 0 {
		return
	}
	task := func() {
		for _, req := range reqs {
			t.h.OnRequest(sess, req)
		}
	}
	if t.opts.Pool == nil {
		task()
		return
	}
	if err := t.opts.Pool.Submit(task); err != nil {
		t.logger.Warn("dispatch pool rejected task, executing inline", zap.Error(err))
		task()
	}
}
