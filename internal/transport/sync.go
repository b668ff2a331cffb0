package transport

import (
	"context"
	"io"
	"net"
	"time"

	"go.uber.org/zap"

	"github.com/mdavid/SuperSocket/internal/protocol"
)

// syncTransport 是 Sync 模式的 TCP 传输层。
//
// 每条连接占用一个独立协程：在其中循环读取完整请求并原地执行命令，
// 保证同一会话上的命令串行执行。
type syncTransport struct {
	*tcpListener

	proto protocol.SyncProtocol
	h     Handler
}

var _ Transport = (*syncTransport)(nil)

func newSyncTransport(proto protocol.SyncProtocol, h Handler, opts Options) *syncTransport {
	t := &syncTransport{
		proto: proto,
		h:     h,
	}
	t.tcpListener = newTCPListener(opts, t.handleConn)
	return t
}

func (t *syncTransport) handleConn(ctx context.Context, raw net.Conn) {
	conn := newTCPConn(raw, t.opts.WriteTimeout)

	sess, err := t.h.OnNewConn(conn)
	if err != nil {
		t.logger.Warn("session rejected",
			zap.String("remote", raw.RemoteAddr().String()),
			zap.Error(err))
		_ = conn.Close()
		return
	}

	var r io.Reader = raw
	if t.opts.ReadTimeout > 0 {
		r = &deadlineReader{conn: raw, timeout: t.opts.ReadTimeout}
	}
	reader := t.proto.NewCommandReader(r)

	var cause error
	for ctx.Err() == nil {
		req, rerr := reader.ReadRequest()
		if rerr != nil {
			if !isNormalClose(rerr) {
				cause = rerr
			}
			break
		}
		// 同步模式：命令在连接协程内原地执行。
		t.h.OnRequest(sess, req)
	}

	_ = conn.Close()
	t.h.OnConnClosed(sess, cause)
}

// deadlineReader 在每次 Read 前刷新读超时。
type deadlineReader struct {
	conn    net.Conn
	timeout time.Duration
}

func (r *deadlineReader) Read(p []byte) (int, error) {
	_ = r.conn.SetReadDeadline(time.Now().Add(r.timeout))
	return r.conn.Read(p)
}
