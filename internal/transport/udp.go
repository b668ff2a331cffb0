package transport

import (
	"errors"
	"net"
	"sync"

	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/mdavid/SuperSocket/internal/protocol"
	"github.com/mdavid/SuperSocket/pkg/util/merr"
)

// udp 单次收包缓冲区大小，足以容纳常见 MTU 下的完整数据报。
const udpReadBufferSize = 64 * 1024

// udpTransport 是 Udp 模式的数据报传输层。
//
// 设计：
//   - 整个传输层共享一个 PacketConn 和一个读协程；
//   - 按远端地址划分虚拟会话，首个数据报触发接受回调；
//   - 解析在读协程内完成（天然保证同一远端的请求按序解析），
//     命令执行投递到共享协程池。
type udpTransport struct {
	opts  Options
	proto protocol.AsyncProtocol
	h     Handler

	state  *atomic.Int32
	pc     net.PacketConn
	wg     sync.WaitGroup
	logger *zap.Logger

	// writeMu 串行化共享 socket 上的写超时设置与写入，见 udpConn。
	writeMu sync.Mutex

	mu    sync.Mutex
	peers map[string]*udpPeer
}

// udpPeer 关联一个远端地址的虚拟会话与其解析器。
type udpPeer struct {
	sess   Session
	conn   *udpConn
	filter protocol.CommandFilter
}

var _ Transport = (*udpTransport)(nil)

func newUDPTransport(proto protocol.AsyncProtocol, h Handler, opts Options) *udpTransport {
	return &udpTransport{
		opts:   opts,
		proto:  proto,
		h:      h,
		state:  atomic.NewInt32(StateNotStarted),
		logger: opts.logger(),
		peers:  make(map[string]*udpPeer),
	}
}

// Start 实现 Transport.Start。
func (t *udpTransport) Start() error {
	if !t.state.CompareAndSwap(StateNotStarted, StateRunning) &&
		!t.state.CompareAndSwap(StateStopped, StateRunning) {
		return merr.WrapErrTransportState(stateName(t.state.Load()), "start transport")
	}

	pc, err := net.ListenPacket("udp", t.opts.Addr)
	if err != nil {
		t.state.Store(StateStopped)
		return err
	}
	t.pc = pc

	t.wg.Add(1)
	go t.readLoop()

	t.logger.Info("transport listening", zap.String("addr", pc.LocalAddr().String()))
	return nil
}

// Stop 实现 Transport.Stop。
func (t *udpTransport) Stop() {
	if !t.state.CompareAndSwap(StateRunning, StateStopped) {
		return
	}
	_ = t.pc.Close()
	t.wg.Wait()

	t.mu.Lock()
	t.peers = make(map[string]*udpPeer)
	t.mu.Unlock()
}

// IsRunning 实现 Transport.IsRunning。
func (t *udpTransport) IsRunning() bool {
	return t.state.Load() == StateRunning
}

func (t *udpTransport) readLoop() {
	defer t.wg.Done()

	buf := make([]byte, udpReadBufferSize)
	for {
		n, raddr, err := t.pc.ReadFrom(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			t.logger.Error("udp read failed, read loop exiting", zap.Error(err))
			return
		}
		if n == 0 {
			continue
		}

		peer, perr := t.peer(raddr)
		if perr != nil {
			t.logger.Warn("udp session rejected",
				zap.String("remote", raddr.String()),
				zap.Error(perr))
			continue
		}

		// Filter 仅在读协程内调用，同一远端的解析天然串行。
		reqs, ferr := peer.filter.Filter(buf[:n])
		t.dispatch(peer.sess, reqs)
		if ferr != nil {
			t.logger.Warn("udp request parse failed, closing virtual session",
				zap.String("remote", raddr.String()),
				zap.Error(ferr))
			_ = peer.conn.Close()
			t.h.OnConnClosed(peer.sess, ferr)
		}
	}
}

// peer 返回远端地址对应的虚拟会话，不存在时创建并回调核心。
//
// 只有读协程会创建 peer，因此创建过程无需持锁；
// 持锁回调核心会与会话关闭路径上的 removePeer 形成死锁。
func (t *udpTransport) peer(raddr net.Addr) (*udpPeer, error) {
	key := raddr.String()

	t.mu.Lock()
	p, ok := t.peers[key]
	t.mu.Unlock()
	if ok {
		return p, nil
	}

	conn := newUDPConn(t.pc, raddr, t.opts.WriteTimeout, &t.writeMu, func() {
		t.removePeer(key)
	})
	sess, err := t.h.OnNewConn(conn)
	if err != nil {
		return nil, err
	}

	p = &udpPeer{
		sess:   sess,
		conn:   conn,
		filter: t.proto.NewCommandFilter(),
	}
	t.mu.Lock()
	t.peers[key] = p
	t.mu.Unlock()
	return p, nil
}

func (t *udpTransport) removePeer(key string) {
	t.mu.Lock()
	delete(t.peers, key)
	t.mu.Unlock()
}

func (t *udpTransport) dispatch(sess Session, reqs []*protocol.Request) {
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
