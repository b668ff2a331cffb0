package transport

import (
	"net"
	"sync"
	"time"

	"go.uber.org/atomic"

	"github.com/mdavid/SuperSocket/pkg/util/merr"
)

// tcpConn 将 net.Conn 适配为 Conn。
//
// Write 通过互斥锁串行化，避免多协程并发写导致的报文交叉。
type tcpConn struct {
	conn         net.Conn
	writeTimeout time.Duration

	writeMu   sync.Mutex
	closeOnce sync.Once
	closed    *atomic.Bool
}

var _ Conn = (*tcpConn)(nil)

func newTCPConn(conn net.Conn, writeTimeout time.Duration) *tcpConn {
	return &tcpConn{
		conn:         conn,
		writeTimeout: writeTimeout,
		closed:       atomic.NewBool(false),
	}
}

func (c *tcpConn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

func (c *tcpConn) Write(p []byte) error {
	if c.closed.Load() {
		return merr.ErrSessionClosed
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.writeTimeout > 0 {
		_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	for len(p) > 0 {
		n, err := c.conn.Write(p)
		if err != nil {
			return err
		}
		p = p[n:]
	}
	return nil
}

func (c *tcpConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		err = c.conn.Close()
	})
	return err
}

// udpConn 是绑定到某个远端地址的虚拟连接。
//
// 底层 PacketConn 由整个传输层共享，Close 只移除该远端对应的虚拟会话，
// 不关闭底层 socket。
type udpConn struct {
	pc           net.PacketConn
	remote       net.Addr
	writeTimeout time.Duration

	// writeMu 由同一传输层的全部虚拟连接共享：
	// 写超时设置在共享 socket 上，必须与写入一起串行执行，
	// 否则并发写会互相覆盖对方的超时。
	writeMu *sync.Mutex

	closeOnce sync.Once
	closed    *atomic.Bool
	// onClose 由 UDP 传输层挂接，用于从虚拟会话表中移除自身。
	onClose func()
}

var _ Conn = (*udpConn)(nil)

func newUDPConn(pc net.PacketConn, remote net.Addr, writeTimeout time.Duration, writeMu *sync.Mutex, onClose func()) *udpConn {
	return &udpConn{
		pc:           pc,
		remote:       remote,
		writeTimeout: writeTimeout,
		writeMu:      writeMu,
		closed:       atomic.NewBool(false),
		onClose:      onClose,
	}
}

func (c *udpConn) RemoteAddr() net.Addr {
	return c.remote
}

func (c *udpConn) Write(p []byte) error {
	if c.closed.Load() {
		return merr.ErrSessionClosed
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.writeTimeout > 0 {
		_ = c.pc.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	_, err := c.pc.WriteTo(p, c.remote)
	return err
}

func (c *udpConn) Close() error {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		if c.onClose != nil {
			c.onClose()
		}
	})
	return nil
}
