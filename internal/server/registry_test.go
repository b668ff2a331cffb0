package server

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mdavid/SuperSocket/internal/transport"
	"github.com/mdavid/SuperSocket/pkg/log"
	"github.com/mdavid/SuperSocket/pkg/util/merr"
)

// fakeSession 是注册表测试用的最小会话实现。
type fakeSession struct {
	id         string
	lastActive time.Time
	startTime  time.Time

	closed      bool
	closeReason CloseReason
	closePanics bool
	onClosed    func(sess Session, reason CloseReason)
}

var _ Session = (*fakeSession)(nil)

func (f *fakeSession) ID() string { return f.id }

func (f *fakeSession) State() SessionState { return SessionActive }

func (f *fakeSession) StartTime() time.Time { return f.startTime }

func (f *fakeSession) LastActiveTime() time.Time { return f.lastActive }

func (f *fakeSession) Touch() { f.lastActive = time.Now() }

func (f *fakeSession) Conn() transport.Conn { return nil }

func (f *fakeSession) Server() *AppServer { return nil }

func (f *fakeSession) Send(data []byte) error { return nil }

func (f *fakeSession) Init(srv *AppServer, c transport.Conn) {}

func (f *fakeSession) OnSessionStarted() {}

func (f *fakeSession) HandleError(err error) {}
func (f *fakeSession) SetClosedHandler(fn func(Session, CloseReason)) {
	f.onClosed = fn
}

func (f *fakeSession) Close(reason CloseReason) error {
	if f.closePanics {
		panic("close exploded")
	}
	if f.closed {
		return nil
	}
	f.closed = true
	f.closeReason = reason
	if f.onClosed != nil {
		f.onClosed(f, reason)
	}
	return nil
}

type RegistrySuite struct {
	suite.Suite

	reg *SessionRegistry
}

func (s *RegistrySuite) SetupTest() {
	s.reg = NewSessionRegistry("test", log.NewTestLogger(s.T()))
}

// addFake 注册一个最后活跃时间为 lastActive 的假会话，
// 其关闭通知会驱动注册表移除。
func (s *RegistrySuite) addFake(id string, lastActive time.Time) *fakeSession {
	f := &fakeSession{id: id, lastActive: lastActive, startTime: lastActive}
	f.SetClosedHandler(func(sess Session, reason CloseReason) {
		s.reg.Unregister(sess.ID())
	})
	s.Require().NoError(s.reg.Register(f))
	return f
}

func (s *RegistrySuite) TestRegisterLookupUnregister() {
	f := s.addFake("a", time.Now())
	s.Equal(1, s.reg.Count())

	got, ok := s.reg.Lookup("a")
	s.True(ok)
	s.Same(f, got)

	// 重复身份键注册失败，不覆盖旧会话。
	s.ErrorIs(s.reg.Register(&fakeSession{id: "a"}), merr.ErrSessionDuplicate)
	s.Equal(1, s.reg.Count())

	s.reg.Unregister("a")
	s.Equal(0, s.reg.Count())
	_, ok = s.reg.Lookup("a")
	s.False(ok)

	// 幂等：移除不存在的键不是错误。
	s.reg.Unregister("a")
}

func (s *RegistrySuite) TestSweepIdleEvictsOnlyIdle() {
	now := time.Now()
	idle := make([]*fakeSession, 0, 3)
	for i := 0; i < 3; i++ {
		idle = append(idle, s.addFake(fmt.Sprintf("idle-%d", i), now.Add(-10*time.Minute)))
	}
	fresh := s.addFake("fresh", now)

	evicted, ran := s.reg.SweepIdle(now, 5*time.Minute)
	s.True(ran)
	s.Equal(3, evicted)
	s.Equal(1, s.reg.Count())

	for _, f := range idle {
		s.True(f.closed)
		s.Equal(CloseReasonTimeOut, f.closeReason)
	}
	s.False(fresh.closed)
}

func (s *RegistrySuite) TestSweepIdleSkipsWhenOverlapping() {
	now := time.Now()
	s.addFake("idle", now.Add(-10*time.Minute))

	// 模拟上一轮清理仍在执行：本次触发被跳过，不排队。
	s.reg.sweeping.Store(true)
	evicted, ran := s.reg.SweepIdle(now, 5*time.Minute)
	s.False(ran)
	s.Zero(evicted)
	s.Equal(1, s.reg.Count())

	// 上一轮结束后，下一次触发正常执行。
	s.reg.sweeping.Store(false)
	evicted, ran = s.reg.SweepIdle(now, 5*time.Minute)
	s.True(ran)
	s.Equal(1, evicted)
	s.Equal(0, s.reg.Count())
}

func (s *RegistrySuite) TestSweepIdleSurvivesClosePanic() {
	now := time.Now()
	bad := s.addFake("bad", now.Add(-10*time.Minute))
	bad.closePanics = true
	good := s.addFake("good", now.Add(-10*time.Minute))

	evicted, ran := s.reg.SweepIdle(now, 5*time.Minute)
	s.True(ran)
	s.Equal(1, evicted)
	s.True(good.closed)

	// 关闭失败的会话留在注册表中，等待下一轮或连接关闭路径处理。
	_, ok := s.reg.Lookup("bad")
	s.True(ok)
}

func (s *RegistrySuite) TestCloseAll() {
	now := time.Now()
	a := s.addFake("a", now)
	b := s.addFake("b", now)

	s.reg.CloseAll(CloseReasonServerShutdown)
	s.Equal(0, s.reg.Count())
	s.Equal(CloseReasonServerShutdown, a.closeReason)
	s.Equal(CloseReasonServerShutdown, b.closeReason)
}

func (s *RegistrySuite) TestRange() {
	now := time.Now()
	s.addFake("a", now)
	s.addFake("b", now)

	seen := 0
	s.reg.Range(func(sess Session) bool {
		seen++
		return false
	})
	s.Equal(1, seen)
}

func TestRegistry(t *testing.T) {
	suite.Run(t, new(RegistrySuite))
}
