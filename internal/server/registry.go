package server

import (
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/atomic"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mdavid/SuperSocket/pkg/metrics"
	"github.com/mdavid/SuperSocket/pkg/util/merr"
)

// SessionRegistry 维护当前所有在线会话的索引，并负责空闲清理。
//
// 并发模型：
//   - 所有 map 操作由同一把互斥锁串行化；
//   - 清理的单飞（single-flight）保护使用独立的原子标记：
//     标记只阻止清理“执行体”重叠，每一次注册/移除仍由 map 锁各自串行化。
type SessionRegistry struct {
	mu       sync.RWMutex
	sessions map[string]Session

	// sweeping 为清理执行中标记。置位失败的 tick 直接跳过，绝不排队。
	sweeping *atomic.Bool

	serverName string
	logger     *zap.Logger
}

// NewSessionRegistry 创建一个空的会话注册表。
func NewSessionRegistry(serverName string, logger *zap.Logger) *SessionRegistry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionRegistry{
		sessions:   make(map[string]Session),
		sweeping:   atomic.NewBool(false),
		serverName: serverName,
		logger:     logger,
	}
}

// Register 将一个已初始化的会话注册到注册表中。
//
// 身份键由框架生成，理论上不会重复，但仍然显式检查：
// 出现重复时返回错误，绝不覆盖旧会话。
func (r *SessionRegistry) Register(sess Session) error {
	if sess == nil {
		return nil
	}
	id := sess.ID()

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[id]; exists {
		return merr.WrapErrSessionDuplicate(id)
	}
	r.sessions[id] = sess
	return nil
}

// Lookup 根据身份键查找会话。
func (r *SessionRegistry) Lookup(id string) (Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sess, ok := r.sessions[id]
	return sess, ok
}

// Unregister 从注册表中移除指定身份键的会话。
// 幂等：键不存在时为空操作，不是错误。
func (r *SessionRegistry) Unregister(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
}

// Count 返回当前已注册的会话数量。
func (r *SessionRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Range 遍历当前所有在线会话。
// 遍历前复制一份会话切片，避免在持锁情况下执行回调；
// 回调返回 false 时中断遍历。
func (r *SessionRegistry) Range(fn func(sess Session) bool) {
	if fn == nil {
		return
	}

	r.mu.RLock()
	snapshot := make([]Session, 0, len(r.sessions))
	for _, sess := range r.sessions {
		snapshot = append(snapshot, sess)
	}
	r.mu.RUnlock()

	for _, sess := range snapshot {
		if !fn(sess) {
			return
		}
	}
}

// SweepIdle 执行一轮空闲会话清理。
//
// 行为：
//   - 单飞：上一轮尚未结束时，本次调用不做任何事立即返回（跳过，不排队）；
//   - 扫描全部会话，最后活跃时间早于 now-timeout 的会话被关闭，
//     其关闭通知随后驱动 Unregister；
//   - 单个会话关闭失败只记日志，不中断扫描，也不影响下一轮定时触发。
//
// 返回本轮实际关闭的会话数；被跳过的调用返回 (0, false)。
func (r *SessionRegistry) SweepIdle(now time.Time, timeout time.Duration) (int, bool) {
	if !r.sweeping.CompareAndSwap(false, true) {
		metrics.SweepsSkipped.WithLabelValues(r.serverName).Inc()
		return 0, false
	}
	defer r.sweeping.Store(false)

	began := time.Now()
	evicted := 0
	r.Range(func(sess Session) bool {
		if now.Sub(sess.LastActiveTime()) <= timeout {
			return true
		}
		if err := r.closeIdle(sess); err != nil {
			r.logger.Warn("failed to close idle session",
				zap.String("session", sess.ID()),
				zap.Error(err))
			return true
		}
		evicted++
		return true
	})

	metrics.SweepDuration.WithLabelValues(r.serverName).Observe(time.Since(began).Seconds())
	if evicted > 0 {
		metrics.SessionsEvicted.WithLabelValues(r.serverName).Add(float64(evicted))
		r.logger.Info("idle sessions evicted", zap.Int("count", evicted))
	}
	return evicted, true
}

// closeIdle 关闭单个空闲会话，并吸收会话自定义钩子可能抛出的 panic。
func (r *SessionRegistry) closeIdle(sess Session) (err error) {
	defer func() {
		if v := recover(); v != nil {
			err = errors.Newf("panic while closing session: %v", v)
		}
	}()
	return sess.Close(CloseReasonTimeOut)
}

// closeAllParallelism 限制停机时并发关闭会话的协程数。
const closeAllParallelism = 16

// CloseAll 关闭全部已注册会话，用于服务器停止阶段。
// 关闭动作并发执行并等待全部完成，单个会话的失败只记日志。
func (r *SessionRegistry) CloseAll(reason CloseReason) {
	g := new(errgroup.Group)
	g.SetLimit(closeAllParallelism)
	r.Range(func(sess Session) bool {
		g.Go(func() error {
			if err := sess.Close(reason); err != nil {
				r.logger.Warn("failed to close session",
					zap.String("session", sess.ID()),
					zap.Error(err))
			}
			return nil
		})
		return true
	})
	_ = g.Wait()
}
