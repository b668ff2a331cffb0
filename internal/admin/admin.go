package admin

import (
	"context"
	"net"
	"net/http"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"go.uber.org/zap"

	"github.com/mdavid/SuperSocket/internal/server"
	"github.com/mdavid/SuperSocket/pkg/metrics"
	"github.com/mdavid/SuperSocket/pkg/util/merr"
)

const shutdownTimeout = 5 * time.Second

// registerOnce 保证框架指标只注册到默认 Registry 一次，
// 多个管理端口（或重启的管理端口）共享同一组指标。
var registerOnce sync.Once

// Host 在独立端口上暴露服务器的管理接口。
//
// 端点：
//   - /status   服务器与宿主机的运行状态；
//   - /sessions 当前在线会话快照；
//   - /metrics  Prometheus 指标。
//
// Host 只读观察服务器，不提供任何修改运行状态的入口。
type Host struct {
	addr   string
	logger *zap.Logger

	mu   sync.Mutex
	ln   net.Listener
	srv  *http.Server
	app  *server.AppServer
	wg   sync.WaitGroup
}

// 确保 Host 满足服务器侧的管理端口契约。
var _ server.AdminHost = (*Host)(nil)

// NewHost 创建一个绑定到 addr 的管理端口。
func NewHost(addr string, logger *zap.Logger) *Host {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Host{
		addr:   addr,
		logger: logger,
	}
}

// Open 实现 server.AdminHost。
//
// 先同步完成端口绑定再启动服务协程，绑定失败立即返回，
// 让服务器的 Start 能据此整体回滚。
func (h *Host) Open(app *server.AppServer) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.srv != nil {
		return merr.WrapErrAdminEndpoint(nil, h.addr, "already open")
	}

	ln, err := net.Listen("tcp", h.addr)
	if err != nil {
		return merr.WrapErrAdminEndpoint(err, h.addr, "bind admin endpoint")
	}

	registerOnce.Do(func() {
		metrics.Register(prometheus.DefaultRegisterer)
	})

	h.app = app
	mux := http.NewServeMux()
	mux.HandleFunc("/status", h.handleStatus)
	mux.HandleFunc("/sessions", h.handleSessions)
	mux.Handle("/metrics", promhttp.HandlerFor(prometheus.DefaultGatherer, promhttp.HandlerOpts{}))

	h.ln = ln
	h.srv = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		if err := h.srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			h.logger.Warn("admin host serve exited", zap.Error(err))
		}
	}()

	h.logger.Info("admin host opened", zap.String("addr", ln.Addr().String()))
	return nil
}

// Close 实现 server.AdminHost，幂等。
func (h *Host) Close() error {
	h.mu.Lock()
	srv := h.srv
	h.srv = nil
	h.ln = nil
	h.mu.Unlock()

	if srv == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := srv.Shutdown(ctx)
	h.wg.Wait()
	h.logger.Info("admin host closed")
	return err
}

// Addr 返回实际绑定的地址，未打开时返回配置地址。
func (h *Host) Addr() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.ln != nil {
		return h.ln.Addr().String()
	}
	return h.addr
}

// statusPayload 是 /status 的响应体。
type statusPayload struct {
	Name          string   `json:"name"`
	State         string   `json:"state"`
	Addr          string   `json:"addr"`
	SessionCount  int      `json:"session_count"`
	Commands      []string `json:"commands"`
	UptimeSeconds float64  `json:"uptime_seconds"`

	PID        int     `json:"pid"`
	Goroutines int     `json:"goroutines"`
	CPUPercent float64 `json:"cpu_percent"`
	MemUsed    uint64  `json:"mem_used_bytes"`
	MemTotal   uint64  `json:"mem_total_bytes"`
	MemPercent float64 `json:"mem_percent"`
}

func (h *Host) handleStatus(w http.ResponseWriter, r *http.Request) {
	app := h.app
	payload := statusPayload{
		Name:         app.Name(),
		State:        app.StateName(),
		Addr:         app.Addr(),
		SessionCount: app.SessionCount(),
		Commands:     app.CommandNames(),
		PID:          os.Getpid(),
		Goroutines:   runtime.NumGoroutine(),
	}
	if start := app.StartTime(); !start.IsZero() {
		payload.UptimeSeconds = time.Since(start).Seconds()
	}

	// 宿主机指标失败时不拖垮整个状态接口，相应字段保持零值。
	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		payload.CPUPercent = percents[0]
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		payload.MemUsed = vm.Used
		payload.MemTotal = vm.Total
		payload.MemPercent = vm.UsedPercent
	}

	h.writeJSON(w, payload)
}

func (h *Host) handleSessions(w http.ResponseWriter, r *http.Request) {
	// ?id= 查询单个会话，不带参数时返回全量快照。
	if id := r.URL.Query().Get("id"); id != "" {
		info, err := h.app.LookupSessionInfo(id)
		if err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		h.writeJSON(w, info)
		return
	}

	type sessionsPayload struct {
		Count    int                  `json:"count"`
		Sessions []server.SessionInfo `json:"sessions"`
	}
	infos := h.app.Sessions()
	h.writeJSON(w, sessionsPayload{Count: len(infos), Sessions: infos})
}

func (h *Host) writeJSON(w http.ResponseWriter, v any) {
	data, err := sonic.Marshal(v)
	if err != nil {
		h.logger.Warn("failed to encode admin response", zap.Error(err))
		http.Error(w, "encode failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(data)
}
